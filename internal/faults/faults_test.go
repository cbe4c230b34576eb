package faults

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassifyMessageHeuristics(t *testing.T) {
	cases := []struct {
		msg  string
		want Type
	}{
		{"dial tcp 10.0.0.1:443: i/o timeout", TypeNetwork},
		{"connection refused", TypeNetwork},
		{"rate limit exceeded, retry later", TypeRateLimit},
		{"request failed with status 429", TypeRateLimit},
		{"unauthorized: invalid api key", TypeAuthentication},
		{"open /tmp/video.mp4: no such file or directory", TypeFile},
		{"ERROR: duplicate key value violates unique constraint", TypeDatabase},
		{"NoSuchKey: the specified key does not exist in s3", TypeStorage},
		{"field title is required", TypeValidation},
		{"openai: bad gateway", TypeExternalAPI},
		{"something nobody has seen before", TypeUnknown},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, Classify(errors.New(tc.msg)), "message %q", tc.msg)
	}
}

func TestClassifyOrderingPrefersNetwork(t *testing.T) {
	// A timeout calling an external API is a network fault, not external_api.
	got := Classify(errors.New("openai request timed out"))
	require.Equal(t, TypeNetwork, got)
}

func TestClassifyTypedFaultKeepsTag(t *testing.T) {
	err := New(TypeProcessing, "connection refused while transcoding")
	require.Equal(t, TypeProcessing, Classify(err))

	wrapped := fmt.Errorf("stage failed: %w", Wrap(errors.New("boom"), TypeStorage, "upload"))
	require.Equal(t, TypeStorage, Classify(wrapped))
}

func TestClassifyNil(t *testing.T) {
	require.Equal(t, TypeUnknown, Classify(nil))
}

func TestIsRetryable(t *testing.T) {
	for _, typ := range []Type{TypeNetwork, TypeExternalAPI, TypeStorage, TypeRateLimit} {
		require.True(t, IsRetryable(typ), "%s should be retryable", typ)
	}
	for _, typ := range []Type{TypeValidation, TypeFile, TypeDatabase, TypeAuthentication, TypeProcessing, TypeCritical, TypeUnknown} {
		require.False(t, IsRetryable(typ), "%s should not be retryable", typ)
	}
}

func TestDefaultSeverity(t *testing.T) {
	require.Equal(t, SeverityCritical, DefaultSeverity(TypeDatabase))
	require.Equal(t, SeverityLow, DefaultSeverity(TypeValidation))
	require.Equal(t, SeverityMedium, DefaultSeverity(Type("made-up")))
}

func TestFaultErrorAndUnwrap(t *testing.T) {
	cause := errors.New("root cause")
	f := Wrap(cause, TypeFile, "read config")
	require.Equal(t, "read config: root cause", f.Error())
	require.ErrorIs(t, f, cause)

	bare := New(TypeValidation, "bad input")
	require.Equal(t, "bad input", bare.Error())
	require.Nil(t, errors.Unwrap(bare))
}
