package transcription

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/neurolearn/backend/internal/faults"
)

func TestSanitizeMIME(t *testing.T) {
	cases := map[string]string{
		"audio/webm;codecs=opus":    "audio/webm",
		"AUDIO/WEBM; codecs=opus":   "audio/webm",
		"  audio/mpeg  ":            "audio/mpeg",
		"video/mp4":                 "video/mp4",
		"":                          "",
		"audio/ogg; codecs=vorbis":  "audio/ogg",
	}
	for in, want := range cases {
		require.Equal(t, want, SanitizeMIME(in), "input %q", in)
	}
}

func TestExtensionForMIME(t *testing.T) {
	require.Equal(t, ".webm", ExtensionForMIME("audio/webm;codecs=opus"))
	require.Equal(t, ".mp3", ExtensionForMIME("audio/mpeg"))
	require.Equal(t, ".m4a", ExtensionForMIME("audio/x-m4a"))
	require.Equal(t, ".wav", ExtensionForMIME("audio/wave"))
	require.Equal(t, ".mp4", ExtensionForMIME("video/mp4"))
	// Unknown types fall back to .webm.
	require.Equal(t, ".webm", ExtensionForMIME("application/octet-stream"))
	require.Equal(t, ".webm", ExtensionForMIME(""))
}

func TestValidateAudio(t *testing.T) {
	c := NewClient("key", "", nil, 0, "", nil)

	require.Error(t, c.ValidateAudio(0, "audio/wav"))
	require.Error(t, c.ValidateAudio(100, "audio/wav"))
	require.NoError(t, c.ValidateAudio(minAudioBytes, "audio/wav"))
	require.NoError(t, c.ValidateAudio(defaultMaxAudioBytes, "audio/webm;codecs=opus"))
	require.Error(t, c.ValidateAudio(defaultMaxAudioBytes+1, "audio/wav"))

	require.Error(t, c.ValidateAudio(10_000, "text/html"))
	require.NoError(t, c.ValidateAudio(10_000, "video/webm"))
	require.NoError(t, c.ValidateAudio(10_000, "application/octet-stream"))
	require.NoError(t, c.ValidateAudio(10_000, ""))

	for _, err := range []error{
		c.ValidateAudio(0, "audio/wav"),
		c.ValidateAudio(10_000, "text/html"),
	} {
		require.Equal(t, faults.TypeValidation, faults.Classify(err))
	}
}

func TestValidateAudioCustomMax(t *testing.T) {
	c := NewClient("key", "", nil, 4096, "", nil)
	require.NoError(t, c.ValidateAudio(4096, "audio/wav"))
	require.Error(t, c.ValidateAudio(4097, "audio/wav"))
}

func TestNormalizeTextFormat(t *testing.T) {
	res, err := Normalize([]byte("  hello world \n"), "text")
	require.NoError(t, err)
	require.Equal(t, "hello world", res.Text)
	require.Empty(t, res.Segments)
}

func TestNormalizeVerboseJSON(t *testing.T) {
	raw := []byte(`{
		"text": " full transcript ",
		"language": "en",
		"duration": 12.5,
		"segments": [
			{"id": 0, "start": 0, "end": 6.1, "text": "first span"},
			{"id": 1, "start": 6.1, "end": 12.5, "text": "second span"}
		],
		"words": [{"word": "first", "start": 0, "end": 0.4}]
	}`)
	res, err := Normalize(raw, "verbose_json")
	require.NoError(t, err)
	require.Equal(t, "full transcript", res.Text)
	require.Equal(t, "en", res.Language)
	require.Equal(t, 12.5, res.Duration)
	require.Len(t, res.Segments, 2)
	require.Equal(t, "second span", res.Segments[1].Text)
	require.Len(t, res.Words, 1)
}

func TestNormalizeCompactJSON(t *testing.T) {
	res, err := Normalize([]byte(`{"text":"short answer"}`), "json")
	require.NoError(t, err)
	require.Equal(t, "short answer", res.Text)
}

func TestNormalizePlainTextDespiteJSONSelector(t *testing.T) {
	res, err := Normalize([]byte("not json at all"), "verbose_json")
	require.NoError(t, err)
	require.Equal(t, "not json at all", res.Text)
}

func TestNormalizeEmptyInvalid(t *testing.T) {
	_, err := Normalize([]byte("   "), "verbose_json")
	require.Error(t, err)
}
