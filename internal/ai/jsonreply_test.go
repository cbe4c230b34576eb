package ai

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type scriptedCompleter struct {
	replies []string
	errs    []error
	calls   int
	prompts []string
}

func (s *scriptedCompleter) Complete(ctx context.Context, system, user string) (string, error) {
	i := s.calls
	s.calls++
	s.prompts = append(s.prompts, user)
	var err error
	if i < len(s.errs) {
		err = s.errs[i]
	}
	var reply string
	if i < len(s.replies) {
		reply = s.replies[i]
	}
	return reply, err
}

func TestStripFences(t *testing.T) {
	cases := map[string]string{
		"{\"a\":1}":                          "{\"a\":1}",
		"```json\n{\"a\":1}\n```":            "{\"a\":1}",
		"```\n{\"a\":1}\n```":                "{\"a\":1}",
		"  ```json\n{\"a\":1}\n```  ":        "{\"a\":1}",
		"plain text":                         "plain text",
		"```json\n{\n  \"a\": 1\n}\n```":     "{\n  \"a\": 1\n}",
	}
	for in, want := range cases {
		require.Equal(t, want, StripFences(in))
	}
}

func TestCompleteJSONFirstTry(t *testing.T) {
	c := &scriptedCompleter{replies: []string{"```json\n{\"name\":\"x\"}\n```"}}
	var out struct {
		Name string `json:"name"`
	}
	require.NoError(t, CompleteJSON(context.Background(), c, "sys", "user", &out))
	require.Equal(t, "x", out.Name)
	require.Equal(t, 1, c.calls)
}

func TestCompleteJSONRepairsOnce(t *testing.T) {
	c := &scriptedCompleter{replies: []string{
		"Sure! Here is the JSON you asked for: name x",
		"{\"name\":\"x\"}",
	}}
	var out struct {
		Name string `json:"name"`
	}
	require.NoError(t, CompleteJSON(context.Background(), c, "sys", "user", &out))
	require.Equal(t, "x", out.Name)
	require.Equal(t, 2, c.calls)
	require.Contains(t, c.prompts[1], repairPrompt)
}

func TestCompleteJSONFailsAfterRepair(t *testing.T) {
	c := &scriptedCompleter{replies: []string{"not json", "still not json"}}
	var out map[string]any
	err := CompleteJSON(context.Background(), c, "sys", "user", &out)
	require.Error(t, err)
	require.Equal(t, 2, c.calls)
}

func TestCompleteJSONPropagatesCompleterError(t *testing.T) {
	boom := errors.New("rate limit exceeded")
	c := &scriptedCompleter{errs: []error{boom}}
	var out map[string]any
	err := CompleteJSON(context.Background(), c, "sys", "user", &out)
	require.ErrorIs(t, err, boom)
	require.Equal(t, 1, c.calls)
}
