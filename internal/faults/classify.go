package faults

import (
	"errors"
	"strings"
)

// Ordered match rules. Order is a design choice: a "timeout" error is always
// network, never anything else, so multi-match messages stay unambiguous.
var classifyRules = []struct {
	t        Type
	patterns []string
}{
	{TypeNetwork, []string{
		"timeout", "timed out", "connection refused", "connection reset",
		"econnrefused", "econnreset", "no such host", "network", "socket hang up",
		"broken pipe", "fetch failed",
	}},
	{TypeRateLimit, []string{
		"rate limit", "too many requests", "status 429", "quota exceeded",
	}},
	{TypeAuthentication, []string{
		"unauthorized", "forbidden", "status 401", "status 403", "invalid api key",
		"authentication", "token expired",
	}},
	{TypeFile, []string{
		"enoent", "no such file", "file not found", "eacces", "permission denied",
		"is a directory", "file too large",
	}},
	{TypeDatabase, []string{
		"database", "pgx", "sqlstate", "duplicate key", "violates", "relation",
		"no rows in result set",
	}},
	{TypeStorage, []string{
		"bucket", "s3", "presign", "nosuchkey", "storage",
	}},
	{TypeValidation, []string{
		"validation", "invalid", "required", "must be", "out of range",
	}},
	{TypeExternalAPI, []string{
		"openai", "gemini", "whisper", "status 5", "bad gateway",
		"service unavailable", "api error",
	}},
}

// Classify maps an error to a fault type. Typed *Fault values keep their tag;
// untyped errors fall back to ordered message heuristics.
func Classify(err error) Type {
	if err == nil {
		return TypeUnknown
	}
	var f *Fault
	if errors.As(err, &f) {
		return f.Type
	}
	msg := strings.ToLower(err.Error())
	for _, rule := range classifyRules {
		for _, p := range rule.patterns {
			if strings.Contains(msg, p) {
				return rule.t
			}
		}
	}
	return TypeUnknown
}
