package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// repairPrompt asks the model to fix a malformed JSON reply. Applied exactly
// once; a second failure surfaces as an error.
const repairPrompt = "Your previous reply was not valid JSON. Reply again with ONLY the JSON object, no prose, no markdown fences."

// StripFences removes a surrounding markdown code fence from a model reply.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		if i := strings.IndexByte(s, '\n'); i >= 0 {
			s = s[i+1:]
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}

// CompleteJSON runs a single-turn completion and unmarshals the reply into
// target, re-prompting once on malformed JSON.
func CompleteJSON(ctx context.Context, c Completer, system, user string, target interface{}) error {
	reply, err := c.Complete(ctx, system, user)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(StripFences(reply)), target); err == nil {
		return nil
	}

	repaired, err := c.Complete(ctx, system, user+"\n\n"+repairPrompt)
	if err != nil {
		return fmt.Errorf("json repair prompt: %w", err)
	}
	if err := json.Unmarshal([]byte(StripFences(repaired)), target); err != nil {
		return fmt.Errorf("model reply is not valid JSON after repair: %w", err)
	}
	return nil
}
