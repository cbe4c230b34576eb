package transcription

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/neurolearn/backend/internal/faults"
)

// apiError is a non-200 response from the transcription API, tagged with the
// fault type derived from the status code so classification never falls back
// to message heuristics for our own HTTP calls.
type apiError struct {
	status  int
	message string
	fault   *faults.Fault
}

func (e *apiError) Error() string {
	return fmt.Sprintf("whisper api status %d: %s", e.status, e.message)
}

func (e *apiError) Unwrap() error { return e.fault }

func newAPIError(status int, body []byte) *apiError {
	// OpenAI error envelope: {"error": {"message": "..."}}
	var envelope struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	message := string(body)
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		message = envelope.Error.Message
	}

	var t faults.Type
	switch {
	case status == http.StatusTooManyRequests:
		t = faults.TypeRateLimit
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		t = faults.TypeAuthentication
	case status >= 500:
		t = faults.TypeExternalAPI
	default:
		t = faults.TypeValidation
	}
	return &apiError{
		status:  status,
		message: message,
		fault:   faults.Newf(t, "whisper api status %d", status),
	}
}

func asAPIError(err error, target **apiError) bool {
	return errors.As(err, target)
}
