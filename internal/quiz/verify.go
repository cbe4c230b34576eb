package quiz

import (
	"fmt"
	"strings"

	"github.com/neurolearn/backend/internal/models"
)

// Option count bounds for multiple choice questions.
const (
	minOptions = 3
	maxOptions = 6
)

// Evidence excerpt length thresholds for quality banding.
const (
	evidenceMediumLen = 80
	evidenceHighLen   = 240
)

// EvidenceQuality bands an excerpt by length.
func EvidenceQuality(excerpt string) string {
	n := len(strings.TrimSpace(excerpt))
	switch {
	case n >= evidenceHighLen:
		return models.EvidenceQualityHigh
	case n >= evidenceMediumLen:
		return models.EvidenceQualityMedium
	default:
		return models.EvidenceQualityLow
	}
}

// Verify runs the verification checklist over a generated question. It
// returns ok=false with a reason on the first failed check; the question is
// persisted either way.
func Verify(q *models.QuizQuestion) (bool, string) {
	if strings.TrimSpace(q.Prompt) == "" {
		return false, "empty prompt"
	}

	switch q.Type {
	case models.QuestionTypeMultipleChoice:
		if len(q.Options) < minOptions || len(q.Options) > maxOptions {
			return false, fmt.Sprintf("option count %d outside %d-%d", len(q.Options), minOptions, maxOptions)
		}
		seen := make(map[string]struct{}, len(q.Options))
		for _, opt := range q.Options {
			key := strings.ToLower(strings.TrimSpace(opt))
			if key == "" {
				return false, "empty option"
			}
			if _, dup := seen[key]; dup {
				return false, "duplicate options"
			}
			seen[key] = struct{}{}
		}
		if q.CorrectOptionIndex == nil {
			return false, "missing correct option index"
		}
		if *q.CorrectOptionIndex < 0 || *q.CorrectOptionIndex >= len(q.Options) {
			return false, fmt.Sprintf("correct option index %d out of range", *q.CorrectOptionIndex)
		}

	case models.QuestionTypeTrueFalse:
		answer := strings.ToLower(strings.TrimSpace(q.AnswerText))
		if answer != "true" && answer != "false" {
			return false, "true/false answer must be true or false"
		}

	case models.QuestionTypeShortAnswer:
		answer := strings.TrimSpace(q.AnswerText)
		if answer == "" {
			return false, "missing answer text"
		}
		if len(answer) < 2 {
			return false, "answer is trivially short"
		}

	default:
		return false, "unknown question type: " + q.Type
	}

	if len(q.Evidence) == 0 {
		return false, "no supporting evidence"
	}
	for i := range q.Evidence {
		if strings.TrimSpace(q.Evidence[i].Excerpt) == "" {
			return false, "empty evidence excerpt"
		}
		q.Evidence[i].Quality = EvidenceQuality(q.Evidence[i].Excerpt)
	}
	return true, ""
}
