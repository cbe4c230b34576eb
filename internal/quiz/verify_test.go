package quiz

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/neurolearn/backend/internal/models"
)

func intPtr(i int) *int { return &i }

func validMCQ() *models.QuizQuestion {
	return &models.QuizQuestion{
		Type:               models.QuestionTypeMultipleChoice,
		Prompt:             "What is the capital of France?",
		Options:            []string{"Paris", "Lyon", "Marseille", "Nice"},
		CorrectOptionIndex: intPtr(0),
		Evidence:           []models.Evidence{{Excerpt: "Paris is the capital of France."}},
	}
}

func TestVerifyValidMCQ(t *testing.T) {
	ok, reason := Verify(validMCQ())
	require.True(t, ok)
	require.Empty(t, reason)
}

func TestVerifyEmptyPrompt(t *testing.T) {
	q := validMCQ()
	q.Prompt = "   "
	ok, reason := Verify(q)
	require.False(t, ok)
	require.Equal(t, "empty prompt", reason)
}

func TestVerifyMCQOptionCount(t *testing.T) {
	q := validMCQ()
	q.Options = []string{"a", "b"}
	q.CorrectOptionIndex = intPtr(0)
	ok, reason := Verify(q)
	require.False(t, ok)
	require.Contains(t, reason, "option count 2")

	q = validMCQ()
	q.Options = []string{"a", "b", "c", "d", "e", "f", "g"}
	ok, _ = Verify(q)
	require.False(t, ok)
}

func TestVerifyMCQDuplicateOptions(t *testing.T) {
	q := validMCQ()
	q.Options = []string{"Paris", " paris ", "Lyon"}
	ok, reason := Verify(q)
	require.False(t, ok)
	require.Equal(t, "duplicate options", reason)
}

func TestVerifyMCQEmptyOption(t *testing.T) {
	q := validMCQ()
	q.Options = []string{"Paris", "  ", "Lyon"}
	ok, reason := Verify(q)
	require.False(t, ok)
	require.Equal(t, "empty option", reason)
}

func TestVerifyMCQCorrectIndex(t *testing.T) {
	q := validMCQ()
	q.CorrectOptionIndex = nil
	ok, reason := Verify(q)
	require.False(t, ok)
	require.Equal(t, "missing correct option index", reason)

	q = validMCQ()
	q.CorrectOptionIndex = intPtr(4)
	ok, _ = Verify(q)
	require.False(t, ok)

	q = validMCQ()
	q.CorrectOptionIndex = intPtr(-1)
	ok, _ = Verify(q)
	require.False(t, ok)
}

func TestVerifyTrueFalse(t *testing.T) {
	q := &models.QuizQuestion{
		Type:       models.QuestionTypeTrueFalse,
		Prompt:     "Go has generics.",
		AnswerText: " True ",
		Evidence:   []models.Evidence{{Excerpt: "Generics landed in Go 1.18."}},
	}
	ok, reason := Verify(q)
	require.True(t, ok, reason)

	q.AnswerText = "yes"
	ok, reason = Verify(q)
	require.False(t, ok)
	require.Contains(t, reason, "true or false")
}

func TestVerifyShortAnswer(t *testing.T) {
	q := &models.QuizQuestion{
		Type:       models.QuestionTypeShortAnswer,
		Prompt:     "Name the Go mascot.",
		AnswerText: "gopher",
		Evidence:   []models.Evidence{{Excerpt: "The gopher is the Go mascot."}},
	}
	ok, _ := Verify(q)
	require.True(t, ok)

	q.AnswerText = ""
	ok, reason := Verify(q)
	require.False(t, ok)
	require.Equal(t, "missing answer text", reason)

	q.AnswerText = "x"
	ok, reason = Verify(q)
	require.False(t, ok)
	require.Equal(t, "answer is trivially short", reason)
}

func TestVerifyUnknownType(t *testing.T) {
	q := &models.QuizQuestion{Type: "essay", Prompt: "Discuss."}
	ok, reason := Verify(q)
	require.False(t, ok)
	require.Contains(t, reason, "unknown question type")
}

func TestVerifyEvidenceRequired(t *testing.T) {
	q := validMCQ()
	q.Evidence = nil
	ok, reason := Verify(q)
	require.False(t, ok)
	require.Equal(t, "no supporting evidence", reason)

	q = validMCQ()
	q.Evidence = []models.Evidence{{Excerpt: "   "}}
	ok, reason = Verify(q)
	require.False(t, ok)
	require.Equal(t, "empty evidence excerpt", reason)
}

func TestVerifySetsEvidenceQuality(t *testing.T) {
	q := validMCQ()
	q.Evidence = []models.Evidence{
		{Excerpt: "short"},
		{Excerpt: strings.Repeat("m", evidenceMediumLen)},
		{Excerpt: strings.Repeat("h", evidenceHighLen)},
	}
	ok, _ := Verify(q)
	require.True(t, ok)
	require.Equal(t, models.EvidenceQualityLow, q.Evidence[0].Quality)
	require.Equal(t, models.EvidenceQualityMedium, q.Evidence[1].Quality)
	require.Equal(t, models.EvidenceQualityHigh, q.Evidence[2].Quality)
}

func TestEvidenceQualityBands(t *testing.T) {
	require.Equal(t, models.EvidenceQualityLow, EvidenceQuality(""))
	require.Equal(t, models.EvidenceQualityLow, EvidenceQuality(strings.Repeat("a", evidenceMediumLen-1)))
	require.Equal(t, models.EvidenceQualityMedium, EvidenceQuality(strings.Repeat("a", evidenceMediumLen)))
	require.Equal(t, models.EvidenceQualityMedium, EvidenceQuality(strings.Repeat("a", evidenceHighLen-1)))
	require.Equal(t, models.EvidenceQualityHigh, EvidenceQuality(strings.Repeat("a", evidenceHighLen)))
}
