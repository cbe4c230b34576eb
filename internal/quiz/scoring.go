package quiz

import (
	"strings"

	"github.com/neurolearn/backend/internal/models"
)

// trendEpsilon is the average-score delta below which the trend is stable.
const trendEpsilon = 0.5

// SubmittedAnswer is one caller-provided answer to score.
type SubmittedAnswer struct {
	QuestionID          string `json:"question_id"`
	AnswerText          string `json:"answer_text,omitempty"`
	SelectedOptionIndex *int   `json:"selected_option_index,omitempty"`
}

// ScoreAnswer checks a submitted answer against the stored question. MCQ
// requires the exact index; free-text answers match case- and
// whitespace-insensitively, exact or substring in either direction.
func ScoreAnswer(q *models.QuizQuestion, a SubmittedAnswer) bool {
	switch q.Type {
	case models.QuestionTypeMultipleChoice:
		return q.CorrectOptionIndex != nil && a.SelectedOptionIndex != nil &&
			*a.SelectedOptionIndex == *q.CorrectOptionIndex
	case models.QuestionTypeTrueFalse, models.QuestionTypeShortAnswer:
		return textMatches(q.AnswerText, a.AnswerText)
	default:
		return false
	}
}

func textMatches(expected, got string) bool {
	expected = strings.ToLower(strings.TrimSpace(expected))
	got = strings.ToLower(strings.TrimSpace(got))
	if expected == "" || got == "" {
		return false
	}
	if expected == got {
		return true
	}
	return strings.Contains(got, expected) || strings.Contains(expected, got)
}

// ApplyAttempt folds one attempt into the rolling user stats. The average is
// recomputed incrementally and the trend compares the new average against the
// previous one.
func ApplyAttempt(stats *models.UserStats, attempt *models.QuizAttempt) {
	prevAvg := stats.AverageScore
	stats.AttemptCount++
	stats.TotalQuestions += attempt.TotalCount
	stats.CorrectAnswers += attempt.CorrectCount
	stats.AverageScore = prevAvg + (attempt.Score-prevAvg)/float64(stats.AttemptCount)

	switch {
	case stats.AttemptCount == 1:
		stats.Trend = models.TrendStable
	case stats.AverageScore > prevAvg+trendEpsilon:
		stats.Trend = models.TrendImproving
	case stats.AverageScore < prevAvg-trendEpsilon:
		stats.Trend = models.TrendDeclining
	default:
		stats.Trend = models.TrendStable
	}
}
