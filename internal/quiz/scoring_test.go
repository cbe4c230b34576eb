package quiz

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/neurolearn/backend/internal/models"
)

func TestScoreAnswerMCQ(t *testing.T) {
	q := &models.QuizQuestion{
		Type:               models.QuestionTypeMultipleChoice,
		CorrectOptionIndex: intPtr(2),
	}
	require.True(t, ScoreAnswer(q, SubmittedAnswer{SelectedOptionIndex: intPtr(2)}))
	require.False(t, ScoreAnswer(q, SubmittedAnswer{SelectedOptionIndex: intPtr(1)}))
	require.False(t, ScoreAnswer(q, SubmittedAnswer{}))

	q.CorrectOptionIndex = nil
	require.False(t, ScoreAnswer(q, SubmittedAnswer{SelectedOptionIndex: intPtr(2)}))
}

func TestScoreAnswerFreeText(t *testing.T) {
	q := &models.QuizQuestion{Type: models.QuestionTypeShortAnswer, AnswerText: "Paris"}

	require.True(t, ScoreAnswer(q, SubmittedAnswer{AnswerText: "paris "}))
	require.True(t, ScoreAnswer(q, SubmittedAnswer{AnswerText: "PARIS"}))
	// Substring match in either direction.
	require.True(t, ScoreAnswer(q, SubmittedAnswer{AnswerText: "the city of Paris"}))
	require.False(t, ScoreAnswer(q, SubmittedAnswer{AnswerText: "Lyon"}))
	require.False(t, ScoreAnswer(q, SubmittedAnswer{AnswerText: ""}))

	tf := &models.QuizQuestion{Type: models.QuestionTypeTrueFalse, AnswerText: "true"}
	require.True(t, ScoreAnswer(tf, SubmittedAnswer{AnswerText: " True"}))
	require.False(t, ScoreAnswer(tf, SubmittedAnswer{AnswerText: "false"}))
}

func TestScoreAnswerEmptyExpectedNeverMatches(t *testing.T) {
	q := &models.QuizQuestion{Type: models.QuestionTypeShortAnswer, AnswerText: ""}
	require.False(t, ScoreAnswer(q, SubmittedAnswer{AnswerText: "anything"}))
}

func TestScoreAnswerUnknownType(t *testing.T) {
	q := &models.QuizQuestion{Type: "essay", AnswerText: "x"}
	require.False(t, ScoreAnswer(q, SubmittedAnswer{AnswerText: "x"}))
}

func TestApplyAttemptFirstAttemptStable(t *testing.T) {
	stats := &models.UserStats{}
	ApplyAttempt(stats, &models.QuizAttempt{Score: 80, CorrectCount: 4, TotalCount: 5})

	require.Equal(t, 1, stats.AttemptCount)
	require.Equal(t, 5, stats.TotalQuestions)
	require.Equal(t, 4, stats.CorrectAnswers)
	require.Equal(t, 80.0, stats.AverageScore)
	require.Equal(t, models.TrendStable, stats.Trend)
}

func TestApplyAttemptRollingAverageAndTrend(t *testing.T) {
	stats := &models.UserStats{}
	ApplyAttempt(stats, &models.QuizAttempt{Score: 60, CorrectCount: 3, TotalCount: 5})
	ApplyAttempt(stats, &models.QuizAttempt{Score: 100, CorrectCount: 5, TotalCount: 5})

	require.Equal(t, 2, stats.AttemptCount)
	require.Equal(t, 80.0, stats.AverageScore)
	require.Equal(t, models.TrendImproving, stats.Trend)

	ApplyAttempt(stats, &models.QuizAttempt{Score: 20, CorrectCount: 1, TotalCount: 5})
	require.Equal(t, 3, stats.AttemptCount)
	require.Equal(t, 60.0, stats.AverageScore)
	require.Equal(t, models.TrendDeclining, stats.Trend)
}

func TestApplyAttemptStableWithinEpsilon(t *testing.T) {
	stats := &models.UserStats{}
	ApplyAttempt(stats, &models.QuizAttempt{Score: 80, TotalCount: 5, CorrectCount: 4})
	// Second attempt at the running average keeps the trend stable.
	ApplyAttempt(stats, &models.QuizAttempt{Score: 80, TotalCount: 5, CorrectCount: 4})

	require.Equal(t, 80.0, stats.AverageScore)
	require.Equal(t, models.TrendStable, stats.Trend)
}
