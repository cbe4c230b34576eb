package quiz

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/neurolearn/backend/internal/models"
)

func TestNormalizeRequestDefaults(t *testing.T) {
	req := normalizeRequest(GenerateRequest{Topic: "graphs"})
	require.Equal(t, defaultQuestionCount, req.QuestionCount)
	require.Equal(t, []string{models.QuestionTypeMultipleChoice}, req.Types)
	require.Equal(t, 1, req.DifficultyMin)
	require.Equal(t, 5, req.DifficultyMax)
	require.Equal(t, "Quiz: graphs", req.Title)
}

func TestNormalizeRequestBounds(t *testing.T) {
	req := normalizeRequest(GenerateRequest{QuestionCount: 100, DifficultyMin: 7, DifficultyMax: 0})
	require.Equal(t, maxQuestionCount, req.QuestionCount)
	require.Equal(t, 1, req.DifficultyMin)
	require.Equal(t, 5, req.DifficultyMax)
	require.Equal(t, "Quiz", req.Title)

	req = normalizeRequest(GenerateRequest{DifficultyMin: 3, DifficultyMax: 2})
	require.Equal(t, 3, req.DifficultyMin)
	require.Equal(t, 5, req.DifficultyMax)
}

func TestNormalizeRequestKeepsExplicitValues(t *testing.T) {
	req := normalizeRequest(GenerateRequest{
		Title:         "Midterm review",
		QuestionCount: 8,
		Types:         []string{models.QuestionTypeTrueFalse},
		DifficultyMin: 2,
		DifficultyMax: 4,
	})
	require.Equal(t, "Midterm review", req.Title)
	require.Equal(t, 8, req.QuestionCount)
	require.Equal(t, []string{models.QuestionTypeTrueFalse}, req.Types)
	require.Equal(t, 2, req.DifficultyMin)
	require.Equal(t, 4, req.DifficultyMax)
}

func chunkWith(content string) models.DocumentChunk {
	return models.DocumentChunk{ID: uuid.New(), Content: content}
}

func TestRankByTopicOrdersByTermHits(t *testing.T) {
	chunks := []models.DocumentChunk{
		chunkWith("nothing relevant here"),
		chunkWith("binary trees and binary search trees"),
		chunkWith("a binary digit is a bit"),
	}
	ranked := rankByTopic(chunks, "binary trees", 10)

	require.Len(t, ranked, 2)
	// Four hits (two "binary", two "trees") beat one.
	require.Equal(t, chunks[1].ID, ranked[0].ID)
	require.Equal(t, chunks[2].ID, ranked[1].ID)
}

func TestRankByTopicCaseInsensitive(t *testing.T) {
	chunks := []models.DocumentChunk{chunkWith("GRAPH theory basics")}
	ranked := rankByTopic(chunks, "Graph", 10)
	require.Len(t, ranked, 1)
}

func TestRankByTopicLimitAndEmptyTopic(t *testing.T) {
	var chunks []models.DocumentChunk
	for i := 0; i < 10; i++ {
		chunks = append(chunks, chunkWith("sorting algorithms"))
	}
	require.Len(t, rankByTopic(chunks, "sorting", 3), 3)
	require.Nil(t, rankByTopic(chunks, "   ", 3))
	require.Empty(t, rankByTopic(chunks, "unrelated", 3))
}

func TestExcerptOf(t *testing.T) {
	require.Equal(t, "short", excerptOf("  short  "))

	long := strings.Repeat("日", 400)
	got := excerptOf(long)
	require.Equal(t, 300, len([]rune(got)))
}
