package quiz

import (
	"context"
	"fmt"
	"math/rand"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/neurolearn/backend/internal/ai"
	"github.com/neurolearn/backend/internal/documents"
	"github.com/neurolearn/backend/internal/faults"
	"github.com/neurolearn/backend/internal/models"
)

const questionSystemPrompt = `You are a quiz author for a learning platform. Generate exactly one question from the provided source material. Reply with ONLY a JSON object:
{"prompt": "...", "options": ["..."], "correct_option_index": 0, "answer_text": "...", "evidence_excerpt": "..."}
For multiple_choice fill options (3-6 entries, no duplicates) and correct_option_index. For true_false and short_answer leave options empty and fill answer_text. evidence_excerpt quotes the source passage the question is based on.`

const (
	// maxChunkPool bounds the source chunk pool per quiz.
	maxChunkPool = 40
	// topicSearchLimit bounds chunks scanned for topic relevance.
	topicSearchLimit = 200
	// defaultQuestionCount applies when the request leaves count unset.
	defaultQuestionCount = 5
	// maxQuestionCount bounds one generation run.
	maxQuestionCount = 20
)

// GenerateRequest describes one quiz generation run.
type GenerateRequest struct {
	UserID        uuid.UUID
	Title         string
	Topic         string
	DocumentIDs   []uuid.UUID
	QuestionCount int
	Types         []string
	DifficultyMin int
	DifficultyMax int
}

// Generator builds quizzes by prompting a chat model one question at a time.
type Generator struct {
	repo      *Repository
	docs      *documents.Repository
	completer ai.Completer
	faults    *faults.Service
	rand      *rand.Rand
	logger    *zap.Logger
}

// NewGenerator creates a quiz generator.
func NewGenerator(repo *Repository, docs *documents.Repository, completer ai.Completer, faultSvc *faults.Service, rng *rand.Rand, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{repo: repo, docs: docs, completer: completer, faults: faultSvc, rand: rng, logger: logger}
}

// questionReply is the model's JSON schema for one question.
type questionReply struct {
	Prompt             string   `json:"prompt"`
	Options            []string `json:"options"`
	CorrectOptionIndex *int     `json:"correct_option_index"`
	AnswerText         string   `json:"answer_text"`
	EvidenceExcerpt    string   `json:"evidence_excerpt"`
}

// Generate creates a draft quiz, generates and verifies questions one at a
// time, and promotes the quiz to ready. Individual question failures are
// skipped; the run errors only when no question could be generated.
func (g *Generator) Generate(ctx context.Context, req GenerateRequest) (*models.Quiz, []models.QuizQuestion, error) {
	req = normalizeRequest(req)

	pool, err := g.chunkPool(ctx, req)
	if err != nil {
		return nil, nil, err
	}

	quiz := &models.Quiz{
		UserID: req.UserID,
		Title:  req.Title,
		Topic:  req.Topic,
		Status: models.QuizStatusDraft,
	}
	if err := g.repo.CreateQuiz(ctx, quiz); err != nil {
		return nil, nil, faults.Wrap(err, faults.TypeDatabase, "create quiz")
	}
	if len(pool) > 0 {
		chunkIDs := make([]uuid.UUID, len(pool))
		for i, c := range pool {
			chunkIDs[i] = c.ID
		}
		if err := g.repo.LinkChunks(ctx, quiz.ID, chunkIDs); err != nil {
			return nil, nil, faults.Wrap(err, faults.TypeDatabase, "link quiz chunks")
		}
	}

	var questions []models.QuizQuestion
	for i := 0; i < req.QuestionCount; i++ {
		q, err := g.generateOne(ctx, quiz.ID, req, pool, i)
		if err != nil {
			g.logger.Warn("question generation skipped",
				zap.Error(err),
				zap.String("quiz_id", quiz.ID.String()),
				zap.Int("position", i),
			)
			continue
		}
		if err := g.repo.InsertQuestion(ctx, q); err != nil {
			return nil, nil, faults.Wrap(err, faults.TypeDatabase, "save question")
		}
		questions = append(questions, *q)
	}
	if len(questions) == 0 {
		return nil, nil, faults.New(faults.TypeProcessing, "quiz generation produced no questions")
	}

	if err := g.repo.MarkReady(ctx, quiz.ID, len(questions)); err != nil {
		return nil, nil, faults.Wrap(err, faults.TypeDatabase, "mark quiz ready")
	}
	quiz.Status = models.QuizStatusReady
	quiz.QuestionCount = len(questions)
	return quiz, questions, nil
}

func normalizeRequest(req GenerateRequest) GenerateRequest {
	if req.QuestionCount <= 0 {
		req.QuestionCount = defaultQuestionCount
	}
	if req.QuestionCount > maxQuestionCount {
		req.QuestionCount = maxQuestionCount
	}
	if len(req.Types) == 0 {
		req.Types = []string{models.QuestionTypeMultipleChoice}
	}
	if req.DifficultyMin < 1 || req.DifficultyMin > 5 {
		req.DifficultyMin = 1
	}
	if req.DifficultyMax < req.DifficultyMin || req.DifficultyMax > 5 {
		req.DifficultyMax = 5
	}
	if strings.TrimSpace(req.Title) == "" {
		if req.Topic != "" {
			req.Title = "Quiz: " + req.Topic
		} else {
			req.Title = "Quiz"
		}
	}
	return req
}

// chunkPool loads source chunks for the run. Document mode reads the selected
// documents; topic mode scores the user's chunks by term overlap and falls
// back to document-free generation when nothing is relevant.
func (g *Generator) chunkPool(ctx context.Context, req GenerateRequest) ([]models.DocumentChunk, error) {
	if len(req.DocumentIDs) > 0 {
		pool, err := g.docs.ListChunksForDocuments(ctx, req.DocumentIDs, maxChunkPool)
		if err != nil {
			return nil, faults.Wrap(err, faults.TypeDatabase, "load source chunks")
		}
		if len(pool) == 0 {
			return nil, faults.New(faults.TypeValidation, "selected documents have no extracted content")
		}
		return pool, nil
	}

	if strings.TrimSpace(req.Topic) == "" {
		return nil, faults.New(faults.TypeValidation, "either document_ids or topic is required")
	}
	candidates, err := g.docs.SearchChunksByUser(ctx, req.UserID, topicSearchLimit)
	if err != nil {
		return nil, faults.Wrap(err, faults.TypeDatabase, "search user chunks")
	}
	return rankByTopic(candidates, req.Topic, maxChunkPool), nil
}

// rankByTopic scores chunks by case-insensitive substring counts of the topic
// terms and keeps the top scorers. Chunks with no term hits are dropped.
func rankByTopic(chunks []models.DocumentChunk, topic string, limit int) []models.DocumentChunk {
	terms := strings.Fields(strings.ToLower(topic))
	if len(terms) == 0 {
		return nil
	}
	type scored struct {
		chunk models.DocumentChunk
		score int
	}
	var hits []scored
	for _, c := range chunks {
		content := strings.ToLower(c.Content)
		score := 0
		for _, term := range terms {
			score += strings.Count(content, term)
		}
		if score > 0 {
			hits = append(hits, scored{chunk: c, score: score})
		}
	}
	for i := 1; i < len(hits); i++ {
		for j := i; j > 0 && hits[j].score > hits[j-1].score; j-- {
			hits[j], hits[j-1] = hits[j-1], hits[j]
		}
	}
	if len(hits) > limit {
		hits = hits[:limit]
	}
	out := make([]models.DocumentChunk, len(hits))
	for i, h := range hits {
		out[i] = h.chunk
	}
	return out
}

func (g *Generator) generateOne(ctx context.Context, quizID uuid.UUID, req GenerateRequest, pool []models.DocumentChunk, position int) (*models.QuizQuestion, error) {
	qType := req.Types[g.rand.Intn(len(req.Types))]
	difficulty := req.DifficultyMin + g.rand.Intn(req.DifficultyMax-req.DifficultyMin+1)

	var source *models.DocumentChunk
	var userPrompt strings.Builder
	fmt.Fprintf(&userPrompt, "Question type: %s\nDifficulty: %d of 5\n", qType, difficulty)
	if len(pool) > 0 {
		source = &pool[position%len(pool)]
		fmt.Fprintf(&userPrompt, "\nSource material:\n%s\n", source.Content)
	} else {
		fmt.Fprintf(&userPrompt, "Topic: %s\n", req.Topic)
	}

	var reply questionReply
	if err := ai.CompleteJSON(ctx, g.completer, questionSystemPrompt, userPrompt.String(), &reply); err != nil {
		return nil, err
	}

	q := &models.QuizQuestion{
		QuizID:             quizID,
		Type:               qType,
		Prompt:             strings.TrimSpace(reply.Prompt),
		Options:            reply.Options,
		CorrectOptionIndex: reply.CorrectOptionIndex,
		AnswerText:         strings.TrimSpace(reply.AnswerText),
		Difficulty:         difficulty,
		Position:           position,
	}
	if qType != models.QuestionTypeMultipleChoice {
		q.Options = nil
		q.CorrectOptionIndex = nil
	}

	excerpt := strings.TrimSpace(reply.EvidenceExcerpt)
	if excerpt == "" && source != nil {
		excerpt = excerptOf(source.Content)
	}
	if excerpt != "" {
		ev := models.Evidence{Excerpt: excerpt, Quality: EvidenceQuality(excerpt)}
		if source != nil {
			chunkID := source.ID
			ev.ChunkID = &chunkID
		}
		q.Evidence = []models.Evidence{ev}
	}

	q.Verified, q.VerificationReason = Verify(q)
	return q, nil
}

// excerptOf trims chunk content to an evidence-sized excerpt.
func excerptOf(content string) string {
	content = strings.TrimSpace(content)
	if r := []rune(content); len(r) > 300 {
		return string(r[:300])
	}
	return content
}
