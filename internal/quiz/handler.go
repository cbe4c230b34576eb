package quiz

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/neurolearn/backend/internal/faults"
	"github.com/neurolearn/backend/internal/middleware"
	"github.com/neurolearn/backend/internal/models"
	"github.com/neurolearn/backend/pkg/response"
)

// Handler handles quiz HTTP endpoints.
type Handler struct {
	repo      *Repository
	generator *Generator
	faults    *faults.Service
	logger    *zap.Logger
}

// NewHandler creates a quiz handler.
func NewHandler(repo *Repository, generator *Generator, faultSvc *faults.Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, generator: generator, faults: faultSvc, logger: logger}
}

type generateRequest struct {
	Title         string      `json:"title"`
	Topic         string      `json:"topic"`
	DocumentIDs   []uuid.UUID `json:"document_ids"`
	QuestionCount int         `json:"question_count"`
	Types         []string    `json:"types"`
	DifficultyMin int         `json:"difficulty_min"`
	DifficultyMax int         `json:"difficulty_max"`
}

// Generate handles POST /quizzes/generate.
func (h *Handler) Generate(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}
	for _, t := range req.Types {
		switch t {
		case models.QuestionTypeMultipleChoice, models.QuestionTypeTrueFalse, models.QuestionTypeShortAnswer:
		default:
			response.BadRequest(c, "unknown question type: "+t)
			return
		}
	}

	quiz, questions, err := h.generator.Generate(c.Request.Context(), GenerateRequest{
		UserID:        userID,
		Title:         req.Title,
		Topic:         req.Topic,
		DocumentIDs:   req.DocumentIDs,
		QuestionCount: req.QuestionCount,
		Types:         req.Types,
		DifficultyMin: req.DifficultyMin,
		DifficultyMax: req.DifficultyMax,
	})
	if err != nil {
		var f *faults.Fault
		if errors.As(err, &f) && f.Type == faults.TypeValidation {
			response.BadRequest(c, f.Message)
			return
		}
		pe := h.faults.RecordError(err, faults.Context{
			UserID:    userID.String(),
			Operation: "quiz_generation",
		})
		h.logger.Error("quiz generation failed", zap.Error(err), zap.String("user_id", userID.String()))
		response.InternalWithID(c, "quiz generation failed", pe.ID)
		return
	}
	response.Created(c, gin.H{"quiz": quiz, "questions": questions})
}

// List handles GET /quizzes.
func (h *Handler) List(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	list, err := h.repo.ListByUser(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("list quizzes failed", zap.Error(err), zap.String("user_id", userID.String()))
		response.Internal(c, "failed to list quizzes")
		return
	}
	response.OK(c, list)
}

func (h *Handler) getOwned(c *gin.Context) *models.Quiz {
	quizID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid quiz id")
		return nil
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	q, err := h.repo.GetQuiz(c.Request.Context(), quizID)
	if err != nil {
		h.logger.Error("get quiz failed", zap.Error(err), zap.String("quiz_id", quizID.String()))
		response.Internal(c, "failed to load quiz")
		return nil
	}
	if q == nil {
		response.NotFound(c, "quiz not found")
		return nil
	}
	if q.UserID != userID {
		response.Forbidden(c, "not authorized for this quiz")
		return nil
	}
	return q
}

// Get handles GET /quizzes/:id. Returns the quiz with its questions.
func (h *Handler) Get(c *gin.Context) {
	q := h.getOwned(c)
	if q == nil {
		return
	}
	questions, err := h.repo.ListQuestions(c.Request.Context(), q.ID)
	if err != nil {
		h.logger.Error("list questions failed", zap.Error(err), zap.String("quiz_id", q.ID.String()))
		response.Internal(c, "failed to load questions")
		return
	}
	response.OK(c, gin.H{"quiz": q, "questions": questions})
}

type submitRequest struct {
	Answers []SubmittedAnswer `json:"answers" binding:"required,min=1"`
}

// Submit handles POST /quizzes/:id/submit. Scores the answers, stores the
// attempt and folds it into the user's rolling stats.
func (h *Handler) Submit(c *gin.Context) {
	q := h.getOwned(c)
	if q == nil {
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "answers are required")
		return
	}
	ctx := c.Request.Context()

	questions, err := h.repo.ListQuestions(ctx, q.ID)
	if err != nil || len(questions) == 0 {
		h.logger.Error("load questions failed", zap.Error(err), zap.String("quiz_id", q.ID.String()))
		response.Internal(c, "failed to load questions")
		return
	}
	byID := make(map[string]*models.QuizQuestion, len(questions))
	for i := range questions {
		byID[questions[i].ID.String()] = &questions[i]
	}

	correct := 0
	answers := make([]models.AttemptAnswer, 0, len(req.Answers))
	for _, sub := range req.Answers {
		question, ok := byID[sub.QuestionID]
		if !ok {
			response.BadRequest(c, "unknown question id: "+sub.QuestionID)
			return
		}
		isCorrect := ScoreAnswer(question, sub)
		if isCorrect {
			correct++
		}
		answers = append(answers, models.AttemptAnswer{
			QuestionID:          question.ID,
			AnswerText:          sub.AnswerText,
			SelectedOptionIndex: sub.SelectedOptionIndex,
			IsCorrect:           isCorrect,
		})
	}

	attempt := &models.QuizAttempt{
		QuizID:       q.ID,
		UserID:       userID,
		CorrectCount: correct,
		TotalCount:   len(questions),
		Score:        float64(correct) / float64(len(questions)) * 100,
	}
	if err := h.repo.CreateAttempt(ctx, attempt, answers); err != nil {
		h.logger.Error("store attempt failed", zap.Error(err), zap.String("quiz_id", q.ID.String()))
		response.Internal(c, "failed to store attempt")
		return
	}

	stats, err := h.repo.GetStats(ctx, userID)
	if err != nil {
		h.logger.Error("load stats failed", zap.Error(err), zap.String("user_id", userID.String()))
		response.Internal(c, "failed to update statistics")
		return
	}
	if stats == nil {
		stats = &models.UserStats{UserID: userID}
	}
	ApplyAttempt(stats, attempt)
	if err := h.repo.UpsertStats(ctx, stats); err != nil {
		h.logger.Error("save stats failed", zap.Error(err), zap.String("user_id", userID.String()))
		response.Internal(c, "failed to update statistics")
		return
	}

	response.OK(c, gin.H{"attempt": attempt, "answers": answers, "stats": stats})
}

// Stats handles GET /quizzes/stats.
func (h *Handler) Stats(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	stats, err := h.repo.GetStats(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("load stats failed", zap.Error(err), zap.String("user_id", userID.String()))
		response.Internal(c, "failed to load statistics")
		return
	}
	if stats == nil {
		stats = &models.UserStats{UserID: userID, Trend: models.TrendStable}
	}
	response.OK(c, stats)
}

type flagRequest struct {
	Category string `json:"category" binding:"required"`
	Comment  string `json:"comment"`
}

// FlagQuestion handles POST /questions/:id/flag.
func (h *Handler) FlagQuestion(c *gin.Context) {
	questionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid question id")
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	var req flagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "category is required")
		return
	}
	switch req.Category {
	case models.FlagCategoryIncorrect, models.FlagCategoryAmbiguous, models.FlagCategoryOffTopic,
		models.FlagCategoryDuplicate, models.FlagCategoryOther:
	default:
		response.BadRequest(c, "unknown flag category: "+req.Category)
		return
	}

	question, err := h.repo.GetQuestion(c.Request.Context(), questionID)
	if err != nil {
		h.logger.Error("get question failed", zap.Error(err), zap.String("question_id", questionID.String()))
		response.Internal(c, "failed to load question")
		return
	}
	if question == nil {
		response.NotFound(c, "question not found")
		return
	}

	flag := &models.QuestionFlag{
		QuestionID: questionID,
		UserID:     userID,
		Category:   req.Category,
		Comment:    req.Comment,
		Priority:   models.FlagPriorityMedium,
		Status:     models.FlagStatusPending,
	}
	if err := h.repo.CreateFlag(c.Request.Context(), flag); err != nil {
		h.logger.Error("store flag failed", zap.Error(err), zap.String("question_id", questionID.String()))
		response.Internal(c, "failed to store flag")
		return
	}
	response.Created(c, flag)
}
