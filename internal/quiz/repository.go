package quiz

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/neurolearn/backend/internal/models"
)

// Repository handles quiz, attempt and stats persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a quiz repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CreateQuiz inserts a draft quiz row.
func (r *Repository) CreateQuiz(ctx context.Context, q *models.Quiz) error {
	const sql = `INSERT INTO quiz_quizzes (id, user_id, title, topic, status, question_count)
		VALUES (gen_random_uuid(), $1, $2, NULLIF($3,''), $4, $5)
		RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, sql, q.UserID, q.Title, q.Topic, q.Status, q.QuestionCount).
		Scan(&q.ID, &q.CreatedAt, &q.UpdatedAt)
}

// MarkReady promotes a draft quiz with its final question count.
func (r *Repository) MarkReady(ctx context.Context, quizID uuid.UUID, questionCount int) error {
	const sql = `UPDATE quiz_quizzes SET status = $1, question_count = $2, updated_at = NOW() WHERE id = $3`
	_, err := r.pool.Exec(ctx, sql, models.QuizStatusReady, questionCount, quizID)
	return err
}

// GetQuiz returns a quiz by ID, or nil.
func (r *Repository) GetQuiz(ctx context.Context, id uuid.UUID) (*models.Quiz, error) {
	const sql = `SELECT id, user_id, title, COALESCE(topic,''), status, question_count, created_at, updated_at
		FROM quiz_quizzes WHERE id = $1`
	var q models.Quiz
	err := r.pool.QueryRow(ctx, sql, id).Scan(&q.ID, &q.UserID, &q.Title, &q.Topic, &q.Status, &q.QuestionCount, &q.CreatedAt, &q.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &q, nil
}

// ListByUser returns a user's quizzes, newest first.
func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Quiz, error) {
	const sql = `SELECT id, user_id, title, COALESCE(topic,''), status, question_count, created_at, updated_at
		FROM quiz_quizzes WHERE user_id = $1 ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, sql, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Quiz
	for rows.Next() {
		var q models.Quiz
		if err := rows.Scan(&q.ID, &q.UserID, &q.Title, &q.Topic, &q.Status, &q.QuestionCount, &q.CreatedAt, &q.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, q)
	}
	return list, rows.Err()
}

// LinkChunks records the source chunk pool used for a quiz.
func (r *Repository) LinkChunks(ctx context.Context, quizID uuid.UUID, chunkIDs []uuid.UUID) error {
	const sql = `INSERT INTO quiz_chunks (quiz_id, chunk_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`
	for _, id := range chunkIDs {
		if _, err := r.pool.Exec(ctx, sql, quizID, id); err != nil {
			return fmt.Errorf("link quiz chunk: %w", err)
		}
	}
	return nil
}

// InsertQuestion stores a question and its evidence rows.
func (r *Repository) InsertQuestion(ctx context.Context, q *models.QuizQuestion) error {
	options, err := json.Marshal(q.Options)
	if err != nil {
		return fmt.Errorf("marshal options: %w", err)
	}
	const sql = `INSERT INTO quiz_questions
		(id, quiz_id, type, prompt, options, correct_option_index, answer_text, difficulty, verified, verification_reason, position)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, NULLIF($6,''), $7, $8, NULLIF($9,''), $10)
		RETURNING id, created_at`
	if err := r.pool.QueryRow(ctx, sql, q.QuizID, q.Type, q.Prompt, options, q.CorrectOptionIndex,
		q.AnswerText, q.Difficulty, q.Verified, q.VerificationReason, q.Position).Scan(&q.ID, &q.CreatedAt); err != nil {
		return err
	}

	const evSQL = `INSERT INTO quiz_question_evidence (id, question_id, chunk_id, excerpt, quality)
		VALUES (gen_random_uuid(), $1, $2, $3, $4) RETURNING id`
	for i := range q.Evidence {
		ev := &q.Evidence[i]
		ev.QuestionID = q.ID
		if err := r.pool.QueryRow(ctx, evSQL, q.ID, ev.ChunkID, ev.Excerpt, ev.Quality).Scan(&ev.ID); err != nil {
			return fmt.Errorf("insert evidence: %w", err)
		}
	}
	return nil
}

// ListQuestions returns a quiz's questions with evidence, ordered by position.
func (r *Repository) ListQuestions(ctx context.Context, quizID uuid.UUID) ([]models.QuizQuestion, error) {
	const sql = `SELECT id, quiz_id, type, prompt, options, correct_option_index, COALESCE(answer_text,''),
		difficulty, verified, COALESCE(verification_reason,''), position, created_at
		FROM quiz_questions WHERE quiz_id = $1 ORDER BY position`
	rows, err := r.pool.Query(ctx, sql, quizID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.QuizQuestion
	for rows.Next() {
		var q models.QuizQuestion
		var options []byte
		if err := rows.Scan(&q.ID, &q.QuizID, &q.Type, &q.Prompt, &options, &q.CorrectOptionIndex,
			&q.AnswerText, &q.Difficulty, &q.Verified, &q.VerificationReason, &q.Position, &q.CreatedAt); err != nil {
			return nil, err
		}
		if len(options) > 0 {
			if err := json.Unmarshal(options, &q.Options); err != nil {
				return nil, fmt.Errorf("unmarshal options: %w", err)
			}
		}
		list = append(list, q)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range list {
		evidence, err := r.listEvidence(ctx, list[i].ID)
		if err != nil {
			return nil, err
		}
		list[i].Evidence = evidence
	}
	return list, nil
}

func (r *Repository) listEvidence(ctx context.Context, questionID uuid.UUID) ([]models.Evidence, error) {
	const sql = `SELECT id, question_id, chunk_id, excerpt, quality
		FROM quiz_question_evidence WHERE question_id = $1`
	rows, err := r.pool.Query(ctx, sql, questionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Evidence
	for rows.Next() {
		var ev models.Evidence
		if err := rows.Scan(&ev.ID, &ev.QuestionID, &ev.ChunkID, &ev.Excerpt, &ev.Quality); err != nil {
			return nil, err
		}
		list = append(list, ev)
	}
	return list, rows.Err()
}

// CreateAttempt stores an attempt and its per-question answer rows.
func (r *Repository) CreateAttempt(ctx context.Context, attempt *models.QuizAttempt, answers []models.AttemptAnswer) error {
	const sql = `INSERT INTO quiz_attempts (id, quiz_id, user_id, score, correct_count, total_count)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5)
		RETURNING id, created_at`
	if err := r.pool.QueryRow(ctx, sql, attempt.QuizID, attempt.UserID, attempt.Score,
		attempt.CorrectCount, attempt.TotalCount).Scan(&attempt.ID, &attempt.CreatedAt); err != nil {
		return err
	}

	const ansSQL = `INSERT INTO quiz_attempt_answers (id, attempt_id, question_id, answer_text, selected_option_index, is_correct)
		VALUES (gen_random_uuid(), $1, $2, NULLIF($3,''), $4, $5) RETURNING id`
	for i := range answers {
		a := &answers[i]
		a.AttemptID = attempt.ID
		if err := r.pool.QueryRow(ctx, ansSQL, attempt.ID, a.QuestionID, a.AnswerText, a.SelectedOptionIndex, a.IsCorrect).Scan(&a.ID); err != nil {
			return fmt.Errorf("insert attempt answer: %w", err)
		}
	}
	return nil
}

// GetStats returns the user's stats row, or nil.
func (r *Repository) GetStats(ctx context.Context, userID uuid.UUID) (*models.UserStats, error) {
	const sql = `SELECT user_id, attempt_count, total_questions, correct_answers, average_score, trend, updated_at
		FROM quiz_user_stats WHERE user_id = $1`
	var s models.UserStats
	err := r.pool.QueryRow(ctx, sql, userID).Scan(&s.UserID, &s.AttemptCount, &s.TotalQuestions,
		&s.CorrectAnswers, &s.AverageScore, &s.Trend, &s.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

// UpsertStats writes the rolling stats row.
func (r *Repository) UpsertStats(ctx context.Context, s *models.UserStats) error {
	const sql = `INSERT INTO quiz_user_stats (user_id, attempt_count, total_questions, correct_answers, average_score, trend, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (user_id) DO UPDATE
		SET attempt_count = EXCLUDED.attempt_count, total_questions = EXCLUDED.total_questions,
			correct_answers = EXCLUDED.correct_answers, average_score = EXCLUDED.average_score,
			trend = EXCLUDED.trend, updated_at = NOW()`
	_, err := r.pool.Exec(ctx, sql, s.UserID, s.AttemptCount, s.TotalQuestions, s.CorrectAnswers, s.AverageScore, s.Trend)
	return err
}

// GetQuestion returns one question by ID, or nil.
func (r *Repository) GetQuestion(ctx context.Context, id uuid.UUID) (*models.QuizQuestion, error) {
	const sql = `SELECT id, quiz_id, type, prompt, options, correct_option_index, COALESCE(answer_text,''),
		difficulty, verified, COALESCE(verification_reason,''), position, created_at
		FROM quiz_questions WHERE id = $1`
	var q models.QuizQuestion
	var options []byte
	err := r.pool.QueryRow(ctx, sql, id).Scan(&q.ID, &q.QuizID, &q.Type, &q.Prompt, &options, &q.CorrectOptionIndex,
		&q.AnswerText, &q.Difficulty, &q.Verified, &q.VerificationReason, &q.Position, &q.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	if len(options) > 0 {
		if err := json.Unmarshal(options, &q.Options); err != nil {
			return nil, fmt.Errorf("unmarshal options: %w", err)
		}
	}
	return &q, nil
}

// CreateFlag stores a question quality complaint.
func (r *Repository) CreateFlag(ctx context.Context, f *models.QuestionFlag) error {
	const sql = `INSERT INTO quiz_question_flags (id, question_id, user_id, category, comment, priority, status)
		VALUES (gen_random_uuid(), $1, $2, $3, NULLIF($4,''), $5, $6)
		RETURNING id, created_at`
	return r.pool.QueryRow(ctx, sql, f.QuestionID, f.UserID, f.Category, f.Comment, f.Priority, f.Status).
		Scan(&f.ID, &f.CreatedAt)
}
