package models

import (
	"time"

	"github.com/google/uuid"
)

// Quiz statuses.
const (
	QuizStatusDraft = "draft"
	QuizStatusReady = "ready"
)

// Question types.
const (
	QuestionTypeMultipleChoice = "multiple_choice"
	QuestionTypeTrueFalse      = "true_false"
	QuestionTypeShortAnswer    = "short_answer"
)

// Evidence quality bands derived from excerpt length.
const (
	EvidenceQualityLow    = "low"
	EvidenceQualityMedium = "medium"
	EvidenceQualityHigh   = "high"
)

// Quiz owns an ordered list of questions.
type Quiz struct {
	ID            uuid.UUID `json:"id"`
	UserID        uuid.UUID `json:"user_id"`
	Title         string    `json:"title"`
	Topic         string    `json:"topic,omitempty"`
	Status        string    `json:"status"`
	QuestionCount int       `json:"question_count"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// QuizQuestion is one generated question. Questions failing verification are
// persisted with Verified=false and a reason, never discarded.
type QuizQuestion struct {
	ID                 uuid.UUID  `json:"id"`
	QuizID             uuid.UUID  `json:"quiz_id"`
	Type               string     `json:"type"`
	Prompt             string     `json:"prompt"`
	Options            []string   `json:"options,omitempty"`
	CorrectOptionIndex *int       `json:"correct_option_index,omitempty"`
	AnswerText         string     `json:"answer_text,omitempty"`
	Difficulty         int        `json:"difficulty"`
	Verified           bool       `json:"verified"`
	VerificationReason string     `json:"verification_reason,omitempty"`
	Position           int        `json:"position"`
	Evidence           []Evidence `json:"evidence,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
}

// Evidence references the source chunk a question was generated from.
type Evidence struct {
	ID         uuid.UUID  `json:"id"`
	QuestionID uuid.UUID  `json:"question_id"`
	ChunkID    *uuid.UUID `json:"chunk_id,omitempty"`
	Excerpt    string     `json:"excerpt"`
	Quality    string     `json:"quality"`
}

// QuizAttempt is one scored submission against a quiz.
type QuizAttempt struct {
	ID           uuid.UUID `json:"id"`
	QuizID       uuid.UUID `json:"quiz_id"`
	UserID       uuid.UUID `json:"user_id"`
	Score        float64   `json:"score"`
	CorrectCount int       `json:"correct_count"`
	TotalCount   int       `json:"total_count"`
	CreatedAt    time.Time `json:"created_at"`
}

// AttemptAnswer is one per-question answer within an attempt.
type AttemptAnswer struct {
	ID                  uuid.UUID  `json:"id"`
	AttemptID           uuid.UUID  `json:"attempt_id"`
	QuestionID          uuid.UUID  `json:"question_id"`
	AnswerText          string     `json:"answer_text,omitempty"`
	SelectedOptionIndex *int       `json:"selected_option_index,omitempty"`
	IsCorrect           bool       `json:"is_correct"`
}

// Stats trend values.
const (
	TrendImproving = "improving"
	TrendStable    = "stable"
	TrendDeclining = "declining"
)

// UserStats is the rolling per-user quiz aggregate, mutated on every attempt.
type UserStats struct {
	UserID         uuid.UUID `json:"user_id"`
	AttemptCount   int       `json:"attempt_count"`
	TotalQuestions int       `json:"total_questions"`
	CorrectAnswers int       `json:"correct_answers"`
	AverageScore   float64   `json:"average_score"`
	Trend          string    `json:"trend"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Flag categories for question quality complaints.
const (
	FlagCategoryIncorrect  = "incorrect_answer"
	FlagCategoryAmbiguous  = "ambiguous"
	FlagCategoryOffTopic   = "off_topic"
	FlagCategoryDuplicate  = "duplicate"
	FlagCategoryOther      = "other"
)

// Flag statuses and priorities.
const (
	FlagStatusPending  = "pending"
	FlagStatusResolved = "resolved"
	FlagPriorityLow    = "low"
	FlagPriorityMedium = "medium"
	FlagPriorityHigh   = "high"
)

// QuestionFlag is a user-submitted quality complaint against a question.
type QuestionFlag struct {
	ID         uuid.UUID `json:"id"`
	QuestionID uuid.UUID `json:"question_id"`
	UserID     uuid.UUID `json:"user_id"`
	Category   string    `json:"category"`
	Comment    string    `json:"comment,omitempty"`
	Priority   string    `json:"priority"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
}
