package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Job types processed by the worker pool.
const (
	JobMaterialGeneration = "material-generation"
	JobQuizRegeneration   = "quiz-regeneration"
)

type Job struct {
	ID           uuid.UUID       `json:"id"`
	UserID       uuid.UUID       `json:"user_id"`
	Type         string          `json:"type"`
	ReferenceID  uuid.UUID       `json:"reference_id"` // material id
	ConfigJSON   json.RawMessage `json:"config"`
	Status       string          `json:"status"` // "pending" | "processing" | "completed" | "failed"
	RetryCount   int             `json:"retry_count"`
	MaxRetries   int             `json:"max_retries"`
	ErrorMessage *string         `json:"error_message"`
	CreatedAt    time.Time       `json:"created_at"`
	CompletedAt  *time.Time      `json:"completed_at"`
}

// WebSocket message envelope pushed over the per-user updates channel.
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

type ProgressUpdate struct {
	JobID      uuid.UUID `json:"job_id"`
	MaterialID uuid.UUID `json:"material_id"`
	Progress   int       `json:"progress"` // 0-100, monotone checkpoints
	Stage      string    `json:"stage"`
}

type CompletedEvent struct {
	JobID      uuid.UUID `json:"job_id"`
	MaterialID uuid.UUID `json:"material_id"`
	ResultType string    `json:"result_type"`
}

type ErrorEvent struct {
	JobID        uuid.UUID `json:"job_id"`
	MaterialID   uuid.UUID `json:"material_id"`
	ErrorCode    string    `json:"error_code"`
	ErrorMessage string    `json:"error_message"`
}

// API error envelope.
type APIError struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id"`
}

type ErrorResponse struct {
	Error APIError `json:"error"`
}
