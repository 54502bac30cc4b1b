package models

import (
	"time"

	"github.com/google/uuid"
)

// Material status lifecycle: pending -> processing -> completed | error.
// Terminal states never self-transition.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusError      = "error"
)

// Lesson length settings accepted at upload time.
const (
	LengthShort  = "short"
	LengthNormal = "normal"
	LengthLong   = "long"
)

// Categories is the closed vocabulary the pipeline constrains stage 3 to.
// Off-vocabulary model answers are snapped to "Other".
var Categories = []string{
	"Science",
	"Technology",
	"Mathematics",
	"History",
	"Language",
	"Business",
	"Arts",
	"Other",
}

type Material struct {
	ID               uuid.UUID         `json:"id"`
	UserID           uuid.UUID         `json:"user_id"`
	FileName         string            `json:"file_name"`
	MimeType         string            `json:"mime_type"`
	StorageURL       string            `json:"storage_url"`
	UploadedAt       time.Time         `json:"uploaded_at"`
	ExtractedText    *string           `json:"extracted_text,omitempty"`
	DetectedLanguage *string           `json:"detected_language,omitempty"`
	SuggestedTitle   *string           `json:"suggested_title,omitempty"`
	Category         *string           `json:"category,omitempty"`
	LessonLength     string            `json:"lesson_length"`
	Content          *GeneratedContent `json:"content,omitempty"`
	Status           string            `json:"status"`
	ErrorMessage     *string           `json:"error_message,omitempty"`
}

// GeneratedContent is the bundle produced by one full pipeline run. It is
// immutable once attached, except for the quiz slice which a regeneration
// job may replace wholesale.
type GeneratedContent struct {
	MicroLessons     []MicroLesson  `json:"micro_lessons"`
	QuizQuestions    []QuizQuestion `json:"quiz_questions"`
	Summary          string         `json:"summary"`
	Flashcards       []Flashcard    `json:"flashcards"`
	DetectedLanguage string         `json:"detected_language"`
}

type MicroLesson struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

type QuizQuestion struct {
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer int      `json:"correct_answer"`
	Explanation   string   `json:"explanation,omitempty"`
}

type Flashcard struct {
	Front string `json:"front"`
	Back  string `json:"back"`
}

// QuizAttempt records one graded run through a material's quiz. Attempts are
// append-only and never mutated after creation.
type QuizAttempt struct {
	ID         uuid.UUID `json:"id"`
	MaterialID uuid.UUID `json:"material_id"`
	UserID     uuid.UUID `json:"user_id"`
	Total      int       `json:"total"`
	Correct    int       `json:"correct"`
	Percentage float64   `json:"percentage"`
	CreatedAt  time.Time `json:"created_at"`
}

type RenameMaterialRequest struct {
	FileName string `json:"file_name"`
}

type SubmitAttemptRequest struct {
	Answers []AttemptAnswer `json:"answers"`
}

type AttemptAnswer struct {
	QuestionIndex int `json:"question_index"`
	AnswerIndex   int `json:"answer_index"`
}

// ValidCategory reports whether c belongs to the closed vocabulary.
func ValidCategory(c string) bool {
	for _, known := range Categories {
		if known == c {
			return true
		}
	}
	return false
}
