package llm

import (
	"encoding/json"
	"log"
	"strings"

	"microlearn-backend/internal/models"
)

// Fallback title used when lesson output cannot be parsed and the raw answer
// is shown as a single lesson instead.
const fallbackLessonTitle = "Lesson"

// ExtractLessons parses {"lessons":[{title,content}]} out of a completion.
// On any parse failure it degrades to a single lesson wrapping the raw text:
// lesson prose is still useful even when the model ignored the JSON contract.
// A well-formed answer with zero lessons is honored as empty, not wrapped.
func ExtractLessons(raw string) []models.MicroLesson {
	var shape struct {
		Lessons []models.MicroLesson `json:"lessons"`
	}
	if err := decodeObject(raw, &shape); err != nil {
		logFallback("lessons", raw, err)
		return []models.MicroLesson{{
			Title:   fallbackLessonTitle,
			Content: strings.TrimSpace(raw),
		}}
	}

	if shape.Lessons == nil {
		shape.Lessons = []models.MicroLesson{}
	}
	if len(shape.Lessons) == 0 {
		log.Printf("lesson list decoded empty (text: %q)", raw)
	}
	return shape.Lessons
}

// ExtractQuizQuestions parses {"questions":[...]}. Quiz data is structurally
// required (options, correct index) and cannot be synthesized from prose, so
// parse failure yields an empty list, never an error. Questions with no
// options are dropped; out-of-range correct indexes are clamped to 0.
func ExtractQuizQuestions(raw string) []models.QuizQuestion {
	var shape struct {
		Questions []models.QuizQuestion `json:"questions"`
	}
	if err := decodeObject(raw, &shape); err != nil {
		logFallback("questions", raw, err)
		return []models.QuizQuestion{}
	}

	valid := make([]models.QuizQuestion, 0, len(shape.Questions))
	for _, q := range shape.Questions {
		if q.Question == "" || len(q.Options) == 0 {
			continue
		}
		if q.CorrectAnswer < 0 || q.CorrectAnswer >= len(q.Options) {
			q.CorrectAnswer = 0
		}
		valid = append(valid, q)
	}
	return valid
}

// ExtractFlashcards parses {"cards":[{front,back}]} with the same
// strict-list policy as quiz questions.
func ExtractFlashcards(raw string) []models.Flashcard {
	var shape struct {
		Cards []models.Flashcard `json:"cards"`
	}
	if err := decodeObject(raw, &shape); err != nil {
		logFallback("cards", raw, err)
		return []models.Flashcard{}
	}

	valid := make([]models.Flashcard, 0, len(shape.Cards))
	for _, c := range shape.Cards {
		if c.Front == "" || c.Back == "" {
			continue
		}
		valid = append(valid, c)
	}
	return valid
}

// decodeObject strictly decodes completion text as a JSON object after
// stripping markdown fences; if that fails it retries on the outermost
// brace-delimited slice, which rescues answers with conversational preambles.
func decodeObject(raw string, out interface{}) error {
	text := StripFences(raw)

	firstErr := json.Unmarshal([]byte(text), out)
	if firstErr == nil {
		return nil
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		if err := json.Unmarshal([]byte(text[start:end+1]), out); err == nil {
			return nil
		}
	}

	return firstErr
}

// StripFences removes a surrounding ```json / ``` markdown fence.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// Parse fallbacks are deliberate degradation, not hard errors, but they can
// mask valid-but-differently-shaped output, so each one is logged.
func logFallback(field, raw string, err error) {
	snippet := raw
	if len(snippet) > 200 {
		snippet = snippet[:200] + "..."
	}
	log.Printf("parse fallback for %q list: %v (text: %q)", field, err, snippet)
}
