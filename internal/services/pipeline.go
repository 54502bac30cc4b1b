package services

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"microlearn-backend/internal/llm"
	"microlearn-backend/internal/models"
)

// promptTextLimit bounds how much document text any prompt carries. Content
// beyond the prefix never influences generation; this is a deliberate lossy
// policy that caps cost and latency regardless of source size.
const promptTextLimit = 15000

// Progress checkpoints reported after each stage. Coarse UI feedback only,
// not proportional to actual work.
var stageCheckpoints = [7]int{10, 20, 30, 55, 70, 85, 100}

// ProgressFunc receives the checkpoint value (0-100, monotone) and the name
// of the stage that just finished.
type ProgressFunc func(progress int, stage string)

// PipelineResult carries everything one full run produces. Language, title
// and category live on the Material; Content holds the study artifacts.
type PipelineResult struct {
	Language string
	Title    string
	Category string
	Content  *models.GeneratedContent
}

// Pipeline turns extracted document text into generated study content
// through seven sequential chat calls. Stages are strictly ordered: every
// stage after the first embeds the detected language, so nothing can run
// concurrently within one document.
type Pipeline struct {
	chat llm.Client
}

func NewPipeline(chat llm.Client) *Pipeline {
	return &Pipeline{chat: chat}
}

// Generate runs all seven stages. Any chat failure aborts the run
// immediately; no partial content is ever returned.
func (p *Pipeline) Generate(ctx context.Context, text, lessonLength string, onProgress ProgressFunc) (*PipelineResult, error) {
	report := func(stageIdx int, stage string) {
		if onProgress != nil {
			onProgress(stageCheckpoints[stageIdx], stage)
		}
	}
	doc := truncateForPrompt(text)

	// Stage 1: detect language. The trimmed answer is used verbatim in every
	// later prompt so all artifacts come out in the source language.
	language, err := p.detectLanguage(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("detect language: %w", err)
	}
	report(0, "Detecting language")

	title, err := p.suggestTitle(ctx, doc, language)
	if err != nil {
		return nil, fmt.Errorf("suggest title: %w", err)
	}
	report(1, "Suggesting title")

	category, err := p.categorize(ctx, doc, language)
	if err != nil {
		return nil, fmt.Errorf("categorize: %w", err)
	}
	report(2, "Categorizing")

	lessons, err := p.generateLessons(ctx, doc, language, lessonLength)
	if err != nil {
		return nil, fmt.Errorf("generate lessons: %w", err)
	}
	report(3, "Generating lessons")

	questions, err := p.generateQuiz(ctx, doc, language, nil)
	if err != nil {
		return nil, fmt.Errorf("generate quiz: %w", err)
	}
	report(4, "Generating quiz")

	summary, err := p.generateSummary(ctx, doc, language)
	if err != nil {
		return nil, fmt.Errorf("generate summary: %w", err)
	}
	report(5, "Generating summary")

	cards, err := p.generateFlashcards(ctx, doc, language)
	if err != nil {
		return nil, fmt.Errorf("generate flashcards: %w", err)
	}
	report(6, "Generating flashcards")

	return &PipelineResult{
		Language: language,
		Title:    title,
		Category: category,
		Content: &models.GeneratedContent{
			MicroLessons:     lessons,
			QuizQuestions:    questions,
			Summary:          summary,
			Flashcards:       cards,
			DetectedLanguage: language,
		},
	}, nil
}

// RegenerateQuiz re-runs only the quiz stage, instructing the model to avoid
// the previously seen questions. All other content slices stay untouched.
func (p *Pipeline) RegenerateQuiz(ctx context.Context, text, language string, previous []models.QuizQuestion) ([]models.QuizQuestion, error) {
	questions, err := p.generateQuiz(ctx, truncateForPrompt(text), language, previous)
	if err != nil {
		return nil, fmt.Errorf("regenerate quiz: %w", err)
	}
	return questions, nil
}

func (p *Pipeline) detectLanguage(ctx context.Context, doc string) (string, error) {
	comp, err := p.chat.Complete(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: "You identify the language of documents. Answer with the language name only, e.g. \"English\" or \"Spanish\". No punctuation, no explanations."},
		{Role: llm.RoleUser, Content: "What language is this document written in?\n\n" + doc},
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(comp.Text), nil
}

func (p *Pipeline) suggestTitle(ctx context.Context, doc, language string) (string, error) {
	comp, err := p.chat.Complete(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: "You are an expert educational content editor. Answer with a title only, no quotes."},
		{Role: llm.RoleUser, Content: fmt.Sprintf(
			"Suggest a title of 3-8 words for this document. Write the title in %s.\n\n%s", language, doc)},
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(comp.Text), nil
}

func (p *Pipeline) categorize(ctx context.Context, doc, language string) (string, error) {
	comp, err := p.chat.Complete(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: "You classify educational documents. Answer with exactly one category name from the given list, nothing else."},
		{Role: llm.RoleUser, Content: fmt.Sprintf(
			"Pick the single best thematic category for this document from: %s. The document is in %s.\n\n%s",
			strings.Join(models.Categories, ", "), language, doc)},
	})
	if err != nil {
		return "", err
	}

	category := strings.TrimSpace(comp.Text)
	if !models.ValidCategory(category) {
		category = "Other"
	}
	return category, nil
}

func (p *Pipeline) generateLessons(ctx context.Context, doc, language, length string) ([]models.MicroLesson, error) {
	count, detail := lessonPlan(length)

	comp, err := p.chat.Complete(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: "You are an expert educational content designer. Return ONLY a valid JSON object. No preamble, no markdown, no backticks."},
		{Role: llm.RoleUser, Content: fmt.Sprintf(
			`Create %s micro-lessons (%s) that teach the key ideas of the document below. Write everything in %s.

Return JSON in exactly this shape:
{"lessons": [{"title": "string", "content": "string"}]}

---DOCUMENT---
%s
---END---`, count, detail, language, doc)},
	})
	if err != nil {
		return nil, err
	}
	return llm.ExtractLessons(comp.Text), nil
}

func (p *Pipeline) generateQuiz(ctx context.Context, doc, language string, previous []models.QuizQuestion) ([]models.QuizQuestion, error) {
	var b strings.Builder
	fmt.Fprintf(&b, `Create 5-7 multiple-choice questions testing understanding of the document below. Write everything in %s.

Rules:
- Exactly 4 options per question
- "correct_answer" is the zero-based index of the right option
- Include a short explanation per question

Return JSON in exactly this shape:
{"questions": [{"question": "string", "options": ["a","b","c","d"], "correct_answer": 0, "explanation": "string"}]}
`, language)

	if len(previous) > 0 {
		b.WriteString("\nDo NOT repeat or rephrase any of these previously asked questions:\n")
		for _, q := range previous {
			b.WriteString("- " + q.Question + "\n")
		}
	}

	b.WriteString("\n---DOCUMENT---\n")
	b.WriteString(doc)
	b.WriteString("\n---END---")

	comp, err := p.chat.Complete(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: "You are an expert educational assessor. Return ONLY a valid JSON object. No preamble, no markdown, no backticks."},
		{Role: llm.RoleUser, Content: b.String()},
	})
	if err != nil {
		return nil, err
	}
	return llm.ExtractQuizQuestions(comp.Text), nil
}

func (p *Pipeline) generateSummary(ctx context.Context, doc, language string) (string, error) {
	comp, err := p.chat.Complete(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: "You are an expert educational content analyst. Answer with plain text, no markdown headers."},
		{Role: llm.RoleUser, Content: fmt.Sprintf(
			"Write a short summary (2-3 paragraphs) of the document below. Write it in %s.\n\n---DOCUMENT---\n%s\n---END---", language, doc)},
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(comp.Text), nil
}

func (p *Pipeline) generateFlashcards(ctx context.Context, doc, language string) ([]models.Flashcard, error) {
	comp, err := p.chat.Complete(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: "You are an expert flashcard creator. Return ONLY a valid JSON object. No preamble, no markdown, no backticks."},
		{Role: llm.RoleUser, Content: fmt.Sprintf(
			`Create 10-12 flashcards covering the key facts and concepts of the document below. Write everything in %s.

Rules:
- Front is a term or question under 15 words
- Back is a self-contained answer under 60 words
- No two cards may test the same concept

Return JSON in exactly this shape:
{"cards": [{"front": "string", "back": "string"}]}

---DOCUMENT---
%s
---END---`, language, doc)},
	})
	if err != nil {
		return nil, err
	}
	return llm.ExtractFlashcards(comp.Text), nil
}

// lessonPlan maps the caller-supplied length setting to the requested count
// range and level of detail embedded in the lessons prompt.
func lessonPlan(length string) (count, detail string) {
	switch length {
	case models.LengthShort:
		return "2-3", "brief"
	case models.LengthLong:
		return "6-8", "comprehensive"
	default:
		return "4-5", "moderately detailed"
	}
}

func truncateForPrompt(text string) string {
	if len(text) <= promptTextLimit {
		return text
	}

	// Back up to a rune boundary so the cut never splits a multi-byte
	// character.
	end := promptTextLimit
	for end > 0 && !utf8.RuneStart(text[end]) {
		end--
	}
	return text[:end]
}
