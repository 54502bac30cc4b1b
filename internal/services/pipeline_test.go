package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"microlearn-backend/internal/llm"
	"microlearn-backend/internal/models"
)

// scriptedClient returns canned completions in call order and records every
// prompt it saw.
type scriptedClient struct {
	responses []string
	failAt    int // 1-based call index to fail on, 0 = never
	calls     [][]llm.Message
}

func (c *scriptedClient) Complete(ctx context.Context, messages []llm.Message) (*llm.Completion, error) {
	c.calls = append(c.calls, messages)
	n := len(c.calls)

	if c.failAt > 0 && n == c.failAt {
		return nil, errors.New("backend unavailable")
	}

	text := "ok"
	if n <= len(c.responses) {
		text = c.responses[n-1]
	}
	return &llm.Completion{Text: text, FinishReason: "stop"}, nil
}

func fullRunResponses(language string) []string {
	return []string{
		language,
		"Suggested Title",
		"Science",
		`{"lessons": [{"title": "L1", "content": "C1"}]}`,
		`{"questions": [{"question": "Q1?", "options": ["a","b","c","d"], "correct_answer": 1}]}`,
		"A short summary.",
		`{"cards": [{"front": "F", "back": "B"}]}`,
	}
}

func TestGenerate_ThreadsLanguageIntoLaterPrompts(t *testing.T) {
	client := &scriptedClient{responses: fullRunResponses("  Spanish \n")}
	p := NewPipeline(client)

	result, err := p.Generate(context.Background(), "document text", models.LengthNormal, nil)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if result.Language != "Spanish" {
		t.Errorf("Expected trimmed language 'Spanish', got %q", result.Language)
	}
	if result.Content.DetectedLanguage != "Spanish" {
		t.Errorf("Content should carry the detected language, got %q", result.Content.DetectedLanguage)
	}

	if len(client.calls) != 7 {
		t.Fatalf("Expected 7 chat calls, got %d", len(client.calls))
	}

	// Every stage after detection embeds the language in its user prompt.
	for i, call := range client.calls[1:] {
		prompt := call[len(call)-1].Content
		if !strings.Contains(prompt, "Spanish") {
			t.Errorf("Stage %d prompt does not mention the detected language", i+2)
		}
	}
}

func TestGenerate_LessonLengthShapesPrompt(t *testing.T) {
	tests := []struct {
		length string
		want   string
	}{
		{models.LengthShort, "2-3"},
		{models.LengthNormal, "4-5"},
		{models.LengthLong, "6-8"},
		{"", "4-5"},
	}

	for _, tc := range tests {
		t.Run(tc.length, func(t *testing.T) {
			client := &scriptedClient{responses: fullRunResponses("English")}
			p := NewPipeline(client)

			if _, err := p.Generate(context.Background(), "text", tc.length, nil); err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}

			lessonsPrompt := client.calls[3][1].Content
			if !strings.Contains(lessonsPrompt, tc.want) {
				t.Errorf("Lessons prompt for %q should request %s lessons", tc.length, tc.want)
			}
		})
	}
}

func TestGenerate_ProgressIsMonotoneAndEndsAt100(t *testing.T) {
	client := &scriptedClient{responses: fullRunResponses("English")}
	p := NewPipeline(client)

	var checkpoints []int
	onProgress := func(progress int, stage string) {
		checkpoints = append(checkpoints, progress)
		if stage == "" {
			t.Error("Progress callback received empty stage name")
		}
	}

	if _, err := p.Generate(context.Background(), "text", models.LengthNormal, onProgress); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if len(checkpoints) != 7 {
		t.Fatalf("Expected 7 progress reports, got %d", len(checkpoints))
	}
	for i := 1; i < len(checkpoints); i++ {
		if checkpoints[i] <= checkpoints[i-1] {
			t.Errorf("Progress not strictly increasing: %v", checkpoints)
		}
	}
	if checkpoints[len(checkpoints)-1] != 100 {
		t.Errorf("Final checkpoint should be 100, got %d", checkpoints[len(checkpoints)-1])
	}
}

func TestGenerate_MidStageFailureAborts(t *testing.T) {
	client := &scriptedClient{responses: fullRunResponses("English"), failAt: 5}
	p := NewPipeline(client)

	var reports int
	result, err := p.Generate(context.Background(), "text", models.LengthNormal, func(int, string) { reports++ })

	if err == nil {
		t.Fatal("Expected an error from the failing stage")
	}
	if result != nil {
		t.Error("No partial result may survive a failed run")
	}
	if len(client.calls) != 5 {
		t.Errorf("Pipeline should stop at the failing stage, made %d calls", len(client.calls))
	}
	if reports != 4 {
		t.Errorf("Expected 4 progress reports before the failure, got %d", reports)
	}
}

func TestGenerate_TruncatesLongDocuments(t *testing.T) {
	client := &scriptedClient{responses: fullRunResponses("English")}
	p := NewPipeline(client)

	long := strings.Repeat("a", promptTextLimit+500)
	if _, err := p.Generate(context.Background(), long, models.LengthNormal, nil); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	detectPrompt := client.calls[0][1].Content
	if len(detectPrompt) > promptTextLimit+100 {
		t.Errorf("Document text was not truncated: prompt is %d chars", len(detectPrompt))
	}
}

func TestTruncateForPrompt_KeepsRuneBoundaries(t *testing.T) {
	// One ASCII byte shifts the 3-byte runes off the limit, so a naive byte
	// slice would cut the final rune in half.
	long := "x" + strings.Repeat("世", promptTextLimit)

	got := truncateForPrompt(long)
	if len(got) > promptTextLimit {
		t.Errorf("Truncated text is %d bytes, limit is %d", len(got), promptTextLimit)
	}
	if !utf8.ValidString(got) {
		t.Error("Truncation produced invalid UTF-8")
	}

	short := "short document"
	if truncateForPrompt(short) != short {
		t.Error("Text under the limit must pass through unchanged")
	}
}

func TestRegenerateQuiz_PassesAvoidList(t *testing.T) {
	client := &scriptedClient{responses: []string{
		`{"questions": [{"question": "Fresh?", "options": ["a","b","c","d"], "correct_answer": 0}]}`,
	}}
	p := NewPipeline(client)

	previous := []models.QuizQuestion{
		{Question: "What is photosynthesis?", Options: []string{"a", "b", "c", "d"}, CorrectAnswer: 0},
		{Question: "Name the powerhouse of the cell.", Options: []string{"a", "b", "c", "d"}, CorrectAnswer: 2},
	}

	questions, err := p.RegenerateQuiz(context.Background(), "text", "English", previous)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(questions) != 1 || questions[0].Question != "Fresh?" {
		t.Fatalf("Unexpected regenerated questions: %+v", questions)
	}

	prompt := client.calls[0][1].Content
	for _, q := range previous {
		if !strings.Contains(prompt, q.Question) {
			t.Errorf("Prompt should list previous question %q", q.Question)
		}
	}
}

func TestGenerate_InvalidCategorySnapsToOther(t *testing.T) {
	responses := fullRunResponses("English")
	responses[2] = "Quantum Basket Weaving"
	client := &scriptedClient{responses: responses}
	p := NewPipeline(client)

	result, err := p.Generate(context.Background(), "text", models.LengthNormal, nil)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if result.Category != "Other" {
		t.Errorf("Unknown category should snap to 'Other', got %q", result.Category)
	}
}
