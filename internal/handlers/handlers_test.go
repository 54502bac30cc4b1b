package handlers

import (
	"testing"

	"microlearn-backend/internal/models"
)

// ─── Attempt Grading ───

func quizFixture() []models.QuizQuestion {
	return []models.QuizQuestion{
		{Question: "Q1", Options: []string{"a", "b", "c", "d"}, CorrectAnswer: 0},
		{Question: "Q2", Options: []string{"a", "b", "c", "d"}, CorrectAnswer: 2},
		{Question: "Q3", Options: []string{"a", "b", "c", "d"}, CorrectAnswer: 3},
		{Question: "Q4", Options: []string{"a", "b", "c", "d"}, CorrectAnswer: 1},
	}
}

func TestGradeAttempt_AllCorrect(t *testing.T) {
	answers := []models.AttemptAnswer{
		{QuestionIndex: 0, AnswerIndex: 0},
		{QuestionIndex: 1, AnswerIndex: 2},
		{QuestionIndex: 2, AnswerIndex: 3},
		{QuestionIndex: 3, AnswerIndex: 1},
	}

	total, correct, percentage := gradeAttempt(quizFixture(), answers)
	if total != 4 || correct != 4 {
		t.Errorf("Expected 4/4, got %d/%d", correct, total)
	}
	if percentage != 100 {
		t.Errorf("Expected 100%%, got %v", percentage)
	}
}

func TestGradeAttempt_PartiallyCorrect(t *testing.T) {
	answers := []models.AttemptAnswer{
		{QuestionIndex: 0, AnswerIndex: 0},
		{QuestionIndex: 1, AnswerIndex: 1}, // wrong
	}

	total, correct, percentage := gradeAttempt(quizFixture(), answers)
	if total != 4 || correct != 1 {
		t.Errorf("Expected 1/4, got %d/%d", correct, total)
	}
	if percentage != 25 {
		t.Errorf("Expected 25%%, got %v", percentage)
	}
}

func TestGradeAttempt_UnansweredCountAsWrong(t *testing.T) {
	total, correct, percentage := gradeAttempt(quizFixture(), nil)
	if total != 4 || correct != 0 || percentage != 0 {
		t.Errorf("Expected 0/4 at 0%%, got %d/%d at %v%%", correct, total, percentage)
	}
}

func TestGradeAttempt_OutOfRangeIndexesIgnored(t *testing.T) {
	answers := []models.AttemptAnswer{
		{QuestionIndex: -1, AnswerIndex: 0},
		{QuestionIndex: 99, AnswerIndex: 0},
		{QuestionIndex: 0, AnswerIndex: 0},
	}

	_, correct, _ := gradeAttempt(quizFixture(), answers)
	if correct != 1 {
		t.Errorf("Expected 1 correct, got %d", correct)
	}
}

func TestGradeAttempt_DuplicateAnswersKeepLast(t *testing.T) {
	answers := []models.AttemptAnswer{
		{QuestionIndex: 0, AnswerIndex: 0}, // correct
		{QuestionIndex: 0, AnswerIndex: 1}, // overrides, wrong
	}

	_, correct, _ := gradeAttempt(quizFixture(), answers)
	if correct != 0 {
		t.Errorf("Last answer should win, expected 0 correct, got %d", correct)
	}
}

func TestGradeAttempt_EmptyQuiz(t *testing.T) {
	total, correct, percentage := gradeAttempt(nil, nil)
	if total != 0 || correct != 0 || percentage != 0 {
		t.Errorf("Empty quiz should grade to zeros, got %d/%d at %v%%", correct, total, percentage)
	}
}

// ─── Upload Validation ───

func TestIsAllowedUpload(t *testing.T) {
	tests := []struct {
		name     string
		mime     string
		filename string
		want     bool
	}{
		{"pdf", "application/pdf", "lecture.pdf", true},
		{"txt", "text/plain; charset=utf-8", "notes.txt", true},
		{"docx sniffed as zip", "application/zip", "essay.docx", true},
		{"pptx sniffed as zip", "application/zip", "deck.pptx", true},
		{"octet-stream with known ext", "application/octet-stream", "doc.docx", true},
		{"image", "image/png", "photo.png", false},
		{"zip without known ext", "application/zip", "archive.zip", false},
		{"exe", "application/octet-stream", "virus.exe", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := isAllowedUpload(tc.mime, tc.filename); got != tc.want {
				t.Errorf("isAllowedUpload(%q, %q) = %v, want %v", tc.mime, tc.filename, got, tc.want)
			}
		})
	}
}
