package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestValidateMessages(t *testing.T) {
	tests := []struct {
		name     string
		messages []Message
		wantErr  bool
	}{
		{"empty list", nil, true},
		{"invalid role", []Message{{Role: "wizard", Content: "hi"}}, true},
		{"blank content", []Message{{Role: RoleUser, Content: "   "}}, true},
		{"valid single", []Message{{Role: RoleUser, Content: "hi"}}, false},
		{"valid conversation", []Message{
			{Role: RoleSystem, Content: "You are helpful."},
			{Role: RoleUser, Content: "hi"},
			{Role: RoleAssistant, Content: "hello"},
		}, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateMessages(tc.messages)
			if tc.wantErr && !errors.Is(err, ErrInvalidInput) {
				t.Errorf("Expected ErrInvalidInput, got %v", err)
			}
			if !tc.wantErr && err != nil {
				t.Errorf("Unexpected error: %v", err)
			}
		})
	}
}

func TestComplete_InvalidInputSkipsNetwork(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	client := NewOpenAIClient("test-key", srv.URL+"/v1", "test-model", 1)

	_, err := client.Complete(context.Background(), nil)
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("Expected ErrInvalidInput, got %v", err)
	}
	if called {
		t.Error("Invalid input should be rejected before any network call")
	}
}

func TestComplete_MapsResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"id":    "cmpl-123",
			"model": "test-model",
			"choices": []map[string]interface{}{
				{
					"message":       map[string]string{"role": "assistant", "content": "answer text"},
					"finish_reason": "stop",
				},
			},
			"usage": map[string]int{
				"prompt_tokens":     12,
				"completion_tokens": 7,
				"total_tokens":      19,
			},
		})
	}))
	defer srv.Close()

	client := NewOpenAIClient("test-key", srv.URL+"/v1", "test-model", 1)

	comp, err := client.Complete(context.Background(), []Message{{Role: RoleUser, Content: "question"}})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if comp.ID != "cmpl-123" {
		t.Errorf("Expected ID 'cmpl-123', got %q", comp.ID)
	}
	if comp.Text != "answer text" {
		t.Errorf("Expected text 'answer text', got %q", comp.Text)
	}
	if comp.FinishReason != "stop" {
		t.Errorf("Expected finish reason 'stop', got %q", comp.FinishReason)
	}
	if comp.TotalTokens != 19 {
		t.Errorf("Expected 19 total tokens, got %d", comp.TotalTokens)
	}
}

func TestComplete_BackendError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": {"message": "boom"}}`, http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewOpenAIClient("test-key", srv.URL+"/v1", "test-model", 1)

	_, err := client.Complete(context.Background(), []Message{{Role: RoleUser, Content: "question"}})
	if !errors.Is(err, ErrCompletionFailed) {
		t.Fatalf("Expected ErrCompletionFailed, got %v", err)
	}
}

func TestComplete_EmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"id":      "cmpl-empty",
			"model":   "test-model",
			"choices": []interface{}{},
		})
	}))
	defer srv.Close()

	client := NewOpenAIClient("test-key", srv.URL+"/v1", "test-model", 1)

	_, err := client.Complete(context.Background(), []Message{{Role: RoleUser, Content: "question"}})
	if !errors.Is(err, ErrEmptyCompletion) {
		t.Fatalf("Expected ErrEmptyCompletion, got %v", err)
	}
}

func TestComplete_BlankContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"id":    "cmpl-blank",
			"model": "test-model",
			"choices": []map[string]interface{}{
				{"message": map[string]string{"role": "assistant", "content": "   "}},
			},
		})
	}))
	defer srv.Close()

	client := NewOpenAIClient("test-key", srv.URL+"/v1", "test-model", 1)

	_, err := client.Complete(context.Background(), []Message{{Role: RoleUser, Content: "question"}})
	if !errors.Is(err, ErrEmptyCompletion) {
		t.Fatalf("Expected ErrEmptyCompletion, got %v", err)
	}
}
