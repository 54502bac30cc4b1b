// Package llm wraps the chat-completion backend and the defensive parsing of
// its loosely structured JSON-in-text responses.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

const DefaultModel = openai.GPT4oMini

// Error taxonomy. Callers match with errors.Is.
var (
	ErrInvalidInput     = errors.New("invalid chat input")
	ErrCompletionFailed = errors.New("chat completion failed")
	ErrEmptyCompletion  = errors.New("empty chat completion")
)

// Message roles are restricted to the three chat roles the backend accepts.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Completion is one model answer plus its usage metadata.
type Completion struct {
	ID               string
	Model            string
	Text             string
	FinishReason     string // "stop" | "length" | "function_call" | "content_filter" | ""
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Client sends one conversation and returns one completion. Implementations
// never retry; callers decide.
type Client interface {
	Complete(ctx context.Context, messages []Message) (*Completion, error)
}

// OpenAIClient talks to any OpenAI-wire chat endpoint. A token bucket caps
// in-flight requests against the backend's concurrency limits.
type OpenAIClient struct {
	client   *openai.Client
	model    string
	rateChan chan struct{}
}

func NewOpenAIClient(apiKey, baseURL, model string, concurrentReqs int) *OpenAIClient {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if model == "" {
		model = DefaultModel
	}
	if concurrentReqs < 1 {
		concurrentReqs = 1
	}

	rateChan := make(chan struct{}, concurrentReqs)
	for i := 0; i < concurrentReqs; i++ {
		rateChan <- struct{}{}
	}

	return &OpenAIClient{
		client:   openai.NewClientWithConfig(cfg),
		model:    model,
		rateChan: rateChan,
	}
}

func (c *OpenAIClient) Complete(ctx context.Context, messages []Message) (*Completion, error) {
	if err := ValidateMessages(messages); err != nil {
		return nil, err
	}

	if err := c.acquireRate(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCompletionFailed, err)
	}
	defer c.releaseRate()

	req := openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: make([]openai.ChatCompletionMessage, 0, len(messages)),
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCompletionFailed, err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices returned", ErrEmptyCompletion)
	}

	choice := resp.Choices[0]
	if strings.TrimSpace(choice.Message.Content) == "" {
		return nil, fmt.Errorf("%w: blank choice content", ErrEmptyCompletion)
	}

	return &Completion{
		ID:               resp.ID,
		Model:            resp.Model,
		Text:             choice.Message.Content,
		FinishReason:     string(choice.FinishReason),
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
	}, nil
}

// ValidateMessages rejects malformed conversations before any network call.
func ValidateMessages(messages []Message) error {
	if len(messages) == 0 {
		return fmt.Errorf("%w: message list is empty", ErrInvalidInput)
	}
	for i, m := range messages {
		switch m.Role {
		case RoleSystem, RoleUser, RoleAssistant:
		default:
			return fmt.Errorf("%w: message %d has invalid role %q", ErrInvalidInput, i, m.Role)
		}
		if strings.TrimSpace(m.Content) == "" {
			return fmt.Errorf("%w: message %d has empty content", ErrInvalidInput, i)
		}
	}
	return nil
}

func (c *OpenAIClient) acquireRate(ctx context.Context) error {
	select {
	case <-c.rateChan:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(5 * time.Minute):
		return errors.New("timeout waiting for completion rate slot")
	}
}

func (c *OpenAIClient) releaseRate() {
	c.rateChan <- struct{}{}
}
