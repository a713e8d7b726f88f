package domain

import "context"

// Llm abstracts any chat/LLM provider.
type Llm interface {
	// Generate returns the model's complete reply.
	Generate(ctx context.Context, req LlmRequest) (string, error)
	// Stream calls onChunk for every text fragment in arrival order.
	Stream(ctx context.Context, req LlmRequest, onChunk func(chunk string) error) error
}

// LlmRequest is one system prompt plus one user message.
type LlmRequest struct {
	Model       string
	System      string
	Prompt      string
	Temperature float64
	NumCtx      int
	NumThread   int
}

type ChatMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

type Role string

const (
	UserRole      Role = "user"
	AssistantRole Role = "assistant"
	SystemRole    Role = "system"
)
