package output

import (
	"context"

	"a11y-agent/internal/domain/entity"
)

type LLMPort interface {
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}

// StreamingLLMPort is implemented by clients that can stream deltas.
type StreamingLLMPort interface {
	LLMPort
	ChatStream(ctx context.Context, req ChatRequest, onChunk func(StreamChunk)) (*ChatResponse, error)
}

type ChatRequest struct {
	Messages    []entity.Message
	Tools       []entity.ToolDefinition
	Temperature float32
	// JSONMode asks for a JSON object response when the backend supports it.
	JSONMode bool
}

type ChatResponse struct {
	Message entity.Message
}

type StreamChunk struct {
	Content   string
	ToolCalls []entity.ToolCall
	Done      bool
}
