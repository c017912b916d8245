// Package llm provides a unified interface for chat completion providers.
//
// The package abstracts streaming chat completions behind a single Provider
// interface. The OpenAI implementation works against any OpenAI-compatible
// endpoint via a base URL override, and the Mock provider supports tests.
//
// Example usage:
//
//	provider, _ := llm.NewOpenAI(
//	    llm.WithAPIKey(os.Getenv("OPENAI_API_KEY")),
//	    llm.WithModel("gpt-4o"),
//	)
//	defer provider.Close()
//
//	stream, _ := provider.Stream(ctx, &llm.ChatRequest{
//	    Messages: []frame.Message{frame.NewUserMessage("Hello!")},
//	})
package llm

import (
	"context"

	"github.com/fastbot-dev/fastbot/pkg/frame"
)

// Provider is the chat completion interface.
// All implementations must satisfy this interface.
type Provider interface {
	// Chat generates a complete response for a conversation.
	Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error)

	// Stream generates a streaming response for real-time output.
	Stream(ctx context.Context, req *ChatRequest) (Stream, error)

	// Health checks provider connectivity and API key validity.
	Health(ctx context.Context) error

	// Close releases any resources held by the provider.
	Close() error
}

// Stream is a streaming response for real-time output.
type Stream interface {
	// Recv returns the next chunk. The final chunk has Done set.
	Recv() (*StreamChunk, error)

	// Close stops the stream and releases resources.
	Close() error
}

// StreamChunk is a piece of a streaming response.
type StreamChunk struct {
	// Delta is the incremental text content.
	Delta string

	// FinishReason indicates why generation stopped (stop, length).
	FinishReason string

	// Done is true when the stream is complete.
	Done bool
}

// ChatRequest for chat completions.
type ChatRequest struct {
	// Messages is the conversation history.
	Messages []frame.Message

	// Model overrides the default model.
	Model string

	// MaxTokens limits the response length.
	MaxTokens int

	// Temperature controls randomness (0.0-2.0). Zero means provider default.
	Temperature float64
}

// ChatResponse from chat completion.
type ChatResponse struct {
	// Message is the assistant's response.
	Message frame.Message

	// FinishReason indicates why generation stopped.
	FinishReason string

	// Usage tracks token consumption.
	Usage Usage

	// Model used for generation.
	Model string

	// LatencyMs is the response time in milliseconds.
	LatencyMs int64
}

// Usage tracks token consumption for billing and limits.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}
