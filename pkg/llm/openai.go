package llm

import (
	"context"
	"log/slog"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/packages/ssestream"

	"github.com/fastbot-dev/fastbot/internal/httpc"
	"github.com/fastbot-dev/fastbot/pkg/frame"
)

const providerOpenAI = "openai"

// OpenAI implements Provider over the OpenAI chat completions API.
// A BaseURL override pointed at any OpenAI-compatible endpoint works too.
type OpenAI struct {
	config *Config
	client openai.Client
	logger *slog.Logger
}

// NewOpenAI creates a new OpenAI chat completion provider.
func NewOpenAI(opts ...Option) (*OpenAI, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(httpc.NewClient(cfg.Timeout)),
	}
	if cfg.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAI{
		config: cfg,
		client: openai.NewClient(reqOpts...),
		logger: cfg.Logger.With("component", "llm.openai"),
	}, nil
}

// Chat generates a complete response for a conversation.
func (o *OpenAI) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	start := time.Now()

	resp, err := o.client.Chat.Completions.New(ctx, o.buildParams(req))
	if err != nil {
		return nil, WrapError(providerOpenAI, err)
	}
	if len(resp.Choices) == 0 {
		return nil, WrapError(providerOpenAI, ErrEmptyResponse)
	}

	choice := resp.Choices[0]
	latency := time.Since(start).Milliseconds()

	o.logger.Debug("chat completed",
		"model", resp.Model,
		"finish_reason", choice.FinishReason,
		"latency_ms", latency,
	)

	return &ChatResponse{
		Message:      frame.NewAssistantMessage(choice.Message.Content),
		FinishReason: string(choice.FinishReason),
		Usage: Usage{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:      int(resp.Usage.TotalTokens),
		},
		Model:     resp.Model,
		LatencyMs: latency,
	}, nil
}

// Stream generates a streaming response for real-time output.
func (o *OpenAI) Stream(ctx context.Context, req *ChatRequest) (Stream, error) {
	stream := o.client.Chat.Completions.NewStreaming(ctx, o.buildParams(req))
	if err := stream.Err(); err != nil {
		return nil, WrapError(providerOpenAI, err)
	}
	return &openaiStream{stream: stream}, nil
}

// Health checks connectivity and API key validity.
func (o *OpenAI) Health(ctx context.Context) error {
	_, err := o.client.Models.List(ctx)
	if err != nil {
		return WrapError(providerOpenAI, err)
	}
	return nil
}

// Close releases resources held by the provider.
func (o *OpenAI) Close() error {
	return nil
}

// Model returns the configured default model.
func (o *OpenAI) Model() string {
	return o.config.Model
}

// buildParams maps a ChatRequest onto the SDK request type.
func (o *OpenAI) buildParams(req *ChatRequest) openai.ChatCompletionNewParams {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages))
	for _, m := range req.Messages {
		switch m.Role {
		case frame.RoleSystem:
			msgs = append(msgs, openai.SystemMessage(m.Content))
		case frame.RoleAssistant:
			msgs = append(msgs, openai.AssistantMessage(m.Content))
		default:
			msgs = append(msgs, openai.UserMessage(m.Content))
		}
	}

	model := req.Model
	if model == "" {
		model = o.config.Model
	}

	params := openai.ChatCompletionNewParams{
		Messages: msgs,
		Model:    model,
	}

	temp := req.Temperature
	if temp == 0 {
		temp = o.config.Temperature
	}
	if temp != 0 {
		params.Temperature = param.NewOpt(temp)
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = o.config.MaxTokens
	}
	if maxTokens != 0 {
		params.MaxCompletionTokens = param.NewOpt(int64(maxTokens))
	}

	return params
}

// openaiStream adapts the SDK SSE stream to the Stream interface.
type openaiStream struct {
	stream *ssestream.Stream[openai.ChatCompletionChunk]
	done   bool
}

// Recv returns the next chunk.
func (s *openaiStream) Recv() (*StreamChunk, error) {
	if s.done {
		return &StreamChunk{Done: true}, nil
	}

	for s.stream.Next() {
		chunk := s.stream.Current()
		if len(chunk.Choices) == 0 {
			continue
		}

		choice := chunk.Choices[0]
		out := &StreamChunk{
			Delta:        choice.Delta.Content,
			FinishReason: string(choice.FinishReason),
		}
		if choice.FinishReason != "" {
			s.done = true
			out.Done = true
		}
		return out, nil
	}

	if err := s.stream.Err(); err != nil {
		return nil, WrapError(providerOpenAI, err)
	}

	s.done = true
	return &StreamChunk{Done: true}, nil
}

// Close stops the stream.
func (s *openaiStream) Close() error {
	return s.stream.Close()
}

// Verify OpenAI implements Provider at compile time.
var _ Provider = (*OpenAI)(nil)
