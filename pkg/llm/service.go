package llm

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/fastbot-dev/fastbot/pkg/frame"
	"github.com/fastbot-dev/fastbot/pkg/pipeline"
)

// Service is the pipeline stage that turns LLMMessages frames into
// streamed Text frames bracketed by response start/end markers.
//
// Generation runs on its own goroutine so interruption frames are not
// stuck behind a long completion; a new request or a StartInterruption
// cancels the in-flight turn.
type Service struct {
	provider  Provider
	collector *pipeline.Collector
	logger    *slog.Logger

	emit pipeline.Emit
	ctx  context.Context

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewService creates an LLM pipeline stage backed by the provider.
func NewService(provider Provider) *Service {
	return &Service{
		provider: provider,
		logger:   slog.Default().With("component", "llm.service"),
	}
}

// AttachCollector wires turn metrics; the service marks time to first token.
func (s *Service) AttachCollector(c *pipeline.Collector) {
	s.collector = c
}

// Name implements pipeline.Processor.
func (s *Service) Name() string { return "llm-service" }

// Start implements pipeline.Processor.
func (s *Service) Start(ctx context.Context, emit pipeline.Emit) error {
	s.ctx = ctx
	s.emit = emit
	return nil
}

// Process implements pipeline.Processor.
func (s *Service) Process(ctx context.Context, f frame.Frame) error {
	switch f := f.(type) {
	case *frame.LLMMessages:
		s.interrupt()
		s.begin(f.Messages)

	case *frame.StartInterruption:
		s.interrupt()
		s.emit(f)

	default:
		s.emit(f)
	}
	return nil
}

// Stop implements pipeline.Processor.
func (s *Service) Stop() error {
	s.interrupt()
	s.wg.Wait()
	return nil
}

// begin launches generation for one turn.
func (s *Service) begin(msgs []frame.Message) {
	turnCtx, cancel := context.WithCancel(s.ctx)

	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer cancel()
		s.generate(turnCtx, msgs)
	}()
}

// interrupt cancels the in-flight turn, if any.
func (s *Service) interrupt() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

func (s *Service) generate(ctx context.Context, msgs []frame.Message) {
	s.emit(&frame.LLMResponseStart{})
	defer s.emit(&frame.LLMResponseEnd{})

	stream, err := s.provider.Stream(ctx, &ChatRequest{Messages: msgs})
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			s.logger.Error("stream request failed", "error", err)
		}
		return
	}
	defer stream.Close()

	first := true
	for {
		if ctx.Err() != nil {
			s.logger.Debug("generation interrupted")
			return
		}

		chunk, err := stream.Recv()
		if err != nil {
			if ctx.Err() == nil {
				s.logger.Error("stream receive failed", "error", err)
			}
			return
		}

		if chunk.Delta != "" {
			if first {
				first = false
				if s.collector != nil {
					s.collector.MarkFirstToken()
				}
			}
			s.emit(&frame.Text{Text: chunk.Delta})
		}

		if chunk.Done {
			return
		}
	}
}

// Verify Service implements pipeline.Processor at compile time.
var _ pipeline.Processor = (*Service)(nil)
