package tts

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"unicode"

	"github.com/fastbot-dev/fastbot/pkg/frame"
	"github.com/fastbot-dev/fastbot/pkg/pipeline"
)

// Service is the pipeline stage that turns generated Text deltas into
// AudioOutput frames.
//
// Deltas are buffered until a sentence boundary, then each sentence is
// synthesized on a worker goroutine so slow synthesis never blocks the
// stage. Non-interruption frames are forwarded through the same worker
// queue, preserving their order relative to the audio they follow; a
// StartInterruption bypasses the queue, cancels in-flight synthesis, and
// drops queued sentences.
type Service struct {
	provider  Provider
	collector *pipeline.Collector
	logger    *slog.Logger

	emit pipeline.Emit
	ctx  context.Context

	pending strings.Builder
	queue   chan job

	mu     sync.Mutex
	cancel context.CancelFunc
	gen    uint64

	stopOnce sync.Once
	stop     chan struct{}
	wg       sync.WaitGroup
}

// job is one worker queue entry: a sentence to synthesize or a frame to
// forward downstream in order. Sentences carry the interruption generation
// they were queued under; a sentence from a superseded generation is never
// spoken, even if the worker had already dequeued it when the interruption
// arrived.
type job struct {
	text string
	f    frame.Frame
	gen  uint64
}

// NewService creates a TTS pipeline stage backed by the provider.
func NewService(provider Provider) *Service {
	return &Service{
		provider: provider,
		logger:   slog.Default().With("component", "tts.service"),
		queue:    make(chan job, 32),
		stop:     make(chan struct{}),
	}
}

// AttachCollector wires turn metrics; the service marks time to first audio.
func (s *Service) AttachCollector(c *pipeline.Collector) {
	s.collector = c
}

// Name implements pipeline.Processor.
func (s *Service) Name() string { return "tts-service" }

// Start implements pipeline.Processor.
func (s *Service) Start(ctx context.Context, emit pipeline.Emit) error {
	s.ctx = ctx
	s.emit = emit
	s.wg.Add(1)
	go s.worker()
	return nil
}

// Process implements pipeline.Processor.
func (s *Service) Process(ctx context.Context, f frame.Frame) error {
	switch f := f.(type) {
	case *frame.Text:
		s.pending.WriteString(f.Text)
		sentences, rest := splitSentences(s.pending.String())
		s.pending.Reset()
		s.pending.WriteString(rest)
		for _, sentence := range sentences {
			s.enqueue(job{text: sentence, gen: s.generation()})
		}
		s.enqueue(job{f: f})

	case *frame.LLMResponseEnd:
		if rest := strings.TrimSpace(s.pending.String()); rest != "" {
			s.enqueue(job{text: rest, gen: s.generation()})
		}
		s.pending.Reset()
		s.enqueue(job{f: f})

	case *frame.StartInterruption:
		s.pending.Reset()
		s.interrupt()
		s.emit(f)

	default:
		s.enqueue(job{f: f})
	}
	return nil
}

// Stop implements pipeline.Processor.
func (s *Service) Stop() error {
	s.stopOnce.Do(func() {
		close(s.stop)
	})
	s.interrupt()
	s.wg.Wait()
	return nil
}

func (s *Service) enqueue(j job) {
	select {
	case s.queue <- j:
	case <-s.stop:
	}
}

func (s *Service) generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

// interrupt cancels in-flight synthesis, invalidates sentences already
// queued or dequeued, and drains the queue. Queued passthrough frames keep
// their relative order.
func (s *Service) interrupt() {
	s.mu.Lock()
	s.gen++
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.mu.Unlock()

	var keep []job
	for {
		select {
		case j := <-s.queue:
			if j.f != nil {
				keep = append(keep, j)
			}
			continue
		default:
		}
		break
	}
	for _, j := range keep {
		s.enqueue(j)
	}
}

func (s *Service) worker() {
	defer s.wg.Done()

	for {
		select {
		case <-s.stop:
			return
		case j := <-s.queue:
			if j.f != nil {
				s.emit(j.f)
				continue
			}
			s.speak(j)
		}
	}
}

// speak synthesizes one sentence and emits its audio chunks.
func (s *Service) speak(j job) {
	text := j.text

	speakCtx, cancel := context.WithCancel(s.ctx)
	defer cancel()

	s.mu.Lock()
	if j.gen != s.gen {
		// Interrupted between dequeue and here.
		s.mu.Unlock()
		s.logger.Debug("dropping superseded sentence", "chars", len(text))
		return
	}
	s.cancel = cancel
	s.mu.Unlock()

	stream, err := s.provider.Stream(speakCtx, text)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			s.logger.Error("synthesis failed", "error", err, "chars", len(text))
		}
		return
	}
	defer stream.Close()

	format := stream.Format()
	first := true
	for {
		if speakCtx.Err() != nil {
			s.logger.Debug("synthesis interrupted")
			return
		}

		chunk, err := stream.Read()
		if err != nil {
			if speakCtx.Err() == nil {
				s.logger.Error("audio stream failed", "error", err)
			}
			return
		}
		if chunk == nil {
			return
		}
		if len(chunk) == 0 {
			continue
		}

		if first {
			first = false
			if s.collector != nil {
				s.collector.MarkFirstAudio()
			}
		}

		s.emit(&frame.AudioOutput{
			Data:       chunk,
			SampleRate: format.SampleRate,
		})
	}
}

// sentenceEnders terminate a clause worth synthesizing on its own.
const sentenceEnders = ".!?:;"

// splitSentences cuts text into complete sentences plus the unfinished
// tail. A sentence ends at terminal punctuation followed by whitespace,
// or at a newline.
func splitSentences(text string) ([]string, string) {
	var sentences []string
	runes := []rune(text)
	start := 0

	for i := 0; i < len(runes); i++ {
		r := runes[i]

		boundary := false
		switch {
		case r == '\n':
			boundary = true
		case strings.ContainsRune(sentenceEnders, r):
			boundary = i+1 < len(runes) && unicode.IsSpace(runes[i+1])
		}
		if !boundary {
			continue
		}

		sentence := strings.TrimSpace(string(runes[start : i+1]))
		if sentence != "" {
			sentences = append(sentences, sentence)
		}

		// The whitespace that closed the sentence belongs to neither side.
		start = i + 1
		for start < len(runes) && unicode.IsSpace(runes[start]) {
			start++
		}
		if start > i+1 {
			i = start - 1
		}
	}

	return sentences, string(runes[start:])
}

// Verify Service implements pipeline.Processor at compile time.
var _ pipeline.Processor = (*Service)(nil)
