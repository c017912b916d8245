package pipeline

import (
	"context"
	"log/slog"
	"strings"

	"github.com/fastbot-dev/fastbot/pkg/frame"
)

// UserAggregator collects finalized transcriptions into user messages.
//
// Transcriptions arriving while the user is still speaking are buffered
// and flushed on speech end; transcriptions arriving after speech end
// (STT lag) are pushed immediately. Each flush appends a user message to
// the shared transcript and emits an LLMMessages frame carrying a
// transcript snapshot.
type UserAggregator struct {
	transcript *frame.Transcript
	emit       Emit

	speaking bool
	parts    []string
}

// NewUserAggregator creates a user-side response aggregator backed by the
// shared transcript.
func NewUserAggregator(transcript *frame.Transcript) *UserAggregator {
	return &UserAggregator{transcript: transcript}
}

// Name implements Processor.
func (a *UserAggregator) Name() string { return "user-aggregator" }

// Start implements Processor.
func (a *UserAggregator) Start(ctx context.Context, emit Emit) error {
	a.emit = emit
	return nil
}

// Process implements Processor.
func (a *UserAggregator) Process(ctx context.Context, f frame.Frame) error {
	switch f := f.(type) {
	case *frame.UserStartedSpeaking:
		a.speaking = true
		a.emit(f)

	case *frame.Transcription:
		if a.speaking {
			a.parts = append(a.parts, f.Text)
		} else {
			a.push(f.Text)
		}

	case *frame.InterimTranscription:
		// Interim hypotheses never reach the LLM.

	case *frame.UserStoppedSpeaking:
		a.speaking = false
		if len(a.parts) > 0 {
			a.push(strings.Join(a.parts, " "))
			a.parts = nil
		}
		a.emit(f)

	default:
		a.emit(f)
	}
	return nil
}

// Stop implements Processor.
func (a *UserAggregator) Stop() error { return nil }

func (a *UserAggregator) push(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	a.transcript.Append(frame.NewUserMessage(text))
	a.emit(&frame.LLMMessages{Messages: a.transcript.Messages()})
}

// AssistantAggregator collects generated text deltas into assistant
// messages on the shared transcript.
//
// It sits after the transport output so the transcript only records what
// was actually delivered. An interruption flushes the partial response.
type AssistantAggregator struct {
	transcript *frame.Transcript
	collector  *Collector
	logger     *slog.Logger
	emit       Emit

	collecting bool
	buf        strings.Builder
}

// NewAssistantAggregator creates an assistant-side response aggregator
// backed by the shared transcript.
func NewAssistantAggregator(transcript *frame.Transcript) *AssistantAggregator {
	return &AssistantAggregator{
		transcript: transcript,
		logger:     slog.Default().With("component", "pipeline.assistant-aggregator"),
	}
}

// AttachCollector wires turn metrics; the aggregator marks response
// completion when a full response has drained through the pipeline.
func (a *AssistantAggregator) AttachCollector(c *Collector) {
	a.collector = c
}

// Name implements Processor.
func (a *AssistantAggregator) Name() string { return "assistant-aggregator" }

// Start implements Processor.
func (a *AssistantAggregator) Start(ctx context.Context, emit Emit) error {
	a.emit = emit
	return nil
}

// Process implements Processor.
func (a *AssistantAggregator) Process(ctx context.Context, f frame.Frame) error {
	switch f := f.(type) {
	case *frame.LLMResponseStart:
		a.collecting = true
		a.buf.Reset()

	case *frame.Text:
		if a.collecting {
			a.buf.WriteString(f.Text)
		}

	case *frame.LLMResponseEnd:
		a.flush()
		if a.collector != nil {
			a.collector.MarkResponseDone()
		}

	case *frame.StartInterruption:
		// Keep whatever was spoken before the user cut in.
		a.flush()
		a.emit(f)

	default:
		a.emit(f)
	}
	return nil
}

// Stop implements Processor.
func (a *AssistantAggregator) Stop() error { return nil }

func (a *AssistantAggregator) flush() {
	a.collecting = false
	text := strings.TrimSpace(a.buf.String())
	a.buf.Reset()
	if text == "" {
		return
	}
	a.transcript.Append(frame.NewAssistantMessage(text))
	a.logger.Debug("assistant turn recorded", "chars", len(text))
}

// Verify aggregators implement Processor at compile time.
var (
	_ Processor = (*UserAggregator)(nil)
	_ Processor = (*AssistantAggregator)(nil)
)
