package transport

import (
	"context"
	"log/slog"

	"github.com/fastbot-dev/fastbot/pkg/audio"
	"github.com/fastbot-dev/fastbot/pkg/frame"
	"github.com/fastbot-dev/fastbot/pkg/pipeline"
)

// Output is the pipeline stage that delivers frames back into the room:
// AudioOutput goes to the published audio track, TransportMessage to the
// data channel. Everything passes through so downstream stages (like the
// assistant aggregator) still see the stream.
type Output struct {
	t      *Transport
	logger *slog.Logger

	emit pipeline.Emit
}

func newOutput(t *Transport) *Output {
	return &Output{
		t:      t,
		logger: t.logger.With("component", "transport.output"),
	}
}

// Name implements pipeline.Processor.
func (out *Output) Name() string { return "transport-output" }

// Start implements pipeline.Processor.
func (out *Output) Start(ctx context.Context, emit pipeline.Emit) error {
	out.emit = emit
	return nil
}

// Process implements pipeline.Processor.
func (out *Output) Process(ctx context.Context, f frame.Frame) error {
	switch f := f.(type) {
	case *frame.AudioOutput:
		out.playAudio(f)

	case *frame.TransportMessage:
		if err := out.t.SendAppMessage(f.Payload, f.Participant); err != nil {
			out.logger.Error("app message send failed", "error", err)
		}

	case *frame.StartInterruption:
		// Drop buffered audio so the bot goes quiet immediately.
		if track := out.t.track(); track != nil {
			track.ClearQueue()
		}
	}

	out.emit(f)
	return nil
}

// Stop implements pipeline.Processor.
func (out *Output) Stop() error { return nil }

// playAudio resamples pipeline audio to the track rate and queues it.
// The PCM track buffers and paces samples itself.
func (out *Output) playAudio(f *frame.AudioOutput) {
	track := out.t.track()
	if track == nil {
		return
	}

	samples := audio.BytesToSamples(f.Data)
	if f.SampleRate != trackSampleRate {
		samples = audio.Resample(samples, f.SampleRate, trackSampleRate)
	}
	if len(samples) == 0 {
		return
	}

	if err := track.WriteSample(samples); err != nil {
		out.logger.Error("audio track write failed", "error", err)
	}
}

// Verify Output implements pipeline.Processor at compile time.
var _ pipeline.Processor = (*Output)(nil)
