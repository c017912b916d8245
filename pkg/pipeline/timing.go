package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/fastbot-dev/fastbot/pkg/audio"
	"github.com/fastbot-dev/fastbot/pkg/frame"
)

// AudioVolumeTimer watches inbound audio and pins the speech-end reference
// time to the last chunk that was actually loud, rather than to the moment
// the VAD stop delay expired. This keeps latency numbers honest: the stop
// delay is detection overhead, not service latency.
type AudioVolumeTimer struct {
	collector *Collector
	threshold float64
	emit      Emit

	lastLoud time.Time
}

// NewAudioVolumeTimer creates the timer with the default VAD threshold.
func NewAudioVolumeTimer(collector *Collector) *AudioVolumeTimer {
	return &AudioVolumeTimer{
		collector: collector,
		threshold: audio.DefaultVADThreshold,
	}
}

// Name implements Processor.
func (t *AudioVolumeTimer) Name() string { return "audio-volume-timer" }

// Start implements Processor.
func (t *AudioVolumeTimer) Start(ctx context.Context, emit Emit) error {
	t.emit = emit
	return nil
}

// Process implements Processor.
func (t *AudioVolumeTimer) Process(ctx context.Context, f frame.Frame) error {
	switch f := f.(type) {
	case *frame.AudioInput:
		if audio.Energy(audio.BytesToSamples(f.Data)) >= t.threshold {
			t.lastLoud = time.Now()
		}
		t.emit(f)

	case *frame.UserStoppedSpeaking:
		if !t.lastLoud.IsZero() {
			t.collector.MarkSpeechEndAt(t.lastLoud)
		} else {
			t.collector.MarkSpeechEnd()
		}
		t.emit(f)

	default:
		t.emit(f)
	}
	return nil
}

// Stop implements Processor.
func (t *AudioVolumeTimer) Stop() error { return nil }

// TranscriptionTimingLogger marks and logs STT latency for each finalized
// transcription, measured against the AudioVolumeTimer reference point.
type TranscriptionTimingLogger struct {
	collector *Collector
	logger    *slog.Logger
	emit      Emit
}

// NewTranscriptionTimingLogger creates the logger stage.
func NewTranscriptionTimingLogger(collector *Collector) *TranscriptionTimingLogger {
	return &TranscriptionTimingLogger{
		collector: collector,
		logger:    slog.Default().With("component", "pipeline.transcription-timing"),
	}
}

// Name implements Processor.
func (t *TranscriptionTimingLogger) Name() string { return "transcription-timing-logger" }

// Start implements Processor.
func (t *TranscriptionTimingLogger) Start(ctx context.Context, emit Emit) error {
	t.emit = emit
	return nil
}

// Process implements Processor.
func (t *TranscriptionTimingLogger) Process(ctx context.Context, f frame.Frame) error {
	if tr, ok := f.(*frame.Transcription); ok {
		t.collector.MarkTranscript()
		t.logger.Info("transcription ready",
			"latency", t.collector.Current().STTLatency.Round(time.Millisecond),
			"chars", len(tr.Text),
		)
	}
	t.emit(f)
	return nil
}

// Stop implements Processor.
func (t *TranscriptionTimingLogger) Stop() error { return nil }

// Verify timing stages implement Processor at compile time.
var (
	_ Processor = (*AudioVolumeTimer)(nil)
	_ Processor = (*TranscriptionTimingLogger)(nil)
)
