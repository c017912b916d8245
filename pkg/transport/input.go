package transport

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	opus "gopkg.in/hraban/opus.v2"

	"github.com/fastbot-dev/fastbot/pkg/audio"
	"github.com/fastbot-dev/fastbot/pkg/frame"
	"github.com/fastbot-dev/fastbot/pkg/pipeline"
)

// sttSampleRate is the rate inbound audio is resampled to for the STT stage.
const sttSampleRate = 16000

// maxOpusFrame is the largest decoded Opus frame: 120ms at 48kHz.
const maxOpusFrame = 5760

// Input is the pipeline source stage. It decodes Opus audio from subscribed
// room tracks, runs speech detection, and emits audio plus speaking-state
// frames. Frames queued into the pipeline from upstream pass through.
type Input struct {
	t      *Transport
	logger *slog.Logger

	detector *audio.Detector

	mu      sync.Mutex
	emit    pipeline.Emit
	ctx     context.Context
	started bool
	pending []pendingTrack
	cancels []context.CancelFunc
	wg      sync.WaitGroup
}

type pendingTrack struct {
	track    *webrtc.TrackRemote
	identity string
}

func newInput(t *Transport) *Input {
	return &Input{
		t:      t,
		logger: t.logger.With("component", "transport.input"),
		detector: audio.NewDetector(
			audio.WithStopDelay(t.cfg.Params.VADStopDelay),
		),
	}
}

// Name implements pipeline.Processor.
func (in *Input) Name() string { return "transport-input" }

// Start implements pipeline.Processor. Tracks subscribed before the
// pipeline started begin flowing now.
func (in *Input) Start(ctx context.Context, emit pipeline.Emit) error {
	in.mu.Lock()
	in.ctx = ctx
	in.emit = emit
	in.started = true
	pending := in.pending
	in.pending = nil
	in.mu.Unlock()

	for _, p := range pending {
		in.startReader(p.track, p.identity)
	}
	return nil
}

// Process implements pipeline.Processor.
func (in *Input) Process(ctx context.Context, f frame.Frame) error {
	in.emitFrame(f)
	return nil
}

// Stop implements pipeline.Processor.
func (in *Input) Stop() error {
	in.stopReaders()
	return nil
}

// handleTrack is called by the room callback when an audio track is
// subscribed. Subscription can happen before the pipeline starts; such
// tracks are held until Start.
func (in *Input) handleTrack(track *webrtc.TrackRemote, identity string) {
	if track.Kind() != webrtc.RTPCodecTypeAudio {
		return
	}

	in.mu.Lock()
	if !in.started {
		in.pending = append(in.pending, pendingTrack{track: track, identity: identity})
		in.mu.Unlock()
		in.logger.Debug("holding track until pipeline start", "participant", identity)
		return
	}
	in.mu.Unlock()

	in.startReader(track, identity)
}

func (in *Input) startReader(track *webrtc.TrackRemote, identity string) {
	in.mu.Lock()
	base := in.ctx
	if base == nil {
		base = context.Background()
	}
	ctx, cancel := context.WithCancel(base)
	in.cancels = append(in.cancels, cancel)
	in.wg.Add(1)
	in.mu.Unlock()

	in.logger.Info("reading audio track",
		"participant", identity,
		"codec", track.Codec().MimeType,
	)
	go in.readTrack(ctx, track, identity)
}

func (in *Input) stopReaders() {
	in.mu.Lock()
	cancels := in.cancels
	in.cancels = nil
	in.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
	in.wg.Wait()
}

// readTrack decodes one Opus track into 16kHz PCM frames.
func (in *Input) readTrack(ctx context.Context, track *webrtc.TrackRemote, identity string) {
	defer in.wg.Done()

	decoder, err := opus.NewDecoder(trackSampleRate, 1)
	if err != nil {
		in.logger.Error("opus decoder init failed", "error", err, "participant", identity)
		return
	}

	buf := make([]byte, 1500)
	pkt := &rtp.Packet{}
	pcm48k := make([]int16, maxOpusFrame)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := track.SetReadDeadline(time.Now().Add(5 * time.Second)); err != nil {
			continue
		}

		n, _, err := track.Read(buf)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			if ctx.Err() == nil {
				in.logger.Debug("track read ended", "error", err, "participant", identity)
			}
			return
		}

		if err := pkt.Unmarshal(buf[:n]); err != nil {
			in.logger.Warn("bad RTP packet", "error", err, "participant", identity)
			continue
		}
		if len(pkt.Payload) == 0 {
			// DTX packet
			continue
		}

		count, err := decoder.Decode(pkt.Payload, pcm48k)
		if err != nil || count == 0 {
			continue
		}

		samples := audio.Resample(pcm48k[:count], trackSampleRate, sttSampleRate)
		if len(samples) == 0 {
			continue
		}
		in.feed(samples)
	}
}

// feed runs speech detection on one chunk and emits the resulting frames.
func (in *Input) feed(samples []int16) {
	params := in.t.cfg.Params

	speaking := false
	if params.VADEnabled {
		chunkDur := time.Duration(len(samples)) * time.Second / sttSampleRate
		switch in.detector.Feed(samples, chunkDur) {
		case audio.VADSpeechStart:
			if params.InterruptionsAllowed {
				in.emitFrame(&frame.StartInterruption{})
			}
			in.emitFrame(&frame.UserStartedSpeaking{})
		case audio.VADSpeechEnd:
			in.emitFrame(&frame.UserStoppedSpeaking{})
			if params.InterruptionsAllowed {
				in.emitFrame(&frame.StopInterruption{})
			}
		}
		speaking = in.detector.Speaking()
	}

	if !params.VADEnabled || params.VADAudioPassthrough || speaking {
		in.emitFrame(&frame.AudioInput{
			Data:       audio.SamplesToBytes(samples),
			SampleRate: sttSampleRate,
		})
	}
}

func (in *Input) emitFrame(f frame.Frame) {
	in.mu.Lock()
	emit := in.emit
	in.mu.Unlock()
	if emit != nil {
		emit(f)
	}
}

// Verify Input implements pipeline.Processor at compile time.
var _ pipeline.Processor = (*Input)(nil)
