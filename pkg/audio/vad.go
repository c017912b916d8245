package audio

import "time"

// VAD event types reported by Detector.Feed.
type VADEvent int

const (
	// VADNone means no state change for this chunk.
	VADNone VADEvent = iota

	// VADSpeechStart means the chunk crossed into speech.
	VADSpeechStart

	// VADSpeechEnd means silence persisted past the stop delay.
	VADSpeechEnd
)

// Default detector tuning for 16kHz speech.
const (
	// DefaultVADThreshold is the minimum normalized energy treated as speech.
	DefaultVADThreshold = 0.001

	// DefaultVADStopDelay is how long silence must persist before speech
	// is considered ended.
	DefaultVADStopDelay = 200 * time.Millisecond
)

// Detector is an energy-based voice activity detector.
//
// Feed it consecutive PCM16 chunks from a single stream; it reports
// speech-start as soon as a chunk crosses the energy threshold, and
// speech-end once energy has stayed below the threshold for the stop
// delay. Not goroutine-safe; feed from a single reader.
type Detector struct {
	threshold float64
	stopDelay time.Duration

	speaking  bool
	quietFor  time.Duration
	lastLoud  time.Time
	clock     func() time.Time
}

// DetectorOption configures a Detector.
type DetectorOption func(*Detector)

// WithThreshold sets the speech energy threshold (0.0-1.0).
func WithThreshold(threshold float64) DetectorOption {
	return func(d *Detector) {
		d.threshold = threshold
	}
}

// WithStopDelay sets how long silence must persist before speech ends.
func WithStopDelay(delay time.Duration) DetectorOption {
	return func(d *Detector) {
		d.stopDelay = delay
	}
}

// withClock overrides the time source for tests.
func withClock(clock func() time.Time) DetectorOption {
	return func(d *Detector) {
		d.clock = clock
	}
}

// NewDetector creates a detector with default tuning.
func NewDetector(opts ...DetectorOption) *Detector {
	d := &Detector{
		threshold: DefaultVADThreshold,
		stopDelay: DefaultVADStopDelay,
		clock:     time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Feed processes one chunk of samples covering chunkDur of audio and
// returns the resulting event, if any.
func (d *Detector) Feed(samples []int16, chunkDur time.Duration) VADEvent {
	loud := Energy(samples) >= d.threshold

	if loud {
		d.lastLoud = d.clock()
		d.quietFor = 0
		if !d.speaking {
			d.speaking = true
			return VADSpeechStart
		}
		return VADNone
	}

	if !d.speaking {
		return VADNone
	}

	d.quietFor += chunkDur
	if d.quietFor >= d.stopDelay {
		d.speaking = false
		d.quietFor = 0
		return VADSpeechEnd
	}
	return VADNone
}

// Speaking reports whether the detector currently considers the stream
// to contain speech.
func (d *Detector) Speaking() bool {
	return d.speaking
}

// LastLoud returns the time of the most recent above-threshold chunk.
func (d *Detector) LastLoud() time.Time {
	return d.lastLoud
}

// Reset returns the detector to its initial silent state.
func (d *Detector) Reset() {
	d.speaking = false
	d.quietFor = 0
	d.lastLoud = time.Time{}
}
