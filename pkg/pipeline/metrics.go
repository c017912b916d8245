package pipeline

import (
	"sync"
	"time"
)

// TurnMetrics tracks latency at each stage of one conversation turn.
// All durations are measured from the moment speech ends.
type TurnMetrics struct {
	// Timestamps for key events
	SpeechEndTime    time.Time // When VAD detected end of speech
	TranscriptTime   time.Time // When STT completed transcription
	FirstTokenTime   time.Time // When the LLM generated its first token
	FirstAudioTime   time.Time // When TTS generated its first audio chunk
	ResponseDoneTime time.Time // When the response was fully delivered

	// Computed latencies (from speech end)
	STTLatency    time.Duration // Time to complete transcription
	LLMFirstToken time.Duration // Time to first LLM token
	TTSFirstAudio time.Duration // Time to first audio chunk
	TotalLatency  time.Duration // Total end-to-end latency
}

// Collector accumulates latency metrics across conversation turns.
// It is goroutine-safe and can be marked from multiple stages.
type Collector struct {
	mu      sync.Mutex
	current TurnMetrics
	history []TurnMetrics

	// reportOnlyInitial suppresses reports after the first complete turn.
	reportOnlyInitial bool
	completedTurns    int

	onReport func(TurnMetrics)
}

// NewCollector creates a metrics collector.
func NewCollector() *Collector {
	return &Collector{
		history: make([]TurnMetrics, 0, 100),
	}
}

// SetReportOnlyInitial limits reports to the first completed turn.
func (c *Collector) SetReportOnlyInitial(v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reportOnlyInitial = v
}

// OnReport sets a callback fired when a turn's metrics update.
func (c *Collector) OnReport(fn func(TurnMetrics)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onReport = fn
}

// MarkSpeechEnd records that the user stopped speaking now.
func (c *Collector) MarkSpeechEnd() {
	c.MarkSpeechEndAt(time.Now())
}

// MarkSpeechEndAt records when the user stopped speaking. This is the
// reference point for all latency measurements; it resets the turn.
func (c *Collector) MarkSpeechEndAt(at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = TurnMetrics{SpeechEndTime: at}
}

// MarkTranscript records when transcription completed.
func (c *Collector) MarkTranscript() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current.TranscriptTime = time.Now()
	if !c.current.SpeechEndTime.IsZero() {
		c.current.STTLatency = c.current.TranscriptTime.Sub(c.current.SpeechEndTime)
	}
	c.notify()
}

// MarkFirstToken records when the LLM generated its first token.
func (c *Collector) MarkFirstToken() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current.FirstTokenTime.IsZero() {
		c.current.FirstTokenTime = time.Now()
		if !c.current.SpeechEndTime.IsZero() {
			c.current.LLMFirstToken = c.current.FirstTokenTime.Sub(c.current.SpeechEndTime)
		}
		c.notify()
	}
}

// MarkFirstAudio records when the first audio chunk was generated.
func (c *Collector) MarkFirstAudio() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current.FirstAudioTime.IsZero() {
		c.current.FirstAudioTime = time.Now()
		if !c.current.SpeechEndTime.IsZero() {
			c.current.TTSFirstAudio = c.current.FirstAudioTime.Sub(c.current.SpeechEndTime)
		}
		c.notify()
	}
}

// MarkResponseDone records when the response was fully delivered and
// archives the turn.
func (c *Collector) MarkResponseDone() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current.ResponseDoneTime = time.Now()
	if !c.current.SpeechEndTime.IsZero() {
		c.current.TotalLatency = c.current.ResponseDoneTime.Sub(c.current.SpeechEndTime)
	}
	c.history = append(c.history, c.current)
	if len(c.history) > 100 {
		c.history = c.history[1:]
	}
	c.notify()
	c.completedTurns++
}

// Current returns the in-progress turn metrics.
func (c *Collector) Current() TurnMetrics {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// CompletedTurns returns the number of archived turns.
func (c *Collector) CompletedTurns() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.completedTurns
}

// Average returns average metrics over archived turns.
func (c *Collector) Average() TurnMetrics {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.history) == 0 {
		return TurnMetrics{}
	}

	var avg TurnMetrics
	for _, h := range c.history {
		avg.STTLatency += h.STTLatency
		avg.LLMFirstToken += h.LLMFirstToken
		avg.TTSFirstAudio += h.TTSFirstAudio
		avg.TotalLatency += h.TotalLatency
	}

	n := time.Duration(len(c.history))
	avg.STTLatency /= n
	avg.LLMFirstToken /= n
	avg.TTSFirstAudio /= n
	avg.TotalLatency /= n

	return avg
}

// notify calls the report callback if set.
// Must be called with the mutex held.
func (c *Collector) notify() {
	if c.onReport == nil {
		return
	}
	if c.reportOnlyInitial && c.completedTurns > 0 {
		return
	}
	// Copy to avoid races
	metrics := c.current
	go c.onReport(metrics)
}

// FormatLatency returns a formatted string of the turn's latencies.
func (m *TurnMetrics) FormatLatency() string {
	return formatDuration(m.STTLatency) + " STT | " +
		formatDuration(m.LLMFirstToken) + " LLM | " +
		formatDuration(m.TTSFirstAudio) + " TTS | " +
		formatDuration(m.TotalLatency) + " TOTAL"
}

func formatDuration(d time.Duration) string {
	if d == 0 {
		return "---ms"
	}
	return d.Round(time.Millisecond).String()
}
