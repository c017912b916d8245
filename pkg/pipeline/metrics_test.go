package pipeline_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/fastbot-dev/fastbot/pkg/pipeline"
)

func completeTurn(c *pipeline.Collector) {
	c.MarkSpeechEnd()
	c.MarkTranscript()
	c.MarkFirstToken()
	c.MarkFirstAudio()
	c.MarkResponseDone()
}

func TestCollectorTurnLatencies(t *testing.T) {
	c := pipeline.NewCollector()

	c.MarkSpeechEndAt(time.Now().Add(-100 * time.Millisecond))
	c.MarkTranscript()
	c.MarkFirstToken()
	c.MarkFirstAudio()
	c.MarkResponseDone()

	cur := c.Current()
	if cur.STTLatency < 100*time.Millisecond {
		t.Errorf("expected STT latency >= 100ms, got %v", cur.STTLatency)
	}
	if cur.LLMFirstToken < cur.STTLatency {
		t.Errorf("LLM first token before transcript: %v < %v", cur.LLMFirstToken, cur.STTLatency)
	}
	if cur.TotalLatency < cur.TTSFirstAudio {
		t.Errorf("total latency below TTS first audio: %v < %v", cur.TotalLatency, cur.TTSFirstAudio)
	}
	if c.CompletedTurns() != 1 {
		t.Errorf("expected 1 completed turn, got %d", c.CompletedTurns())
	}
}

func TestCollectorFirstMarksAreSticky(t *testing.T) {
	c := pipeline.NewCollector()
	c.MarkSpeechEnd()

	c.MarkFirstToken()
	first := c.Current().FirstTokenTime

	time.Sleep(5 * time.Millisecond)
	c.MarkFirstToken()

	if !c.Current().FirstTokenTime.Equal(first) {
		t.Error("first token timestamp moved on repeat mark")
	}
}

func TestCollectorReportOnlyInitial(t *testing.T) {
	c := pipeline.NewCollector()
	c.SetReportOnlyInitial(true)

	var reports atomic.Int32
	c.OnReport(func(pipeline.TurnMetrics) {
		reports.Add(1)
	})

	completeTurn(c)
	// Reports are delivered asynchronously.
	time.Sleep(50 * time.Millisecond)
	firstTurn := reports.Load()

	completeTurn(c)
	completeTurn(c)
	time.Sleep(50 * time.Millisecond)

	if reports.Load() != firstTurn {
		t.Errorf("expected no reports after first turn, got %d extra",
			reports.Load()-firstTurn)
	}
}

func TestCollectorAverage(t *testing.T) {
	c := pipeline.NewCollector()

	for i := 0; i < 3; i++ {
		c.MarkSpeechEndAt(time.Now().Add(-50 * time.Millisecond))
		c.MarkTranscript()
		c.MarkResponseDone()
	}

	avg := c.Average()
	if avg.STTLatency < 50*time.Millisecond {
		t.Errorf("expected average STT latency >= 50ms, got %v", avg.STTLatency)
	}
}

func TestFormatLatency(t *testing.T) {
	m := pipeline.TurnMetrics{}
	s := m.FormatLatency()
	if s != "---ms STT | ---ms LLM | ---ms TTS | ---ms TOTAL" {
		t.Errorf("unexpected format: %s", s)
	}
}
