// Package web serves the optional debug HTTP endpoints: a health check and
// the pipeline latency numbers collected so far.
package web

import (
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"

	"github.com/fastbot-dev/fastbot/pkg/pipeline"
)

// Server exposes /healthz and /metrics while the bot runs.
type Server struct {
	app       *fiber.App
	addr      string
	collector *pipeline.Collector
	logger    *slog.Logger
}

// NewServer builds the debug server. It does not listen until Start.
func NewServer(addr string, collector *pipeline.Collector) *Server {
	s := &Server{
		addr:      addr,
		collector: collector,
		logger:    slog.Default().With("component", "web"),
	}

	app := fiber.New(fiber.Config{
		AppName:               "fastbot debug",
		DisableStartupMessage: true,
	})
	app.Use(cors.New())

	app.Get("/healthz", s.handleHealth)
	app.Get("/metrics", s.handleMetrics)

	s.app = app
	return s
}

// Start listens in the background. Listen errors are logged, not fatal;
// the debug server must never take the bot down.
func (s *Server) Start() {
	go func() {
		s.logger.Info("debug server listening", "addr", s.addr)
		if err := s.app.Listen(s.addr); err != nil {
			s.logger.Error("debug server stopped", "error", err)
		}
	}()
}

// Stop shuts the server down gracefully.
func (s *Server) Stop() error {
	return s.app.Shutdown()
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

func (s *Server) handleMetrics(c *fiber.Ctx) error {
	avg := s.collector.Average()
	return c.JSON(fiber.Map{
		"completed_turns":   s.collector.CompletedTurns(),
		"avg_stt_ms":        ms(avg.STTLatency),
		"avg_llm_ttfb_ms":   ms(avg.LLMFirstToken),
		"avg_tts_ttfb_ms":   ms(avg.TTSFirstAudio),
		"avg_total_ms":      ms(avg.TotalLatency),
		"formatted_latency": avg.FormatLatency(),
	})
}

func ms(d time.Duration) int64 {
	return d.Milliseconds()
}
