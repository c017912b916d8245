// Package stt provides streaming speech-to-text over the Deepgram
// listen API.
//
// The Deepgram service is a pipeline stage: it consumes AudioInput frames,
// forwards the PCM over a websocket, and emits InterimTranscription and
// Transcription frames as results arrive.
package stt

import (
	"errors"
	"log/slog"
	"time"
)

// Sentinel errors for common error conditions.
var (
	// ErrNoAPIKey is returned when the API key is missing.
	ErrNoAPIKey = errors.New("stt: API key required")

	// ErrNotConnected is returned when writing before the socket is up.
	ErrNotConnected = errors.New("stt: not connected")
)

// Default connection parameters for the listen API.
const (
	DefaultListenURL  = "wss://api.deepgram.com/v1/listen"
	DefaultModel      = "nova-2"
	DefaultSampleRate = 16000

	// DefaultKeepAlive is how often a keepalive message is sent while
	// no audio is flowing; Deepgram closes idle sockets after ~10s.
	DefaultKeepAlive = 5 * time.Second
)

// Config holds streaming transcription configuration.
// Use functional options (WithXxx) to set these values.
type Config struct {
	// Provider credentials
	APIKey string

	// URL overrides the listen endpoint (self-hosted Deepgram).
	URL string

	// Transcription parameters
	Model      string
	Language   string
	SampleRate int

	// InterimResults enables partial hypotheses.
	InterimResults bool

	// KeepAlive is the idle keepalive interval.
	KeepAlive time.Duration

	// Observability
	Logger *slog.Logger
}

// Option is a functional option for configuring the service.
type Option func(*Config)

// WithAPIKey sets the API key.
func WithAPIKey(key string) Option {
	return func(c *Config) {
		c.APIKey = key
	}
}

// WithURL overrides the listen endpoint URL.
func WithURL(url string) Option {
	return func(c *Config) {
		if url != "" {
			c.URL = url
		}
	}
}

// WithModel sets the transcription model.
func WithModel(model string) Option {
	return func(c *Config) {
		c.Model = model
	}
}

// WithLanguage sets the transcription language.
func WithLanguage(lang string) Option {
	return func(c *Config) {
		c.Language = lang
	}
}

// WithSampleRate sets the inbound PCM sample rate.
func WithSampleRate(rate int) Option {
	return func(c *Config) {
		c.SampleRate = rate
	}
}

// WithInterimResults toggles partial hypotheses.
func WithInterimResults(enabled bool) Option {
	return func(c *Config) {
		c.InterimResults = enabled
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// DefaultConfig returns sensible default configuration.
func DefaultConfig() *Config {
	return &Config{
		URL:            DefaultListenURL,
		Model:          DefaultModel,
		SampleRate:     DefaultSampleRate,
		InterimResults: true,
		KeepAlive:      DefaultKeepAlive,
		Logger:         slog.Default(),
	}
}

// Apply applies functional options to the config.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return ErrNoAPIKey
	}
	return nil
}
