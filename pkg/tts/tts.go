// Package tts provides a unified interface for text-to-speech providers.
//
// The package fronts the Deepgram Aura speak API and supports mock and
// fallback-chain providers behind the same interface, enabling provider
// switching without changing caller code.
//
// Example usage:
//
//	provider, _ := tts.NewDeepgram(
//	    tts.WithAPIKey(os.Getenv("DEEPGRAM_API_KEY")),
//	    tts.WithVoice(tts.VoiceAsteria),
//	)
//	defer provider.Close()
//
//	result, _ := provider.Synthesize(ctx, "Hello world")
//	// result.Audio contains PCM16 audio bytes
package tts

import (
	"context"
	"time"
)

// Provider defines the TTS provider interface.
// All implementations must satisfy this interface for seamless provider switching.
type Provider interface {
	// Synthesize converts text to audio, returning the complete audio buffer.
	// Use this for short text where latency to first byte is less critical.
	Synthesize(ctx context.Context, text string) (*AudioResult, error)

	// Stream converts text to audio with streaming output for lowest latency.
	// Audio chunks are returned as they become available.
	Stream(ctx context.Context, text string) (AudioStream, error)

	// Health checks provider connectivity and API key validity.
	Health(ctx context.Context) error

	// Close releases any resources held by the provider.
	Close() error
}

// AudioStream represents a streaming audio response.
// Callers should read until Read returns nil, then call Close.
type AudioStream interface {
	// Read returns the next audio chunk.
	// Returns nil when the stream is complete (not an error).
	Read() ([]byte, error)

	// Close stops the stream and releases resources.
	Close() error

	// Format returns the audio format metadata.
	Format() AudioFormat
}

// AudioResult represents a complete audio synthesis result.
type AudioResult struct {
	// Audio contains the raw audio data in the specified format.
	Audio []byte

	// Format describes the audio encoding and sample rate.
	Format AudioFormat

	// Duration is the estimated audio playback duration.
	Duration time.Duration

	// CharCount is the number of characters synthesized.
	CharCount int

	// LatencyMs is the time to first byte in milliseconds.
	LatencyMs int64
}

// AudioFormat describes the audio encoding parameters.
type AudioFormat struct {
	// Encoding specifies the audio codec.
	Encoding Encoding

	// SampleRate in Hz (e.g., 24000, 16000).
	SampleRate int

	// Channels is 1 for mono, 2 for stereo.
	Channels int

	// BitDepth for PCM formats (e.g., 16 for PCM16).
	BitDepth int
}

// Encoding represents audio encoding types.
// These match Deepgram speak encoding options.
type Encoding string

const (
	// EncodingLinear16 is raw PCM16 (lowest latency, no decode step).
	EncodingLinear16 Encoding = "linear16"

	// EncodingMulaw is μ-law 8kHz (telephony).
	EncodingMulaw Encoding = "mulaw"

	// EncodingMP3 is MP3 compressed audio.
	EncodingMP3 Encoding = "mp3"

	// EncodingOpus is Ogg Opus compressed audio.
	EncodingOpus Encoding = "opus"
)
