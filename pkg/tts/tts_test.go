package tts_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fastbot-dev/fastbot/pkg/tts"
)

func TestMockProvider(t *testing.T) {
	mock := tts.NewMock()
	ctx := context.Background()

	t.Run("Synthesize returns audio", func(t *testing.T) {
		result, err := mock.Synthesize(ctx, "Hello world")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(result.Audio) == 0 {
			t.Error("expected audio data")
		}
		if result.CharCount != 11 {
			t.Errorf("expected 11 chars, got %d", result.CharCount)
		}
		if result.Format.SampleRate != 24000 {
			t.Errorf("expected 24000 sample rate, got %d", result.Format.SampleRate)
		}
	})

	t.Run("Stream returns audio stream", func(t *testing.T) {
		stream, err := mock.Stream(ctx, "Test stream")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		defer stream.Close()

		chunk, err := stream.Read()
		if err != nil {
			t.Fatalf("read error: %v", err)
		}
		if len(chunk) == 0 {
			t.Error("expected audio chunk")
		}
	})

	t.Run("Health returns nil", func(t *testing.T) {
		if err := mock.Health(ctx); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("Calls are tracked", func(t *testing.T) {
		calls := mock.Calls()
		if len(calls) != 3 {
			t.Errorf("expected 3 calls, got %d", len(calls))
		}
		if mock.CallCount("Synthesize") != 1 {
			t.Errorf("expected 1 Synthesize call, got %d", mock.CallCount("Synthesize"))
		}
	})

	t.Run("Reset clears calls", func(t *testing.T) {
		mock.Reset()
		if len(mock.Calls()) != 0 {
			t.Error("expected calls to be cleared")
		}
	})
}

func TestMockWithError(t *testing.T) {
	testErr := errors.New("test error")
	mock := tts.WithError(testErr)
	ctx := context.Background()

	t.Run("Synthesize returns error", func(t *testing.T) {
		_, err := mock.Synthesize(ctx, "Hello")
		if err == nil {
			t.Error("expected error")
		}
		if !errors.Is(err, testErr) {
			t.Errorf("expected test error, got %v", err)
		}
	})

	t.Run("Stream returns error", func(t *testing.T) {
		_, err := mock.Stream(ctx, "Hello")
		if err == nil {
			t.Error("expected error")
		}
	})

	t.Run("Health returns error", func(t *testing.T) {
		err := mock.Health(ctx)
		if err == nil {
			t.Error("expected error")
		}
	})
}

func TestMockWithLatency(t *testing.T) {
	mock := tts.NewMock()
	mock = tts.WithLatency(mock, 50*time.Millisecond)
	ctx := context.Background()

	t.Run("Synthesize has latency", func(t *testing.T) {
		start := time.Now()
		_, err := mock.Synthesize(ctx, "Hello")
		elapsed := time.Since(start)

		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if elapsed < 50*time.Millisecond {
			t.Errorf("expected at least 50ms latency, got %v", elapsed)
		}
	})

	t.Run("Context cancellation works", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()

		_, err := mock.Synthesize(ctx, "Hello")
		if err == nil {
			t.Error("expected context deadline error")
		}
	})
}

func TestFunctionalOptions(t *testing.T) {
	cfg := tts.DefaultConfig()
	cfg.Apply(
		tts.WithVoice(tts.VoiceOrion),
		tts.WithEncoding(tts.EncodingMP3),
		tts.WithSampleRate(16000),
		tts.WithTimeout(5*time.Second),
	)

	if cfg.Voice != "aura-orion-en" {
		t.Errorf("expected aura-orion-en, got %s", cfg.Voice)
	}
	if cfg.OutputEncoding != tts.EncodingMP3 {
		t.Errorf("expected MP3 encoding, got %s", cfg.OutputEncoding)
	}
	if cfg.SampleRate != 16000 {
		t.Errorf("expected 16000, got %d", cfg.SampleRate)
	}
	if cfg.Timeout != 5*time.Second {
		t.Errorf("expected timeout 5s, got %v", cfg.Timeout)
	}
}

func TestConfigValidation(t *testing.T) {
	t.Run("Validate requires API key", func(t *testing.T) {
		cfg := tts.DefaultConfig()
		if err := cfg.Validate(); err != tts.ErrNoAPIKey {
			t.Errorf("expected ErrNoAPIKey, got %v", err)
		}
	})

	t.Run("Validate passes with API key", func(t *testing.T) {
		cfg := tts.DefaultConfig()
		cfg.APIKey = "test-key"
		if err := cfg.Validate(); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("ValidateWithVoice requires voice", func(t *testing.T) {
		cfg := tts.DefaultConfig()
		cfg.APIKey = "test-key"
		cfg.Voice = ""
		if err := cfg.ValidateWithVoice(); err != tts.ErrNoVoice {
			t.Errorf("expected ErrNoVoice, got %v", err)
		}
	})

	t.Run("ValidateWithVoice passes with defaults", func(t *testing.T) {
		cfg := tts.DefaultConfig()
		cfg.APIKey = "test-key"
		if err := cfg.ValidateWithVoice(); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})
}

func TestAPIError(t *testing.T) {
	t.Run("IsRateLimited", func(t *testing.T) {
		err := &tts.APIError{StatusCode: 429, Message: "rate limited"}
		if !err.IsRateLimited() {
			t.Error("expected IsRateLimited true")
		}
		if err.IsUnauthorized() {
			t.Error("expected IsUnauthorized false")
		}
	})

	t.Run("IsUnauthorized", func(t *testing.T) {
		err := &tts.APIError{StatusCode: 401, Message: "unauthorized"}
		if !err.IsUnauthorized() {
			t.Error("expected IsUnauthorized true")
		}
	})

	t.Run("IsServerError", func(t *testing.T) {
		for _, code := range []int{500, 502, 503, 504} {
			err := &tts.APIError{StatusCode: code}
			if !err.IsServerError() {
				t.Errorf("expected IsServerError true for %d", code)
			}
			if !err.IsRetryable() {
				t.Errorf("expected IsRetryable true for %d", code)
			}
		}
	})

	t.Run("Error message format", func(t *testing.T) {
		err := &tts.APIError{
			StatusCode: 400,
			Message:    "bad request",
			Code:       "INVALID_QUERY_PARAMETER",
			Provider:   "deepgram",
		}
		msg := err.Error()
		if msg != "tts [deepgram]: API error 400 (INVALID_QUERY_PARAMETER): bad request" {
			t.Errorf("unexpected error message: %s", msg)
		}
	})
}

func TestChain(t *testing.T) {
	ctx := context.Background()

	t.Run("NewChain requires providers", func(t *testing.T) {
		_, err := tts.NewChain()
		if err != tts.ErrProviderUnavailable {
			t.Errorf("expected ErrProviderUnavailable, got %v", err)
		}
	})

	t.Run("First provider succeeds", func(t *testing.T) {
		mock1 := tts.NewMock()
		mock2 := tts.NewMock()

		chain, err := tts.NewChain(mock1, mock2)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		defer chain.Close()

		_, err = chain.Synthesize(ctx, "Hello")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		// Only first provider should be called
		if mock1.CallCount("Synthesize") != 1 {
			t.Error("expected first provider to be called")
		}
		if mock2.CallCount("Synthesize") != 0 {
			t.Error("expected second provider not to be called")
		}
	})

	t.Run("Fallback on failure", func(t *testing.T) {
		failMock := tts.WithError(errors.New("provider 1 failed"))
		successMock := tts.NewMock()

		chain, err := tts.NewChain(failMock, successMock)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		defer chain.Close()

		result, err := chain.Synthesize(ctx, "Hello")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result == nil {
			t.Error("expected result from fallback provider")
		}
	})

	t.Run("All providers fail", func(t *testing.T) {
		fail1 := tts.WithError(errors.New("fail 1"))
		fail2 := tts.WithError(errors.New("fail 2"))

		chain, err := tts.NewChain(fail1, fail2)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		defer chain.Close()

		_, err = chain.Synthesize(ctx, "Hello")
		if err == nil {
			t.Error("expected error when all providers fail")
		}
	})

	t.Run("Health checks all providers", func(t *testing.T) {
		mock1 := tts.NewMock()
		mock2 := tts.NewMock()

		chain, err := tts.NewChain(mock1, mock2)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		err = chain.Health(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})
}

func TestProviderError(t *testing.T) {
	inner := errors.New("connection failed")
	err := tts.WrapError("deepgram", inner)

	if err == nil {
		t.Fatal("expected error")
	}

	if err.Error() != "tts [deepgram]: connection failed" {
		t.Errorf("unexpected error message: %s", err.Error())
	}

	// Unwrap should return inner error
	var pe *tts.ProviderError
	if !errors.As(err, &pe) {
		t.Error("expected ProviderError")
	}
	if pe.Provider != "deepgram" {
		t.Errorf("expected provider deepgram, got %s", pe.Provider)
	}
}
