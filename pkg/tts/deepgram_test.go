package tts_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/fastbot-dev/fastbot/pkg/tts"
)

// fakeSpeak runs an httptest server imitating the Deepgram speak endpoint.
// It records the last request and replies with the configured audio bytes.
type fakeSpeak struct {
	server *httptest.Server

	audio  []byte
	status int

	lastAuth  string
	lastQuery map[string]string
	lastText  string
}

func newFakeSpeak(audio []byte) *fakeSpeak {
	f := &fakeSpeak{audio: audio, status: http.StatusOK}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.lastAuth = r.Header.Get("Authorization")
		f.lastQuery = map[string]string{}
		for k, v := range r.URL.Query() {
			f.lastQuery[k] = v[0]
		}

		body, _ := io.ReadAll(r.Body)
		var payload struct {
			Text string `json:"text"`
		}
		_ = json.Unmarshal(body, &payload)
		f.lastText = payload.Text

		if f.status != http.StatusOK {
			w.WriteHeader(f.status)
			_, _ = w.Write([]byte(`{"err_code":"INVALID_AUTH","err_msg":"invalid credentials"}`))
			return
		}
		_, _ = w.Write(f.audio)
	}))
	return f
}

func (f *fakeSpeak) Close() { f.server.Close() }

func TestNewDeepgramValidation(t *testing.T) {
	t.Run("missing API key", func(t *testing.T) {
		_, err := tts.NewDeepgram()
		if !errors.Is(err, tts.ErrNoAPIKey) {
			t.Errorf("expected ErrNoAPIKey, got %v", err)
		}
	})

	t.Run("missing voice", func(t *testing.T) {
		_, err := tts.NewDeepgram(
			tts.WithAPIKey("test-key"),
			tts.WithVoice(""),
		)
		if !errors.Is(err, tts.ErrNoVoice) {
			t.Errorf("expected ErrNoVoice, got %v", err)
		}
	})

	t.Run("defaults applied", func(t *testing.T) {
		d, err := tts.NewDeepgram(tts.WithAPIKey("test-key"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if d.Voice() != tts.VoiceAsteria {
			t.Errorf("expected default voice %s, got %s", tts.VoiceAsteria, d.Voice())
		}
	})
}

func TestDeepgramSynthesize(t *testing.T) {
	audio := make([]byte, 4800) // 100ms of 24kHz PCM16
	fake := newFakeSpeak(audio)
	defer fake.Close()

	d, err := tts.NewDeepgram(
		tts.WithAPIKey("secret-key"),
		tts.WithBaseURL(fake.server.URL),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer d.Close()

	result, err := d.Synthesize(context.Background(), "Hello there.")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(result.Audio) != len(audio) {
		t.Errorf("expected %d audio bytes, got %d", len(audio), len(result.Audio))
	}
	if result.CharCount != 12 {
		t.Errorf("expected 12 chars, got %d", result.CharCount)
	}
	if result.Format.SampleRate != 24000 {
		t.Errorf("expected 24000 sample rate, got %d", result.Format.SampleRate)
	}

	if fake.lastAuth != "Token secret-key" {
		t.Errorf("unexpected auth header: %q", fake.lastAuth)
	}
	if fake.lastText != "Hello there." {
		t.Errorf("unexpected payload text: %q", fake.lastText)
	}

	want := map[string]string{
		"model":       "aura-asteria-en",
		"encoding":    "linear16",
		"sample_rate": "24000",
		"container":   "none",
	}
	for k, v := range want {
		if fake.lastQuery[k] != v {
			t.Errorf("query %s: expected %q, got %q", k, v, fake.lastQuery[k])
		}
	}
}

func TestDeepgramStream(t *testing.T) {
	audio := make([]byte, 10000)
	for i := range audio {
		audio[i] = byte(i % 251)
	}
	fake := newFakeSpeak(audio)
	defer fake.Close()

	d, err := tts.NewDeepgram(
		tts.WithAPIKey("secret-key"),
		tts.WithBaseURL(fake.server.URL),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer d.Close()

	stream, err := d.Stream(context.Background(), "Stream this.")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer stream.Close()

	var got []byte
	for {
		chunk, err := stream.Read()
		if err != nil {
			t.Fatalf("read error: %v", err)
		}
		if chunk == nil {
			break
		}
		got = append(got, chunk...)
	}

	if len(got) != len(audio) {
		t.Fatalf("expected %d bytes, got %d", len(audio), len(got))
	}
	for i := range got {
		if got[i] != audio[i] {
			t.Fatalf("audio mismatch at byte %d", i)
		}
	}
}

func TestDeepgramAPIError(t *testing.T) {
	fake := newFakeSpeak(nil)
	fake.status = http.StatusUnauthorized
	defer fake.Close()

	d, err := tts.NewDeepgram(
		tts.WithAPIKey("bad-key"),
		tts.WithBaseURL(fake.server.URL),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer d.Close()

	_, err = d.Synthesize(context.Background(), "Hello")
	if err == nil {
		t.Fatal("expected error")
	}

	var apiErr *tts.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %T", err)
	}
	if !apiErr.IsUnauthorized() {
		t.Errorf("expected IsUnauthorized, status %d", apiErr.StatusCode)
	}
	if apiErr.Code != "INVALID_AUTH" {
		t.Errorf("expected code INVALID_AUTH, got %q", apiErr.Code)
	}
	if apiErr.Message != "invalid credentials" {
		t.Errorf("unexpected message: %q", apiErr.Message)
	}
}

func TestDeepgramRetriesServerErrors(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write(make([]byte, 100))
	}))
	defer server.Close()

	d, err := tts.NewDeepgram(
		tts.WithAPIKey("test-key"),
		tts.WithBaseURL(server.URL),
		tts.WithRetry(2, 0),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer d.Close()

	result, err := d.Synthesize(context.Background(), "Retry me")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Audio) != 100 {
		t.Errorf("expected 100 bytes, got %d", len(result.Audio))
	}
	if attempts.Load() != 2 {
		t.Errorf("expected 2 attempts, got %d", attempts.Load())
	}
}
