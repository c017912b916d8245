package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	deepgramSpeakURL = "https://api.deepgram.com/v1/speak"
	providerDeepgram = "deepgram"
)

// Deepgram Aura voice models.
const (
	// VoiceAsteria is a warm female US English voice (default).
	VoiceAsteria = "aura-asteria-en"

	// VoiceLuna is a soft female US English voice.
	VoiceLuna = "aura-luna-en"

	// VoiceOrion is a deep male US English voice.
	VoiceOrion = "aura-orion-en"

	// VoiceArcas is a calm male US English voice.
	VoiceArcas = "aura-arcas-en"
)

// Deepgram implements Provider for the Deepgram Aura speak API.
type Deepgram struct {
	config  *Config
	client  *http.Client
	logger  *slog.Logger
	baseURL string
}

// NewDeepgram creates a new Deepgram TTS provider.
func NewDeepgram(opts ...Option) (*Deepgram, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)

	if err := cfg.ValidateWithVoice(); err != nil {
		return nil, err
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = deepgramSpeakURL
	}

	return &Deepgram{
		config:  cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		logger:  cfg.Logger.With("component", "tts.deepgram"),
		baseURL: baseURL,
	}, nil
}

// Synthesize converts text to audio, returning the complete audio buffer.
func (d *Deepgram) Synthesize(ctx context.Context, text string) (*AudioResult, error) {
	start := time.Now()

	req, err := d.buildRequest(ctx, text)
	if err != nil {
		return nil, err
	}

	resp, err := d.doWithRetry(ctx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	latency := time.Since(start).Milliseconds()

	if resp.StatusCode != http.StatusOK {
		return nil, d.parseError(resp)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, WrapError(providerDeepgram, fmt.Errorf("read response: %w", err))
	}

	d.logger.Debug("synthesized audio",
		"chars", len(text),
		"bytes", len(audio),
		"latency_ms", latency,
		"voice", d.config.Voice,
	)

	return &AudioResult{
		Audio:     audio,
		Format:    d.outputFormat(),
		CharCount: len(text),
		LatencyMs: latency,
		Duration:  d.estimateDuration(len(audio)),
	}, nil
}

// Stream converts text to audio with streaming output for lowest latency.
// The speak API streams the audio body, so chunks arrive before synthesis
// of the full text has finished.
func (d *Deepgram) Stream(ctx context.Context, text string) (AudioStream, error) {
	req, err := d.buildRequest(ctx, text)
	if err != nil {
		return nil, err
	}

	// Use stream timeout for streaming requests
	client := &http.Client{Timeout: d.config.StreamTimeout}

	resp, err := client.Do(req)
	if err != nil {
		return nil, WrapError(providerDeepgram, fmt.Errorf("stream request: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, d.parseError(resp)
	}

	return &httpStream{
		body:   resp.Body,
		format: d.outputFormat(),
	}, nil
}

// Health checks API connectivity and API key validity.
func (d *Deepgram) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", d.authURL(), nil)
	if err != nil {
		return WrapError(providerDeepgram, err)
	}

	req.Header.Set("Authorization", "Token "+d.config.APIKey)

	resp, err := d.client.Do(req)
	if err != nil {
		return WrapError(providerDeepgram, fmt.Errorf("health check: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return d.parseError(resp)
	}

	return nil
}

// Close releases resources held by the provider.
func (d *Deepgram) Close() error {
	d.client.CloseIdleConnections()
	return nil
}

// Voice returns the configured voice model.
func (d *Deepgram) Voice() string {
	return d.config.Voice
}

// buildRequest constructs the speak request for the given text.
func (d *Deepgram) buildRequest(ctx context.Context, text string) (*http.Request, error) {
	u, err := d.speakURL()
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return nil, WrapError(providerDeepgram, fmt.Errorf("marshal payload: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, "POST", u, bytes.NewReader(body))
	if err != nil {
		return nil, WrapError(providerDeepgram, fmt.Errorf("create request: %w", err))
	}

	req.Header.Set("Authorization", "Token "+d.config.APIKey)
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// speakURL builds the endpoint URL with voice and format parameters.
func (d *Deepgram) speakURL() (string, error) {
	u, err := url.Parse(d.baseURL)
	if err != nil {
		return "", WrapError(providerDeepgram, fmt.Errorf("parse base URL: %w", err))
	}

	q := u.Query()
	q.Set("model", d.config.Voice)
	q.Set("encoding", string(d.config.OutputEncoding))
	if d.config.OutputEncoding == EncodingLinear16 {
		q.Set("sample_rate", strconv.Itoa(d.config.SampleRate))
		// Raw PCM, no WAV header.
		q.Set("container", "none")
	}
	u.RawQuery = q.Encode()

	return u.String(), nil
}

// authURL derives the token check endpoint from the speak base URL.
func (d *Deepgram) authURL() string {
	return strings.Replace(d.baseURL, "/speak", "/auth/token", 1)
}

// doWithRetry performs the request with retry logic.
func (d *Deepgram) doWithRetry(ctx context.Context, req *http.Request) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= d.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(d.config.RetryDelay * time.Duration(attempt)):
			}
		}

		// The body must be re-readable across attempts.
		attemptReq := req.Clone(ctx)
		if req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, WrapError(providerDeepgram, err)
			}
			attemptReq.Body = body
		}

		resp, err := d.client.Do(attemptReq)
		if err != nil {
			lastErr = WrapError(providerDeepgram, err)
			continue
		}

		// Check if retryable
		if resp.StatusCode == 429 || resp.StatusCode >= 500 {
			lastErr = d.parseError(resp)
			d.logger.Warn("retrying request",
				"attempt", attempt+1,
				"status", resp.StatusCode,
			)
			continue
		}

		return resp, nil
	}

	return nil, lastErr
}

// parseError reads and parses an error response.
func (d *Deepgram) parseError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	var errResp struct {
		ErrCode string `json:"err_code"`
		ErrMsg  string `json:"err_msg"`
	}

	message := string(body)
	code := ""
	if json.Unmarshal(body, &errResp) == nil && errResp.ErrMsg != "" {
		message = errResp.ErrMsg
		code = errResp.ErrCode
	}

	return &APIError{
		StatusCode: resp.StatusCode,
		Message:    message,
		Code:       code,
		Provider:   providerDeepgram,
	}
}

// outputFormat returns the audio format configuration.
func (d *Deepgram) outputFormat() AudioFormat {
	return AudioFormat{
		Encoding:   d.config.OutputEncoding,
		SampleRate: d.config.SampleRate,
		Channels:   1,
		BitDepth:   16,
	}
}

// estimateDuration estimates audio duration from byte count.
func (d *Deepgram) estimateDuration(bytes int) time.Duration {
	// PCM16 = 2 bytes per sample
	samples := bytes / 2
	seconds := float64(samples) / float64(d.config.SampleRate)
	return time.Duration(seconds * float64(time.Second))
}

// Verify Deepgram implements Provider at compile time.
var _ Provider = (*Deepgram)(nil)
