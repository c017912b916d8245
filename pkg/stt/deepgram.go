package stt

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/fastbot-dev/fastbot/pkg/audio"
	"github.com/fastbot-dev/fastbot/pkg/frame"
	"github.com/fastbot-dev/fastbot/pkg/pipeline"
)

// Deepgram streams PCM audio to the Deepgram listen websocket and emits
// transcription frames for the results.
type Deepgram struct {
	config *Config
	logger *slog.Logger

	emit pipeline.Emit

	// writeMu guards conn writes; Process and the keepalive loop both write.
	writeMu sync.Mutex
	conn    *websocket.Conn

	stop chan struct{}
	wg   sync.WaitGroup
}

// NewDeepgram creates the streaming transcription stage.
func NewDeepgram(opts ...Option) (*Deepgram, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Deepgram{
		config: cfg,
		logger: cfg.Logger.With("component", "stt.deepgram"),
		stop:   make(chan struct{}),
	}, nil
}

// Name implements pipeline.Processor.
func (d *Deepgram) Name() string { return "deepgram-stt" }

// Start implements pipeline.Processor: it dials the listen websocket and
// launches the result reader and keepalive loops.
func (d *Deepgram) Start(ctx context.Context, emit pipeline.Emit) error {
	d.emit = emit

	u, err := d.listenURL()
	if err != nil {
		return err
	}

	header := http.Header{}
	header.Set("Authorization", "Token "+d.config.APIKey)

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u, header)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("stt: dial %s: status %d: %w", d.config.URL, resp.StatusCode, err)
		}
		return fmt.Errorf("stt: dial %s: %w", d.config.URL, err)
	}
	d.conn = conn

	d.logger.Info("listen socket connected",
		"model", d.config.Model,
		"sample_rate", d.config.SampleRate,
	)

	d.wg.Add(2)
	go d.readLoop()
	go d.keepAliveLoop()
	return nil
}

// Process implements pipeline.Processor: audio goes to the socket,
// everything else passes through.
func (d *Deepgram) Process(ctx context.Context, f frame.Frame) error {
	switch f := f.(type) {
	case *frame.AudioInput:
		data := f.Data
		if f.SampleRate != d.config.SampleRate {
			data = audio.ResampleBytes(data, f.SampleRate, d.config.SampleRate)
		}
		if err := d.write(websocket.BinaryMessage, data); err != nil {
			return fmt.Errorf("stt: send audio: %w", err)
		}
		d.emit(f)

	default:
		d.emit(f)
	}
	return nil
}

// Stop implements pipeline.Processor: it finalizes the stream and closes
// the socket.
func (d *Deepgram) Stop() error {
	select {
	case <-d.stop:
		return nil
	default:
	}
	close(d.stop)

	if d.conn != nil {
		// Best effort: ask the server to flush pending results.
		_ = d.write(websocket.TextMessage, []byte(`{"type":"CloseStream"}`))
		_ = d.conn.Close()
	}

	d.wg.Wait()
	return nil
}

// listenURL builds the websocket URL with transcription parameters.
func (d *Deepgram) listenURL() (string, error) {
	u, err := url.Parse(d.config.URL)
	if err != nil {
		return "", fmt.Errorf("stt: parse URL: %w", err)
	}

	q := u.Query()
	q.Set("model", d.config.Model)
	q.Set("encoding", "linear16")
	q.Set("sample_rate", strconv.Itoa(d.config.SampleRate))
	q.Set("channels", "1")
	q.Set("smart_format", "true")
	q.Set("interim_results", strconv.FormatBool(d.config.InterimResults))
	if d.config.Language != "" {
		q.Set("language", d.config.Language)
	}
	u.RawQuery = q.Encode()

	return u.String(), nil
}

func (d *Deepgram) write(messageType int, data []byte) error {
	if d.conn == nil {
		return ErrNotConnected
	}
	d.writeMu.Lock()
	defer d.writeMu.Unlock()
	return d.conn.WriteMessage(messageType, data)
}

// readLoop parses listen results and emits transcription frames.
func (d *Deepgram) readLoop() {
	defer d.wg.Done()

	for {
		_, data, err := d.conn.ReadMessage()
		if err != nil {
			select {
			case <-d.stop:
			default:
				d.logger.Warn("listen socket closed", "error", err)
			}
			return
		}

		res, err := parseListenResponse(data)
		if err != nil {
			d.logger.Debug("unparseable listen message", "error", err)
			continue
		}
		if res == nil || res.Transcript == "" {
			continue
		}

		if res.IsFinal {
			d.emit(&frame.Transcription{
				Text:       res.Transcript,
				Confidence: res.Confidence,
				Timestamp:  time.Now(),
			})
		} else {
			d.emit(&frame.InterimTranscription{
				Text:       res.Transcript,
				Confidence: res.Confidence,
				Timestamp:  time.Now(),
			})
		}
	}
}

// keepAliveLoop keeps the socket open across silent stretches.
func (d *Deepgram) keepAliveLoop() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.config.KeepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-d.stop:
			return
		case <-ticker.C:
			if err := d.write(websocket.TextMessage, []byte(`{"type":"KeepAlive"}`)); err != nil {
				return
			}
		}
	}
}

// listenResult is one parsed transcription result.
type listenResult struct {
	Transcript string
	Confidence float64
	IsFinal    bool
}

// listenResponse mirrors the wire shape of a listen Results message.
type listenResponse struct {
	Type        string `json:"type"`
	IsFinal     bool   `json:"is_final"`
	SpeechFinal bool   `json:"speech_final"`
	Channel     struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
		} `json:"alternatives"`
	} `json:"channel"`
}

// parseListenResponse extracts the top transcription alternative.
// Non-result messages (metadata, utterance events) return nil.
func parseListenResponse(data []byte) (*listenResult, error) {
	var resp listenResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, err
	}

	if resp.Type != "Results" || len(resp.Channel.Alternatives) == 0 {
		return nil, nil
	}

	alt := resp.Channel.Alternatives[0]
	return &listenResult{
		Transcript: alt.Transcript,
		Confidence: alt.Confidence,
		IsFinal:    resp.IsFinal,
	}, nil
}

// Verify Deepgram implements pipeline.Processor at compile time.
var _ pipeline.Processor = (*Deepgram)(nil)
