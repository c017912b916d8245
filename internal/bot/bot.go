// Package bot assembles the voice pipeline from launch settings and runs it
// against a LiveKit room until the session ends.
package bot

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/fastbot-dev/fastbot/internal/log"
	"github.com/fastbot-dev/fastbot/internal/settings"
	"github.com/fastbot-dev/fastbot/internal/web"
	"github.com/fastbot-dev/fastbot/pkg/frame"
	"github.com/fastbot-dev/fastbot/pkg/llm"
	"github.com/fastbot-dev/fastbot/pkg/pipeline"
	"github.com/fastbot-dev/fastbot/pkg/stt"
	"github.com/fastbot-dev/fastbot/pkg/transport"
	"github.com/fastbot-dev/fastbot/pkg/tts"
)

// Bot is one voice session: a room connection plus the pipeline that
// services it.
type Bot struct {
	id       string
	settings *settings.Settings
	params   pipeline.Params

	transport  *transport.Transport
	transcript *frame.Transcript
	collector  *pipeline.Collector

	llmProvider llm.Provider
	ttsProvider tts.Provider

	web *web.Server
}

// New builds a bot from validated settings. Providers are constructed here
// so configuration errors surface before the room is joined.
func New(s *settings.Settings) (*Bot, error) {
	b := &Bot{
		id:       uuid.NewString(),
		settings: s,
		params: pipeline.Params{
			AllowInterruptions:    true,
			EnableMetrics:         true,
			ReportOnlyInitialTTFB: true,
		},
		transcript: frame.NewTranscript(frame.NewSystemMessage(s.Prompt)),
		collector:  pipeline.NewCollector(),
	}

	var err error
	b.llmProvider, err = llm.NewOpenAI(
		llm.WithAPIKey(s.OpenAIAPIKey),
		llm.WithModel(s.OpenAIModel),
		llm.WithBaseURL(s.OpenAIBaseURL),
	)
	if err != nil {
		return nil, fmt.Errorf("bot: llm provider: %w", err)
	}

	b.ttsProvider, err = newTTSProvider(s)
	if err != nil {
		return nil, fmt.Errorf("bot: tts provider: %w", err)
	}

	// Interruption frames originate in the transport input, so the task
	// setting has to reach it.
	tparams := transport.DefaultParams()
	tparams.InterruptionsAllowed = b.params.AllowInterruptions

	b.transport, err = transport.New(transport.Config{
		RoomURL: s.RoomURL,
		Token:   s.RoomToken,
		BotName: s.BotName,
		Params:  tparams,
		Logger:  log.L(),
	})
	if err != nil {
		return nil, fmt.Errorf("bot: transport: %w", err)
	}

	if s.HTTPAddr != "" {
		b.web = web.NewServer(s.HTTPAddr, b.collector)
	}

	return b, nil
}

// newTTSProvider builds the synthesis provider: the configured voice, or a
// fallback chain when a second voice is configured.
func newTTSProvider(s *settings.Settings) (tts.Provider, error) {
	primary, err := tts.NewDeepgram(
		tts.WithAPIKey(s.DeepgramAPIKey),
		tts.WithVoice(s.DeepgramVoice),
		tts.WithBaseURL(s.DeepgramBaseURL),
	)
	if err != nil {
		return nil, err
	}
	if s.DeepgramFallbackVoice == "" {
		return primary, nil
	}

	fallback, err := tts.NewDeepgram(
		tts.WithAPIKey(s.DeepgramAPIKey),
		tts.WithVoice(s.DeepgramFallbackVoice),
		tts.WithBaseURL(s.DeepgramBaseURL),
	)
	if err != nil {
		return nil, err
	}
	return tts.NewChain(primary, fallback)
}

// ID returns the session identifier.
func (b *Bot) ID() string { return b.id }

// Run joins the room and drives the pipeline until the session ends: a
// participant leaves, the pipeline fails, or ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	logger := log.L().With("session", b.id)

	params := b.params

	b.collector.SetReportOnlyInitial(params.ReportOnlyInitialTTFB)
	if params.EnableMetrics {
		b.collector.OnReport(func(m pipeline.TurnMetrics) {
			logger.Info("turn latency", "latency", m.FormatLatency())
		})
	}

	sttStage, err := stt.NewDeepgram(
		stt.WithAPIKey(b.settings.DeepgramAPIKey),
		stt.WithURL(b.settings.DeepgramSTTURL),
	)
	if err != nil {
		return fmt.Errorf("bot: stt stage: %w", err)
	}

	userAgg := pipeline.NewUserAggregator(b.transcript)
	assistantAgg := pipeline.NewAssistantAggregator(b.transcript)
	assistantAgg.AttachCollector(b.collector)

	llmStage := llm.NewService(b.llmProvider)
	llmStage.AttachCollector(b.collector)

	ttsStage := tts.NewService(b.ttsProvider)
	ttsStage.AttachCollector(b.collector)

	pipe := pipeline.New(
		b.transport.Input(),
		pipeline.NewAudioVolumeTimer(b.collector),
		sttStage,
		pipeline.NewTranscriptionTimingLogger(b.collector),
		userAgg,
		llmStage,
		ttsStage,
		b.transport.Output(),
		assistantAgg,
	)
	task := pipeline.NewTask(pipe, params)

	h := &handlers{
		logger:     logger,
		transcript: b.transcript,
		sender:     b.transport,
		queuer:     task,
	}
	b.transport.OnParticipantLeft(h.participantLeft)
	b.transport.OnFirstParticipantJoined(h.firstParticipantJoined)
	b.transport.OnAppMessage(h.appMessage)

	if err := b.transport.Connect(ctx); err != nil {
		return fmt.Errorf("bot: connect: %w", err)
	}
	defer b.transport.Close()

	if b.web != nil {
		b.web.Start()
		defer b.web.Stop()
	}

	logger.Info("bot running",
		"bot", b.settings.BotName,
		"room_url", b.settings.RoomURL,
	)

	runner := pipeline.NewRunner()
	return runner.Run(ctx, task)
}

// Close releases provider resources. Safe after Run returns.
func (b *Bot) Close() error {
	if b.llmProvider != nil {
		b.llmProvider.Close()
	}
	if b.ttsProvider != nil {
		b.ttsProvider.Close()
	}
	return nil
}
