// Package transport connects the pipeline to a LiveKit room.
//
// The Transport owns the room session: it joins with a pre-minted token,
// publishes the bot's audio track, and surfaces participant and data-channel
// events. Input() and Output() return the pipeline stages that bridge room
// audio into frames and frames back into room audio.
package transport

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/livekit/protocol/livekit"
	lksdk "github.com/livekit/server-sdk-go/v2"
	lkmedia "github.com/livekit/server-sdk-go/v2/pkg/media"
	"github.com/pion/webrtc/v4"

	"github.com/fastbot-dev/fastbot/pkg/audio"
)

// Sentinel errors for transport misuse.
var (
	ErrNoRoomURL     = errors.New("transport: room URL required")
	ErrNoToken       = errors.New("transport: room token required")
	ErrNotConnected  = errors.New("transport: not connected")
	ErrAlreadyJoined = errors.New("transport: already connected")
)

// trackSampleRate is the rate LiveKit audio tracks run at.
const trackSampleRate = 48000

// Params tunes transport audio behavior.
type Params struct {
	// AudioOutEnabled publishes the bot audio track on connect.
	AudioOutEnabled bool

	// VADEnabled runs energy speech detection on inbound audio.
	VADEnabled bool

	// VADStopDelay is the silence needed before speech is considered over.
	VADStopDelay time.Duration

	// VADAudioPassthrough emits audio frames downstream even outside
	// detected speech.
	VADAudioPassthrough bool

	// InterruptionsAllowed emits interruption frames on speech onset so
	// downstream stages abandon in-flight output.
	InterruptionsAllowed bool
}

// DefaultParams returns the transport defaults for a voice bot.
func DefaultParams() Params {
	return Params{
		AudioOutEnabled:      true,
		VADEnabled:           true,
		VADStopDelay:         audio.DefaultVADStopDelay,
		VADAudioPassthrough:  true,
		InterruptionsAllowed: true,
	}
}

// Config holds room connection settings.
type Config struct {
	RoomURL string
	Token   string
	BotName string
	Params  Params
	Logger  *slog.Logger
}

// Transport is a LiveKit room session.
type Transport struct {
	cfg    Config
	logger *slog.Logger

	input  *Input
	output *Output

	mu         sync.Mutex
	room       *lksdk.Room
	audioTrack *lkmedia.PCMLocalTrack

	firstOnce sync.Once

	onFirstParticipant func(identity string)
	onParticipantLeft  func(identity string)
	onAppMessage       func(data []byte, sender string)
}

// New creates a transport for the given room. Connect must be called before
// the pipeline runs.
func New(cfg Config) (*Transport, error) {
	if cfg.RoomURL == "" {
		return nil, ErrNoRoomURL
	}
	if cfg.Token == "" {
		return nil, ErrNoToken
	}
	if cfg.Params.VADStopDelay <= 0 {
		cfg.Params.VADStopDelay = audio.DefaultVADStopDelay
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	t := &Transport{
		cfg:    cfg,
		logger: cfg.Logger.With("component", "transport"),
	}
	t.input = newInput(t)
	t.output = newOutput(t)
	return t, nil
}

// Params returns the audio parameters the transport was built with.
func (t *Transport) Params() Params { return t.cfg.Params }

// Input returns the pipeline stage that turns room audio into frames.
func (t *Transport) Input() *Input { return t.input }

// Output returns the pipeline stage that plays frames into the room.
func (t *Transport) Output() *Output { return t.output }

// OnFirstParticipantJoined registers a callback fired exactly once, for the
// first remote participant seen in the room. Participants already present
// at connect time count.
func (t *Transport) OnFirstParticipantJoined(fn func(identity string)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onFirstParticipant = fn
}

// OnParticipantLeft registers a callback fired for every participant that
// leaves the room.
func (t *Transport) OnParticipantLeft(fn func(identity string)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onParticipantLeft = fn
}

// OnAppMessage registers a callback for data-channel messages.
func (t *Transport) OnAppMessage(fn func(data []byte, sender string)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onAppMessage = fn
}

// Connect joins the room and, when enabled, publishes the bot audio track.
func (t *Transport) Connect(ctx context.Context) error {
	t.mu.Lock()
	if t.room != nil {
		t.mu.Unlock()
		return ErrAlreadyJoined
	}
	t.mu.Unlock()

	cb := &lksdk.RoomCallback{
		ParticipantCallback: lksdk.ParticipantCallback{
			OnTrackSubscribed: func(track *webrtc.TrackRemote, pub *lksdk.RemoteTrackPublication, rp *lksdk.RemoteParticipant) {
				t.input.handleTrack(track, rp.Identity())
			},
			OnDataPacket: func(data lksdk.DataPacket, params lksdk.DataReceiveParams) {
				t.handleDataPacket(data, params)
			},
		},
		OnParticipantConnected: func(rp *lksdk.RemoteParticipant) {
			t.handleParticipantJoined(rp.Identity())
		},
		OnParticipantDisconnected: func(rp *lksdk.RemoteParticipant) {
			t.handleParticipantLeft(rp.Identity())
		},
		OnDisconnected: func() {
			t.logger.Info("disconnected from room")
		},
	}

	room, err := lksdk.ConnectToRoomWithToken(
		t.cfg.RoomURL,
		t.cfg.Token,
		cb,
		lksdk.WithAutoSubscribe(true),
	)
	if err != nil {
		return err
	}

	t.mu.Lock()
	t.room = room
	t.mu.Unlock()

	t.logger.Info("connected to room",
		"room", room.Name(),
		"identity", room.LocalParticipant.Identity(),
	)

	if t.cfg.Params.AudioOutEnabled {
		if err := t.publishAudioTrack(room); err != nil {
			room.Disconnect()
			t.mu.Lock()
			t.room = nil
			t.mu.Unlock()
			return err
		}
	}

	// Participants who joined before us never trigger the connected
	// callback; treat them the same way.
	for _, rp := range room.GetRemoteParticipants() {
		t.handleParticipantJoined(rp.Identity())
	}

	return nil
}

// Close tears down track readers, the published track, and the room session.
func (t *Transport) Close() error {
	t.input.stopReaders()

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.audioTrack != nil {
		t.audioTrack.Close()
		t.audioTrack = nil
	}
	if t.room != nil {
		t.room.Disconnect()
		t.room = nil
	}
	return nil
}

// SendAppMessage delivers a reliable data-channel message. An empty
// participant identity broadcasts to the whole room.
func (t *Transport) SendAppMessage(data []byte, participant string) error {
	t.mu.Lock()
	room := t.room
	t.mu.Unlock()

	if room == nil {
		return ErrNotConnected
	}

	opts := []lksdk.DataPublishOption{lksdk.WithDataPublishReliable(true)}
	if participant != "" {
		opts = append(opts, lksdk.WithDataPublishDestination([]string{participant}))
	}
	return room.LocalParticipant.PublishDataPacket(lksdk.UserData(data), opts...)
}

func (t *Transport) publishAudioTrack(room *lksdk.Room) error {
	track, err := lkmedia.NewPCMLocalTrack(trackSampleRate, 1, nil)
	if err != nil {
		return err
	}

	name := t.cfg.BotName
	if name == "" {
		name = "fastbot"
	}
	_, err = room.LocalParticipant.PublishTrack(track, &lksdk.TrackPublicationOptions{
		Name:   name + "-audio",
		Source: livekit.TrackSource_MICROPHONE,
	})
	if err != nil {
		track.Close()
		return err
	}

	t.mu.Lock()
	t.audioTrack = track
	t.mu.Unlock()

	t.logger.Debug("published audio track", "sample_rate", trackSampleRate)
	return nil
}

func (t *Transport) handleParticipantJoined(identity string) {
	t.logger.Info("participant joined", "identity", identity)

	t.mu.Lock()
	fn := t.onFirstParticipant
	t.mu.Unlock()

	t.firstOnce.Do(func() {
		if fn != nil {
			fn(identity)
		}
	})
}

func (t *Transport) handleParticipantLeft(identity string) {
	t.logger.Info("participant left", "identity", identity)

	t.mu.Lock()
	fn := t.onParticipantLeft
	t.mu.Unlock()

	if fn != nil {
		fn(identity)
	}
}

func (t *Transport) handleDataPacket(data lksdk.DataPacket, params lksdk.DataReceiveParams) {
	pkt, ok := data.(*lksdk.UserDataPacket)
	if !ok || len(pkt.Payload) == 0 {
		return
	}

	t.mu.Lock()
	fn := t.onAppMessage
	t.mu.Unlock()

	if fn != nil {
		fn(pkt.Payload, params.SenderIdentity)
	}
}

// track returns the published audio track, or nil when audio out is off.
func (t *Transport) track() *lkmedia.PCMLocalTrack {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.audioTrack
}
