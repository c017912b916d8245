package bot

import (
	"log/slog"

	"github.com/fastbot-dev/fastbot/pkg/frame"
	"github.com/fastbot-dev/fastbot/pkg/transport"
)

// introInstruction is appended to the conversation when the first
// participant arrives, prompting the bot to open the conversation.
const introInstruction = "Please introduce yourself to the user."

// messageSender delivers app messages to the room immediately, outside the
// pipeline.
type messageSender interface {
	SendAppMessage(data []byte, participant string) error
}

// frameQueuer injects frames at the head of the pipeline.
type frameQueuer interface {
	QueueFrame(f frame.Frame) error
}

// handlers react to room events. They never propagate errors upward: a
// failed reply or queue is logged and the session keeps running.
type handlers struct {
	logger     *slog.Logger
	transcript *frame.Transcript
	sender     messageSender
	queuer     frameQueuer
}

// participantLeft requests graceful pipeline termination. Each leave event
// queues exactly one End frame; queueing after the task already finished
// is expected when several participants leave together.
func (h *handlers) participantLeft(identity string) {
	h.logger.Info("participant left, ending session", "identity", identity)
	if err := h.queuer.QueueFrame(&frame.End{}); err != nil {
		h.logger.Debug("end frame not queued", "error", err)
	}
}

// firstParticipantJoined seeds the conversation with the intro instruction
// and asks the LLM stage to speak first.
func (h *handlers) firstParticipantJoined(identity string) {
	h.logger.Info("first participant joined", "identity", identity)

	h.transcript.Append(frame.NewSystemMessage(introInstruction))
	err := h.queuer.QueueFrame(&frame.LLMMessages{Messages: h.transcript.Messages()})
	if err != nil {
		h.logger.Error("intro request not queued", "error", err)
	}
}

// appMessage answers latency pings with two pongs: one sent straight back
// from this handler and one queued through the pipeline, so the client can
// compare handler latency against full pipeline latency. Anything that is
// not a ping is ignored.
func (h *handlers) appMessage(data []byte, sender string) {
	ts, ok := transport.ParseLatencyPing(data)
	if !ok {
		h.logger.Debug("ignoring app message", "sender", sender, "bytes", len(data))
		return
	}

	immediate, err := transport.EncodeLatencyPong(transport.TypeLatencyPongImmediate, ts)
	if err != nil {
		h.logger.Error("latency pong encode failed", "error", err)
	} else if err := h.sender.SendAppMessage(immediate, sender); err != nil {
		h.logger.Error("latency pong send failed", "error", err)
	}

	queued, err := transport.EncodeLatencyPong(transport.TypeLatencyPongPipeline, ts)
	if err != nil {
		h.logger.Error("latency pong encode failed", "error", err)
		return
	}
	err = h.queuer.QueueFrame(&frame.TransportMessage{Payload: queued, Participant: sender})
	if err != nil {
		h.logger.Error("latency pong not queued", "error", err)
	}
}
