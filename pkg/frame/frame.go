// Package frame defines the typed units that flow between pipeline stages.
//
// Frames are small value-carrying structs. Stages type-switch on the frames
// they care about and pass everything else downstream untouched, so a new
// frame type can be threaded through an existing pipeline without changing
// every stage.
package frame

import "time"

// Frame is the unit of data flowing through a pipeline.
type Frame interface {
	// Name returns a short stable identifier used in logs.
	Name() string
}

// AudioInput carries raw PCM16 mono audio captured from the transport.
type AudioInput struct {
	Data       []byte // PCM16 little-endian
	SampleRate int
}

func (*AudioInput) Name() string { return "audio-input" }

// AudioOutput carries raw PCM16 mono audio headed for playback.
type AudioOutput struct {
	Data       []byte // PCM16 little-endian
	SampleRate int
}

func (*AudioOutput) Name() string { return "audio-output" }

// InterimTranscription is a partial, still-changing STT hypothesis.
type InterimTranscription struct {
	Text       string
	Confidence float64
	Timestamp  time.Time
}

func (*InterimTranscription) Name() string { return "interim-transcription" }

// Transcription is a finalized STT result.
type Transcription struct {
	Text       string
	Confidence float64
	Timestamp  time.Time
}

func (*Transcription) Name() string { return "transcription" }

// Text is an incremental piece of generated assistant text.
type Text struct {
	Text string
}

func (*Text) Name() string { return "text" }

// LLMResponseStart brackets the beginning of one generated response.
type LLMResponseStart struct{}

func (*LLMResponseStart) Name() string { return "llm-response-start" }

// LLMResponseEnd brackets the end of one generated response.
type LLMResponseEnd struct{}

func (*LLMResponseEnd) Name() string { return "llm-response-end" }

// LLMMessages asks the LLM stage to generate a response for a conversation.
type LLMMessages struct {
	Messages []Message
}

func (*LLMMessages) Name() string { return "llm-messages" }

// TransportMessage asks the transport output to deliver an app message.
// An empty Participant broadcasts to the room.
type TransportMessage struct {
	Payload     []byte
	Participant string
}

func (*TransportMessage) Name() string { return "transport-message" }

// UserStartedSpeaking marks VAD speech onset.
type UserStartedSpeaking struct{}

func (*UserStartedSpeaking) Name() string { return "user-started-speaking" }

// UserStoppedSpeaking marks VAD speech end.
type UserStoppedSpeaking struct{}

func (*UserStoppedSpeaking) Name() string { return "user-stopped-speaking" }

// StartInterruption tells downstream stages to abandon in-flight output.
type StartInterruption struct{}

func (*StartInterruption) Name() string { return "start-interruption" }

// StopInterruption marks the end of an interruption.
type StopInterruption struct{}

func (*StopInterruption) Name() string { return "stop-interruption" }

// End requests graceful pipeline termination. Stages finish processing it
// like any other frame; the task completes when it reaches the sink.
type End struct{}

func (*End) Name() string { return "end" }
