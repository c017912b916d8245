// Package settings holds the bot launch configuration.
//
// The bot is started with a single JSON blob passed on the command line.
// Parse decodes and validates the blob, applying defaults for everything
// the caller left out. ApplyEnv then layers environment overrides on top,
// so deployments can keep credentials out of the launch command.
package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
)

// Defaults applied when the corresponding field is absent from the blob.
const (
	DefaultBotName         = "FastBot"
	DefaultDeepgramVoice   = "aura-asteria-en"
	DefaultDeepgramBaseURL = "https://api.deepgram.com/v1/speak"
	DefaultOpenAIModel     = "gpt-4o"

	// DefaultPrompt is spoken output, so it steers the model away from
	// markup and long-form answers.
	DefaultPrompt = "You are a helpful voice assistant. Your responses will be " +
		"converted to audio, so keep them short and conversational and avoid " +
		"special characters or markup."
)

// ErrNoSettings is returned by FromArgs when no settings flag is present.
var ErrNoSettings = errors.New("settings: missing required -s/--settings argument")

// ValidationError reports a missing or invalid settings field.
type ValidationError struct {
	Field  string
	Reason string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("settings: field %q %s", e.Field, e.Reason)
}

// Settings is the bot launch configuration decoded from the CLI blob.
type Settings struct {
	// Room connection (required).
	RoomURL   string `json:"room_url"`
	RoomToken string `json:"room_token"`

	// Identity and behavior.
	BotName string `json:"bot_name"`
	Prompt  string `json:"prompt"`

	// Deepgram (STT + TTS).
	DeepgramAPIKey  string `json:"deepgram_api_key"`
	DeepgramVoice   string `json:"deepgram_voice"`
	DeepgramBaseURL string `json:"deepgram_base_url"`
	DeepgramSTTURL  string `json:"deepgram_stt_url"`

	// DeepgramFallbackVoice, when set, adds a second synthesis voice the
	// bot falls back to if the primary voice starts failing.
	DeepgramFallbackVoice string `json:"deepgram_fallback_voice"`

	// OpenAI (LLM).
	OpenAIAPIKey  string `json:"openai_api_key"`
	OpenAIModel   string `json:"openai_model"`
	OpenAIBaseURL string `json:"openai_base_url"`

	// HTTPAddr enables the debug HTTP server when non-empty (e.g. ":8085").
	HTTPAddr string `json:"http_addr"`
}

// Parse decodes a JSON settings blob, applies defaults, and validates
// required fields. On error no usable Settings is returned.
func Parse(blob string) (*Settings, error) {
	var s Settings
	dec := json.NewDecoder(strings.NewReader(blob))
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("settings: decode: %w", err)
	}

	s.applyDefaults()

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// applyDefaults fills zero-valued optional fields.
func (s *Settings) applyDefaults() {
	if s.BotName == "" {
		s.BotName = DefaultBotName
	}
	if s.Prompt == "" {
		s.Prompt = DefaultPrompt
	}
	if s.DeepgramVoice == "" {
		s.DeepgramVoice = DefaultDeepgramVoice
	}
	if s.DeepgramBaseURL == "" {
		s.DeepgramBaseURL = DefaultDeepgramBaseURL
	}
	if s.OpenAIModel == "" {
		s.OpenAIModel = DefaultOpenAIModel
	}
}

// Validate checks required fields.
func (s *Settings) Validate() error {
	if s.RoomURL == "" {
		return &ValidationError{Field: "room_url", Reason: "is required"}
	}
	if s.RoomToken == "" {
		return &ValidationError{Field: "room_token", Reason: "is required"}
	}
	return nil
}

// ApplyEnv overlays environment variables onto the settings.
// Environment values win over blob values when set, matching how
// credentials are provisioned in deployment.
func (s *Settings) ApplyEnv() {
	overlay(&s.DeepgramAPIKey, "DEEPGRAM_API_KEY")
	overlay(&s.DeepgramSTTURL, "DEEPGRAM_STT_URL")
	overlay(&s.DeepgramBaseURL, "DEEPGRAM_TTS_BASE_URL")
	overlay(&s.OpenAIAPIKey, "OPENAI_API_KEY")
	overlay(&s.OpenAIModel, "OPENAI_MODEL")
	overlay(&s.OpenAIBaseURL, "OPENAI_BASE_URL")
}

func overlay(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// FromArgs extracts the settings blob from a command line.
// It recognizes "-s <blob>", "--settings <blob>", and the "=" forms,
// and ignores any arguments it does not recognize so the bot can be
// launched by schedulers that append their own flags.
func FromArgs(args []string) (string, error) {
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "-s" || arg == "--settings":
			if i+1 >= len(args) {
				return "", errors.New("settings: flag needs a value")
			}
			return args[i+1], nil
		case strings.HasPrefix(arg, "-s="):
			return strings.TrimPrefix(arg, "-s="), nil
		case strings.HasPrefix(arg, "--settings="):
			return strings.TrimPrefix(arg, "--settings="), nil
		}
	}
	return "", ErrNoSettings
}
