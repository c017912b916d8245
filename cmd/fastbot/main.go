// FastBot - LiveKit voice bot: Deepgram STT/TTS with OpenAI chat in a
// linear frame pipeline.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/fastbot-dev/fastbot/internal/bot"
	"github.com/fastbot-dev/fastbot/internal/log"
	"github.com/fastbot-dev/fastbot/internal/settings"
)

func main() {
	log.Init(os.Getenv("LOG_LEVEL"))

	// Optional; deployments usually inject env directly.
	_ = godotenv.Load()

	cfg, err := loadSettings(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	b, err := bot.New(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer b.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := b.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("bot exited", "error", err)
		os.Exit(1)
	}
}

// loadSettings extracts the settings blob from the command line, parses it,
// and applies environment overrides.
func loadSettings(args []string) (*settings.Settings, error) {
	blob, err := settings.FromArgs(args)
	if err != nil {
		return nil, err
	}

	cfg, err := settings.Parse(blob)
	if err != nil {
		return nil, err
	}

	cfg.ApplyEnv()
	return cfg, nil
}
