package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/mikemuryn/VoiceNotes/config"
	"github.com/mikemuryn/VoiceNotes/internal/app"
	"github.com/mikemuryn/VoiceNotes/internal/cli"
	"github.com/mikemuryn/VoiceNotes/internal/output"
)

func main() {
	if err := run(); err != nil {
		formatter := output.NewFormatter(os.Stderr)
		formatter.Error(err.Error())
		os.Exit(1)
	}
}

func run() error {
	// Credentials may live in a local .env file; absence is fine.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	application, err := app.New(cfg)
	if err != nil {
		return fmt.Errorf("initializing app: %w", err)
	}
	defer application.Close()

	deps := &cli.Dependencies{
		App:    application,
		Config: cfg,
	}

	return cli.NewRootCmd(deps).Execute()
}
