package app

import (
	"path/filepath"

	"github.com/mikemuryn/VoiceNotes/config"
	"github.com/mikemuryn/VoiceNotes/internal/domain/pipeline"
	"github.com/mikemuryn/VoiceNotes/internal/store"
	"github.com/mikemuryn/VoiceNotes/internal/summarize"
	"github.com/mikemuryn/VoiceNotes/internal/whisperx"
)

type App struct {
	Config *config.Config
	Runs   *store.RunStore
}

func New(cfg *config.Config) (*App, error) {
	runs, err := store.Open(filepath.Join(cfg.DataDir, "runs.db"))
	if err != nil {
		return nil, err
	}

	return &App{
		Config: cfg,
		Runs:   runs,
	}, nil
}

// Controller wires the pipeline for one run. Model and device come from the
// request so --model and --device override the configured defaults everywhere.
func (a *App) Controller(model, device string) *pipeline.Controller {
	runner := whisperx.Runner{
		Python: a.Config.Python,
		Device: device,
	}

	return &pipeline.Controller{
		Transcriber: &whisperx.Transcriber{Runner: runner, Model: model},
		Aligner:     &whisperx.Aligner{Runner: runner},
		Diarizer:    &whisperx.Diarizer{Runner: runner, Token: a.Config.HFToken},
		Summarizer: &summarize.Client{
			APIKey:       a.Config.OpenAIKey,
			SystemPrompt: a.Config.SummaryPrompt,
		},
	}
}

// Retry builds the retry policy the config prescribes.
func Retry(cfg *config.Config) pipeline.RetryPolicy {
	policy := pipeline.DefaultRetryPolicy
	if cfg.RetryAttempts > 0 {
		policy.Attempts = cfg.RetryAttempts
	}
	if cfg.RetryBaseDelay > 0 {
		policy.BaseDelay = cfg.RetryBaseDelay
	}
	if cfg.RetryMultiplier > 0 {
		policy.Multiplier = cfg.RetryMultiplier
	}
	return policy
}

// Close releases app resources.
func (a *App) Close() error {
	return a.Runs.Close()
}
