package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	DataDir string // run history database lives here

	Model  string // default whisper model
	Device string // cpu or cuda

	SummaryModel  string
	SummaryPrompt string // system prompt for summary generation; empty means built-in

	OpenAIKey string
	HFToken   string

	Python string // python interpreter for the whisperx helper

	WordSpanEpsilon float64 // tolerated word overrun past segment bounds, seconds

	RetryAttempts   int
	RetryBaseDelay  time.Duration
	RetryMultiplier float64
	StageTimeout    time.Duration // zero means no per-stage timeout
}

type fileConfig struct {
	DataDir         string  `toml:"data_dir"`
	Model           string  `toml:"model"`
	Device          string  `toml:"device"`
	SummaryModel    string  `toml:"summary_model"`
	SummaryPrompt   string  `toml:"summary_prompt"`
	OpenAIKey       string  `toml:"openai_api_key"`
	HFToken         string  `toml:"huggingface_token"`
	Python          string  `toml:"python"`
	WordSpanEpsilon float64 `toml:"word_span_epsilon"`
	RetryAttempts   int     `toml:"retry_attempts"`
	RetryBaseDelay  string  `toml:"retry_base_delay"`
	RetryMultiplier float64 `toml:"retry_multiplier"`
	StageTimeout    string  `toml:"stage_timeout"`
}

func Load() (*Config, error) {
	cfg := &Config{
		DataDir:         defaultDataDir(),
		Model:           "small",
		Device:          "cpu",
		SummaryModel:    "gpt-4o-mini",
		RetryAttempts:   3,
		RetryBaseDelay:  time.Second,
		RetryMultiplier: 2,
	}

	if configPath := configFilePath(); configPath != "" {
		var fc fileConfig
		if _, err := toml.DecodeFile(configPath, &fc); err == nil {
			if fc.DataDir != "" {
				cfg.DataDir = expandTilde(fc.DataDir)
			}
			if fc.Model != "" {
				cfg.Model = fc.Model
			}
			if fc.Device != "" {
				cfg.Device = fc.Device
			}
			if fc.SummaryModel != "" {
				cfg.SummaryModel = fc.SummaryModel
			}
			if fc.SummaryPrompt != "" {
				cfg.SummaryPrompt = fc.SummaryPrompt
			}
			cfg.OpenAIKey = fc.OpenAIKey
			cfg.HFToken = fc.HFToken
			if fc.Python != "" {
				cfg.Python = fc.Python
			}
			if fc.WordSpanEpsilon > 0 {
				cfg.WordSpanEpsilon = fc.WordSpanEpsilon
			}
			if fc.RetryAttempts > 0 {
				cfg.RetryAttempts = fc.RetryAttempts
			}
			if d, err := time.ParseDuration(fc.RetryBaseDelay); err == nil && d > 0 {
				cfg.RetryBaseDelay = d
			}
			if fc.RetryMultiplier > 0 {
				cfg.RetryMultiplier = fc.RetryMultiplier
			}
			if d, err := time.ParseDuration(fc.StageTimeout); err == nil && d > 0 {
				cfg.StageTimeout = d
			}
		}
	}

	applyEnvOverrides(cfg)

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, err
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := firstEnv("VOICENOTES_OPENAI_API_KEY", "OPENAI_API_KEY"); v != "" {
		cfg.OpenAIKey = v
	}
	if v := firstEnv("VOICENOTES_HF_TOKEN", "HUGGINGFACE_TOKEN"); v != "" {
		cfg.HFToken = v
	}
	if v := os.Getenv("VOICENOTES_DATA_DIR"); v != "" {
		cfg.DataDir = expandTilde(v)
	}
	if v := os.Getenv("VOICENOTES_PYTHON"); v != "" {
		cfg.Python = v
	}
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			return v
		}
	}
	return ""
}

func configFilePath() string {
	var configDir string
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		configDir = filepath.Join(xdg, "voicenotes")
	} else if home, err := os.UserHomeDir(); err == nil {
		configDir = filepath.Join(home, ".config", "voicenotes")
	} else {
		return ""
	}

	path := filepath.Join(configDir, "config.toml")
	if _, err := os.Stat(path); err == nil {
		return path
	}
	return ""
}

func defaultDataDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".voicenotes")
	}
	return filepath.Join(".", ".voicenotes")
}

func expandTilde(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
