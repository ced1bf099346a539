package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Loader handles configuration loading.
type Loader struct {
	configPath string
}

// NewLoader creates a config loader. An empty path falls back to
// $HOME/.examprep/examprep.json.
func NewLoader(configPath string) *Loader {
	return &Loader{configPath: configPath}
}

// envKeys lists every config key an EXAMPREP_* environment variable can
// override. Viper only applies env values to keys it knows about, so
// each one is bound explicitly.
var envKeys = []string{
	"llm.base_url", "llm.api_key", "llm.model", "llm.temperature", "llm.system_prompt",
	"stt.base_url", "stt.api_key", "stt.model",
	"tts.base_url", "tts.api_key", "tts.model", "tts.voice",
	"mcp.command", "mcp.args",
	"store.db_path", "store.retention_days", "store.cleanup_schedule",
	"server.host", "server.port", "server.max_audio_mb",
	"logging.level", "logging.file", "logging.console", "logging.pretty",
	"data_dir",
}

// Load reads the config file, applies EXAMPREP_* environment overrides,
// and fills defaults for anything unset. Environment overrides apply
// even without a config file.
func (l *Loader) Load() (*Config, error) {
	configPath := l.configPath
	if configPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		configPath = filepath.Join(home, ".examprep", "examprep.json")
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("json")
	v.SetEnvPrefix("EXAMPREP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range envKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind env for %s: %w", key, err)
		}
	}

	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); err == nil {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		cfg.DataDir = filepath.Join(home, ".examprep")
	}
	if cfg.Store.DBPath == "" {
		cfg.Store.DBPath = filepath.Join(cfg.DataDir, "examprep.db")
	}
	if cfg.Logging.File == "" && !cfg.Logging.Console {
		cfg.Logging.File = filepath.Join(cfg.DataDir, "examprep.log")
	}

	return cfg, nil
}

// Load is a convenience function that creates a loader and loads config.
func Load(configPath string) (*Config, error) {
	return NewLoader(configPath).Load()
}
