// Package config defines and loads process configuration.
package config

import (
	"fmt"
	"strings"

	"github.com/ItshMoh/ExamPrepAgent/internal/logger"
)

// Config is the main configuration, read once at startup.
type Config struct {
	LLM     LLMConfig     `json:"llm" mapstructure:"llm"`
	STT     STTConfig     `json:"stt" mapstructure:"stt"`
	TTS     TTSConfig     `json:"tts" mapstructure:"tts"`
	MCP     MCPConfig     `json:"mcp" mapstructure:"mcp"`
	Store   StoreConfig   `json:"store" mapstructure:"store"`
	Server  ServerConfig  `json:"server" mapstructure:"server"`
	Logging logger.Config `json:"logging" mapstructure:"logging"`

	// DataDir anchors relative defaults (database, logs).
	DataDir string `json:"data_dir" mapstructure:"data_dir"`
}

// LLMConfig configures the chat completion endpoint.
type LLMConfig struct {
	BaseURL      string  `json:"base_url" mapstructure:"base_url"`
	APIKey       string  `json:"api_key" mapstructure:"api_key"`
	Model        string  `json:"model" mapstructure:"model"`
	Temperature  float64 `json:"temperature" mapstructure:"temperature"`
	SystemPrompt string  `json:"system_prompt" mapstructure:"system_prompt"`
}

// STTConfig configures the speech-to-text endpoint.
type STTConfig struct {
	BaseURL string `json:"base_url" mapstructure:"base_url"`
	APIKey  string `json:"api_key" mapstructure:"api_key"`
	Model   string `json:"model" mapstructure:"model"`
}

// TTSConfig configures the speech synthesis endpoint.
type TTSConfig struct {
	BaseURL string `json:"base_url" mapstructure:"base_url"`
	APIKey  string `json:"api_key" mapstructure:"api_key"`
	Model   string `json:"model" mapstructure:"model"`
	Voice   string `json:"voice" mapstructure:"voice"`
}

// MCPConfig configures the tool server process.
type MCPConfig struct {
	Command string   `json:"command" mapstructure:"command"`
	Args    []string `json:"args" mapstructure:"args"`
}

// StoreConfig configures the session store.
type StoreConfig struct {
	DBPath          string `json:"db_path" mapstructure:"db_path"`
	RetentionDays   int    `json:"retention_days" mapstructure:"retention_days"`
	CleanupSchedule string `json:"cleanup_schedule" mapstructure:"cleanup_schedule"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Host       string `json:"host" mapstructure:"host"`
	Port       int    `json:"port" mapstructure:"port"`
	MaxAudioMB int    `json:"max_audio_mb" mapstructure:"max_audio_mb"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			Temperature:  0.7,
			SystemPrompt: "You are a helpful AI assistant specialized in answering questions and providing practice questions.",
		},
		Store: StoreConfig{
			CleanupSchedule: "@hourly",
		},
		Server: ServerConfig{
			Host:       "0.0.0.0",
			Port:       8000,
			MaxAudioMB: 25,
		},
		Logging: logger.DefaultConfig(),
	}
}

// Validate checks the fields the serving path cannot run without.
func (c *Config) Validate() error {
	var problems []string

	if c.LLM.BaseURL == "" {
		problems = append(problems, "llm.base_url is required")
	}
	if c.LLM.Model == "" {
		problems = append(problems, "llm.model is required")
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		problems = append(problems, "llm.temperature must be between 0 and 2")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		problems = append(problems, "server.port must be a valid port")
	}
	if c.Server.MaxAudioMB <= 0 {
		problems = append(problems, "server.max_audio_mb must be positive")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}
