// Package tts synthesizes spoken audio from text through an
// OpenAI-compatible text-to-speech endpoint.
package tts

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Result is the outcome of a synthesis attempt. Failures are reported
// here, never raised across the adapter boundary.
type Result struct {
	Success     bool   `json:"success"`
	AudioBase64 string `json:"audio_data,omitempty"`
	Format      string `json:"format,omitempty"`
	Language    string `json:"language"`
	TextLength  int    `json:"text_length,omitempty"`
	Error       string `json:"error,omitempty"`
}

// Config holds synthesis client configuration.
type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	Voice   string
	Timeout time.Duration
	Logger  zerolog.Logger
}

// Client sends text to the speech synthesis endpoint.
type Client struct {
	baseURL string
	apiKey  string
	model   string
	voice   string
	hc      *http.Client
	logger  zerolog.Logger
}

const (
	// maxTextLength caps the synthesis input below the endpoint's 4096
	// character limit.
	maxTextLength = 4000

	normalSpeed = 1.0
	slowSpeed   = 0.8
)

// NewClient creates a synthesis client.
func NewClient(cfg Config) *Client {
	model := cfg.Model
	if model == "" {
		model = "tts-1"
	}
	voice := cfg.Voice
	if voice == "" {
		voice = "alloy"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		model:   model,
		voice:   voice,
		hc:      &http.Client{Timeout: timeout},
		logger:  cfg.Logger,
	}
}

// Configured reports whether the endpoint credentials are in place.
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

// SupportedLanguages maps supported language codes to display names.
// Synthesis output is English only.
func SupportedLanguages() map[string]string {
	return map[string]string{"en": "English"}
}

// IsLanguageSupported reports whether synthesis supports the language.
func IsLanguageSupported(language string) bool {
	switch strings.ToLower(language) {
	case "en", "english":
		return true
	}
	return false
}

var (
	codeBlockPattern  = regexp.MustCompile("```[\\s\\S]*?```")
	inlineCodePattern = regexp.MustCompile("`([^`]+)`")
	boldPattern       = regexp.MustCompile(`\*\*(.*?)\*\*`)
	italicPattern     = regexp.MustCompile(`\*(.*?)\*`)
	headerPattern     = regexp.MustCompile(`#{1,6}\s*(.*)`)
	urlPattern        = regexp.MustCompile(`http[s]?://[^\s]+`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// CleanText strips markdown that reads poorly as speech and truncates
// over-long input.
func CleanText(text string) string {
	if text == "" {
		return ""
	}

	text = codeBlockPattern.ReplaceAllString(text, "[code block]")
	text = inlineCodePattern.ReplaceAllString(text, "$1")
	text = boldPattern.ReplaceAllString(text, "$1")
	text = italicPattern.ReplaceAllString(text, "$1")
	text = headerPattern.ReplaceAllString(text, "$1")
	text = urlPattern.ReplaceAllString(text, "[link]")
	text = strings.TrimSpace(whitespacePattern.ReplaceAllString(text, " "))

	if len(text) > maxTextLength {
		text = text[:maxTextLength] + "..."
	}
	return text
}

// Synthesize converts text to spoken audio, returned base64-encoded.
// The slow flag lowers the speaking rate.
func (c *Client) Synthesize(ctx context.Context, text string, slow bool) Result {
	if c.apiKey == "" {
		return Result{Success: false, Error: "API key not configured", Language: "en"}
	}
	if strings.TrimSpace(text) == "" {
		return Result{Success: false, Error: "No text provided for TTS conversion", Language: "en"}
	}

	cleaned := CleanText(text)
	if cleaned == "" {
		return Result{Success: false, Error: "Text is empty after cleaning", Language: "en"}
	}

	speed := normalSpeed
	if slow {
		speed = slowSpeed
	}

	payload, err := json.Marshal(map[string]interface{}{
		"model": c.model,
		"input": cleaned,
		"voice": c.voice,
		"speed": speed,
	})
	if err != nil {
		return Result{Success: false, Error: err.Error(), Language: "en"}
	}

	url := c.baseURL + "/audio/speech"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return Result{Success: false, Error: err.Error(), Language: "en"}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	c.logger.Info().Str("url", url).Int("chars", len(cleaned)).Msg("Sending text for speech synthesis")

	resp, err := c.hc.Do(req)
	if err != nil {
		c.logger.Error().Err(err).Msg("Speech synthesis request failed")
		return Result{Success: false, Error: "API request failed: " + err.Error(), Language: "en"}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{Success: false, Error: "API request failed: " + err.Error(), Language: "en"}
	}

	if resp.StatusCode != http.StatusOK {
		detail := extractErrorDetail(raw)
		c.logger.Error().Int("status", resp.StatusCode).Str("detail", detail).Msg("Speech synthesis API returned an error")
		return Result{
			Success:  false,
			Error:    fmt.Sprintf("API error: %d - %s", resp.StatusCode, detail),
			Language: "en",
		}
	}

	c.logger.Info().Int("bytes", len(raw)).Msg("Speech synthesis successful")

	return Result{
		Success:     true,
		AudioBase64: base64.StdEncoding.EncodeToString(raw),
		Format:      "mp3",
		Language:    "en",
		TextLength:  len(cleaned),
	}
}

// extractErrorDetail pulls a human-readable message out of an API error
// body, falling back to the raw text.
func extractErrorDetail(raw []byte) string {
	var wrapped struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && wrapped.Error.Message != "" {
		return wrapped.Error.Message
	}
	return string(raw)
}
