// Package transcribe converts audio bytes into recognized text through an
// OpenAI-compatible speech-to-text endpoint.
package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Result is the outcome of a transcription attempt. Failures are reported
// here, never raised across the adapter boundary. Empty Text with Success
// set means silence, not an error.
type Result struct {
	Success  bool   `json:"success"`
	Text     string `json:"text"`
	Language string `json:"language,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Config holds transcription client configuration.
type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
	Logger  zerolog.Logger
}

// Client sends audio to the speech-to-text endpoint.
type Client struct {
	baseURL string
	apiKey  string
	model   string
	hc      *http.Client
	logger  zerolog.Logger
}

// NewClient creates a transcription client.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		hc:      &http.Client{Timeout: timeout},
		logger:  cfg.Logger,
	}
}

// timestampPattern matches whisper segment prefixes like
// "[00:00:00.000 --> 00:00:07.080] ".
var timestampPattern = regexp.MustCompile(`^\[\s*\d{2}:\d{2}:\d{2}\.\d{3}\s*-->\s*\d{2}:\d{2}:\d{2}\.\d{3}\s*\]\s*`)

// CleanTimestamps strips whisper-style segment timestamps and joins the
// remaining segments with single spaces.
func CleanTimestamps(text string) string {
	if text == "" {
		return ""
	}
	var cleaned []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(timestampPattern.ReplaceAllString(line, ""))
		if line != "" {
			cleaned = append(cleaned, line)
		}
	}
	return strings.Join(cleaned, " ")
}

// SupportedFormats lists the audio container formats the endpoint accepts.
func SupportedFormats() []string {
	return []string{".mp3", ".mp4", ".mpeg", ".mpga", ".m4a", ".wav", ".webm", ".flac"}
}

// Transcribe sends the audio bytes for recognition. The filename hint
// helps the server pick a decoder; language, when non-empty, is declared
// rather than detected.
func (c *Client) Transcribe(ctx context.Context, audio []byte, filename string, language string) Result {
	if len(audio) == 0 {
		return Result{Success: false, Error: "No audio data provided"}
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, filename))
	header.Set("Content-Type", "application/octet-stream")
	part, err := writer.CreatePart(header)
	if err != nil {
		return Result{Success: false, Error: err.Error()}
	}
	if _, err := part.Write(audio); err != nil {
		return Result{Success: false, Error: err.Error()}
	}
	if err := writer.WriteField("model", c.model); err != nil {
		return Result{Success: false, Error: err.Error()}
	}
	if language != "" {
		if err := writer.WriteField("language", language); err != nil {
			return Result{Success: false, Error: err.Error()}
		}
	}
	if err := writer.Close(); err != nil {
		return Result{Success: false, Error: err.Error()}
	}

	url := c.baseURL + "/audio/transcriptions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return Result{Success: false, Error: err.Error()}
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	c.logger.Info().Str("url", url).Str("filename", filename).Msg("Sending audio for transcription")

	resp, err := c.hc.Do(req)
	if err != nil {
		c.logger.Error().Err(err).Msg("Transcription request failed")
		return Result{Success: false, Error: "API Error: " + err.Error()}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{Success: false, Error: "API Error: " + err.Error()}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail := extractErrorDetail(raw)
		c.logger.Error().Int("status", resp.StatusCode).Str("detail", detail).Msg("Transcription API returned an error")
		return Result{Success: false, Error: "API Error: " + detail}
	}

	var parsed struct {
		Text     string `json:"text"`
		Language string `json:"language"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return Result{Success: false, Error: "API Error: " + err.Error()}
	}

	text := CleanTimestamps(strings.TrimSpace(parsed.Text))
	detected := parsed.Language
	if detected == "" {
		detected = "unknown"
	}

	c.logger.Info().Str("language", detected).Int("chars", len(text)).Msg("Transcription successful")

	return Result{Success: true, Text: text, Language: detected}
}

// extractErrorDetail pulls a human-readable message out of an API error
// body, falling back to the raw text.
func extractErrorDetail(raw []byte) string {
	var wrapped struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && len(wrapped.Error) > 0 {
		var obj struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(wrapped.Error, &obj); err == nil && obj.Message != "" {
			return obj.Message
		}
		var plain string
		if err := json.Unmarshal(wrapped.Error, &plain); err == nil && plain != "" {
			return plain
		}
		return string(wrapped.Error)
	}
	return string(raw)
}
