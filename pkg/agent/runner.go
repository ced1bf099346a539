package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ItshMoh/ExamPrepAgent/pkg/llm"
	"github.com/ItshMoh/ExamPrepAgent/pkg/store"
	"github.com/rs/zerolog"
)

const (
	noHistorySentence = "No previous conversation history."
	noSpeechResponse  = "I didn't detect any speech in your audio. Could you please try again?"
)

// Runner coordinates the conversation pipeline over its four external
// collaborators.
type Runner struct {
	completer    Completer
	tools        ToolBroker
	store        ContextStore
	transcriber  Transcriber
	systemPrompt string
	logger       zerolog.Logger
}

// Config holds runner dependencies. Completer, ToolBroker, and
// ContextStore are required; Transcriber is only needed for the audio
// entry point.
type Config struct {
	Completer    Completer
	Tools        ToolBroker
	Store        ContextStore
	Transcriber  Transcriber
	SystemPrompt string
	Logger       zerolog.Logger
}

// NewRunner creates a runner from explicit dependencies.
func NewRunner(cfg Config) (*Runner, error) {
	if cfg.Completer == nil {
		return nil, fmt.Errorf("completer is required")
	}
	if cfg.Tools == nil {
		return nil, fmt.Errorf("tool broker is required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("context store is required")
	}

	return &Runner{
		completer:    cfg.Completer,
		tools:        cfg.Tools,
		store:        cfg.Store,
		transcriber:  cfg.Transcriber,
		systemPrompt: cfg.SystemPrompt,
		logger:       cfg.Logger,
	}, nil
}

// ProcessMessage runs one text exchange for the session and returns the
// assistant's response. Completion and store failures propagate to the
// caller; tool failures degrade silently into a tool-less exchange.
//
// Concurrent exchanges on the same session are not coordinated: each
// reads, locally extends, and rewrites the whole context, so the last
// writer wins.
func (r *Runner) ProcessMessage(ctx context.Context, sessionID, userInput string) (string, error) {
	logger := r.logger.With().Str("session_id", sessionID).Logger()

	toolList := r.tools.ListTools(ctx)
	if toolList.Cause != nil {
		logger.Warn().Err(toolList.Cause).Msg("Proceeding without tools")
	}

	turns, err := r.store.GetContext(ctx, sessionID)
	if err != nil {
		return "", fmt.Errorf("failed to load session context: %w", err)
	}

	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: r.systemPrompt + "\n" + formatContext(turns)},
		{Role: llm.RoleUser, Content: userInput},
	}

	reply, err := r.completer.Complete(ctx, messages, toolList.Tools, llm.ToolChoiceAuto)
	if err != nil {
		return "", err
	}

	responseText := reply.Content
	toolResponseContent := ""

	if len(reply.ToolCalls) > 0 {
		logger.Info().Int("tool_calls", len(reply.ToolCalls)).Msg("Resolving tool calls")

		batch := r.tools.CallBatch(ctx, reply.ToolCalls, toolList.Tools)
		if batch.Cause != nil {
			logger.Warn().Err(batch.Cause).Msg("Tool call batch degraded to empty results")
		}

		encoded, err := json.Marshal(batch.Contents)
		if err != nil {
			return "", fmt.Errorf("failed to encode tool results: %w", err)
		}
		toolResponseContent = string(encoded)

		messages = append(messages, llm.Message{
			Role:      llm.RoleAssistant,
			Content:   reply.Content,
			ToolCalls: reply.ToolCalls,
		})
		messages = append(messages, batch.Responses...)

		final, err := r.completer.Complete(ctx, messages, toolList.Tools, llm.ToolChoiceAuto)
		if err != nil {
			return "", err
		}
		// Tool calls requested here are left unresolved; resolution is
		// single-round.
		responseText = final.Content
	}

	turns = append(turns, store.Turn{
		UserQuery:     userInput,
		AgentResponse: responseText,
		ToolResponse:  toolResponseContent,
	})
	if err := r.store.PutContext(ctx, sessionID, turns); err != nil {
		return "", fmt.Errorf("failed to persist session context: %w", err)
	}

	logger.Debug().Int("turns", len(turns)).Msg("Exchange completed")
	return responseText, nil
}

// ProcessAudioMessage transcribes the audio and feeds the recognized text
// through the text pipeline. It always returns a structured result and
// never raises a fault across the entry point.
func (r *Runner) ProcessAudioMessage(ctx context.Context, sessionID string, audio []byte, filename, language string) AudioResult {
	logger := r.logger.With().Str("session_id", sessionID).Logger()

	if len(audio) == 0 {
		return AudioResult{
			Success: false,
			Error:   "No audio data received for processing",
		}
	}
	if r.transcriber == nil {
		return AudioResult{
			Success: false,
			Error:   "Internal error during audio processing: no transcriber configured",
		}
	}

	logger.Info().Str("filename", filename).Int("bytes", len(audio)).Msg("Starting transcription")

	transcription := r.transcriber.Transcribe(ctx, audio, filename, language)
	if !transcription.Success {
		return AudioResult{
			Success: false,
			Error:   fmt.Sprintf("Transcription failed: %s", transcription.Error),
		}
	}

	if strings.TrimSpace(transcription.Text) == "" {
		// Transcription itself didn't fail, there was just no speech.
		logger.Info().Msg("Transcription resulted in empty text")
		return AudioResult{
			Success:          true,
			Transcription:    "",
			DetectedLanguage: transcription.Language,
			Response:         noSpeechResponse,
			Error:            "No speech detected",
		}
	}

	responseText, err := r.ProcessMessage(ctx, sessionID, transcription.Text)
	if err != nil {
		logger.Error().Err(err).Msg("Audio message processing failed")
		return AudioResult{
			Success: false,
			Error:   fmt.Sprintf("Internal error during audio processing: %s", err),
		}
	}

	return AudioResult{
		Success:          true,
		Transcription:    transcription.Text,
		DetectedLanguage: transcription.Language,
		Response:         responseText,
	}
}

// formatContext renders the session's turns as a human-readable
// transcript block for the system prompt. An empty context, or a single
// turn with no user query, reads as no history.
func formatContext(turns []store.Turn) string {
	if len(turns) == 0 || (len(turns) == 1 && turns[0].UserQuery == "") {
		return noHistorySentence
	}

	var b strings.Builder
	b.WriteString("Previous conversation history:\n")
	for _, turn := range turns {
		if turn.UserQuery != "" {
			fmt.Fprintf(&b, "User: %s\n", turn.UserQuery)
		}
		if turn.AgentResponse != "" {
			fmt.Fprintf(&b, "Assistant: %s\n", turn.AgentResponse)
		}
		if turn.ToolResponse != "" {
			fmt.Fprintf(&b, "Tool Result: %s\n", turn.ToolResponse)
		}
		b.WriteString("\n")
	}
	return b.String()
}
