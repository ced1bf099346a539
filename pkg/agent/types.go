package agent

import (
	"context"

	"github.com/ItshMoh/ExamPrepAgent/pkg/llm"
	"github.com/ItshMoh/ExamPrepAgent/pkg/mcptool"
	"github.com/ItshMoh/ExamPrepAgent/pkg/store"
	"github.com/ItshMoh/ExamPrepAgent/pkg/transcribe"
)

// Completer issues chat completion requests.
type Completer interface {
	Complete(ctx context.Context, messages []llm.Message, tools []llm.Tool, toolChoice string) (*llm.Message, error)
}

// ToolBroker lists and executes registered tools with degrade-to-empty
// semantics.
type ToolBroker interface {
	ListTools(ctx context.Context) mcptool.ToolList
	CallBatch(ctx context.Context, calls []llm.ToolCall, tools []llm.Tool) mcptool.CallBatch
}

// ContextStore reads and replaces a session's full turn sequence.
type ContextStore interface {
	GetContext(ctx context.Context, sessionID string) ([]store.Turn, error)
	PutContext(ctx context.Context, sessionID string, turns []store.Turn) error
}

// Transcriber converts audio bytes into recognized text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, filename string, language string) transcribe.Result
}

// AudioResult is the structured outcome of the audio entry point. Error
// is always emitted on the wire, empty on success; DetectedLanguage is
// omitted on failure paths that never reached recognition.
type AudioResult struct {
	Success          bool   `json:"success"`
	Transcription    string `json:"transcription"`
	DetectedLanguage string `json:"detected_language,omitempty"`
	Response         string `json:"response"`
	Error            string `json:"error"`
}
