package mcptool

import (
	"context"
	"fmt"
	"strings"

	"github.com/ItshMoh/ExamPrepAgent/pkg/llm"
	"github.com/rs/zerolog"
	"github.com/xeipuuv/gojsonschema"
)

// ToolCaller is the transport-level contract the adapter degrades over.
type ToolCaller interface {
	ListTools(ctx context.Context) ([]llm.Tool, error)
	CallTool(ctx context.Context, name string, arguments map[string]interface{}) (string, error)
}

// ToolList carries the available tool descriptors together with the cause
// of a registry degradation, if any. An empty list with a non-nil Cause
// means tool calling is unavailable for the exchange; plain chat proceeds.
type ToolList struct {
	Tools []llm.Tool
	Cause error
}

// CallBatch carries the resolved tool messages for one batch of tool
// calls. Degradation is batch-granular: on any failure Responses is empty
// and Cause records why.
type CallBatch struct {
	Responses []llm.Message
	Contents  []string
	Cause     error
}

// Adapter exposes the tool registry to the conversation pipeline with
// degrade-to-empty semantics.
type Adapter struct {
	client ToolCaller
	logger zerolog.Logger
}

// NewAdapter creates an adapter over the given tool client.
func NewAdapter(client ToolCaller, logger zerolog.Logger) *Adapter {
	return &Adapter{client: client, logger: logger}
}

// ListTools queries the registry. A registry outage never blocks plain
// chat; it yields an empty descriptor list with the cause recorded.
func (a *Adapter) ListTools(ctx context.Context) ToolList {
	tools, err := a.client.ListTools(ctx)
	if err != nil {
		a.logger.Warn().Err(err).Msg("Tool listing failed, continuing without tools")
		return ToolList{Tools: []llm.Tool{}, Cause: err}
	}
	return ToolList{Tools: tools}
}

// CallBatch resolves each tool call in order. Arguments are decoded from
// JSON text or structured form and validated against the tool's advertised
// schema. Any failure degrades the whole batch to an empty result set.
func (a *Adapter) CallBatch(ctx context.Context, calls []llm.ToolCall, tools []llm.Tool) CallBatch {
	responses := make([]llm.Message, 0, len(calls))
	contents := make([]string, 0, len(calls))

	for _, call := range calls {
		name := call.Function.Name

		args, err := call.Function.DecodeArguments()
		if err != nil {
			a.logger.Error().Err(err).Str("tool", name).Msg("Failed to decode tool arguments")
			return CallBatch{Responses: []llm.Message{}, Contents: []string{}, Cause: fmt.Errorf("invalid arguments for %s: %w", name, err)}
		}

		if err := validateArguments(tools, name, args); err != nil {
			a.logger.Error().Err(err).Str("tool", name).Msg("Tool argument validation failed")
			return CallBatch{Responses: []llm.Message{}, Contents: []string{}, Cause: err}
		}

		a.logger.Info().Str("tool", name).Interface("args", args).Msg("Calling tool")

		content, err := a.client.CallTool(ctx, name, args)
		if err != nil {
			a.logger.Error().Err(err).Str("tool", name).Msg("Tool call failed")
			return CallBatch{Responses: []llm.Message{}, Contents: []string{}, Cause: fmt.Errorf("tool %s failed: %w", name, err)}
		}

		responses = append(responses, llm.Message{
			Role:       llm.RoleTool,
			Content:    content,
			ToolCallID: call.ID,
			Name:       name,
		})
		contents = append(contents, content)
	}

	return CallBatch{Responses: responses, Contents: contents}
}

// validateArguments checks args against the schema the tool advertised.
// Unknown tools pass through; the server is the authority on its own
// registry.
func validateArguments(tools []llm.Tool, name string, args map[string]interface{}) error {
	var schema map[string]interface{}
	for _, tool := range tools {
		if tool.Function.Name == name {
			schema = tool.Function.Parameters
			break
		}
	}
	if schema == nil {
		return nil
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewGoLoader(schema),
		gojsonschema.NewGoLoader(args),
	)
	if err != nil {
		// Unloadable schemas are the server's problem, not the caller's.
		return nil
	}
	if !result.Valid() {
		issues := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			issues = append(issues, desc.String())
		}
		return fmt.Errorf("arguments for %s rejected by schema: %s", name, strings.Join(issues, "; "))
	}
	return nil
}
