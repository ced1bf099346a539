package mcptool

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/ItshMoh/ExamPrepAgent/pkg/llm"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCaller struct {
	tools   []llm.Tool
	listErr error
	results map[string]string
	callErr error
	calls   []string
}

func (f *fakeCaller) ListTools(ctx context.Context) ([]llm.Tool, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.tools, nil
}

func (f *fakeCaller) CallTool(ctx context.Context, name string, arguments map[string]interface{}) (string, error) {
	f.calls = append(f.calls, name)
	if f.callErr != nil {
		return "", f.callErr
	}
	return f.results[name], nil
}

func questionTool() llm.Tool {
	return llm.Tool{
		Type: "function",
		Function: llm.ToolFunction{
			Name: "get_random_question",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"topic": map[string]interface{}{"type": "string"},
				},
				"required": []interface{}{"topic"},
			},
		},
	}
}

func TestAdapter_ListTools_Degrades(t *testing.T) {
	caller := &fakeCaller{listErr: fmt.Errorf("server exited")}
	adapter := NewAdapter(caller, zerolog.Nop())

	list := adapter.ListTools(context.Background())

	assert.NotNil(t, list.Tools)
	assert.Empty(t, list.Tools)
	assert.ErrorContains(t, list.Cause, "server exited")
}

func TestAdapter_ListTools_PassesThrough(t *testing.T) {
	caller := &fakeCaller{tools: []llm.Tool{questionTool()}}
	adapter := NewAdapter(caller, zerolog.Nop())

	list := adapter.ListTools(context.Background())

	require.NoError(t, list.Cause)
	require.Len(t, list.Tools, 1)
	assert.Equal(t, "get_random_question", list.Tools[0].Function.Name)
}

func TestAdapter_CallBatch_ResolvesInOrder(t *testing.T) {
	caller := &fakeCaller{results: map[string]string{
		"get_random_question":     "Q: what is a pod?",
		"get_question_and_answer": "Q: what is etcd? A: a kv store",
	}}
	adapter := NewAdapter(caller, zerolog.Nop())

	calls := []llm.ToolCall{
		{ID: "c1", Function: llm.FunctionCall{Name: "get_random_question", Arguments: json.RawMessage(`{"topic":"pods"}`)}},
		{ID: "c2", Function: llm.FunctionCall{Name: "get_question_and_answer", Arguments: json.RawMessage(`"{\"query\":\"etcd\"}"`)}},
	}

	batch := adapter.CallBatch(context.Background(), calls, nil)

	require.NoError(t, batch.Cause)
	assert.Equal(t, []string{"get_random_question", "get_question_and_answer"}, caller.calls)
	require.Len(t, batch.Responses, 2)
	assert.Equal(t, llm.RoleTool, batch.Responses[0].Role)
	assert.Equal(t, "c1", batch.Responses[0].ToolCallID)
	assert.Equal(t, "get_random_question", batch.Responses[0].Name)
	assert.Equal(t, "Q: what is a pod?", batch.Responses[0].Content)
	assert.Equal(t, []string{"Q: what is a pod?", "Q: what is etcd? A: a kv store"}, batch.Contents)
}

func TestAdapter_CallBatch_FailureEmptiesWholeBatch(t *testing.T) {
	caller := &fakeCaller{callErr: fmt.Errorf("broken pipe")}
	adapter := NewAdapter(caller, zerolog.Nop())

	calls := []llm.ToolCall{
		{ID: "c1", Function: llm.FunctionCall{Name: "get_random_question", Arguments: json.RawMessage(`{}`)}},
	}

	batch := adapter.CallBatch(context.Background(), calls, nil)

	assert.Empty(t, batch.Responses)
	assert.Empty(t, batch.Contents)
	assert.ErrorContains(t, batch.Cause, "broken pipe")
}

func TestAdapter_CallBatch_UndecodableArguments(t *testing.T) {
	caller := &fakeCaller{}
	adapter := NewAdapter(caller, zerolog.Nop())

	calls := []llm.ToolCall{
		{ID: "c1", Function: llm.FunctionCall{Name: "get_random_question", Arguments: json.RawMessage(`[1,2]`)}},
	}

	batch := adapter.CallBatch(context.Background(), calls, nil)

	assert.Empty(t, batch.Responses)
	assert.ErrorContains(t, batch.Cause, "invalid arguments")
	// Nothing is dispatched after a decode failure.
	assert.Empty(t, caller.calls)
}

func TestAdapter_CallBatch_SchemaValidation(t *testing.T) {
	caller := &fakeCaller{results: map[string]string{"get_random_question": "ok"}}
	adapter := NewAdapter(caller, zerolog.Nop())
	tools := []llm.Tool{questionTool()}

	// Missing the required topic argument.
	calls := []llm.ToolCall{
		{ID: "c1", Function: llm.FunctionCall{Name: "get_random_question", Arguments: json.RawMessage(`{}`)}},
	}
	batch := adapter.CallBatch(context.Background(), calls, tools)
	assert.Error(t, batch.Cause)
	assert.Empty(t, caller.calls)

	// Valid arguments pass.
	calls[0].Function.Arguments = json.RawMessage(`{"topic":"pods"}`)
	batch = adapter.CallBatch(context.Background(), calls, tools)
	require.NoError(t, batch.Cause)
	assert.Equal(t, []string{"get_random_question"}, caller.calls)
}

func TestAdapter_CallBatch_UnknownToolSkipsValidation(t *testing.T) {
	caller := &fakeCaller{results: map[string]string{"mystery": "answer"}}
	adapter := NewAdapter(caller, zerolog.Nop())

	calls := []llm.ToolCall{
		{ID: "c1", Function: llm.FunctionCall{Name: "mystery", Arguments: json.RawMessage(`{"anything":1}`)}},
	}

	batch := adapter.CallBatch(context.Background(), calls, []llm.Tool{questionTool()})

	require.NoError(t, batch.Cause)
	require.Len(t, batch.Contents, 1)
	assert.Equal(t, "answer", batch.Contents[0])
}
