package mcptool

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"time"

	"github.com/ItshMoh/ExamPrepAgent/pkg/llm"
	"github.com/rs/zerolog"
)

// MCP JSON-RPC messages
type rpcRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
	ID      interface{} `json:"id,omitempty"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
	ID      interface{}     `json:"id"`
}

type rpcError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

const requestTimeout = 30 * time.Second

// Client speaks the Model Context Protocol to a tool server spawned as a
// child process.
type Client struct {
	command string
	args    []string
	logger  zerolog.Logger

	mu      sync.Mutex
	process *exec.Cmd
	stdin   io.WriteCloser
	stdout  *bufio.Scanner
	id      int
	pending map[int]chan *rpcResponse
}

// NewClient creates an MCP client for the given server command.
func NewClient(command string, args []string, logger zerolog.Logger) *Client {
	return &Client{
		command: command,
		args:    args,
		logger:  logger,
		pending: make(map[int]chan *rpcResponse),
	}
}

// Start launches the tool server process and performs the initialize
// handshake. Calling Start on a running client is a no-op.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.process != nil {
		return nil
	}

	cmd := exec.CommandContext(ctx, c.command, c.args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}

	if err := cmd.Start(); err != nil {
		return err
	}

	c.process = cmd
	c.stdin = stdin
	c.stdout = bufio.NewScanner(stdout)

	go c.listen()

	return c.initialize(ctx)
}

func (c *Client) listen() {
	for c.stdout.Scan() {
		var resp rpcResponse
		if err := json.Unmarshal(c.stdout.Bytes(), &resp); err != nil {
			c.logger.Error().Err(err).Msg("Failed to unmarshal MCP response")
			continue
		}

		if id, ok := resp.ID.(float64); ok {
			c.mu.Lock()
			ch, exists := c.pending[int(id)]
			if exists {
				delete(c.pending, int(id))
				ch <- &resp
			}
			c.mu.Unlock()
		}
	}
}

func (c *Client) initialize(ctx context.Context) error {
	params := map[string]interface{}{
		"protocolVersion": "2024-11-05",
		"capabilities":    map[string]interface{}{},
		"clientInfo": map[string]interface{}{
			"name":    "ExamPrepAgent",
			"version": "0.1.0",
		},
	}
	if _, err := c.call(ctx, "initialize", params); err != nil {
		return err
	}
	return c.notify("notifications/initialized", map[string]interface{}{})
}

func (c *Client) notify(method string, params interface{}) error {
	c.mu.Lock()
	stdin := c.stdin
	c.mu.Unlock()

	data, err := json.Marshal(rpcRequest{JSONRPC: "2.0", Method: method, Params: params})
	if err != nil {
		return err
	}
	_, err = io.WriteString(stdin, string(data)+"\n")
	return err
}

func (c *Client) call(ctx context.Context, method string, params interface{}) (*rpcResponse, error) {
	c.mu.Lock()
	c.id++
	id := c.id
	ch := make(chan *rpcResponse, 1)
	c.pending[id] = ch
	stdin := c.stdin
	c.mu.Unlock()

	req := rpcRequest{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      id,
	}

	data, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	if _, err := io.WriteString(stdin, string(data)+"\n"); err != nil {
		return nil, err
	}

	select {
	case resp := <-ch:
		if resp.Error != nil {
			return nil, fmt.Errorf("MCP error (%d): %s", resp.Error.Code, resp.Error.Message)
		}
		return resp, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(requestTimeout):
		return nil, fmt.Errorf("MCP request timeout")
	}
}

// ListTools fetches the tool definitions from the server and converts them
// to the completion API function-calling schema.
func (c *Client) ListTools(ctx context.Context) ([]llm.Tool, error) {
	if err := c.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start MCP server: %w", err)
	}

	resp, err := c.call(ctx, "tools/list", nil)
	if err != nil {
		return nil, err
	}

	var listResult struct {
		Tools []struct {
			Name        string          `json:"name"`
			Description string          `json:"description"`
			InputSchema json.RawMessage `json:"inputSchema"`
		} `json:"tools"`
	}
	if err := json.Unmarshal(resp.Result, &listResult); err != nil {
		return nil, err
	}

	tools := make([]llm.Tool, 0, len(listResult.Tools))
	for _, t := range listResult.Tools {
		tools = append(tools, llm.Tool{
			Type: "function",
			Function: llm.ToolFunction{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  convertInputSchema(t.InputSchema),
			},
		})
	}

	return tools, nil
}

// CallTool executes a named tool and returns its textual result. Text
// content parts are preferred; a structured payload is JSON-serialized;
// with neither present the literal "No result" placeholder is returned.
func (c *Client) CallTool(ctx context.Context, name string, arguments map[string]interface{}) (string, error) {
	if err := c.Start(ctx); err != nil {
		return "", fmt.Errorf("failed to start MCP server: %w", err)
	}

	resp, err := c.call(ctx, "tools/call", map[string]interface{}{
		"name":      name,
		"arguments": arguments,
	})
	if err != nil {
		return "", err
	}

	var result toolCallResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return "", err
	}

	return extractResultText(result), nil
}

// Stop terminates the tool server process.
func (c *Client) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.process != nil && c.process.Process != nil {
		return c.process.Process.Kill()
	}
	return nil
}

// convertInputSchema reshapes an MCP inputSchema into the completion API
// parameters object: {type: object, properties, required}.
func convertInputSchema(schema json.RawMessage) map[string]interface{} {
	params := map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{},
		"required":   []interface{}{},
	}
	if len(schema) == 0 {
		return params
	}

	var schemaMap map[string]interface{}
	if err := json.Unmarshal(schema, &schemaMap); err != nil {
		return params
	}

	if properties, ok := schemaMap["properties"].(map[string]interface{}); ok {
		params["properties"] = properties
	}
	if required, ok := schemaMap["required"].([]interface{}); ok {
		params["required"] = required
	}

	return params
}

type contentPart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type toolCallResult struct {
	Content           []contentPart   `json:"content"`
	StructuredContent json.RawMessage `json:"structuredContent"`
}

func extractResultText(result toolCallResult) string {
	text := ""
	for _, part := range result.Content {
		text += part.Text
	}
	if text != "" {
		return text
	}
	if len(result.StructuredContent) > 0 && string(result.StructuredContent) != "null" {
		return string(result.StructuredContent)
	}
	return "No result"
}
