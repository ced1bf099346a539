package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/rs/zerolog"
)

const (
	// DefaultTemperature matches the fixed sampling temperature of the
	// completion endpoint contract.
	DefaultTemperature = 0.7

	// defaultRequestTimeout is minutes-scale to accommodate slow model
	// inference on self-hosted endpoints.
	defaultRequestTimeout = 100 * time.Minute
)

// Config holds completion client configuration.
type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	Timeout     time.Duration
	Logger      zerolog.Logger
}

// Client issues synchronous chat completion requests. It performs no
// retries; resilience is the caller's concern.
type Client struct {
	api         openai.Client
	model       string
	temperature float64
	logger      zerolog.Logger
}

// NewClient creates a completion client for an OpenAI-compatible endpoint.
// A blank API key is replaced with the literal "dummy" bearer token, which
// keyless local servers accept.
func NewClient(cfg Config) *Client {
	apiKey := cfg.APIKey
	if strings.TrimSpace(apiKey) == "" {
		apiKey = "dummy"
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	temperature := cfg.Temperature
	if temperature == 0 {
		temperature = DefaultTemperature
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithRequestTimeout(timeout),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &Client{
		api:         openai.NewClient(opts...),
		model:       cfg.Model,
		temperature: temperature,
		logger:      cfg.Logger,
	}
}

// Complete sends messages to the chat completion endpoint and returns the
// assistant reply, which may itself request tool calls. Tool fields are
// attached only when tools are supplied.
func (c *Client) Complete(ctx context.Context, messages []Message, tools []Tool, toolChoice string) (*Message, error) {
	if len(messages) == 0 {
		return nil, fmt.Errorf("messages cannot be empty")
	}

	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(c.model),
		Messages:    make([]openai.ChatCompletionMessageParamUnion, 0, len(messages)),
		Temperature: openai.Float(c.temperature),
	}

	for _, msg := range messages {
		converted, err := convertMessage(msg)
		if err != nil {
			return nil, err
		}
		params.Messages = append(params.Messages, converted)
	}

	if len(tools) > 0 {
		if toolChoice == "" {
			toolChoice = ToolChoiceAuto
		}
		params.Tools = convertTools(tools)
		params.ToolChoice = openai.ChatCompletionToolChoiceOptionUnionParam{
			OfAuto: openai.String(toolChoice),
		}
	}

	c.logger.Debug().
		Str("model", c.model).
		Int("messages", len(messages)).
		Int("tools", len(tools)).
		Msg("Sending chat completion request")

	response, err := c.api.Chat.Completions.New(ctx, params)
	if err != nil {
		body := ""
		var apierr *openai.Error
		if errors.As(err, &apierr) {
			body = string(apierr.DumpResponse(true))
		}
		c.logger.Error().Err(err).Msg("Chat completion request failed")
		return nil, &CompletionRequestError{Err: err, Body: body}
	}

	if len(response.Choices) == 0 {
		return nil, &CompletionRequestError{Err: fmt.Errorf("no response choices returned")}
	}

	choice := response.Choices[0]

	reply := &Message{
		Role:    RoleAssistant,
		Content: choice.Message.Content,
	}
	for _, tc := range choice.Message.ToolCalls {
		reply.ToolCalls = append(reply.ToolCalls, ToolCall{
			ID:   tc.ID,
			Type: "function",
			Function: FunctionCall{
				Name:      tc.Function.Name,
				Arguments: json.RawMessage(tc.Function.Arguments),
			},
		})
	}

	return reply, nil
}

func convertMessage(msg Message) (openai.ChatCompletionMessageParamUnion, error) {
	switch msg.Role {
	case RoleSystem:
		return openai.SystemMessage(msg.Content), nil
	case RoleUser:
		return openai.UserMessage(msg.Content), nil
	case RoleAssistant:
		if len(msg.ToolCalls) == 0 {
			return openai.AssistantMessage(msg.Content), nil
		}
		toolCalls := make([]openai.ChatCompletionMessageToolCall, 0, len(msg.ToolCalls))
		for _, tc := range msg.ToolCalls {
			toolCalls = append(toolCalls, openai.ChatCompletionMessageToolCall{
				ID:   tc.ID,
				Type: "function",
				Function: openai.ChatCompletionMessageToolCallFunction{
					Name:      tc.Function.Name,
					Arguments: tc.Function.ArgumentsText(),
				},
			})
		}
		assistantMsg := openai.ChatCompletionMessage{
			Role:      "assistant",
			Content:   msg.Content,
			ToolCalls: toolCalls,
		}
		return assistantMsg.ToParam(), nil
	case RoleTool:
		return openai.ChatCompletionMessageParamUnion{
			OfTool: &openai.ChatCompletionToolMessageParam{
				ToolCallID: msg.ToolCallID,
				Content: openai.ChatCompletionToolMessageParamContentUnion{
					OfString: openai.String(msg.Content),
				},
			},
		}, nil
	default:
		return openai.ChatCompletionMessageParamUnion{}, fmt.Errorf("unsupported message role: %s", msg.Role)
	}
}

func convertTools(tools []Tool) []openai.ChatCompletionToolParam {
	converted := make([]openai.ChatCompletionToolParam, 0, len(tools))
	for _, tool := range tools {
		converted = append(converted, openai.ChatCompletionToolParam{
			Type: "function",
			Function: openai.FunctionDefinitionParam{
				Name:        tool.Function.Name,
				Description: openai.String(tool.Function.Description),
				Parameters:  openai.FunctionParameters(tool.Function.Parameters),
			},
		})
	}
	return converted
}
