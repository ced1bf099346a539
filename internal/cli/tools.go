package cli

import (
	"context"
	"fmt"

	"github.com/ItshMoh/ExamPrepAgent/pkg/llm"
)

// noToolServer stands in when no MCP command is configured; every exchange
// then degrades to plain chat.
type noToolServer struct{}

func (noToolServer) ListTools(ctx context.Context) ([]llm.Tool, error) {
	return nil, fmt.Errorf("no tool server configured")
}

func (noToolServer) CallTool(ctx context.Context, name string, arguments map[string]interface{}) (string, error) {
	return "", fmt.Errorf("no tool server configured")
}
