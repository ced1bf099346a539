// Package agent orchestrates one conversational exchange: context
// retrieval, completion, an optional single round of tool resolution, and
// context persistence.
//
// Invariants:
// - At most one tool-resolution round per exchange; further tool calls
//   requested by the post-tool reply are not resolved.
// - Tool registry or execution failures degrade to empty results and
//   never abort an exchange; completion and store failures propagate.
// - The audio entry point always returns a structured result.
//
// Usage:
//
//	runner, _ := agent.NewRunner(agent.Config{...})
//	response, _ := runner.ProcessMessage(ctx, "session-1", "hello")
//	_ = response
package agent
