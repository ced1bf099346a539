// Package mcptool connects the conversation pipeline to an external MCP
// tool server over stdio JSON-RPC.
//
// Invariants:
// - Tool descriptors are advertised in the completion API function schema.
// - Registry or execution failures degrade to empty results with a
//   recorded cause; they never abort an exchange.
// - Tool call batches fail or succeed as a whole.
//
// Usage:
//
//	client := mcptool.NewClient("python3", []string{"main.py"}, logger)
//	adapter := mcptool.NewAdapter(client, logger)
//	list := adapter.ListTools(ctx)
//	_ = list.Tools
package mcptool
