// Package mcptools exposes the store as MCP tools.
package mcptools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"filekv/internal/store"
)

// Register adds the kv-* tools to s.
func Register(s *server.MCPServer, st *store.Store) {
	s.AddTool(mcp.NewTool("kv-create",
		mcp.WithDescription(multiline(
			"Stores a value under a new key",
			"- Fails if the key already holds a live value",
			fmt.Sprintf("- Keys are at most %d bytes, values at most %d bytes", store.MaxKeySize, store.MaxValueSize),
			"- ttl_seconds is optional; omitted or 0 means the key never expires",
		)),
		mcp.WithString("key", mcp.Required(), mcp.Description("The key to create")),
		mcp.WithString("value", mcp.Required(), mcp.Description("The value to store")),
		mcp.WithNumber("ttl_seconds", mcp.Description("Seconds until the key expires")),
	), CreateHandler(st))

	s.AddTool(mcp.NewTool("kv-read",
		mcp.WithDescription("Returns the value stored under a key, if it exists and has not expired"),
		mcp.WithString("key", mcp.Required(), mcp.Description("The key to read")),
	), ReadHandler(st))

	s.AddTool(mcp.NewTool("kv-delete",
		mcp.WithDescription("Deletes a key"),
		mcp.WithString("key", mcp.Required(), mcp.Description("The key to delete")),
	), DeleteHandler(st))

	s.AddTool(mcp.NewTool("kv-list",
		mcp.WithDescription("Lists every live key and its value as a JSON object"),
	), ListHandler(st))
}

// CreateHandler returns the MCP tool handler for the "kv-create" tool.
func CreateHandler(st *store.Store) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if ctx.Err() != nil {
			return mcp.NewToolResultError(ctx.Err().Error()), nil
		}
		key, err := req.RequireString("key")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		value, err := req.RequireString("value")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		ttl, err := ttlArgument(req)
		if err != nil {
			return toolError(err), nil
		}

		if err := st.Create(key, value, ttl); err != nil {
			return toolError(err), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("created %q", key)), nil
	}
}

// ReadHandler returns the MCP tool handler for the "kv-read" tool.
func ReadHandler(st *store.Store) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		key, err := req.RequireString("key")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		value, err := st.Read(key)
		if err != nil {
			return toolError(err), nil
		}
		return mcp.NewToolResultText(value), nil
	}
}

// DeleteHandler returns the MCP tool handler for the "kv-delete" tool.
func DeleteHandler(st *store.Store) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if ctx.Err() != nil {
			return mcp.NewToolResultError(ctx.Err().Error()), nil
		}
		key, err := req.RequireString("key")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		if err := st.Delete(key); err != nil {
			return toolError(err), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("deleted %q", key)), nil
	}
}

// ListHandler returns the MCP tool handler for the "kv-list" tool.
func ListHandler(st *store.Store) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		entries := st.List()

		out := make(map[string]string, len(entries))
		for k, e := range entries {
			out[k] = e.Value
		}
		b, err := json.Marshal(out)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(string(b)), nil
	}
}

// ttlArgument reads the optional "ttl_seconds" argument. JSON numbers arrive
// as float64; anything outside the int64 range is rejected before conversion.
func ttlArgument(req mcp.CallToolRequest) (time.Duration, error) {
	secs := req.GetFloat("ttl_seconds", 0)
	if secs < 0 || secs > float64(store.MaxTTLSeconds) {
		return 0, fmt.Errorf("%w: ttl_seconds %g out of range [0, %d]", store.ErrInvalidTTL, secs, store.MaxTTLSeconds)
	}
	return store.TTLFromSeconds(int64(secs))
}

// toolError prefixes the message with the error kind so callers can tell
// failures apart without parsing prose.
func toolError(err error) *mcp.CallToolResult {
	kind := store.Kind(err)
	if kind == "" {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultError(kind + ": " + err.Error())
}

// multiline joins lines with newlines for tool descriptions.
func multiline(lines ...string) string { return strings.Join(lines, "\n") }
