package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/memvault-mcp/internal/search"
	"github.com/dshills/memvault-mcp/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams = -32602 // Invalid method parameters
	ErrorCodeInternalError = -32603 // Internal JSON-RPC error
)

// timestampFormat is how record timestamps appear in tool responses.
const timestampFormat = time.RFC3339Nano

// handleRemember handles the remember tool invocation. Domain failures
// come back as a structured payload with an empty memory_id; only a
// malformed request shape is a protocol error.
func (s *Server) handleRemember(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	agent, ok := args["agent"].(string)
	if !ok {
		return nil, missingParam("agent")
	}
	user, ok := args["user"].(string)
	if !ok {
		return nil, missingParam("user")
	}
	content, ok := args["content"].(string)
	if !ok {
		return nil, missingParam("content")
	}
	topics, err := stringSlice(args, "topics")
	if err != nil {
		return nil, err
	}

	rec, filename, err := s.store.Create(ctx, agent, user, topics, content)
	if err != nil {
		s.log.Error().Err(err).Msg("remember failed")
		return mcp.NewToolResultText(formatJSON(errorPayload(err))), nil
	}

	if s.syncer != nil {
		s.syncer.Enqueue(rec.ID, filename)
	}

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"memory_id": rec.ID,
		"message":   fmt.Sprintf("Memory stored successfully with ID: %s", rec.ID),
		"timestamp": rec.Timestamp.Format(timestampFormat),
		"filename":  filename,
	})), nil
}

// handleThink handles the think tool invocation.
func (s *Server) handleThink(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	keywords, err := stringSlice(args, "keywords")
	if err != nil {
		return nil, err
	}

	results, err := s.engine.Search(ctx, search.Request{Keywords: keywords})
	if err != nil {
		// Total failure yields a single-element error array.
		s.log.Error().Err(err).Msg("think failed")
		return mcp.NewToolResultText(formatJSON([]interface{}{errorPayload(err)})), nil
	}

	out := make([]interface{}, 0, len(results))
	for _, r := range results {
		out = append(out, map[string]interface{}{
			"memory_id":         r.ID,
			"timestamp":         r.Timestamp.Format(timestampFormat),
			"relevance_score":   r.Score,
			"matching_keywords": r.MatchingKeywords,
		})
	}
	return mcp.NewToolResultText(formatJSON(out)), nil
}

// handleRecall handles the recall tool invocation. Each identifier
// resolves independently: a missing or malformed record yields a per-id
// error entry without failing the rest of the batch.
func (s *Server) handleRecall(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	ids, err := stringSlice(args, "memory_ids")
	if err != nil {
		return nil, err
	}

	entries := make([]types.RecallEntry, 0, len(ids))
	for _, id := range ids {
		rec, err := s.store.Fetch(ctx, id)
		entries = append(entries, types.RecallEntry{ID: id, Record: rec, Err: err})
	}

	out := make([]interface{}, 0, len(entries))
	for _, e := range entries {
		if e.Err != nil {
			payload := errorPayload(e.Err)
			payload["memory_id"] = e.ID
			out = append(out, payload)
			continue
		}
		out = append(out, map[string]interface{}{
			"memory_id": e.Record.ID,
			"timestamp": e.Record.Timestamp.Format(timestampFormat),
			"agent":     e.Record.Agent,
			"user":      e.Record.User,
			"topics":    e.Record.Topics,
			"content":   e.Record.Content,
		})
	}
	return mcp.NewToolResultText(formatJSON(out)), nil
}

// Helper functions

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

func missingParam(name string) error {
	return newMCPError(ErrorCodeInvalidParams, fmt.Sprintf("%s parameter is required", name), map[string]interface{}{
		"param":  name,
		"reason": "missing or wrong type",
	})
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// errorPayload maps a domain error onto the structured failure shape the
// dispatch contract promises.
func errorPayload(err error) map[string]interface{} {
	return map[string]interface{}{
		"memory_id":  "",
		"error":      err.Error(),
		"error_code": errorCode(err),
	}
}

// errorCode classifies err per the error taxonomy.
func errorCode(err error) string {
	var (
		ve *types.ValidationError
		se *types.StorageError
		pe *types.ParseError
		nf *types.NotFoundError
	)
	switch {
	case errors.As(err, &ve):
		return "VALIDATION_ERROR"
	case errors.As(err, &nf):
		return "NOT_FOUND"
	case errors.As(err, &pe):
		return "PARSE_ERROR"
	case errors.As(err, &se):
		if errors.Is(err, types.ErrLockTimeout) {
			return "LOCK_TIMEOUT"
		}
		return "STORAGE_ERROR"
	default:
		return "INTERNAL_ERROR"
	}
}

// stringSlice extracts a []string parameter from decoded JSON arguments.
func stringSlice(args map[string]interface{}, key string) ([]string, error) {
	raw, ok := args[key]
	if !ok {
		return nil, missingParam(key)
	}
	items, ok := raw.([]interface{})
	if !ok {
		// Already-typed slices show up in direct (in-process) calls.
		if typed, ok := raw.([]string); ok {
			return typed, nil
		}
		return nil, missingParam(key)
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, newMCPError(ErrorCodeInvalidParams, fmt.Sprintf("%s must be an array of strings", key), nil)
		}
		out = append(out, s)
	}
	return out, nil
}

// formatJSON formats a value as indented JSON
func formatJSON(v interface{}) string {
	bytes, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(bytes)
}
