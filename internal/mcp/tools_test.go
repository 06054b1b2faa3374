package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/memvault-mcp/internal/config"
	"github.com/dshills/memvault-mcp/internal/gitsync"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := config.Config{
		BaseDir:          t.TempDir(),
		MaxSearchResults: 25,
		EnableSync:       false,
	}
	s, err := NewServer(cfg, zerolog.Nop())
	require.NoError(t, err)
	return s
}

func toolRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

// decodeText unmarshals the single text content of a tool result into v.
func decodeText(t *testing.T, res *mcp.CallToolResult, v interface{}) {
	t.Helper()
	require.Len(t, res.Content, 1)
	tc, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content")
	require.NoError(t, json.Unmarshal([]byte(tc.Text), v))
}

func remember(t *testing.T, s *Server, topics []interface{}, content string) string {
	t.Helper()
	res, err := s.handleRemember(context.Background(), toolRequest("remember", map[string]interface{}{
		"agent":   "claude",
		"user":    "dennis",
		"topics":  topics,
		"content": content,
	}))
	require.NoError(t, err)

	var payload map[string]interface{}
	decodeText(t, res, &payload)
	id, _ := payload["memory_id"].(string)
	require.Len(t, id, 8)
	return id
}

func TestRememberReturnsIdentifierAndFilename(t *testing.T) {
	s := newTestServer(t)

	res, err := s.handleRemember(context.Background(), toolRequest("remember", map[string]interface{}{
		"agent":   "claude",
		"user":    "dennis",
		"topics":  []interface{}{"go", "testing"},
		"content": "Prefers table-driven tests.",
	}))
	require.NoError(t, err)

	var payload map[string]interface{}
	decodeText(t, res, &payload)

	id := payload["memory_id"].(string)
	assert.Regexp(t, "^[0-9a-f]{8}$", id)
	assert.Contains(t, payload["message"], id)
	assert.Contains(t, payload["filename"], id)
	assert.NotEmpty(t, payload["timestamp"])
}

func TestRememberValidationFailureIsStructured(t *testing.T) {
	s := newTestServer(t)

	res, err := s.handleRemember(context.Background(), toolRequest("remember", map[string]interface{}{
		"agent":   "",
		"user":    "dennis",
		"topics":  []interface{}{"go"},
		"content": "x",
	}))
	require.NoError(t, err, "domain failures are payloads, not protocol errors")

	var payload map[string]interface{}
	decodeText(t, res, &payload)
	assert.Equal(t, "", payload["memory_id"])
	assert.Equal(t, "VALIDATION_ERROR", payload["error_code"])
	assert.NotEmpty(t, payload["error"])
}

func TestRememberMissingParamIsProtocolError(t *testing.T) {
	s := newTestServer(t)

	_, err := s.handleRemember(context.Background(), toolRequest("remember", map[string]interface{}{
		"agent": "claude",
		"user":  "dennis",
		// topics and content missing
	}))
	require.Error(t, err)

	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrorCodeInvalidParams, mcpErr.Code)
}

func TestThinkRanksByRelevance(t *testing.T) {
	s := newTestServer(t)

	remember(t, s, []interface{}{"cooking"}, "pasta recipe")
	want := remember(t, s, []interface{}{"golang", "concurrency"}, "golang channels beat mutexes for pipelines")

	res, err := s.handleThink(context.Background(), toolRequest("think", map[string]interface{}{
		"keywords": []interface{}{"golang"},
	}))
	require.NoError(t, err)

	var results []map[string]interface{}
	decodeText(t, res, &results)
	require.Len(t, results, 1)
	assert.Equal(t, want, results[0]["memory_id"])
	assert.Contains(t, results[0]["matching_keywords"], "golang")
	assert.Greater(t, results[0]["relevance_score"].(float64), float64(0))
}

func TestThinkEmptyKeywordsYieldsEmptyArray(t *testing.T) {
	s := newTestServer(t)
	remember(t, s, []interface{}{"go"}, "anything")

	res, err := s.handleThink(context.Background(), toolRequest("think", map[string]interface{}{
		"keywords": []interface{}{},
	}))
	require.NoError(t, err)

	var results []map[string]interface{}
	decodeText(t, res, &results)
	assert.Empty(t, results)
}

func TestRecallMixesHitsAndPerIDErrors(t *testing.T) {
	s := newTestServer(t)
	id := remember(t, s, []interface{}{"go"}, "full record body")

	res, err := s.handleRecall(context.Background(), toolRequest("recall", map[string]interface{}{
		"memory_ids": []interface{}{id, "deadbeef", "not-an-id"},
	}))
	require.NoError(t, err)

	var entries []map[string]interface{}
	decodeText(t, res, &entries)
	require.Len(t, entries, 3)

	assert.Equal(t, id, entries[0]["memory_id"])
	assert.Equal(t, "full record body", entries[0]["content"])
	assert.Equal(t, "claude", entries[0]["agent"])
	assert.Equal(t, "dennis", entries[0]["user"])

	assert.Equal(t, "deadbeef", entries[1]["memory_id"])
	assert.Equal(t, "NOT_FOUND", entries[1]["error_code"])

	assert.Equal(t, "not-an-id", entries[2]["memory_id"])
	assert.Equal(t, "VALIDATION_ERROR", entries[2]["error_code"])
}

func TestRecallRoundTripPreservesRecord(t *testing.T) {
	s := newTestServer(t)
	content := "line one\n\n  indented line\nlast"
	id := remember(t, s, []interface{}{"alpha", "beta"}, content)

	res, err := s.handleRecall(context.Background(), toolRequest("recall", map[string]interface{}{
		"memory_ids": []interface{}{id},
	}))
	require.NoError(t, err)

	var entries []map[string]interface{}
	decodeText(t, res, &entries)
	require.Len(t, entries, 1)
	assert.Equal(t, content, entries[0]["content"])
	assert.Equal(t, []interface{}{"alpha", "beta"}, entries[0]["topics"])
}

func TestInvalidArgumentShapeIsProtocolError(t *testing.T) {
	s := newTestServer(t)

	req := mcp.CallToolRequest{}
	req.Params.Name = "think"
	req.Params.Arguments = "not a map"

	_, err := s.handleThink(context.Background(), req)
	require.Error(t, err)

	var mcpErr *MCPError
	assert.ErrorAs(t, err, &mcpErr)
}

func TestStringSliceRejectsMixedTypes(t *testing.T) {
	s := newTestServer(t)

	_, err := s.handleThink(context.Background(), toolRequest("think", map[string]interface{}{
		"keywords": []interface{}{"ok", 42},
	}))
	require.Error(t, err)

	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrorCodeInvalidParams, mcpErr.Code)
}

// unreachableRunner fails every git invocation, simulating a remote that
// cannot be reached for the lifetime of the process.
type unreachableRunner struct{}

func (unreachableRunner) Run(context.Context, string, ...string) (string, error) {
	return "", errors.New("could not resolve host")
}

func TestRememberResultUnaffectedByReplicationFailure(t *testing.T) {
	s := newTestServer(t)
	syncer := gitsync.New(gitsync.Config{
		RepoDir:        t.TempDir(),
		RemoteURL:      "git@unreachable.example.com:team/memories.git",
		Workers:        1,
		RetryAttempts:  2,
		RetryDelay:     time.Millisecond,
		CommandTimeout: time.Second,
	}, unreachableRunner{}, zerolog.Nop())

	ctx := context.Background()
	syncer.Start(ctx)
	s.syncer = syncer

	res, err := s.handleRemember(ctx, toolRequest("remember", map[string]interface{}{
		"agent":   "claude",
		"user":    "dennis",
		"topics":  []interface{}{"go"},
		"content": "survives a dead remote",
	}))
	require.NoError(t, err)

	var payload map[string]interface{}
	decodeText(t, res, &payload)
	id, _ := payload["memory_id"].(string)
	assert.Regexp(t, "^[0-9a-f]{8}$", id)
	assert.Contains(t, payload["filename"], id)
	_, hasErr := payload["error_code"]
	assert.False(t, hasErr, "replication failure must not surface in the create result")

	require.NoError(t, syncer.Shutdown(ctx))

	// The record is on disk and fetchable regardless of the sync outcome.
	recall, err := s.handleRecall(ctx, toolRequest("recall", map[string]interface{}{
		"memory_ids": []interface{}{id},
	}))
	require.NoError(t, err)
	var entries []map[string]interface{}
	decodeText(t, recall, &entries)
	require.Len(t, entries, 1)
	assert.Equal(t, "survives a dead remote", entries[0]["content"])
}

func TestNewServerWithSyncDisabledHasNoSyncer(t *testing.T) {
	s := newTestServer(t)
	assert.Nil(t, s.syncer)
	assert.NotNil(t, s.store)
	assert.NotNil(t, s.engine)
	assert.NotNil(t, s.cache)
}
