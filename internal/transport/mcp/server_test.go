package mcp

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	mcpproto "github.com/mark3labs/mcp-go/mcp"
	"github.com/sandevgo/tuskmem/internal/core"
	"github.com/sandevgo/tuskmem/internal/sink"
	"github.com/sandevgo/tuskmem/internal/storage/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	ctx := context.Background()

	db, err := sqlite.NewDB(ctx, filepath.Join(t.TempDir(), "tuskmem.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := sqlite.NewMemoriesRepo(db)
	store := sink.NewStore(repo)
	ts := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	require.NoError(t, store.Transform(ctx, &core.AnalysisResult{
		ConversationID: "conv-a",
		Source:         "claude",
		Timestamp:      ts,
		AnalyzedAt:     ts,
		MessageCount:   2,
		UserIntents:    []core.Intent{{Text: "Wire the NATS publisher", Confidence: core.ConfidenceHigh}},
	}, core.TransformOptions{}))
	require.NoError(t, store.Transform(ctx, &core.AnalysisResult{
		ConversationID: "conv-b",
		Source:         "export",
		Timestamp:      ts,
		AnalyzedAt:     ts.Add(time.Hour),
		MessageCount:   1,
	}, core.TransformOptions{}))

	return NewServer(repo)
}

func call(name string, args map[string]any) mcpproto.CallToolRequest {
	req := mcpproto.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func text(t *testing.T, res *mcpproto.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.NotEmpty(t, res.Content)
	tc, ok := res.Content[0].(mcpproto.TextContent)
	require.True(t, ok)
	return tc.Text
}

func TestSearchMemories(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	res, err := s.searchMemories(ctx, call("search_memories", map[string]any{"query": "NATS"}))
	require.NoError(t, err)
	assert.False(t, res.IsError)

	var got []summary
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "conv-a", got[0].ConversationID)
	assert.Equal(t, "Wire the NATS publisher", got[0].Title)

	res, err = s.searchMemories(ctx, call("search_memories", map[string]any{}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestListMemories(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	res, err := s.listMemories(ctx, call("list_memories", map[string]any{"limit": float64(1)}))
	require.NoError(t, err)
	var got []summary
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "conv-b", got[0].ConversationID)
	assert.Equal(t, "Untitled conversation", got[0].Title)

	res, err = s.listMemories(ctx, call("list_memories", map[string]any{"source": "claude"}))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "claude", got[0].Source)
}

func TestGetMemory(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	res, err := s.getMemory(ctx, call("get_memory", map[string]any{"conversation_id": "conv-a"}))
	require.NoError(t, err)
	assert.Contains(t, text(t, res), "## Chat conv-a - 2025-06-01 - Wire the NATS publisher")

	res, err = s.getMemory(ctx, call("get_memory", map[string]any{"conversation_id": "missing"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}
