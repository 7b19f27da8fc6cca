package ui

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sandevgo/tuskmem/internal/cache"
	"github.com/sandevgo/tuskmem/internal/core"
	"github.com/sandevgo/tuskmem/internal/service/consolidate"
	"github.com/sandevgo/tuskmem/internal/service/poller"
	"github.com/sandevgo/tuskmem/internal/service/stats"
	"github.com/sandevgo/tuskmem/internal/sink"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func storedMemory(t *testing.T, id, intent string) core.StoredMemory {
	t.Helper()
	payload, err := json.Marshal(core.AnalysisResult{
		ConversationID: id,
		Timestamp:      time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC),
		UserIntents:    []core.Intent{{Text: intent, Confidence: core.ConfidenceLow}},
	})
	require.NoError(t, err)
	return core.StoredMemory{
		ID:             id + "-mem",
		ConversationID: id,
		Source:         "claude",
		MessageCount:   2,
		Payload:        string(payload),
		AnalyzedAt:     time.Date(2025, 8, 1, 1, 0, 0, 0, time.UTC),
	}
}

func TestBrowser_OpenAndClose(t *testing.T) {
	b := NewBrowser([]core.StoredMemory{
		storedMemory(t, "conv-a", "Tune the poll interval"),
		{ID: "broken", Payload: "{"},
	})

	m, _ := b.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	b = m.(Browser)

	sel, ok := b.Selected()
	require.True(t, ok)
	assert.Equal(t, "conv-a", sel.ConversationID)
	assert.Len(t, b.list.Items(), 1)

	m, _ = b.Update(tea.KeyMsg{Type: tea.KeyEnter})
	b = m.(Browser)
	assert.True(t, b.InDetail())
	assert.Contains(t, b.View(), "Tune the poll interval")

	m, _ = b.Update(tea.KeyMsg{Type: tea.KeyEsc})
	b = m.(Browser)
	assert.False(t, b.InDetail())
}

func TestBrowser_CtrlCQuits(t *testing.T) {
	b := NewBrowser(nil)
	_, cmd := b.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	_, ok := cmd().(tea.QuitMsg)
	assert.True(t, ok)
}

func TestRenderPoll(t *testing.T) {
	out := RenderPoll("claude", poller.PollStats{
		Available: true,
		Read:      3,
		Processed: 2,
		Skipped:   1,
		Cache:     &cache.WriteStats{CacheDir: "/tmp/cache/claude", NewChunksWritten: 2},
	})
	assert.Contains(t, out, "Capture: claude")
	assert.Contains(t, out, "/tmp/cache/claude")

	assert.Contains(t, RenderPoll("gone", poller.PollStats{}), "source not available")
}

func TestRenderConsolidation(t *testing.T) {
	out := RenderConsolidation(&consolidate.Result{
		TotalInput:        5,
		DeduplicatedCount: 2,
		ConflictCount:     1,
		SourceBreakdown:   map[string]int{"web": 1, "desktop": 2},
	})
	assert.Contains(t, out, "Duplicates removed")
	assert.Less(t, strings.Index(out, "from desktop"), strings.Index(out, "from web"))
}

func TestRenderStats(t *testing.T) {
	out := RenderStats(&stats.Report{
		Sources:     []stats.SourceReport{{Source: "claude", Memories: 2, Tokens: 10, Bytes: 40, TokensPerByte: 0.25}},
		Total:       stats.SourceReport{Source: "total", Memories: 2, Tokens: 10, Bytes: 40, TokensPerByte: 0.25},
		Cache:       []stats.CacheReport{{Dir: "/c/claude", Chunks: 4}},
		CacheChunks: 4,
	})
	assert.Contains(t, out, "0.250")
	assert.Contains(t, out, "estimates")
	assert.Contains(t, out, "/c/claude")

	assert.Contains(t, RenderStats(&stats.Report{ExactTokens: true}), "no memories stored yet")
}

func TestRenderDedupe(t *testing.T) {
	out := RenderDedupe(&sink.DedupeStats{OriginalLines: 10, FinalLines: 7, RemovedLines: 3, Conversations: 2, Removed: []string{"a-2025-01-01"}, BackupPath: "log.md.backup"})
	assert.Contains(t, out, "a-2025-01-01")
	assert.Contains(t, out, "log.md.backup")
}
