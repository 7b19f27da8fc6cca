package sink

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sandevgo/tuskmem/internal/core"
	"github.com/sandevgo/tuskmem/internal/storage/sqlite"
	"github.com/sandevgo/tuskmem/pkg/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleResult() *core.AnalysisResult {
	ts := time.Date(2025, 3, 9, 14, 30, 0, 0, time.UTC)
	return &core.AnalysisResult{
		ConversationID: "conv-1",
		Source:         "claude",
		Timestamp:      ts,
		AnalyzedAt:     ts.Add(time.Minute),
		MessageCount:   3,
		UserIntents: []core.Intent{
			{Text: "Fix the flaky poller test\nit fails on CI", Confidence: core.ConfidenceHigh},
		},
		AIActions: []core.Action{
			{Type: "implementation", Details: "I'll add a stop channel to the loop."},
		},
		TechnicalWork: []core.TechnicalWork{
			{Type: "testing", Description: "go test ./internal/service/poller"},
		},
		Decisions: []core.Decision{
			{Decision: "We decided to keep the ticker.", Impact: core.ImpactMedium},
		},
		Flow: core.Flow{Turns: 2},
		WorkingState: core.WorkingState{
			CurrentTask: "Fix the flaky poller test",
			Blockers:    []string{"CI is blocked by the race detector."},
			NextAction:  "Next, rerun the suite.",
		},
	}
}

func TestToRecord(t *testing.T) {
	res := sampleResult()

	rec, err := ToRecord(res, core.TransformOptions{SessionID: "s-1"})
	require.NoError(t, err)
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, "conv-1", rec.ConversationID)
	assert.Equal(t, "claude", rec.Source)
	assert.Equal(t, "s-1", rec.SessionID)
	assert.True(t, rec.AnalyzedAt.Equal(res.AnalyzedAt))

	over, err := ToRecord(res, core.TransformOptions{ConversationID: "other", SourceTag: "desktop"})
	require.NoError(t, err)
	assert.Equal(t, "other", over.ConversationID)
	assert.Equal(t, "desktop", over.Source)

	_, err = ToRecord(nil, core.TransformOptions{})
	assert.Error(t, err)
}

func TestAnalysisHash_IgnoresAnalyzedAt(t *testing.T) {
	a := sampleResult()
	b := sampleResult()
	b.AnalyzedAt = b.AnalyzedAt.Add(24 * time.Hour)

	ha, err := AnalysisHash(a)
	require.NoError(t, err)
	hb, err := AnalysisHash(b)
	require.NoError(t, err)
	assert.Equal(t, ha, hb)

	b.UserIntents[0].Text = "something else"
	hc, err := AnalysisHash(b)
	require.NoError(t, err)
	assert.NotEqual(t, ha, hc)
}

func TestStore_ReprocessingIsAccepted(t *testing.T) {
	ctx := context.Background()
	db, err := sqlite.NewDB(ctx, filepath.Join(t.TempDir(), "tuskmem.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := sqlite.NewMemoriesRepo(db)
	store := NewStore(repo)

	require.NoError(t, store.Transform(ctx, sampleResult(), core.TransformOptions{}))
	require.NoError(t, store.Transform(ctx, sampleResult(), core.TransformOptions{}))

	mems, err := repo.ListMemories(ctx, core.MemoryFilter{ConversationID: "conv-1"})
	require.NoError(t, err)
	require.Len(t, mems, 1)

	decoded, err := DecodeAnalysis(mems[0])
	require.NoError(t, err)
	assert.Equal(t, sampleResult().UserIntents, decoded.UserIntents)
}

type fakeBus struct {
	subject string
	data    []any
	err     error
}

func (b *fakeBus) Publish(subject string, data any) error {
	b.subject = subject
	b.data = append(b.data, data)
	return b.err
}

func TestPublisher(t *testing.T) {
	bus := &fakeBus{}
	p := NewPublisher(bus, "tuskmem.memory.stored")

	require.NoError(t, p.Transform(context.Background(), sampleResult(), core.TransformOptions{SessionID: "s"}))
	assert.Equal(t, "tuskmem.memory.stored", bus.subject)
	require.Len(t, bus.data, 1)
	rec, ok := bus.data[0].(core.MemoryRecord)
	require.True(t, ok)
	assert.Equal(t, "conv-1", rec.ConversationID)

	bus.err = errors.New("no responders")
	assert.Error(t, p.Transform(context.Background(), sampleResult(), core.TransformOptions{}))
}

func TestRenderMarkdown(t *testing.T) {
	rec, err := ToRecord(sampleResult(), core.TransformOptions{ConversationID: "conv 1", SessionID: "s"})
	require.NoError(t, err)

	md := RenderMarkdown(rec)
	assert.True(t, strings.HasPrefix(md, "## Chat conv-1 - 2025-03-09 - Fix the flaky poller test\n"))
	assert.Contains(t, md, "- [high] Fix the flaky poller test\n  it fails on CI\n")
	assert.Contains(t, md, "**implementation**: I'll add a stop channel to the loop.")
	assert.Contains(t, md, "**testing**: go test ./internal/service/poller")
	assert.Contains(t, md, "[medium impact] We decided to keep the ticker.")
	assert.Contains(t, md, "Blocker: CI is blocked by the race detector.")
	assert.Contains(t, md, "Next action: Next, rerun the suite.")

	empty := RenderMarkdown(core.MemoryRecord{ConversationID: "c", AnalyzedAt: time.Now(), Analysis: &core.AnalysisResult{}})
	assert.Contains(t, empty, "Untitled conversation")
	assert.NotContains(t, empty, "### ")
}

func TestMarkdownLog(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "logs", "conversation-log.md")
	ml := NewMarkdownLog(path)

	require.NoError(t, ml.Transform(ctx, sampleResult(), core.TransformOptions{}))
	second := sampleResult()
	second.ConversationID = "conv-2"
	second.Timestamp = second.Timestamp.Add(48 * time.Hour)
	require.NoError(t, ml.Transform(ctx, second, core.TransformOptions{}))
	// already logged
	require.NoError(t, ml.Transform(ctx, sampleResult(), core.TransformOptions{}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(data)

	assert.True(t, strings.HasPrefix(content, "# Conversation Log\n\n## Chat conv-2"))
	assert.Equal(t, 1, strings.Count(content, "## Chat conv-1 "))
	assert.Less(t, strings.Index(content, "conv-2"), strings.Index(content, "conv-1"))

	logged := LoggedConversations(data)
	assert.Equal(t, map[string]string{"conv-1": "2025-03-09", "conv-2": "2025-03-11"}, logged)
}

func TestDedupeLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conversation-log.md")
	content := strings.Join([]string{
		"# Conversation Log",
		"",
		"## Chat a - 2025-01-02 - newest",
		"keep a",
		"",
		"## Chat b - 2025-01-01 - other",
		"keep b",
		"",
		"## Chat a - 2025-01-02 - newest",
		"drop a",
		"",
		"## Notes",
		"keep notes",
	}, "\n")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	stats, err := DedupeLog(path)
	require.NoError(t, err)
	assert.Equal(t, 13, stats.OriginalLines)
	assert.Equal(t, 10, stats.FinalLines)
	assert.Equal(t, 3, stats.RemovedLines)
	assert.Equal(t, 2, stats.Conversations)
	assert.Equal(t, []string{"a-2025-01-02"}, stats.Removed)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "drop a")
	assert.Contains(t, string(data), "keep notes")

	backup, err := os.ReadFile(path + ".backup")
	require.NoError(t, err)
	assert.Equal(t, content, string(backup))

	_, err = DedupeLog(filepath.Join(t.TempDir(), "missing.md"))
	assert.Error(t, err)
}

type recordingWriter struct {
	name  string
	fails int
	mu    sync.Mutex
	calls int
}

func (w *recordingWriter) Name() string { return w.name }

func (w *recordingWriter) Transform(ctx context.Context, result *core.AnalysisResult, opts core.TransformOptions) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls++
	if w.calls <= w.fails {
		return errors.New("unavailable")
	}
	return nil
}

func fastRetrier() *retry.Retrier {
	return retry.NewRetrier(&retry.Config{
		MaxRetries:    2,
		BackoffFactor: 1,
		InitialDelay:  time.Millisecond,
		MaxDelay:      time.Millisecond,
	})
}

func TestMulti(t *testing.T) {
	ctx := context.Background()

	t.Run("retries transient failures", func(t *testing.T) {
		flaky := &recordingWriter{name: "flaky", fails: 1}
		m := NewMulti([]Writer{flaky}, WithRetrier(fastRetrier()))
		require.NoError(t, m.Transform(ctx, sampleResult(), core.TransformOptions{}))
		assert.Equal(t, 2, flaky.calls)
	})

	t.Run("failure does not stop later writers", func(t *testing.T) {
		broken := &recordingWriter{name: "broken", fails: 100}
		ok := &recordingWriter{name: "ok"}
		m := NewMulti([]Writer{broken, ok}, WithRetrier(fastRetrier()))

		err := m.Transform(ctx, sampleResult(), core.TransformOptions{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "broken")
		assert.Equal(t, 3, broken.calls)
		assert.Equal(t, 1, ok.calls)
		assert.Equal(t, []string{"broken", "ok"}, m.Names())
	})

	t.Run("no writers", func(t *testing.T) {
		assert.Error(t, NewMulti(nil).Transform(ctx, sampleResult(), core.TransformOptions{}))
	})
}
