package poller

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sandevgo/tuskmem/internal/cache"
	"github.com/sandevgo/tuskmem/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	mu        sync.Mutex
	available bool
	convs     []core.RawConversation
	err       error
	panicMsg  string
	reads     atomic.Int32
}

func (f *fakeSource) Name() string { return "fake" }

func (f *fakeSource) IsAvailable(ctx context.Context) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.available
}

func (f *fakeSource) ReadAllConversations(ctx context.Context) ([]core.RawConversation, error) {
	f.reads.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	return f.convs, f.err
}

func (f *fakeSource) set(fn func(*fakeSource)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

type fakeAnalyzer struct {
	fail map[string]bool
}

func (a *fakeAnalyzer) AnalyzeRaw(ctx context.Context, rc core.RawConversation) (*core.AnalysisResult, error) {
	if a.fail[rc.ConversationID] {
		return nil, errors.New("analysis broke")
	}
	return &core.AnalysisResult{ConversationID: rc.ConversationID, Source: rc.Source}, nil
}

type fakeSink struct {
	mu    sync.Mutex
	opts  []core.TransformOptions
	err   error
	calls atomic.Int32
}

func (s *fakeSink) Transform(ctx context.Context, result *core.AnalysisResult, opts core.TransformOptions) error {
	s.calls.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.opts = append(s.opts, opts)
	return nil
}

func (s *fakeSink) written() []core.TransformOptions {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.TransformOptions(nil), s.opts...)
}

func raw(ids ...string) []core.RawConversation {
	out := make([]core.RawConversation, 0, len(ids))
	for _, id := range ids {
		out = append(out, core.RawConversation{ConversationID: id, RawData: "User: hi"})
	}
	return out
}

func TestStart_PollsImmediately(t *testing.T) {
	src := &fakeSource{available: true, convs: raw("a", "b")}
	sink := &fakeSink{}
	seen := NewMemorySeen()
	p := New(src, &fakeAnalyzer{}, sink, WithSeen(seen), WithInterval(time.Hour))

	require.NoError(t, p.Start(context.Background()))
	defer p.Stop()

	assert.Equal(t, int32(1), src.reads.Load())
	assert.Len(t, sink.written(), 2)
	assert.Equal(t, []string{"fake:a", "fake:b"}, seen.Keys())
	assert.True(t, p.Running())
}

func TestStart_FailsWhenRunning(t *testing.T) {
	p := New(&fakeSource{}, &fakeAnalyzer{}, &fakeSink{}, WithInterval(time.Hour))

	require.NoError(t, p.Start(context.Background()))
	assert.ErrorIs(t, p.Start(context.Background()), ErrAlreadyRunning)

	p.Stop()
	p.Stop()
	assert.False(t, p.Running())

	require.NoError(t, p.Start(context.Background()))
	p.Stop()
}

func TestPoll_SkipsSeen(t *testing.T) {
	src := &fakeSource{available: true, convs: raw("a", "b")}
	sink := &fakeSink{}
	seen := NewMemorySeen()
	require.NoError(t, seen.Add(context.Background(), Key("fake", "a")))

	p := New(src, &fakeAnalyzer{}, sink, WithSeen(seen))
	stats := p.PollOnce(context.Background())

	assert.Equal(t, 1, stats.Processed)
	assert.Equal(t, 1, stats.Skipped)
	require.Len(t, sink.written(), 1)
	assert.Equal(t, "b", sink.written()[0].ConversationID)

	stats = p.PollOnce(context.Background())
	assert.Equal(t, 0, stats.Processed)
	assert.Equal(t, 2, stats.Skipped)
}

func TestPoll_FailuresAreNotMarkedSeen(t *testing.T) {
	src := &fakeSource{available: true, convs: raw("ok", "bad")}
	sink := &fakeSink{}
	seen := NewMemorySeen()
	p := New(src, &fakeAnalyzer{fail: map[string]bool{"bad": true}}, sink, WithSeen(seen))

	stats := p.PollOnce(context.Background())
	assert.Equal(t, 1, stats.Processed)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, []string{"fake:ok"}, seen.Keys())

	sink.err = errors.New("store down")
	src.set(func(f *fakeSource) { f.convs = raw("new") })
	stats = p.PollOnce(context.Background())
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, []string{"fake:ok"}, seen.Keys())
}

func TestPoll_SessionID(t *testing.T) {
	src := &fakeSource{available: true, convs: []core.RawConversation{
		{ConversationID: "a", WorkspaceID: "proj"},
		{ConversationID: "b"},
		{ConversationID: "c"},
	}}
	sink := &fakeSink{}
	New(src, &fakeAnalyzer{}, sink).PollOnce(context.Background())

	opts := sink.written()
	require.Len(t, opts, 3)
	assert.Equal(t, "proj", opts[0].SessionID)
	assert.NotEmpty(t, opts[1].SessionID)
	assert.Equal(t, opts[1].SessionID, opts[2].SessionID)
	assert.Equal(t, "fake", opts[1].SourceTag)
}

func TestPoll_UnavailableSource(t *testing.T) {
	src := &fakeSource{available: false, convs: raw("a")}
	stats := New(src, &fakeAnalyzer{}, &fakeSink{}).PollOnce(context.Background())

	assert.False(t, stats.Available)
	assert.Equal(t, int32(0), src.reads.Load())
}

func TestLoop_ContinuesAfterFailedPoll(t *testing.T) {
	src := &fakeSource{available: true, err: errors.New("disk gone")}
	sink := &fakeSink{}
	p := New(src, &fakeAnalyzer{}, sink, WithInterval(10*time.Millisecond))

	require.NoError(t, p.Start(context.Background()))
	defer p.Stop()

	assert.Eventually(t, func() bool { return src.reads.Load() >= 2 }, time.Second, 5*time.Millisecond)

	src.set(func(f *fakeSource) { f.err = nil; f.panicMsg = "decoder exploded" })
	reads := src.reads.Load()
	assert.Eventually(t, func() bool { return src.reads.Load() >= reads+2 }, time.Second, 5*time.Millisecond)

	src.set(func(f *fakeSource) { f.panicMsg = ""; f.convs = raw("late") })
	assert.Eventually(t, func() bool { return len(sink.written()) == 1 }, time.Second, 5*time.Millisecond)
	assert.True(t, p.Running())
}

func TestStop_PreventsFurtherPolls(t *testing.T) {
	src := &fakeSource{available: true}
	p := New(src, &fakeAnalyzer{}, &fakeSink{}, WithInterval(5*time.Millisecond))

	require.NoError(t, p.Start(context.Background()))
	assert.Eventually(t, func() bool { return src.reads.Load() >= 2 }, time.Second, time.Millisecond)
	p.Stop()

	after := src.reads.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, src.reads.Load())
}

func TestTrigger(t *testing.T) {
	src := &fakeSource{available: true}
	p := New(src, &fakeAnalyzer{}, &fakeSink{}, WithInterval(time.Hour))

	p.Trigger()
	assert.Equal(t, int32(0), src.reads.Load())

	require.NoError(t, p.Start(context.Background()))
	defer p.Stop()

	p.Trigger()
	assert.Eventually(t, func() bool { return src.reads.Load() == 2 }, time.Second, time.Millisecond)
}

func TestContextCancelStopsLoop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := New(&fakeSource{}, &fakeAnalyzer{}, &fakeSink{}, WithInterval(time.Hour))

	require.NoError(t, p.Start(ctx))
	cancel()

	assert.Eventually(t, func() bool { return !p.Running() }, time.Second, time.Millisecond)
	p.Stop()
	require.NoError(t, p.Start(context.Background()))
	p.Stop()
}

type fakeCapture struct {
	calls      atomic.Int32
	mu         sync.Mutex
	convs      []core.RawConversation
	msgs       []core.Message
	messageErr error
}

func (c *fakeCapture) WriteConversations(ctx context.Context, convs []core.RawConversation) (*cache.WriteStats, error) {
	c.calls.Add(1)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.convs = append(c.convs, convs...)
	return &cache.WriteStats{TotalConversations: len(convs), NewChunksWritten: 1}, nil
}

func (c *fakeCapture) WriteMessages(ctx context.Context, msgs []core.Message) (*cache.WriteStats, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.messageErr != nil {
		return nil, c.messageErr
	}
	c.msgs = append(c.msgs, msgs...)
	return &cache.WriteStats{TotalMessages: len(msgs), NewChunksWritten: len(msgs)}, nil
}

type sessionSource struct {
	*fakeSource
	mu         sync.Mutex
	workspaces []string
	failFor    string
}

func (s *sessionSource) GetProjectSessions(ctx context.Context, path string) ([]core.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workspaces = append(s.workspaces, path)
	if path == s.failFor {
		return nil, errors.New("session folder gone")
	}
	return []core.Message{
		{ID: path + "-1", ConversationID: path + "/s", Role: core.RoleUser, Content: "hi"},
		{ID: path + "-2", ConversationID: path + "/s", Role: core.RoleAssistant, Content: "hello"},
	}, nil
}

func TestPoll_CapturesBeforeAnalysis(t *testing.T) {
	capture := &fakeCapture{}
	src := &fakeSource{available: true, convs: raw("a")}
	stats := New(src, &fakeAnalyzer{}, &fakeSink{}, WithCapture(capture)).PollOnce(context.Background())

	assert.Equal(t, int32(1), capture.calls.Load())
	require.NotNil(t, stats.Cache)
	assert.Equal(t, 1, stats.Cache.NewChunksWritten)
}

func TestPoll_ReadsSourceOnce(t *testing.T) {
	capture := &fakeCapture{}
	src := &fakeSource{available: true, convs: raw("a", "b")}
	sink := &fakeSink{}

	stats := New(src, &fakeAnalyzer{}, sink, WithCapture(capture)).PollOnce(context.Background())

	assert.Equal(t, int32(1), src.reads.Load())
	assert.Equal(t, 2, stats.Processed)
	assert.Equal(t, src.convs, capture.convs)
}

func TestPoll_CapturesProjectSessions(t *testing.T) {
	convs := []core.RawConversation{
		{ConversationID: "p1/a", WorkspaceID: "p1", RawData: "User: hi"},
		{ConversationID: "p1/b", WorkspaceID: "p1", RawData: "User: hi"},
		{ConversationID: "p2/c", WorkspaceID: "p2", RawData: "User: hi"},
		{ConversationID: "loose", RawData: "User: hi"},
	}
	src := &sessionSource{fakeSource: &fakeSource{available: true, convs: convs}}
	capture := &fakeCapture{}

	stats, err := New(src, &fakeAnalyzer{}, &fakeSink{}, WithCapture(capture)).Poll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"p1", "p2"}, src.workspaces)
	assert.Len(t, capture.msgs, 4)
	require.NotNil(t, stats.Cache)
	assert.Equal(t, 4, stats.Cache.TotalMessages)
	assert.Equal(t, 5, stats.Cache.NewChunksWritten)
	assert.Equal(t, 4, stats.Processed)
}

func TestPoll_ProjectSessionErrors(t *testing.T) {
	convs := []core.RawConversation{
		{ConversationID: "p1/a", WorkspaceID: "p1", RawData: "User: hi"},
		{ConversationID: "p2/b", WorkspaceID: "p2", RawData: "User: hi"},
	}

	t.Run("unreadable workspace is skipped", func(t *testing.T) {
		src := &sessionSource{fakeSource: &fakeSource{available: true, convs: convs}, failFor: "p1"}
		capture := &fakeCapture{}

		stats, err := New(src, &fakeAnalyzer{}, &fakeSink{}, WithCapture(capture), WithCaptureRequired()).Poll(context.Background())
		require.NoError(t, err)
		assert.Len(t, capture.msgs, 2)
		assert.Equal(t, 2, stats.Cache.TotalMessages)
	})

	t.Run("cache write failure follows capture policy", func(t *testing.T) {
		src := &sessionSource{fakeSource: &fakeSource{available: true, convs: convs}}
		capture := &fakeCapture{messageErr: errors.New("disk full")}

		stats, err := New(src, &fakeAnalyzer{}, &fakeSink{}, WithCapture(capture)).Poll(context.Background())
		require.NoError(t, err)
		assert.Nil(t, stats.Cache)
		assert.Equal(t, 2, stats.Processed)

		_, err = New(src, &fakeAnalyzer{}, &fakeSink{}, WithCapture(capture), WithCaptureRequired()).Poll(context.Background())
		assert.ErrorContains(t, err, "disk full")
	})
}

type blockingSource struct {
	*fakeSource
	calls   atomic.Int32
	entered chan struct{}
	release chan struct{}
}

func (b *blockingSource) ReadAllConversations(ctx context.Context) ([]core.RawConversation, error) {
	if b.calls.Add(1) > 1 {
		select {
		case b.entered <- struct{}{}:
		default:
		}
		<-b.release
	}
	return nil, nil
}

func TestShutdown_HonoursContext(t *testing.T) {
	src := &blockingSource{
		fakeSource: &fakeSource{available: true},
		entered:    make(chan struct{}, 1),
		release:    make(chan struct{}),
	}
	p := New(src, &fakeAnalyzer{}, &fakeSink{}, WithInterval(time.Hour))
	require.NoError(t, p.Start(context.Background()))

	p.Trigger()
	select {
	case <-src.entered:
	case <-time.After(time.Second):
		t.Fatal("triggered poll never started")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := p.Shutdown(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), "poller fake did not stop")
	assert.False(t, p.Running())

	close(src.release)
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestShutdown_StopsIdlePoller(t *testing.T) {
	p := New(&fakeSource{available: true}, &fakeAnalyzer{}, &fakeSink{}, WithInterval(time.Hour))
	require.NoError(t, p.Start(context.Background()))

	require.NoError(t, p.Shutdown(context.Background()))
	assert.False(t, p.Running())
}

type fakeSeenRepo struct {
	*MemorySeen
}

func (r *fakeSeenRepo) HasKey(ctx context.Context, key string) (bool, error) { return r.Has(ctx, key) }
func (r *fakeSeenRepo) AddKey(ctx context.Context, key string) error         { return r.Add(ctx, key) }

func TestRepoSeen(t *testing.T) {
	repo := &fakeSeenRepo{MemorySeen: NewMemorySeen()}
	seen := NewRepoSeen(repo)

	ok, err := seen.Has(context.Background(), "x")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, seen.Add(context.Background(), "x"))
	ok, err = seen.Has(context.Background(), "x")
	require.NoError(t, err)
	assert.True(t, ok)
}

type failingCapture struct{}

func (failingCapture) WriteConversations(ctx context.Context, convs []core.RawConversation) (*cache.WriteStats, error) {
	return nil, errors.New("mkdir: permission denied")
}

func (failingCapture) WriteMessages(ctx context.Context, msgs []core.Message) (*cache.WriteStats, error) {
	return nil, errors.New("mkdir: permission denied")
}

func TestPoll_CaptureFailure(t *testing.T) {
	src := &fakeSource{available: true, convs: raw("a")}
	sink := &fakeSink{}

	stats, err := New(src, &fakeAnalyzer{}, sink, WithCapture(failingCapture{})).Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Processed)
	assert.Nil(t, stats.Cache)

	_, err = New(src, &fakeAnalyzer{}, &fakeSink{}, WithCapture(failingCapture{}), WithCaptureRequired()).Poll(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "permission denied")
}
