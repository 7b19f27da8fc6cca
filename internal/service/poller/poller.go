package poller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sandevgo/tuskmem/internal/cache"
	"github.com/sandevgo/tuskmem/internal/core"
	"github.com/sandevgo/tuskmem/internal/metrics"
	"github.com/sandevgo/tuskmem/pkg/log"
)

const DefaultInterval = 5 * time.Minute

var ErrAlreadyRunning = errors.New("poller is already running")

// Analyzer turns one raw conversation into an analysis result.
type Analyzer interface {
	AnalyzeRaw(ctx context.Context, rc core.RawConversation) (*core.AnalysisResult, error)
}

// Capturer persists source data before analysis. cache.Writer satisfies it.
type Capturer interface {
	WriteConversations(ctx context.Context, convs []core.RawConversation) (*cache.WriteStats, error)
	WriteMessages(ctx context.Context, msgs []core.Message) (*cache.WriteStats, error)
}

// PollStats is what one poll did.
type PollStats struct {
	Available bool
	Read      int
	Processed int
	Skipped   int
	Failed    int
	Cache     *cache.WriteStats
}

type Poller struct {
	source   core.SourceReader
	analyzer Analyzer
	sink     core.MemoryWriter
	seen     core.SeenSet
	capture  Capturer
	strict   bool
	metrics  *metrics.Metrics
	interval time.Duration

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	done    chan struct{}
	trigger chan struct{}
}

type Option func(*Poller)

func WithSeen(s core.SeenSet) Option {
	return func(p *Poller) { p.seen = s }
}

func WithCapture(c Capturer) Option {
	return func(p *Poller) { p.capture = c }
}

// WithCaptureRequired makes a failed cache capture fail the whole poll.
func WithCaptureRequired() Option {
	return func(p *Poller) { p.strict = true }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Poller) { p.metrics = m }
}

// WithInterval ignores non-positive values.
func WithInterval(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

func New(source core.SourceReader, analyzer Analyzer, sink core.MemoryWriter, opts ...Option) *Poller {
	p := &Poller{
		source:   source,
		analyzer: analyzer,
		sink:     sink,
		interval: DefaultInterval,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.seen == nil {
		p.seen = NewMemorySeen()
	}
	return p
}

func (p *Poller) Name() string {
	return p.source.Name()
}

func (p *Poller) Interval() time.Duration {
	return p.interval
}

func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Start polls once, then schedules polls every interval and returns. It
// fails with ErrAlreadyRunning when the loop is already active.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return ErrAlreadyRunning
	}
	p.running = true
	p.stop = make(chan struct{})
	p.done = make(chan struct{})
	p.trigger = make(chan struct{}, 1)
	stop, done, trigger := p.stop, p.done, p.trigger
	p.mu.Unlock()

	ctx = log.WithComponent(ctx, "poller:"+p.source.Name())
	log.FromCtx(ctx).Info().Dur("interval", p.interval).Msg("starting poller")

	p.PollOnce(ctx)
	go p.loop(ctx, stop, done, trigger)
	return nil
}

// Stop ends the loop before its next poll and waits for an in-flight poll
// to complete. Calling Stop on a stopped poller does nothing.
func (p *Poller) Stop() {
	if done := p.halt(); done != nil {
		<-done
	}
}

// Shutdown is Stop bounded by ctx. When ctx ends first the loop is still
// told to stop but the in-flight poll is left to finish on its own.
func (p *Poller) Shutdown(ctx context.Context) error {
	done := p.halt()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("poller %s did not stop: %w", p.Name(), ctx.Err())
	}
}

// halt closes the stop channel and returns the loop's done channel, or nil
// when the poller is not running.
func (p *Poller) halt() chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running {
		return nil
	}
	p.running = false
	close(p.stop)
	return p.done
}

// Trigger asks a running poller for an immediate poll. Requests made while
// one is already pending are coalesced.
func (p *Poller) Trigger() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running {
		return
	}
	select {
	case p.trigger <- struct{}{}:
	default:
	}
}

func (p *Poller) loop(ctx context.Context, stop, done, trigger chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			p.mu.Lock()
			if p.stop == stop && p.running {
				p.running = false
				close(stop)
			}
			p.mu.Unlock()
			return
		case <-ticker.C:
			p.PollOnce(ctx)
		case <-trigger:
			p.PollOnce(ctx)
			ticker.Reset(p.interval)
		}
	}
}

// PollOnce runs one poll and logs its failure instead of returning it.
func (p *Poller) PollOnce(ctx context.Context) PollStats {
	stats, _ := p.Poll(ctx)
	return stats
}

// Poll runs one poll, records it and returns the poll error, if any.
func (p *Poller) Poll(ctx context.Context) (PollStats, error) {
	logger := log.FromCtx(ctx)
	start := time.Now()

	stats, err := p.poll(ctx)

	outcome := metrics.OutcomeOK
	switch {
	case err != nil:
		outcome = metrics.OutcomeFailed
		logger.Error().Err(err).Msg("poll failed")
	case !stats.Available:
		outcome = metrics.OutcomeUnavailable
		logger.Debug().Msg("source unavailable")
	default:
		logger.Info().
			Int("read", stats.Read).
			Int("processed", stats.Processed).
			Int("skipped", stats.Skipped).
			Int("failed", stats.Failed).
			Dur("took", time.Since(start)).
			Msg("poll finished")
	}
	p.metrics.RecordPoll(p.source.Name(), outcome, time.Since(start))
	return stats, err
}

func (p *Poller) poll(ctx context.Context) (stats PollStats, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("poll panicked: %v", r)
		}
	}()

	logger := log.FromCtx(ctx)

	if !p.source.IsAvailable(ctx) {
		return stats, nil
	}
	stats.Available = true

	convs, err := p.source.ReadAllConversations(ctx)
	if err != nil {
		return stats, fmt.Errorf("failed to read conversations: %w", err)
	}
	stats.Read = len(convs)

	if p.capture != nil {
		cs, err := p.captureAll(ctx, convs)
		switch {
		case err != nil && p.strict:
			return stats, fmt.Errorf("failed to capture into cache: %w", err)
		case err != nil:
			logger.Warn().Err(err).Msg("cache capture failed")
		default:
			stats.Cache = cs
			p.metrics.RecordChunks(p.source.Name(), cs.NewChunksWritten, cs.ChunksSkipped, cs.Failed)
		}
	}

	sessionID := uuid.NewString()
	for _, rc := range convs {
		if rc.Source == "" {
			rc.Source = p.source.Name()
		}
		switch p.process(ctx, rc, sessionID) {
		case resultProcessed:
			stats.Processed++
		case resultSkipped:
			stats.Skipped++
		case resultFailed:
			stats.Failed++
		}
	}
	return stats, nil
}

// captureAll caches the conversations of this poll. Session-scoped sources
// also get their messages cached per workspace. A workspace that cannot be
// read is logged and skipped.
func (p *Poller) captureAll(ctx context.Context, convs []core.RawConversation) (*cache.WriteStats, error) {
	stats, err := p.capture.WriteConversations(ctx, convs)
	if err != nil {
		return nil, err
	}

	sessions, ok := p.source.(core.SessionReader)
	if !ok {
		return stats, nil
	}
	for _, ws := range workspaces(convs) {
		msgs, err := sessions.GetProjectSessions(ctx, ws)
		if err != nil {
			log.FromCtx(ctx).Warn().Err(err).Str("workspace", ws).Msg("failed to read project sessions")
			continue
		}
		ms, err := p.capture.WriteMessages(ctx, msgs)
		if err != nil {
			return nil, err
		}
		stats.TotalMessages += ms.TotalMessages
		stats.NewChunksWritten += ms.NewChunksWritten
		stats.ChunksSkipped += ms.ChunksSkipped
		stats.Failed += ms.Failed
	}
	return stats, nil
}

// workspaces lists the distinct workspace ids in first-seen order.
func workspaces(convs []core.RawConversation) []string {
	seen := make(map[string]bool)
	var out []string
	for _, rc := range convs {
		if rc.WorkspaceID == "" || seen[rc.WorkspaceID] {
			continue
		}
		seen[rc.WorkspaceID] = true
		out = append(out, rc.WorkspaceID)
	}
	return out
}

type result string

const (
	resultProcessed result = "processed"
	resultSkipped   result = "skipped"
	resultFailed    result = "failed"
)

func (p *Poller) process(ctx context.Context, rc core.RawConversation, sessionID string) (res result) {
	logger := log.FromCtx(ctx).With().Str("conversation", rc.ConversationID).Logger()
	defer func() { p.metrics.RecordConversation(rc.Source, string(res)) }()

	key := Key(rc.Source, rc.ConversationID)
	seen, err := p.seen.Has(ctx, key)
	if err != nil {
		logger.Warn().Err(err).Msg("seen lookup failed, processing anyway")
	}
	if seen {
		return resultSkipped
	}

	analysis, err := p.analyzer.AnalyzeRaw(ctx, rc)
	if err != nil {
		logger.Error().Err(err).Msg("analysis failed")
		return resultFailed
	}

	if rc.WorkspaceID != "" {
		sessionID = rc.WorkspaceID
	}
	err = p.sink.Transform(ctx, analysis, core.TransformOptions{
		ConversationID: rc.ConversationID,
		SessionID:      sessionID,
		SourceTag:      rc.Source,
	})
	if err != nil {
		logger.Error().Err(err).Msg("memory sink failed")
		return resultFailed
	}

	if err := p.seen.Add(ctx, key); err != nil {
		logger.Warn().Err(err).Msg("failed to mark conversation seen")
	}
	return resultProcessed
}

// Key is the dedup key of one conversation.
func Key(source, conversationID string) string {
	return source + ":" + conversationID
}
