package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/sandevgo/tuskmem/internal/core"
	"github.com/sandevgo/tuskmem/internal/parser"
	"github.com/sandevgo/tuskmem/internal/service/analysis"
	"github.com/sandevgo/tuskmem/internal/service/summary"
	"github.com/sandevgo/tuskmem/pkg/log"
)

// Orchestrator runs parser chain, summary and the six extractors over one
// conversation. It does no I/O.
type Orchestrator struct {
	chain      *parser.Chain
	extractors analysis.Set
	now        func() time.Time
}

type Option func(*Orchestrator)

func WithChain(c *parser.Chain) Option {
	return func(o *Orchestrator) { o.chain = c }
}

func WithExtractors(s analysis.Set) Option {
	return func(o *Orchestrator) { o.extractors = s.WithDefaults() }
}

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

func New(opts ...Option) *Orchestrator {
	o := &Orchestrator{
		chain:      parser.NewDefaultChain(),
		extractors: analysis.NewSet(analysis.DefaultRules()),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Analyze builds one AnalysisResult. Parsed raw data replaces the
// conversation's messages only when parsing produced something.
func (o *Orchestrator) Analyze(ctx context.Context, conv core.Conversation, raw string) (*core.AnalysisResult, error) {
	logger := log.FromCtx(ctx)
	msgs := conv.Messages

	if raw != "" {
		parsed := o.chain.Parse(ctx, raw, conv.ID)
		if parsed.Empty() {
			logger.Debug().
				Str("conversation", conv.ID).
				Str("format", string(parsed.Format)).
				Str("reason", parsed.Degraded).
				Int("kept", len(msgs)).
				Msg("parser produced nothing, keeping known messages")
		} else {
			msgs = parsed.Messages
		}
	}
	msgs = tagSource(msgs, conv.Source)

	sum := summary.Extract(msgs)
	var tier1 *core.ConversationSummary
	if len(msgs) > 1 {
		tier1 = &sum
	}

	result := &core.AnalysisResult{
		ConversationID: conv.ID,
		Source:         conv.Source,
		Timestamp:      startTime(conv, msgs),
		AnalyzedAt:     o.now().UTC(),
		MessageCount:   len(msgs),
		Summary:        &sum,
	}

	var err error
	if result.UserIntents, err = o.extractors.Intents.Extract(msgs, tier1); err != nil {
		return nil, fmt.Errorf("failed to extract intents: %w", err)
	}
	if result.AIActions, err = o.extractors.Actions.Extract(msgs, tier1); err != nil {
		return nil, fmt.Errorf("failed to extract actions: %w", err)
	}
	if result.TechnicalWork, err = o.extractors.Technical.Extract(msgs, tier1); err != nil {
		return nil, fmt.Errorf("failed to extract technical work: %w", err)
	}
	if result.Decisions, err = o.extractors.Decisions.Extract(msgs, tier1); err != nil {
		return nil, fmt.Errorf("failed to extract decisions: %w", err)
	}
	if result.Flow, err = o.extractors.Flow.Extract(msgs, tier1); err != nil {
		return nil, fmt.Errorf("failed to extract flow: %w", err)
	}
	if result.WorkingState, err = o.extractors.State.Extract(msgs, tier1); err != nil {
		return nil, fmt.Errorf("failed to extract working state: %w", err)
	}

	return result, nil
}

// AnalyzeRaw is the poller entry point: the messages come from raw data only.
func (o *Orchestrator) AnalyzeRaw(ctx context.Context, rc core.RawConversation) (*core.AnalysisResult, error) {
	return o.Analyze(ctx, core.Conversation{
		ID:        rc.ConversationID,
		Timestamp: rc.Timestamp,
		Source:    rc.Source,
	}, rc.RawData)
}

func tagSource(msgs []core.Message, source string) []core.Message {
	if source == "" {
		return msgs
	}
	out := make([]core.Message, len(msgs))
	for i, m := range msgs {
		if m.Metadata.Source == "" {
			m.Metadata.Source = source
		}
		out[i] = m
	}
	return out
}

func startTime(conv core.Conversation, msgs []core.Message) time.Time {
	if !conv.Timestamp.IsZero() {
		return conv.Timestamp
	}
	for _, m := range msgs {
		if !m.Timestamp.IsZero() {
			return m.Timestamp
		}
	}
	return time.Time{}
}
