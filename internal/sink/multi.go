package sink

import (
	"context"
	"errors"
	"fmt"

	"github.com/sandevgo/tuskmem/internal/core"
	"github.com/sandevgo/tuskmem/internal/metrics"
	"github.com/sandevgo/tuskmem/pkg/log"
	"github.com/sandevgo/tuskmem/pkg/retry"
)

// Writer is a MemoryWriter that can be told apart in logs and metrics.
type Writer interface {
	core.MemoryWriter
	Name() string
}

// Multi hands every analysis to each of its writers in turn. A failing
// writer does not stop the ones after it.
type Multi struct {
	writers []Writer
	retrier *retry.Retrier
	metrics *metrics.Metrics
}

type MultiOption func(*Multi)

func WithRetrier(r *retry.Retrier) MultiOption {
	return func(m *Multi) {
		m.retrier = r
	}
}

func WithMetrics(mt *metrics.Metrics) MultiOption {
	return func(m *Multi) {
		m.metrics = mt
	}
}

func NewMulti(writers []Writer, opts ...MultiOption) *Multi {
	m := &Multi{
		writers: writers,
		retrier: retry.NewDefaultRetrier(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Multi) Names() []string {
	names := make([]string, 0, len(m.writers))
	for _, w := range m.writers {
		names = append(names, w.Name())
	}
	return names
}

func (m *Multi) Transform(ctx context.Context, result *core.AnalysisResult, opts core.TransformOptions) error {
	if len(m.writers) == 0 {
		return fmt.Errorf("no memory writers configured")
	}

	var errs []error
	for _, w := range m.writers {
		err := m.retrier.Do(ctx, func(ctx context.Context) error {
			return w.Transform(ctx, result, opts)
		})
		m.metrics.RecordSinkWrite(w.Name(), err)
		if err != nil {
			log.FromCtx(ctx).Error().Err(err).
				Str("sink", w.Name()).
				Str("conversation", opts.ConversationID).
				Msg("memory write failed")
			errs = append(errs, fmt.Errorf("%s: %w", w.Name(), err))
		}
	}
	return errors.Join(errs...)
}
