package sink

import (
	"context"
	"fmt"

	"github.com/sandevgo/tuskmem/internal/core"
)

// Bus is the publishing half of a message bus client.
type Bus interface {
	Publish(subject string, data any) error
}

// Publisher announces every analysed conversation on a bus subject.
type Publisher struct {
	bus     Bus
	subject string
}

func NewPublisher(bus Bus, subject string) *Publisher {
	return &Publisher{bus: bus, subject: subject}
}

func (p *Publisher) Name() string { return "nats" }

func (p *Publisher) Transform(ctx context.Context, result *core.AnalysisResult, opts core.TransformOptions) error {
	rec, err := ToRecord(result, opts)
	if err != nil {
		return err
	}
	if err := p.bus.Publish(p.subject, rec); err != nil {
		return fmt.Errorf("failed to publish memory: %w", err)
	}
	return nil
}
