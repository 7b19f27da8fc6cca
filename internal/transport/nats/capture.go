package nats

import (
	"context"
	"encoding/json"

	"github.com/sandevgo/tuskmem/pkg/log"
)

type Subscriber interface {
	Subscribe(subject string, handler func(subject string, data []byte)) error
}

// Target is a poller that can be asked to poll right away.
type Target interface {
	Name() string
	Trigger()
}

// CaptureRequest asks for an immediate capture. An empty Source means every
// configured source.
type CaptureRequest struct {
	Source string `json:"source,omitempty"`
}

// CaptureListener turns capture requests published on the bus into poller
// triggers.
type CaptureListener struct {
	sub     Subscriber
	subject string
	targets []Target
	ctx     context.Context
}

func NewCaptureListener(sub Subscriber, subject string, targets ...Target) *CaptureListener {
	return &CaptureListener{
		sub:     sub,
		subject: subject,
		targets: targets,
		ctx:     context.Background(),
	}
}

func (l *CaptureListener) Start(ctx context.Context) error {
	l.ctx = log.WithComponent(ctx, "capture-listener")
	return l.sub.Subscribe(l.subject, l.handle)
}

// Shutdown is a no-op; the subscription ends with the client.
func (l *CaptureListener) Shutdown(ctx context.Context) error {
	return nil
}

func (l *CaptureListener) handle(subject string, data []byte) {
	logger := log.FromCtx(l.ctx)

	var req CaptureRequest
	if len(data) > 0 {
		if err := json.Unmarshal(data, &req); err != nil {
			logger.Warn().Err(err).Str("subject", subject).Msg("ignoring malformed capture request")
			return
		}
	}

	triggered := 0
	for _, t := range l.targets {
		if req.Source == "" || req.Source == t.Name() {
			t.Trigger()
			triggered++
		}
	}

	if triggered == 0 {
		logger.Warn().Str("source", req.Source).Msg("capture request matched no source")
		return
	}
	logger.Info().Str("source", req.Source).Int("triggered", triggered).Msg("capture requested")
}
