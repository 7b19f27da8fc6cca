// Package nats connects tuskmem to a NATS bus: memories are published as
// they are stored and capture requests trigger an immediate poll.
package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	natsgo "github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	"github.com/sandevgo/tuskmem/internal/config"
	"github.com/sandevgo/tuskmem/pkg/log"
)

type Client struct {
	conn   *natsgo.Conn
	mu     sync.Mutex
	subs   []*natsgo.Subscription
	logger *zerolog.Logger
}

func NewClient(ctx context.Context, cfg *config.NATSConfig) (*Client, error) {
	logger := log.FromCtx(log.WithComponent(ctx, "nats"))

	opts := []natsgo.Option{
		natsgo.Name("tuskmem"),
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(60),
		natsgo.ReconnectWait(2 * time.Second),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			if err != nil {
				logger.Warn().Err(err).Msg("nats disconnected")
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info().Str("url", nc.ConnectedUrl()).Msg("nats reconnected")
		}),
	}
	if cfg.Token != "" {
		opts = append(opts, natsgo.Token(cfg.Token))
	}

	nc, err := natsgo.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}

	return &Client{conn: nc, logger: logger}, nil
}

func (c *Client) Publish(subject string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}
	return c.conn.Publish(subject, payload)
}

func (c *Client) Subscribe(subject string, handler func(subject string, data []byte)) error {
	sub, err := c.conn.Subscribe(subject, func(msg *natsgo.Msg) {
		handler(msg.Subject, msg.Data)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", subject, err)
	}

	c.mu.Lock()
	c.subs = append(c.subs, sub)
	c.mu.Unlock()

	c.logger.Info().Str("subject", subject).Msg("subscribed")
	return nil
}

func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, sub := range c.subs {
		_ = sub.Unsubscribe()
	}
	c.subs = nil
	c.conn.Close()
}
