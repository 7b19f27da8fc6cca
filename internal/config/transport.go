package config

import (
	"context"

	"github.com/caarlos0/env/v11"
	"github.com/sandevgo/tuskmem/pkg/log"
)

type APIConfig struct {
	Port int `env:"TUSKMEM_API_PORT" envDefault:"8793"`
}

func NewAPIConfig(ctx context.Context) *APIConfig {
	c := &APIConfig{}
	if err := env.Parse(c); err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse API config")
	}
	return c
}

type NATSConfig struct {
	URL            string `env:"TUSKMEM_NATS_URL" envDefault:"nats://127.0.0.1:4222"`
	Token          string `env:"TUSKMEM_NATS_TOKEN"`
	MemorySubject  string `env:"TUSKMEM_NATS_MEMORY_SUBJECT" envDefault:"tuskmem.memory.stored"`
	CaptureSubject string `env:"TUSKMEM_NATS_CAPTURE_SUBJECT" envDefault:"tuskmem.capture.request"`
}

func NewNATSConfig(ctx context.Context) *NATSConfig {
	c := &NATSConfig{}
	if err := env.Parse(c); err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse NATS config")
	}
	return c
}
