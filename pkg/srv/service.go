// Package srv runs the daemon's long-lived components.
package srv

import (
	"context"
	"fmt"
	"time"

	"github.com/sandevgo/tuskmem/pkg/log"
)

// Service is a long-lived component of the daemon. Start may block until
// ctx is done or return right away after spawning its own loop.
type Service interface {
	Start(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

const shutdownTimeout = 10 * time.Second

// Name is the label a service is logged under: its String or Name method
// when it has one, its type otherwise.
func Name(s Service) string {
	switch v := s.(type) {
	case fmt.Stringer:
		return v.String()
	case interface{ Name() string }:
		return v.Name()
	}
	return fmt.Sprintf("%T", s)
}

func StartServices(ctx context.Context, services []Service) {
	logger := log.FromCtx(ctx)
	for _, service := range services {
		go func(service Service) {
			if err := service.Start(ctx); err != nil {
				logger.Fatal().Err(err).Str("service", Name(service)).Msg("service failed")
			}
		}(service)
	}
}

// ShutdownServices waits for ctx to be cancelled, then shuts the services
// down in reverse order so that sinks outlive the pollers feeding them.
func ShutdownServices(ctx context.Context, services []Service) {
	<-ctx.Done()
	Shutdown(ctx, services)
}

// Shutdown stops services in reverse order within shutdownTimeout and
// returns how many failed.
func Shutdown(ctx context.Context, services []Service) int {
	logger := log.FromCtx(ctx)
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	failed := 0
	for i := len(services) - 1; i >= 0; i-- {
		if err := services[i].Shutdown(shutdownCtx); err != nil {
			failed++
			logger.Error().Err(err).Str("service", Name(services[i])).Msg("failed to shut down")
		}
	}
	return failed
}
