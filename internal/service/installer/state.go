package installer

import (
	"time"

	"github.com/sandevgo/tuskmem/internal/config"
	"github.com/sandevgo/tuskmem/internal/core"
)

// Settings is written to <runtime>/.env by the wizard.
type Settings struct {
	PollInterval time.Duration `env:"TUSKMEM_POLL_INTERVAL"`
	Sinks        []string      `env:"TUSKMEM_SINKS" envSeparator:","`
	PersistSeen  bool          `env:"TUSKMEM_PERSIST_SEEN"`
	Watch        bool          `env:"TUSKMEM_WATCH"`
	EnableAPI    bool          `env:"TUSKMEM_ENABLE_API"`
	NATSURL      string        `env:"TUSKMEM_NATS_URL"`
}

type InstallState struct {
	RuntimePath string
	Settings    Settings
	Sources     []core.SourceConfig
}

func NewInstallState(runtimePath string) *InstallState {
	return &InstallState{
		RuntimePath: runtimePath,
		Settings: Settings{
			PollInterval: 5 * time.Minute,
			Sinks:        []string{config.SinkSQLite},
		},
	}
}
