package main

import (
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/sandevgo/tuskmem/internal/config"
	"github.com/sandevgo/tuskmem/internal/service/installer"
	"github.com/sandevgo/tuskmem/pkg/log"
	"github.com/spf13/cobra"
)

var initDefaults bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the runtime directory, .env and sources.yaml",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, flushLog := setupLogger(cmd.Context())
		defer flushLog()

		logger := log.FromCtx(ctx)
		runtimePath := config.GetRuntimePath()

		var envPath string
		if initDefaults {
			state := installer.NewInstallState(runtimePath)
			path, err := installer.SaveEnv(state)
			if err != nil {
				return err
			}
			if _, err := installer.WriteSources(state); err != nil {
				return err
			}
			envPath = path
		} else {
			// the wizard saves .env and sources.yaml itself
			state, err := installer.RunWizard(runtimePath)
			if err != nil {
				return err
			}
			envPath = filepath.Join(state.RuntimePath, ".env")
		}

		if err := godotenv.Load(envPath); err != nil {
			logger.Warn().Err(err).Str("path", envPath).Msg("failed to load .env file")
		}

		logger.Info().Msgf("initialized runtime directory at: %s", runtimePath)
		logger.Info().Msg("Setup complete! Run 'tuskmem capture' once or 'tuskmem start' to keep polling.")
		return nil
	},
}

func init() {
	initCmd.Flags().BoolVar(&initDefaults, "defaults", false, "write the default configuration without prompting")
	rootCmd.AddCommand(initCmd)
}
