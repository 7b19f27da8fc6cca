package main

import (
	"fmt"

	"github.com/sandevgo/tuskmem/internal/config"
	"github.com/sandevgo/tuskmem/internal/service/ui"
	"github.com/sandevgo/tuskmem/internal/sink"
	"github.com/spf13/cobra"
)

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "Maintain the markdown conversation log",
}

var logDedupeCmd = &cobra.Command{
	Use:   "dedupe [path]",
	Short: "Remove repeated conversation sections from the log",
	Long: `Keeps the first section of every conversation in the markdown log and drops
later repeats. The original file is kept next to it with a .backup suffix.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, flushLog := setupLogger(cmd.Context())
		defer flushLog()

		path := ""
		if len(args) == 1 {
			path = args[0]
		} else {
			if err := initEnv(ctx, config.GetRuntimePath()); err != nil {
				return err
			}
			cfg, err := config.ParseAppConfig()
			if err != nil {
				return fmt.Errorf("failed to parse app config: %w", err)
			}
			path = cfg.GetConversationLogPath()
		}

		st, err := sink.DedupeLog(path)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), ui.RenderDedupe(st))
		return nil
	},
}

func init() {
	logCmd.AddCommand(logDedupeCmd)
	rootCmd.AddCommand(logCmd)
}
