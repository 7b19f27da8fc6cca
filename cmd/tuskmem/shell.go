package main

import (
	"github.com/sandevgo/tuskmem/internal/config"
	"github.com/sandevgo/tuskmem/internal/transport/cli"
	"github.com/spf13/cobra"
)

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Interactive memory search",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, flushLog := setupLogger(cmd.Context())
		defer flushLog()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		shell, err := cli.NewReadLine(a.memories, config.GetRuntimePath())
		if err != nil {
			return err
		}
		defer shell.Shutdown(ctx)

		return shell.Start(ctx)
	},
}

func init() {
	rootCmd.AddCommand(shellCmd)
}
