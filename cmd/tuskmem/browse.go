package main

import (
	"fmt"

	"github.com/sandevgo/tuskmem/internal/core"
	"github.com/sandevgo/tuskmem/internal/service/ui"
	"github.com/spf13/cobra"
)

var browseSource string

var browseCmd = &cobra.Command{
	Use:   "browse",
	Short: "Browse stored memories in a terminal UI",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, flushLog := setupLogger(cmd.Context())
		defer flushLog()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		mems, err := a.memories.ListMemories(ctx, core.MemoryFilter{Source: browseSource, Limit: 1000})
		if err != nil {
			return fmt.Errorf("failed to list memories: %w", err)
		}
		if len(mems) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No memories yet. Run 'tuskmem capture' first.")
			return nil
		}
		return ui.RunBrowser(mems)
	},
}

func init() {
	browseCmd.Flags().StringVarP(&browseSource, "source", "s", "", "only memories from this source")
	rootCmd.AddCommand(browseCmd)
}
