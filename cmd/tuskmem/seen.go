package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var seenCmd = &cobra.Command{
	Use:   "seen",
	Short: "Inspect the persisted set of processed conversations",
}

var seenClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Forget processed conversations so the next poll analyses them again",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, flushLog := setupLogger(cmd.Context())
		defer flushLog()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		n, err := a.seen.ClearKeys(ctx)
		if err != nil {
			return fmt.Errorf("failed to clear seen keys: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d seen conversations.\n", n)
		return nil
	},
}

func init() {
	seenCmd.AddCommand(seenClearCmd)
	rootCmd.AddCommand(seenCmd)
}
