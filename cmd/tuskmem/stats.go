package main

import (
	"encoding/json"
	"fmt"

	"github.com/sandevgo/tuskmem/internal/service/stats"
	"github.com/sandevgo/tuskmem/internal/service/ui"
	"github.com/spf13/cobra"
)

var statsJSON bool

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show memories, tokens and cached chunks per source",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, flushLog := setupLogger(cmd.Context())
		defer flushLog()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		report, err := stats.Collect(ctx, a.memories, a.cfg.GetCacheDir())
		if err != nil {
			return fmt.Errorf("failed to collect stats: %w", err)
		}

		if statsJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		}
		fmt.Fprint(cmd.OutOrStdout(), ui.RenderStats(report))
		return nil
	},
}

func init() {
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "print the report as JSON")
	rootCmd.AddCommand(statsCmd)
}
