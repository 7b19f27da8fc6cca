package main

import (
	"errors"
	"fmt"

	"github.com/sandevgo/tuskmem/internal/service/poller"
	"github.com/sandevgo/tuskmem/internal/service/ui"
	"github.com/sandevgo/tuskmem/pkg/log"
	"github.com/spf13/cobra"
)

var captureSource string

var captureCmd = &cobra.Command{
	Use:   "capture",
	Short: "Capture and analyse every source once",
	Long: `Runs a single poll over the configured sources (or only --source), writing
new conversations to the cache and their analysis to the sinks.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, flushLog := setupLogger(cmd.Context())
		defer flushLog()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.loadSources(captureSource); err != nil {
			return err
		}

		pollers, err := a.pollers(ctx, 0, poller.WithCaptureRequired())
		if err != nil {
			return err
		}

		var errs []error
		for _, p := range pollers {
			pctx := log.WithComponent(ctx, p.Name())
			stats, err := p.Poll(pctx)
			fmt.Fprint(cmd.OutOrStdout(), ui.RenderPoll(p.Name(), stats))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
			}
		}
		return errors.Join(errs...)
	},
}

func init() {
	captureCmd.Flags().StringVarP(&captureSource, "source", "s", "", "capture only this source")
	rootCmd.AddCommand(captureCmd)
}
