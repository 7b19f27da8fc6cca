package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sandevgo/tuskmem/internal/cache"
	"github.com/sandevgo/tuskmem/internal/parser"
	"github.com/sandevgo/tuskmem/internal/service/consolidate"
	"github.com/sandevgo/tuskmem/internal/service/ui"
	"github.com/sandevgo/tuskmem/pkg/log"
	"github.com/spf13/cobra"
)

var (
	consolidateJSON bool
	consolidateOut  string
)

var consolidateCmd = &cobra.Command{
	Use:   "consolidate [cache-dir...]",
	Short: "Merge cached captures into one deduplicated timeline",
	Long: `Reads the chunks in each cache directory (default: every source directory
under the cache root) and merges their messages, keeping the earliest copy of
each exchange.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, flushLog := setupLogger(cmd.Context())
		defer flushLog()
		logger := log.FromCtx(ctx)

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		dirs := args
		if len(dirs) == 0 {
			dirs, err = cacheSubdirs(a.cfg.GetCacheDir())
			if err != nil {
				return err
			}
		}
		if len(dirs) == 0 {
			return fmt.Errorf("no cache directories under %s, run 'tuskmem capture' first", a.cfg.GetCacheDir())
		}

		chain := parser.NewDefaultChain()
		sets := make([]consolidate.SourceSet, 0, len(dirs))
		for _, dir := range dirs {
			chunks, err := cache.ReadChunks(dir)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", dir, err)
			}
			source := filepath.Base(dir)
			if len(chunks) > 0 && chunks[0].Source != "" {
				source = chunks[0].Source
			}
			logger.Debug().Str("dir", dir).Int("chunks", len(chunks)).Msg("loaded cache")
			sets = append(sets, consolidate.FromChunks(ctx, source, chunks, chain))
		}

		res := consolidate.Consolidate(sets...)
		a.metrics.RecordConsolidation(len(res.Messages), res.ConflictCount)

		if consolidateOut != "" {
			data, err := json.MarshalIndent(res, "", "  ")
			if err != nil {
				return err
			}
			if err := os.WriteFile(consolidateOut, data, 0644); err != nil {
				return fmt.Errorf("failed to write %s: %w", consolidateOut, err)
			}
		}

		if consolidateJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		}
		fmt.Fprint(cmd.OutOrStdout(), ui.RenderConsolidation(res))
		return nil
	},
}

func cacheSubdirs(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var dirs []string
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, filepath.Join(root, e.Name()))
		}
	}
	return dirs, nil
}

func init() {
	consolidateCmd.Flags().BoolVar(&consolidateJSON, "json", false, "print the merged timeline as JSON")
	consolidateCmd.Flags().StringVarP(&consolidateOut, "out", "o", "", "also write the merged timeline to this file")
	rootCmd.AddCommand(consolidateCmd)
}
