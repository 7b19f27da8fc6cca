package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sandevgo/tuskmem/internal/core"
	"github.com/sandevgo/tuskmem/internal/sink"
	"github.com/spf13/cobra"
)

var (
	querySource string
	queryLimit  int
	queryJSON   bool
)

var queryCmd = &cobra.Command{
	Use:   "query [text]",
	Short: "Search stored memories",
	Long: `Searches stored memories by text. Without text, lists the most recently
analysed conversations.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, flushLog := setupLogger(cmd.Context())
		defer flushLog()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		text := strings.TrimSpace(strings.Join(args, " "))

		var mems []core.StoredMemory
		if text == "" {
			mems, err = a.memories.ListMemories(ctx, core.MemoryFilter{Source: querySource, Limit: queryLimit})
		} else {
			mems, err = a.memories.SearchMemories(ctx, text, queryLimit)
			if querySource != "" {
				mems = bySource(mems, querySource)
			}
		}
		if err != nil {
			return fmt.Errorf("failed to query memories: %w", err)
		}

		out := cmd.OutOrStdout()
		if queryJSON {
			records := make([]core.MemoryRecord, 0, len(mems))
			for _, m := range mems {
				analysis, err := sink.DecodeAnalysis(m)
				if err != nil {
					return err
				}
				records = append(records, core.MemoryRecord{
					ID:             m.ID,
					ConversationID: m.ConversationID,
					SessionID:      m.SessionID,
					Source:         m.Source,
					ContentHash:    m.ContentHash,
					AnalyzedAt:     m.AnalyzedAt,
					Analysis:       analysis,
				})
			}
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(records)
		}

		if len(mems) == 0 {
			fmt.Fprintln(out, "No memories found.")
			return nil
		}
		for _, m := range mems {
			title := "?"
			if analysis, err := sink.DecodeAnalysis(m); err == nil {
				title = sink.Title(analysis)
			}
			fmt.Fprintf(out, "%s  %-12s %-36s %s\n", m.AnalyzedAt.Local().Format("2006-01-02 15:04"), m.Source, m.ConversationID, title)
		}
		return nil
	},
}

func bySource(mems []core.StoredMemory, source string) []core.StoredMemory {
	out := mems[:0]
	for _, m := range mems {
		if m.Source == source {
			out = append(out, m)
		}
	}
	return out
}

func init() {
	queryCmd.Flags().StringVarP(&querySource, "source", "s", "", "only memories from this source")
	queryCmd.Flags().IntVarP(&queryLimit, "limit", "n", 20, "maximum number of results")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "print full records as JSON")
	rootCmd.AddCommand(queryCmd)
}
