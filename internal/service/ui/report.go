package ui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sandevgo/tuskmem/internal/cache"
	"github.com/sandevgo/tuskmem/internal/service/consolidate"
	"github.com/sandevgo/tuskmem/internal/service/poller"
	"github.com/sandevgo/tuskmem/internal/service/stats"
	"github.com/sandevgo/tuskmem/internal/sink"
)

func row(b *strings.Builder, label string, value any) {
	b.WriteString(LabelStyle.Render(label))
	b.WriteString(fmt.Sprint(value))
	b.WriteString("\n")
}

// RenderPoll formats the outcome of one capture run.
func RenderPoll(source string, st poller.PollStats) string {
	var b strings.Builder
	b.WriteString(TitleStyle.Render("Capture: "+source) + "\n")
	if !st.Available {
		b.WriteString(DescStyle.Render("source not available") + "\n")
		return b.String()
	}
	row(&b, "Conversations read", st.Read)
	row(&b, "Processed", st.Processed)
	row(&b, "Already seen", st.Skipped)
	if st.Failed > 0 {
		row(&b, "Failed", ErrorStyle.Render(fmt.Sprint(st.Failed)))
	} else {
		row(&b, "Failed", 0)
	}
	if st.Cache != nil {
		b.WriteString(RenderCache(st.Cache))
	}
	return b.String()
}

func RenderCache(ws *cache.WriteStats) string {
	var b strings.Builder
	row(&b, "Cache dir", ws.CacheDir)
	row(&b, "Chunks written", ws.NewChunksWritten)
	row(&b, "Chunks skipped", ws.ChunksSkipped)
	if ws.Failed > 0 {
		row(&b, "Chunks failed", ErrorStyle.Render(fmt.Sprint(ws.Failed)))
	}
	return b.String()
}

func RenderConsolidation(res *consolidate.Result) string {
	var b strings.Builder
	b.WriteString(TitleStyle.Render("Consolidation") + "\n")
	row(&b, "Input messages", res.TotalInput)
	row(&b, "Kept", len(res.Messages))
	row(&b, "Duplicates removed", res.DeduplicatedCount)
	row(&b, "Conflicts", res.ConflictCount)
	for _, src := range sortedKeys(res.SourceBreakdown) {
		row(&b, "  from "+src, res.SourceBreakdown[src])
	}
	return b.String()
}

func RenderStats(r *stats.Report) string {
	var b strings.Builder
	b.WriteString(TitleStyle.Render("Memory store") + "\n")
	if len(r.Sources) == 0 {
		b.WriteString(DescStyle.Render("no memories stored yet") + "\n")
	} else {
		fmt.Fprintf(&b, "%-20s %9s %10s %12s %12s\n", "SOURCE", "MEMORIES", "TOKENS", "BYTES", "TOKENS/BYTE")
		for _, s := range append(r.Sources, r.Total) {
			fmt.Fprintf(&b, "%-20s %9d %10d %12d %12.3f\n", s.Source, s.Memories, s.Tokens, s.Bytes, s.TokensPerByte)
		}
		if !r.ExactTokens {
			b.WriteString(DescStyle.Render("token counts are estimates, the cl100k_base encoding could not be loaded") + "\n")
		}
	}

	b.WriteString("\n" + TitleStyle.Render("Capture cache") + "\n")
	for _, c := range r.Cache {
		row(&b, c.Dir, c.Chunks)
	}
	row(&b, "Total chunks", r.CacheChunks)
	return b.String()
}

func RenderDedupe(st *sink.DedupeStats) string {
	var b strings.Builder
	b.WriteString(TitleStyle.Render("Conversation log") + "\n")
	row(&b, "Original lines", st.OriginalLines)
	row(&b, "Final lines", st.FinalLines)
	row(&b, "Removed lines", st.RemovedLines)
	row(&b, "Conversations", st.Conversations)
	for _, key := range st.Removed {
		row(&b, "  removed", key)
	}
	row(&b, "Backup", st.BackupPath)
	return b.String()
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
