package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/sandevgo/tuskmem/internal/core"
	"github.com/sandevgo/tuskmem/internal/sink"
	"github.com/sandevgo/tuskmem/pkg/log"
)

const shellLimit = 20

const shellHelp = `Type text to search memories.
  :show <conversation-id>   print one memory as markdown
  :recent [source]          list recently analysed conversations
  :stats                    memories per source
  exit                      leave the shell
`

// ReadLine is an interactive search shell over the memory store.
type ReadLine struct {
	repo core.MemoriesRepository
	rl   *readline.Instance
}

func NewReadLine(repo core.MemoriesRepository, runtimePath string) (*ReadLine, error) {
	// Ensure runtime directory exists
	if err := os.MkdirAll(runtimePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create runtime directory: %w", err)
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "tuskmem> ",
		HistoryFile:     filepath.Join(runtimePath, "search_history"),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, err
	}

	return &ReadLine{repo: repo, rl: rl}, nil
}

func (r *ReadLine) Start(ctx context.Context) error {
	logger := log.FromCtx(ctx)
	logger.Info().Msg("Search shell started. Type :help for commands, 'exit' to quit.")

	for {
		// Check context before blocking read
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line, err := r.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				if len(line) == 0 {
					return nil // Exit on Ctrl+C
				}
				continue
			} else if err == io.EOF {
				return nil
			}
			return err
		}

		quit, err := Exec(ctx, r.repo, line, r.rl.Stdout())
		if err != nil {
			logger.Error().Err(err).Msg("shell command failed")
			fmt.Fprintf(r.rl.Stdout(), "Error: %v\n", err)
		}
		if quit {
			return nil
		}
	}
}

func (r *ReadLine) Shutdown(ctx context.Context) error {
	if r.rl != nil {
		return r.rl.Close()
	}
	return nil
}

// Exec runs one shell line and reports whether the shell should exit.
func Exec(ctx context.Context, repo core.MemoriesRepository, line string, out io.Writer) (bool, error) {
	line = strings.TrimSpace(line)
	switch {
	case line == "":
		return false, nil
	case line == "exit" || line == ":quit":
		return true, nil
	case line == ":help":
		fmt.Fprint(out, shellHelp)
		return false, nil
	case line == ":stats":
		stats, err := repo.SourceStats(ctx)
		if err != nil {
			return false, err
		}
		if len(stats) == 0 {
			fmt.Fprintln(out, "No memories yet.")
		}
		for _, s := range stats {
			fmt.Fprintf(out, "%-20s %6d memories %10d bytes\n", s.Source, s.Memories, s.PayloadBytes)
		}
		return false, nil
	case strings.HasPrefix(line, ":recent"):
		source := strings.TrimSpace(strings.TrimPrefix(line, ":recent"))
		mems, err := repo.ListMemories(ctx, core.MemoryFilter{Source: source, Limit: shellLimit})
		if err != nil {
			return false, err
		}
		printMemories(out, mems)
		return false, nil
	case strings.HasPrefix(line, ":show"):
		id := strings.TrimSpace(strings.TrimPrefix(line, ":show"))
		if id == "" {
			return false, fmt.Errorf("usage: :show <conversation-id>")
		}
		mem, err := repo.GetMemory(ctx, id)
		if err != nil {
			return false, err
		}
		if mem == nil {
			fmt.Fprintf(out, "No memory for %s\n", id)
			return false, nil
		}
		analysis, err := sink.DecodeAnalysis(*mem)
		if err != nil {
			return false, err
		}
		fmt.Fprint(out, sink.RenderMarkdown(core.MemoryRecord{
			ID:             mem.ID,
			ConversationID: mem.ConversationID,
			SessionID:      mem.SessionID,
			Source:         mem.Source,
			AnalyzedAt:     mem.AnalyzedAt,
			Analysis:       analysis,
		}))
		return false, nil
	case strings.HasPrefix(line, ":"):
		return false, fmt.Errorf("unknown command %s, try :help", strings.Fields(line)[0])
	}

	mems, err := repo.SearchMemories(ctx, line, shellLimit)
	if err != nil {
		return false, err
	}
	printMemories(out, mems)
	return false, nil
}

func printMemories(out io.Writer, mems []core.StoredMemory) {
	if len(mems) == 0 {
		fmt.Fprintln(out, "No matches.")
		return
	}
	for _, m := range mems {
		title := "?"
		if analysis, err := sink.DecodeAnalysis(m); err == nil {
			title = sink.Title(analysis)
		}
		fmt.Fprintf(out, "%s  %-12s %-36s %s\n", m.AnalyzedAt.Local().Format("2006-01-02 15:04"), m.Source, m.ConversationID, title)
	}
}
