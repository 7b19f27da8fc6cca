package sink

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/sandevgo/tuskmem/internal/core"
	"github.com/sandevgo/tuskmem/pkg/conv"
	"github.com/sandevgo/tuskmem/pkg/log"
)

const logTitle = "# Conversation Log"

var chatHeadingRe = regexp.MustCompile(`^Chat (\S+) - (\d{4}-\d{2}-\d{2}) - (.+)$`)

// MarkdownLog keeps a human-readable log, newest conversation first. A
// conversation already in the log is not written again.
type MarkdownLog struct {
	path string
	mu   sync.Mutex
}

func NewMarkdownLog(path string) *MarkdownLog {
	return &MarkdownLog{path: path}
}

func (m *MarkdownLog) Name() string { return "markdown" }
func (m *MarkdownLog) Path() string { return m.path }

func (m *MarkdownLog) Transform(ctx context.Context, result *core.AnalysisResult, opts core.TransformOptions) error {
	rec, err := ToRecord(result, opts)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	existing, err := os.ReadFile(m.path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to read conversation log: %w", err)
	}

	id := headingID(rec.ConversationID)
	if _, ok := LoggedConversations(existing)[id]; ok {
		log.FromCtx(ctx).Debug().Str("conversation", id).Msg("already in conversation log")
		return nil
	}

	content := prepend(string(existing), RenderMarkdown(rec))
	if err := writeAtomic(m.path, []byte(content)); err != nil {
		return fmt.Errorf("failed to write conversation log: %w", err)
	}
	return nil
}

// LoggedConversations maps conversation ids found in chat headings to the
// heading date.
func LoggedConversations(md []byte) map[string]string {
	out := make(map[string]string)
	for _, h := range conv.Headings(md, 2) {
		if m := chatHeadingRe.FindStringSubmatch(h); m != nil {
			if _, ok := out[m[1]]; !ok {
				out[m[1]] = m[2]
			}
		}
	}
	return out
}

// RenderMarkdown renders one memory as a chat section. Every finding is
// written in full.
func RenderMarkdown(rec core.MemoryRecord) string {
	a := rec.Analysis
	var b strings.Builder

	date := a.Timestamp
	if date.IsZero() {
		date = rec.AnalyzedAt
	}
	fmt.Fprintf(&b, "## Chat %s - %s - %s\n\n", headingID(rec.ConversationID), date.UTC().Format("2006-01-02"), Title(a))
	fmt.Fprintf(&b, "**Source:** %s | **Session:** %s | **Messages:** %d | **Turns:** %d\n", rec.Source, rec.SessionID, a.MessageCount, a.Flow.Turns)

	if len(a.UserIntents) > 0 {
		b.WriteString("\n### Intents\n\n")
		for _, in := range a.UserIntents {
			item(&b, fmt.Sprintf("[%s] ", in.Confidence), in.Text)
		}
	}
	if len(a.AIActions) > 0 {
		b.WriteString("\n### Actions\n\n")
		for _, ac := range a.AIActions {
			item(&b, fmt.Sprintf("**%s**: ", ac.Type), ac.Details)
		}
	}
	if len(a.TechnicalWork) > 0 {
		b.WriteString("\n### Technical work\n\n")
		for _, tw := range a.TechnicalWork {
			item(&b, fmt.Sprintf("**%s**: ", tw.Type), tw.Description)
		}
	}
	if len(a.Decisions) > 0 {
		b.WriteString("\n### Decisions\n\n")
		for _, d := range a.Decisions {
			item(&b, fmt.Sprintf("[%s impact] ", d.Impact), d.Decision)
		}
	}

	ws := a.WorkingState
	if ws.CurrentTask != "" || len(ws.Blockers) > 0 || ws.NextAction != "" {
		b.WriteString("\n### Working state\n\n")
		if ws.CurrentTask != "" {
			item(&b, "Current task: ", ws.CurrentTask)
		}
		for _, bl := range ws.Blockers {
			item(&b, "Blocker: ", bl)
		}
		if ws.NextAction != "" {
			item(&b, "Next action: ", ws.NextAction)
		}
	}

	b.WriteString("\n")
	return b.String()
}

// Title is the first line of the first intent.
func Title(a *core.AnalysisResult) string {
	for _, in := range a.UserIntents {
		if line := firstLine(in.Text); line != "" {
			return line
		}
	}
	return "Untitled conversation"
}

func firstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}

func item(b *strings.Builder, prefix, text string) {
	b.WriteString("- ")
	b.WriteString(prefix)
	b.WriteString(strings.ReplaceAll(strings.TrimRight(text, "\n"), "\n", "\n  "))
	b.WriteString("\n")
}

func headingID(id string) string {
	return strings.Join(strings.Fields(id), "-")
}

// prepend puts section right below the log title.
func prepend(existing, section string) string {
	if strings.TrimSpace(existing) == "" {
		return logTitle + "\n\n" + section
	}
	if strings.HasPrefix(existing, "# ") {
		head, rest, _ := strings.Cut(existing, "\n")
		return head + "\n\n" + section + strings.TrimLeft(rest, "\n")
	}
	return section + existing
}

func writeAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".conversation-log-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
