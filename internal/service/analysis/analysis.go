// Package analysis holds the six heuristic extractors run over a
// conversation. Every extractor prefers the conversation summary (tier 1)
// and falls back to per-message matching (tier 2) when there is none.
// Findings always quote full message text.
package analysis

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sandevgo/tuskmem/internal/core"
	"github.com/sandevgo/tuskmem/internal/service/summary"
)

var ErrUnknownRole = errors.New("unknown message role")

// Extractor is the shape shared by all six passes.
type Extractor[T any] interface {
	Extract(msgs []core.Message, sum *core.ConversationSummary) (T, error)
}

// unit is one piece of text an extractor looks at, from either tier.
type unit struct {
	role  string
	index int
	ts    time.Time
	text  string
	tier  core.Tier
}

func (u unit) provenance() core.Provenance {
	return core.Provenance{Tier: u.tier, MessageIndex: u.index}
}

func (u unit) blank() bool {
	return strings.TrimSpace(u.text) == ""
}

// validate rejects roles the pipeline does not know. Empty roles and
// missing content are tolerated and skipped later.
func validate(msgs []core.Message) error {
	for i, m := range msgs {
		if m.Role != "" && !core.IsKnownRole(m.Role) {
			return fmt.Errorf("message %d has role %q: %w", i, m.Role, ErrUnknownRole)
		}
	}
	return nil
}

// collect returns summary segments when a summary is present, otherwise the
// user and assistant messages themselves.
func collect(msgs []core.Message, sum *core.ConversationSummary) ([]unit, error) {
	if err := validate(msgs); err != nil {
		return nil, err
	}

	if !sum.Empty() {
		segs := summary.Segments(sum)
		units := make([]unit, 0, len(segs))
		for _, s := range segs {
			units = append(units, unit{role: s.Role, index: s.MessageIndex, ts: s.Timestamp, text: s.Text, tier: core.TierSummary})
		}
		return units, nil
	}

	units := make([]unit, 0, len(msgs))
	for i, m := range msgs {
		if m.Role != core.RoleUser && m.Role != core.RoleAssistant {
			continue
		}
		units = append(units, unit{role: m.Role, index: i, ts: m.Timestamp, text: m.Content, tier: core.TierMessage})
	}
	return units, nil
}

func byRole(units []unit, role string) []unit {
	out := make([]unit, 0, len(units))
	for _, u := range units {
		if u.role == role {
			out = append(out, u)
		}
	}
	return out
}

// sentences splits text at terminal punctuation followed by whitespace and
// at line breaks. Code fences are kept whole.
func sentences(text string) []string {
	var (
		out     []string
		current strings.Builder
		inFence bool
	)

	flush := func() {
		s := strings.TrimSpace(current.String())
		if s != "" {
			out = append(out, s)
		}
		current.Reset()
	}

	lines := strings.Split(text, "\n")
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			if !inFence {
				flush()
			}
			current.WriteString(line)
			current.WriteByte('\n')
			inFence = !inFence
			if !inFence {
				flush()
			}
			continue
		}
		if inFence {
			current.WriteString(line)
			current.WriteByte('\n')
			continue
		}

		runes := []rune(line)
		for i, r := range runes {
			current.WriteRune(r)
			if (r == '.' || r == '!' || r == '?') && (i+1 == len(runes) || runes[i+1] == ' ' || runes[i+1] == '\t') {
				flush()
			}
		}
		flush()
	}
	flush()
	return out
}
