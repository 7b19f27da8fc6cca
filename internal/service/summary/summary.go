// Package summary aggregates a conversation into role-separated full text.
// Extractors reason over this aggregate instead of single excerpts, so no
// text is ever cut here.
package summary

import (
	"fmt"
	"strings"
	"time"

	"github.com/sandevgo/tuskmem/internal/core"
)

func Extract(msgs []core.Message) core.ConversationSummary {
	var (
		sum        core.ConversationSummary
		user       strings.Builder
		assistant  strings.Builder
		transcript strings.Builder
	)

	for i, m := range msgs {
		if m.Role != core.RoleUser && m.Role != core.RoleAssistant {
			continue
		}

		text := m.Content
		seg := core.Segment{
			Role:         m.Role,
			MessageIndex: i,
			Timestamp:    m.Timestamp,
			Text:         text,
		}
		chars := len([]rune(m.Content))

		sum.Metrics.TotalMessages++
		sum.Metrics.TotalChars += chars

		switch m.Role {
		case core.RoleUser:
			sum.Metrics.UserMessages++
			sum.Metrics.UserChars += chars
			sum.UserSegments = append(sum.UserSegments, seg)
			appendNumbered(&user, len(sum.UserSegments), text)
		case core.RoleAssistant:
			sum.Metrics.AssistantMessages++
			sum.Metrics.AssistantChars += chars
			sum.AssistantSegments = append(sum.AssistantSegments, seg)
			appendNumbered(&assistant, len(sum.AssistantSegments), text)
		}

		if transcript.Len() > 0 {
			transcript.WriteString("\n\n")
		}
		fmt.Fprintf(&transcript, "[%s #%d @ %s]\n%s", strings.ToUpper(m.Role), i+1, formatTimestamp(m.Timestamp), text)
	}

	sum.UserQueries = user.String()
	sum.AssistantText = assistant.String()
	sum.FullConversation = transcript.String()
	return sum
}

// Segments returns user and assistant segments interleaved in message order.
func Segments(sum *core.ConversationSummary) []core.Segment {
	if sum == nil {
		return nil
	}
	out := make([]core.Segment, 0, len(sum.UserSegments)+len(sum.AssistantSegments))
	u, a := 0, 0
	for u < len(sum.UserSegments) || a < len(sum.AssistantSegments) {
		switch {
		case a >= len(sum.AssistantSegments):
			out = append(out, sum.UserSegments[u])
			u++
		case u >= len(sum.UserSegments):
			out = append(out, sum.AssistantSegments[a])
			a++
		case sum.UserSegments[u].MessageIndex < sum.AssistantSegments[a].MessageIndex:
			out = append(out, sum.UserSegments[u])
			u++
		default:
			out = append(out, sum.AssistantSegments[a])
			a++
		}
	}
	return out
}

func appendNumbered(b *strings.Builder, n int, text string) {
	if b.Len() > 0 {
		b.WriteByte('\n')
	}
	fmt.Fprintf(b, "%d. %s", n, text)
}

func formatTimestamp(ts time.Time) string {
	if ts.IsZero() {
		return "unknown"
	}
	return ts.UTC().Format(time.RFC3339)
}
