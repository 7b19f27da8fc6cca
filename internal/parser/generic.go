package parser

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/sandevgo/tuskmem/internal/core"
)

var roleLineRe = regexp.MustCompile(`(?i)^\s*(user|human|me|assistant|ai|claude|chatgpt|gpt|copilot|bot|model)\s*:\s?(.*)$`)

var roleAliases = map[string]string{
	"user":      core.RoleUser,
	"human":     core.RoleUser,
	"me":        core.RoleUser,
	"assistant": core.RoleAssistant,
	"ai":        core.RoleAssistant,
	"claude":    core.RoleAssistant,
	"chatgpt":   core.RoleAssistant,
	"gpt":       core.RoleAssistant,
	"copilot":   core.RoleAssistant,
	"bot":       core.RoleAssistant,
	"model":     core.RoleAssistant,
}

func normalizeRole(role string) (string, bool) {
	r, ok := roleAliases[strings.ToLower(strings.TrimSpace(role))]
	return r, ok
}

type genericMessage struct {
	ID        string          `json:"id"`
	Role      string          `json:"role"`
	Author    string          `json:"author"`
	Content   json.RawMessage `json:"content"`
	Text      string          `json:"text"`
	Timestamp string          `json:"timestamp"`
	CreatedAt string          `json:"created_at"`
}

type genericDocument struct {
	Messages []genericMessage `json:"messages"`
}

// Generic handles exported conversations: a JSON array of role-tagged
// objects, an object with a messages array, or "role: content" lines.
type Generic struct{}

func (p *Generic) Format() Format { return FormatGeneric }

func (p *Generic) Detect(raw string) bool {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return false
	}
	if msgs, err := decodeGenericJSON(trimmed); err == nil {
		return len(msgs) > 0
	}
	for _, line := range strings.Split(trimmed, "\n") {
		if roleLineRe.MatchString(line) {
			return true
		}
	}
	return false
}

func (p *Generic) Parse(raw, conversationID string) ([]core.Message, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, nil
	}

	if trimmed[0] == '[' || trimmed[0] == '{' {
		items, err := decodeGenericJSON(trimmed)
		if err == nil {
			return p.fromJSON(items, conversationID), nil
		}
		// Could still be a text transcript that starts with a bracket
		if !roleLineRe.MatchString(strings.SplitN(trimmed, "\n", 2)[0]) {
			return nil, fmt.Errorf("failed to decode json payload: %w", err)
		}
	}

	return p.fromLines(trimmed, conversationID), nil
}

func decodeGenericJSON(raw string) ([]genericMessage, error) {
	if strings.HasPrefix(raw, "[") {
		var items []genericMessage
		if err := json.Unmarshal([]byte(raw), &items); err != nil {
			return nil, err
		}
		return items, nil
	}
	if strings.HasPrefix(raw, "{") {
		var doc genericDocument
		if err := json.Unmarshal([]byte(raw), &doc); err != nil {
			return nil, err
		}
		if doc.Messages == nil {
			return nil, fmt.Errorf("object has no messages array")
		}
		return doc.Messages, nil
	}
	return nil, fmt.Errorf("not a json payload")
}

func (p *Generic) fromJSON(items []genericMessage, conversationID string) []core.Message {
	msgs := make([]core.Message, 0, len(items))
	for _, it := range items {
		roleName := it.Role
		if roleName == "" {
			roleName = it.Author
		}
		role, ok := normalizeRole(roleName)
		if !ok {
			continue
		}

		text, _ := blockText(it.Content)
		if text == "" {
			text = it.Text
		}
		if strings.TrimSpace(text) == "" {
			continue
		}

		msg := p.build(conversationID, it.ID, len(msgs), role, text)
		msg.Timestamp = parseTimestamp(it.Timestamp, it.CreatedAt)
		msgs = append(msgs, msg)
	}
	return msgs
}

// fromLines starts a message at each role label and folds the lines that
// follow into it.
func (p *Generic) fromLines(raw, conversationID string) []core.Message {
	type pending struct {
		role  string
		lines []string
	}
	var blocks []pending

	for _, line := range strings.Split(raw, "\n") {
		if m := roleLineRe.FindStringSubmatch(line); m != nil {
			role, _ := normalizeRole(m[1])
			blocks = append(blocks, pending{role: role, lines: []string{m[2]}})
			continue
		}
		if len(blocks) == 0 {
			continue
		}
		last := &blocks[len(blocks)-1]
		last.lines = append(last.lines, strings.TrimRight(line, "\r"))
	}

	msgs := make([]core.Message, 0, len(blocks))
	for _, b := range blocks {
		text := strings.TrimSpace(strings.Join(b.lines, "\n"))
		if text == "" {
			continue
		}
		msgs = append(msgs, p.build(conversationID, "", len(msgs), b.role, text))
	}
	return msgs
}

func (p *Generic) build(conversationID, id string, index int, role, text string) core.Message {
	rawLen := len(text)
	content, converted := normalizeHTML(text)
	msg := newMessage(FormatGeneric, conversationID, id, index, role, content)
	msg.Metadata.RawLength = rawLen
	if converted {
		msg.Metadata.MessageType = core.MessageTypeHTML
	}
	return msg
}

func parseTimestamp(values ...string) time.Time {
	for _, v := range values {
		if v == "" {
			continue
		}
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05", "2006-01-02T15:04:05"} {
			if ts, err := time.Parse(layout, v); err == nil {
				return ts
			}
		}
	}
	return time.Time{}
}
