package parser

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/sandevgo/tuskmem/internal/core"
)

type gwLine struct {
	Type      string    `json:"type"`
	ID        string    `json:"id"`
	ParentID  *string   `json:"parentId"`
	Timestamp string    `json:"timestamp"`
	Message   gwMessage `json:"message"`
}

type gwMessage struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

// Gateway parses gateway session logs: message events ordered by timestamp.
type Gateway struct{}

func (p *Gateway) Format() Format { return FormatGateway }

func (p *Gateway) Detect(raw string) bool {
	return sniff(raw, func(fields map[string]json.RawMessage) bool {
		var typ string
		if err := json.Unmarshal(fields["type"], &typ); err != nil || typ != "message" {
			return false
		}
		_, hasID := fields["id"]
		_, hasParent := fields["parentId"]
		_, hasMessage := fields["message"]
		return hasID && hasParent && hasMessage
	})
}

func (p *Gateway) Parse(raw, conversationID string) ([]core.Message, error) {
	type item struct {
		line gwLine
		text string
		ts   time.Time
	}
	var items []item

	scanner := newScanner(raw)
	for scanner.Scan() {
		var line gwLine
		if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
			continue
		}
		if line.Type != "message" {
			continue
		}
		if line.Message.Role != core.RoleUser && line.Message.Role != core.RoleAssistant {
			continue
		}

		text, isToolResult := blockText(line.Message.Content)
		if isToolResult || text == "" {
			continue
		}

		ts, _ := time.Parse(time.RFC3339Nano, line.Timestamp)
		items = append(items, item{line: line, text: text, ts: ts})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan session log: %w", err)
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].ts.Before(items[j].ts)
	})

	msgs := make([]core.Message, len(items))
	for i, it := range items {
		msgs[i] = newMessage(FormatGateway, conversationID, it.line.ID, i, it.line.Message.Role, it.text)
		msgs[i].Timestamp = it.ts
	}
	return msgs, nil
}
