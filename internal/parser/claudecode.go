package parser

import (
	"bufio"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sandevgo/tuskmem/internal/core"
)

const (
	maxLineSize = 10 * 1024 * 1024
	sniffLines  = 20
)

// ccLine is one line of a Claude Code session transcript.
type ccLine struct {
	Type       string    `json:"type"`
	UUID       string    `json:"uuid"`
	ParentUUID *string   `json:"parentUuid"`
	SessionID  string    `json:"sessionId"`
	Timestamp  string    `json:"timestamp"`
	Message    ccMessage `json:"message"`
}

type ccMessage struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// ClaudeCode parses Claude Code JSONL transcripts. Lines are linked through
// parentUuid and are emitted in chain order.
type ClaudeCode struct{}

func (p *ClaudeCode) Format() Format { return FormatClaudeCode }

func (p *ClaudeCode) Detect(raw string) bool {
	return sniff(raw, func(fields map[string]json.RawMessage) bool {
		_, hasUUID := fields["uuid"]
		_, hasParent := fields["parentUuid"]
		_, hasMessage := fields["message"]
		return hasUUID && hasParent && hasMessage
	})
}

func (p *ClaudeCode) Parse(raw, conversationID string) ([]core.Message, error) {
	byUUID := make(map[string]*ccLine)
	var order []string
	var roots []string
	children := make(map[string][]string)

	scanner := newScanner(raw)
	for scanner.Scan() {
		var line ccLine
		if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
			continue
		}
		if line.Type != core.RoleUser && line.Type != core.RoleAssistant {
			continue
		}
		if line.UUID == "" {
			continue
		}

		l := line
		byUUID[l.UUID] = &l
		order = append(order, l.UUID)

		if l.ParentUUID == nil || *l.ParentUUID == "" {
			roots = append(roots, l.UUID)
		} else {
			children[*l.ParentUUID] = append(children[*l.ParentUUID], l.UUID)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan transcript: %w", err)
	}

	ordered := chronological(walkChain(byUUID, order, roots, children))

	msgs := make([]core.Message, 0, len(ordered))
	for _, tl := range ordered {
		text, isToolResult := blockText(tl.line.Message.Content)
		if isToolResult || text == "" {
			continue
		}

		msg := newMessage(FormatClaudeCode, conversationID, tl.line.UUID, len(msgs), tl.line.Type, text)
		msg.Timestamp = tl.ts
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

type timedLine struct {
	line *ccLine
	ts   time.Time
	key  time.Time
}

// chronological stable-sorts chain order by timestamp. Branches (retried or
// edited replies share a parent) interleave by time. A line without a
// timestamp sorts with the line before it.
func chronological(lines []*ccLine) []timedLine {
	out := make([]timedLine, len(lines))
	var last time.Time
	for i, l := range lines {
		ts, _ := time.Parse(time.RFC3339Nano, l.Timestamp)
		if !ts.IsZero() {
			last = ts
		}
		out[i] = timedLine{line: l, ts: ts, key: last}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].key.Before(out[j].key)
	})
	return out
}

// walkChain visits every branch below each root depth first, siblings in
// file order. Lines whose parent was never seen are appended in file order.
func walkChain(byUUID map[string]*ccLine, order, roots []string, children map[string][]string) []*ccLine {
	visited := make(map[string]bool, len(byUUID))
	ordered := make([]*ccLine, 0, len(byUUID))

	var visit func(id string)
	visit = func(id string) {
		if visited[id] {
			return
		}
		line, ok := byUUID[id]
		if !ok {
			return
		}
		visited[id] = true
		ordered = append(ordered, line)
		for _, child := range children[id] {
			visit(child)
		}
	}
	for _, root := range roots {
		visit(root)
	}

	for _, id := range order {
		if !visited[id] {
			visited[id] = true
			ordered = append(ordered, byUUID[id])
		}
	}
	return ordered
}

// blockText returns the text of a string or block-array content, and whether
// the content is a tool result.
func blockText(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 {
		return "", false
	}

	var plain string
	if err := json.Unmarshal(raw, &plain); err == nil {
		return plain, false
	}

	var blocks []contentBlock
	if err := json.Unmarshal(raw, &blocks); err != nil {
		return "", false
	}

	var parts []string
	for _, b := range blocks {
		if b.Type == "tool_result" || b.Type == "toolResult" {
			return "", true
		}
		if b.Type == "text" && b.Text != "" {
			parts = append(parts, b.Text)
		}
	}
	return strings.Join(parts, "\n"), false
}

func newScanner(raw string) *bufio.Scanner {
	scanner := bufio.NewScanner(strings.NewReader(raw))
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return scanner
}

// sniff reports whether any of the first JSON-object lines satisfies match.
func sniff(raw string, match func(map[string]json.RawMessage) bool) bool {
	scanner := newScanner(raw)
	for checked := 0; checked < sniffLines && scanner.Scan(); {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		checked++
		if line[0] != '{' {
			continue
		}
		var fields map[string]json.RawMessage
		if err := json.Unmarshal([]byte(line), &fields); err != nil {
			continue
		}
		if match(fields) {
			return true
		}
	}
	return false
}
