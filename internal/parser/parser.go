package parser

import (
	"context"
	"fmt"
	"strings"

	"github.com/sandevgo/tuskmem/internal/core"
	"github.com/sandevgo/tuskmem/pkg/log"
)

type Format string

const (
	FormatClaudeCode Format = "claude-code"
	FormatGateway    Format = "gateway"
	FormatGeneric    Format = "generic"
	FormatUnknown    Format = "unknown"
)

// Parser turns one raw payload shape into ordered messages.
type Parser interface {
	Format() Format
	Detect(raw string) bool
	Parse(raw, conversationID string) ([]core.Message, error)
}

// Parsed is the outcome of a chain run. It never carries an error: when
// parsing fails Messages is empty and Degraded says why.
type Parsed struct {
	Format   Format
	Messages []core.Message
	Degraded string
}

func (p Parsed) Empty() bool {
	return len(p.Messages) == 0
}

// Chain tries platform parsers first and the generic parser last.
type Chain struct {
	parsers []Parser
}

func NewChain(parsers ...Parser) *Chain {
	return &Chain{parsers: parsers}
}

func NewDefaultChain() *Chain {
	return NewChain(&ClaudeCode{}, &Gateway{}, &Generic{})
}

var defaultChain = NewDefaultChain()

// DetectSource sniffs the payload shape with the default parsers.
func DetectSource(raw string) Format {
	return defaultChain.Detect(raw)
}

func (c *Chain) Detect(raw string) Format {
	if strings.TrimSpace(raw) == "" {
		return FormatUnknown
	}
	for _, p := range c.parsers {
		if p.Detect(raw) {
			return p.Format()
		}
	}
	return FormatUnknown
}

func (c *Chain) Parse(ctx context.Context, raw, conversationID string) (parsed Parsed) {
	logger := log.FromCtx(ctx)
	parsed.Format = c.Detect(raw)

	p := c.parserFor(parsed.Format)
	if p == nil {
		parsed.Degraded = "no parser for payload"
		return parsed
	}

	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Str("conversation", conversationID).Msg("parser panicked")
			parsed.Messages = nil
			parsed.Degraded = fmt.Sprintf("parser panic: %v", r)
		}
	}()

	msgs, err := p.Parse(raw, conversationID)
	if err != nil {
		logger.Debug().Err(err).Str("format", string(parsed.Format)).Str("conversation", conversationID).Msg("parse failed")
		parsed.Degraded = err.Error()
		return parsed
	}
	if len(msgs) == 0 {
		parsed.Degraded = "no messages in payload"
	}
	parsed.Messages = msgs
	return parsed
}

// parserFor falls back to the generic parser for unknown payloads.
func (c *Chain) parserFor(format Format) Parser {
	var generic Parser
	for _, p := range c.parsers {
		if p.Format() == format {
			return p
		}
		if p.Format() == FormatGeneric {
			generic = p
		}
	}
	return generic
}

func messageID(conversationID string, index int) string {
	return fmt.Sprintf("%s-%d", conversationID, index)
}

func classify(role, content string) string {
	switch {
	case strings.Contains(content, "```"):
		return core.MessageTypeCode
	case role == core.RoleUser && strings.HasSuffix(strings.TrimSpace(content), "?"):
		return core.MessageTypeQuery
	default:
		return core.MessageTypeText
	}
}

func newMessage(format Format, conversationID, id string, index int, role, content string) core.Message {
	if id == "" {
		id = messageID(conversationID, index)
	}
	return core.Message{
		ID:             id,
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		Metadata: core.MessageMetadata{
			ParsedBy:    string(format),
			RawLength:   len(content),
			MessageType: classify(role, content),
		},
	}
}
