package consolidate

import (
	"context"

	"github.com/sandevgo/tuskmem/internal/cache"
	"github.com/sandevgo/tuskmem/internal/core"
	"github.com/sandevgo/tuskmem/internal/parser"
)

// FromChunks turns one cache directory's chunks into a SourceSet. Message
// chunks are taken as they are; conversation chunks are parsed with chain
// and contribute nothing when their payload is not understood. A
// conversation cached both ways is taken from its message chunks only.
func FromChunks(ctx context.Context, source string, chunks []cache.Chunk, chain *parser.Chain) SourceSet {
	set := SourceSet{Source: source, Messages: []core.Message{}}

	hasMessages := make(map[string]bool)
	for _, c := range chunks {
		if c.IsMessage() && c.ConversationID != "" {
			hasMessages[c.ConversationID] = true
		}
	}

	for _, c := range chunks {
		if c.IsMessage() {
			set.Messages = append(set.Messages, c.Message())
			continue
		}
		if c.RawData == "" || hasMessages[c.ConversationID] {
			continue
		}
		parsed := chain.Parse(ctx, c.RawData, c.ConversationID)
		for _, m := range parsed.Messages {
			if m.Timestamp.IsZero() {
				m.Timestamp = c.Timestamp
			}
			set.Messages = append(set.Messages, m)
		}
	}
	return set
}
