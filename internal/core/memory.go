package core

import (
	"context"
	"time"
)

type TransformOptions struct {
	ConversationID string
	SessionID      string
	SourceTag      string
}

// MemoryWriter is the boundary to the long-term store. Implementations must
// tolerate receiving the same conversation more than once.
type MemoryWriter interface {
	Transform(ctx context.Context, result *AnalysisResult, opts TransformOptions) error
}

// MemoryRecord is the shape every sink persists or publishes.
type MemoryRecord struct {
	ID             string          `json:"id"`
	ConversationID string          `json:"conversationId"`
	SessionID      string          `json:"sessionId"`
	Source         string          `json:"source"`
	ContentHash    string          `json:"contentHash"`
	AnalyzedAt     time.Time       `json:"analyzedAt"`
	Analysis       *AnalysisResult `json:"analysis"`
}

// SeenSet tracks conversation keys a poller has already handed to its sink.
type SeenSet interface {
	Has(ctx context.Context, key string) (bool, error)
	Add(ctx context.Context, key string) error
}
