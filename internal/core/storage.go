package core

import (
	"context"
	"time"
)

type MemoriesRepository interface {
	SaveMemory(ctx context.Context, mem StoredMemory) error
	GetMemory(ctx context.Context, conversationID string) (*StoredMemory, error)
	ListMemories(ctx context.Context, filter MemoryFilter) ([]StoredMemory, error)
	SearchMemories(ctx context.Context, query string, limit int) ([]StoredMemory, error)
	SourceStats(ctx context.Context) ([]SourceStat, error)
}

type SeenRepository interface {
	HasKey(ctx context.Context, key string) (bool, error)
	AddKey(ctx context.Context, key string) error
}

type MemoryFilter struct {
	Source         string
	ConversationID string
	Limit          int
}

type StoredMemory struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	SessionID      string    `json:"session_id"`
	Source         string    `json:"source"`
	ContentHash    string    `json:"content_hash"`
	MessageCount   int       `json:"message_count"`
	Payload        string    `json:"payload"`
	AnalyzedAt     time.Time `json:"analyzed_at"`
	CreatedAt      time.Time `json:"created_at"`
}

type SourceStat struct {
	Source       string `json:"source"`
	Memories     int    `json:"memories"`
	PayloadBytes int64  `json:"payload_bytes"`
}
