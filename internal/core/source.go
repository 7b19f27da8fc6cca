package core

import "context"

// SourceReader adapts one platform's on-disk store.
type SourceReader interface {
	Name() string
	IsAvailable(ctx context.Context) bool
	ReadAllConversations(ctx context.Context) ([]RawConversation, error)
}

// SessionReader is implemented by session-scoped sources.
type SessionReader interface {
	GetProjectSessions(ctx context.Context, path string) ([]Message, error)
}
