package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/sandevgo/tuskmem/internal/core"
	"github.com/sandevgo/tuskmem/pkg/log"
)

const (
	defaultListLimit = 50
	memoryColumns    = `id, conversation_id, session_id, source, content_hash, message_count, payload, analyzed_at, created_at`
)

type MemoriesRepo struct {
	db *sql.DB
}

func NewMemoriesRepo(db *sql.DB) *MemoriesRepo {
	return &MemoriesRepo{db: db}
}

// SaveMemory returns ErrDuplicate when the same analysis of a conversation
// is already stored.
func (r *MemoriesRepo) SaveMemory(ctx context.Context, mem core.StoredMemory) error {
	query := `INSERT INTO memories (id, conversation_id, session_id, source, content_hash, message_count, payload, analyzed_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		mem.ID, mem.ConversationID, mem.SessionID, mem.Source, mem.ContentHash, mem.MessageCount, mem.Payload, mem.AnalyzedAt.UTC())
	if err != nil {
		if isDuplicateError(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to insert memory: %w", err)
	}

	log.FromCtx(ctx).Debug().Str("conversation", mem.ConversationID).Str("source", mem.Source).Msg("memory stored")
	return nil
}

// GetMemory returns the latest analysis of a conversation, or nil.
func (r *MemoriesRepo) GetMemory(ctx context.Context, conversationID string) (*core.StoredMemory, error) {
	query := `SELECT ` + memoryColumns + ` FROM memories WHERE conversation_id = ? ORDER BY analyzed_at DESC, created_at DESC LIMIT 1`
	row := r.db.QueryRowContext(ctx, query, conversationID)

	mem, err := scanMemory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get memory: %w", err)
	}
	return &mem, nil
}

func (r *MemoriesRepo) ListMemories(ctx context.Context, filter core.MemoryFilter) ([]core.StoredMemory, error) {
	var (
		where []string
		args  []any
	)
	if filter.Source != "" {
		where = append(where, "source = ?")
		args = append(args, filter.Source)
	}
	if filter.ConversationID != "" {
		where = append(where, "conversation_id = ?")
		args = append(args, filter.ConversationID)
	}

	query := `SELECT ` + memoryColumns + ` FROM memories`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY analyzed_at DESC, created_at DESC LIMIT ?`
	args = append(args, limitOrDefault(filter.Limit))

	return r.query(ctx, query, args...)
}

// SearchMemories matches the query as a substring of the stored analysis.
func (r *MemoriesRepo) SearchMemories(ctx context.Context, q string, limit int) ([]core.StoredMemory, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return []core.StoredMemory{}, nil
	}
	query := `SELECT ` + memoryColumns + ` FROM memories WHERE payload LIKE ? ESCAPE '\' ORDER BY analyzed_at DESC LIMIT ?`
	return r.query(ctx, query, "%"+escapeLike(q)+"%", limitOrDefault(limit))
}

func (r *MemoriesRepo) SourceStats(ctx context.Context) ([]core.SourceStat, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT source, COUNT(*), COALESCE(SUM(LENGTH(payload)), 0) FROM memories GROUP BY source ORDER BY source`)
	if err != nil {
		return nil, fmt.Errorf("failed to query source stats: %w", err)
	}
	defer rows.Close()

	stats := make([]core.SourceStat, 0)
	for rows.Next() {
		var s core.SourceStat
		if err := rows.Scan(&s.Source, &s.Memories, &s.PayloadBytes); err != nil {
			return nil, fmt.Errorf("failed to scan source stat: %w", err)
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

func (r *MemoriesRepo) query(ctx context.Context, query string, args ...any) ([]core.StoredMemory, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query memories: %w", err)
	}
	defer rows.Close()

	memories := make([]core.StoredMemory, 0)
	for rows.Next() {
		mem, err := scanMemory(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan memory: %w", err)
		}
		memories = append(memories, mem)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return memories, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMemory(s scanner) (core.StoredMemory, error) {
	var mem core.StoredMemory
	err := s.Scan(&mem.ID, &mem.ConversationID, &mem.SessionID, &mem.Source, &mem.ContentHash,
		&mem.MessageCount, &mem.Payload, &mem.AnalyzedAt, &mem.CreatedAt)
	return mem, err
}

func limitOrDefault(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	return limit
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
