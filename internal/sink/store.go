package sink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sandevgo/tuskmem/internal/core"
	"github.com/sandevgo/tuskmem/internal/storage/sqlite"
)

// Store writes memories to a MemoriesRepository. An analysis it already
// holds is accepted silently.
type Store struct {
	repo core.MemoriesRepository
}

func NewStore(repo core.MemoriesRepository) *Store {
	return &Store{repo: repo}
}

func (s *Store) Name() string { return "sqlite" }

func (s *Store) Transform(ctx context.Context, result *core.AnalysisResult, opts core.TransformOptions) error {
	rec, err := ToRecord(result, opts)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(rec.Analysis)
	if err != nil {
		return fmt.Errorf("failed to marshal analysis: %w", err)
	}

	err = s.repo.SaveMemory(ctx, core.StoredMemory{
		ID:             rec.ID,
		ConversationID: rec.ConversationID,
		SessionID:      rec.SessionID,
		Source:         rec.Source,
		ContentHash:    rec.ContentHash,
		MessageCount:   rec.Analysis.MessageCount,
		Payload:        string(payload),
		AnalyzedAt:     rec.AnalyzedAt,
	})
	if errors.Is(err, sqlite.ErrDuplicate) {
		return nil
	}
	return err
}

// DecodeAnalysis unpacks a stored payload.
func DecodeAnalysis(mem core.StoredMemory) (*core.AnalysisResult, error) {
	var result core.AnalysisResult
	if err := json.Unmarshal([]byte(mem.Payload), &result); err != nil {
		return nil, fmt.Errorf("failed to decode memory %s: %w", mem.ID, err)
	}
	return &result, nil
}
