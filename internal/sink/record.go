// Package sink holds the Memory Writer implementations: sqlite storage,
// NATS publishing, the markdown conversation log and their fan-out.
package sink

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sandevgo/tuskmem/internal/core"
)

// ToRecord builds the record every sink persists. Options win over the
// identifiers carried by the result.
func ToRecord(result *core.AnalysisResult, opts core.TransformOptions) (core.MemoryRecord, error) {
	if result == nil {
		return core.MemoryRecord{}, fmt.Errorf("nil analysis result")
	}

	hash, err := AnalysisHash(result)
	if err != nil {
		return core.MemoryRecord{}, err
	}

	rec := core.MemoryRecord{
		ID:             uuid.NewString(),
		ConversationID: firstNonEmpty(opts.ConversationID, result.ConversationID),
		SessionID:      opts.SessionID,
		Source:         firstNonEmpty(opts.SourceTag, result.Source),
		ContentHash:    hash,
		AnalyzedAt:     result.AnalyzedAt,
		Analysis:       result,
	}
	if rec.AnalyzedAt.IsZero() {
		rec.AnalyzedAt = time.Now().UTC()
	}
	return rec, nil
}

// AnalysisHash digests the analysis without its analyzed-at stamp, so the
// same conversation analysed twice hashes the same.
func AnalysisHash(result *core.AnalysisResult) (string, error) {
	c := *result
	c.AnalyzedAt = time.Time{}
	data, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("failed to marshal analysis: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
