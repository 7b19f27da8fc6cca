package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/sandevgo/tuskmem/internal/core"
	"github.com/sandevgo/tuskmem/pkg/log"
)

// numberingAttempts bounds retries when another writer grabbed our number.
const numberingAttempts = 5

type WriteStats struct {
	Source             string    `json:"source"`
	TotalConversations int       `json:"totalConversations"`
	TotalMessages      int       `json:"totalMessages"`
	NewChunksWritten   int       `json:"newChunksWritten"`
	ChunksSkipped      int       `json:"chunksSkipped"`
	Failed             int       `json:"failed"`
	CacheDir           string    `json:"cacheDir"`
	Timestamp          time.Time `json:"timestamp"`
}

// Writer persists one source's captures into a cache directory, at most once
// per distinct payload.
type Writer struct {
	source core.SourceReader
	dir    string
	now    func() time.Time
}

func NewWriter(source core.SourceReader, dir string) *Writer {
	return &Writer{
		source: source,
		dir:    dir,
		now:    time.Now,
	}
}

func (w *Writer) Dir() string {
	return w.dir
}

// ContentHash is a 32-bit polynomial rolling hash of the payload bytes. It
// only has to catch accidental duplicates.
func ContentHash(payload []byte) string {
	var h uint32
	for _, b := range payload {
		h = h*31 + uint32(b)
	}
	return fmt.Sprintf("%08x", h)
}

// Write captures every conversation the source currently exposes. An
// unavailable or unreadable source is zero work, not an error; only a cache
// directory that cannot be created fails the call.
func (w *Writer) Write(ctx context.Context) (*WriteStats, error) {
	logger := log.FromCtx(ctx)
	stats := w.newStats()

	if !w.source.IsAvailable(ctx) {
		logger.Debug().Str("source", w.source.Name()).Msg("source not available, nothing to cache")
		return stats, nil
	}

	convs, err := w.source.ReadAllConversations(ctx)
	if err != nil {
		logger.Warn().Err(err).Str("source", w.source.Name()).Msg("failed to read source")
		return stats, nil
	}
	return w.WriteConversations(ctx, convs)
}

// WriteConversations captures conversations that were already read from the
// source, so a caller that also analyses them reads the source only once.
func (w *Writer) WriteConversations(ctx context.Context, convs []core.RawConversation) (*WriteStats, error) {
	stats := w.newStats()
	stats.TotalConversations = len(convs)

	index, err := w.prepare(ctx)
	if err != nil {
		return stats, err
	}

	for _, conv := range convs {
		chunk := Chunk{
			ConversationID: conv.ConversationID,
			Timestamp:      conv.Timestamp,
			Source:         w.source.Name(),
			RawData:        conv.RawData,
			ContentHash:    ContentHash([]byte(conv.RawData)),
		}
		w.store(ctx, index, chunk, stats)
	}

	w.logStats(ctx, stats)
	return stats, nil
}

// WriteMessages captures message-level chunks, as produced by session-scoped
// sources.
func (w *Writer) WriteMessages(ctx context.Context, msgs []core.Message) (*WriteStats, error) {
	stats := w.newStats()
	stats.TotalMessages = len(msgs)

	convs := make(map[string]struct{})
	for _, m := range msgs {
		convs[m.ConversationID] = struct{}{}
	}
	stats.TotalConversations = len(convs)

	if len(msgs) == 0 {
		return stats, nil
	}

	index, err := w.prepare(ctx)
	if err != nil {
		return stats, err
	}

	for _, m := range msgs {
		meta := m.Metadata
		if meta.Source == "" {
			meta.Source = w.source.Name()
		}
		chunk := Chunk{
			ConversationID: m.ConversationID,
			MessageID:      m.ID,
			Timestamp:      m.Timestamp,
			Source:         w.source.Name(),
			Role:           m.Role,
			Content:        m.Content,
			Metadata:       &meta,
			ContentHash:    ContentHash(messagePayload(m)),
		}
		w.store(ctx, index, chunk, stats)
	}

	w.logStats(ctx, stats)
	return stats, nil
}

func (w *Writer) newStats() *WriteStats {
	return &WriteStats{
		Source:    w.source.Name(),
		CacheDir:  w.dir,
		Timestamp: w.now(),
	}
}

// prepare creates the cache directory and loads the hashes already on disk.
func (w *Writer) prepare(ctx context.Context) (map[string]int, error) {
	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache dir: %w", err)
	}

	existing, err := ReadChunks(w.dir)
	if err != nil {
		return nil, err
	}

	index := make(map[string]int, len(existing))
	for _, c := range existing {
		index[c.ContentHash] = c.ChunkID
	}
	log.FromCtx(ctx).Debug().Int("chunks", len(index)).Str("dir", w.dir).Msg("loaded cache index")
	return index, nil
}

func (w *Writer) store(ctx context.Context, index map[string]int, chunk Chunk, stats *WriteStats) {
	if _, ok := index[chunk.ContentHash]; ok {
		stats.ChunksSkipped++
		return
	}

	chunk.CapturedAt = w.now()
	id, err := w.persist(chunk)
	if err != nil {
		log.FromCtx(ctx).Error().Err(err).
			Str("conversation", chunk.ConversationID).
			Msg("failed to write cache chunk")
		stats.Failed++
		return
	}

	index[chunk.ContentHash] = id
	stats.NewChunksWritten++
}

// persist numbers the chunk from the current on-disk maximum right before
// writing it.
func (w *Writer) persist(chunk Chunk) (int, error) {
	for attempt := 0; attempt < numberingAttempts; attempt++ {
		max, err := MaxChunkNumber(w.dir)
		if err != nil {
			return 0, err
		}
		chunk.ChunkID = max + 1

		err = writeChunk(w.dir, chunk)
		if errors.Is(err, ErrChunkExists) {
			continue
		}
		if err != nil {
			return 0, err
		}
		return chunk.ChunkID, nil
	}
	return 0, fmt.Errorf("failed to allocate chunk number after %d attempts", numberingAttempts)
}

func (w *Writer) logStats(ctx context.Context, stats *WriteStats) {
	log.FromCtx(ctx).Info().
		Str("source", stats.Source).
		Int("written", stats.NewChunksWritten).
		Int("skipped", stats.ChunksSkipped).
		Int("failed", stats.Failed).
		Msg("cache write finished")
}

// messagePayload is the canonical byte form hashed for message chunks.
func messagePayload(m core.Message) []byte {
	payload, _ := json.Marshal(struct {
		ConversationID string    `json:"conversationId"`
		Role           string    `json:"role"`
		Content        string    `json:"content"`
		Timestamp      time.Time `json:"timestamp"`
	}{m.ConversationID, m.Role, m.Content, m.Timestamp})
	return payload
}
