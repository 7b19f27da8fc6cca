package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"time"

	"github.com/sandevgo/tuskmem/internal/core"
)

const chunkFilePattern = "chunk-*.json"

var (
	chunkNameRe = regexp.MustCompile(`^chunk-(\d+)\.json$`)

	ErrChunkExists = errors.New("chunk already exists")
)

// Chunk is one cached capture. RawData is set for conversation chunks,
// Role/Content/Metadata for message chunks.
type Chunk struct {
	ChunkID        int                   `json:"chunkId"`
	ConversationID string                `json:"conversationId,omitempty"`
	MessageID      string                `json:"messageId,omitempty"`
	Timestamp      time.Time             `json:"timestamp"`
	CapturedAt     time.Time             `json:"capturedAt"`
	Source         string                `json:"source"`
	ContentHash    string                `json:"contentHash"`
	RawData        string                `json:"rawData,omitempty"`
	Role           string                `json:"role,omitempty"`
	Content        string                `json:"content,omitempty"`
	Metadata       *core.MessageMetadata `json:"metadata,omitempty"`
}

func (c Chunk) IsMessage() bool {
	return c.Role != ""
}

func (c Chunk) Message() core.Message {
	msg := core.Message{
		ID:             c.MessageID,
		ConversationID: c.ConversationID,
		Timestamp:      c.Timestamp,
		Role:           c.Role,
		Content:        c.Content,
	}
	if c.Metadata != nil {
		msg.Metadata = *c.Metadata
	}
	if msg.Metadata.Source == "" {
		msg.Metadata.Source = c.Source
	}
	return msg
}

func ChunkFileName(id int) string {
	return fmt.Sprintf("chunk-%d.json", id)
}

// ParseChunkNumber extracts N from a chunk-{N}.json file name.
func ParseChunkNumber(name string) (int, bool) {
	m := chunkNameRe.FindStringSubmatch(name)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// MaxChunkNumber returns the highest chunk number on disk, 0 when none.
func MaxChunkNumber(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to list cache dir: %w", err)
	}

	max := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if n, ok := ParseChunkNumber(e.Name()); ok && n > max {
			max = n
		}
	}
	return max, nil
}

// CountChunks returns the number of chunk files in dir.
func CountChunks(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to list cache dir: %w", err)
	}

	n := 0
	for _, e := range entries {
		if _, ok := ParseChunkNumber(e.Name()); ok && !e.IsDir() {
			n++
		}
	}
	return n, nil
}

// ReadChunks loads every chunk of dir ordered by chunk id. Files that are not
// valid chunks are skipped.
func ReadChunks(dir string) ([]Chunk, error) {
	paths, err := filepath.Glob(filepath.Join(dir, chunkFilePattern))
	if err != nil {
		return nil, fmt.Errorf("failed to glob chunks: %w", err)
	}

	chunks := make([]Chunk, 0, len(paths))
	for _, p := range paths {
		if _, ok := ParseChunkNumber(filepath.Base(p)); !ok {
			continue
		}
		c, err := readChunk(p)
		if err != nil {
			continue
		}
		chunks = append(chunks, c)
	}

	sort.Slice(chunks, func(i, j int) bool {
		return chunks[i].ChunkID < chunks[j].ChunkID
	})
	return chunks, nil
}

func readChunk(path string) (Chunk, error) {
	var c Chunk
	data, err := os.ReadFile(path)
	if err != nil {
		return c, err
	}
	if err := json.Unmarshal(data, &c); err != nil {
		return c, fmt.Errorf("failed to decode %s: %w", filepath.Base(path), err)
	}
	return c, nil
}

// writeChunk creates the chunk file exclusively so an existing chunk is never
// overwritten.
func writeChunk(dir string, c Chunk) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal chunk: %w", err)
	}

	path := filepath.Join(dir, ChunkFileName(c.ChunkID))
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if os.IsExist(err) {
			return ErrChunkExists
		}
		return fmt.Errorf("failed to create chunk file: %w", err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("failed to write chunk file: %w", err)
	}
	return f.Close()
}
