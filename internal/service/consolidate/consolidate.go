// Package consolidate merges message sets captured by several sources into
// one deduplicated timeline.
package consolidate

import (
	"cmp"
	"crypto/sha256"
	"encoding/hex"
	"slices"

	"github.com/sandevgo/tuskmem/internal/core"
)

// SourceSet is the messages one source contributed.
type SourceSet struct {
	Source   string
	Messages []core.Message
}

type SourcedMessage struct {
	core.Message
	Source      string `json:"source"`
	ContentHash string `json:"contentHash"`
}

type Result struct {
	Messages          []SourcedMessage `json:"messages"`
	TotalInput        int              `json:"totalInput"`
	DeduplicatedCount int              `json:"deduplicatedCount"`
	ConflictCount     int              `json:"conflictCount"`
	SourceBreakdown   map[string]int   `json:"sourceBreakdown"`
}

// Hash is the sha256 of role and content. Timestamps and ids are left out
// so re-captures of the same exchange collide.
func Hash(m core.Message) string {
	sum := sha256.Sum256([]byte(m.Role + "\n" + m.Content))
	return hex.EncodeToString(sum[:])
}

// Consolidate keeps one message per content hash. On a collision the
// earlier timestamp wins; equal timestamps fall back to source and then
// message id, so the survivor is independent of input order. Output keeps
// the order in which each hash was first seen.
func Consolidate(sets ...SourceSet) *Result {
	res := &Result{SourceBreakdown: make(map[string]int, len(sets))}

	index := make(map[string]int)
	for _, set := range sets {
		res.SourceBreakdown[set.Source] += len(set.Messages)

		for _, m := range set.Messages {
			res.TotalInput++
			sm := SourcedMessage{Message: m, Source: set.Source, ContentHash: Hash(m)}
			if sm.Metadata.Source == "" {
				sm.Metadata.Source = set.Source
			}

			i, dup := index[sm.ContentHash]
			if !dup {
				index[sm.ContentHash] = len(res.Messages)
				res.Messages = append(res.Messages, sm)
				continue
			}

			res.ConflictCount++
			if earlier(sm, res.Messages[i]) {
				res.Messages[i] = sm
			}
		}
	}

	if res.Messages == nil {
		res.Messages = []SourcedMessage{}
	}
	res.DeduplicatedCount = res.TotalInput - len(res.Messages)
	return res
}

func earlier(a, b SourcedMessage) bool {
	return compare(a, b) < 0
}

func compare(a, b SourcedMessage) int {
	if c := a.Timestamp.Compare(b.Timestamp); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Source, b.Source); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

// GroupByConversation buckets messages by conversation id, preserving order
// inside each bucket.
func GroupByConversation(msgs []SourcedMessage) map[string][]SourcedMessage {
	out := make(map[string][]SourcedMessage)
	for _, m := range msgs {
		out[m.ConversationID] = append(out[m.ConversationID], m)
	}
	return out
}

func FilterBySource(msgs []SourcedMessage, source string) []SourcedMessage {
	return filter(msgs, func(m SourcedMessage) bool { return m.Source == source })
}

func FilterByConversation(msgs []SourcedMessage, conversationID string) []SourcedMessage {
	return filter(msgs, func(m SourcedMessage) bool { return m.ConversationID == conversationID })
}

// SortByTimestamp returns a sorted copy.
func SortByTimestamp(msgs []SourcedMessage) []SourcedMessage {
	out := slices.Clone(msgs)
	slices.SortStableFunc(out, compare)
	return out
}

func filter(msgs []SourcedMessage, keep func(SourcedMessage) bool) []SourcedMessage {
	out := make([]SourcedMessage, 0)
	for _, m := range msgs {
		if keep(m) {
			out = append(out, m)
		}
	}
	return out
}
