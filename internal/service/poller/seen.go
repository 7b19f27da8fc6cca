package poller

import (
	"context"
	"slices"
	"sync"

	"github.com/sandevgo/tuskmem/internal/core"
)

// MemorySeen is the process-lifetime seen set.
type MemorySeen struct {
	mu   sync.RWMutex
	keys map[string]struct{}
}

func NewMemorySeen() *MemorySeen {
	return &MemorySeen{keys: make(map[string]struct{})}
}

func (s *MemorySeen) Has(ctx context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.keys[key]
	return ok, nil
}

func (s *MemorySeen) Add(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[key] = struct{}{}
	return nil
}

// Keys returns the sorted keys.
func (s *MemorySeen) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.keys))
	for k := range s.keys {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

// RepoSeen keeps seen keys in a SeenRepository so restarts skip the
// re-processing pass.
type RepoSeen struct {
	repo core.SeenRepository
}

func NewRepoSeen(repo core.SeenRepository) *RepoSeen {
	return &RepoSeen{repo: repo}
}

func (s *RepoSeen) Has(ctx context.Context, key string) (bool, error) {
	return s.repo.HasKey(ctx, key)
}

func (s *RepoSeen) Add(ctx context.Context, key string) error {
	return s.repo.AddKey(ctx, key)
}
