// Package stats reports what the memory store and the capture cache hold.
package stats

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/sandevgo/tuskmem/internal/cache"
	"github.com/sandevgo/tuskmem/internal/core"
	"github.com/sandevgo/tuskmem/pkg/tokens"
)

// scanLimit bounds how many memories per source are tokenized.
const scanLimit = 100000

type SourceReport struct {
	Source        string  `json:"source"`
	Memories      int     `json:"memories"`
	Tokens        int     `json:"tokens"`
	Bytes         int64   `json:"bytes"`
	TokensPerByte float64 `json:"tokensPerByte"`
}

type CacheReport struct {
	Dir    string `json:"dir"`
	Chunks int    `json:"chunks"`
}

type Report struct {
	Sources     []SourceReport `json:"sources"`
	Total       SourceReport   `json:"total"`
	Cache       []CacheReport  `json:"cache"`
	CacheChunks int            `json:"cacheChunks"`
	ExactTokens bool           `json:"exactTokens"`
}

// Collect summarises the store per source and counts chunks in every cache
// directory directly below cacheDir.
func Collect(ctx context.Context, repo core.MemoriesRepository, cacheDir string) (*Report, error) {
	sources, err := repo.SourceStats(ctx)
	if err != nil {
		return nil, err
	}

	report := &Report{
		Sources:     make([]SourceReport, 0, len(sources)),
		Cache:       []CacheReport{},
		Total:       SourceReport{Source: "total"},
		ExactTokens: tokens.Exact(),
	}

	for _, s := range sources {
		mems, err := repo.ListMemories(ctx, core.MemoryFilter{Source: s.Source, Limit: scanLimit})
		if err != nil {
			return nil, fmt.Errorf("failed to list %s memories: %w", s.Source, err)
		}
		sr := SourceReport{Source: s.Source, Memories: s.Memories, Bytes: s.PayloadBytes}
		for _, m := range mems {
			sr.Tokens += tokens.Count(m.Payload)
		}
		sr.TokensPerByte = tokens.PerByte(sr.Tokens, sr.Bytes)
		report.Sources = append(report.Sources, sr)

		report.Total.Memories += sr.Memories
		report.Total.Tokens += sr.Tokens
		report.Total.Bytes += sr.Bytes
	}
	report.Total.TokensPerByte = tokens.PerByte(report.Total.Tokens, report.Total.Bytes)

	caches, err := cacheReports(cacheDir)
	if err != nil {
		return nil, err
	}
	report.Cache = caches
	for _, c := range caches {
		report.CacheChunks += c.Chunks
	}
	return report, nil
}

func cacheReports(cacheDir string) ([]CacheReport, error) {
	entries, err := os.ReadDir(cacheDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []CacheReport{}, nil
		}
		return nil, fmt.Errorf("failed to list cache dir: %w", err)
	}

	out := []CacheReport{}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		dir := filepath.Join(cacheDir, e.Name())
		n, err := cache.CountChunks(dir)
		if err != nil {
			return nil, err
		}
		out = append(out, CacheReport{Dir: dir, Chunks: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Dir < out[j].Dir })
	return out, nil
}
