package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sandevgo/tuskmem/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSources_MissingFileUsesDefault(t *testing.T) {
	sources, err := LoadSources(filepath.Join(t.TempDir(), "sources.yaml"))
	require.NoError(t, err)
	require.Len(t, sources, 1)
	assert.Equal(t, SourceKindClaudeCode, sources[0].Kind)
}

func TestLoadSources_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sources.yaml")
	want := []core.SourceConfig{
		{Name: "desktop", Kind: SourceKindClaudeCode, Path: "/data/claude"},
		{Name: "gw", Kind: SourceKindGateway, Path: "/data/gw"},
	}
	require.NoError(t, SaveSources(path, want))

	got, err := LoadSources(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestLoadSources_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"unknown kind", "sources:\n  - name: a\n    kind: leveldb\n    path: /x\n"},
		{"missing name", "sources:\n  - kind: gateway\n    path: /x\n"},
		{"duplicate", "sources:\n  - name: a\n    kind: gateway\n  - name: a\n    kind: export\n"},
		{"bad yaml", "sources: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "sources.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0644))

			_, err := LoadSources(path)
			assert.Error(t, err)
		})
	}
}

func TestLoadSources_ExpandsHome(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "sources.yaml")
	content := "sources:\n  - name: web\n    kind: export\n    path: ~/exports\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	got, err := LoadSources(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "exports"), got[0].Path)
}
