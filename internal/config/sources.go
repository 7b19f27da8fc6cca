package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sandevgo/tuskmem/internal/core"
	"gopkg.in/yaml.v3"
)

const (
	SourceKindClaudeCode = "claude-code"
	SourceKindGateway    = "gateway"
	SourceKindExport     = "export"
)

type sourcesFile struct {
	Sources []core.SourceConfig `yaml:"sources"`
}

// DefaultSources is used when no sources.yaml exists.
func DefaultSources() []core.SourceConfig {
	home, _ := os.UserHomeDir()
	return []core.SourceConfig{
		{
			Name: "claude-code",
			Kind: SourceKindClaudeCode,
			Path: filepath.Join(home, ".claude", "projects"),
		},
	}
}

func LoadSources(path string) ([]core.SourceConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultSources(), nil
		}
		return nil, fmt.Errorf("failed to read sources file: %w", err)
	}

	var f sourcesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse sources file: %w", err)
	}

	seen := make(map[string]struct{}, len(f.Sources))
	for i, s := range f.Sources {
		if s.Name == "" {
			return nil, fmt.Errorf("source %d: name is required", i)
		}
		if _, dup := seen[s.Name]; dup {
			return nil, fmt.Errorf("source %q declared twice", s.Name)
		}
		seen[s.Name] = struct{}{}

		switch s.Kind {
		case SourceKindClaudeCode, SourceKindGateway, SourceKindExport:
		default:
			return nil, fmt.Errorf("source %q: unknown kind %q", s.Name, s.Kind)
		}
		f.Sources[i].Path = expandHome(s.Path)
	}

	return f.Sources, nil
}

func SaveSources(path string, sources []core.SourceConfig) error {
	data, err := yaml.Marshal(sourcesFile{Sources: sources})
	if err != nil {
		return fmt.Errorf("failed to marshal sources: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write sources file: %w", err)
	}
	return nil
}

func expandHome(path string) string {
	if len(path) < 2 || path[:2] != "~/" {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}
