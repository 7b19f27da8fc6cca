// Package sources reads conversations from local assistant stores.
package sources

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/sandevgo/tuskmem/internal/config"
	"github.com/sandevgo/tuskmem/internal/core"
	"github.com/sandevgo/tuskmem/internal/parser"
	"github.com/sandevgo/tuskmem/pkg/log"
)

var (
	_ core.SourceReader  = (*Dir)(nil)
	_ core.SessionReader = (*Dir)(nil)
)

// Dir is a source whose conversations are files under one root directory.
type Dir struct {
	name     string
	root     string
	patterns []string
	project  bool
	chain    *parser.Chain
}

// NewClaudeCode reads ~/.claude/projects style trees: one folder per
// project, one JSONL transcript per session.
func NewClaudeCode(name, root string) *Dir {
	return &Dir{name: name, root: root, patterns: []string{"*/*.jsonl"}, project: true, chain: parser.NewDefaultChain()}
}

func NewGateway(name, root string) *Dir {
	return &Dir{name: name, root: root, patterns: []string{"*.jsonl", "*/*.jsonl"}, project: true, chain: parser.NewDefaultChain()}
}

// NewExports reads exported chats saved as loose files.
func NewExports(name, root string) *Dir {
	return &Dir{
		name:     name,
		root:     root,
		patterns: []string{"*.json", "*.jsonl", "*.txt", "*.md", "*.html", "*.htm"},
		chain:    parser.NewDefaultChain(),
	}
}

func FromConfig(cfg core.SourceConfig) (*Dir, error) {
	switch cfg.Kind {
	case config.SourceKindClaudeCode:
		return NewClaudeCode(cfg.Name, cfg.Path), nil
	case config.SourceKindGateway:
		return NewGateway(cfg.Name, cfg.Path), nil
	case config.SourceKindExport:
		return NewExports(cfg.Name, cfg.Path), nil
	default:
		return nil, fmt.Errorf("unknown source kind %q", cfg.Kind)
	}
}

// FromConfigs builds every configured source, skipping none.
func FromConfigs(cfgs []core.SourceConfig) ([]*Dir, error) {
	out := make([]*Dir, 0, len(cfgs))
	for _, cfg := range cfgs {
		d, err := FromConfig(cfg)
		if err != nil {
			return nil, fmt.Errorf("source %q: %w", cfg.Name, err)
		}
		out = append(out, d)
	}
	return out, nil
}

func (d *Dir) Name() string { return d.name }
func (d *Dir) Root() string { return d.root }

func (d *Dir) IsAvailable(ctx context.Context) bool {
	info, err := os.Stat(d.root)
	return err == nil && info.IsDir()
}

func (d *Dir) ReadAllConversations(ctx context.Context) ([]core.RawConversation, error) {
	logger := log.FromCtx(ctx)

	files, err := d.files(d.root)
	if err != nil {
		return nil, err
	}

	convs := make([]core.RawConversation, 0, len(files))
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rc, err := d.read(path)
		if err != nil {
			logger.Warn().Err(err).Str("file", path).Msg("skipping unreadable conversation file")
			continue
		}
		convs = append(convs, rc)
	}
	return convs, nil
}

// GetProjectSessions returns the messages of every session file in one
// project folder, oldest file first. path may be relative to the root.
func (d *Dir) GetProjectSessions(ctx context.Context, path string) ([]core.Message, error) {
	if !filepath.IsAbs(path) {
		path = filepath.Join(d.root, path)
	}
	matches, err := filepath.Glob(filepath.Join(path, "*.jsonl"))
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	files := make([]fileInfo, 0, len(matches))
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil {
			continue
		}
		files = append(files, fileInfo{path: m, info: info})
	}
	slices.SortStableFunc(files, func(a, b fileInfo) int {
		return a.info.ModTime().Compare(b.info.ModTime())
	})

	var msgs []core.Message
	for _, f := range files {
		data, err := os.ReadFile(f.path)
		if err != nil {
			log.FromCtx(ctx).Warn().Err(err).Str("file", f.path).Msg("skipping unreadable session")
			continue
		}
		parsed := d.chain.Parse(ctx, string(data), d.conversationID(f.path))
		for _, m := range parsed.Messages {
			m.Metadata.Source = d.name
			msgs = append(msgs, m)
		}
	}
	return msgs, nil
}

type fileInfo struct {
	path string
	info os.FileInfo
}

func (d *Dir) files(root string) ([]string, error) {
	var out []string
	for _, pattern := range d.patterns {
		matches, err := filepath.Glob(filepath.Join(root, pattern))
		if err != nil {
			return nil, fmt.Errorf("failed to list %s: %w", pattern, err)
		}
		out = append(out, matches...)
	}
	slices.Sort(out)
	return slices.Compact(out), nil
}

func (d *Dir) read(path string) (core.RawConversation, error) {
	info, err := os.Stat(path)
	if err != nil {
		return core.RawConversation{}, err
	}
	if info.IsDir() {
		return core.RawConversation{}, fmt.Errorf("%s is a directory", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return core.RawConversation{}, err
	}

	rc := core.RawConversation{
		ConversationID: d.conversationID(path),
		Source:         d.name,
		Timestamp:      info.ModTime().UTC(),
		LastModified:   info.ModTime().UTC(),
		RawData:        string(data),
	}
	if d.project {
		if rel, err := filepath.Rel(d.root, filepath.Dir(path)); err == nil && rel != "." {
			rc.WorkspaceID = rel
		}
	}
	return rc, nil
}

// conversationID is the file path relative to the root in slash form. Only
// the .jsonl extension of session transcripts is dropped, so exports that
// share a base name stay distinct.
func (d *Dir) conversationID(path string) string {
	rel, err := filepath.Rel(d.root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		rel = filepath.Base(path)
	}
	return strings.TrimSuffix(filepath.ToSlash(rel), ".jsonl")
}
