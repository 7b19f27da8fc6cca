package sink

import (
	"fmt"
	"os"
	"regexp"
	"strings"
)

var chatHeaderLineRe = regexp.MustCompile(`^## Chat (\S+) - (\d{4}-\d{2}-\d{2}) - (.+)$`)

type DedupeStats struct {
	OriginalLines int      `json:"originalLines"`
	FinalLines    int      `json:"finalLines"`
	RemovedLines  int      `json:"removedLines"`
	Conversations int      `json:"conversations"`
	Removed       []string `json:"removed"`
	BackupPath    string   `json:"backupPath"`
}

// DedupeLog drops repeated chat sections from a conversation log, keeping
// the first (newest) occurrence of each conversation id and date. The
// original file is kept next to it with a .backup suffix.
func DedupeLog(path string) (*DedupeStats, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read conversation log: %w", err)
	}

	lines := strings.Split(string(data), "\n")
	seen := make(map[string]struct{})
	kept := make([]string, 0, len(lines))
	stats := &DedupeStats{Removed: []string{}}
	skipping := false

	for _, line := range lines {
		if m := chatHeaderLineRe.FindStringSubmatch(line); m != nil {
			key := m[1] + "-" + m[2]
			if _, dup := seen[key]; dup {
				stats.Removed = append(stats.Removed, key)
				skipping = true
				continue
			}
			seen[key] = struct{}{}
			skipping = false
		} else if skipping && strings.HasPrefix(line, "## ") {
			skipping = false
		}

		if !skipping {
			kept = append(kept, line)
		}
	}

	stats.BackupPath = path + ".backup"
	if err := os.Rename(path, stats.BackupPath); err != nil {
		return nil, fmt.Errorf("failed to create backup: %w", err)
	}
	if err := os.WriteFile(path, []byte(strings.Join(kept, "\n")), 0644); err != nil {
		return nil, fmt.Errorf("failed to write deduplicated log: %w", err)
	}

	stats.OriginalLines = len(lines)
	stats.FinalLines = len(kept)
	stats.RemovedLines = stats.OriginalLines - stats.FinalLines
	stats.Conversations = len(seen)
	return stats, nil
}
