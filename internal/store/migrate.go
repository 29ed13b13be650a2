package store

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

var (
	legacyDatePattern = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)
	legacyPartPattern = regexp.MustCompile(`part(\d+)`)
)

// Move records one relocated legacy file.
type Move struct {
	From string
	To   Key
}

type legacyRule struct {
	dir     string
	prefix  string
	suffix  string
	resolve func(day, name string) (Key, bool)
}

var legacyRules = []legacyRule{
	{
		dir: "raw", prefix: "papers_", suffix: ".jsonl",
		resolve: func(day, _ string) (Key, bool) { return SnapshotKey(day), true },
	},
	{
		dir: "summaries", prefix: "summary_", suffix: ".json",
		resolve: func(day, name string) (Key, bool) {
			if strings.Contains(name, "overall") {
				return OverallKey(day), true
			}
			return legacyPart(name, func(i int) Key { return ChunkKey(day, i) })
		},
	},
	{
		dir: "responses", prefix: "response_",
		resolve: func(day, name string) (Key, bool) {
			if strings.Contains(name, "overall") {
				return OverallResponseKey(day), true
			}
			return legacyPart(name, func(i int) Key { return ResponseKey(day, i) })
		},
	},
	{
		dir: "prompts", prefix: "prompt_",
		resolve: func(day, name string) (Key, bool) {
			return legacyPart(name, func(i int) Key { return PromptKey(day, i) })
		},
	},
}

func legacyPart(name string, build func(int) Key) (Key, bool) {
	m := legacyPartPattern.FindStringSubmatch(name)
	if m == nil {
		return Key{}, false
	}
	index, err := strconv.Atoi(m[1])
	if err != nil || index <= 0 {
		return Key{}, false
	}
	return build(index), true
}

// MigrateLegacy relocates files of the flat pre-partitioning layout
// (<root>/raw/papers_<day>.jsonl and friends) into day partitions using the
// date embedded in each filename. Destinations that already exist are left
// alone, so a second invocation is a no-op.
func (f *FS) MigrateLegacy() ([]Move, error) {
	var moved []Move
	for _, rule := range legacyRules {
		dir := filepath.Join(f.root, rule.dir)
		entries, err := os.ReadDir(dir)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return moved, fmt.Errorf("store: read legacy %s: %w", rule.dir, err)
		}

		for _, entry := range entries {
			name := entry.Name()
			if entry.IsDir() || !strings.HasPrefix(name, rule.prefix) || !strings.HasSuffix(name, rule.suffix) {
				continue
			}
			day := legacyDatePattern.FindString(name)
			if day == "" {
				continue
			}
			key, ok := rule.resolve(day, name)
			if !ok {
				continue
			}
			target, err := f.Path(key)
			if err != nil {
				continue
			}
			if _, err := os.Stat(target); err == nil {
				continue
			}
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return moved, fmt.Errorf("store: mkdir for %s: %w", key, err)
			}
			from := filepath.Join(dir, name)
			if err := os.Rename(from, target); err != nil {
				return moved, fmt.Errorf("store: move %s: %w", name, err)
			}
			moved = append(moved, Move{From: from, To: key})
		}
	}
	return moved, nil
}
