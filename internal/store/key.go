// Package store is the day-partitioned, crash-safe record store.
package store

import (
	"fmt"
	"regexp"
	"strconv"

	"ArxivDigest/internal/domain"
)

// Category names a sub-partition of a day.
type Category string

const (
	CategoryRaw       Category = "raw"
	CategorySummaries Category = "summaries"
	CategoryResponses Category = "responses"
	CategoryState     Category = "state"
	CategoryPrompts   Category = "prompts"
)

// Partition addresses one directory of records. The state partition is
// global and has an empty Day.
type Partition struct {
	Day      string
	Category Category
}

// IndexOverall marks the day-wide record of a partition that otherwise
// holds per-chunk records.
const IndexOverall = -1

// Key identifies one record: a partition plus a 1-based chunk index,
// IndexOverall, or 0 for the partition's singleton record.
type Key struct {
	Partition
	Index int
}

func SnapshotKey(day string) Key { return Key{Partition: Partition{Day: day, Category: CategoryRaw}} }

func ChunkKey(day string, index int) Key {
	return Key{Partition: Partition{Day: day, Category: CategorySummaries}, Index: index}
}

func OverallKey(day string) Key {
	return Key{Partition: Partition{Day: day, Category: CategorySummaries}, Index: IndexOverall}
}

func ResponseKey(day string, index int) Key {
	return Key{Partition: Partition{Day: day, Category: CategoryResponses}, Index: index}
}

func OverallResponseKey(day string) Key {
	return Key{Partition: Partition{Day: day, Category: CategoryResponses}, Index: IndexOverall}
}

func PromptKey(day string, index int) Key {
	return Key{Partition: Partition{Day: day, Category: CategoryPrompts}, Index: index}
}

func StateKey() Key { return Key{Partition: Partition{Category: CategoryState}} }

// IsOverall reports whether the key is the day-wide record.
func (k Key) IsOverall() bool { return k.Index == IndexOverall }

// IsChunk reports whether the key addresses a numbered chunk.
func (k Key) IsChunk() bool { return k.Index > 0 }

func (k Key) String() string {
	name, err := k.filename()
	if err != nil {
		return fmt.Sprintf("invalid(%s/%s/%d)", k.Day, k.Category, k.Index)
	}
	if k.Day == "" {
		return string(k.Category) + "/" + name
	}
	return k.Day + "/" + string(k.Category) + "/" + name
}

type layout struct {
	single  string
	part    string
	overall string
}

var layouts = map[Category]layout{
	CategoryRaw:       {single: "papers.jsonl"},
	CategorySummaries: {part: "summary_part%02d.json", overall: "summary_overall.json"},
	CategoryResponses: {part: "response_part%02d.txt", overall: "response_overall.txt"},
	CategoryPrompts:   {part: "prompt_part%02d.txt"},
	CategoryState:     {single: "state.json"},
}

func (p Partition) validate() error {
	if _, ok := layouts[p.Category]; !ok {
		return fmt.Errorf("%w: unknown category %q", domain.ErrInvalidKey, p.Category)
	}
	if p.Category == CategoryState {
		if p.Day != "" {
			return fmt.Errorf("%w: state partition is global", domain.ErrInvalidKey)
		}
		return nil
	}
	if _, err := domain.ParseDay(p.Day); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidKey, err)
	}
	return nil
}

func (k Key) filename() (string, error) {
	if err := k.Partition.validate(); err != nil {
		return "", err
	}
	l := layouts[k.Category]
	switch {
	case k.Index == 0 && l.single != "":
		return l.single, nil
	case k.Index > 0 && l.part != "":
		return fmt.Sprintf(l.part, k.Index), nil
	case k.Index == IndexOverall && l.overall != "":
		return l.overall, nil
	}
	return "", fmt.Errorf("%w: %s does not hold index %d", domain.ErrInvalidKey, k.Category, k.Index)
}

var partPattern = regexp.MustCompile(`^[a-z]+_part(\d+)\.[a-z]+$`)

// keyFromFilename is the inverse of filename for records written by this package.
func keyFromFilename(p Partition, name string) (Key, bool) {
	l, ok := layouts[p.Category]
	if !ok {
		return Key{}, false
	}
	switch {
	case l.single != "" && name == l.single:
		return Key{Partition: p}, true
	case l.overall != "" && name == l.overall:
		return Key{Partition: p, Index: IndexOverall}, true
	}
	if l.part == "" {
		return Key{}, false
	}
	m := partPattern.FindStringSubmatch(name)
	if m == nil {
		return Key{}, false
	}
	index, err := strconv.Atoi(m[1])
	if err != nil || index <= 0 {
		return Key{}, false
	}
	key := Key{Partition: p, Index: index}
	if want, err := key.filename(); err != nil || want != name {
		return Key{}, false
	}
	return key, true
}
