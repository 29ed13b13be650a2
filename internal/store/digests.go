package store

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"

	"ArxivDigest/internal/domain"
)

// Digests is the typed repository over FS used by the pipeline.
type Digests struct {
	fs *FS
}

// NewDigests wraps an FS store.
func NewDigests(fs *FS) *Digests {
	return &Digests{fs: fs}
}

// FS exposes the underlying record store.
func (d *Digests) FS() *FS {
	return d.fs
}

// LoadSnapshot returns the raw items recorded for day. ok is false when
// no snapshot has been written yet.
func (d *Digests) LoadSnapshot(day string) (items []domain.Item, ok bool, err error) {
	key := SnapshotKey(day)
	data, ok, err := d.fs.Read(key)
	if err != nil || !ok {
		return nil, ok, err
	}

	items = []domain.Item{}
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		var item domain.Item
		if err := json.Unmarshal(raw, &item); err != nil {
			return nil, true, fmt.Errorf("%w: %s line %d: %v", domain.ErrCorruptRecord, key, line, err)
		}
		items = append(items, item)
	}
	if err := scanner.Err(); err != nil {
		return nil, true, fmt.Errorf("%w: %s: %v", domain.ErrCorruptRecord, key, err)
	}
	return items, true, nil
}

// SaveSnapshot writes items as JSON lines.
func (d *Digests) SaveSnapshot(day string, items []domain.Item) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	for _, item := range items {
		if err := enc.Encode(item); err != nil {
			return fmt.Errorf("encode item %s: %w", item.ID, err)
		}
	}
	return d.fs.Write(SnapshotKey(day), buf.Bytes())
}

// LoadChunks returns every persisted chunk summary of day keyed by index.
func (d *Digests) LoadChunks(day string) (map[int]domain.DigestContent, error) {
	keys, err := d.fs.ListKeys(Partition{Day: day, Category: CategorySummaries})
	if err != nil {
		return nil, err
	}

	chunks := make(map[int]domain.DigestContent, len(keys))
	for _, key := range keys {
		if !key.IsChunk() {
			continue
		}
		var record domain.ChunkSummary
		ok, err := d.readJSON(key, &record)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		if record.ChunkIndex != 0 && record.ChunkIndex != key.Index {
			return nil, fmt.Errorf("%w: %s holds chunk_index %d", domain.ErrCorruptRecord, key, record.ChunkIndex)
		}
		chunks[key.Index] = record.Content.Normalize()
	}
	return chunks, nil
}

// SaveChunk persists a chunk summary under its (day, index) key.
func (d *Digests) SaveChunk(chunk domain.ChunkSummary) error {
	if chunk.ChunkIndex <= 0 {
		return fmt.Errorf("%w: chunk index %d", domain.ErrInvalidKey, chunk.ChunkIndex)
	}
	return d.writeJSON(ChunkKey(chunk.Day, chunk.ChunkIndex), chunk)
}

// SaveResponse keeps the raw model output of a chunk for auditing.
func (d *Digests) SaveResponse(day string, index int, raw string) error {
	return d.fs.Write(ResponseKey(day, index), []byte(raw))
}

// LoadOverall returns the overall summary of day, or nil when absent.
func (d *Digests) LoadOverall(day string) (*domain.DigestContent, error) {
	var record domain.OverallSummary
	ok, err := d.readJSON(OverallKey(day), &record)
	if err != nil || !ok {
		return nil, err
	}
	content := record.Content.Normalize()
	return &content, nil
}

// SaveOverall persists the overall summary of day.
func (d *Digests) SaveOverall(day string, content domain.DigestContent) error {
	return d.writeJSON(OverallKey(day), domain.OverallSummary{
		Day:     day,
		Type:    domain.OverallType,
		Content: content,
	})
}

// SaveOverallResponse keeps the raw model output of the overall call.
func (d *Digests) SaveOverallResponse(day, raw string) error {
	return d.fs.Write(OverallResponseKey(day), []byte(raw))
}

// LoadState decodes the global dedup state. ok is false when none exists.
func (d *Digests) LoadState() (state domain.RunState, ok bool, err error) {
	data, ok, err := d.fs.Read(StateKey())
	if err != nil || !ok {
		return domain.RunState{}, ok, err
	}
	if err := json.Unmarshal(data, &state); err != nil {
		return domain.RunState{}, true, fmt.Errorf("%w: %v", domain.ErrCorruptState, err)
	}
	if state.SeenByDay == nil {
		state.SeenByDay = map[string][]string{}
	}
	return state, true, nil
}

// SaveState atomically replaces the dedup state.
func (d *Digests) SaveState(state domain.RunState) error {
	if state.SeenByDay == nil {
		state.SeenByDay = map[string][]string{}
	}
	return d.writeJSON(StateKey(), state)
}

func (d *Digests) readJSON(key Key, v any) (bool, error) {
	data, ok, err := d.fs.Read(key)
	if err != nil || !ok {
		return ok, err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return true, fmt.Errorf("%w: %s: %v", domain.ErrCorruptRecord, key, err)
	}
	return true, nil
}

func (d *Digests) writeJSON(key Key, v any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return d.fs.Write(key, buf.Bytes())
}
