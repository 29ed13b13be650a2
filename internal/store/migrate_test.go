package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeLegacy(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestMigrateLegacySnapshot(t *testing.T) {
	fs := tempStore(t)
	writeLegacy(t, fs.Root(), "raw/papers_2024-01-05.jsonl", "{\"paper_id\":\"a\"}\n")

	moved, err := fs.MigrateLegacy()
	require.NoError(t, err)
	require.Len(t, moved, 1)
	assert.Equal(t, SnapshotKey("2024-01-05"), moved[0].To)

	data, ok, err := fs.Read(SnapshotKey("2024-01-05"))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "{\"paper_id\":\"a\"}\n", string(data))

	again, err := fs.MigrateLegacy()
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestMigrateLegacyAllCategories(t *testing.T) {
	fs := tempStore(t)
	root := fs.Root()
	writeLegacy(t, root, "summaries/summary_2024-01-05_part1.json", `{"chunk_index":1}`)
	writeLegacy(t, root, "summaries/summary_2024-01-05_overall.json", `{}`)
	writeLegacy(t, root, "summaries/summary_2024-01-05.txt", `ignored`)
	writeLegacy(t, root, "responses/response_2024-01-05_part2.json", `"raw"`)
	writeLegacy(t, root, "responses/response_2024-01-05_overall.json", `"raw"`)
	writeLegacy(t, root, "prompts/prompt_2024-01-05_part1.txt", `prompt`)
	writeLegacy(t, root, "raw/papers_undated.jsonl", ``)

	moved, err := fs.MigrateLegacy()
	require.NoError(t, err)

	var keys []Key
	for _, m := range moved {
		keys = append(keys, m.To)
	}
	assert.ElementsMatch(t, []Key{
		ChunkKey("2024-01-05", 1),
		OverallKey("2024-01-05"),
		ResponseKey("2024-01-05", 2),
		OverallResponseKey("2024-01-05"),
		PromptKey("2024-01-05", 1),
	}, keys)

	_, err = os.Stat(filepath.Join(root, "raw", "papers_undated.jsonl"))
	assert.NoError(t, err, "files without a date token stay put")
}

func TestMigrateLegacyKeepsExistingDestination(t *testing.T) {
	fs := tempStore(t)
	require.NoError(t, fs.Write(SnapshotKey("2024-01-05"), []byte("current\n")))
	writeLegacy(t, fs.Root(), "raw/papers_2024-01-05.jsonl", "legacy\n")

	moved, err := fs.MigrateLegacy()
	require.NoError(t, err)
	assert.Empty(t, moved)

	data, _, err := fs.Read(SnapshotKey("2024-01-05"))
	require.NoError(t, err)
	assert.Equal(t, "current\n", string(data))

	_, err = os.Stat(filepath.Join(fs.Root(), "raw", "papers_2024-01-05.jsonl"))
	assert.NoError(t, err, "legacy source is not deleted when skipped")
}
