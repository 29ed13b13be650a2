package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ArxivDigest/internal/domain"
)

func tempStore(t *testing.T) *FS {
	t.Helper()
	fs, err := NewFS(t.TempDir())
	require.NoError(t, err)
	return fs
}

func TestKeyPaths(t *testing.T) {
	fs := tempStore(t)

	tests := []struct {
		key  Key
		want string
	}{
		{SnapshotKey("2024-01-05"), "2024-01-05/raw/papers.jsonl"},
		{ChunkKey("2024-01-05", 3), "2024-01-05/summaries/summary_part03.json"},
		{OverallKey("2024-01-05"), "2024-01-05/summaries/summary_overall.json"},
		{ResponseKey("2024-01-05", 12), "2024-01-05/responses/response_part12.txt"},
		{OverallResponseKey("2024-01-05"), "2024-01-05/responses/response_overall.txt"},
		{StateKey(), "state/state.json"},
	}
	for _, tt := range tests {
		got, err := fs.Path(tt.key)
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(fs.Root(), filepath.FromSlash(tt.want)), got)
	}
}

func TestInvalidKeys(t *testing.T) {
	fs := tempStore(t)

	invalid := []Key{
		SnapshotKey("../../etc"),
		ChunkKey("2024-13-40", 1),
		{Partition: Partition{Day: "2024-01-05", Category: CategoryRaw}, Index: 2},
		{Partition: Partition{Day: "2024-01-05", Category: CategoryPrompts}, Index: IndexOverall},
		{Partition: Partition{Day: "2024-01-05", Category: CategoryState}},
		{Partition: Partition{Day: "2024-01-05", Category: "secrets"}},
	}
	for _, key := range invalid {
		_, err := fs.Path(key)
		assert.ErrorIs(t, err, domain.ErrInvalidKey, "key %+v", key)
		assert.ErrorIs(t, fs.Write(key, []byte("x")), domain.ErrInvalidKey)
	}
}

func TestReadAbsentIsNotAnError(t *testing.T) {
	fs := tempStore(t)

	data, ok, err := fs.Read(ChunkKey("2024-01-05", 1))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, data)

	exists, err := fs.Exists(StateKey())
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestWriteAndRead(t *testing.T) {
	fs := tempStore(t)
	key := ResponseKey("2024-01-05", 1)

	require.NoError(t, fs.Write(key, []byte("first")))
	require.NoError(t, fs.Write(key, []byte("second")))

	data, ok, err := fs.Read(key)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "second", string(data))

	path, _ := fs.Path(key)
	matches, _ := filepath.Glob(filepath.Join(filepath.Dir(path), tempPrefix+"*"))
	assert.Empty(t, matches, "leftover temp files")
}

func TestInterruptedWriteLeavesPreviousValue(t *testing.T) {
	fs := tempStore(t)
	key := ChunkKey("2024-01-05", 1)
	require.NoError(t, fs.Write(key, []byte(`{"chunk_index":1}`)))

	// A crash between create-temp and rename leaves only a stray temp file.
	path, _ := fs.Path(key)
	stray := filepath.Join(filepath.Dir(path), tempPrefix+"123456")
	require.NoError(t, os.WriteFile(stray, []byte(`{"chunk_ind`), 0o644))

	data, ok, err := fs.Read(key)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"chunk_index":1}`, string(data))

	keys, err := fs.ListKeys(key.Partition)
	require.NoError(t, err)
	assert.Equal(t, []Key{key}, keys)
}

func TestListKeysOrdersChunksBeforeOverall(t *testing.T) {
	fs := tempStore(t)
	day := "2024-01-05"

	for _, key := range []Key{OverallKey(day), ChunkKey(day, 10), ChunkKey(day, 2), ChunkKey(day, 1)} {
		require.NoError(t, fs.Write(key, []byte("{}")))
	}
	dir := filepath.Join(fs.Root(), day, string(CategorySummaries))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.md"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "summary_part4.json"), []byte("x"), 0o644))

	keys, err := fs.ListKeys(Partition{Day: day, Category: CategorySummaries})
	require.NoError(t, err)
	assert.Equal(t, []Key{ChunkKey(day, 1), ChunkKey(day, 2), ChunkKey(day, 10), OverallKey(day)}, keys)
}

func TestListKeysMissingPartition(t *testing.T) {
	fs := tempStore(t)
	keys, err := fs.ListKeys(Partition{Day: "2024-01-05", Category: CategoryResponses})
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestNewFSRootIsFile(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "digest-*")
	require.NoError(t, err)
	_ = f.Close()

	_, err = NewFS(f.Name())
	assert.Error(t, err)
}
