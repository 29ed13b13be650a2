package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ArxivDigest/internal/domain"
	"ArxivDigest/internal/store"
)

func TestBatches(t *testing.T) {
	items := makeItems(45)
	batches := Batches(items, 20)
	require.Len(t, batches, 3)
	assert.Len(t, batches[0], 20)
	assert.Len(t, batches[1], 20)
	assert.Len(t, batches[2], 5)
	assert.Equal(t, items[40].ID, batches[2][0].ID)

	assert.Nil(t, Batches(nil, 20))
	assert.Equal(t, 3, ExpectedChunks(45, 20))
	assert.Equal(t, 2, ExpectedChunks(40, 20))
	assert.Equal(t, 0, ExpectedChunks(0, 20))
}

func TestChunkRunnerZeroItems(t *testing.T) {
	summarizer := &fakeSummarizer{}
	runner := NewChunkRunner(ChunkRunnerDeps{Summarizer: summarizer, Store: newDigests(t), Size: 20, Logger: quietLogger()})

	got, err := runner.Run(context.Background(), testDay, nil, nil)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Zero(t, summarizer.calls)
}

func TestChunkRunnerReusesCachedBatches(t *testing.T) {
	digests := newDigests(t)
	items := makeItems(45)

	first := &fakeSummarizer{failAt: 3}
	runner := NewChunkRunner(ChunkRunnerDeps{Summarizer: first, Store: digests, Size: 20, Logger: quietLogger()})
	partial, err := runner.Run(context.Background(), testDay, items, nil)
	require.Error(t, err)
	require.Len(t, partial, 2)

	var stepErr *domain.StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, domain.StepSummarize, stepErr.Step)
	assert.Equal(t, 3, stepErr.Chunk)

	cached, err := digests.LoadChunks(testDay)
	require.NoError(t, err)
	require.Len(t, cached, 2)

	second := &fakeSummarizer{}
	runner = NewChunkRunner(ChunkRunnerDeps{Summarizer: second, Store: digests, Size: 20, Logger: quietLogger()})
	full, err := runner.Run(context.Background(), testDay, items, cached)
	require.NoError(t, err)

	assert.Equal(t, 1, second.calls)
	require.Len(t, second.batches, 1)
	assert.Equal(t, items[40:], second.batches[0])

	require.Len(t, full, 3)
	for i, chunk := range full {
		assert.Equal(t, i+1, chunk.ChunkIndex)
	}
	assert.Equal(t, partial[0].Content, full[0].Content)
	assert.Equal(t, partial[1].Content, full[1].Content)
}

func TestChunkRunnerIsIdempotent(t *testing.T) {
	digests := newDigests(t)
	items := makeItems(30)

	runner := NewChunkRunner(ChunkRunnerDeps{Summarizer: &fakeSummarizer{}, Store: digests, Size: 20, Logger: quietLogger()})
	first, err := runner.Run(context.Background(), testDay, items, nil)
	require.NoError(t, err)

	cached, err := digests.LoadChunks(testDay)
	require.NoError(t, err)

	again := &fakeSummarizer{}
	runner = NewChunkRunner(ChunkRunnerDeps{Summarizer: again, Store: digests, Size: 20, Logger: quietLogger()})
	second, err := runner.Run(context.Background(), testDay, items, cached)
	require.NoError(t, err)

	assert.Zero(t, again.calls)
	assert.Equal(t, first, second)
}

func TestChunkRunnerPersistsRawResponse(t *testing.T) {
	digests := newDigests(t)
	raw := "Here you go:\n```json\n{\"summary\": \"s\", \"keywords\": [\"k\"], \"themes\": []}\n```"

	runner := NewChunkRunner(ChunkRunnerDeps{Summarizer: &fakeSummarizer{raw: raw}, Store: digests, Size: 20, Logger: quietLogger()})
	got, err := runner.Run(context.Background(), testDay, makeItems(3), nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "s", got[0].Content.Summary)
	assert.Equal(t, []string{"k"}, got[0].Content.Keywords)

	data, ok, err := digests.FS().Read(store.ResponseKey(testDay, 1))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, raw, string(data))
}

func TestChunkRunnerUnparsableOutputIsFatal(t *testing.T) {
	digests := newDigests(t)

	runner := NewChunkRunner(ChunkRunnerDeps{Summarizer: &fakeSummarizer{raw: "I cannot help with that."}, Store: digests, Size: 20, Logger: quietLogger()})
	got, err := runner.Run(context.Background(), testDay, makeItems(3), nil)
	require.Error(t, err)
	assert.Empty(t, got)
	assert.True(t, errors.Is(err, domain.ErrNoPayload))

	var stepErr *domain.StepError
	require.ErrorAs(t, err, &stepErr)
	assert.False(t, stepErr.Retryable())

	ok, err := digests.FS().Exists(store.ChunkKey(testDay, 1))
	require.NoError(t, err)
	assert.False(t, ok, "no silently empty chunk")

	ok, err = digests.FS().Exists(store.ResponseKey(testDay, 1))
	require.NoError(t, err)
	assert.True(t, ok, "raw response kept for audit")
}

func TestChunkRunnerWithoutSummarizer(t *testing.T) {
	runner := NewChunkRunner(ChunkRunnerDeps{Store: newDigests(t), Logger: quietLogger()})
	assert.Equal(t, DefaultChunkSize, runner.Size())

	_, err := runner.Run(context.Background(), testDay, makeItems(1), nil)
	assert.ErrorIs(t, err, errNoSummarizer)
}
