package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ArxivDigest/internal/domain"
	"ArxivDigest/internal/store"
)

type stubLedger struct {
	records []domain.RunRecord
	limit   int
	err     error
}

func (s *stubLedger) Record(context.Context, domain.RunRecord) error { return nil }

func (s *stubLedger) Recent(_ context.Context, limit int) ([]domain.RunRecord, error) {
	s.limit = limit
	return s.records, s.err
}

func testEnv(t *testing.T, ledger *stubLedger) (*store.Digests, http.Handler) {
	t.Helper()
	fs, err := store.NewFS(t.TempDir())
	require.NoError(t, err)
	digests := store.NewDigests(fs)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if ledger == nil {
		return digests, NewRouter(digests, nil, logger)
	}
	return digests, NewRouter(digests, ledger, logger)
}

func do(t *testing.T, h http.Handler, target string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec, body
}

func TestLive(t *testing.T) {
	_, h := testEnv(t, nil)
	rec, body := do(t, h, "/health/live")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
}

func TestRuns(t *testing.T) {
	started := time.Date(2024, 1, 6, 9, 0, 0, 0, time.UTC)
	ledger := &stubLedger{records: []domain.RunRecord{{
		ID: "run-1", Day: "2024-01-05", Status: domain.StatusDelivered, Items: 45,
		StartedAt: started, FinishedAt: started.Add(time.Minute),
	}}}
	_, h := testEnv(t, ledger)

	rec, body := do(t, h, "/api/runs?limit=5")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, ledger.limit)
	runs := body["runs"].([]any)
	require.Len(t, runs, 1)
	run := runs[0].(map[string]any)
	assert.Equal(t, "run-1", run["id"])
	assert.Equal(t, "delivered", run["status"])
	assert.Equal(t, "2024-01-06T09:00:00Z", run["started_at"])

	do(t, h, "/api/runs?limit=100000")
	assert.Equal(t, maxRunsLimit, ledger.limit)

	rec, _ = do(t, h, "/api/runs?limit=zero")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	ledger.err = errors.New("disk I/O error")
	rec, _ = do(t, h, "/api/runs")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestRunsWithoutLedger(t *testing.T) {
	_, h := testEnv(t, nil)
	rec, _ := do(t, h, "/api/runs")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestDay(t *testing.T) {
	digests, h := testEnv(t, nil)
	day := "2024-01-05"
	require.NoError(t, digests.SaveSnapshot(day, []domain.Item{
		{ID: "a", Title: "A", Category: "cs.AI"},
		{ID: "b", Title: "B", Category: "cs.LG"},
		{ID: "c", Title: "C", Category: "cs.AI"},
	}))
	require.NoError(t, digests.SaveChunk(domain.ChunkSummary{Day: day, ChunkIndex: 2, Content: domain.DigestContent{Summary: "second"}}))
	require.NoError(t, digests.SaveChunk(domain.ChunkSummary{Day: day, ChunkIndex: 1, Content: domain.DigestContent{Summary: "first"}}))

	rec, body := do(t, h, "/api/days/"+day)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 3, body["items"])
	assert.Equal(t, map[string]any{"cs.AI": 2.0, "cs.LG": 1.0}, body["category_counts"])
	assert.Nil(t, body["overall"])

	chunks := body["chunks"].([]any)
	require.Len(t, chunks, 2)
	assert.EqualValues(t, 1, chunks[0].(map[string]any)["chunk_index"])
	assert.EqualValues(t, 2, chunks[1].(map[string]any)["chunk_index"])

	require.NoError(t, digests.SaveOverall(day, domain.DigestContent{Summary: "all"}))
	_, body = do(t, h, "/api/days/"+day)
	assert.Equal(t, "all", body["overall"].(map[string]any)["summary"])
}

func TestDayErrors(t *testing.T) {
	_, h := testEnv(t, nil)

	rec, _ := do(t, h, "/api/days/2024-01-05")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = do(t, h, "/api/days/yesterday")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
