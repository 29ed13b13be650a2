// Package httpapi exposes a read-only status API over the digest store and
// run ledger.
package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"ArxivDigest/internal/domain"
	"ArxivDigest/internal/ports"
)

const (
	defaultRunsLimit = 20
	maxRunsLimit     = 500
)

// DayReader is the slice of the digest store the API reads from.
type DayReader interface {
	LoadSnapshot(day string) ([]domain.Item, bool, error)
	LoadChunks(day string) (map[int]domain.DigestContent, error)
	LoadOverall(day string) (*domain.DigestContent, error)
}

// Handler holds the route handlers. A nil ledger disables /api/runs.
type Handler struct {
	days   DayReader
	ledger ports.RunLedger
	logger *slog.Logger
}

// NewRouter creates a chi router with all status routes mounted.
func NewRouter(days DayReader, ledger ports.RunLedger, logger *slog.Logger) chi.Router {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{days: days, ledger: ledger, logger: logger.With("component", "httpapi")}

	r := chi.NewRouter()
	r.Get("/health/live", h.Live)
	r.Route("/api", func(r chi.Router) {
		r.Get("/runs", h.Runs)
		r.Get("/days/{day}", h.Day)
	})
	return r
}

// Live handles GET /health/live.
func (h *Handler) Live(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type runDTO struct {
	ID           string `json:"id"`
	Day          string `json:"date"`
	Status       string `json:"status"`
	Items        int    `json:"items"`
	NewItems     int    `json:"new_items"`
	Chunks       int    `json:"chunks"`
	CachedChunks int    `json:"cached_chunks"`
	Overall      bool   `json:"overall"`
	Notified     bool   `json:"notified"`
	Error        string `json:"error,omitempty"`
	StartedAt    string `json:"started_at"`
	FinishedAt   string `json:"finished_at"`
}

// Runs handles GET /api/runs?limit=N.
func (h *Handler) Runs(w http.ResponseWriter, r *http.Request) {
	if h.ledger == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody("run ledger disabled"))
		return
	}

	limit := defaultRunsLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, errorBody("limit must be a positive integer"))
			return
		}
		limit = min(n, maxRunsLimit)
	}

	records, err := h.ledger.Recent(r.Context(), limit)
	if err != nil {
		h.logger.Error("list runs failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}

	out := make([]runDTO, 0, len(records))
	for _, rec := range records {
		out = append(out, runDTO{
			ID:           rec.ID,
			Day:          rec.Day,
			Status:       string(rec.Status),
			Items:        rec.Items,
			NewItems:     rec.NewItems,
			Chunks:       rec.Chunks,
			CachedChunks: rec.CachedChunks,
			Overall:      rec.Overall,
			Notified:     rec.Notified,
			Error:        rec.Error,
			StartedAt:    rec.StartedAt.Format(time.RFC3339),
			FinishedAt:   rec.FinishedAt.Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": out})
}

type dayDTO struct {
	Day            string                `json:"date"`
	Items          int                   `json:"items"`
	CategoryCounts map[string]int        `json:"category_counts"`
	Chunks         []domain.ChunkSummary `json:"chunks"`
	Overall        *domain.DigestContent `json:"overall"`
}

// Day handles GET /api/days/{day}.
func (h *Handler) Day(w http.ResponseWriter, r *http.Request) {
	day := chi.URLParam(r, "day")
	if _, err := domain.ParseDay(day); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("day must be YYYY-MM-DD"))
		return
	}

	items, ok, err := h.days.LoadSnapshot(day)
	if err != nil {
		h.fail(w, day, err)
		return
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody("no snapshot for "+day))
		return
	}

	cached, err := h.days.LoadChunks(day)
	if err != nil {
		h.fail(w, day, err)
		return
	}
	overall, err := h.days.LoadOverall(day)
	if err != nil {
		h.fail(w, day, err)
		return
	}

	indexes := make([]int, 0, len(cached))
	for idx := range cached {
		indexes = append(indexes, idx)
	}
	sort.Ints(indexes)
	chunks := make([]domain.ChunkSummary, 0, len(indexes))
	for _, idx := range indexes {
		chunks = append(chunks, domain.ChunkSummary{Day: day, ChunkIndex: idx, Content: cached[idx]})
	}

	writeJSON(w, http.StatusOK, dayDTO{
		Day:            day,
		Items:          len(items),
		CategoryCounts: domain.CategoryCounts(items),
		Chunks:         chunks,
		Overall:        overall,
	})
}

func (h *Handler) fail(w http.ResponseWriter, day string, err error) {
	h.logger.Error("load day failed", "day", day, "error", err)
	if errors.Is(err, domain.ErrCorruptRecord) {
		writeJSON(w, http.StatusInternalServerError, errorBody("corrupt record for "+day))
		return
	}
	writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", slog.String("error", err.Error()))
	}
}

type errResponse struct {
	Error string `json:"error"`
}

func errorBody(msg string) errResponse {
	return errResponse{Error: msg}
}
