// Package handler serves simple searches and result cache administration
// over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	pkgerrors "github.com/Adithya-Monish-Kumar-K/sanesearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/sanesearch/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/sanesearch/pkg/tracing"
)

// Searcher is satisfied by *sanesearch.Session.
type Searcher interface {
	SimpleSearch(queryText string) ([]string, error)
	CacheStats() (hits, misses int64, ok bool)
	InvalidateCache(ctx context.Context) error
}

// SearchResponse is the body of a successful search.
type SearchResponse struct {
	Query     string            `json:"query"`
	Results   []json.RawMessage `json:"results"`
	Returned  int               `json:"returned"`
	LatencyMs int64             `json:"latency_ms"`
}

type Handler struct {
	searcher Searcher
	logger   *slog.Logger
}

func New(s Searcher) *Handler {
	return &Handler{
		searcher: s,
		logger:   slog.Default().With("component", "search-handler"),
	}
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	log := logger.FromContext(r.Context())

	query := r.URL.Query().Get("q")
	if query == "" {
		h.writeError(w, http.StatusBadRequest, "query parameter 'q' is required")
		return
	}

	_, span := tracing.StartChildSpan(r.Context(), "simple_search")
	docs, err := h.searcher.SimpleSearch(query)
	span.SetAttr("returned", len(docs))
	span.End()
	if err != nil {
		status := pkgerrors.HTTPStatusCode(err)
		if status >= http.StatusInternalServerError {
			log.Error("search failed", "query", query, "error", err)
			h.writeError(w, status, "search failed")
			return
		}
		log.Debug("search rejected", "query", query, "error", err)
		h.writeError(w, status, err.Error())
		return
	}

	resp := SearchResponse{
		Query:     query,
		Results:   make([]json.RawMessage, len(docs)),
		Returned:  len(docs),
		LatencyMs: time.Since(start).Milliseconds(),
	}
	for i, d := range docs {
		resp.Results[i] = json.RawMessage(d)
	}
	log.Info("search completed",
		"query", query,
		"returned", resp.Returned,
		"latency_ms", resp.LatencyMs,
	)
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	hits, misses, ok := h.searcher.CacheStats()
	if !ok {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"total":    total,
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if _, _, ok := h.searcher.CacheStats(); !ok {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}
	if err := h.searcher.InvalidateCache(r.Context()); err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
