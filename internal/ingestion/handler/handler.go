// Package handler accepts documents over HTTP and hands them to an Ingester:
// the Kafka publisher, or a direct writer when Kafka is disabled.
package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/Adithya-Monish-Kumar-K/sanesearch/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/sanesearch/internal/ingestion/validator"
	pkgerrors "github.com/Adithya-Monish-Kumar-K/sanesearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/sanesearch/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/sanesearch/pkg/tracing"
)

const maxBodyBytes = 8 << 20

// Ingester is satisfied by *publisher.Publisher and *publisher.Direct.
type Ingester interface {
	Ingest(ctx context.Context, req *ingestion.IngestRequest) (*ingestion.IngestResponse, error)
	IngestBatch(ctx context.Context, reqs []ingestion.IngestRequest) ([]ingestion.IngestResponse, error)
}

type Handler struct {
	ingester Ingester
	status   int
	logger   *slog.Logger
}

// New returns a handler answering successful requests with status
// (202 for queued ingestion, 200 for synchronous).
func New(ing Ingester, status int) *Handler {
	return &Handler{
		ingester: ing,
		status:   status,
		logger:   slog.Default().With("component", "ingestion-handler"),
	}
}

// Ingest accepts one IngestRequest object or an array of them.
func (h *Handler) Ingest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		h.writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		h.writeError(w, http.StatusBadRequest, "request body is empty")
		return
	}

	if body[0] == '[' {
		var reqs []ingestion.IngestRequest
		if err := json.Unmarshal(body, &reqs); err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		spanCtx, span := tracing.StartChildSpan(ctx, "ingest_batch")
		span.SetAttr("documents", len(reqs))
		resp, err := h.ingester.IngestBatch(spanCtx, reqs)
		span.End()
		if err != nil {
			h.fail(w, log, err)
			return
		}
		log.Info("documents ingested", "count", len(resp))
		h.writeJSON(w, h.status, resp)
		return
	}

	var req ingestion.IngestRequest
	if err := json.Unmarshal(body, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	spanCtx, span := tracing.StartChildSpan(ctx, "ingest")
	resp, err := h.ingester.Ingest(spanCtx, &req)
	span.End()
	if err != nil {
		h.fail(w, log, err)
		return
	}
	log.Info("document ingested", "key", resp.Key, "status", resp.Status)
	h.writeJSON(w, h.status, resp)
}

func (h *Handler) fail(w http.ResponseWriter, log *slog.Logger, err error) {
	var validationErr *validator.ValidationError
	if errors.As(err, &validationErr) {
		h.writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":  "validation failed",
			"fields": validationErr.Fields,
		})
		return
	}
	status := pkgerrors.HTTPStatusCode(err)
	if status >= http.StatusInternalServerError {
		log.Error("ingestion failed", "error", err, "status_code", status)
		h.writeError(w, status, "ingestion failed")
		return
	}
	h.writeError(w, status, err.Error())
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
