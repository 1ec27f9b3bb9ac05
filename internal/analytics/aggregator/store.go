// Package aggregator persists analytics to PostgreSQL: raw session events
// written by the batch collector, and periodic snapshots of an Aggregator's
// running statistics.
package aggregator

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/sanesearch/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/sanesearch/pkg/postgres"
)

// Schema creates the tables the store writes to.
const Schema = `
CREATE TABLE IF NOT EXISTS search_events (
    id          UUID PRIMARY KEY,
    index_path  TEXT NOT NULL,
    path        TEXT NOT NULL,
    query       TEXT NOT NULL,
    total_hits  BIGINT NOT NULL,
    returned    INTEGER NOT NULL,
    latency_ms  BIGINT NOT NULL,
    cache_hit   BOOLEAN NOT NULL,
    generation  BIGINT NOT NULL,
    occurred_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS commit_events (
    id          UUID PRIMARY KEY,
    index_path  TEXT NOT NULL,
    documents   INTEGER NOT NULL,
    generation  BIGINT NOT NULL,
    latency_ms  BIGINT NOT NULL,
    occurred_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS analytics_snapshots (
    id          BIGSERIAL PRIMARY KEY,
    data        JSONB NOT NULL,
    captured_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`

const (
	insertSearch = `INSERT INTO search_events
    (id, index_path, path, query, total_hits, returned, latency_ms, cache_hit, generation, occurred_at)
    VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
    ON CONFLICT (id) DO NOTHING`
	insertCommit = `INSERT INTO commit_events
    (id, index_path, documents, generation, latency_ms, occurred_at)
    VALUES ($1, $2, $3, $4, $5, $6)
    ON CONFLICT (id) DO NOTHING`
)

// Store writes analytics to PostgreSQL.
type Store struct {
	db     *postgres.Client
	logger *slog.Logger
}

// NewStore creates a new analytics persistence store.
func NewStore(db *postgres.Client) *Store {
	return &Store{
		db:     db,
		logger: slog.Default().With("component", "analytics-store"),
	}
}

// Migrate creates the analytics tables when they are missing.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.DB.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("creating analytics tables: %w", err)
	}
	return nil
}

type row struct {
	stmt string
	args []any
}

// rows maps envelopes onto insert statements. Redelivered events share an
// id and are ignored by the conflict clause.
func rows(events []analytics.Envelope) ([]row, error) {
	out := make([]row, 0, len(events))
	for _, env := range events {
		switch e := env.Event.(type) {
		case analytics.SearchEvent:
			out = append(out, row{insertSearch, []any{
				e.ID, e.Index, e.Path, e.Query, int64(e.TotalHits), e.Returned,
				e.LatencyMs, e.CacheHit, int64(e.Generation), e.Timestamp,
			}})
		case analytics.CommitEvent:
			out = append(out, row{insertCommit, []any{
				e.ID, e.Index, e.Documents, int64(e.Generation), e.LatencyMs, e.Timestamp,
			}})
		default:
			return nil, fmt.Errorf("unsupported analytics event %T", env.Event)
		}
	}
	return out, nil
}

// WriteBatch inserts the events in one transaction.
func (s *Store) WriteBatch(ctx context.Context, events []analytics.Envelope) error {
	batch, err := rows(events)
	if err != nil {
		return err
	}
	err = s.db.InTx(ctx, func(tx *sql.Tx) error {
		for _, r := range batch {
			if _, err := tx.ExecContext(ctx, r.stmt, r.args...); err != nil {
				return fmt.Errorf("inserting analytics event: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Debug("analytics events stored", "count", len(batch))
	return nil
}

// SaveSnapshot persists a stats snapshot to the database.
func (s *Store) SaveSnapshot(ctx context.Context, stats analytics.AggregatedStats) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("marshaling stats: %w", err)
	}

	_, err = s.db.DB.ExecContext(ctx,
		`INSERT INTO analytics_snapshots (data, captured_at) VALUES ($1, $2)`,
		data, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("saving analytics snapshot: %w", err)
	}

	s.logger.Info("analytics snapshot saved",
		"total_searches", stats.TotalSearches,
		"total_docs_committed", stats.TotalDocCommitted,
	)
	return nil
}

// LatestSnapshot loads the most recent snapshot from the database.
// Returns nil, nil if no snapshots exist yet.
func (s *Store) LatestSnapshot(ctx context.Context) (*analytics.AggregatedStats, error) {
	var data []byte
	err := s.db.DB.QueryRowContext(ctx,
		`SELECT data FROM analytics_snapshots ORDER BY captured_at DESC LIMIT 1`,
	).Scan(&data)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying latest snapshot: %w", err)
	}

	var stats analytics.AggregatedStats
	if err := json.Unmarshal(data, &stats); err != nil {
		return nil, fmt.Errorf("unmarshaling snapshot: %w", err)
	}
	return &stats, nil
}

// StartPeriodicSave launches a goroutine that periodically snapshots
// the aggregator's current stats to the database. When ctx ends it saves one
// last snapshot and closes the returned channel.
func (s *Store) StartPeriodicSave(ctx context.Context, agg *analytics.Aggregator, interval time.Duration) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if err := s.SaveSnapshot(ctx, agg.Stats()); err != nil {
					s.logger.Error("periodic snapshot failed", "error", err)
				}
			case <-ctx.Done():
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := s.SaveSnapshot(shutdownCtx, agg.Stats()); err != nil {
					s.logger.Error("final snapshot failed", "error", err)
				}
				return
			}
		}
	}()
	s.logger.Info("periodic snapshot started", "interval", interval)
	return done
}
