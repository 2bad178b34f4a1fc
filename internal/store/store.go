// Package store persists crawl runs and portal request snapshots to
// PostgreSQL. It is optional: file artifacts are always written, the store
// only engages when a database URL is configured.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/foiahound/foiahound/api/schemas"
)

// DBPool abstracts pgxpool.Pool so tests can run against a mock.
type DBPool interface {
	Ping(ctx context.Context) error
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

// Store is the PostgreSQL implementation of schemas.Store.
type Store struct {
	pool DBPool
	log  *zap.Logger
}

// New creates a store and verifies the connection.
func New(ctx context.Context, pool DBPool, logger *zap.Logger) (*Store, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &Store{
		pool: pool,
		log:  logger.Named("store"),
	}, nil
}

// PersistCrawlResult saves a finished crawl run and all of its attempts in
// one transaction.
func (s *Store) PersistCrawlResult(ctx context.Context, result *schemas.CrawlResult) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		// Rollback after a commit reports ErrTxClosed, which is expected.
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
			s.log.Error("Failed to rollback transaction", zap.Error(rollbackErr))
		}
	}()

	if err := s.persistRun(ctx, tx, result); err != nil {
		return err
	}
	if len(result.Attempts) > 0 {
		if err := s.persistAttempts(ctx, tx, result.RunID, result.Attempts); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *Store) persistRun(ctx context.Context, tx pgx.Tx, result *schemas.CrawlResult) error {
	validation, err := marshalValidation(result.Validation)
	if err != nil {
		return err
	}

	sql := `
        INSERT INTO crawl_runs (run_id, seed_url, found, portal_url, validation, winner_agent, visited_urls, started_at, finished_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
        ON CONFLICT (run_id) DO UPDATE SET
            found = EXCLUDED.found,
            portal_url = EXCLUDED.portal_url,
            validation = EXCLUDED.validation,
            winner_agent = EXCLUDED.winner_agent,
            visited_urls = EXCLUDED.visited_urls,
            finished_at = EXCLUDED.finished_at;
    `
	_, err = tx.Exec(ctx, sql,
		result.RunID, result.SeedURL, result.Found, result.PortalURL,
		validation, result.WinnerAgent, result.VisitedURLs,
		result.StartedAt.UTC(), result.FinishedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert crawl run: %w", err)
	}
	return nil
}

func (s *Store) persistAttempts(ctx context.Context, tx pgx.Tx, runID string, attempts []schemas.CrawlAttempt) error {
	rows := make([][]interface{}, len(attempts))
	for i, a := range attempts {
		validation, err := marshalValidation(a.Validation)
		if err != nil {
			return err
		}
		rows[i] = []interface{}{
			runID, a.AgentID, a.Attempt,
			a.URL, a.Depth, validation,
			a.Err, a.FetchedAt.UTC(),
		}
	}

	copyCount, err := tx.CopyFrom(
		ctx,
		pgx.Identifier{"crawl_attempts"},
		[]string{"run_id", "agent_id", "attempt", "url", "depth", "validation", "error", "fetched_at"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("failed to copy crawl attempts: %w", err)
	}
	if int(copyCount) != len(attempts) {
		return fmt.Errorf("mismatch in copied attempt count: expected %d, got %d", len(attempts), copyCount)
	}
	return nil
}

// PersistRequestSnapshot upserts the request records captured during one
// portal session, batched so large tables land in a single round trip.
func (s *Store) PersistRequestSnapshot(ctx context.Context, sessionID string, records []schemas.RequestRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
			s.log.Error("Failed to rollback transaction", zap.Error(rollbackErr))
		}
	}()

	sql := `
        INSERT INTO request_snapshots (session_id, request_id, title, status, department, date_created, row_index, captured_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        ON CONFLICT (session_id, request_id) DO UPDATE SET
            title = EXCLUDED.title,
            status = EXCLUDED.status,
            department = EXCLUDED.department,
            date_created = EXCLUDED.date_created,
            row_index = EXCLUDED.row_index,
            captured_at = EXCLUDED.captured_at;
    `
	batch := &pgx.Batch{}
	now := time.Now().UTC()
	for _, r := range records {
		batch.Queue(sql, sessionID, r.ID, r.Title, r.Status, r.Department, r.DateCreated, r.RowIndex, now)
	}

	br := tx.SendBatch(ctx, batch)
	if br == nil {
		return fmt.Errorf("failed to send batch: batch results is nil")
	}
	for i := range records {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return fmt.Errorf("failed to upsert request snapshot %s (index %d): %w", records[i].ID, i, err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("failed to close batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	s.log.Debug("Request snapshot persisted.",
		zap.String("session_id", sessionID), zap.Int("records", len(records)))
	return nil
}

// GetCrawlAttempts retrieves every attempt recorded for a crawl run in
// visit order.
func (s *Store) GetCrawlAttempts(ctx context.Context, runID string) ([]schemas.CrawlAttempt, error) {
	query := `
        SELECT agent_id, attempt, url, depth, validation, error, fetched_at
        FROM crawl_attempts
        WHERE run_id = $1
        ORDER BY fetched_at ASC;
    `
	rows, err := s.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query crawl attempts: %w", err)
	}
	defer rows.Close()

	var attempts []schemas.CrawlAttempt
	for rows.Next() {
		var (
			a          schemas.CrawlAttempt
			validation json.RawMessage
		)
		err := rows.Scan(&a.AgentID, &a.Attempt, &a.URL, &a.Depth, &validation, &a.Err, &a.FetchedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan attempt row: %w", err)
		}
		if len(validation) > 0 && string(validation) != "{}" && string(validation) != "null" {
			var v schemas.ValidationResult
			if err := json.Unmarshal(validation, &v); err != nil {
				return nil, fmt.Errorf("failed to decode validation for attempt %d: %w", a.Attempt, err)
			}
			a.Validation = &v
		}
		a.RunID = runID
		attempts = append(attempts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return attempts, nil
}

// marshalValidation renders a validation as jsonb, never null.
func marshalValidation(v *schemas.ValidationResult) (json.RawMessage, error) {
	if v == nil {
		return json.RawMessage("{}"), nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode validation: %w", err)
	}
	return data, nil
}
