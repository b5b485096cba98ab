package clients

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/lib/pq"
)

const statusTableName = "session_recordings"

// ErrStatusNotFound is returned for sessions that were never composed
var ErrStatusNotFound = errors.New("no recording status for session")

type StatusStore interface {
	SaveStatus(ctx context.Context, msg CompositionStatusMessage) error
	GetStatus(ctx context.Context, sessionID string) (CompositionStatusMessage, error)
}

// PostgresStatusStore keeps the latest composition status of each session
type PostgresStatusStore struct {
	db *sql.DB
}

func NewPostgresStatusStore(db *sql.DB) *PostgresStatusStore {
	return &PostgresStatusStore{db: db}
}

func (s *PostgresStatusStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS "`+statusTableName+`" (
		"session_id" TEXT PRIMARY KEY,
		"request_id" TEXT NOT NULL,
		"status" TEXT NOT NULL,
		"error" TEXT NOT NULL DEFAULT '',
		"output_path" TEXT NOT NULL DEFAULT '',
		"duration_ms" BIGINT NOT NULL DEFAULT 0,
		"processing_time_ms" BIGINT NOT NULL DEFAULT 0,
		"updated_at" TIMESTAMPTZ NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("failed to create %s table: %w", statusTableName, err)
	}
	return nil
}

func (s *PostgresStatusStore) SaveStatus(ctx context.Context, msg CompositionStatusMessage) error {
	upsert := `INSERT INTO "` + statusTableName + `" (
		"session_id", "request_id", "status", "error", "output_path", "duration_ms", "processing_time_ms", "updated_at"
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	ON CONFLICT ("session_id") DO UPDATE SET
		"request_id" = EXCLUDED."request_id",
		"status" = EXCLUDED."status",
		"error" = EXCLUDED."error",
		"output_path" = EXCLUDED."output_path",
		"duration_ms" = EXCLUDED."duration_ms",
		"processing_time_ms" = EXCLUDED."processing_time_ms",
		"updated_at" = EXCLUDED."updated_at"`

	updatedAt := time.UnixMilli(msg.Timestamp).UTC()
	operation := func() error {
		_, err := s.db.ExecContext(ctx, upsert,
			msg.SessionID, msg.RequestID, string(msg.Status), msg.Error, msg.OutputPath, msg.DurationMs, msg.ProcessingTimeMs, updatedAt)
		if err != nil && !isTransient(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	if err := backoff.Retry(operation, backoff.WithContext(storeRetryBackoff(), ctx)); err != nil {
		return fmt.Errorf("failed to save status of session %s: %w", msg.SessionID, err)
	}
	return nil
}

func (s *PostgresStatusStore) GetStatus(ctx context.Context, sessionID string) (CompositionStatusMessage, error) {
	query := `SELECT "request_id", "status", "error", "output_path", "duration_ms", "processing_time_ms", "updated_at"
		FROM "` + statusTableName + `" WHERE "session_id" = $1`

	msg := CompositionStatusMessage{SessionID: sessionID}
	var (
		status    string
		updatedAt time.Time
	)
	err := s.db.QueryRowContext(ctx, query, sessionID).Scan(
		&msg.RequestID, &status, &msg.Error, &msg.OutputPath, &msg.DurationMs, &msg.ProcessingTimeMs, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return CompositionStatusMessage{}, ErrStatusNotFound
	}
	if err != nil {
		return CompositionStatusMessage{}, fmt.Errorf("failed to read status of session %s: %w", sessionID, err)
	}
	msg.Status = CompositionStatus(status)
	msg.Timestamp = updatedAt.UnixMilli()
	return msg, nil
}

func storeRetryBackoff() backoff.BackOff {
	return backoff.WithMaxRetries(backoff.NewConstantBackOff(500*time.Millisecond), 2)
}

// Connection problems and serialization failures are worth another try, constraint violations aren't
func isTransient(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Class() {
		case "08", "40", "53", "57":
			return true
		}
		return false
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

// NoopStatusStore is used when no database is configured
type NoopStatusStore struct{}

func (NoopStatusStore) SaveStatus(context.Context, CompositionStatusMessage) error { return nil }

func (NoopStatusStore) GetStatus(context.Context, string) (CompositionStatusMessage, error) {
	return CompositionStatusMessage{}, ErrStatusNotFound
}
