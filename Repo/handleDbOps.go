package Repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/BaseW/MyGitHubNotification/Models"

	"github.com/jackc/pgx/v5/pgxpool"
)

type NotificationRun = Models.NotificationRun

var errPoolNotInitialized = errors.New("database pool is not initialized")

func InitDbPool(ctx context.Context, databaseUrl string) (*pgxpool.Pool, error) {
	dbPool, dbConnectionError := pgxpool.New(ctx, databaseUrl)
	if dbConnectionError != nil {
		return nil, dbConnectionError
	}
	if pingError := dbPool.Ping(ctx); pingError != nil {
		dbPool.Close()
		return nil, fmt.Errorf("ping database: %w", pingError)
	}
	return dbPool, nil
}

// Store keeps the history of notification runs.
type Store struct {
	dbPool *pgxpool.Pool
}

func NewStore(dbPool *pgxpool.Pool) *Store {
	return &Store{dbPool: dbPool}
}

func (s *Store) Close() {
	if s.dbPool != nil {
		s.dbPool.Close()
	}
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	if s.dbPool == nil {
		return errPoolNotInitialized
	}

	query := `
		CREATE TABLE IF NOT EXISTS notification_runs (
			id             BIGSERIAL PRIMARY KEY,
			trigger        TEXT        NOT NULL,
			issue_count    INTEGER     NOT NULL DEFAULT 0,
			fetch_error    TEXT        NOT NULL DEFAULT '',
			delivery_error TEXT        NOT NULL DEFAULT '',
			delivered      BOOLEAN     NOT NULL DEFAULT FALSE,
			started_at     TIMESTAMPTZ NOT NULL,
			finished_at    TIMESTAMPTZ NOT NULL
		)`

	if _, createTableError := s.dbPool.Exec(ctx, query); createTableError != nil {
		return createTableError
	}

	ticksQuery := `
		CREATE TABLE IF NOT EXISTS scheduled_ticks (
			scheduled_at TIMESTAMPTZ PRIMARY KEY,
			claimed_at   TIMESTAMPTZ NOT NULL DEFAULT now()
		)`

	_, createTableError := s.dbPool.Exec(ctx, ticksQuery)
	return createTableError
}

func (s *Store) SaveNotificationRun(ctx context.Context, run NotificationRun) (NotificationRun, error) {
	if s.dbPool == nil {
		return NotificationRun{}, errPoolNotInitialized
	}

	query := `
		INSERT INTO notification_runs (trigger, issue_count, fetch_error, delivery_error, delivered, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`

	saveRunError := s.dbPool.QueryRow(ctx, query,
		run.Trigger, run.IssueCount, run.FetchError, run.DeliveryError, run.Delivered, run.StartedAt, run.FinishedAt,
	).Scan(&run.ID)
	if saveRunError != nil {
		return NotificationRun{}, saveRunError
	}

	return run, nil
}

// GetRecentNotificationRuns returns at most limit runs, newest first.
func (s *Store) GetRecentNotificationRuns(ctx context.Context, limit int) ([]NotificationRun, error) {
	if s.dbPool == nil {
		return nil, errPoolNotInitialized
	}

	query := `
		SELECT id, trigger, issue_count, fetch_error, delivery_error, delivered, started_at, finished_at
		FROM notification_runs
		ORDER BY started_at DESC, id DESC
		LIMIT $1`

	rows, dbQueryError := s.dbPool.Query(ctx, query, limit)
	if dbQueryError != nil {
		return nil, dbQueryError
	}
	defer rows.Close()

	runs := []NotificationRun{}
	for rows.Next() {
		var run NotificationRun
		if err := rows.Scan(
			&run.ID, &run.Trigger, &run.IssueCount, &run.FetchError, &run.DeliveryError,
			&run.Delivered, &run.StartedAt, &run.FinishedAt,
		); err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	return runs, rows.Err()
}

// ClaimScheduledTick records that the notification for scheduledAt is being
// sent. Only the first caller for a given tick gets true.
func (s *Store) ClaimScheduledTick(ctx context.Context, scheduledAt time.Time) (bool, error) {
	if s.dbPool == nil {
		return false, errPoolNotInitialized
	}

	query := `
		INSERT INTO scheduled_ticks (scheduled_at)
		VALUES ($1)
		ON CONFLICT (scheduled_at) DO NOTHING`

	commandTag, claimTickError := s.dbPool.Exec(ctx, query, scheduledAt.UTC())
	if claimTickError != nil {
		return false, claimTickError
	}

	return commandTag.RowsAffected() == 1, nil
}
