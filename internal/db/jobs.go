package db

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ErrDuplicateIdempotencyKey is returned by EnqueueJob when a job with the
// same idempotency key already exists. Callers treat it as "already
// scheduled", never as a reason to execute the work twice.
var ErrDuplicateIdempotencyKey = errors.New("job with this idempotency key already exists")

// RetryDelay is the backoff applied before the n-th retry: 2^n minutes.
func RetryDelay(retryCount int) time.Duration {
	return time.Duration(math.Pow(2, float64(retryCount))) * time.Minute
}

// retryDecision resolves a failed execution into the job's next state: the
// incremented retry count, the backoff before the next attempt, and whether
// retries are exhausted.
func retryDecision(retryCount, maxRetries int) (next int, delay time.Duration, exhausted bool) {
	next = retryCount + 1
	if next < maxRetries {
		return next, RetryDelay(next), false
	}
	return next, 0, true
}

type EnqueueJobParams struct {
	Type           JobType
	Payload        []byte
	IdempotencyKey string
	MaxRetries     int
	NotBefore      time.Time
}

const jobColumns = `id, type, payload, status, progress, retry_count, max_retries,
	idempotency_key, scheduled_at, started_at, completed_at, error_message, result,
	created_at, updated_at`

func scanJob(row pgx.Row) (*Job, error) {
	var j Job
	err := row.Scan(
		&j.ID, &j.Type, &j.Payload, &j.Status, &j.Progress, &j.RetryCount,
		&j.MaxRetries, &j.IdempotencyKey, &j.ScheduledAt, &j.StartedAt,
		&j.CompletedAt, &j.ErrorMessage, &j.Result, &j.CreatedAt, &j.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &j, nil
}

// EnqueueJob inserts a pending job. Duplicate idempotency keys are rejected
// with ErrDuplicateIdempotencyKey without touching the existing job.
func (db *DatabaseConnection) EnqueueJob(ctx context.Context, params EnqueueJobParams) (uuid.UUID, error) {
	notBefore := params.NotBefore
	if notBefore.IsZero() {
		notBefore = time.Now()
	}

	var id uuid.UUID
	err := db.QueryRow(ctx, `
		INSERT INTO jobs (id, type, payload, status, max_retries, idempotency_key, scheduled_at)
		VALUES ($1, $2, $3, 'pending', $4, $5, $6)
		ON CONFLICT (idempotency_key) DO NOTHING
		RETURNING id`,
		uuid.New(), params.Type, params.Payload, params.MaxRetries, params.IdempotencyKey, notBefore,
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, ErrDuplicateIdempotencyKey
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("enqueue job: %w", err)
	}
	return id, nil
}

// DequeueNextJob claims the oldest due pending job, atomically transitioning
// it to running. Returns (nil, nil) when no job is due. Safe under concurrent
// callers: the inner select locks the row with SKIP LOCKED, so two ticks
// never claim the same job.
func (db *DatabaseConnection) DequeueNextJob(ctx context.Context) (*Job, error) {
	row := db.QueryRow(ctx, `
		UPDATE jobs SET status = 'running', started_at = now(), updated_at = now()
		WHERE id = (
			SELECT id FROM jobs
			WHERE status = 'pending' AND scheduled_at <= now()
			ORDER BY scheduled_at, created_at
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		RETURNING `+jobColumns)

	job, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("dequeue job: %w", err)
	}
	return job, nil
}

// CompleteJob marks a job completed with its result.
func (db *DatabaseConnection) CompleteJob(ctx context.Context, id uuid.UUID, result []byte) error {
	_, err := db.Exec(ctx, `
		UPDATE jobs SET status = 'completed', progress = 100, result = $2,
			completed_at = now(), updated_at = now()
		WHERE id = $1`, id, result)
	if err != nil {
		return fmt.Errorf("complete job: %w", err)
	}
	return nil
}

// FailJob records a failed execution. While retries remain the job is reset
// to pending with exponential backoff; otherwise it is terminally failed.
func (db *DatabaseConnection) FailJob(ctx context.Context, id uuid.UUID, errMsg string) error {
	tx, err := db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("fail job: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var retryCount, maxRetries int
	err = tx.QueryRow(ctx,
		`SELECT retry_count, max_retries FROM jobs WHERE id = $1 FOR UPDATE`, id,
	).Scan(&retryCount, &maxRetries)
	if err != nil {
		return fmt.Errorf("fail job: load: %w", err)
	}

	next, delay, exhausted := retryDecision(retryCount, maxRetries)
	if !exhausted {
		_, err = tx.Exec(ctx, `
			UPDATE jobs SET status = 'pending', retry_count = $2, error_message = $3,
				scheduled_at = now() + $4, updated_at = now()
			WHERE id = $1`,
			id, next, errMsg, delay)
	} else {
		_, err = tx.Exec(ctx, `
			UPDATE jobs SET status = 'failed', retry_count = $2, error_message = $3,
				completed_at = now(), updated_at = now()
			WHERE id = $1`,
			id, next, errMsg)
	}
	if err != nil {
		return fmt.Errorf("fail job: update: %w", err)
	}

	return tx.Commit(ctx)
}

// FailJobTerminal fails a job immediately with no further retries, used for
// validation and not-found errors where retrying cannot help.
func (db *DatabaseConnection) FailJobTerminal(ctx context.Context, id uuid.UUID, errMsg string) error {
	_, err := db.Exec(ctx, `
		UPDATE jobs SET status = 'failed', error_message = $2,
			completed_at = now(), updated_at = now()
		WHERE id = $1`, id, errMsg)
	if err != nil {
		return fmt.Errorf("fail job terminal: %w", err)
	}
	return nil
}

// RetryJob resets a terminally failed job for a fresh round of attempts.
func (db *DatabaseConnection) RetryJob(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Exec(ctx, `
		UPDATE jobs SET status = 'pending', retry_count = 0, error_message = NULL,
			scheduled_at = now(), updated_at = now()
		WHERE id = $1 AND status = 'failed'`, id)
	if err != nil {
		return fmt.Errorf("retry job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("retry job: job %s is not in a failed state", id)
	}
	return nil
}

func (db *DatabaseConnection) GetJobByID(ctx context.Context, id uuid.UUID) (*Job, error) {
	row := db.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id)
	return scanJob(row)
}

// ListJobs returns the most recently created jobs, newest first.
func (db *DatabaseConnection) ListJobs(ctx context.Context, limit int) ([]*Job, error) {
	rows, err := db.Query(ctx, `
		SELECT `+jobColumns+` FROM jobs ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("list jobs: scan: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}
