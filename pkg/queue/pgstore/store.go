// Package pgstore implements queue.Storage on PostgreSQL via pgx.
// Claims use FOR UPDATE SKIP LOCKED so any number of workers can poll one table.
package pgstore

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wavespoole/carwash/pkg/pg"
	"github.com/wavespoole/carwash/pkg/queue"
)

// Migrations holds the goose migrations creating the queue tables.
//
//go:embed migrations/*.sql
var Migrations embed.FS

// MigrationsDir is the directory inside Migrations that goose reads.
const MigrationsDir = "migrations"

const taskColumns = `id, queue, task_name, COALESCE(unique_key, ''), payload, status, attempt, max_attempts,
	scheduled_at, locked_until, locked_by, processed_at, error, created_at`

const claimedColumns = `t.id, t.queue, t.task_name, COALESCE(t.unique_key, ''), t.payload, t.status, t.attempt,
	t.max_attempts, t.scheduled_at, t.locked_until, t.locked_by, t.processed_at, t.error, t.created_at`

// Store is a PostgreSQL-backed queue.Storage.
type Store struct {
	pool    *pgxpool.Pool
	now     queue.Clock
	backoff queue.BackoffPolicy
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces time.Now.
func WithClock(now queue.Clock) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithBackoff sets the retry delay policy.
func WithBackoff(b queue.BackoffPolicy) Option {
	return func(s *Store) {
		if b != nil {
			s.backoff = b
		}
	}
}

// New wraps a pool. The caller keeps ownership of the pool.
func New(pool *pgxpool.Pool, opts ...Option) *Store {
	s := &Store{
		pool:    pool,
		now:     time.Now,
		backoff: queue.DefaultBackoff(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ queue.Storage = (*Store)(nil)

// Close is a no-op; the pool belongs to the caller.
func (s *Store) Close() error { return nil }

// CreateTask implements queue.EnqueuerRepository.
func (s *Store) CreateTask(ctx context.Context, task *queue.Task) error {
	if task == nil {
		return errors.New("task cannot be nil")
	}

	var uniqueKey *string
	if task.UniqueKey != "" {
		uniqueKey = &task.UniqueKey
	}

	// A live task holding the key may finish between the insert and the lookup.
	for range 2 {
		var id uuid.UUID
		err := s.pool.QueryRow(ctx, `
			INSERT INTO queue_tasks (id, queue, task_name, unique_key, payload, status, attempt, max_attempts, scheduled_at, created_at)
			VALUES ($1, $2, $3, $4, $5, 'pending', $6, $7, $8, $9)
			ON CONFLICT (unique_key) WHERE unique_key IS NOT NULL AND status IN ('pending', 'active') DO NOTHING
			RETURNING id`,
			task.ID, task.Queue, task.TaskName, uniqueKey, task.Payload,
			task.Attempt, task.MaxAttempts, task.ScheduledAt, task.CreatedAt,
		).Scan(&id)
		if err == nil {
			return nil
		}
		if pg.IsDuplicateKeyError(err) {
			return fmt.Errorf("task with ID %s already exists: %w", task.ID, err)
		}
		if !pg.IsNotFoundError(err) {
			return fmt.Errorf("pgstore: insert task: %w", err)
		}

		err = s.pool.QueryRow(ctx, `
			SELECT id FROM queue_tasks
			WHERE unique_key = $1 AND status IN ('pending', 'active')`,
			task.UniqueKey,
		).Scan(&id)
		if err == nil {
			task.ID = id
			return fmt.Errorf("%w: key %q", queue.ErrDuplicateTask, task.UniqueKey)
		}
		if !pg.IsNotFoundError(err) {
			return fmt.Errorf("pgstore: lookup unique key: %w", err)
		}
	}

	return fmt.Errorf("pgstore: unique key %q kept changing state", task.UniqueKey)
}

// ClaimTask implements queue.WorkerRepository.
// Expired leases compete with pending tasks by the instant they became visible.
func (s *Store) ClaimTask(ctx context.Context, workerID uuid.UUID, queues []string, lockDuration time.Duration) (*queue.Task, error) {
	now := s.now()
	row := s.pool.QueryRow(ctx, `
		WITH next AS (
			SELECT id FROM queue_tasks
			WHERE queue = ANY($1)
			  AND ((status = 'pending' AND scheduled_at <= $2)
			    OR (status = 'active' AND locked_until < $2))
			ORDER BY CASE WHEN status = 'active' THEN locked_until ELSE scheduled_at END, created_at, id
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		UPDATE queue_tasks t
		SET status = 'active', locked_until = $3, locked_by = $4
		FROM next
		WHERE t.id = next.id
		RETURNING `+claimedColumns,
		queues, now, now.Add(lockDuration), workerID,
	)

	task, err := scanTask(row)
	if pg.IsNotFoundError(err) {
		return nil, queue.ErrNoTaskToClaim
	}
	if err != nil {
		return nil, fmt.Errorf("pgstore: claim task: %w", err)
	}
	return task, nil
}

// CompleteTask implements queue.WorkerRepository.
func (s *Store) CompleteTask(ctx context.Context, taskID, workerID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE queue_tasks
		SET status = 'completed', processed_at = $3, locked_until = NULL, locked_by = NULL
		WHERE id = $1 AND status = 'active' AND locked_by = $2`,
		taskID, workerID, s.now(),
	)
	if err != nil {
		return fmt.Errorf("pgstore: complete task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return s.fenceError(ctx, taskID)
	}
	return nil
}

// FailTask implements queue.WorkerRepository.
func (s *Store) FailTask(ctx context.Context, taskID, workerID uuid.UUID, errorMsg string) (queue.TaskStatus, error) {
	return s.fail(ctx, taskID, workerID, errorMsg, false)
}

// KillTask implements queue.WorkerRepository.
func (s *Store) KillTask(ctx context.Context, taskID, workerID uuid.UUID, errorMsg string) error {
	_, err := s.fail(ctx, taskID, workerID, errorMsg, true)
	return err
}

func (s *Store) fail(ctx context.Context, taskID, workerID uuid.UUID, errorMsg string, kill bool) (queue.TaskStatus, error) {
	var status queue.TaskStatus

	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		task, err := scanTask(tx.QueryRow(ctx,
			`SELECT `+taskColumns+` FROM queue_tasks WHERE id = $1 FOR UPDATE`, taskID))
		if pg.IsNotFoundError(err) {
			return queue.ErrTaskNotFound
		}
		if err != nil {
			return err
		}
		if !task.OwnedBy(workerID) {
			return fmt.Errorf("%w: task %s", queue.ErrLeaseLost, taskID)
		}

		now := s.now()
		prev := task.Attempt
		task.Attempt++

		if !kill && task.Attempt < task.MaxAttempts {
			status = queue.TaskStatusPending
			_, err = tx.Exec(ctx, `
				UPDATE queue_tasks
				SET status = 'pending', attempt = $2, error = $3, scheduled_at = $4,
				    locked_until = NULL, locked_by = NULL
				WHERE id = $1`,
				taskID, task.Attempt, errorMsg, now.Add(s.backoff.Delay(prev)),
			)
			return err
		}

		status = queue.TaskStatusExhausted
		if _, err := tx.Exec(ctx, `
			UPDATE queue_tasks
			SET status = 'failed-exhausted', attempt = $2, error = $3, processed_at = $4,
			    locked_until = NULL, locked_by = NULL
			WHERE id = $1`,
			taskID, task.Attempt, errorMsg, now,
		); err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO queue_dead_letters (id, task_id, queue, task_name, payload, error, attempt, failed_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			uuid.New(), task.ID, task.Queue, task.TaskName, task.Payload, errorMsg, task.Attempt, now,
		)
		return err
	})
	if err != nil {
		if errors.Is(err, queue.ErrTaskNotFound) || errors.Is(err, queue.ErrLeaseLost) {
			return "", err
		}
		return "", fmt.Errorf("pgstore: fail task: %w", err)
	}

	return status, nil
}

// ExtendLock implements queue.WorkerRepository.
func (s *Store) ExtendLock(ctx context.Context, taskID, workerID uuid.UUID, duration time.Duration) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE queue_tasks SET locked_until = $3
		WHERE id = $1 AND status = 'active' AND locked_by = $2`,
		taskID, workerID, s.now().Add(duration),
	)
	if err != nil {
		return fmt.Errorf("pgstore: extend lock: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return s.fenceError(ctx, taskID)
	}
	return nil
}

// CancelTask implements queue.Canceler.
func (s *Store) CancelTask(ctx context.Context, taskID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE queue_tasks SET status = 'cancelled', processed_at = $2
		WHERE id = $1 AND status = 'pending'`,
		taskID, s.now(),
	)
	if err != nil {
		return fmt.Errorf("pgstore: cancel task: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var status string
	err = s.pool.QueryRow(ctx, `SELECT status FROM queue_tasks WHERE id = $1`, taskID).Scan(&status)
	if pg.IsNotFoundError(err) {
		return queue.ErrTaskNotFound
	}
	if err != nil {
		return fmt.Errorf("pgstore: cancel task: %w", err)
	}
	return fmt.Errorf("%w: task %s is %s", queue.ErrTaskNotCancellable, taskID, status)
}

// GetTask implements queue.Inspector.
func (s *Store) GetTask(ctx context.Context, taskID uuid.UUID) (*queue.Task, error) {
	task, err := scanTask(s.pool.QueryRow(ctx,
		`SELECT `+taskColumns+` FROM queue_tasks WHERE id = $1`, taskID))
	if pg.IsNotFoundError(err) {
		return nil, queue.ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("pgstore: get task: %w", err)
	}
	return task, nil
}

// ListDeadLetters implements queue.Inspector, newest first.
func (s *Store) ListDeadLetters(ctx context.Context, limit int) ([]queue.DeadLetter, error) {
	var lim *int
	if limit > 0 {
		lim = &limit
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, task_id, queue, task_name, payload, error, attempt, failed_at
		FROM queue_dead_letters
		ORDER BY failed_at DESC, id
		LIMIT $1`, lim)
	if err != nil {
		return nil, fmt.Errorf("pgstore: list dead letters: %w", err)
	}

	letters, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (queue.DeadLetter, error) {
		var dl queue.DeadLetter
		err := row.Scan(&dl.ID, &dl.TaskID, &dl.Queue, &dl.TaskName, &dl.Payload, &dl.Error, &dl.Attempt, &dl.FailedAt)
		dl.FailedAt = dl.FailedAt.UTC()
		return dl, err
	})
	if err != nil {
		return nil, fmt.Errorf("pgstore: list dead letters: %w", err)
	}
	return letters, nil
}

func (s *Store) fenceError(ctx context.Context, taskID uuid.UUID) error {
	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM queue_tasks WHERE id = $1)`, taskID).Scan(&exists); err != nil {
		return fmt.Errorf("pgstore: check task: %w", err)
	}
	if !exists {
		return queue.ErrTaskNotFound
	}
	return fmt.Errorf("%w: task %s", queue.ErrLeaseLost, taskID)
}

func scanTask(row pgx.Row) (*queue.Task, error) {
	var (
		t           queue.Task
		status      string
		lockedUntil *time.Time
		processedAt *time.Time
	)
	err := row.Scan(&t.ID, &t.Queue, &t.TaskName, &t.UniqueKey, &t.Payload, &status, &t.Attempt, &t.MaxAttempts,
		&t.ScheduledAt, &lockedUntil, &t.LockedBy, &processedAt, &t.Error, &t.CreatedAt)
	if err != nil {
		return nil, err
	}

	t.Status = queue.TaskStatus(status)
	t.ScheduledAt = t.ScheduledAt.UTC()
	t.CreatedAt = t.CreatedAt.UTC()
	if lockedUntil != nil {
		v := lockedUntil.UTC()
		t.LockedUntil = &v
	}
	if processedAt != nil {
		v := processedAt.UTC()
		t.ProcessedAt = &v
	}
	return &t, nil
}
