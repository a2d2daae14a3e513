// Package sqlitestore implements queue.Storage on a single SQLite file.
// Suited to one-box deployments; the connection pool is capped at one so
// every claim and ack is serialized by the database itself.
package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"

	"github.com/wavespoole/carwash/pkg/queue"
)

const schema = `
CREATE TABLE IF NOT EXISTS queue_tasks (
	id           TEXT PRIMARY KEY,
	queue        TEXT    NOT NULL,
	task_name    TEXT    NOT NULL,
	unique_key   TEXT,
	payload      BLOB    NOT NULL,
	status       TEXT    NOT NULL DEFAULT 'pending',
	attempt      INTEGER NOT NULL DEFAULT 0,
	max_attempts INTEGER NOT NULL,
	scheduled_at INTEGER NOT NULL,
	locked_until INTEGER,
	locked_by    TEXT,
	processed_at INTEGER,
	error        TEXT,
	created_at   INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_queue_tasks_pending ON queue_tasks(queue, status, scheduled_at);
CREATE INDEX IF NOT EXISTS idx_queue_tasks_lease ON queue_tasks(status, locked_until);
CREATE UNIQUE INDEX IF NOT EXISTS idx_queue_tasks_live_unique_key ON queue_tasks(unique_key)
	WHERE unique_key IS NOT NULL AND status IN ('pending', 'active');

CREATE TABLE IF NOT EXISTS queue_dead_letters (
	id        TEXT PRIMARY KEY,
	task_id   TEXT    NOT NULL,
	queue     TEXT    NOT NULL,
	task_name TEXT    NOT NULL,
	payload   BLOB    NOT NULL,
	error     TEXT    NOT NULL,
	attempt   INTEGER NOT NULL,
	failed_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_queue_dead_letters_failed_at ON queue_dead_letters(failed_at);
`

// Store is a SQLite-backed queue.Storage.
type Store struct {
	db      *sqlx.DB
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

// Open opens (creating if needed) the database at path and applies the schema.
func Open(ctx context.Context, path string, opts ...Option) (*Store, error) {
	dsn := "file:" + path + "?_journal_mode=WAL&_busy_timeout=5000&_txlock=immediate"
	db, err := sqlx.ConnectContext(ctx, "sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlitestore: apply schema: %w", err)
	}

	s := &Store{
		db:      db,
		now:     time.Now,
		backoff: queue.DefaultBackoff(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

var _ queue.Storage = (*Store)(nil)

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping reports whether the database answers.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

type taskRow struct {
	ID          string         `db:"id"`
	Queue       string         `db:"queue"`
	TaskName    string         `db:"task_name"`
	UniqueKey   sql.NullString `db:"unique_key"`
	Payload     []byte         `db:"payload"`
	Status      string         `db:"status"`
	Attempt     int            `db:"attempt"`
	MaxAttempts int            `db:"max_attempts"`
	ScheduledAt int64          `db:"scheduled_at"`
	LockedUntil sql.NullInt64  `db:"locked_until"`
	LockedBy    sql.NullString `db:"locked_by"`
	ProcessedAt sql.NullInt64  `db:"processed_at"`
	Error       sql.NullString `db:"error"`
	CreatedAt   int64          `db:"created_at"`
}

func (r taskRow) task() (*queue.Task, error) {
	id, err := uuid.Parse(r.ID)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: decode task id: %w", err)
	}

	t := &queue.Task{
		ID:          id,
		Queue:       r.Queue,
		TaskName:    r.TaskName,
		UniqueKey:   r.UniqueKey.String,
		Payload:     r.Payload,
		Status:      queue.TaskStatus(r.Status),
		Attempt:     int8(r.Attempt),
		MaxAttempts: int8(r.MaxAttempts),
		ScheduledAt: fromMillis(r.ScheduledAt),
		CreatedAt:   fromMillis(r.CreatedAt),
	}
	if r.LockedUntil.Valid {
		v := fromMillis(r.LockedUntil.Int64)
		t.LockedUntil = &v
	}
	if r.LockedBy.Valid {
		if wid, err := uuid.Parse(r.LockedBy.String); err == nil {
			t.LockedBy = &wid
		}
	}
	if r.ProcessedAt.Valid {
		v := fromMillis(r.ProcessedAt.Int64)
		t.ProcessedAt = &v
	}
	if r.Error.Valid {
		v := r.Error.String
		t.Error = &v
	}
	return t, nil
}

// CreateTask implements queue.EnqueuerRepository.
func (s *Store) CreateTask(ctx context.Context, task *queue.Task) error {
	if task == nil {
		return errors.New("task cannot be nil")
	}

	var uniqueKey any
	if task.UniqueKey != "" {
		uniqueKey = task.UniqueKey
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO queue_tasks (id, queue, task_name, unique_key, payload, status, attempt, max_attempts, scheduled_at, created_at)
		VALUES (?, ?, ?, ?, ?, 'pending', ?, ?, ?, ?)`,
		task.ID.String(), task.Queue, task.TaskName, uniqueKey, task.Payload,
		task.Attempt, task.MaxAttempts, task.ScheduledAt.UnixMilli(), task.CreatedAt.UnixMilli(),
	)
	if err == nil {
		return nil
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique && task.UniqueKey != "" {
		var existing string
		lookupErr := s.db.GetContext(ctx, &existing, `
			SELECT id FROM queue_tasks
			WHERE unique_key = ? AND status IN ('pending', 'active')`, task.UniqueKey)
		if lookupErr != nil {
			return fmt.Errorf("sqlitestore: lookup unique key: %w", lookupErr)
		}
		id, err := uuid.Parse(existing)
		if err != nil {
			return fmt.Errorf("sqlitestore: decode task id: %w", err)
		}
		task.ID = id
		return fmt.Errorf("%w: key %q", queue.ErrDuplicateTask, task.UniqueKey)
	}

	return fmt.Errorf("sqlitestore: insert task %s: %w", task.ID, err)
}

// ClaimTask implements queue.WorkerRepository.
func (s *Store) ClaimTask(ctx context.Context, workerID uuid.UUID, queues []string, lockDuration time.Duration) (*queue.Task, error) {
	if len(queues) == 0 {
		return nil, queue.ErrNoTaskToClaim
	}

	now := s.now().UnixMilli()
	query, args, err := sqlx.In(`
		UPDATE queue_tasks
		SET status = 'active', locked_until = ?, locked_by = ?
		WHERE id = (
			SELECT id FROM queue_tasks
			WHERE queue IN (?)
			  AND ((status = 'pending' AND scheduled_at <= ?)
			    OR (status = 'active' AND locked_until < ?))
			ORDER BY CASE WHEN status = 'active' THEN locked_until ELSE scheduled_at END, created_at, id
			LIMIT 1
		)
		RETURNING *`,
		now+lockDuration.Milliseconds(), workerID.String(), queues, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: build claim query: %w", err)
	}

	var row taskRow
	err = s.db.GetContext(ctx, &row, s.db.Rebind(query), args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, queue.ErrNoTaskToClaim
	}
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: claim task: %w", err)
	}
	return row.task()
}

// CompleteTask implements queue.WorkerRepository.
func (s *Store) CompleteTask(ctx context.Context, taskID, workerID uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE queue_tasks
		SET status = 'completed', processed_at = ?, locked_until = NULL, locked_by = NULL
		WHERE id = ? AND status = 'active' AND locked_by = ?`,
		s.now().UnixMilli(), taskID.String(), workerID.String(),
	)
	if err != nil {
		return fmt.Errorf("sqlitestore: complete task: %w", err)
	}
	return s.checkFenced(ctx, res, taskID)
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

func (s *Store) fail(ctx context.Context, taskID, workerID uuid.UUID, errorMsg string, kill bool) (status queue.TaskStatus, err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("sqlitestore: begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var row taskRow
	if err = tx.GetContext(ctx, &row, `SELECT * FROM queue_tasks WHERE id = ?`, taskID.String()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", queue.ErrTaskNotFound
		}
		return "", fmt.Errorf("sqlitestore: load task: %w", err)
	}
	task, err := row.task()
	if err != nil {
		return "", err
	}
	if !task.OwnedBy(workerID) {
		err = fmt.Errorf("%w: task %s", queue.ErrLeaseLost, taskID)
		return "", err
	}

	now := s.now()
	prev := task.Attempt
	task.Attempt++

	if !kill && task.Attempt < task.MaxAttempts {
		status = queue.TaskStatusPending
		_, err = tx.ExecContext(ctx, `
			UPDATE queue_tasks
			SET status = 'pending', attempt = ?, error = ?, scheduled_at = ?, locked_until = NULL, locked_by = NULL
			WHERE id = ?`,
			task.Attempt, errorMsg, now.Add(s.backoff.Delay(prev)).UnixMilli(), taskID.String(),
		)
	} else {
		status = queue.TaskStatusExhausted
		_, err = tx.ExecContext(ctx, `
			UPDATE queue_tasks
			SET status = 'failed-exhausted', attempt = ?, error = ?, processed_at = ?, locked_until = NULL, locked_by = NULL
			WHERE id = ?`,
			task.Attempt, errorMsg, now.UnixMilli(), taskID.String(),
		)
		if err == nil {
			_, err = tx.ExecContext(ctx, `
				INSERT INTO queue_dead_letters (id, task_id, queue, task_name, payload, error, attempt, failed_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				uuid.NewString(), task.ID.String(), task.Queue, task.TaskName, task.Payload, errorMsg, task.Attempt, now.UnixMilli(),
			)
		}
	}
	if err != nil {
		return "", fmt.Errorf("sqlitestore: fail task: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return "", fmt.Errorf("sqlitestore: commit: %w", err)
	}
	return status, nil
}

// ExtendLock implements queue.WorkerRepository.
func (s *Store) ExtendLock(ctx context.Context, taskID, workerID uuid.UUID, duration time.Duration) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE queue_tasks SET locked_until = ?
		WHERE id = ? AND status = 'active' AND locked_by = ?`,
		s.now().Add(duration).UnixMilli(), taskID.String(), workerID.String(),
	)
	if err != nil {
		return fmt.Errorf("sqlitestore: extend lock: %w", err)
	}
	return s.checkFenced(ctx, res, taskID)
}

// CancelTask implements queue.Canceler.
func (s *Store) CancelTask(ctx context.Context, taskID uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE queue_tasks SET status = 'cancelled', processed_at = ?
		WHERE id = ? AND status = 'pending'`,
		s.now().UnixMilli(), taskID.String(),
	)
	if err != nil {
		return fmt.Errorf("sqlitestore: cancel task: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}

	var status string
	err = s.db.GetContext(ctx, &status, `SELECT status FROM queue_tasks WHERE id = ?`, taskID.String())
	if errors.Is(err, sql.ErrNoRows) {
		return queue.ErrTaskNotFound
	}
	if err != nil {
		return fmt.Errorf("sqlitestore: cancel task: %w", err)
	}
	return fmt.Errorf("%w: task %s is %s", queue.ErrTaskNotCancellable, taskID, status)
}

// GetTask implements queue.Inspector.
func (s *Store) GetTask(ctx context.Context, taskID uuid.UUID) (*queue.Task, error) {
	var row taskRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM queue_tasks WHERE id = ?`, taskID.String())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, queue.ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: get task: %w", err)
	}
	return row.task()
}

type deadLetterRow struct {
	ID       string `db:"id"`
	TaskID   string `db:"task_id"`
	Queue    string `db:"queue"`
	TaskName string `db:"task_name"`
	Payload  []byte `db:"payload"`
	Error    string `db:"error"`
	Attempt  int    `db:"attempt"`
	FailedAt int64  `db:"failed_at"`
}

// ListDeadLetters implements queue.Inspector, newest first.
func (s *Store) ListDeadLetters(ctx context.Context, limit int) ([]queue.DeadLetter, error) {
	if limit <= 0 {
		limit = -1
	}

	var rows []deadLetterRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT * FROM queue_dead_letters
		ORDER BY failed_at DESC, rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: list dead letters: %w", err)
	}

	out := make([]queue.DeadLetter, 0, len(rows))
	for _, r := range rows {
		id, _ := uuid.Parse(r.ID)
		taskID, err := uuid.Parse(r.TaskID)
		if err != nil {
			return nil, fmt.Errorf("sqlitestore: decode dead letter: %w", err)
		}
		out = append(out, queue.DeadLetter{
			ID:       id,
			TaskID:   taskID,
			Queue:    r.Queue,
			TaskName: r.TaskName,
			Payload:  r.Payload,
			Error:    r.Error,
			Attempt:  int8(r.Attempt),
			FailedAt: fromMillis(r.FailedAt),
		})
	}
	return out, nil
}

func (s *Store) checkFenced(ctx context.Context, res sql.Result, taskID uuid.UUID) error {
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		return nil
	}

	var exists bool
	if err := s.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM queue_tasks WHERE id = ?)`, taskID.String()); err != nil {
		return fmt.Errorf("sqlitestore: check task: %w", err)
	}
	if !exists {
		return queue.ErrTaskNotFound
	}
	return fmt.Errorf("%w: task %s", queue.ErrLeaseLost, taskID)
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
