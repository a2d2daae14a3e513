// Package redisstore implements queue.Storage on Redis. Every state transition
// runs as a single Lua script, so concurrent workers never observe a half-applied claim.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/wavespoole/carwash/pkg/queue"
)

// DefaultPrefix namespaces every key the store writes.
const DefaultPrefix = "carwash:queue"

// Store is a Redis-backed queue.Storage.
type Store struct {
	client  redis.UniversalClient
	prefix  string
	now     queue.Clock
	backoff queue.BackoffPolicy
}

// Option configures a Store.
type Option func(*Store)

// WithPrefix changes the key namespace.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

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

// New wraps an existing client. The caller keeps ownership of the client.
func New(client redis.UniversalClient, opts ...Option) *Store {
	s := &Store{
		client:  client,
		prefix:  DefaultPrefix,
		now:     time.Now,
		backoff: queue.DefaultBackoff(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ queue.Storage = (*Store)(nil)

// Close is a no-op; the client belongs to the caller.
func (s *Store) Close() error { return nil }

func (s *Store) taskKey(id uuid.UUID) string { return s.prefix + ":task:" + id.String() }
func (s *Store) pendingKey(q string) string  { return s.prefix + ":pending:" + q }
func (s *Store) uniqueKey() string           { return s.prefix + ":unique" }
func (s *Store) deadKey() string             { return s.prefix + ":dead" }

// CreateTask implements queue.EnqueuerRepository.
func (s *Store) CreateTask(ctx context.Context, task *queue.Task) error {
	if task == nil {
		return errors.New("task cannot be nil")
	}

	scheduled := strconv.FormatInt(task.ScheduledAt.UnixMilli(), 10)
	args := []any{
		s.prefix, task.ID.String(), task.UniqueKey, scheduled,
		"id", task.ID.String(),
		"queue", task.Queue,
		"task_name", task.TaskName,
		"unique_key", task.UniqueKey,
		"payload", string(task.Payload),
		"status", string(queue.TaskStatusPending),
		"attempt", strconv.Itoa(int(task.Attempt)),
		"max_attempts", strconv.Itoa(int(task.MaxAttempts)),
		"scheduled_at", scheduled,
		"created_at", strconv.FormatInt(task.CreatedAt.UnixMilli(), 10),
	}

	res, err := createScript.Run(ctx, s.client,
		[]string{s.taskKey(task.ID), s.pendingKey(task.Queue), s.uniqueKey()}, args...).StringSlice()
	if err != nil {
		return fmt.Errorf("redisstore: create task: %w", err)
	}

	switch res[0] {
	case "OK":
		return nil
	case "DUP":
		existing, err := uuid.Parse(res[1])
		if err != nil {
			return fmt.Errorf("redisstore: parse existing id: %w", err)
		}
		task.ID = existing
		return fmt.Errorf("%w: key %q", queue.ErrDuplicateTask, task.UniqueKey)
	default:
		return fmt.Errorf("task with ID %s already exists", task.ID)
	}
}

// ClaimTask implements queue.WorkerRepository.
func (s *Store) ClaimTask(ctx context.Context, workerID uuid.UUID, queues []string, lockDuration time.Duration) (*queue.Task, error) {
	args := make([]any, 0, 4+len(queues))
	args = append(args, s.prefix, s.now().UnixMilli(), lockDuration.Milliseconds(), workerID.String())
	for _, q := range queues {
		args = append(args, q)
	}

	res, err := claimScript.Run(ctx, s.client, nil, args...).StringSlice()
	if errors.Is(err, redis.Nil) {
		return nil, queue.ErrNoTaskToClaim
	}
	if err != nil {
		return nil, fmt.Errorf("redisstore: claim task: %w", err)
	}
	if len(res) == 0 {
		return nil, queue.ErrNoTaskToClaim
	}

	return decodeTask(pairs(res))
}

// CompleteTask implements queue.WorkerRepository.
func (s *Store) CompleteTask(ctx context.Context, taskID, workerID uuid.UUID) error {
	res, err := completeScript.Run(ctx, s.client, []string{s.taskKey(taskID)},
		s.prefix, workerID.String(), s.now().UnixMilli()).Text()
	if err != nil {
		return fmt.Errorf("redisstore: complete task: %w", err)
	}
	return fenceError(res, taskID)
}

// FailTask implements queue.WorkerRepository. The retry delay comes from the
// configured policy, evaluated for the attempt count before this failure.
func (s *Store) FailTask(ctx context.Context, taskID, workerID uuid.UUID, errorMsg string) (queue.TaskStatus, error) {
	attempt, err := s.client.HGet(ctx, s.taskKey(taskID), "attempt").Int()
	if errors.Is(err, redis.Nil) {
		return "", queue.ErrTaskNotFound
	}
	if err != nil {
		return "", fmt.Errorf("redisstore: read attempt: %w", err)
	}

	now := s.now()
	retryAt := now.Add(s.backoff.Delay(int8(attempt)))
	return s.fail(ctx, taskID, workerID, errorMsg, now, retryAt, false)
}

// KillTask implements queue.WorkerRepository.
func (s *Store) KillTask(ctx context.Context, taskID, workerID uuid.UUID, errorMsg string) error {
	now := s.now()
	_, err := s.fail(ctx, taskID, workerID, errorMsg, now, now, true)
	return err
}

func (s *Store) fail(ctx context.Context, taskID, workerID uuid.UUID, errorMsg string, now, retryAt time.Time, kill bool) (queue.TaskStatus, error) {
	killArg := "0"
	if kill {
		killArg = "1"
	}

	res, err := failScript.Run(ctx, s.client, []string{s.taskKey(taskID), s.deadKey()},
		s.prefix, workerID.String(), now.UnixMilli(), errorMsg, retryAt.UnixMilli(), uuid.NewString(), killArg).Text()
	if err != nil {
		return "", fmt.Errorf("redisstore: fail task: %w", err)
	}

	switch status := queue.TaskStatus(res); status {
	case queue.TaskStatusPending, queue.TaskStatusExhausted:
		return status, nil
	default:
		return "", fenceError(res, taskID)
	}
}

// ExtendLock implements queue.WorkerRepository.
func (s *Store) ExtendLock(ctx context.Context, taskID, workerID uuid.UUID, duration time.Duration) error {
	res, err := extendScript.Run(ctx, s.client, []string{s.taskKey(taskID)},
		s.prefix, workerID.String(), s.now().Add(duration).UnixMilli()).Text()
	if err != nil {
		return fmt.Errorf("redisstore: extend lock: %w", err)
	}
	return fenceError(res, taskID)
}

// CancelTask implements queue.Canceler.
func (s *Store) CancelTask(ctx context.Context, taskID uuid.UUID) error {
	res, err := cancelScript.Run(ctx, s.client, []string{s.taskKey(taskID)},
		s.prefix, s.now().UnixMilli()).Text()
	if err != nil {
		return fmt.Errorf("redisstore: cancel task: %w", err)
	}

	switch res {
	case "OK":
		return nil
	case "NOT_FOUND":
		return queue.ErrTaskNotFound
	default:
		return fmt.Errorf("%w: task %s is %s", queue.ErrTaskNotCancellable, taskID, res)
	}
}

// GetTask implements queue.Inspector.
func (s *Store) GetTask(ctx context.Context, taskID uuid.UUID) (*queue.Task, error) {
	fields, err := s.client.HGetAll(ctx, s.taskKey(taskID)).Result()
	if err != nil {
		return nil, fmt.Errorf("redisstore: get task: %w", err)
	}
	if len(fields) == 0 {
		return nil, queue.ErrTaskNotFound
	}
	return decodeTask(fields)
}

type deadLetterRecord struct {
	ID       string  `json:"id"`
	TaskID   string  `json:"task_id"`
	Queue    string  `json:"queue"`
	TaskName string  `json:"task_name"`
	Payload  string  `json:"payload"`
	Error    string  `json:"error"`
	Attempt  float64 `json:"attempt"`
	FailedAt float64 `json:"failed_at"`
}

// ListDeadLetters implements queue.Inspector, newest first.
func (s *Store) ListDeadLetters(ctx context.Context, limit int) ([]queue.DeadLetter, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit) - 1
	}

	raw, err := s.client.LRange(ctx, s.deadKey(), 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("redisstore: list dead letters: %w", err)
	}

	out := make([]queue.DeadLetter, 0, len(raw))
	for _, item := range raw {
		var rec deadLetterRecord
		if err := json.Unmarshal([]byte(item), &rec); err != nil {
			return nil, fmt.Errorf("redisstore: decode dead letter: %w", err)
		}
		id, _ := uuid.Parse(rec.ID)
		taskID, err := uuid.Parse(rec.TaskID)
		if err != nil {
			return nil, fmt.Errorf("redisstore: decode dead letter task id: %w", err)
		}
		out = append(out, queue.DeadLetter{
			ID:       id,
			TaskID:   taskID,
			Queue:    rec.Queue,
			TaskName: rec.TaskName,
			Payload:  []byte(rec.Payload),
			Error:    rec.Error,
			Attempt:  int8(rec.Attempt),
			FailedAt: time.UnixMilli(int64(rec.FailedAt)).UTC(),
		})
	}
	return out, nil
}

func fenceError(res string, taskID uuid.UUID) error {
	switch res {
	case "OK":
		return nil
	case "NOT_FOUND":
		return queue.ErrTaskNotFound
	case "LEASE_LOST":
		return fmt.Errorf("%w: task %s", queue.ErrLeaseLost, taskID)
	default:
		return fmt.Errorf("redisstore: unexpected script reply %q", res)
	}
}

func pairs(flat []string) map[string]string {
	m := make(map[string]string, len(flat)/2)
	for i := 0; i+1 < len(flat); i += 2 {
		m[flat[i]] = flat[i+1]
	}
	return m
}

func decodeTask(f map[string]string) (*queue.Task, error) {
	id, err := uuid.Parse(f["id"])
	if err != nil {
		return nil, fmt.Errorf("redisstore: decode task id: %w", err)
	}

	task := &queue.Task{
		ID:        id,
		Queue:     f["queue"],
		TaskName:  f["task_name"],
		UniqueKey: f["unique_key"],
		Payload:   []byte(f["payload"]),
		Status:    queue.TaskStatus(f["status"]),
	}

	attempt, _ := strconv.Atoi(f["attempt"])
	maxAttempts, _ := strconv.Atoi(f["max_attempts"])
	task.Attempt = int8(attempt)
	task.MaxAttempts = int8(maxAttempts)
	task.ScheduledAt = msTime(f["scheduled_at"])
	task.CreatedAt = msTime(f["created_at"])

	if v, ok := f["locked_until"]; ok && v != "" {
		t := msTime(v)
		task.LockedUntil = &t
	}
	if v, ok := f["locked_by"]; ok && v != "" {
		if wid, err := uuid.Parse(v); err == nil {
			task.LockedBy = &wid
		}
	}
	if v, ok := f["processed_at"]; ok && v != "" {
		t := msTime(v)
		task.ProcessedAt = &t
	}
	if v, ok := f["error"]; ok {
		task.Error = &v
	}

	return task, nil
}

func msTime(v string) time.Time {
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		f, ferr := strconv.ParseFloat(v, 64)
		if ferr != nil {
			return time.Time{}
		}
		ms = int64(f)
	}
	return time.UnixMilli(ms).UTC()
}
