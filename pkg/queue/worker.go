package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// WorkerMetrics receives task outcomes.
type WorkerMetrics interface {
	IncCompleted()
	IncRetried()
	IncExhausted()
}

type nopMetrics struct{}

func (nopMetrics) IncCompleted() {}
func (nopMetrics) IncRetried()   {}
func (nopMetrics) IncExhausted() {}

// Worker processes tasks from the queue
type Worker struct {
	repo     WorkerRepository
	handlers map[string]Handler
	queues   []string
	workerID uuid.UUID
	sem      chan struct{}
	wg       sync.WaitGroup
	mu       sync.RWMutex
	stopMu   sync.Mutex // Protects stopping state and WaitGroup operations

	// Configuration
	pullInterval time.Duration
	lockTimeout  time.Duration
	taskTimeout  time.Duration
	shutdownWait time.Duration
	logger       *slog.Logger
	metrics      WorkerMetrics

	// State management
	ctx      context.Context
	cancel   context.CancelFunc
	stopping atomic.Bool
}

// NewWorker creates a new task worker
func NewWorker(repo WorkerRepository, opts ...WorkerOption) (*Worker, error) {
	if repo == nil {
		return nil, ErrRepositoryNil
	}

	options := &workerOptions{
		queues:             []string{DefaultQueueName},
		pullInterval:       5 * time.Second,
		lockTimeout:        5 * time.Minute,
		maxConcurrentTasks: 1,
		logger:             slog.Default(),
		metrics:            nopMetrics{},
	}

	for _, opt := range opts {
		opt(options)
	}
	if options.taskTimeout == 0 {
		options.taskTimeout = options.lockTimeout
	}

	return &Worker{
		repo:         repo,
		handlers:     make(map[string]Handler),
		queues:       options.queues,
		workerID:     uuid.New(),
		sem:          make(chan struct{}, options.maxConcurrentTasks),
		pullInterval: options.pullInterval,
		lockTimeout:  options.lockTimeout,
		taskTimeout:  options.taskTimeout,
		shutdownWait: options.shutdownTimeout,
		logger:       options.logger,
		metrics:      options.metrics,
	}, nil
}

// ID returns the identifier this worker claims tasks under.
func (w *Worker) ID() uuid.UUID {
	return w.workerID
}

// RegisterHandler registers a single task handler
func (w *Worker) RegisterHandler(handler Handler) error {
	if handler == nil {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	w.handlers[handler.Name()] = handler
	return nil
}

// RegisterHandlers registers multiple task handlers
func (w *Worker) RegisterHandlers(handlers ...Handler) error {
	for _, h := range handlers {
		if err := w.RegisterHandler(h); err != nil {
			return err
		}
	}
	return nil
}

// Start begins processing tasks in the background
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.cancel != nil {
		w.mu.Unlock()
		return ErrWorkerStarted
	}

	if len(w.handlers) == 0 {
		w.mu.Unlock()
		return ErrNoHandlers
	}

	w.ctx, w.cancel = context.WithCancel(ctx)
	w.mu.Unlock()

	w.stopping.Store(false)

	go w.run()

	w.logger.Info("worker started",
		slog.String("worker_id", w.workerID.String()),
		slog.Any("queues", w.queues),
		slog.Int("max_concurrent", cap(w.sem)))

	return nil
}

// Stop gracefully shuts down the worker, waiting for in-flight tasks to finish
func (w *Worker) Stop() error {
	w.mu.Lock()
	if w.cancel == nil {
		w.mu.Unlock()
		return ErrWorkerNotStarted
	}

	w.stopMu.Lock()
	w.stopping.Store(true)
	w.stopMu.Unlock()

	cancel := w.cancel
	w.cancel = nil
	w.mu.Unlock()

	cancel()

	w.logger.Info("worker stopping, waiting for active tasks to complete",
		slog.String("worker_id", w.workerID.String()))

	if !w.waitActive() {
		w.logger.Warn("worker shutdown timed out, abandoning active tasks",
			slog.String("worker_id", w.workerID.String()),
			slog.Duration("timeout", w.shutdownWait))
		return ErrShutdownTimeout
	}

	w.logger.Info("worker stopped",
		slog.String("worker_id", w.workerID.String()))

	return nil
}

// waitActive waits for in-flight tasks and reports whether they all finished
// within the shutdown timeout. Zero waits indefinitely.
func (w *Worker) waitActive() bool {
	if w.shutdownWait <= 0 {
		w.wg.Wait()
		return true
	}
	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(w.shutdownWait):
		return false
	}
}

// Run starts the worker and returns a function suitable for errgroup
func (w *Worker) Run(ctx context.Context) func() error {
	return func() error {
		if err := w.Start(ctx); err != nil {
			return err
		}

		<-ctx.Done()

		return w.Stop()
	}
}

// ProcessNext claims one visible task and runs it synchronously.
// It reports whether a task was claimed. The returned error covers storage
// failures and ErrHandlerNotFound; handler errors are recorded on the task instead.
func (w *Worker) ProcessNext(ctx context.Context) (bool, error) {
	if w.handlerCount() == 0 {
		return false, ErrNoHandlers
	}
	return w.pullAndProcess(ctx)
}

func (w *Worker) handlerCount() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.handlers)
}

// run is the main processing loop
func (w *Worker) run() {
	ticker := time.NewTicker(w.pullInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			select {
			case w.sem <- struct{}{}:
				// Don't add to the WaitGroup once Stop has started waiting on it
				w.stopMu.Lock()
				if w.stopping.Load() {
					w.stopMu.Unlock()
					<-w.sem
					return
				}
				w.wg.Add(1)
				w.stopMu.Unlock()

				go func() {
					defer w.wg.Done()
					defer func() { <-w.sem }()

					if _, err := w.pullAndProcess(w.ctx); err != nil && !errors.Is(err, ErrHandlerNotFound) {
						if w.ctx.Err() != nil && errors.Is(err, context.Canceled) {
							return
						}
						w.logger.Error("failed to process task",
							slog.String("worker_id", w.workerID.String()),
							slog.String("error", err.Error()))
					}
				}()
			default:
				w.logger.Debug("all worker slots busy, skipping tick",
					slog.String("worker_id", w.workerID.String()))
			}
		}
	}
}

// pullAndProcess claims a task and processes it
func (w *Worker) pullAndProcess(ctx context.Context) (bool, error) {
	task, err := w.repo.ClaimTask(ctx, w.workerID, w.queues, w.lockTimeout)
	if err != nil {
		if errors.Is(err, ErrNoTaskToClaim) {
			return false, nil
		}
		return false, fmt.Errorf("failed to claim task: %w", err)
	}
	if task == nil {
		return false, nil
	}

	w.logger.Debug("claimed task",
		slog.String("worker_id", w.workerID.String()),
		slog.String("task_id", task.ID.String()),
		slog.String("task_name", task.TaskName),
		slog.String("queue", task.Queue),
		slog.Int("attempt", int(task.Attempt)))

	// Results are recorded even when the worker is shutting down mid-task.
	return true, w.processTask(context.WithoutCancel(ctx), task)
}

// processTask executes a task with its handler and records the outcome
func (w *Worker) processTask(ctx context.Context, task *Task) error {
	start := time.Now()

	w.mu.RLock()
	handler, ok := w.handlers[task.TaskName]
	w.mu.RUnlock()

	if !ok {
		return w.handleMissingHandler(ctx, task)
	}

	handlerCtx, cancel := context.WithTimeout(ctx, w.taskTimeout)
	defer cancel()

	stopHeartbeat := w.heartbeat(handlerCtx, cancel, task)
	err := w.safeHandle(handlerCtx, handler, task)
	stopHeartbeat()
	duration := time.Since(start)

	if err != nil {
		return w.handleTaskFailure(ctx, task, err, duration)
	}

	return w.handleTaskSuccess(ctx, task, duration)
}

// safeHandle turns a handler panic into an ordinary failure
func (w *Worker) safeHandle(ctx context.Context, handler Handler, task *Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in handler: %v", r)
			w.logger.Error("handler panicked",
				slog.String("worker_id", w.workerID.String()),
				slog.String("task_id", task.ID.String()),
				slog.String("task_name", task.TaskName),
				slog.Any("panic", r))
		}
	}()
	return handler.Handle(ctx, task.Payload)
}

// heartbeat renews the lease while the handler runs. Losing the lease cancels
// the handler context. The returned func stops renewal and waits for it to exit.
func (w *Worker) heartbeat(ctx context.Context, cancel context.CancelFunc, task *Task) func() {
	interval := w.lockTimeout / 3
	if interval <= 0 {
		return func() {}
	}

	done := make(chan struct{})
	exited := make(chan struct{})

	go func() {
		defer close(exited)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				err := w.repo.ExtendLock(ctx, task.ID, w.workerID, w.lockTimeout)
				if err == nil {
					continue
				}
				w.logger.Warn("failed to extend task lease",
					slog.String("worker_id", w.workerID.String()),
					slog.String("task_id", task.ID.String()),
					slog.String("error", err.Error()))
				if errors.Is(err, ErrLeaseLost) || errors.Is(err, ErrTaskNotFound) {
					cancel()
					return
				}
			}
		}
	}()

	return func() {
		close(done)
		<-exited
	}
}

// handleMissingHandler exhausts the task at once: retrying without a handler cannot succeed
func (w *Worker) handleMissingHandler(ctx context.Context, task *Task) error {
	w.logger.Error("no handler registered for task type",
		slog.String("worker_id", w.workerID.String()),
		slog.String("task_id", task.ID.String()),
		slog.String("task_name", task.TaskName))

	errorMsg := "no handler registered for task type: " + task.TaskName
	if err := w.repo.KillTask(ctx, task.ID, w.workerID, errorMsg); err != nil {
		return fmt.Errorf("failed to exhaust task %s: %w", task.ID, err)
	}
	w.metrics.IncExhausted()

	return ErrHandlerNotFound
}

// handleTaskFailure records the failure. The storage decides between a
// backoff retry and exhaustion; permanent errors skip the retry.
func (w *Worker) handleTaskFailure(ctx context.Context, task *Task, execErr error, duration time.Duration) error {
	w.logger.Error("task failed",
		slog.String("worker_id", w.workerID.String()),
		slog.String("task_id", task.ID.String()),
		slog.String("task_name", task.TaskName),
		slog.Int("attempt", int(task.Attempt)+1),
		slog.Int("max_attempts", int(task.MaxAttempts)),
		slog.Duration("duration", duration),
		slog.String("error", execErr.Error()))

	status := TaskStatusExhausted
	if IsPermanent(execErr) {
		if err := w.repo.KillTask(ctx, task.ID, w.workerID, execErr.Error()); err != nil {
			return fmt.Errorf("failed to exhaust task %s: %w", task.ID, err)
		}
	} else {
		var err error
		status, err = w.repo.FailTask(ctx, task.ID, w.workerID, execErr.Error())
		if err != nil {
			return fmt.Errorf("failed to update task %s status to failed: %w", task.ID, err)
		}
	}

	if status == TaskStatusExhausted {
		w.metrics.IncExhausted()
		w.logger.Warn("task exhausted, moved to dead letters",
			slog.String("worker_id", w.workerID.String()),
			slog.String("task_id", task.ID.String()),
			slog.String("task_name", task.TaskName),
			slog.String("error", execErr.Error()))
		return nil
	}

	w.metrics.IncRetried()
	return nil
}

// handleTaskSuccess processes successful task completion
func (w *Worker) handleTaskSuccess(ctx context.Context, task *Task, duration time.Duration) error {
	if err := w.repo.CompleteTask(ctx, task.ID, w.workerID); err != nil {
		return fmt.Errorf("failed to mark task %s as completed: %w", task.ID, err)
	}
	w.metrics.IncCompleted()

	w.logger.Info("task completed successfully",
		slog.String("worker_id", w.workerID.String()),
		slog.String("task_id", task.ID.String()),
		slog.String("task_name", task.TaskName),
		slog.String("queue", task.Queue),
		slog.Duration("duration", duration))

	return nil
}

// WorkerInfo returns information about the worker
func (w *Worker) WorkerInfo() (id string, hostname string, pid int) {
	hostname, _ = os.Hostname()
	return w.workerID.String(), hostname, os.Getpid()
}
