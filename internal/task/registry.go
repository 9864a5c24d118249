// Package task tracks asynchronous pipeline runs.
package task

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jmylchreest/leilao/internal/domain"
	"github.com/jmylchreest/leilao/internal/logger"
)

// Runner executes one pipeline run.
type Runner interface {
	Run(ctx context.Context, params domain.RunParams) (*domain.Report, error)
}

// ResultStore persists completed reports. It is optional.
type ResultStore interface {
	WriteResult(taskID string, r *domain.Report) error
	RemoveResult(taskID string) error
}

// Registry owns the task map. Each task is bound to exactly one run; a
// deleted task's run is not cancelled, its outcome is discarded.
type Registry struct {
	runner  Runner
	results ResultStore

	mu     sync.RWMutex
	tasks  map[string]*domain.Task
	closed bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	now   func() time.Time
	newID func() string
}

// NewRegistry creates a registry. results may be nil.
func NewRegistry(runner Runner, results ResultStore) *Registry {
	ctx, cancel := context.WithCancel(context.Background())
	return &Registry{
		runner:  runner,
		results: results,
		tasks:   make(map[string]*domain.Task),
		ctx:     ctx,
		cancel:  cancel,
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

// ErrClosed is returned by Submit once the registry has been shut down.
var ErrClosed = errors.New("task registry is shut down")

// Submit registers a pending task for params and starts it in the
// background. It returns without waiting for the run.
func (r *Registry) Submit(params domain.RunParams) (domain.Task, error) {
	params = params.Normalize()
	now := r.now()
	t := &domain.Task{
		ID:        r.newID(),
		Status:    domain.TaskPending,
		CreatedAt: now,
		UpdatedAt: now,
		Params:    params,
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return domain.Task{}, ErrClosed
	}
	r.tasks[t.ID] = t
	snapshot := *t
	r.wg.Add(1)
	r.mu.Unlock()

	logger.Info("task submitted", "task_id", t.ID, "estado", params.State, "cidade", params.City)

	go r.execute(t.ID, params)
	return snapshot, nil
}

func (r *Registry) execute(id string, params domain.RunParams) {
	defer r.wg.Done()
	log := logger.With("task_id", id)

	if !r.update(id, func(t *domain.Task) { t.Status = domain.TaskRunning }) {
		return
	}
	log.Info("task running")

	report, err := r.runner.Run(r.ctx, params)
	if err != nil {
		msg := FailureMessage(err)
		r.update(id, func(t *domain.Task) {
			t.Status = domain.TaskFailed
			t.Error = msg
		})
		log.Error("task failed", "error", msg)
		return
	}

	if r.results != nil {
		if werr := r.results.WriteResult(id, report); werr != nil {
			log.Warn("failed to persist task result", "error", werr)
		}
	}
	kept := r.update(id, func(t *domain.Task) {
		t.Status = domain.TaskCompleted
		t.Result = report
	})
	if !kept && r.results != nil {
		_ = r.results.RemoveResult(id)
	}
	log.Info("task completed", "approved", report.Approved, "analyzed", report.Analyzed)
}

// update applies fn to the task under the write lock. It reports false when
// the task was deleted meanwhile.
func (r *Registry) update(id string, fn func(*domain.Task)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok {
		logger.Debug("task deleted before update, discarding", "task_id", id)
		return false
	}
	fn(t)
	t.UpdatedAt = r.now()
	return true
}

// Get returns a snapshot of the task.
func (r *Registry) Get(id string) (domain.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tasks[id]
	if !ok {
		return domain.Task{}, fmt.Errorf("task %s: %w", id, domain.ErrNotFound)
	}
	return *t, nil
}

// Result returns the report of a completed task. A pending or running task
// yields domain.ErrNotReady; a failed task yields domain.ErrTaskFailed
// carrying the stored cause.
func (r *Registry) Result(id string) (*domain.Report, error) {
	t, err := r.Get(id)
	if err != nil {
		return nil, err
	}
	switch t.Status {
	case domain.TaskCompleted:
		return t.Result, nil
	case domain.TaskFailed:
		return nil, fmt.Errorf("%w: %s", domain.ErrTaskFailed, t.Error)
	default:
		return nil, fmt.Errorf("%w: task is %s", domain.ErrNotReady, t.Status)
	}
}

// Delete forgets the task and removes its persisted result.
func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	_, ok := r.tasks[id]
	delete(r.tasks, id)
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("task %s: %w", id, domain.ErrNotFound)
	}

	if r.results != nil {
		if err := r.results.RemoveResult(id); err != nil {
			return fmt.Errorf("remove result: %w", err)
		}
	}
	logger.Info("task deleted", "task_id", id)
	return nil
}

// List returns snapshots of all tasks ordered by creation time.
func (r *Registry) List() []domain.Task {
	r.mu.RLock()
	out := make([]domain.Task, 0, len(r.tasks))
	for _, t := range r.tasks {
		out = append(out, *t)
	}
	r.mu.RUnlock()

	slices.SortFunc(out, func(a, b domain.Task) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out
}

// Active returns the number of tasks not yet finished.
func (r *Registry) Active() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, t := range r.tasks {
		if !t.Status.Terminal() {
			n++
		}
	}
	return n
}

// Wait blocks until every submitted run has returned.
func (r *Registry) Wait() {
	r.wg.Wait()
}

// Shutdown cancels in-flight runs and waits for them until ctx is done.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	r.cancel()
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// FailureMessage renders a run error for the task view. Stage timeouts get a
// distinct message.
func FailureMessage(err error) string {
	var ste *domain.StageTimeoutError
	if errors.As(err, &ste) {
		return fmt.Sprintf("timeout: stage %s exceeded %s", ste.Stage, ste.Limit)
	}
	var se domain.StageError
	if errors.As(err, &se) {
		return fmt.Sprintf("stage %s failed: %s", se.Stage, se.Message)
	}
	return err.Error()
}
