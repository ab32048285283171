package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
)

// ErrJobNotFound indicates the requested job id does not exist.
var ErrJobNotFound = errors.New("job not found")

// ErrSupervisorClosed indicates the supervisor is shutting down and no
// longer accepts submissions.
var ErrSupervisorClosed = errors.New("job supervisor is closed")

const defaultMaxConcurrent = 4

// Supervisor owns every job's lifecycle. Submissions with the same
// (key, scope) queue behind each other FIFO; distinct scopes run
// concurrently, bounded by a global semaphore.
type Supervisor struct {
	mu     sync.Mutex
	jobs   map[string]*job
	queues map[string][]*job

	sem    *semaphore.Weighted
	logger *slog.Logger

	baseCtx    context.Context
	baseCancel context.CancelFunc
	wg         sync.WaitGroup
	closed     bool
}

// NewSupervisor creates a supervisor running at most maxConcurrent
// jobs at once (<= 0 selects the default).
func NewSupervisor(maxConcurrent int64, logger *slog.Logger) *Supervisor {
	if logger == nil {
		logger = slog.Default()
	}
	if maxConcurrent <= 0 {
		maxConcurrent = defaultMaxConcurrent
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Supervisor{
		jobs:       make(map[string]*job),
		queues:     make(map[string][]*job),
		sem:        semaphore.NewWeighted(maxConcurrent),
		logger:     logger,
		baseCtx:    ctx,
		baseCancel: cancel,
	}
}

func queueKey(req Request) string {
	return string(req.Key) + "|" + req.Scope
}

// Submit creates a Pending job for the request and schedules it
// without blocking the caller.
func (s *Supervisor) Submit(req Request) (Handle, error) {
	if req.Runner == nil {
		return Handle{}, fmt.Errorf("job request for %s has no runner", req.Key)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Handle{}, ErrSupervisorClosed
	}

	ctx, cancel := context.WithCancel(s.baseCtx)
	j := &job{
		id:        uuid.New().String(),
		key:       req.Key,
		scope:     req.Scope,
		state:     StatePending,
		createdAt: time.Now(),
		runner:    req.Runner,
		ctx:       ctx,
		cancel:    cancel,
	}
	s.jobs[j.id] = j

	qk := queueKey(req)
	s.queues[qk] = append(s.queues[qk], j)
	if len(s.queues[qk]) == 1 {
		s.wg.Add(1)
		go s.runScope(qk)
	}

	s.logger.Info("job submitted", "jobID", j.id, "key", j.key, "scope", j.scope)
	return Handle{JobID: j.id, Key: j.key, Scope: j.scope, State: StatePending}, nil
}

// runScope drains one scope queue, running its jobs strictly in order.
// The pop and the empty-queue cleanup happen in one critical section:
// Submit must never observe a present-but-empty queue entry, or it
// would spawn a second worker for the scope.
func (s *Supervisor) runScope(qk string) {
	defer s.wg.Done()
	for {
		s.mu.Lock()
		j := s.queues[qk][0]
		s.mu.Unlock()

		s.runJob(j)

		s.mu.Lock()
		s.queues[qk] = s.queues[qk][1:]
		if len(s.queues[qk]) == 0 {
			delete(s.queues, qk)
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()
	}
}

func (s *Supervisor) runJob(j *job) {
	// A job cancelled while Pending never runs.
	s.mu.Lock()
	if j.state.Terminal() {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	if err := s.sem.Acquire(j.ctx, 1); err != nil {
		s.finish(j, Summary{}, err)
		return
	}
	defer s.sem.Release(1)

	s.mu.Lock()
	if j.state.Terminal() {
		s.mu.Unlock()
		return
	}
	j.state = StateRunning
	j.startedAt = time.Now()
	s.mu.Unlock()

	s.logger.Info("job started", "jobID", j.id, "key", j.key, "scope", j.scope)

	summary, err := s.runGuarded(j)
	s.finish(j, summary, err)
}

// runGuarded invokes the runner, converting a panic into an error so a
// broken job never takes the supervisor down.
func (s *Supervisor) runGuarded(j *job) (summary Summary, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panic: %v", r)
		}
	}()
	return j.runner.Run(j.ctx, &Reporter{sup: s, j: j})
}

// finish moves the job to its terminal state and records the summary
// (including partial work on failure or cancellation).
func (s *Supervisor) finish(j *job, summary Summary, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j.state.Terminal() {
		return
	}
	j.summary = summary
	j.finishedAt = time.Now()
	switch {
	case err == nil:
		j.state = StateCompleted
	case errors.Is(err, context.Canceled):
		j.state = StateCancelled
	default:
		j.state = StateFailed
		j.errMsg = err.Error()
	}
	j.cancel()
	s.logger.Info("job finished", "jobID", j.id, "state", j.state, "error", j.errMsg)
}

// Cancel requests cancellation. A Pending job cancels immediately; a
// Running job transitions at its next checkpoint. Cancelling a
// terminal job is a no-op.
func (s *Supervisor) Cancel(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return ErrJobNotFound
	}
	switch j.state {
	case StatePending:
		j.state = StateCancelled
		j.finishedAt = time.Now()
		j.cancel()
	case StateRunning:
		j.cancel()
	}
	return nil
}

// Status returns a point-in-time snapshot. Querying never blocks a
// worker and never mutates job state.
func (s *Supervisor) Status(id string) (Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return Status{}, ErrJobNotFound
	}
	return snapshot(j), nil
}

// List returns snapshots of every known job.
func (s *Supervisor) List() []Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Status, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, snapshot(j))
	}
	return out
}

func snapshot(j *job) Status {
	st := Status{
		JobID: j.id,
		Key:   j.key,
		Scope: j.scope,
		State: j.state,
		Error: j.errMsg,
	}
	if j.state != StatePending {
		p := j.progress
		st.Progress = &p
	}
	if j.state.Terminal() {
		sum := j.summary
		st.Summary = &sum
	}
	return st
}

// ActiveForScope reports whether any Pending or Running job targets
// the given scope. Used to guard location deletion.
func (s *Supervisor) ActiveForScope(scope string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, j := range s.jobs {
		if j.scope == scope && !j.state.Terminal() {
			return true
		}
	}
	return false
}

// Close stops accepting submissions, cancels every live job and waits
// for running jobs to reach their next checkpoint.
func (s *Supervisor) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.baseCancel()
	s.wg.Wait()
}

// Reporter lets a runner publish progress without touching supervisor
// internals. All methods are safe for concurrent use.
type Reporter struct {
	sup *Supervisor
	j   *job
}

// SetTotal fixes the job's total task count.
func (r *Reporter) SetTotal(total int) {
	r.sup.mu.Lock()
	defer r.sup.mu.Unlock()
	r.j.progress.Total = total
}

// Advance records completed task count and a human-readable message.
func (r *Reporter) Advance(completed int, message string) {
	r.sup.mu.Lock()
	defer r.sup.mu.Unlock()
	r.j.progress.Completed = completed
	r.j.progress.Message = message
}
