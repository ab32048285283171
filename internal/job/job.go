// Package job runs long-running commands as cancellable, independently
// progressing tasks. Jobs targeting the same (command, scope) pair are
// serialized; disjoint scopes run concurrently under a global limit.
package job

import (
	"context"
	"time"

	"github.com/arcafs/arca/internal/command"
)

// State is the lifecycle state of a job.
type State string

const (
	StatePending   State = "pending"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateCancelled State = "cancelled"
)

// Terminal reports whether the state is final.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// Progress is the advancing counter a caller may poll at any time.
type Progress struct {
	Completed int    `json:"completed"`
	Total     int    `json:"total"`
	Message   string `json:"message,omitempty"`
}

// ItemError records a single failed item within a batch job. Item
// failures do not abort the job.
type ItemError struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

// Summary is what a terminal job reports about the work it did,
// including partial work when the job failed or was cancelled.
type Summary struct {
	ThumbsGenerated int         `json:"thumbs_generated,omitempty"`
	FilesIdentified int         `json:"files_identified,omitempty"`
	ItemErrors      []ItemError `json:"item_errors,omitempty"`
}

// Runner is the unit of work a job executes. Implementations must
// honor ctx cancellation at item checkpoints and return whatever
// summary they accumulated alongside any error.
type Runner interface {
	Run(ctx context.Context, rep *Reporter) (Summary, error)
}

// RunnerFunc adapts a plain function to the Runner interface.
type RunnerFunc func(ctx context.Context, rep *Reporter) (Summary, error)

func (f RunnerFunc) Run(ctx context.Context, rep *Reporter) (Summary, error) {
	return f(ctx, rep)
}

// Request is a validated job submission produced by a job-class
// command handler.
type Request struct {
	Key        command.Key
	Scope      string // normalized location path
	LocationID uint64
	Runner     Runner
}

// Handle is the success payload returned when a job-class command is
// dispatched. The caller polls Status with the job id.
type Handle struct {
	JobID string      `json:"job_id"`
	Key   command.Key `json:"key"`
	Scope string      `json:"scope"`
	State State       `json:"state"`
}

// Status is the non-blocking job query surface.
type Status struct {
	JobID    string      `json:"job_id"`
	Key      command.Key `json:"key"`
	Scope    string      `json:"scope"`
	State    State       `json:"state"`
	Progress *Progress   `json:"progress,omitempty"`
	Summary  *Summary    `json:"summary,omitempty"`
	Error    string      `json:"error,omitempty"`
}

// job is the supervisor's internal record. All fields are guarded by
// the supervisor mutex after construction.
type job struct {
	id    string
	key   command.Key
	scope string

	state    State
	progress Progress
	summary  Summary
	errMsg   string

	createdAt  time.Time
	startedAt  time.Time
	finishedAt time.Time

	runner Runner
	ctx    context.Context
	cancel context.CancelFunc
}
