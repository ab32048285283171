package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/arcafs/arca/internal/command"
	"github.com/arcafs/arca/internal/domain"
	"github.com/arcafs/arca/internal/job"
)

// Dispatcher executes decoded commands. It holds no locks of its own
// and never serializes unrelated commands; concurrency discipline
// belongs to the store, the handlers and the job supervisor.
type Dispatcher struct {
	registry *Registry
	logger   *slog.Logger
}

// NewDispatcher creates a dispatcher over a validated registry.
func NewDispatcher(registry *Registry, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{registry: registry, logger: logger}
}

// Dispatch routes one command to its handler and captures the result
// as a typed outcome. A failure here never escapes as a fault: every
// error path, including handler panics, becomes an error outcome.
func (d *Dispatcher) Dispatch(ctx context.Context, cmd command.Command) command.Outcome {
	spec, ok := command.SpecFor(cmd.Key)
	if !ok {
		// The codec rejects unknown keys, so this is a programmer error.
		d.logger.Error("unroutable command: key not in schema", "key", cmd.Key)
		return command.Failure(command.NewError(command.KindInternal, "unroutable command"))
	}

	handler, ok := d.registry.Get(cmd.Key)
	if !ok {
		// Impossible if Validate passed at startup.
		d.logger.Error("unroutable command: no handler", "key", cmd.Key)
		return command.Failure(command.NewError(command.KindInternal, "unroutable command"))
	}

	result, err := d.invoke(ctx, handler, cmd)
	if err != nil {
		return command.Failure(d.toCommandError(cmd.Key, err))
	}

	if spec.Class == command.ClassJob {
		return d.jobHandle(cmd.Key, result)
	}
	return command.Success(result)
}

// invoke runs the handler with panic recovery so one broken handler
// cannot terminate the dispatch path.
func (d *Dispatcher) invoke(ctx context.Context, handler Handler, cmd command.Command) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("handler panic", "key", cmd.Key, "panic", r)
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return handler.Handle(ctx, cmd)
}

// jobHandle asserts that a job-class handler admitted its job and
// returns the handle as the success payload. Handlers submit the job
// themselves so they can hold their own guards across validation and
// submission.
func (d *Dispatcher) jobHandle(key command.Key, result any) command.Outcome {
	handle, ok := result.(job.Handle)
	if !ok {
		d.logger.Error("job-class handler returned no job handle", "key", key)
		return command.Failure(command.NewError(command.KindInternal, "internal error"))
	}
	return command.Success(handle)
}

// toCommandError maps handler errors onto the stable outcome taxonomy.
// Unrecognized errors surface as an opaque Internal error; the detail
// stays in the log.
func (d *Dispatcher) toCommandError(key command.Key, err error) *command.Error {
	var cerr *command.Error
	if errors.As(err, &cerr) {
		return cerr
	}

	switch {
	case errors.Is(err, domain.ErrLibraryNotFound),
		errors.Is(err, domain.ErrFileNotFound),
		errors.Is(err, domain.ErrFilePathNotFound),
		errors.Is(err, domain.ErrTagNotFound),
		errors.Is(err, domain.ErrLocationNotFound),
		errors.Is(err, domain.ErrVolumeNotFound):
		return command.NewError(command.KindNotFound, err.Error())

	case errors.Is(err, domain.ErrNameConflict),
		errors.Is(err, domain.ErrPathConflict),
		errors.Is(err, domain.ErrVolumeNotMounted),
		errors.Is(err, domain.ErrLocationBusy):
		return command.NewError(command.KindConflict, err.Error())

	case errors.Is(err, domain.ErrInvalidInput):
		return command.NewError(command.KindInvalidParams, err.Error())

	default:
		d.logger.Error("handler failed", "key", key, "error", err)
		return command.NewError(command.KindInternal, "internal error")
	}
}
