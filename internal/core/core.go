// Package core implements the handlers that execute commands against
// the store. Handlers own referential and semantic validation; the
// dispatcher maps the errors they return onto the outcome taxonomy.
package core

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/arcafs/arca/internal/command"
	"github.com/arcafs/arca/internal/dispatch"
	"github.com/arcafs/arca/internal/domain"
	"github.com/arcafs/arca/internal/job"
)

// Policy holds the configurable validation decisions the schema leaves
// open.
type Policy struct {
	UniqueLibraryNames bool
	UniqueTagNames     bool
}

// DefaultPolicy enforces uniqueness for both namespaces.
func DefaultPolicy() Policy {
	return Policy{UniqueLibraryNames: true, UniqueTagNames: true}
}

// Core wires the store, the job supervisor and the thumbnail renderer
// into one handler set.
type Core struct {
	store  domain.Store
	jobs   *job.Supervisor
	render job.Renderer
	policy Policy
	logger *slog.Logger

	// locMu serializes job submission against location deletion, so a
	// job can never be admitted for a location that a concurrent
	// LocDelete is removing.
	locMu sync.Mutex
}

// New creates the handler set.
func New(store domain.Store, jobs *job.Supervisor, render job.Renderer, policy Policy, logger *slog.Logger) *Core {
	if logger == nil {
		logger = slog.Default()
	}
	return &Core{store: store, jobs: jobs, render: render, policy: policy, logger: logger}
}

// RegisterAll binds every schema key to its handler. The caller runs
// Registry.Validate afterwards to assert exhaustiveness.
func (c *Core) RegisterAll(r *dispatch.Registry) error {
	bindings := map[command.Key]dispatch.HandlerFunc{
		command.KeyCreateLibrary:             c.handleCreateLibrary,
		command.KeyFileRead:                  c.handleFileRead,
		command.KeyFileDelete:                c.handleFileDelete,
		command.KeyLibDelete:                 c.handleLibDelete,
		command.KeyTagCreate:                 c.handleTagCreate,
		command.KeyTagUpdate:                 c.handleTagUpdate,
		command.KeyTagAssign:                 c.handleTagAssign,
		command.KeyTagDelete:                 c.handleTagDelete,
		command.KeyLocCreate:                 c.handleLocCreate,
		command.KeyLocUpdate:                 c.handleLocUpdate,
		command.KeyLocDelete:                 c.handleLocDelete,
		command.KeySysVolumeUnmount:          c.handleVolumeUnmount,
		command.KeyGenerateThumbsForLocation: c.handleGenerateThumbs,
		command.KeyIdentifyUniqueFiles:       c.handleIdentifyFiles,
	}
	for key, h := range bindings {
		if err := r.Register(key, h); err != nil {
			return err
		}
	}
	return nil
}

// typedParams asserts the decoded params to the handler's type. A
// mismatch means the registry and schema disagree, which Validate
// should have made impossible.
func typedParams[T any](cmd command.Command) (T, error) {
	p, ok := cmd.Params.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("%s: unexpected params type %T", cmd.Key, cmd.Params)
	}
	return p, nil
}
