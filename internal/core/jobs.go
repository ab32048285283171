package core

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/arcafs/arca/internal/command"
	"github.com/arcafs/arca/internal/domain"
	"github.com/arcafs/arca/internal/job"
)

// resolveJobLocation validates the target of a job-class command. The
// location id must exist; when the request carries a path it must match
// the registered one. The path is NOT checked against the filesystem
// here: a root that has gone missing is the job's failure to report.
func (c *Core) resolveJobLocation(id uint64, path string) (domain.Location, error) {
	loc, err := c.store.GetLocation(id)
	if err != nil {
		return domain.Location{}, err
	}
	if p := strings.TrimSpace(path); p != "" && filepath.Clean(p) != loc.Path {
		return domain.Location{}, fmt.Errorf("%w: path %q does not match location %d (%q)",
			domain.ErrInvalidInput, p, loc.ID, loc.Path)
	}
	return loc, nil
}

// submitLocationJob resolves the job's target and hands the runner to
// the supervisor in one critical section under locMu. Holding the
// guard across validate and submit closes the window where LocDelete
// could remove the location after validation but before the job is
// admitted.
func (c *Core) submitLocationJob(key command.Key, id uint64, path string, build func(loc domain.Location) job.Runner) (job.Handle, error) {
	c.locMu.Lock()
	defer c.locMu.Unlock()
	loc, err := c.resolveJobLocation(id, path)
	if err != nil {
		return job.Handle{}, err
	}
	return c.jobs.Submit(job.Request{
		Key:        key,
		Scope:      loc.Path,
		LocationID: loc.ID,
		Runner:     build(loc),
	})
}

func (c *Core) handleGenerateThumbs(ctx context.Context, cmd command.Command) (any, error) {
	p, err := typedParams[*command.GenerateThumbsForLocationParams](cmd)
	if err != nil {
		return nil, err
	}
	return c.submitLocationJob(cmd.Key, p.ID, p.Path, func(loc domain.Location) job.Runner {
		return job.NewThumbnailer(c.store, c.render, loc.ID, loc.Path, c.logger)
	})
}

func (c *Core) handleIdentifyFiles(ctx context.Context, cmd command.Command) (any, error) {
	p, err := typedParams[*command.IdentifyUniqueFilesParams](cmd)
	if err != nil {
		return nil, err
	}
	return c.submitLocationJob(cmd.Key, p.ID, p.Path, func(loc domain.Location) job.Runner {
		return job.NewIdentifier(c.store, loc.ID, loc.Path, c.logger)
	})
}
