package core

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/arcafs/arca/internal/command"
	"github.com/arcafs/arca/internal/domain"
)

// LocCreateResult is the LocCreate payload: the registered location
// plus the number of file paths indexed by the initial scan.
type LocCreateResult struct {
	Location     domain.Location `json:"location"`
	IndexedPaths int             `json:"indexed_paths"`
}

func (c *Core) handleLocCreate(ctx context.Context, cmd command.Command) (any, error) {
	p, err := typedParams[*command.LocCreateParams](cmd)
	if err != nil {
		return nil, err
	}
	path := filepath.Clean(strings.TrimSpace(p.Path))
	if path == "" || path == "." {
		return nil, fmt.Errorf("%w: location path must not be empty", domain.ErrInvalidInput)
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, command.Errorf(command.KindNotFound, "location path %q does not exist", path)
		}
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: location path %q is not a directory", domain.ErrInvalidInput, path)
	}
	if _, err := c.store.GetLocationByPath(path); err == nil {
		return nil, fmt.Errorf("%w: path %q is already a location", domain.ErrPathConflict, path)
	} else if !errors.Is(err, domain.ErrLocationNotFound) {
		return nil, err
	}

	loc := domain.Location{Name: filepath.Base(path), Path: path, CreatedAt: time.Now().Unix()}
	if err := c.store.CreateLocation(&loc); err != nil {
		return nil, err
	}
	indexed, err := c.indexLocation(ctx, loc)
	if err != nil {
		// Roll the location back so a failed scan never leaves a
		// half-indexed entry blocking a retry of the same path.
		if derr := c.store.DeleteLocation(loc.ID); derr != nil {
			c.logger.Error("failed to roll back location after index failure",
				"id", loc.ID, "path", loc.Path, "error", derr)
		}
		return nil, err
	}
	c.logger.Info("location created", "id", loc.ID, "path", loc.Path, "indexed", indexed)
	return LocCreateResult{Location: loc, IndexedPaths: indexed}, nil
}

// indexLocation walks the location root and records a file path per
// entry, relative to the root. Unreadable entries are skipped.
func (c *Core) indexLocation(ctx context.Context, loc domain.Location) (int, error) {
	indexed := 0
	err := filepath.WalkDir(loc.Path, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			c.logger.Warn("index skipping entry", "path", path, "error", walkErr)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if path == loc.Path {
			return nil
		}
		rel, err := filepath.Rel(loc.Path, path)
		if err != nil {
			return err
		}
		fp := domain.FilePath{
			LocationID:       loc.ID,
			MaterializedPath: rel,
			IsDir:            d.IsDir(),
		}
		if !d.IsDir() {
			if info, err := d.Info(); err == nil {
				fp.SizeInBytes = info.Size()
			}
		}
		if err := c.store.CreateFilePath(&fp); err != nil {
			return err
		}
		indexed++
		return nil
	})
	return indexed, err
}

func (c *Core) handleLocUpdate(ctx context.Context, cmd command.Command) (any, error) {
	p, err := typedParams[*command.LocUpdateParams](cmd)
	if err != nil {
		return nil, err
	}
	loc, err := c.store.GetLocation(p.ID)
	if err != nil {
		return nil, err
	}
	if p.Name != nil {
		name := strings.TrimSpace(*p.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: location name must not be empty", domain.ErrInvalidInput)
		}
		loc.Name = name
	}
	if err := c.store.UpdateLocation(loc); err != nil {
		return nil, err
	}
	return loc, nil
}

func (c *Core) handleLocDelete(ctx context.Context, cmd command.Command) (any, error) {
	p, err := typedParams[*command.LocDeleteParams](cmd)
	if err != nil {
		return nil, err
	}
	// Held across the busy check and the delete: a job submitted under
	// the same guard is either visible to ActiveForScope here or sees
	// the location already gone.
	c.locMu.Lock()
	defer c.locMu.Unlock()
	loc, err := c.store.GetLocation(p.ID)
	if err != nil {
		return nil, err
	}
	if c.jobs != nil && c.jobs.ActiveForScope(loc.Path) {
		return nil, fmt.Errorf("%w: a job is running against %q", domain.ErrLocationBusy, loc.Path)
	}
	if err := c.store.DeleteLocation(loc.ID); err != nil {
		return nil, err
	}
	c.logger.Info("location deleted", "id", loc.ID, "path", loc.Path)
	return map[string]uint64{"deleted_id": loc.ID}, nil
}
