package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/arcafs/arca/internal/command"
	"github.com/arcafs/arca/internal/domain"
)

func (c *Core) handleCreateLibrary(ctx context.Context, cmd command.Command) (any, error) {
	p, err := typedParams[*command.CreateLibraryParams](cmd)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(p.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: library name must not be empty", domain.ErrInvalidInput)
	}
	if c.policy.UniqueLibraryNames {
		if _, err := c.store.GetLibraryByName(name); err == nil {
			return nil, fmt.Errorf("%w: library %q already exists", domain.ErrNameConflict, name)
		} else if !errors.Is(err, domain.ErrLibraryNotFound) {
			return nil, err
		}
	}
	lib := domain.Library{Name: name, CreatedAt: time.Now().Unix()}
	if err := c.store.CreateLibrary(&lib); err != nil {
		return nil, err
	}
	c.logger.Info("library created", "id", lib.ID, "name", lib.Name)
	return lib, nil
}

func (c *Core) handleLibDelete(ctx context.Context, cmd command.Command) (any, error) {
	p, err := typedParams[*command.LibDeleteParams](cmd)
	if err != nil {
		return nil, err
	}
	if err := c.store.DeleteLibrary(p.ID); err != nil {
		return nil, err
	}
	c.logger.Info("library deleted", "id", p.ID)
	return map[string]uint64{"deleted_id": p.ID}, nil
}
