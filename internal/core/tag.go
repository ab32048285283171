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

func (c *Core) handleTagCreate(ctx context.Context, cmd command.Command) (any, error) {
	p, err := typedParams[*command.TagCreateParams](cmd)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(p.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: tag name must not be empty", domain.ErrInvalidInput)
	}
	if c.policy.UniqueTagNames {
		if _, err := c.store.GetTagByName(name); err == nil {
			return nil, fmt.Errorf("%w: tag %q already exists", domain.ErrNameConflict, name)
		} else if !errors.Is(err, domain.ErrTagNotFound) {
			return nil, err
		}
	}
	tag := domain.Tag{Name: name, Color: strings.TrimSpace(p.Color), CreatedAt: time.Now().Unix()}
	if err := c.store.CreateTag(&tag); err != nil {
		return nil, err
	}
	c.logger.Info("tag created", "id", tag.ID, "name", tag.Name)
	return tag, nil
}

func (c *Core) handleTagUpdate(ctx context.Context, cmd command.Command) (any, error) {
	p, err := typedParams[*command.TagUpdateParams](cmd)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(p.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: tag name must not be empty", domain.ErrInvalidInput)
	}
	tag, err := c.store.GetTagByName(name)
	if err != nil {
		return nil, err
	}
	tag.Color = strings.TrimSpace(p.Color)
	if err := c.store.UpdateTag(tag); err != nil {
		return nil, err
	}
	return tag, nil
}

func (c *Core) handleTagAssign(ctx context.Context, cmd command.Command) (any, error) {
	p, err := typedParams[*command.TagAssignParams](cmd)
	if err != nil {
		return nil, err
	}
	if err := c.store.AssignTag(p.FileID, p.TagID); err != nil {
		return nil, err
	}
	return domain.TagAssignment{FileID: p.FileID, TagID: p.TagID}, nil
}

func (c *Core) handleTagDelete(ctx context.Context, cmd command.Command) (any, error) {
	p, err := typedParams[*command.TagDeleteParams](cmd)
	if err != nil {
		return nil, err
	}
	if err := c.store.DeleteTag(p.ID); err != nil {
		return nil, err
	}
	c.logger.Info("tag deleted", "id", p.ID)
	return map[string]uint64{"deleted_id": p.ID}, nil
}
