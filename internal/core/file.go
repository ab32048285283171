package core

import (
	"context"

	"github.com/arcafs/arca/internal/command"
	"github.com/arcafs/arca/internal/domain"
)

// FileReadResult is the FileRead payload: the file record together
// with the tags currently assigned to it.
type FileReadResult struct {
	File domain.File  `json:"file"`
	Tags []domain.Tag `json:"tags"`
}

func (c *Core) handleFileRead(ctx context.Context, cmd command.Command) (any, error) {
	p, err := typedParams[*command.FileReadParams](cmd)
	if err != nil {
		return nil, err
	}
	file, err := c.store.GetFile(p.ID)
	if err != nil {
		return nil, err
	}
	tags, err := c.store.TagsForFile(file.ID)
	if err != nil {
		return nil, err
	}
	return FileReadResult{File: file, Tags: tags}, nil
}

func (c *Core) handleFileDelete(ctx context.Context, cmd command.Command) (any, error) {
	p, err := typedParams[*command.FileDeleteParams](cmd)
	if err != nil {
		return nil, err
	}
	if err := c.store.DeleteFile(p.ID); err != nil {
		return nil, err
	}
	c.logger.Info("file deleted", "id", p.ID)
	return map[string]uint64{"deleted_id": p.ID}, nil
}
