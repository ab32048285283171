package job

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/arcafs/arca/internal/domain"
)

// identifyBatchSize is how many orphan paths one batch processes; the
// cancellation checkpoint and the progress update sit between batches.
const identifyBatchSize = 100

// Identifier links a location's unidentified file paths to unique
// files by content address. Paths whose content matches an existing
// file are deduplicated onto it.
type Identifier struct {
	store      domain.Store
	locationID uint64
	root       string
	logger     *slog.Logger
}

// NewIdentifier creates the unique-file identification runner for one
// location.
func NewIdentifier(store domain.Store, locationID uint64, root string, logger *slog.Logger) *Identifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Identifier{store: store, locationID: locationID, root: root, logger: logger}
}

func (i *Identifier) Run(ctx context.Context, rep *Reporter) (Summary, error) {
	var summary Summary

	if _, err := os.Stat(i.root); err != nil {
		return summary, fmt.Errorf("location path %q is not accessible: %w", i.root, err)
	}

	total, err := i.store.CountOrphanFilePaths(i.locationID)
	if err != nil {
		return summary, fmt.Errorf("count orphan file paths: %w", err)
	}
	taskCount := (total + identifyBatchSize - 1) / identifyBatchSize
	rep.SetTotal(taskCount)
	i.logger.Info("identifying files", "locationID", i.locationID, "orphans", total, "batches", taskCount)

	var cursor uint64
	completed := 0
	for {
		// Cancellation checkpoint between batches; work already
		// committed stays committed.
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		paths, err := i.store.OrphanFilePaths(i.locationID, cursor, identifyBatchSize)
		if err != nil {
			return summary, fmt.Errorf("fetch orphan file paths: %w", err)
		}
		if len(paths) == 0 {
			break
		}

		for _, fp := range paths {
			if err := i.identifyOne(fp, &summary); err != nil {
				summary.ItemErrors = append(summary.ItemErrors, ItemError{
					Path:  fp.MaterializedPath,
					Error: err.Error(),
				})
				i.logger.Warn("failed to identify file", "path", fp.MaterializedPath, "error", err)
			}
		}

		cursor = paths[len(paths)-1].ID
		completed++
		rep.Advance(completed, fmt.Sprintf("processed %d of %d batches", completed, taskCount))
	}

	i.logger.Info("identification complete",
		"locationID", i.locationID, "identified", summary.FilesIdentified, "errors", len(summary.ItemErrors))
	return summary, nil
}

func (i *Identifier) identifyOne(fp domain.FilePath, summary *Summary) error {
	fullPath := filepath.Join(i.root, fp.MaterializedPath)
	casID, size, err := GenerateCasID(fullPath)
	if err != nil {
		return err
	}

	file, err := i.store.CreateFile(&domain.File{
		CasID:       casID,
		SizeInBytes: size,
		CreatedAt:   time.Now().Unix(),
	})
	if err != nil {
		return fmt.Errorf("create unique file: %w", err)
	}
	if err := i.store.LinkFilePath(fp.ID, file.ID); err != nil {
		return fmt.Errorf("link file path: %w", err)
	}
	summary.FilesIdentified++
	return nil
}
