package job

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/arcafs/arca/internal/domain"
)

// Renderer produces a thumbnail for one source file, keyed by its
// content address. The rendering algorithm is outside the core; the
// job only schedules it.
type Renderer interface {
	Render(ctx context.Context, srcPath, casID string) error
}

// thumbExtensions are the file types the thumbnailer attempts.
var thumbExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true,
	".webp": true, ".bmp": true, ".tiff": true,
	".mp4": true, ".mkv": true, ".mov": true, ".avi": true, ".webm": true,
}

// Thumbnailer generates thumbnails for every eligible file under one
// location. A single item failure is recorded and the job continues.
type Thumbnailer struct {
	store      domain.Store
	render     Renderer
	locationID uint64
	root       string
	logger     *slog.Logger
}

// NewThumbnailer creates the thumbnail generation runner for one
// location.
func NewThumbnailer(store domain.Store, render Renderer, locationID uint64, root string, logger *slog.Logger) *Thumbnailer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Thumbnailer{store: store, render: render, locationID: locationID, root: root, logger: logger}
}

func (t *Thumbnailer) Run(ctx context.Context, rep *Reporter) (Summary, error) {
	var summary Summary

	if _, err := os.Stat(t.root); err != nil {
		return summary, fmt.Errorf("location path %q is not accessible: %w", t.root, err)
	}

	paths, err := t.store.FilePathsByLocation(t.locationID)
	if err != nil {
		return summary, fmt.Errorf("list file paths: %w", err)
	}

	var eligible []domain.FilePath
	for _, fp := range paths {
		if !fp.IsDir && thumbExtensions[strings.ToLower(filepath.Ext(fp.MaterializedPath))] {
			eligible = append(eligible, fp)
		}
	}
	rep.SetTotal(len(eligible))
	t.logger.Info("generating thumbnails", "locationID", t.locationID, "eligible", len(eligible))

	done := 0
	for _, fp := range eligible {
		// Per-item cancellation checkpoint; in-flight renders are
		// never interrupted mid-item.
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		if err := t.thumbOne(ctx, fp, &summary); err != nil {
			summary.ItemErrors = append(summary.ItemErrors, ItemError{
				Path:  fp.MaterializedPath,
				Error: err.Error(),
			})
			t.logger.Warn("failed to generate thumbnail", "path", fp.MaterializedPath, "error", err)
		}

		done++
		rep.Advance(done, fmt.Sprintf("processed %d of %d files", done, len(eligible)))
	}

	t.logger.Info("thumbnail generation complete",
		"locationID", t.locationID, "generated", summary.ThumbsGenerated, "errors", len(summary.ItemErrors))
	return summary, nil
}

func (t *Thumbnailer) thumbOne(ctx context.Context, fp domain.FilePath, summary *Summary) error {
	fullPath := filepath.Join(t.root, fp.MaterializedPath)

	casID := ""
	if fp.FileID != 0 {
		if f, err := t.store.GetFile(fp.FileID); err == nil {
			casID = f.CasID
		}
	}
	if casID == "" {
		id, _, err := GenerateCasID(fullPath)
		if err != nil {
			return err
		}
		casID = id
	}

	if err := t.render.Render(ctx, fullPath, casID); err != nil {
		return err
	}
	summary.ThumbsGenerated++
	return nil
}
