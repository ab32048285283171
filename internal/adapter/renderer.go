package adapter

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Renderer produces thumbnails by shelling out to an external tool.
// Output files are content addressed: <thumb_dir>/<cas_id>.webp, so a
// re-run over unchanged content overwrites with identical results.
type Renderer struct {
	thumbDir string
	command  string // configured tool, empty for auto-detection
	logger   *slog.Logger
}

// toolConfig defines how to invoke one thumbnailing tool
type toolConfig struct {
	path string
	args func(src, dst string) []string
}

// tools registry - candidate external tools in preference order
var tools = []toolConfig{
	{
		path: "ffmpeg",
		args: func(src, dst string) []string {
			return []string{"-y", "-loglevel", "error", "-i", src, "-vf", "scale=256:-2", "-frames:v", "1", dst}
		},
	},
	{
		path: "ffmpegthumbnailer",
		args: func(src, dst string) []string {
			return []string{"-i", src, "-o", dst, "-s", "256"}
		},
	},
	{
		path: "magick",
		args: func(src, dst string) []string {
			return []string{src + "[0]", "-thumbnail", "256x256>", dst}
		},
	},
}

// NewRenderer creates a renderer writing into thumbDir. When command is
// empty the first tool found in PATH is used.
func NewRenderer(thumbDir, command string, logger *slog.Logger) *Renderer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Renderer{thumbDir: thumbDir, command: command, logger: logger}
}

// OutputPath returns where the thumbnail for a cas id lands.
func (r *Renderer) OutputPath(casID string) string {
	return filepath.Join(r.thumbDir, casID+".webp")
}

// Render generates a thumbnail for srcPath, skipping work when the
// output already exists.
func (r *Renderer) Render(ctx context.Context, srcPath, casID string) error {
	dst := r.OutputPath(casID)
	if _, err := os.Stat(dst); err == nil {
		r.logger.Debug("thumbnail exists, skipping", "cas_id", casID)
		return nil
	}
	if err := os.MkdirAll(r.thumbDir, 0755); err != nil {
		return fmt.Errorf("failed to create thumbnail directory: %w", err)
	}

	// Tier 1: user configured a specific tool
	if r.command != "" {
		return r.renderWith(ctx, r.command, defaultArgsFor(r.command, srcPath, dst), dst)
	}

	// Tier 2: try the candidate chain
	for _, tool := range tools {
		if _, err := exec.LookPath(tool.path); err != nil {
			continue
		}
		return r.renderWith(ctx, tool.path, tool.args(srcPath, dst), dst)
	}

	return fmt.Errorf("no thumbnail tool found in PATH")
}

// renderWith runs one tool invocation and cleans up partial output on
// failure.
func (r *Renderer) renderWith(ctx context.Context, command string, args []string, dst string) error {
	r.logger.Debug("rendering thumbnail", "command", command, "output", dst)
	cmd := exec.CommandContext(ctx, command, args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		os.Remove(dst)
		msg := strings.TrimSpace(string(out))
		if msg != "" {
			return fmt.Errorf("%s: %w: %s", command, err, msg)
		}
		return fmt.Errorf("%s: %w", command, err)
	}
	return nil
}

// defaultArgsFor builds the argument list for a user-configured tool,
// falling back to ffmpeg-style flags for unknown commands.
func defaultArgsFor(command, src, dst string) []string {
	base := strings.ToLower(filepath.Base(command))
	base = strings.TrimSuffix(base, filepath.Ext(base))
	for _, tool := range tools {
		if tool.path == base {
			return tool.args(src, dst)
		}
	}
	return []string{"-y", "-loglevel", "error", "-i", src, "-vf", "scale=256:-2", "-frames:v", "1", dst}
}
