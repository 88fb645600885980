// Package archive keeps a bounded, zstd-compressed on-disk trail of captured
// frames so misclassified readings can be replayed against the OCR chain
// after the fact.
package archive

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/klauspost/compress/zstd"
)

// FrameArchive writes each frame to <dir>/<timestamp>.zst and prunes the
// directory down to MaxFiles, oldest first. All failures are logged and
// swallowed: archiving is diagnostics, never load-bearing.
type FrameArchive struct {
	dir      string
	maxFiles int
	encoder  *zstd.Encoder
	logger   *slog.Logger
}

// New creates a FrameArchive rooted at dir, creating the directory if needed.
func New(dir string, maxFiles int, logger *slog.Logger) (*FrameArchive, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating archive dir: %w", err)
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		return nil, fmt.Errorf("creating zstd encoder: %w", err)
	}
	return &FrameArchive{
		dir:      dir,
		maxFiles: maxFiles,
		encoder:  enc,
		logger:   logger.With("component", "archive"),
	}, nil
}

// Archive compresses and stores one frame.
func (a *FrameArchive) Archive(frame []byte, ts time.Time) {
	name := filepath.Join(a.dir, ts.UTC().Format("20060102T150405.000Z")+".zst")
	compressed := a.encoder.EncodeAll(frame, make([]byte, 0, len(frame)/2))

	if err := os.WriteFile(name, compressed, 0o644); err != nil {
		a.logger.Warn("failed to archive frame", "path", name, "error", err)
		return
	}
	a.prune()
}

// prune removes the oldest archives beyond the file cap.
func (a *FrameArchive) prune() {
	entries, err := os.ReadDir(a.dir)
	if err != nil || len(entries) <= a.maxFiles {
		return
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	if len(names) <= a.maxFiles {
		return
	}
	// Timestamped names sort chronologically.
	sort.Strings(names)
	for _, name := range names[:len(names)-a.maxFiles] {
		if err := os.Remove(filepath.Join(a.dir, name)); err != nil {
			a.logger.Warn("failed to prune archived frame", "name", name, "error", err)
		}
	}
}
