// Package camera wraps the vendor capture CLI as an ImageSource. The tool is
// an opaque binary that writes one encoded frame to stdout; everything beyond
// invoking it (exposure, focus, format) is the vendor's problem.
package camera

import (
	"bytes"
	"context"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"pumpwatch/internal/config"
	"pumpwatch/internal/types"
)

// CLISource captures frames by running the configured capture command.
type CLISource struct {
	command string
	args    []string
	timeout time.Duration
	logger  *slog.Logger
}

// NewCLISource creates an ImageSource from camera configuration.
func NewCLISource(cfg config.CameraConfig, logger *slog.Logger) *CLISource {
	if logger == nil {
		logger = slog.Default()
	}
	return &CLISource{
		command: cfg.Command,
		args:    cfg.Args,
		timeout: cfg.Timeout,
		logger:  logger.With("component", "camera"),
	}
}

// Capture runs the vendor CLI and returns its stdout as the frame bytes.
// Failures are capture faults; the caller skips the cycle.
func (s *CLISource) Capture(ctx context.Context) ([]byte, error) {
	runCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, s.command, s.args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, types.NewAppError(types.ErrCodeCaptureFault,
			"capture command failed", err).WithDetails(map[string]any{
			"command": s.command,
			"stderr":  strings.TrimSpace(stderr.String()),
		})
	}
	if stdout.Len() == 0 {
		return nil, types.NewAppError(types.ErrCodeCaptureFault,
			"capture command produced no output", nil)
	}
	return stdout.Bytes(), nil
}

var _ types.ImageSource = (*CLISource)(nil)
