package extraction

import (
	"bytes"
	"context"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"

	"pumpwatch/internal/types"
)

// tesseractProviderName is the identifier used in snapshot priority lists.
const tesseractProviderName = "tesseract"

// TesseractProviderConfig holds the configuration for creating a
// TesseractProvider.
type TesseractProviderConfig struct {
	Binary string // defaults to "tesseract"
	Logger *slog.Logger
}

// TesseractProvider runs the local tesseract binary once per extraction,
// image on stdin, TSV on stdout. TSV output carries per-word confidences,
// which the plain text mode does not.
type TesseractProvider struct {
	binary    string
	logger    *slog.Logger
	clock     types.Clock
	available bool

	// runCmd is swappable in tests to avoid spawning a real process.
	runCmd func(ctx context.Context, binary string, image []byte) ([]byte, error)
}

// NewTesseractProvider creates a TesseractProvider.
func NewTesseractProvider(cfg TesseractProviderConfig) *TesseractProvider {
	binary := cfg.Binary
	if binary == "" {
		binary = "tesseract"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &TesseractProvider{
		binary: binary,
		logger: logger.With("provider", tesseractProviderName),
		clock:  types.RealClock{},
		runCmd: runTesseract,
	}
}

// Name implements Provider.
func (p *TesseractProvider) Name() string { return tesseractProviderName }

// Initialize implements Provider: resolve the binary on PATH once.
func (p *TesseractProvider) Initialize(_ context.Context) error {
	path, err := exec.LookPath(p.binary)
	if err != nil {
		return types.NewAppError(types.ErrCodeProviderUnavailable,
			"tesseract binary not found on PATH", err)
	}
	p.binary = path
	p.available = true
	return nil
}

// IsAvailable implements Provider.
func (p *TesseractProvider) IsAvailable(_ context.Context) bool {
	return p.available
}

// Extract implements Provider.
func (p *TesseractProvider) Extract(ctx context.Context, image []byte) (*types.ExtractionResult, error) {
	started := p.clock.Now()

	out, err := p.runCmd(ctx, p.binary, image)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeProviderFault,
			"tesseract invocation failed", err)
	}

	text, confidence := parseTSV(string(out))
	return &types.ExtractionResult{
		Success:      text != "",
		RawText:      text,
		Confidence:   confidence,
		ProviderName: tesseractProviderName,
		Duration:     p.clock.Now().Sub(started),
	}, nil
}

// runTesseract spawns the binary: stdin image, stdout TSV, page segmentation
// mode 7 (single text line) which matches a one-line LED readout.
func runTesseract(ctx context.Context, binary string, image []byte) ([]byte, error) {
	cmd := exec.CommandContext(ctx, binary, "stdin", "stdout", "--psm", "7", "tsv")
	cmd.Stdin = bytes.NewReader(image)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if stderr.Len() > 0 {
			return nil, &execError{err: err, stderr: stderr.String()}
		}
		return nil, err
	}
	return stdout.Bytes(), nil
}

// execError preserves the subprocess stderr alongside the exit error.
type execError struct {
	err    error
	stderr string
}

func (e *execError) Error() string { return e.err.Error() + ": " + strings.TrimSpace(e.stderr) }
func (e *execError) Unwrap() error { return e.err }

// parseTSV extracts recognized words and their mean confidence from
// tesseract TSV output. Columns: level, page, block, par, line, word,
// left, top, width, height, conf, text. Rows with conf == -1 are layout
// rows, not words.
func parseTSV(tsv string) (string, float64) {
	var words []string
	var confSum float64
	var confCount int

	for _, line := range strings.Split(tsv, "\n") {
		fields := strings.Split(line, "\t")
		if len(fields) < 12 {
			continue
		}
		conf, err := strconv.ParseFloat(fields[10], 64)
		if err != nil || conf < 0 {
			continue
		}
		word := strings.TrimSpace(fields[11])
		if word == "" {
			continue
		}
		words = append(words, word)
		confSum += conf
		confCount++
	}

	if confCount == 0 {
		return "", 0
	}
	// Tesseract reports confidence in [0,100].
	return strings.Join(words, " "), confSum / float64(confCount) / 100
}

var _ Provider = (*TesseractProvider)(nil)
