package device

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// scanimage expects capitalized mode names.
var saneModes = map[string]string{
	"color":   "Color",
	"gray":    "Gray",
	"lineart": "Lineart",
}

// SaneScanner drives a SANE-compatible flatbed scanner through the
// scanimage command line tool.
type SaneScanner struct {
	scanimagePath string
	device        string
	tempDir       string
	timeout       time.Duration
	settings      ScanSettings
}

// NewSaneScanner locates scanimage and prepares the capture directory.
// An empty device lets scanimage pick the first available scanner.
func NewSaneScanner(device, tempDir string, timeout time.Duration) (*SaneScanner, error) {
	scanimagePath, err := exec.LookPath("scanimage")
	if err != nil {
		return nil, fmt.Errorf("scanimage not found in PATH: %w", err)
	}
	if err := os.MkdirAll(tempDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create scan directory: %w", err)
	}
	log.Debug().Str("path", scanimagePath).Str("device", device).Msg("scanner ready")

	return &SaneScanner{
		scanimagePath: scanimagePath,
		device:        device,
		tempDir:       tempDir,
		timeout:       timeout,
		settings:      ScanSettings{Resolution: 300, ColorMode: "color"},
	}, nil
}

// Configure stores the settings used by subsequent captures.
func (s *SaneScanner) Configure(settings ScanSettings) error {
	if settings.Resolution <= 0 {
		return fmt.Errorf("invalid scan resolution: %d", settings.Resolution)
	}
	if _, ok := saneModes[settings.ColorMode]; !ok {
		return fmt.Errorf("unsupported color mode: %q", settings.ColorMode)
	}
	if settings.MaxWidthIn < 0 || settings.MaxHeightIn < 0 {
		return fmt.Errorf("negative scan size: %.1fx%.1f", settings.MaxWidthIn, settings.MaxHeightIn)
	}
	s.settings = settings
	return nil
}

// Capture runs one scan and returns the resulting artifact. The output file
// lands in the capture directory as scan_<unix>.png.
func (s *SaneScanner) Capture(ctx context.Context) (*CapturedArtifact, error) {
	capturedAt := time.Now()
	outPath := filepath.Join(s.tempDir, fmt.Sprintf("scan_%d.png", capturedAt.Unix()))

	args := []string{
		"--format=png",
		"--resolution", strconv.Itoa(s.settings.Resolution),
		"--mode", saneModes[s.settings.ColorMode],
	}
	if s.device != "" {
		args = append(args, "-d", s.device)
	}
	if s.settings.MaxWidthIn > 0 {
		args = append(args, "-x", fmt.Sprintf("%.1f", s.settings.MaxWidthIn*25.4))
	}
	if s.settings.MaxHeightIn > 0 {
		args = append(args, "-y", fmt.Sprintf("%.1f", s.settings.MaxHeightIn*25.4))
	}
	args = append(args, "-o", outPath)

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, s.scanimagePath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	log.Debug().Strs("args", args).Msg("running scanimage")

	if err := cmd.Run(); err != nil {
		os.Remove(outPath)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: timed out after %s", ErrScanFailure, s.timeout)
		}
		return nil, fmt.Errorf("%w: scanimage: %v: %s", ErrScanFailure, err, strings.TrimSpace(stderr.String()))
	}

	artifact, err := ProbeArtifact(outPath, s.settings.ColorMode, capturedAt)
	if err != nil {
		os.Remove(outPath)
		return nil, fmt.Errorf("%w: %v", ErrScanFailure, err)
	}
	log.Info().Str("path", outPath).Int("width", artifact.Width).Int("height", artifact.Height).Msg("document scanned")
	return artifact, nil
}
