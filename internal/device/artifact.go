package device

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"time"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
)

// CapturedArtifact is one scanned document image. Immutable once written;
// owned by the session that captured it until persisted.
type CapturedArtifact struct {
	Path       string    `json:"path"`
	Width      int       `json:"width"`
	Height     int       `json:"height"`
	ColorMode  string    `json:"color_mode"`
	CapturedAt time.Time `json:"captured_at"`
}

// ProbeArtifact reads the image header at path and returns the artifact
// record for it. Supported formats: png, jpeg, tiff, bmp.
func ProbeArtifact(path, colorMode string, capturedAt time.Time) (*CapturedArtifact, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open scan output: %w", err)
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode scan output %s: %w", path, err)
	}

	return &CapturedArtifact{
		Path:       path,
		Width:      cfg.Width,
		Height:     cfg.Height,
		ColorMode:  colorMode,
		CapturedAt: capturedAt,
	}, nil
}
