package device

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// mpg123 full-scale output value for the -f flag.
const playerFullScale = 32768

// ExecPlayer plays MP3 files through an external command line player,
// mpg123 by default.
type ExecPlayer struct {
	playerPath string
	volume     float64
}

// NewExecPlayer locates the player binary. Volume is a 0..1 gain applied to
// every playback.
func NewExecPlayer(command string, volume float64) (*ExecPlayer, error) {
	playerPath, err := exec.LookPath(command)
	if err != nil {
		return nil, fmt.Errorf("audio player %q not found in PATH: %w", command, err)
	}
	if volume < 0 || volume > 1 {
		return nil, fmt.Errorf("invalid audio volume: %v", volume)
	}
	return &ExecPlayer{playerPath: playerPath, volume: volume}, nil
}

// Play blocks until the file has played to completion or ctx is done.
func (p *ExecPlayer) Play(ctx context.Context, path string) error {
	args := []string{"-q", "-f", strconv.Itoa(int(p.volume * playerFullScale)), path}

	cmd := exec.CommandContext(ctx, p.playerPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to play %s: %w: %s", filepath.Base(path), err, strings.TrimSpace(stderr.String()))
	}
	return nil
}
