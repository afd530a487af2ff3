package store

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const sweepInterval = time.Hour

// Sweeper deletes scan artifacts and result records older than their
// retention windows. A zero window keeps that class of file forever. The
// audit index is never swept.
type Sweeper struct {
	scanDir   string
	resultDir string
	scanTTL   time.Duration
	resultTTL time.Duration
}

func NewSweeper(scanDir, resultDir string, scanDays, resultDays int) *Sweeper {
	return &Sweeper{
		scanDir:   scanDir,
		resultDir: resultDir,
		scanTTL:   time.Duration(scanDays) * 24 * time.Hour,
		resultTTL: time.Duration(resultDays) * 24 * time.Hour,
	}
}

// Run sweeps immediately and then hourly until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	s.Sweep()

	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

// Sweep performs one pass over both directories.
func (s *Sweeper) Sweep() {
	now := time.Now()
	if s.scanTTL > 0 {
		s.sweepDir(s.scanDir, "scan_", s.scanTTL, now)
	}
	if s.resultTTL > 0 {
		s.sweepDir(s.resultDir, "result_", s.resultTTL, now)
	}
}

func (s *Sweeper) sweepDir(dir, prefix string, ttl time.Duration, now time.Time) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		log.Warn().Err(err).Str("dir", dir).Msg("retention sweep skipped")
		return
	}

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), prefix) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if now.Sub(info.ModTime()) <= ttl {
			continue
		}
		if err := os.Remove(filepath.Join(dir, entry.Name())); err != nil {
			log.Warn().Err(err).Str("file", entry.Name()).Msg("retention sweep failed to remove file")
			continue
		}
		removed++
	}
	if removed > 0 {
		log.Info().Int("removed", removed).Str("dir", dir).Msg("retention sweep complete")
	}
}
