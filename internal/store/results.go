package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/arkumar/medscan/internal/analysis"
)

// ResultRecord is the JSON document written for one successful session.
type ResultRecord struct {
	SessionID    string            `json:"session_id"`
	Language     string            `json:"language"`
	CapturedAt   time.Time         `json:"captured_at"`
	CompletedAt  time.Time         `json:"completed_at"`
	ArtifactPath string            `json:"artifact_path"`
	Finding      *analysis.Finding `json:"finding"`
}

// ResultStore writes result records to an append-only directory. Files are
// keyed by capture timestamp and never overwritten.
type ResultStore struct {
	dir string
}

func NewResultStore(dir string) (*ResultStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create results directory: %w", err)
	}
	return &ResultStore{dir: dir}, nil
}

// Save writes rec as result_<unix>.json and returns the path. When the
// name is taken a counter suffix is appended; existing files are never
// touched.
func (s *ResultStore) Save(rec *ResultRecord) (string, error) {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal result: %w", err)
	}

	base := fmt.Sprintf("result_%d", rec.CapturedAt.Unix())
	path := filepath.Join(s.dir, base+".json")
	for n := 1; ; n++ {
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			if _, werr := f.Write(data); werr != nil {
				f.Close()
				os.Remove(path)
				return "", fmt.Errorf("failed to write result file: %w", werr)
			}
			if cerr := f.Close(); cerr != nil {
				return "", fmt.Errorf("failed to close result file: %w", cerr)
			}
			return path, nil
		}
		if !os.IsExist(err) {
			return "", fmt.Errorf("failed to create result file: %w", err)
		}
		path = filepath.Join(s.dir, fmt.Sprintf("%s_%d.json", base, n))
	}
}
