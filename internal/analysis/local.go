package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// defaultWeights names the weights file each modality's local model loads
// from the models directory. Overridable per type through configuration.
var defaultWeights = map[DocumentType]string{
	TypeXRay:       "xray_model.pt",
	TypeMRI:        "mri_model.pth",
	TypeCT:         "ct_model.h5",
	TypeECG:        "ecg_model.h5",
	TypeTextReport: "report_model.pt",
}

// runnerOutput is the JSON contract the inference helper prints on stdout.
type runnerOutput struct {
	Labels []struct {
		Label      string  `json:"label"`
		Confidence float64 `json:"confidence"`
	} `json:"labels"`
	Narrative string `json:"narrative"`
}

// LocalRunner invokes the on-device inference helper, one process per
// analysis.
type LocalRunner struct {
	runnerPath string
	modelsDir  string
	timeout    time.Duration
}

// NewLocalRunner locates the inference helper binary.
func NewLocalRunner(command, modelsDir string, timeout time.Duration) (*LocalRunner, error) {
	runnerPath, err := exec.LookPath(command)
	if err != nil {
		return nil, fmt.Errorf("model runner %q not found in PATH: %w", command, err)
	}
	return &LocalRunner{
		runnerPath: runnerPath,
		modelsDir:  modelsDir,
		timeout:    timeout,
	}, nil
}

// Analyze runs the weights named by desc against the image at imagePath.
// Non-zero exit, timeout, and malformed output are all ordinary failures
// the caller can fall back from.
func (r *LocalRunner) Analyze(ctx context.Context, desc AnalyzerDescriptor, imagePath string) (*Finding, error) {
	weights := filepath.Join(r.modelsDir, desc.WeightsFile)
	if _, err := os.Stat(weights); err != nil {
		return nil, fmt.Errorf("model weights not available: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, r.runnerPath, "--weights", weights, "--image", imagePath)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("local analysis timed out after %s", r.timeout)
		}
		return nil, fmt.Errorf("model runner failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	var out runnerOutput
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
		return nil, fmt.Errorf("failed to unmarshal runner output: %w", err)
	}

	finding := &Finding{
		DocumentType: desc.DocumentType,
		Narrative:    out.Narrative,
		Source:       SourceLocal,
		AnalyzedAt:   time.Now(),
	}
	for _, l := range out.Labels {
		finding.Labels = append(finding.Labels, Label{Name: l.Label, Confidence: l.Confidence})
	}
	finding.Normalize()
	return finding, nil
}
