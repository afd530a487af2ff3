package analysis

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"
)

// ErrAnalysisUnavailable reports that every configured analysis path was
// exhausted without producing a finding.
var ErrAnalysisUnavailable = errors.New("analysis unavailable: all configured paths failed")

// LocalAnalyzer runs on-device inference for one analyzer slot.
type LocalAnalyzer interface {
	Analyze(ctx context.Context, desc AnalyzerDescriptor, imagePath string) (*Finding, error)
}

// RemoteAnalyzer posts the image to the analysis API.
type RemoteAnalyzer interface {
	Analyze(ctx context.Context, docType DocumentType, imagePath string) (*Finding, error)
}

// Coordinator decides per invocation whether the local model or the remote
// API produces the finding. Local goes first; a failure, timeout, or
// below-threshold result falls back to remote. The first successful source
// wins and results are never merged.
type Coordinator struct {
	registry *Registry
	local    LocalAnalyzer
	remote   RemoteAnalyzer
}

// NewCoordinator wires the analysis paths. Either analyzer may be nil to
// disable that path; the registry decides per modality whether the local
// path applies.
func NewCoordinator(registry *Registry, local LocalAnalyzer, remote RemoteAnalyzer) *Coordinator {
	return &Coordinator{registry: registry, local: local, remote: remote}
}

// Analyze produces a finding for the document at imagePath.
func (c *Coordinator) Analyze(ctx context.Context, docType DocumentType, imagePath string) (*Finding, error) {
	desc := c.registry.Descriptor(docType)

	if desc.LocalSupported && c.local != nil {
		finding, err := c.local.Analyze(ctx, desc, imagePath)
		switch {
		case err != nil:
			log.Warn().Err(err).Str("document_type", string(docType)).Str("source", "local").Msg("analysis attempt failed")
		case finding.BestConfidence() < desc.ConfidenceThreshold:
			log.Info().
				Float64("confidence", finding.BestConfidence()).
				Float64("threshold", desc.ConfidenceThreshold).
				Str("document_type", string(docType)).
				Msg("local result below confidence threshold")
		default:
			log.Info().Str("document_type", string(docType)).Str("source", "local").Msg("analysis complete")
			return finding, nil
		}
	}

	if c.remote != nil {
		finding, err := c.remote.Analyze(ctx, docType, imagePath)
		if err != nil {
			log.Warn().Err(err).Str("document_type", string(docType)).Str("source", "remote").Msg("analysis attempt failed")
		} else {
			log.Info().Str("document_type", string(docType)).Str("source", "remote").Msg("analysis complete")
			return finding, nil
		}
	}

	return nil, ErrAnalysisUnavailable
}
