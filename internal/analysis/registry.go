package analysis

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
)

// Registry holds the immutable analyzer descriptor table, one slot per
// document type.
type Registry struct {
	descriptors map[DocumentType]AnalyzerDescriptor
}

// NewRegistry builds the descriptor table. A modality supports local
// analysis only when useLocal is set and its weights file exists under
// modelsDir; a missing file degrades that modality to remote-only, which
// is a startup error when no fallback is configured. Unknown documents are
// always remote-only.
func NewRegistry(modelsDir string, useLocal, useFallback bool, threshold float64, weightsOverrides map[string]string) (*Registry, error) {
	r := &Registry{descriptors: make(map[DocumentType]AnalyzerDescriptor, len(DocumentTypes)+1)}

	for _, dt := range DocumentTypes {
		weights := defaultWeights[dt]
		if override, ok := weightsOverrides[string(dt)]; ok {
			weights = override
		}
		desc := AnalyzerDescriptor{
			DocumentType:        dt,
			WeightsFile:         weights,
			ConfidenceThreshold: threshold,
			LocalSupported:      useLocal,
		}
		if useLocal {
			if _, err := os.Stat(filepath.Join(modelsDir, weights)); err != nil {
				if !useFallback {
					return nil, fmt.Errorf("model weights for %s not found in %s and api fallback is disabled", dt, modelsDir)
				}
				log.Warn().Str("document_type", string(dt)).Str("weights", weights).Msg("model weights missing, using api for this modality")
				desc.LocalSupported = false
			}
		}
		r.descriptors[dt] = desc
	}

	r.descriptors[TypeUnknown] = AnalyzerDescriptor{
		DocumentType:        TypeUnknown,
		ConfidenceThreshold: threshold,
	}
	return r, nil
}

// Descriptor returns the analyzer slot for dt. Unrecognized types get the
// unknown slot.
func (r *Registry) Descriptor(dt DocumentType) AnalyzerDescriptor {
	if desc, ok := r.descriptors[dt]; ok {
		return desc
	}
	return r.descriptors[TypeUnknown]
}

// Descriptors returns every slot in detection order, unknown last.
func (r *Registry) Descriptors() []AnalyzerDescriptor {
	out := make([]AnalyzerDescriptor, 0, len(r.descriptors))
	for _, dt := range DocumentTypes {
		out = append(out, r.descriptors[dt])
	}
	out = append(out, r.descriptors[TypeUnknown])
	return out
}
