// Package analysis classifies scanned documents and produces findings
// through local models with a remote API fallback.
package analysis

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// DocumentType is the detected modality of a scanned document.
type DocumentType string

const (
	TypeXRay       DocumentType = "xray"
	TypeMRI        DocumentType = "mri"
	TypeCT         DocumentType = "ct"
	TypeECG        DocumentType = "ecg"
	TypeTextReport DocumentType = "text_report"
	TypeUnknown    DocumentType = "unknown"
)

// DocumentTypes lists the detectable modalities in detection order.
// TypeUnknown is the fallback, not a detectable type.
var DocumentTypes = []DocumentType{TypeXRay, TypeMRI, TypeCT, TypeECG, TypeTextReport}

// Source identifies which analysis path produced a finding.
type Source string

const (
	SourceLocal  Source = "local"
	SourceRemote Source = "remote"
)

// Label is one classification output with its confidence.
type Label struct {
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
}

// Finding is the analysis result for one captured document.
type Finding struct {
	DocumentType DocumentType `json:"document_type"`
	Labels       []Label      `json:"labels"`
	Narrative    string       `json:"narrative"`
	Source       Source       `json:"source"`
	Inconclusive bool         `json:"inconclusive,omitempty"`
	AnalyzedAt   time.Time    `json:"analyzed_at"`
}

// Normalize clamps label confidences into [0,1] and marks the finding
// inconclusive when it carries no labels.
func (f *Finding) Normalize() {
	for i := range f.Labels {
		if f.Labels[i].Confidence < 0 {
			f.Labels[i].Confidence = 0
		}
		if f.Labels[i].Confidence > 1 {
			f.Labels[i].Confidence = 1
		}
	}
	if len(f.Labels) == 0 {
		f.Inconclusive = true
	}
}

// BestConfidence returns the highest label confidence, 0 when the finding
// has no labels.
func (f *Finding) BestConfidence() float64 {
	best := 0.0
	for _, l := range f.Labels {
		if l.Confidence > best {
			best = l.Confidence
		}
	}
	return best
}

// SpokenText is the narration read to the user for this finding.
func (f *Finding) SpokenText() string {
	if f.Narrative != "" {
		return f.Narrative
	}
	if f.Inconclusive || len(f.Labels) == 0 {
		return "The analysis was inconclusive. Please consult a medical professional."
	}
	parts := make([]string, 0, len(f.Labels))
	for _, l := range f.Labels {
		parts = append(parts, fmt.Sprintf("%s, %d percent confidence", l.Name, int(math.Round(l.Confidence*100))))
	}
	return fmt.Sprintf("Findings: %s.", strings.Join(parts, "; "))
}

// AnalyzerDescriptor describes one analyzer slot. The table is built once
// at startup and read-only afterwards.
type AnalyzerDescriptor struct {
	DocumentType        DocumentType
	WeightsFile         string
	ConfidenceThreshold float64
	LocalSupported      bool
}
