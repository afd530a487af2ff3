package analysis

import "strings"

// keywordTable maps each modality to the phrases that identify it in the
// extracted document text.
var keywordTable = map[DocumentType][]string{
	TypeXRay:       {"x-ray", "xray", "radiograph"},
	TypeMRI:        {"mri", "magnetic resonance"},
	TypeCT:         {"ct scan", "computed tomography", "cat scan"},
	TypeECG:        {"ecg", "ekg", "electrocardiogram"},
	TypeTextReport: {"medical report", "clinical report", "lab report", "discharge summary"},
}

// DetectDocumentType classifies extracted text against the keyword table.
// Exactly one matching modality wins; zero or several matches yields
// TypeUnknown. Matching is case-insensitive and deterministic.
func DetectDocumentType(text string) DocumentType {
	lower := strings.ToLower(text)

	matched := TypeUnknown
	matches := 0
	for _, dt := range DocumentTypes {
		for _, keyword := range keywordTable[dt] {
			if strings.Contains(lower, keyword) {
				matched = dt
				matches++
				break
			}
		}
	}
	if matches != 1 {
		return TypeUnknown
	}
	return matched
}
