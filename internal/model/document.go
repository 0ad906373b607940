package model

import "strings"

// DocumentType identifies the kind of source document being processed
type DocumentType string

const (
	DocTypeOTAssessment  DocumentType = "OT_ASSESSMENT"  // Occupational therapy in-home assessment
	DocTypeReferral      DocumentType = "REFERRAL"       // Referral letter from insurer, lawyer or physician
	DocTypeMedicalRecord DocumentType = "MEDICAL_RECORD" // Clinical notes, discharge summaries, consult reports
	DocTypeUnknown       DocumentType = "UNKNOWN"        // Not classified with enough confidence
)

// DocumentTypes lists every known document type in a stable order
func DocumentTypes() []DocumentType {
	return []DocumentType{DocTypeOTAssessment, DocTypeReferral, DocTypeMedicalRecord, DocTypeUnknown}
}

// IsValid reports whether t is one of the known document types
func (t DocumentType) IsValid() bool {
	switch t {
	case DocTypeOTAssessment, DocTypeReferral, DocTypeMedicalRecord, DocTypeUnknown:
		return true
	default:
		return false
	}
}

func (t DocumentType) String() string {
	return string(t)
}

// ParseDocumentType parses a document type name.
// Matching is case-insensitive and accepts '-' or ' ' in place of '_'.
func ParseDocumentType(s string) (DocumentType, error) {
	norm := strings.ToUpper(strings.TrimSpace(s))
	norm = strings.NewReplacer("-", "_", " ", "_").Replace(norm)

	t := DocumentType(norm)
	if !t.IsValid() {
		return DocTypeUnknown, &ValidationError{
			Field:  "document_type",
			Reason: "unknown document type " + `"` + s + `"`,
		}
	}
	return t, nil
}
