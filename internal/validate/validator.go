package validate

import (
	"fmt"
	"math"
	"sort"

	"go.uber.org/multierr"

	"github.com/ppiankov/intake/internal/model"
)

// Result checks that an extraction result matches the closed schema: every section and
// field present, nothing unknown, confidences in [0,1] and supported value types.
// All problems are reported together.
func Result(r model.ExtractionResult) error {
	if r == nil {
		return &model.ValidationError{Field: "original_extraction", Reason: "missing"}
	}

	var err error
	for _, section := range sortedSections(r) {
		if _, ok := model.LookupSection(section); !ok {
			err = multierr.Append(err, &model.ValidationError{Field: string(section), Reason: "unknown section"})
		}
	}
	for _, spec := range model.Schema() {
		fields, ok := r[spec.Name]
		if !ok {
			err = multierr.Append(err, &model.ValidationError{Field: string(spec.Name), Reason: "section missing"})
			continue
		}
		for _, id := range sortedFields(fields) {
			if _, known := model.LookupField(spec.Name, id); !known {
				err = multierr.Append(err, &model.ValidationError{Field: model.FieldPath(spec.Name, id), Reason: "unknown field"})
			}
		}
		for _, f := range spec.Fields {
			path := model.FieldPath(spec.Name, f.ID)
			v, ok := fields[f.ID]
			if !ok {
				err = multierr.Append(err, &model.ValidationError{Field: path, Reason: "field missing"})
				continue
			}
			if math.IsNaN(v.Confidence) || v.Confidence < 0 || v.Confidence > 1 {
				err = multierr.Append(err, &model.ValidationError{Field: path, Reason: fmt.Sprintf("confidence %v outside [0,1]", v.Confidence)})
			}
			if cerr := model.CheckValue(v.Value); cerr != nil {
				err = multierr.Append(err, &model.ValidationError{Field: path, Reason: cerr.Error()})
			}
		}
	}
	return err
}

// Correction checks a reviewer's corrected record. Sections and fields may be left out
// (they were not reviewed) but nothing outside the schema is allowed and at least one
// field must be present.
func Correction(c model.Correction) error {
	if c == nil {
		return &model.ValidationError{Field: "corrected_data", Reason: "missing"}
	}

	var err error
	count := 0
	for _, section := range sortedCorrectionSections(c) {
		if _, ok := model.LookupSection(section); !ok {
			err = multierr.Append(err, &model.ValidationError{Field: string(section), Reason: "unknown section"})
			continue
		}
		fields := c[section]
		ids := make([]string, 0, len(fields))
		for id := range fields {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			path := model.FieldPath(section, id)
			if _, ok := model.LookupField(section, id); !ok {
				err = multierr.Append(err, &model.ValidationError{Field: path, Reason: "unknown field"})
				continue
			}
			if cerr := model.CheckValue(fields[id]); cerr != nil {
				err = multierr.Append(err, &model.ValidationError{Field: path, Reason: cerr.Error()})
				continue
			}
			count++
		}
	}
	if err == nil && count == 0 {
		err = &model.ValidationError{Field: "corrected_data", Reason: "no fields"}
	}
	return err
}

// DocumentType checks that t is one of the known types
func DocumentType(t model.DocumentType) error {
	if !t.IsValid() {
		return &model.ValidationError{Field: "document_type", Reason: fmt.Sprintf("unknown document type %q", string(t))}
	}
	return nil
}

// Training validates all inputs of a correction submission and combines the problems
func Training(original model.ExtractionResult, corrected model.Correction, docType model.DocumentType) error {
	return multierr.Combine(Result(original), Correction(corrected), DocumentType(docType))
}

func sortedSections(r model.ExtractionResult) []model.Section {
	out := make([]model.Section, 0, len(r))
	for s := range r {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func sortedCorrectionSections(c model.Correction) []model.Section {
	out := make([]model.Section, 0, len(c))
	for s := range c {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func sortedFields(s model.SectionResult) []string {
	out := make([]string, 0, len(s))
	for f := range s {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}
