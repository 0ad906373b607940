package model

// SchemaVersion versions the fixed section/field layout of ExtractionResult.
// Bump it whenever a section or field is added, removed or renamed.
const SchemaVersion = "1"

// Section names a top-level assessment section
type Section string

const (
	SectionDemographics     Section = "demographics"
	SectionMedicalHistory   Section = "medical_history"
	SectionSymptoms         Section = "symptoms"
	SectionFunctionalStatus Section = "functional_status"
	SectionEnvironmental    Section = "environmental"
	SectionAttendantCare    Section = "attendant_care"
	SectionRecommendations  Section = "recommendations"
)

// FieldKind drives value-shape validation and enhancement of a field
type FieldKind string

const (
	KindText   FieldKind = "text"
	KindName   FieldKind = "name"
	KindDate   FieldKind = "date"
	KindList   FieldKind = "list"
	KindNumber FieldKind = "number"
	KindPhone  FieldKind = "phone"
	KindEmail  FieldKind = "email"
)

// FieldSpec describes one field of a section
type FieldSpec struct {
	ID   string    `json:"id" yaml:"id"`
	Kind FieldKind `json:"kind" yaml:"kind"`
}

// SectionSpec describes one section and its ordered fields
type SectionSpec struct {
	Name   Section     `json:"name" yaml:"name"`
	Fields []FieldSpec `json:"fields" yaml:"fields"`
}

var schema = []SectionSpec{
	{Name: SectionDemographics, Fields: []FieldSpec{
		{ID: "name", Kind: KindName},
		{ID: "dob", Kind: KindDate},
		{ID: "gender", Kind: KindText},
		{ID: "address", Kind: KindText},
		{ID: "phone", Kind: KindPhone},
		{ID: "email", Kind: KindEmail},
		{ID: "claim_number", Kind: KindText},
		{ID: "date_of_loss", Kind: KindDate},
	}},
	{Name: SectionMedicalHistory, Fields: []FieldSpec{
		{ID: "diagnoses", Kind: KindList},
		{ID: "medications", Kind: KindList},
		{ID: "allergies", Kind: KindList},
		{ID: "surgeries", Kind: KindList},
		{ID: "pre_accident_history", Kind: KindText},
		{ID: "family_physician", Kind: KindName},
	}},
	{Name: SectionSymptoms, Fields: []FieldSpec{
		{ID: "pain_locations", Kind: KindList},
		{ID: "pain_severity", Kind: KindNumber},
		{ID: "headaches", Kind: KindText},
		{ID: "sleep", Kind: KindText},
		{ID: "cognitive", Kind: KindText},
		{ID: "emotional", Kind: KindText},
	}},
	{Name: SectionFunctionalStatus, Fields: []FieldSpec{
		{ID: "mobility", Kind: KindText},
		{ID: "transfers", Kind: KindText},
		{ID: "self_care", Kind: KindText},
		{ID: "household_tasks", Kind: KindText},
		{ID: "driving", Kind: KindText},
		{ID: "assistive_devices", Kind: KindList},
		{ID: "work_status", Kind: KindText},
	}},
	{Name: SectionEnvironmental, Fields: []FieldSpec{
		{ID: "dwelling_type", Kind: KindText},
		{ID: "levels", Kind: KindNumber},
		{ID: "entrance_stairs", Kind: KindNumber},
		{ID: "bathroom", Kind: KindText},
		{ID: "lives_with", Kind: KindText},
	}},
	{Name: SectionAttendantCare, Fields: []FieldSpec{
		{ID: "level1_hours", Kind: KindNumber},
		{ID: "level2_hours", Kind: KindNumber},
		{ID: "level3_hours", Kind: KindNumber},
		{ID: "monthly_cost", Kind: KindNumber},
		{ID: "caregiver", Kind: KindText},
		{ID: "current_assistance", Kind: KindText},
	}},
	{Name: SectionRecommendations, Fields: []FieldSpec{
		{ID: "equipment", Kind: KindList},
		{ID: "therapy", Kind: KindList},
		{ID: "home_modifications", Kind: KindList},
		{ID: "attendant_care", Kind: KindText},
		{ID: "follow_up", Kind: KindText},
		{ID: "summary", Kind: KindText},
	}},
}

// Schema returns the section layout in a stable order. The returned slice is a copy.
func Schema() []SectionSpec {
	out := make([]SectionSpec, len(schema))
	for i, s := range schema {
		out[i] = SectionSpec{Name: s.Name, Fields: append([]FieldSpec(nil), s.Fields...)}
	}
	return out
}

// Sections returns the section names in schema order
func Sections() []Section {
	out := make([]Section, len(schema))
	for i, s := range schema {
		out[i] = s.Name
	}
	return out
}

// LookupSection returns the schema definition of a section
func LookupSection(name Section) (SectionSpec, bool) {
	for _, s := range schema {
		if s.Name == name {
			return s, true
		}
	}
	return SectionSpec{}, false
}

// LookupField returns the schema definition of a field
func LookupField(section Section, field string) (FieldSpec, bool) {
	s, ok := LookupSection(section)
	if !ok {
		return FieldSpec{}, false
	}
	for _, f := range s.Fields {
		if f.ID == field {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// FieldPath joins a section and field into the dotted path used by diffs ("demographics.name")
func FieldPath(section Section, field string) string {
	return string(section) + "." + field
}
