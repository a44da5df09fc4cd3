package form

import "fmt"

type FieldType string

const (
	Text                  FieldType = "text"
	TextArea              FieldType = "textarea"
	Select                FieldType = "select"
	Checkbox              FieldType = "checkbox"
	Date                  FieldType = "date"
	Header                FieldType = "header"
	ServiceSelection      FieldType = "service_selection"
	PractitionerSelection FieldType = "practitioner_selection"
	DoctorSelection       FieldType = "doctor_selection"
	Schedule              FieldType = "schedule"
)

var knownTypes = map[FieldType]bool{
	Text: true, TextArea: true, Select: true, Checkbox: true, Date: true, Header: true,
	ServiceSelection: true, PractitionerSelection: true, DoctorSelection: true, Schedule: true,
}

// Known reports whether t belongs to the closed set of field types.
func (t FieldType) Known() bool {
	return knownTypes[t]
}

type Width string

const (
	Full Width = "full"
	Half Width = "half"
)

// Field is a single input of a form.
type Field struct {
	ID       string    `json:"id"`
	Type     FieldType `json:"type"`
	Label    string    `json:"label"`
	Required bool      `json:"required"`
	// Width is a layout hint: two adjacent half fields share a row.
	Width Width `json:"width,omitempty"`
	// Options lists the permissible values of select and checkbox fields.
	// Catalog-backed fields leave it empty, their choices come from a
	// catalog lookup.
	Options []string `json:"options,omitempty"`
}

// CatalogBacked reports whether the field choices are looked up in an
// external catalog instead of being declared.
func (f Field) CatalogBacked() bool {
	switch f.Type {
	case ServiceSelection, PractitionerSelection, DoctorSelection:
		return true
	}
	return false
}

func (f Field) width() Width {
	if f.Width == Half {
		return Half
	}
	return Full
}

func (f Field) hasOption(v string) bool {
	for _, o := range f.Options {
		if o == v {
			return true
		}
	}
	return false
}

// Step is one page of a multi-step form.
type Step struct {
	ID     string  `json:"id"`
	Title  string  `json:"title"`
	Fields []Field `json:"fields"`
}

// Config is the authoring document of a form. Exactly one of Steps and
// Fields is populated.
type Config struct {
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	Steps       []Step  `json:"steps,omitempty"`
	Fields      []Field `json:"fields,omitempty"`
	ClinicID    string  `json:"clinicId,omitempty"`
}

// Pages returns the steps of the form in order. A flat form is a single
// implicit step.
func (cfg Config) Pages() []Step {
	if len(cfg.Steps) > 0 {
		return cfg.Steps
	}
	if len(cfg.Fields) > 0 {
		return []Step{{Title: cfg.Title, Fields: cfg.Fields}}
	}
	return nil
}

// AllFields returns every field in declaration order.
func (cfg Config) AllFields() []Field {
	var fields []Field
	for _, s := range cfg.Pages() {
		fields = append(fields, s.Fields...)
	}
	return fields
}

// IsBooking reports whether submitting the form books an appointment.
func (cfg Config) IsBooking() bool {
	for _, f := range cfg.AllFields() {
		switch f.Type {
		case ServiceSelection, PractitionerSelection, Schedule:
			return true
		}
	}
	return false
}

// Clone returns a deep copy of cfg.
func (cfg Config) Clone() Config {
	out := cfg
	out.Fields = cloneFields(cfg.Fields)
	if cfg.Steps != nil {
		out.Steps = make([]Step, len(cfg.Steps))
		for i, s := range cfg.Steps {
			s.Fields = cloneFields(s.Fields)
			out.Steps[i] = s
		}
	}
	return out
}

func cloneFields(fields []Field) []Field {
	if fields == nil {
		return nil
	}
	out := make([]Field, len(fields))
	for i, f := range fields {
		if f.Options != nil {
			f.Options = append([]string(nil), f.Options...)
		}
		out[i] = f
	}
	return out
}

type ShapeErrorKind string

const (
	DuplicateFieldID ShapeErrorKind = "DuplicateFieldId"
	AmbiguousLayout  ShapeErrorKind = "AmbiguousLayout"
	EmptyForm        ShapeErrorKind = "EmptyForm"
	MissingFieldID   ShapeErrorKind = "MissingFieldId"
	UnknownFieldType ShapeErrorKind = "UnknownFieldType"
	MissingOptions   ShapeErrorKind = "MissingOptions"
)

// ShapeError reports a malformed Config.
type ShapeError struct {
	Kind    ShapeErrorKind `json:"kind"`
	FieldID string         `json:"fieldId,omitempty"`
}

func (e *ShapeError) Error() string {
	if e.FieldID == "" {
		return fmt.Sprintf("form shape: %s", e.Kind)
	}
	return fmt.Sprintf("form shape: %s (field %q)", e.Kind, e.FieldID)
}

// Is matches any ShapeError of the same kind, so the sentinels below work
// with errors.Is.
func (e *ShapeError) Is(target error) bool {
	t, ok := target.(*ShapeError)
	return ok && t.Kind == e.Kind
}

var (
	ErrDuplicateFieldID = &ShapeError{Kind: DuplicateFieldID}
	ErrAmbiguousLayout  = &ShapeError{Kind: AmbiguousLayout}
	ErrEmptyForm        = &ShapeError{Kind: EmptyForm}
	ErrMissingFieldID   = &ShapeError{Kind: MissingFieldID}
	ErrUnknownFieldType = &ShapeError{Kind: UnknownFieldType}
	ErrMissingOptions   = &ShapeError{Kind: MissingOptions}
)

// ValidateShape checks the structural invariants of cfg. Duplicate ids are
// reported before any other violation, then layout problems, then the
// remaining per-field checks in declaration order.
func ValidateShape(cfg Config) error {
	declared := cloneFields(cfg.Fields)
	for _, s := range cfg.Steps {
		declared = append(declared, s.Fields...)
	}

	seen := make(map[string]bool)
	for _, f := range declared {
		if f.ID == "" {
			continue
		}
		if seen[f.ID] {
			return &ShapeError{Kind: DuplicateFieldID, FieldID: f.ID}
		}
		seen[f.ID] = true
	}

	if len(cfg.Steps) > 0 && len(cfg.Fields) > 0 {
		return &ShapeError{Kind: AmbiguousLayout}
	}
	if len(cfg.Steps) == 0 && len(cfg.Fields) == 0 {
		return &ShapeError{Kind: EmptyForm}
	}

	for _, f := range cfg.AllFields() {
		switch {
		case f.ID == "":
			return &ShapeError{Kind: MissingFieldID}
		case !f.Type.Known():
			return &ShapeError{Kind: UnknownFieldType, FieldID: f.ID}
		case (f.Type == Select || f.Type == Checkbox) && len(f.Options) == 0:
			return &ShapeError{Kind: MissingOptions, FieldID: f.ID}
		}
	}
	return nil
}
