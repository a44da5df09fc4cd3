package form

import (
	"bytes"
	"encoding/json"
	"errors"
	"time"
)

type ErrorKind string

const (
	Required      ErrorKind = "Required"
	InvalidOption ErrorKind = "InvalidOption"
	InvalidValue  ErrorKind = "InvalidValue"
)

var ErrStepOutOfRange = errors.New("step index out of range")

// FieldError is the validation failure of a single field.
type FieldError struct {
	FieldID string
	Kind    ErrorKind
	Step    int
}

// Result is the outcome of a validation pass. Errors are in declaration
// order: step order, then field order within the step.
type Result struct {
	OK     bool
	Errors []FieldError
}

// Map returns the errors keyed by field id.
func (r Result) Map() map[string]ErrorKind {
	m := make(map[string]ErrorKind, len(r.Errors))
	for _, e := range r.Errors {
		m[e.FieldID] = e.Kind
	}
	return m
}

// Error returns the failure recorded for id, if any.
func (r Result) Error(id string) (ErrorKind, bool) {
	for _, e := range r.Errors {
		if e.FieldID == id {
			return e.Kind, true
		}
	}
	return "", false
}

// FirstStep returns the index of the earliest step with an error, or -1.
func (r Result) FirstStep() int {
	if len(r.Errors) == 0 {
		return -1
	}
	return r.Errors[0].Step
}

// MarshalJSON writes {"ok":...,"errors":{...}} keeping the errors object
// in declaration order.
func (r Result) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"ok":`)
	if r.OK {
		buf.WriteString("true")
	} else {
		buf.WriteString("false")
	}
	buf.WriteString(`,"errors":{`)
	for i, e := range r.Errors {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(e.FieldID)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		kind, err := json.Marshal(e.Kind)
		if err != nil {
			return nil, err
		}
		buf.Write(kind)
	}
	buf.WriteString("}}")
	return buf.Bytes(), nil
}

// Validate checks answers against every field of cfg, whatever step the
// user is on. It is the pass that gates submission.
func Validate(cfg Config, answers AnswerSet) Result {
	r := Result{OK: true}
	for i, s := range cfg.Pages() {
		r.Errors = append(r.Errors, validateStep(i, s, answers)...)
	}
	r.OK = len(r.Errors) == 0
	return r
}

// ValidateStep checks only the fields of the step at index. It gates "next"
// navigation and drives live inline errors.
func ValidateStep(cfg Config, answers AnswerSet, index int) (Result, error) {
	pages := cfg.Pages()
	if index < 0 || index >= len(pages) {
		return Result{}, ErrStepOutOfRange
	}
	errs := validateStep(index, pages[index], answers)
	return Result{OK: len(errs) == 0, Errors: errs}, nil
}

func validateStep(index int, s Step, answers AnswerSet) []FieldError {
	var errs []FieldError
	for _, f := range s.Fields {
		if kind, failed := validateField(f, answers[f.ID]); failed {
			errs = append(errs, FieldError{FieldID: f.ID, Kind: kind, Step: index})
		}
	}
	return errs
}

func validateField(f Field, v Value) (ErrorKind, bool) {
	if f.Type == Header {
		return "", false
	}
	// an object answer, even {}, only fits a schedule
	if _, ok := v.(ScheduleValue); ok && f.Type != Schedule {
		return InvalidValue, true
	}
	if isEmpty(v) {
		if f.Required {
			return Required, true
		}
		return "", false
	}

	switch f.Type {
	case Text, TextArea, ServiceSelection, PractitionerSelection, DoctorSelection:
		if _, ok := v.(string); !ok {
			return InvalidValue, true
		}

	case Select:
		s, ok := v.(string)
		if !ok {
			return InvalidValue, true
		}
		if !f.hasOption(s) {
			return InvalidOption, true
		}

	case Checkbox:
		var picked []string
		switch v := v.(type) {
		case string:
			picked = []string{v}
		case []string:
			picked = v
		default:
			return InvalidValue, true
		}
		for _, p := range picked {
			if !f.hasOption(p) {
				return InvalidOption, true
			}
		}

	case Date:
		s, ok := v.(string)
		if !ok {
			return InvalidValue, true
		}
		if _, err := time.Parse(DateLayout, s); err != nil {
			return InvalidValue, true
		}

	case Schedule:
		s, ok := v.(ScheduleValue)
		if !ok {
			return InvalidValue, true
		}
		if !s.complete() {
			return Required, true
		}
		if _, err := time.Parse(DateLayout, s.Date); err != nil {
			return InvalidValue, true
		}
		// the hour token also accepts one digit: require the exact HH:mm form
		t, err := time.Parse(TimeLayout, s.Time)
		if err != nil || t.Format(TimeLayout) != s.Time {
			return InvalidValue, true
		}

	default:
		return InvalidValue, true
	}
	return "", false
}
