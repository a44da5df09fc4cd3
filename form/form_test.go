package form

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bookingConfig() Config {
	return Config{
		Title: "Book a visit",
		Steps: []Step{
			{ID: "s1", Title: "Patient", Fields: []Field{
				{ID: "intro", Type: Header, Label: "About you"},
				{ID: "first", Type: Text, Label: "First name", Required: true, Width: Half},
				{ID: "last", Type: Text, Label: "Last name", Required: true, Width: Half},
				{ID: "dob", Type: Date, Label: "Date of birth"},
			}},
			{ID: "s2", Title: "Appointment", Fields: []Field{
				{ID: "service", Type: ServiceSelection, Label: "Service", Required: true},
				{ID: "doctor", Type: PractitionerSelection, Label: "Practitioner", Required: true},
				{ID: "when", Type: Schedule, Label: "When", Required: true},
				{ID: "reason", Type: Select, Label: "Reason", Options: []string{"checkup", "follow-up"}},
			}},
		},
	}
}

func TestValidateShape(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, ValidateShape(bookingConfig()))
	})

	t.Run("duplicate id across steps", func(t *testing.T) {
		cfg := bookingConfig()
		cfg.Steps[1].Fields[3].ID = "first"

		err := ValidateShape(cfg)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrDuplicateFieldID))

		var shapeErr *ShapeError
		require.True(t, errors.As(err, &shapeErr))
		assert.Equal(t, "first", shapeErr.FieldID)
	})

	t.Run("duplicate wins over other violations", func(t *testing.T) {
		cfg := Config{
			Steps:  []Step{{Fields: []Field{{ID: "a", Type: Select}}}, {Fields: []Field{{ID: "a", Type: "bogus"}}}},
			Fields: []Field{{ID: "b", Type: Text}},
		}
		assert.ErrorIs(t, ValidateShape(cfg), ErrDuplicateFieldID)
	})

	t.Run("ambiguous layout", func(t *testing.T) {
		cfg := bookingConfig()
		cfg.Fields = []Field{{ID: "extra", Type: Text}}
		assert.ErrorIs(t, ValidateShape(cfg), ErrAmbiguousLayout)
	})

	t.Run("empty form", func(t *testing.T) {
		assert.ErrorIs(t, ValidateShape(Config{Title: "nothing"}), ErrEmptyForm)
	})

	t.Run("select without options", func(t *testing.T) {
		cfg := Config{Fields: []Field{{ID: "pick", Type: Select}}}
		assert.ErrorIs(t, ValidateShape(cfg), ErrMissingOptions)
	})

	t.Run("unknown type", func(t *testing.T) {
		cfg := Config{Fields: []Field{{ID: "x", Type: "signature"}}}
		assert.ErrorIs(t, ValidateShape(cfg), ErrUnknownFieldType)
	})

	t.Run("missing id", func(t *testing.T) {
		cfg := Config{Fields: []Field{{Type: Text}}}
		assert.ErrorIs(t, ValidateShape(cfg), ErrMissingFieldID)
	})
}

func TestConfig(t *testing.T) {
	flat := Config{Title: "Flat", Fields: []Field{{ID: "a", Type: Text}}}
	pages := flat.Pages()
	require.Len(t, pages, 1)
	assert.Equal(t, "a", pages[0].Fields[0].ID)

	assert.True(t, bookingConfig().IsBooking())
	assert.False(t, flat.IsBooking())
	assert.False(t, Config{Fields: []Field{{ID: "d", Type: DoctorSelection}}}.IsBooking())

	orig := bookingConfig()
	clone := orig.Clone()
	clone.Steps[1].Fields[3].Options[0] = "changed"
	clone.Steps[0].Title = "changed"
	assert.Equal(t, "checkup", orig.Steps[1].Fields[3].Options[0])
	assert.Equal(t, "Patient", orig.Steps[0].Title)
}

func TestAnswerSetUnmarshal(t *testing.T) {
	var a AnswerSet
	err := a.UnmarshalJSON([]byte(`{
		"name": "Ada",
		"consent": true,
		"tags": ["a", "b"],
		"none": [],
		"when": {"date": "2026-11-02", "time": "09:30"},
		"skip": null,
		"weird": {"foo": 1},
		"number": 3
	}`))
	require.NoError(t, err)

	assert.Equal(t, "Ada", a["name"])
	assert.Equal(t, true, a["consent"])
	assert.Equal(t, []string{"a", "b"}, a["tags"])
	assert.Equal(t, []string{}, a["none"])
	assert.Equal(t, ScheduleValue{Date: "2026-11-02", Time: "09:30"}, a["when"])
	assert.NotContains(t, a, "skip")
	assert.IsType(t, Invalid{}, a["weird"])
	assert.IsType(t, Invalid{}, a["number"])
}
