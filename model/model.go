package model

import (
	"errors"
	"time"

	"github.com/mbolis/mediflow/form"
)

const (
	StatusDraft     = "draft"
	StatusPublished = "published"

	TypeBooking = "BOOKING"
	TypeCustom  = "CUSTOM"
	TypeSystem  = "SYSTEM"
)

// ErrNotFound is returned by every store and API client for a missing
// record.
var ErrNotFound = errors.New("not found")

// FormRecord is a form as stored by the Forms API.
type FormRecord struct {
	ID       string      `json:"id,omitempty"`
	Version  int         `json:"version,omitempty"`
	Title    string      `json:"title" validate:"required"`
	Status   string      `json:"status" validate:"required,oneof=draft published"`
	Type     string      `json:"type" validate:"required,oneof=BOOKING CUSTOM SYSTEM"`
	IsActive bool        `json:"isActive"`
	ClinicID string      `json:"clinicId,omitempty"`
	Config   form.Config `json:"config"`
}

// Served reports whether the form may be shown to the public.
func (f FormRecord) Served() bool {
	return f.Status == StatusPublished && f.IsActive
}

type Submission struct {
	ID        string         `json:"id"`
	FormID    string         `json:"formId"`
	ClinicID  string         `json:"clinicId,omitempty"`
	UserID    string         `json:"userId,omitempty"`
	Data      form.AnswerSet `json:"data"`
	CreatedAt time.Time      `json:"createdAt"`
}

type Service struct {
	ID       string `json:"id"`
	ClinicID string `json:"clinicId"`
	Name     string `json:"name"`
	// Duration in minutes.
	Duration         int    `json:"duration"`
	ConsultationType string `json:"consultationType"`
}

type Practitioner struct {
	ID       string `json:"id"`
	ClinicID string `json:"clinicId"`
	Name     string `json:"name"`
	Role     string `json:"role"`
	Timezone string `json:"timezone,omitempty"`
}
