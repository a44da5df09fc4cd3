// Package submission turns a completed answer set into a persisted
// submission through a Forms API backend.
package submission

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mbolis/mediflow/form"
	"github.com/mbolis/mediflow/log"
)

const VideoAppointment = "video"

var (
	ErrValidationFailed = errors.New("submission: validation failed")
	ErrTransportFailure = errors.New("submission: transport failure")
)

// ValidationFailedError carries the full validation result of a rejected
// submission. Nothing was persisted.
type ValidationFailedError struct {
	Result form.Result
}

func (e *ValidationFailedError) Error() string {
	return fmt.Sprintf("%s: %d field(s)", ErrValidationFailed, len(e.Result.Errors))
}

func (e *ValidationFailedError) Unwrap() error {
	return ErrValidationFailed
}

// TransportError reports that the backend did not confirm the submission.
// The submission must be considered not created.
type TransportError struct {
	Message string
	Err     error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %s", ErrTransportFailure, e.Message)
}

func (e *TransportError) Is(target error) bool {
	return target == ErrTransportFailure
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Session is the caller identity and tenant a submission is made under.
type Session struct {
	ClinicID string
	UserID   string
}

// Payload is what the backend persists.
type Payload struct {
	FormID   string         `json:"formId"`
	ClinicID string         `json:"clinicId,omitempty"`
	UserID   string         `json:"userId,omitempty"`
	Data     form.AnswerSet `json:"data"`
	// Booking asks the backend to create an appointment from the answers.
	Booking bool `json:"booking"`
}

type Appointment struct {
	ID             string `json:"id"`
	Type           string `json:"type"`
	Status         string `json:"status,omitempty"`
	ServiceID      string `json:"serviceId,omitempty"`
	PractitionerID string `json:"practitionerId,omitempty"`
	StartsAt       string `json:"startsAt,omitempty"`
}

// Receipt is the backend answer to a persisted submission.
type Receipt struct {
	SubmissionID string       `json:"id"`
	Appointment  *Appointment `json:"appointment,omitempty"`
	MeetingLink  string       `json:"meetingLink,omitempty"`
}

// Backend persists submissions and owns every booking side effect.
type Backend interface {
	CreateSubmission(ctx context.Context, p Payload) (Receipt, error)
}

type Outcome struct {
	SubmissionID string       `json:"submissionId"`
	Appointment  *Appointment `json:"appointment,omitempty"`
	MeetingLink  string       `json:"meetingLink,omitempty"`
}

type Pipeline struct {
	Backend Backend
	// Origin is the public base URL used for fallback meeting links.
	Origin string
}

func New(backend Backend, origin string) *Pipeline {
	return &Pipeline{Backend: backend, Origin: strings.TrimRight(origin, "/")}
}

// Submit validates answers against cfg and hands them to the backend. It
// never retries: a failed submission is resubmitted by the user, and each
// successful call creates a new submission.
func (p *Pipeline) Submit(ctx context.Context, s Session, formID string, cfg form.Config, answers form.AnswerSet) (Outcome, error) {
	result := form.Validate(cfg, answers)
	if !result.OK {
		return Outcome{}, &ValidationFailedError{Result: result}
	}

	clinicID := s.ClinicID
	if clinicID == "" {
		clinicID = cfg.ClinicID
	}
	receipt, err := p.Backend.CreateSubmission(ctx, Payload{
		FormID:   formID,
		ClinicID: clinicID,
		UserID:   s.UserID,
		Data:     answers.Declared(cfg),
		Booking:  cfg.IsBooking(),
	})
	if err != nil {
		log.WithFields(log.Fields{"form": formID, "booking": cfg.IsBooking()}).
			Errorf("submission.create: %s", err)
		return Outcome{}, &TransportError{Message: err.Error(), Err: err}
	}
	if receipt.SubmissionID == "" {
		log.WithFields(log.Fields{"form": formID}).Error("submission.create: empty submission id")
		return Outcome{}, &TransportError{Message: "backend returned no submission id"}
	}

	out := Outcome{
		SubmissionID: receipt.SubmissionID,
		Appointment:  receipt.Appointment,
		MeetingLink:  receipt.MeetingLink,
	}
	if out.MeetingLink == "" && out.Appointment != nil && out.Appointment.Type == VideoAppointment {
		out.MeetingLink = p.MeetingLink(out.Appointment.ID)
	}
	log.WithFields(log.Fields{"form": formID, "submission": out.SubmissionID}).Debug("submission.create")
	return out, nil
}

// MeetingLink is the conventional "view meeting" URL of an appointment.
func (p *Pipeline) MeetingLink(appointmentID string) string {
	return p.Origin + "/meet/" + appointmentID
}
