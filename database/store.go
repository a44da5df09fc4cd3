package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mbolis/mediflow/catalog"
	"github.com/mbolis/mediflow/form"
	"github.com/mbolis/mediflow/model"
	"github.com/mbolis/mediflow/submission"
)

var (
	ErrNotFound = model.ErrNotFound
	ErrConflict = errors.New("version conflict")
)

// Store is the local Forms API: forms, submissions with their booking side
// effects, and the service/practitioner catalog.
type Store struct {
	db *sql.DB
	// loc is applied to schedule answers when the practitioner has no zone.
	loc *time.Location
	now func() time.Time
}

func NewStore(db *sql.DB, loc *time.Location) *Store {
	if loc == nil {
		loc = time.UTC
	}
	return &Store{db: db, loc: loc, now: time.Now}
}

func (s *Store) DB() *sql.DB {
	return s.db
}

type scanner interface {
	Scan(dest ...any) error
}

const formColumns = `id, version, title, status, type, is_active, clinic_id, config`

func scanForm(row scanner) (f model.FormRecord, err error) {
	var config string
	err = row.Scan(&f.ID, &f.Version, &f.Title, &f.Status, &f.Type, &f.IsActive, &f.ClinicID, &config)
	if err != nil {
		return
	}
	err = json.Unmarshal([]byte(config), &f.Config)
	return
}

func (s *Store) Form(ctx context.Context, id string) (model.FormRecord, error) {
	f, err := scanForm(s.db.QueryRowContext(ctx, `
		SELECT `+formColumns+`
		FROM form
		WHERE id = ?`,
		id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return f, ErrNotFound
	}
	return f, err
}

func (s *Store) ListForms(ctx context.Context, clinicID string) ([]model.FormRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+formColumns+`
		FROM form
		WHERE clinic_id = ?
		ORDER BY created_at DESC`,
		clinicID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	forms := []model.FormRecord{}
	for rows.Next() {
		f, err := scanForm(rows)
		if err != nil {
			return nil, err
		}
		forms = append(forms, f)
	}
	return forms, rows.Err()
}

// CreateForm stores f as a new form with a fresh id at version 1.
func (s *Store) CreateForm(ctx context.Context, f model.FormRecord) (model.FormRecord, error) {
	f.ID = uuid.NewString()
	f.Version = 1
	f.Config.ClinicID = f.ClinicID

	config, err := json.Marshal(f.Config)
	if err != nil {
		return f, err
	}

	now := s.now()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO form (id, clinic_id, version, title, status, type, is_active, config, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.ClinicID, f.Version, f.Title, f.Status, f.Type, f.IsActive, string(config), now, now,
	)
	return f, err
}

// UpdateForm replaces the form f.ID of f.ClinicID. f.Version must be the
// stored version, otherwise ErrConflict is returned.
func (s *Store) UpdateForm(ctx context.Context, f model.FormRecord) (model.FormRecord, error) {
	f.Config.ClinicID = f.ClinicID
	config, err := json.Marshal(f.Config)
	if err != nil {
		return f, err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE form
		SET
			title = ?,
			status = ?,
			type = ?,
			is_active = ?,
			config = ?,
			updated_at = ?,
			version = version+1
		WHERE id = ?
			AND clinic_id = ?
			AND version = ?`,
		f.Title, f.Status, f.Type, f.IsActive, string(config), s.now(),
		f.ID, f.ClinicID, f.Version,
	)
	if err != nil {
		return f, err
	}
	// optimistic lock
	n, err := res.RowsAffected()
	if err != nil {
		return f, err
	}
	if n < 1 {
		var exists bool
		err = s.db.QueryRowContext(ctx, `SELECT 1 FROM form WHERE id = ? AND clinic_id = ?`, f.ID, f.ClinicID).Scan(&exists)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return f, ErrNotFound
		case err != nil:
			return f, err
		}
		return f, ErrConflict
	}

	f.Version++
	return f, nil
}

func (s *Store) DeleteForm(ctx context.Context, clinicID, id string) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM form
		WHERE id = ?
			AND clinic_id = ?`,
		id,
		clinicID,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n < 1 {
		return ErrNotFound
	}
	return nil
}

// ListSubmissions returns the submissions of a form, newest first.
func (s *Store) ListSubmissions(ctx context.Context, formID string) ([]model.Submission, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, form_id, clinic_id, user_id, data, created_at
		FROM submission
		WHERE form_id = ?
		ORDER BY created_at DESC`,
		formID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	submissions := []model.Submission{}
	for rows.Next() {
		var sub model.Submission
		var data string
		err = rows.Scan(&sub.ID, &sub.FormID, &sub.ClinicID, &sub.UserID, &data, &sub.CreatedAt)
		if err != nil {
			return nil, err
		}
		if err = json.Unmarshal([]byte(data), &sub.Data); err != nil {
			return nil, err
		}
		submissions = append(submissions, sub)
	}
	return submissions, rows.Err()
}

// CreateSubmission persists a submission and, for booking payloads, the
// appointment described by its answers, in one transaction. It never
// issues meeting links.
func (s *Store) CreateSubmission(ctx context.Context, p submission.Payload) (receipt submission.Receipt, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return
	}
	defer tx.Rollback()

	f, err := scanForm(tx.QueryRowContext(ctx, `SELECT `+formColumns+` FROM form WHERE id = ?`, p.FormID))
	if errors.Is(err, sql.ErrNoRows) {
		err = ErrNotFound
	}
	if err != nil {
		return
	}

	data, err := json.Marshal(p.Data)
	if err != nil {
		return
	}

	now := s.now()
	receipt.SubmissionID = uuid.NewString()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO submission (id, form_id, clinic_id, user_id, data, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		receipt.SubmissionID, p.FormID, p.ClinicID, p.UserID, string(data), now,
	)
	if err != nil {
		return
	}

	if p.Booking {
		receipt.Appointment, err = s.book(ctx, tx, f.Config, p, receipt.SubmissionID, now)
		if err != nil {
			return
		}
	}

	err = tx.Commit()
	return
}

func (s *Store) book(ctx context.Context, tx *sql.Tx, cfg form.Config, p submission.Payload, submissionID string, now time.Time) (*submission.Appointment, error) {
	apt := &submission.Appointment{
		ID:     uuid.NewString(),
		Type:   "in_person",
		Status: "scheduled",
	}

	var when *form.ScheduleValue
	for _, f := range cfg.AllFields() {
		switch f.Type {
		case form.ServiceSelection:
			if id, ok := p.Data.String(f.ID); ok && apt.ServiceID == "" {
				apt.ServiceID = id
			}
		case form.PractitionerSelection, form.DoctorSelection:
			if id, ok := p.Data.String(f.ID); ok && apt.PractitionerID == "" {
				apt.PractitionerID = id
			}
		case form.Schedule:
			if v, ok := p.Data.Schedule(f.ID); ok && when == nil {
				when = &v
			}
		}
	}

	if apt.ServiceID != "" {
		err := tx.QueryRowContext(ctx, `SELECT consultation_type FROM service WHERE id = ?`, apt.ServiceID).Scan(&apt.Type)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("service %s: %w", apt.ServiceID, ErrNotFound)
		}
		if err != nil {
			return nil, err
		}
	}

	loc := s.loc
	if apt.PractitionerID != "" {
		var zone string
		err := tx.QueryRowContext(ctx, `SELECT timezone FROM practitioner WHERE id = ?`, apt.PractitionerID).Scan(&zone)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("practitioner %s: %w", apt.PractitionerID, ErrNotFound)
		}
		if err != nil {
			return nil, err
		}
		if zone != "" {
			if loc, err = time.LoadLocation(zone); err != nil {
				return nil, fmt.Errorf("practitioner %s timezone: %w", apt.PractitionerID, err)
			}
		}
	}

	if when != nil {
		t, err := when.In(loc)
		if err != nil {
			return nil, fmt.Errorf("schedule: %w", err)
		}
		apt.StartsAt = t.UTC().Format(time.RFC3339)
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO appointment (id, submission_id, clinic_id, service_id, practitioner_id, type, status, starts_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		apt.ID, submissionID, p.ClinicID, apt.ServiceID, apt.PractitionerID, apt.Type, apt.Status, apt.StartsAt, now,
	)
	if err != nil {
		return nil, err
	}
	return apt, nil
}

func (s *Store) CreateService(ctx context.Context, svc model.Service) (model.Service, error) {
	if svc.ID == "" {
		svc.ID = uuid.NewString()
	}
	if svc.ConsultationType == "" {
		svc.ConsultationType = "in_person"
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO service (id, clinic_id, name, duration, consultation_type)
		VALUES (?, ?, ?, ?, ?)`,
		svc.ID, svc.ClinicID, svc.Name, svc.Duration, svc.ConsultationType,
	)
	return svc, err
}

func (s *Store) CreatePractitioner(ctx context.Context, p model.Practitioner) (model.Practitioner, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Role == "" {
		p.Role = "practitioner"
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO practitioner (id, clinic_id, name, role, timezone)
		VALUES (?, ?, ?, ?, ?)`,
		p.ID, p.ClinicID, p.Name, p.Role, p.Timezone,
	)
	return p, err
}

func (s *Store) entries(ctx context.Context, query string, args ...any) ([]form.Entry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []form.Entry{}
	for rows.Next() {
		var e form.Entry
		if err := rows.Scan(&e.ID, &e.Label); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *Store) entry(ctx context.Context, query string, id string) (form.Entry, error) {
	var e form.Entry
	err := s.db.QueryRowContext(ctx, query, id).Scan(&e.ID, &e.Label)
	if errors.Is(err, sql.ErrNoRows) {
		return e, catalog.ErrNotFound
	}
	return e, err
}

func (s *Store) Services(ctx context.Context, clinicID string) ([]form.Entry, error) {
	return s.entries(ctx, `
		SELECT id, name
		FROM service
		WHERE ? = '' OR clinic_id = ?
		ORDER BY name`,
		clinicID, clinicID,
	)
}

func (s *Store) Practitioners(ctx context.Context, clinicID string, role string) ([]form.Entry, error) {
	return s.entries(ctx, `
		SELECT id, name
		FROM practitioner
		WHERE (? = '' OR clinic_id = ?)
			AND (? = '' OR role = ?)
		ORDER BY name`,
		clinicID, clinicID, role, role,
	)
}

func (s *Store) Service(ctx context.Context, id string) (form.Entry, error) {
	return s.entry(ctx, `SELECT id, name FROM service WHERE id = ?`, id)
}

func (s *Store) Practitioner(ctx context.Context, id string) (form.Entry, error) {
	return s.entry(ctx, `SELECT id, name FROM practitioner WHERE id = ?`, id)
}
