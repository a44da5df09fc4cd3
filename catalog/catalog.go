// Package catalog resolves the choices of catalog-backed form fields
// (services, practitioners) through an external source.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mbolis/mediflow/form"
	"github.com/mbolis/mediflow/model"
)

const RoleDoctor = "doctor"

var ErrNotFound = model.ErrNotFound

// Source looks up catalog entries. Implementations talk to the local store
// or to a remote API.
type Source interface {
	Services(ctx context.Context, clinicID string) ([]form.Entry, error)
	// Practitioners lists the practitioners of a clinic; an empty role lists
	// all of them.
	Practitioners(ctx context.Context, clinicID string, role string) ([]form.Entry, error)
	Service(ctx context.Context, id string) (form.Entry, error)
	Practitioner(ctx context.Context, id string) (form.Entry, error)
}

// Resolve looks up the choices of every catalog-backed field of cfg. Each
// kind of list is fetched once. cfg is left untouched: choices live in the
// returned Entries.
func Resolve(ctx context.Context, src Source, cfg form.Config) (form.Entries, error) {
	entries := form.Entries{}
	lists := map[form.FieldType][]form.Entry{}

	for _, f := range cfg.AllFields() {
		if !f.CatalogBacked() {
			continue
		}
		list, ok := lists[f.Type]
		if !ok {
			var err error
			switch f.Type {
			case form.ServiceSelection:
				list, err = src.Services(ctx, cfg.ClinicID)
			case form.PractitionerSelection:
				list, err = src.Practitioners(ctx, cfg.ClinicID, "")
			case form.DoctorSelection:
				list, err = src.Practitioners(ctx, cfg.ClinicID, RoleDoctor)
			}
			if err != nil {
				return nil, fmt.Errorf("catalog %s: %w", f.Type, err)
			}
			if list == nil {
				list = []form.Entry{}
			}
			lists[f.Type] = list
		}
		entries[f.ID] = list
	}
	return entries, nil
}

// SummaryLine is one label/value pair of an answer preview.
type SummaryLine struct {
	FieldID string `json:"fieldId"`
	Label   string `json:"label"`
	Value   string `json:"value"`
}

// Summarize renders the answers as human readable lines in declaration
// order, replacing catalog ids with display names. Unknown ids are shown as
// they are.
func Summarize(ctx context.Context, src Source, cfg form.Config, answers form.AnswerSet) ([]SummaryLine, error) {
	lines := []SummaryLine{}
	for _, f := range cfg.AllFields() {
		if f.Type == form.Header {
			continue
		}
		v, ok := answers[f.ID]
		if !ok {
			continue
		}

		var text string
		switch v := v.(type) {
		case string:
			text = v
			if f.CatalogBacked() && v != "" {
				name, err := lookup(ctx, src, f.Type, v)
				if err != nil {
					return nil, err
				}
				text = name
			}
		case []string:
			text = strings.Join(v, ", ")
		case form.ScheduleValue:
			text = strings.TrimSpace(v.Date + " " + v.Time)
		case bool:
			text = "no"
			if v {
				text = "yes"
			}
		default:
			continue
		}
		lines = append(lines, SummaryLine{FieldID: f.ID, Label: f.Label, Value: text})
	}
	return lines, nil
}

func lookup(ctx context.Context, src Source, t form.FieldType, id string) (string, error) {
	var (
		e   form.Entry
		err error
	)
	if t == form.ServiceSelection {
		e, err = src.Service(ctx, id)
	} else {
		e, err = src.Practitioner(ctx, id)
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return id, nil
	case err != nil:
		return "", fmt.Errorf("catalog lookup %s: %w", id, err)
	}
	return e.Label, nil
}
