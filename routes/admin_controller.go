package routes

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/mbolis/mediflow/app"
	"github.com/mbolis/mediflow/database"
	"github.com/mbolis/mediflow/form"
	"github.com/mbolis/mediflow/httpx"
	"github.com/mbolis/mediflow/log"
	"github.com/mbolis/mediflow/model"
	"github.com/mbolis/mediflow/routes/middlewares"
)

type formPatch struct {
	Version  int          `json:"version" validate:"required,min=1"`
	Title    *string      `json:"title" validate:"omitempty,min=1"`
	Status   *string      `json:"status" validate:"omitempty,oneof=draft published"`
	Type     *string      `json:"type" validate:"omitempty,oneof=BOOKING CUSTOM SYSTEM"`
	IsActive *bool        `json:"isActive"`
	Config   *form.Config `json:"config"`
}

func (p formPatch) apply(f model.FormRecord) model.FormRecord {
	f.Version = p.Version
	if p.Title != nil {
		f.Title = *p.Title
	}
	if p.Status != nil {
		f.Status = *p.Status
	}
	if p.Type != nil {
		f.Type = *p.Type
	}
	if p.IsActive != nil {
		f.IsActive = *p.IsActive
	}
	if p.Config != nil {
		f.Config = p.Config.Clone()
	}
	return f
}

// publishable answers 422 when a published form has a malformed
// configuration. Drafts are saved as they are.
func publishable(w http.ResponseWriter, r *http.Request, f model.FormRecord) bool {
	if f.Status != model.StatusPublished {
		return true
	}
	err := form.ValidateShape(f.Config)
	if err == nil {
		return true
	}

	var shapeErr *form.ShapeError
	var detail any
	if errors.As(err, &shapeErr) {
		detail = shapeErr
	}
	httpx.LogJSONError(w, r, http.StatusUnprocessableEntity, "form.shape", err, detail)
	return false
}

// ownedForm loads the form named in the URL, as long as it belongs to the
// clinic of the caller.
func ownedForm(app app.App, w http.ResponseWriter, r *http.Request) (model.FormRecord, bool) {
	formId := chi.URLParam(r, "id")

	f, err := app.Store.Form(r.Context(), formId)
	if errors.Is(err, database.ErrNotFound) || err == nil && f.ClinicID != middlewares.ClinicID(r) {
		httpx.LogNotFound(w, "admin.get_form", formId)
		return f, false
	}
	if err != nil {
		httpx.LogInternalError(w, "db.get_form", err)
		return f, false
	}
	return f, true
}

func CreateForm(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f := model.FormRecord{}
		if !httpx.DecodeValid(w, r, &f) {
			return
		}
		f.ClinicID = middlewares.ClinicID(r)
		if !publishable(w, r, f) {
			return
		}

		f, err := app.Store.CreateForm(r.Context(), f)
		if err != nil {
			httpx.LogInternalError(w, "db.insert_form", err)
			return
		}

		httpx.JSONStatus(w, r, http.StatusCreated, map[string]any{
			"id":      f.ID,
			"version": f.Version,
		})
	}
}

func ListForms(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		forms, err := app.Store.ListForms(r.Context(), middlewares.ClinicID(r))
		if err != nil {
			httpx.LogInternalError(w, "db.get_forms", err)
			return
		}

		render.JSON(w, r, map[string]any{
			"forms": forms,
		})
	}
}

func GetFormById(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f, ok := ownedForm(app, w, r)
		if !ok {
			return
		}
		render.JSON(w, r, f)
	}
}

func UpdateForm(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		patch := formPatch{}
		if !httpx.DecodeValid(w, r, &patch) {
			return
		}

		f, ok := ownedForm(app, w, r)
		if !ok {
			return
		}
		f = patch.apply(f)
		if !publishable(w, r, f) {
			return
		}

		f, err := app.Store.UpdateForm(r.Context(), f)
		switch {
		case errors.Is(err, database.ErrConflict):
			httpx.LogStatus(w, http.StatusConflict, log.DebugLevel, "db.update_form.verify.conflict")
		case errors.Is(err, database.ErrNotFound):
			httpx.LogNotFound(w, "update_form", f.ID)
		case err != nil:
			httpx.LogInternalError(w, "db.update_form", err)
		default:
			render.JSON(w, r, map[string]any{
				"id":      f.ID,
				"version": f.Version,
			})
		}
	}
}

func DeleteForm(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		formId := chi.URLParam(r, "id")

		err := app.Store.DeleteForm(r.Context(), middlewares.ClinicID(r), formId)
		if errors.Is(err, database.ErrNotFound) {
			httpx.LogNotFound(w, "delete_form", formId)
			return
		}
		if err != nil {
			httpx.LogInternalError(w, "db.delete_form", err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

// GetFormSubmissions lists the submissions of a form of the caller's clinic.
// In proxy mode both the form and its submissions come from the remote
// Forms API.
func GetFormSubmissions(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		formId := chi.URLParam(r, "id")

		f, err := app.Forms.Form(r.Context(), formId)
		if errors.Is(err, model.ErrNotFound) || err == nil && f.ClinicID != middlewares.ClinicID(r) {
			httpx.LogNotFound(w, "admin.get_submissions", formId)
			return
		}
		if err != nil {
			upstreamError(app, w, "forms.get_form", err)
			return
		}

		submissions, err := app.Submissions.ListSubmissions(r.Context(), f.ID)
		if err != nil {
			upstreamError(app, w, "forms.get_submissions", err)
			return
		}

		render.JSON(w, r, map[string]any{
			"submissions": submissions,
		})
	}
}
