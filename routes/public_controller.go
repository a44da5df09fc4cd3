package routes

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/mbolis/mediflow/app"
	"github.com/mbolis/mediflow/catalog"
	"github.com/mbolis/mediflow/form"
	"github.com/mbolis/mediflow/httpx"
	"github.com/mbolis/mediflow/log"
	"github.com/mbolis/mediflow/model"
	"github.com/mbolis/mediflow/submission"
)

// answersRequest is the body of the public form endpoints. Callers are
// anonymous: no user identity is read from the body.
type answersRequest struct {
	Data form.AnswerSet `json:"data"`
}

type publicForm struct {
	Form model.FormRecord `json:"form"`
	View form.View        `json:"view"`
}

// upstreamError answers 502 when the failure comes from the remote Forms
// API, 500 otherwise.
func upstreamError(app app.App, w http.ResponseWriter, code string, err error) {
	if app.Proxy() {
		httpx.LogStatusMsg(w, http.StatusBadGateway, log.ErrorLevel, code, "forms api: %s", err)
		return
	}
	httpx.LogInternalError(w, code, err)
}

// servedForm loads the form named in the URL. Drafts, inactive forms and
// malformed configurations are not found.
func servedForm(app app.App, w http.ResponseWriter, r *http.Request) (model.FormRecord, bool) {
	formId := chi.URLParam(r, "id")

	f, err := app.Forms.Form(r.Context(), formId)
	if errors.Is(err, model.ErrNotFound) {
		httpx.LogNotFound(w, "get_form", formId)
		return f, false
	}
	if err != nil {
		upstreamError(app, w, "forms.get_form", err)
		return f, false
	}
	if !f.Served() {
		httpx.LogNotFound(w, "get_form.not_served", formId)
		return f, false
	}
	if err := form.ValidateShape(f.Config); err != nil {
		log.Warnf("get_form.shape: %s (%s)", err, formId)
		httpx.LogNotFound(w, "get_form.shape", formId)
		return f, false
	}

	if f.Config.ClinicID == "" {
		f.Config.ClinicID = f.ClinicID
	}
	return f, true
}

// stepParam reads the optional ?step=N query parameter.
func stepParam(w http.ResponseWriter, r *http.Request) (step int, ok bool, present bool) {
	raw := r.URL.Query().Get("step")
	if raw == "" {
		return 0, true, false
	}
	step, err := strconv.Atoi(raw)
	if err != nil {
		httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.get_query_param.step")
		return 0, false, true
	}
	return step, true, true
}

func PublicGetForm(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		step, ok, _ := stepParam(w, r)
		if !ok {
			return
		}

		f, ok := servedForm(app, w, r)
		if !ok {
			return
		}

		entries, err := catalog.Resolve(r.Context(), app.Catalog, f.Config)
		if err != nil {
			// catalog fields are rendered as pending
			log.Warnf("get_form.catalog: %s", err)
			entries = nil
		}

		view, err := form.Render(f.Config, nil, step, entries)
		if errors.Is(err, form.ErrStepOutOfRange) {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "get_form.step_out_of_range")
			return
		}
		if err != nil {
			httpx.LogInternalError(w, "get_form.render", err)
			return
		}

		render.JSON(w, r, publicForm{Form: f, View: view})
	}
}

// PublicValidateForm runs advisory validation, on one step when ?step= is
// given. Validation failures are a normal 200 answer.
func PublicValidateForm(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		step, ok, scoped := stepParam(w, r)
		if !ok {
			return
		}

		f, ok := servedForm(app, w, r)
		if !ok {
			return
		}

		req := answersRequest{}
		if !httpx.DecodeValid(w, r, &req) {
			return
		}

		var result form.Result
		if scoped {
			var err error
			result, err = form.ValidateStep(f.Config, req.Data, step)
			if err != nil {
				httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "validate_form.step_out_of_range")
				return
			}
		} else {
			result = form.Validate(f.Config, req.Data)
		}

		render.JSON(w, r, result)
	}
}

func PublicSubmitForm(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f, ok := servedForm(app, w, r)
		if !ok {
			return
		}

		req := answersRequest{}
		if !httpx.DecodeValid(w, r, &req) {
			return
		}

		session := submission.Session{ClinicID: f.ClinicID}
		outcome, err := app.Pipeline.Submit(r.Context(), session, f.ID, f.Config, req.Data)

		var invalid *submission.ValidationFailedError
		switch {
		case errors.As(err, &invalid):
			log.Debugf("submit_form.validation: %d errors (%s)", len(invalid.Result.Errors), f.ID)
			httpx.JSONStatus(w, r, http.StatusUnprocessableEntity, invalid.Result)
		case errors.Is(err, submission.ErrTransportFailure):
			httpx.JSONStatus(w, r, http.StatusBadGateway, httpx.ErrorBody{Error: err.Error()})
		case err != nil:
			httpx.LogInternalError(w, "submit_form", err)
		default:
			httpx.JSONStatus(w, r, http.StatusCreated, outcome)
		}
	}
}

// PublicSummarizeForm previews the answers with catalog ids replaced by
// display names.
func PublicSummarizeForm(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f, ok := servedForm(app, w, r)
		if !ok {
			return
		}

		req := answersRequest{}
		if !httpx.DecodeValid(w, r, &req) {
			return
		}

		lines, err := catalog.Summarize(r.Context(), app.Catalog, f.Config, req.Data)
		if err != nil {
			upstreamError(app, w, "summarize_form.catalog", err)
			return
		}

		render.JSON(w, r, map[string]any{
			"lines": lines,
		})
	}
}

func PublicGetService(app app.App) http.HandlerFunc {
	return catalogEntry(app, "get_service", app.Catalog.Service)
}

func PublicGetUser(app app.App) http.HandlerFunc {
	return catalogEntry(app, "get_user", app.Catalog.Practitioner)
}

func catalogEntry(app app.App, code string, get func(ctx context.Context, id string) (form.Entry, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		e, err := get(r.Context(), id)
		if errors.Is(err, model.ErrNotFound) {
			httpx.LogNotFound(w, code, id)
			return
		}
		if err != nil {
			upstreamError(app, w, "catalog."+code, err)
			return
		}

		render.JSON(w, r, e)
	}
}
