package routes

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbolis/mediflow/app"
	"github.com/mbolis/mediflow/config"
	"github.com/mbolis/mediflow/database"
	"github.com/mbolis/mediflow/form"
	"github.com/mbolis/mediflow/model"
)

type fixture struct {
	handler http.Handler
	store   *database.Store
	formID  string
	service string
	doctor  string
}

func testConfig() config.Config {
	return config.Config{
		Addr:        "localhost:8080",
		TokenSecret: "test-secret",
		TokenTTL:    time.Minute,
		Origin:      "https://clinic.example",
		Location:    time.UTC,
	}
}

func setup(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()

	db, err := database.Open(filepath.Join(t.TempDir(), "routes.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	store := database.NewStore(db, time.UTC)

	require.NoError(t, store.CreateUser(ctx, "admin", "pass", "clinic-1"))

	svc, err := store.CreateService(ctx, model.Service{ClinicID: "clinic-1", Name: "Teleconsult", ConsultationType: "video"})
	require.NoError(t, err)
	doc, err := store.CreatePractitioner(ctx, model.Practitioner{ClinicID: "clinic-1", Name: "Dr. Grey", Role: "doctor"})
	require.NoError(t, err)

	f, err := store.CreateForm(ctx, model.FormRecord{
		Title:    "Book a visit",
		Status:   model.StatusPublished,
		Type:     model.TypeBooking,
		IsActive: true,
		ClinicID: "clinic-1",
		Config: form.Config{
			Title: "Book a visit",
			Steps: []form.Step{
				{ID: "who", Title: "Who", Fields: []form.Field{
					{ID: "first", Type: form.Text, Label: "First name", Required: true, Width: form.Half},
					{ID: "last", Type: form.Text, Label: "Last name", Required: true, Width: form.Half},
				}},
				{ID: "what", Title: "What", Fields: []form.Field{
					{ID: "svc", Type: form.ServiceSelection, Label: "Service", Required: true},
					{ID: "doc", Type: form.DoctorSelection, Label: "Doctor", Required: true},
					{ID: "when", Type: form.Schedule, Label: "When", Required: true},
				}},
			},
		},
	})
	require.NoError(t, err)

	return fixture{
		handler: Wire(app.New(testConfig(), store)),
		store:   store,
		formID:  f.ID,
		service: svc.ID,
		doctor:  doc.ID,
	}
}

func (fx fixture) do(t *testing.T, method, path, body string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("content-type", "application/json")
	}
	for k, v := range header {
		req.Header[k] = v
	}
	w := httptest.NewRecorder()
	fx.handler.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func (fx fixture) login(t *testing.T) http.Header {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/login", nil)
	req.SetBasicAuth("admin", "pass")
	w := httptest.NewRecorder()
	fx.handler.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	token := decode(t, w)["access_token"].(string)
	return http.Header{"Authorization": {"Bearer " + token}}
}

func (fx fixture) answers() string {
	return `{"data": {
		"first": "Ada", "last": "Lovelace",
		"svc": "` + fx.service + `", "doc": "` + fx.doctor + `",
		"when": {"date": "2026-11-02", "time": "09:30"}
	}}`
}

func TestPublicGetForm(t *testing.T) {
	fx := setup(t)

	w := fx.do(t, http.MethodGet, "/api/forms/"+fx.formID, "", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var got struct {
		Form model.FormRecord `json:"form"`
		View struct {
			Current int `json:"current"`
			Steps   []struct {
				Rows [][]struct {
					Field   form.Field   `json:"field"`
					Options form.Options `json:"options"`
				} `json:"rows"`
			} `json:"steps"`
		} `json:"view"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "Book a visit", got.Form.Title)
	require.Len(t, got.View.Steps, 2)

	// the two half fields share a row
	require.Len(t, got.View.Steps[0].Rows, 1)
	assert.Len(t, got.View.Steps[0].Rows[0], 2)

	svc := got.View.Steps[1].Rows[0][0]
	assert.Equal(t, "svc", svc.Field.ID)
	assert.Equal(t, form.Resolved, svc.Options.State)
	assert.Equal(t, []form.Entry{{ID: fx.service, Label: "Teleconsult"}}, svc.Options.Entries)

	w = fx.do(t, http.MethodGet, "/api/forms/"+fx.formID+"?step=5", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = fx.do(t, http.MethodGet, "/api/forms/missing", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPublicGetFormNotServed(t *testing.T) {
	fx := setup(t)
	ctx := context.Background()

	draft, err := fx.store.CreateForm(ctx, model.FormRecord{
		Title: "Draft", Status: model.StatusDraft, Type: model.TypeCustom, IsActive: true, ClinicID: "clinic-1",
		Config: form.Config{Title: "Draft", Fields: []form.Field{{ID: "a", Type: form.Text}}},
	})
	require.NoError(t, err)
	w := fx.do(t, http.MethodGet, "/api/forms/"+draft.ID, "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	inactive, err := fx.store.CreateForm(ctx, model.FormRecord{
		Title: "Off", Status: model.StatusPublished, Type: model.TypeCustom, IsActive: false, ClinicID: "clinic-1",
		Config: form.Config{Title: "Off", Fields: []form.Field{{ID: "a", Type: form.Text}}},
	})
	require.NoError(t, err)
	w = fx.do(t, http.MethodGet, "/api/forms/"+inactive.ID, "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// stored before shape checks were enforced
	broken, err := fx.store.CreateForm(ctx, model.FormRecord{
		Title: "Broken", Status: model.StatusPublished, Type: model.TypeCustom, IsActive: true, ClinicID: "clinic-1",
		Config: form.Config{Title: "Broken", Fields: []form.Field{{ID: "a", Type: form.Text}, {ID: "a", Type: form.Date}}},
	})
	require.NoError(t, err)
	w = fx.do(t, http.MethodGet, "/api/forms/"+broken.ID, "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPublicValidateForm(t *testing.T) {
	fx := setup(t)

	w := fx.do(t, http.MethodPost, "/api/forms/"+fx.formID+"/validate?step=0", `{"data": {"first": "Ada"}}`, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ok": false, "errors": {"last": "Required"}}`, w.Body.String())

	w = fx.do(t, http.MethodPost, "/api/forms/"+fx.formID+"/validate", `{"data": {"first": "Ada"}}`, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ok": false, "errors": {
		"last": "Required", "svc": "Required", "doc": "Required", "when": "Required"
	}}`, w.Body.String())

	w = fx.do(t, http.MethodPost, "/api/forms/"+fx.formID+"/validate", fx.answers(), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ok": true, "errors": {}}`, w.Body.String())

	w = fx.do(t, http.MethodPost, "/api/forms/"+fx.formID+"/validate?step=9", `{"data": {}}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = fx.do(t, http.MethodPost, "/api/forms/"+fx.formID+"/validate", `not json`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPublicSubmitForm(t *testing.T) {
	fx := setup(t)

	w := fx.do(t, http.MethodPost, "/api/forms/"+fx.formID+"/submissions", `{"data": {"first": "Ada"}}`, nil)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "Required", decode(t, w)["errors"].(map[string]any)["last"])

	subs, err := fx.store.ListSubmissions(context.Background(), fx.formID)
	require.NoError(t, err)
	assert.Empty(t, subs)

	w = fx.do(t, http.MethodPost, "/api/forms/"+fx.formID+"/submissions", fx.answers(), nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	out := decode(t, w)
	assert.NotEmpty(t, out["submissionId"])
	apt := out["appointment"].(map[string]any)
	assert.Equal(t, "video", apt["type"])
	assert.Equal(t, "2026-11-02T09:30:00Z", apt["startsAt"])
	assert.Equal(t, "https://clinic.example/meet/"+apt["id"].(string), out["meetingLink"])

	subs, err = fx.store.ListSubmissions(context.Background(), fx.formID)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "clinic-1", subs[0].ClinicID)
}

func TestPublicSubmitIgnoresClaimedUser(t *testing.T) {
	fx := setup(t)

	body := strings.Replace(fx.answers(), `{"data"`, `{"userId": "someone-else", "data"`, 1)
	w := fx.do(t, http.MethodPost, "/api/forms/"+fx.formID+"/submissions", body, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	subs, err := fx.store.ListSubmissions(context.Background(), fx.formID)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Empty(t, subs[0].UserID)
}

func TestProxyAdminSubmissions(t *testing.T) {
	remote := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/forms/r1":
			w.Write([]byte(`{"id": "r1", "title": "Remote", "status": "published", "type": "CUSTOM",
				"isActive": true, "clinicId": "clinic-1",
				"config": {"title": "Remote", "fields": [{"id": "note", "type": "textarea"}]}}`))
		case "/forms/r2":
			w.Write([]byte(`{"id": "r2", "title": "Foreign", "status": "published", "type": "CUSTOM",
				"isActive": true, "clinicId": "clinic-2",
				"config": {"title": "Foreign", "fields": [{"id": "note", "type": "textarea"}]}}`))
		case "/forms/r1/submissions":
			w.Write([]byte(`[{"id": "s1", "formId": "r1", "data": {"note": "hi"}, "createdAt": "2026-10-01T10:00:00Z"}]`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer remote.Close()

	db, err := database.Open(filepath.Join(t.TempDir(), "proxy.sqlite"))
	require.NoError(t, err)
	defer db.Close()
	store := database.NewStore(db, time.UTC)
	require.NoError(t, store.CreateUser(context.Background(), "admin", "pass", "clinic-1"))

	cfg := testConfig()
	cfg.FormsAPIURL = remote.URL
	fx := fixture{handler: Wire(app.New(cfg, store)), store: store}
	auth := fx.login(t)

	w := fx.do(t, http.MethodGet, "/api/admin/forms/r1/submissions", "", auth)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	subs := decode(t, w)["submissions"].([]any)
	require.Len(t, subs, 1)
	assert.Equal(t, "s1", subs[0].(map[string]any)["id"])

	w = fx.do(t, http.MethodGet, "/api/admin/forms/r2/submissions", "", auth)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = fx.do(t, http.MethodGet, "/api/admin/forms/r3/submissions", "", auth)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPublicSummarizeForm(t *testing.T) {
	fx := setup(t)

	w := fx.do(t, http.MethodPost, "/api/forms/"+fx.formID+"/summary", fx.answers(), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var got struct {
		Lines []struct {
			FieldID string `json:"fieldId"`
			Value   string `json:"value"`
		} `json:"lines"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.Len(t, got.Lines, 5)
	assert.Equal(t, "Teleconsult", got.Lines[2].Value)
	assert.Equal(t, "Dr. Grey", got.Lines[3].Value)
	assert.Equal(t, "2026-11-02 09:30", got.Lines[4].Value)
}

func TestPublicCatalog(t *testing.T) {
	fx := setup(t)

	w := fx.do(t, http.MethodGet, "/api/services/"+fx.service, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Teleconsult", decode(t, w)["label"])

	w = fx.do(t, http.MethodGet, "/api/users/"+fx.doctor, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Dr. Grey", decode(t, w)["label"])

	w = fx.do(t, http.MethodGet, "/api/users/nobody", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestProxyTransportFailure(t *testing.T) {
	remote := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet && r.URL.Path == "/forms/r1" {
			w.Write([]byte(`{
				"id": "r1", "title": "Remote", "status": "published", "type": "CUSTOM", "isActive": true,
				"config": {"title": "Remote", "fields": [{"id": "note", "type": "textarea"}]}
			}`))
			return
		}
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer remote.Close()

	db, err := database.Open(filepath.Join(t.TempDir(), "proxy.sqlite"))
	require.NoError(t, err)
	defer db.Close()

	cfg := testConfig()
	cfg.FormsAPIURL = remote.URL
	fx := fixture{handler: Wire(app.New(cfg, database.NewStore(db, time.UTC)))}

	w := fx.do(t, http.MethodGet, "/api/forms/r1", "", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = fx.do(t, http.MethodPost, "/api/forms/r1/submissions", `{"data": {"note": "hi"}}`, nil)
	require.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, decode(t, w)["error"], "unavailable")

	w = fx.do(t, http.MethodGet, "/api/services/s1", "", nil)
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestAdminAuth(t *testing.T) {
	fx := setup(t)

	w := fx.do(t, http.MethodGet, "/api/admin/forms", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/login", nil)
	req.SetBasicAuth("admin", "wrong")
	w = httptest.NewRecorder()
	fx.handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = fx.do(t, http.MethodPost, "/api/login", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRefresh(t *testing.T) {
	fx := setup(t)

	req := httptest.NewRequest(http.MethodPost, "/api/login", nil)
	req.SetBasicAuth("admin", "pass")
	w := httptest.NewRecorder()
	fx.handler.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	refresh := decode(t, w)["refresh_token"].(string)

	w = fx.do(t, http.MethodPost, "/api/refresh", "", http.Header{"Authorization": {"Refresh " + refresh}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.NotEmpty(t, decode(t, w)["access_token"])

	// refresh tokens are single use
	w = fx.do(t, http.MethodPost, "/api/refresh", "", http.Header{"Authorization": {"Refresh " + refresh}})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = fx.do(t, http.MethodPost, "/api/refresh", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdminForms(t *testing.T) {
	fx := setup(t)
	auth := fx.login(t)

	// drafts may be incomplete
	w := fx.do(t, http.MethodPost, "/api/admin/forms", `{
		"title": "Intake", "status": "draft", "type": "CUSTOM", "isActive": true,
		"config": {"title": "Intake"}
	}`, auth)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	id := decode(t, w)["id"].(string)

	w = fx.do(t, http.MethodPost, "/api/admin/forms", `{"title": "", "status": "draft", "type": "CUSTOM"}`, auth)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = fx.do(t, http.MethodPost, "/api/admin/forms", `{"title": "X", "status": "archived", "type": "CUSTOM"}`, auth)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// publishing requires a well formed configuration
	w = fx.do(t, http.MethodPatch, "/api/admin/forms/"+id, `{"version": 1, "status": "published"}`, auth)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "EmptyForm", decode(t, w)["detail"].(map[string]any)["kind"])

	w = fx.do(t, http.MethodPatch, "/api/admin/forms/"+id, `{
		"version": 1, "status": "published",
		"config": {"title": "Intake", "fields": [{"id": "reason", "type": "textarea", "required": true}]}
	}`, auth)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.EqualValues(t, 2, decode(t, w)["version"])

	// stale version
	w = fx.do(t, http.MethodPatch, "/api/admin/forms/"+id, `{"version": 1, "title": "Late"}`, auth)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = fx.do(t, http.MethodGet, "/api/admin/forms/"+id, "", auth)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "published", decode(t, w)["status"])

	w = fx.do(t, http.MethodPost, "/api/forms/"+id+"/submissions", `{"data": {"reason": "checkup"}}`, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = fx.do(t, http.MethodGet, "/api/admin/forms/"+id+"/submissions", "", auth)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["submissions"], 1)

	w = fx.do(t, http.MethodGet, "/api/admin/forms", "", auth)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["forms"], 2)

	w = fx.do(t, http.MethodDelete, "/api/admin/forms/"+id, "", auth)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = fx.do(t, http.MethodDelete, "/api/admin/forms/"+id, "", auth)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAdminClinicScope(t *testing.T) {
	fx := setup(t)
	ctx := context.Background()

	other, err := fx.store.CreateForm(ctx, model.FormRecord{
		Title: "Other", Status: model.StatusDraft, Type: model.TypeCustom, ClinicID: "clinic-2",
		Config: form.Config{Title: "Other", Fields: []form.Field{{ID: "a", Type: form.Text}}},
	})
	require.NoError(t, err)

	auth := fx.login(t)

	w := fx.do(t, http.MethodGet, "/api/admin/forms/"+other.ID, "", auth)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = fx.do(t, http.MethodPatch, "/api/admin/forms/"+other.ID, `{"version": 1, "title": "Mine"}`, auth)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = fx.do(t, http.MethodDelete, "/api/admin/forms/"+other.ID, "", auth)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = fx.do(t, http.MethodGet, "/api/admin/forms", "", auth)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["forms"], 1)
}
