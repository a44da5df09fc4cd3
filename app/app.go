package app

import (
	"context"

	"github.com/go-chi/oauth"
	"github.com/mbolis/mediflow/catalog"
	"github.com/mbolis/mediflow/config"
	"github.com/mbolis/mediflow/database"
	"github.com/mbolis/mediflow/formsapi"
	"github.com/mbolis/mediflow/httpx"
	"github.com/mbolis/mediflow/model"
	"github.com/mbolis/mediflow/submission"
)

// FormSource loads form records for the public endpoints.
type FormSource interface {
	Form(ctx context.Context, id string) (model.FormRecord, error)
}

// SubmissionLister lists the submissions of a form.
type SubmissionLister interface {
	ListSubmissions(ctx context.Context, formID string) ([]model.Submission, error)
}

type App struct {
	// Store holds staff accounts and, unless proxying, every form.
	Store *database.Store
	*oauth.BearerServer
	config.Config

	Forms       FormSource
	Submissions SubmissionLister
	Catalog     catalog.Source
	Pipeline    *submission.Pipeline
}

// New bundles the dependencies of the routes. In proxy mode the public
// endpoints and the submissions listing go through the remote Forms API;
// form authoring stays local.
func New(cfg config.Config, store *database.Store) App {
	a := App{
		Store:        store,
		BearerServer: httpx.NewBearerServer(store, cfg),
		Config:       cfg,
		Forms:        store,
		Submissions:  store,
		Catalog:      store,
	}

	var backend submission.Backend = store
	if cfg.Proxy() {
		client := formsapi.New(cfg.FormsAPIURL, cfg.FormsAPIToken, nil)
		a.Forms = client
		a.Submissions = client
		a.Catalog = client
		backend = client
	}
	a.Pipeline = submission.New(backend, cfg.Origin)
	return a
}
