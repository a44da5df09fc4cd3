package main

import (
	"errors"
	"net/http"
	"time"

	"github.com/mbolis/mediflow/app"
	"github.com/mbolis/mediflow/config"
	"github.com/mbolis/mediflow/database"
	"github.com/mbolis/mediflow/log"
	"github.com/mbolis/mediflow/routes"
)

func main() {
	cfg, err := config.ParseFlags()
	if err != nil {
		log.Fatal("main.config:", err)
	}
	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
	}

	db, err := database.Open(cfg.DBUrl)
	if err != nil {
		log.Fatal("main.db.open:", err)
	}
	defer db.Close()

	store := database.NewStore(db, cfg.Location)
	if cfg.Proxy() {
		log.Infof("Forwarding forms to %s", cfg.FormsAPIURL)
	}

	handler := routes.Wire(app.New(cfg, store))

	err = runServer(cfg, handler)
	if !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("main.server:", err)
	}
}

func runServer(cfg config.Config, handler http.Handler) error {
	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      handler,
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	log.Info("Listening on " + cfg.Url())
	return srv.ListenAndServe()
}
