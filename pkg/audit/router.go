package audit

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
)

// Router creates a chi.Router for the change-log API.
func Router(store *ChangeLogStore, cfg *AuditConfig, logger *slog.Logger) chi.Router {
	r := chi.NewRouter()

	r.Get("/changes", ListChangesHandler(store, cfg, logger))
	r.Get("/changes/{changeId}", GetChangeHandler(store, logger))

	return r
}
