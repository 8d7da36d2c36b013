package framework

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
)

// Router creates a chi.Router for the framework reference API.
func Router(store *Store, resolver *Resolver, logger *slog.Logger) chi.Router {
	r := chi.NewRouter()

	r.Get("/subcategories/{subcategoryId}/code", FormatCodeHandler(resolver))
	r.Post("/codes:format", FormatCodesHandler(resolver))
	r.Get("/integrity", IntegrityHandler(store, logger))

	return r
}
