package assessment

import (
	"github.com/go-chi/chi/v5"
)

// Router creates a chi.Router for the assessment API. Target-state routes
// are served under both /target and /future.
func Router(current *CurrentStatePipeline, target *TargetStatePipeline) chi.Router {
	r := chi.NewRouter()

	r.Mount("/current", kindRouter(current))
	r.Mount("/target", kindRouter(target))
	r.Mount("/future", kindRouter(target))

	return r
}

func kindRouter[R any, P payload[R]](p *Pipeline[R, P]) chi.Router {
	r := chi.NewRouter()

	r.Get("/subcategories/{subcategoryId}/latest", GetLatestHandler(p))
	r.Get("/subcategories/{subcategoryId}/history", HistoryHandler(p))
	r.Get("/records/{id}", GetRecordHandler(p))
	r.Post("/records:batch", SaveBatchHandler(p))
	r.Put("/records/{id}", EditHandler(p))

	return r
}
