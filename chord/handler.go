package chord

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func StatsHandler(node *LocalNode) http.Handler {
	router := chi.NewRouter()

	router.Use(middleware.Recoverer)
	router.Use(middleware.NoCache)
	router.Get("/stats", statsHandler(node))
	router.Get("/graph", ringGraphHandler(node))
	router.Mount("/debug", middleware.Profiler())

	return router
}
