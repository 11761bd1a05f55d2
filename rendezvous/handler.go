package rendezvous

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jedib0t/go-pretty/v6/table"
)

func (s *Server) StatsHandler() http.Handler {
	router := chi.NewRouter()

	router.Use(middleware.Recoverer)
	router.Use(middleware.NoCache)
	router.Get("/stats", func(w http.ResponseWriter, r *http.Request) {
		members := s.Snapshot()

		w.Header().Set("content-type", "text/plain")

		liveTable := table.NewWriter()
		liveTable.SetOutputMirror(w)
		liveTable.AppendHeader(table.Row{"ID", "Address"})
		for _, m := range members {
			liveTable.AppendRow(table.Row{m.ID, m.Address})
		}
		liveTable.SetCaption("(live nodes: %d)", len(members))
		liveTable.SetStyle(table.StyleDefault)
		liveTable.Render()
	})
	router.Mount("/debug", middleware.Profiler())

	return router
}
