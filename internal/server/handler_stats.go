package server

import (
	"net/http"

	"github.com/me/quarry/pkg/model"
)

func (s *Server) handleGetStats(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	fetchers, units := s.tree.Root().RunningFetcherCount()
	stats := model.Stats{
		Fetchers: fetchers,
		Units:    units,
		Nodes:    s.tree.Statuses(),
	}

	totals, err := s.store.Totals(r.Context())
	if err != nil {
		s.logger.Error("dispatch totals", "error", err)
	} else {
		stats.TotalUnits = totals.Units
		stats.TotalEvents = totals.Events
	}

	respondOK(w, reqID, stats)
}
