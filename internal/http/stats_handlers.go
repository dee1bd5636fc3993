package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/lutefd/draftpoints-api/internal/domain/stats"
	"github.com/lutefd/draftpoints-api/internal/projections"
)

const maxImportBytes = 32 << 20

func (s *Server) handleImportStats(w http.ResponseWriter, r *http.Request) {
	source, err := stats.ParseProjectionSource(r.URL.Query().Get("source"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	kind, err := stats.ParsePlayerKind(r.URL.Query().Get("kind"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	rows, err := projections.DecodeRows(http.MaxBytesReader(w, r.Body, maxImportBytes))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	counts, err := s.projections.Import(r.Context(), source, kind, rows)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, counts)
}

func (s *Server) handleSaveMyProjection(w http.ResponseWriter, r *http.Request) {
	var payload stats.StatRecord
	if err := decodeJSON(r, &payload); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	rec, decision, err := s.projections.SaveMyProjection(r.Context(), chi.URLParam(r, "playerId"), payload)
	if err != nil {
		writeError(w, err)
		return
	}
	status := http.StatusOK
	if decision == stats.DecisionInsert {
		status = http.StatusCreated
	}
	writeJSON(w, status, map[string]any{
		"record":   rec,
		"decision": decision,
	})
}
