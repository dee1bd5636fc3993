package httpserver

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/lutefd/draftpoints-api/internal/progress"
	"github.com/lutefd/draftpoints-api/internal/recompute"
)

type runView struct {
	ID        string            `json:"id"`
	Rule      string            `json:"rule"`
	StartedAt time.Time         `json:"startedAt"`
	Progress  progress.Snapshot `json:"progress"`
	Result    *resultView       `json:"result,omitempty"`
}

type resultView struct {
	Status  recompute.Status `json:"status"`
	Total   int              `json:"total"`
	Written int              `json:"written"`
	Skipped int              `json:"skipped"`
	Error   string           `json:"error,omitempty"`
}

func toRunView(run *recompute.Run) runView {
	view := runView{
		ID:        run.ID,
		Rule:      run.Rule,
		StartedAt: run.StartedAt,
		Progress:  run.Progress().Snapshot(),
	}
	if res, ok := run.Result(); ok {
		rv := &resultView{Status: res.Status, Total: res.Total, Written: res.Written, Skipped: res.Skipped}
		if res.Err != nil {
			rv.Error = res.Err.Error()
		}
		view.Result = rv
	}
	return view
}

func (s *Server) handleStartRecompute(w http.ResponseWriter, r *http.Request) {
	rule, err := s.ruleOrDefault(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, err)
		return
	}
	run, err := s.engine.Start(rule)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"runId": run.ID})
}

func (s *Server) handleListRuns(w http.ResponseWriter, _ *http.Request) {
	runs := s.engine.Runs()
	out := make([]runView, 0, len(runs))
	for _, run := range runs {
		out = append(out, toRunView(run))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, ok := s.engine.Get(chi.URLParam(r, "id"))
	if !ok {
		http.Error(w, "run not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, toRunView(run))
}

func (s *Server) handleCancelRun(w http.ResponseWriter, r *http.Request) {
	run, ok := s.engine.Get(chi.URLParam(r, "id"))
	if !ok {
		http.Error(w, "run not found", http.StatusNotFound)
		return
	}
	run.Cancel()
	writeJSON(w, http.StatusAccepted, toRunView(run))
}
