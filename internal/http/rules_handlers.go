package httpserver

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/lutefd/draftpoints-api/internal/domain/scoring"
	"github.com/lutefd/draftpoints-api/internal/events"
	"go.uber.org/zap"
)

type ruleView struct {
	Name      string             `json:"name"`
	Weights   map[string]float64 `json:"weights"`
	CreatedAt time.Time          `json:"createdAt"`
}

func toRuleView(r scoring.Rule) ruleView {
	weights := make(map[string]float64, len(scoring.AllCategories))
	for _, c := range scoring.AllCategories {
		weights[c.String()] = c.Weight(r.Weights)
	}
	return ruleView{Name: r.Name, Weights: weights, CreatedAt: r.CreatedAt}
}

func (s *Server) handleListRules(w http.ResponseWriter, r *http.Request) {
	if _, err := s.rules.Default(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	items, err := s.rules.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]ruleView, 0, len(items))
	for _, item := range items {
		out = append(out, toRuleView(item))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateRule(w http.ResponseWriter, r *http.Request) {
	var payload scoring.Rule
	if err := decodeStrictJSON(r, &payload); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	created, err := s.rules.Create(r.Context(), payload)
	if err != nil {
		writeError(w, err)
		return
	}

	if s.bus != nil {
		if err := s.bus.Publish(r.Context(), events.Event{
			Name:    events.ScoringRuleCreated,
			Payload: events.RuleCreatedPayload{Rule: created},
		}); err != nil {
			s.logger.Warn("rule created event failed", zap.String("rule", created.Name), zap.Error(err))
		}
	}

	writeJSON(w, http.StatusCreated, toRuleView(created))
}

func (s *Server) handleDefaultRule(w http.ResponseWriter, r *http.Request) {
	rule, err := s.rules.Default(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRuleView(rule))
}

func (s *Server) handleGetRule(w http.ResponseWriter, r *http.Request) {
	rule, err := s.rules.Get(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRuleView(rule))
}
