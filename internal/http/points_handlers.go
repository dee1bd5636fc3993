package httpserver

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/lutefd/draftpoints-api/internal/domain/scoring"
	"github.com/lutefd/draftpoints-api/internal/domain/stats"
)

type pointsView struct {
	PlayerID   string             `json:"playerId"`
	PlayerName string             `json:"playerName,omitempty"`
	Source     string             `json:"projectionSource"`
	SourceName string             `json:"sourceName"`
	Rule       string             `json:"rule"`
	Points     float64            `json:"points"`
	Display    string             `json:"display"`
	Breakdown  map[string]float64 `json:"breakdown,omitempty"`
}

type rankedView struct {
	Rank       int     `json:"rank"`
	PlayerID   string  `json:"playerId"`
	PlayerName string  `json:"playerName"`
	Team       string  `json:"team"`
	Position   string  `json:"position"`
	Points     float64 `json:"points"`
	Display    string  `json:"display"`
}

func (s *Server) ruleOrDefault(ctx context.Context, name string) (scoring.Rule, error) {
	if name == "" || name == scoring.DefaultRuleName {
		return s.rules.Default(ctx)
	}
	return s.rules.Get(ctx, name)
}

func sourceParam(r *http.Request) (stats.ProjectionSource, error) {
	raw := r.URL.Query().Get("source")
	if raw == "" {
		return stats.SourceSteamer, nil
	}
	return stats.ParseProjectionSource(raw)
}

func (s *Server) handleGetPoints(w http.ResponseWriter, r *http.Request) {
	playerID := r.URL.Query().Get("playerId")
	if playerID == "" {
		http.Error(w, "playerId is required", http.StatusBadRequest)
		return
	}
	source, err := sourceParam(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	rule, err := s.ruleOrDefault(r.Context(), r.URL.Query().Get("rule"))
	if err != nil {
		writeError(w, err)
		return
	}

	rec, err := s.store.GetStatRecord(r.Context(), playerID, source)
	if err != nil {
		writeError(w, err)
		return
	}
	total, err := s.cache.GetOrCompute(r.Context(), rec, rule)
	if err != nil {
		writeError(w, err)
		return
	}

	view := pointsView{
		PlayerID:   rec.PlayerID,
		PlayerName: rec.PlayerName,
		Source:     string(rec.Source),
		SourceName: rec.Source.Title(),
		Rule:       rule.Name,
		Points:     total,
		Display:    scoring.FormatPoints(total),
	}
	if r.URL.Query().Get("breakdown") == "true" {
		view.Breakdown = scoring.Breakdown(rec, rule)
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	source, err := sourceParam(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	rule, err := s.ruleOrDefault(r.Context(), r.URL.Query().Get("rule"))
	if err != nil {
		writeError(w, err)
		return
	}
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			limit = parsed
		}
	}

	position := strings.TrimSpace(r.URL.Query().Get("position"))
	items, err := s.store.ListRanked(r.Context(), rule.Name, source, position, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]rankedView, 0, len(items))
	for i, item := range items {
		out = append(out, rankedView{
			Rank:       i + 1,
			PlayerID:   item.PlayerID,
			PlayerName: item.PlayerName,
			Team:       item.Team,
			Position:   item.Position,
			Points:     item.Amount,
			Display:    scoring.FormatPoints(item.Amount),
		})
	}
	writeJSON(w, http.StatusOK, out)
}
