package projections

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/lutefd/draftpoints-api/internal/domain/stats"
)

// Row is one player object from a FanGraphs projections export.
type Row map[string]any

// DecodeRows reads a JSON array of FanGraphs player objects. Numbers are kept
// as json.Number so numeric player ids survive untouched.
func DecodeRows(r io.Reader) ([]Row, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var rows []Row
	if err := dec.Decode(&rows); err != nil {
		return nil, fmt.Errorf("decode projection rows: %w", err)
	}
	return rows, nil
}

func (r Row) str(key string) string {
	switch v := r[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return ""
}

// num returns zero for absent or non-numeric keys.
func (r Row) num(key string) float64 {
	switch v := r[key].(type) {
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0
		}
		return f
	case float64:
		return v
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0
		}
		return f
	}
	return 0
}

// Record maps the row onto a StatRecord for source. The row must carry a
// player id; total bases are derived for batters.
func (r Row) Record(source stats.ProjectionSource, kind stats.PlayerKind) (stats.StatRecord, error) {
	id := r.str("playerids")
	if id == "" {
		id = r.str("playerid")
	}
	if id == "" {
		return stats.StatRecord{}, fmt.Errorf("%w: row has no playerids", ErrInvalidRecord)
	}

	rec := stats.StatRecord{
		PlayerID:   id,
		Source:     source,
		Kind:       kind,
		PlayerName: r.str("PlayerName"),
		Team:       r.str("Team"),
		Position:   r.str("minpos"),
	}
	if rec.Position == "" {
		rec.Position = r.str("Pos")
	}

	switch kind {
	case stats.KindPitcher:
		rec.Pitching = stats.Pitching{
			Wins:           r.num("W"),
			Losses:         r.num("L"),
			Saves:          r.num("SV"),
			EarnedRuns:     r.num("ER"),
			Strikeouts:     r.num("SO"),
			InningsPitched: r.num("IP"),
			HitsAllowed:    r.num("H"),
			WalksAllowed:   r.num("BB"),
			QualityStarts:  r.num("QS"),
		}
	default:
		rec.Batting = stats.Batting{
			PlateAppearances: r.num("PA"),
			AtBats:           r.num("AB"),
			Hits:             r.num("H"),
			Doubles:          r.num("2B"),
			Triples:          r.num("3B"),
			HomeRuns:         r.num("HR"),
			Runs:             r.num("R"),
			RBI:              r.num("RBI"),
			Walks:            r.num("BB"),
			Strikeouts:       r.num("SO"),
			StolenBases:      r.num("SB"),
			CaughtStealing:   r.num("CS"),
			SacrificeFlies:   r.num("SF"),
			HitByPitch:       r.num("HBP"),
		}
		rec = stats.DeriveTotalBases(rec)
	}
	return rec, nil
}
