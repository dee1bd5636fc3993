package points

import (
	"fmt"
	"time"

	"github.com/lutefd/draftpoints-api/internal/domain/stats"
)

type Key struct {
	PlayerID string                 `json:"playerId"`
	Source   stats.ProjectionSource `json:"projectionSource"`
	RuleName string                 `json:"scoringRuleName"`
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%s/%s", k.PlayerID, k.Source, k.RuleName)
}

// ComputedPoints is the write-once total for one (player, source, rule).
type ComputedPoints struct {
	Key
	Amount    float64   `json:"amount"`
	CreatedAt time.Time `json:"createdAt"`
}

// KeyFor keys rec under ruleName, or reports which identity field is missing.
func KeyFor(rec stats.StatRecord, ruleName string) (Key, error) {
	if rec.PlayerID == "" {
		return Key{}, &MissingFieldError{Field: "playerId", Source: rec.Source}
	}
	if rec.Source == "" {
		return Key{}, &MissingFieldError{Field: "projectionSource", PlayerID: rec.PlayerID}
	}
	return Key{PlayerID: rec.PlayerID, Source: rec.Source, RuleName: ruleName}, nil
}

type MissingFieldError struct {
	Field    string
	PlayerID string
	Source   stats.ProjectionSource
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("stat record missing %s (player=%q source=%q)", e.Field, e.PlayerID, e.Source)
}

// Ranked is a cached total joined with the descriptive fields of its record.
type Ranked struct {
	ComputedPoints
	PlayerName string `json:"playerName"`
	Team       string `json:"team"`
	Position   string `json:"position"`
}
