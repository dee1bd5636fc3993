package scoring

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

const (
	DefaultRuleName = "DefaultPoints"
	maxNameLength   = 64
)

// Rule is a named set of per-category point weights. Rules are immutable
// once stored.
type Rule struct {
	Name      string    `json:"name"`
	Weights   Weights   `json:"weights"`
	CreatedAt time.Time `json:"createdAt"`
}

// Weights holds one weight per category. JSON keys are the category labels,
// the same keys rule responses use.
type Weights struct {
	TotalBases     float64 `json:"TB"`
	Runs           float64 `json:"R"`
	RBI            float64 `json:"RBI"`
	StolenBases    float64 `json:"SB"`
	CaughtStealing float64 `json:"CS"`
	Walks          float64 `json:"BB"`
	Strikeouts     float64 `json:"K"`

	Wins           float64 `json:"W"`
	Losses         float64 `json:"L"`
	Saves          float64 `json:"SV"`
	EarnedRuns     float64 `json:"ER"`
	PitcherK       float64 `json:"PK"`
	InningsPitched float64 `json:"IP"`
	HitsAllowed    float64 `json:"HA"`
	WalksAllowed   float64 `json:"BBA"`
	QualityStarts  float64 `json:"QS"`
}

func DefaultWeights() Weights {
	return Weights{
		TotalBases:     1,
		Runs:           1,
		RBI:            1,
		StolenBases:    1,
		CaughtStealing: -1,
		Walks:          1,
		Strikeouts:     -1,
		Wins:           5,
		Losses:         -3,
		Saves:          3,
		EarnedRuns:     -1,
		PitcherK:       1,
		InningsPitched: 1,
		HitsAllowed:    -1,
		WalksAllowed:   -1,
		QualityStarts:  3,
	}
}

func DefaultRule() Rule {
	return Rule{Name: DefaultRuleName, Weights: DefaultWeights()}
}

var ErrInvalidRule = errors.New("invalid scoring rule")

func (r Rule) Validate() error {
	name := strings.TrimSpace(r.Name)
	if name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidRule)
	}
	if name != r.Name {
		return fmt.Errorf("%w: name has leading or trailing whitespace", ErrInvalidRule)
	}
	if len(name) > maxNameLength {
		return fmt.Errorf("%w: name longer than %d characters", ErrInvalidRule, maxNameLength)
	}
	for _, c := range AllCategories {
		w := c.Weight(r.Weights)
		if math.IsNaN(w) || math.IsInf(w, 0) {
			return fmt.Errorf("%w: weight for %s is not finite", ErrInvalidRule, c)
		}
	}
	return nil
}
