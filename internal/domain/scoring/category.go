package scoring

import "github.com/lutefd/draftpoints-api/internal/domain/stats"

type Category int

const (
	CategoryTotalBases Category = iota
	CategoryRuns
	CategoryRBI
	CategoryStolenBases
	CategoryCaughtStealing
	CategoryWalks
	CategoryStrikeouts

	CategoryWins
	CategoryLosses
	CategorySaves
	CategoryEarnedRuns
	CategoryPitcherK
	CategoryInningsPitched
	CategoryHitsAllowed
	CategoryWalksAllowed
	CategoryQualityStarts
)

var BattingCategories = []Category{
	CategoryTotalBases,
	CategoryRuns,
	CategoryRBI,
	CategoryStolenBases,
	CategoryCaughtStealing,
	CategoryWalks,
	CategoryStrikeouts,
}

var PitchingCategories = []Category{
	CategoryWins,
	CategoryLosses,
	CategorySaves,
	CategoryEarnedRuns,
	CategoryPitcherK,
	CategoryInningsPitched,
	CategoryHitsAllowed,
	CategoryWalksAllowed,
	CategoryQualityStarts,
}

var AllCategories = append(append([]Category(nil), BattingCategories...), PitchingCategories...)

type accessor struct {
	label  string
	weight func(Weights) float64
	value  func(stats.StatRecord) float64
}

var accessors = map[Category]accessor{
	CategoryTotalBases: {
		label:  "TB",
		weight: func(w Weights) float64 { return w.TotalBases },
		value:  func(r stats.StatRecord) float64 { return r.Batting.TotalBases },
	},
	CategoryRuns: {
		label:  "R",
		weight: func(w Weights) float64 { return w.Runs },
		value:  func(r stats.StatRecord) float64 { return r.Batting.Runs },
	},
	CategoryRBI: {
		label:  "RBI",
		weight: func(w Weights) float64 { return w.RBI },
		value:  func(r stats.StatRecord) float64 { return r.Batting.RBI },
	},
	CategoryStolenBases: {
		label:  "SB",
		weight: func(w Weights) float64 { return w.StolenBases },
		value:  func(r stats.StatRecord) float64 { return r.Batting.StolenBases },
	},
	CategoryCaughtStealing: {
		label:  "CS",
		weight: func(w Weights) float64 { return w.CaughtStealing },
		value:  func(r stats.StatRecord) float64 { return r.Batting.CaughtStealing },
	},
	CategoryWalks: {
		label:  "BB",
		weight: func(w Weights) float64 { return w.Walks },
		value:  func(r stats.StatRecord) float64 { return r.Batting.Walks },
	},
	CategoryStrikeouts: {
		label:  "K",
		weight: func(w Weights) float64 { return w.Strikeouts },
		value:  func(r stats.StatRecord) float64 { return r.Batting.Strikeouts },
	},
	CategoryWins: {
		label:  "W",
		weight: func(w Weights) float64 { return w.Wins },
		value:  func(r stats.StatRecord) float64 { return r.Pitching.Wins },
	},
	CategoryLosses: {
		label:  "L",
		weight: func(w Weights) float64 { return w.Losses },
		value:  func(r stats.StatRecord) float64 { return r.Pitching.Losses },
	},
	CategorySaves: {
		label:  "SV",
		weight: func(w Weights) float64 { return w.Saves },
		value:  func(r stats.StatRecord) float64 { return r.Pitching.Saves },
	},
	CategoryEarnedRuns: {
		label:  "ER",
		weight: func(w Weights) float64 { return w.EarnedRuns },
		value:  func(r stats.StatRecord) float64 { return r.Pitching.EarnedRuns },
	},
	CategoryPitcherK: {
		label:  "PK",
		weight: func(w Weights) float64 { return w.PitcherK },
		value:  func(r stats.StatRecord) float64 { return r.Pitching.Strikeouts },
	},
	CategoryInningsPitched: {
		label:  "IP",
		weight: func(w Weights) float64 { return w.InningsPitched },
		value:  func(r stats.StatRecord) float64 { return r.Pitching.InningsPitched },
	},
	CategoryHitsAllowed: {
		label:  "HA",
		weight: func(w Weights) float64 { return w.HitsAllowed },
		value:  func(r stats.StatRecord) float64 { return r.Pitching.HitsAllowed },
	},
	CategoryWalksAllowed: {
		label:  "BBA",
		weight: func(w Weights) float64 { return w.WalksAllowed },
		value:  func(r stats.StatRecord) float64 { return r.Pitching.WalksAllowed },
	},
	CategoryQualityStarts: {
		label:  "QS",
		weight: func(w Weights) float64 { return w.QualityStarts },
		value:  func(r stats.StatRecord) float64 { return r.Pitching.QualityStarts },
	},
}

func (c Category) String() string {
	if a, ok := accessors[c]; ok {
		return a.label
	}
	return "unknown"
}

func (c Category) Weight(w Weights) float64 {
	return accessors[c].weight(w)
}

func (c Category) Value(r stats.StatRecord) float64 {
	return accessors[c].value(r)
}
