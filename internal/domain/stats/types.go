package stats

import (
	"fmt"
	"time"
)

type ProjectionSource string

const (
	SourceSteamer       ProjectionSource = "steamer"
	SourceZiPS          ProjectionSource = "zips"
	SourceTheBat        ProjectionSource = "thebat"
	SourceTheBatX       ProjectionSource = "thebatx"
	SourceATC           ProjectionSource = "atc"
	SourceDepthCharts   ProjectionSource = "depthCharts"
	SourceMyProjections ProjectionSource = "myProjections"
)

var AllSources = []ProjectionSource{
	SourceSteamer,
	SourceZiPS,
	SourceTheBat,
	SourceTheBatX,
	SourceATC,
	SourceDepthCharts,
	SourceMyProjections,
}

func ParseProjectionSource(raw string) (ProjectionSource, error) {
	for _, s := range AllSources {
		if string(s) == raw {
			return s, nil
		}
	}
	return "", fmt.Errorf("unknown projection source %q", raw)
}

func (s ProjectionSource) Valid() bool {
	_, err := ParseProjectionSource(string(s))
	return err == nil
}

// Title is the vendor's own spelling.
func (s ProjectionSource) Title() string {
	switch s {
	case SourceSteamer:
		return "Steamer"
	case SourceZiPS:
		return "ZiPS"
	case SourceTheBat:
		return "THE BAT"
	case SourceTheBatX:
		return "THE BAT X"
	case SourceATC:
		return "ATC"
	case SourceDepthCharts:
		return "Depth Charts"
	case SourceMyProjections:
		return "My Projections"
	}
	return string(s)
}

type PlayerKind string

const (
	KindBatter  PlayerKind = "batter"
	KindPitcher PlayerKind = "pitcher"
)

func ParsePlayerKind(raw string) (PlayerKind, error) {
	switch PlayerKind(raw) {
	case "", KindBatter:
		return KindBatter, nil
	case KindPitcher:
		return KindPitcher, nil
	}
	return "", fmt.Errorf("unknown player kind %q", raw)
}

type Batting struct {
	PlateAppearances float64 `json:"pa"`
	AtBats           float64 `json:"ab"`
	Hits             float64 `json:"h"`
	Singles          float64 `json:"singles"`
	Doubles          float64 `json:"doubles"`
	Triples          float64 `json:"triples"`
	HomeRuns         float64 `json:"hr"`
	Runs             float64 `json:"r"`
	RBI              float64 `json:"rbi"`
	Walks            float64 `json:"bb"`
	Strikeouts       float64 `json:"so"`
	StolenBases      float64 `json:"sb"`
	CaughtStealing   float64 `json:"cs"`
	SacrificeFlies   float64 `json:"sf"`
	HitByPitch       float64 `json:"hbp"`
	TotalBases       float64 `json:"tb"`
}

type Pitching struct {
	Wins           float64 `json:"w"`
	Losses         float64 `json:"l"`
	Saves          float64 `json:"sv"`
	EarnedRuns     float64 `json:"er"`
	Strikeouts     float64 `json:"so"`
	InningsPitched float64 `json:"ip"`
	HitsAllowed    float64 `json:"h"`
	WalksAllowed   float64 `json:"bb"`
	QualityStarts  float64 `json:"qs"`
}

// StatRecord is one player's line for one projection source.
type StatRecord struct {
	PlayerID   string           `json:"playerId"`
	Source     ProjectionSource `json:"projectionSource"`
	Kind       PlayerKind       `json:"kind"`
	PlayerName string           `json:"playerName"`
	Team       string           `json:"team"`
	Position   string           `json:"position"`
	Batting    Batting          `json:"batting"`
	Pitching   Pitching         `json:"pitching"`
	CreatedAt  time.Time        `json:"createdAt"`
}

func (r StatRecord) HasKey() bool {
	return r.PlayerID != "" && r.Source != ""
}
