package projections

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/lutefd/draftpoints-api/internal/domain/stats"
	"github.com/lutefd/draftpoints-api/internal/events"
	"github.com/lutefd/draftpoints-api/internal/storage"
	"go.uber.org/zap"
)

var ErrInvalidRecord = errors.New("invalid stat record")

type Store interface {
	ImportStatRecord(ctx context.Context, rec stats.StatRecord) (stats.MergeDecision, error)
	GetStatRecord(ctx context.Context, playerID string, source stats.ProjectionSource) (stats.StatRecord, error)
}

type Publisher interface {
	Publish(ctx context.Context, e events.Event) error
}

type Service struct {
	store  Store
	bus    Publisher
	logger *zap.Logger
	now    func() time.Time
}

func NewService(store Store, bus Publisher, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:  store,
		bus:    bus,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Import stores rows under source. Vendor rows for an existing (player,
// source) are ignored, rows without a player id are rejected, and a store
// failure stops the import with the counts so far.
func (s *Service) Import(ctx context.Context, source stats.ProjectionSource, kind stats.PlayerKind, rows []Row) (stats.ImportCounts, error) {
	var counts stats.ImportCounts
	if !source.Valid() {
		return counts, fmt.Errorf("%w: unknown projection source %q", ErrInvalidRecord, source)
	}

	now := s.now()
	for _, row := range rows {
		rec, err := row.Record(source, kind)
		if err != nil {
			counts.Rejected++
			s.logger.Debug("projection row rejected", zap.String("source", string(source)), zap.Error(err))
			continue
		}
		rec.CreatedAt = now

		decision, err := s.store.ImportStatRecord(ctx, rec)
		if err != nil {
			return counts, fmt.Errorf("import %s/%s: %w", rec.PlayerID, source, err)
		}
		counts.Add(decision)
	}

	s.logger.Info("projections imported",
		zap.String("source", string(source)),
		zap.String("kind", string(kind)),
		zap.Int("inserted", counts.Inserted),
		zap.Int("replaced", counts.Replaced),
		zap.Int("ignored", counts.Ignored),
		zap.Int("rejected", counts.Rejected),
	)

	if counts.Inserted+counts.Replaced > 0 {
		if err := s.publish(ctx, events.Event{
			Name:    events.StatsImported,
			Payload: events.StatsImportedPayload{Source: source, Counts: counts},
		}); err != nil {
			return counts, err
		}
	}
	return counts, nil
}

// SaveMyProjection stores an edited line for playerID under myProjections.
// Vendor records are never touched; an earlier myProjections record is
// replaced and its cached points dropped. Missing descriptive fields are
// copied from the first vendor record found for the player.
func (s *Service) SaveMyProjection(ctx context.Context, playerID string, edit stats.StatRecord) (stats.StatRecord, stats.MergeDecision, error) {
	if playerID == "" {
		return stats.StatRecord{}, stats.DecisionIgnore, fmt.Errorf("%w: player id required", ErrInvalidRecord)
	}
	if err := validateLine(edit); err != nil {
		return stats.StatRecord{}, stats.DecisionIgnore, err
	}

	rec := edit
	rec.PlayerID = playerID
	rec.Source = stats.SourceMyProjections
	if rec.Kind == "" {
		rec.Kind = stats.KindBatter
	}
	if rec.PlayerName == "" || rec.Team == "" || rec.Position == "" {
		if err := s.fillDescriptive(ctx, &rec); err != nil {
			return stats.StatRecord{}, stats.DecisionIgnore, err
		}
	}
	rec = stats.DeriveTotalBases(rec)
	rec.CreatedAt = s.now()

	decision, err := s.store.ImportStatRecord(ctx, rec)
	if err != nil {
		return stats.StatRecord{}, stats.DecisionIgnore, err
	}
	s.logger.Info("my projection saved",
		zap.String("player_id", playerID),
		zap.String("decision", string(decision)),
	)

	if err := s.publish(ctx, events.Event{
		Name:    events.MyProjectionSaved,
		Payload: events.MyProjectionSavedPayload{PlayerID: playerID},
	}); err != nil {
		return rec, decision, err
	}
	return rec, decision, nil
}

func (s *Service) fillDescriptive(ctx context.Context, rec *stats.StatRecord) error {
	for _, source := range stats.AllSources {
		if source == stats.SourceMyProjections {
			continue
		}
		base, err := s.store.GetStatRecord(ctx, rec.PlayerID, source)
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		if rec.PlayerName == "" {
			rec.PlayerName = base.PlayerName
		}
		if rec.Team == "" {
			rec.Team = base.Team
		}
		if rec.Position == "" {
			rec.Position = base.Position
		}
		return nil
	}
	return nil
}

func (s *Service) publish(ctx context.Context, e events.Event) error {
	if s.bus == nil {
		return nil
	}
	return s.bus.Publish(ctx, e)
}

func validateLine(rec stats.StatRecord) error {
	values := []float64{
		rec.Batting.PlateAppearances, rec.Batting.AtBats, rec.Batting.Hits,
		rec.Batting.Doubles, rec.Batting.Triples, rec.Batting.HomeRuns,
		rec.Batting.Runs, rec.Batting.RBI, rec.Batting.Walks, rec.Batting.Strikeouts,
		rec.Batting.StolenBases, rec.Batting.CaughtStealing, rec.Batting.SacrificeFlies,
		rec.Batting.HitByPitch,
		rec.Pitching.Wins, rec.Pitching.Losses, rec.Pitching.Saves, rec.Pitching.EarnedRuns,
		rec.Pitching.Strikeouts, rec.Pitching.InningsPitched, rec.Pitching.HitsAllowed,
		rec.Pitching.WalksAllowed, rec.Pitching.QualityStarts,
	}
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return fmt.Errorf("%w: counting stats must be finite and non-negative", ErrInvalidRecord)
		}
	}
	b := rec.Batting
	if b.Doubles+b.Triples+b.HomeRuns > b.Hits {
		return fmt.Errorf("%w: extra-base hits exceed hits", ErrInvalidRecord)
	}
	if _, err := stats.ParsePlayerKind(string(rec.Kind)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	return nil
}
