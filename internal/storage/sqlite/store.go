package sqlite

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/lutefd/draftpoints-api/internal/domain/points"
	"github.com/lutefd/draftpoints-api/internal/domain/scoring"
	"github.com/lutefd/draftpoints-api/internal/domain/stats"
	"github.com/lutefd/draftpoints-api/internal/storage"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

type statRecordRow struct {
	PlayerID         string         `gorm:"primaryKey"`
	ProjectionSource string         `gorm:"primaryKey"`
	Kind             string         `gorm:"not null"`
	PlayerName       string         `gorm:"not null"`
	Team             string         `gorm:"not null"`
	Position         string         `gorm:"not null"`
	Batting          stats.Batting  `gorm:"serializer:json"`
	Pitching         stats.Pitching `gorm:"serializer:json"`
	CreatedAt        time.Time
}

func (statRecordRow) TableName() string { return "stat_records" }

type scoringRuleRow struct {
	Name      string          `gorm:"primaryKey"`
	Weights   scoring.Weights `gorm:"serializer:json"`
	CreatedAt time.Time
}

func (scoringRuleRow) TableName() string { return "scoring_rules" }

type computedPointsRow struct {
	PlayerID         string  `gorm:"primaryKey"`
	ProjectionSource string  `gorm:"primaryKey"`
	RuleName         string  `gorm:"primaryKey;index:idx_rule_amount,priority:1"`
	Amount           float64 `gorm:"not null;index:idx_rule_amount,priority:2"`
	CreatedAt        time.Time
}

func (computedPointsRow) TableName() string { return "computed_points" }

type cursorRow struct {
	RuleName   string `gorm:"primaryKey"`
	NextOffset int    `gorm:"not null"`
	UpdatedAt  time.Time
}

func (cursorRow) TableName() string { return "recompute_cursors" }

// Store is the embedded single-user backend. It keeps one connection open so
// writers serialize inside the process instead of failing with SQLITE_BUSY.
type Store struct {
	db *gorm.DB
}

func NewStore(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.Exec("PRAGMA busy_timeout = 5000").Error; err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&statRecordRow{}, &scoringRuleRow{}, &computedPointsRow{}, &cursorRow{}); err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() {
	if sqlDB, err := s.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func wrap(op string, err error) error {
	return storage.Wrap(op, err, isTransient)
}

func isTransient(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "sqlite_busy")
}

func toRecord(r statRecordRow) stats.StatRecord {
	return stats.StatRecord{
		PlayerID:   r.PlayerID,
		Source:     stats.ProjectionSource(r.ProjectionSource),
		Kind:       stats.PlayerKind(r.Kind),
		PlayerName: r.PlayerName,
		Team:       r.Team,
		Position:   r.Position,
		Batting:    r.Batting,
		Pitching:   r.Pitching,
		CreatedAt:  r.CreatedAt,
	}
}

func fromRecord(v stats.StatRecord) statRecordRow {
	return statRecordRow{
		PlayerID:         v.PlayerID,
		ProjectionSource: string(v.Source),
		Kind:             string(v.Kind),
		PlayerName:       v.PlayerName,
		Team:             v.Team,
		Position:         v.Position,
		Batting:          v.Batting,
		Pitching:         v.Pitching,
		CreatedAt:        v.CreatedAt,
	}
}

func fromComputed(cp points.ComputedPoints) computedPointsRow {
	return computedPointsRow{
		PlayerID:         cp.PlayerID,
		ProjectionSource: string(cp.Source),
		RuleName:         cp.RuleName,
		Amount:           cp.Amount,
		CreatedAt:        cp.CreatedAt,
	}
}

func (s *Store) CountStatRecords(ctx context.Context) (int, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&statRecordRow{}).Count(&n).Error; err != nil {
		return 0, wrap("count stat records", err)
	}
	return int(n), nil
}

func (s *Store) ListStatRecords(ctx context.Context, offset, limit int) ([]stats.StatRecord, error) {
	var rows []statRecordRow
	err := s.db.WithContext(ctx).
		Order("player_id, projection_source").
		Offset(offset).
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, wrap("list stat records", err)
	}
	items := make([]stats.StatRecord, 0, len(rows))
	for _, r := range rows {
		items = append(items, toRecord(r))
	}
	return items, nil
}

func (s *Store) GetStatRecord(ctx context.Context, playerID string, source stats.ProjectionSource) (stats.StatRecord, error) {
	var row statRecordRow
	err := s.db.WithContext(ctx).
		Where("player_id = ? AND projection_source = ?", playerID, string(source)).
		Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return stats.StatRecord{}, storage.ErrNotFound
		}
		return stats.StatRecord{}, wrap("get stat record", err)
	}
	return toRecord(row), nil
}

func (s *Store) ImportStatRecord(ctx context.Context, rec stats.StatRecord) (stats.MergeDecision, error) {
	decision := stats.DecisionIgnore
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&statRecordRow{}).
			Where("player_id = ? AND projection_source = ?", rec.PlayerID, string(rec.Source)).
			Count(&n).Error; err != nil {
			return err
		}

		decision = stats.ResolveImport(rec.Source, n > 0)
		row := fromRecord(rec)
		switch decision {
		case stats.DecisionInsert:
			res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				decision = stats.DecisionIgnore
			}
		case stats.DecisionReplace:
			if err := tx.Save(&row).Error; err != nil {
				return err
			}
			return tx.Where("player_id = ? AND projection_source = ?", rec.PlayerID, string(rec.Source)).
				Delete(&computedPointsRow{}).Error
		}
		return nil
	})
	if err != nil {
		return stats.DecisionIgnore, wrap("import stat record", err)
	}
	return decision, nil
}

func (s *Store) GetScoringRule(ctx context.Context, name string) (scoring.Rule, error) {
	var row scoringRuleRow
	if err := s.db.WithContext(ctx).Where("name = ?", name).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return scoring.Rule{}, storage.ErrNotFound
		}
		return scoring.Rule{}, wrap("get scoring rule", err)
	}
	return scoring.Rule{Name: row.Name, Weights: row.Weights, CreatedAt: row.CreatedAt}, nil
}

func (s *Store) CreateScoringRule(ctx context.Context, rule scoring.Rule) (bool, error) {
	row := scoringRuleRow{Name: rule.Name, Weights: rule.Weights, CreatedAt: rule.CreatedAt}
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
	if res.Error != nil {
		return false, wrap("create scoring rule", res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (s *Store) ListScoringRules(ctx context.Context) ([]scoring.Rule, error) {
	var rows []scoringRuleRow
	if err := s.db.WithContext(ctx).Order("name").Find(&rows).Error; err != nil {
		return nil, wrap("list scoring rules", err)
	}
	items := make([]scoring.Rule, 0, len(rows))
	for _, r := range rows {
		items = append(items, scoring.Rule{Name: r.Name, Weights: r.Weights, CreatedAt: r.CreatedAt})
	}
	return items, nil
}

func (s *Store) GetComputedPoints(ctx context.Context, key points.Key) (points.ComputedPoints, error) {
	var row computedPointsRow
	err := s.db.WithContext(ctx).
		Where("player_id = ? AND projection_source = ? AND rule_name = ?", key.PlayerID, string(key.Source), key.RuleName).
		Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return points.ComputedPoints{}, storage.ErrNotFound
		}
		return points.ComputedPoints{}, wrap("get computed points", err)
	}
	return points.ComputedPoints{Key: key, Amount: row.Amount, CreatedAt: row.CreatedAt}, nil
}

func (s *Store) InsertComputedPoints(ctx context.Context, cp points.ComputedPoints) (bool, error) {
	row := fromComputed(cp)
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
	if res.Error != nil {
		return false, wrap("insert computed points", res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (s *Store) ListComputedKeys(ctx context.Context, ruleName string, keys []points.Key) (map[points.Key]struct{}, error) {
	out := make(map[points.Key]struct{}, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	wanted := make(map[points.Key]struct{}, len(keys))
	playerIDs := make([]string, 0, len(keys))
	for _, k := range keys {
		wanted[k] = struct{}{}
		playerIDs = append(playerIDs, k.PlayerID)
	}

	var rows []computedPointsRow
	err := s.db.WithContext(ctx).
		Select("player_id", "projection_source").
		Where("rule_name = ? AND player_id IN ?", ruleName, playerIDs).
		Find(&rows).Error
	if err != nil {
		return nil, wrap("list computed keys", err)
	}
	for _, r := range rows {
		k := points.Key{PlayerID: r.PlayerID, Source: stats.ProjectionSource(r.ProjectionSource), RuleName: ruleName}
		if _, ok := wanted[k]; ok {
			out[k] = struct{}{}
		}
	}
	return out, nil
}

func (s *Store) CommitBatch(ctx context.Context, ruleName string, entries []points.ComputedPoints, nextOffset int) (int, error) {
	inserted := 0
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(entries) > 0 {
			rows := make([]computedPointsRow, 0, len(entries))
			for _, cp := range entries {
				rows = append(rows, fromComputed(cp))
			}
			res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows)
			if res.Error != nil {
				return res.Error
			}
			inserted = int(res.RowsAffected)
		}
		cursor := cursorRow{RuleName: ruleName, NextOffset: nextOffset, UpdatedAt: time.Now().UTC()}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "rule_name"}},
			DoUpdates: clause.AssignmentColumns([]string{"next_offset", "updated_at"}),
		}).Create(&cursor).Error
	})
	if err != nil {
		return 0, wrap("commit batch", err)
	}
	return inserted, nil
}

func (s *Store) LoadCursor(ctx context.Context, ruleName string) (int, error) {
	var row cursorRow
	if err := s.db.WithContext(ctx).Where("rule_name = ?", ruleName).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, wrap("load cursor", err)
	}
	return row.NextOffset, nil
}

func (s *Store) ClearCursor(ctx context.Context, ruleName string) error {
	err := s.db.WithContext(ctx).Where("rule_name = ?", ruleName).Delete(&cursorRow{}).Error
	return wrap("clear cursor", err)
}

func (s *Store) ListRanked(ctx context.Context, ruleName string, source stats.ProjectionSource, position string, limit int) ([]points.Ranked, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	type rankedRow struct {
		PlayerID         string
		ProjectionSource string
		RuleName         string
		Amount           float64
		CreatedAt        time.Time
		PlayerName       string
		Team             string
		Position         string
	}
	var rows []rankedRow
	q := s.db.WithContext(ctx).
		Table("computed_points AS cp").
		Select("cp.player_id, cp.projection_source, cp.rule_name, cp.amount, cp.created_at, sr.player_name, sr.team, sr.position").
		Joins("JOIN stat_records sr ON sr.player_id = cp.player_id AND sr.projection_source = cp.projection_source").
		Where("cp.rule_name = ? AND cp.projection_source = ?", ruleName, string(source))
	if position != "" {
		q = q.Where("upper(sr.position) = upper(?)", position)
	}
	err := q.
		Order("cp.amount DESC, cp.player_id").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, wrap("list ranked points", err)
	}
	items := make([]points.Ranked, 0, len(rows))
	for _, r := range rows {
		items = append(items, points.Ranked{
			ComputedPoints: points.ComputedPoints{
				Key:       points.Key{PlayerID: r.PlayerID, Source: stats.ProjectionSource(r.ProjectionSource), RuleName: r.RuleName},
				Amount:    r.Amount,
				CreatedAt: r.CreatedAt,
			},
			PlayerName: r.PlayerName,
			Team:       r.Team,
			Position:   r.Position,
		})
	}
	return items, nil
}
