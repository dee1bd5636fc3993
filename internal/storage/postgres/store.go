package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lutefd/draftpoints-api/internal/domain/points"
	"github.com/lutefd/draftpoints-api/internal/domain/scoring"
	"github.com/lutefd/draftpoints-api/internal/domain/stats"
	"github.com/lutefd/draftpoints-api/internal/storage"
)

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func wrap(op string, err error) error {
	return storage.Wrap(op, err, isTransient)
}

// isTransient treats connection loss, serialization/deadlock aborts, resource
// exhaustion and admin shutdowns as retryable.
func isTransient(err error) bool {
	if pgconn.Timeout(err) || pgconn.SafeToRetry(err) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && len(pgErr.Code) >= 2 {
		switch pgErr.Code[:2] {
		case "08", "40", "53", "57":
			return true
		}
	}
	return false
}

const statColumns = `player_id, projection_source, kind, player_name, team, position, batting, pitching, created_at`

func scanStatRecord(row pgx.Row) (stats.StatRecord, error) {
	var (
		v                 stats.StatRecord
		batting, pitching []byte
	)
	if err := row.Scan(&v.PlayerID, &v.Source, &v.Kind, &v.PlayerName, &v.Team, &v.Position, &batting, &pitching, &v.CreatedAt); err != nil {
		return stats.StatRecord{}, err
	}
	if err := json.Unmarshal(batting, &v.Batting); err != nil {
		return stats.StatRecord{}, err
	}
	if err := json.Unmarshal(pitching, &v.Pitching); err != nil {
		return stats.StatRecord{}, err
	}
	return v, nil
}

func (s *Store) CountStatRecords(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM stat_records`).Scan(&n); err != nil {
		return 0, wrap("count stat records", err)
	}
	return n, nil
}

// ListStatRecords pages in a stable key order so offsets stay meaningful
// across batches.
func (s *Store) ListStatRecords(ctx context.Context, offset, limit int) ([]stats.StatRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+statColumns+`
		FROM stat_records
		ORDER BY player_id, projection_source
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, wrap("list stat records", err)
	}
	defer rows.Close()

	items := make([]stats.StatRecord, 0, limit)
	for rows.Next() {
		v, err := scanStatRecord(rows)
		if err != nil {
			return nil, wrap("scan stat record", err)
		}
		items = append(items, v)
	}
	return items, wrap("list stat records", rows.Err())
}

func (s *Store) GetStatRecord(ctx context.Context, playerID string, source stats.ProjectionSource) (stats.StatRecord, error) {
	v, err := scanStatRecord(s.pool.QueryRow(ctx, `
		SELECT `+statColumns+`
		FROM stat_records
		WHERE player_id = $1 AND projection_source = $2
	`, playerID, source))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return stats.StatRecord{}, storage.ErrNotFound
		}
		return stats.StatRecord{}, wrap("get stat record", err)
	}
	return v, nil
}

// ImportStatRecord inserts rec unless its (player, source) exists. An existing
// myProjections row is replaced and its cached points dropped in the same
// transaction.
func (s *Store) ImportStatRecord(ctx context.Context, rec stats.StatRecord) (stats.MergeDecision, error) {
	batting, err := json.Marshal(rec.Batting)
	if err != nil {
		return stats.DecisionIgnore, err
	}
	pitching, err := json.Marshal(rec.Pitching)
	if err != nil {
		return stats.DecisionIgnore, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return stats.DecisionIgnore, wrap("begin import", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var exists bool
	if err := tx.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM stat_records WHERE player_id = $1 AND projection_source = $2)
	`, rec.PlayerID, rec.Source).Scan(&exists); err != nil {
		return stats.DecisionIgnore, wrap("check stat record", err)
	}

	decision := stats.ResolveImport(rec.Source, exists)
	switch decision {
	case stats.DecisionInsert:
		tag, err := tx.Exec(ctx, `
			INSERT INTO stat_records (`+statColumns+`)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
			ON CONFLICT (player_id, projection_source) DO NOTHING
		`, rec.PlayerID, rec.Source, rec.Kind, rec.PlayerName, rec.Team, rec.Position, batting, pitching, rec.CreatedAt)
		if err != nil {
			return stats.DecisionIgnore, wrap("insert stat record", err)
		}
		if tag.RowsAffected() == 0 {
			decision = stats.DecisionIgnore
		}
	case stats.DecisionReplace:
		if _, err := tx.Exec(ctx, `
			UPDATE stat_records SET
				kind = $3,
				player_name = $4,
				team = $5,
				position = $6,
				batting = $7,
				pitching = $8,
				created_at = $9
			WHERE player_id = $1 AND projection_source = $2
		`, rec.PlayerID, rec.Source, rec.Kind, rec.PlayerName, rec.Team, rec.Position, batting, pitching, rec.CreatedAt); err != nil {
			return stats.DecisionIgnore, wrap("replace stat record", err)
		}
		if _, err := tx.Exec(ctx, `
			DELETE FROM computed_points WHERE player_id = $1 AND projection_source = $2
		`, rec.PlayerID, rec.Source); err != nil {
			return stats.DecisionIgnore, wrap("drop stale points", err)
		}
	default:
		return decision, nil
	}

	return decision, wrap("commit import", tx.Commit(ctx))
}

func (s *Store) GetScoringRule(ctx context.Context, name string) (scoring.Rule, error) {
	var (
		v       scoring.Rule
		weights []byte
	)
	err := s.pool.QueryRow(ctx, `
		SELECT name, weights, created_at FROM scoring_rules WHERE name = $1
	`, name).Scan(&v.Name, &weights, &v.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return scoring.Rule{}, storage.ErrNotFound
		}
		return scoring.Rule{}, wrap("get scoring rule", err)
	}
	if err := json.Unmarshal(weights, &v.Weights); err != nil {
		return scoring.Rule{}, err
	}
	return v, nil
}

// CreateScoringRule reports false when a rule with the same name already exists.
func (s *Store) CreateScoringRule(ctx context.Context, rule scoring.Rule) (bool, error) {
	weights, err := json.Marshal(rule.Weights)
	if err != nil {
		return false, err
	}
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO scoring_rules (name, weights, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (name) DO NOTHING
	`, rule.Name, weights, rule.CreatedAt)
	if err != nil {
		return false, wrap("create scoring rule", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) ListScoringRules(ctx context.Context) ([]scoring.Rule, error) {
	rows, err := s.pool.Query(ctx, `SELECT name, weights, created_at FROM scoring_rules ORDER BY name`)
	if err != nil {
		return nil, wrap("list scoring rules", err)
	}
	defer rows.Close()

	items := make([]scoring.Rule, 0)
	for rows.Next() {
		var (
			v       scoring.Rule
			weights []byte
		)
		if err := rows.Scan(&v.Name, &weights, &v.CreatedAt); err != nil {
			return nil, wrap("scan scoring rule", err)
		}
		if err := json.Unmarshal(weights, &v.Weights); err != nil {
			return nil, err
		}
		items = append(items, v)
	}
	return items, wrap("list scoring rules", rows.Err())
}

func (s *Store) GetComputedPoints(ctx context.Context, key points.Key) (points.ComputedPoints, error) {
	v := points.ComputedPoints{Key: key}
	err := s.pool.QueryRow(ctx, `
		SELECT amount, created_at
		FROM computed_points
		WHERE player_id = $1 AND projection_source = $2 AND rule_name = $3
	`, key.PlayerID, key.Source, key.RuleName).Scan(&v.Amount, &v.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return points.ComputedPoints{}, storage.ErrNotFound
		}
		return points.ComputedPoints{}, wrap("get computed points", err)
	}
	return v, nil
}

// InsertComputedPoints is an atomic insert-if-absent; false means the key was
// already present.
func (s *Store) InsertComputedPoints(ctx context.Context, cp points.ComputedPoints) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO computed_points (player_id, projection_source, rule_name, amount, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (player_id, projection_source, rule_name) DO NOTHING
	`, cp.PlayerID, cp.Source, cp.RuleName, cp.Amount, cp.CreatedAt)
	if err != nil {
		return false, wrap("insert computed points", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) ListComputedKeys(ctx context.Context, ruleName string, keys []points.Key) (map[points.Key]struct{}, error) {
	out := make(map[points.Key]struct{}, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	playerIDs := make([]string, 0, len(keys))
	for _, k := range keys {
		playerIDs = append(playerIDs, k.PlayerID)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT player_id, projection_source
		FROM computed_points
		WHERE rule_name = $1 AND player_id = ANY($2)
	`, ruleName, playerIDs)
	if err != nil {
		return nil, wrap("list computed keys", err)
	}
	defer rows.Close()

	wanted := make(map[points.Key]struct{}, len(keys))
	for _, k := range keys {
		wanted[k] = struct{}{}
	}
	for rows.Next() {
		k := points.Key{RuleName: ruleName}
		if err := rows.Scan(&k.PlayerID, &k.Source); err != nil {
			return nil, wrap("scan computed key", err)
		}
		if _, ok := wanted[k]; ok {
			out[k] = struct{}{}
		}
	}
	return out, wrap("list computed keys", rows.Err())
}

// CommitBatch writes entries and advances the rule's cursor in one
// transaction. Keys written concurrently by another pass are skipped.
func (s *Store) CommitBatch(ctx context.Context, ruleName string, entries []points.ComputedPoints, nextOffset int) (int, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, wrap("begin batch", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	batch := &pgx.Batch{}
	for _, cp := range entries {
		batch.Queue(`
			INSERT INTO computed_points (player_id, projection_source, rule_name, amount, created_at)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (player_id, projection_source, rule_name) DO NOTHING
		`, cp.PlayerID, cp.Source, cp.RuleName, cp.Amount, cp.CreatedAt)
	}
	batch.Queue(`
		INSERT INTO recompute_cursors (rule_name, next_offset, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (rule_name) DO UPDATE SET next_offset = EXCLUDED.next_offset, updated_at = EXCLUDED.updated_at
	`, ruleName, nextOffset)

	results := tx.SendBatch(ctx, batch)
	inserted := 0
	for range entries {
		tag, err := results.Exec()
		if err != nil {
			_ = results.Close()
			return 0, wrap("insert batch entry", err)
		}
		inserted += int(tag.RowsAffected())
	}
	if _, err := results.Exec(); err != nil {
		_ = results.Close()
		return 0, wrap("save cursor", err)
	}
	if err := results.Close(); err != nil {
		return 0, wrap("close batch", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, wrap("commit batch", err)
	}
	return inserted, nil
}

func (s *Store) LoadCursor(ctx context.Context, ruleName string) (int, error) {
	var offset int
	err := s.pool.QueryRow(ctx, `SELECT next_offset FROM recompute_cursors WHERE rule_name = $1`, ruleName).Scan(&offset)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, wrap("load cursor", err)
	}
	return offset, nil
}

func (s *Store) ClearCursor(ctx context.Context, ruleName string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM recompute_cursors WHERE rule_name = $1`, ruleName)
	return wrap("clear cursor", err)
}

func (s *Store) ListRanked(ctx context.Context, ruleName string, source stats.ProjectionSource, position string, limit int) ([]points.Ranked, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx, `
		SELECT cp.player_id, cp.projection_source, cp.rule_name, cp.amount, cp.created_at,
		       sr.player_name, sr.team, sr.position
		FROM computed_points cp
		JOIN stat_records sr
		  ON sr.player_id = cp.player_id AND sr.projection_source = cp.projection_source
		WHERE cp.rule_name = $1 AND cp.projection_source = $2
		  AND ($3 = '' OR upper(sr.position) = upper($3))
		ORDER BY cp.amount DESC, cp.player_id
		LIMIT $4
	`, ruleName, source, position, limit)
	if err != nil {
		return nil, wrap("list ranked points", err)
	}
	defer rows.Close()

	items := make([]points.Ranked, 0)
	for rows.Next() {
		var v points.Ranked
		if err := rows.Scan(&v.PlayerID, &v.Source, &v.RuleName, &v.Amount, &v.CreatedAt, &v.PlayerName, &v.Team, &v.Position); err != nil {
			return nil, wrap("scan ranked points", err)
		}
		items = append(items, v)
	}
	return items, wrap("list ranked points", rows.Err())
}
