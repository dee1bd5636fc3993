package sqlite

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/lutefd/draftpoints-api/internal/domain/points"
	"github.com/lutefd/draftpoints-api/internal/domain/scoring"
	"github.com/lutefd/draftpoints-api/internal/domain/stats"
	"github.com/lutefd/draftpoints-api/internal/pointscache"
	"github.com/lutefd/draftpoints-api/internal/recompute"
	"github.com/lutefd/draftpoints-api/internal/storage"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "draft.db"))
	if err != nil {
		t.Fatalf("open sqlite store: %v", err)
	}
	t.Cleanup(store.Close)
	return store
}

func batter(id string, source stats.ProjectionSource, tb, runs float64) stats.StatRecord {
	return stats.StatRecord{
		PlayerID:   id,
		Source:     source,
		Kind:       stats.KindBatter,
		PlayerName: "Player " + id,
		Team:       "SEA",
		Position:   "CF",
		Batting:    stats.Batting{TotalBases: tb, Runs: runs},
		CreatedAt:  time.Now().UTC(),
	}
}

func TestImportStatRecordDecisions(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	d, err := store.ImportStatRecord(ctx, batter("1", stats.SourceSteamer, 10, 1))
	if err != nil || d != stats.DecisionInsert {
		t.Fatalf("expected insert, got %s err=%v", d, err)
	}
	d, err = store.ImportStatRecord(ctx, batter("1", stats.SourceSteamer, 99, 9))
	if err != nil || d != stats.DecisionIgnore {
		t.Fatalf("expected ignore for vendor duplicate, got %s err=%v", d, err)
	}
	rec, err := store.GetStatRecord(ctx, "1", stats.SourceSteamer)
	if err != nil || rec.Batting.TotalBases != 10 {
		t.Fatalf("expected original vendor line, got %+v err=%v", rec.Batting, err)
	}

	if _, err := store.GetStatRecord(ctx, "1", stats.SourceZiPS); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMyProjectionReplaceDropsCachedPoints(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	rule := scoring.DefaultRule()
	if _, err := store.CreateScoringRule(ctx, rule); err != nil {
		t.Fatalf("create rule: %v", err)
	}

	mine := batter("1", stats.SourceMyProjections, 10, 1)
	if _, err := store.ImportStatRecord(ctx, mine); err != nil {
		t.Fatalf("import: %v", err)
	}
	cache := pointscache.New(store, nil)
	first, err := cache.GetOrCompute(ctx, mine, rule)
	if err != nil || first != 11 {
		t.Fatalf("expected 11, got %.2f err=%v", first, err)
	}

	mine.Batting.TotalBases = 20
	d, err := store.ImportStatRecord(ctx, mine)
	if err != nil || d != stats.DecisionReplace {
		t.Fatalf("expected replace, got %s err=%v", d, err)
	}
	key := points.Key{PlayerID: "1", Source: stats.SourceMyProjections, RuleName: rule.Name}
	if _, ok, err := cache.Get(ctx, key); err != nil || ok {
		t.Fatalf("expected cached points dropped, ok=%v err=%v", ok, err)
	}
	second, err := cache.GetOrCompute(ctx, mine, rule)
	if err != nil || second != 21 {
		t.Fatalf("expected 21 after edit, got %.2f err=%v", second, err)
	}
}

func TestCreateScoringRuleIsInsertIfAbsent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	created, err := store.CreateScoringRule(ctx, scoring.DefaultRule())
	if err != nil || !created {
		t.Fatalf("expected create, got %v err=%v", created, err)
	}
	dup := scoring.DefaultRule()
	dup.Weights.Runs = 5
	created, err = store.CreateScoringRule(ctx, dup)
	if err != nil || created {
		t.Fatalf("expected duplicate to be skipped, got %v err=%v", created, err)
	}
	got, err := store.GetScoringRule(ctx, scoring.DefaultRuleName)
	if err != nil || got.Weights != scoring.DefaultWeights() {
		t.Fatalf("expected default weights kept, got %+v err=%v", got.Weights, err)
	}
}

func TestInsertComputedPointsIsWriteOnce(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	cp := points.ComputedPoints{
		Key:       points.Key{PlayerID: "1", Source: stats.SourceATC, RuleName: "R"},
		Amount:    4.25,
		CreatedAt: time.Now().UTC(),
	}

	ok, err := store.InsertComputedPoints(ctx, cp)
	if err != nil || !ok {
		t.Fatalf("expected insert, got %v err=%v", ok, err)
	}
	cp.Amount = 9
	ok, err = store.InsertComputedPoints(ctx, cp)
	if err != nil || ok {
		t.Fatalf("expected second insert skipped, got %v err=%v", ok, err)
	}
	got, err := store.GetComputedPoints(ctx, cp.Key)
	if err != nil || got.Amount != 4.25 {
		t.Fatalf("expected 4.25, got %.2f err=%v", got.Amount, err)
	}
}

func TestCommitBatchAndCursor(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if off, err := store.LoadCursor(ctx, "R"); err != nil || off != 0 {
		t.Fatalf("expected empty cursor, got %d err=%v", off, err)
	}
	entries := []points.ComputedPoints{
		{Key: points.Key{PlayerID: "1", Source: stats.SourceSteamer, RuleName: "R"}, Amount: 1},
		{Key: points.Key{PlayerID: "2", Source: stats.SourceSteamer, RuleName: "R"}, Amount: 2},
	}
	n, err := store.CommitBatch(ctx, "R", entries, 2)
	if err != nil || n != 2 {
		t.Fatalf("expected 2 inserted, got %d err=%v", n, err)
	}
	n, err = store.CommitBatch(ctx, "R", entries, 4)
	if err != nil || n != 0 {
		t.Fatalf("expected duplicates skipped, got %d err=%v", n, err)
	}
	if off, _ := store.LoadCursor(ctx, "R"); off != 4 {
		t.Fatalf("expected cursor 4, got %d", off)
	}

	existing, err := store.ListComputedKeys(ctx, "R", []points.Key{entries[0].Key, {PlayerID: "3", Source: stats.SourceSteamer, RuleName: "R"}})
	if err != nil || len(existing) != 1 {
		t.Fatalf("expected one existing key, got %v err=%v", existing, err)
	}

	if err := store.ClearCursor(ctx, "R"); err != nil {
		t.Fatalf("clear cursor: %v", err)
	}
	if off, _ := store.LoadCursor(ctx, "R"); off != 0 {
		t.Fatalf("expected cleared cursor, got %d", off)
	}
}

func TestEngineOverSQLiteIsIdempotentAndRanks(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	rule := scoring.DefaultRule()
	if _, err := store.CreateScoringRule(ctx, rule); err != nil {
		t.Fatalf("create rule: %v", err)
	}
	for i := 0; i < 23; i++ {
		if _, err := store.ImportStatRecord(ctx, batter(fmt.Sprintf("%02d", i), stats.SourceSteamer, float64(i), 1)); err != nil {
			t.Fatalf("import: %v", err)
		}
	}

	engine := recompute.NewEngine(store, recompute.Config{BatchSize: 5}, nil)
	first := engine.Run(ctx, rule, nil)
	if first.Status != recompute.StatusCompleted || first.Written != 23 {
		t.Fatalf("unexpected first pass: %+v", first)
	}
	second := engine.Run(ctx, rule, nil)
	if second.Status != recompute.StatusCompleted || second.Written != 0 {
		t.Fatalf("expected idempotent second pass, got %+v", second)
	}

	ranked, err := store.ListRanked(ctx, rule.Name, stats.SourceSteamer, "", 3)
	if err != nil {
		t.Fatalf("ListRanked: %v", err)
	}
	if len(ranked) != 3 || ranked[0].PlayerID != "22" || ranked[0].Amount != 23 {
		t.Fatalf("unexpected leaderboard: %+v", ranked)
	}
	if ranked[0].PlayerName != "Player 22" {
		t.Fatalf("expected descriptive fields joined, got %+v", ranked[0])
	}
}

func TestResumedPassCoversRecordsImportedBeforeCursor(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	rule := scoring.DefaultRule()
	if _, err := store.CreateScoringRule(ctx, rule); err != nil {
		t.Fatalf("create rule: %v", err)
	}
	for i := 10; i < 30; i++ {
		if _, err := store.ImportStatRecord(ctx, batter(fmt.Sprintf("%d", i), stats.SourceSteamer, float64(i), 1)); err != nil {
			t.Fatalf("import: %v", err)
		}
	}

	page, err := store.ListStatRecords(ctx, 0, 10)
	if err != nil {
		t.Fatalf("ListStatRecords: %v", err)
	}
	entries := make([]points.ComputedPoints, 0, len(page))
	for _, rec := range page {
		key, err := points.KeyFor(rec, rule.Name)
		if err != nil {
			t.Fatalf("KeyFor: %v", err)
		}
		entries = append(entries, points.ComputedPoints{Key: key, Amount: scoring.Calculate(rec, rule), CreatedAt: time.Now().UTC()})
	}
	if _, err := store.CommitBatch(ctx, rule.Name, entries, 10); err != nil {
		t.Fatalf("CommitBatch: %v", err)
	}

	if _, err := store.ImportStatRecord(ctx, batter("01", stats.SourceSteamer, 3, 2)); err != nil {
		t.Fatalf("import: %v", err)
	}

	res := recompute.NewEngine(store, recompute.Config{BatchSize: 10}, nil).Run(ctx, rule, nil)
	if res.Status != recompute.StatusCompleted || res.Total != 21 || res.Written != 11 {
		t.Fatalf("unexpected resumed pass: %+v", res)
	}
	got, err := store.GetComputedPoints(ctx, points.Key{PlayerID: "01", Source: stats.SourceSteamer, RuleName: rule.Name})
	if err != nil || got.Amount != 5 {
		t.Fatalf("expected 5 points for player 01, got %.2f err=%v", got.Amount, err)
	}
	if off, _ := store.LoadCursor(ctx, rule.Name); off != 0 {
		t.Fatalf("expected cursor cleared, got %d", off)
	}
}
