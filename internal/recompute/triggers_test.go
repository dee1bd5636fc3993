package recompute

import (
	"context"
	"testing"
	"time"

	"github.com/lutefd/draftpoints-api/internal/domain/scoring"
	"github.com/lutefd/draftpoints-api/internal/domain/stats"
	"github.com/lutefd/draftpoints-api/internal/events"
)

func waitIdle(t *testing.T, engine *Engine) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for _, run := range engine.Runs() {
		select {
		case <-run.Done():
		case <-ctx.Done():
			t.Fatalf("run %s did not finish", run.ID)
		}
	}
}

func TestSubscribeStartsPassForCreatedRule(t *testing.T) {
	store := newEngineStoreMock(batters(4)...)
	engine := NewEngine(store, fastConfig(10), nil)
	bus := events.NewBus()
	Subscribe(bus, engine)

	rule := scoring.Rule{Name: "H2H", Weights: scoring.Weights{Runs: 3}}
	if err := bus.Publish(context.Background(), events.Event{
		Name:    events.ScoringRuleCreated,
		Payload: events.RuleCreatedPayload{Rule: rule},
	}); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	runs := engine.Runs()
	if len(runs) != 1 || runs[0].Rule != "H2H" {
		t.Fatalf("expected one H2H run, got %d", len(runs))
	}
	waitIdle(t, engine)
	if len(store.computed) != 4 {
		t.Fatalf("expected 4 entries, got %d", len(store.computed))
	}
}

func TestSubscribeRecomputesEveryRuleOnImport(t *testing.T) {
	store := newEngineStoreMock(batters(2)...)
	store.rules = []scoring.Rule{scoring.DefaultRule(), {Name: "H2H"}}
	engine := NewEngine(store, fastConfig(10), nil)
	bus := events.NewBus()
	Subscribe(bus, engine)

	if err := bus.Publish(context.Background(), events.Event{
		Name:    events.StatsImported,
		Payload: events.StatsImportedPayload{Source: stats.SourceSteamer},
	}); err != nil {
		t.Fatalf("publish failed: %v", err)
	}
	if got := len(engine.Runs()); got != 2 {
		t.Fatalf("expected 2 runs, got %d", got)
	}
	waitIdle(t, engine)
}
