package recompute

import (
	"context"
	"errors"

	"github.com/lutefd/draftpoints-api/internal/events"
	"go.uber.org/zap"
)

// Subscribe wires the engine to the event bus. A new rule gets its own pass;
// imported or edited stats trigger a pass for every rule. Passes already in
// flight are left alone.
func Subscribe(bus *events.Bus, engine *Engine) {
	bus.Subscribe(events.ScoringRuleCreated, func(_ context.Context, e events.Event) error {
		p, ok := e.Payload.(events.RuleCreatedPayload)
		if !ok {
			return nil
		}
		if _, err := engine.Start(p.Rule); err != nil && !errors.Is(err, ErrAlreadyRunning) {
			return err
		}
		return nil
	})

	recomputeAll := func(ctx context.Context, e events.Event) error {
		runs, err := engine.RecomputeAll(ctx)
		if err != nil {
			return err
		}
		engine.logger.Debug("recompute triggered", zap.String("event", e.Name), zap.Int("runs", len(runs)))
		return nil
	}
	bus.Subscribe(events.StatsImported, recomputeAll)
	bus.Subscribe(events.MyProjectionSaved, recomputeAll)
}
