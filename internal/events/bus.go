package events

import (
	"context"
	"sync"

	"github.com/lutefd/draftpoints-api/internal/domain/scoring"
	"github.com/lutefd/draftpoints-api/internal/domain/stats"
)

const (
	ScoringRuleCreated = "ScoringRuleCreated"
	StatsImported      = "StatsImported"
	MyProjectionSaved  = "MyProjectionSaved"
)

type Event struct {
	Name    string
	Payload any
}

type RuleCreatedPayload struct {
	Rule scoring.Rule
}

type StatsImportedPayload struct {
	Source stats.ProjectionSource
	Counts stats.ImportCounts
}

type MyProjectionSavedPayload struct {
	PlayerID string
}

type Handler func(context.Context, Event) error

type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
}

func NewBus() *Bus {
	return &Bus{handlers: map[string][]Handler{}}
}

func (b *Bus) Subscribe(name string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[name] = append(b.handlers[name], handler)
}

// Publish runs handlers in subscription order and stops at the first error.
func (b *Bus) Publish(ctx context.Context, e Event) error {
	b.mu.RLock()
	handlers := append([]Handler(nil), b.handlers[e.Name]...)
	b.mu.RUnlock()

	for _, handler := range handlers {
		if err := handler(ctx, e); err != nil {
			return err
		}
	}
	return nil
}
