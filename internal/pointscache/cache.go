package pointscache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lutefd/draftpoints-api/internal/domain/points"
	"github.com/lutefd/draftpoints-api/internal/domain/scoring"
	"github.com/lutefd/draftpoints-api/internal/domain/stats"
	"github.com/lutefd/draftpoints-api/internal/storage"
	"go.uber.org/zap"
)

var ErrDuplicateKey = errors.New("computed points already exist for key")

type Store interface {
	GetComputedPoints(ctx context.Context, key points.Key) (points.ComputedPoints, error)
	InsertComputedPoints(ctx context.Context, cp points.ComputedPoints) (bool, error)
}

// Cache is the write-once (player, source, rule) -> total store. Every write
// goes through the store's insert-if-absent, so concurrent fillers of the
// same key cannot produce two entries.
type Cache struct {
	store  Store
	logger *zap.Logger
	now    func() time.Time
}

func New(store Store, logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{
		store:  store,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Get returns ok=false when no entry exists for key.
func (c *Cache) Get(ctx context.Context, key points.Key) (points.ComputedPoints, bool, error) {
	cp, err := c.store.GetComputedPoints(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return points.ComputedPoints{}, false, nil
		}
		return points.ComputedPoints{}, false, err
	}
	return cp, true, nil
}

func (c *Cache) Put(ctx context.Context, cp points.ComputedPoints) error {
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = c.now()
	}
	inserted, err := c.store.InsertComputedPoints(ctx, cp)
	if err != nil {
		return err
	}
	if !inserted {
		return fmt.Errorf("%w: %s", ErrDuplicateKey, cp.Key)
	}
	return nil
}

// GetOrCompute returns the cached total for rec under rule, computing and
// storing it on first request. A record without player id or source returns
// a *points.MissingFieldError and writes nothing.
func (c *Cache) GetOrCompute(ctx context.Context, rec stats.StatRecord, rule scoring.Rule) (float64, error) {
	key, err := points.KeyFor(rec, rule.Name)
	if err != nil {
		return 0, err
	}

	if cp, ok, err := c.Get(ctx, key); err != nil {
		return 0, err
	} else if ok {
		return cp.Amount, nil
	}

	cp := points.ComputedPoints{Key: key, Amount: scoring.Calculate(rec, rule), CreatedAt: c.now()}
	inserted, err := c.store.InsertComputedPoints(ctx, cp)
	if err != nil {
		return 0, err
	}
	if inserted {
		return cp.Amount, nil
	}

	// Another writer filled the key between our read and insert; its value wins.
	c.logger.Debug("computed points filled concurrently", zap.String("key", key.String()))
	stored, ok, err := c.Get(ctx, key)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("computed points for %s vanished after conflicting insert", key)
	}
	return stored.Amount, nil
}
