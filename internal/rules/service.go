package rules

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lutefd/draftpoints-api/internal/domain/scoring"
	"github.com/lutefd/draftpoints-api/internal/storage"
	"go.uber.org/zap"
)

var (
	ErrNameConflict = errors.New("scoring rule name already in use")
	ErrNotFound     = errors.New("scoring rule not found")
)

type Store interface {
	GetScoringRule(ctx context.Context, name string) (scoring.Rule, error)
	CreateScoringRule(ctx context.Context, rule scoring.Rule) (bool, error)
	ListScoringRules(ctx context.Context) ([]scoring.Rule, error)
}

type Service struct {
	store  Store
	logger *zap.Logger
}

func NewService(store Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, logger: logger}
}

// Create stores a new rule. Names are matched exactly; the pre-check gives the
// caller a synchronous conflict and the store's unique insert closes the race.
func (s *Service) Create(ctx context.Context, rule scoring.Rule) (scoring.Rule, error) {
	if err := rule.Validate(); err != nil {
		return scoring.Rule{}, err
	}

	taken, err := s.exists(ctx, rule.Name)
	if err != nil {
		return scoring.Rule{}, err
	}
	if taken {
		return scoring.Rule{}, fmt.Errorf("%w: %q", ErrNameConflict, rule.Name)
	}

	rule.CreatedAt = time.Now().UTC()
	created, err := s.store.CreateScoringRule(ctx, rule)
	if err != nil {
		return scoring.Rule{}, err
	}
	if !created {
		return scoring.Rule{}, fmt.Errorf("%w: %q", ErrNameConflict, rule.Name)
	}
	s.logger.Info("scoring rule created", zap.String("rule", rule.Name))
	return rule, nil
}

// Default returns the DefaultPoints rule, creating it with the fixed weights
// on first access.
func (s *Service) Default(ctx context.Context) (scoring.Rule, error) {
	rule, err := s.store.GetScoringRule(ctx, scoring.DefaultRuleName)
	if err == nil {
		return rule, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return scoring.Rule{}, err
	}

	rule = scoring.DefaultRule()
	rule.CreatedAt = time.Now().UTC()
	created, err := s.store.CreateScoringRule(ctx, rule)
	if err != nil {
		return scoring.Rule{}, err
	}
	if created {
		s.logger.Info("default scoring rule bootstrapped")
		return rule, nil
	}
	return s.Get(ctx, scoring.DefaultRuleName)
}

func (s *Service) Get(ctx context.Context, name string) (scoring.Rule, error) {
	rule, err := s.store.GetScoringRule(ctx, name)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return scoring.Rule{}, fmt.Errorf("%w: %q", ErrNotFound, name)
		}
		return scoring.Rule{}, err
	}
	return rule, nil
}

func (s *Service) List(ctx context.Context) ([]scoring.Rule, error) {
	return s.store.ListScoringRules(ctx)
}

func (s *Service) exists(ctx context.Context, name string) (bool, error) {
	_, err := s.store.GetScoringRule(ctx, name)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	return false, err
}
