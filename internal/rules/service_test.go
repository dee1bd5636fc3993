package rules

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/lutefd/draftpoints-api/internal/domain/scoring"
	"github.com/lutefd/draftpoints-api/internal/storage"
)

type ruleStoreMock struct {
	mu      sync.Mutex
	rules   map[string]scoring.Rule
	creates int
}

func newRuleStoreMock() *ruleStoreMock {
	return &ruleStoreMock{rules: make(map[string]scoring.Rule)}
}

func (m *ruleStoreMock) GetScoringRule(_ context.Context, name string) (scoring.Rule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rules[name]
	if !ok {
		return scoring.Rule{}, storage.ErrNotFound
	}
	return r, nil
}

func (m *ruleStoreMock) CreateScoringRule(_ context.Context, rule scoring.Rule) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rules[rule.Name]; ok {
		return false, nil
	}
	m.rules[rule.Name] = rule
	m.creates++
	return true, nil
}

func (m *ruleStoreMock) ListScoringRules(_ context.Context) ([]scoring.Rule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]scoring.Rule, 0, len(m.rules))
	for _, r := range m.rules {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func TestDefaultBootstrapsOnce(t *testing.T) {
	store := newRuleStoreMock()
	svc := NewService(store, nil)

	first, err := svc.Default(context.Background())
	if err != nil {
		t.Fatalf("Default failed: %v", err)
	}
	if first.Name != scoring.DefaultRuleName {
		t.Fatalf("unexpected name %q", first.Name)
	}
	if first.Weights != scoring.DefaultWeights() {
		t.Fatalf("unexpected weights: %+v", first.Weights)
	}

	second, err := svc.Default(context.Background())
	if err != nil {
		t.Fatalf("second Default failed: %v", err)
	}
	if store.creates != 1 {
		t.Fatalf("expected one create, got %d", store.creates)
	}
	if !second.CreatedAt.Equal(first.CreatedAt) {
		t.Fatalf("expected the same entity on the second fetch")
	}
}

func TestDefaultConcurrentFirstAccess(t *testing.T) {
	store := newRuleStoreMock()
	svc := NewService(store, nil)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Default(context.Background()); err != nil {
				t.Errorf("Default failed: %v", err)
			}
		}()
	}
	wg.Wait()

	if store.creates != 1 || len(store.rules) != 1 {
		t.Fatalf("expected exactly one default rule, got %d creates", store.creates)
	}
}

func TestCreateRejectsDuplicateDefaultName(t *testing.T) {
	store := newRuleStoreMock()
	svc := NewService(store, nil)
	if _, err := svc.Default(context.Background()); err != nil {
		t.Fatalf("Default failed: %v", err)
	}

	_, err := svc.Create(context.Background(), scoring.Rule{Name: scoring.DefaultRuleName, Weights: scoring.Weights{Runs: 2}})
	if !errors.Is(err, ErrNameConflict) {
		t.Fatalf("expected ErrNameConflict, got %v", err)
	}
	if len(store.rules) != 1 {
		t.Fatalf("expected no new rule, have %d", len(store.rules))
	}
	if store.rules[scoring.DefaultRuleName].Weights.Runs != 1 {
		t.Fatalf("expected default weights untouched")
	}
}

func TestCreateNameMatchIsCaseSensitive(t *testing.T) {
	svc := NewService(newRuleStoreMock(), nil)
	if _, err := svc.Create(context.Background(), scoring.Rule{Name: "H2H"}); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, err := svc.Create(context.Background(), scoring.Rule{Name: "h2h"}); err != nil {
		t.Fatalf("expected differently cased name to be accepted: %v", err)
	}
	if _, err := svc.Create(context.Background(), scoring.Rule{Name: "H2H"}); !errors.Is(err, ErrNameConflict) {
		t.Fatalf("expected ErrNameConflict, got %v", err)
	}
}

func TestCreateValidates(t *testing.T) {
	svc := NewService(newRuleStoreMock(), nil)
	if _, err := svc.Create(context.Background(), scoring.Rule{Name: ""}); !errors.Is(err, scoring.ErrInvalidRule) {
		t.Fatalf("expected ErrInvalidRule, got %v", err)
	}
}

func TestGetMissing(t *testing.T) {
	svc := NewService(newRuleStoreMock(), nil)
	if _, err := svc.Get(context.Background(), "Nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
