package automation

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// In-memory repositories for unit tests. Both are safe for concurrent
// use, matching what the mongo implementations guarantee.

type fakeRuleRepo struct {
	mu    sync.Mutex
	rules map[string]*Rule
}

func newFakeRuleRepo() *fakeRuleRepo {
	return &fakeRuleRepo{rules: make(map[string]*Rule)}
}

func (f *fakeRuleRepo) CreateRule(ctx context.Context, rule *Rule) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if rule.ID == "" {
		rule.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	rule.CreatedAt = now
	rule.UpdatedAt = now
	if rule.Filters == nil {
		rule.Filters = []Filter{}
	}
	if rule.FieldMap == nil {
		rule.FieldMap = []FieldMapping{}
	}
	clone := *rule
	f.rules[rule.ID] = &clone
	return nil
}

func (f *fakeRuleRepo) GetRule(ctx context.Context, id string) (*Rule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rule, ok := f.rules[id]
	if !ok {
		return nil, nil
	}
	clone := *rule
	return &clone, nil
}

func (f *fakeRuleRepo) ListRules(ctx context.Context) ([]Rule, error) {
	return f.list(func(r *Rule) bool { return true })
}

func (f *fakeRuleRepo) ListEnabledRules(ctx context.Context) ([]Rule, error) {
	return f.list(func(r *Rule) bool { return r.Enabled })
}

func (f *fakeRuleRepo) list(keep func(*Rule) bool) ([]Rule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Rule
	for _, r := range f.rules {
		if keep(r) {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeRuleRepo) UpdateRule(ctx context.Context, rule *Rule) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	existing, ok := f.rules[rule.ID]
	if !ok {
		return fmt.Errorf("rule not found")
	}
	rule.UpdatedAt = time.Now().UTC()
	rule.TriggerCount = existing.TriggerCount
	rule.LastTriggeredAt = existing.LastTriggeredAt
	clone := *rule
	f.rules[rule.ID] = &clone
	return nil
}

func (f *fakeRuleRepo) DeleteRule(ctx context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rules[id]; !ok {
		return false, nil
	}
	delete(f.rules, id)
	return true, nil
}

func (f *fakeRuleRepo) IncrementTriggerCount(ctx context.Context, id string, triggeredAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rule, ok := f.rules[id]
	if !ok {
		return fmt.Errorf("rule not found")
	}
	rule.TriggerCount++
	rule.LastTriggeredAt = &triggeredAt
	return nil
}

func (f *fakeRuleRepo) EnsureIndexes(ctx context.Context) error { return nil }

type fakeRunRepo struct {
	mu   sync.Mutex
	runs []Run
}

func newFakeRunRepo() *fakeRunRepo {
	return &fakeRunRepo{}
}

func (f *fakeRunRepo) InsertRun(ctx context.Context, run *Run) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs = append(f.runs, *run)
	return nil
}

func (f *fakeRunRepo) ListRunsByRule(ctx context.Context, ruleID string, limit int64) ([]Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Run
	for _, r := range f.runs {
		if r.RuleID == ruleID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TriggeredAt.After(out[j].TriggeredAt) })
	if limit > 0 && int64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeRunRepo) DeleteRunsByRule(ctx context.Context, ruleID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.runs[:0]
	for _, r := range f.runs {
		if r.RuleID != ruleID {
			kept = append(kept, r)
		}
	}
	f.runs = kept
	return nil
}

func (f *fakeRunRepo) EnsureIndexes(ctx context.Context) error { return nil }

func (f *fakeRunRepo) all() []Run {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Run, len(f.runs))
	copy(out, f.runs)
	return out
}
