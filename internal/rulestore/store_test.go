package rulestore

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/posbridge/pricing-service/internal/pricing"
)

type fakeBackend struct {
	mu         sync.Mutex
	fieldCalls map[string]int
	ruleCalls  map[string]int
	err        error
	sets       []pricing.CategoryFieldSet
	rules      []pricing.PricingRule

	// gate, when set, blocks rule fetches for the named environment
	gate    map[string]chan struct{}
	started chan string
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		fieldCalls: make(map[string]int),
		ruleCalls:  make(map[string]int),
		sets: []pricing.CategoryFieldSet{
			{CategoryID: 18, Fields: []pricing.Field{{ID: 100, GroupLabel: "Flower Pricing"}}},
		},
		rules: []pricing.PricingRule{
			{ID: 1, RuleName: "Flower", Status: "active", Conditions: json.RawMessage(`{"blueprint_id":100,"tiers":[{"min_quantity":1,"price":15}]}`)},
			{ID: 2, RuleName: "Old Flower", Status: "inactive", Conditions: json.RawMessage(`{"blueprint_id":100}`)},
			{ID: 3, RuleName: "Flagged", IsActive: true, Conditions: json.RawMessage(`{"blueprint_id":100}`)},
		},
	}
}

func (f *fakeBackend) CategoryFields(ctx context.Context, env string) ([]pricing.CategoryFieldSet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fieldCalls[env]++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.sets, nil
}

func (f *fakeBackend) PricingRules(ctx context.Context, env string) ([]pricing.PricingRule, error) {
	f.mu.Lock()
	f.ruleCalls[env]++
	gate := f.gate[env]
	started := f.started
	f.mu.Unlock()

	if gate != nil {
		if started != nil {
			started <- env
		}
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.rules, nil
}

func (f *fakeBackend) setErr(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

func (f *fakeBackend) calls(env string) (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fieldCalls[env], f.ruleCalls[env]
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestStore(backend Backend, clock *fakeClock) *Store {
	return New(backend, Options{
		TTL:         time.Minute,
		LoadTimeout: time.Second,
		CircuitBreaker: CircuitBreakerConfig{
			MaxFailures:  3,
			ResetTimeout: 30 * time.Second,
		},
		Now: clock.Now,
	}, nil)
}

func TestGetCachesWithinTTL(t *testing.T) {
	backend := newFakeBackend()
	clock := newFakeClock()
	store := newTestStore(backend, clock)
	ctx := context.Background()

	first := store.Get(ctx, "production")
	require.NotNil(t, first)
	assert.Equal(t, "production", first.Environment)
	assert.False(t, first.Stale)
	require.Len(t, first.Assignments, 1)
	assert.Equal(t, 100, first.Assignments[0].BlueprintID)

	clock.Advance(59 * time.Second)
	second := store.Get(ctx, "production")
	assert.Same(t, first, second)

	fields, rules := backend.calls("production")
	assert.Equal(t, 1, fields)
	assert.Equal(t, 1, rules)

	clock.Advance(time.Second)
	third := store.Get(ctx, "production")
	assert.NotSame(t, first, third)
	fields, rules = backend.calls("production")
	assert.Equal(t, 2, fields)
	assert.Equal(t, 2, rules)
}

func TestGetKeepsOnlyActiveRules(t *testing.T) {
	store := newTestStore(newFakeBackend(), newFakeClock())

	entry := store.Get(context.Background(), "production")
	require.Len(t, entry.Rules, 2)
	assert.Equal(t, 1, entry.Rules[0].ID)
	assert.Equal(t, 3, entry.Rules[1].ID)
}

func TestGetRefetchesAfterVersionChange(t *testing.T) {
	backend := newFakeBackend()
	clock := newFakeClock()
	store := newTestStore(backend, clock)
	ctx := context.Background()

	store.Get(ctx, "production")
	store.Get(ctx, "staging")

	store.mu.Lock()
	store.version = "blueprint-pricing/2"
	store.mu.Unlock()

	clock.Advance(time.Second)
	store.Get(ctx, "production")

	fields, rules := backend.calls("production")
	assert.Equal(t, 2, fields, "version change must force a fetch within the TTL")
	assert.Equal(t, 2, rules)

	// every environment was cleared, not just the one looked up
	_, stagingCached := store.Freshness()["staging"]
	assert.False(t, stagingCached)
	assert.Equal(t, CacheVersion, store.version)
}

func TestGetServesStaleEntryOnFailure(t *testing.T) {
	backend := newFakeBackend()
	clock := newFakeClock()
	store := newTestStore(backend, clock)
	ctx := context.Background()

	fresh := store.Get(ctx, "production")
	require.Len(t, fresh.Rules, 2)

	backend.setErr(errors.New("backend down"))
	clock.Advance(2 * time.Minute)

	stale := store.Get(ctx, "production")
	require.NotNil(t, stale)
	assert.True(t, stale.Stale)
	assert.Equal(t, fresh.Rules, stale.Rules)
	assert.Equal(t, fresh.LastFetch, stale.LastFetch)
	assert.False(t, fresh.Stale, "published entries are never mutated")

	entry, err := store.Refresh(ctx, "production")
	require.Error(t, err)
	assert.True(t, entry.Stale)
}

func TestGetColdFailureReturnsEmptyEntry(t *testing.T) {
	backend := newFakeBackend()
	backend.setErr(errors.New("backend down"))
	store := newTestStore(backend, newFakeClock())
	ctx := context.Background()

	entry := store.Get(ctx, "production")
	require.NotNil(t, entry)
	assert.Empty(t, entry.Assignments)
	assert.Empty(t, entry.Rules)
	assert.Empty(t, store.Freshness(), "empty fallback is not cached")

	backend.setErr(nil)
	entry = store.Get(ctx, "production")
	assert.Len(t, entry.Rules, 2)
}

func TestConcurrentMissesShareOneRefresh(t *testing.T) {
	backend := newFakeBackend()
	gate := make(chan struct{})
	backend.gate = map[string]chan struct{}{"production": gate}
	backend.started = make(chan string, 1)
	store := newTestStore(backend, newFakeClock())

	const callers = 25
	var wg sync.WaitGroup
	results := make(chan *Entry, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- store.Get(context.Background(), "production")
		}()
	}

	<-backend.started
	time.Sleep(20 * time.Millisecond)
	close(gate)
	wg.Wait()
	close(results)

	for e := range results {
		assert.Len(t, e.Rules, 2)
	}
	_, rules := backend.calls("production")
	assert.Equal(t, 1, rules)
}

func TestEnvironmentsDoNotBlockEachOther(t *testing.T) {
	backend := newFakeBackend()
	gate := make(chan struct{})
	backend.gate = map[string]chan struct{}{"staging": gate}
	backend.started = make(chan string, 1)
	store := newTestStore(backend, newFakeClock())

	go store.Get(context.Background(), "staging")
	<-backend.started
	defer close(gate)

	done := make(chan *Entry, 1)
	go func() { done <- store.Get(context.Background(), "production") }()

	select {
	case e := <-done:
		assert.Len(t, e.Rules, 2)
	case <-time.After(2 * time.Second):
		t.Fatal("production lookup blocked behind staging refresh")
	}
}

func TestRefreshIgnoresCallerCancellation(t *testing.T) {
	backend := newFakeBackend()
	store := newTestStore(backend, newFakeClock())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	entry, err := store.Refresh(ctx, "production")
	require.NoError(t, err)
	assert.Len(t, entry.Rules, 2)
}

func TestInvalidate(t *testing.T) {
	backend := newFakeBackend()
	store := newTestStore(backend, newFakeClock())
	ctx := context.Background()

	store.Get(ctx, "production")
	store.Get(ctx, "staging")
	require.Len(t, store.Freshness(), 2)

	store.Invalidate("production")
	assert.NotContains(t, store.Freshness(), "production")
	assert.Contains(t, store.Freshness(), "staging")

	store.Get(ctx, "production")
	_, rules := backend.calls("production")
	assert.Equal(t, 2, rules)

	store.InvalidateAll()
	assert.Empty(t, store.Freshness())
}

func TestFreshness(t *testing.T) {
	clock := newFakeClock()
	store := newTestStore(newFakeBackend(), clock)
	store.Get(context.Background(), "production")

	clock.Advance(90 * time.Second)
	f := store.Freshness()["production"]
	assert.Equal(t, 90*time.Second, f.Age)
	assert.True(t, f.IsStale)
	assert.Equal(t, 1, f.Assignments)
	assert.Equal(t, 2, f.Rules)
}

func TestCircuitBreakerSkipsRefreshes(t *testing.T) {
	backend := newFakeBackend()
	backend.setErr(errors.New("backend down"))
	clock := newFakeClock()
	store := newTestStore(backend, clock)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		store.Get(ctx, "production")
	}
	assert.Equal(t, CircuitOpen, store.BreakerState("production"))

	entry, err := store.Refresh(ctx, "production")
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Empty(t, entry.Rules)
	_, rules := backend.calls("production")
	assert.Equal(t, 3, rules, "open circuit must not reach the backend")

	backend.setErr(nil)
	clock.Advance(31 * time.Second)
	entry = store.Get(ctx, "production")
	assert.Len(t, entry.Rules, 2)
	assert.Equal(t, CircuitClosed, store.BreakerState("production"))
}

func TestOpenBreakerIsPerEnvironment(t *testing.T) {
	backend := newFakeBackend()
	backend.setErr(errors.New("staging down"))
	clock := newFakeClock()
	store := newTestStore(backend, clock)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		store.Get(ctx, "staging")
	}
	require.Equal(t, CircuitOpen, store.BreakerState("staging"))

	backend.setErr(nil)
	entry := store.Get(ctx, "production")
	assert.False(t, entry.Stale)
	assert.Len(t, entry.Rules, 2, "a cold environment refreshes while another environment's breaker is open")
	_, rules := backend.calls("production")
	assert.Equal(t, 1, rules)

	assert.Equal(t, CircuitClosed, store.BreakerState("production"))
	assert.Equal(t, map[string]CircuitBreakerState{
		"staging":    CircuitOpen,
		"production": CircuitClosed,
	}, store.BreakerStates())
	assert.Equal(t, "closed", store.Freshness()["production"].Breaker)

	_, err := store.Refresh(ctx, "staging")
	assert.ErrorIs(t, err, ErrCircuitOpen)

	store.ResetBreaker("staging")
	assert.Equal(t, CircuitClosed, store.BreakerState("staging"))
	entry = store.Get(ctx, "staging")
	assert.Len(t, entry.Rules, 2)
}

func TestGetDropsRulesWithMalformedConditions(t *testing.T) {
	backend := newFakeBackend()
	backend.rules = append(backend.rules,
		pricing.PricingRule{ID: 4, RuleName: "Broken", Status: "active", Conditions: json.RawMessage(`{"blueprint_id":100,"tiers":`)},
		pricing.PricingRule{ID: 5, RuleName: "PHP Empty Map", Status: "active",
			Conditions: json.RawMessage(`{"blueprint_id":100,"categories":[],"tiers":[{"min_quantity":1,"price":9}]}`)},
	)
	store := newTestStore(backend, newFakeClock())

	entry := store.Get(context.Background(), "production")
	ids := make([]int, 0, len(entry.Rules))
	for _, r := range entry.Rules {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []int{1, 3, 5}, ids)
}
