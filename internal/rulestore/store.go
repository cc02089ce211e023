// Package rulestore caches blueprint assignments and active pricing rules per
// backend environment.
package rulestore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/posbridge/pricing-service/internal/pricing"
)

// CacheVersion identifies the layout of cached entries. A store holding data
// of another version drops every environment on the next lookup.
const CacheVersion = "blueprint-pricing/3"

const (
	DefaultTTL         = 60 * time.Second
	DefaultLoadTimeout = 15 * time.Second
)

// Backend is the source of category field sets and pricing rules.
type Backend interface {
	CategoryFields(ctx context.Context, env string) ([]pricing.CategoryFieldSet, error)
	PricingRules(ctx context.Context, env string) ([]pricing.PricingRule, error)
}

// Options configures a Store. Zero values fall back to the defaults.
type Options struct {
	TTL                time.Duration
	LoadTimeout        time.Duration
	UtilityGroupLabels []string
	CircuitBreaker     CircuitBreakerConfig
	Now                func() time.Time
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		TTL:                DefaultTTL,
		LoadTimeout:        DefaultLoadTimeout,
		UtilityGroupLabels: pricing.DefaultUtilityGroupLabels,
		CircuitBreaker:     DefaultCircuitBreakerConfig(),
		Now:                time.Now,
	}
}

// Entry is an immutable snapshot of one environment's pricing data.
type Entry struct {
	Environment string
	Assignments []pricing.BlueprintAssignment
	Rules       []pricing.PricingRule
	LastFetch   time.Time
	// Stale is set on entries served after a failed refresh.
	Stale bool
}

// Freshness describes a cached environment for health reporting.
type Freshness struct {
	LastFetch   time.Time     `json:"lastFetch"`
	Age         time.Duration `json:"age"`
	IsStale     bool          `json:"isStale"`
	Assignments int           `json:"assignments"`
	Rules       int           `json:"rules"`
	Breaker     string        `json:"breaker"`
}

// Store is the environment-partitioned rule cache. Construct one per process.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*Entry
	version string

	// breakers are per environment so one failing backend never blocks
	// refreshes of another
	breakerMu sync.Mutex
	breakers  map[string]*CircuitBreaker

	sf      singleflight.Group
	backend Backend
	opts    Options
	metrics *MetricsRecorder
	tracer  trace.Tracer
	logger  *zerolog.Logger
}

// New creates a rule store over backend.
func New(backend Backend, opts Options, logger *zerolog.Logger) *Store {
	def := DefaultOptions()
	if opts.TTL <= 0 {
		opts.TTL = def.TTL
	}
	if opts.LoadTimeout <= 0 {
		opts.LoadTimeout = def.LoadTimeout
	}
	if opts.UtilityGroupLabels == nil {
		opts.UtilityGroupLabels = def.UtilityGroupLabels
	}
	if opts.Now == nil {
		opts.Now = def.Now
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	l := logger.With().Str("component", "rule_store").Logger()

	return &Store{
		entries:  make(map[string]*Entry),
		version:  CacheVersion,
		breakers: make(map[string]*CircuitBreaker),
		backend:  backend,
		opts:     opts,
		metrics:  NewMetricsRecorder(),
		tracer:   otel.Tracer("github.com/posbridge/pricing-service/internal/rulestore"),
		logger:   &l,
	}
}

// Get returns the entry for env, refreshing it when missing or older than the
// TTL. It never fails: a failed refresh yields the previous entry marked
// stale, or an empty entry when there is none.
func (s *Store) Get(ctx context.Context, env string) *Entry {
	s.checkVersion()

	if e := s.fresh(env); e != nil {
		s.metrics.RecordHit(env)
		return e
	}
	s.metrics.RecordMiss(env)

	v, err, _ := s.sf.Do(env, func() (interface{}, error) {
		// a flight that finished between the check above and here already stored it
		if e := s.fresh(env); e != nil {
			return e, nil
		}
		return s.load(ctx, env)
	})
	if err != nil {
		s.logger.Debug().Err(err).Str("environment", env).Msg("Serving fallback entry")
	}
	return v.(*Entry)
}

// Refresh fetches env from the backend and replaces its entry. Concurrent
// refreshes of one environment share a single backend round trip. On failure
// the returned entry is the fallback Get would serve and err is non-nil.
func (s *Store) Refresh(ctx context.Context, env string) (*Entry, error) {
	s.checkVersion()

	v, err, _ := s.sf.Do(env, func() (interface{}, error) {
		return s.load(ctx, env)
	})
	return v.(*Entry), err
}

// Invalidate drops the entry for env.
func (s *Store) Invalidate(env string) {
	s.mu.Lock()
	delete(s.entries, env)
	s.mu.Unlock()

	s.metrics.ClearEnvironment(env)
	s.logger.Info().Str("environment", env).Msg("Invalidated rule store entry")
}

// InvalidateAll drops every environment.
func (s *Store) InvalidateAll() {
	s.mu.Lock()
	envs := s.clearLocked()
	s.mu.Unlock()

	s.logger.Info().Strs("environments", envs).Msg("Invalidated all rule store entries")
}

// Freshness reports every cached environment.
func (s *Store) Freshness() map[string]Freshness {
	now := s.opts.Now()

	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]Freshness, len(s.entries))
	for env, e := range s.entries {
		age := now.Sub(e.LastFetch)
		s.metrics.RecordAge(env, age.Seconds())
		result[env] = Freshness{
			LastFetch:   e.LastFetch,
			Age:         age,
			IsStale:     age >= s.opts.TTL,
			Assignments: len(e.Assignments),
			Rules:       len(e.Rules),
			Breaker:     s.BreakerState(env).String(),
		}
	}
	return result
}

// BreakerState returns the state of env's refresh circuit breaker. An
// environment that was never refreshed is closed.
func (s *Store) BreakerState(env string) CircuitBreakerState {
	s.breakerMu.Lock()
	cb := s.breakers[env]
	s.breakerMu.Unlock()
	if cb == nil {
		return CircuitClosed
	}
	return cb.State()
}

// BreakerStates returns the breaker state of every environment refreshed so far.
func (s *Store) BreakerStates() map[string]CircuitBreakerState {
	s.breakerMu.Lock()
	defer s.breakerMu.Unlock()

	states := make(map[string]CircuitBreakerState, len(s.breakers))
	for env, cb := range s.breakers {
		states[env] = cb.State()
	}
	return states
}

// ResetBreaker closes env's refresh circuit breaker.
func (s *Store) ResetBreaker(env string) {
	s.breakerMu.Lock()
	cb := s.breakers[env]
	s.breakerMu.Unlock()
	if cb != nil {
		cb.Reset()
	}
}

// breaker returns env's circuit breaker, creating it on first use.
func (s *Store) breaker(env string) *CircuitBreaker {
	s.breakerMu.Lock()
	defer s.breakerMu.Unlock()

	cb, ok := s.breakers[env]
	if !ok {
		cb = NewCircuitBreaker("rule_store:"+env, s.opts.CircuitBreaker, s.opts.Now, s.logger)
		s.breakers[env] = cb
	}
	return cb
}

// checkVersion clears the whole cache when the held data is of another version.
func (s *Store) checkVersion() {
	s.mu.RLock()
	current := s.version == CacheVersion
	s.mu.RUnlock()
	if current {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.version == CacheVersion {
		return
	}
	old := s.version
	envs := s.clearLocked()
	s.version = CacheVersion
	s.metrics.RecordVersionReset()
	s.logger.Info().
		Str("from", old).
		Str("to", CacheVersion).
		Strs("environments", envs).
		Msg("Cache version changed, cleared rule store")
}

func (s *Store) clearLocked() []string {
	envs := make([]string, 0, len(s.entries))
	for env := range s.entries {
		envs = append(envs, env)
		s.metrics.ClearEnvironment(env)
	}
	s.entries = make(map[string]*Entry)
	return envs
}

// fresh returns the entry for env if it is younger than the TTL.
func (s *Store) fresh(env string) *Entry {
	e := s.lookup(env)
	if e == nil || s.opts.Now().Sub(e.LastFetch) >= s.opts.TTL {
		return nil
	}
	return e
}

func (s *Store) lookup(env string) *Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entries[env]
}

// load runs one refresh. The backend calls use a context detached from the
// caller's cancellation so one cancelled request does not fail the others
// sharing the flight.
func (s *Store) load(ctx context.Context, env string) (*Entry, error) {
	ctx, span := s.tracer.Start(ctx, "rulestore.Refresh",
		trace.WithAttributes(attribute.String("pricing.environment", env)))
	defer span.End()

	breaker := s.breaker(env)
	if !breaker.Allow() {
		s.metrics.RecordSkippedRefresh(env)
		span.SetStatus(codes.Error, "circuit open")
		return s.fallback(env, fmt.Errorf("refresh %s: %w", env, ErrCircuitOpen))
	}

	loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.LoadTimeout)
	defer cancel()

	start := s.opts.Now()
	var (
		sets  []pricing.CategoryFieldSet
		rules []pricing.PricingRule
	)
	g, gctx := errgroup.WithContext(loadCtx)
	g.Go(func() error {
		var err error
		sets, err = s.backend.CategoryFields(gctx, env)
		if err != nil {
			return fmt.Errorf("fetch category fields: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		rules, err = s.backend.PricingRules(gctx, env)
		if err != nil {
			return fmt.Errorf("fetch pricing rules: %w", err)
		}
		return nil
	})
	err := g.Wait()
	s.metrics.RecordRefresh(env, s.opts.Now().Sub(start).Seconds(), err == nil)

	if err != nil {
		breaker.RecordFailure(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "refresh failed")
		return s.fallback(env, fmt.Errorf("refresh %s: %w", env, err))
	}
	breaker.RecordSuccess()

	active := activeRules(rules)
	usable, malformed := pricing.UsableRules(active)
	for _, r := range malformed {
		s.logger.Warn().
			Str("environment", env).
			Int("rule_id", r.RuleID).
			Str("rule_name", r.RuleName).
			Str("reason", r.Reason).
			Msg("Dropped pricing rule with malformed conditions")
	}

	entry := &Entry{
		Environment: env,
		Assignments: pricing.BuildAssignments(sets, s.opts.UtilityGroupLabels),
		Rules:       usable,
		LastFetch:   s.opts.Now(),
	}

	s.mu.Lock()
	s.entries[env] = entry
	s.mu.Unlock()

	s.metrics.RecordEntry(env, len(entry.Rules))
	span.SetAttributes(
		attribute.Int("pricing.assignments", len(entry.Assignments)),
		attribute.Int("pricing.rules", len(entry.Rules)),
	)
	s.logger.Info().
		Str("environment", env).
		Int("assignments", len(entry.Assignments)).
		Int("rules", len(entry.Rules)).
		Int("inactive_rules", len(rules)-len(active)).
		Int("malformed_rules", len(malformed)).
		Dur("duration", entry.LastFetch.Sub(start)).
		Msg("Refreshed rule store entry")

	return entry, nil
}

// fallback returns the entry served when a refresh fails. A previous entry is
// returned as a stale copy; otherwise an empty entry that is not stored, so
// the next lookup retries.
func (s *Store) fallback(env string, err error) (*Entry, error) {
	if prev := s.lookup(env); prev != nil {
		stale := *prev
		stale.Stale = true
		s.metrics.RecordStaleServe(env)
		s.logger.Warn().
			Err(err).
			Str("environment", env).
			Time("last_fetch", prev.LastFetch).
			Msg("Refresh failed, serving stale entry")
		return &stale, err
	}

	s.logger.Warn().
		Err(err).
		Str("environment", env).
		Msg("Refresh failed with no cached entry, serving empty entry")
	return &Entry{Environment: env}, err
}

func activeRules(rules []pricing.PricingRule) []pricing.PricingRule {
	active := make([]pricing.PricingRule, 0, len(rules))
	for _, r := range rules {
		if r.Active() {
			active = append(active, r)
		}
	}
	return active
}
