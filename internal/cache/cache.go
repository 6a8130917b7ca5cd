// Package cache owns the pool of long-lived handler instances, keyed by
// handler kind, with usage accounting and idle eviction.
//
// Construction uses per-kind double-checked locking: the factory runs at
// most once per kind even under concurrent first access, and hits never
// serialize behind a construction lock. Usage stats on the hot path are
// atomic so a read lock on the map is all a hit needs.
package cache

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/brandaholic91/ChatBuddy-MVP-sub000/internal/handler"
	chatotel "github.com/brandaholic91/ChatBuddy-MVP-sub000/internal/otel"
	"github.com/brandaholic91/ChatBuddy-MVP-sub000/internal/route"
)

var tracer = chatotel.Tracer("github.com/brandaholic91/ChatBuddy-MVP-sub000/internal/cache")

// DefaultIdleThreshold is how long an unused entry survives before the
// sweep removes it.
const DefaultIdleThreshold = 24 * time.Hour

// Status tracks an entry's health as seen by the periodic probe.
type Status string

const (
	StatusActive    Status = "active"
	StatusUnhealthy Status = "unhealthy"
	StatusErrored   Status = "error"
)

// entry is one cached handler instance. lastUsed and uses are atomics so
// hits update them under the cache's read lock; status is written only by
// the health probe under the entry mutex.
type entry struct {
	kind      route.Kind
	h         handler.Handler
	createdAt time.Time
	lastUsed  atomic.Int64 // unix nanos
	uses      atomic.Int64

	mu     sync.Mutex
	status Status
}

func (e *entry) touch(now time.Time) {
	e.lastUsed.Store(now.UnixNano())
	e.uses.Add(1)
}

func (e *entry) setStatus(s Status) {
	e.mu.Lock()
	e.status = s
	e.mu.Unlock()
}

func (e *entry) getStatus() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// Stats is the cache's operational counters.
type Stats struct {
	Hits          int64   `json:"hits"`
	Misses        int64   `json:"misses"`
	TotalRequests int64   `json:"total_requests"`
	HitRate       float64 `json:"hit_rate"`
	CachedCount   int     `json:"cached_count"`
}

// HealthReport lists cached kinds by probe outcome.
type HealthReport struct {
	Healthy   []route.Kind `json:"healthy"`
	Unhealthy []route.Kind `json:"unhealthy"`
}

// EntryInfo is a metadata snapshot of one cached entry, for introspection.
type EntryInfo struct {
	Kind       route.Kind `json:"kind"`
	CreatedAt  time.Time  `json:"created_at"`
	LastUsedAt time.Time  `json:"last_used_at"`
	UsageCount int64      `json:"usage_count"`
	Status     Status     `json:"status"`
}

// Cache is the handler instance pool.
type Cache struct {
	factory handler.Factory

	mu      sync.RWMutex
	entries map[route.Kind]*entry

	// buildMu serializes construction per kind only; populated up front for
	// every routable kind so the map itself never needs locking.
	buildMu map[route.Kind]*sync.Mutex

	hits   atomic.Int64
	misses atomic.Int64
}

// New creates an empty cache backed by the factory.
func New(factory handler.Factory) *Cache {
	buildMu := make(map[route.Kind]*sync.Mutex, len(route.AllKinds()))
	for _, kind := range route.AllKinds() {
		buildMu[kind] = &sync.Mutex{}
	}
	return &Cache{
		factory: factory,
		entries: make(map[route.Kind]*entry),
		buildMu: buildMu,
	}
}

// Acquire returns the cached instance for kind, creating it on first use.
// A factory failure is returned as handler.ErrUnavailable and nothing is
// cached, so the next Acquire retries construction.
func (c *Cache) Acquire(ctx context.Context, kind route.Kind) (handler.Handler, error) {
	_, span := tracer.Start(ctx, "cache.acquire",
		trace.WithAttributes(attribute.String("handler.kind", string(kind))))
	defer span.End()

	buildMu, ok := c.buildMu[kind]
	if !ok {
		return nil, fmt.Errorf("%w: unknown kind %q", handler.ErrUnavailable, kind)
	}

	// Hot path: read lock plus atomic stat touch.
	c.mu.RLock()
	e, found := c.entries[kind]
	c.mu.RUnlock()
	if found {
		e.touch(time.Now())
		c.hits.Add(1)
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return e.h, nil
	}

	c.misses.Add(1)
	span.SetAttributes(attribute.Bool("cache.hit", false))

	// Slow path: per-kind construction lock, then re-check in case another
	// goroutine built the entry while we waited.
	buildMu.Lock()
	defer buildMu.Unlock()

	c.mu.RLock()
	e, found = c.entries[kind]
	c.mu.RUnlock()
	if found {
		e.touch(time.Now())
		return e.h, nil
	}

	h, err := c.factory(kind)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("%w: %s: %v", handler.ErrUnavailable, kind, err)
	}

	now := time.Now()
	e = &entry{kind: kind, h: h, createdAt: now, status: StatusActive}
	e.touch(now)

	c.mu.Lock()
	c.entries[kind] = e
	c.mu.Unlock()

	return h, nil
}

// Invalidate removes a cached entry. The next Acquire recreates it.
func (c *Cache) Invalidate(kind route.Kind) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[kind]; !ok {
		return false
	}
	delete(c.entries, kind)
	return true
}

// EvictIdle removes entries whose last use is older than threshold and
// returns how many were removed. threshold <= 0 flushes the whole pool.
func (c *Cache) EvictIdle(threshold time.Duration) int {
	cutoff := time.Now().Add(-threshold)

	c.mu.Lock()
	defer c.mu.Unlock()

	evicted := 0
	for kind, e := range c.entries {
		if time.Unix(0, e.lastUsed.Load()).Before(cutoff) || threshold <= 0 {
			delete(c.entries, kind)
			evicted++
		}
	}
	return evicted
}

// HealthCheck probes every cached instance and updates its status. Probes
// run outside the map lock so a slow backend cannot stall Acquire; a failed
// probe marks the entry unhealthy but never evicts it (eviction stays
// idle-time-driven to avoid thrash on transient backend errors).
func (c *Cache) HealthCheck(ctx context.Context) HealthReport {
	ctx, span := tracer.Start(ctx, "cache.health_check")
	defer span.End()

	c.mu.RLock()
	snapshot := make([]*entry, 0, len(c.entries))
	for _, e := range c.entries {
		snapshot = append(snapshot, e)
	}
	c.mu.RUnlock()

	var report HealthReport
	for _, e := range snapshot {
		if err := e.h.Healthy(ctx); err != nil {
			e.setStatus(StatusUnhealthy)
			report.Unhealthy = append(report.Unhealthy, e.kind)
			continue
		}
		e.setStatus(StatusActive)
		report.Healthy = append(report.Healthy, e.kind)
	}

	span.SetAttributes(
		attribute.Int("cache.healthy", len(report.Healthy)),
		attribute.Int("cache.unhealthy", len(report.Unhealthy)),
	)
	return report
}

// Stats returns the hit/miss counters and current pool size.
func (c *Cache) Stats() Stats {
	hits := c.hits.Load()
	misses := c.misses.Load()
	total := hits + misses

	c.mu.RLock()
	count := len(c.entries)
	c.mu.RUnlock()

	s := Stats{Hits: hits, Misses: misses, TotalRequests: total, CachedCount: count}
	if total > 0 {
		s.HitRate = float64(hits) / float64(total)
	}
	return s
}

// Entries returns a metadata snapshot of the pool for introspection
// endpoints. The snapshot is a copy; mutating it has no effect.
func (c *Cache) Entries() []EntryInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()

	infos := make([]EntryInfo, 0, len(c.entries))
	for _, e := range c.entries {
		infos = append(infos, EntryInfo{
			Kind:       e.kind,
			CreatedAt:  e.createdAt,
			LastUsedAt: time.Unix(0, e.lastUsed.Load()),
			UsageCount: e.uses.Load(),
			Status:     e.getStatus(),
		})
	}
	return infos
}
