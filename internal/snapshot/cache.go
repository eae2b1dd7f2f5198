// Package snapshot holds the most recently assembled topology and decides
// whether a refresh needs a rebuild.
package snapshot

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"pontopology/internal/graph"
)

// BuildFunc assembles a snapshot. Generation, BuiltAt and Fingerprint are
// stamped by the cache.
type BuildFunc func() (graph.Snapshot, error)

type Stats struct {
	Builds      int64  `json:"builds"`
	Hits        int64  `json:"hits"`
	Failures    int64  `json:"failures"`
	Fingerprint uint64 `json:"fingerprint"`
	Generation  string `json:"generation"`
	Valid       bool   `json:"valid"`
}

// Cache keeps one snapshot. At most one build runs at a time; concurrent
// callers wait for and share the running build. A failed build leaves the
// previous snapshot in place.
type Cache struct {
	mu          sync.Mutex
	fingerprint uint64
	valid       bool
	epoch       uint64

	current atomic.Pointer[graph.Snapshot]
	group   singleflight.Group

	builds   atomic.Int64
	hits     atomic.Int64
	failures atomic.Int64

	now func() time.Time
	log *zap.Logger
}

type Option func(*Cache)

func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Cache) { c.log = l.Named("snapshot_cache") }
}

func NewCache(opts ...Option) *Cache {
	c := &Cache{now: time.Now, log: zap.NewNop()}
	for _, o := range opts {
		o(c)
	}
	return c
}

// lookup returns the cached snapshot when it is valid for fp.
func (c *Cache) lookup(fp uint64) (graph.Snapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cur := c.current.Load()
	if !c.valid || cur == nil || c.fingerprint != fp {
		return graph.Snapshot{}, false
	}
	return *cur, true
}

// GetOrBuild returns the cached snapshot when fp matches the last build and
// no invalidation happened since. Otherwise it runs build once and swaps the
// result in. A caller that joins a build for another fingerprint retries
// with its own once that build settles.
func (c *Cache) GetOrBuild(ctx context.Context, fp uint64, build BuildFunc) (graph.Snapshot, error) {
	for {
		if snap, ok := c.lookup(fp); ok {
			c.hits.Add(1)
			c.log.Debug("snapshot cache hit", zap.Uint64("fingerprint", fp))
			return snap, nil
		}

		ch := c.group.DoChan("build", func() (any, error) {
			return c.build(fp, build)
		})

		select {
		case <-ctx.Done():
			return graph.Snapshot{}, ctx.Err()
		case res := <-ch:
			if res.Err != nil {
				return graph.Snapshot{}, res.Err
			}
			snap := res.Val.(graph.Snapshot)
			if snap.Fingerprint == fp {
				return snap, nil
			}
		}
	}
}

func (c *Cache) build(fp uint64, build BuildFunc) (graph.Snapshot, error) {
	// A build that finished between lookup and DoChan already covers fp.
	if snap, ok := c.lookup(fp); ok {
		return snap, nil
	}

	c.mu.Lock()
	epoch := c.epoch
	c.mu.Unlock()

	started := c.now()
	snap, err := build()
	if err != nil {
		c.failures.Add(1)
		c.log.Error("snapshot build failed, keeping previous snapshot",
			zap.Uint64("fingerprint", fp), zap.Error(err))
		return graph.Snapshot{}, err
	}
	snap.Generation = uuid.NewString()
	snap.BuiltAt = c.now()
	snap.Fingerprint = fp

	c.mu.Lock()
	c.current.Store(&snap)
	c.fingerprint = fp
	// An invalidation that raced the build forces the next call to rebuild.
	c.valid = epoch == c.epoch
	c.mu.Unlock()

	c.builds.Add(1)
	c.log.Info("snapshot built",
		zap.String("generation", snap.Generation),
		zap.Uint64("fingerprint", fp),
		zap.Int("nodes", len(snap.Nodes)),
		zap.Int("edges", len(snap.Edges)),
		zap.Int("skipped", len(snap.Report.Skipped)),
		zap.Duration("took", snap.BuiltAt.Sub(started)))
	return snap, nil
}

// Invalidate forces the next GetOrBuild to rebuild regardless of fingerprint.
// The current snapshot stays readable through Current.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.valid = false
	c.epoch++
	c.mu.Unlock()
	c.log.Debug("snapshot cache invalidated")
}

// Current returns the last successfully built snapshot, if any.
func (c *Cache) Current() (graph.Snapshot, bool) {
	cur := c.current.Load()
	if cur == nil {
		return graph.Snapshot{}, false
	}
	return *cur, true
}

func (c *Cache) Stats() Stats {
	c.mu.Lock()
	s := Stats{Fingerprint: c.fingerprint, Valid: c.valid}
	c.mu.Unlock()
	if cur := c.current.Load(); cur != nil {
		s.Generation = cur.Generation
	}
	s.Builds = c.builds.Load()
	s.Hits = c.hits.Load()
	s.Failures = c.failures.Load()
	return s
}
