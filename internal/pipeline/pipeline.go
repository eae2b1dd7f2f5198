// Package pipeline runs one refresh cycle: fetch the four entity collections
// concurrently, fingerprint them and hand them to the snapshot cache, which
// assembles a new topology only when the inputs changed.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"pontopology/internal/collectors"
	"pontopology/internal/graph"
	"pontopology/internal/index"
	"pontopology/internal/inventory"
	"pontopology/internal/metrics"
	"pontopology/internal/snapshot"
	"pontopology/internal/topology"
)

// InputFetchError reports that a collection could not be read. The snapshot
// cache is left untouched when a refresh fails this way.
type InputFetchError struct {
	Collection string
	Err        error
}

func (e *InputFetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Collection, e.Err)
}

func (e *InputFetchError) Unwrap() error { return e.Err }

// Refresh outcomes, also used as metric labels.
const (
	ResultBuilt      = "built"
	ResultCached     = "cached"
	ResultFetchError = "fetch_error"
	ResultBuildError = "build_error"
)

// Result is the outcome of a successful refresh.
type Result struct {
	Snapshot    graph.Snapshot
	Collections inventory.Collections
	// Built is true when this call assembled the snapshot itself.
	Built bool
}

type Refresher struct {
	Source       collectors.Source
	Cache        *snapshot.Cache
	Policy       index.ParentPolicy
	Options      topology.Options
	FetchTimeout time.Duration
	Metrics      *metrics.Registry
	Log          *zap.Logger

	// Notify, when set, receives every result whose snapshot generation
	// differs from the previous one.
	Notify func(Result)

	// running admits one refresh at a time, so a later fetch is never
	// overwritten by an earlier one.
	running *semaphore.Weighted
	last    atomic.Pointer[Result]
	notifyM sync.Mutex
	lastGen string
}

func New(src collectors.Source, cache *snapshot.Cache, opts topology.Options, log *zap.Logger) *Refresher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Refresher{
		Source:       src,
		Cache:        cache,
		Policy:       index.FirstOLTFallback{},
		Options:      opts,
		FetchTimeout: 10 * time.Second,
		Log:          log.Named("refresher"),
		running:      semaphore.NewWeighted(1),
	}
}

// Refresh fetches all collections and returns the snapshot for them. On a
// fetch failure it returns an *InputFetchError and the cache keeps serving
// the previous snapshot. Calls made while a refresh runs wait for it and then
// fetch again.
func (r *Refresher) Refresh(ctx context.Context) (Result, error) {
	if err := r.running.Acquire(ctx, 1); err != nil {
		return Result{}, fmt.Errorf("wait for running refresh: %w", err)
	}
	defer r.running.Release(1)
	started := time.Now()

	c, err := r.fetch(ctx)
	if err != nil {
		r.record(ResultFetchError, started)
		r.Log.Error("refresh aborted, keeping previous snapshot", zap.Error(err))
		return Result{}, err
	}

	if c.Empty() {
		r.Log.Warn("data source returned no entities")
	}

	fp := snapshot.Fingerprint(c)
	var built atomic.Bool
	snap, err := r.Cache.GetOrBuild(ctx, fp, func() (graph.Snapshot, error) {
		built.Store(true)
		opts := r.Options
		if opts.Logger == nil {
			opts.Logger = r.Log
		}
		return topology.Assemble(index.Build(c, r.Policy), opts), nil
	})
	if err != nil {
		r.record(ResultBuildError, started)
		return Result{}, fmt.Errorf("build snapshot: %w", err)
	}
	res := Result{Snapshot: snap, Collections: c, Built: built.Load()}
	r.last.Store(&res)
	if res.Built {
		r.record(ResultBuilt, started)
	} else {
		r.record(ResultCached, started)
	}
	if r.Metrics != nil {
		r.Metrics.UpdateSnapshot(snap)
	}
	r.notify(res)
	return res, nil
}

// Run refreshes and discards the result; it lets a scheduler drive the
// refresher.
func (r *Refresher) Run(ctx context.Context) error {
	_, err := r.Refresh(ctx)
	return err
}

// Invalidate forces the next refresh to reassemble, e.g. after a mutation of
// the underlying entities.
func (r *Refresher) Invalidate() {
	r.Cache.Invalidate()
	if r.Metrics != nil {
		r.Metrics.RecordInvalidation()
	}
}

// Inputs returns the collections of the last successful refresh, which are
// the inputs of the snapshot it returned.
func (r *Refresher) Inputs() (inventory.Collections, bool) {
	res := r.last.Load()
	if res == nil {
		return inventory.Collections{}, false
	}
	return res.Collections, true
}

// fetch reads the four collections concurrently. Partial results are never
// returned.
func (r *Refresher) fetch(ctx context.Context) (inventory.Collections, error) {
	if r.FetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.FetchTimeout)
		defer cancel()
	}

	var c inventory.Collections
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		c.OLTs, err = timed(r, gctx, collectors.CollectionOLTs, r.Source.FetchOLTs)
		return err
	})
	g.Go(func() (err error) {
		c.ODPs, err = timed(r, gctx, collectors.CollectionODPs, r.Source.FetchODPs)
		return err
	})
	g.Go(func() (err error) {
		c.ONUs, err = timed(r, gctx, collectors.CollectionONUs, r.Source.FetchONUs)
		return err
	})
	g.Go(func() (err error) {
		c.CableRoutes, err = timed(r, gctx, collectors.CollectionCableRoutes, r.Source.FetchCableRoutes)
		return err
	})
	if err := g.Wait(); err != nil {
		return inventory.Collections{}, err
	}
	return c, nil
}

func timed[T any](r *Refresher, ctx context.Context, name string, fetch func(context.Context) ([]T, error)) ([]T, error) {
	started := time.Now()
	out, err := fetch(ctx)
	if err == nil {
		// a source may ignore cancellation; a late answer still fails the cycle
		err = ctx.Err()
	}
	if r.Metrics != nil {
		r.Metrics.RecordFetch(name, time.Since(started), err)
	}
	if err != nil {
		return nil, &InputFetchError{Collection: name, Err: err}
	}
	return out, nil
}

func (r *Refresher) record(result string, started time.Time) {
	if r.Metrics != nil {
		r.Metrics.RecordRefresh(result, time.Since(started))
	}
}

func (r *Refresher) notify(res Result) {
	if r.Notify == nil {
		return
	}
	r.notifyM.Lock()
	defer r.notifyM.Unlock()
	if res.Snapshot.Generation == r.lastGen {
		return
	}
	r.lastGen = res.Snapshot.Generation
	r.Notify(res)
}
