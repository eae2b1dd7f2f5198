package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"pontopology/internal/classify"
	"pontopology/internal/collectors"
	"pontopology/internal/inventory"
	"pontopology/internal/metrics"
	"pontopology/internal/snapshot"
	"pontopology/internal/topology"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// flakySource wraps a Static source and fails or stalls one collection.
type flakySource struct {
	*collectors.Static
	failONUs atomic.Bool
	stall    chan struct{}
	calls    atomic.Int32
}

func (s *flakySource) FetchONUs(ctx context.Context) ([]inventory.OnuRecord, error) {
	s.calls.Add(1)
	if s.stall != nil {
		select {
		case <-s.stall:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.failONUs.Load() {
		return nil, collectors.ErrUnavailable
	}
	return s.Static.FetchONUs(ctx)
}

func scenario() inventory.Collections {
	oltID := int64(1)
	odpID := int64(1)
	return inventory.Collections{
		OLTs: []inventory.OltRecord{{ID: 1, Name: "OLT-1", IPAddress: "10.0.0.1", Status: "online"}},
		ODPs: []inventory.OdpRecord{{ID: 1, Name: "ODP-1", SplitterRatio: "1:8", TotalPorts: 8, UsedPorts: 4, Status: "active", FeedingOltID: &oltID}},
		ONUs: []inventory.OnuRecord{
			{ID: 1, Serial: "SN1", Status: "online", OdpID: &odpID, RxPower: inventory.Ptr(-20.0)},
			{ID: 2, Serial: "SN2", Status: "offline", OdpID: &odpID, RxPower: inventory.Ptr(-30.0)},
		},
	}
}

func newRefresher(src collectors.Source) *Refresher {
	r := New(src, snapshot.NewCache(), topology.DefaultOptions(), nil)
	r.Metrics = metrics.NewRegistry()
	return r
}

func TestRefreshBuildsThenReuses(t *testing.T) {
	r := newRefresher(collectors.NewStatic(scenario()))

	first, err := r.Refresh(context.Background())
	require.NoError(t, err)
	assert.True(t, first.Built)
	assert.Len(t, first.Snapshot.Nodes, 4)
	assert.Len(t, first.Snapshot.Edges, 3)
	assert.Empty(t, first.Snapshot.Report.Skipped)

	second, err := r.Refresh(context.Background())
	require.NoError(t, err)
	assert.False(t, second.Built)
	assert.Equal(t, first.Snapshot.Generation, second.Snapshot.Generation)

	in, ok := r.Inputs()
	require.True(t, ok)
	assert.Len(t, in.ONUs, 2)

	assert.Equal(t, 1.0, testutil.ToFloat64(r.Metrics.RefreshTotal.WithLabelValues(ResultBuilt)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.Metrics.RefreshTotal.WithLabelValues(ResultCached)))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.Metrics.SnapshotNodes.WithLabelValues("onu")))
}

func TestRefreshRebuildsOnChange(t *testing.T) {
	static := collectors.NewStatic(scenario())
	r := newRefresher(static)

	first, err := r.Refresh(context.Background())
	require.NoError(t, err)

	c := scenario()
	c.ONUs[1].Status = "online"
	static.Replace(c)

	second, err := r.Refresh(context.Background())
	require.NoError(t, err)
	assert.True(t, second.Built)
	assert.NotEqual(t, first.Snapshot.Generation, second.Snapshot.Generation)
}

func TestRefreshAfterInvalidate(t *testing.T) {
	r := newRefresher(collectors.NewStatic(scenario()))
	_, err := r.Refresh(context.Background())
	require.NoError(t, err)

	r.Invalidate()
	res, err := r.Refresh(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Built)
	assert.Equal(t, int64(2), r.Cache.Stats().Builds)
	assert.Equal(t, 1.0, testutil.ToFloat64(r.Metrics.CacheInvalidations))
}

func TestFetchFailureKeepsPreviousSnapshot(t *testing.T) {
	src := &flakySource{Static: collectors.NewStatic(scenario())}
	r := newRefresher(src)

	good, err := r.Refresh(context.Background())
	require.NoError(t, err)

	src.failONUs.Store(true)
	_, err = r.Refresh(context.Background())
	require.Error(t, err)

	var fe *InputFetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, collectors.CollectionONUs, fe.Collection)
	assert.ErrorIs(t, err, collectors.ErrUnavailable)

	cur, ok := r.Cache.Current()
	require.True(t, ok)
	assert.Equal(t, good.Snapshot.Generation, cur.Generation)
	assert.Equal(t, 1.0, testutil.ToFloat64(r.Metrics.FetchErrorsTotal.WithLabelValues(collectors.CollectionONUs)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.Metrics.RefreshTotal.WithLabelValues(ResultFetchError)))
}

func TestFetchTimeoutAbortsRefresh(t *testing.T) {
	src := &flakySource{Static: collectors.NewStatic(scenario()), stall: make(chan struct{})}
	defer close(src.stall)
	r := newRefresher(src)
	r.FetchTimeout = 20 * time.Millisecond

	_, err := r.Refresh(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	_, ok := r.Cache.Current()
	assert.False(t, ok)
	assert.Equal(t, int64(0), r.Cache.Stats().Builds)
}

func TestConcurrentRefreshesAssembleOnce(t *testing.T) {
	r := newRefresher(collectors.NewStatic(scenario()))

	var wg sync.WaitGroup
	gens := make([]string, 8)
	for i := range gens {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := r.Refresh(context.Background())
			if err != nil {
				t.Error(err)
				return
			}
			gens[i] = res.Snapshot.Generation
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int64(1), r.Cache.Stats().Builds)
	for _, g := range gens {
		assert.Equal(t, gens[0], g)
	}
}

func TestNotifyOncePerGeneration(t *testing.T) {
	static := collectors.NewStatic(scenario())
	r := newRefresher(static)
	var seen []string
	r.Notify = func(res Result) { seen = append(seen, res.Snapshot.Generation) }

	for range 3 {
		_, err := r.Refresh(context.Background())
		require.NoError(t, err)
	}
	require.Len(t, seen, 1)

	r.Invalidate()
	_, err := r.Refresh(context.Background())
	require.NoError(t, err)
	assert.Len(t, seen, 2)
}

func TestEmptySourceGivesEmptySnapshot(t *testing.T) {
	r := newRefresher(collectors.NewStatic(inventory.Collections{}))
	res, err := r.Refresh(context.Background())
	require.NoError(t, err)
	assert.Empty(t, res.Snapshot.Nodes)
	assert.Empty(t, res.Snapshot.Edges)
	assert.NotEmpty(t, res.Snapshot.Generation)
}

// gatedSource reports OLT status as it is when FetchOLTs is called and holds
// the first answer until release is closed.
type gatedSource struct {
	*collectors.Static
	status  atomic.Value
	calls   atomic.Int32
	entered chan struct{}
	release chan struct{}
}

func (s *gatedSource) FetchOLTs(ctx context.Context) ([]inventory.OltRecord, error) {
	olts, err := s.Static.FetchOLTs(ctx)
	if err != nil {
		return nil, err
	}
	status := s.status.Load().(string)
	for i := range olts {
		olts[i].Status = status
	}
	if s.calls.Add(1) == 1 {
		close(s.entered)
		select {
		case <-s.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return olts, nil
}

func TestRefreshesDoNotInterleave(t *testing.T) {
	src := &gatedSource{
		Static:  collectors.NewStatic(scenario()),
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	src.status.Store("offline")
	r := newRefresher(src)

	type outcome struct {
		res Result
		err error
	}
	older := make(chan outcome, 1)
	go func() {
		res, err := r.Refresh(context.Background())
		older <- outcome{res, err}
	}()
	<-src.entered

	src.status.Store("online")
	newer := make(chan outcome, 1)
	go func() {
		res, err := r.Refresh(context.Background())
		newer <- outcome{res, err}
	}()

	select {
	case <-newer:
		t.Fatal("second refresh ran while the first was still fetching")
	case <-time.After(50 * time.Millisecond):
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.Refresh(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	close(src.release)
	first := <-older
	require.NoError(t, first.err)
	second := <-newer
	require.NoError(t, second.err)

	olt, ok := first.res.Snapshot.NodeByKey("olt-1")
	require.True(t, ok)
	assert.Equal(t, classify.Negative, olt.Style.Category)

	cur, ok := r.Cache.Current()
	require.True(t, ok)
	assert.Equal(t, second.res.Snapshot.Generation, cur.Generation)
	olt, ok = cur.NodeByKey("olt-1")
	require.True(t, ok)
	assert.Equal(t, classify.Positive, olt.Style.Category)

	in, ok := r.Inputs()
	require.True(t, ok)
	assert.Equal(t, "online", in.OLTs[0].Status)
}

func TestEmptySourceIsLogged(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	r := New(collectors.NewStatic(inventory.Collections{}), snapshot.NewCache(), topology.DefaultOptions(), zap.New(core))

	res, err := r.Refresh(context.Background())
	require.NoError(t, err)
	assert.Empty(t, res.Snapshot.Nodes)
	assert.Equal(t, 1, logs.FilterMessage("data source returned no entities").Len())

	_, err = New(collectors.NewStatic(scenario()), snapshot.NewCache(), topology.DefaultOptions(), zap.New(core)).Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, logs.FilterMessage("data source returned no entities").Len())
}
