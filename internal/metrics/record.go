package metrics

import (
	"time"

	"pontopology/internal/graph"
)

// RecordHTTPRequest records an HTTP request with its duration
func (r *Registry) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	r.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	r.HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// RecordFetch records one collection read.
func (r *Registry) RecordFetch(collection string, duration time.Duration, err error) {
	r.FetchDuration.WithLabelValues(collection).Observe(duration.Seconds())
	if err != nil {
		r.FetchErrorsTotal.WithLabelValues(collection).Inc()
	}
}

// RecordRefresh records the outcome of a refresh.
func (r *Registry) RecordRefresh(result string, duration time.Duration) {
	r.RefreshTotal.WithLabelValues(result).Inc()
	r.RefreshDuration.Observe(duration.Seconds())
	switch result {
	case "built":
		r.CacheBuildsTotal.Inc()
	case "cached":
		r.CacheHitsTotal.Inc()
	}
}

func (r *Registry) RecordTrigger(reason string, coalesced bool) {
	r.RefreshTriggers.WithLabelValues(reason).Inc()
	if coalesced {
		r.RefreshesCoalesced.Inc()
	}
}

func (r *Registry) RecordInvalidation() {
	r.CacheInvalidations.Inc()
}

// UpdateSnapshot sets the gauges describing the current snapshot.
func (r *Registry) UpdateSnapshot(s graph.Snapshot) {
	r.SnapshotNodes.Reset()
	for _, n := range s.Nodes {
		r.SnapshotNodes.WithLabelValues(string(n.Kind)).Inc()
	}
	r.SnapshotEdges.Reset()
	for _, e := range s.Edges {
		r.SnapshotEdges.WithLabelValues(e.Style.Class).Inc()
	}
	r.SkippedRecords.Reset()
	for _, sk := range s.Report.Skipped {
		r.SkippedRecords.WithLabelValues(sk.Kind).Inc()
	}
	r.RelationMisses.Set(float64(len(s.Report.Misses)))
	r.TruncatedOnus.Set(float64(s.Report.Truncated))
	if !s.BuiltAt.IsZero() {
		r.SnapshotBuiltAt.Set(float64(s.BuiltAt.Unix()))
	}
}
