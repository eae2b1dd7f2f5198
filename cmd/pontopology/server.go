package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"pontopology/internal/auth"
	"pontopology/internal/collectors/restapi"
	"pontopology/internal/graph"
	"pontopology/internal/inventory"
	"pontopology/internal/pipeline"
	"pontopology/internal/scheduler"
	"pontopology/internal/tables"
)

type server struct {
	app  *app
	gate auth.Gate
	// sched is nil when nothing drives periodic refreshes.
	sched   *scheduler.Scheduler
	limiter *rate.Limiter
	hub     *hub
	log     *zap.Logger
	now     func() time.Time
}

func newServer(a *app, gate auth.Gate, sched *scheduler.Scheduler, log *zap.Logger) *server {
	s := &server{
		app:   a,
		gate:  gate,
		sched: sched,
		log:   log.Named("http"),
		now:   time.Now,
	}
	if rc := a.cfg.Server; rc.RefreshRate > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(rc.RefreshRate), max(1, rc.RefreshBurst))
	}
	if a.cfg.Server.WebSocket {
		s.hub = newHub(log)
	}
	return s
}

// onSnapshot receives every new snapshot generation from the refresher.
func (s *server) onSnapshot(res pipeline.Result) {
	if s.app.cfg.Workdir.ArchiveSnapshots {
		s.app.archive(res, s.now())
	}
	if s.hub == nil {
		return
	}
	msg, err := json.Marshal(PushMessage{Type: msgTopology, Topology: convertToPayload(res.Snapshot)})
	if err != nil {
		s.log.Error("push encode failed", zap.Error(err))
		return
	}
	s.hub.broadcast(msg)
}

func (s *server) Handler() http.Handler {
	mux := http.NewServeMux()

	s.api(mux, "GET /api/topology", s.handleTopology)
	s.api(mux, "GET /api/topology/raw", s.handleTopologyRaw)
	s.api(mux, "POST /api/topology/refresh", s.handleRefresh)
	s.api(mux, "POST /api/topology/invalidate", s.handleInvalidate)
	if s.hub != nil {
		s.api(mux, "GET /api/topology/ws", s.handleWS)
	}

	s.api(mux, "GET /api/olts", s.handleTable(tables.KindOLTs))
	s.api(mux, "GET /api/odps", s.handleTable(tables.KindODPs))
	s.api(mux, "GET /api/onus", s.handleTable(tables.KindONUs))
	s.api(mux, "GET /api/dashboard/stats", s.handleStats)
	s.api(mux, "GET /api/dashboard/alerts", s.handleAlerts)

	s.api(mux, "GET /api/workdir", s.handleGetWorkdir)
	s.api(mux, "POST /api/workdir", s.handleSetWorkdir)
	s.api(mux, "GET /api/project", s.handleProject)

	mux.Handle("GET /metrics", s.app.metrics.Handler())
	mux.HandleFunc("GET /healthz", s.handleHealth)
	return s.instrument(mux)
}

// api registers an /api route behind the auth gate.
func (s *server) api(mux *http.ServeMux, pattern string, h http.HandlerFunc) {
	mux.Handle(pattern, auth.Middleware(s.gate, s.log, s.app.metrics.AuthFailuresTotal.Inc)(h))
}

// GET /api/topology - render payload of the current snapshot
func (s *server) handleTopology(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.snapshot(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, convertToPayload(snap))
}

// GET /api/topology/raw - the snapshot as assembled
func (s *server) handleTopologyRaw(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.snapshot(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// POST /api/topology/refresh - refresh now and report what happened
func (s *server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if s.limiter != nil && !s.limiter.Allow() {
		w.Header().Set("Retry-After", "1")
		writeJSON(w, http.StatusTooManyRequests, ErrorResponse{Detail: "refresh rate exceeded"})
		return
	}
	s.app.metrics.RecordTrigger(scheduler.ReasonManual, false)
	res, err := s.app.refresher.Refresh(r.Context())
	if err != nil {
		s.writeRefreshError(w, err)
		return
	}
	status := pipeline.ResultCached
	if res.Built {
		status = pipeline.ResultBuilt
	}
	rep := res.Snapshot.Report
	writeJSON(w, http.StatusOK, RefreshResponse{
		Status:     status,
		Generation: res.Snapshot.Generation,
		Nodes:      len(res.Snapshot.Nodes),
		Edges:      len(res.Snapshot.Edges),
		Skipped:    len(rep.Skipped),
		Misses:     len(rep.Misses),
		Truncated:  rep.Truncated,
	})
}

// POST /api/topology/invalidate - entities changed, rebuild on the next run
func (s *server) handleInvalidate(w http.ResponseWriter, r *http.Request) {
	if s.sched != nil {
		s.sched.InvalidateAndTrigger()
	} else {
		s.app.refresher.Invalidate()
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "invalidated"})
}

// GET /api/topology/ws - push channel, starts with the current snapshot
func (s *server) handleWS(w http.ResponseWriter, r *http.Request) {
	var initial []byte
	if snap, ok := s.app.cache.Current(); ok {
		b, err := json.Marshal(PushMessage{Type: msgTopology, Topology: convertToPayload(snap)})
		if err == nil {
			initial = b
		}
	}
	s.hub.serve(w, r, initial)
}

// GET /api/olts, /api/odps, /api/onus - classified rows
func (s *server) handleTable(kind string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := s.inputs(w, r)
		if !ok {
			return
		}
		rows, err := tables.Rows(kind, c)
		if err != nil {
			writeJSON(w, http.StatusNotFound, ErrorResponse{Detail: err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, rows)
	}
}

func (s *server) handleStats(w http.ResponseWriter, r *http.Request) {
	c, ok := s.inputs(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, tables.DashboardStats(c))
}

func (s *server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	c, ok := s.inputs(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, tables.Alerts(c))
}

// GET /api/workdir
func (s *server) handleGetWorkdir(w http.ResponseWriter, r *http.Request) {
	if !s.hasWorkdir(w) {
		return
	}
	writeJSON(w, http.StatusOK, WorkdirResponse{Path: s.app.workdir.Path()})
}

// POST /api/workdir - change the archive location
func (s *server) handleSetWorkdir(w http.ResponseWriter, r *http.Request) {
	if !s.hasWorkdir(w) {
		return
	}
	defer r.Body.Close()
	var body WorkdirRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || strings.TrimSpace(body.Path) == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Detail: "invalid JSON/path"})
		return
	}
	if err := s.app.workdir.SetPath(body.Path); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Detail: err.Error()})
		return
	}
	if err := s.app.workdir.EnsureStructure(); err != nil {
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Detail: err.Error()})
		return
	}
	s.log.Info("workdir changed", zap.String("path", s.app.workdir.Path()))
	writeJSON(w, http.StatusOK, WorkdirResponse{Path: s.app.workdir.Path()})
}

// GET /api/project - inventory history accumulated across archived snapshots
func (s *server) handleProject(w http.ResponseWriter, r *http.Request) {
	if !s.hasWorkdir(w) {
		return
	}
	p, err := s.app.workdir.LoadProject()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Detail: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "starting", Cache: s.app.cache.Stats()}
	if snap, ok := s.app.cache.Current(); ok {
		resp.Status = "ok"
		resp.Generation = snap.Generation
		builtAt := snap.BuiltAt
		resp.BuiltAt = &builtAt
	}
	writeJSON(w, http.StatusOK, resp)
}

// snapshot returns the cached snapshot, refreshing first when none was
// built yet. On failure the error response is already written.
func (s *server) snapshot(w http.ResponseWriter, r *http.Request) (graph.Snapshot, bool) {
	if snap, ok := s.app.cache.Current(); ok {
		return snap, true
	}
	res, err := s.app.refresher.Refresh(r.Context())
	if err != nil {
		s.writeRefreshError(w, err)
		return graph.Snapshot{}, false
	}
	return res.Snapshot, true
}

// inputs returns the collections of the last refresh, refreshing first when
// there was none.
func (s *server) inputs(w http.ResponseWriter, r *http.Request) (inventory.Collections, bool) {
	if c, ok := s.app.refresher.Inputs(); ok {
		return c, true
	}
	res, err := s.app.refresher.Refresh(r.Context())
	if err != nil {
		s.writeRefreshError(w, err)
		return inventory.Collections{}, false
	}
	return res.Collections, true
}

func (s *server) hasWorkdir(w http.ResponseWriter) bool {
	if s.app.workdir == nil {
		writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{Detail: "workdir not configured"})
		return false
	}
	return true
}

// writeRefreshError maps refresh failures: an unreachable or rejecting
// source is a bad gateway, a fetch timeout a gateway timeout.
func (s *server) writeRefreshError(w http.ResponseWriter, err error) {
	var fe *pipeline.InputFetchError
	switch {
	case errors.As(err, &fe) && errors.Is(err, context.DeadlineExceeded):
		writeJSON(w, http.StatusGatewayTimeout, ErrorResponse{Detail: err.Error(), Collection: fe.Collection})
	case errors.As(err, &fe) && errors.Is(err, restapi.ErrUnauthorized):
		writeJSON(w, http.StatusBadGateway, ErrorResponse{Detail: "data source rejected the session", Collection: fe.Collection})
	case errors.As(err, &fe):
		writeJSON(w, http.StatusBadGateway, ErrorResponse{Detail: err.Error(), Collection: fe.Collection})
	case errors.Is(err, context.Canceled):
		// client went away
	default:
		s.log.Error("refresh failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Detail: "snapshot build failed"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

// instrument records request metrics labelled by route pattern.
func (s *server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		path := "unmatched"
		if _, p, ok := strings.Cut(r.Pattern, " "); ok {
			path = p
		} else if r.Pattern != "" {
			path = r.Pattern
		}
		s.app.metrics.RecordHTTPRequest(r.Method, path, strconv.Itoa(rec.status), time.Since(started))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (r *statusRecorder) WriteHeader(code int) {
	if !r.wroteHeader {
		r.status = code
		r.wroteHeader = true
	}
	r.ResponseWriter.WriteHeader(code)
}

// Hijack lets the websocket upgrade through the recorder.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	r.status = http.StatusSwitchingProtocols
	return http.NewResponseController(r.ResponseWriter).Hijack()
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}
