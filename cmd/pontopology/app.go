package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"pontopology/internal/auth"
	"pontopology/internal/collectors"
	"pontopology/internal/collectors/postgres"
	"pontopology/internal/collectors/restapi"
	"pontopology/internal/collectors/snmp"
	"pontopology/internal/config"
	"pontopology/internal/metrics"
	"pontopology/internal/pipeline"
	"pontopology/internal/snapshot"
	"pontopology/internal/storage/workdir"
)

// app holds the components every command shares.
type app struct {
	cfg       *config.Config
	log       *zap.Logger
	metrics   *metrics.Registry
	source    collectors.Source
	cache     *snapshot.Cache
	refresher *pipeline.Refresher
	// workdir is nil when no workdir could be resolved.
	workdir *workdir.Manager
	closers []func()
}

func newApp(ctx context.Context, cfg *config.Config, log *zap.Logger, reg *metrics.Registry) (*app, error) {
	a := &app{cfg: cfg, log: log, metrics: reg}

	src, closer, err := newSource(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	if closer != nil {
		a.closers = append(a.closers, closer)
	}
	a.source = src

	a.cache = snapshot.NewCache(snapshot.WithLogger(log))
	a.refresher = pipeline.New(src, a.cache, cfg.Topology.Options(), log)
	a.refresher.Policy = cfg.Topology.Policy()
	a.refresher.FetchTimeout = cfg.Refresh.FetchTimeout
	a.refresher.Metrics = reg

	wd, err := workdir.NewManager(cfg.Workdir.Path)
	if err != nil {
		log.Warn("workdir unavailable, archiving disabled", zap.Error(err))
	} else {
		wd.Compress = cfg.Workdir.Compress
		a.workdir = wd
	}
	return a, nil
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// archive stores a refresh result in the workdir.
func (a *app) archive(res pipeline.Result, now time.Time) {
	if a.workdir == nil {
		return
	}
	sess, err := a.workdir.Archive(res.Snapshot, res.Collections, now)
	if err != nil {
		a.log.Error("snapshot archive failed", zap.String("generation", res.Snapshot.Generation), zap.Error(err))
		return
	}
	a.log.Info("snapshot archived", zap.String("generation", res.Snapshot.Generation), zap.String("path", sess.Path))
}

// newSource builds the configured data source, decorated with the SNMP
// reachability probe when enabled. The returned closer may be nil.
func newSource(ctx context.Context, cfg *config.Config, log *zap.Logger) (collectors.Source, func(), error) {
	var (
		src    collectors.Source
		closer func()
	)
	switch cfg.Source.Kind {
	case config.SourcePostgres:
		pg, pool, err := postgres.Connect(ctx, cfg.Source.Postgres.DSN, log)
		if err != nil {
			return nil, nil, fmt.Errorf("postgres source: %w", err)
		}
		src, closer = pg, pool.Close
	case config.SourceRESTAPI:
		rc := cfg.Source.RESTAPI
		api, err := restapi.New(rc.BaseURL, restapi.StaticToken(rc.Token), rc.Timeout, log)
		if err != nil {
			return nil, nil, fmt.Errorf("restapi source: %w", err)
		}
		if rc.PageSize > 0 {
			api.PageSize = rc.PageSize
		}
		src = api
	default:
		log.Info("using the built-in sample inventory")
		src = collectors.NewSample()
	}

	if cfg.SNMP.Enabled {
		q := snmp.NewGoSNMP()
		q.Timeout = cfg.SNMP.Timeout
		q.Retries = cfg.SNMP.Retries
		q.Port = cfg.SNMP.Port
		probe := snmp.NewStatusProbe(src, q, snmp.Credentials{
			Version:   cfg.SNMP.Version,
			Community: cfg.SNMP.Community,
		}, log)
		probe.Concurrency = cfg.SNMP.Concurrency
		src = probe
	}
	return src, closer, nil
}

// newGate returns the JWT gate when auth is enabled and AllowAll otherwise.
func newGate(c config.AuthConfig) (auth.Gate, error) {
	if !c.Enabled {
		return auth.AllowAll{}, nil
	}
	g, err := auth.NewJWTGate(c.Secret)
	if err != nil {
		return nil, fmt.Errorf("auth gate: %w", err)
	}
	return g, nil
}
