package snmp

import (
	"context"
	"slices"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"pontopology/internal/collectors"
	"pontopology/internal/inventory"
)

// StatusProbe wraps a Source and sets each fetched OLT online or offline
// depending on whether it answers a sysDescr GET. Probe failures mark the OLT
// offline and never fail the fetch. The other collections pass through.
type StatusProbe struct {
	collectors.Source

	Querier     Querier
	Defaults    Credentials
	Concurrency int
	Log         *zap.Logger
}

func NewStatusProbe(src collectors.Source, q Querier, defaults Credentials, log *zap.Logger) *StatusProbe {
	if log == nil {
		log = zap.NewNop()
	}
	return &StatusProbe{
		Source:      src,
		Querier:     q,
		Defaults:    defaults,
		Concurrency: 8,
		Log:         log.Named("snmp_probe"),
	}
}

func (p *StatusProbe) FetchOLTs(ctx context.Context) ([]inventory.OltRecord, error) {
	olts, err := p.Source.FetchOLTs(ctx)
	if err != nil {
		return nil, err
	}
	out := slices.Clone(olts)

	g, gctx := errgroup.WithContext(ctx)
	if p.Concurrency > 0 {
		g.SetLimit(p.Concurrency)
	}
	for i := range out {
		target, ok := TargetFor(out[i], p.Defaults)
		if !ok {
			continue
		}
		g.Go(func() error {
			descr, err := p.Querier.SysDescr(gctx, target)
			if gctx.Err() != nil {
				// cancelled refresh: keep the stored status
				return nil
			}
			if err != nil {
				p.Log.Debug("olt unreachable",
					zap.Int64("olt_id", out[i].ID),
					zap.String("target", target.Address),
					zap.Error(err))
				out[i].Status = inventory.StatusOffline
				return nil
			}
			out[i].Status = inventory.StatusOnline
			if out[i].Vendor == "" {
				out[i].Vendor = guessVendor(descr)
			}
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func guessVendor(sysDescr string) string {
	l := strings.ToLower(sysDescr)
	switch {
	case strings.Contains(l, "zte"), strings.Contains(l, "zxa10"):
		return "ZTE"
	case strings.Contains(l, "huawei"):
		return "Huawei"
	case strings.Contains(l, "fiberhome"):
		return "FiberHome"
	case strings.Contains(l, "nokia"), strings.Contains(l, "alcatel"):
		return "Nokia"
	default:
		return ""
	}
}
