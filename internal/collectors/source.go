// Package collectors defines the read-only data source the refresh pipeline
// pulls entity collections from, plus a static in-memory implementation.
package collectors

import (
	"context"
	"errors"

	"pontopology/internal/inventory"
)

// Source returns the four entity collections in a stable order. Each call is
// an independent read; implementations must be safe for concurrent use.
type Source interface {
	FetchOLTs(ctx context.Context) ([]inventory.OltRecord, error)
	FetchODPs(ctx context.Context) ([]inventory.OdpRecord, error)
	FetchONUs(ctx context.Context) ([]inventory.OnuRecord, error)
	FetchCableRoutes(ctx context.Context) ([]inventory.CableRouteRecord, error)
}

// ErrUnavailable is returned by sources that cannot reach their backend.
var ErrUnavailable = errors.New("data source unavailable")

// Names of the four collections, used in errors, logs and metric labels.
const (
	CollectionOLTs        = "olts"
	CollectionODPs        = "odps"
	CollectionONUs        = "onus"
	CollectionCableRoutes = "cable_routes"
)
