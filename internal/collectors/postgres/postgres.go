package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"pontopology/internal/inventory"
)

// DBPool abstracts pgxpool.Pool so the source can be tested with pgxmock.
type DBPool interface {
	Ping(ctx context.Context) error
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Source reads entity collections from the management database. It only
// issues SELECTs.
type Source struct {
	pool DBPool
	log  *zap.Logger
}

// New creates a source and verifies the connection.
func New(ctx context.Context, pool DBPool, logger *zap.Logger) (*Source, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &Source{
		pool: pool,
		log:  logger.Named("postgres_source"),
	}, nil
}

// Connect opens a pgx pool for dsn. The caller closes the returned pool.
func Connect(ctx context.Context, dsn string, logger *zap.Logger) (*Source, *pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	src, err := New(ctx, pool, logger)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	return src, pool, nil
}

const (
	sqlSelectOLTs = `
        SELECT id, name, ip_address, status, vendor, model, location, latitude, longitude,
               snmp_community, snmp_version, snmp_port
        FROM olts
        WHERE is_active
        ORDER BY id;
    `
	// The feeding OLT is resolved through the PON port and its slot.
	sqlSelectODPs = `
        SELECT o.id, o.name, o.code, o.splitter_ratio, o.total_ports, o.used_ports, o.status,
               o.port_id, s.olt_id, o.latitude, o.longitude
        FROM odps o
        LEFT JOIN ports p ON p.id = o.port_id
        LEFT JOIN slots s ON s.id = p.slot_id
        WHERE o.is_active
        ORDER BY o.id;
    `
	sqlSelectONUs = `
        SELECT id, sn, customer_name, status, odp_id, olt_id, rx_power, tx_power, distance, service_plan
        FROM onus
        WHERE is_active
        ORDER BY id;
    `
	sqlSelectCableRoutes = `
        SELECT id, source_type, source_id, destination_type, destination_id,
               cable_type, fiber_count, cable_length, route_coordinates, status
        FROM cable_routes
        ORDER BY id;
    `
)

func (s *Source) FetchOLTs(ctx context.Context) ([]inventory.OltRecord, error) {
	rows, err := s.pool.Query(ctx, sqlSelectOLTs)
	if err != nil {
		return nil, fmt.Errorf("failed to query olts: %w", err)
	}
	defer rows.Close()

	var out []inventory.OltRecord
	for rows.Next() {
		var (
			r                  inventory.OltRecord
			ip, status, vendor *string
			community, version *string
			lat, lng           *float64
			port               *int
		)
		if err := rows.Scan(&r.ID, &r.Name, &ip, &status, &vendor, &r.Model, &r.Location,
			&lat, &lng, &community, &version, &port); err != nil {
			return nil, fmt.Errorf("failed to scan olt row: %w", err)
		}
		r.IPAddress = inventory.Deref(ip, "")
		r.Status = inventory.Deref(status, inventory.StatusUnknown)
		r.Vendor = inventory.Deref(vendor, "")
		r.Geo = geoPoint(lat, lng)
		r.SNMPCommunity = inventory.Deref(community, "")
		r.SNMPVersion = inventory.Deref(version, "")
		r.SNMPPort = inventory.Deref(port, 0)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during olt row iteration: %w", err)
	}
	return out, nil
}

func (s *Source) FetchODPs(ctx context.Context) ([]inventory.OdpRecord, error) {
	rows, err := s.pool.Query(ctx, sqlSelectODPs)
	if err != nil {
		return nil, fmt.Errorf("failed to query odps: %w", err)
	}
	defer rows.Close()

	var out []inventory.OdpRecord
	for rows.Next() {
		var (
			r             inventory.OdpRecord
			ratio, status *string
			total, used   *int
			lat, lng      *float64
		)
		if err := rows.Scan(&r.ID, &r.Name, &r.Code, &ratio, &total, &used, &status,
			&r.PortID, &r.FeedingOltID, &lat, &lng); err != nil {
			return nil, fmt.Errorf("failed to scan odp row: %w", err)
		}
		r.SplitterRatio = inventory.Deref(ratio, "")
		r.TotalPorts = inventory.Deref(total, 0)
		r.UsedPorts = inventory.Deref(used, 0)
		r.Status = inventory.Deref(status, inventory.StatusActive)
		r.Geo = geoPoint(lat, lng)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during odp row iteration: %w", err)
	}
	return out, nil
}

func (s *Source) FetchONUs(ctx context.Context) ([]inventory.OnuRecord, error) {
	rows, err := s.pool.Query(ctx, sqlSelectONUs)
	if err != nil {
		return nil, fmt.Errorf("failed to query onus: %w", err)
	}
	defer rows.Close()

	var out []inventory.OnuRecord
	for rows.Next() {
		var (
			r      inventory.OnuRecord
			status *string
		)
		if err := rows.Scan(&r.ID, &r.Serial, &r.CustomerName, &status, &r.OdpID, &r.OltID,
			&r.RxPower, &r.TxPower, &r.Distance, &r.ServicePlan); err != nil {
			return nil, fmt.Errorf("failed to scan onu row: %w", err)
		}
		r.Status = inventory.Deref(status, inventory.StatusOffline)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during onu row iteration: %w", err)
	}
	return out, nil
}

func (s *Source) FetchCableRoutes(ctx context.Context) ([]inventory.CableRouteRecord, error) {
	rows, err := s.pool.Query(ctx, sqlSelectCableRoutes)
	if err != nil {
		return nil, fmt.Errorf("failed to query cable routes: %w", err)
	}
	defer rows.Close()

	var out []inventory.CableRouteRecord
	for rows.Next() {
		var (
			r                inventory.CableRouteRecord
			srcKind, dstKind string
			coords           []byte
			status           *string
		)
		if err := rows.Scan(&r.ID, &srcKind, &r.Source.ID, &dstKind, &r.Destination.ID,
			&r.CableType, &r.FiberCount, &r.LengthMeters, &coords, &status); err != nil {
			return nil, fmt.Errorf("failed to scan cable route row: %w", err)
		}
		r.Source.Kind = inventory.EntityKind(srcKind)
		r.Destination.Kind = inventory.EntityKind(dstKind)
		r.Status = inventory.Deref(status, inventory.StatusActive)
		if len(coords) > 0 && string(coords) != "null" {
			if err := json.Unmarshal(coords, &r.Path); err != nil {
				// Bad geometry only loses the hint, the route itself is kept.
				s.log.Warn("ignoring malformed route coordinates",
					zap.Int64("route_id", r.ID), zap.Error(err))
				r.Path = nil
			}
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during cable route row iteration: %w", err)
	}
	return out, nil
}

func geoPoint(lat, lng *float64) *inventory.GeoPoint {
	if lat == nil || lng == nil {
		return nil
	}
	return &inventory.GeoPoint{Lat: *lat, Lng: *lng}
}
