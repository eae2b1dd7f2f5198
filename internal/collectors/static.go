package collectors

import (
	"context"
	"slices"
	"sync"

	"pontopology/internal/inventory"
)

// Static serves fixed collections from memory. Useful to validate the
// pipeline and API without a database or network access.
type Static struct {
	mu sync.RWMutex
	c  inventory.Collections
}

func NewStatic(c inventory.Collections) *Static {
	return &Static{c: c}
}

// NewSample returns a Static source with a small single-OLT deployment.
func NewSample() *Static {
	return NewStatic(SampleCollections())
}

// Replace swaps the served collections, as a CRUD write would.
func (s *Static) Replace(c inventory.Collections) {
	s.mu.Lock()
	s.c = c
	s.mu.Unlock()
}

func (s *Static) FetchOLTs(ctx context.Context) ([]inventory.OltRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.c.OLTs), nil
}

func (s *Static) FetchODPs(ctx context.Context) ([]inventory.OdpRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.c.ODPs), nil
}

func (s *Static) FetchONUs(ctx context.Context) ([]inventory.OnuRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.c.ONUs), nil
}

func (s *Static) FetchCableRoutes(ctx context.Context) ([]inventory.CableRouteRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.c.CableRoutes), nil
}

// SampleCollections mirrors the seed data of a fresh installation.
func SampleCollections() inventory.Collections {
	return inventory.Collections{
		OLTs: []inventory.OltRecord{
			{
				ID:            1,
				Name:          "OLT-Sample-01",
				IPAddress:     "192.168.1.100",
				Status:        inventory.StatusUnknown,
				Vendor:        "ZTE",
				Model:         inventory.Ptr("C320"),
				Location:      inventory.Ptr("Data Center A"),
				Geo:           &inventory.GeoPoint{Lat: -6.2088, Lng: 106.8456},
				SNMPCommunity: "public",
				SNMPVersion:   "2c",
				SNMPPort:      161,
			},
		},
		ODPs: []inventory.OdpRecord{
			{
				ID:            1,
				Name:          "ODP-001",
				Code:          inventory.Ptr("ODP001"),
				SplitterRatio: "1:8",
				TotalPorts:    8,
				UsedPorts:     2,
				Status:        inventory.StatusActive,
				PortID:        inventory.Ptr[int64](1),
				Geo:           &inventory.GeoPoint{Lat: -6.2088, Lng: 106.8456},
			},
			{
				ID:            2,
				Name:          "ODP-002",
				Code:          inventory.Ptr("ODP002"),
				SplitterRatio: "1:16",
				TotalPorts:    16,
				Status:        inventory.StatusActive,
				Geo:           &inventory.GeoPoint{Lat: -6.1951, Lng: 106.8230},
			},
		},
		ONUs: []inventory.OnuRecord{
			{
				ID:           1,
				Serial:       "ZTEG12345678",
				CustomerName: inventory.Ptr("John Doe"),
				Status:       inventory.StatusOnline,
				OdpID:        inventory.Ptr[int64](1),
				OltID:        inventory.Ptr[int64](1),
				RxPower:      inventory.Ptr(-25.5),
				TxPower:      inventory.Ptr(2.3),
				Distance:     inventory.Ptr(1500),
				ServicePlan:  inventory.Ptr("100 Mbps"),
			},
			{
				ID:           2,
				Serial:       "ZTEG87654321",
				CustomerName: inventory.Ptr("Jane Smith"),
				Status:       inventory.StatusOffline,
				OdpID:        inventory.Ptr[int64](1),
				OltID:        inventory.Ptr[int64](1),
				RxPower:      inventory.Ptr(-25.5),
				TxPower:      inventory.Ptr(2.3),
				Distance:     inventory.Ptr(1500),
				ServicePlan:  inventory.Ptr("50 Mbps"),
			},
		},
		CableRoutes: []inventory.CableRouteRecord{
			{
				ID:           1,
				Source:       inventory.EntityRef{Kind: inventory.KindOLT, ID: 1},
				Destination:  inventory.EntityRef{Kind: inventory.KindODP, ID: 1},
				CableType:    inventory.Ptr("Single Mode"),
				FiberCount:   inventory.Ptr(24),
				LengthMeters: inventory.Ptr(850.0),
				Path: []inventory.GeoPoint{
					{Lat: -6.2088, Lng: 106.8456},
					{Lat: -6.2075, Lng: 106.8440},
				},
				Status: inventory.StatusActive,
			},
		},
	}
}
