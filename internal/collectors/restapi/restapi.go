// Package restapi reads entity collections from the management REST API.
// The bearer token comes from an injected SessionProvider; the source holds
// no session state of its own.
package restapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"pontopology/internal/collectors"
	"pontopology/internal/inventory"
)

// SessionProvider supplies the token for the current session.
type SessionProvider interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a fixed token, e.g. a service account credential.
type StaticToken string

func (t StaticToken) Token(context.Context) (string, error) { return string(t), nil }

var ErrUnauthorized = errors.New("restapi: session rejected")

// StatusError is a non-2xx answer from the API.
type StatusError struct {
	Path   string
	Status int
	Detail string
}

func (e *StatusError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("GET %s: status %d: %s", e.Path, e.Status, e.Detail)
	}
	return fmt.Sprintf("GET %s: status %d", e.Path, e.Status)
}

const DefaultPageSize = 100

type Source struct {
	BaseURL  *url.URL
	Client   *http.Client
	Session  SessionProvider
	PageSize int
	log      *zap.Logger
}

func New(baseURL string, session SessionProvider, timeout time.Duration, log *zap.Logger) (*Source, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/") + "/")
	if err != nil {
		return nil, fmt.Errorf("invalid base url %q: %w", baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid base url %q: scheme must be http or https", baseURL)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Source{
		BaseURL:  u,
		Client:   &http.Client{Timeout: timeout},
		Session:  session,
		PageSize: DefaultPageSize,
		log:      log.Named("restapi_source"),
	}, nil
}

// Wire shapes; the API flattens coordinates and cable route endpoints.

type oltDTO struct {
	ID            int64    `json:"id"`
	Name          string   `json:"name"`
	IPAddress     string   `json:"ip_address"`
	Status        *string  `json:"status"`
	Vendor        *string  `json:"vendor"`
	Model         *string  `json:"model"`
	Location      *string  `json:"location"`
	Latitude      *float64 `json:"latitude"`
	Longitude     *float64 `json:"longitude"`
	SNMPCommunity *string  `json:"snmp_community"`
	SNMPVersion   *string  `json:"snmp_version"`
	SNMPPort      *int     `json:"snmp_port"`
}

type odpDTO struct {
	ID            int64    `json:"id"`
	Name          string   `json:"name"`
	Code          *string  `json:"code"`
	SplitterRatio *string  `json:"splitter_ratio"`
	TotalPorts    *int     `json:"total_ports"`
	UsedPorts     *int     `json:"used_ports"`
	Status        *string  `json:"status"`
	PortID        *int64   `json:"port_id"`
	OltID         *int64   `json:"olt_id"`
	Latitude      *float64 `json:"latitude"`
	Longitude     *float64 `json:"longitude"`
}

type cableRouteDTO struct {
	ID               int64                `json:"id"`
	SourceType       string               `json:"source_type"`
	SourceID         int64                `json:"source_id"`
	DestinationType  string               `json:"destination_type"`
	DestinationID    int64                `json:"destination_id"`
	CableType        *string              `json:"cable_type"`
	FiberCount       *int                 `json:"fiber_count"`
	CableLength      *float64             `json:"cable_length"`
	RouteCoordinates []inventory.GeoPoint `json:"route_coordinates"`
	Status           *string              `json:"status"`
}

func (s *Source) FetchOLTs(ctx context.Context) ([]inventory.OltRecord, error) {
	dtos, err := fetchAll[oltDTO](ctx, s, "olt/")
	if err != nil {
		return nil, err
	}
	out := make([]inventory.OltRecord, 0, len(dtos))
	for _, d := range dtos {
		out = append(out, inventory.OltRecord{
			ID:            d.ID,
			Name:          d.Name,
			IPAddress:     d.IPAddress,
			Status:        inventory.Deref(d.Status, inventory.StatusUnknown),
			Vendor:        inventory.Deref(d.Vendor, ""),
			Model:         d.Model,
			Location:      d.Location,
			Geo:           geoPoint(d.Latitude, d.Longitude),
			SNMPCommunity: inventory.Deref(d.SNMPCommunity, ""),
			SNMPVersion:   inventory.Deref(d.SNMPVersion, ""),
			SNMPPort:      inventory.Deref(d.SNMPPort, 0),
		})
	}
	return out, nil
}

func (s *Source) FetchODPs(ctx context.Context) ([]inventory.OdpRecord, error) {
	dtos, err := fetchAll[odpDTO](ctx, s, "odp/")
	if err != nil {
		return nil, err
	}
	out := make([]inventory.OdpRecord, 0, len(dtos))
	for _, d := range dtos {
		out = append(out, inventory.OdpRecord{
			ID:            d.ID,
			Name:          d.Name,
			Code:          d.Code,
			SplitterRatio: inventory.Deref(d.SplitterRatio, ""),
			TotalPorts:    inventory.Deref(d.TotalPorts, 0),
			UsedPorts:     inventory.Deref(d.UsedPorts, 0),
			Status:        inventory.Deref(d.Status, inventory.StatusActive),
			PortID:        d.PortID,
			FeedingOltID:  d.OltID,
			Geo:           geoPoint(d.Latitude, d.Longitude),
		})
	}
	return out, nil
}

func (s *Source) FetchONUs(ctx context.Context) ([]inventory.OnuRecord, error) {
	return fetchAll[inventory.OnuRecord](ctx, s, "onu/")
}

func (s *Source) FetchCableRoutes(ctx context.Context) ([]inventory.CableRouteRecord, error) {
	dtos, err := fetchAll[cableRouteDTO](ctx, s, "cable-route/")
	if err != nil {
		return nil, err
	}
	out := make([]inventory.CableRouteRecord, 0, len(dtos))
	for _, d := range dtos {
		out = append(out, inventory.CableRouteRecord{
			ID:           d.ID,
			Source:       inventory.EntityRef{Kind: inventory.EntityKind(d.SourceType), ID: d.SourceID},
			Destination:  inventory.EntityRef{Kind: inventory.EntityKind(d.DestinationType), ID: d.DestinationID},
			CableType:    d.CableType,
			FiberCount:   d.FiberCount,
			LengthMeters: d.CableLength,
			Path:         d.RouteCoordinates,
			Status:       inventory.Deref(d.Status, inventory.StatusActive),
		})
	}
	return out, nil
}

// fetchAll pages through a list endpoint with skip/limit until a short page.
func fetchAll[T any](ctx context.Context, s *Source, path string) ([]T, error) {
	size := s.PageSize
	if size <= 0 {
		size = DefaultPageSize
	}
	var out []T
	for skip := 0; ; skip += size {
		var page []T
		if err := s.get(ctx, path, url.Values{
			"skip":  {strconv.Itoa(skip)},
			"limit": {strconv.Itoa(size)},
		}, &page); err != nil {
			return nil, err
		}
		out = append(out, page...)
		if len(page) < size {
			return out, nil
		}
	}
}

func (s *Source) get(ctx context.Context, path string, query url.Values, dst any) error {
	u := s.BaseURL.ResolveReference(&url.URL{Path: path, RawQuery: query.Encode()})
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if s.Session != nil {
		token, err := s.Session.Token(ctx)
		if err != nil {
			return fmt.Errorf("session token: %w", err)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := s.Client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", collectors.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		serr := &StatusError{Path: u.Path, Status: resp.StatusCode, Detail: detail(body)}
		s.log.Warn("list request failed", zap.String("path", u.Path), zap.Int("status", resp.StatusCode))
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return errors.Join(ErrUnauthorized, serr)
		}
		return serr
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode %s: %w", u.Path, err)
	}
	return nil
}

// detail extracts the {"detail": "..."} message error responses carry.
func detail(body []byte) string {
	var payload struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &payload) == nil && payload.Detail != "" {
		return payload.Detail
	}
	return strings.TrimSpace(string(body))
}

func geoPoint(lat, lng *float64) *inventory.GeoPoint {
	if lat == nil || lng == nil {
		return nil
	}
	return &inventory.GeoPoint{Lat: *lat, Lng: *lng}
}
