package inventory

// Entity records as returned by the management backend. Records are read-only
// snapshots fetched per refresh cycle; nothing in this module persists them.

import "strconv"

type EntityKind string

const (
	KindOLT EntityKind = "olt"
	KindODP EntityKind = "odp"
	KindONU EntityKind = "onu"
)

// Layer returns the tier index of the kind (0 = OLT, 1 = ODP, 2 = ONU) and
// false for unknown kinds.
func (k EntityKind) Layer() (int, bool) {
	switch k {
	case KindOLT:
		return 0, true
	case KindODP:
		return 1, true
	case KindONU:
		return 2, true
	default:
		return 0, false
	}
}

// Key renders the topology node key of an entity: "{kind}-{id}".
func (k EntityKind) Key(id int64) string {
	return string(k) + "-" + strconv.FormatInt(id, 10)
}

const (
	StatusOnline   = "online"
	StatusOffline  = "offline"
	StatusUnknown  = "unknown"
	StatusActive   = "active"
	StatusInactive = "inactive"
	StatusDamaged  = "damaged"
)

type GeoPoint struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lng float64 `json:"lng" yaml:"lng"`
}

type OltRecord struct {
	ID        int64     `json:"id" validate:"required"`
	Name      string    `json:"name" validate:"required"`
	IPAddress string    `json:"ip_address"`
	Status    string    `json:"status"` // online/offline/unknown
	Vendor    string    `json:"vendor,omitempty"`
	Model     *string   `json:"model,omitempty"`
	Location  *string   `json:"location,omitempty"`
	Geo       *GeoPoint `json:"geo,omitempty"`

	// SNMP access, only consulted by the optional reachability probe
	SNMPCommunity string `json:"snmp_community,omitempty"`
	SNMPVersion   string `json:"snmp_version,omitempty"`
	SNMPPort      int    `json:"snmp_port,omitempty"`
}

type OdpRecord struct {
	ID            int64   `json:"id" validate:"required"`
	Name          string  `json:"name" validate:"required"`
	Code          *string `json:"code,omitempty"`
	SplitterRatio string  `json:"splitter_ratio"`
	TotalPorts    int     `json:"total_ports" validate:"gte=0"`
	UsedPorts     int     `json:"used_ports" validate:"gte=0"`
	Status        string  `json:"status"` // active/inactive
	// PortID references the OLT PON port feeding this ODP.
	PortID *int64 `json:"port_id,omitempty"`
	// FeedingOltID is set when the data source resolved port -> slot -> OLT.
	FeedingOltID *int64    `json:"olt_id,omitempty"`
	Geo          *GeoPoint `json:"geo,omitempty"`
}

type OnuRecord struct {
	ID           int64    `json:"id" validate:"required"`
	Serial       string   `json:"sn" validate:"required"`
	CustomerName *string  `json:"customer_name,omitempty"`
	Status       string   `json:"status"` // online/offline (los, dying-gasp tolerated)
	OdpID        *int64   `json:"odp_id,omitempty"`
	OltID        *int64   `json:"olt_id,omitempty"`
	RxPower      *float64 `json:"rx_power,omitempty"` // dBm
	TxPower      *float64 `json:"tx_power,omitempty"` // dBm
	Distance     *int     `json:"distance,omitempty"` // meters
	ServicePlan  *string  `json:"service_plan,omitempty"`
}

type EntityRef struct {
	Kind EntityKind `json:"kind" validate:"oneof=olt odp onu"`
	ID   int64      `json:"id" validate:"required"`
}

// Key returns the node key the reference points at.
func (r EntityRef) Key() string { return r.Kind.Key(r.ID) }

type CableRouteRecord struct {
	ID           int64      `json:"id" validate:"required"`
	Source       EntityRef  `json:"source"`
	Destination  EntityRef  `json:"destination"`
	CableType    *string    `json:"cable_type,omitempty"`
	FiberCount   *int       `json:"fiber_count,omitempty"`
	LengthMeters *float64   `json:"cable_length,omitempty"`
	Path         []GeoPoint `json:"route_coordinates,omitempty"`
	Status       string     `json:"status,omitempty"` // active/inactive/damaged
}

// Collections groups the four ordered input arrays of one refresh cycle.
type Collections struct {
	OLTs        []OltRecord        `json:"olts"`
	ODPs        []OdpRecord        `json:"odps"`
	ONUs        []OnuRecord        `json:"onus"`
	CableRoutes []CableRouteRecord `json:"cable_routes"`
}

// Empty reports whether all four collections are empty.
func (c Collections) Empty() bool {
	return len(c.OLTs) == 0 && len(c.ODPs) == 0 && len(c.ONUs) == 0 && len(c.CableRoutes) == 0
}

func Ptr[T any](v T) *T { return &v }

// Deref returns *p or def when p is nil.
func Deref[T any](p *T, def T) T {
	if p == nil {
		return def
	}
	return *p
}
