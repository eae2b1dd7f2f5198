package snapshot

import (
	"encoding/binary"
	"math"

	"github.com/cespare/xxhash/v2"

	"pontopology/internal/inventory"
)

// Fingerprint is a content hash of the four collections, order sensitive.
// Identical inputs always produce the same value.
func Fingerprint(c inventory.Collections) uint64 {
	h := hasher{d: xxhash.New()}

	h.count(len(c.OLTs))
	for _, r := range c.OLTs {
		h.i64(r.ID)
		h.str(r.Name)
		h.str(r.IPAddress)
		h.str(r.Status)
		h.str(r.Vendor)
		h.optStr(r.Model)
		h.optStr(r.Location)
		h.geo(r.Geo)
	}

	h.count(len(c.ODPs))
	for _, r := range c.ODPs {
		h.i64(r.ID)
		h.str(r.Name)
		h.optStr(r.Code)
		h.str(r.SplitterRatio)
		h.i64(int64(r.TotalPorts))
		h.i64(int64(r.UsedPorts))
		h.str(r.Status)
		h.optI64(r.PortID)
		h.optI64(r.FeedingOltID)
		h.geo(r.Geo)
	}

	h.count(len(c.ONUs))
	for _, r := range c.ONUs {
		h.i64(r.ID)
		h.str(r.Serial)
		h.optStr(r.CustomerName)
		h.str(r.Status)
		h.optI64(r.OdpID)
		h.optI64(r.OltID)
		h.optF64(r.RxPower)
		h.optF64(r.TxPower)
		if r.Distance != nil {
			h.flag(true)
			h.i64(int64(*r.Distance))
		} else {
			h.flag(false)
		}
		h.optStr(r.ServicePlan)
	}

	h.count(len(c.CableRoutes))
	for _, r := range c.CableRoutes {
		h.i64(r.ID)
		h.str(string(r.Source.Kind))
		h.i64(r.Source.ID)
		h.str(string(r.Destination.Kind))
		h.i64(r.Destination.ID)
		h.optStr(r.CableType)
		if r.FiberCount != nil {
			h.flag(true)
			h.i64(int64(*r.FiberCount))
		} else {
			h.flag(false)
		}
		h.optF64(r.LengthMeters)
		h.count(len(r.Path))
		for _, p := range r.Path {
			h.f64(p.Lat)
			h.f64(p.Lng)
		}
		h.str(r.Status)
	}
	return h.d.Sum64()
}

type hasher struct {
	d   *xxhash.Digest
	buf [8]byte
}

func (h *hasher) u64(v uint64) {
	binary.LittleEndian.PutUint64(h.buf[:], v)
	_, _ = h.d.Write(h.buf[:])
}

func (h *hasher) i64(v int64)   { h.u64(uint64(v)) }
func (h *hasher) f64(v float64) { h.u64(math.Float64bits(v)) }
func (h *hasher) count(n int)   { h.u64(uint64(n)) }

func (h *hasher) flag(b bool) {
	if b {
		_, _ = h.d.Write([]byte{1})
		return
	}
	_, _ = h.d.Write([]byte{0})
}

// str is length prefixed so adjacent fields cannot alias.
func (h *hasher) str(s string) {
	h.count(len(s))
	_, _ = h.d.WriteString(s)
}

func (h *hasher) optStr(p *string) {
	h.flag(p != nil)
	if p != nil {
		h.str(*p)
	}
}

func (h *hasher) optI64(p *int64) {
	h.flag(p != nil)
	if p != nil {
		h.i64(*p)
	}
}

func (h *hasher) optF64(p *float64) {
	h.flag(p != nil)
	if p != nil {
		h.f64(*p)
	}
}

func (h *hasher) geo(g *inventory.GeoPoint) {
	h.flag(g != nil)
	if g != nil {
		h.f64(g.Lat)
		h.f64(g.Lng)
	}
}
