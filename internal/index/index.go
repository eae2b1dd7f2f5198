// Package index builds constant-time lookups over one refresh cycle's
// collections: records by id and children by parent, in input order.
package index

import (
	"pontopology/internal/inventory"
)

// Rejection describes a record left out of the index.
type Rejection struct {
	Kind   string
	Index  int
	ID     int64
	Reason string
}

const ReasonDuplicateID = "duplicate id"

type Index struct {
	OLTs   map[int64]inventory.OltRecord
	ODPs   map[int64]inventory.OdpRecord
	ONUs   map[int64]inventory.OnuRecord
	Routes map[int64]inventory.CableRouteRecord

	// Children by parent id, in input order.
	ODPsByOLT map[int64][]int64
	ONUsByODP map[int64][]int64

	// FeedingOLT holds the parent OLT the policy resolved for each ODP.
	FeedingOLT map[int64]int64

	// First-seen ids in input order.
	OLTOrder   []int64
	ODPOrder   []int64
	ONUOrder   []int64
	RouteOrder []int64

	Rejected []Rejection
	Policy   ParentPolicy
}

// Build indexes the collections. Records failing validation or repeating an
// already indexed id are listed in Rejected instead. Build never fails; a nil
// policy selects FirstOLTFallback.
func Build(c inventory.Collections, policy ParentPolicy) *Index {
	if policy == nil {
		policy = FirstOLTFallback{}
	}
	idx := &Index{
		OLTs:       make(map[int64]inventory.OltRecord, len(c.OLTs)),
		ODPs:       make(map[int64]inventory.OdpRecord, len(c.ODPs)),
		ONUs:       make(map[int64]inventory.OnuRecord, len(c.ONUs)),
		Routes:     make(map[int64]inventory.CableRouteRecord, len(c.CableRoutes)),
		ODPsByOLT:  map[int64][]int64{},
		ONUsByODP:  map[int64][]int64{},
		FeedingOLT: map[int64]int64{},
		Policy:     policy,
	}

	for i, r := range c.OLTs {
		if idx.admit("olt", i, r.ID, r, idx.hasOLT(r.ID)) {
			idx.OLTs[r.ID] = r
			idx.OLTOrder = append(idx.OLTOrder, r.ID)
		}
	}
	for i, r := range c.ODPs {
		if idx.admit("odp", i, r.ID, r, idx.hasODP(r.ID)) {
			idx.ODPs[r.ID] = r
			idx.ODPOrder = append(idx.ODPOrder, r.ID)
		}
	}
	for i, r := range c.ONUs {
		if idx.admit("onu", i, r.ID, r, idx.hasONU(r.ID)) {
			idx.ONUs[r.ID] = r
			idx.ONUOrder = append(idx.ONUOrder, r.ID)
		}
	}
	for i, r := range c.CableRoutes {
		_, dup := idx.Routes[r.ID]
		if idx.admit("cable_route", i, r.ID, r, dup) {
			idx.Routes[r.ID] = r
			idx.RouteOrder = append(idx.RouteOrder, r.ID)
		}
	}

	// Relations are resolved after every kind is indexed so forward
	// references within the input order still resolve.
	for _, id := range idx.ODPOrder {
		oltID, ok := policy.FeedingOLT(idx.ODPs[id], idx)
		if !ok {
			continue
		}
		idx.FeedingOLT[id] = oltID
		idx.ODPsByOLT[oltID] = append(idx.ODPsByOLT[oltID], id)
	}
	for _, id := range idx.ONUOrder {
		onu := idx.ONUs[id]
		if onu.OdpID == nil {
			continue
		}
		if _, ok := idx.ODPs[*onu.OdpID]; !ok {
			continue
		}
		idx.ONUsByODP[*onu.OdpID] = append(idx.ONUsByODP[*onu.OdpID], id)
	}
	return idx
}

func (idx *Index) admit(kind string, i int, id int64, record any, duplicate bool) bool {
	if err := inventory.Validate(record); err != nil {
		idx.Rejected = append(idx.Rejected, Rejection{Kind: kind, Index: i, ID: id, Reason: err.Error()})
		return false
	}
	if duplicate {
		idx.Rejected = append(idx.Rejected, Rejection{Kind: kind, Index: i, ID: id, Reason: ReasonDuplicateID})
		return false
	}
	return true
}

func (idx *Index) hasOLT(id int64) bool {
	_, ok := idx.OLTs[id]
	return ok
}

func (idx *Index) hasODP(id int64) bool {
	_, ok := idx.ODPs[id]
	return ok
}

func (idx *Index) hasONU(id int64) bool {
	_, ok := idx.ONUs[id]
	return ok
}

// FirstOLT returns the first indexed OLT in input order.
func (idx *Index) FirstOLT() (inventory.OltRecord, bool) {
	if len(idx.OLTOrder) == 0 {
		return inventory.OltRecord{}, false
	}
	return idx.OLTs[idx.OLTOrder[0]], true
}

// ParentOf returns the resolved feeding OLT of an ODP.
func (idx *Index) ParentOf(odpID int64) (int64, bool) {
	id, ok := idx.FeedingOLT[odpID]
	return id, ok
}
