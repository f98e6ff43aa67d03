package ledger

import (
	"fmt"
	"sort"
	"time"
)

// Kind names a resource collection. There is one Document per Kind.
type Kind string

const (
	KindDoor Kind = "door"
	KindPit  Kind = "pit"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return k == KindDoor || k == KindPit
}

// Label is the operator-facing name of a single resource of this kind.
func (k Kind) Label() string {
	switch k {
	case KindDoor:
		return "puerta"
	case KindPit:
		return "fosa"
	}
	return string(k)
}

// Resource is one door or pit.
type Resource struct {
	Index      int   `json:"index"`
	IsOccupied bool  `json:"is_occupied"`
	Daily      Daily `json:"daily"`
}

// Assign marks slot present on date.
func (r *Resource) Assign(date DateKey, slot SlotKey) {
	if r.Daily == nil {
		r.Daily = make(Daily)
	}
	slots, ok := r.Daily[date]
	if !ok {
		slots = make(DailySlots)
		r.Daily[date] = slots
	}
	slots[slot] = true
}

// Clear flips every present slot of containerID on date to false and
// returns how many were flipped.
func (r *Resource) Clear(date DateKey, containerID string) int {
	cleared := 0
	for key, present := range r.Daily[date] {
		if present && key.ContainerID == containerID {
			r.Daily[date][key] = false
			cleared++
		}
	}
	return cleared
}

// Active returns the container ids with a present slot on date.
func (r *Resource) Active(date DateKey) []string {
	var ids []string
	for key, present := range r.Daily[date] {
		if present {
			ids = append(ids, key.ContainerID)
		}
	}
	return ids
}

func (r Resource) clone() Resource {
	out := Resource{Index: r.Index, IsOccupied: r.IsOccupied}
	if r.Daily != nil {
		out.Daily = make(Daily, len(r.Daily))
		for date, slots := range r.Daily {
			copied := make(DailySlots, len(slots))
			for k, v := range slots {
				copied[k] = v
			}
			out.Daily[date] = copied
		}
	}
	return out
}

// Document is the persisted ledger for one Kind.
type Document struct {
	ID        int64      `json:"id"`
	Kind      Kind       `json:"kind"`
	Version   int64      `json:"version"`
	Resources []Resource `json:"resources"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// NewDocument builds a document with count free resources.
func NewDocument(kind Kind, count int) *Document {
	resources := make([]Resource, count)
	for i := range resources {
		resources[i] = Resource{Index: i, Daily: make(Daily)}
	}
	return &Document{Kind: kind, Resources: resources}
}

// Clone returns a deep copy.
func (d *Document) Clone() *Document {
	out := *d
	out.Resources = make([]Resource, len(d.Resources))
	for i, r := range d.Resources {
		out.Resources[i] = r.clone()
	}
	return &out
}

// Resource returns the resource at index.
func (d *Document) Resource(index int) (*Resource, error) {
	if index < 0 || index >= len(d.Resources) {
		return nil, fmt.Errorf("%w: %s index %d out of range [0,%d)", ErrValidation, d.Kind, index, len(d.Resources))
	}
	return &d.Resources[index], nil
}

// ActiveOn returns the sorted, deduplicated container ids present on date
// across every resource.
func (d *Document) ActiveOn(date DateKey) []string {
	seen := make(map[string]struct{})
	for i := range d.Resources {
		for _, id := range d.Resources[i].Active(date) {
			seen[id] = struct{}{}
		}
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Selector picks the resources an assignment applies to.
type Selector func(r Resource) bool

// Free selects every resource whose gate is open.
func Free() Selector {
	return func(r Resource) bool { return !r.IsOccupied }
}

// AtIndex selects the single resource at index.
func AtIndex(index int) Selector {
	return func(r Resource) bool { return r.Index == index }
}
