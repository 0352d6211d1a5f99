// Package geomap reconciles domain entities onto a map surface. The
// reconciler owns the marker lifecycle: it diffs the desired entity set
// against the markers currently on the surface and applies the minimal
// add/update/remove plan, instead of tearing the layer down on every
// refresh.
package geomap

import (
	"fmt"
	"math"
)

// Entity is anything the map can display as a marker. Coordinates are
// pointers because the upstream API omits or nulls them for entities
// that were registered without a position.
type Entity struct {
	ID        int64
	Label     string
	Detail    string
	Color     string
	Latitude  *float64
	Longitude *float64
}

// Located reports whether the entity carries a usable coordinate pair.
// NaN and infinite values count as missing; they can reach this layer
// when the upstream emits a non-numeric coordinate string.
func (e Entity) Located() bool {
	return e.Latitude != nil && e.Longitude != nil &&
		finite(*e.Latitude) && finite(*e.Longitude)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Marker is one rendered map marker.
type Marker struct {
	ID        int64
	Label     string
	Detail    string
	Color     string
	Latitude  float64
	Longitude float64
}

// FitOptions control how the viewport is fitted around a bounds box.
type FitOptions struct {
	Padding int
	MaxZoom int
}

// DefaultFitOptions matches the panel's map views: enough padding to
// keep edge markers visible and a zoom ceiling so a single marker does
// not fill the screen with one field.
var DefaultFitOptions = FitOptions{Padding: 50, MaxZoom: 15}

// Bounds accumulates a bounding box over a set of points.
type Bounds struct {
	MinLat float64
	MaxLat float64
	MinLng float64
	MaxLng float64
	count  int
}

// Extend grows the bounds to include the point.
func (b *Bounds) Extend(lat, lng float64) {
	if b.count == 0 {
		b.MinLat, b.MaxLat = lat, lat
		b.MinLng, b.MaxLng = lng, lng
	} else {
		if lat < b.MinLat {
			b.MinLat = lat
		}
		if lat > b.MaxLat {
			b.MaxLat = lat
		}
		if lng < b.MinLng {
			b.MinLng = lng
		}
		if lng > b.MaxLng {
			b.MaxLng = lng
		}
	}
	b.count++
}

// Empty reports whether no point has been added yet. Fitting an empty
// bounds is a surface error, so callers must check first.
func (b *Bounds) Empty() bool {
	return b.count == 0
}

// Surface is the rendering target the reconciler drives. Implementations
// translate these calls into map-library operations; tests use an
// in-memory recorder.
type Surface interface {
	AddMarker(m Marker) error
	UpdateMarker(m Marker) error
	RemoveMarker(id int64) error
	SetSelected(id int64) error
	FitBounds(b Bounds, opts FitOptions) error
	FlyTo(lat, lng float64) error
	Release() error
}

// Plan is the minimal set of surface operations turning the current
// marker set into the desired one.
type Plan struct {
	Add    []Marker
	Update []Marker
	Remove []int64
}

// BuildPlan diffs desired markers against current ones. Markers present
// in both sets are updated only when a rendered attribute changed.
// Remove order follows the current map iteration; callers that need
// stable output should not, since the surface applies removals by id.
func BuildPlan(current map[int64]Marker, desired []Marker) Plan {
	var plan Plan

	wanted := make(map[int64]bool, len(desired))
	for _, m := range desired {
		wanted[m.ID] = true
		existing, ok := current[m.ID]
		switch {
		case !ok:
			plan.Add = append(plan.Add, m)
		case existing != m:
			plan.Update = append(plan.Update, m)
		}
	}

	for id := range current {
		if !wanted[id] {
			plan.Remove = append(plan.Remove, id)
		}
	}

	return plan
}

func (p Plan) String() string {
	return fmt.Sprintf("add=%d update=%d remove=%d", len(p.Add), len(p.Update), len(p.Remove))
}
