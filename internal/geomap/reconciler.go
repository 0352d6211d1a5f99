package geomap

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"agrovista.dev/panel/pkg/metrics"
)

// State is the reconciler lifecycle phase.
type State int

const (
	// Uninitialized means no surface has been attached yet.
	Uninitialized State = iota
	// Initializing means a surface is attached but the first sync has
	// not completed.
	Initializing
	// Ready means the reconciler is serving syncs.
	Ready
	// Disposed means the surface was released. A disposed reconciler
	// rejects every further operation.
	Disposed
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Initializing:
		return "initializing"
	case Ready:
		return "ready"
	case Disposed:
		return "disposed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// ErrDisposed is returned by every operation on a disposed reconciler.
var ErrDisposed = errors.New("reconciler is disposed")

// ErrNoSurface is returned when an operation needs a surface that was
// never attached.
var ErrNoSurface = errors.New("no surface attached")

// Reconciler keeps a map surface in sync with a desired entity set. All
// methods are safe for concurrent use; the surface only ever sees one
// call at a time.
type Reconciler struct {
	mu       sync.Mutex
	state    State
	surface  Surface
	markers  map[int64]Marker
	selected int64
	layer    string
	logger   *slog.Logger
	metrics  *metrics.DashboardMetrics
}

// ReconcilerConfig configures a Reconciler. Layer names the marker set
// in logs and metrics (for example "plots" or "zones").
type ReconcilerConfig struct {
	Layer   string
	Logger  *slog.Logger
	Metrics *metrics.DashboardMetrics
}

// NewReconciler creates a reconciler in the Uninitialized state.
func NewReconciler(config ReconcilerConfig) (*Reconciler, error) {
	if config.Layer == "" {
		return nil, errors.New("layer name is required")
	}
	if config.Logger == nil {
		return nil, errors.New("logger is required")
	}

	return &Reconciler{
		state:   Uninitialized,
		markers: make(map[int64]Marker),
		layer:   config.Layer,
		logger:  config.Logger.With(slog.String("layer", config.Layer)),
		metrics: config.Metrics,
	}, nil
}

// State returns the current lifecycle phase.
func (r *Reconciler) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Attach binds the surface and moves the reconciler to Initializing.
// Attaching twice, or after disposal, is an error.
func (r *Reconciler) Attach(surface Surface) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch r.state {
	case Disposed:
		return ErrDisposed
	case Initializing, Ready:
		return errors.New("surface already attached")
	}
	if surface == nil {
		return errors.New("surface is required")
	}

	r.surface = surface
	r.state = Initializing
	r.logger.Debug("surface attached")
	return nil
}

// Sync reconciles the surface to show exactly the given entities.
// Entities without usable coordinates are skipped with a warning.
// Near-duplicate coordinates are spread before planning so stacked
// markers stay clickable. The first successful Sync moves the reconciler to Ready
// and fits the viewport around the markers.
func (r *Reconciler) Sync(entities []Entity) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch r.state {
	case Disposed:
		return ErrDisposed
	case Uninitialized:
		return ErrNoSurface
	}

	desired := make([]Marker, 0, len(entities))
	for _, e := range Spread(entities) {
		if !e.Located() {
			r.logger.Warn("skipping entity without coordinates",
				"entity_id", e.ID,
				"label", e.Label,
			)
			if r.metrics != nil {
				r.metrics.MarkersSkipped.WithLabelValues(r.layer).Inc()
			}
			continue
		}
		desired = append(desired, Marker{
			ID:        e.ID,
			Label:     e.Label,
			Detail:    e.Detail,
			Color:     e.Color,
			Latitude:  *e.Latitude,
			Longitude: *e.Longitude,
		})
	}

	plan := BuildPlan(r.markers, desired)
	if err := r.apply(plan); err != nil {
		return err
	}

	r.logger.Debug("markers reconciled",
		"plan", plan.String(),
		"rendered", len(r.markers),
	)
	if r.metrics != nil {
		r.metrics.MarkersRendered.WithLabelValues(r.layer).Set(float64(len(r.markers)))
	}

	if r.state == Initializing {
		r.state = Ready
		if err := r.fitLocked(); err != nil {
			return err
		}
	}
	return nil
}

// apply executes the plan against the surface, keeping the rendered
// marker set consistent with whatever calls succeeded.
func (r *Reconciler) apply(plan Plan) error {
	for _, id := range plan.Remove {
		if err := r.surface.RemoveMarker(id); err != nil {
			return fmt.Errorf("removing marker %d: %w", id, err)
		}
		delete(r.markers, id)
		if r.selected == id {
			r.selected = 0
		}
	}
	for _, m := range plan.Update {
		if err := r.surface.UpdateMarker(m); err != nil {
			return fmt.Errorf("updating marker %d: %w", m.ID, err)
		}
		r.markers[m.ID] = m
	}
	for _, m := range plan.Add {
		if err := r.surface.AddMarker(m); err != nil {
			return fmt.Errorf("adding marker %d: %w", m.ID, err)
		}
		r.markers[m.ID] = m
	}
	return nil
}

// Select highlights a marker and flies the viewport to it. Selecting an
// unknown id is an error, not a silent no-op, so stale UI references
// surface in logs.
func (r *Reconciler) Select(id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != Ready {
		return fmt.Errorf("cannot select in state %s", r.state)
	}
	m, ok := r.markers[id]
	if !ok {
		return fmt.Errorf("no marker with id %d", id)
	}

	if err := r.surface.SetSelected(id); err != nil {
		return fmt.Errorf("selecting marker %d: %w", id, err)
	}
	r.selected = id
	return r.surface.FlyTo(m.Latitude, m.Longitude)
}

// Selected returns the id of the currently selected marker, or zero
// when nothing is selected.
func (r *Reconciler) Selected() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.selected
}

// Fit refits the viewport around the current markers.
func (r *Reconciler) Fit() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != Ready {
		return fmt.Errorf("cannot fit in state %s", r.state)
	}
	return r.fitLocked()
}

func (r *Reconciler) fitLocked() error {
	var bounds Bounds
	for _, m := range r.markers {
		bounds.Extend(m.Latitude, m.Longitude)
	}
	if bounds.Empty() {
		r.logger.Debug("skipping viewport fit, no markers")
		return nil
	}
	return r.surface.FitBounds(bounds, DefaultFitOptions)
}

// Dispose releases the surface and moves the reconciler to Disposed.
// It is idempotent.
func (r *Reconciler) Dispose() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == Disposed {
		return nil
	}

	var err error
	if r.surface != nil {
		err = r.surface.Release()
	}
	r.surface = nil
	r.markers = map[int64]Marker{}
	r.state = Disposed
	r.logger.Debug("reconciler disposed")
	return err
}
