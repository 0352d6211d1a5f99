package dashboard

import (
	"encoding/json"
	"sort"

	"agrovista.dev/panel/internal/geomap"
)

// viewSurface is the server-side rendering target for the marker
// reconciler: instead of driving a live map widget it accumulates the
// final marker set, which the page embeds as JSON for Leaflet.
type viewSurface struct {
	markers map[int64]geomap.Marker
	fitted  bool
}

func newViewSurface() *viewSurface {
	return &viewSurface{markers: map[int64]geomap.Marker{}}
}

func (s *viewSurface) AddMarker(m geomap.Marker) error {
	s.markers[m.ID] = m
	return nil
}

func (s *viewSurface) UpdateMarker(m geomap.Marker) error {
	s.markers[m.ID] = m
	return nil
}

func (s *viewSurface) RemoveMarker(id int64) error {
	delete(s.markers, id)
	return nil
}

func (s *viewSurface) SetSelected(int64) error { return nil }

func (s *viewSurface) FitBounds(geomap.Bounds, geomap.FitOptions) error {
	s.fitted = true
	return nil
}

func (s *viewSurface) FlyTo(float64, float64) error { return nil }

func (s *viewSurface) Release() error {
	s.markers = map[int64]geomap.Marker{}
	return nil
}

type markerJSON struct {
	ID     int64   `json:"id"`
	Lat    float64 `json:"lat"`
	Lng    float64 `json:"lng"`
	Label  string  `json:"label"`
	Detail string  `json:"detail,omitempty"`
	Color  string  `json:"color,omitempty"`
}

// MarkersJSON returns the rendered marker set as a JSON array, ordered
// by id so output is stable across requests.
func (s *viewSurface) MarkersJSON() (string, error) {
	ids := make([]int64, 0, len(s.markers))
	for id := range s.markers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]markerJSON, 0, len(ids))
	for _, id := range ids {
		m := s.markers[id]
		out = append(out, markerJSON{
			ID:     m.ID,
			Lat:    m.Latitude,
			Lng:    m.Longitude,
			Label:  m.Label,
			Detail: m.Detail,
			Color:  m.Color,
		})
	}

	raw, err := json.Marshal(out)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// markersFor runs one reconciliation pass over the entities and returns
// the resulting marker JSON. Each page render gets a fresh surface; the
// reconciler is disposed before returning.
func (s *Server) markersFor(layer string, entities []geomap.Entity) (string, error) {
	reconciler, err := geomap.NewReconciler(geomap.ReconcilerConfig{
		Layer:   layer,
		Logger:  s.logger,
		Metrics: s.metrics,
	})
	if err != nil {
		return "", err
	}

	surface := newViewSurface()
	if err := reconciler.Attach(surface); err != nil {
		return "", err
	}
	if err := reconciler.Sync(entities); err != nil {
		return "", err
	}

	markers, err := surface.MarkersJSON()
	if err != nil {
		return "", err
	}
	if err := reconciler.Dispose(); err != nil {
		return "", err
	}
	return markers, nil
}
