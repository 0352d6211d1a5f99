package geomap_test

import (
	"bytes"
	"log/slog"
	"math"
	"sort"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"agrovista.dev/panel/internal/geomap"
	"agrovista.dev/panel/pkg/logger"
	"agrovista.dev/panel/pkg/metrics"
)

// minSeparation mirrors the spread pass's pairwise distance floor.
const minSeparation = 0.00025

// fakeSurface records every call so tests can assert the exact
// operation sequence the reconciler issued.
type fakeSurface struct {
	markers  map[int64]geomap.Marker
	selected int64
	fits     []geomap.FitOptions
	flights  [][2]float64
	released bool
}

func newFakeSurface() *fakeSurface {
	return &fakeSurface{markers: map[int64]geomap.Marker{}}
}

func (s *fakeSurface) AddMarker(m geomap.Marker) error {
	s.markers[m.ID] = m
	return nil
}

func (s *fakeSurface) UpdateMarker(m geomap.Marker) error {
	s.markers[m.ID] = m
	return nil
}

func (s *fakeSurface) RemoveMarker(id int64) error {
	delete(s.markers, id)
	return nil
}

func (s *fakeSurface) SetSelected(id int64) error {
	s.selected = id
	return nil
}

func (s *fakeSurface) FitBounds(b geomap.Bounds, opts geomap.FitOptions) error {
	s.fits = append(s.fits, opts)
	return nil
}

func (s *fakeSurface) FlyTo(lat, lng float64) error {
	s.flights = append(s.flights, [2]float64{lat, lng})
	return nil
}

func (s *fakeSurface) Release() error {
	s.released = true
	return nil
}

func ptr(v float64) *float64 { return &v }

// expectPairwiseSeparation asserts every located pair is at least the
// minimum separation apart.
func expectPairwiseSeparation(entities []geomap.Entity) {
	GinkgoHelper()
	for i := 0; i < len(entities); i++ {
		for j := i + 1; j < len(entities); j++ {
			dLat := *entities[i].Latitude - *entities[j].Latitude
			dLng := *entities[i].Longitude - *entities[j].Longitude
			Expect(math.Hypot(dLat, dLng)).To(BeNumerically(">=", minSeparation))
		}
	}
}

func entity(id int64, lat, lng float64) geomap.Entity {
	return geomap.Entity{ID: id, Label: "plot", Latitude: ptr(lat), Longitude: ptr(lng)}
}

func newReconciler() *geomap.Reconciler {
	r, err := geomap.NewReconciler(geomap.ReconcilerConfig{
		Layer:  "plots",
		Logger: logger.NewDefault(),
	})
	Expect(err).NotTo(HaveOccurred())
	return r
}

var _ = Describe("Reconciler lifecycle", func() {
	It("should start uninitialized and move through the states in order", func() {
		r := newReconciler()
		Expect(r.State()).To(Equal(geomap.Uninitialized))

		Expect(r.Attach(newFakeSurface())).To(Succeed())
		Expect(r.State()).To(Equal(geomap.Initializing))

		Expect(r.Sync(nil)).To(Succeed())
		Expect(r.State()).To(Equal(geomap.Ready))

		Expect(r.Dispose()).To(Succeed())
		Expect(r.State()).To(Equal(geomap.Disposed))
	})

	It("should reject sync before a surface is attached", func() {
		r := newReconciler()
		Expect(r.Sync(nil)).To(MatchError(geomap.ErrNoSurface))
	})

	It("should reject a second attach", func() {
		r := newReconciler()
		Expect(r.Attach(newFakeSurface())).To(Succeed())
		Expect(r.Attach(newFakeSurface())).To(MatchError("surface already attached"))
	})

	It("should reject every operation after disposal", func() {
		r := newReconciler()
		Expect(r.Attach(newFakeSurface())).To(Succeed())
		Expect(r.Dispose()).To(Succeed())

		Expect(r.Sync(nil)).To(MatchError(geomap.ErrDisposed))
		Expect(r.Attach(newFakeSurface())).To(MatchError(geomap.ErrDisposed))
	})

	It("should release the surface exactly once on dispose", func() {
		r := newReconciler()
		surface := newFakeSurface()
		Expect(r.Attach(surface)).To(Succeed())

		Expect(r.Dispose()).To(Succeed())
		Expect(surface.released).To(BeTrue())
		Expect(r.Dispose()).To(Succeed())
	})
})

var _ = Describe("Reconciler sync", func() {
	var (
		r       *geomap.Reconciler
		surface *fakeSurface
	)

	BeforeEach(func() {
		r = newReconciler()
		surface = newFakeSurface()
		Expect(r.Attach(surface)).To(Succeed())
	})

	It("should add markers for every located entity", func() {
		Expect(r.Sync([]geomap.Entity{
			entity(1, 21.05, -86.85),
			entity(2, 21.06, -86.86),
		})).To(Succeed())

		Expect(surface.markers).To(HaveLen(2))
		Expect(surface.markers[1].Latitude).To(Equal(21.05))
	})

	It("should remove markers whose entity disappeared", func() {
		Expect(r.Sync([]geomap.Entity{
			entity(1, 21.05, -86.85),
			entity(2, 21.06, -86.86),
		})).To(Succeed())

		Expect(r.Sync([]geomap.Entity{
			entity(2, 21.06, -86.86),
		})).To(Succeed())

		Expect(surface.markers).To(HaveLen(1))
		Expect(surface.markers).To(HaveKey(int64(2)))
	})

	It("should update a marker when its position changes", func() {
		Expect(r.Sync([]geomap.Entity{entity(1, 21.05, -86.85)})).To(Succeed())
		Expect(r.Sync([]geomap.Entity{entity(1, 21.10, -86.85)})).To(Succeed())

		Expect(surface.markers).To(HaveLen(1))
		Expect(surface.markers[1].Latitude).To(Equal(21.10))
	})

	It("should skip entities without coordinates", func() {
		Expect(r.Sync([]geomap.Entity{
			entity(1, 21.05, -86.85),
			{ID: 2, Label: "unplaced"},
			{ID: 3, Label: "half", Latitude: ptr(21.0)},
		})).To(Succeed())

		Expect(surface.markers).To(HaveLen(1))
	})

	It("should produce no markers for unusable coordinates, warning per entity", func() {
		var logBuf bytes.Buffer
		m := metrics.NewDashboardMetrics("geomap_test")
		warned, err := geomap.NewReconciler(geomap.ReconcilerConfig{
			Layer:   "plots",
			Logger:  slog.New(slog.NewTextHandler(&logBuf, nil)),
			Metrics: m,
		})
		Expect(err).NotTo(HaveOccurred())
		recording := newFakeSurface()
		Expect(warned.Attach(recording)).To(Succeed())

		Expect(warned.Sync([]geomap.Entity{
			{ID: 1, Label: "nan-lat", Latitude: ptr(math.NaN()), Longitude: ptr(-86.85)},
			{ID: 2, Label: "inf-lng", Latitude: ptr(21.05), Longitude: ptr(math.Inf(1))},
			{ID: 3, Label: "unplaced"},
		})).To(Succeed())

		Expect(recording.markers).To(BeEmpty())
		Expect(logBuf.String()).To(ContainSubstring("skipping entity without coordinates"))
		Expect(logBuf.String()).To(ContainSubstring("nan-lat"))
		Expect(testutil.ToFloat64(m.MarkersSkipped.WithLabelValues("plots"))).To(Equal(3.0))
	})

	It("should fit the viewport once on the first sync with markers", func() {
		Expect(r.Sync([]geomap.Entity{entity(1, 21.05, -86.85)})).To(Succeed())
		Expect(r.Sync([]geomap.Entity{entity(1, 21.05, -86.85)})).To(Succeed())

		Expect(surface.fits).To(HaveLen(1))
		Expect(surface.fits[0].Padding).To(Equal(50))
		Expect(surface.fits[0].MaxZoom).To(Equal(15))
	})

	It("should fly to a marker on selection", func() {
		Expect(r.Sync([]geomap.Entity{entity(7, 21.05, -86.85)})).To(Succeed())

		Expect(r.Select(7)).To(Succeed())
		Expect(surface.selected).To(BeEquivalentTo(7))
		Expect(surface.flights).To(HaveLen(1))
		Expect(r.Selected()).To(BeEquivalentTo(7))
	})

	It("should reject selecting an unknown marker", func() {
		Expect(r.Sync(nil)).To(Succeed())
		Expect(r.Select(99)).To(MatchError("no marker with id 99"))
	})

	It("should clear the selection when the selected marker is removed", func() {
		Expect(r.Sync([]geomap.Entity{entity(7, 21.05, -86.85)})).To(Succeed())
		Expect(r.Select(7)).To(Succeed())

		Expect(r.Sync(nil)).To(Succeed())
		Expect(r.Selected()).To(BeZero())
	})
})

var _ = Describe("BuildPlan", func() {
	marker := func(id int64, lat float64) geomap.Marker {
		return geomap.Marker{ID: id, Latitude: lat, Longitude: -86.85}
	}

	It("should classify markers into add, update and remove", func() {
		current := map[int64]geomap.Marker{
			1: marker(1, 21.0),
			2: marker(2, 21.1),
		}
		desired := []geomap.Marker{
			marker(2, 21.2), // moved
			marker(3, 21.3), // new
		}

		plan := geomap.BuildPlan(current, desired)
		Expect(plan.Add).To(ConsistOf(marker(3, 21.3)))
		Expect(plan.Update).To(ConsistOf(marker(2, 21.2)))
		Expect(plan.Remove).To(ConsistOf(int64(1)))
	})

	It("should produce an empty plan for identical sets", func() {
		current := map[int64]geomap.Marker{1: marker(1, 21.0)}
		plan := geomap.BuildPlan(current, []geomap.Marker{marker(1, 21.0)})

		Expect(plan.Add).To(BeEmpty())
		Expect(plan.Update).To(BeEmpty())
		Expect(plan.Remove).To(BeEmpty())
	})
})

var _ = Describe("Spread", func() {
	It("should leave distinct coordinates untouched", func() {
		in := []geomap.Entity{
			entity(1, 21.05, -86.85),
			entity(2, 21.06, -86.86),
		}
		out := geomap.Spread(in)

		Expect(out).To(HaveLen(2))
		Expect(*out[0].Latitude).To(Equal(21.05))
		Expect(*out[1].Latitude).To(Equal(21.06))
	})

	It("should separate entities stacked on the same point", func() {
		in := []geomap.Entity{
			entity(1, 21.05, -86.85),
			entity(2, 21.05, -86.85),
			entity(3, 21.05, -86.85),
		}
		out := geomap.Spread(in)

		Expect(out).To(HaveLen(3))
		expectPairwiseSeparation(out)
	})

	It("should push near-duplicate pairs to at least the minimum separation", func() {
		in := []geomap.Entity{
			entity(1, 21.05, -86.85),
			entity(2, 21.05001, -86.85), // close enough to overlap, not byte-equal
		}
		out := geomap.Spread(in)

		Expect(out).To(HaveLen(2))
		expectPairwiseSeparation(out)
		Expect(out[0].ID).To(BeEquivalentTo(1))
		Expect(out[1].ID).To(BeEquivalentTo(2))
	})

	It("should cluster chains of near neighbours transitively", func() {
		in := []geomap.Entity{
			entity(1, 21.0500, -86.85),
			entity(2, 21.0502, -86.85),
			entity(3, 21.0504, -86.85), // near 2 but not near 1
		}
		out := geomap.Spread(in)

		Expect(out).To(HaveLen(3))
		expectPairwiseSeparation(out)
	})

	It("should be deterministic", func() {
		in := []geomap.Entity{
			entity(1, 21.05, -86.85),
			entity(2, 21.05, -86.85),
		}
		first := geomap.Spread(in)
		second := geomap.Spread(in)

		Expect(*first[0].Latitude).To(Equal(*second[0].Latitude))
		Expect(*first[1].Longitude).To(Equal(*second[1].Longitude))
	})

	It("should preserve order and count", func() {
		in := []geomap.Entity{
			entity(3, 21.05, -86.85),
			{ID: 9},
			entity(1, 21.05, -86.85),
		}
		out := geomap.Spread(in)

		ids := make([]int64, 0, len(out))
		for _, e := range out {
			ids = append(ids, e.ID)
		}
		Expect(ids).To(Equal([]int64{3, 9, 1}))
	})

	It("should not mutate the input", func() {
		in := []geomap.Entity{
			entity(1, 21.05, -86.85),
			entity(2, 21.05, -86.85),
		}
		geomap.Spread(in)
		Expect(*in[0].Latitude).To(Equal(21.05))
		Expect(*in[1].Latitude).To(Equal(21.05))
	})
})

var _ = Describe("Bounds", func() {
	It("should report empty until a point is added", func() {
		var b geomap.Bounds
		Expect(b.Empty()).To(BeTrue())

		b.Extend(21.0, -86.0)
		Expect(b.Empty()).To(BeFalse())
	})

	It("should cover every extended point", func() {
		points := [][2]float64{{21.0, -86.9}, {21.2, -86.7}, {20.8, -86.8}}

		var b geomap.Bounds
		for _, p := range points {
			b.Extend(p[0], p[1])
		}

		lats := []float64{21.0, 21.2, 20.8}
		sort.Float64s(lats)
		Expect(b.MinLat).To(Equal(lats[0]))
		Expect(b.MaxLat).To(Equal(lats[2]))
		Expect(b.MinLng).To(Equal(-86.9))
		Expect(b.MaxLng).To(Equal(-86.7))
	})
})
