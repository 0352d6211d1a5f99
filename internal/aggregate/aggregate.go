// Package aggregate derives the views the panel screens render from raw
// upstream data. All derivations are pure: every view is computed from a
// single snapshot, so the results are mutually consistent.
package aggregate

import (
	"sort"
	"time"

	"agrovista.dev/panel/internal/upstream"
)

// ErrorSentinel marks a numeric channel whose fetch failed, so views can
// render a distinct "Error" glyph instead of a misleading zero.
const ErrorSentinel = -1

// WindowAll selects the entire history when passed as the window size.
const WindowAll = 0

// WindowSizes are the selectable chart windows, in the order the UI
// offers them.
var WindowSizes = []int{10, 20, 50, 100, WindowAll}

// ReadingState distinguishes a real reading from the two degraded cases.
type ReadingState int

const (
	// ReadingOK is a reading taken from actual history.
	ReadingOK ReadingState = iota
	// ReadingNoData is the zero-valued stand-in for an empty history.
	ReadingNoData
	// ReadingFailed is the error-sentinel stand-in for a failed fetch.
	ReadingFailed
)

// LatestResult is the most recent reading plus how trustworthy it is.
type LatestResult struct {
	Reading upstream.Reading
	State   ReadingState
}

// ActivePlots returns the plots whose deletion flag is unset.
func ActivePlots(snap upstream.Snapshot) []upstream.Plot {
	return partition(snap, false)
}

// DeletedPlots returns the plots whose deletion flag is set.
func DeletedPlots(snap upstream.Snapshot) []upstream.Plot {
	return partition(snap, true)
}

func partition(snap upstream.Snapshot, deleted bool) []upstream.Plot {
	out := make([]upstream.Plot, 0, len(snap.Plots))
	for _, p := range snap.Plots {
		if p.Deleted == deleted {
			out = append(out, p)
		}
	}
	return out
}

// LatestReading picks the reading with the maximum registration
// timestamp. An empty history yields a zero-valued reading stamped with
// the current time and marked NoData, so screens can tell "no data" from
// "loading".
func LatestReading(history []upstream.Reading) LatestResult {
	if len(history) == 0 {
		return LatestResult{
			Reading: upstream.Reading{RecordedAt: time.Now()},
			State:   ReadingNoData,
		}
	}

	latest := history[0]
	for _, r := range history[1:] {
		if r.RecordedAt.After(latest.RecordedAt) {
			latest = r
		}
	}
	return LatestResult{Reading: latest, State: ReadingOK}
}

// FailedReading is the sentinel result for a transport failure: every
// channel forced to ErrorSentinel.
func FailedReading() LatestResult {
	return LatestResult{
		Reading: upstream.Reading{
			RecordedAt:  time.Now(),
			Temperature: ErrorSentinel,
			Humidity:    ErrorSentinel,
			Rain:        ErrorSentinel,
			Sunlight:    ErrorSentinel,
		},
		State: ReadingFailed,
	}
}

// Series is a chart-ready time window: chronological order, one label
// and one value per channel per point.
type Series struct {
	Readings    []upstream.Reading
	Labels      []string
	Temperature []float64
	Humidity    []float64
	Rain        []float64
	Sunlight    []float64
}

// labelLayout renders timestamps the way chart axes expect them.
const labelLayout = "02 Jan 15:04"

// WindowedSeries returns the n most recent readings in chronological
// order. The input is sorted descending by timestamp, truncated to n,
// then reversed, so the window always holds the newest points reading
// left to right — never an arbitrary n from the start of the slice.
// n <= 0 selects the whole history.
func WindowedSeries(history []upstream.Reading, n int) Series {
	sorted := make([]upstream.Reading, len(history))
	copy(sorted, history)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].RecordedAt.After(sorted[j].RecordedAt)
	})

	if n > 0 && n < len(sorted) {
		sorted = sorted[:n]
	}

	// Reverse to chronological order.
	for i, j := 0, len(sorted)-1; i < j; i, j = i+1, j-1 {
		sorted[i], sorted[j] = sorted[j], sorted[i]
	}

	s := Series{
		Readings:    sorted,
		Labels:      make([]string, 0, len(sorted)),
		Temperature: make([]float64, 0, len(sorted)),
		Humidity:    make([]float64, 0, len(sorted)),
		Rain:        make([]float64, 0, len(sorted)),
		Sunlight:    make([]float64, 0, len(sorted)),
	}
	for _, r := range sorted {
		s.Labels = append(s.Labels, r.RecordedAt.Format(labelLayout))
		s.Temperature = append(s.Temperature, r.Temperature)
		s.Humidity = append(s.Humidity, r.Humidity)
		s.Rain = append(s.Rain, r.Rain)
		s.Sunlight = append(s.Sunlight, r.Sunlight)
	}
	return s
}

// Averages holds the arithmetic mean of each channel over a window.
type Averages struct {
	Temperature float64
	Humidity    float64
	Rain        float64
	Sunlight    float64
}

// AveragesOf computes per-channel means. An empty series yields zeros,
// never NaN.
func AveragesOf(s Series) Averages {
	return Averages{
		Temperature: mean(s.Temperature),
		Humidity:    mean(s.Humidity),
		Rain:        mean(s.Rain),
		Sunlight:    mean(s.Sunlight),
	}
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// Channel maxima used to normalize the polar summary chart.
const (
	MaxTemperature = 40  // °C
	MaxHumidity    = 100 // %
	MaxRain        = 50  // mm
	MaxSunlight    = 100 // lux, chart scale
)

// Normalized expresses each average as a percentage of its channel
// maximum.
func Normalized(a Averages) Averages {
	return Averages{
		Temperature: a.Temperature / MaxTemperature * 100,
		Humidity:    a.Humidity / MaxHumidity * 100,
		Rain:        a.Rain / MaxRain * 100,
		Sunlight:    a.Sunlight / MaxSunlight * 100,
	}
}

// ZoneStatusCount is one slice of the zone status pie chart.
type ZoneStatusCount struct {
	Status upstream.ZoneStatus
	Count  int
}

// ZoneStatusCounts tallies zones per status, in first-seen order so the
// chart is stable across refreshes of the same data.
func ZoneStatusCounts(zones []upstream.IrrigationZone) []ZoneStatusCount {
	counts := map[upstream.ZoneStatus]int{}
	var order []upstream.ZoneStatus
	for _, z := range zones {
		if _, seen := counts[z.Status]; !seen {
			order = append(order, z.Status)
		}
		counts[z.Status]++
	}

	out := make([]ZoneStatusCount, 0, len(order))
	for _, st := range order {
		out = append(out, ZoneStatusCount{Status: st, Count: counts[st]})
	}
	return out
}

// TroubledZones returns the zones needing attention: maintenance, broken,
// or out of service.
func TroubledZones(zones []upstream.IrrigationZone) []upstream.IrrigationZone {
	out := make([]upstream.IrrigationZone, 0, len(zones))
	for _, z := range zones {
		if z.Status.Troubled() {
			out = append(out, z)
		}
	}
	return out
}
