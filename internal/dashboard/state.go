package dashboard

import (
	"sync"
	"time"

	"agrovista.dev/panel/internal/aggregate"
	"agrovista.dev/panel/internal/upstream"
)

// PanelState holds the data the pollers refresh and the handlers read.
// Every write replaces a whole domain wholesale; readers get copies of
// the slices so a poll landing mid-render cannot mutate a page.
type PanelState struct {
	mu          sync.RWMutex
	snapshot    upstream.Snapshot
	snapshotAt  time.Time
	snapshotErr error
	latest      aggregate.LatestResult
	zones       []upstream.IrrigationZone
	zonesAt     time.Time
	zonesErr    error
	user        upstream.User
	hasUser     bool
}

// NewPanelState returns an empty state. Until the first poll commits,
// the latest reading reports NoData.
func NewPanelState() *PanelState {
	return &PanelState{
		latest: aggregate.LatestReading(nil),
	}
}

// SetSnapshot commits a fresh snapshot and recomputes the latest
// reading from its history.
func (s *PanelState) SetSnapshot(snap upstream.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot = snap
	s.snapshotAt = time.Now()
	s.snapshotErr = nil
	s.latest = aggregate.LatestReading(snap.History)
}

// SetSnapshotError marks the snapshot domain as failed. The previous
// snapshot stays visible, but the latest-reading card switches to the
// error sentinel so it cannot show a stale value as current.
func (s *PanelState) SetSnapshotError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshotErr = err
	s.latest = aggregate.FailedReading()
}

// Snapshot returns the last committed snapshot and when it arrived.
func (s *PanelState) Snapshot() (upstream.Snapshot, time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := upstream.Snapshot{
		Plots:   append([]upstream.Plot(nil), s.snapshot.Plots...),
		History: append([]upstream.Reading(nil), s.snapshot.History...),
	}
	return snap, s.snapshotAt, s.snapshotErr
}

// SetLatest commits a directly polled latest reading (datos-generales).
func (s *PanelState) SetLatest(reading upstream.Reading) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest = aggregate.LatestResult{Reading: reading, State: aggregate.ReadingOK}
}

// SetLatestError forces the latest reading to the error sentinel so
// the cards render "Error" instead of a stale value.
func (s *PanelState) SetLatestError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest = aggregate.FailedReading()
}

// Latest returns the current latest-reading result.
func (s *PanelState) Latest() aggregate.LatestResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest
}

// SetZones commits a fresh zone set.
func (s *PanelState) SetZones(zones []upstream.IrrigationZone) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.zones = zones
	s.zonesAt = time.Now()
	s.zonesErr = nil
}

// SetZonesError marks the zone domain as failed, keeping the previous
// set visible with its timestamp so the page can show staleness.
func (s *PanelState) SetZonesError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.zonesErr = err
}

// Zones returns the last committed zones and when they arrived.
func (s *PanelState) Zones() ([]upstream.IrrigationZone, time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]upstream.IrrigationZone(nil), s.zones...), s.zonesAt, s.zonesErr
}

// SetUser records the signed-in operator profile.
func (s *PanelState) SetUser(user upstream.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = user
	s.hasUser = true
}

// ClearUser drops the operator profile and all polled data; called when
// the session is torn down so the next sign-in starts clean.
func (s *PanelState) ClearUser() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = upstream.User{}
	s.hasUser = false
	s.snapshot = upstream.Snapshot{}
	s.snapshotAt = time.Time{}
	s.snapshotErr = nil
	s.zones = nil
	s.zonesAt = time.Time{}
	s.zonesErr = nil
	s.latest = aggregate.LatestReading(nil)
}

// User returns the operator profile, if one is recorded.
func (s *PanelState) User() (upstream.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user, s.hasUser
}
