// Package alerts watches irrigation zone statuses across poll cycles
// and publishes a message to the alert queue whenever a zone changes
// state. Operators subscribe to the queue instead of staring at the
// panel waiting for a pump to break.
package alerts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"agrovista.dev/panel/internal/upstream"
	"agrovista.dev/panel/pkg/mq"
)

// Severity classifies an alert for downstream routing.
type Severity string

const (
	// SeverityInfo marks transitions into a healthy status.
	SeverityInfo Severity = "info"
	// SeverityWarning marks transitions into a status needing
	// attention (maintenance, broken, out of service).
	SeverityWarning Severity = "warning"
)

// Alert is the message published for one zone status transition.
type Alert struct {
	Kind     string              `json:"kind"`
	Severity Severity            `json:"severity"`
	ZoneID   int64               `json:"zone_id"`
	ZoneName string              `json:"zone_name"`
	Sector   string              `json:"sector"`
	From     upstream.ZoneStatus `json:"from"`
	To       upstream.ZoneStatus `json:"to"`
	Reason   string              `json:"reason,omitempty"`
	At       time.Time           `json:"at"`
}

// AlertKindZoneStatus is the kind carried by zone transition alerts.
const AlertKindZoneStatus = "zone_status_change"

// Watcher diffs successive zone observations and publishes an alert
// per transition. The first observation only seeds the baseline; a
// restart must not replay the whole farm as "changes".
type Watcher struct {
	mu     sync.Mutex
	last   map[int64]upstream.ZoneStatus
	seeded bool
	queue  mq.ClientInterface
	logger *slog.Logger
	now    func() time.Time
}

// WatcherConfig configures a Watcher.
type WatcherConfig struct {
	Queue  mq.ClientInterface
	Logger *slog.Logger

	// Now overrides the clock, for tests. Defaults to time.Now.
	Now func() time.Time
}

// NewWatcher creates a watcher publishing to the given queue.
func NewWatcher(config WatcherConfig) (*Watcher, error) {
	if config.Queue == nil {
		return nil, errors.New("queue client is required")
	}
	if config.Logger == nil {
		return nil, errors.New("logger is required")
	}

	now := config.Now
	if now == nil {
		now = time.Now
	}

	return &Watcher{
		last:   make(map[int64]upstream.ZoneStatus),
		queue:  config.Queue,
		logger: config.Logger,
		now:    now,
	}, nil
}

// Observe records one poll's zone set and publishes an alert for every
// zone whose status changed since the previous observation. Zones seen
// for the first time after the baseline also alert, since a zone
// appearing mid-run is itself state the operator did not know about.
// Publish failures are logged per zone and do not stop the remaining
// alerts; the first error is returned.
func (w *Watcher) Observe(ctx context.Context, zones []upstream.IrrigationZone) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.seeded {
		for _, z := range zones {
			w.last[z.ID] = z.Status
		}
		w.seeded = true
		w.logger.Debug("alert baseline seeded", "zones", len(zones))
		return nil
	}

	var firstErr error
	for _, z := range zones {
		previous, known := w.last[z.ID]
		if known && previous == z.Status {
			continue
		}
		w.last[z.ID] = z.Status

		alert := Alert{
			Kind:     AlertKindZoneStatus,
			Severity: severityFor(z.Status),
			ZoneID:   z.ID,
			ZoneName: z.Name,
			Sector:   z.Sector,
			From:     previous,
			To:       z.Status,
			Reason:   z.Reason,
			At:       w.now(),
		}

		if err := w.publish(ctx, alert); err != nil {
			w.logger.Error("failed to publish zone alert",
				"zone_id", z.ID,
				"error", err,
			)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}

		w.logger.Info("zone status alert published",
			"zone_id", z.ID,
			"from", string(previous),
			"to", string(z.Status),
			"severity", string(alert.Severity),
		)
	}

	// Forget zones that disappeared so a later reappearance alerts
	// again instead of comparing against a stale status.
	seen := make(map[int64]bool, len(zones))
	for _, z := range zones {
		seen[z.ID] = true
	}
	for id := range w.last {
		if !seen[id] {
			delete(w.last, id)
		}
	}

	return firstErr
}

func (w *Watcher) publish(ctx context.Context, alert Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("encoding alert: %w", err)
	}
	return w.queue.Push(ctx, payload)
}

func severityFor(status upstream.ZoneStatus) Severity {
	if status.Troubled() {
		return SeverityWarning
	}
	return SeverityInfo
}
