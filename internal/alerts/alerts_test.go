package alerts_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"agrovista.dev/panel/internal/alerts"
	"agrovista.dev/panel/internal/upstream"
	"agrovista.dev/panel/pkg/logger"
	"agrovista.dev/panel/pkg/mq/mock"
)

func TestAlerts(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Alerts Suite")
}

var _ = Describe("Watcher", func() {
	var (
		queue   *mock.MockClient
		watcher *alerts.Watcher
		now     time.Time
	)

	zone := func(id int64, status upstream.ZoneStatus) upstream.IrrigationZone {
		return upstream.IrrigationZone{
			ID:     id,
			Name:   "Zona Norte",
			Sector: "A",
			Status: status,
		}
	}

	decode := func(data []byte) alerts.Alert {
		var a alerts.Alert
		Expect(json.Unmarshal(data, &a)).To(Succeed())
		return a
	}

	BeforeEach(func() {
		queue = mock.NewMockClient()
		now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

		var err error
		watcher, err = alerts.NewWatcher(alerts.WatcherConfig{
			Queue:  queue,
			Logger: logger.NewDefault(),
			Now:    func() time.Time { return now },
		})
		Expect(err).NotTo(HaveOccurred())
	})

	It("should require a queue and a logger", func() {
		_, err := alerts.NewWatcher(alerts.WatcherConfig{Logger: logger.NewDefault()})
		Expect(err).To(MatchError("queue client is required"))

		_, err = alerts.NewWatcher(alerts.WatcherConfig{Queue: queue})
		Expect(err).To(MatchError("logger is required"))
	})

	It("should not alert on the first observation", func() {
		Expect(watcher.Observe(context.Background(), []upstream.IrrigationZone{
			zone(1, upstream.ZoneBroken),
			zone(2, upstream.ZoneOn),
		})).To(Succeed())

		Expect(queue.Pushed()).To(BeEmpty())
	})

	It("should alert once per status transition", func() {
		ctx := context.Background()
		Expect(watcher.Observe(ctx, []upstream.IrrigationZone{zone(1, upstream.ZoneOn)})).To(Succeed())
		Expect(watcher.Observe(ctx, []upstream.IrrigationZone{zone(1, upstream.ZoneBroken)})).To(Succeed())
		Expect(watcher.Observe(ctx, []upstream.IrrigationZone{zone(1, upstream.ZoneBroken)})).To(Succeed())

		pushed := queue.Pushed()
		Expect(pushed).To(HaveLen(1))

		alert := decode(pushed[0])
		Expect(alert.Kind).To(Equal(alerts.AlertKindZoneStatus))
		Expect(alert.ZoneID).To(BeEquivalentTo(1))
		Expect(alert.From).To(Equal(upstream.ZoneOn))
		Expect(alert.To).To(Equal(upstream.ZoneBroken))
		Expect(alert.Severity).To(Equal(alerts.SeverityWarning))
		Expect(alert.At).To(BeTemporally("==", now))
	})

	It("should mark recoveries as informational", func() {
		ctx := context.Background()
		Expect(watcher.Observe(ctx, []upstream.IrrigationZone{zone(1, upstream.ZoneMaintenance)})).To(Succeed())
		Expect(watcher.Observe(ctx, []upstream.IrrigationZone{zone(1, upstream.ZoneOn)})).To(Succeed())

		pushed := queue.Pushed()
		Expect(pushed).To(HaveLen(1))
		Expect(decode(pushed[0]).Severity).To(Equal(alerts.SeverityInfo))
	})

	It("should alert for zones appearing after the baseline", func() {
		ctx := context.Background()
		Expect(watcher.Observe(ctx, []upstream.IrrigationZone{zone(1, upstream.ZoneOn)})).To(Succeed())
		Expect(watcher.Observe(ctx, []upstream.IrrigationZone{
			zone(1, upstream.ZoneOn),
			zone(2, upstream.ZoneOutOfService),
		})).To(Succeed())

		pushed := queue.Pushed()
		Expect(pushed).To(HaveLen(1))

		alert := decode(pushed[0])
		Expect(alert.ZoneID).To(BeEquivalentTo(2))
		Expect(alert.From).To(BeEmpty())
		Expect(alert.Severity).To(Equal(alerts.SeverityWarning))
	})

	It("should alert again when a vanished zone reappears", func() {
		ctx := context.Background()
		Expect(watcher.Observe(ctx, []upstream.IrrigationZone{zone(1, upstream.ZoneOn)})).To(Succeed())
		Expect(watcher.Observe(ctx, nil)).To(Succeed())
		Expect(watcher.Observe(ctx, []upstream.IrrigationZone{zone(1, upstream.ZoneOn)})).To(Succeed())

		Expect(queue.Pushed()).To(HaveLen(1))
	})

	It("should keep publishing after a failed push and return the first error", func() {
		pushErr := errors.New("broker unavailable")
		failFirst := true
		queue.PushFunc = func(ctx context.Context, data []byte) error {
			if failFirst {
				failFirst = false
				return pushErr
			}
			return nil
		}

		ctx := context.Background()
		Expect(watcher.Observe(ctx, []upstream.IrrigationZone{
			zone(1, upstream.ZoneOn),
			zone(2, upstream.ZoneOn),
		})).To(Succeed())

		err := watcher.Observe(ctx, []upstream.IrrigationZone{
			zone(1, upstream.ZoneBroken),
			zone(2, upstream.ZoneMaintenance),
		})
		Expect(err).To(MatchError(pushErr))
		Expect(queue.PushCalls).To(HaveLen(2))
	})
})
