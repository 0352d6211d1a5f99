// Package poll runs periodic fetch-and-commit cycles against the
// upstream API. Each poller owns one data concern (snapshot, latest
// reading, irrigation zones) and replaces its target state wholesale on
// every successful cycle.
package poll

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"agrovista.dev/panel/internal/upstream"
	"agrovista.dev/panel/pkg/metrics"
)

// DefaultInterval is the cadence shared by the dashboard pollers.
const DefaultInterval = 30 * time.Second

// ErrSkip can be returned by a fetch function to skip the cycle
// without treating it as a failure, for example while no operator is
// signed in.
var ErrSkip = errors.New("poll cycle skipped")

// Poller periodically calls fetch and hands the result to commit.
// Cycles run sequentially: a slow fetch delays the next tick rather
// than overlapping it, so the value committed last is always the value
// fetched last.
type Poller[T any] struct {
	name     string
	interval time.Duration
	fetch    func(ctx context.Context) (T, error)
	commit   func(T)
	onError  func(error)
	logger   *slog.Logger
	metrics  *metrics.DashboardMetrics
}

// Config describes one poller. Fetch and Commit are required; OnError
// is invoked with the fetch error when a cycle fails and may be nil.
type Config[T any] struct {
	Name     string
	Interval time.Duration
	Fetch    func(ctx context.Context) (T, error)
	Commit   func(T)
	OnError  func(error)
	Logger   *slog.Logger
	Metrics  *metrics.DashboardMetrics
}

// New creates a poller from config. It returns an error if required
// fields are missing so a miswired server fails at startup, not on the
// first tick.
func New[T any](config Config[T]) (*Poller[T], error) {
	if config.Name == "" {
		return nil, errors.New("poller name is required")
	}
	if config.Fetch == nil {
		return nil, errors.New("fetch function is required")
	}
	if config.Commit == nil {
		return nil, errors.New("commit function is required")
	}
	if config.Logger == nil {
		return nil, errors.New("logger is required")
	}

	interval := config.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}

	return &Poller[T]{
		name:     config.Name,
		interval: interval,
		fetch:    config.Fetch,
		commit:   config.Commit,
		onError:  config.OnError,
		logger:   config.Logger.With(slog.String("poller", config.Name)),
		metrics:  config.Metrics,
	}, nil
}

// Run executes cycles until ctx is cancelled. The first cycle runs
// immediately; subsequent cycles follow the configured interval.
func (p *Poller[T]) Run(ctx context.Context) {
	p.logger.Info("poller started", "interval", p.interval)

	p.cycle(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("poller stopped")
			return

		case <-ticker.C:
			p.cycle(ctx)
		}
	}
}

// cycle runs one fetch and commits the result. A result that arrives
// after cancellation is discarded: nothing may mutate state once the
// owner has shut down.
func (p *Poller[T]) cycle(ctx context.Context) {
	start := time.Now()
	if p.metrics != nil {
		p.metrics.PollCycles.WithLabelValues(p.name).Inc()
	}

	value, err := p.fetch(ctx)

	if p.metrics != nil {
		p.metrics.PollDuration.WithLabelValues(p.name).Observe(time.Since(start).Seconds())
	}

	if ctx.Err() != nil {
		return
	}

	if errors.Is(err, ErrSkip) {
		p.logger.Debug("poll cycle skipped")
		return
	}

	if err != nil {
		p.logger.Error("poll cycle failed", "error", err)
		if p.metrics != nil {
			p.metrics.PollFailures.WithLabelValues(p.name, failureReason(err)).Inc()
		}
		if p.onError != nil {
			p.onError(err)
		}
		return
	}

	p.commit(value)
	if p.metrics != nil {
		p.metrics.PollLastSuccess.WithLabelValues(p.name).SetToCurrentTime()
	}
}

func failureReason(err error) string {
	var (
		authErr      *upstream.AuthError
		transportErr *upstream.TransportError
		shapeErr     *upstream.DataShapeError
	)
	switch {
	case errors.As(err, &authErr):
		return "auth"
	case errors.As(err, &shapeErr):
		return "data_shape"
	case errors.As(err, &transportErr):
		return "transport"
	default:
		return "other"
	}
}
