package monitor

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/t77yq/roma-console/internal/model"
)

// DefaultInterval is the delay between two health refreshes
const DefaultInterval = 30 * time.Second

// HealthSource loads the backend health; *client.Client satisfies it
type HealthSource interface {
	GetHealth(ctx context.Context) (*model.Health, error)
}

// Option configures a HealthMonitor
type Option func(*HealthMonitor)

// WithInterval overrides DefaultInterval
func WithInterval(d time.Duration) Option {
	return func(m *HealthMonitor) {
		if d > 0 {
			m.interval = d
		}
	}
}

// WithListener is called after every successful refresh
func WithListener(fn func(*model.Health)) Option {
	return func(m *HealthMonitor) {
		m.listener = fn
	}
}

// HealthMonitor keeps the latest backend health snapshot fresh.
// A failed refresh keeps the previous snapshot.
type HealthMonitor struct {
	logger   *zap.Logger
	source   HealthSource
	interval time.Duration
	listener func(*model.Health)

	latest atomic.Pointer[model.Health]

	mu        sync.Mutex
	cancel    context.CancelFunc
	done      chan struct{}
	observers int
}

// NewHealthMonitor creates a stopped monitor
func NewHealthMonitor(source HealthSource, logger *zap.Logger, opts ...Option) *HealthMonitor {
	m := &HealthMonitor{
		logger:   logger.Named("health-monitor"),
		source:   source,
		interval: DefaultInterval,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Latest returns the most recent snapshot, or nil before the first successful refresh
func (m *HealthMonitor) Latest() *model.Health {
	return m.latest.Load()
}

// Status returns the latest health status, unknown before the first refresh
func (m *HealthMonitor) Status() model.HealthStatus {
	if h := m.latest.Load(); h != nil {
		return h.Status
	}
	return model.HealthStatusUnknown
}

// Running reports whether the refresh loop is active
func (m *HealthMonitor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cancel != nil
}

// Start refreshes immediately and then every interval until Stop
func (m *HealthMonitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.startLocked(ctx)
}

func (m *HealthMonitor) startLocked(ctx context.Context) error {
	if m.cancel != nil {
		return ErrAlreadyRunning
	}

	loopCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})

	m.logger.Info("Starting health monitor", zap.Duration("interval", m.interval))
	go m.refreshLoop(loopCtx, m.done)
	return nil
}

// Stop cancels the timer and waits for the loop to exit; no refresh completes afterwards.
// It is safe to call when not running.
func (m *HealthMonitor) Stop() {
	m.mu.Lock()
	done := m.stopLocked()
	m.mu.Unlock()

	m.wait(done)
}

// stopLocked cancels the loop and returns its done channel, nil when not running
func (m *HealthMonitor) stopLocked() chan struct{} {
	cancel, done := m.cancel, m.done
	m.cancel = nil
	m.done = nil
	if cancel != nil {
		cancel()
	}
	return done
}

func (m *HealthMonitor) wait(done chan struct{}) {
	if done == nil {
		return
	}
	<-done
	m.logger.Info("Health monitor stopped")
}

// Observe registers an observer. The first observer starts the monitor and
// the returned release function stops it once the last observer is gone.
func (m *HealthMonitor) Observe(ctx context.Context) func() {
	m.mu.Lock()
	m.observers++
	if m.observers == 1 {
		if err := m.startLocked(ctx); err != nil {
			m.logger.Debug("Health monitor already running", zap.Error(err))
		}
	}
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			var done chan struct{}
			m.mu.Lock()
			m.observers--
			if m.observers == 0 {
				done = m.stopLocked()
			}
			m.mu.Unlock()

			m.wait(done)
		})
	}
}

// Refresh fetches the health once and replaces the snapshot on success
func (m *HealthMonitor) Refresh(ctx context.Context) error {
	health, err := m.source.GetHealth(ctx)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil {
		m.logger.Warn("Failed to refresh health", zap.Error(err))
		return err
	}

	previous := m.latest.Swap(health)
	if previous == nil || previous.Status != health.Status {
		m.logger.Info("Backend health changed",
			zap.String("status", string(health.Status)),
			zap.String("version", health.Version))
	}

	if m.listener != nil {
		m.listener(health)
	}
	return nil
}

func (m *HealthMonitor) refreshLoop(ctx context.Context, done chan struct{}) {
	defer close(done)

	_ = m.Refresh(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = m.Refresh(ctx)
		}
	}
}
