package monitor

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/t77yq/roma-console/internal/client"
	"github.com/t77yq/roma-console/internal/model"
	"github.com/t77yq/roma-console/internal/testutil"
	"github.com/t77yq/roma-console/internal/transport"
)

func setupMonitor(t *testing.T, opts ...Option) (*HealthMonitor, *testutil.Backend, *testutil.Recorder) {
	t.Helper()

	backend := testutil.NewBackend(t)
	recorder := &testutil.Recorder{}
	tr, err := transport.New(backend.URL(), recorder, zaptest.NewLogger(t))
	require.NoError(t, err)

	m := NewHealthMonitor(client.New(tr, zaptest.NewLogger(t)), zaptest.NewLogger(t), opts...)
	t.Cleanup(m.Stop)
	return m, backend, recorder
}

type healthFunc func(ctx context.Context) (*model.Health, error)

func (f healthFunc) GetHealth(ctx context.Context) (*model.Health, error) {
	return f(ctx)
}

func TestHealthMonitor_ImmediateRefresh(t *testing.T) {
	m, _, _ := setupMonitor(t, WithInterval(time.Hour))

	assert.Nil(t, m.Latest())
	assert.Equal(t, model.HealthStatusUnknown, m.Status())

	require.NoError(t, m.Start(context.Background()))
	assert.ErrorIs(t, m.Start(context.Background()), ErrAlreadyRunning)

	assert.Eventually(t, func() bool { return m.Latest() != nil }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, model.HealthStatusHealthy, m.Status())
	assert.Equal(t, "0.1.0", m.Latest().Version)
}

func TestHealthMonitor_FailureKeepsPreviousSnapshot(t *testing.T) {
	m, backend, recorder := setupMonitor(t, WithInterval(20*time.Millisecond))

	require.NoError(t, m.Start(context.Background()))
	assert.Eventually(t, func() bool { return m.Latest() != nil }, 2*time.Second, 10*time.Millisecond)

	backend.FailWith(http.MethodGet, "/health", http.StatusServiceUnavailable, "down")
	before := backend.RequestCount(http.MethodGet, "/health")

	assert.Eventually(t, func() bool {
		return backend.RequestCount(http.MethodGet, "/health") >= before+3
	}, 2*time.Second, 10*time.Millisecond, "monitor must keep refreshing after failures")

	assert.True(t, m.Running())
	assert.Equal(t, model.HealthStatusHealthy, m.Status())
	assert.GreaterOrEqual(t, recorder.Count(model.NotificationLevelError), 3)

	backend.ClearFailures()
	backend.SetHealth(model.Health{Status: model.HealthStatusDegraded, Version: "0.2.0"})
	assert.Eventually(t, func() bool {
		return m.Status() == model.HealthStatusDegraded
	}, 2*time.Second, 10*time.Millisecond)
}

func TestHealthMonitor_StopHaltsRefreshes(t *testing.T) {
	m, backend, _ := setupMonitor(t, WithInterval(10*time.Millisecond))

	require.NoError(t, m.Start(context.Background()))
	assert.Eventually(t, func() bool {
		return backend.RequestCount(http.MethodGet, "/health") >= 2
	}, 2*time.Second, 10*time.Millisecond)

	m.Stop()
	assert.False(t, m.Running())
	count := backend.RequestCount(http.MethodGet, "/health")

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, count, backend.RequestCount(http.MethodGet, "/health"))

	assert.NotPanics(t, m.Stop)
}

func TestHealthMonitor_NoUpdateAfterStop(t *testing.T) {
	release := make(chan struct{})
	var calls int32
	source := healthFunc(func(ctx context.Context) (*model.Health, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			return &model.Health{Status: model.HealthStatusHealthy}, nil
		}
		<-release
		return &model.Health{Status: model.HealthStatusUnhealthy}, nil
	})

	m := NewHealthMonitor(source, zaptest.NewLogger(t), WithInterval(10*time.Millisecond))
	require.NoError(t, m.Start(context.Background()))
	assert.Eventually(t, func() bool { return atomic.LoadInt32(&calls) >= 2 }, 2*time.Second, 5*time.Millisecond)

	stopped := make(chan struct{})
	go func() {
		m.Stop()
		close(stopped)
	}()

	// the in-flight refresh finishes only after Stop has cancelled the loop
	time.Sleep(20 * time.Millisecond)
	close(release)
	<-stopped

	assert.Equal(t, model.HealthStatusHealthy, m.Status())
}

func TestHealthMonitor_Observe(t *testing.T) {
	var updates int32
	m, _, _ := setupMonitor(t,
		WithInterval(time.Hour),
		WithListener(func(*model.Health) { atomic.AddInt32(&updates, 1) }),
	)
	ctx := context.Background()

	release1 := m.Observe(ctx)
	release2 := m.Observe(ctx)
	assert.True(t, m.Running())
	assert.Eventually(t, func() bool { return atomic.LoadInt32(&updates) == 1 }, 2*time.Second, 10*time.Millisecond)

	release1()
	release1()
	assert.True(t, m.Running(), "second observer still holds the monitor")

	release2()
	assert.False(t, m.Running())

	release3 := m.Observe(ctx)
	assert.True(t, m.Running())
	release3()
	assert.False(t, m.Running())
}

func TestHealthMonitor_ObserveChurn(t *testing.T) {
	source := healthFunc(func(context.Context) (*model.Health, error) {
		return &model.Health{Status: model.HealthStatusHealthy}, nil
	})
	m := NewHealthMonitor(source, zaptest.NewLogger(t), WithInterval(time.Millisecond))
	t.Cleanup(m.Stop)
	ctx := context.Background()

	churn := func() {
		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				release := m.Observe(ctx)
				release()
			}()
		}
		wg.Wait()
	}

	churn()
	assert.False(t, m.Running(), "no observers left")

	hold := m.Observe(ctx)
	churn()
	assert.True(t, m.Running(), "held observer keeps the monitor running")

	hold()
	assert.False(t, m.Running())
}
