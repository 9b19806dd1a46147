package poller

import (
	"context"
	"errors"
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

type collector struct {
	mu        sync.Mutex
	snapshots []model.StatusSnapshot
}

func (c *collector) sink(s *model.StatusSnapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapshots = append(c.snapshots, *s)
}

func (c *collector) statuses() []model.ExecutionStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]model.ExecutionStatus, 0, len(c.snapshots))
	for _, s := range c.snapshots {
		out = append(out, s.Status)
	}
	return out
}

func waitDone(t *testing.T, p *Poller) {
	t.Helper()
	select {
	case <-p.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("poller did not terminate")
	}
}

func TestNew_Validation(t *testing.T) {
	logger := zaptest.NewLogger(t)
	fetcher := FetcherFunc(func(context.Context, string) (*model.StatusSnapshot, error) { return nil, nil })

	_, err := New(fetcher, " ", func(*model.StatusSnapshot) {}, logger)
	assert.ErrorIs(t, err, ErrEmptyExecutionID)

	_, err = New(fetcher, "exec-1", nil, logger)
	assert.ErrorIs(t, err, ErrNilSink)
}

func TestPoller_StopsAtTerminalStatus(t *testing.T) {
	backend := testutil.NewBackend(t)
	backend.ScriptStatus("exec-1",
		model.ExecutionStatusRunning,
		model.ExecutionStatusRunning,
		model.ExecutionStatusCompleted,
	)

	recorder := &testutil.Recorder{}
	tr, err := transport.New(backend.URL(), recorder, zaptest.NewLogger(t))
	require.NoError(t, err)
	c := client.New(tr, zaptest.NewLogger(t))

	var got collector
	p, err := New(c, "exec-1", got.sink, zaptest.NewLogger(t), WithInterval(10*time.Millisecond))
	require.NoError(t, err)
	assert.Equal(t, StateIdle, p.State())

	require.NoError(t, p.Start(context.Background()))
	waitDone(t, p)

	assert.Equal(t, []model.ExecutionStatus{
		model.ExecutionStatusRunning,
		model.ExecutionStatusRunning,
		model.ExecutionStatusCompleted,
	}, got.statuses())
	assert.Equal(t, StateTerminated, p.State())

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 3, backend.StatusCalls("exec-1"))
	assert.Zero(t, recorder.Len())
}

func TestPoller_FirstFetchIsImmediate(t *testing.T) {
	fetched := make(chan struct{}, 1)
	fetcher := FetcherFunc(func(context.Context, string) (*model.StatusSnapshot, error) {
		fetched <- struct{}{}
		return &model.StatusSnapshot{Status: model.ExecutionStatusCompleted}, nil
	})

	p, err := New(fetcher, "exec-1", func(*model.StatusSnapshot) {}, zaptest.NewLogger(t), WithInterval(time.Hour))
	require.NoError(t, err)
	require.NoError(t, p.Start(context.Background()))

	select {
	case <-fetched:
	case <-time.After(time.Second):
		t.Fatal("first fetch was not immediate")
	}
	waitDone(t, p)
}

func TestPoller_NoOverlappingFetches(t *testing.T) {
	var inFlight, maxInFlight, calls int32
	fetcher := FetcherFunc(func(ctx context.Context, _ string) (*model.StatusSnapshot, error) {
		n := atomic.AddInt32(&inFlight, 1)
		defer atomic.AddInt32(&inFlight, -1)
		for {
			m := atomic.LoadInt32(&maxInFlight)
			if n <= m || atomic.CompareAndSwapInt32(&maxInFlight, m, n) {
				break
			}
		}
		atomic.AddInt32(&calls, 1)

		time.Sleep(20 * time.Millisecond)
		return &model.StatusSnapshot{Status: model.ExecutionStatusRunning}, nil
	})

	p, err := New(fetcher, "exec-1", func(*model.StatusSnapshot) {}, zaptest.NewLogger(t), WithInterval(time.Millisecond))
	require.NoError(t, err)
	require.NoError(t, p.Start(context.Background()))

	time.Sleep(150 * time.Millisecond)
	p.Cancel()
	waitDone(t, p)

	assert.Equal(t, int32(1), atomic.LoadInt32(&maxInFlight))
	assert.Greater(t, atomic.LoadInt32(&calls), int32(1))
}

func TestPoller_FailuresKeepPolling(t *testing.T) {
	var calls int32
	fetcher := FetcherFunc(func(context.Context, string) (*model.StatusSnapshot, error) {
		if atomic.AddInt32(&calls, 1) <= 2 {
			return nil, errors.New("backend unavailable")
		}
		return &model.StatusSnapshot{Status: model.ExecutionStatusFailed}, nil
	})

	var got collector
	p, err := New(fetcher, "exec-1", got.sink, zaptest.NewLogger(t), WithInterval(5*time.Millisecond))
	require.NoError(t, err)
	require.NoError(t, p.Start(context.Background()))
	waitDone(t, p)

	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	assert.Equal(t, []model.ExecutionStatus{model.ExecutionStatusFailed}, got.statuses())
}

func TestPoller_EmptySnapshotCountsAsFailure(t *testing.T) {
	var calls int32
	fetcher := FetcherFunc(func(context.Context, string) (*model.StatusSnapshot, error) {
		if atomic.AddInt32(&calls, 1) <= 2 {
			return nil, nil
		}
		return &model.StatusSnapshot{Status: model.ExecutionStatusCompleted}, nil
	})

	var got collector
	p, err := New(fetcher, "exec-1", got.sink, zaptest.NewLogger(t), WithInterval(5*time.Millisecond))
	require.NoError(t, err)
	require.NoError(t, p.Start(context.Background()))
	waitDone(t, p)

	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	assert.Equal(t, []model.ExecutionStatus{model.ExecutionStatusCompleted}, got.statuses())
}

func TestPoller_NoDeliveryAfterCancel(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	fetcher := FetcherFunc(func(context.Context, string) (*model.StatusSnapshot, error) {
		close(started)
		<-release
		return &model.StatusSnapshot{Status: model.ExecutionStatusRunning}, nil
	})

	var got collector
	p, err := New(fetcher, "exec-1", got.sink, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NoError(t, p.Start(context.Background()))

	<-started
	p.Cancel()
	close(release)
	waitDone(t, p)

	assert.Empty(t, got.statuses())
	assert.Equal(t, StateTerminated, p.State())
}

func TestPoller_ParentContextCancellation(t *testing.T) {
	fetcher := FetcherFunc(func(context.Context, string) (*model.StatusSnapshot, error) {
		return &model.StatusSnapshot{Status: model.ExecutionStatusRunning}, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	p, err := New(fetcher, "exec-1", func(*model.StatusSnapshot) {}, zaptest.NewLogger(t), WithInterval(time.Hour))
	require.NoError(t, err)
	require.NoError(t, p.Start(ctx))

	cancel()
	waitDone(t, p)
}

func TestPoller_CancelIsIdempotent(t *testing.T) {
	fetcher := FetcherFunc(func(context.Context, string) (*model.StatusSnapshot, error) {
		return &model.StatusSnapshot{Status: model.ExecutionStatusCancelled}, nil
	})

	t.Run("before start", func(t *testing.T) {
		p, err := New(fetcher, "exec-1", func(*model.StatusSnapshot) {}, zaptest.NewLogger(t))
		require.NoError(t, err)

		p.Cancel()
		p.Cancel()
		waitDone(t, p)
		assert.ErrorIs(t, p.Start(context.Background()), ErrTerminated)
	})

	t.Run("after termination", func(t *testing.T) {
		p, err := New(fetcher, "exec-1", func(*model.StatusSnapshot) {}, zaptest.NewLogger(t))
		require.NoError(t, err)
		require.NoError(t, p.Start(context.Background()))
		waitDone(t, p)

		assert.NotPanics(t, func() {
			p.Cancel()
			p.Cancel()
		})
		assert.Equal(t, StateTerminated, p.State())
	})

	t.Run("double start", func(t *testing.T) {
		block := make(chan struct{})
		slow := FetcherFunc(func(ctx context.Context, _ string) (*model.StatusSnapshot, error) {
			select {
			case <-block:
			case <-ctx.Done():
			}
			return nil, ctx.Err()
		})
		p, err := New(slow, "exec-1", func(*model.StatusSnapshot) {}, zaptest.NewLogger(t))
		require.NoError(t, err)
		require.NoError(t, p.Start(context.Background()))
		assert.ErrorIs(t, p.Start(context.Background()), ErrAlreadyStarted)

		p.Cancel()
		waitDone(t, p)
		close(block)
	})
}

func TestStrategies(t *testing.T) {
	fixed := &FixedInterval{Interval: 3 * time.Second}
	assert.Equal(t, 3*time.Second, fixed.Next(0))
	assert.Equal(t, 3*time.Second, fixed.Next(7))
	assert.Equal(t, DefaultInterval, (&FixedInterval{}).Next(0))

	backoff := &ExponentialBackoff{
		InitialDelay: time.Second,
		MaxDelay:     10 * time.Second,
		Multiplier:   2,
	}
	tests := []struct {
		failures int
		want     time.Duration
	}{
		{0, time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 10 * time.Second},
		{50, 10 * time.Second},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, backoff.Next(tt.failures), "failures=%d", tt.failures)
	}
}

func TestWatcher(t *testing.T) {
	fetcher := FetcherFunc(func(ctx context.Context, id string) (*model.StatusSnapshot, error) {
		return &model.StatusSnapshot{ExecutionID: id, Status: model.ExecutionStatusRunning}, nil
	})
	w := NewWatcher(fetcher, zaptest.NewLogger(t), WithInterval(10*time.Millisecond))
	ctx := context.Background()

	p1, err := w.Watch(ctx, "exec-1", func(*model.StatusSnapshot) {})
	require.NoError(t, err)
	again, err := w.Watch(ctx, "exec-1", func(*model.StatusSnapshot) {})
	require.NoError(t, err)
	assert.Same(t, p1, again)

	p2, err := w.Watch(ctx, "exec-2", func(*model.StatusSnapshot) {})
	require.NoError(t, err)
	assert.Equal(t, []string{"exec-1", "exec-2"}, w.Watching())

	w.Unwatch("exec-1")
	waitDone(t, p1)
	assert.Equal(t, []string{"exec-2"}, w.Watching())

	w.StopAll()
	waitDone(t, p2)
	assert.Empty(t, w.Watching())

	_, err = w.Watch(ctx, "", func(*model.StatusSnapshot) {})
	assert.ErrorIs(t, err, ErrEmptyExecutionID)
}

func TestWatcher_WhitespaceVariantsShareOnePoller(t *testing.T) {
	var calls int32
	fetcher := FetcherFunc(func(_ context.Context, id string) (*model.StatusSnapshot, error) {
		atomic.AddInt32(&calls, 1)
		return &model.StatusSnapshot{ExecutionID: id, Status: model.ExecutionStatusRunning}, nil
	})
	w := NewWatcher(fetcher, zaptest.NewLogger(t), WithInterval(5*time.Millisecond))
	ctx := context.Background()

	first, err := w.Watch(ctx, "exec-1", func(*model.StatusSnapshot) {})
	require.NoError(t, err)
	padded, err := w.Watch(ctx, " exec-1 ", func(*model.StatusSnapshot) {})
	require.NoError(t, err)
	assert.Same(t, first, padded)
	assert.Equal(t, []string{"exec-1"}, w.Watching())

	w.Unwatch("exec-1\t")
	waitDone(t, first)
	assert.Equal(t, StateTerminated, first.State())
	assert.Empty(t, w.Watching())

	second, err := w.Watch(ctx, "exec-1", func(*model.StatusSnapshot) {})
	require.NoError(t, err)
	_, err = w.Watch(ctx, "exec-1 ", func(*model.StatusSnapshot) {})
	require.NoError(t, err)
	w.StopAll()
	waitDone(t, second)

	stopped := atomic.LoadInt32(&calls)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, stopped, atomic.LoadInt32(&calls), "no poller may keep fetching after StopAll")
}

func TestWatcher_ForgetsTerminatedPollers(t *testing.T) {
	fetcher := FetcherFunc(func(context.Context, string) (*model.StatusSnapshot, error) {
		return &model.StatusSnapshot{Status: model.ExecutionStatusCompleted}, nil
	})
	w := NewWatcher(fetcher, zaptest.NewLogger(t))

	p, err := w.Watch(context.Background(), "exec-1", func(*model.StatusSnapshot) {})
	require.NoError(t, err)
	waitDone(t, p)

	assert.Eventually(t, func() bool { return len(w.Watching()) == 0 }, time.Second, 10*time.Millisecond)
}
