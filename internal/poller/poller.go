package poller

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/t77yq/roma-console/internal/model"
)

// State is the lifecycle state of a poller
type State string

const (
	StateIdle       State = "idle"
	StatePolling    State = "polling"
	StateTerminated State = "terminated"
)

// Fetcher loads the current status of an execution; *client.Client satisfies it
type Fetcher interface {
	GetStatus(ctx context.Context, executionID string) (*model.StatusSnapshot, error)
}

// FetcherFunc adapts a function to Fetcher
type FetcherFunc func(ctx context.Context, executionID string) (*model.StatusSnapshot, error)

// GetStatus calls f
func (f FetcherFunc) GetStatus(ctx context.Context, executionID string) (*model.StatusSnapshot, error) {
	return f(ctx, executionID)
}

// Sink receives every successfully fetched snapshot, in fetch order
type Sink func(*model.StatusSnapshot)

// Option configures a Poller
type Option func(*Poller)

// WithInterval sets a fixed delay between fetches
func WithInterval(d time.Duration) Option {
	return func(p *Poller) {
		p.strategy = &FixedInterval{Interval: d}
	}
}

// WithStrategy replaces the delay strategy
func WithStrategy(s Strategy) Option {
	return func(p *Poller) {
		if s != nil {
			p.strategy = s
		}
	}
}

// Poller repeatedly fetches the status of one execution until it reaches
// a terminal status or is cancelled. Fetches never overlap.
type Poller struct {
	logger      *zap.Logger
	fetcher     Fetcher
	executionID string
	sink        Sink
	strategy    Strategy

	mu     sync.Mutex
	state  State
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates an idle poller
func New(fetcher Fetcher, executionID string, sink Sink, logger *zap.Logger, opts ...Option) (*Poller, error) {
	executionID = strings.TrimSpace(executionID)
	if executionID == "" {
		return nil, ErrEmptyExecutionID
	}
	if sink == nil {
		return nil, ErrNilSink
	}

	p := &Poller{
		logger:      logger.Named("poller").With(zap.String("execution_id", executionID)),
		fetcher:     fetcher,
		executionID: executionID,
		sink:        sink,
		strategy:    &FixedInterval{Interval: DefaultInterval},
		state:       StateIdle,
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// ExecutionID returns the observed execution
func (p *Poller) ExecutionID() string {
	return p.executionID
}

// State returns the current lifecycle state
func (p *Poller) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Done is closed once the poller has terminated
func (p *Poller) Done() <-chan struct{} {
	return p.done
}

// Start performs the first fetch immediately and keeps polling in the background
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch p.state {
	case StatePolling:
		return ErrAlreadyStarted
	case StateTerminated:
		return ErrTerminated
	}

	p.ctx, p.cancel = context.WithCancel(ctx)
	p.state = StatePolling
	p.logger.Debug("Starting status polling")

	go p.run()
	return nil
}

// Cancel stops polling. It is safe to call at any time and more than once.
// No delivery starts after Cancel returns.
func (p *Poller) Cancel() {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch p.state {
	case StateIdle:
		p.state = StateTerminated
		close(p.done)
	case StatePolling:
		p.cancel()
	}
}

func (p *Poller) run() {
	defer p.terminate()

	failures := 0
	for {
		snapshot, err := p.fetcher.GetStatus(p.ctx, p.executionID)
		if p.ctx.Err() != nil {
			return
		}
		if err == nil && snapshot == nil {
			err = ErrEmptySnapshot
		}

		if err != nil {
			failures++
			p.logger.Warn("Failed to fetch execution status",
				zap.Int("failures", failures),
				zap.Error(err))
		} else {
			failures = 0
			if !p.deliver(snapshot) {
				return
			}
			if snapshot.Status.IsTerminal() {
				p.logger.Debug("Execution reached terminal status",
					zap.String("status", string(snapshot.Status)))
				return
			}
		}

		timer := time.NewTimer(p.strategy.Next(failures))
		select {
		case <-p.ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

func (p *Poller) deliver(snapshot *model.StatusSnapshot) bool {
	p.mu.Lock()
	if p.ctx.Err() != nil {
		p.mu.Unlock()
		return false
	}
	p.mu.Unlock()

	p.sink(snapshot)
	return true
}

func (p *Poller) terminate() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.cancel()
	p.state = StateTerminated
	close(p.done)
	p.logger.Debug("Status polling stopped")
}
