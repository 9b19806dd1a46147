package poller

import (
	"context"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Watcher keeps at most one poller per observed execution
type Watcher struct {
	logger  *zap.Logger
	fetcher Fetcher
	opts    []Option

	mu      sync.Mutex
	pollers map[string]*Poller
}

// NewWatcher creates a watcher whose pollers share fetcher and opts
func NewWatcher(fetcher Fetcher, logger *zap.Logger, opts ...Option) *Watcher {
	return &Watcher{
		logger:  logger,
		fetcher: fetcher,
		opts:    opts,
		pollers: make(map[string]*Poller),
	}
}

// Watch starts polling executionID. If it is already watched the existing poller is returned.
func (w *Watcher) Watch(ctx context.Context, executionID string, sink Sink) (*Poller, error) {
	executionID = strings.TrimSpace(executionID)

	w.mu.Lock()
	defer w.mu.Unlock()

	if existing, ok := w.pollers[executionID]; ok {
		return existing, nil
	}

	p, err := New(w.fetcher, executionID, sink, w.logger, w.opts...)
	if err != nil {
		return nil, err
	}
	if err := p.Start(ctx); err != nil {
		return nil, err
	}
	w.pollers[executionID] = p

	go func() {
		<-p.Done()
		w.mu.Lock()
		defer w.mu.Unlock()
		if w.pollers[executionID] == p {
			delete(w.pollers, executionID)
		}
	}()

	return p, nil
}

// Unwatch cancels the poller of executionID, if any
func (w *Watcher) Unwatch(executionID string) {
	executionID = strings.TrimSpace(executionID)

	w.mu.Lock()
	p, ok := w.pollers[executionID]
	delete(w.pollers, executionID)
	w.mu.Unlock()

	if ok {
		p.Cancel()
	}
}

// Watching returns the ids currently observed
func (w *Watcher) Watching() []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	ids := make([]string, 0, len(w.pollers))
	for id := range w.pollers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// StopAll cancels every poller
func (w *Watcher) StopAll() {
	w.mu.Lock()
	pollers := w.pollers
	w.pollers = make(map[string]*Poller)
	w.mu.Unlock()

	for _, p := range pollers {
		p.Cancel()
	}
}
