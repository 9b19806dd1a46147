package testutil

import (
	"sync"

	"github.com/t77yq/roma-console/internal/model"
)

// Recorder captures notifications in memory
type Recorder struct {
	mu            sync.Mutex
	notifications []model.Notification
}

// Notify records n
func (r *Recorder) Notify(n *model.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notifications = append(r.notifications, *n)
}

// Send implements notify.Channel
func (r *Recorder) Send(n *model.Notification) error {
	r.Notify(n)
	return nil
}

// All returns a copy of everything recorded so far
func (r *Recorder) All() []model.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.Notification, len(r.notifications))
	copy(out, r.notifications)
	return out
}

// Count returns the number of notifications with the given level
func (r *Recorder) Count(level model.NotificationLevel) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, item := range r.notifications {
		if item.Level == level {
			n++
		}
	}
	return n
}

// Len returns the total number of notifications
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.notifications)
}

// Reset clears the recorder
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notifications = nil
}
