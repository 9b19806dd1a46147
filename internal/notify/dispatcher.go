package notify

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/t77yq/roma-console/internal/model"
)

// Channel delivers notifications to one destination
type Channel interface {
	Send(n *model.Notification) error
}

// ChannelFunc adapts a function to Channel
type ChannelFunc func(n *model.Notification) error

// Send implements Channel
func (f ChannelFunc) Send(n *model.Notification) error {
	return f(n)
}

// Dispatcher is the single path by which notifications reach the operator.
// Each call to Notify produces one notification fanned out to every channel.
type Dispatcher struct {
	logger   *zap.Logger
	mu       sync.RWMutex
	channels map[string]Channel
	now      func() time.Time
}

// NewDispatcher creates a dispatcher with no channels
func NewDispatcher(logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		logger:   logger.Named("notify"),
		channels: make(map[string]Channel),
		now:      time.Now,
	}
}

// Register adds or replaces a named channel
func (d *Dispatcher) Register(name string, ch Channel) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.channels[name] = ch
}

// Unregister removes a named channel
func (d *Dispatcher) Unregister(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.channels, name)
}

// Channels returns the registered channel names in sorted order
func (d *Dispatcher) Channels() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	names := make([]string, 0, len(d.channels))
	for name := range d.channels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Notify fills in identity and time, then sends n to every channel.
// Channel failures are logged and never returned.
func (d *Dispatcher) Notify(n *model.Notification) {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = d.now()
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	for name, ch := range d.channels {
		if err := ch.Send(n); err != nil {
			d.logger.Error("Failed to deliver notification",
				zap.String("channel", name),
				zap.String("notification_id", n.ID),
				zap.Error(err))
		}
	}
}

// Success emits a success notification
func (d *Dispatcher) Success(operation, message string) {
	d.Notify(&model.Notification{
		Level:     model.NotificationLevelSuccess,
		Operation: operation,
		Message:   message,
	})
}

// Error emits an error notification of the given kind
func (d *Dispatcher) Error(operation, kind, message string) {
	d.Notify(&model.Notification{
		Level:     model.NotificationLevelError,
		Kind:      kind,
		Operation: operation,
		Message:   message,
	})
}
