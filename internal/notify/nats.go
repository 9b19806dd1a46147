package notify

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/t77yq/roma-console/internal/model"
)

const (
	// DefaultStreamName is the JetStream stream holding console notifications
	DefaultStreamName = "NOTIFICATIONS"
	// DefaultSubjectPrefix is suffixed with the notification level
	DefaultSubjectPrefix = "console.notifications"

	streamMaxAge = 24 * time.Hour
)

// NATSChannel publishes notifications to JetStream so other operator
// tooling can subscribe to them
type NATSChannel struct {
	logger        *zap.Logger
	js            nats.JetStreamContext
	streamName    string
	subjectPrefix string
}

// NewNATSChannel creates a channel publishing under subjectPrefix.<level>
func NewNATSChannel(js nats.JetStreamContext, streamName, subjectPrefix string, logger *zap.Logger) *NATSChannel {
	if streamName == "" {
		streamName = DefaultStreamName
	}
	if subjectPrefix == "" {
		subjectPrefix = DefaultSubjectPrefix
	}
	return &NATSChannel{
		logger:        logger.Named("nats-channel"),
		js:            js,
		streamName:    streamName,
		subjectPrefix: subjectPrefix,
	}
}

// EnsureStream creates the notification stream if it does not exist
func (c *NATSChannel) EnsureStream() error {
	stream, err := c.js.StreamInfo(c.streamName)
	if err != nil && !errors.Is(err, nats.ErrStreamNotFound) {
		return fmt.Errorf("failed to get stream info: %w", err)
	}
	if stream != nil {
		c.logger.Info("Using existing notification stream", zap.String("name", c.streamName))
		return nil
	}

	_, err = c.js.AddStream(&nats.StreamConfig{
		Name:     c.streamName,
		Subjects: []string{c.subjectPrefix + ".*"},
		Storage:  nats.FileStorage,
		MaxAge:   streamMaxAge,
		MaxMsgs:  -1,
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}
	c.logger.Info("Created notification stream", zap.String("name", c.streamName))
	return nil
}

// Subject returns the subject a notification of the given level is published on
func (c *NATSChannel) Subject(level model.NotificationLevel) string {
	return c.subjectPrefix + "." + string(level)
}

// Send implements Channel
func (c *NATSChannel) Send(n *model.Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	if _, err := c.js.Publish(c.Subject(n.Level), data, nats.MsgId(n.ID)); err != nil {
		return fmt.Errorf("failed to publish notification: %w", err)
	}
	return nil
}

// HealthSubject returns the subject health snapshots are published on
func (c *NATSChannel) HealthSubject() string {
	return c.subjectPrefix + ".health"
}

// PublishHealth publishes a backend health snapshot
func (c *NATSChannel) PublishHealth(h *model.Health) error {
	data, err := json.Marshal(h)
	if err != nil {
		return fmt.Errorf("failed to marshal health: %w", err)
	}

	if _, err := c.js.Publish(c.HealthSubject(), data); err != nil {
		return fmt.Errorf("failed to publish health: %w", err)
	}

	c.logger.Debug("Health published",
		zap.String("status", string(h.Status)),
		zap.Int("active_executions", h.ActiveExecutions))
	return nil
}
