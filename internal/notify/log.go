package notify

import (
	"go.uber.org/zap"

	"github.com/t77yq/roma-console/internal/model"
)

// LogChannel writes notifications to a zap logger
type LogChannel struct {
	logger *zap.Logger
}

// NewLogChannel creates a log channel
func NewLogChannel(logger *zap.Logger) *LogChannel {
	return &LogChannel{logger: logger.Named("notifications")}
}

// Send implements Channel
func (c *LogChannel) Send(n *model.Notification) error {
	fields := []zap.Field{
		zap.String("notification_id", n.ID),
		zap.String("level", string(n.Level)),
	}
	if n.Kind != "" {
		fields = append(fields, zap.String("kind", n.Kind))
	}
	if n.Operation != "" {
		fields = append(fields, zap.String("operation", n.Operation))
	}

	switch n.Level {
	case model.NotificationLevelError:
		c.logger.Error(n.Message, fields...)
	case model.NotificationLevelWarning:
		c.logger.Warn(n.Message, fields...)
	default:
		c.logger.Info(n.Message, fields...)
	}
	return nil
}
