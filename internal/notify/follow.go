package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/t77yq/roma-console/internal/model"
)

// Follow delivers notifications published by any console from now on until ctx is done.
// Health snapshots on the same stream are skipped.
func (c *NATSChannel) Follow(ctx context.Context, handler func(*model.Notification)) error {
	healthSubject := c.HealthSubject()

	sub, err := c.js.Subscribe(c.subjectPrefix+".*", func(msg *nats.Msg) {
		if msg.Subject == healthSubject {
			msg.Ack()
			return
		}

		var n model.Notification
		if err := json.Unmarshal(msg.Data, &n); err != nil {
			c.logger.Error("Failed to unmarshal notification",
				zap.String("subject", msg.Subject),
				zap.Error(err))
			return
		}

		handler(&n)
		msg.Ack()
	}, nats.DeliverNew())
	if err != nil {
		return fmt.Errorf("failed to subscribe to notifications: %w", err)
	}

	go func() {
		<-ctx.Done()
		sub.Unsubscribe()
	}()

	return nil
}
