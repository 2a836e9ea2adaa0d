package redis

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// InvalidationChannel carries allow-list change notifications.
const InvalidationChannel = "commits.invalidated"

// PublishInvalidation tells other instances to drop their allow-list snapshot.
func (c *Client) PublishInvalidation(ctx context.Context) {
	c.Publish(ctx, c.Channel(InvalidationChannel), time.Now().UTC().Format(time.RFC3339Nano))
}

// ListenInvalidations calls fn for every invalidation published by any instance
// (including this one) until ctx is cancelled.
func (c *Client) ListenInvalidations(ctx context.Context, fn func()) error {
	channel := c.Channel(InvalidationChannel)
	sub := c.Subscribe(ctx, channel)
	defer func() { _ = sub.Close() }()

	// Wait for the subscription confirmation so publishes after this point are not missed.
	if _, err := sub.Receive(ctx); err != nil {
		return err
	}

	c.logger.Info("Listening for allow-list invalidations", zap.String("channel", channel))

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			c.logger.Debug("Allow-list invalidation received",
				zap.String("channel", msg.Channel),
				zap.String("payload", msg.Payload))
			fn()
		}
	}
}
