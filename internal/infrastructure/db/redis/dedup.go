package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const dedupWindow = 24 * time.Hour

// NotificationDedup suppresses repeated threshold alerts for the same user
// within a rolling window. It lives at the notification delivery boundary:
// billing itself carries no dedup state, only a stable correlation.
// Key format: notif:<user_id>:<type>
type NotificationDedup struct {
	client *redis.Client
}

// NewNotificationDedup creates a NotificationDedup wrapping the given client.
func NewNotificationDedup(client *redis.Client) *NotificationDedup {
	return &NotificationDedup{client: client}
}

// FirstInWindow atomically claims the (userID, typeKey) slot for the current
// window. It returns true when this is the first signal in the window and
// the caller should deliver; false means a duplicate to be dropped.
func (d *NotificationDedup) FirstInWindow(ctx context.Context, userID, typeKey string) (bool, error) {
	ok, err := d.client.SetNX(ctx, d.key(userID, typeKey), "1", dedupWindow).Result()
	if err != nil {
		return false, fmt.Errorf("notification dedup: %w", err)
	}
	return ok, nil
}

func (d *NotificationDedup) key(userID, typeKey string) string {
	return fmt.Sprintf("notif:%s:%s", userID, typeKey)
}
