package ports

import (
	"context"

	"github.com/agentrun/billing-engine/internal/core/domain"
)

// NotificationSink accepts threshold notification requests for asynchronous,
// fire-and-forget delivery. Enqueue never blocks the deduction path and its
// failures never unwind a committed deduction.
type NotificationSink interface {
	Enqueue(req domain.NotificationRequest)
}

// NotificationPublisher delivers a single notification request to the
// external notification collaborator.
type NotificationPublisher interface {
	Publish(ctx context.Context, req domain.NotificationRequest) error
}
