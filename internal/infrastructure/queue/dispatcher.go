package queue

import (
	"context"
	"hash/fnv"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/agentrun/billing-engine/internal/api/metrics"
	"github.com/agentrun/billing-engine/internal/core/domain"
	"github.com/agentrun/billing-engine/internal/core/ports"
)

const (
	defaultWorkers = 4
	channelBuffer  = 256
)

// Deduper decides whether a (user, type) signal is the first in its window.
type Deduper interface {
	FirstInWindow(ctx context.Context, userID, typeKey string) (bool, error)
}

// Dispatcher fans notification requests out to a fixed set of workers using
// consistent hashing on the user id, preserving per-user delivery order.
// Delivery is fire-and-forget: failures are logged and never reach the
// billing path.
type Dispatcher struct {
	workers   []chan domain.NotificationRequest
	publisher ports.NotificationPublisher
	dedup     Deduper
	log       zerolog.Logger
}

// NewDispatcher creates a Dispatcher with numWorkers sharded workers.
// If numWorkers <= 0, defaultWorkers is used.
func NewDispatcher(numWorkers int, publisher ports.NotificationPublisher, dedup Deduper, log zerolog.Logger) *Dispatcher {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	d := &Dispatcher{
		workers:   make([]chan domain.NotificationRequest, numWorkers),
		publisher: publisher,
		dedup:     dedup,
		log:       log,
	}
	for i := range d.workers {
		d.workers[i] = make(chan domain.NotificationRequest, channelBuffer)
	}
	return d
}

// Start launches all worker goroutines. Workers stop when ctx is cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	for i, ch := range d.workers {
		go d.runWorker(ctx, i, ch)
	}
}

// Enqueue hands a request to the worker responsible for its user. A full
// worker channel drops the request rather than blocking the caller.
func (d *Dispatcher) Enqueue(req domain.NotificationRequest) {
	i := d.shardIndex(req.UserID)
	select {
	case d.workers[i] <- req:
		metrics.NotificationQueueDepth.WithLabelValues(strconv.Itoa(i)).Set(float64(len(d.workers[i])))
	default:
		d.log.Warn().
			Str("user_id", req.UserID).
			Str("type", string(req.Type)).
			Msg("notification dropped: worker queue full")
	}
}

// shardIndex maps a user id deterministically to a worker index.
func (d *Dispatcher) shardIndex(userID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID))
	return int(h.Sum32()) % len(d.workers)
}

func (d *Dispatcher) runWorker(ctx context.Context, id int, ch <-chan domain.NotificationRequest) {
	workerID := strconv.Itoa(id)
	for {
		select {
		case <-ctx.Done():
			return
		case req, ok := <-ch:
			if !ok {
				return
			}
			d.deliver(ctx, req)
			metrics.NotificationQueueDepth.WithLabelValues(workerID).Set(float64(len(ch)))
		}
	}
}

// deliver publishes one request, consulting the dedup window first. Every
// failure is swallowed after logging: a lost alert never unwinds a
// committed deduction.
func (d *Dispatcher) deliver(ctx context.Context, req domain.NotificationRequest) {
	first, err := d.dedup.FirstInWindow(ctx, req.UserID, string(req.Type))
	if err != nil {
		d.log.Warn().Err(err).Str("user_id", req.UserID).Msg("dedup check failed, delivering anyway")
	} else if !first {
		metrics.NotificationDeliveriesTotal.WithLabelValues("deduped").Inc()
		d.log.Debug().
			Str("user_id", req.UserID).
			Str("type", string(req.Type)).
			Msg("duplicate notification suppressed")
		return
	}

	if err := d.publisher.Publish(ctx, req); err != nil {
		metrics.NotificationDeliveriesTotal.WithLabelValues("error").Inc()
		d.log.Error().Err(err).
			Str("user_id", req.UserID).
			Str("type", string(req.Type)).
			Msg("notification delivery failed")
		return
	}

	metrics.NotificationDeliveriesTotal.WithLabelValues("ok").Inc()
}
