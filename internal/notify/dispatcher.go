package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/your-org/eventlens/internal/apperr"
	"github.com/your-org/eventlens/internal/config"
	"github.com/your-org/eventlens/internal/observability"
)

// Dispatcher queues notifications and delivers them on background workers.
// Notify never blocks; delivery failures are logged and counted only.
type Dispatcher struct {
	sender  Sender
	workers int
	timeout time.Duration

	mu      sync.RWMutex
	closed  bool
	queue   chan Notification
	wg      sync.WaitGroup
	dropped atomic.Int64
}

var ErrDispatcherClosed = errors.New("notification dispatcher closed")

func NewDispatcher(sender Sender, cfg config.NotifyConfig) *Dispatcher {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	size := cfg.QueueSize
	if size <= 0 {
		size = 1
	}
	return &Dispatcher{
		sender:  sender,
		workers: workers,
		timeout: cfg.SendTimeout,
		queue:   make(chan Notification, size),
	}
}

// Start launches the workers. They stop when Close has drained the queue or
// when ctx is cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go func(id int) {
			defer d.wg.Done()
			d.run(ctx, id)
		}(i)
	}
	slog.Info("notification dispatcher started", "workers", d.workers)
}

func (d *Dispatcher) run(ctx context.Context, id int) {
	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-d.queue:
			if !ok {
				return
			}
			observability.NotifyQueueDepth.Dec()
			d.deliver(ctx, n, id)
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, n Notification, worker int) {
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	if err := d.sender.Send(ctx, n); err != nil {
		err = apperr.Notification("notify.send", "failed to deliver notification", err)
		observability.Notifications.WithLabelValues("failed").Inc()
		slog.Error("notification delivery failed",
			"to", n.To, "photo_id", n.PhotoID, "event", n.EventName, "worker", worker, "error", err)
		return
	}
	observability.Notifications.WithLabelValues("sent").Inc()
	slog.Debug("notification sent", "to", n.To, "photo_id", n.PhotoID, "event", n.EventName)
}

func (d *Dispatcher) drop(n Notification, reason string) {
	d.dropped.Add(1)
	observability.Notifications.WithLabelValues("dropped").Inc()
	slog.Error("notification dropped: "+reason, "to", n.To, "photo_id", n.PhotoID, "event", n.EventName)
}

// Notify enqueues n and returns immediately. A full queue or a closed
// dispatcher drops the notification.
func (d *Dispatcher) Notify(n Notification) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.drop(n, "dispatcher closed")
		return
	}

	select {
	case d.queue <- n:
		observability.NotifyQueueDepth.Inc()
	default:
		d.drop(n, "queue full")
	}
}

// Enqueue waits for room in the queue instead of dropping. It is meant for
// bulk producers such as the CLI that can afford to be slowed down by delivery.
func (d *Dispatcher) Enqueue(ctx context.Context, n Notification) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.drop(n, "dispatcher closed")
		return ErrDispatcherClosed
	}

	select {
	case d.queue <- n:
		observability.NotifyQueueDepth.Inc()
		return nil
	case <-ctx.Done():
		d.drop(n, "enqueue cancelled")
		return ctx.Err()
	}
}

// Dropped reports how many notifications were never queued.
func (d *Dispatcher) Dropped() int64 {
	return d.dropped.Load()
}

// Close stops accepting notifications and waits for queued ones to be sent.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	d.wg.Wait()
	slog.Info("notification dispatcher stopped")
}
