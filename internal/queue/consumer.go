package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/your-org/eventlens/internal/notify"
)

type NotificationHandler func(ctx context.Context, n notify.Notification) error

const (
	maxDeliver = 5
	// ackWait bounds a silent worker. Long sends keep the message alive with
	// InProgress every progressInterval, so ackWait never races a send.
	ackWait          = 2 * time.Minute
	progressInterval = 30 * time.Second
)

// retryDelays[i] is the delay before delivery i+2 of a failed notification.
var retryDelays = []time.Duration{10 * time.Second, 30 * time.Second, time.Minute, 5 * time.Minute}

// delivery is the part of jetstream.Msg the workers use.
type delivery interface {
	Data() []byte
	Subject() string
	Metadata() (*jetstream.MsgMetadata, error)
	Ack() error
	NakWithDelay(delay time.Duration) error
	InProgress() error
	Term() error
}

type Consumer struct {
	nc *nats.Conn
	js jetstream.JetStream
	wg sync.WaitGroup

	progressEvery time.Duration
}

func NewConsumer(natsURL string) (*Consumer, error) {
	nc, js, err := connect(natsURL)
	if err != nil {
		return nil, err
	}
	return &Consumer{nc: nc, js: js, progressEvery: progressInterval}, nil
}

func notificationsConsumer(name string) jetstream.ConsumerConfig {
	return jetstream.ConsumerConfig{
		Name:          name,
		Durable:       name,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       ackWait,
		MaxDeliver:    maxDeliver,
		FilterSubject: NotificationsSubject,
	}
}

// retryDelay picks the back-off for a message that has been delivered
// numDelivered times.
func retryDelay(numDelivered uint64) time.Duration {
	i := int(numDelivered) - 1
	if i < 0 {
		i = 0
	}
	if i >= len(retryDelays) {
		i = len(retryDelays) - 1
	}
	return retryDelays[i]
}

// EnsureStreams lets the notifier start before the API has created the stream.
func (c *Consumer) EnsureStreams(ctx context.Context) error {
	return ensureStream(ctx, c.js, notificationsStream())
}

func decodeNotification(data []byte) (notify.Notification, error) {
	var n notify.Notification
	if err := json.Unmarshal(data, &n); err != nil {
		return n, fmt.Errorf("decode notification: %w", err)
	}
	if n.To == "" {
		return n, fmt.Errorf("decode notification: missing recipient")
	}
	return n, nil
}

// ConsumeNotifications starts delivering queued notifications to handler.
// workerCount determines how many goroutines process messages concurrently.
// Malformed messages are terminated. Handler errors are redelivered after
// retryDelays, up to maxDeliver deliveries in total.
func (c *Consumer) ConsumeNotifications(ctx context.Context, consumerName string, handler NotificationHandler, workerCount int) error {
	stream, err := c.js.Stream(ctx, NotificationsStreamName)
	if err != nil {
		return fmt.Errorf("get stream %s: %w", NotificationsStreamName, err)
	}

	cons, err := stream.CreateOrUpdateConsumer(ctx, notificationsConsumer(consumerName))
	if err != nil {
		return fmt.Errorf("create consumer %s: %w", consumerName, err)
	}

	msgCh := make(chan jetstream.Msg, workerCount*2)

	// Fetch loop
	go func() {
		defer close(msgCh)
		for {
			if ctx.Err() != nil {
				return
			}

			batch, err := cons.Fetch(workerCount, jetstream.FetchMaxWait(5*time.Second))
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				slog.Warn("fetch notifications error", "error", err)
				time.Sleep(time.Second)
				continue
			}

			for msg := range batch.Messages() {
				select {
				case msgCh <- msg:
				case <-ctx.Done():
					_ = msg.Nak()
					return
				}
			}
		}
	}()

	for i := 0; i < workerCount; i++ {
		c.wg.Add(1)
		go func(workerID int) {
			defer c.wg.Done()
			for msg := range msgCh {
				c.handle(ctx, msg, handler, workerID)
			}
		}(i)
	}

	slog.Info("notification consumer started", "consumer", consumerName, "workers", workerCount)
	return nil
}

func (c *Consumer) handle(ctx context.Context, msg delivery, handler NotificationHandler, workerID int) {
	n, err := decodeNotification(msg.Data())
	if err != nil {
		slog.Error("dropping malformed notification", "worker", workerID, "error", err, "subject", msg.Subject())
		_ = msg.Term()
		return
	}

	stop := c.keepAlive(msg)
	err = handler(ctx, n)
	stop()

	if err == nil {
		_ = msg.Ack()
		return
	}

	var delivered uint64 = 1
	if md, mdErr := msg.Metadata(); mdErr == nil {
		delivered = md.NumDelivered
	}
	log := slog.With("worker", workerID, "to", n.To, "photo_id", n.PhotoID, "event", n.EventName,
		"delivery", delivered, "error", err)

	if delivered >= maxDeliver {
		log.Error("notification abandoned after last delivery")
		_ = msg.Term()
		return
	}

	delay := retryDelay(delivered)
	log.Warn("notification send failed, retrying", "retry_in", delay)
	_ = msg.NakWithDelay(delay)
}

// keepAlive extends the ack deadline of msg until the returned func is called.
func (c *Consumer) keepAlive(msg delivery) func() {
	if c.progressEvery <= 0 {
		return func() {}
	}
	done := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		ticker := time.NewTicker(c.progressEvery)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				_ = msg.InProgress()
			}
		}
	}()
	return func() {
		close(done)
		<-finished
	}
}

func (c *Consumer) QueueDepth(ctx context.Context) (uint64, error) {
	return streamDepth(ctx, c.js)
}

// Wait blocks until every worker has finished after ctx cancellation.
func (c *Consumer) Wait() {
	c.wg.Wait()
}

func (c *Consumer) Close() {
	c.nc.Close()
}
