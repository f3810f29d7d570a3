package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/your-org/eventlens/internal/notify"
)

const (
	NotificationsStreamName = "NOTIFICATIONS"
	NotificationsSubject    = "notifications.email"
)

// Producer hands notifications to cmd/notifier through JetStream. It
// satisfies notify.Sender.
type Producer struct {
	nc *nats.Conn
	js jetstream.JetStream
}

func connect(natsURL string) (*nats.Conn, jetstream.JetStream, error) {
	nc, err := nats.Connect(natsURL,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to nats: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("create jetstream context: %w", err)
	}
	return nc, js, nil
}

func NewProducer(natsURL string) (*Producer, error) {
	nc, js, err := connect(natsURL)
	if err != nil {
		return nil, err
	}
	return &Producer{nc: nc, js: js}, nil
}

func notificationsStream() jetstream.StreamConfig {
	return jetstream.StreamConfig{
		Name:        NotificationsStreamName,
		Subjects:    []string{"notifications.>"},
		Retention:   jetstream.WorkQueuePolicy,
		MaxAge:      72 * time.Hour,
		MaxMsgs:     1000000,
		Storage:     jetstream.FileStorage,
		Discard:     jetstream.DiscardOld,
		Duplicates:  2 * time.Minute,
		Description: "Photo notification emails awaiting delivery",
	}
}

// EnsureStreams creates the notification stream if it doesn't exist.
// Retries up to 30 times (1s apart) to handle NATS startup delay.
func (p *Producer) EnsureStreams(ctx context.Context) error {
	return ensureStream(ctx, p.js, notificationsStream())
}

func ensureStream(ctx context.Context, js jetstream.JetStream, cfg jetstream.StreamConfig) error {
	const maxAttempts = 30
	for attempt := 1; ; attempt++ {
		opCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		_, err := js.CreateOrUpdateStream(opCtx, cfg)
		cancel()
		if err == nil {
			slog.Info("ensured NATS stream", "name", cfg.Name)
			return nil
		}
		if attempt == maxAttempts {
			return fmt.Errorf("create stream %s: %w (after %d attempts)", cfg.Name, err, maxAttempts)
		}
		slog.Warn("ensure NATS stream (retrying...)", "name", cfg.Name, "attempt", attempt, "error", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
		}
	}
}

// PublishNotification publishes n for the notifier. The photo and recipient
// form the message id, so a retried publish is deduplicated by the stream.
func (p *Producer) PublishNotification(ctx context.Context, n notify.Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	_, err = p.js.Publish(ctx, NotificationsSubject, payload,
		jetstream.WithMsgID(n.PhotoID.String()+":"+n.To))
	if err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	return nil
}

func (p *Producer) Send(ctx context.Context, n notify.Notification) error {
	return p.PublishNotification(ctx, n)
}

// QueueDepth returns the number of notifications not yet taken by a notifier.
func (p *Producer) QueueDepth(ctx context.Context) (uint64, error) {
	return streamDepth(ctx, p.js)
}

func streamDepth(ctx context.Context, js jetstream.JetStream) (uint64, error) {
	stream, err := js.Stream(ctx, NotificationsStreamName)
	if err != nil {
		return 0, err
	}
	info, err := stream.Info(ctx)
	if err != nil {
		return 0, err
	}
	return info.State.Msgs, nil
}

func (p *Producer) Ping() error {
	if !p.nc.IsConnected() {
		return fmt.Errorf("nats not connected")
	}
	return nil
}

func (p *Producer) Close() {
	p.nc.Close()
}
