package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/your-org/eventlens/internal/config"
	"github.com/your-org/eventlens/internal/notify"
	"github.com/your-org/eventlens/internal/observability"
	"github.com/your-org/eventlens/internal/queue"
)

const consumerName = "notifier"

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	metricsAddr := flag.String("metrics-addr", ":8082", "address of the metrics and health endpoint")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	observability.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("starting EventLens notifier", "workers", cfg.Notify.Workers, "smtp_host", cfg.Mail.Host)

	mailer, err := notify.NewSMTPMailer(cfg.Mail)
	if err != nil {
		slog.Error("configure smtp", "error", err)
		os.Exit(1)
	}

	consumer, err := queue.NewConsumer(cfg.NATS.URL)
	if err != nil {
		slog.Error("connect to nats", "error", err)
		os.Exit(1)
	}
	defer consumer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := consumer.EnsureStreams(ctx); err != nil {
		slog.Error("ensure nats streams", "error", err)
		os.Exit(1)
	}

	err = consumer.ConsumeNotifications(ctx, consumerName, func(ctx context.Context, n notify.Notification) error {
		sendCtx, cancel := context.WithTimeout(ctx, cfg.Notify.SendTimeout)
		defer cancel()

		if err := mailer.Send(sendCtx, n); err != nil {
			observability.Notifications.WithLabelValues("failed").Inc()
			return fmt.Errorf("send to %s: %w", n.To, err)
		}
		observability.Notifications.WithLabelValues("sent").Inc()
		slog.Debug("notification sent", "to", n.To, "photo_id", n.PhotoID, "event", n.EventName)
		return nil
	}, cfg.Notify.Workers)
	if err != nil {
		slog.Error("start notification consumer", "error", err)
		os.Exit(1)
	}

	// Metrics endpoint
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		})
		slog.Info("notifier metrics listening", "addr", *metricsAddr)
		if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
			slog.Error("metrics server error", "error", err)
		}
	}()

	// Periodically report stream depth
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				depth, err := consumer.QueueDepth(ctx)
				if err == nil {
					observability.StreamPending.Set(float64(depth))
				}
			}
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down notifier...")
	cancel()
	consumer.Wait()
	slog.Info("notifier stopped")
}
