package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hallbook/internal/notifications"
	"hallbook/pkg/config"
	"hallbook/pkg/kafka"
	kafka_config "hallbook/pkg/kafka/config"
	kafka_middleware "hallbook/pkg/kafka/middleware"
)

const (
	ServiceName = "notifier"

	sentLogTTL = 7 * 24 * time.Hour
)

func main() {
	cfg := config.LoadWith(ServiceName, (*config.Config).ValidateSMTP)
	cfg.SetRedis()
	defer cfg.Client.GracefulShutdown(cfg.Log)

	kafkaCfg, err := kafka_config.Load()
	if err != nil {
		cfg.Log.Fatal("Invalid Kafka configuration", "error", err)
	}
	kafkaCfg.LogConfiguration(cfg.Log)

	mailer, err := notifications.NewMailPublisher(cfg, notifications.MustTemplates())
	if err != nil {
		cfg.Log.Fatal("Failed to create SMTP publisher", "error", err)
	}

	var sent notifications.SentLog
	if cfg.Client.Redis != nil {
		sent = notifications.NewRedisSentLog(cfg.Client.Redis, sentLogTTL)
		cfg.Log.Info("Delivered notifications tracked in Redis", "ttl", sentLogTTL)
	}

	consumer, err := kafka.NewConsumer(
		kafkaCfg,
		cfg.NotificationTopic,
		cfg.NotificationGroupID,
		cfg.NotificationDLQTopic,
		notifications.DeliveryHandler(mailer, sent, cfg.Log),
		cfg.Log,
	)
	if err != nil {
		cfg.Log.Fatal("Failed to create Kafka consumer", "error", err)
	}

	metrics := kafka_middleware.NewMetrics()
	consumer.Use(kafka_middleware.LoggingConsumerMiddleware(cfg.Log))
	consumer.Use(metrics.ConsumerMiddleware())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg.Log.Info("Starting notifier",
		"topic", cfg.NotificationTopic,
		"group_id", cfg.NotificationGroupID,
		"dlq_topic", cfg.NotificationDLQTopic,
	)
	if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		cfg.Log.Error("Notifier stopped unexpectedly", "error", err)
	}

	cfg.Log.Info("Shutting down notifier")
	if err := consumer.Close(); err != nil {
		cfg.Log.Error("Failed to close Kafka consumer", "error", err)
	}
	cfg.Log.Info("Kafka consumer metrics", metrics.Snapshot().LogAttrs()...)
}
