// Package main содержит точку входа воркера email-уведомлений.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/holidayheroes/holiday-heroes/internal/config"
	"github.com/holidayheroes/holiday-heroes/internal/lib/sl"
	"github.com/holidayheroes/holiday-heroes/internal/lib/smtp"
	"github.com/holidayheroes/holiday-heroes/internal/rabbitmq"
	senderservice "github.com/holidayheroes/holiday-heroes/internal/services/sender"
)

func main() {
	cfg := config.MustLoad()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	logger.Info("starting notification-sender", slog.String("env", cfg.Env))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	conn, err := rabbitmq.Connect(cfg.RabbitMQ.URL, cfg.RabbitMQ.MaxRetries, cfg.RabbitMQ.RetryDelay)
	if err != nil {
		logger.Error("failed to connect to RabbitMQ", sl.Err(err))
		os.Exit(1)
	}
	logger.Info("connected to RabbitMQ", slog.String("URL", cfg.RabbitMQ.URL))
	defer func() {
		_ = conn.Close()
	}()

	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.GetNotificationQueues())
	if err != nil {
		logger.Error("failed to setup RabbitMQ channel", sl.Err(err))
		os.Exit(1)
	}
	logger.Info("success to setup RabbitMQ channel")
	defer func() {
		_ = ch.Close()
	}()

	transport := smtp.NewTransport(cfg, logger)
	sender := senderservice.New(transport, logger)

	for _, queue := range rabbitmq.GetNotificationQueues() {
		if err := rabbitmq.ConsumerMessage(ctx, ch, queue.QueueName, sender.HandleSubscriptionChange); err != nil {
			logger.Error("failed to start consumer", slog.String("queue", queue.QueueName), sl.Err(err))
			os.Exit(1)
		}
		logger.Info("consumer started", slog.String("queue", queue.QueueName))
	}

	<-ctx.Done()

	logger.Info("notification-sender shutting down gracefully")
}
