package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/bruinswipes/bruinswipes-backend/internal/config"
	"github.com/bruinswipes/bruinswipes-backend/pkg/logger"
	"github.com/bruinswipes/bruinswipes-backend/pkg/mailer"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	log := logger.New("bruinswipes-email-worker", cfg.Environment, cfg.LogLevel)

	if cfg.RabbitMQURL == "" || cfg.RabbitMQEmailQueue == "" {
		log.Fatal("RabbitMQ not configured")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sender, err := mailer.NewSender(ctx, cfg.Mailer(), log)
	if err != nil {
		log.WithError(err).Fatal("email provider")
	}

	conn, err := amqp.Dial(cfg.RabbitMQURL)
	if err != nil {
		log.WithError(err).Fatal("amqp dial")
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		log.WithError(err).Fatal("amqp channel")
	}
	defer func() { _ = ch.Close() }()

	// Prefetch for fair dispatch across workers
	if err := ch.Qos(16, 0, false); err != nil {
		log.WithError(err).Fatal("qos")
	}
	if err := mailer.DeclareQueue(ch, cfg.RabbitMQEmailQueue); err != nil {
		log.WithError(err).Fatal("queue declare")
	}

	msgs, err := ch.Consume(cfg.RabbitMQEmailQueue, "", false, false, false, false, nil)
	if err != nil {
		log.WithError(err).Fatal("consume")
	}

	w := &mailer.Worker{Sender: sender, Logger: log, Timeout: 15 * time.Second}
	done := make(chan struct{})
	go func() {
		w.Run(ctx, msgs)
		close(done)
	}()

	log.WithField("queue", cfg.RabbitMQEmailQueue).Info("email worker listening")
	<-ctx.Done()
	log.Info("shutting down")
	select {
	case <-done:
	case <-time.After(2 * time.Second):
	}
}
