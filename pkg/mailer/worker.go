package mailer

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// Worker drains email jobs from the queue and delivers them through Sender.
type Worker struct {
	Sender  Sender
	Logger  logrus.FieldLogger
	Timeout time.Duration
}

// Run handles deliveries until msgs closes or ctx is cancelled.
func (w *Worker) Run(ctx context.Context, msgs <-chan amqp.Delivery) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			w.Handle(ctx, msg)
		}
	}
}

// Handle acks delivered jobs, drops malformed ones and requeues a failed
// send once before giving up on it.
func (w *Worker) Handle(ctx context.Context, msg amqp.Delivery) {
	var job EmailJob
	if err := json.Unmarshal(msg.Body, &job); err != nil {
		w.Logger.WithField("error", err.Error()).Warn("dropping malformed email job")
		_ = msg.Nack(false, false)
		return
	}

	timeout := w.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	c, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := Deliver(c, w.Sender, job); err != nil {
		w.Logger.WithFields(logrus.Fields{
			"to":          job.To,
			"template":    job.Template,
			"redelivered": msg.Redelivered,
			"error":       err.Error(),
		}).Error("send failed")
		_ = msg.Nack(false, !msg.Redelivered)
		return
	}
	_ = msg.Ack(false)
}
