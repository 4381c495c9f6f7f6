package mailer

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// Dispatcher hands an email job off without waiting for delivery.
type Dispatcher interface {
	Dispatch(ctx context.Context, job EmailJob) error
}

// RabbitDispatcher publishes jobs onto a durable queue drained by cmd/email_worker.
type RabbitDispatcher struct {
	mu    sync.Mutex
	conn  *amqp.Connection
	ch    *amqp.Channel
	Queue string
}

func NewRabbitDispatcher(url, queue string) (*RabbitDispatcher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err := DeclareQueue(ch, queue); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	return &RabbitDispatcher{conn: conn, ch: ch, Queue: queue}, nil
}

// DeclareQueue declares the durable email queue. Publisher and worker both call it.
func DeclareQueue(ch *amqp.Channel, queue string) error {
	_, err := ch.QueueDeclare(
		queue,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,
	)
	return err
}

func (p *RabbitDispatcher) Close() {
	if p == nil {
		return
	}
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
}

func (p *RabbitDispatcher) Dispatch(ctx context.Context, job EmailJob) error {
	if job.To == "" {
		return ErrNoRecipient
	}
	b, err := json.Marshal(job)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ch.PublishWithContext(ctx,
		"",      // default exchange
		p.Queue, // routing key = queue
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
			Body:         b,
		},
	)
}

// AsyncDispatcher delivers in a background goroutine. Used when no broker is configured.
type AsyncDispatcher struct {
	sender  Sender
	logger  logrus.FieldLogger
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewAsyncDispatcher(sender Sender, logger logrus.FieldLogger, timeout time.Duration) *AsyncDispatcher {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &AsyncDispatcher{sender: sender, logger: logger, timeout: timeout}
}

func (d *AsyncDispatcher) Dispatch(_ context.Context, job EmailJob) error {
	if job.To == "" {
		return ErrNoRecipient
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()
		if err := Deliver(ctx, d.sender, job); err != nil {
			d.logger.WithFields(logrus.Fields{
				"to":       job.To,
				"template": job.Template,
				"error":    err.Error(),
			}).Error("email delivery failed")
		}
	}()
	return nil
}

// Wait blocks until every dispatched job has finished.
func (d *AsyncDispatcher) Wait() {
	d.wg.Wait()
}
