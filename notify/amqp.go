package notify

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

type amqpChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPPublisher publishes booking events to a durable RabbitMQ queue.
type AMQPPublisher struct {
	eventNotifier
	conn    *amqp.Connection
	channel amqpChannel
	queue   string
	log     *logrus.Logger
}

// NewAMQPPublisher dials url and declares queue.
func NewAMQPPublisher(url, queue string, log *logrus.Logger) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("rabbitmq channel: %w", err)
	}
	if _, err := ch.QueueDeclare(
		queue, // name
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,   // args
	); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("rabbitmq queue declare: %w", err)
	}
	p := newAMQPPublisher(ch, queue, log)
	p.conn = conn
	return p, nil
}

func newAMQPPublisher(ch amqpChannel, queue string, log *logrus.Logger) *AMQPPublisher {
	p := &AMQPPublisher{channel: ch, queue: queue, log: log}
	p.eventNotifier = eventNotifier{publish: p.Publish}
	return p
}

// Publish sends e as a persistent JSON message on the default exchange.
func (p *AMQPPublisher) Publish(ctx context.Context, e Event) error {
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	err = p.channel.PublishWithContext(ctx,
		"",      // default exchange
		p.queue, // routing key = queue name
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    e.ID,
			Type:         e.Type,
			Timestamp:    e.OccurredAt,
			Body:         body,
		})
	if err != nil {
		p.log.WithError(err).WithField("event", e.Type).Error("rabbitmq publish failed")
		return fmt.Errorf("rabbitmq publish: %w", err)
	}
	return nil
}

func (p *AMQPPublisher) Close() error {
	err := p.channel.Close()
	if p.conn != nil {
		if cerr := p.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
