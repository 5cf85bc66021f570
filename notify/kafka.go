package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes booking events to a topic, keyed by booking code so
// one booking's events stay ordered.
type KafkaPublisher struct {
	eventNotifier
	writer messageWriter
	log    *logrus.Logger
}

func NewKafkaPublisher(brokers []string, topic string, log *logrus.Logger) *KafkaPublisher {
	return newKafkaPublisher(&kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}, log)
}

func newKafkaPublisher(w messageWriter, log *logrus.Logger) *KafkaPublisher {
	p := &KafkaPublisher{writer: w, log: log}
	p.eventNotifier = eventNotifier{publish: p.Publish}
	return p
}

func (p *KafkaPublisher) Publish(ctx context.Context, e Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	key := e.BookingCode
	if key == "" {
		key = e.ID
	}
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event", Value: []byte(e.Type)},
		},
	})
	if err != nil {
		p.log.WithError(err).WithField("event", e.Type).Error("kafka publish failed")
		return fmt.Errorf("kafka publish: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
