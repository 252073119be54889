package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Dhoini/Entitlement-microservice/internal/domain"
	"github.com/Dhoini/Entitlement-microservice/pkg/logger"
	kafkago "github.com/segmentio/kafka-go"
)

// TopicEntitlementChanged топик по умолчанию для изменений записей
const TopicEntitlementChanged = "entitlement_changed"

const writeTimeout = 5 * time.Second

// Producer публикует изменения записей в Kafka.
type Producer interface {
	// PublishEntitlementChanged отправляет событие. Ключ сообщения это userId,
	// поэтому события одного пользователя попадают в одну партицию по порядку.
	PublishEntitlementChanged(ctx context.Context, ev domain.EntitlementChanged) error
	Close() error
}

// messageWriter часть kafka.Writer, которую использует продюсер
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

type kafkaProducer struct {
	writer messageWriter
	topic  string
	log    *logger.Logger
}

// NewKafkaProducer создает продюсер поверх kafka.Writer
func NewKafkaProducer(brokers []string, topic string, log *logger.Logger) (Producer, error) {
	if len(brokers) == 0 {
		log.Errorw("Kafka brokers list is empty in config, cannot create producer")
		return nil, errors.New("kafka brokers are not configured")
	}
	if topic == "" {
		topic = TopicEntitlementChanged
	}

	writer := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireOne,
		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		ReadTimeout:  10 * time.Second,
	}

	log.Infow("Kafka producer initialized", "brokers", brokers, "topic", topic)
	return newProducer(writer, topic, log), nil
}

func newProducer(w messageWriter, topic string, log *logger.Logger) *kafkaProducer {
	return &kafkaProducer{writer: w, topic: topic, log: log}
}

func (k *kafkaProducer) PublishEntitlementChanged(ctx context.Context, ev domain.EntitlementChanged) error {
	value, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("kafka: failed to marshal message data: %w", err)
	}

	message := kafkago.Message{
		Topic: k.topic,
		Key:   []byte(ev.Entitlement.UserID),
		Value: value,
		Headers: []kafkago.Header{
			{Key: "eventId", Value: []byte(ev.EventID)},
			{Key: "source", Value: []byte(ev.Source)},
		},
		Time: ev.OccurredAt,
	}

	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	if err := k.writer.WriteMessages(writeCtx, message); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("kafka: write timeout: %w", err)
		}
		return fmt.Errorf("kafka: failed to write message: %w", err)
	}

	k.log.Debugw("Published entitlement change", "topic", k.topic, "userID", ev.Entitlement.UserID, "eventID", ev.EventID)
	return nil
}

func (k *kafkaProducer) Close() error {
	if err := k.writer.Close(); err != nil {
		k.log.Errorw("Failed to close Kafka writer", "error", err)
		return fmt.Errorf("kafka: failed to close writer: %w", err)
	}
	k.log.Infow("Kafka producer writer closed")
	return nil
}

// NoopProducer используется, когда Kafka не настроена
type NoopProducer struct{}

func (NoopProducer) PublishEntitlementChanged(context.Context, domain.EntitlementChanged) error {
	return nil
}

func (NoopProducer) Close() error { return nil }
