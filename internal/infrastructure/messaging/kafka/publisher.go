package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/IBM/sarama"

	"quantstore/internal/application/port"
	"quantstore/internal/domain/model"
)

// Publisher writes kline and order events to Kafka as JSON. Klines are keyed by
// symbol and orders by platform:order_no so each key keeps its order on one partition.
type Publisher struct {
	producer   sarama.SyncProducer
	klineTopic string
	orderTopic string
}

func NewPublisher(prod sarama.SyncProducer, klineTopic, orderTopic string) *Publisher {
	return &Publisher{
		producer:   prod,
		klineTopic: klineTopic,
		orderTopic: orderTopic,
	}
}

// Dial builds a sync producer for brokers.
func Dial(brokers []string, clientID string) (sarama.SyncProducer, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	if clientID != "" {
		cfg.ClientID = clientID
	}
	prod, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return prod, nil
}

func (p *Publisher) PublishKline(ctx context.Context, k model.Kline) error {
	if p.klineTopic == "" {
		return nil
	}
	return p.send(ctx, p.klineTopic, k.Key(), k)
}

func (p *Publisher) PublishOrder(ctx context.Context, o model.Order) error {
	if p.orderTopic == "" {
		return nil
	}
	return p.send(ctx, p.orderTopic, o.Platform+":"+o.OrderNo, o)
}

func (p *Publisher) send(ctx context.Context, topic, key string, v any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	_, _, err = p.producer.SendMessage(&sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(payload),
	})
	if err != nil {
		return fmt.Errorf("send %s: %w", topic, err)
	}
	return nil
}

func (p *Publisher) Close() error { return p.producer.Close() }

var _ port.EventPublisher = (*Publisher)(nil)
