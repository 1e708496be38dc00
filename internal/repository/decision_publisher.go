package repository

import (
	"context"

	"TradeMaster/internal/domain/models"
	domrepo "TradeMaster/internal/domain/repository"
	pkgkafka "TradeMaster/pkg/kafka"
)

// KafkaDecisionPublisher implements DecisionPublisher over the shared
// producer. Messages are keyed by symbol so the executor sees decisions
// for one asset in order.
type KafkaDecisionPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

// NewKafkaDecisionPublisher creates a Kafka decision publisher.
func NewKafkaDecisionPublisher(producer *pkgkafka.Producer, topic string) domrepo.DecisionPublisher {
	return &KafkaDecisionPublisher{producer: producer, topic: topic}
}

func (p *KafkaDecisionPublisher) PublishDecision(ctx context.Context, d models.AllocationDecision) error {
	return p.producer.Publish(ctx, p.topic, []byte(d.Symbol), d)
}

func (p *KafkaDecisionPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

var _ domrepo.DecisionPublisher = (*KafkaDecisionPublisher)(nil)
