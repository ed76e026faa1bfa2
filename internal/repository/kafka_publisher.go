package repository

import (
	"context"

	"github.com/segmentio/kafka-go"

	"FinFusion/internal/domain/models"
	domrepo "FinFusion/internal/domain/repository"
	pkgkafka "FinFusion/pkg/kafka"
)

// KafkaAnalysisPublisher publishes completed analyses keyed by symbol so one
// symbol's analyses stay ordered within a partition.
type KafkaAnalysisPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

var _ domrepo.AnalysisPublisher = (*KafkaAnalysisPublisher)(nil)

func NewKafkaAnalysisPublisher(producer *pkgkafka.Producer, topic string) *KafkaAnalysisPublisher {
	return &KafkaAnalysisPublisher{producer: producer, topic: topic}
}

func (p *KafkaAnalysisPublisher) Publish(ctx context.Context, a *models.FinalAnalysis) error {
	return p.producer.PublishBatch(ctx, p.topic, []pkgkafka.Message{AnalysisMessage(a)})
}

// PublishBatch sends several analyses in one write.
func (p *KafkaAnalysisPublisher) PublishBatch(ctx context.Context, as []*models.FinalAnalysis) error {
	if len(as) == 0 {
		return nil
	}
	msgs := make([]pkgkafka.Message, 0, len(as))
	for _, a := range as {
		if a != nil {
			msgs = append(msgs, AnalysisMessage(a))
		}
	}
	return p.producer.PublishBatch(ctx, p.topic, msgs)
}

func (p *KafkaAnalysisPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

// AnalysisMessage is the wire form of a FinalAnalysis: the JSON record keyed
// by symbol, with the recommendation and source as headers for consumers
// that filter without decoding.
func AnalysisMessage(a *models.FinalAnalysis) pkgkafka.Message {
	return pkgkafka.Message{
		Key:   []byte(a.Symbol),
		Value: a,
		Headers: []kafka.Header{
			{Key: "analysis_id", Value: []byte(a.ID)},
			{Key: "recommendation", Value: []byte(a.Recommendation)},
			{Key: "source", Value: []byte(a.Metadata.Source)},
		},
	}
}
