// Package feed publishes sale events to Kafka so back-office dashboards can
// follow terminal activity. Publishing is best-effort: a broker outage never
// blocks a sale.
package feed

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/example/pos-terminal/internal/models"
	"github.com/example/pos-terminal/internal/observability"
)

type Producer struct {
	writer *kafka.Writer
}

func NewProducer(brokers []string, topic string) *Producer {
	w := kafka.NewWriter(kafka.WriterConfig{Brokers: brokers, Topic: topic, Balancer: &kafka.LeastBytes{}})
	return &Producer{writer: w}
}

func (p *Producer) Publish(ev models.SaleEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	b, _ := json.Marshal(ev)
	err := p.writer.WriteMessages(ctx, kafka.Message{Key: []byte(ev.OrderID), Value: b})
	if err != nil {
		observability.FeedPublishErrors.Inc()
	}
	return err
}

func (p *Producer) Close() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
