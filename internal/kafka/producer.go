package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"

	"showpass-core/internal/models"
)

// Producer streams purchase events to the topic the recommendation service
// retrains from.
type Producer struct {
	Writer *kafka.Writer
}

func NewProducer(brokers []string, topic string) *Producer {
	writer := kafka.NewWriter(kafka.WriterConfig{
		Brokers: brokers,
		Topic:   topic,
	})
	return &Producer{Writer: writer}
}

// PublishPurchaseCompleted streams one completed checkout, keyed by user so
// a consumer sees each user's purchases in order.
func (p *Producer) PublishPurchaseCompleted(purchase models.PurchaseCompleted) error {
	msgBytes, err := json.Marshal(purchase)
	if err != nil {
		return err
	}

	return p.Writer.WriteMessages(context.Background(),
		kafka.Message{
			Key:   []byte(fmt.Sprintf("%d", purchase.UserID)),
			Value: msgBytes,
		},
	)
}

func (p *Producer) Close() error {
	return p.Writer.Close()
}
