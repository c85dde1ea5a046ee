package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/maiandreh/ecommerce-fullstack/internal/core/domain"
)

const (
	batchTimeout = 10 * time.Millisecond
	batchSize    = 100
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type OrderCreatedEvent struct {
	OrderID   string           `json:"order_id"`
	CreatedAt time.Time        `json:"created_at"`
	Total     string           `json:"total"`
	Lines     []OrderLineEvent `json:"lines"`
}

type OrderLineEvent struct {
	ProductID int64  `json:"product_id"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unit_price"`
	LineTotal string `json:"line_total"`
}

type KafkaPublisher struct {
	writer messageWriter
}

func NewKafkaPublisher(broker, topic string) *KafkaPublisher {
	return &KafkaPublisher{writer: &kafka.Writer{
		Addr:                   kafka.TCP(broker),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           batchTimeout,
		BatchSize:              batchSize,
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}}
}

// PublishOrderCreated writes the event keyed by order id, so every event of
// one order lands on the same partition. The trace context travels in the
// message headers.
func (p *KafkaPublisher) PublishOrderCreated(ctx context.Context, order domain.Order) error {
	value, err := json.Marshal(newOrderCreatedEvent(order))
	if err != nil {
		return fmt.Errorf("encode order created: %w", err)
	}

	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	headers := make([]kafka.Header, 0, len(carrier))
	for k, v := range carrier {
		headers = append(headers, kafka.Header{Key: k, Value: []byte(v)})
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:     []byte(order.ID),
		Value:   value,
		Headers: headers,
	})
	if err != nil {
		return fmt.Errorf("write order created %s: %w", order.ID, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

func newOrderCreatedEvent(order domain.Order) OrderCreatedEvent {
	lines := make([]OrderLineEvent, len(order.Lines))
	for i, l := range order.Lines {
		lines[i] = OrderLineEvent{
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			UnitPrice: domain.FormatMoney(l.UnitPrice),
			LineTotal: domain.FormatMoney(l.LineTotal),
		}
	}
	return OrderCreatedEvent{
		OrderID:   order.ID,
		CreatedAt: order.CreatedAt,
		Total:     domain.FormatMoney(order.Total),
		Lines:     lines,
	}
}
