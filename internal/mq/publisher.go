package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/shaiso/Orchestra/internal/domain"
)

const defaultPublishTimeout = 5 * time.Second

// Publisher публикует события выполнения в RabbitMQ.
type Publisher struct {
	conn     ChannelProvider
	exchange string
	logger   *slog.Logger
}

// NewPublisher создаёт новый Publisher.
// Пустой exchange — DefaultExchange.
func NewPublisher(conn ChannelProvider, exchange string, logger *slog.Logger) *Publisher {
	if exchange == "" {
		exchange = DefaultExchange
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Publisher{
		conn:     conn,
		exchange: exchange,
		logger:   logger,
	}
}

// Exchange возвращает имя exchange публикации.
func (p *Publisher) Exchange() string {
	return p.exchange
}

// PublishEvent публикует событие. Routing key — тип события.
func (p *Publisher) PublishEvent(ctx context.Context, ev domain.Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.New().String(),
		Type:         ev.Type.String(),
		Timestamp:    ev.Time,
		Headers: amqp.Table{
			"execution_id": ev.ExecutionID.String(),
			"workflow":     ev.Workflow,
		},
		Body: body,
	}

	routingKey := ev.Type.String()

	return p.conn.WithChannel(ctx, func(ch Channel) error {
		if err := ch.PublishWithContext(ctx, p.exchange, routingKey, false, false, msg); err != nil {
			return fmt.Errorf("publish to %s/%s: %w", p.exchange, routingKey, err)
		}

		p.logger.Debug("published event",
			"exchange", p.exchange,
			"routing_key", routingKey,
			"message_id", msg.MessageId,
		)
		return nil
	})
}

// EventSink публикует события Engine в RabbitMQ.
//
// Ошибки публикации только логируются: недоступность брокера
// не влияет на выполнение workflow.
type EventSink struct {
	publisher *Publisher
	timeout   time.Duration
	logger    *slog.Logger
}

// NewEventSink создаёт EventSink поверх Publisher.
func NewEventSink(p *Publisher, logger *slog.Logger) *EventSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventSink{
		publisher: p,
		timeout:   defaultPublishTimeout,
		logger:    logger,
	}
}

// HandleEvent реализует orchestrator.EventSink.
func (s *EventSink) HandleEvent(ctx context.Context, ev domain.Event) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.publisher.PublishEvent(ctx, ev); err != nil {
		s.logger.Warn("failed to publish event",
			"type", ev.Type,
			"execution_id", ev.ExecutionID,
			"task_id", ev.TaskID,
			"error", err,
		)
	}
}
