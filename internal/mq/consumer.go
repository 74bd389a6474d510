package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/shaiso/Orchestra/internal/domain"
)

// errDeliveriesClosed — брокер закрыл канал доставки.
var errDeliveriesClosed = errors.New("deliveries channel closed")

// Handler — функция обработки события.
// Возвращает error, если обработка не удалась (сообщение будет nack).
type Handler func(ctx context.Context, ev domain.Event) error

// Consumer читает события из очереди, привязанной к exchange событий.
type Consumer struct {
	conn     ChannelProvider
	logger   *slog.Logger
	binding  Binding
	handler  Handler
	prefetch int
}

// ConsumerConfig — конфигурация consumer.
type ConsumerConfig struct {
	// Binding — очередь и шаблоны routing key.
	Binding Binding

	// Handler — обработчик событий.
	Handler Handler

	// Prefetch — количество сообщений для предварительной загрузки (default: 16).
	Prefetch int

	// Logger (опционально; если nil — slog.Default()).
	Logger *slog.Logger
}

// NewConsumer создаёт новый Consumer.
func NewConsumer(conn ChannelProvider, cfg ConsumerConfig) *Consumer {
	prefetch := cfg.Prefetch
	if prefetch <= 0 {
		prefetch = 16
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Consumer{
		conn:     conn,
		logger:   logger,
		binding:  cfg.Binding,
		handler:  cfg.Handler,
		prefetch: prefetch,
	}
}

// Run потребляет события до отмены ctx.
//
// При разрыве соединения очередь объявляется заново после reconnect:
// временная очередь удаляется брокером вместе с соединением.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		deliveries, queue, err := c.setupConsume(ctx)
		if err != nil {
			c.logger.Error("failed to setup consume", "error", err)
			if err := c.waitReconnect(ctx); err != nil {
				return err
			}
			continue
		}

		c.logger.Info("consumer started", "queue", queue, "keys", c.binding.keys())

		err = c.processDeliveries(ctx, deliveries)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		c.logger.Warn("consumer interrupted, waiting for reconnect", "queue", queue, "error", err)
		if err := c.waitReconnect(ctx); err != nil {
			return err
		}
	}
}

func (c *Consumer) waitReconnect(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.conn.ReconnectNotify():
		return nil
	}
}

// setupConsume объявляет очередь и начинает потребление.
func (c *Consumer) setupConsume(ctx context.Context) (<-chan amqp.Delivery, string, error) {
	var (
		deliveries <-chan amqp.Delivery
		queue      string
	)

	err := c.conn.WithChannel(ctx, func(ch Channel) error {
		name, err := declareBinding(ch, c.binding)
		if err != nil {
			return err
		}
		queue = name

		if err := ch.Qos(c.prefetch, 0, false); err != nil {
			return fmt.Errorf("set qos: %w", err)
		}

		deliveries, err = ch.Consume(
			name,  // queue
			"",    // consumer tag (auto-generated)
			false, // auto-ack (мы ack вручную)
			false, // exclusive
			false, // no-local
			false, // no-wait
			nil,   // args
		)
		if err != nil {
			return fmt.Errorf("consume %s: %w", name, err)
		}
		return nil
	})

	return deliveries, queue, err
}

// processDeliveries обрабатывает сообщения из канала.
func (c *Consumer) processDeliveries(ctx context.Context, deliveries <-chan amqp.Delivery) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case raw, ok := <-deliveries:
			if !ok {
				return errDeliveriesClosed
			}
			c.handleDelivery(ctx, raw)
		}
	}
}

// handleDelivery обрабатывает одно сообщение.
// События не возвращаются в очередь: повторная доставка не даст другого результата.
func (c *Consumer) handleDelivery(ctx context.Context, raw amqp.Delivery) {
	ev, err := DecodeEvent(raw.Body)
	if err != nil {
		c.logger.Error("failed to decode event",
			"message_id", raw.MessageId,
			"error", err,
		)
		raw.Nack(false, false)
		return
	}

	if err := c.handler(ctx, ev); err != nil {
		c.logger.Error("handler failed",
			"message_id", raw.MessageId,
			"type", ev.Type,
			"error", err,
		)
		raw.Nack(false, false)
		return
	}

	raw.Ack(false)
}

// DecodeEvent разбирает тело сообщения в событие.
func DecodeEvent(body []byte) (domain.Event, error) {
	var ev domain.Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return ev, fmt.Errorf("unmarshal event: %w", err)
	}
	if ev.Type == "" {
		return ev, fmt.Errorf("unmarshal event: missing type")
	}
	return ev, nil
}

// DecodeOutput приводит выход задачи из события к указанному типу.
func DecodeOutput[T any](ev domain.Event) (T, error) {
	var result T

	// После JSON выход — map[string]any или скаляр
	data, err := json.Marshal(ev.Output)
	if err != nil {
		return result, fmt.Errorf("marshal output: %w", err)
	}

	if err := json.Unmarshal(data, &result); err != nil {
		return result, fmt.Errorf("unmarshal output: %w", err)
	}

	return result, nil
}
