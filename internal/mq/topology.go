package mq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// DefaultExchange — topic exchange событий выполнения.
//
// Routing key — тип события: workflow.started, task.failed, ...
// Подписчик выбирает события шаблоном: "task.*", "workflow.#", "#".
const DefaultExchange = "workflow.events"

// Binding — очередь подписчика и её привязка к exchange.
type Binding struct {
	// Exchange — имя exchange (default: workflow.events).
	Exchange string

	// Queue — имя очереди. Пустое имя — временная очередь,
	// которую брокер удаляет после отключения подписчика.
	Queue string

	// Keys — шаблоны routing key (default: "#").
	Keys []string
}

func (b Binding) exchange() string {
	if b.Exchange == "" {
		return DefaultExchange
	}
	return b.Exchange
}

func (b Binding) keys() []string {
	if len(b.Keys) == 0 {
		return []string{"#"}
	}
	return b.Keys
}

// DeclareExchange объявляет topic exchange событий.
func DeclareExchange(ch Channel, name string) error {
	if name == "" {
		name = DefaultExchange
	}

	err := ch.ExchangeDeclare(
		name,    // name
		"topic", // type
		true,    // durable
		false,   // auto-deleted
		false,   // internal
		false,   // no-wait
		nil,     // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange %s: %w", name, err)
	}
	return nil
}

// SetupTopology объявляет exchange событий.
func SetupTopology(ctx context.Context, conn ChannelProvider, exchange string) error {
	return conn.WithChannel(ctx, func(ch Channel) error {
		return DeclareExchange(ch, exchange)
	})
}

// declareBinding объявляет exchange, очередь подписчика и привязки.
// Возвращает фактическое имя очереди.
func declareBinding(ch Channel, b Binding) (string, error) {
	if err := DeclareExchange(ch, b.exchange()); err != nil {
		return "", err
	}

	temporary := b.Queue == ""
	q, err := ch.QueueDeclare(
		b.Queue,    // name ("" — имя выдаёт брокер)
		!temporary, // durable
		temporary,  // delete when unused
		temporary,  // exclusive
		false,      // no-wait
		amqp.Table{},
	)
	if err != nil {
		return "", fmt.Errorf("declare queue %q: %w", b.Queue, err)
	}

	for _, key := range b.keys() {
		if err := ch.QueueBind(q.Name, key, b.exchange(), false, nil); err != nil {
			return "", fmt.Errorf("bind queue %s to %s (%s): %w", q.Name, b.exchange(), key, err)
		}
	}

	return q.Name, nil
}

// TopologyInfo возвращает описание топологии для логирования.
func TopologyInfo(exchange string) string {
	if exchange == "" {
		exchange = DefaultExchange
	}
	return fmt.Sprintf(`
  Workflow RabbitMQ Topology:

    %s (topic)
    ├── workflow.started | workflow.completed | workflow.error
    └── task.started | task.succeeded | task.failed | task.skipped
            Consumers: "workflow events", external dashboards
`, exchange)
}
