package mq

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/shaiso/Orchestra/internal/domain"
	"github.com/shaiso/Orchestra/internal/telemetry"
)

type published struct {
	exchange string
	key      string
	msg      amqp.Publishing
}

type binding struct {
	queue, key, exchange string
}

// fakeChannel записывает вызовы вместо обращения к брокеру.
type fakeChannel struct {
	mu         sync.Mutex
	exchanges  []string
	queues     []string
	bindings   []binding
	published  []published
	publishErr error
	deliveries chan amqp.Delivery
}

func (f *fakeChannel) ExchangeDeclare(name, kind string, _, _, _, _ bool, _ amqp.Table) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.exchanges = append(f.exchanges, name+":"+kind)
	return nil
}

func (f *fakeChannel) QueueDeclare(name string, _, _, _, _ bool, _ amqp.Table) (amqp.Queue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if name == "" {
		name = "amq.gen-test"
	}
	f.queues = append(f.queues, name)
	return amqp.Queue{Name: name}, nil
}

func (f *fakeChannel) QueueBind(name, key, exchange string, _ bool, _ amqp.Table) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bindings = append(f.bindings, binding{name, key, exchange})
	return nil
}

func (f *fakeChannel) Qos(int, int, bool) error { return nil }

func (f *fakeChannel) Consume(string, string, bool, bool, bool, bool, amqp.Table) (<-chan amqp.Delivery, error) {
	return f.deliveries, nil
}

func (f *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.publishErr != nil {
		return f.publishErr
	}
	f.published = append(f.published, published{exchange, key, msg})
	return nil
}

// fakeConn — ChannelProvider поверх fakeChannel.
type fakeConn struct {
	ch        *fakeChannel
	reconnect chan struct{}
}

func (c *fakeConn) WithChannel(ctx context.Context, fn func(ch Channel) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(c.ch)
}

func (c *fakeConn) ReconnectNotify() <-chan struct{} { return c.reconnect }

// acker считает подтверждения.
type acker struct {
	mu           sync.Mutex
	acks, nacks  int
	requeued     bool
	acknowledged chan struct{}
}

func (a *acker) Ack(uint64, bool) error {
	a.mu.Lock()
	a.acks++
	a.mu.Unlock()
	a.acknowledged <- struct{}{}
	return nil
}

func (a *acker) Nack(_ uint64, _ bool, requeue bool) error {
	a.mu.Lock()
	a.nacks++
	a.requeued = a.requeued || requeue
	a.mu.Unlock()
	a.acknowledged <- struct{}{}
	return nil
}

func (a *acker) Reject(uint64, bool) error { return nil }

func testEvent() domain.Event {
	return domain.Event{
		Type:        domain.EventTaskSucceeded,
		ExecutionID: uuid.New(),
		Workflow:    "feature",
		TaskID:      "plan",
		Agent:       "planner",
		Output:      map[string]any{"plan": "three steps"},
		Duration:    2 * time.Second,
		Time:        time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestSetupTopology(t *testing.T) {
	ch := &fakeChannel{}
	if err := SetupTopology(context.Background(), &fakeConn{ch: ch}, ""); err != nil {
		t.Fatalf("SetupTopology: %v", err)
	}
	if len(ch.exchanges) != 1 || ch.exchanges[0] != "workflow.events:topic" {
		t.Errorf("unexpected exchanges %v", ch.exchanges)
	}
}

func TestDeclareBinding(t *testing.T) {
	tests := []struct {
		name      string
		binding   Binding
		wantQueue string
		wantKeys  []string
	}{
		{"temporary queue", Binding{}, "amq.gen-test", []string{"#"}},
		{"named queue with keys", Binding{Queue: "audit", Keys: []string{"task.failed", "workflow.*"}}, "audit", []string{"task.failed", "workflow.*"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ch := &fakeChannel{}
			queue, err := declareBinding(ch, tt.binding)
			if err != nil {
				t.Fatalf("declareBinding: %v", err)
			}
			if queue != tt.wantQueue {
				t.Errorf("queue = %q, want %q", queue, tt.wantQueue)
			}
			if len(ch.bindings) != len(tt.wantKeys) {
				t.Fatalf("bindings = %v", ch.bindings)
			}
			for i, b := range ch.bindings {
				if b.key != tt.wantKeys[i] || b.exchange != DefaultExchange || b.queue != tt.wantQueue {
					t.Errorf("binding %d = %+v", i, b)
				}
			}
		})
	}
}

func TestPublisher_PublishEvent(t *testing.T) {
	ch := &fakeChannel{}
	p := NewPublisher(&fakeConn{ch: ch}, "", telemetry.DiscardLogger())
	ev := testEvent()

	if err := p.PublishEvent(context.Background(), ev); err != nil {
		t.Fatalf("PublishEvent: %v", err)
	}

	if len(ch.published) != 1 {
		t.Fatalf("expected 1 message, got %d", len(ch.published))
	}
	got := ch.published[0]
	if got.exchange != DefaultExchange || got.key != "task.succeeded" {
		t.Errorf("published to %s/%s", got.exchange, got.key)
	}
	if got.msg.ContentType != "application/json" || got.msg.Type != "task.succeeded" {
		t.Errorf("unexpected message properties %+v", got.msg)
	}
	if got.msg.Headers["execution_id"] != ev.ExecutionID.String() {
		t.Errorf("execution_id header = %v", got.msg.Headers["execution_id"])
	}

	decoded, err := DecodeEvent(got.msg.Body)
	if err != nil {
		t.Fatalf("DecodeEvent: %v", err)
	}
	if decoded.ExecutionID != ev.ExecutionID || decoded.TaskID != "plan" || decoded.Duration != 2*time.Second {
		t.Errorf("decoded event mismatch: %+v", decoded)
	}

	out, err := DecodeOutput[struct {
		Plan string `json:"plan"`
	}](decoded)
	if err != nil {
		t.Fatalf("DecodeOutput: %v", err)
	}
	if out.Plan != "three steps" {
		t.Errorf("output plan = %q", out.Plan)
	}
}

func TestEventSink_SwallowsErrors(t *testing.T) {
	ch := &fakeChannel{publishErr: errors.New("connection reset")}
	sink := NewEventSink(NewPublisher(&fakeConn{ch: ch}, "", nil), telemetry.DiscardLogger())

	// Не должно паниковать и не возвращает ошибку
	sink.HandleEvent(context.Background(), testEvent())

	if len(ch.published) != 0 {
		t.Errorf("expected no published messages")
	}
}

func TestDecodeEvent_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", "{"},
		{"missing type", `{"workflow":"x"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeEvent([]byte(tt.body)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestConsumer_Run(t *testing.T) {
	ch := &fakeChannel{deliveries: make(chan amqp.Delivery, 2)}
	ack := &acker{acknowledged: make(chan struct{}, 2)}

	body, _ := json.Marshal(testEvent())
	ch.deliveries <- amqp.Delivery{Acknowledger: ack, Body: body}
	ch.deliveries <- amqp.Delivery{Acknowledger: ack, Body: []byte("garbage")}

	var (
		mu  sync.Mutex
		got []domain.Event
	)
	c := NewConsumer(&fakeConn{ch: ch}, ConsumerConfig{
		Binding: Binding{Keys: []string{"task.*"}},
		Handler: func(_ context.Context, ev domain.Event) error {
			mu.Lock()
			defer mu.Unlock()
			got = append(got, ev)
			return nil
		},
		Logger: telemetry.DiscardLogger(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- c.Run(ctx) }()

	for range 2 {
		select {
		case <-ack.acknowledged:
		case <-time.After(2 * time.Second):
			t.Fatal("timeout waiting for acknowledgements")
		}
	}
	cancel()

	if err := <-errCh; !errors.Is(err, context.Canceled) {
		t.Errorf("Run() = %v, want context.Canceled", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 || got[0].TaskID != "plan" {
		t.Errorf("handled events = %+v", got)
	}
	if ack.acks != 1 || ack.nacks != 1 || ack.requeued {
		t.Errorf("acks=%d nacks=%d requeued=%v", ack.acks, ack.nacks, ack.requeued)
	}
	if len(ch.bindings) != 1 || ch.bindings[0].key != "task.*" {
		t.Errorf("bindings = %v", ch.bindings)
	}
}
