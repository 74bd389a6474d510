package orchestrator

import (
	"context"

	"github.com/shaiso/Orchestra/internal/domain"
)

// EventSink — получатель событий жизненного цикла.
//
// HandleEvent вызывается синхронно из управляющей горутины Execute,
// поэтому реализация не должна блокироваться надолго. Ошибки доставки
// получатель обрабатывает сам: выполнение от них не зависит.
type EventSink interface {
	HandleEvent(ctx context.Context, ev domain.Event)
}

// EventSinkFunc адаптирует функцию к EventSink.
type EventSinkFunc func(ctx context.Context, ev domain.Event)

// HandleEvent вызывает f.
func (f EventSinkFunc) HandleEvent(ctx context.Context, ev domain.Event) {
	f(ctx, ev)
}

// MultiSink рассылает событие всем получателям по порядку.
type MultiSink []EventSink

// HandleEvent реализует EventSink.
func (m MultiSink) HandleEvent(ctx context.Context, ev domain.Event) {
	for _, s := range m {
		if s != nil {
			s.HandleEvent(ctx, ev)
		}
	}
}

// Recorder — EventSink, запоминающий события. Используется в тестах.
type Recorder struct {
	Events []domain.Event
}

// HandleEvent реализует EventSink.
func (r *Recorder) HandleEvent(_ context.Context, ev domain.Event) {
	r.Events = append(r.Events, ev)
}

// Types возвращает типы событий с ID задач, например "task.failed:a".
func (r *Recorder) Types() []string {
	out := make([]string, 0, len(r.Events))
	for _, ev := range r.Events {
		s := string(ev.Type)
		if ev.TaskID != "" {
			s += ":" + ev.TaskID
		}
		out = append(out, s)
	}
	return out
}
