package agents

import (
	"context"
	"fmt"
	"time"
)

const (
	// KindDelay — вид агента задержки.
	KindDelay = "delay"

	// Ключи параметров delay.
	paramDurationSec = "duration_sec"
	paramDurationMs  = "duration_ms"
)

// DelayAgent — агент задержки.
//
// Приостанавливает выполнение на указанное время.
// Поддерживает отмену и таймаут через context.
//
// Параметры:
//
//	{
//	    "duration_sec": 10,    // задержка в секундах
//	    // или
//	    "duration_ms": 5000    // задержка в миллисекундах
//	}
type DelayAgent struct{}

// NewDelayAgent создаёт новый DelayAgent.
func NewDelayAgent() *DelayAgent {
	return &DelayAgent{}
}

// Kind возвращает вид агента.
func (a *DelayAgent) Kind() string {
	return KindDelay
}

// Description возвращает описание агента.
func (a *DelayAgent) Description() string {
	return "Waits for duration_sec or duration_ms"
}

// Invoke выполняет задержку.
func (a *DelayAgent) Invoke(ctx context.Context, req *Request) (*Response, error) {
	duration, err := a.parseDuration(req.Parameters)
	if err != nil {
		return nil, err
	}

	timer := time.NewTimer(duration)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", ErrAgentCancelled, ctx.Err())
	case <-timer.C:
		return &Response{
			Output: map[string]any{
				"duration_ms": duration.Milliseconds(),
			},
		}, nil
	}
}

// parseDuration извлекает длительность из параметров.
func (a *DelayAgent) parseDuration(params map[string]any) (time.Duration, error) {
	if sec := GetInt(params, paramDurationSec); sec > 0 {
		return time.Duration(sec) * time.Second, nil
	}

	if ms := GetInt(params, paramDurationMs); ms > 0 {
		return time.Duration(ms) * time.Millisecond, nil
	}

	return 0, fmt.Errorf("%w: %s: duration_sec or duration_ms required",
		ErrInvalidParameters, KindDelay)
}
