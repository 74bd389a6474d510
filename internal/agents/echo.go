package agents

import (
	"context"
	"fmt"
)

// KindEcho — вид агента echo.
const KindEcho = "echo"

// EchoAgent — агент, возвращающий свои параметры.
//
// Параметры:
//
//	{"message": "hello ${plan.output}"}
//
// Output — значение message, если оно задано, иначе все параметры.
// С "fail": true агент возвращает ошибку (для проверки политик отказа).
type EchoAgent struct{}

// NewEchoAgent создаёт EchoAgent.
func NewEchoAgent() *EchoAgent {
	return &EchoAgent{}
}

// Kind возвращает вид агента.
func (a *EchoAgent) Kind() string {
	return KindEcho
}

// Description возвращает описание агента.
func (a *EchoAgent) Description() string {
	return "Returns its message parameter (or all parameters) as output"
}

// Invoke возвращает параметры.
func (a *EchoAgent) Invoke(ctx context.Context, req *Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAgentCancelled, err)
	}

	if GetBool(req.Parameters, "fail", false) {
		msg := GetString(req.Parameters, "error")
		if msg == "" {
			msg = "echo failure requested"
		}
		return nil, fmt.Errorf("%s: %s", req.TaskID, msg)
	}

	if msg, ok := req.Parameters["message"]; ok {
		return &Response{Output: msg}, nil
	}
	return &Response{Output: req.Parameters}, nil
}
