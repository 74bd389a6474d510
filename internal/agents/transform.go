package agents

import (
	"context"
	"encoding/json"
	"fmt"
)

const (
	// KindTransform — вид агента трансформации.
	KindTransform = "transform"

	paramMappings = "mappings"
)

// TransformAgent — агент, собирающий выход из уже интерполированных строк.
//
// Параметры:
//
//	{
//	    "mappings": {
//	        "plan": "${plan.output}",
//	        "count": "${stats.output.total}",
//	        "config": "${fetch.output.body}"
//	    }
//	}
//
// Output — объект с теми же ключами. Значения, похожие на JSON
// (объект, массив, число, bool), разбираются, остальные остаются строками.
type TransformAgent struct{}

// NewTransformAgent создаёт TransformAgent.
func NewTransformAgent() *TransformAgent {
	return &TransformAgent{}
}

// Kind возвращает вид агента.
func (a *TransformAgent) Kind() string {
	return KindTransform
}

// Description возвращает описание агента.
func (a *TransformAgent) Description() string {
	return "Builds an object from mappings, decoding JSON-looking values"
}

// Invoke выполняет трансформацию.
func (a *TransformAgent) Invoke(ctx context.Context, req *Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAgentCancelled, err)
	}

	raw, ok := req.Parameters[paramMappings]
	if !ok {
		return &Response{Output: map[string]any{}}, nil
	}

	outputs := make(map[string]any)
	switch m := raw.(type) {
	case map[string]any:
		for key, val := range m {
			if s, ok := val.(string); ok {
				outputs[key] = parseValue(s)
			} else {
				outputs[key] = val
			}
		}
	case map[string]string:
		for key, val := range m {
			outputs[key] = parseValue(val)
		}
	default:
		return nil, fmt.Errorf("%w: %s: mappings must be an object", ErrInvalidParameters, KindTransform)
	}

	return &Response{Output: outputs}, nil
}

// parseValue пытается распарсить строку как JSON.
// Если не получается, возвращает строку как есть.
func parseValue(value string) any {
	var obj map[string]any
	if err := json.Unmarshal([]byte(value), &obj); err == nil {
		return obj
	}

	var arr []any
	if err := json.Unmarshal([]byte(value), &arr); err == nil {
		return arr
	}

	var num json.Number
	if err := json.Unmarshal([]byte(value), &num); err == nil {
		if i, err := num.Int64(); err == nil {
			return i
		}
		if f, err := num.Float64(); err == nil {
			return f
		}
	}

	var b bool
	if err := json.Unmarshal([]byte(value), &b); err == nil {
		return b
	}

	return value
}
