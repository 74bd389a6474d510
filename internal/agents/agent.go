package agents

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Ошибки агентов.
var (
	// ErrAgentNotFound — вид агента не найден в реестре.
	ErrAgentNotFound = errors.New("agent kind not found")

	// ErrInvalidParameters — невалидные параметры задачи.
	ErrInvalidParameters = errors.New("invalid agent parameters")

	// ErrAgentCancelled — выполнение агента отменено.
	ErrAgentCancelled = errors.New("agent execution cancelled")

	// ErrCompletion — модель не вернула ответ.
	ErrCompletion = errors.New("completion failed")
)

// Agent — интерфейс для видов агентов.
//
// Каждый вид агента (planner, coder, http, delay, ...) реализует этот интерфейс.
// Реестр выбирает реализацию по строковому ключу Kind().
type Agent interface {
	// Kind возвращает вид агента.
	Kind() string

	// Invoke выполняет задачу и возвращает результат.
	// Агент должен проверять ctx.Done() для отмены и таймаута.
	Invoke(ctx context.Context, req *Request) (*Response, error)
}

// Describer — агент с человекочитаемым описанием (для команды agents).
type Describer interface {
	Description() string
}

// Request — входные данные для агента.
type Request struct {
	// TaskID — идентификатор задачи.
	TaskID string

	// Parameters — параметры задачи (уже интерполированные).
	Parameters map[string]any
}

// Response — результат агента.
type Response struct {
	// Output — результат задачи. Записывается в контекст выполнения
	// и доступен следующим задачам через ${taskID.output}.
	Output any
}

// NewRequest создаёт новый Request.
func NewRequest(taskID string, params map[string]any) *Request {
	if params == nil {
		params = make(map[string]any)
	}
	return &Request{
		TaskID:     taskID,
		Parameters: params,
	}
}

// GetString извлекает строковое значение из параметров.
func GetString(params map[string]any, key string) string {
	if v, ok := params[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// GetInt извлекает числовое значение из параметров.
func GetInt(params map[string]any, key string) int {
	if v, ok := params[key]; ok {
		switch n := v.(type) {
		case int:
			return n
		case int64:
			return int(n)
		case float64:
			return int(n)
		case json.Number:
			i, _ := n.Int64()
			return int(i)
		}
	}
	return 0
}

// GetBool извлекает булево значение из параметров.
func GetBool(params map[string]any, key string, defaultVal bool) bool {
	if v, ok := params[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return defaultVal
}

// GetMapString извлекает map[string]string из параметров.
func GetMapString(params map[string]any, key string) map[string]string {
	if v, ok := params[key]; ok {
		switch m := v.(type) {
		case map[string]string:
			return m
		case map[string]any:
			result := make(map[string]string)
			for k, val := range m {
				if s, ok := val.(string); ok {
					result[k] = s
				}
			}
			return result
		}
	}
	return nil
}

// FormatParameters рендерит параметры в текст "key: value" с сортировкой ключей.
// Объекты и массивы выводятся как JSON.
func FormatParameters(params map[string]any, skip ...string) string {
	skipped := make(map[string]bool, len(skip))
	for _, s := range skip {
		skipped[s] = true
	}

	keys := make([]string, 0, len(params))
	for k := range params {
		if !skipped[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%s: %s\n", k, formatValue(params[k]))
	}
	return b.String()
}

func formatValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case nil:
		return ""
	case map[string]any, []any, map[string]string, []string:
		data, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(data)
	default:
		return fmt.Sprint(val)
	}
}
