package engine

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
)

// referencePattern — токен ссылки на output задачи.
//
//	${planner.output}        — весь output задачи planner
//	${planner.output.steps}  — поле steps из output-объекта
//
// ID захватывается до первого ".output", поэтому токен с точкой в ID
// (${step.one.output}) тоже распознаётся. Схема запрещает точку в ID
// задачи, и валидатор сообщает о таком токене как о ссылке на
// необъявленную задачу.
var referencePattern = regexp.MustCompile(`\$\{\s*([^{}\s]+?)\.output((?:\.[^.{}\s]+)*)\s*\}`)

// ContextStore — хранилище outputs задач одного выполнения.
//
// Каждая задача записывает output не более одного раза. Записи не
// удаляются и не изменяются до конца выполнения.
type ContextStore struct {
	mu      sync.RWMutex
	outputs map[string]any
}

// NewContextStore создаёт пустое хранилище.
func NewContextStore() *ContextStore {
	return &ContextStore{
		outputs: make(map[string]any),
	}
}

// Record записывает output задачи.
// Повторная запись для той же задачи возвращает ErrOutputAlreadyRecorded.
func (c *ContextStore) Record(taskID string, output any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.outputs[taskID]; exists {
		return fmt.Errorf("%w: %s", ErrOutputAlreadyRecorded, taskID)
	}
	c.outputs[taskID] = output
	return nil
}

// Output возвращает записанный output задачи.
func (c *ContextStore) Output(taskID string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out, ok := c.outputs[taskID]
	return out, ok
}

// Len возвращает количество записанных outputs.
func (c *ContextStore) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.outputs)
}

// Snapshot возвращает копию записанных outputs.
func (c *ContextStore) Snapshot() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snap := make(map[string]any, len(c.outputs))
	for k, v := range c.outputs {
		snap[k] = v
	}
	return snap
}

// Restrict возвращает хранилище только с outputs перечисленных задач.
// Задачи без записанного output пропускаются.
func (c *ContextStore) Restrict(taskIDs []string) *ContextStore {
	c.mu.RLock()
	defer c.mu.RUnlock()

	scoped := &ContextStore{outputs: make(map[string]any, len(taskIDs))}
	for _, id := range taskIDs {
		if out, ok := c.outputs[id]; ok {
			scoped.outputs[id] = out
		}
	}
	return scoped
}

// Interpolate заменяет все токены ${id.output} в строке на текстовое
// представление записанных outputs.
//
// Строка без токенов возвращается без изменений. Если хотя бы один токен
// не разрешается, возвращается *UnresolvedReferenceError.
// consumingTaskID используется только в тексте ошибки.
func (c *ContextStore) Interpolate(template, consumingTaskID string) (string, error) {
	if !strings.Contains(template, "${") {
		return template, nil
	}

	matches := referencePattern.FindAllStringSubmatchIndex(template, -1)
	if len(matches) == 0 {
		return template, nil
	}

	var b strings.Builder
	last := 0
	for _, m := range matches {
		token := template[m[0]:m[1]]
		refID := template[m[2]:m[3]]
		fieldPath := strings.TrimPrefix(template[m[4]:m[5]], ".")

		value, err := c.resolve(refID, fieldPath)
		if err != nil {
			refErr := &UnresolvedReferenceError{
				TaskID:    consumingTaskID,
				Reference: refID,
				Token:     token,
			}
			if _, recorded := c.Output(refID); recorded {
				refErr.Field = fieldPath
			}
			return "", refErr
		}

		b.WriteString(template[last:m[0]])
		b.WriteString(textForm(value))
		last = m[1]
	}
	b.WriteString(template[last:])

	return b.String(), nil
}

// InterpolateValue интерполирует произвольное значение.
// Рекурсивно обрабатывает map и slice; нестроковые скаляры возвращаются как есть.
// Исходное значение не изменяется.
func (c *ContextStore) InterpolateValue(value any, consumingTaskID string) (any, error) {
	if value == nil {
		return nil, nil
	}

	switch v := value.(type) {
	case string:
		return c.Interpolate(v, consumingTaskID)

	case map[string]any:
		result := make(map[string]any, len(v))
		for key, val := range v {
			rendered, err := c.InterpolateValue(val, consumingTaskID)
			if err != nil {
				return nil, err
			}
			result[key] = rendered
		}
		return result, nil

	case []any:
		result := make([]any, len(v))
		for i, val := range v {
			rendered, err := c.InterpolateValue(val, consumingTaskID)
			if err != nil {
				return nil, err
			}
			result[i] = rendered
		}
		return result, nil

	case map[string]string:
		result := make(map[string]string, len(v))
		for key, val := range v {
			rendered, err := c.Interpolate(val, consumingTaskID)
			if err != nil {
				return nil, err
			}
			result[key] = rendered
		}
		return result, nil

	case []string:
		result := make([]string, len(v))
		for i, val := range v {
			rendered, err := c.Interpolate(val, consumingTaskID)
			if err != nil {
				return nil, err
			}
			result[i] = rendered
		}
		return result, nil

	default:
		// Для остальных типов (int, float, bool) возвращаем как есть
		return value, nil
	}
}

// InterpolateParameters интерполирует параметры задачи.
// Это обёртка над InterpolateValue для map[string]any.
func (c *ContextStore) InterpolateParameters(params map[string]any, consumingTaskID string) (map[string]any, error) {
	if params == nil {
		return make(map[string]any), nil
	}

	rendered, err := c.InterpolateValue(params, consumingTaskID)
	if err != nil {
		return nil, err
	}

	result, ok := rendered.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected map, got %T", rendered)
	}
	return result, nil
}

// resolve находит значение по ID задачи и пути внутри output.
func (c *ContextStore) resolve(taskID, fieldPath string) (any, error) {
	value, ok := c.Output(taskID)
	if !ok {
		return nil, ErrUnresolvedReference
	}
	if fieldPath == "" {
		return value, nil
	}

	for _, key := range strings.Split(fieldPath, ".") {
		obj, ok := value.(map[string]any)
		if !ok {
			return nil, ErrUnresolvedReference
		}
		value, ok = obj[key]
		if !ok {
			return nil, ErrUnresolvedReference
		}
	}
	return value, nil
}

// textForm возвращает текстовое представление output для подстановки.
// Строки подставляются как есть, объекты и массивы — как JSON.
func textForm(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	case map[string]any, []any, map[string]string, []string:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(b)
	default:
		return fmt.Sprint(v)
	}
}

// References возвращает ID задач, на которые ссылаются токены в значении.
// Рекурсивно обходит map и slice. Порядок — порядок появления, без повторов.
func References(value any) []string {
	seen := make(map[string]bool)
	refs := make([]string, 0)
	collectReferences(value, seen, &refs)
	return refs
}

func collectReferences(value any, seen map[string]bool, refs *[]string) {
	switch v := value.(type) {
	case string:
		for _, m := range referencePattern.FindAllStringSubmatch(v, -1) {
			if !seen[m[1]] {
				seen[m[1]] = true
				*refs = append(*refs, m[1])
			}
		}
	case map[string]any:
		// Ключи сортируются для детерминированного порядка
		for _, key := range sortedKeys(v) {
			collectReferences(v[key], seen, refs)
		}
	case []any:
		for _, item := range v {
			collectReferences(item, seen, refs)
		}
	case map[string]string:
		for _, s := range v {
			collectReferences(s, seen, refs)
		}
	case []string:
		for _, s := range v {
			collectReferences(s, seen, refs)
		}
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
