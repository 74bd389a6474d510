package agents

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Registry — реестр видов агентов.
//
// Позволяет регистрировать и получать реализации Agent по виду.
// Реализует проверку видов для валидатора (Has) и вызов агентов
// для движка (Invoke). Потокобезопасен.
type Registry struct {
	mu     sync.RWMutex
	agents map[string]Agent
}

// NewRegistry создаёт пустой реестр.
func NewRegistry() *Registry {
	return &Registry{
		agents: make(map[string]Agent),
	}
}

// DefaultRegistry создаёт реестр со всеми стандартными агентами.
//
// Ролевые агенты (planner, coder, ...) используют completer;
// nil означает офлайн-бэкенд.
func DefaultRegistry(completer Completer) *Registry {
	if completer == nil {
		completer = NewOfflineCompleter()
	}

	r := NewRegistry()

	// Ролевые агенты
	for _, role := range BuiltinRoles() {
		r.Register(NewRoleAgent(role, completer))
	}

	// Служебные агенты
	r.Register(NewEchoAgent())
	r.Register(NewDelayAgent())
	r.Register(NewHTTPAgent())
	r.Register(NewTransformAgent())

	return r
}

// Register регистрирует агента в реестре.
// Если агент с таким видом уже существует, он будет перезаписан.
func (r *Registry) Register(agent Agent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.agents[agent.Kind()] = agent
}

// Get возвращает агента по виду.
// Возвращает ErrAgentNotFound, если агент не найден.
func (r *Registry) Get(kind string) (Agent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	agent, exists := r.agents[kind]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrAgentNotFound, kind)
	}

	return agent, nil
}

// Has проверяет, зарегистрирован ли вид агента.
func (r *Registry) Has(kind string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.agents[kind]
	return exists
}

// Kinds возвращает список всех зарегистрированных видов.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]string, 0, len(r.agents))
	for k := range r.agents {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// Count возвращает количество зарегистрированных агентов.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.agents)
}

// Unregister удаляет агента из реестра.
func (r *Registry) Unregister(kind string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.agents, kind)
}

// Invoke находит агента по виду и выполняет задачу.
func (r *Registry) Invoke(ctx context.Context, kind, taskID string, params map[string]any) (any, error) {
	agent, err := r.Get(kind)
	if err != nil {
		return nil, err
	}

	resp, err := agent.Invoke(ctx, NewRequest(taskID, params))
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, nil
	}
	return resp.Output, nil
}

// Info — описание зарегистрированного агента.
type Info struct {
	Kind        string `json:"kind"`
	Description string `json:"description,omitempty"`
}

// Describe возвращает описания всех агентов, отсортированные по виду.
func (r *Registry) Describe() []Info {
	kinds := r.Kinds()

	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]Info, 0, len(kinds))
	for _, k := range kinds {
		info := Info{Kind: k}
		if d, ok := r.agents[k].(Describer); ok {
			info.Description = d.Description()
		}
		infos = append(infos, info)
	}
	return infos
}
