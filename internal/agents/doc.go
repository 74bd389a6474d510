// Package agents содержит реестр видов агентов и их реализации.
//
// # Обзор
//
// Агент — исполнитель задачи workflow. Задача ссылается на агента по виду
// (поле agent), движок передаёт агенту уже интерполированные параметры
// и записывает его Output в контекст выполнения.
//
//	type Agent interface {
//	    Kind() string
//	    Invoke(ctx context.Context, req *Request) (*Response, error)
//	}
//
// # Registry
//
// Registry реализует проверку видов для валидатора (Has) и вызов агентов
// для движка (Invoke):
//
//	registry := agents.DefaultRegistry(nil) // офлайн-бэкенд
//	parser := engine.NewParser(registry)
//	out, err := registry.Invoke(ctx, "planner", "plan", params)
//
// # Виды агентов
//
//   - planner, architect, coder, reviewer, tester, debugger, documenter,
//     researcher — ролевые агенты поверх Completer (role.go)
//   - echo — возвращает message или параметры (echo.go)
//   - delay — пауза (delay.go)
//   - http — HTTP запрос (http.go)
//   - transform — сборка объекта из mappings (transform.go)
//
// Дополнительные ролевые агенты описываются markdown-файлами
// в .claude/agents (definitions.go).
//
// # Бэкенды
//
//   - ClaudeCompleter — Anthropic Messages API (claude.go)
//   - OfflineCompleter — детерминированный ответ без сети (completer.go)
//
// # Файлы пакета
//
//   - agent.go       — интерфейс Agent, Request, Response, ошибки, хелперы
//   - registry.go    — Registry
//   - completer.go   — Completer, OfflineCompleter
//   - claude.go      — ClaudeCompleter
//   - role.go        — Role, BuiltinRoles, RoleAgent
//   - definitions.go — LoadDefinitions, ParseDefinition
//   - echo.go, delay.go, http.go, transform.go — служебные агенты
package agents
