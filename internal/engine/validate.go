package engine

import (
	"fmt"
)

// AgentKinds — источник известных видов агентов (реестр агентов).
type AgentKinds interface {
	Has(kind string) bool
}

// Validate выполняет полную валидацию документа workflow.
//
// Документ — результат декодирования YAML/JSON (до применения значений
// по умолчанию). Все проверки выполняются всегда, возвращается полный
// список найденных ошибок; пустой список означает, что документ корректен.
//
// Проверяет:
// - Структуру документа (version, name, tasks, типы полей, settings)
// - Наличие задач
// - Уникальность ID задач
// - Известность вида агента (если kinds != nil)
// - Валидность зависимостей (ссылки вперёд допустимы)
// - Отсутствие циклов в зависимостях
// - Ссылки ${id.output} в параметрах на объявленные задачи
//   из транзитивных зависимостей
//
// Функция чистая: не изменяет candidate и не имеет побочных эффектов.
func Validate(candidate map[string]any, kinds AgentKinds) []*ValidationError {
	if candidate == nil {
		return []*ValidationError{
			NewValidationError("", "", "workflow document is empty", ErrEmptyTasks),
		}
	}

	errs := validateSchema(candidate)

	rawTasks, ok := candidate["tasks"].([]any)
	if !ok {
		// Отсутствие или неверный тип tasks уже отражены схемой
		return errs
	}
	if len(rawTasks) == 0 {
		return append(errs, NewValidationError("", "tasks", "tasks must be a non-empty sequence", ErrEmptyTasks))
	}

	// Первый проход: собираем все объявленные ID
	declared := make(map[string]bool, len(rawTasks))
	for i, raw := range rawTasks {
		task, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		id, _ := task["id"].(string)
		if id == "" {
			continue
		}
		if declared[id] {
			errs = append(errs, NewValidationError(id, "id",
				fmt.Sprintf("duplicate task ID: %s (tasks[%d])", id, i), ErrDuplicateTaskID))
			continue
		}
		declared[id] = true
	}

	// Второй проход: проверяем каждую задачу
	for _, raw := range rawTasks {
		task, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		errs = append(errs, validateTask(task, declared, kinds)...)
	}

	// Третий проход: граф по корректным рёбрам
	order, deps := dependencyMap(rawTasks, declared)
	errs = append(errs, validateCycles(order, deps)...)
	errs = append(errs, validateReferenceScope(rawTasks, declared, deps)...)

	return errs
}

// dependencyMap собирает зависимости задач в порядке объявления.
// Учитываются только первые вхождения ID и рёбра на объявленные задачи,
// остальное уже отражено в ошибках второго прохода.
func dependencyMap(rawTasks []any, declared map[string]bool) ([]string, map[string][]string) {
	order := make([]string, 0, len(declared))
	deps := make(map[string][]string, len(declared))

	for _, raw := range rawTasks {
		task, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		id, _ := task["id"].(string)
		if id == "" {
			continue
		}
		if _, seen := deps[id]; seen {
			continue
		}
		order = append(order, id)
		deps[id] = []string{}

		list, _ := task["dependencies"].([]any)
		for _, raw := range list {
			dep, ok := raw.(string)
			if !ok || dep == id || !declared[dep] {
				continue
			}
			deps[id] = append(deps[id], dep)
		}
	}
	return order, deps
}

// validateCycles ищет циклы обходом в глубину.
//
// Обход идёт по рёбрам зависимость → зависимый в порядке объявления,
// как в BuildGraph, поэтому путь цикла совпадает с *CycleError графа.
// Каждое обратное ребро даёт отдельную ошибку.
func validateCycles(order []string, deps map[string][]string) []*ValidationError {
	dependents := make(map[string][]string, len(order))
	for _, id := range order {
		for _, dep := range deps[id] {
			dependents[dep] = append(dependents[dep], id)
		}
	}

	var errs []*ValidationError
	state := make(map[string]visitState, len(order))
	stack := make([]string, 0, len(order))

	var visit func(id string)
	visit = func(id string) {
		state[id] = visiting
		stack = append(stack, id)

		for _, next := range dependents[id] {
			switch state[next] {
			case visiting:
				cycle := cyclePath(stack, next)
				errs = append(errs, NewValidationError(cycle.Path[0], "dependencies", cycle.Error(), cycle))
			case unvisited:
				visit(next)
			}
		}

		stack = stack[:len(stack)-1]
		state[id] = visited
	}

	for _, id := range order {
		if state[id] == unvisited {
			visit(id)
		}
	}
	return errs
}

// cyclePath вырезает из стека обхода путь от repeated до вершины стека.
func cyclePath(stack []string, repeated string) *CycleError {
	start := 0
	for i, id := range stack {
		if id == repeated {
			start = i
			break
		}
	}
	return &CycleError{Path: append([]string(nil), stack[start:]...)}
}

// validateReferenceScope проверяет, что токены ${id.output} ссылаются
// только на транзитивные зависимости задачи. Иначе output может быть
// ещё не записан к моменту запуска задачи.
func validateReferenceScope(rawTasks []any, declared map[string]bool, deps map[string][]string) []*ValidationError {
	var errs []*ValidationError
	checked := make(map[string]bool, len(deps))

	for _, raw := range rawTasks {
		task, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		id, _ := task["id"].(string)
		if id == "" || checked[id] {
			continue
		}
		checked[id] = true

		params, ok := task["parameters"]
		if !ok || params == nil {
			continue
		}

		var closure map[string]bool
		for _, ref := range References(params) {
			if !declared[ref] {
				// Уже отражено как ErrUnknownReference
				continue
			}
			if closure == nil {
				closure = ancestors(id, deps)
			}
			if !closure[ref] {
				errs = append(errs, NewValidationError(id, "parameters",
					fmt.Sprintf("references output of task %s which is not among its dependencies (missing dependency declaration)", ref),
					ErrUndeclaredReference))
			}
		}
	}
	return errs
}

// ancestors возвращает транзитивные зависимости задачи.
// Корректно завершается и при наличии циклов.
func ancestors(id string, deps map[string][]string) map[string]bool {
	seen := make(map[string]bool)
	queue := append([]string(nil), deps[id]...)
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if seen[cur] {
			continue
		}
		seen[cur] = true
		queue = append(queue, deps[cur]...)
	}
	return seen
}

// validateTask выполняет проверки одной задачи, требующие знания о других задачах.
func validateTask(task map[string]any, declared map[string]bool, kinds AgentKinds) []*ValidationError {
	var errs []*ValidationError

	id, _ := task["id"].(string)

	// Проверка вида агента
	if agent, ok := task["agent"].(string); ok && agent != "" && kinds != nil && !kinds.Has(agent) {
		errs = append(errs, NewValidationError(id, "agent",
			fmt.Sprintf("unknown agent: %s", agent), ErrUnknownAgent))
	}

	// Проверка зависимостей
	if deps, ok := task["dependencies"].([]any); ok {
		for _, raw := range deps {
			dep, ok := raw.(string)
			if !ok {
				continue
			}
			if id != "" && dep == id {
				errs = append(errs, NewValidationError(id, "dependencies",
					"task depends on itself", ErrSelfDependency))
				continue
			}
			if !declared[dep] {
				errs = append(errs, NewValidationError(id, "dependencies",
					fmt.Sprintf("depends on unknown task: %s", dep), ErrMissingDependency))
			}
		}
	}

	// Проверка ссылок в параметрах
	if params, ok := task["parameters"]; ok && params != nil {
		for _, ref := range References(params) {
			if !declared[ref] {
				errs = append(errs, NewValidationError(id, "parameters",
					fmt.Sprintf("references output of unknown task: %s", ref), ErrUnknownReference))
			}
		}
	}

	return errs
}
