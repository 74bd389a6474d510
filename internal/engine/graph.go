package engine

import (
	"fmt"

	"github.com/shaiso/Orchestra/internal/domain"
)

// Node — узел в графе зависимостей.
type Node struct {
	// Task — определение задачи из workflow.
	Task *domain.TaskSpec

	// ID — идентификатор узла (совпадает с Task.ID).
	ID string

	// Index — позиция задачи в порядке объявления.
	Index int

	// InDegree — количество входящих рёбер (зависимостей).
	InDegree int

	// DependsOn — узлы, от которых зависит этот узел.
	DependsOn []*Node

	// Dependents — узлы, которые зависят от этого узла (в порядке объявления).
	Dependents []*Node
}

// Graph — направленный ациклический граф задач workflow.
//
// Граф неизменяем после построения и безопасен для чтения из нескольких горутин.
type Graph struct {
	// Nodes — все узлы графа (taskID → Node).
	Nodes map[string]*Node

	// Order — узлы в порядке объявления.
	Order []*Node

	// RootNodes — узлы без зависимостей (в порядке объявления).
	RootNodes []*Node
}

// BuildGraph строит граф зависимостей из задач.
//
// Возвращает *UnknownDependencyError, если зависимость не объявлена,
// и *CycleError, если зависимости образуют цикл.
func BuildGraph(tasks []domain.TaskSpec) (*Graph, error) {
	g := &Graph{
		Nodes:     make(map[string]*Node, len(tasks)),
		Order:     make([]*Node, 0, len(tasks)),
		RootNodes: make([]*Node, 0),
	}

	// Первый проход: создаём все узлы (допускаются ссылки вперёд)
	for i := range tasks {
		if err := g.addNode(&tasks[i], i); err != nil {
			return nil, err
		}
	}

	// Второй проход: связываем узлы по зависимостям
	for _, node := range g.Order {
		if err := g.linkDependencies(node); err != nil {
			return nil, err
		}
	}

	g.findRootNodes()

	if err := g.detectCycle(); err != nil {
		return nil, err
	}

	return g, nil
}

// addNode добавляет узел в граф.
func (g *Graph) addNode(task *domain.TaskSpec, index int) error {
	if task.ID == "" {
		return NewValidationError("", fmt.Sprintf("tasks[%d].id", index), "task has empty ID", ErrEmptyTaskID)
	}
	if _, exists := g.Nodes[task.ID]; exists {
		return NewValidationError(task.ID, "id", "duplicate task ID", ErrDuplicateTaskID)
	}

	node := &Node{
		Task:       task,
		ID:         task.ID,
		Index:      index,
		DependsOn:  make([]*Node, 0, len(task.Dependencies)),
		Dependents: make([]*Node, 0),
	}
	g.Nodes[task.ID] = node
	g.Order = append(g.Order, node)
	return nil
}

// linkDependencies связывает узел с его зависимостями.
func (g *Graph) linkDependencies(node *Node) error {
	for _, depID := range node.Task.Dependencies {
		depNode, exists := g.Nodes[depID]
		if !exists {
			return &UnknownDependencyError{TaskID: node.ID, Dependency: depID}
		}
		g.addEdge(depNode, node)
	}
	return nil
}

// addEdge добавляет ребро между узлами.
// Повторные зависимости не увеличивают InDegree.
func (g *Graph) addEdge(from, to *Node) {
	for _, dep := range to.DependsOn {
		if dep.ID == from.ID {
			return
		}
	}
	from.Dependents = append(from.Dependents, to)
	to.DependsOn = append(to.DependsOn, from)
	to.InDegree++
}

// findRootNodes находит узлы без входящих рёбер.
func (g *Graph) findRootNodes() {
	g.RootNodes = g.RootNodes[:0]
	for _, node := range g.Order {
		if node.InDegree == 0 {
			g.RootNodes = append(g.RootNodes, node)
		}
	}
}

type visitState int

const (
	unvisited visitState = iota
	visiting             // узел в текущем стеке обхода
	visited
)

// detectCycle ищет цикл обходом в глубину со стеком рекурсии.
//
// Обход идёт по рёбрам зависимость → зависимый, начиная с узлов
// в порядке объявления, поэтому путь цикла детерминирован.
func (g *Graph) detectCycle() error {
	state := make(map[string]visitState, len(g.Order))
	stack := make([]*Node, 0, len(g.Order))

	var visit func(node *Node) error
	visit = func(node *Node) error {
		state[node.ID] = visiting
		stack = append(stack, node)

		for _, next := range node.Dependents {
			switch state[next.ID] {
			case visiting:
				return newCycleError(stack, next)
			case unvisited:
				if err := visit(next); err != nil {
					return err
				}
			}
		}

		stack = stack[:len(stack)-1]
		state[node.ID] = visited
		return nil
	}

	for _, node := range g.Order {
		if state[node.ID] != unvisited {
			continue
		}
		if err := visit(node); err != nil {
			return err
		}
	}
	return nil
}

// newCycleError собирает путь цикла: от повторно встреченного узла до вершины стека.
func newCycleError(stack []*Node, repeated *Node) *CycleError {
	return cyclePath(nodeIDs(stack), repeated.ID)
}

// ReadySet возвращает ID задач, готовых к запуску, в порядке объявления.
//
// Задача готова, если её статус pending (отсутствие в statuses тоже
// считается pending) и все её зависимости в статусе succeeded.
// Зависимость в статусе failed или skipped блокирует задачу навсегда.
func (g *Graph) ReadySet(statuses map[string]domain.TaskStatus) []string {
	ready := make([]string, 0)

	for _, node := range g.Order {
		if st, ok := statuses[node.ID]; ok && st != domain.TaskStatusPending {
			continue
		}

		allDepsSucceeded := true
		for _, dep := range node.DependsOn {
			if statuses[dep.ID] != domain.TaskStatusSucceeded {
				allDepsSucceeded = false
				break
			}
		}

		if allDepsSucceeded {
			ready = append(ready, node.ID)
		}
	}

	return ready
}

// Descendants возвращает всех транзитивных потомков задачи в порядке объявления.
func (g *Graph) Descendants(id string) []string {
	start, ok := g.Nodes[id]
	if !ok {
		return nil
	}

	seen := make(map[string]bool)
	queue := append([]*Node(nil), start.Dependents...)
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		if seen[node.ID] {
			continue
		}
		seen[node.ID] = true
		queue = append(queue, node.Dependents...)
	}

	result := make([]string, 0, len(seen))
	for _, node := range g.Order {
		if seen[node.ID] {
			result = append(result, node.ID)
		}
	}
	return result
}

// Ancestors возвращает все транзитивные зависимости задачи в порядке объявления.
func (g *Graph) Ancestors(id string) []string {
	start, ok := g.Nodes[id]
	if !ok {
		return nil
	}

	seen := make(map[string]bool)
	queue := append([]*Node(nil), start.DependsOn...)
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		if seen[node.ID] {
			continue
		}
		seen[node.ID] = true
		queue = append(queue, node.DependsOn...)
	}

	result := make([]string, 0, len(seen))
	for _, node := range g.Order {
		if seen[node.ID] {
			result = append(result, node.ID)
		}
	}
	return result
}

// Dependencies возвращает прямые зависимости задачи.
func (g *Graph) Dependencies(id string) []string {
	node, ok := g.Nodes[id]
	if !ok {
		return nil
	}
	return nodeIDs(node.DependsOn)
}

// Dependents возвращает прямых зависимых задачи.
func (g *Graph) Dependents(id string) []string {
	node, ok := g.Nodes[id]
	if !ok {
		return nil
	}
	return nodeIDs(node.Dependents)
}

// Roots возвращает ID задач без зависимостей.
func (g *Graph) Roots() []string {
	return nodeIDs(g.RootNodes)
}

// IDs возвращает ID всех задач в порядке объявления.
func (g *Graph) IDs() []string {
	return nodeIDs(g.Order)
}

// GetNode возвращает узел по ID.
func (g *Graph) GetNode(id string) *Node {
	return g.Nodes[id]
}

// Size возвращает количество узлов в графе.
func (g *Graph) Size() int {
	return len(g.Nodes)
}

// TopologicalOrder возвращает топологический порядок (алгоритм Кана).
// Очередь заполняется корнями в порядке объявления, зависимые
// добавляются в порядке Dependents.
func (g *Graph) TopologicalOrder() []string {
	// Копируем inDegree, чтобы не модифицировать узлы
	inDegree := make(map[string]int, len(g.Nodes))
	for id, node := range g.Nodes {
		inDegree[id] = node.InDegree
	}

	queue := make([]*Node, len(g.RootNodes))
	copy(queue, g.RootNodes)

	order := make([]string, 0, len(g.Nodes))
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		order = append(order, node.ID)

		for _, dependent := range node.Dependents {
			inDegree[dependent.ID]--
			if inDegree[dependent.ID] == 0 {
				queue = append(queue, dependent)
			}
		}
	}

	return order
}

// Levels группирует задачи по уровням выполнения.
//
// Уровень задачи — длина самого длинного пути от корня. Задачи одного
// уровня могут выполняться параллельно. Внутри уровня — порядок объявления.
func (g *Graph) Levels() [][]string {
	depth := make(map[string]int, len(g.Nodes))
	maxDepth := -1

	for _, id := range g.TopologicalOrder() {
		d := 0
		for _, dep := range g.Nodes[id].DependsOn {
			if depth[dep.ID]+1 > d {
				d = depth[dep.ID] + 1
			}
		}
		depth[id] = d
		if d > maxDepth {
			maxDepth = d
		}
	}

	levels := make([][]string, maxDepth+1)
	for _, node := range g.Order {
		d := depth[node.ID]
		levels[d] = append(levels[d], node.ID)
	}
	return levels
}

func nodeIDs(nodes []*Node) []string {
	ids := make([]string, 0, len(nodes))
	for _, n := range nodes {
		ids = append(ids, n.ID)
	}
	return ids
}
