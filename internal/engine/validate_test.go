package engine

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/shaiso/Orchestra/internal/domain"
)

// kindSet — реестр агентов для тестов.
type kindSet map[string]bool

func (k kindSet) Has(kind string) bool { return k[kind] }

var testKinds = kindSet{
	"planner":    true,
	"architect":  true,
	"coder":      true,
	"reviewer":   true,
	"tester":     true,
	"documenter": true,
}

// hasError проверяет, что среди ошибок есть нужная базовая ошибка.
func hasError(errs []*ValidationError, target error) bool {
	for _, e := range errs {
		if errors.Is(e, target) {
			return true
		}
	}
	return false
}

func TestValidate_ValidWorkflow(t *testing.T) {
	candidate := map[string]any{
		"version": "1.0",
		"name":    "test-workflow",
		"tasks": []any{
			map[string]any{
				"id":         "task1",
				"agent":      "planner",
				"parameters": map[string]any{"task": "Plan something"},
			},
		},
	}

	if errs := Validate(candidate, testKinds); len(errs) != 0 {
		t.Errorf("expected no errors, got %v", errs)
	}
}

func TestValidate_FullWorkflow(t *testing.T) {
	candidate := map[string]any{
		"version":     "1.0",
		"name":        "feature",
		"description": "Build a feature",
		"tasks": []any{
			map[string]any{
				"id":           "implement",
				"agent":        "coder",
				"parameters":   map[string]any{"design": "${design.output}"},
				"dependencies": []any{"design"},
				"timeout":      int64(60),
			},
			map[string]any{"id": "design", "agent": "architect"},
		},
		"settings": map[string]any{"timeout": int64(120), "on_failure": "continue"},
	}

	if errs := Validate(candidate, testKinds); len(errs) != 0 {
		t.Errorf("expected no errors, got %v", errs)
	}
}

func TestValidate_UnknownAgent(t *testing.T) {
	candidate := map[string]any{
		"name": "invalid",
		"tasks": []any{
			map[string]any{"id": "task1", "agent": "unknown-agent"},
		},
	}

	errs := Validate(candidate, testKinds)
	if len(errs) == 0 {
		t.Fatal("expected errors, got none")
	}
	if !hasError(errs, ErrUnknownAgent) {
		t.Errorf("expected ErrUnknownAgent, got %v", errs)
	}

	found := false
	for _, e := range errs {
		if strings.Contains(e.Error(), "unknown-agent") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected an error naming unknown-agent, got %v", errs)
	}
}

func TestValidate_ReportsAllErrors(t *testing.T) {
	// Несколько дефектов сразу: нет version, дубликат ID,
	// неизвестный агент, неизвестная зависимость, self-dependency
	candidate := map[string]any{
		"name": "broken",
		"tasks": []any{
			map[string]any{"id": "a", "agent": "planner"},
			map[string]any{"id": "a", "agent": "coder"},
			map[string]any{"id": "b", "agent": "wizard", "dependencies": []any{"ghost"}},
			map[string]any{"id": "c", "agent": "tester", "dependencies": []any{"c"}},
		},
	}

	errs := Validate(candidate, testKinds)

	for _, target := range []error{
		ErrSchemaViolation,
		ErrDuplicateTaskID,
		ErrUnknownAgent,
		ErrMissingDependency,
		ErrSelfDependency,
	} {
		if !hasError(errs, target) {
			t.Errorf("expected %v among %v", target, errs)
		}
	}
}

func TestValidate_Structure(t *testing.T) {
	tests := []struct {
		name      string
		candidate map[string]any
		target    error
	}{
		{
			name:      "nil document",
			candidate: nil,
			target:    ErrEmptyTasks,
		},
		{
			name:      "missing tasks",
			candidate: map[string]any{"version": "1", "name": "x"},
			target:    ErrSchemaViolation,
		},
		{
			name:      "empty tasks",
			candidate: map[string]any{"version": "1", "name": "x", "tasks": []any{}},
			target:    ErrEmptyTasks,
		},
		{
			name:      "tasks not a list",
			candidate: map[string]any{"version": "1", "name": "x", "tasks": "nope"},
			target:    ErrSchemaViolation,
		},
		{
			name: "task without agent",
			candidate: map[string]any{"version": "1", "name": "x", "tasks": []any{
				map[string]any{"id": "a"},
			}},
			target: ErrSchemaViolation,
		},
		{
			name: "dependencies not strings",
			candidate: map[string]any{"version": "1", "name": "x", "tasks": []any{
				map[string]any{"id": "a", "agent": "planner", "dependencies": []any{int64(1)}},
			}},
			target: ErrSchemaViolation,
		},
		{
			name: "invalid on_failure",
			candidate: map[string]any{"version": "1", "name": "x",
				"tasks":    []any{map[string]any{"id": "a", "agent": "planner"}},
				"settings": map[string]any{"on_failure": "retry"},
			},
			target: ErrSchemaViolation,
		},
		{
			name: "non-positive timeout",
			candidate: map[string]any{"version": "1", "name": "x",
				"tasks":    []any{map[string]any{"id": "a", "agent": "planner"}},
				"settings": map[string]any{"timeout": int64(0)},
			},
			target: ErrSchemaViolation,
		},
		{
			name: "reference to unknown task",
			candidate: map[string]any{"version": "1", "name": "x", "tasks": []any{
				map[string]any{"id": "a", "agent": "planner", "parameters": map[string]any{"p": "${typo.output}"}},
			}},
			target: ErrUnknownReference,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := Validate(tt.candidate, testKinds)
			if !hasError(errs, tt.target) {
				t.Errorf("expected %v, got %v", tt.target, errs)
			}
		})
	}
}

func TestValidate_SchemaErrorNamesTask(t *testing.T) {
	candidate := map[string]any{
		"version": "1",
		"name":    "x",
		"tasks": []any{
			map[string]any{"id": "lonely"},
		},
	}

	errs := Validate(candidate, testKinds)
	if len(errs) == 0 {
		t.Fatal("expected errors")
	}
	if errs[0].TaskID != "lonely" {
		t.Errorf("expected task lonely, got %q (%v)", errs[0].TaskID, errs[0])
	}
}

func TestValidate_NilKindsSkipsAgentCheck(t *testing.T) {
	candidate := map[string]any{
		"version": "1",
		"name":    "x",
		"tasks": []any{
			map[string]any{"id": "a", "agent": "anything"},
		},
	}

	if errs := Validate(candidate, nil); len(errs) != 0 {
		t.Errorf("expected no errors, got %v", errs)
	}
}

func TestValidate_DoesNotMutate(t *testing.T) {
	params := map[string]any{"p": "${a.output}"}
	candidate := map[string]any{
		"version": "1",
		"name":    "x",
		"tasks": []any{
			map[string]any{"id": "a", "agent": "planner"},
			map[string]any{"id": "b", "agent": "coder", "parameters": params},
		},
	}

	_ = Validate(candidate, testKinds)

	if _, ok := candidate["settings"]; ok {
		t.Error("Validate should not add settings")
	}
	if params["p"] != "${a.output}" {
		t.Error("Validate should not modify parameters")
	}
}

func TestValidate_DottedTaskID(t *testing.T) {
	candidate := map[string]any{
		"version": "1",
		"name":    "x",
		"tasks": []any{
			map[string]any{"id": "step.one", "agent": "planner"},
			map[string]any{
				"id":           "next",
				"agent":        "coder",
				"parameters":   map[string]any{"p": "v=${step.one.output}"},
				"dependencies": []any{"step.one"},
			},
		},
	}

	errs := Validate(candidate, testKinds)
	if !hasError(errs, ErrSchemaViolation) {
		t.Fatalf("expected ErrSchemaViolation for dotted id, got %v", errs)
	}

	found := false
	for _, e := range errs {
		if e.TaskID == "step.one" && e.Field == "id" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected an id error for task step.one, got %v", errs)
	}
}

func TestValidate_DottedReferenceToUnknownTask(t *testing.T) {
	candidate := map[string]any{
		"version": "1",
		"name":    "x",
		"tasks": []any{
			map[string]any{"id": "typo", "agent": "planner"},
			map[string]any{
				"id":           "b",
				"agent":        "coder",
				"parameters":   map[string]any{"p": "${typo.id.output}"},
				"dependencies": []any{"typo"},
			},
		},
	}

	errs := Validate(candidate, testKinds)
	if !hasError(errs, ErrUnknownReference) {
		t.Fatalf("expected ErrUnknownReference, got %v", errs)
	}
	if !strings.Contains(errs[0].Error(), "typo.id") {
		t.Errorf("expected the reference typo.id in message, got %v", errs[0])
	}
}

func TestValidate_TimeoutUpperBound(t *testing.T) {
	tests := []struct {
		name     string
		settings map[string]any
		task     map[string]any
		wantErr  bool
	}{
		{"largest settings timeout", map[string]any{"timeout": int64(9223372036)}, nil, false},
		{"settings timeout overflows duration", map[string]any{"timeout": int64(18446744074)}, nil, true},
		{"task timeout overflows duration", nil, map[string]any{"timeout": int64(10000000000)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := map[string]any{"id": "a", "agent": "planner"}
			for k, v := range tt.task {
				task[k] = v
			}
			candidate := map[string]any{
				"version": "1",
				"name":    "x",
				"tasks":   []any{task},
			}
			if tt.settings != nil {
				candidate["settings"] = tt.settings
			}

			errs := Validate(candidate, testKinds)
			if tt.wantErr && !hasError(errs, ErrSchemaViolation) {
				t.Errorf("expected ErrSchemaViolation, got %v", errs)
			}
			if !tt.wantErr && len(errs) != 0 {
				t.Errorf("expected no errors, got %v", errs)
			}
		})
	}
}

func TestValidate_Cycle(t *testing.T) {
	candidate := map[string]any{
		"version": "1",
		"name":    "x",
		"tasks": []any{
			map[string]any{"id": "A", "agent": "planner", "dependencies": []any{"B"}},
			map[string]any{"id": "B", "agent": "coder", "dependencies": []any{"A"}},
			// Цикл не скрывает остальные дефекты
			map[string]any{"id": "C", "agent": "wizard"},
		},
	}

	errs := Validate(candidate, testKinds)
	if !hasError(errs, ErrCyclicDependency) {
		t.Fatalf("expected ErrCyclicDependency, got %v", errs)
	}
	if !hasError(errs, ErrUnknownAgent) {
		t.Errorf("expected ErrUnknownAgent alongside the cycle, got %v", errs)
	}

	// Путь цикла совпадает с тем, что сообщает BuildGraph
	_, graphErr := BuildGraph([]domain.TaskSpec{
		{ID: "A", Agent: "planner", Dependencies: []string{"B"}},
		{ID: "B", Agent: "coder", Dependencies: []string{"A"}},
	})
	found := false
	for _, e := range errs {
		var cycleErr *CycleError
		if errors.As(e, &cycleErr) && cycleErr.Error() == graphErr.Error() {
			found = true
		}
	}
	if !found {
		t.Errorf("expected cycle %v among %v", graphErr, errs)
	}
}

func TestValidate_PassingWorkflowBuildsAcyclicGraph(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for round := 0; round < 300; round++ {
		n := 2 + rng.Intn(7)
		specs := make([]domain.TaskSpec, n)
		rawTasks := make([]any, n)
		for i := 0; i < n; i++ {
			id := fmt.Sprintf("t%d", i)
			var deps []string
			for j := 0; j < n; j++ {
				if j != i && rng.Intn(4) == 0 {
					deps = append(deps, fmt.Sprintf("t%d", j))
				}
			}
			specs[i] = domain.TaskSpec{ID: id, Agent: "coder", Dependencies: deps}

			rawDeps := make([]any, 0, len(deps))
			for _, d := range deps {
				rawDeps = append(rawDeps, d)
			}
			rawTasks[i] = map[string]any{"id": id, "agent": "coder", "dependencies": rawDeps}
		}

		errs := Validate(map[string]any{"version": "1", "name": "random", "tasks": rawTasks}, testKinds)
		_, graphErr := BuildGraph(specs)

		if len(errs) == 0 && graphErr != nil {
			t.Fatalf("round %d: validator passed but graph failed: %v", round, graphErr)
		}
		if errors.Is(graphErr, ErrCyclicDependency) != hasError(errs, ErrCyclicDependency) {
			t.Fatalf("round %d: graph error %v, validator errors %v", round, graphErr, errs)
		}
	}
}

func TestValidate_ReferenceOutsideDependencies(t *testing.T) {
	tests := []struct {
		name    string
		tasks   []any
		wantErr bool
	}{
		{
			name: "direct dependency",
			tasks: []any{
				map[string]any{"id": "a", "agent": "planner"},
				map[string]any{"id": "b", "agent": "coder", "dependencies": []any{"a"},
					"parameters": map[string]any{"p": "${a.output}"}},
			},
		},
		{
			name: "transitive dependency",
			tasks: []any{
				map[string]any{"id": "a", "agent": "planner"},
				map[string]any{"id": "b", "agent": "coder", "dependencies": []any{"a"}},
				map[string]any{"id": "c", "agent": "tester", "dependencies": []any{"b"},
					"parameters": map[string]any{"p": "${a.output.steps}"}},
			},
		},
		{
			name: "sibling without dependency",
			tasks: []any{
				map[string]any{"id": "a", "agent": "planner"},
				map[string]any{"id": "b", "agent": "coder",
					"parameters": map[string]any{"p": "${a.output}"}},
			},
			wantErr: true,
		},
		{
			name: "own output",
			tasks: []any{
				map[string]any{"id": "a", "agent": "planner",
					"parameters": map[string]any{"p": "${a.output}"}},
			},
			wantErr: true,
		},
		{
			name: "descendant output",
			tasks: []any{
				map[string]any{"id": "a", "agent": "planner",
					"parameters": map[string]any{"p": "${b.output}"}},
				map[string]any{"id": "b", "agent": "coder", "dependencies": []any{"a"}},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := Validate(map[string]any{"version": "1", "name": "x", "tasks": tt.tasks}, testKinds)
			if got := hasError(errs, ErrUndeclaredReference); got != tt.wantErr {
				t.Errorf("expected ErrUndeclaredReference=%v, got %v", tt.wantErr, errs)
			}
			if !tt.wantErr && len(errs) != 0 {
				t.Errorf("expected no errors, got %v", errs)
			}
		})
	}
}
