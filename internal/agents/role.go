package agents

import (
	"context"
	"fmt"
	"strings"
)

// Ключи параметров ролевых агентов.
const (
	paramTask      = "task"
	paramPrompt    = "prompt"
	paramModel     = "model"
	paramMaxTokens = "max_tokens"
)

// Role — описание роли агента.
type Role struct {
	// Kind — вид агента ("planner", "coder", ...).
	Kind string `yaml:"name"`

	// Description — краткое описание роли.
	Description string `yaml:"description"`

	// Model — модель для этой роли; пусто — модель бэкенда.
	Model string `yaml:"model"`

	// SystemPrompt — системный промпт роли.
	SystemPrompt string `yaml:"-"`
}

// BuiltinRoles возвращает встроенные роли.
func BuiltinRoles() []Role {
	return []Role{
		{
			Kind:         "planner",
			Description:  "Breaks a goal into an ordered implementation plan",
			SystemPrompt: "You are a planning agent. Break the task into small, ordered, verifiable steps.",
		},
		{
			Kind:         "architect",
			Description:  "Designs components, interfaces and data flow",
			SystemPrompt: "You are a software architect. Propose components, interfaces and data flow for the task.",
		},
		{
			Kind:         "coder",
			Description:  "Writes the implementation",
			SystemPrompt: "You are a coding agent. Produce working, idiomatic code for the task.",
		},
		{
			Kind:         "reviewer",
			Description:  "Reviews changes and reports defects",
			SystemPrompt: "You are a code reviewer. List concrete defects and risks, most severe first.",
		},
		{
			Kind:         "tester",
			Description:  "Writes and reasons about tests",
			SystemPrompt: "You are a testing agent. Write tests that cover the behavior and edge cases of the task.",
		},
		{
			Kind:         "debugger",
			Description:  "Finds root causes of failures",
			SystemPrompt: "You are a debugging agent. Identify the root cause and propose a minimal fix.",
		},
		{
			Kind:         "documenter",
			Description:  "Writes user and developer documentation",
			SystemPrompt: "You are a documentation agent. Write clear, accurate documentation for the task.",
		},
		{
			Kind:         "researcher",
			Description:  "Collects background information and options",
			SystemPrompt: "You are a research agent. Summarize relevant background and compare options.",
		},
	}
}

// RoleAgent — агент, выполняющий задачу через языковую модель
// с системным промптом своей роли.
//
// Параметры:
//
//	{
//	    "task": "Design the login flow",   // или "prompt"
//	    "context": "${plan.output}",       // остальные параметры добавляются к промпту
//	    "model": "claude-sonnet-4-20250514",
//	    "max_tokens": 4096
//	}
//
// Output — текст ответа модели.
type RoleAgent struct {
	role      Role
	completer Completer
}

// NewRoleAgent создаёт RoleAgent.
func NewRoleAgent(role Role, completer Completer) *RoleAgent {
	return &RoleAgent{
		role:      role,
		completer: completer,
	}
}

// Kind возвращает вид агента.
func (a *RoleAgent) Kind() string {
	return a.role.Kind
}

// Description возвращает описание роли.
func (a *RoleAgent) Description() string {
	return a.role.Description
}

// Invoke выполняет задачу через Completer.
func (a *RoleAgent) Invoke(ctx context.Context, req *Request) (*Response, error) {
	model := a.role.Model
	if m := GetString(req.Parameters, paramModel); m != "" {
		model = m
	}

	resp, err := a.completer.Complete(ctx, &CompletionRequest{
		Role:      a.role.Kind,
		System:    a.systemPrompt(),
		Prompt:    a.buildPrompt(req),
		Model:     model,
		MaxTokens: int64(GetInt(req.Parameters, paramMaxTokens)),
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", a.role.Kind, err)
	}

	return &Response{Output: resp.Text}, nil
}

func (a *RoleAgent) systemPrompt() string {
	if a.role.SystemPrompt != "" {
		return a.role.SystemPrompt
	}
	return fmt.Sprintf("You are the %s agent. %s", a.role.Kind, a.role.Description)
}

// buildPrompt собирает пользовательский промпт: формулировка задачи,
// затем остальные параметры в виде "key: value".
func (a *RoleAgent) buildPrompt(req *Request) string {
	task := GetString(req.Parameters, paramTask)
	if task == "" {
		task = GetString(req.Parameters, paramPrompt)
	}
	if task == "" {
		task = fmt.Sprintf("Perform the %s step for task %s.", a.role.Kind, req.TaskID)
	}

	rest := FormatParameters(req.Parameters, paramTask, paramPrompt, paramModel, paramMaxTokens)
	if rest == "" {
		return task
	}

	var b strings.Builder
	b.WriteString(task)
	b.WriteString("\n\n")
	b.WriteString(rest)
	return strings.TrimRight(b.String(), "\n")
}
