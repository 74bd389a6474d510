package agents

import (
	"context"
	"fmt"
	"strings"
)

// Completer — бэкенд языковой модели для ролевых агентов.
type Completer interface {
	Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)
}

// CompletionRequest — запрос к модели.
type CompletionRequest struct {
	// Role — вид агента, от имени которого идёт запрос.
	Role string

	// System — системный промпт роли.
	System string

	// Prompt — пользовательский промпт задачи.
	Prompt string

	// Model — модель; пустая строка означает модель бэкенда по умолчанию.
	Model string

	// MaxTokens — ограничение длины ответа; 0 означает значение по умолчанию.
	MaxTokens int64
}

// CompletionResponse — ответ модели.
type CompletionResponse struct {
	Text         string
	InputTokens  int64
	OutputTokens int64
}

// OfflineCompleter — детерминированный бэкенд без сети.
//
// Возвращает первую строку промпта с пометкой роли, например
// "[planner] Plan something". Используется для офлайн-прогонов и тестов.
type OfflineCompleter struct{}

// NewOfflineCompleter создаёт OfflineCompleter.
func NewOfflineCompleter() *OfflineCompleter {
	return &OfflineCompleter{}
}

// Complete возвращает детерминированный ответ.
func (c *OfflineCompleter) Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAgentCancelled, err)
	}

	role := req.Role
	if role == "" {
		role = "agent"
	}
	task := firstLine(req.Prompt)

	return &CompletionResponse{
		Text:         fmt.Sprintf("[%s] %s", role, task),
		InputTokens:  int64(len(strings.Fields(req.System + " " + req.Prompt))),
		OutputTokens: int64(len(strings.Fields(task)) + 1),
	}, nil
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return s
}
