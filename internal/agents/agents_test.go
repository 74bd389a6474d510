package agents

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// fakeCompleter запоминает последний запрос и возвращает заданный ответ.
type fakeCompleter struct {
	last *CompletionRequest
	text string
	err  error
}

func (f *fakeCompleter) Complete(_ context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	f.last = req
	if f.err != nil {
		return nil, f.err
	}
	return &CompletionResponse{Text: f.text}, nil
}

// Registry Tests

func TestRegistry(t *testing.T) {
	r := NewRegistry()

	// Пустой реестр
	if r.Count() != 0 {
		t.Errorf("expected empty registry")
	}

	r.Register(NewDelayAgent())
	if r.Count() != 1 {
		t.Errorf("expected 1 agent, got %d", r.Count())
	}

	agent, err := r.Get("delay")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if agent.Kind() != "delay" {
		t.Errorf("expected delay, got %s", agent.Kind())
	}

	// Несуществующий вид
	_, err = r.Get("unknown")
	if !errors.Is(err, ErrAgentNotFound) {
		t.Errorf("expected ErrAgentNotFound, got %v", err)
	}

	if !r.Has("delay") {
		t.Error("should have delay")
	}
	if r.Has("unknown") {
		t.Error("should not have unknown")
	}

	r.Unregister("delay")
	if r.Has("delay") {
		t.Error("should not have delay after unregister")
	}
}

func TestDefaultRegistry(t *testing.T) {
	r := DefaultRegistry(nil)

	expected := []string{
		"architect", "coder", "debugger", "delay", "documenter", "echo",
		"http", "planner", "researcher", "reviewer", "tester", "transform",
	}

	kinds := r.Kinds()
	if len(kinds) != len(expected) {
		t.Fatalf("expected %d kinds, got %d: %v", len(expected), len(kinds), kinds)
	}
	for i, k := range expected {
		if kinds[i] != k {
			t.Errorf("kinds[%d] = %s, want %s", i, kinds[i], k)
		}
	}

	// У всех встроенных агентов есть описание
	for _, info := range r.Describe() {
		if info.Description == "" {
			t.Errorf("agent %s has no description", info.Kind)
		}
	}
}

func TestRegistry_Invoke(t *testing.T) {
	r := DefaultRegistry(nil)
	ctx := context.Background()

	out, err := r.Invoke(ctx, "planner", "plan", map[string]any{"task": "Plan the feature"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "[planner] Plan the feature" {
		t.Errorf("unexpected output: %v", out)
	}

	_, err = r.Invoke(ctx, "ghost", "x", nil)
	if !errors.Is(err, ErrAgentNotFound) {
		t.Errorf("expected ErrAgentNotFound, got %v", err)
	}
}

// Role Agent Tests

func TestRoleAgent_Prompt(t *testing.T) {
	fake := &fakeCompleter{text: "done"}
	agent := NewRoleAgent(Role{Kind: "coder", SystemPrompt: "You write code.", Model: "m-default"}, fake)

	resp, err := agent.Invoke(context.Background(), NewRequest("impl", map[string]any{
		"task":       "Implement login",
		"design":     "JWT based",
		"model":      "m-override",
		"max_tokens": 1024,
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Output != "done" {
		t.Errorf("unexpected output: %v", resp.Output)
	}

	req := fake.last
	if req.Role != "coder" {
		t.Errorf("role = %s", req.Role)
	}
	if req.System != "You write code." {
		t.Errorf("system = %q", req.System)
	}
	if req.Model != "m-override" {
		t.Errorf("model = %s, want m-override", req.Model)
	}
	if req.MaxTokens != 1024 {
		t.Errorf("max tokens = %d", req.MaxTokens)
	}
	// Служебные параметры не попадают в промпт
	want := "Implement login\n\ndesign: JWT based"
	if req.Prompt != want {
		t.Errorf("prompt = %q, want %q", req.Prompt, want)
	}
}

func TestRoleAgent_DefaultPrompt(t *testing.T) {
	fake := &fakeCompleter{text: "ok"}
	agent := NewRoleAgent(Role{Kind: "tester", Description: "Writes tests"}, fake)

	if _, err := agent.Invoke(context.Background(), NewRequest("t1", nil)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if fake.last.Prompt != "Perform the tester step for task t1." {
		t.Errorf("prompt = %q", fake.last.Prompt)
	}
	if !strings.Contains(fake.last.System, "Writes tests") {
		t.Errorf("system prompt should fall back to description: %q", fake.last.System)
	}
}

func TestRoleAgent_CompleterError(t *testing.T) {
	fake := &fakeCompleter{err: ErrCompletion}
	agent := NewRoleAgent(Role{Kind: "reviewer"}, fake)

	_, err := agent.Invoke(context.Background(), NewRequest("review", nil))
	if !errors.Is(err, ErrCompletion) {
		t.Errorf("expected ErrCompletion, got %v", err)
	}
}

func TestOfflineCompleter_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewOfflineCompleter().Complete(ctx, &CompletionRequest{Prompt: "x"})
	if !errors.Is(err, ErrAgentCancelled) {
		t.Errorf("expected ErrAgentCancelled, got %v", err)
	}
}

func TestFormatParameters(t *testing.T) {
	got := FormatParameters(map[string]any{
		"b":    []any{"x", "y"},
		"a":    "text",
		"skip": "me",
		"c":    3,
	}, "skip")

	want := "a: text\nb: [\"x\",\"y\"]\nc: 3\n"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

// Claude Completer Tests

func TestClaudeCompleter(t *testing.T) {
	var received map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/v1/messages") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("X-Api-Key") != "test-key" {
			t.Errorf("missing api key header")
		}
		json.NewDecoder(r.Body).Decode(&received)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id":            "msg_1",
			"type":          "message",
			"role":          "assistant",
			"model":         "claude-sonnet-4-20250514",
			"stop_reason":   "end_turn",
			"stop_sequence": nil,
			"content": []any{
				map[string]any{"type": "text", "text": "step 1"},
			},
			"usage": map[string]any{"input_tokens": 12, "output_tokens": 3},
		})
	}))
	defer server.Close()

	c, err := NewClaudeCompleter(ClaudeConfig{APIKey: "test-key", BaseURL: server.URL + "/", MaxTokens: 256})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	resp, err := c.Complete(context.Background(), &CompletionRequest{
		Role:   "planner",
		System: "You plan.",
		Prompt: "Plan it",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if resp.Text != "step 1" {
		t.Errorf("text = %q", resp.Text)
	}
	if resp.InputTokens != 12 || resp.OutputTokens != 3 {
		t.Errorf("usage = %d/%d", resp.InputTokens, resp.OutputTokens)
	}
	if received["max_tokens"] != float64(256) {
		t.Errorf("max_tokens = %v", received["max_tokens"])
	}
	if received["model"] != c.Model() {
		t.Errorf("model = %v", received["model"])
	}
}

func TestNewClaudeCompleter_NoKey(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")

	if _, err := NewClaudeCompleter(ClaudeConfig{}); err == nil {
		t.Fatal("expected error without api key")
	}
}

// Echo / Transform Tests

func TestEchoAgent(t *testing.T) {
	agent := NewEchoAgent()
	ctx := context.Background()

	resp, err := agent.Invoke(ctx, NewRequest("e", map[string]any{"message": "hi"}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Output != "hi" {
		t.Errorf("expected hi, got %v", resp.Output)
	}

	// Без message возвращаются все параметры
	resp, err = agent.Invoke(ctx, NewRequest("e", map[string]any{"n": 1}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m, ok := resp.Output.(map[string]any); !ok || m["n"] != 1 {
		t.Errorf("expected parameters, got %v", resp.Output)
	}

	// fail: true
	_, err = agent.Invoke(ctx, NewRequest("e", map[string]any{"fail": true, "error": "boom"}))
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Errorf("expected boom error, got %v", err)
	}
}

func TestTransformAgent(t *testing.T) {
	agent := NewTransformAgent()

	resp, err := agent.Invoke(context.Background(), NewRequest("tr", map[string]any{
		"mappings": map[string]any{
			"total":  "2",
			"items":  `["a","b"]`,
			"obj":    `{"k":"v"}`,
			"ok":     "true",
			"plain":  "hello world",
			"nested": map[string]any{"x": 1},
		},
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out := resp.Output.(map[string]any)
	if out["total"] != int64(2) {
		t.Errorf("total = %v (%T)", out["total"], out["total"])
	}
	if arr, ok := out["items"].([]any); !ok || len(arr) != 2 {
		t.Errorf("items = %v", out["items"])
	}
	if obj, ok := out["obj"].(map[string]any); !ok || obj["k"] != "v" {
		t.Errorf("obj = %v", out["obj"])
	}
	if out["ok"] != true {
		t.Errorf("ok = %v", out["ok"])
	}
	if out["plain"] != "hello world" {
		t.Errorf("plain = %v", out["plain"])
	}
	if _, ok := out["nested"].(map[string]any); !ok {
		t.Errorf("nested = %v", out["nested"])
	}

	_, err = agent.Invoke(context.Background(), NewRequest("tr", map[string]any{"mappings": "nope"}))
	if !errors.Is(err, ErrInvalidParameters) {
		t.Errorf("expected ErrInvalidParameters, got %v", err)
	}
}

// Delay Agent Tests

func TestDelayAgent_Invoke(t *testing.T) {
	agent := NewDelayAgent()

	start := time.Now()
	resp, err := agent.Invoke(context.Background(), NewRequest("d", map[string]any{"duration_ms": 50}))
	elapsed := time.Since(start)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if elapsed < 50*time.Millisecond {
		t.Errorf("delay was too short: %v", elapsed)
	}

	out := resp.Output.(map[string]any)
	if out["duration_ms"] != int64(50) {
		t.Errorf("duration_ms = %v", out["duration_ms"])
	}
}

func TestDelayAgent_Cancelled(t *testing.T) {
	agent := NewDelayAgent()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := agent.Invoke(ctx, NewRequest("d", map[string]any{"duration_sec": 5}))
	elapsed := time.Since(start)

	if !errors.Is(err, ErrAgentCancelled) {
		t.Errorf("expected ErrAgentCancelled, got %v", err)
	}
	if elapsed > time.Second {
		t.Errorf("cancellation took too long: %v", elapsed)
	}
}

func TestDelayAgent_InvalidParameters(t *testing.T) {
	_, err := NewDelayAgent().Invoke(context.Background(), NewRequest("d", nil))
	if !errors.Is(err, ErrInvalidParameters) {
		t.Errorf("expected ErrInvalidParameters, got %v", err)
	}
}

// HTTP Agent Tests

func TestHTTPAgent_GET(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("expected GET, got %s", r.Method)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"status": "ok"})
	}))
	defer server.Close()

	resp, err := NewHTTPAgent().Invoke(context.Background(), NewRequest("h", map[string]any{
		"url": server.URL,
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out := resp.Output.(map[string]any)
	if out["status_code"] != 200 {
		t.Errorf("expected status_code 200, got %v", out["status_code"])
	}
	body, ok := out["body"].(map[string]any)
	if !ok || body["status"] != "ok" {
		t.Errorf("unexpected body %v", out["body"])
	}
}

func TestHTTPAgent_POST_JSON(t *testing.T) {
	var receivedBody map[string]any
	var receivedAuth string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("expected Content-Type application/json")
		}
		receivedAuth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&receivedBody)
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	resp, err := NewHTTPAgent().Invoke(context.Background(), NewRequest("h", map[string]any{
		"method":  "post",
		"url":     server.URL,
		"headers": map[string]any{"Authorization": "Bearer secret123"},
		"body":    map[string]any{"summary": "looks good"},
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if resp.Output.(map[string]any)["status_code"] != 201 {
		t.Errorf("unexpected status %v", resp.Output)
	}
	if receivedBody["summary"] != "looks good" {
		t.Errorf("body not sent: %v", receivedBody)
	}
	if receivedAuth != "Bearer secret123" {
		t.Errorf("expected auth header, got %s", receivedAuth)
	}
}

func TestHTTPAgent_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "broken", http.StatusBadGateway)
	}))
	defer server.Close()

	agent := NewHTTPAgent()

	_, err := agent.Invoke(context.Background(), NewRequest("h", map[string]any{"url": server.URL}))
	if !IsHTTPError(err) {
		t.Fatalf("expected HTTPError, got %v", err)
	}
	var httpErr *HTTPError
	errors.As(err, &httpErr)
	if httpErr.StatusCode != http.StatusBadGateway {
		t.Errorf("status = %d", httpErr.StatusCode)
	}

	// allow_errors возвращает ответ как есть
	resp, err := agent.Invoke(context.Background(), NewRequest("h", map[string]any{
		"url":          server.URL,
		"allow_errors": true,
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Output.(map[string]any)["status_code"] != http.StatusBadGateway {
		t.Errorf("unexpected output %v", resp.Output)
	}
}

func TestHTTPAgent_InvalidParameters(t *testing.T) {
	_, err := NewHTTPAgent().Invoke(context.Background(), NewRequest("h", nil))
	if !errors.Is(err, ErrInvalidParameters) {
		t.Errorf("expected ErrInvalidParameters, got %v", err)
	}
}

func TestHTTPAgent_Cancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := NewHTTPAgent().Invoke(ctx, NewRequest("h", map[string]any{"url": server.URL}))
	if !errors.Is(err, ErrAgentCancelled) {
		t.Errorf("expected ErrAgentCancelled, got %v", err)
	}
}

// Definitions Tests

func TestParseDefinition(t *testing.T) {
	data := []byte("---\nname: security-auditor\ndescription: Audits code\nmodel: m1\n---\n\nYou audit code.\nBe strict.\n")

	role, err := ParseDefinition(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if role.Kind != "security-auditor" || role.Description != "Audits code" || role.Model != "m1" {
		t.Errorf("unexpected role %+v", role)
	}
	if role.SystemPrompt != "You audit code.\nBe strict." {
		t.Errorf("prompt = %q", role.SystemPrompt)
	}

	// Незакрытый front matter
	if _, err := ParseDefinition([]byte("---\nname: x\n")); !errors.Is(err, ErrInvalidDefinition) {
		t.Errorf("expected ErrInvalidDefinition, got %v", err)
	}
}

func TestLoadDefinitions(t *testing.T) {
	dir := t.TempDir()

	files := map[string]string{
		"auditor.md":  "---\nname: auditor\ndescription: Audits\n---\nAudit.",
		"migrator.md": "Migrate databases.", // без front matter: вид из имени файла
		"notes.txt":   "ignored",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	roles, err := LoadDefinitions(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(roles) != 2 {
		t.Fatalf("expected 2 roles, got %d", len(roles))
	}
	if roles[0].Kind != "auditor" || roles[1].Kind != "migrator" {
		t.Errorf("unexpected kinds %s, %s", roles[0].Kind, roles[1].Kind)
	}
	if roles[1].SystemPrompt != "Migrate databases." {
		t.Errorf("prompt = %q", roles[1].SystemPrompt)
	}

	r := NewRegistry()
	RegisterDefinitions(r, roles, nil)
	if !r.Has("auditor") || !r.Has("migrator") {
		t.Errorf("definitions not registered: %v", r.Kinds())
	}

	// Отсутствующий каталог — не ошибка
	roles, err = LoadDefinitions(filepath.Join(dir, "missing"))
	if err != nil || roles != nil {
		t.Errorf("expected nil, nil; got %v, %v", roles, err)
	}
}
