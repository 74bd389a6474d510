package engine

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/shaiso/Orchestra/internal/domain"
	"gopkg.in/yaml.v3"
)

// Format — формат файла workflow.
type Format string

const (
	// FormatYAML — YAML (.yaml, .yml).
	FormatYAML Format = "yaml"

	// FormatJSON — JSON (.json).
	FormatJSON Format = "json"
)

// FormatFromPath определяет формат по расширению файла.
// Всё, что не .json, читается как YAML (JSON — подмножество YAML).
func FormatFromPath(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return FormatJSON
	}
	return FormatYAML
}

// IsWorkflowFile возвращает true для файлов с расширением .yaml, .yml или .json.
func IsWorkflowFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json":
		return true
	default:
		return false
	}
}

// Parser — загрузчик workflow из файлов.
//
// Parser декодирует документ, валидирует его, применяет значения по
// умолчанию и проверяет граф зависимостей. Значения по умолчанию
// передаются явно через опции, а не читаются из глобального состояния.
type Parser struct {
	kinds          AgentKinds
	defaultTimeout int
	defaultPolicy  domain.FailurePolicy
}

// ParserOption — опция Parser.
type ParserOption func(*Parser)

// WithDefaultTimeout задаёт settings.timeout по умолчанию (секунды).
func WithDefaultTimeout(sec int) ParserOption {
	return func(p *Parser) {
		if sec > 0 {
			p.defaultTimeout = sec
		}
	}
}

// WithDefaultOnFailure задаёт settings.on_failure по умолчанию.
func WithDefaultOnFailure(policy domain.FailurePolicy) ParserOption {
	return func(p *Parser) {
		if policy.IsValid() {
			p.defaultPolicy = policy
		}
	}
}

// NewParser создаёт Parser.
// kinds — реестр агентов для проверки поля agent; nil отключает проверку.
func NewParser(kinds AgentKinds, opts ...ParserOption) *Parser {
	p := &Parser{
		kinds:          kinds,
		defaultTimeout: domain.DefaultTimeoutSec,
		defaultPolicy:  domain.DefaultOnFailure,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse читает и разбирает файл workflow.
//
// Возвращает *ConfigurationError, если файл не читается, не декодируется,
// не проходит валидацию или содержит цикл зависимостей.
func (p *Parser) Parse(path string) (*domain.Workflow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, NewConfigurationError(path, fmt.Errorf("%w: %v", ErrReadFile, err))
	}
	return p.ParseBytes(data, FormatFromPath(path), path)
}

// ParseBytes разбирает workflow из содержимого.
// source используется только в тексте ошибок.
func (p *Parser) ParseBytes(data []byte, format Format, source string) (*domain.Workflow, error) {
	if source == "" {
		source = "<input>"
	}

	candidate, err := decode(data, format)
	if err != nil {
		return nil, NewConfigurationError(source, fmt.Errorf("%w: %v", ErrDecode, err))
	}

	return p.ParseMap(candidate, source)
}

// ParseMap разбирает уже декодированный документ.
func (p *Parser) ParseMap(candidate map[string]any, source string) (*domain.Workflow, error) {
	if candidate != nil {
		candidate, _ = normalizeValue(candidate).(map[string]any)
	}

	if verrs := Validate(candidate, p.kinds); len(verrs) > 0 {
		errs := make([]error, 0, len(verrs))
		for _, e := range verrs {
			errs = append(errs, e)
		}
		return nil, NewConfigurationError(source, errs...)
	}

	wf, err := materialize(candidate)
	if err != nil {
		return nil, NewConfigurationError(source, fmt.Errorf("%w: %v", ErrDecode, err))
	}

	p.applyDefaults(wf)

	// Validate уже отсёк циклы; граф строится как финальная проверка
	if _, err := BuildGraph(wf.Tasks); err != nil {
		return nil, NewConfigurationError(source, err)
	}

	return wf, nil
}

// applyDefaults заполняет отсутствующие значения.
func (p *Parser) applyDefaults(wf *domain.Workflow) {
	if wf.Settings.Timeout <= 0 {
		wf.Settings.Timeout = p.defaultTimeout
	}
	if wf.Settings.OnFailure == "" {
		wf.Settings.OnFailure = p.defaultPolicy
	}

	for i := range wf.Tasks {
		task := &wf.Tasks[i]
		if task.Parameters == nil {
			task.Parameters = make(map[string]any)
		}
		if task.Dependencies == nil {
			task.Dependencies = make([]string, 0)
		}
	}
}

// decode декодирует документ в map[string]any.
//
// Поле version сохраняется в исходном текстовом виде ("1.0" не превращается в 1).
func decode(data []byte, format Format) (map[string]any, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errors.New("document is empty")
	}

	switch format {
	case FormatJSON:
		return decodeJSON(data)
	default:
		return decodeYAML(data)
	}
}

func decodeJSON(data []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}

	doc, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("top-level value must be an object, got %T", raw)
	}

	if n, ok := doc["version"].(json.Number); ok {
		doc["version"] = n.String()
	}

	normalized, _ := normalizeValue(doc).(map[string]any)
	return normalized, nil
}

func decodeYAML(data []byte) (map[string]any, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, err
	}
	if len(node.Content) == 0 {
		return nil, errors.New("document is empty")
	}

	root := node.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, errors.New("top-level value must be a mapping")
	}

	var raw any
	if err := root.Decode(&raw); err != nil {
		return nil, err
	}

	doc, ok := normalizeValue(raw).(map[string]any)
	if !ok {
		return nil, errors.New("top-level value must be a mapping")
	}

	if v := scalarValue(root, "version"); v != nil {
		doc["version"] = v.Value
	}

	return doc, nil
}

// scalarValue возвращает скалярное значение ключа верхнего уровня.
func scalarValue(mapping *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		k, v := mapping.Content[i], mapping.Content[i+1]
		if k.Value == key && v.Kind == yaml.ScalarNode && v.Tag != "!!null" {
			return v
		}
	}
	return nil
}

// normalizeValue приводит декодированное значение к виду JSON:
// ключи map — строки, числа — int64 или float64.
func normalizeValue(value any) any {
	switch v := value.(type) {
	case map[string]any:
		result := make(map[string]any, len(v))
		for key, val := range v {
			result[key] = normalizeValue(val)
		}
		return result

	case map[any]any:
		result := make(map[string]any, len(v))
		for key, val := range v {
			result[fmt.Sprint(key)] = normalizeValue(val)
		}
		return result

	case []any:
		result := make([]any, len(v))
		for i, val := range v {
			result[i] = normalizeValue(val)
		}
		return result

	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i
		}
		if f, err := v.Float64(); err == nil {
			return f
		}
		return v.String()

	case int:
		return int64(v)

	default:
		return value
	}
}

// materialize превращает проверенный документ в domain.Workflow.
func materialize(candidate map[string]any) (*domain.Workflow, error) {
	if v, ok := candidate["version"]; ok {
		switch n := v.(type) {
		case int64:
			candidate = withVersion(candidate, strconv.FormatInt(n, 10))
		case float64:
			candidate = withVersion(candidate, strconv.FormatFloat(n, 'f', -1, 64))
		}
	}

	data, err := json.Marshal(candidate)
	if err != nil {
		return nil, err
	}

	var wf domain.Workflow
	if err := json.Unmarshal(data, &wf); err != nil {
		return nil, err
	}
	return &wf, nil
}

// withVersion возвращает поверхностную копию документа с новым version.
func withVersion(candidate map[string]any, version string) map[string]any {
	cp := make(map[string]any, len(candidate))
	for k, v := range candidate {
		cp[k] = v
	}
	cp["version"] = version
	return cp
}

// GenerateDependencyGraph рендерит граф зависимостей в текст.
//
// Для каждой задачи в порядке объявления выводятся ID, вид агента и
// входящие рёбра, затем уровни выполнения. Повторные вызовы на одном
// и том же workflow дают побайтно одинаковый результат.
func GenerateDependencyGraph(wf *domain.Workflow) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Dependency graph: %s\n", wf.Name)

	width := 0
	for _, t := range wf.Tasks {
		if len(t.ID) > width {
			width = len(t.ID)
		}
	}

	for _, t := range wf.Tasks {
		fmt.Fprintf(&b, "  %-*s  [%s]", width, t.ID, t.Agent)
		if len(t.Dependencies) > 0 {
			fmt.Fprintf(&b, " <- %s", strings.Join(t.Dependencies, ", "))
		}
		b.WriteString("\n")
	}

	graph, err := BuildGraph(wf.Tasks)
	if err != nil {
		fmt.Fprintf(&b, "\nGraph error: %v\n", err)
		return b.String()
	}

	b.WriteString("\nExecution levels:\n")
	for i, level := range graph.Levels() {
		fmt.Fprintf(&b, "  %d: %s\n", i+1, strings.Join(level, ", "))
	}

	return b.String()
}
