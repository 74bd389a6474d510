package agents

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultAgentsDir — каталог описаний агентов в проекте.
const DefaultAgentsDir = ".claude/agents"

// ErrInvalidDefinition — файл описания агента некорректен.
var ErrInvalidDefinition = errors.New("invalid agent definition")

var frontMatterDelim = []byte("---")

// LoadDefinitions читает описания агентов из markdown-файлов каталога.
//
// Формат файла:
//
//	---
//	name: security-auditor
//	description: Audits code for vulnerabilities
//	model: claude-sonnet-4-20250514
//	---
//	You are a security auditor. ...
//
// Тело файла становится системным промптом. Если name не задан,
// используется имя файла без расширения. Отсутствующий каталог — не ошибка.
func LoadDefinitions(dir string) ([]Role, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read agents dir: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".md") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	roles := make([]Role, 0, len(names))
	for _, name := range names {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}

		role, err := ParseDefinition(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		if role.Kind == "" {
			role.Kind = strings.TrimSuffix(name, filepath.Ext(name))
		}
		roles = append(roles, role)
	}

	return roles, nil
}

// ParseDefinition разбирает один markdown-файл с YAML front matter.
func ParseDefinition(data []byte) (Role, error) {
	var role Role

	body := bytes.TrimLeft(data, "\uFEFF \t\r\n")
	if !bytes.HasPrefix(body, frontMatterDelim) {
		role.SystemPrompt = strings.TrimSpace(string(body))
		return role, nil
	}

	rest := body[len(frontMatterDelim):]
	end := bytes.Index(rest, append([]byte("\n"), frontMatterDelim...))
	if end < 0 {
		return role, fmt.Errorf("%w: unterminated front matter", ErrInvalidDefinition)
	}

	if err := yaml.Unmarshal(rest[:end], &role); err != nil {
		return role, fmt.Errorf("%w: %v", ErrInvalidDefinition, err)
	}

	prompt := rest[end+1+len(frontMatterDelim):]
	role.SystemPrompt = strings.TrimSpace(string(prompt))
	role.Kind = strings.TrimSpace(role.Kind)

	return role, nil
}

// RegisterDefinitions регистрирует ролевых агентов из описаний.
// Описание с видом встроенного агента переопределяет его.
func RegisterDefinitions(r *Registry, roles []Role, completer Completer) {
	if completer == nil {
		completer = NewOfflineCompleter()
	}
	for _, role := range roles {
		r.Register(NewRoleAgent(role, completer))
	}
}
