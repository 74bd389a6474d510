package engine

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// workflowSchema — структурная схема описания workflow.
//
// Схема проверяет только форму документа. Проверки, требующие
// знания о других задачах или о реестре агентов, выполняет Validate.
const workflowSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["version", "name", "tasks"],
  "properties": {
    "version": {"type": ["string", "number"]},
    "name": {"type": "string", "minLength": 1},
    "description": {"type": "string"},
    "tasks": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "agent"],
        "properties": {
          "id": {"type": "string", "minLength": 1, "pattern": "^[^.${}\\s]+$"},
          "agent": {"type": "string", "minLength": 1},
          "parameters": {"type": ["object", "null"]},
          "dependencies": {
            "type": ["array", "null"],
            "items": {"type": "string"}
          },
          "timeout": {"type": "integer", "minimum": 1, "maximum": 9223372036}
        }
      }
    },
    "settings": {
      "type": ["object", "null"],
      "properties": {
        "timeout": {"type": "integer", "minimum": 1, "maximum": 9223372036},
        "on_failure": {"type": "string", "enum": ["stop", "continue"]}
      }
    }
  }
}`

// compiledSchema — схема, скомпилированная один раз при загрузке пакета.
var compiledSchema = mustCompileSchema(workflowSchema)

func mustCompileSchema(src string) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
	if err != nil {
		panic(fmt.Sprintf("compile workflow schema: %v", err))
	}
	return schema
}

// validateSchema проверяет документ по структурной схеме.
//
// Ошибки отсортированы по полю, чтобы результат был детерминирован.
// Для полей внутри tasks[i] в ошибку подставляется ID задачи, если он известен.
func validateSchema(candidate map[string]any) []*ValidationError {
	result, err := compiledSchema.Validate(gojsonschema.NewGoLoader(candidate))
	if err != nil {
		return []*ValidationError{
			NewValidationError("", "", fmt.Sprintf("schema validation failed: %v", err), ErrSchemaViolation),
		}
	}
	if result.Valid() {
		return nil
	}

	resErrs := result.Errors()
	sort.SliceStable(resErrs, func(i, j int) bool {
		if resErrs[i].Field() != resErrs[j].Field() {
			return resErrs[i].Field() < resErrs[j].Field()
		}
		return resErrs[i].Description() < resErrs[j].Description()
	})

	errs := make([]*ValidationError, 0, len(resErrs))
	for _, e := range resErrs {
		field := e.Field()
		if field == gojsonschema.STRING_ROOT_SCHEMA_PROPERTY {
			field = ""
		}
		taskID, localField := taskFieldFromPath(candidate, field)
		errs = append(errs, NewValidationError(taskID, localField, describeSchemaError(localField, e), ErrSchemaViolation))
	}
	return errs
}

// describeSchemaError формирует сообщение вида "field: description".
func describeSchemaError(field string, e gojsonschema.ResultError) string {
	desc := e.Description()
	if field == "" || strings.HasPrefix(desc, field) {
		return desc
	}
	return field + ": " + desc
}

// taskFieldFromPath переводит путь вида "tasks.2.agent" в ID задачи и локальное поле.
// Для путей вне tasks возвращает пустой ID и исходный путь.
func taskFieldFromPath(candidate map[string]any, field string) (string, string) {
	parts := strings.SplitN(field, ".", 3)
	if len(parts) < 2 || parts[0] != "tasks" {
		return "", field
	}

	idx, err := strconv.Atoi(parts[1])
	if err != nil {
		return "", field
	}

	tasks, _ := candidate["tasks"].([]any)
	if idx < 0 || idx >= len(tasks) {
		return "", field
	}

	task, _ := tasks[idx].(map[string]any)
	id, _ := task["id"].(string)
	if id == "" {
		return "", field
	}

	if len(parts) == 2 {
		return id, ""
	}
	return id, parts[2]
}
