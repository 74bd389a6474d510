// Package engine содержит ядро разбора и планирования workflow.
//
// Включает:
//   - schema.go   — структурная схема документа (gojsonschema)
//   - validate.go — пакетная валидация документа
//   - parser.go   — загрузка workflow из YAML/JSON, значения по умолчанию,
//     текстовый граф зависимостей
//   - graph.go    — построение графа, поиск циклов, ready set
//   - context.go  — хранилище outputs и интерполяция ${id.output}
//
// Engine отвечает за понимание структуры workflow и определение
// порядка выполнения задач на основе их зависимостей. Само выполнение
// находится в пакете orchestrator.
package engine
