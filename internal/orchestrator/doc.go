// Package orchestrator выполняет workflow.
//
// Engine отвечает за:
//   - Построение графа зависимостей задач
//   - Параллельный запуск готовых задач через worker.Worker
//   - Запись выходов в ContextStore и интерполяцию параметров
//   - Применение политики отказа (stop/continue) и пропуск зависимых задач
//   - Сборку ExecutionSummary и рассылку событий в EventSink
//
// Все переходы статусов выполняет одна управляющая горутина; задачи
// сообщают о завершении через канал. Engine — это "мозг" системы,
// который координирует выполнение.
package orchestrator
