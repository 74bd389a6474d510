// Package telemetry обеспечивает наблюдаемость системы.
//
// Включает:
//   - logging.go — structured logging через slog
//   - metrics.go — Prometheus метрики (EventSink для Engine)
//
// Все команды используют единый формат логирования; run и schedule
// могут экспортировать метрики на /metrics endpoint.
package telemetry
