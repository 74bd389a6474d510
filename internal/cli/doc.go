// Package cli реализует инструмент командной строки workflow.
//
// # Команды
//
//   - run FILE       — выполнить workflow (--verbose, --dry-run, --metrics-addr)
//   - validate FILE  — проверить файл, --watch перепроверяет при изменении
//   - list           — найти файлы workflow в .claude/workflows, workflows и --path
//   - agents         — список зарегистрированных видов агентов
//   - schedule FILE  — запускать workflow по cron-расписанию
//   - events         — читать события выполнения из RabbitMQ
//
// # Output
//
// Форматирование вывода. Поддерживает два режима:
//   - Таблицы (text/tabwriter) и цветной статус (fatih/color) — по умолчанию
//   - JSON — с флагом --json
//
// Данные выводятся в stdout, сообщения — в stderr, логи — в stderr через slog.
// Это позволяет использовать pipe: workflow list --json | jq .
//
// # Настройки
//
// App загружает config.Config в PersistentPreRunE и по нему собирает
// реестр агентов, Parser и получателей событий (RabbitMQ, Prometheus).
package cli
