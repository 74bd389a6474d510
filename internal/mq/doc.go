// Package mq публикует события выполнения workflow в RabbitMQ.
//
// Структура:
//   - connection.go — соединение с RabbitMQ (reconnect, graceful shutdown)
//   - topology.go   — topic exchange событий и очереди подписчиков
//   - publisher.go  — публикация событий, EventSink для Engine
//   - consumer.go   — чтение событий (команда "workflow events")
//
// Routing key совпадает с типом события:
//   - workflow.started, workflow.completed, workflow.error
//   - task.started, task.succeeded, task.failed, task.skipped
//
// Exchange по умолчанию — workflow.events (topic).
package mq
