// Package worker выполняет отдельные задачи workflow.
//
// # Обзор
//
// Worker — stateless исполнитель одной задачи. Execution Engine
// запускает Run в отдельной горутине для каждой готовой задачи
// и получает Result через свой канал завершений.
//
//	w := worker.New(worker.Config{
//	    Invoker: registry, // agents.Registry
//	    Logger:  logger,
//	})
//
//	res := w.Run(ctx, worker.Job{
//	    TaskID:     "design",
//	    Agent:      "architect",
//	    Parameters: params,
//	    Timeout:    5 * time.Minute,
//	})
//
// # Таймаут
//
// Run ждёт либо завершения агента, либо истечения Job.Timeout.
// Агенту передаётся контекст с дедлайном; если агент его игнорирует,
// Run всё равно возвращается вовремя с ErrExecutionTimeout.
//
// # Ошибки
//
//   - ErrExecutionTimeout — истёк таймаут задачи
//   - ErrExecutionCancelled — отменён родительский контекст
//   - ErrExecutionFailed — агент паниковал
//
// Ошибки агента возвращаются как есть. Повторов нет: упавшая задача
// окончательна для данного выполнения.
package worker
