// Package scheduler периодически запускает workflow по cron-расписанию.
//
// Scheduler читает файл workflow заново на каждом срабатывании, поэтому
// правки файла подхватываются без перезапуска. Если предыдущее выполнение
// ещё идёт, срабатывание пропускается и учитывается в Schedule.Skipped.
//
// Структура:
//   - scheduler.go — Scheduler (Run, Tick)
//   - cron.go      — парсинг cron-выражений и вычисление следующего времени
//
// Использование:
//
//	sched, err := scheduler.New(scheduler.Config{
//	    Path:     "workflows/nightly.yaml",
//	    CronExpr: "0 3 * * *",
//	    Loader:   parser,
//	    Runner:   engine,
//	    Logger:   logger,
//	})
//	if err != nil {
//	    return err
//	}
//	return sched.Run(ctx)
package scheduler
