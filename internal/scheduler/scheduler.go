package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/shaiso/Orchestra/internal/domain"
)

// Loader читает и валидирует файл workflow. Реализуется engine.Parser.
type Loader interface {
	Parse(path string) (*domain.Workflow, error)
}

// Runner выполняет workflow. Реализуется orchestrator.Engine.
type Runner interface {
	Execute(ctx context.Context, wf *domain.Workflow) (*domain.ExecutionSummary, error)
}

// Scheduler периодически запускает workflow из файла.
//
// Каждое срабатывание разбирает файл заново и запускает новое выполнение.
// Срабатывание, пришедшее во время незавершённого запуска, пропускается.
type Scheduler struct {
	loader Loader
	runner Runner
	logger *slog.Logger
	now    func() time.Time
	loc    *time.Location

	mu    sync.Mutex
	sched domain.Schedule

	running atomic.Bool
}

// Config — конфигурация Scheduler.
type Config struct {
	// Path — путь к файлу workflow.
	Path string

	// CronExpr — cron-выражение ("*/5 * * * *", "@hourly").
	CronExpr string

	// Timezone — часовой пояс (default: UTC).
	Timezone string

	Loader Loader
	Runner Runner

	// Logger (опционально; если nil — slog.Default()).
	Logger *slog.Logger

	// Now — источник времени (опционально, для тестов).
	Now func() time.Time
}

// New создаёт Scheduler. Возвращает ошибку для некорректного
// cron-выражения или timezone.
func New(cfg Config) (*Scheduler, error) {
	if cfg.Path == "" {
		return nil, ErrMissingPath
	}
	if err := ValidateCronExpr(cfg.CronExpr); err != nil {
		return nil, err
	}
	loc, err := loadLocation(cfg.Timezone)
	if err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	s := &Scheduler{
		loader: cfg.Loader,
		runner: cfg.Runner,
		logger: logger.With("component", "scheduler", "path", cfg.Path),
		now:    now,
		loc:    loc,
		sched: domain.Schedule{
			Path:     cfg.Path,
			CronExpr: cfg.CronExpr,
			Timezone: loc.String(),
		},
	}

	s.updateNextDue(now())
	return s, nil
}

// Schedule возвращает копию текущего состояния расписания.
func (s *Scheduler) Schedule() domain.Schedule {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sched
}

// Run запускает cron и блокируется до отмены ctx.
// Ожидает завершения выполняющегося запуска перед возвратом.
func (s *Scheduler) Run(ctx context.Context) error {
	c := cron.New(
		cron.WithParser(cronParser),
		cron.WithLocation(s.loc),
	)

	_, err := c.AddFunc(s.sched.CronExpr, func() {
		if err := s.Tick(ctx); err != nil {
			s.logger.Warn("scheduled run did not execute", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("%w %q: %v", ErrInvalidCronExpr, s.sched.CronExpr, err)
	}

	s.logger.Info("scheduler started",
		"cron", s.sched.CronExpr,
		"timezone", s.loc.String(),
		"next_due_at", s.Schedule().NextDueAt,
	)

	c.Start()
	<-ctx.Done()

	s.logger.Info("scheduler stopping")
	<-c.Stop().Done()

	return nil
}

// Tick выполняет один запуск.
//
// 1. Пропускает запуск, если предыдущий не завершён (ErrStillRunning)
// 2. Разбирает файл workflow
// 3. Выполняет workflow
// 4. Записывает результат и вычисляет next_due_at
func (s *Scheduler) Tick(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		s.mu.Lock()
		s.sched.Skipped++
		s.mu.Unlock()

		s.logger.Warn("skipping tick, previous execution still running")
		return ErrStillRunning
	}
	defer s.running.Store(false)

	startedAt := s.now()

	wf, err := s.loader.Parse(s.sched.Path)
	if err != nil {
		s.recordError(err, startedAt)
		return fmt.Errorf("load workflow: %w", err)
	}

	summary, err := s.runner.Execute(ctx, wf)
	if err != nil {
		s.recordError(err, startedAt)
		return fmt.Errorf("execute workflow %s: %w", wf.Name, err)
	}

	s.mu.Lock()
	s.sched.RecordRun(summary.ExecutionID, summary.Status, startedAt)
	s.mu.Unlock()
	s.updateNextDue(s.now())

	s.logger.Info("scheduled run completed",
		"workflow", wf.Name,
		"execution_id", summary.ExecutionID,
		"status", summary.Status,
		"duration", summary.Duration(),
	)

	return nil
}

func (s *Scheduler) recordError(err error, at time.Time) {
	s.mu.Lock()
	s.sched.RecordError(err, at)
	s.mu.Unlock()
	s.updateNextDue(s.now())

	s.logger.Error("scheduled run failed", "error", err)
}

func (s *Scheduler) updateNextDue(from time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := CalculateNextDue(&s.sched, from)
	if err != nil {
		s.logger.Error("failed to calculate next due", "error", err)
		return
	}
	s.sched.NextDueAt = &next
}
