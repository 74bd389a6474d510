package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/shaiso/Orchestra/internal/agents"
	"github.com/shaiso/Orchestra/internal/config"
	"github.com/shaiso/Orchestra/internal/domain"
	"github.com/shaiso/Orchestra/internal/engine"
	"github.com/shaiso/Orchestra/internal/mq"
	"github.com/shaiso/Orchestra/internal/orchestrator"
	"github.com/shaiso/Orchestra/internal/telemetry"
)

// App — общее состояние команд: настройки, вывод, логгер.
// Заполняется в PersistentPreRunE после разбора флагов.
type App struct {
	configFile string
	jsonMode   bool
	noColor    bool
	logLevel   string

	Config *config.Config
	Logger *slog.Logger
}

// NewRootCmd создаёт корневую команду workflow.
func NewRootCmd(version string) *cobra.Command {
	app := &App{}

	root := &cobra.Command{
		Use:           "workflow",
		Short:         "Multi-agent workflow orchestration",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return app.init(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&app.configFile, "config", "", "Config file (default: ~/.config/workflow/config.yaml)")
	flags.BoolVar(&app.jsonMode, "json", false, "Output in JSON format")
	flags.BoolVar(&app.noColor, "no-color", false, "Disable colored output")
	flags.StringVar(&app.logLevel, "log-level", "", "Log level (DEBUG, INFO, WARN, ERROR)")

	root.AddCommand(
		newRunCmd(app),
		newValidateCmd(app),
		newListCmd(app),
		newAgentsCmd(app),
		newScheduleCmd(app),
		newEventsCmd(app),
	)

	return root
}

// init загружает настройки и настраивает логирование.
func (a *App) init(cmd *cobra.Command) error {
	cfg, err := config.Load(config.Options{ConfigFile: a.configFile})
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	a.Config = cfg

	if a.noColor {
		color.NoColor = true
	}

	a.Logger = telemetry.SetupLogger(telemetry.LogConfig{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cmd.ErrOrStderr(),
	})

	return nil
}

// output создаёт Output для команды.
func (a *App) output(cmd *cobra.Command) *Output {
	return NewOutput(cmd.OutOrStdout(), cmd.ErrOrStderr(), a.jsonMode)
}

// newCompleter выбирает бэкенд ролевых агентов.
func (a *App) newCompleter() (agents.Completer, error) {
	switch a.Config.Agents.Backend {
	case config.BackendClaude:
		return agents.NewClaudeCompleter(agents.ClaudeConfig{
			APIKey:    a.Config.Agents.APIKey,
			Model:     a.Config.Agents.Model,
			MaxTokens: a.Config.Agents.MaxTokens,
		})
	default:
		return agents.NewOfflineCompleter(), nil
	}
}

// newRegistry создаёт реестр агентов: встроенные виды и описания из agents.dir.
func (a *App) newRegistry() (*agents.Registry, error) {
	completer, err := a.newCompleter()
	if err != nil {
		return nil, err
	}

	reg := agents.DefaultRegistry(completer)

	roles, err := agents.LoadDefinitions(a.Config.Agents.Dir)
	if err != nil {
		return nil, err
	}
	agents.RegisterDefinitions(reg, roles, completer)

	if len(roles) > 0 {
		a.Logger.Debug("loaded agent definitions", "dir", a.Config.Agents.Dir, "count", len(roles))
	}

	return reg, nil
}

// newParser создаёт Parser с проверкой видов агентов по реестру.
func (a *App) newParser(kinds engine.AgentKinds) *engine.Parser {
	return engine.NewParser(kinds,
		engine.WithDefaultTimeout(a.Config.Workflow.DefaultTimeout),
		engine.WithDefaultOnFailure(domain.FailurePolicy(a.Config.Workflow.OnFailure)),
	)
}

// sinks подключает получателей событий из настроек: RabbitMQ и метрики.
// Недоступный брокер не мешает выполнению, только логируется.
// Возвращает функцию освобождения ресурсов.
func (a *App) sinks(ctx context.Context, metricsAddr string) ([]orchestrator.EventSink, func(), error) {
	var (
		sinks    []orchestrator.EventSink
		closers  []func()
		cleanup = func() {
			for i := len(closers) - 1; i >= 0; i-- {
				closers[i]()
			}
		}
	)

	if metricsAddr != "" {
		metrics := telemetry.NewMetrics()
		srv, err := startMetricsServer(metricsAddr, metrics, a.Logger)
		if err != nil {
			return nil, cleanup, err
		}
		sinks = append(sinks, metrics)
		closers = append(closers, func() { shutdownServer(srv, a.Logger) })
	}

	if url := a.Config.Events.AMQPURL; url != "" {
		conn, err := mq.Dial(ctx, mq.ConnectionConfig{URL: url, Logger: a.Logger})
		if err != nil {
			a.Logger.Warn("event publishing disabled", "error", err)
		} else if err := mq.SetupTopology(ctx, conn, a.Config.Events.Exchange); err != nil {
			a.Logger.Warn("event publishing disabled", "error", err)
			conn.Close()
		} else {
			pub := mq.NewPublisher(conn, a.Config.Events.Exchange, a.Logger)
			sinks = append(sinks, mq.NewEventSink(pub, a.Logger))
			closers = append(closers, func() { conn.Close() })
		}
	}

	return sinks, cleanup, nil
}

// startMetricsServer запускает HTTP сервер с /metrics и /healthz.
func startMetricsServer(addr string, metrics *telemetry.Metrics, logger *slog.Logger) (*http.Server, error) {
	srv := &http.Server{
		Addr:              addr,
		Handler:           metrics.NewServeMux(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Ошибка bind приходит сразу
	select {
	case err := <-errCh:
		return nil, fmt.Errorf("start metrics server on %s: %w", addr, err)
	case <-time.After(100 * time.Millisecond):
	}

	logger.Info("metrics server started", "addr", addr)
	return srv, nil
}

func shutdownServer(srv *http.Server, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("metrics server shutdown failed", "error", err)
	}
}
