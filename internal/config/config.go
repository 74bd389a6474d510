package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	// ProjectFileName — файл настроек проекта.
	ProjectFileName = ".workflow.yaml"

	appName = "workflow"
)

// ErrInvalidConfig — значение настройки некорректно.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config — настройки процесса.
type Config struct {
	Log      LogConfig      `mapstructure:"log"`
	Agents   AgentsConfig   `mapstructure:"agents"`
	Workflow WorkflowConfig `mapstructure:"workflow"`
	Events   EventsConfig   `mapstructure:"events"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// LogConfig — настройки логирования.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json или text
}

// AgentsConfig — настройки агентов.
type AgentsConfig struct {
	// Backend — offline или claude.
	Backend   string `mapstructure:"backend"`
	Dir       string `mapstructure:"dir"`
	Model     string `mapstructure:"model"`
	MaxTokens int64  `mapstructure:"max_tokens"`
	APIKey    string `mapstructure:"api_key"`
}

// WorkflowConfig — значения по умолчанию для workflow.
type WorkflowConfig struct {
	// DefaultTimeout — таймаут задачи в секундах, если settings.timeout не задан.
	DefaultTimeout int    `mapstructure:"default_timeout"`
	OnFailure      string `mapstructure:"on_failure"`
}

// EventsConfig — публикация событий в RabbitMQ.
// Пустой AMQPURL отключает публикацию.
type EventsConfig struct {
	AMQPURL  string `mapstructure:"amqp_url"`
	Exchange string `mapstructure:"exchange"`
}

// MetricsConfig — HTTP endpoint метрик. Пустой Addr отключает сервер.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// Backend values.
const (
	BackendOffline = "offline"
	BackendClaude  = "claude"
)

// Options — источники конфигурации. Пустые поля — значения по умолчанию.
type Options struct {
	// ConfigFile — явный файл (--config); читается последним из файлов.
	ConfigFile string

	// UserConfigDir — каталог пользовательского config.yaml
	// (default: $XDG_CONFIG_HOME/workflow или ~/.config/workflow).
	UserConfigDir string

	// WorkDir — каталог, с которого начинается поиск .workflow.yaml (default: cwd).
	WorkDir string
}

// Load загружает конфигурацию.
//
// Приоритет (от высшего к низшему):
//  1. Переменные окружения (WORKFLOW_*, LOG_LEVEL, LOG_FORMAT,
//     ANTHROPIC_API_KEY, RABBITMQ_URL)
//  2. Файл --config
//  3. Файл проекта (.workflow.yaml в текущем каталоге или выше)
//  4. Пользовательский файл (~/.config/workflow/config.yaml)
//  5. Значения по умолчанию
func Load(opts Options) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	userDir := opts.UserConfigDir
	if userDir == "" {
		userDir = userConfigDir()
	}
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(userDir)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read user config: %w", err)
		}
	}

	workDir := opts.WorkDir
	if workDir == "" {
		workDir, _ = os.Getwd()
	}
	if project := findProjectConfig(workDir); project != "" {
		if err := mergeFile(v, project); err != nil {
			return nil, err
		}
	}

	if opts.ConfigFile != "" {
		if err := mergeFile(v, opts.ConfigFile); err != nil {
			return nil, err
		}
	}

	bindEnv(v)

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.Agents.APIKey = os.ExpandEnv(cfg.Agents.APIKey)
	cfg.Events.AMQPURL = os.ExpandEnv(cfg.Events.AMQPURL)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Default возвращает конфигурацию со значениями по умолчанию.
func Default() *Config {
	v := viper.New()
	setDefaults(v)

	cfg := &Config{}
	_ = v.Unmarshal(cfg)
	return cfg
}

// Validate проверяет значения настроек.
func (c *Config) Validate() error {
	var errs []error

	switch c.Agents.Backend {
	case BackendOffline, BackendClaude:
	default:
		errs = append(errs, fmt.Errorf("%w: agents.backend must be %q or %q, got %q",
			ErrInvalidConfig, BackendOffline, BackendClaude, c.Agents.Backend))
	}

	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("%w: log.format must be json or text, got %q", ErrInvalidConfig, c.Log.Format))
	}

	if c.Workflow.DefaultTimeout <= 0 {
		errs = append(errs, fmt.Errorf("%w: workflow.default_timeout must be positive, got %d",
			ErrInvalidConfig, c.Workflow.DefaultTimeout))
	}

	switch c.Workflow.OnFailure {
	case "stop", "continue":
	default:
		errs = append(errs, fmt.Errorf("%w: workflow.on_failure must be stop or continue, got %q",
			ErrInvalidConfig, c.Workflow.OnFailure))
	}

	return errors.Join(errs...)
}

// setDefaults задаёт значения по умолчанию.
func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "INFO")
	v.SetDefault("log.format", "text")

	v.SetDefault("agents.backend", BackendOffline)
	v.SetDefault("agents.dir", ".claude/agents")
	v.SetDefault("agents.model", "")
	v.SetDefault("agents.max_tokens", 8192)
	v.SetDefault("agents.api_key", "")

	v.SetDefault("workflow.default_timeout", 300)
	v.SetDefault("workflow.on_failure", "stop")

	v.SetDefault("events.amqp_url", "")
	v.SetDefault("events.exchange", "workflow.events")

	v.SetDefault("metrics.addr", "")
}

// bindEnv подключает переменные окружения.
// WORKFLOW_AGENTS_BACKEND → agents.backend и т.д.
func bindEnv(v *viper.Viper) {
	v.SetEnvPrefix("WORKFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Общепринятые имена без префикса
	_ = v.BindEnv("log.level", "WORKFLOW_LOG_LEVEL", "LOG_LEVEL")
	_ = v.BindEnv("log.format", "WORKFLOW_LOG_FORMAT", "LOG_FORMAT")
	_ = v.BindEnv("agents.api_key", "WORKFLOW_AGENTS_API_KEY", "ANTHROPIC_API_KEY")
	_ = v.BindEnv("events.amqp_url", "WORKFLOW_EVENTS_AMQP_URL", "RABBITMQ_URL")
}

// mergeFile читает файл и накладывает его поверх текущих настроек.
func mergeFile(v *viper.Viper, path string) error {
	fv := viper.New()
	fv.SetConfigFile(path)
	if err := fv.ReadInConfig(); err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := v.MergeConfigMap(fv.AllSettings()); err != nil {
		return fmt.Errorf("merge config %s: %w", path, err)
	}
	return nil
}

// userConfigDir возвращает XDG каталог настроек.
func userConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, appName)
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", appName)
	}
	return filepath.Join(home, ".config", appName)
}

// findProjectConfig ищет .workflow.yaml в каталоге dir и выше.
func findProjectConfig(dir string) string {
	if dir == "" {
		return ""
	}

	for {
		path := filepath.Join(dir, ProjectFileName)
		if _, err := os.Stat(path); err == nil {
			return path
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}
