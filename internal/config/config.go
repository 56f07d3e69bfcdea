package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Режимы доставки задач.
const (
	DispatchLocal = "local"
	DispatchHTTP  = "http"
	DispatchAMQP  = "amqp"
)

// Значения по умолчанию.
const (
	DefaultAddr         = ":8080"
	DefaultRetention    = 10 * time.Minute
	DefaultReapInterval = 30 * time.Second
	DefaultTimeout      = time.Hour
	DefaultTaskTimeout  = 30 * time.Second
	DefaultRetryDelay   = time.Second
	DefaultRetries      = 3
	DefaultAgentName    = "relay-agent"
	DefaultConcurrency  = 4
)

var (
	// ErrInvalidConfig — конфигурация не прошла валидацию.
	ErrInvalidConfig = errors.New("invalid config")
)

// Config — конфигурация Relay.
type Config struct {
	Server       ServerConfig     `yaml:"server"`
	Engine       EngineConfig     `yaml:"engine"`
	Dispatch     DispatchConfig   `yaml:"dispatch"`
	Database     DatabaseConfig   `yaml:"database"`
	Agent        AgentConfig      `yaml:"agent"`
	WorkflowsDir string           `yaml:"workflows_dir"`
	Schedules    []ScheduleConfig `yaml:"schedules"`
}

// ServerConfig — HTTP API.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// EngineConfig — параметры движка.
type EngineConfig struct {
	MaxParallel      int           `yaml:"max_parallel"`
	Retention        time.Duration `yaml:"retention"`
	ReapInterval     time.Duration `yaml:"reap_interval"`
	DefaultTimeout   time.Duration `yaml:"default_timeout"`
	StrictReferences bool          `yaml:"strict_references"`
}

// DispatchConfig — доставка задач исполнителям.
type DispatchConfig struct {
	// Mode — local, http или amqp.
	Mode string `yaml:"mode"`

	// AMQPURL — адрес RabbitMQ для режима amqp.
	AMQPURL string `yaml:"amqp_url"`

	// Targets — известные исполнители.
	Targets []TargetConfig `yaml:"targets"`
}

// TargetConfig — исполнитель задач (внешний framework).
type TargetConfig struct {
	Name      string `yaml:"name"`
	Endpoint  string `yaml:"endpoint"`
	AuthToken string `yaml:"auth_token"`

	// Enabled — nil означает true.
	Enabled *bool `yaml:"enabled"`

	// Timeout, RetryAttempts, RetryDelay — политика по умолчанию для задач target.
	Timeout       time.Duration `yaml:"timeout"`
	RetryAttempts *int          `yaml:"retry_attempts"`
	RetryDelay    time.Duration `yaml:"retry_delay"`
}

// IsEnabled сообщает, включён ли target.
func (t TargetConfig) IsEnabled() bool {
	return t.Enabled == nil || *t.Enabled
}

// Retries возвращает число повторных попыток target.
func (t TargetConfig) Retries() int {
	if t.RetryAttempts == nil {
		return DefaultRetries
	}
	return *t.RetryAttempts
}

// DatabaseConfig — архив executions (необязательный).
type DatabaseConfig struct {
	URL string `yaml:"url"`
}

// AgentConfig — relay-agent.
type AgentConfig struct {
	// Name — имя агента в поле source ответов.
	Name string `yaml:"name"`

	// Concurrency — сколько задач агент обрабатывает параллельно.
	Concurrency int `yaml:"concurrency"`
}

// ScheduleConfig — периодический запуск workflow по cron.
type ScheduleConfig struct {
	Name     string         `yaml:"name"`
	Workflow string         `yaml:"workflow"`
	Cron     string         `yaml:"cron"`
	Timezone string         `yaml:"timezone"`
	Inputs   map[string]any `yaml:"inputs"`
}

// Load читает конфигурацию из RELAY_CONFIG (если задан), применяет
// переменные окружения и значения по умолчанию и валидирует результат.
func Load() (*Config, error) {
	return LoadFile(os.Getenv("RELAY_CONFIG"))
}

// LoadFile читает конфигурацию из path. Пустой path — только окружение
// и значения по умолчанию.
func LoadFile(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv(os.Getenv)
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv переопределяет значения из окружения.
func (c *Config) applyEnv(getenv func(string) string) {
	if v := getenv("RELAY_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := getenv("DB_URL"); v != "" {
		c.Database.URL = v
	}
	if v := getenv("RABBITMQ_URL"); v != "" {
		c.Dispatch.AMQPURL = v
	}
	if v := getenv("RELAY_DISPATCH_MODE"); v != "" {
		c.Dispatch.Mode = strings.ToLower(v)
	}
	if v := getenv("RELAY_WORKFLOWS_DIR"); v != "" {
		c.WorkflowsDir = v
	}
}

// applyDefaults заполняет незаданные значения.
func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultAddr
	}
	if c.Engine.Retention == 0 {
		c.Engine.Retention = DefaultRetention
	}
	if c.Engine.ReapInterval == 0 {
		c.Engine.ReapInterval = DefaultReapInterval
	}
	if c.Engine.DefaultTimeout == 0 {
		c.Engine.DefaultTimeout = DefaultTimeout
	}
	if c.Dispatch.Mode == "" {
		c.Dispatch.Mode = DispatchHTTP
	}
	if c.Agent.Name == "" {
		c.Agent.Name = DefaultAgentName
	}
	if c.Agent.Concurrency <= 0 {
		c.Agent.Concurrency = DefaultConcurrency
	}

	for i := range c.Dispatch.Targets {
		t := &c.Dispatch.Targets[i]
		t.Endpoint = strings.TrimRight(t.Endpoint, "/")
		if t.Timeout == 0 {
			t.Timeout = DefaultTaskTimeout
		}
		if t.RetryDelay == 0 {
			t.RetryDelay = DefaultRetryDelay
		}
	}
}

// Validate проверяет конфигурацию.
func (c *Config) Validate() error {
	switch c.Dispatch.Mode {
	case DispatchLocal, DispatchHTTP, DispatchAMQP:
	default:
		return fmt.Errorf("%w: unknown dispatch mode %q", ErrInvalidConfig, c.Dispatch.Mode)
	}

	if c.Engine.MaxParallel < 0 {
		return fmt.Errorf("%w: engine.max_parallel must not be negative", ErrInvalidConfig)
	}
	if c.Engine.Retention < 0 || c.Engine.DefaultTimeout < 0 {
		return fmt.Errorf("%w: engine durations must not be negative", ErrInvalidConfig)
	}

	names := make(map[string]bool, len(c.Dispatch.Targets))
	for _, t := range c.Dispatch.Targets {
		if t.Name == "" {
			return fmt.Errorf("%w: target with empty name", ErrInvalidConfig)
		}
		if names[t.Name] {
			return fmt.Errorf("%w: duplicate target %q", ErrInvalidConfig, t.Name)
		}
		names[t.Name] = true

		if c.Dispatch.Mode == DispatchHTTP && t.IsEnabled() && t.Endpoint == "" {
			return fmt.Errorf("%w: target %q has no endpoint", ErrInvalidConfig, t.Name)
		}
		if t.Timeout < 0 || t.RetryDelay < 0 || t.Retries() < 0 {
			return fmt.Errorf("%w: target %q has negative timeout or retry values", ErrInvalidConfig, t.Name)
		}
	}

	schedules := make(map[string]bool, len(c.Schedules))
	for _, s := range c.Schedules {
		if s.Name == "" || s.Workflow == "" || s.Cron == "" {
			return fmt.Errorf("%w: schedule requires name, workflow and cron", ErrInvalidConfig)
		}
		if schedules[s.Name] {
			return fmt.Errorf("%w: duplicate schedule %q", ErrInvalidConfig, s.Name)
		}
		schedules[s.Name] = true
	}

	return nil
}

// EnabledTargets возвращает включённые target.
func (c *Config) EnabledTargets() []TargetConfig {
	targets := make([]TargetConfig, 0, len(c.Dispatch.Targets))
	for _, t := range c.Dispatch.Targets {
		if t.IsEnabled() {
			targets = append(targets, t)
		}
	}
	return targets
}
