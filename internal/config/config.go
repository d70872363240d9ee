package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Redis struct {
		Address  string `mapstructure:"address"`
		Password string `mapstructure:"password"`
		DB       int    `mapstructure:"db"`
	} `mapstructure:"redis"`

	Worker struct {
		Concurrency     int            `mapstructure:"concurrency"`
		Queues          map[string]int `mapstructure:"queues"`
		StrictPriority  bool           `mapstructure:"strict_priority"`
		ShutdownTimeout time.Duration  `mapstructure:"shutdown_timeout"`
	} `mapstructure:"worker"`

	// Scheduler holds the limits applied around every job's own policy.
	Scheduler struct {
		ExpeditedQueue string        `mapstructure:"expedited_queue"`
		DefaultQueue   string        `mapstructure:"default_queue"`
		MaxRetry       int           `mapstructure:"max_retry"`
		Retention      time.Duration `mapstructure:"retention"`
		BackoffFloor   time.Duration `mapstructure:"backoff_floor"`
		BackoffCeiling time.Duration `mapstructure:"backoff_ceiling"`
		ConstraintPoll time.Duration `mapstructure:"constraint_poll"`
		ExpeditedRate  float64       `mapstructure:"expedited_rate"`
		ExpeditedBurst int           `mapstructure:"expedited_burst"`
		WatchInterval  time.Duration `mapstructure:"watch_interval"`
	} `mapstructure:"scheduler"`

	Constraints struct {
		NetworkProbe string        `mapstructure:"network_probe"` // host:port dialed to decide NetworkConnected
		ProbeTimeout time.Duration `mapstructure:"probe_timeout"`
	} `mapstructure:"constraints"`

	Backend struct {
		BaseURL   string        `mapstructure:"base_url"`
		Token     string        `mapstructure:"token"`
		Timeout   time.Duration `mapstructure:"timeout"`
		RateLimit float64       `mapstructure:"rate_limit"`
	} `mapstructure:"backend"`

	Database struct {
		DSN string `mapstructure:"dsn"` // postgres://... or a sqlite file path
	} `mapstructure:"database"`

	Log struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"` // "text" or "json"
	} `mapstructure:"log"`

	Server struct {
		Addr string `mapstructure:"addr"`
	} `mapstructure:"server"`
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("redis.address", "127.0.0.1:6379")
	v.SetDefault("redis.db", 0)

	v.SetDefault("worker.concurrency", 1)
	v.SetDefault("worker.queues", map[string]int{"expedited": 6, "default": 3})
	v.SetDefault("worker.shutdown_timeout", 30*time.Second)

	v.SetDefault("scheduler.expedited_queue", "expedited")
	v.SetDefault("scheduler.default_queue", "default")
	v.SetDefault("scheduler.max_retry", 25)
	v.SetDefault("scheduler.retention", 24*time.Hour)
	v.SetDefault("scheduler.backoff_floor", 10*time.Second)
	v.SetDefault("scheduler.backoff_ceiling", 5*time.Hour)
	v.SetDefault("scheduler.constraint_poll", 30*time.Second)
	v.SetDefault("scheduler.expedited_rate", 0.1)
	v.SetDefault("scheduler.expedited_burst", 3)
	v.SetDefault("scheduler.watch_interval", time.Second)

	v.SetDefault("constraints.network_probe", "1.1.1.1:53")
	v.SetDefault("constraints.probe_timeout", 3*time.Second)

	v.SetDefault("backend.timeout", 30*time.Second)
	v.SetDefault("backend.rate_limit", 5.0)

	v.SetDefault("database.dsn", "syncworker.db")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("server.addr", "localhost:8080")
}

// LoadConfig reads config.yaml from the working directory (optional) and
// SYNCWORKER_* environment variables, e.g. SYNCWORKER_REDIS_ADDRESS.
func LoadConfig() (*Config, error) {
	return Load(viper.GetViper(), "")
}

// Load reads configuration through v. An explicit file path overrides the
// config.yaml lookup.
func Load(v *viper.Viper, file string) (*Config, error) {
	SetDefaults(v)

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("SYNCWORKER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// The backend token is commonly provided without the prefix.
	v.BindEnv("backend.token", "SYNCWORKER_BACKEND_TOKEN", "SYNC_BACKEND_TOKEN")

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine; defaults and env vars still apply.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || file != "" {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error decoding config: %w", err)
	}
	return &config, nil
}
