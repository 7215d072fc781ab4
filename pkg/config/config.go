// Package config loads service settings from an optional YAML file and
// CLEANUP_ prefixed environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. CLEANUP_WORKFLOW_DEFAULT_WAIT.
const EnvPrefix = "CLEANUP"

// Config holds the settings shared by the cleanup binaries.
type Config struct {
	LogLevel    string `mapstructure:"log_level"    validate:"oneof=debug info warn error"`
	DatabaseURL string `mapstructure:"database_url" validate:"required"`
	Port        int    `mapstructure:"port"         validate:"min=1,max=65535"`
	ServiceName string `mapstructure:"service_name" validate:"required"`

	EventBus struct {
		Type         string   `mapstructure:"type"          validate:"oneof=gochannel kafka"`
		KafkaBrokers []string `mapstructure:"kafka_brokers" validate:"required_if=Type kafka"`
	} `mapstructure:"event_bus"`

	Workflow struct {
		DefaultWait   time.Duration   `mapstructure:"default_wait"   validate:"min=0"`
		CacheTTL      time.Duration   `mapstructure:"cache_ttl"      validate:"min=1s"`
		SweepInterval time.Duration   `mapstructure:"sweep_interval" validate:"min=1s"`
		Stages        []StageTemplate `mapstructure:"stages"         validate:"dive"`
	} `mapstructure:"workflow"`

	Effects struct {
		Type            string        `mapstructure:"type"             validate:"oneof=log webhook"`
		WebhookURL      string        `mapstructure:"webhook_url"      validate:"required_if=Type webhook"`
		WebhookAttempts int           `mapstructure:"webhook_attempts" validate:"min=1"`
		WebhookTimeout  time.Duration `mapstructure:"webhook_timeout"  validate:"min=0"`
	} `mapstructure:"effects"`

	Tracing struct {
		Enabled bool `mapstructure:"enabled"`
	} `mapstructure:"tracing"`
}

// StageTemplate is a default stage for staged archive requests without stages.
type StageTemplate struct {
	Name             string        `mapstructure:"name"   validate:"required"`
	TargetAllocation int           `mapstructure:"target" validate:"min=0,max=100"`
	WaitDuration     time.Duration `mapstructure:"wait"   validate:"min=0"`
}

// SweepSpec renders the sweep interval as a cron spec.
func (c *Config) SweepSpec() string {
	return "@every " + c.Workflow.SweepInterval.String()
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("database_url", "file://./data")
	v.SetDefault("port", 9091)
	v.SetDefault("service_name", "cleanup")
	v.SetDefault("event_bus.type", "gochannel")
	v.SetDefault("event_bus.kafka_brokers", []string{})
	v.SetDefault("workflow.default_wait", time.Hour)
	v.SetDefault("workflow.cache_ttl", 30*time.Minute)
	v.SetDefault("workflow.sweep_interval", time.Minute)
	v.SetDefault("effects.type", "log")
	v.SetDefault("effects.webhook_url", "")
	v.SetDefault("effects.webhook_attempts", 3)
	v.SetDefault("effects.webhook_timeout", 30*time.Second)
	v.SetDefault("tracing.enabled", false)
}

// Load reads path when it is not empty, applies environment overrides and
// validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)

		err := v.ReadInConfig()
		if err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
			}
		}
	}

	var cfg Config

	err := v.Unmarshal(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	err = validator.New(validator.WithRequiredStructEnabled()).Struct(&cfg)
	if err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}
