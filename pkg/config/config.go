package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/fx"
)

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

type DBConfig struct {
	DSN string `mapstructure:"dsn"`
}

// StripeConfig carries the provider credentials. The webhook secret signs
// inbound deliveries; the API key is held for the provider client.
type StripeConfig struct {
	WebhookSecret string `mapstructure:"webhook_secret"`
	APIKey        string `mapstructure:"api_key"`
	// ToleranceSeconds bounds signature timestamp skew.
	ToleranceSeconds int `mapstructure:"tolerance_seconds"`
}

type WorkerConfig struct {
	Count               int `mapstructure:"count"`
	PollIntervalSeconds int `mapstructure:"poll_interval_seconds"`
	LeaseSeconds        int `mapstructure:"lease_seconds"`
	ReapIntervalSeconds int `mapstructure:"reap_interval_seconds"`
}

type Env string

const (
	EnvDev  Env = "dev"
	EnvProd Env = "prod"
)

type Config struct {
	Env         Env          `mapstructure:"env"`
	Server      ServerConfig `mapstructure:"server"`
	Database    DBConfig     `mapstructure:"database"`
	Stripe      StripeConfig `mapstructure:"stripe"`
	Worker      WorkerConfig `mapstructure:"worker"`
	MetricsAddr string       `mapstructure:"metrics_addr"`
}

// Validate fails fast on anything the service cannot run without.
func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}
	if c.Stripe.WebhookSecret == "" {
		return fmt.Errorf("stripe.webhook_secret is required")
	}
	if c.Stripe.APIKey == "" {
		return fmt.Errorf("stripe.api_key is required")
	}
	if c.Server.Host == "" || c.Server.Port == 0 {
		return fmt.Errorf("server bind address is required")
	}
	return nil
}

func New() (*Config, error) {
	v := viper.New()
	// Allow overriding config file via env:
	// - APP_CONFIG_FILE: absolute or relative file path (e.g., /etc/app/prod.yaml)
	// - APP_CONFIG_NAME: config base name without extension (default: "config")
	if file := os.Getenv("APP_CONFIG_FILE"); file != "" {
		v.SetConfigFile(file)
	} else {
		cfgName := os.Getenv("APP_CONFIG_NAME")
		if cfgName == "" {
			cfgName = "config"
		}
		v.SetConfigName(cfgName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("env", "dev")
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8888)
	v.SetDefault("metrics_addr", ":90")
	v.SetDefault("stripe.tolerance_seconds", 300)
	v.SetDefault("worker.count", 4)
	v.SetDefault("worker.poll_interval_seconds", 1)
	v.SetDefault("worker.lease_seconds", 120)
	v.SetDefault("worker.reap_interval_seconds", 60)

	if err := v.ReadInConfig(); err != nil {
		_ = err
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &c, nil
}

var Module = fx.Options(
	fx.Provide(New),
)
