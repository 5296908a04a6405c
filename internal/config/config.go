package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/flexprice/autobill/internal/types"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Configuration struct {
	Deployment DeploymentConfig `validate:"required"`
	Server     ServerConfig     `validate:"required"`
	Logging    LoggingConfig    `validate:"required"`
	Postgres   PostgresConfig   `validate:"required"`
	Redis      RedisConfig
	Scheduler  SchedulerConfig `validate:"required"`
	Billing    BillingConfig   `validate:"required"`
	Sentry     SentryConfig
}

type DeploymentConfig struct {
	Mode types.RunMode `validate:"required,oneof=local api scheduler"`
}

type ServerConfig struct {
	Address string `validate:"required"`
}

type LoggingConfig struct {
	Level types.LogLevel `validate:"required"`
}

type PostgresConfig struct {
	Host                   string `mapstructure:"host"`
	Port                   int    `mapstructure:"port"`
	User                   string `mapstructure:"user"`
	Password               string `mapstructure:"password"`
	DBName                 string `mapstructure:"dbname"`
	SSLMode                string `mapstructure:"sslmode"`
	MaxOpenConns           int    `mapstructure:"max_open_conns"`
	MaxIdleConns           int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `mapstructure:"conn_max_lifetime_minutes"`
}

type RedisConfig struct {
	Address   string `mapstructure:"address"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// SchedulerConfig configures the daily billing check
type SchedulerConfig struct {
	// DailyCheckSchedule is a standard 5 field cron expression
	DailyCheckSchedule string            `mapstructure:"daily_check_schedule" validate:"required"`
	Timezone           string            `mapstructure:"timezone" validate:"required"`
	LockBackend        types.LockBackend `mapstructure:"lock_backend" validate:"required,oneof=memory redis"`
	LockTTL            time.Duration     `mapstructure:"lock_ttl" validate:"required"`
	RunTimeout         time.Duration     `mapstructure:"run_timeout" validate:"required"`
	MaxRetries         uint64            `mapstructure:"max_retries"`
}

type BillingConfig struct {
	// OrderPrefix is the leading segment of human readable order ids
	OrderPrefix string `mapstructure:"order_prefix" validate:"required"`
}

type SentryConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	DSN         string  `mapstructure:"dsn"`
	Environment string  `mapstructure:"environment"`
	SampleRate  float64 `mapstructure:"sample_rate"`
}

func NewConfig() (*Configuration, error) {
	// .env is optional and only used for local development
	if err := godotenv.Load(); err == nil {
		fmt.Println("Loaded environment from .env")
	}

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./internal/config")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/autobill")

	v.SetEnvPrefix("AUTOBILL")
	v.SetEnvKeyReplacer(strings.NewReplacer(
		".", "_",
		"-", "_",
	))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("Error reading config file: %v\n", err)
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, err
		}
	} else {
		fmt.Printf("Using config file: %s\n", v.ConfigFileUsed())
	}

	var config Configuration
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// setDefaults registers every key so that AUTOBILL_* variables are honoured
// even when no config file is present
func setDefaults(v *viper.Viper) {
	v.SetDefault("deployment.mode", string(types.ModeLocal))
	v.SetDefault("server.address", ":8080")
	v.SetDefault("logging.level", string(types.LogLevelInfo))

	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "autobill")
	v.SetDefault("postgres.password", "")
	v.SetDefault("postgres.dbname", "autobill")
	v.SetDefault("postgres.sslmode", "disable")
	v.SetDefault("postgres.max_open_conns", 10)
	v.SetDefault("postgres.max_idle_conns", 5)
	v.SetDefault("postgres.conn_max_lifetime_minutes", 30)

	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key_prefix", "autobill:")

	v.SetDefault("scheduler.daily_check_schedule", "5 0 * * *")
	v.SetDefault("scheduler.timezone", "UTC")
	v.SetDefault("scheduler.lock_backend", string(types.LockBackendMemory))
	v.SetDefault("scheduler.lock_ttl", "30m")
	v.SetDefault("scheduler.run_timeout", "20m")
	v.SetDefault("scheduler.max_retries", 3)

	v.SetDefault("billing.order_prefix", "AUTO")

	v.SetDefault("sentry.enabled", false)
	v.SetDefault("sentry.dsn", "")
	v.SetDefault("sentry.environment", "local")
	v.SetDefault("sentry.sample_rate", 1.0)
}

func (c Configuration) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return err
	}
	if _, err := c.Scheduler.GetLocation(); err != nil {
		return err
	}
	return nil
}

// GetDefaultConfig returns a default configuration for local development
// and tests that do not touch external services
func GetDefaultConfig() *Configuration {
	return &Configuration{
		Deployment: DeploymentConfig{Mode: types.ModeLocal},
		Server:     ServerConfig{Address: ":8080"},
		Logging:    LoggingConfig{Level: types.LogLevelDebug},
		Scheduler: SchedulerConfig{
			DailyCheckSchedule: "5 0 * * *",
			Timezone:           "UTC",
			LockBackend:        types.LockBackendMemory,
			LockTTL:            30 * time.Minute,
			RunTimeout:         20 * time.Minute,
			MaxRetries:         3,
		},
		Billing: BillingConfig{OrderPrefix: "AUTO"},
	}
}

// GetLocation resolves the timezone the calendar day is evaluated in
func (c SchedulerConfig) GetLocation() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid scheduler timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

func (c PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"user=%s password=%s dbname=%s host=%s port=%d sslmode=%s",
		c.User,
		c.Password,
		c.DBName,
		c.Host,
		c.Port,
		c.SSLMode,
	)
}
