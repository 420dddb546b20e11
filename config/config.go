package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

var (
	ErrMissingDSN       = errors.New("database dsn is required")
	ErrUnknownDriver    = errors.New("unknown database driver")
	ErrInvalidTZ        = errors.New("invalid schedule timezone")
	ErrMissingJWTSecret = errors.New("jwt secret is required in release mode")
)

// Config 应用配置
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Log      LogConfig      `mapstructure:"log"`
	Sentry   SentryConfig   `mapstructure:"sentry"`
	Tracing  TracingConfig  `mapstructure:"tracing"`
	Trigger  TriggerConfig  `mapstructure:"trigger"`
	Schedule ScheduleConfig `mapstructure:"schedule"`
}

type ServerConfig struct {
	Port         int             `mapstructure:"port"`
	Mode         string          `mapstructure:"mode"`
	ReadTimeout  time.Duration   `mapstructure:"read_timeout"`
	WriteTimeout time.Duration   `mapstructure:"write_timeout"`
	RateLimit    RateLimitConfig `mapstructure:"rate_limit"`
}

type RateLimitConfig struct {
	RPS   float64 `mapstructure:"rps"`
	Burst int     `mapstructure:"burst"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	LogLevel        string        `mapstructure:"log_level"`
}

type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	FeedTTL  time.Duration `mapstructure:"feed_ttl"`
}

type JWTConfig struct {
	Secret string        `mapstructure:"secret"`
	Issuer string        `mapstructure:"issuer"`
	TTL    time.Duration `mapstructure:"ttl"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json | console
	Output string `mapstructure:"output"` // stdout | stderr | 文件路径
}

type SentryConfig struct {
	DSN         string  `mapstructure:"dsn"`
	Environment string  `mapstructure:"environment"`
	SampleRate  float64 `mapstructure:"sample_rate"`
}

type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	Endpoint    string  `mapstructure:"endpoint"`
	Insecure    bool    `mapstructure:"insecure"`
	ServiceName string  `mapstructure:"service_name"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

// TriggerConfig 定时发布触发器配置
type TriggerConfig struct {
	BatchSize      int    `mapstructure:"batch_size"`
	ServiceKeyHash string `mapstructure:"service_key_hash"`
	Cron           string `mapstructure:"cron"`
	// Timeout 限制 HTTP 触发请求，以及 cron 停止时等待的上限；进程内调用不受其影响
	Timeout time.Duration `mapstructure:"timeout"`
	// Endpoint/ServiceKey 供外部调用器通过 HTTP 触发
	Endpoint   string `mapstructure:"endpoint"`
	ServiceKey string `mapstructure:"service_key"`
	Embedded   bool   `mapstructure:"embedded"`
}

type ScheduleConfig struct {
	Timezone string `mapstructure:"timezone"`
}

// Location 返回用户选择日期/时间时使用的时区
func (c ScheduleConfig) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidTZ, c.Timezone)
	}
	return loc, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.rate_limit.rps", 20)
	v.SetDefault("server.rate_limit.burst", 40)

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.log_level", "warn")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.feed_ttl", 10*time.Minute)

	v.SetDefault("jwt.issuer", "freed")
	v.SetDefault("jwt.ttl", 24*time.Hour)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output", "stdout")

	v.SetDefault("sentry.environment", "development")
	v.SetDefault("sentry.sample_rate", 1.0)

	v.SetDefault("tracing.service_name", "freed")
	v.SetDefault("tracing.sample_ratio", 1.0)
	v.SetDefault("tracing.insecure", true)

	v.SetDefault("trigger.batch_size", 500)
	v.SetDefault("trigger.cron", "@every 1m")
	v.SetDefault("trigger.timeout", 50*time.Second)
	v.SetDefault("trigger.endpoint", "http://localhost:8080/functions/v1/publish-scheduled-posts")

	v.SetDefault("schedule.timezone", "UTC")
}

// Load 读取配置文件与环境变量（FREED_ 前缀，例如 FREED_DATABASE_DSN）
func Load() (*Config, error) {
	path := os.Getenv("FREED_CONFIG")
	return LoadFile(path)
}

// LoadFile 从指定路径加载配置；path 为空时在 ./config 与 . 下查找 config.yaml
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("FREED")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || path != "" {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Validate 检查启动所必需的配置，缺失即视为 setup 错误
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("%w: %q", ErrUnknownDriver, c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return ErrMissingDSN
	}
	if _, err := c.Schedule.Location(); err != nil {
		return err
	}
	if c.Server.Mode == "release" && c.JWT.Secret == "" {
		return ErrMissingJWTSecret
	}
	return nil
}
