package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"pooldemo/internal/db"
	"pooldemo/internal/logger"
)

// Config holds the service configuration. Every key can be set from a YAML
// file or from the environment (pool.max_conns -> POOL_MAX_CONNS).
type Config struct {
	ListenAddr  string     `mapstructure:"listen_addr"`
	DatabaseURL string     `mapstructure:"database_url"`
	Pool        PoolConfig `mapstructure:"pool"`
	Log         LogConfig  `mapstructure:"log"`
	JWTSecret   string     `mapstructure:"jwt_secret"`
	CORSOrigin  string     `mapstructure:"cors_origin"`
	Migrate     bool       `mapstructure:"migrate"`
}

type PoolConfig struct {
	MaxConns    int32         `mapstructure:"max_conns"`
	MaxIdleTime time.Duration `mapstructure:"max_idle_time"`
	WarmupConns int           `mapstructure:"warmup_conns"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
	Encoding    string `mapstructure:"encoding"`
}

// SetDefaults registers every key, which also makes it visible to AutomaticEnv.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("database_url", "")
	v.SetDefault("pool.max_conns", db.DefaultMaxConns)
	v.SetDefault("pool.max_idle_time", db.DefaultMaxConnIdleTime)
	v.SetDefault("pool.warmup_conns", db.DefaultWarmupConns)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
	v.SetDefault("log.encoding", "")
	v.SetDefault("jwt_secret", "")
	v.SetDefault("cors_origin", "")
	v.SetDefault("migrate", false)
}

// Load reads configuration from defaults, the optional file and the environment.
func Load(v *viper.Viper, configFile string) (Config, error) {
	SetDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	return cfg, nil
}

// Validate checks what the server cannot start without.
func (c Config) Validate() error {
	var errs []error
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required"))
	}
	if c.ListenAddr == "" {
		errs = append(errs, errors.New("LISTEN_ADDR is required"))
	}
	if c.Pool.MaxConns <= 0 {
		errs = append(errs, fmt.Errorf("pool.max_conns must be positive, got %d", c.Pool.MaxConns))
	}
	if c.Pool.MaxIdleTime <= 0 {
		errs = append(errs, fmt.Errorf("pool.max_idle_time must be positive, got %s", c.Pool.MaxIdleTime))
	}
	if c.Pool.WarmupConns < 0 {
		errs = append(errs, fmt.Errorf("pool.warmup_conns must not be negative, got %d", c.Pool.WarmupConns))
	}
	return errors.Join(errs...)
}

func (c Config) PoolConfig() db.PoolConfig {
	return db.PoolConfig{
		DatabaseURL:     c.DatabaseURL,
		MaxConns:        c.Pool.MaxConns,
		MaxConnIdleTime: c.Pool.MaxIdleTime,
		WarmupConns:     c.Pool.WarmupConns,
	}
}

func (c Config) LoggerConfig() logger.Config {
	return logger.Config{
		Level:       c.Log.Level,
		Development: c.Log.Development,
		Encoding:    c.Log.Encoding,
	}
}
