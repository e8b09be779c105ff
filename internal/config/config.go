// Package config loads homeroom settings.
//
// Values are resolved in order: built-in defaults, an optional
// homeroom.yaml, an optional .env file next to it, then HOMEROOM_*
// environment variables. Nested keys map to variables by replacing dots
// with underscores, so remote.endpoint becomes HOMEROOM_REMOTE_ENDPOINT.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "HOMEROOM"

// Config is the resolved configuration.
type Config struct {
	Remote   Remote `mapstructure:"remote"`
	Store    Store  `mapstructure:"store"`
	Sync     Sync   `mapstructure:"sync"`
	Outbox   Outbox `mapstructure:"outbox"`
	Status   Status `mapstructure:"status"`
	LogLevel string `mapstructure:"log_level" validate:"oneof=debug info warn error"`
}

type Remote struct {
	Endpoint string        `mapstructure:"endpoint"`
	Timeout  time.Duration `mapstructure:"timeout" validate:"gt=0"`
	Validate bool          `mapstructure:"validate"`
}

type Store struct {
	Path       string `mapstructure:"path" validate:"required"`
	CacheKey   string `mapstructure:"cache_key" validate:"required"`
	SessionKey string `mapstructure:"session_key" validate:"required"`
}

type Sync struct {
	Interval time.Duration `mapstructure:"interval" validate:"gt=0"`
	Timeout  time.Duration `mapstructure:"timeout" validate:"gt=0"`
}

type Outbox struct {
	Enabled       bool          `mapstructure:"enabled"`
	FlushInterval time.Duration `mapstructure:"flush_interval" validate:"gt=0"`
	BaseBackoff   time.Duration `mapstructure:"base_backoff" validate:"gt=0"`
	MaxBackoff    time.Duration `mapstructure:"max_backoff" validate:"gtefield=BaseBackoff"`
}

type Status struct {
	Addr string `mapstructure:"addr"`
}

var validate = validator.New()

func setDefaults(v *viper.Viper) {
	v.SetDefault("remote.endpoint", "")
	v.SetDefault("remote.timeout", 30*time.Second)
	v.SetDefault("remote.validate", true)
	v.SetDefault("store.path", "homeroom.db")
	v.SetDefault("store.cache_key", "homeroom_cache_v2")
	v.SetDefault("store.session_key", "homeroom_current_user")
	v.SetDefault("sync.interval", 3*time.Minute)
	v.SetDefault("sync.timeout", 45*time.Second)
	v.SetDefault("outbox.enabled", true)
	v.SetDefault("outbox.flush_interval", 10*time.Second)
	v.SetDefault("outbox.base_backoff", 2*time.Second)
	v.SetDefault("outbox.max_backoff", 5*time.Minute)
	v.SetDefault("status.addr", "")
	v.SetDefault("log_level", "info")
}

// Load resolves the configuration. An empty path searches homeroom.yaml in
// the working directory and in $HOME/.config/homeroom; a missing file is not
// an error. An explicit path must exist.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetTypeByDefaultValue(true)
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("homeroom")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "homeroom"))
		}
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	dir := "."
	if used := v.ConfigFileUsed(); used != "" {
		dir = filepath.Dir(used)
	}
	if err := loadDotEnv(filepath.Join(dir, ".env")); err != nil {
		return Config{}, err
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// loadDotEnv exports the variables of a .env file. Variables already set in
// the process environment win.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Validate rejects non-positive durations, empty store keys and unknown log
// levels.
func (c Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate config: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s: failed %q (got %v)", fe.Namespace(), fe.Tag(), fe.Value()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

// SlogLevel maps LogLevel to a slog level.
func (c Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
