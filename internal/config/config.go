// Package config загружает конфигурацию движка: файл (yaml/toml/json),
// переменные окружения с префиксом DRAFTSYNC_ и значения по умолчанию.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Поддерживаемые бэкенды хранилища
const (
	BackendBolt   = "bolt"
	BackendSQLite = "sqlite"
)

// Config конфигурация движка.
type Config struct {
	Backend           string        `mapstructure:"backend"`
	DBPath            string        `mapstructure:"db_path"`
	QuotaBytes        int64         `mapstructure:"quota_bytes"`
	Debounce          time.Duration `mapstructure:"debounce"`
	AutosaveInterval  time.Duration `mapstructure:"autosave_interval"`
	PushEndpoint      string        `mapstructure:"push_endpoint"`
	PullEndpoint      string        `mapstructure:"pull_endpoint"`
	ProbeURL          string        `mapstructure:"probe_url"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout"`
	HistorySize       int           `mapstructure:"history_size"`
	MaxMessages       int           `mapstructure:"max_messages"`
	StaleAfter        time.Duration `mapstructure:"stale_after"`
	AuthToken         string        `mapstructure:"auth_token"`
	EncryptionEnabled bool          `mapstructure:"encryption_enabled"`
	EncryptionSalt    string        `mapstructure:"encryption_salt"` // EncryptionSalt base64, генерируется при первом включении
	LogLevel          string        `mapstructure:"log_level"`
}

// Load читает конфигурацию. path может быть пустым: тогда действуют
// только значения по умолчанию и переменные окружения.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("DRAFTSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Backend != BackendBolt && cfg.Backend != BackendSQLite {
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("backend", BackendBolt)
	v.SetDefault("db_path", "draftsync.db")
	v.SetDefault("quota_bytes", 5*1024*1024)
	v.SetDefault("debounce", "1s")
	v.SetDefault("autosave_interval", "30s")
	v.SetDefault("request_timeout", "30s")
	v.SetDefault("history_size", 10)
	v.SetDefault("max_messages", 500)
	v.SetDefault("stale_after", "168h") // 7 дней
	v.SetDefault("encryption_enabled", false)
	v.SetDefault("log_level", "info")
	// Ключи без осмысленного значения по умолчанию тоже регистрируем:
	// AutomaticEnv читает только известные viper ключи
	v.SetDefault("push_endpoint", "")
	v.SetDefault("pull_endpoint", "")
	v.SetDefault("probe_url", "")
	v.SetDefault("auth_token", "")
	v.SetDefault("encryption_salt", "")
}
