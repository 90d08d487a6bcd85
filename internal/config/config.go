// internal/config/config.go
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// Config holds all configuration parameters of the chat server.
type Config struct {
	AppEnv   string `mapstructure:"env"`
	Port     string `mapstructure:"port"`
	LogLevel string `mapstructure:"log_level"`

	// Empty DatabaseURL selects the in-memory store.
	DatabaseURL string `mapstructure:"database_url"`
	DBHost      string `mapstructure:"-"`
	DBName      string `mapstructure:"-"`

	UploadDir     string        `mapstructure:"chat_upload_dir"`
	AuthSecret    string        `mapstructure:"auth_secret"`
	AuthMaxAge    time.Duration `mapstructure:"auth_max_age"`
	PublicBaseURL string        `mapstructure:"public_base_url"`

	TelegramToken string `mapstructure:"telegram_apitoken"`

	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// IsDev reports whether the server runs in development mode.
func (c *Config) IsDev() bool {
	return c.AppEnv == "dev"
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetDefault("env", "dev")
	v.SetDefault("port", "8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("database_url", "")
	v.SetDefault("chat_upload_dir", "./uploads/chat_files")
	v.SetDefault("auth_secret", "")
	v.SetDefault("auth_max_age", "168h")
	v.SetDefault("public_base_url", "http://localhost:8080")
	v.SetDefault("telegram_apitoken", "")
	v.SetDefault("allowed_origins", []string{})

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// LoadConfig loads the configuration from environment variables.
// An optional config file (yaml) is merged under the environment when path is not empty.
func LoadConfig(path string) (*Config, error) {
	v := newViper()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.AuthSecret == "" {
		if !cfg.IsDev() {
			return nil, fmt.Errorf("AUTH_SECRET is required outside dev")
		}
		log.Warn().Msg("AUTH_SECRET not set, using the insecure development secret")
		cfg.AuthSecret = "dev-secret"
	}

	if cfg.DatabaseURL == "" {
		log.Warn().Msg("DATABASE_URL not set, chats are kept in memory and lost on restart")
	} else {
		parsedURL, err := url.Parse(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("parse DATABASE_URL: %w", err)
		}
		cfg.DBHost = parsedURL.Hostname()
		cfg.DBName = strings.TrimPrefix(parsedURL.Path, "/")
	}

	if cfg.TelegramToken == "" {
		log.Info().Msg("TELEGRAM_APITOKEN not set, new-message notifications are disabled")
	}

	cfg.PublicBaseURL = strings.TrimRight(cfg.PublicBaseURL, "/")

	// Credentialed CORS is limited to the site itself unless origins are listed.
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{cfg.PublicBaseURL}
	}

	log.Info().Str("env", cfg.AppEnv).Str("port", cfg.Port).Msg("configuration loaded")
	return cfg, nil
}
