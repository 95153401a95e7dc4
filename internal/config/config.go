package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	envPrefix               = "KUDOS"
	defaultHTTPAddress      = "0.0.0.0:8080"
	defaultDatabaseDriver   = "sqlite"
	defaultDatabaseDSN      = "kudos.db"
	defaultLogLevel         = "info"
	defaultTokenIssuer      = "kudos-auth"
	defaultTokenAudience    = "kudos-api"
	defaultTokenTTLMinutes  = 30
	defaultCognitoRegion    = "us-east-1"
	defaultPublishInterval  = 30 * time.Second
	defaultWriteTimeout     = 10 * time.Second
	defaultNotifyBuffer     = 64
	defaultReviewReward     = 10
	defaultLikeReward       = 5
	minimumPublishInterval  = time.Second
	databaseDriverSQLite    = "sqlite"
	databaseDriverPostgres  = "postgres"
	defaultAllowedOriginAll = "*"
)

// AppConfig captures runtime configuration for the API server.
type AppConfig struct {
	HTTPAddress         string
	DatabaseDriver      string
	DatabaseDSN         string
	LogLevel            string
	SigningSecret       string
	TokenIssuer         string
	TokenAudience       string
	TokenTTL            time.Duration
	CognitoRegion       string
	CognitoClientID     string
	CognitoClientSecret string
	PublishInterval     time.Duration
	WriteTimeout        time.Duration
	NotifyBuffer        int
	ReviewReward        int
	LikeReward          int
	AllowedOrigins      []string
}

// LoadDotEnv reads a local .env file into the process environment when present.
func LoadDotEnv(paths ...string) {
	_ = godotenv.Load(paths...)
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("database.driver", defaultDatabaseDriver)
	configViper.SetDefault("database.dsn", defaultDatabaseDSN)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("auth.issuer", defaultTokenIssuer)
	configViper.SetDefault("auth.audience", defaultTokenAudience)
	configViper.SetDefault("token.ttl_minutes", defaultTokenTTLMinutes)
	configViper.SetDefault("cognito.region", defaultCognitoRegion)
	configViper.SetDefault("realtime.publish_interval", defaultPublishInterval)
	configViper.SetDefault("realtime.write_timeout", defaultWriteTimeout)
	configViper.SetDefault("realtime.notify_buffer", defaultNotifyBuffer)
	configViper.SetDefault("points.review_submitted", defaultReviewReward)
	configViper.SetDefault("points.like_received", defaultLikeReward)
	configViper.SetDefault("cors.allowed_origins", []string{defaultAllowedOriginAll})
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:         configViper.GetString("http.address"),
		DatabaseDriver:      strings.ToLower(strings.TrimSpace(configViper.GetString("database.driver"))),
		DatabaseDSN:         configViper.GetString("database.dsn"),
		LogLevel:            configViper.GetString("log.level"),
		SigningSecret:       configViper.GetString("auth.signing_secret"),
		TokenIssuer:         configViper.GetString("auth.issuer"),
		TokenAudience:       configViper.GetString("auth.audience"),
		TokenTTL:            time.Duration(configViper.GetInt("token.ttl_minutes")) * time.Minute,
		CognitoRegion:       configViper.GetString("cognito.region"),
		CognitoClientID:     configViper.GetString("cognito.client_id"),
		CognitoClientSecret: configViper.GetString("cognito.client_secret"),
		PublishInterval:     configViper.GetDuration("realtime.publish_interval"),
		WriteTimeout:        configViper.GetDuration("realtime.write_timeout"),
		NotifyBuffer:        configViper.GetInt("realtime.notify_buffer"),
		ReviewReward:        configViper.GetInt("points.review_submitted"),
		LikeReward:          configViper.GetInt("points.like_received"),
		AllowedOrigins:      configViper.GetStringSlice("cors.allowed_origins"),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

// LoadDatabase parses only the settings needed to reach the store; admin commands use it.
func LoadDatabase(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		DatabaseDriver: strings.ToLower(strings.TrimSpace(configViper.GetString("database.driver"))),
		DatabaseDSN:    configViper.GetString("database.dsn"),
		LogLevel:       configViper.GetString("log.level"),
	}
	if err := cfg.validateDatabase(); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

func (c AppConfig) validate() error {
	if err := c.validateDatabase(); err != nil {
		return err
	}
	if strings.TrimSpace(c.SigningSecret) == "" {
		return fmt.Errorf("auth.signing_secret is required")
	}
	if strings.TrimSpace(c.TokenIssuer) == "" {
		return fmt.Errorf("auth.issuer is required")
	}
	if strings.TrimSpace(c.TokenAudience) == "" {
		return fmt.Errorf("auth.audience is required")
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("token.ttl_minutes must be positive")
	}
	if strings.TrimSpace(c.CognitoClientID) == "" {
		return fmt.Errorf("cognito.client_id is required")
	}
	if c.PublishInterval < minimumPublishInterval {
		return fmt.Errorf("realtime.publish_interval must be at least %s", minimumPublishInterval)
	}
	if c.WriteTimeout <= 0 {
		return fmt.Errorf("realtime.write_timeout must be positive")
	}
	if c.NotifyBuffer <= 0 {
		return fmt.Errorf("realtime.notify_buffer must be positive")
	}
	if c.ReviewReward < 0 || c.LikeReward < 0 {
		return fmt.Errorf("points rewards must not be negative")
	}
	return nil
}

func (c AppConfig) validateDatabase() error {
	switch c.DatabaseDriver {
	case databaseDriverSQLite, databaseDriverPostgres:
	default:
		return fmt.Errorf("database.driver must be %q or %q", databaseDriverSQLite, databaseDriverPostgres)
	}
	if strings.TrimSpace(c.DatabaseDSN) == "" {
		return fmt.Errorf("database.dsn is required")
	}
	return nil
}
