package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Secret（JWT署名とトークン暗号鍵の導出に使う）
	SecretKey string

	// LinkedIn OAuth
	LinkedInClientID     string
	LinkedInClientSecret string
	LinkedInRedirectURL  string

	// Auth
	TokenMaxAge   time.Duration
	OAuthStateTTL time.Duration

	// Publish
	PublishInterval      time.Duration
	PublishTimeout       time.Duration
	PublishMaxConcurrent int

	// Rate Limit
	RateLimitGeneral  int
	RateLimitSchedule int

	// Retention
	PostRetentionDays int

	// Logging
	LogLevel string

	// Server
	ServerPort  string
	MetricsPort string
	BaseURL     string

	// Frontend（連携コールバック後のリダイレクト先）
	FrontendURL string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.SecretKey = os.Getenv("SECRET_KEY")
	if cfg.SecretKey == "" {
		missing = append(missing, "SECRET_KEY")
	}

	cfg.LinkedInClientID = os.Getenv("LINKEDIN_CLIENT_ID")
	if cfg.LinkedInClientID == "" {
		missing = append(missing, "LINKEDIN_CLIENT_ID")
	}

	cfg.LinkedInClientSecret = os.Getenv("LINKEDIN_CLIENT_SECRET")
	if cfg.LinkedInClientSecret == "" {
		missing = append(missing, "LINKEDIN_CLIENT_SECRET")
	}

	cfg.LinkedInRedirectURL = os.Getenv("LINKEDIN_REDIRECT_URL")
	if cfg.LinkedInRedirectURL == "" {
		missing = append(missing, "LINKEDIN_REDIRECT_URL")
	}

	cfg.BaseURL = os.Getenv("BASE_URL")
	if cfg.BaseURL == "" {
		missing = append(missing, "BASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.TokenMaxAge = getEnvDuration("TOKEN_MAX_AGE", 24*time.Hour)
	cfg.OAuthStateTTL = getEnvDuration("OAUTH_STATE_TTL", 5*time.Minute)
	cfg.PublishInterval = getEnvDuration("PUBLISH_INTERVAL", time.Minute)
	cfg.PublishTimeout = getEnvDuration("PUBLISH_TIMEOUT", 30*time.Second)
	cfg.PublishMaxConcurrent = getEnvInt("PUBLISH_MAX_CONCURRENT", 5)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitSchedule = getEnvInt("RATE_LIMIT_SCHEDULE", 10)
	cfg.PostRetentionDays = getEnvInt("POST_RETENTION_DAYS", 180)
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.MetricsPort = getEnvString("METRICS_PORT", "9090")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")
	cfg.FrontendURL = getEnvString("FRONTEND_URL", cfg.CORSAllowedOrigin)

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
