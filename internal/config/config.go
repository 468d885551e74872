package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// minSessionSecretBytes はセッショントークン署名鍵の最小長。
const minSessionSecretBytes = 32

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Site
	BaseURL string

	// OAuth（任意）
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string

	// Session
	SessionSecret        string
	SessionMaxAge        int
	SessionRefreshWindow time.Duration

	// Auth
	EmailConfirmation bool
	AuthTokenTTL      time.Duration
	BcryptCost        int

	// Rate Limit（req/min）
	RateLimitGeneral int
	RateLimitAuth    int

	// Worker
	CleanupInterval time.Duration

	// Logging
	LogLevel string

	// Server
	ServerPort string

	// Cookie
	CookieSecure bool
	CookieDomain string

	// CORS
	CORSAllowedOrigin string
}

// ShowGoogle はGoogleログインを表示するかを返す。
// クライアントIDとシークレットの両方が設定されている場合のみtrue。
func (c *Config) ShowGoogle() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != ""
}

// SiteURL はBASE_URLにpathを連結したURLを返す。
func (c *Config) SiteURL(path string) string {
	return c.BaseURL + path
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
// 数値と期間は解析できない値や範囲外の値をデフォルトに置き換える。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.SessionSecret = os.Getenv("SESSION_SECRET")
	if cfg.SessionSecret == "" {
		missing = append(missing, "SESSION_SECRET")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	if len(cfg.SessionSecret) < minSessionSecretBytes {
		return nil, fmt.Errorf("SESSION_SECRET must be at least %d bytes", minSessionSecretBytes)
	}

	// Optional fields with defaults
	cfg.BaseURL = strings.TrimRight(getEnvString("BASE_URL", "http://localhost:3010"), "/")
	cfg.GoogleClientID = os.Getenv("GOOGLE_CLIENT_ID")
	cfg.GoogleClientSecret = os.Getenv("GOOGLE_CLIENT_SECRET")
	cfg.GoogleRedirectURL = getEnvString("GOOGLE_REDIRECT_URL", cfg.SiteURL("/auth/callback"))
	cfg.SessionMaxAge = getEnvPositiveInt("SESSION_MAX_AGE", 86400)
	cfg.SessionRefreshWindow = getEnvPositiveDuration("SESSION_REFRESH_WINDOW", time.Hour)
	cfg.EmailConfirmation = getEnvBool("AUTH_EMAIL_CONFIRMATION", true)
	cfg.AuthTokenTTL = getEnvPositiveDuration("AUTH_TOKEN_TTL", time.Hour)
	cfg.BcryptCost = getEnvIntInRange("BCRYPT_COST", 10, bcrypt.MinCost, bcrypt.MaxCost)
	cfg.RateLimitGeneral = getEnvPositiveInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitAuth = getEnvPositiveInt("RATE_LIMIT_AUTH", 10)
	cfg.CleanupInterval = getEnvPositiveDuration("CLEANUP_INTERVAL", time.Hour)
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")
	cfg.ServerPort = getEnvString("SERVER_PORT", "3010")
	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "")

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

// getEnvPositiveInt は0以下の値をデフォルトに置き換える。
func getEnvPositiveInt(key string, defaultVal int) int {
	return getEnvIntInRange(key, defaultVal, 1, math.MaxInt)
}

func getEnvIntInRange(key string, defaultVal, lo, hi int) int {
	i := getEnvInt(key, defaultVal)
	if i < lo || i > hi {
		return defaultVal
	}
	return i
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
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

// getEnvPositiveDuration は0以下の期間をデフォルトに置き換える。
func getEnvPositiveDuration(key string, defaultVal time.Duration) time.Duration {
	d := getEnvDuration(key, defaultVal)
	if d <= 0 {
		return defaultVal
	}
	return d
}
