package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/hitoshi/salonlink/internal/model"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Backend (hosted auth / table / storage services)
	SupabaseURL            string
	SupabaseAnonKey        string
	SupabaseServiceRoleKey string

	// Database
	DatabaseURL string

	// Token verification
	JWTIssuer string
	JWKSURL   string

	// Client session
	SessionFile       string
	AuthFallbackDelay time.Duration
	HTTPTimeout       time.Duration

	// Storage
	AvatarBucket string

	// Rate Limit (req/min)
	RateLimitGeneral int
	RateLimitAccount int

	// Server
	ServerPort string

	// Logging
	LogLevel string

	// Worker
	CleanupInterval time.Duration

	// CORS
	CORSAllowedOrigin string
}

// LoadDotEnv はカレントディレクトリの.envファイルを読み込む。
// ファイルが存在しない場合は何もしない。既に設定済みの環境変数は上書きしない。
func LoadDotEnv() {
	_ = godotenv.Load()
}

// Load は環境変数からConfigを読み込む。
// クライアント・サーバー共通の必須環境変数が未設定の場合は設定エラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.SupabaseURL = strings.TrimRight(os.Getenv("SUPABASE_URL"), "/")
	if cfg.SupabaseURL == "" {
		missing = append(missing, "SUPABASE_URL")
	}

	cfg.SupabaseAnonKey = os.Getenv("SUPABASE_ANON_KEY")
	if cfg.SupabaseAnonKey == "" {
		missing = append(missing, "SUPABASE_ANON_KEY")
	}

	if len(missing) > 0 {
		return nil, model.NewConfigurationError(missing)
	}

	// Server-only fields (checked by RequireServer)
	cfg.SupabaseServiceRoleKey = os.Getenv("SUPABASE_SERVICE_ROLE_KEY")
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")

	// Optional fields with defaults
	cfg.JWTIssuer = getEnvString("JWT_ISSUER", cfg.SupabaseURL+"/auth/v1")
	cfg.JWKSURL = getEnvString("JWKS_URL", cfg.SupabaseURL+"/auth/v1/.well-known/jwks.json")
	cfg.SessionFile = getEnvString("SESSION_FILE", defaultSessionFile())
	cfg.AuthFallbackDelay = getEnvDuration("AUTH_FALLBACK_DELAY", 100*time.Millisecond)
	cfg.HTTPTimeout = getEnvDuration("HTTP_TIMEOUT", 10*time.Second)
	cfg.AvatarBucket = getEnvString("AVATAR_BUCKET", "avatars")
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitAccount = getEnvInt("RATE_LIMIT_ACCOUNT", 10)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")
	cfg.CleanupInterval = getEnvDuration("CLEANUP_INTERVAL", 24*time.Hour)
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	return cfg, nil
}

// RequireServer はサーバーモードで必須となる設定が揃っているかを検証する。
// DBとservice roleキーはサーバー側ルートでのみ必要なため、クライアントコマンドでは検証しない。
func (c *Config) RequireServer() error {
	var missing []string
	if c.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if c.SupabaseServiceRoleKey == "" {
		missing = append(missing, "SUPABASE_SERVICE_ROLE_KEY")
	}
	if len(missing) > 0 {
		return model.NewConfigurationError(missing)
	}
	return nil
}

// defaultSessionFile はセッション保存先のデフォルトパスを返す。
func defaultSessionFile() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".salonlink-session.json"
	}
	return filepath.Join(home, ".salonlink", "session.json")
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
