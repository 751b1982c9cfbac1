package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/user/curtas/internal/logging"
)

const defaultSecret = "your-secret-key-change-in-production"

// Config 应用配置
type Config struct {
	Env         string
	AppSecret   string
	DatabaseURL string
	JWTExpiry   time.Duration
	Port        string
	SiteName    string
	SiteUrl     string

	// CORSAllowOrigin 为空时允许任意来源
	CORSAllowOrigin string

	LogLevel  string
	LogFormat string

	AI AIConfig

	TrendingInterval        time.Duration
	ConnectionSweepInterval time.Duration
	ConnectionMaxAge        time.Duration
	EmbeddingInterval       time.Duration
	GenerationRatePerMin    int

	// HomeGenres 首页按类型轮播的类型及顺序
	HomeGenres []string

	Credits CreditsConfig
}

// CreditsConfig 生成额度，每 24 小时重置
type CreditsConfig struct {
	UserDailyLimit   int
	DeviceDailyLimit int
}

// AIConfig 上游生成服务配置
type AIConfig struct {
	Provider         string // openrouter | ollama
	OpenRouterAPIKey string
	OpenRouterURL    string
	OllamaHost       string
	OllamaModel      string
	OllamaEmbedModel string
}

// Load 加载配置
func Load() *Config {
	expiryHours := getEnvInt("JWT_EXPIRY_HOURS", 72)

	dbUser := getEnv("DB_USER", "postgres")
	dbPass := getEnv("DB_PASSWORD", "postgres")
	dbHost := getEnv("DB_HOST", "localhost")
	dbPort := getEnv("DB_PORT", "5432")
	dbName := getEnv("DB_NAME", "curtas")
	dbSSL := getEnv("DB_SSLMODE", "disable")

	dbURL := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		dbUser, dbPass, dbHost, dbPort, dbName, dbSSL)

	env := getEnv("APP_ENV", "development")
	appSecret := getEnv("APP_SECRET", getEnv("JWT_SECRET", defaultSecret))

	if env == "production" && appSecret == defaultSecret {
		logging.Warn().Msg("生产环境正在使用默认密钥，请立即设置 APP_SECRET")
	}

	return &Config{
		Env:         env,
		AppSecret:   appSecret,
		DatabaseURL: dbURL,
		JWTExpiry:   time.Duration(expiryHours) * time.Hour,
		Port:        getEnv("PORT", "5005"),
		SiteName:    getEnv("SITE_NAME", "Curtas"),
		SiteUrl:     getEnv("SITE_URL", "http://localhost:5005"),

		CORSAllowOrigin: getEnv("CORS_ALLOW_ORIGIN", ""),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		AI: AIConfig{
			Provider:         strings.ToLower(getEnv("AI_PROVIDER", "openrouter")),
			OpenRouterAPIKey: getEnv("OPENROUTER_API_KEY", ""),
			OpenRouterURL:    getEnv("OPENROUTER_URL", "https://openrouter.ai/api/v1/chat/completions"),
			OllamaHost:       getEnv("OLLAMA_HOST", "http://localhost:11434"),
			OllamaModel:      getEnv("OLLAMA_MODEL", "llama3.1"),
			OllamaEmbedModel: getEnv("OLLAMA_EMBED_MODEL", "nomic-embed-text"),
		},

		TrendingInterval:        getEnvDuration("TRENDING_INTERVAL", time.Hour),
		ConnectionSweepInterval: getEnvDuration("CONNECTION_SWEEP_INTERVAL", 5*time.Minute),
		ConnectionMaxAge:        getEnvDuration("CONNECTION_MAX_AGE", 30*time.Minute),
		EmbeddingInterval:       getEnvDuration("EMBEDDING_INTERVAL", 30*time.Minute),
		GenerationRatePerMin:    getEnvInt("GENERATION_RATE_PER_MIN", 20),

		HomeGenres: getEnvList("HOME_GENRES", []string{"acao", "romance", "terror", "comedia", "drama"}),

		Credits: CreditsConfig{
			UserDailyLimit:   getEnvInt("CREDITS_USER_DAILY", 20),
			DeviceDailyLimit: getEnvInt("CREDITS_DEVICE_DAILY", 10),
		},
	}
}

// IsProduction 是否生产环境
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	v, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return v
}

// getEnvList 逗号分隔，忽略空项
func getEnvList(key string, defaultValue []string) []string {
	var out []string
	for _, item := range strings.Split(getEnv(key, ""), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

// getEnvDuration 接受 "90s"、"5m" 等格式，解析失败用默认值
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		logging.Warn().Str("key", key).Str("value", raw).Msg("无效的时长配置，使用默认值")
		return defaultValue
	}
	return d
}
