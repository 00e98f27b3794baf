package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config — все настройки приложения из переменных окружения.
type Config struct {
	// Сервер
	Addr           string
	Debug          bool
	WebhookBaseURL string
	AllowOrigins   []string

	// PostgreSQL
	PGHost     string
	PGPort     string
	PGUser     string
	PGPassword string
	PGDatabase string
	PGSSLMode  string

	// Redis (пустой URL — лимитер отключен)
	RedisURL           string
	RateLimitPerMinute int

	// JWT
	JWTSecret       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	// Gemini
	GoogleAPIKey string
	AIModel      string
	AIEmbedModel string
	AITimeout    time.Duration

	// PayMe
	PaymeMerchantID string
	PaymeSecretKey  string

	// Click
	ClickMerchantID string
	ClickServiceID  string
	ClickSecretKey  string

	// Цены подписок в тийинах (1 сум = 100 тийин)
	PriceStarter int64
	PriceBasic   int64
	PricePremium int64
}

// Load читает .env (если есть) и собирает Config.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Addr:           env("ADDR", ":8080"),
		Debug:          envBool("DEBUG", false),
		WebhookBaseURL: env("WEBHOOK_BASE_URL", "https://api.botfactory.uz"),
		AllowOrigins:   []string{env("FRONTEND_URL", "http://localhost:3000")},

		PGHost:     env("PG_HOST", "localhost"),
		PGPort:     env("PG_PORT", "5432"),
		PGUser:     env("PG_USER", "postgres"),
		PGPassword: os.Getenv("PG_PASSWORD"),
		PGDatabase: env("PG_DATABASE", "botfactory"),
		PGSSLMode:  env("PG_SSL_MODE", "disable"),

		RedisURL:           os.Getenv("REDIS_URL"),
		RateLimitPerMinute: envInt("RATE_LIMIT_PER_MINUTE", 100),

		JWTSecret:       env("JWT_SECRET_KEY", "временный_ключ_для_разработки_не_использовать_в_продакшене"),
		AccessTokenTTL:  envDuration("ACCESS_TOKEN_TTL", 30*time.Minute),
		RefreshTokenTTL: envDuration("REFRESH_TOKEN_TTL", 7*24*time.Hour),

		GoogleAPIKey: os.Getenv("GOOGLE_API_KEY"),
		AIModel:      env("AI_MODEL", "gemini-2.0-flash-exp"),
		AIEmbedModel: env("AI_EMBED_MODEL", "gemini-embedding-001"),
		AITimeout:    envDuration("AI_TIMEOUT", 30*time.Second),

		PaymeMerchantID: os.Getenv("PAYME_MERCHANT_ID"),
		PaymeSecretKey:  os.Getenv("PAYME_SECRET_KEY"),

		ClickMerchantID: os.Getenv("CLICK_MERCHANT_ID"),
		ClickServiceID:  os.Getenv("CLICK_SERVICE_ID"),
		ClickSecretKey:  os.Getenv("CLICK_SECRET_KEY"),

		PriceStarter: envInt64("PRICE_STARTER", 16_500_000),
		PriceBasic:   envInt64("PRICE_BASIC", 29_000_000),
		PricePremium: envInt64("PRICE_PREMIUM", 59_000_000),
	}
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func envBool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func envInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envInt64(k string, def int64) int64 {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return def
}

func envDuration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
