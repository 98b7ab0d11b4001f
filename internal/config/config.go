package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application, read from environment
// variables. Shape follows the teacher's config.Config/LoadConfig, extended
// with the variables spec section 6 enumerates.
type Config struct {
	Port string

	DatabaseURL string
	RedisURL    string // optional; empty disables the cache (spec section 4.10)

	JWTSecret        string
	JWTRefreshSecret string
	AccessTTL        time.Duration
	RefreshTTL       time.Duration

	PlatformFeePercent int

	StripeSecretKey     string
	StripePublicKey     string
	StripeWebhookSecret string
}

// Load reads configuration from environment variables, loading a .env file
// first if one exists.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	cfg := &Config{
		Port:                getEnv("PORT", "8080"),
		DatabaseURL:         getEnv("DATABASE_URL", ""),
		RedisURL:            getEnv("REDIS_URL", ""),
		JWTSecret:           getEnv("JWT_SECRET", "your-very-secret-key"),
		JWTRefreshSecret:    getEnv("JWT_REFRESH_SECRET", "your-very-secret-refresh-key"),
		AccessTTL:           getDuration("ACCESS_TTL", 15*time.Minute),
		RefreshTTL:          getDuration("REFRESH_TTL", 7*24*time.Hour),
		PlatformFeePercent:  getInt("PLATFORM_FEE_PERCENT", 10),
		StripeSecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
		StripePublicKey:     getEnv("STRIPE_PUBLIC_KEY", ""),
		StripeWebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),
	}

	if cfg.DatabaseURL == "" {
		log.Println("Warning: DATABASE_URL is not set")
	}
	if cfg.JWTSecret == "your-very-secret-key" {
		log.Println("Warning: JWT_SECRET is using the insecure default value")
	}
	if cfg.StripeSecretKey == "" || cfg.StripeWebhookSecret == "" {
		log.Println("Warning: Stripe secret/webhook keys are not configured; payments will fail")
	}

	log.Println("Configuration loaded successfully")
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		n, err := strconv.Atoi(value)
		if err == nil {
			return n
		}
		log.Printf("Invalid integer for %s=%q, using fallback %d", key, value, fallback)
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		d, err := time.ParseDuration(value)
		if err == nil {
			return d
		}
		log.Printf("Invalid duration for %s=%q, using fallback %s", key, value, fallback)
	}
	return fallback
}
