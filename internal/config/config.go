package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds everything the server needs from the environment.
type Config struct {
	Port      string
	JWTSecret string

	DatabaseURL string
	RedisAddr   string

	QuickBookRadiusKm float64
	StageOneRadiusKm  float64
	StageTwoRadiusKm  float64
	StageTwoDelay     time.Duration
	StageThreeDelay   time.Duration
	BiddingWindow     time.Duration
}

// Load reads the configuration from the environment. Callers should run
// godotenv.Load first so a local .env file is picked up.
func Load() (Config, error) {
	cfg := Config{
		Port:      getenv("PORT", "8080"),
		JWTSecret: os.Getenv("JWT_SECRET"),
		RedisAddr: getenv("REDIS_ADDR", "127.0.0.1:6379"),

		QuickBookRadiusKm: getfloat("QUICKBOOK_RADIUS_KM", 5),
		StageOneRadiusKm:  getfloat("STAGE_ONE_RADIUS_KM", 3),
		StageTwoRadiusKm:  getfloat("STAGE_TWO_RADIUS_KM", 10),
		StageTwoDelay:     getduration("STAGE_TWO_DELAY", 5*time.Minute),
		StageThreeDelay:   getduration("STAGE_THREE_DELAY", 10*time.Minute),
		BiddingWindow:     getduration("BIDDING_WINDOW", 6*time.Hour),
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("config: JWT_SECRET is required")
	}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = fmt.Sprintf(
			"postgres://%s:%s@%s:%s/%s?sslmode=%s",
			getenv("DB_USER", "postgres"),
			os.Getenv("DB_PASSWORD"),
			getenv("DB_HOST", "127.0.0.1"),
			getenv("DB_PORT", "5432"),
			getenv("DB_NAME", "taskradar"),
			getenv("DB_SSLMODE", "disable"),
		)
	}

	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getfloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getduration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
