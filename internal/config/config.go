package config

import (
	"log"
	"os"
	"sync"
	"time"

	"hospital-kpi-pipeline/pkg/utils"

	"github.com/joho/godotenv"
)

// Config holds all runtime settings for the KPI pipeline.
type Config struct {
	Port         string
	BaseURL      string
	AuthURL      string
	AuthUsername string
	AuthPassword string
	DBPath       string

	// Base timeout budgets for endpoint calls; slow endpoints get double.
	BaseTimeout time.Duration
}

var (
	cfg  *Config
	once sync.Once
)

// Load reads configuration from the environment (.env supported).
func Load() *Config {
	once.Do(func() {
		if err := godotenv.Load(); err != nil {
			log.Println("Warning: .env file not found. Relying on environment variables.")
		}
		cfg = &Config{
			Port:         getEnv("PORT", "8080"),
			BaseURL:      getEnv("MHPL_BASE_URL", "http://appit.ignitetechno.com:8080"),
			AuthURL:      os.Getenv("MHPL_AUTH_URL"),
			AuthUsername: getEnv("MHPL_USERNAME", "MHPL.API"),
			AuthPassword: os.Getenv("MHPL_PASSWORD"),
			DBPath:       getEnv("KPI_DB_PATH", "kpi.db"),
			BaseTimeout:  utils.ParseDuration(os.Getenv("MHPL_BASE_TIMEOUT"), 30*time.Second),
		}
		if cfg.AuthURL == "" {
			cfg.AuthURL = cfg.BaseURL + "/ords/xapi/auth/token"
		}
	})
	return cfg
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
