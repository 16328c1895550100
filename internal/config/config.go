// Package config loads service settings from an optional .env file and the
// process environment.
package config

import (
	"os"
	"strconv"

	"github.com/dvloznov/subscription-tracker/internal/subscriptions"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Config holds every setting the commands need.
type Config struct {
	App       AppConfig
	Server    ServerConfig
	GCP       GCPConfig
	Notion    NotionConfig
	Gemini    GeminiConfig
	Queue     QueueConfig
	Detection DetectionConfig
}

type AppConfig struct {
	Environment string
	LogLevel    string
}

type ServerConfig struct {
	Port string
	// APIToken enables bearer-token auth on /api routes when set.
	APIToken        string
	ReadTimeout     int
	WriteTimeout    int
	ShutdownTimeout int
}

type GCPConfig struct {
	ProjectID string
	DatasetID string
	Bucket    string
}

type NotionConfig struct {
	Token      string
	DatabaseID string
}

type GeminiConfig struct {
	Model   string
	Enabled bool
}

type QueueConfig struct {
	Size          int
	Workers       int
	MaxRetries    int
	RetryDelaySec int
}

// DetectionConfig overrides the detector's tunable thresholds.
type DetectionConfig struct {
	Concurrency        int
	MaxAmountDeviation float64
	PriceChangeMinAbs  float64
	PriceChangeMinRel  float64
	SpotifyShared      float64
	NetflixShared      float64
}

// Heuristics applies the overrides on top of the default thresholds.
func (c DetectionConfig) Heuristics() subscriptions.Heuristics {
	h := subscriptions.DefaultHeuristics()
	h.MaxAmountDeviation = decimal.NewFromFloat(c.MaxAmountDeviation)
	h.PriceChangeMinAbs = decimal.NewFromFloat(c.PriceChangeMinAbs)
	h.PriceChangeMinRel = decimal.NewFromFloat(c.PriceChangeMinRel)
	h.SharedPlanThresholds["SPOTIFY"] = decimal.NewFromFloat(c.SpotifyShared)
	h.SharedPlanThresholds["NETFLIX"] = decimal.NewFromFloat(c.NetflixShared)
	return h
}

// Load reads path (".env" when empty) if present, then the environment.
// A missing file is not an error; variables already set in the environment
// take precedence over the file.
func Load(path string, log zerolog.Logger) *Config {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		log.Debug().Str("path", path).Msg("No .env file loaded, relying on environment")
	}
	return loadFromEnv(log)
}

func loadFromEnv(log zerolog.Logger) *Config {
	cfg := &Config{}

	cfg.App.Environment = GetEnv("APP_ENV", "local")
	cfg.App.LogLevel = GetEnv("LOG_LEVEL", "info")

	cfg.Server.Port = GetEnv("SERVER_PORT", "8080")
	cfg.Server.APIToken = GetEnv("API_TOKEN", "")
	cfg.Server.ReadTimeout = getEnvAsInt(log, "SERVER_READ_TIMEOUT", 15)
	cfg.Server.WriteTimeout = getEnvAsInt(log, "SERVER_WRITE_TIMEOUT", 15)
	cfg.Server.ShutdownTimeout = getEnvAsInt(log, "SERVER_SHUTDOWN_TIMEOUT", 30)

	cfg.GCP.ProjectID = GetEnv("GCP_PROJECT_ID", "studious-union-470122-v7")
	cfg.GCP.DatasetID = GetEnv("BQ_DATASET", "finance")
	cfg.GCP.Bucket = GetEnv("GCS_BUCKET", "")

	cfg.Notion.Token = GetEnv("NOTION_TOKEN", "")
	cfg.Notion.DatabaseID = GetEnv("NOTION_DB_ID", "")

	cfg.Gemini.Model = GetEnv("GEMINI_MODEL", "gemini-2.5-flash")
	cfg.Gemini.Enabled = getEnvAsBool(log, "GEMINI_CATEGORIZE", false)

	cfg.Queue.Size = getEnvAsInt(log, "QUEUE_SIZE", 100)
	cfg.Queue.Workers = getEnvAsInt(log, "QUEUE_WORKERS", 1)
	cfg.Queue.MaxRetries = getEnvAsInt(log, "QUEUE_MAX_RETRIES", 3)
	cfg.Queue.RetryDelaySec = getEnvAsInt(log, "QUEUE_RETRY_DELAY_SECONDS", 5)

	cfg.Detection.Concurrency = getEnvAsInt(log, "DETECT_CONCURRENCY", 8)
	cfg.Detection.MaxAmountDeviation = getEnvAsFloat(log, "DETECT_MAX_AMOUNT_DEVIATION", 0.10)
	cfg.Detection.PriceChangeMinAbs = getEnvAsFloat(log, "DETECT_PRICE_CHANGE_MIN_ABS", 0.50)
	cfg.Detection.PriceChangeMinRel = getEnvAsFloat(log, "DETECT_PRICE_CHANGE_MIN_REL", 0.02)
	cfg.Detection.SpotifyShared = getEnvAsFloat(log, "DETECT_SPOTIFY_SHARED_ABOVE", 15)
	cfg.Detection.NetflixShared = getEnvAsFloat(log, "DETECT_NETFLIX_SHARED_ABOVE", 22)

	return cfg
}

// GetEnv returns the variable or defaultValue when it is unset or empty.
func GetEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// GetEnvAsInt returns defaultValue when the variable is unset or not an integer.
func GetEnvAsInt(key string, defaultValue int) int {
	value, _ := parseEnv(key, defaultValue, strconv.Atoi)
	return value
}

func GetEnvAsBool(key string, defaultValue bool) bool {
	value, _ := parseEnv(key, defaultValue, strconv.ParseBool)
	return value
}

func GetEnvAsFloat(key string, defaultValue float64) float64 {
	value, _ := parseEnv(key, defaultValue, func(s string) (float64, error) {
		return strconv.ParseFloat(s, 64)
	})
	return value
}

func getEnvAsInt(log zerolog.Logger, key string, defaultValue int) int {
	value, err := parseEnv(key, defaultValue, strconv.Atoi)
	warnInvalid(log, key, err, defaultValue)
	return value
}

func getEnvAsBool(log zerolog.Logger, key string, defaultValue bool) bool {
	value, err := parseEnv(key, defaultValue, strconv.ParseBool)
	warnInvalid(log, key, err, defaultValue)
	return value
}

func getEnvAsFloat(log zerolog.Logger, key string, defaultValue float64) float64 {
	value, err := parseEnv(key, defaultValue, func(s string) (float64, error) {
		return strconv.ParseFloat(s, 64)
	})
	warnInvalid(log, key, err, defaultValue)
	return value
}

// parseEnv returns defaultValue for an unset variable, and defaultValue with
// the parse error for an invalid one.
func parseEnv[T any](key string, defaultValue T, parse func(string) (T, error)) (T, error) {
	valueStr := GetEnv(key, "")
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := parse(valueStr)
	if err != nil {
		return defaultValue, err
	}
	return value, nil
}

func warnInvalid(log zerolog.Logger, key string, err error, defaultValue interface{}) {
	if err == nil {
		return
	}
	log.Warn().Err(err).Str("key", key).Interface("default", defaultValue).Msg("Invalid environment value, using default")
}
