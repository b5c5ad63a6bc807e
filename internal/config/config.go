package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port          string
	LogLevel      string
	MQTTBrokerURL string
	MQTTClientID  string
	Postgres      DBConfig
	RedisAddr     string
	RedisPassword string

	// Foreign source sync
	LibreLinkDBPath string
	SyncInterval    time.Duration
	SampleInterval  time.Duration

	// Per-user alert thresholds, mmol/L
	HighThreshold float64
	LowThreshold  float64

	// Trend rate boundaries, mmol/L per minute
	SteepRate float64
	MildRate  float64

	AlertTopic       string
	WatchProviderID  string
	WatchSendTimeout time.Duration
}

type DBConfig struct {
	User     string
	Password string
	DBName   string
	Host     string
	Port     string
	SSLMode  string
}

func Load() *Config {
	cfg := &Config{
		Port:          getEnv("GLUCOSE_BRIDGE_PORT", "8095"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		MQTTBrokerURL: strings.TrimSpace(os.Getenv("MQTT_BROKER_URL")),
		MQTTClientID:  getEnv("GLUCOSE_BRIDGE_MQTT_CLIENT_ID", "glucose-bridge"),
		Postgres: DBConfig{
			User:     strings.TrimSpace(os.Getenv("POSTGRES_USER")),
			Password: os.Getenv("POSTGRES_PASSWORD"),
			DBName:   strings.TrimSpace(os.Getenv("POSTGRES_DB")),
			Host:     strings.TrimSpace(os.Getenv("POSTGRES_HOST")),
			Port:     strings.TrimSpace(os.Getenv("POSTGRES_PORT")),
			SSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		},
		RedisAddr:     getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),

		LibreLinkDBPath: getEnv("LIBRELINK_DB_PATH", "/data/data/com.freestylelibre.app/databases/glucose_readings.db"),
		SyncInterval:    getDuration("GLUCOSE_SYNC_INTERVAL", time.Minute),
		SampleInterval:  getDuration("GLUCOSE_SAMPLE_INTERVAL", time.Minute),

		HighThreshold: getFloat("GLUCOSE_HIGH_THRESHOLD", 10.0),
		LowThreshold:  getFloat("GLUCOSE_LOW_THRESHOLD", 3.9),
		SteepRate:     getFloat("TREND_STEEP_RATE", 0.1),
		MildRate:      getFloat("TREND_MILD_RATE", 0.02),

		AlertTopic:       getEnv("ALERT_TOPIC", "glucose/alert"),
		WatchProviderID:  getEnv("WATCH_PROVIDER_ID", "glucose_tracker"),
		WatchSendTimeout: getDuration("WATCH_SEND_TIMEOUT", 5*time.Second),
	}

	slog.Info("glucose-bridge config loaded",
		"port", cfg.Port, "mqtt", cfg.MQTTBrokerURL,
		"librelink_db", cfg.LibreLinkDBPath, "sync_interval", cfg.SyncInterval)
	return cfg
}

func getEnv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getFloat(k string, def float64) float64 {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		slog.Warn("invalid float env, using default", "key", k, "value", v, "default", def)
		return def
	}
	return f
}

func getDuration(k string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		slog.Warn("invalid duration env, using default", "key", k, "value", v, "default", def)
		return def
	}
	return d
}
