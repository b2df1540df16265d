package config

import (
	"os"
	"strconv"
	"time"
)

type AppConfig struct {
	HTTPAddr    string
	RedisAddr   string
	RedisPass   string
	SnapshotTTL time.Duration
}

func Load() AppConfig {
	return AppConfig{
		HTTPAddr:    getEnv("HTTP_ADDR", ":8014"),
		RedisAddr:   getEnv("REDIS_ADDR", "redis:6379"),
		RedisPass:   getEnv("REDIS_PASS", ""),
		SnapshotTTL: getEnvDuration("SNAPSHOT_TTL_SECONDS", 30) * time.Second,
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvDuration(key string, fallback int) time.Duration {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return time.Duration(n)
		}
	}
	return time.Duration(fallback)
}
