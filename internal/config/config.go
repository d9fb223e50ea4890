package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	APIPort  string
	LogLevel string

	SourcesPath string

	NATSURL           string
	NATSSubjectPrefix string

	ScanWorkers       int
	SchedulerDisabled bool

	BusinessHours bool
	ScanInterval  time.Duration
	BusyInterval  time.Duration
	IdleInterval  time.Duration
	ScanStartHour int
	ScanEndHour   int
}

func Load() Config {
	return Config{
		APIPort:  mustEnv("PORT", "8081"),
		LogLevel: mustEnv("LOG_LEVEL", "info"),

		SourcesPath: mustEnv("SOURCES_PATH", ""),

		NATSURL:           mustEnv("NATS_URL", ""),
		NATSSubjectPrefix: mustEnv("NATS_SUBJECT_PREFIX", ""),

		ScanWorkers:       mustEnvInt("SCAN_WORKERS", 4),
		SchedulerDisabled: mustEnvBool("SCHEDULER_DISABLED", false),

		BusinessHours: mustEnvBool("SCAN_BUSINESS_HOURS", false),
		ScanInterval:  mustEnvDuration("SCAN_INTERVAL", time.Hour),
		BusyInterval:  mustEnvDuration("SCAN_BUSY_INTERVAL", 30*time.Minute),
		IdleInterval:  mustEnvDuration("SCAN_IDLE_INTERVAL", 4*time.Hour),
		ScanStartHour: mustEnvInt("SCAN_START_HOUR", 8),
		ScanEndHour:   mustEnvInt("SCAN_END_HOUR", 18),
	}
}

func mustEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func mustEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func mustEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}

func mustEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
