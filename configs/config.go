package config

import (
	"os"
	"strconv"
	"time"
)

// Publish holds the tunables of the publish pipeline. All of them are
// injected into the platform adapters and the worker at construction.
type Publish struct {
	RequestTimeout  time.Duration
	PollInterval    time.Duration
	MaxPollAttempts int
	MaxJobRetries   int
	RetryBackoff    time.Duration
}

type Config struct {
	PostgresURI string
	RedisURI    string
	GraphAPIURL string
	SecretKey   string
	CookieName  string
	Publish     Publish
}

func LoadConfig() *Config {
	return &Config{
		PostgresURI: getEnv("POSTGRES_URI", ""),
		RedisURI:    getEnv("REDIS_URI", "localhost:6379"),
		GraphAPIURL: getEnv("GRAPH_API_URL", "https://graph.facebook.com/v21.0"),
		SecretKey:   getEnv("SECRET_KEY", ""),
		CookieName:  getEnv("COOKIE_NAME", "session"),
		Publish: Publish{
			RequestTimeout:  getEnvDuration("PUBLISH_REQUEST_TIMEOUT", 30*time.Second),
			PollInterval:    getEnvDuration("PUBLISH_POLL_INTERVAL", 4*time.Second),
			MaxPollAttempts: getEnvInt("PUBLISH_MAX_POLL_ATTEMPTS", 30),
			MaxJobRetries:   getEnvInt("PUBLISH_MAX_JOB_RETRIES", 3),
			RetryBackoff:    getEnvDuration("PUBLISH_RETRY_BACKOFF", time.Minute),
		},
	}
}

// TimeBudget is the longest a single publish attempt is allowed to run:
// request timeout per call plus the full polling window. The stuck-item
// recovery sweep treats anything PUBLISHING for longer than this as dead.
func (p Publish) TimeBudget() time.Duration {
	return p.RequestTimeout + p.PollInterval*time.Duration(p.MaxPollAttempts) + time.Minute
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
