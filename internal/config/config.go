// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/oguzhaangumuss/zer0gravis-command-center/internal/domain"
)

// Config holds all application configuration.
type Config struct {
	Port           string
	FrontendURL    string
	DBPath         string
	GRPCHealthAddr string

	Gateway         GatewayConfig
	ConsensusMethod domain.ConsensusMethod

	QueryRetention time.Duration
	SessionIdleTTL time.Duration
	SweepInterval  time.Duration

	RateLimitRequests int
	RateLimitWindow   time.Duration
	MaxRequestBody    int64

	SSEKeepalive  time.Duration
	SSERetryDelay time.Duration

	ConversationLog ConversationLogConfig
}

// GatewayConfig locates the oracle collection service.
type GatewayConfig struct {
	URL        string
	Timeout    time.Duration
	RetryCount int
}

// ConversationLogConfig controls NDJSON conversation logging.
type ConversationLogConfig struct {
	Enabled       bool
	Dir           string
	GlobalEnabled bool
	GlobalPath    string
	QueueSize     int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	queueSize := getEnvInt("CONVERSATION_LOG_QUEUE_SIZE", 1000)
	if queueSize <= 0 {
		queueSize = 1000
	}

	cfg := &Config{
		Port:           getEnv("PORT", "8080"),
		FrontendURL:    getEnv("FRONTEND_URL", ""),
		DBPath:         getEnv("DB_PATH", "./data/commandcenter.db"),
		GRPCHealthAddr: getEnv("GRPC_HEALTH_ADDR", ""),
		Gateway: GatewayConfig{
			URL:        strings.TrimRight(getEnv("GATEWAY_URL", "http://localhost:3000"), "/"),
			Timeout:    getEnvDuration("GATEWAY_TIMEOUT", 30*time.Second),
			RetryCount: getEnvInt("GATEWAY_RETRY_COUNT", 0),
		},
		ConsensusMethod:   domain.ConsensusMethod(getEnv("CONSENSUS_METHOD", "")),
		QueryRetention:    getEnvDuration("QUERY_RETENTION", 7*24*time.Hour),
		SessionIdleTTL:    getEnvDuration("SESSION_IDLE_TTL", 60*time.Minute),
		SweepInterval:     getEnvDuration("SESSION_SWEEP_INTERVAL", 5*time.Minute),
		RateLimitRequests: getEnvInt("RATE_LIMIT_REQUESTS", 30),
		RateLimitWindow:   getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),
		MaxRequestBody:    int64(getEnvInt("MAX_REQUEST_BODY", 64*1024)),
		SSEKeepalive:      getEnvDuration("SSE_KEEPALIVE", 15*time.Second),
		SSERetryDelay:     getEnvDuration("SSE_RETRY_DELAY", 3*time.Second),
		ConversationLog: ConversationLogConfig{
			Enabled:       getEnvBool("CONVERSATION_LOG_ENABLED", true),
			Dir:           getEnv("CONVERSATION_LOG_DIR", "./data/logs/conversations"),
			GlobalEnabled: getEnvBool("CONVERSATION_LOG_GLOBAL_ENABLED", false),
			GlobalPath:    getEnv("CONVERSATION_LOG_GLOBAL_PATH", "./data/logs/conversations/all.ndjson"),
			QueueSize:     queueSize,
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.Gateway.URL == "" {
		return fmt.Errorf("GATEWAY_URL cannot be empty")
	}
	if c.Gateway.Timeout <= 0 {
		return fmt.Errorf("GATEWAY_TIMEOUT must be > 0")
	}
	if c.Gateway.RetryCount < 0 {
		return fmt.Errorf("GATEWAY_RETRY_COUNT must be >= 0")
	}
	if c.ConsensusMethod != "" && !c.ConsensusMethod.Valid() {
		return fmt.Errorf("CONSENSUS_METHOD %q is not supported", c.ConsensusMethod)
	}
	if c.RateLimitRequests <= 0 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be > 0")
	}
	if c.RateLimitWindow <= 0 {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be > 0")
	}
	if c.MaxRequestBody <= 0 {
		return fmt.Errorf("MAX_REQUEST_BODY must be > 0")
	}
	if c.SSEKeepalive <= 0 {
		return fmt.Errorf("SSE_KEEPALIVE must be > 0")
	}
	if c.ConversationLog.Dir == "" {
		return fmt.Errorf("CONVERSATION_LOG_DIR cannot be empty")
	}
	if c.ConversationLog.GlobalPath == "" {
		return fmt.Errorf("CONVERSATION_LOG_GLOBAL_PATH cannot be empty")
	}
	if c.ConversationLog.QueueSize <= 0 {
		return fmt.Errorf("CONVERSATION_LOG_QUEUE_SIZE must be > 0")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

// getEnvDuration accepts Go durations ("90s") or bare seconds ("90").
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	value = strings.TrimSpace(value)
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}
