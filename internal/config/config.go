package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	HTTPAddr    string
	PostgresDSN string
	LogLevel    string
	PprofOn     bool

	// Anchor gateway and transaction handler knobs.
	GatewayURL            string
	SignerKID             string
	Commitment            string
	AnchorMode            string
	AnchorMaxAttempts     int
	AnchorBackoffBaseMS   int
	AnchorBackoffCapMS    int
	ConfirmTimeoutSeconds int
	AnchorMaxPayloadBytes int

	RulesEngineURL string

	// Object store backend: memory, bolt or r2.
	StoreBackend    string
	BoltPath        string
	R2Endpoint      string
	R2Bucket        string
	R2Region        string
	R2AccessKey     string
	R2SecretKey     string
	R2PublicBaseURL string

	BatchMaxSize        int
	BatchMaxWaitSeconds int

	PolicyBundlePath string
	PolicyBundleID   string

	RateLimitRequests      int
	RateLimitWindowSeconds int
	RateLimitFailClosed    bool
	RateLimitMaxKeys       int

	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

const (
	AnchorModeNone   = "none"
	AnchorModeSingle = "single"
	AnchorModeBatch  = "batch"
)

func FromEnv() Config {
	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	return Config{
		HTTPAddr:               addr,
		PostgresDSN:            os.Getenv("POSTGRES_DSN"),
		LogLevel:               envDefault("LOG_LEVEL", "info"),
		PprofOn:                envBoolDefault("PPROF_ENABLED", false),
		GatewayURL:             os.Getenv("GATEWAY_URL"),
		SignerKID:              os.Getenv("GATEWAY_SIGNER_KID"),
		Commitment:             envDefault("ANCHOR_COMMITMENT", "confirmed"),
		AnchorMode:             envDefault("ANCHOR_MODE", AnchorModeBatch),
		AnchorMaxAttempts:      envIntDefault("ANCHOR_MAX_ATTEMPTS", 4),
		AnchorBackoffBaseMS:    envIntDefault("ANCHOR_BACKOFF_BASE_MS", 500),
		AnchorBackoffCapMS:     envIntDefault("ANCHOR_BACKOFF_CAP_MS", 8000),
		ConfirmTimeoutSeconds:  envIntDefault("ANCHOR_CONFIRM_TIMEOUT_SECONDS", 30),
		AnchorMaxPayloadBytes:  envIntDefault("ANCHOR_MAX_PAYLOAD_BYTES", 566),
		RulesEngineURL:         os.Getenv("RULES_ENGINE_URL"),
		StoreBackend:           envDefault("STORE_BACKEND", "bolt"),
		BoltPath:               envDefault("BOLT_PATH", "data/matchproof.db"),
		R2Endpoint:             os.Getenv("R2_ENDPOINT"),
		R2Bucket:               os.Getenv("R2_BUCKET"),
		R2Region:               envDefault("R2_REGION", "auto"),
		R2AccessKey:            os.Getenv("R2_ACCESS_KEY_ID"),
		R2SecretKey:            os.Getenv("R2_SECRET_ACCESS_KEY"),
		R2PublicBaseURL:        os.Getenv("R2_PUBLIC_BASE_URL"),
		BatchMaxSize:           envIntDefault("BATCH_MAX_SIZE", 64),
		BatchMaxWaitSeconds:    envIntDefault("BATCH_MAX_WAIT_SECONDS", 300),
		PolicyBundlePath:       os.Getenv("POLICY_BUNDLE_PATH"),
		PolicyBundleID:         envDefault("POLICY_BUNDLE_ID", "dispute_v1"),
		RateLimitRequests:      envIntDefault("RATE_LIMIT_REQUESTS", 0),
		RateLimitWindowSeconds: envIntDefault("RATE_LIMIT_WINDOW_SECONDS", 60),
		RateLimitFailClosed:    envBoolDefault("RATE_LIMIT_FAIL_CLOSED", false),
		RateLimitMaxKeys:       envIntDefault("RATE_LIMIT_MAX_KEYS", 10000),
		RedisAddr:              os.Getenv("REDIS_ADDR"),
		RedisPassword:          os.Getenv("REDIS_PASSWORD"),
		RedisDB:                envIntDefault("REDIS_DB", 0),
	}
}

func envDefault(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func envIntDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parsed, err := strconv.Atoi(v)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func envBoolDefault(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	switch v {
	case "1", "true", "TRUE", "True", "yes", "YES", "Yes":
		return true
	case "0", "false", "FALSE", "False", "no", "NO", "No":
		return false
	default:
		return def
	}
}

func (c Config) BatchMaxWait() time.Duration {
	if c.BatchMaxWaitSeconds <= 0 {
		return 0
	}
	return time.Duration(c.BatchMaxWaitSeconds) * time.Second
}

func (c Config) ConfirmTimeout() time.Duration {
	if c.ConfirmTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(c.ConfirmTimeoutSeconds) * time.Second
}

func (c Config) RateLimitWindow() time.Duration {
	if c.RateLimitWindowSeconds <= 0 {
		return time.Minute
	}
	return time.Duration(c.RateLimitWindowSeconds) * time.Second
}
