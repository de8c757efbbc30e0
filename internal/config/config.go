package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	HTTPAddr    string
	PostgresDSN string
	LogLevel    string

	AdminAPIKey     string
	StorageLocation string

	SigningKeyHex string
	SealKeyHex    string

	MaxContentBytes      int64
	MaxEvidenceAgeDays   int
	RequireMultipleHash  bool
	RetentionDays        int
	RequireEntryTimes    bool
	RequireEntrySigs     bool
	MaxGapHours          int
	TransferTimeoutHours int
	RequireDualAuth      bool

	DefaultRequesters string

	ApprovalBundlePath string
	ApprovalBundleID   string

	IntegrityCacheTTLSeconds int

	RateLimitRequests      int
	RateLimitWindowSeconds int
	RateLimitMaxKeys       int

	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

func FromEnv() Config {
	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	return Config{
		HTTPAddr:                 addr,
		PostgresDSN:              os.Getenv("POSTGRES_DSN"),
		LogLevel:                 envDefault("LOG_LEVEL", "info"),
		AdminAPIKey:              os.Getenv("ADMIN_API_KEY"),
		StorageLocation:          envDefault("STORAGE_LOCATION", "primary"),
		SigningKeyHex:            os.Getenv("SIGNING_KEY_HEX"),
		SealKeyHex:               os.Getenv("SEAL_KEY_HEX"),
		MaxContentBytes:          int64(envIntDefault("MAX_CONTENT_BYTES", 100*1024*1024)),
		MaxEvidenceAgeDays:       envIntDefault("MAX_EVIDENCE_AGE_DAYS", 0),
		RequireMultipleHash:      envBoolDefault("REQUIRE_MULTIPLE_HASHES", true),
		RetentionDays:            envIntDefault("VALIDATION_RETENTION_DAYS", 365),
		RequireEntryTimes:        envBoolDefault("REQUIRE_ENTRY_TIMESTAMPS", true),
		RequireEntrySigs:         envBoolDefault("REQUIRE_ENTRY_SIGNATURES", true),
		MaxGapHours:              envIntDefault("MAX_GAP_HOURS", 24),
		TransferTimeoutHours:     envIntDefault("TRANSFER_TIMEOUT_HOURS", 72),
		RequireDualAuth:          envBoolDefault("REQUIRE_DUAL_AUTHORIZATION", false),
		DefaultRequesters:        envDefault("DEFAULT_REQUESTERS", "admin"),
		ApprovalBundlePath:       os.Getenv("APPROVAL_BUNDLE_PATH"),
		ApprovalBundleID:         os.Getenv("APPROVAL_BUNDLE_ID"),
		IntegrityCacheTTLSeconds: envIntDefault("INTEGRITY_CACHE_TTL_SECONDS", 0),
		RateLimitRequests:        envIntDefault("RATE_LIMIT_REQUESTS", 0),
		RateLimitWindowSeconds:   envIntDefault("RATE_LIMIT_WINDOW_SECONDS", 60),
		RateLimitMaxKeys:         envIntDefault("RATE_LIMIT_MAX_KEYS", 10000),
		RedisAddr:                os.Getenv("REDIS_ADDR"),
		RedisPassword:            os.Getenv("REDIS_PASSWORD"),
		RedisDB:                  envIntDefault("REDIS_DB", 0),
	}
}

func envDefault(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

// envIntDefault falls back on unset, unparsable, or negative values. An
// explicit "0" is kept: zero disables the limit or feature the knob
// controls.
func envIntDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parsed, err := strconv.Atoi(v)
	if err != nil || parsed < 0 {
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

func (c Config) MaxEvidenceAge() time.Duration {
	if c.MaxEvidenceAgeDays <= 0 {
		return 0
	}
	return time.Duration(c.MaxEvidenceAgeDays) * 24 * time.Hour
}

func (c Config) ValidationRetention() time.Duration {
	if c.RetentionDays <= 0 {
		return 0
	}
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}

func (c Config) MaxGap() time.Duration {
	return time.Duration(c.MaxGapHours) * time.Hour
}

func (c Config) TransferTimeout() time.Duration {
	return time.Duration(c.TransferTimeoutHours) * time.Hour
}

func (c Config) IntegrityCacheTTL() time.Duration {
	if c.IntegrityCacheTTLSeconds <= 0 {
		return 0
	}
	return time.Duration(c.IntegrityCacheTTLSeconds) * time.Second
}

func (c Config) DefaultRequesterList() []string {
	parts := strings.Split(c.DefaultRequesters, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
