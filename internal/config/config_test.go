package config

import (
	"testing"
	"time"
)

func TestFromEnvDefaults(t *testing.T) {
	for _, key := range []string{
		"HTTP_ADDR", "POSTGRES_DSN", "MAX_CONTENT_BYTES", "MAX_GAP_HOURS",
		"TRANSFER_TIMEOUT_HOURS", "DEFAULT_REQUESTERS", "REQUIRE_MULTIPLE_HASHES",
		"VALIDATION_RETENTION_DAYS", "RATE_LIMIT_REQUESTS",
	} {
		t.Setenv(key, "")
	}
	cfg := FromEnv()

	if cfg.HTTPAddr != ":8080" {
		t.Fatalf("default addr %q", cfg.HTTPAddr)
	}
	if cfg.MaxContentBytes != 100*1024*1024 {
		t.Fatalf("default max content bytes %d", cfg.MaxContentBytes)
	}
	if !cfg.RequireMultipleHash || !cfg.RequireEntryTimes || !cfg.RequireEntrySigs {
		t.Fatalf("integrity and custody requirements should default on: %+v", cfg)
	}
	if cfg.MaxGap() != 24*time.Hour {
		t.Fatalf("default max gap %s", cfg.MaxGap())
	}
	if cfg.TransferTimeout() != 72*time.Hour {
		t.Fatalf("default transfer timeout %s", cfg.TransferTimeout())
	}
	if cfg.ValidationRetention() != 365*24*time.Hour {
		t.Fatalf("default retention %s", cfg.ValidationRetention())
	}
	if got := cfg.DefaultRequesterList(); len(got) != 1 || got[0] != "admin" {
		t.Fatalf("default requesters %v", got)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9999")
	t.Setenv("MAX_GAP_HOURS", "6")
	t.Setenv("REQUIRE_DUAL_AUTHORIZATION", "true")
	t.Setenv("REQUIRE_MULTIPLE_HASHES", "false")
	t.Setenv("DEFAULT_REQUESTERS", "admin, auditor ,")
	t.Setenv("MAX_EVIDENCE_AGE_DAYS", "30")
	t.Setenv("INTEGRITY_CACHE_TTL_SECONDS", "15")

	cfg := FromEnv()
	if cfg.HTTPAddr != ":9999" {
		t.Fatalf("addr %q", cfg.HTTPAddr)
	}
	if cfg.MaxGap() != 6*time.Hour {
		t.Fatalf("max gap %s", cfg.MaxGap())
	}
	if !cfg.RequireDualAuth {
		t.Fatal("dual authorization should be enabled")
	}
	if cfg.RequireMultipleHash {
		t.Fatal("multiple hashes should be disabled")
	}
	if got := cfg.DefaultRequesterList(); len(got) != 2 || got[1] != "auditor" {
		t.Fatalf("requesters %v", got)
	}
	if cfg.MaxEvidenceAge() != 30*24*time.Hour {
		t.Fatalf("max evidence age %s", cfg.MaxEvidenceAge())
	}
	if cfg.IntegrityCacheTTL() != 15*time.Second {
		t.Fatalf("cache ttl %s", cfg.IntegrityCacheTTL())
	}
}

func TestFromEnvZeroDisablesLimits(t *testing.T) {
	t.Setenv("MAX_CONTENT_BYTES", "0")
	t.Setenv("MAX_GAP_HOURS", "0")
	t.Setenv("TRANSFER_TIMEOUT_HOURS", "0")
	t.Setenv("VALIDATION_RETENTION_DAYS", "0")

	cfg := FromEnv()
	if cfg.MaxContentBytes != 0 {
		t.Fatalf("explicit zero max content bytes kept as %d", cfg.MaxContentBytes)
	}
	if cfg.MaxGap() != 0 {
		t.Fatalf("explicit zero max gap kept as %s", cfg.MaxGap())
	}
	if cfg.TransferTimeout() != 0 {
		t.Fatalf("explicit zero transfer timeout kept as %s", cfg.TransferTimeout())
	}
	if cfg.ValidationRetention() != 0 {
		t.Fatalf("explicit zero retention kept as %s", cfg.ValidationRetention())
	}
}

func TestEnvIntDefault(t *testing.T) {
	t.Setenv("LIMIT", "")
	if got := envIntDefault("LIMIT", 7); got != 7 {
		t.Fatalf("unset should fall back, got %d", got)
	}
	t.Setenv("LIMIT", "0")
	if got := envIntDefault("LIMIT", 7); got != 0 {
		t.Fatalf("explicit zero should be kept, got %d", got)
	}
	t.Setenv("LIMIT", "12")
	if got := envIntDefault("LIMIT", 7); got != 12 {
		t.Fatalf("override lost, got %d", got)
	}
	t.Setenv("LIMIT", "-3")
	if got := envIntDefault("LIMIT", 7); got != 7 {
		t.Fatalf("negative should fall back, got %d", got)
	}
	t.Setenv("LIMIT", "garbage")
	if got := envIntDefault("LIMIT", 7); got != 7 {
		t.Fatalf("garbage should fall back, got %d", got)
	}
}

func TestEnvBoolDefault(t *testing.T) {
	t.Setenv("FLAG", "yes")
	if !envBoolDefault("FLAG", false) {
		t.Fatal("yes should parse true")
	}
	t.Setenv("FLAG", "0")
	if envBoolDefault("FLAG", true) {
		t.Fatal("0 should parse false")
	}
	t.Setenv("FLAG", "garbage")
	if !envBoolDefault("FLAG", true) {
		t.Fatal("garbage should fall back to default")
	}
}
