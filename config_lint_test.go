package authcore

import (
	"slices"
	"strings"
	"testing"
	"time"
)

func containsCode(codes []string, code string) bool {
	return slices.Contains(codes, code)
}

func TestLint_ProductionKeyNoHighFindings(t *testing.T) {
	cfg := testConfig()
	cfg.Password.BcryptCost = 12

	high := cfg.Lint().BySeverity(LintHigh)
	if len(high) != 0 {
		t.Fatalf("expected no high findings, got %v", high.Codes())
	}
}

func TestLint_DefaultConfigFlagsMissingKey(t *testing.T) {
	ws := defaultConfig().Lint()
	codes := ws.Codes()

	if !containsCode(codes, "hs256_key_short") {
		t.Error("expected hs256_key_short for empty secret")
	}
	if containsCode(codes, "rate_limits_disabled") {
		t.Error("default config should keep rate limits on")
	}
	if containsCode(codes, "reset_link_insecure") {
		t.Error("localhost reset link should not be flagged")
	}
}

func TestLint_Findings(t *testing.T) {
	cases := []struct {
		code   string
		mutate func(*Config)
	}{
		{"access_ttl_long", func(c *Config) { c.JWT.AccessTTL = time.Hour }},
		{"refresh_ttl_long", func(c *Config) { c.JWT.RefreshTTL = 30 * 24 * time.Hour }},
		{"leeway_large", func(c *Config) { c.JWT.Leeway = 90 * time.Second }},
		{"bcrypt_cost_low", func(c *Config) { c.Password.BcryptCost = 8 }},
		{"argon2_memory_low", func(c *Config) {
			c.Password.Algorithm = "argon2id"
			c.Password.Memory = 16 * 1024
		}},
		{"password_min_short", func(c *Config) { c.Password.MinLength = 6 }},
		{"reset_ttl_long", func(c *Config) { c.PasswordReset.ResetTTL = 2 * time.Hour }},
		{"reset_link_insecure", func(c *Config) { c.PasswordReset.ResetURLBase = "http://app.example.com/reset" }},
		{"identity_client_missing", func(c *Config) { c.Identity.GoogleClientID = "" }},
		{"rate_limits_disabled", func(c *Config) { c.RateLimit.Enabled = false }},
		{"audit_disabled", func(c *Config) { c.Audit.Enabled = false }},
		{"signing_hs256", func(c *Config) {}},
	}
	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			cfg := testConfig()
			tc.mutate(&cfg)
			if !containsCode(cfg.Lint().Codes(), tc.code) {
				t.Fatalf("expected %s", tc.code)
			}
		})
	}
}

func TestLint_AsError(t *testing.T) {
	cfg := testConfig()
	cfg.PasswordReset.ResetURLBase = "http://app.example.com/reset"

	ws := cfg.Lint()
	if err := ws.AsError(LintHigh); err == nil || !strings.Contains(err.Error(), "reset_link_insecure") {
		t.Fatalf("expected high finding error, got %v", err)
	}

	cfg.PasswordReset.ResetURLBase = "https://app.example.com/reset"
	cfg.Password.BcryptCost = 12
	if err := cfg.Lint().AsError(LintHigh); err != nil {
		t.Fatalf("expected no high findings, got %v", err)
	}
}

func TestLintSeverityString(t *testing.T) {
	if LintInfo.String() != "INFO" || LintWarn.String() != "WARN" || LintHigh.String() != "HIGH" {
		t.Fatalf("unexpected severity names: %s %s %s", LintInfo, LintWarn, LintHigh)
	}
}
