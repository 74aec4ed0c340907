package config

import (
	"os"
	"strconv"
	"time"
)

// Default values for configuration.
const (
	DefaultFallbackCategory = "OTHER"
	DefaultBootMarker       = "-- Boot "
	DefaultTZ               = "+0900"
	DefaultTopK             = 20
	DefaultWindowDays       = 7
	DefaultAlertBelow       = 60.0
	DefaultWebhookTimeout   = 10 * time.Second
)

// Environment variable names.
const (
	EnvTZ         = "JOURNALHEALTH_TZ"
	EnvWindowDays = "JOURNALHEALTH_WINDOW_DAYS"
	EnvTopK       = "JOURNALHEALTH_TOP_K"
)

// DefaultCategories returns the built-in rule set used when no rules file exists.
func DefaultCategories() CategoryRules {
	return CategoryRules{
		{Name: "RAID_FW", Patterns: []string{`megasas|megaraid_sas|FW in FAULT|storcli`}},
		{Name: "FSCRYPT_EXT4", Patterns: []string{`fscrypt`, `ext4_bio_write_folio`}},
		{Name: "CIFS_SMB", Patterns: []string{`CIFS: VFS`, `cifs_mount`, `Dialect not supported`, `return code = -95`, `return code = -101`}},
		{Name: "FWUPD", Patterns: []string{`Failed to start Refresh fwupd metadata`}},
		{Name: "SMARTD_NOTIFY", Patterns: []string{`smartd.*(10mail|/usr/bin/mail|mailutils)`}},
		{Name: "NET_IFACE_MISSING", Patterns: []string{`networkctl.*not found`, `docker0 not found`, `veth.*not found`, `br-.* not found`}},
		{Name: "SUDO_AUTH", Patterns: []string{`incorrect password`, `pam_unix.*auth`}},
		{Name: "OTHER", Patterns: []string{`.*`}},
	}
}

// DefaultWeights returns the built-in health-score weights.
func DefaultWeights() Weights {
	return Weights{
		"RAID_FW":           40,
		"FSCRYPT_EXT4":      20,
		"CIFS_SMB":          15,
		"SUDO_AUTH":         10,
		"FWUPD":             5,
		"SMARTD_NOTIFY":     5,
		"NET_IFACE_MISSING": 5,
		"OTHER":             0,
	}
}

// DefaultSummaryMetrics returns the built-in window summary counts.
func DefaultSummaryMetrics() []SummaryMetricConfig {
	return []SummaryMetricConfig{
		{Name: "raid_fw_fault_count", Category: "RAID_FW"},
		{Name: "fscrypt_error_count", Category: "FSCRYPT_EXT4"},
		{Name: "cifs_error_95_count", Category: "CIFS_SMB", Contains: "return code = -95"},
		{Name: "cifs_error_101_count", Category: "CIFS_SMB", Contains: "return code = -101"},
		{Name: "fwupd_fail_count", Category: "FWUPD"},
		{Name: "smartd_mail_missing_count", Category: "SMARTD_NOTIFY"},
		{Name: "sudo_auth_warn_count", Category: "SUDO_AUTH"},
		{Name: "net_iface_missing_count", Category: "NET_IFACE_MISSING"},
	}
}

// DefaultConfig returns a configuration with the built-in rules and weights.
func DefaultConfig() *Config {
	return &Config{
		Categories:       DefaultCategories(),
		Weights:          DefaultWeights(),
		FallbackCategory: DefaultFallbackCategory,
		BootMarker:       DefaultBootMarker,
		DefaultTZ:        DefaultTZ,
		TopK:             DefaultTopK,
		WindowDays:       DefaultWindowDays,
		Health:           HealthConfig{AlertBelow: DefaultAlertBelow},
		SummaryMetrics:   DefaultSummaryMetrics(),
	}
}

// applyEnvironmentOverrides applies environment variable overrides to the config.
// Unparseable numeric values are ignored.
func (c *Config) applyEnvironmentOverrides() {
	if tz := os.Getenv(EnvTZ); tz != "" {
		c.DefaultTZ = tz
	}
	if v := os.Getenv(EnvWindowDays); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.WindowDays = n
		}
	}
	if v := os.Getenv(EnvTopK); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.TopK = n
		}
	}
}
