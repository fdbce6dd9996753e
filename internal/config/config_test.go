package config

import (
	"testing"
	"time"

	"github.com/raaihank/phi-sentinel/internal/privacy"
)

// TestGetDefaults tests the default configuration
func TestGetDefaults(t *testing.T) {
	cfg := GetDefaults()

	if cfg.Server.Port != 8080 {
		t.Errorf("Expected port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Pipeline.PatternBudget != 100*time.Millisecond {
		t.Errorf("Expected 100ms pattern budget, got %s", cfg.Pipeline.PatternBudget)
	}
	if cfg.NER.Enabled || cfg.Cache.Enabled || cfg.Audit.Enabled {
		t.Error("NER, cache, and audit must all be opt-in")
	}

	if err := validateConfig(cfg); err != nil {
		t.Errorf("Default configuration must validate: %v", err)
	}
}

// TestValidateConfig tests configuration validation
func TestValidateConfig(t *testing.T) {
	t.Run("InvalidPort", func(t *testing.T) {
		for _, port := range []int{0, -1, 70000} {
			cfg := GetDefaults()
			cfg.Server.Port = port
			if err := validateConfig(cfg); err == nil {
				t.Errorf("Port %d accepted", port)
			}
		}
	})

	t.Run("InvalidMode", func(t *testing.T) {
		cfg := GetDefaults()
		cfg.Pipeline.Mode = "EXPERT"
		if err := validateConfig(cfg); err == nil {
			t.Error("Unknown mode accepted")
		}
	})

	t.Run("InvalidDefaultAction", func(t *testing.T) {
		cfg := GetDefaults()
		cfg.Pipeline.DefaultAction = "SHRED"
		if err := validateConfig(cfg); err == nil {
			t.Error("Unknown action accepted")
		}
	})

	t.Run("ZeroPatternBudget", func(t *testing.T) {
		cfg := GetDefaults()
		cfg.Pipeline.PatternBudget = 0
		if err := validateConfig(cfg); err == nil {
			t.Error("Zero pattern budget accepted")
		}
	})

	t.Run("InvalidLogLevel", func(t *testing.T) {
		cfg := GetDefaults()
		cfg.Logging.Level = "verbose"
		if err := validateConfig(cfg); err == nil {
			t.Error("Unknown log level accepted")
		}
	})

	t.Run("InvalidLogFormat", func(t *testing.T) {
		cfg := GetDefaults()
		cfg.Logging.Format = "xml"
		if err := validateConfig(cfg); err == nil {
			t.Error("Unknown log format accepted")
		}
	})
}

// TestPipelineOptions tests the conversion to per-call options
func TestPipelineOptions(t *testing.T) {
	opts := GetDefaults().Pipeline.Options()

	if opts.Mode != privacy.ModeSafeHarbor {
		t.Errorf("Expected SAFE_HARBOR, got %s", opts.Mode)
	}
	if opts.Policy != privacy.PolicyHIPAA {
		t.Errorf("Expected HIPAA, got %s", opts.Policy)
	}
	if opts.DefaultAction != privacy.ActionRedact {
		t.Errorf("Expected REDACT, got %s", opts.DefaultAction)
	}
	if opts.Reversible {
		t.Error("Reversible must default to false")
	}
	if opts.Locale != "en-US" {
		t.Errorf("Expected en-US, got %s", opts.Locale)
	}
	if err := opts.Validate(); err != nil {
		t.Errorf("Converted options must validate: %v", err)
	}
}
