package privacy

import (
	"errors"
	"testing"
)

// TestOptionsValidate tests boundary validation of per-call options
func TestOptionsValidate(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		opts := DefaultOptions()
		if err := opts.Validate(); err != nil {
			t.Errorf("Default options must validate: %v", err)
		}
		if opts.Mode != ModeSafeHarbor || opts.Policy != PolicyHIPAA || opts.DefaultAction != ActionRedact {
			t.Errorf("Unexpected defaults: %+v", opts)
		}
		if opts.Reversible || opts.Locale != "en-US" {
			t.Errorf("Unexpected defaults: %+v", opts)
		}
	})

	t.Run("InvalidMode", func(t *testing.T) {
		opts := DefaultOptions()
		opts.Mode = Mode("EXPERT")
		if err := opts.Validate(); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("Expected ErrInvalidConfig, got %v", err)
		}
	})

	t.Run("InvalidPolicy", func(t *testing.T) {
		opts := DefaultOptions()
		opts.Policy = Policy("GDPR")
		if err := opts.Validate(); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("Expected ErrInvalidConfig, got %v", err)
		}
	})

	t.Run("InvalidAction", func(t *testing.T) {
		opts := DefaultOptions()
		opts.DefaultAction = Action("SHRED")
		if err := opts.Validate(); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("Expected ErrInvalidConfig, got %v", err)
		}
	})

	t.Run("AllValidCombinations", func(t *testing.T) {
		for _, mode := range []Mode{ModeSafeHarbor, ModeRiskBased} {
			for _, policy := range []Policy{PolicyHIPAA, PolicyGenericPII, PolicyCustom} {
				for _, action := range []Action{ActionRedact, ActionMask, ActionHash, ActionTokenize, ActionKeep} {
					opts := Options{Mode: mode, Policy: policy, DefaultAction: action, Locale: "en-US"}
					if err := opts.Validate(); err != nil {
						t.Errorf("%s/%s/%s rejected: %v", mode, policy, action, err)
					}
				}
			}
		}
	})
}

func TestSeverityRank(t *testing.T) {
	if SeverityLow.Rank() >= SeverityMedium.Rank() || SeverityMedium.Rank() >= SeverityHigh.Rank() {
		t.Error("Severity order must be LOW < MEDIUM < HIGH")
	}
	if Severity("BOGUS").Rank() >= SeverityLow.Rank() {
		t.Error("Unknown severity must rank below LOW")
	}
}

func TestColors(t *testing.T) {
	if ColorFor(TypeSSN) != "#EF5350" {
		t.Errorf("Unexpected SSN color: %s", ColorFor(TypeSSN))
	}
	if ColorFor(EntityType("MADE_UP")) != "#BDBDBD" {
		t.Errorf("Unknown types must fall back to gray, got %s", ColorFor(EntityType("MADE_UP")))
	}

	legend := Legend()
	if len(legend) != len(entityColors) {
		t.Errorf("Legend is missing entries: %d vs %d", len(legend), len(entityColors))
	}
	// Mutating the copy must not touch the source table.
	legend[TypeSSN] = "#000000"
	if ColorFor(TypeSSN) != "#EF5350" {
		t.Error("Legend returned the internal map instead of a copy")
	}
}
