package privacy

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/raaihank/phi-sentinel/internal/logger"
	"github.com/raaihank/phi-sentinel/internal/ner"
)

// TestDeidentify tests the end-to-end pipeline and its result schema
func TestDeidentify(t *testing.T) {
	pipeline := NewPipeline(nil, nil, 0, logger.Nop())
	ctx := context.Background()

	t.Run("RedactsSSN", func(t *testing.T) {
		result, err := pipeline.Deidentify(ctx, "SSN: 123-45-6789", DefaultOptions())
		if err != nil {
			t.Fatalf("Deidentify failed: %v", err)
		}
		if result.Result.DeidentifiedText != "SSN: [REDACTED]" {
			t.Errorf("Unexpected text: %q", result.Result.DeidentifiedText)
		}
		if result.Result.Summary.EntitiesFound != 1 || result.Result.Summary.EntitiesTransformed != 1 {
			t.Errorf("Unexpected summary: %+v", result.Result.Summary)
		}
		if result.Result.Summary.ReviewRequired {
			t.Error("Fully redacted output must not require review")
		}
		if result.Result.OriginalTextLength != 16 {
			t.Errorf("Expected length 16, got %d", result.Result.OriginalTextLength)
		}
	})

	t.Run("ResultSchema", func(t *testing.T) {
		opts := DefaultOptions()
		result, err := pipeline.Deidentify(ctx, "Email john@example.com", opts)
		if err != nil {
			t.Fatalf("Deidentify failed: %v", err)
		}

		if result.Request.Mode != opts.Mode || result.Request.Policy != opts.Policy ||
			result.Request.DefaultAction != opts.DefaultAction || result.Request.Locale != opts.Locale {
			t.Errorf("Request echo does not match options: %+v", result.Request)
		}
		if _, err := time.Parse("2006-01-02T15:04:05Z", result.Request.TimestampISO); err != nil {
			t.Errorf("Bad timestamp %q: %v", result.Request.TimestampISO, err)
		}
		if result.Result.Risks == nil || result.Result.Errors == nil {
			t.Error("Risks and Errors must be present (empty), not null")
		}

		if len(result.Result.Highlights) != 1 {
			t.Fatalf("Expected 1 highlight, got %d", len(result.Result.Highlights))
		}
		h := result.Result.Highlights[0]
		if h.Color != ColorFor(TypeEmail) {
			t.Errorf("Unexpected color: %s", h.Color)
		}
		if h.Tooltip != "EMAIL • REDACT • conf=0.90" {
			t.Errorf("Unexpected tooltip: %q", h.Tooltip)
		}

		if len(result.Result.Entities) != 1 {
			t.Fatalf("Expected 1 entity, got %d", len(result.Result.Entities))
		}
		if result.Result.Entities[0].Notes != "No raw value recorded." {
			t.Errorf("Unexpected notes: %q", result.Result.Entities[0].Notes)
		}
	})

	t.Run("EmptyInput", func(t *testing.T) {
		result, err := pipeline.Deidentify(ctx, "", DefaultOptions())
		if err != nil {
			t.Fatalf("Deidentify failed: %v", err)
		}
		if result.Result.DeidentifiedText != "" || result.Result.Summary.EntitiesFound != 0 {
			t.Errorf("Empty input must pass through: %+v", result.Result)
		}
		if result.Result.OriginalTextLength != 0 {
			t.Errorf("Expected length 0, got %d", result.Result.OriginalTextLength)
		}
	})

	t.Run("CleanInputUnchanged", func(t *testing.T) {
		text := "The patient was discharged in good condition."
		result, err := pipeline.Deidentify(ctx, text, DefaultOptions())
		if err != nil {
			t.Fatalf("Deidentify failed: %v", err)
		}
		if result.Result.Summary.EntitiesFound != 0 {
			t.Errorf("Clean input flagged: %+v", result.Result.Entities)
		}
		if result.Result.DeidentifiedText != text {
			t.Errorf("Clean input changed: %q", result.Result.DeidentifiedText)
		}
	})

	t.Run("RedactsEmailInPlace", func(t *testing.T) {
		result, err := pipeline.Deidentify(ctx, "Contact: john.doe@example.com", DefaultOptions())
		if err != nil {
			t.Fatalf("Deidentify failed: %v", err)
		}
		if result.Result.Summary.EntitiesFound != 1 || result.Result.Entities[0].Type != TypeEmail {
			t.Fatalf("Expected one EMAIL entity, got %+v", result.Result.Entities)
		}
		if result.Result.DeidentifiedText != "Contact: [REDACTED]" {
			t.Errorf("Unexpected text: %q", result.Result.DeidentifiedText)
		}
	})

	t.Run("MixedEntities", func(t *testing.T) {
		result, err := pipeline.Deidentify(ctx,
			"Patient John Smith (SSN: 123-45-6789) visited on 01/15/2024.", DefaultOptions())
		if err != nil {
			t.Fatalf("Deidentify failed: %v", err)
		}

		types := map[EntityType]int{}
		for _, e := range result.Result.Entities {
			types[e.Type]++
		}
		if types[TypePersonName] != 1 || types[TypeSSN] != 1 || types[TypeDate] != 1 {
			t.Errorf("Unexpected resolved types: %v", types)
		}
		// The numeric date fires twice at detection time; the resolver keeps one.
		if result.Result.Summary.EntitiesFound != 3 {
			t.Errorf("Expected 3 resolved entities, got %d", result.Result.Summary.EntitiesFound)
		}
		want := "[REDACTED] Smith (SSN: [REDACTED]) visited on [REDACTED]."
		if result.Result.DeidentifiedText != want {
			t.Errorf("Unexpected text: %q", result.Result.DeidentifiedText)
		}
	})

	t.Run("InvalidOptions", func(t *testing.T) {
		opts := DefaultOptions()
		opts.Mode = Mode("BOGUS")
		if _, err := pipeline.Deidentify(ctx, "anything", opts); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("Expected ErrInvalidConfig, got %v", err)
		}
	})

	t.Run("OverlappingNamesResolveToOne", func(t *testing.T) {
		result, err := pipeline.Deidentify(ctx, "Dr. Jane Smith reviewed the chart.", DefaultOptions())
		if err != nil {
			t.Fatalf("Deidentify failed: %v", err)
		}
		if result.Result.Summary.EntitiesFound != 1 {
			t.Fatalf("Expected 1 resolved entity, got %+v", result.Result.Entities)
		}
		e := result.Result.Entities[0]
		if e.Confidence != 0.95 || e.Provenance[0] != "regex_title" {
			t.Errorf("Titled match must win the overlap: %+v", e)
		}
		if result.Result.DeidentifiedText != "[REDACTED] reviewed the chart." {
			t.Errorf("Unexpected text: %q", result.Result.DeidentifiedText)
		}
	})

	t.Run("RedactionNotReentrant", func(t *testing.T) {
		first, err := pipeline.Deidentify(ctx, "SSN: 123-45-6789", DefaultOptions())
		if err != nil {
			t.Fatalf("Deidentify failed: %v", err)
		}
		second, err := pipeline.Deidentify(ctx, first.Result.DeidentifiedText, DefaultOptions())
		if err != nil {
			t.Fatalf("Deidentify failed: %v", err)
		}
		if second.Result.Summary.EntitiesFound != 0 {
			t.Errorf("Redacted output re-detected: %+v", second.Result.Entities)
		}
		if second.Result.DeidentifiedText != first.Result.DeidentifiedText {
			t.Errorf("Redacted output changed on second pass: %q", second.Result.DeidentifiedText)
		}
	})

	t.Run("ReviewRequiredForUnredactedHigh", func(t *testing.T) {
		masking := NewPipeline(nil, func(EntityType, Severity) Action { return ActionMask }, 0, logger.Nop())
		result, err := masking.Deidentify(ctx, "SSN: 123-45-6789", DefaultOptions())
		if err != nil {
			t.Fatalf("Deidentify failed: %v", err)
		}
		if !result.Result.Summary.ReviewRequired {
			t.Error("HIGH severity with a non-REDACT action must require review")
		}
		if result.Result.DeidentifiedText != "SSN: 1*********9" {
			t.Errorf("Unexpected masked text: %q", result.Result.DeidentifiedText)
		}
	})

	t.Run("RuleCount", func(t *testing.T) {
		if got := pipeline.RuleCount(); got != 19 {
			t.Errorf("Expected 19 matchers, got %d", got)
		}
	})

	t.Run("NERUnavailableByDefault", func(t *testing.T) {
		if pipeline.NERAvailable() {
			t.Error("Pipeline without a provider must report NER unavailable")
		}
	})

	t.Run("InvalidNERSpanDegradesToRuleOnly", func(t *testing.T) {
		provider := fakeProvider{spans: []ner.Span{{Start: 0, End: 9999, Label: ner.LabelPerson}}}
		withNER := NewPipeline(provider, nil, 0, logger.Nop())

		result, err := withNER.Deidentify(ctx, "SSN: 123-45-6789", DefaultOptions())
		if err != nil {
			t.Fatalf("Bad provider span must not fail the call: %v", err)
		}
		if result.Result.DeidentifiedText != "SSN: [REDACTED]" {
			t.Errorf("Expected rule-only redaction, got %q", result.Result.DeidentifiedText)
		}
		if result.Result.Summary.EntitiesFound != 1 || result.Result.Entities[0].Type != TypeSSN {
			t.Errorf("Expected the single SSN entity, got %+v", result.Result.Entities)
		}
	})
}

// TestDeidentifyConcurrent exercises one shared pipeline from many goroutines.
func TestDeidentifyConcurrent(t *testing.T) {
	pipeline := NewPipeline(nil, nil, 0, logger.Nop())
	ctx := context.Background()

	done := make(chan error, 8)
	for i := 0; i < 8; i++ {
		go func() {
			for j := 0; j < 25; j++ {
				result, err := pipeline.Deidentify(ctx, "SSN: 123-45-6789", DefaultOptions())
				if err != nil {
					done <- err
					return
				}
				if result.Result.DeidentifiedText != "SSN: [REDACTED]" {
					done <- errors.New("unexpected output: " + result.Result.DeidentifiedText)
					return
				}
			}
			done <- nil
		}()
	}
	for i := 0; i < 8; i++ {
		if err := <-done; err != nil {
			t.Fatal(err)
		}
	}
}
