// Package ner provides the optional named-entity-recognition capability.
// It is an external, swappable collaborator: detection must produce correct,
// deterministic results whether or not a provider is answering, and an absent
// or failing provider is a normal operating state, never an error the caller
// has to handle beyond falling back to rule-only detection.
package ner

import "context"

// Label classifies an NER span.
type Label string

const (
	LabelPerson   Label = "PERSON"
	LabelLocation Label = "LOCATION"
)

// Span is a half-open [Start, End) range in rune offsets into the input text.
type Span struct {
	Start int
	End   int
	Label Label
}

// Provider is the interface the detection pipeline consumes.
type Provider interface {
	// Available reports whether the provider can answer Detect calls.
	Available() bool
	// Detect returns PERSON and LOCATION spans found in text.
	Detect(ctx context.Context, text string) ([]Span, error)
}

// Unavailable is the provider used when no model is configured or loadable.
// It answers uniformly so callers never branch on availability flags.
type Unavailable struct{}

// Available always reports false.
func (Unavailable) Available() bool { return false }

// Detect returns nothing; it exists so Unavailable satisfies Provider.
func (Unavailable) Detect(context.Context, string) ([]Span, error) { return nil, nil }

// Config selects and locates the model. Disabled or missing model files yield
// the Unavailable provider.
type Config struct {
	Enabled   bool   `yaml:"enabled" mapstructure:"enabled"`
	ModelPath string `yaml:"model_path" mapstructure:"model_path"`
	VocabPath string `yaml:"vocab_path" mapstructure:"vocab_path"`
	MaxLength int    `yaml:"max_length" mapstructure:"max_length"`
}
