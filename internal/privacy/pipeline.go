package privacy

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/raaihank/phi-sentinel/internal/logger"
	"github.com/raaihank/phi-sentinel/internal/ner"
	"go.uber.org/zap"
)

// RequestEcho mirrors the options a call ran under, plus the UTC timestamp
// (second precision) generated when the call started.
type RequestEcho struct {
	Mode          Mode   `json:"mode"`
	Policy        Policy `json:"policy"`
	DefaultAction Action `json:"default_action"`
	Reversible    bool   `json:"reversible"`
	Locale        string `json:"locale"`
	TimestampISO  string `json:"timestamp_iso"`
}

// Summary carries the counts a presentation layer shows first.
type Summary struct {
	EntitiesFound       int  `json:"entities_found"`
	EntitiesTransformed int  `json:"entities_transformed"`
	ReviewRequired      bool `json:"review_required"`
}

// Highlight is per-entity visualization metadata. It never includes the raw
// matched text.
type Highlight struct {
	EntityID   string     `json:"entity_id"`
	EntityType EntityType `json:"entity_type"`
	Start      int        `json:"start"`
	End        int        `json:"end"`
	Confidence float64    `json:"confidence"`
	Severity   Severity   `json:"severity"`
	Action     Action     `json:"action"`
	Color      string     `json:"color"`
	Tooltip    string     `json:"tooltip"`
}

// ResultBody is the de-identification payload. Risks and Errors are reserved.
type ResultBody struct {
	OriginalTextLength int         `json:"original_text_length"`
	DeidentifiedText   string      `json:"deidentified_text"`
	Summary            Summary     `json:"summary"`
	Highlights         []Highlight `json:"highlights"`
	Entities           []Entity    `json:"entities"`
	Risks              []string    `json:"risks"`
	Errors             []string    `json:"errors"`
}

// Result is the stable output schema of one Deidentify call.
type Result struct {
	Request RequestEcho `json:"request"`
	Result  ResultBody  `json:"result"`
}

// Pipeline wires detector, resolver, and transformer. All collaborators are
// read-only after construction, so one Pipeline serves concurrent calls;
// per-call state lives entirely in arguments and locals.
type Pipeline struct {
	detector    *Detector
	transformer *Transformer
	logger      *logger.Logger
}

// NewPipeline creates the de-identification pipeline. The provider may be nil
// (rule-only detection); selector nil means RedactAll; budget <= 0 means
// DefaultPatternBudget.
func NewPipeline(provider ner.Provider, selector ActionSelector, budget time.Duration, log *logger.Logger) *Pipeline {
	return &Pipeline{
		detector:    NewDetector(provider, selector, budget, log),
		transformer: NewTransformer(log),
		logger:      log,
	}
}

// NERAvailable reports whether the optional NER capability is answering.
func (p *Pipeline) NERAvailable() bool { return p.detector.provider.Available() }

// RuleCount returns the number of matchers the detector runs: the pattern
// library, the two date matchers, and the two person-name matchers.
func (p *Pipeline) RuleCount() int { return len(p.detector.rules) + len(p.detector.dates) + 2 }

// Deidentify runs detect, resolve, transform and assembles the result. Invalid
// options are rejected before any detection; after the call returns, no text or
// entity data is retained by the pipeline.
func (p *Pipeline) Deidentify(ctx context.Context, text string, opts Options) (*Result, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	timestamp := start.UTC().Format("2006-01-02T15:04:05Z")

	raw := p.detector.Detect(ctx, text)
	resolved := Resolve(raw)

	deidentified, err := p.transformer.Transform(text, resolved, opts.Reversible)
	if err != nil {
		return nil, fmt.Errorf("transform failed: %w", err)
	}

	reviewRequired := false
	highlights := make([]Highlight, 0, len(resolved))
	entities := make([]Entity, 0, len(resolved))
	for _, entity := range resolved {
		if entity.Severity == SeverityHigh && entity.Action != ActionRedact {
			reviewRequired = true
		}
		highlights = append(highlights, Highlight{
			EntityID:   entity.ID,
			EntityType: entity.Type,
			Start:      entity.Start,
			End:        entity.End,
			Confidence: entity.Confidence,
			Severity:   entity.Severity,
			Action:     entity.Action,
			Color:      ColorFor(entity.Type),
			Tooltip:    fmt.Sprintf("%s • %s • conf=%.2f", entity.Type, entity.Action, entity.Confidence),
		})
		entities = append(entities, entity)
	}

	p.logger.Info("De-identification completed",
		zap.Int("raw_candidates", len(raw)),
		zap.Int("entities_found", len(resolved)),
		zap.Bool("review_required", reviewRequired),
		zap.Duration("duration", time.Since(start)),
	)

	return &Result{
		Request: RequestEcho{
			Mode:          opts.Mode,
			Policy:        opts.Policy,
			DefaultAction: opts.DefaultAction,
			Reversible:    opts.Reversible,
			Locale:        opts.Locale,
			TimestampISO:  timestamp,
		},
		Result: ResultBody{
			OriginalTextLength: utf8.RuneCountInString(text),
			DeidentifiedText:   deidentified,
			Summary: Summary{
				EntitiesFound:       len(resolved),
				EntitiesTransformed: len(resolved),
				ReviewRequired:      reviewRequired,
			},
			Highlights: highlights,
			Entities:   entities,
			Risks:      []string{},
			Errors:     []string{},
		},
	}, nil
}
