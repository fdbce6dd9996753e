package privacy

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/raaihank/phi-sentinel/internal/logger"
	"github.com/raaihank/phi-sentinel/internal/ner"
	"go.uber.org/zap"
)

// ActionSelector decides the action stamped on each candidate at detection
// time. It is an explicit injection point so policy wiring can change without
// touching the detector.
type ActionSelector func(t EntityType, s Severity) Action

// RedactAll is the default selector: every candidate gets REDACT regardless of
// the request's default_action. The request value is echoed in results but not
// applied here; redaction is the safe default for compliance output.
func RedactAll(EntityType, Severity) Action { return ActionRedact }

// DefaultPatternBudget bounds matching time for a single pattern. Go's RE2
// engine cannot backtrack catastrophically, but attacker-controlled input can
// still make unanchored alternations expensive on very large texts.
const DefaultPatternBudget = 100 * time.Millisecond

// Detector runs the pattern library, the dedicated date and person-name
// matchers, and the optional NER provider over input text. Output is raw:
// possibly overlapping, possibly duplicated, in fixed declaration order.
// Dedup and overlap handling belong to the resolver.
type Detector struct {
	rules    []Rule
	dates    []Rule
	provider ner.Provider
	action   ActionSelector
	budget   time.Duration
	logger   *logger.Logger
}

// NewDetector creates a detector. A nil selector means RedactAll; a zero or
// negative budget means DefaultPatternBudget. The provider may be nil or
// unavailable; detection then runs rule-only.
func NewDetector(provider ner.Provider, selector ActionSelector, budget time.Duration, log *logger.Logger) *Detector {
	if selector == nil {
		selector = RedactAll
	}
	if budget <= 0 {
		budget = DefaultPatternBudget
	}
	if provider == nil {
		provider = ner.Unavailable{}
	}
	return &Detector{
		rules:    defaultRules(),
		dates:    dateRules(),
		provider: provider,
		action:   selector,
		budget:   budget,
		logger:   log,
	}
}

// Detect returns every candidate entity found in text. Spans are rune offsets.
// Context cancellation stops matching between patterns and returns what was
// found so far; a pattern that exceeds the matching budget is dropped for this
// call without failing the others.
func (d *Detector) Detect(ctx context.Context, text string) []Entity {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	toRune := buildRuneIndex(text)
	entities := make([]Entity, 0, 8)
	counter := 1

	emit := func(rule Rule, span [2]int, provenance string) {
		entities = append(entities, Entity{
			ID:         fmt.Sprintf("E%d", counter),
			Type:       rule.Type,
			Start:      toRune[span[0]],
			End:        toRune[span[1]],
			Confidence: rule.Confidence,
			Severity:   rule.Severity,
			Action:     d.action(rule.Type, rule.Severity),
			Provenance: []string{provenance},
			Notes:      entityNotes,
		})
		counter++
	}

	for _, rule := range d.rules {
		if ctx.Err() != nil {
			return entities
		}
		for _, span := range d.matchRule(rule, text) {
			emit(rule, span, "regex")
		}
	}

	for _, rule := range d.dates {
		if ctx.Err() != nil {
			return entities
		}
		for _, span := range d.matchRule(rule, text) {
			emit(rule, span, "regex")
		}
	}

	titled := Rule{Type: TypePersonName, Pattern: personNameTitlePattern, Confidence: 0.95, Severity: SeverityHigh}
	for _, span := range d.matchRule(titled, text) {
		emit(titled, span, "regex_title")
	}

	basic := Rule{Type: TypePersonName, Pattern: personNameBasicPattern, Confidence: 0.70, Severity: SeverityHigh}
	for _, span := range d.matchRule(basic, text) {
		emit(basic, span, "regex_basic")
	}

	entities = append(entities, d.detectNER(ctx, text)...)
	return entities
}

// matchRule applies one rule under the matching budget. On overrun the rule's
// matches are dropped for this call and a warning is logged; the rest of the
// pipeline continues untouched.
func (d *Detector) matchRule(rule Rule, text string) [][2]int {
	start := time.Now()
	matches := rule.Pattern.FindAllStringSubmatchIndex(text, -1)
	if elapsed := time.Since(start); elapsed > d.budget {
		d.logger.Warn("Pattern exceeded matching budget, dropping its matches",
			zap.String("entity_type", string(rule.Type)),
			zap.Duration("elapsed", elapsed),
			zap.Duration("budget", d.budget),
		)
		return nil
	}

	spans := make([][2]int, 0, len(matches))
	for _, m := range matches {
		if rule.Validate != nil && !rule.Validate(text[m[0]:m[1]]) {
			continue
		}
		s, e := m[0], m[1]
		// Report the last matched capturing group when it is non-empty, so
		// label prefixes stay outside the recorded span.
		for g := len(m)/2 - 1; g >= 1; g-- {
			if m[2*g] < 0 {
				continue
			}
			if m[2*g+1] > m[2*g] {
				s, e = m[2*g], m[2*g+1]
			}
			break
		}
		spans = append(spans, [2]int{s, e})
	}
	return spans
}

// detectNER queries the NER provider when available. Absence, a failed call,
// or an invalid span is a degraded-but-valid state: bad provider output is
// dropped and detection continues rule-only.
func (d *Detector) detectNER(ctx context.Context, text string) []Entity {
	if !d.provider.Available() {
		return nil
	}

	spans, err := d.provider.Detect(ctx, text)
	if err != nil {
		d.logger.Debug("NER detection failed, continuing rule-only", zap.Error(err))
		return nil
	}

	entities := make([]Entity, 0, len(spans))
	counter := 1000
	limit := utf8.RuneCountInString(text)
	for _, sp := range spans {
		if sp.Start < 0 || sp.End <= sp.Start || sp.End > limit {
			d.logger.Debug("NER provider returned an invalid span, dropping it",
				zap.String("label", string(sp.Label)),
				zap.Int("start", sp.Start),
				zap.Int("end", sp.End),
				zap.Int("text_runes", limit),
			)
			continue
		}
		var (
			entityType EntityType
			confidence float64
			severity   Severity
		)
		switch sp.Label {
		case ner.LabelPerson:
			entityType, confidence, severity = TypePersonName, 0.80, SeverityHigh
		case ner.LabelLocation:
			entityType, confidence, severity = TypeLocation, 0.75, SeverityMedium
		default:
			continue
		}
		entities = append(entities, Entity{
			ID:         fmt.Sprintf("E%d", counter),
			Type:       entityType,
			Start:      sp.Start,
			End:        sp.End,
			Confidence: confidence,
			Severity:   severity,
			Action:     d.action(entityType, severity),
			Provenance: []string{"ner"},
			Notes:      entityNotes,
		})
		counter++
	}
	return entities
}

// buildRuneIndex maps every byte offset of s (inclusive of len(s)) to the rune
// offset it falls in. Regex matches report byte offsets; the public contract
// is codepoint offsets.
func buildRuneIndex(s string) []int {
	idx := make([]int, len(s)+1)
	runes := 0
	for i := 0; i < len(s); {
		_, size := utf8.DecodeRuneInString(s[i:])
		for j := 0; j < size; j++ {
			idx[i+j] = runes
		}
		i += size
		runes++
	}
	idx[len(s)] = runes
	return idx
}
