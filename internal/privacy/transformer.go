package privacy

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/raaihank/phi-sentinel/internal/logger"
	"go.uber.org/zap"
)

// RedactedMarker replaces every span with action REDACT.
const RedactedMarker = "[REDACTED]"

// Transformer rewrites text from a disjoint entity set. Entities are processed
// in descending start order so each splice happens to the right of every span
// not yet processed, keeping their stored offsets valid.
type Transformer struct {
	logger *logger.Logger
}

// NewTransformer creates a transformer.
func NewTransformer(log *logger.Logger) *Transformer {
	return &Transformer{logger: log}
}

// Transform returns a new string with every entity span replaced according to
// its action. The input is never mutated. The reversible flag has no effect on
// the rewrite yet; it is accepted for forward compatibility. A zero-length or
// out-of-range span is an invariant violation and fails the whole call.
func (t *Transformer) Transform(text string, entities []Entity, reversible bool) (string, error) {
	if len(entities) == 0 {
		return text, nil
	}

	original := []rune(text)
	sorted := make([]Entity, len(entities))
	copy(sorted, entities)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Start > sorted[j].Start
	})

	result := original
	for _, entity := range sorted {
		if entity.Start < 0 || entity.End > len(original) || entity.Start >= entity.End {
			return "", fmt.Errorf("%w: entity %s [%d,%d) in text of %d runes",
				ErrInvalidSpan, entity.ID, entity.Start, entity.End, len(original))
		}
		replacement := t.replacementFor(entity, original)

		spliced := make([]rune, 0, len(result)+len(replacement))
		spliced = append(spliced, result[:entity.Start]...)
		spliced = append(spliced, []rune(replacement)...)
		spliced = append(spliced, result[entity.End:]...)
		result = spliced
	}
	return string(result), nil
}

// replacementFor computes the substitution for one entity from the original
// text (not the partially rewritten copy).
func (t *Transformer) replacementFor(entity Entity, original []rune) string {
	switch entity.Action {
	case ActionRedact:
		return RedactedMarker
	case ActionMask:
		val := original[entity.Start:entity.End]
		if len(val) <= 2 {
			return strings.Repeat("*", len(val))
		}
		return string(val[0]) + strings.Repeat("*", len(val)-2) + string(val[len(val)-1])
	case ActionHash:
		// Deterministic and unsalted: identical substrings hash identically.
		// Not hardened against dictionary attack.
		sum := sha256.Sum256([]byte(string(original[entity.Start:entity.End])))
		return hex.EncodeToString(sum[:])[:16]
	case ActionTokenize:
		return "[" + string(entity.Type) + "]"
	default:
		// KEEP and unrecognized actions currently delete the span. Known
		// defect kept for output compatibility; surfaced in the log until the
		// contract changes.
		t.logger.Warn("Entity action deletes span text",
			zap.String("entity_id", entity.ID),
			zap.String("action", string(entity.Action)),
		)
		return ""
	}
}
