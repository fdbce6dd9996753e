package privacy

import "sort"

// Resolve merges raw candidates into a disjoint set. Candidates are stable
// sorted by (-length, confidence, severity rank) ascending: longer spans come
// first; among equal lengths the LOWER confidence and LOWER severity sort
// first. That tie-break is deliberate, documented behavior. A longer span
// redacted is safer than a shorter one, and the counter-intuitive preference on
// ties must not be "fixed" without an explicit requirement change. The sorted
// list is walked greedily, accepting a candidate only if its span intersects no
// already-accepted span; the result keeps acceptance order.
func Resolve(entities []Entity) []Entity {
	if len(entities) == 0 {
		return nil
	}

	sorted := make([]Entity, len(entities))
	copy(sorted, entities)
	sort.SliceStable(sorted, func(i, j int) bool {
		li, lj := sorted[i].Length(), sorted[j].Length()
		if li != lj {
			return li > lj
		}
		if sorted[i].Confidence != sorted[j].Confidence {
			return sorted[i].Confidence < sorted[j].Confidence
		}
		return sorted[i].Severity.Rank() < sorted[j].Severity.Rank()
	})

	resolved := make([]Entity, 0, len(sorted))
	for _, candidate := range sorted {
		overlaps := false
		for _, accepted := range resolved {
			if candidate.Overlaps(accepted) {
				overlaps = true
				break
			}
		}
		if !overlaps {
			resolved = append(resolved, candidate)
		}
	}
	return resolved
}
