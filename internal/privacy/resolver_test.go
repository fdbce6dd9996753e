package privacy

import "testing"

// TestResolve tests overlap resolution into a disjoint entity set
func TestResolve(t *testing.T) {
	t.Run("Empty", func(t *testing.T) {
		if got := Resolve(nil); got != nil {
			t.Errorf("Expected nil, got %+v", got)
		}
		if got := Resolve([]Entity{}); got != nil {
			t.Errorf("Expected nil, got %+v", got)
		}
	})

	t.Run("LongerSpanWins", func(t *testing.T) {
		resolved := Resolve([]Entity{
			{ID: "E1", Start: 0, End: 4, Confidence: 0.99, Severity: SeverityHigh},
			{ID: "E2", Start: 0, End: 10, Confidence: 0.50, Severity: SeverityLow},
		})
		if len(resolved) != 1 || resolved[0].ID != "E2" {
			t.Fatalf("Longer span must win regardless of confidence, got %+v", resolved)
		}
	})

	t.Run("EqualLengthLowerConfidenceWins", func(t *testing.T) {
		// On length ties the lower-confidence candidate sorts first and is
		// accepted. Callers depend on this exact ordering.
		resolved := Resolve([]Entity{
			{ID: "E1", Start: 0, End: 5, Confidence: 0.95, Severity: SeverityHigh},
			{ID: "E2", Start: 0, End: 5, Confidence: 0.70, Severity: SeverityHigh},
		})
		if len(resolved) != 1 || resolved[0].ID != "E2" {
			t.Fatalf("Lower confidence must win the tie, got %+v", resolved)
		}
	})

	t.Run("EqualLengthLowerSeverityWins", func(t *testing.T) {
		resolved := Resolve([]Entity{
			{ID: "E1", Start: 0, End: 5, Confidence: 0.80, Severity: SeverityHigh},
			{ID: "E2", Start: 0, End: 5, Confidence: 0.80, Severity: SeverityLow},
		})
		if len(resolved) != 1 || resolved[0].ID != "E2" {
			t.Fatalf("Lower severity must win the tie, got %+v", resolved)
		}
	})

	t.Run("FullTieKeepsFirstCandidate", func(t *testing.T) {
		// The duplicate numeric date produces exact ties; the stable sort keeps
		// the earlier candidate.
		resolved := Resolve([]Entity{
			{ID: "E1", Type: TypeDate, Start: 5, End: 15, Confidence: 0.80, Severity: SeverityLow},
			{ID: "E2", Type: TypeDate, Start: 5, End: 15, Confidence: 0.80, Severity: SeverityLow},
		})
		if len(resolved) != 1 || resolved[0].ID != "E1" {
			t.Fatalf("Exact ties must resolve to the first candidate, got %+v", resolved)
		}
	})

	t.Run("NonOverlappingAllKept", func(t *testing.T) {
		resolved := Resolve([]Entity{
			{ID: "E1", Start: 0, End: 3, Confidence: 0.90, Severity: SeverityHigh},
			{ID: "E2", Start: 5, End: 8, Confidence: 0.80, Severity: SeverityLow},
			{ID: "E3", Start: 10, End: 20, Confidence: 0.50, Severity: SeverityMedium},
		})
		if len(resolved) != 3 {
			t.Fatalf("Non-overlapping candidates must all survive, got %+v", resolved)
		}
		if resolved[0].ID != "E3" {
			t.Errorf("Acceptance order starts with the longest span, got %s", resolved[0].ID)
		}
	})

	t.Run("AdjacentSpansDoNotOverlap", func(t *testing.T) {
		// Half-open spans: [0,5) and [5,10) touch but do not intersect.
		resolved := Resolve([]Entity{
			{ID: "E1", Start: 0, End: 5, Confidence: 0.90, Severity: SeverityHigh},
			{ID: "E2", Start: 5, End: 10, Confidence: 0.90, Severity: SeverityHigh},
		})
		if len(resolved) != 2 {
			t.Fatalf("Adjacent spans must both survive, got %+v", resolved)
		}
	})

	t.Run("OutputIsDisjoint", func(t *testing.T) {
		resolved := Resolve([]Entity{
			{ID: "E1", Start: 0, End: 8, Confidence: 0.70, Severity: SeverityLow},
			{ID: "E2", Start: 4, End: 12, Confidence: 0.70, Severity: SeverityLow},
			{ID: "E3", Start: 10, End: 14, Confidence: 0.70, Severity: SeverityLow},
			{ID: "E4", Start: 2, End: 6, Confidence: 0.99, Severity: SeverityHigh},
		})
		for i := range resolved {
			for j := i + 1; j < len(resolved); j++ {
				if resolved[i].Overlaps(resolved[j]) {
					t.Fatalf("Resolved set contains overlap: %+v vs %+v", resolved[i], resolved[j])
				}
			}
		}
	})

	t.Run("InputNotMutated", func(t *testing.T) {
		input := []Entity{
			{ID: "E1", Start: 0, End: 4, Confidence: 0.99, Severity: SeverityHigh},
			{ID: "E2", Start: 0, End: 10, Confidence: 0.50, Severity: SeverityLow},
		}
		Resolve(input)
		if input[0].ID != "E1" || input[1].ID != "E2" {
			t.Error("Resolve must not reorder the caller's slice")
		}
	})
}
