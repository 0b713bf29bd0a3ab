package triage

import (
	"sort"
	"time"

	"github.com/realyn/dtguard/internal/model"
)

// Snapshot is the result of one scan cycle: the ordered finding list plus
// the evaluation time, owned by the cycle that produced it.
type Snapshot struct {
	EvaluatedAt time.Time       `json:"evaluated_at"`
	Findings    []model.Finding `json:"findings"`
}

// Aggregate builds a snapshot from the findings of one scan cycle. The
// input slice is copied; the snapshot never aliases caller memory.
func Aggregate(findings []model.Finding, evaluatedAt time.Time) Snapshot {
	copied := make([]model.Finding, len(findings))
	copy(copied, findings)
	return Snapshot{EvaluatedAt: evaluatedAt, Findings: copied}
}

// CountBySeverity returns the number of findings per severity.
func (s Snapshot) CountBySeverity() map[model.Severity]int {
	counts := make(map[model.Severity]int, 4)
	for _, f := range s.Findings {
		counts[f.Severity]++
	}
	return counts
}

// ActionableFindings returns the findings that warrant guardian attention,
// excluding INFO severity.
func (s Snapshot) ActionableFindings() []model.Finding {
	var actionable []model.Finding
	for _, f := range s.Findings {
		if f.Severity != model.SeverityInfo {
			actionable = append(actionable, f)
		}
	}
	return actionable
}

// UrgentActions returns up to limit findings sorted by severity then score,
// both descending. The sort is stable: ties keep their original relative
// order. A non-positive limit yields an empty slice.
func (s Snapshot) UrgentActions(limit int) []model.Finding {
	if limit <= 0 {
		return nil
	}
	ordered := SortForDisplay(s.Findings)
	if limit < len(ordered) {
		ordered = ordered[:limit]
	}
	return ordered
}

// HighestSeverity returns the most severe finding severity in the snapshot,
// or INFO when the snapshot is empty.
func (s Snapshot) HighestSeverity() model.Severity {
	highest := model.SeverityInfo
	for _, f := range s.Findings {
		if f.Severity.Rank() > highest.Rank() {
			highest = f.Severity
		}
	}
	return highest
}

// SortForDisplay returns a copy of findings stable-sorted by severity rank
// descending, then score descending.
func SortForDisplay(findings []model.Finding) []model.Finding {
	ordered := make([]model.Finding, len(findings))
	copy(ordered, findings)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Severity.Rank() != ordered[j].Severity.Rank() {
			return ordered[i].Severity.Rank() > ordered[j].Severity.Rank()
		}
		return ordered[i].Score > ordered[j].Score
	})
	return ordered
}
