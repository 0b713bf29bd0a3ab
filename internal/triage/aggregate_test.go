package triage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/realyn/dtguard/internal/model"
)

func scoredFinding(id string, severity model.Severity, score int) model.Finding {
	return model.Finding{
		ID:          id,
		SourceType:  model.SourceDevicePosture,
		SourceRef:   id,
		Severity:    severity,
		Score:       score,
		ReasonCodes: []string{"test_code"},
	}
}

func TestAggregateCopiesInput(t *testing.T) {
	findings := []model.Finding{scoredFinding("a", model.SeverityLow, 10)}
	snapshot := Aggregate(findings, time.Now())

	findings[0].ID = "mutated"
	assert.Equal(t, "a", snapshot.Findings[0].ID)
}

func TestCountBySeverity(t *testing.T) {
	snapshot := Aggregate([]model.Finding{
		scoredFinding("a", model.SeverityHigh, 90),
		scoredFinding("b", model.SeverityHigh, 80),
		scoredFinding("c", model.SeverityInfo, 0),
		scoredFinding("d", model.SeverityLow, 20),
	}, time.Now())

	counts := snapshot.CountBySeverity()
	assert.Equal(t, 2, counts[model.SeverityHigh])
	assert.Equal(t, 1, counts[model.SeverityInfo])
	assert.Equal(t, 1, counts[model.SeverityLow])
	assert.Equal(t, 0, counts[model.SeverityMedium])
}

func TestActionableFindingsExcludesInfo(t *testing.T) {
	snapshot := Aggregate([]model.Finding{
		scoredFinding("info", model.SeverityInfo, 0),
		scoredFinding("low", model.SeverityLow, 20),
		scoredFinding("high", model.SeverityHigh, 90),
	}, time.Now())

	actionable := snapshot.ActionableFindings()
	assert.Len(t, actionable, 2)
	for _, f := range actionable {
		assert.NotEqual(t, model.SeverityInfo, f.Severity)
	}
}

func TestUrgentActionsOrderingAndTruncation(t *testing.T) {
	snapshot := Aggregate([]model.Finding{
		scoredFinding("low-90", model.SeverityLow, 90),
		scoredFinding("high-10", model.SeverityHigh, 10),
		scoredFinding("high-80", model.SeverityHigh, 80),
		scoredFinding("medium-50", model.SeverityMedium, 50),
	}, time.Now())

	urgent := snapshot.UrgentActions(3)
	assert.Equal(t, []string{"high-80", "high-10", "medium-50"},
		[]string{urgent[0].ID, urgent[1].ID, urgent[2].ID})
}

func TestUrgentActionsStableOnTies(t *testing.T) {
	snapshot := Aggregate([]model.Finding{
		scoredFinding("first", model.SeverityHigh, 70),
		scoredFinding("second", model.SeverityHigh, 70),
		scoredFinding("third", model.SeverityHigh, 70),
	}, time.Now())

	urgent := snapshot.UrgentActions(10)
	assert.Equal(t, []string{"first", "second", "third"},
		[]string{urgent[0].ID, urgent[1].ID, urgent[2].ID})
}

func TestUrgentActionsNonPositiveLimit(t *testing.T) {
	snapshot := Aggregate([]model.Finding{scoredFinding("a", model.SeverityHigh, 50)}, time.Now())
	assert.Empty(t, snapshot.UrgentActions(0))
	assert.Empty(t, snapshot.UrgentActions(-1))
}

func TestHighestSeverity(t *testing.T) {
	assert.Equal(t, model.SeverityInfo, Aggregate(nil, time.Now()).HighestSeverity())

	snapshot := Aggregate([]model.Finding{
		scoredFinding("a", model.SeverityLow, 10),
		scoredFinding("b", model.SeverityMedium, 40),
	}, time.Now())
	assert.Equal(t, model.SeverityMedium, snapshot.HighestSeverity())
}
