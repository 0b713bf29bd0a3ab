package triage

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/realyn/dtguard/internal/model"
)

func testFinding(sourceRef string, severity model.Severity, codes ...string) model.Finding {
	return model.Finding{
		ID:          "id-" + sourceRef,
		SourceType:  model.SourcePhishing,
		SourceRef:   sourceRef,
		Severity:    severity,
		Score:       50,
		ReasonCodes: codes,
		Title:       "title " + sourceRef,
	}
}

func TestFingerprintPermutationInvariant(t *testing.T) {
	a := testFinding("msg-1", model.SeverityHigh, "credential_request_detected")
	b := testFinding("msg-2", model.SeverityLow, "urgency_language_detected")
	c := testFinding("msg-3", model.SeverityMedium, "financial_lure_detected")

	assert.Equal(t,
		Fingerprint([]model.Finding{a, b, c}),
		Fingerprint([]model.Finding{c, a, b}))
	assert.Equal(t,
		Fingerprint([]model.Finding{a, b}),
		Fingerprint([]model.Finding{b, a}))
}

func TestFingerprintReasonCodeOrderInvariant(t *testing.T) {
	a := testFinding("msg", model.SeverityHigh, "x_code", "a_code")
	b := testFinding("msg", model.SeverityHigh, "a_code", "x_code")
	assert.Equal(t, Fingerprint([]model.Finding{a}), Fingerprint([]model.Finding{b}))
}

func TestFingerprintIgnoresVolatileFields(t *testing.T) {
	a := testFinding("msg", model.SeverityHigh, "code")
	b := a
	b.ID = "different-id"
	b.Title = "different title"
	b.Score = 10
	assert.Equal(t, Fingerprint([]model.Finding{a}), Fingerprint([]model.Finding{b}))
}

func TestFingerprintDistinguishesSets(t *testing.T) {
	a := testFinding("msg-1", model.SeverityHigh, "code")
	b := testFinding("msg-2", model.SeverityHigh, "code")

	assert.NotEqual(t, Fingerprint([]model.Finding{a}), Fingerprint([]model.Finding{b}))
	assert.NotEqual(t, Fingerprint([]model.Finding{a}), Fingerprint([]model.Finding{a, b}))
}

func TestFingerprintEmptySetSentinel(t *testing.T) {
	empty := Fingerprint(nil)
	assert.Len(t, empty, fingerprintLength)
	assert.Equal(t, empty, Fingerprint([]model.Finding{}))
	assert.NotEmpty(t, empty)
}

func TestFingerprintStableLength(t *testing.T) {
	fp := Fingerprint([]model.Finding{testFinding("msg", model.SeverityLow, "code")})
	assert.Len(t, fp, fingerprintLength)
}
