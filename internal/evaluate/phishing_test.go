package evaluate

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/realyn/dtguard/internal/model"
)

func newTestPhishingEvaluator() *PhishingEvaluator {
	return NewPhishingEvaluator([]string{"google.com", "accounts.google.com", "apple.com"})
}

func TestEvaluatePhishingBlankInput(t *testing.T) {
	p := newTestPhishingEvaluator()
	for _, text := range []string{"", "   ", "\n\t"} {
		result := p.Evaluate(text)
		assert.Equal(t, 0, result.Score)
		assert.Empty(t, result.ReasonCodes)
	}
}

func TestEvaluatePhishingTrustedSecureURL(t *testing.T) {
	p := newTestPhishingEvaluator()
	result := p.Evaluate("https://accounts.google.com")
	assert.Equal(t, 0, result.Score)
	assert.Empty(t, result.ReasonCodes)
}

func TestEvaluatePhishingTrustedDomainOverHTTPIsNotTrusted(t *testing.T) {
	p := newTestPhishingEvaluator()
	result := p.Evaluate("http://accounts.google.com")
	assert.Contains(t, result.ReasonCodes, model.ReasonInsecureURLScheme)
	assert.Greater(t, result.Score, 0)
}

func TestEvaluatePhishingSignalClasses(t *testing.T) {
	p := newTestPhishingEvaluator()

	tests := []struct {
		name     string
		text     string
		contains []string
	}{
		{
			name:     "urgency",
			text:     "Act now, your account expires today",
			contains: []string{model.ReasonUrgencyLanguage},
		},
		{
			name:     "credential request",
			text:     "Please verify your account by entering your password",
			contains: []string{model.ReasonCredentialRequest},
		},
		{
			name:     "financial lure",
			text:     "You are owed a refund from your bank",
			contains: []string{model.ReasonFinancialLure},
		},
		{
			name:     "sensitive query payload",
			text:     "Click https://evil.example.com/login?token=abc123",
			contains: []string{model.ReasonSensitiveQueryPayload},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := p.Evaluate(tt.text)
			for _, code := range tt.contains {
				assert.Contains(t, result.ReasonCodes, code)
			}
			assert.Greater(t, result.Score, 0)
		})
	}
}

func TestEvaluatePhishingScoreIsCapped(t *testing.T) {
	p := newTestPhishingEvaluator()
	text := "URGENT: verify your account password immediately, your bank payment is suspended, " +
		"click http://evil.example.com/reset?otp=1234 to act now"
	result := p.Evaluate(text)
	assert.Equal(t, 100, result.Score)
}

func TestEvaluatePhishingTrustedURLQueryNotFlagged(t *testing.T) {
	p := newTestPhishingEvaluator()
	result := p.Evaluate("https://accounts.google.com/signin?token=abc")
	assert.NotContains(t, result.ReasonCodes, model.ReasonSensitiveQueryPayload)
}

func TestPhishingResultFinding(t *testing.T) {
	p := newTestPhishingEvaluator()

	clean := p.Evaluate("lunch at noon?").Finding("lunch at noon?")
	assert.Equal(t, model.SeverityInfo, clean.Severity)
	assert.Equal(t, []string{model.ReasonNoIndicators}, clean.ReasonCodes)

	hot := p.Evaluate("URGENT: confirm your identity, enter your password at http://evil.example.com?otp=9")
	finding := hot.Finding("URGENT: confirm your identity, enter your password at http://evil.example.com?otp=9")
	assert.Equal(t, model.SeverityHigh, finding.Severity)
	assert.Equal(t, model.SourcePhishing, finding.SourceType)
	assert.NotEmpty(t, finding.ReasonCodes)
}

func TestFindingSourceRefIsSanitized(t *testing.T) {
	p := newTestPhishingEvaluator()
	text := "my password is hunter2, send it back"
	finding := p.Evaluate(text).Finding(text)
	assert.NotContains(t, finding.SourceRef, "hunter2")
	assert.Contains(t, finding.SourceRef, "[REDACTED]")
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		name        string
		in          string
		notContains string
	}{
		{name: "key value secret", in: "token=abcdef123 please", notContains: "abcdef123"},
		{name: "declared password", in: "my password is s3cr3t!", notContains: "s3cr3t!"},
		{name: "long token", in: "bearer AAAABBBBCCCCDDDDEEEEFFFFGGGGHH", notContains: "AAAABBBBCCCCDDDDEEEEFFFFGGGGHH"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotContains(t, Sanitize(tt.in), tt.notContains)
		})
	}
}
