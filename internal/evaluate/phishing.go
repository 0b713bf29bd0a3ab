package evaluate

import (
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/realyn/dtguard/internal/model"
)

var urlPattern = regexp.MustCompile(`(?i)\bhttps?://[^\s<>"')]+`)

// Keyword classes scanned in free text. Matching is case-insensitive and
// word-boundary anchored to keep short keywords from firing inside words.
var (
	urgencyKeywords    = keywordPattern("urgent", "immediately", "act now", "expires", "final notice", "last warning", "suspended", "within 24 hours")
	credentialKeywords = keywordPattern("password", "verify your account", "login", "sign in", "one-time code", "otp", "security code", "confirm your identity", "credentials")
	financialKeywords  = keywordPattern("bank", "invoice", "payment", "wire transfer", "gift card", "refund", "bitcoin", "account balance", "prize")
)

// Query parameter names that look like credential material.
var sensitiveQueryParams = map[string]bool{
	"token":    true,
	"otp":      true,
	"password": true,
	"passwd":   true,
	"pwd":      true,
	"secret":   true,
	"apikey":   true,
	"api_key":  true,
}

// Signal class weights. The final score is their sum, capped at 100.
const (
	weightUrgency        = 25
	weightCredential     = 35
	weightFinancial      = 20
	weightSensitiveQuery = 30
	weightInsecureScheme = 15
)

func keywordPattern(words ...string) *regexp.Regexp {
	escaped := make([]string, len(words))
	for i, w := range words {
		escaped[i] = regexp.QuoteMeta(w)
	}
	return regexp.MustCompile(`(?i)\b(` + strings.Join(escaped, "|") + `)\b`)
}

// PhishingResult is the outcome of scanning one text sample.
type PhishingResult struct {
	Score       int
	ReasonCodes []string
	URLs        []string
}

// PhishingEvaluator scans free text for scam signal classes and suspicious
// URLs. Trusted domains come from configuration; links to them over a
// secure scheme are never penalized.
type PhishingEvaluator struct {
	trustedDomains map[string]bool
}

// NewPhishingEvaluator builds an evaluator with the given trusted-domain
// allowlist. Subdomains of an allowlisted domain are trusted too.
func NewPhishingEvaluator(trustedDomains []string) *PhishingEvaluator {
	trusted := make(map[string]bool, len(trustedDomains))
	for _, d := range trustedDomains {
		d = strings.ToLower(strings.TrimSpace(d))
		if d != "" {
			trusted[d] = true
		}
	}
	return &PhishingEvaluator{trustedDomains: trusted}
}

// Evaluate scores one text sample. Blank input and input consisting only of
// trusted secure links yield score 0 with no reason codes.
func (p *PhishingEvaluator) Evaluate(text string) PhishingResult {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return PhishingResult{}
	}

	result := PhishingResult{URLs: urlPattern.FindAllString(trimmed, -1)}
	score := 0

	if urgencyKeywords.MatchString(trimmed) {
		result.ReasonCodes = append(result.ReasonCodes, model.ReasonUrgencyLanguage)
		score += weightUrgency
	}
	if credentialKeywords.MatchString(trimmed) {
		result.ReasonCodes = append(result.ReasonCodes, model.ReasonCredentialRequest)
		score += weightCredential
	}
	if financialKeywords.MatchString(trimmed) {
		result.ReasonCodes = append(result.ReasonCodes, model.ReasonFinancialLure)
		score += weightFinancial
	}

	sensitiveQuery := false
	insecureScheme := false
	for _, raw := range result.URLs {
		parsed, err := url.Parse(raw)
		if err != nil {
			continue
		}
		if p.isTrusted(parsed) {
			continue
		}
		if parsed.Scheme == "http" {
			insecureScheme = true
		}
		if hasSensitiveQueryParam(parsed) {
			sensitiveQuery = true
		}
	}
	if sensitiveQuery {
		result.ReasonCodes = append(result.ReasonCodes, model.ReasonSensitiveQueryPayload)
		score += weightSensitiveQuery
	}
	if insecureScheme {
		result.ReasonCodes = append(result.ReasonCodes, model.ReasonInsecureURLScheme)
		score += weightInsecureScheme
	}

	result.Score = clampScore(score)
	return result
}

// isTrusted reports whether the URL points at an allowlisted domain over a
// secure scheme. An allowlisted domain reached over plain http is not
// trusted.
func (p *PhishingEvaluator) isTrusted(u *url.URL) bool {
	if u.Scheme != "https" {
		return false
	}
	host := strings.ToLower(u.Hostname())
	if p.trustedDomains[host] {
		return true
	}
	for domain := range p.trustedDomains {
		if strings.HasSuffix(host, "."+domain) {
			return true
		}
	}
	return false
}

func hasSensitiveQueryParam(u *url.URL) bool {
	for key := range u.Query() {
		if sensitiveQueryParams[strings.ToLower(key)] {
			return true
		}
	}
	return false
}

// Finding renders the result as a normalized finding. The source ref is a
// sanitized excerpt of the scanned text so no credential material lands in
// the persisted feed.
func (r PhishingResult) Finding(text string) model.Finding {
	codes := append([]string(nil), r.ReasonCodes...)
	sort.Strings(codes)
	if len(codes) == 0 {
		codes = []string{model.ReasonNoIndicators}
	}

	excerpt := Sanitize(text)
	if len(excerpt) > 120 {
		excerpt = excerpt[:120]
	}

	f := model.Finding{
		ID:          fmt.Sprintf("phishing-%02d", r.Score),
		SourceType:  model.SourcePhishing,
		SourceRef:   excerpt,
		Score:       r.Score,
		ReasonCodes: codes,
	}

	switch {
	case r.Score >= 70:
		f.Severity = model.SeverityHigh
		f.Title = "Message strongly resembles a phishing attempt"
		f.Remediation = "Do not open the link or reply. Delete the message and warn the account owner."
	case r.Score >= 40:
		f.Severity = model.SeverityMedium
		f.Title = "Message shows phishing characteristics"
		f.Remediation = "Verify the sender through a separate channel before acting on the message."
	case r.Score > 0:
		f.Severity = model.SeverityLow
		f.Title = "Message contains mild scam signals"
		f.Remediation = "Treat unexpected requests in this message with caution."
	default:
		f.Severity = model.SeverityInfo
		f.Title = "No scam signals in message"
		f.Remediation = "No action needed."
	}
	return f
}
