package evaluate

import (
	"fmt"
	"sort"
	"strings"

	"github.com/realyn/dtguard/internal/model"
)

// WifiTier is the posture band of the current wireless environment.
type WifiTier string

const (
	WifiStable   WifiTier = "stable"
	WifiDegraded WifiTier = "degraded"
	WifiAtRisk   WifiTier = "at_risk"
	WifiHighRisk WifiTier = "high_risk"
)

// Penalty weights applied against a starting score of 100. Nearby-network
// and churn counts are clamped before weighting so a dense scan cannot
// dominate the score on its own.
const (
	penaltyOpenSecurity  = 40
	penaltyWeakSecurity  = 25
	penaltyPerOpenNearby = 3
	penaltyPerWeakNearby = 2
	penaltyCaptivePortal = 15
	penaltyMetered       = 5
	penaltyPerSSIDChange = 4
	nearbyClamp          = 5
	churnClamp           = 5
)

// WifiResult is the outcome of scoring the wireless environment.
type WifiResult struct {
	Score           int
	Tier            WifiTier
	ReasonCodes     []string
	Recommendations []string
}

// EvaluateWifi scores the wireless posture down from 100 with weighted
// penalties and maps the result to a tier by fixed thresholds. Every
// triggered penalty contributes a reason and a recommendation, so the
// result is never empty when the tier is below stable.
func EvaluateWifi(ev model.WifiEvidence) WifiResult {
	score := 100
	var reasons, recs []string

	switch strings.ToLower(strings.TrimSpace(ev.SecurityType)) {
	case "open", "none", "":
		score -= penaltyOpenSecurity
		reasons = append(reasons, "open_network_security")
		recs = append(recs, "Switch to a network protected with WPA2 or WPA3.")
	case "wep", "wpa":
		score -= penaltyWeakSecurity
		reasons = append(reasons, "weak_network_security")
		recs = append(recs, "Upgrade the router to WPA2/WPA3; WEP and WPA are breakable.")
	}

	if n := clampCount(ev.OpenNearbyCount, nearbyClamp); n > 0 {
		score -= n * penaltyPerOpenNearby
		reasons = append(reasons, "open_networks_nearby")
		recs = append(recs, "Avoid auto-joining nearby open networks.")
	}
	if n := clampCount(ev.WeakNearbyCount, nearbyClamp); n > 0 {
		score -= n * penaltyPerWeakNearby
		reasons = append(reasons, "weak_networks_nearby")
		recs = append(recs, "Forget saved networks with outdated security.")
	}
	if ev.CaptivePortalDetected {
		score -= penaltyCaptivePortal
		reasons = append(reasons, "captive_portal_detected")
		recs = append(recs, "Do not enter credentials while behind a captive portal.")
	}
	if ev.Metered {
		score -= penaltyMetered
		reasons = append(reasons, "metered_connection")
		recs = append(recs, "Large security updates may be deferred on metered connections.")
	}
	if n := clampCount(ev.RecentSSIDChangeCount, churnClamp); n > 0 {
		score -= n * penaltyPerSSIDChange
		reasons = append(reasons, "frequent_network_changes")
		recs = append(recs, "Frequent network hopping raises exposure; prefer one trusted network.")
	}

	score = clampScore(score)

	var tier WifiTier
	switch {
	case score >= 85:
		tier = WifiStable
	case score >= 65:
		tier = WifiDegraded
	case score >= 40:
		tier = WifiAtRisk
	default:
		tier = WifiHighRisk
	}

	return WifiResult{Score: score, Tier: tier, ReasonCodes: reasons, Recommendations: recs}
}

func clampCount(n, limit int) int {
	if n < 0 {
		return 0
	}
	if n > limit {
		return limit
	}
	return n
}

// Finding renders the result as a normalized finding keyed on the masked
// network identity.
func (r WifiResult) Finding(ev model.WifiEvidence) model.Finding {
	codes := append([]string(nil), r.ReasonCodes...)
	sort.Strings(codes)
	if len(codes) == 0 {
		codes = []string{model.ReasonNoIndicators}
	}

	f := model.Finding{
		ID:          fmt.Sprintf("wifi-%s", r.Tier),
		SourceType:  model.SourceWifi,
		SourceRef:   fmt.Sprintf("%s (%s)", ev.SSID, ev.BSSIDMasked),
		Score:       100 - r.Score,
		ReasonCodes: codes,
	}

	switch r.Tier {
	case WifiHighRisk:
		f.Severity = model.SeverityHigh
		f.Title = "Wi-Fi environment is high risk"
	case WifiAtRisk:
		f.Severity = model.SeverityMedium
		f.Title = "Wi-Fi environment is at risk"
	case WifiDegraded:
		f.Severity = model.SeverityLow
		f.Title = "Wi-Fi environment is degraded"
	default:
		f.Severity = model.SeverityInfo
		f.Title = "Wi-Fi environment is stable"
	}

	if len(r.Recommendations) > 0 {
		f.Remediation = strings.Join(r.Recommendations, " ")
	} else {
		f.Remediation = "No action needed."
	}
	return f
}
