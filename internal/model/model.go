package model

import (
	"strings"
	"time"
)

// Severity classifies how urgent a finding is. The zero-like default for
// unrecognized raw values is MEDIUM so persisted-state corruption can never
// silently downgrade a risk signal.
type Severity string

const (
	SeverityInfo   Severity = "info"
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

var severityRank = map[Severity]int{
	SeverityInfo:   0,
	SeverityLow:    1,
	SeverityMedium: 2,
	SeverityHigh:   3,
}

// Rank returns the numeric ordering of a severity, higher is more urgent.
func (s Severity) Rank() int {
	return severityRank[s]
}

// ParseSeverity maps a raw string to a Severity. The second return value
// reports whether the input was recognized; unrecognized input yields
// MEDIUM, never INFO.
func ParseSeverity(raw string) (Severity, bool) {
	switch Severity(strings.ToLower(strings.TrimSpace(raw))) {
	case SeverityInfo:
		return SeverityInfo, true
	case SeverityLow:
		return SeverityLow, true
	case SeverityMedium:
		return SeverityMedium, true
	case SeverityHigh:
		return SeverityHigh, true
	default:
		return SeverityMedium, false
	}
}

// RiskTier is the three-level classification for the device posture domain.
type RiskTier string

const (
	TierTrusted     RiskTier = "trusted"
	TierElevated    RiskTier = "elevated"
	TierCompromised RiskTier = "compromised"
)

var tierRank = map[RiskTier]int{
	TierTrusted:     0,
	TierElevated:    1,
	TierCompromised: 2,
}

// Rank returns the numeric ordering of a tier, higher is worse.
func (t RiskTier) Rank() int {
	return tierRank[t]
}

// IncidentStatus is the lifecycle state of a persisted incident.
type IncidentStatus string

const (
	StatusOpen       IncidentStatus = "open"
	StatusInProgress IncidentStatus = "in_progress"
	StatusResolved   IncidentStatus = "resolved"
)

// ParseIncidentStatus maps a raw string to an IncidentStatus with a
// recognized flag. Unrecognized input yields OPEN so a damaged record
// resurfaces instead of silently closing.
func ParseIncidentStatus(raw string) (IncidentStatus, bool) {
	switch IncidentStatus(strings.ToLower(strings.TrimSpace(raw))) {
	case StatusOpen:
		return StatusOpen, true
	case StatusInProgress:
		return StatusInProgress, true
	case StatusResolved:
		return StatusResolved, true
	default:
		return StatusOpen, false
	}
}

// VerifiedBootState mirrors the platform verified-boot color states.
type VerifiedBootState string

const (
	BootStateGreen   VerifiedBootState = "green"
	BootStateYellow  VerifiedBootState = "yellow"
	BootStateOrange  VerifiedBootState = "orange"
	BootStateRed     VerifiedBootState = "red"
	BootStateUnknown VerifiedBootState = "unknown"
)

// ParseVerifiedBootState maps a raw string to a VerifiedBootState with a
// recognized flag. Empty or unrecognized input yields unknown.
func ParseVerifiedBootState(raw string) (VerifiedBootState, bool) {
	switch VerifiedBootState(strings.ToLower(strings.TrimSpace(raw))) {
	case BootStateGreen:
		return BootStateGreen, true
	case BootStateYellow:
		return BootStateYellow, true
	case BootStateOrange:
		return BootStateOrange, true
	case BootStateRed:
		return BootStateRed, true
	case BootStateUnknown:
		return BootStateUnknown, true
	default:
		return BootStateUnknown, false
	}
}

// Verdict values emitted by the platform attestation provider.
const (
	VerdictDeviceIntegrity = "MEETS_DEVICE_INTEGRITY"
	VerdictStrongIntegrity = "MEETS_STRONG_INTEGRITY"
	VerdictAppRecognized   = "PLAY_RECOGNIZED"
	VerdictLicensed        = "LICENSED"
)

// AttestationVerdict is an immutable snapshot of a platform attestation
// response, supplied by the external attestation collaborator.
type AttestationVerdict struct {
	Source                  string    `json:"source"`
	EvaluatedAt             time.Time `json:"evaluated_at"`
	DeviceIntegrityVerdicts []string  `json:"device_integrity_verdicts"`
	AppRecognitionVerdict   string    `json:"app_recognition_verdict"`
	AccountLicensingVerdict string    `json:"account_licensing_verdict"`
}

// HasDeviceIntegrity reports whether the basic device integrity verdict is present.
func (a AttestationVerdict) HasDeviceIntegrity() bool {
	return containsString(a.DeviceIntegrityVerdicts, VerdictDeviceIntegrity)
}

// HasStrongIntegrity reports whether the hardware-backed integrity verdict is present.
func (a AttestationVerdict) HasStrongIntegrity() bool {
	return containsString(a.DeviceIntegrityVerdicts, VerdictStrongIntegrity)
}

// IsAppRecognized reports whether the installed app binary was recognized.
func (a AttestationVerdict) IsAppRecognized() bool {
	return a.AppRecognitionVerdict == VerdictAppRecognized
}

// IsLicensed reports whether the installing account holds a license.
func (a AttestationVerdict) IsLicensed() bool {
	return a.AccountLicensingVerdict == VerdictLicensed
}

func containsString(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}

// RootEvidence is the normalized device posture snapshot consumed by the
// root/attestation evaluator. Collectors deliver it already trimmed and
// clamped; the evaluator never performs I/O of its own.
type RootEvidence struct {
	SuBinaryPresent     bool                `json:"su_binary_present"`
	RootManagerPackages []string            `json:"root_manager_packages"`
	TestKeysPresent     bool                `json:"test_keys_present"`
	Debuggable          bool                `json:"debuggable"`
	SecureFlag          bool                `json:"secure_flag"`
	VerifiedBoot        VerifiedBootState   `json:"verified_boot"`
	Attestation         *AttestationVerdict `json:"attestation,omitempty"`
}

// WifiEvidence is the normalized wireless posture snapshot.
type WifiEvidence struct {
	SSID                  string `json:"ssid"`
	BSSIDMasked           string `json:"bssid_masked"`
	SecurityType          string `json:"security_type"`
	OpenNearbyCount       int    `json:"open_nearby_count"`
	WeakNearbyCount       int    `json:"weak_nearby_count"`
	CaptivePortalDetected bool   `json:"captive_portal_detected"`
	Metered               bool   `json:"metered"`
	RecentSSIDChangeCount int    `json:"recent_ssid_change_count"`
}

// Source types stamped on findings so feed consumers can group them.
const (
	SourceDevicePosture = "device_posture"
	SourcePhishing      = "phishing"
	SourceWifi          = "wifi"
)

// Reason codes shared across evaluators.
const (
	ReasonNoIndicators          = "no_indicators_detected"
	ReasonSuBinary              = "su_binary_detected"
	ReasonRootManagerPackage    = "root_manager_package_detected"
	ReasonBuildTestKeys         = "build_test_keys_detected"
	ReasonSystemDebuggable      = "system_debuggable_enabled"
	ReasonSystemSecureDisabled  = "system_secure_disabled"
	ReasonBootCompromised       = "verified_boot_compromised"
	ReasonBootUncertain         = "verified_boot_uncertain"
	ReasonAttestationMissing    = "attestation_not_ingested"
	ReasonNoDeviceIntegrity     = "device_integrity_missing"
	ReasonNoStrongIntegrity     = "strong_integrity_missing"
	ReasonAppNotRecognized      = "app_not_recognized"
	ReasonAccountUnlicensed     = "account_unlicensed"
	ReasonWifiNotIngested       = "wifi_not_ingested"
	ReasonPostureNotIngested    = "device_posture_not_ingested"
	ReasonUrgencyLanguage       = "urgency_language_detected"
	ReasonCredentialRequest     = "credential_request_detected"
	ReasonFinancialLure         = "financial_lure_detected"
	ReasonSensitiveQueryPayload = "sensitive_query_payload"
	ReasonInsecureURLScheme     = "insecure_url_scheme"
)

// Finding is the normalized, scored output of an evaluator. ReasonCodes is
// never empty: a finding with no specific signal carries exactly
// ReasonNoIndicators.
type Finding struct {
	ID          string   `json:"id"`
	SourceType  string   `json:"source_type"`
	SourceRef   string   `json:"source_ref"`
	Severity    Severity `json:"severity"`
	Score       int      `json:"score"` // 0..100
	ReasonCodes []string `json:"reason_codes"`
	Title       string   `json:"title"`
	Remediation string   `json:"remediation"`
}

// AlertFeedEntry is one immutable row of the guardian alert feed.
type AlertFeedEntry struct {
	RecordedAt  time.Time `json:"recorded_at"`
	ScanTime    time.Time `json:"scan_time"`
	FindingID   string    `json:"finding_id"`
	Severity    Severity  `json:"severity"`
	Score       int       `json:"score"`
	Title       string    `json:"title"`
	SourceType  string    `json:"source_type"`
	SourceRef   string    `json:"source_ref"`
	Remediation string    `json:"remediation"`
}

// Incident is a persisted, lifecycle-tracked aggregation of repeated alerts
// sharing severity and title. The store is the sole writer.
type Incident struct {
	IncidentID      string         `json:"incident_id"`
	Severity        Severity       `json:"severity"`
	Title           string         `json:"title"`
	Details         string         `json:"details"`
	Status          IncidentStatus `json:"status"`
	OccurrenceCount int            `json:"occurrence_count"`
	FirstSeenAt     time.Time      `json:"first_seen_at"`
	LastSeenAt      time.Time      `json:"last_seen_at"`
	StatusUpdatedAt time.Time      `json:"status_updated_at"`
}

// Audit event names appended by the incident store.
const (
	EventIncidentCreated        = "incident_created"
	EventIncidentRecurred       = "incident_recurred"
	EventIncidentReopened       = "incident_reopened_on_signal"
	EventIncidentInProgress     = "incident_in_progress"
	EventIncidentResolved       = "incident_resolved"
	EventIncidentReopenedManual = "incident_reopened_manual"
)

// AuditEvent is one immutable row of the incident audit trail.
type AuditEvent struct {
	EventID         string         `json:"event_id"`
	IncidentID      string         `json:"incident_id"`
	Event           string         `json:"event"`
	FromStatus      IncidentStatus `json:"from_status,omitempty"`
	ToStatus        IncidentStatus `json:"to_status"`
	Timestamp       time.Time      `json:"timestamp"`
	Severity        Severity       `json:"severity"`
	Title           string         `json:"title"`
	OccurrenceCount int            `json:"occurrence_count"`
}
