// Package evaluate holds the pure risk evaluators. Each evaluator is a
// deterministic function over an evidence snapshot: no I/O, no hidden
// state, clocks and caches injected by the caller.
package evaluate

import (
	"fmt"
	"sort"
	"strings"

	"github.com/realyn/dtguard/internal/model"
)

// Package ids of well-known root manager apps. Collectors report the
// installed package set; only these ids count as a root manager hit.
var knownRootManagerPackages = map[string]bool{
	"com.topjohnwu.magisk":           true,
	"eu.chainfire.supersu":           true,
	"com.koushikdutta.superuser":     true,
	"com.noshufou.android.su":        true,
	"com.thirdparty.superuser":       true,
	"me.weishu.kernelsu":             true,
	"com.kingroot.kinguser":          true,
	"com.ramdroid.appquarantine":     true,
	"com.devadvance.rootcloak":       true,
	"de.robv.android.xposed.installer": true,
}

// RootResult is the outcome of the device posture evaluation: a tier plus
// the accumulated reason codes.
type RootResult struct {
	Tier        model.RiskTier
	ReasonCodes []string
}

// EvaluateRoot classifies device posture evidence into a risk tier.
// Reason codes are additive and evaluated independently; the tier is then
// resolved by priority, first match wins. A TRUSTED result discards all
// accumulated codes and carries exactly no_indicators_detected.
func EvaluateRoot(ev model.RootEvidence) RootResult {
	var codes []string

	if ev.SuBinaryPresent {
		codes = append(codes, model.ReasonSuBinary)
	}

	rootManagerHit := false
	for _, pkg := range ev.RootManagerPackages {
		if knownRootManagerPackages[strings.ToLower(strings.TrimSpace(pkg))] {
			rootManagerHit = true
			break
		}
	}
	if rootManagerHit {
		codes = append(codes, model.ReasonRootManagerPackage)
	}

	if ev.TestKeysPresent {
		codes = append(codes, model.ReasonBuildTestKeys)
	}

	if ev.Debuggable {
		codes = append(codes, model.ReasonSystemDebuggable)
		// Secure-disabled is only reported together with debuggable.
		if !ev.SecureFlag {
			codes = append(codes, model.ReasonSystemSecureDisabled)
		}
	}

	bootCompromised := false
	bootUncertain := false
	switch ev.VerifiedBoot {
	case model.BootStateOrange, model.BootStateRed:
		bootCompromised = true
		codes = append(codes, model.ReasonBootCompromised)
	case model.BootStateGreen:
		// green yields neither code
	default:
		// yellow, unknown and the empty value are all uncertain
		bootUncertain = true
		codes = append(codes, model.ReasonBootUncertain)
	}

	attestationPresent := ev.Attestation != nil
	deviceIntegrity := false
	strongIntegrity := false
	appRecognized := false
	licensed := false
	if !attestationPresent {
		codes = append(codes, model.ReasonAttestationMissing)
	} else {
		deviceIntegrity = ev.Attestation.HasDeviceIntegrity()
		strongIntegrity = ev.Attestation.HasStrongIntegrity()
		appRecognized = ev.Attestation.IsAppRecognized()
		licensed = ev.Attestation.IsLicensed()
		if !deviceIntegrity {
			codes = append(codes, model.ReasonNoDeviceIntegrity)
		}
		if !strongIntegrity {
			codes = append(codes, model.ReasonNoStrongIntegrity)
		}
		if !appRecognized {
			codes = append(codes, model.ReasonAppNotRecognized)
		}
		if !licensed {
			codes = append(codes, model.ReasonAccountUnlicensed)
		}
	}

	switch {
	case ev.SuBinaryPresent,
		rootManagerHit,
		bootCompromised,
		attestationPresent && !appRecognized,
		attestationPresent && !deviceIntegrity && (ev.TestKeysPresent || ev.Debuggable):
		return RootResult{Tier: model.TierCompromised, ReasonCodes: codes}
	case ev.TestKeysPresent,
		ev.Debuggable,
		bootUncertain,
		attestationPresent && !deviceIntegrity,
		attestationPresent && !strongIntegrity,
		attestationPresent && !licensed,
		!attestationPresent:
		return RootResult{Tier: model.TierElevated, ReasonCodes: codes}
	default:
		return RootResult{Tier: model.TierTrusted, ReasonCodes: []string{model.ReasonNoIndicators}}
	}
}

// Finding renders the posture result as a normalized finding so all three
// evaluator domains flow through one aggregation path.
func (r RootResult) Finding() model.Finding {
	codes := append([]string(nil), r.ReasonCodes...)
	sort.Strings(codes)

	f := model.Finding{
		ID:          fmt.Sprintf("posture-%s", r.Tier),
		SourceType:  model.SourceDevicePosture,
		SourceRef:   "device",
		ReasonCodes: codes,
	}

	switch r.Tier {
	case model.TierCompromised:
		f.Severity = model.SeverityHigh
		f.Score = clampScore(85 + 5*len(codes))
		f.Title = "Device integrity compromised"
		f.Remediation = "Stop entering credentials on this device and restore it from a clean factory image."
	case model.TierElevated:
		f.Severity = model.SeverityMedium
		f.Score = clampScore(50 + 5*len(codes))
		f.Title = "Device integrity weakened"
		f.Remediation = "Disable developer/debug options and re-run the device check."
	default:
		f.Severity = model.SeverityInfo
		f.Score = 0
		f.Title = "Device integrity verified"
		f.Remediation = "No action needed."
	}
	return f
}

func clampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
