package evaluate

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/realyn/dtguard/internal/model"
)

func TestEvaluateWifiStable(t *testing.T) {
	result := EvaluateWifi(model.WifiEvidence{
		SSID:         "HomeNet",
		BSSIDMasked:  "aa:bb:cc:xx:xx:xx",
		SecurityType: "wpa3",
	})

	assert.Equal(t, WifiStable, result.Tier)
	assert.Equal(t, 100, result.Score)
	assert.Empty(t, result.ReasonCodes)
}

func TestEvaluateWifiOpenNetwork(t *testing.T) {
	result := EvaluateWifi(model.WifiEvidence{
		SSID:         "CoffeeShop",
		SecurityType: "open",
	})

	assert.Equal(t, 60, result.Score)
	assert.Equal(t, WifiAtRisk, result.Tier)
	assert.Contains(t, result.ReasonCodes, "open_network_security")
	assert.NotEmpty(t, result.Recommendations)
}

func TestEvaluateWifiPenaltiesAccumulate(t *testing.T) {
	result := EvaluateWifi(model.WifiEvidence{
		SSID:                  "AirportFree",
		SecurityType:          "open",
		OpenNearbyCount:       4,
		WeakNearbyCount:       3,
		CaptivePortalDetected: true,
		Metered:               true,
		RecentSSIDChangeCount: 2,
	})

	// 100 - 40 - 12 - 6 - 15 - 5 - 8 = 14
	assert.Equal(t, 14, result.Score)
	assert.Equal(t, WifiHighRisk, result.Tier)
	assert.Len(t, result.ReasonCodes, 6)
	assert.Len(t, result.Recommendations, 6)
}

func TestEvaluateWifiNearbyCountsClamped(t *testing.T) {
	low := EvaluateWifi(model.WifiEvidence{SecurityType: "wpa2", OpenNearbyCount: 5})
	high := EvaluateWifi(model.WifiEvidence{SecurityType: "wpa2", OpenNearbyCount: 500})
	assert.Equal(t, low.Score, high.Score)

	negative := EvaluateWifi(model.WifiEvidence{SecurityType: "wpa2", OpenNearbyCount: -3})
	assert.Equal(t, 100, negative.Score)
}

func TestEvaluateWifiWeakSecurity(t *testing.T) {
	result := EvaluateWifi(model.WifiEvidence{SecurityType: "wep"})
	assert.Equal(t, 75, result.Score)
	assert.Equal(t, WifiDegraded, result.Tier)
	assert.Contains(t, result.ReasonCodes, "weak_network_security")
}

func TestWifiResultFinding(t *testing.T) {
	ev := model.WifiEvidence{SSID: "CoffeeShop", BSSIDMasked: "aa:bb:xx", SecurityType: "open", CaptivePortalDetected: true}
	result := EvaluateWifi(ev)
	finding := result.Finding(ev)

	assert.Equal(t, model.SourceWifi, finding.SourceType)
	assert.Contains(t, finding.SourceRef, "CoffeeShop")
	assert.Equal(t, 100-result.Score, finding.Score)
	assert.NotEmpty(t, finding.ReasonCodes)
	assert.NotEmpty(t, finding.Remediation)

	stable := EvaluateWifi(model.WifiEvidence{SecurityType: "wpa2"})
	stableFinding := stable.Finding(model.WifiEvidence{SecurityType: "wpa2"})
	assert.Equal(t, model.SeverityInfo, stableFinding.Severity)
	assert.Equal(t, []string{model.ReasonNoIndicators}, stableFinding.ReasonCodes)
}
