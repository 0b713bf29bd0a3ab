// Package engine wires the evaluators, caches and stores into the scan
// cycle that produces triage snapshots and persists their alerts.
package engine

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/realyn/dtguard/internal/config"
	"github.com/realyn/dtguard/internal/evaluate"
	"github.com/realyn/dtguard/internal/metrics"
	"github.com/realyn/dtguard/internal/model"
	"github.com/realyn/dtguard/internal/store"
	"github.com/realyn/dtguard/internal/triage"
)

// EvidenceBundle is one cycle's worth of collected evidence. Sections the
// collectors could not deliver are nil; the engine turns their absence
// into findings rather than skipping silently.
type EvidenceBundle struct {
	Root  *model.RootEvidence `json:"root,omitempty"`
	Wifi  *model.WifiEvidence `json:"wifi,omitempty"`
	Texts []string            `json:"texts,omitempty"`
}

// LoadEvidenceBundle reads an evidence bundle from a JSON file.
func LoadEvidenceBundle(path string) (EvidenceBundle, error) {
	var bundle EvidenceBundle
	data, err := os.ReadFile(path)
	if err != nil {
		return bundle, fmt.Errorf("read evidence bundle: %w", err)
	}
	if err := json.Unmarshal(data, &bundle); err != nil {
		return bundle, fmt.Errorf("parse evidence bundle: %w", err)
	}
	return bundle, nil
}

// ScanReport summarizes one completed scan cycle. StorageErrors carries
// persistence failures the cycle survived; evaluation always completes
// even when the stores are degraded.
type ScanReport struct {
	Snapshot        triage.Snapshot
	FeedChanged     bool
	HighestSeverity model.Severity
	UrgentActions   []model.Finding
	StorageErrors   []error
}

// Engine runs scan cycles against the configured stores.
type Engine struct {
	mu        sync.Mutex
	cfg       config.Config
	phishing  *evaluate.PhishingCache
	rootCache *evaluate.RootCache
	pending   *model.RootEvidence
	feed      *store.AlertFeed
	incidents *store.IncidentStore
	metrics   *metrics.Metrics
	logger    *slog.Logger
	now       func() time.Time
}

// New builds an engine from the configuration, opening both stores under
// the data directory.
func New(cfg config.Config, logger *slog.Logger, m *metrics.Metrics) (*Engine, error) {
	feed, err := store.NewAlertFeed(cfg.DataDir, cfg.FeedMaxRows, logger, m)
	if err != nil {
		return nil, fmt.Errorf("open alert feed: %w", err)
	}
	incidents, err := store.NewIncidentStore(cfg.DataDir, logger, m)
	if err != nil {
		return nil, fmt.Errorf("open incident store: %w", err)
	}
	phishing, err := evaluate.NewPhishingCache(
		evaluate.NewPhishingEvaluator(cfg.TrustedDomains),
		cfg.PhishingCacheLen, cfg.PhishingCacheTTL, time.Now)
	if err != nil {
		return nil, fmt.Errorf("build phishing cache: %w", err)
	}

	e := &Engine{
		cfg:       cfg,
		phishing:  phishing,
		feed:      feed,
		incidents: incidents,
		metrics:   m,
		logger:    logger,
		now:       time.Now,
	}
	e.rootCache = evaluate.NewRootCache(e.evaluatePendingRoot, cfg.RootCacheTTL, time.Now)
	return e, nil
}

// SetClock overrides the engine clock, for tests. Store clocks are set
// separately.
func (e *Engine) SetClock(now func() time.Time) {
	e.mu.Lock()
	e.now = now
	e.mu.Unlock()
}

// Feed exposes the alert feed for read paths.
func (e *Engine) Feed() *store.AlertFeed { return e.feed }

// Incidents exposes the incident store for read paths and lifecycle verbs.
func (e *Engine) Incidents() *store.IncidentStore { return e.incidents }

// evaluatePendingRoot is the cache supplier; it reads the evidence staged
// by the current scan call under the engine lock.
func (e *Engine) evaluatePendingRoot() evaluate.RootResult {
	return evaluate.EvaluateRoot(*e.pending)
}

// Scan evaluates one evidence bundle end to end: findings, snapshot,
// alert feed sync and incident folding. Storage failures degrade the
// report, never abort it.
func (e *Engine) Scan(bundle EvidenceBundle) ScanReport {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.metrics.IncScans()
	evaluatedAt := e.now()

	var findings []model.Finding

	if bundle.Root != nil {
		e.pending = bundle.Root
		e.rootCache.Invalidate()
		findings = append(findings, e.rootCache.Evaluate().Finding())
	} else if e.pending != nil {
		// Reuse cached posture while its TTL holds.
		findings = append(findings, e.rootCache.Evaluate().Finding())
	} else {
		findings = append(findings, missingSectionFinding(
			model.SourceDevicePosture, model.ReasonPostureNotIngested,
			"Device posture unknown",
			"Run a device check so root and attestation state can be evaluated."))
	}

	if bundle.Wifi != nil {
		findings = append(findings, evaluate.EvaluateWifi(*bundle.Wifi).Finding(*bundle.Wifi))
	} else {
		findings = append(findings, missingSectionFinding(
			model.SourceWifi, model.ReasonWifiNotIngested,
			"Network posture unknown",
			"Grant network visibility so the current Wi-Fi can be assessed."))
	}

	for _, text := range bundle.Texts {
		findings = append(findings, e.phishing.Evaluate(text).Finding(text))
	}

	e.metrics.AddFindings(len(findings))
	snapshot := triage.Aggregate(findings, evaluatedAt)

	report := ScanReport{
		Snapshot:        snapshot,
		HighestSeverity: snapshot.HighestSeverity(),
		UrgentActions:   snapshot.UrgentActions(e.cfg.UrgentLimit),
	}

	changed, err := e.feed.SyncFromScan(snapshot)
	if err != nil {
		e.logger.Error("alert feed sync failed", "error", err)
		report.StorageErrors = append(report.StorageErrors, err)
	}
	report.FeedChanged = changed

	if err := e.incidents.SyncFromScan(snapshot); err != nil {
		e.logger.Error("incident sync failed", "error", err)
		report.StorageErrors = append(report.StorageErrors, err)
	}

	e.logger.Info("scan complete",
		"findings", len(findings),
		"highest_severity", report.HighestSeverity,
		"feed_changed", report.FeedChanged,
		"storage_errors", len(report.StorageErrors))
	return report
}

// missingSectionFinding represents an evidence section the collectors did
// not deliver. Absence of posture data is itself a medium signal; absence
// of network data is low. Both fail toward suspicion rather than silence.
func missingSectionFinding(sourceType, reason, title, remediation string) model.Finding {
	severity := model.SeverityLow
	score := 20
	if sourceType == model.SourceDevicePosture {
		severity = model.SeverityMedium
		score = 40
	}
	return model.Finding{
		ID:          sourceType + "-missing",
		SourceType:  sourceType,
		SourceRef:   sourceType,
		Severity:    severity,
		Score:       score,
		ReasonCodes: []string{reason},
		Title:       title,
		Remediation: remediation,
	}
}
