package store

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/xeipuuv/gojsonschema"

	"github.com/realyn/dtguard/internal/metrics"
	"github.com/realyn/dtguard/internal/model"
	"github.com/realyn/dtguard/internal/triage"
)

const (
	incidentsFileName = "incidents.json"
	auditFileName     = "incident_audit.jsonl"
)

// ErrNoIncident is returned by the transition operations when no record in
// the target status class exists.
var ErrNoIncident = errors.New("no matching incident")

// incidentRecordSchema validates the shape of one persisted incident before
// typed decoding. Records failing validation are skipped, never fatal.
const incidentRecordSchema = `{
	"type": "object",
	"required": ["incident_id", "severity", "title", "status", "occurrence_count"],
	"properties": {
		"incident_id": {"type": "string", "minLength": 1},
		"severity": {"type": "string"},
		"title": {"type": "string", "minLength": 1},
		"details": {"type": "string"},
		"status": {"type": "string"},
		"occurrence_count": {"type": "integer", "minimum": 1}
	}
}`

// IncidentStore persists lifecycle-tracked incidents as a JSON array
// document rewritten wholesale per mutation, plus an append-only JSONL
// audit log. It is the sole writer of both files.
type IncidentStore struct {
	mu        sync.Mutex
	path      string
	auditPath string
	schema    *gojsonschema.Schema
	logger    *slog.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
}

// NewIncidentStore creates the incident store rooted at dir.
func NewIncidentStore(dir string, logger *slog.Logger, m *metrics.Metrics) (*IncidentStore, error) {
	if err := os.MkdirAll(dir, dataDirPerm); err != nil {
		return nil, fmt.Errorf("create incident dir: %w", err)
	}
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(incidentRecordSchema))
	if err != nil {
		return nil, fmt.Errorf("compile incident schema: %w", err)
	}
	return &IncidentStore{
		path:      filepath.Join(dir, incidentsFileName),
		auditPath: filepath.Join(dir, auditFileName),
		schema:    schema,
		logger:    logger,
		metrics:   m,
		now:       time.Now,
	}, nil
}

// SetClock overrides the store clock, for tests.
func (s *IncidentStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}

// IncidentID derives the stable identity of an incident from its severity
// and title. Two alerts sharing both always fold into the same incident.
func IncidentID(severity model.Severity, title string) string {
	sum := sha256.Sum256([]byte(string(severity) + "|" + title))
	return "inc-" + hex.EncodeToString(sum[:])[:16]
}

// SyncFromScan folds every non-INFO finding of the snapshot into the
// incident set. New signals create OPEN records, resolved records reopen,
// anything else only bumps occurrence bookkeeping. Manual progress is
// never reverted by a scan.
func (s *IncidentStore) SyncFromScan(snapshot triage.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	actionable := snapshot.ActionableFindings()
	if len(actionable) == 0 {
		return nil
	}

	incidents := s.load()
	byID := make(map[string]int, len(incidents))
	for i, inc := range incidents {
		byID[inc.IncidentID] = i
	}

	scanTime := snapshot.EvaluatedAt
	var events []model.AuditEvent

	for _, finding := range actionable {
		id := IncidentID(finding.Severity, finding.Title)
		details := findingDetails(finding)

		idx, exists := byID[id]
		if !exists {
			incident := model.Incident{
				IncidentID:      id,
				Severity:        finding.Severity,
				Title:           finding.Title,
				Details:         details,
				Status:          model.StatusOpen,
				OccurrenceCount: 1,
				FirstSeenAt:     scanTime,
				LastSeenAt:      scanTime,
				StatusUpdatedAt: scanTime,
			}
			incidents = append(incidents, incident)
			byID[id] = len(incidents) - 1
			events = append(events, s.auditEvent(incident, model.EventIncidentCreated, ""))
			s.metrics.IncIncidentsOpened()
			s.logger.Info("incident created", "incident_id", id, "severity", finding.Severity, "title", finding.Title)
			continue
		}

		incident := &incidents[idx]
		incident.OccurrenceCount++
		incident.LastSeenAt = scanTime
		incident.Details = details

		if incident.Status == model.StatusResolved {
			from := incident.Status
			incident.Status = model.StatusOpen
			incident.StatusUpdatedAt = scanTime
			events = append(events, s.auditEvent(*incident, model.EventIncidentReopened, from))
			s.metrics.IncIncidentsReopened()
			s.logger.Info("incident reopened on recurrence", "incident_id", id, "occurrences", incident.OccurrenceCount)
		} else {
			events = append(events, s.auditEvent(*incident, model.EventIncidentRecurred, incident.Status))
		}
	}

	if err := s.save(incidents); err != nil {
		s.metrics.IncStoreWriteErrors()
		return fmt.Errorf("persist incidents: %w", err)
	}
	if err := s.appendAudit(events); err != nil {
		s.metrics.IncStoreWriteErrors()
		return fmt.Errorf("append incident audit: %w", err)
	}
	return nil
}

// MarkNextOpenInProgress transitions the most-recently-seen OPEN incident
// to IN_PROGRESS.
func (s *IncidentStore) MarkNextOpenInProgress() (model.Incident, error) {
	return s.transition(
		func(inc model.Incident) bool { return inc.Status == model.StatusOpen },
		byLastSeen,
		model.StatusInProgress,
		model.EventIncidentInProgress,
	)
}

// ResolveNextActive transitions the most-recently-seen active incident to
// RESOLVED, preferring an IN_PROGRESS record over an OPEN one.
func (s *IncidentStore) ResolveNextActive() (model.Incident, error) {
	incident, err := s.transition(
		func(inc model.Incident) bool { return inc.Status == model.StatusInProgress },
		byLastSeen,
		model.StatusResolved,
		model.EventIncidentResolved,
	)
	if err == nil || !errors.Is(err, ErrNoIncident) {
		return incident, err
	}
	return s.transition(
		func(inc model.Incident) bool { return inc.Status == model.StatusOpen },
		byLastSeen,
		model.StatusResolved,
		model.EventIncidentResolved,
	)
}

// ReopenLatestResolved transitions the most recently resolved incident
// back to OPEN.
func (s *IncidentStore) ReopenLatestResolved() (model.Incident, error) {
	return s.transition(
		func(inc model.Incident) bool { return inc.Status == model.StatusResolved },
		byStatusUpdated,
		model.StatusOpen,
		model.EventIncidentReopenedManual,
	)
}

func byLastSeen(inc model.Incident) time.Time { return inc.LastSeenAt }

func byStatusUpdated(inc model.Incident) time.Time { return inc.StatusUpdatedAt }

// transition applies one status change to the best candidate under the
// selection rule and appends its audit event.
func (s *IncidentStore) transition(match func(model.Incident) bool, orderKey func(model.Incident) time.Time, to model.IncidentStatus, event string) (model.Incident, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	incidents := s.load()
	best := -1
	for i, inc := range incidents {
		if !match(inc) {
			continue
		}
		if best == -1 || orderKey(inc).After(orderKey(incidents[best])) {
			best = i
		}
	}
	if best == -1 {
		return model.Incident{}, ErrNoIncident
	}

	from := incidents[best].Status
	incidents[best].Status = to
	incidents[best].StatusUpdatedAt = s.now()

	if err := s.save(incidents); err != nil {
		s.metrics.IncStoreWriteErrors()
		return model.Incident{}, fmt.Errorf("persist incidents: %w", err)
	}
	if err := s.appendAudit([]model.AuditEvent{s.auditEvent(incidents[best], event, from)}); err != nil {
		s.metrics.IncStoreWriteErrors()
		return model.Incident{}, fmt.Errorf("append incident audit: %w", err)
	}

	s.logger.Info("incident status changed",
		"incident_id", incidents[best].IncidentID,
		"from", from,
		"to", to)
	return incidents[best], nil
}

// List returns a copy of all incidents ordered for display: OPEN before
// IN_PROGRESS before RESOLVED, most recently seen first within a status.
func (s *IncidentStore) List() []model.Incident {
	s.mu.Lock()
	defer s.mu.Unlock()

	incidents := s.load()
	sort.SliceStable(incidents, func(i, j int) bool {
		ri, rj := statusDisplayRank(incidents[i].Status), statusDisplayRank(incidents[j].Status)
		if ri != rj {
			return ri < rj
		}
		return incidents[i].LastSeenAt.After(incidents[j].LastSeenAt)
	})
	return incidents
}

// ReadAuditEvents returns up to limit audit events, newest first.
// Malformed lines are skipped.
func (s *IncidentStore) ReadAuditEvents(limit int) ([]model.AuditEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 {
		return nil, nil
	}

	file, err := os.Open(s.auditPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer file.Close()

	var all []model.AuditEvent
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var event model.AuditEvent
		if err := json.Unmarshal(line, &event); err != nil {
			s.logger.Warn("skipping malformed audit row", "error", err)
			continue
		}
		all = append(all, event)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	var recent []model.AuditEvent
	for i := len(all) - 1; i >= 0 && len(recent) < limit; i-- {
		recent = append(recent, all[i])
	}
	return recent, nil
}

func statusDisplayRank(status model.IncidentStatus) int {
	switch status {
	case model.StatusOpen:
		return 0
	case model.StatusInProgress:
		return 1
	default:
		return 2
	}
}

// load reads the incident document, validating and re-parsing each record.
// A record that fails schema validation or enum parsing policy is skipped
// or repaired with non-degrading defaults; the read never aborts outright.
func (s *IncidentStore) load() []model.Incident {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("incident file unreadable, starting empty", "error", err)
		}
		return nil
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		s.logger.Warn("incident file malformed, starting empty", "error", err)
		return nil
	}

	incidents := make([]model.Incident, 0, len(raw))
	for _, record := range raw {
		result, err := s.schema.Validate(gojsonschema.NewBytesLoader(record))
		if err != nil || !result.Valid() {
			s.logger.Warn("skipping invalid incident record", "error", err)
			continue
		}
		var incident model.Incident
		if err := json.Unmarshal(record, &incident); err != nil {
			s.logger.Warn("skipping undecodable incident record", "error", err)
			continue
		}
		// Unknown enum values fall to MEDIUM / OPEN, never downward.
		incident.Severity, _ = model.ParseSeverity(string(incident.Severity))
		incident.Status, _ = model.ParseIncidentStatus(string(incident.Status))
		if incident.OccurrenceCount < 1 {
			incident.OccurrenceCount = 1
		}
		incidents = append(incidents, incident)
	}
	return incidents
}

func (s *IncidentStore) save(incidents []model.Incident) error {
	data, err := json.MarshalIndent(incidents, "", "  ")
	if err != nil {
		return err
	}
	return retryWrite(func() error {
		return atomicWriteFile(s.path, data)
	})
}

func (s *IncidentStore) appendAudit(events []model.AuditEvent) error {
	if len(events) == 0 {
		return nil
	}
	var buf []byte
	for _, event := range events {
		line, err := json.Marshal(event)
		if err != nil {
			return err
		}
		buf = append(buf, line...)
		buf = append(buf, '\n')
	}
	return retryWrite(func() error {
		file, err := os.OpenFile(s.auditPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, dataFilePerm)
		if err != nil {
			return err
		}
		if _, err := file.Write(buf); err != nil {
			file.Close()
			return err
		}
		return file.Close()
	})
}

func (s *IncidentStore) auditEvent(incident model.Incident, event string, from model.IncidentStatus) model.AuditEvent {
	return model.AuditEvent{
		EventID:         uuid.NewString(),
		IncidentID:      incident.IncidentID,
		Event:           event,
		FromStatus:      from,
		ToStatus:        incident.Status,
		Timestamp:       s.now(),
		Severity:        incident.Severity,
		Title:           incident.Title,
		OccurrenceCount: incident.OccurrenceCount,
	}
}

func findingDetails(f model.Finding) string {
	details := f.Remediation
	if details == "" {
		details = f.Title
	}
	return details
}
