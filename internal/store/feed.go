// Package store holds the persisted stores: the guardian alert feed and
// the incident state machine. Each store serializes its own
// read-modify-write cycle under its own mutex; callers may use different
// stores concurrently.
package store

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/codeGROOVE-dev/retry"

	"github.com/realyn/dtguard/internal/metrics"
	"github.com/realyn/dtguard/internal/model"
	"github.com/realyn/dtguard/internal/triage"
)

const (
	dataDirPerm  = 0o750
	dataFilePerm = 0o600

	// Retry policy for file writes. Local storage failures are usually
	// transient (backup tooling, low disk); after the attempts run out the
	// error surfaces to the caller and the evaluation result still stands.
	writeAttempts     = 3
	writeInitialDelay = 50 * time.Millisecond
	writeMaxDelay     = 500 * time.Millisecond
)

const (
	feedFileName      = "alert_feed.jsonl"
	feedStateFileName = "feed_state.json"
)

// AlertFeed is the append-only, size-bounded guardian alert log with a
// fingerprint dedup gate. The gate state lives in a sidecar file so
// deduplication survives process restarts.
type AlertFeed struct {
	mu        sync.Mutex
	path      string
	statePath string
	maxRows   int
	logger    *slog.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
}

type feedState struct {
	LastFingerprint string    `json:"last_fingerprint"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// NewAlertFeed creates the feed store rooted at dir. maxRows bounds the
// feed file; oldest rows are dropped first.
func NewAlertFeed(dir string, maxRows int, logger *slog.Logger, m *metrics.Metrics) (*AlertFeed, error) {
	if err := os.MkdirAll(dir, dataDirPerm); err != nil {
		return nil, fmt.Errorf("create feed dir: %w", err)
	}
	if maxRows <= 0 {
		return nil, errors.New("feed max rows must be positive")
	}
	return &AlertFeed{
		path:      filepath.Join(dir, feedFileName),
		statePath: filepath.Join(dir, feedStateFileName),
		maxRows:   maxRows,
		logger:    logger,
		metrics:   m,
		now:       time.Now,
	}, nil
}

// SetClock overrides the feed clock, for tests.
func (f *AlertFeed) SetClock(now func() time.Time) {
	f.mu.Lock()
	f.now = now
	f.mu.Unlock()
}

// SyncFromScan applies one scan snapshot to the feed. When the actionable
// finding set matches the last persisted fingerprint this is a no-op.
// Otherwise the new fingerprint is persisted and, for a non-empty set, one
// row per finding is appended in display order and the feed is trimmed.
// Returns true only when new rows were written.
func (f *AlertFeed) SyncFromScan(snapshot triage.Snapshot) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	actionable := snapshot.ActionableFindings()
	fingerprint := triage.Fingerprint(actionable)

	state := f.readState()
	if state.LastFingerprint == fingerprint {
		f.metrics.IncAlertsDeduplicated()
		f.logger.Debug("alert feed unchanged, dedup gate closed", "fingerprint", fingerprint)
		return false, nil
	}

	if err := f.writeState(feedState{LastFingerprint: fingerprint, UpdatedAt: f.now()}); err != nil {
		f.metrics.IncStoreWriteErrors()
		return false, fmt.Errorf("persist feed fingerprint: %w", err)
	}

	if len(actionable) == 0 {
		f.logger.Info("actionable findings cleared", "fingerprint", fingerprint)
		return false, nil
	}

	recordedAt := f.now()
	entries := make([]model.AlertFeedEntry, 0, len(actionable))
	for _, finding := range triage.SortForDisplay(actionable) {
		entries = append(entries, model.AlertFeedEntry{
			RecordedAt:  recordedAt,
			ScanTime:    snapshot.EvaluatedAt,
			FindingID:   finding.ID,
			Severity:    finding.Severity,
			Score:       finding.Score,
			Title:       finding.Title,
			SourceType:  finding.SourceType,
			SourceRef:   finding.SourceRef,
			Remediation: finding.Remediation,
		})
	}

	if err := f.appendAndTrim(entries); err != nil {
		f.metrics.IncStoreWriteErrors()
		return false, fmt.Errorf("append alert feed: %w", err)
	}

	f.metrics.AddAlertsWritten(len(entries))
	f.logger.Info("alert feed updated", "rows", len(entries), "fingerprint", fingerprint)
	return true, nil
}

// ReadRecent returns up to limit feed entries, newest first. Malformed
// lines are skipped, never fatal.
func (f *AlertFeed) ReadRecent(limit int) ([]model.AlertFeedEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if limit <= 0 {
		return nil, nil
	}

	all, err := f.readAll()
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	// Newest rows sit at the tail of the file.
	var recent []model.AlertFeedEntry
	for i := len(all) - 1; i >= 0 && len(recent) < limit; i-- {
		recent = append(recent, all[i])
	}
	return recent, nil
}

// LastFingerprint returns the fingerprint the dedup gate currently holds,
// or the empty string when nothing was recorded yet.
func (f *AlertFeed) LastFingerprint() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.readState().LastFingerprint
}

func (f *AlertFeed) readState() feedState {
	data, err := os.ReadFile(f.statePath)
	if err != nil {
		return feedState{}
	}
	var state feedState
	if err := json.Unmarshal(data, &state); err != nil {
		f.logger.Warn("feed state file malformed, treating as empty", "error", err)
		return feedState{}
	}
	return state
}

func (f *AlertFeed) writeState(state feedState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	return retryWrite(func() error {
		return atomicWriteFile(f.statePath, data)
	})
}

func (f *AlertFeed) appendAndTrim(entries []model.AlertFeedEntry) error {
	existing, err := f.readAll()
	if err != nil && !os.IsNotExist(err) {
		return err
	}

	combined := append(existing, entries...)
	if len(combined) > f.maxRows {
		combined = combined[len(combined)-f.maxRows:]
	}

	var buf []byte
	for _, entry := range combined {
		line, err := json.Marshal(entry)
		if err != nil {
			return err
		}
		buf = append(buf, line...)
		buf = append(buf, '\n')
	}

	return retryWrite(func() error {
		return atomicWriteFile(f.path, buf)
	})
}

func (f *AlertFeed) readAll() ([]model.AlertFeedEntry, error) {
	file, err := os.Open(f.path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var entries []model.AlertFeedEntry
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var entry model.AlertFeedEntry
		if err := json.Unmarshal(line, &entry); err != nil {
			f.logger.Warn("skipping malformed feed row", "error", err)
			continue
		}
		// Re-parse severity so a damaged row never reads back below MEDIUM.
		entry.Severity, _ = model.ParseSeverity(string(entry.Severity))
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return entries, err
	}
	return entries, nil
}

// retryWrite runs fn under the shared write retry policy.
func retryWrite(fn func() error) error {
	return retry.Do(fn,
		retry.Attempts(writeAttempts),
		retry.Delay(writeInitialDelay),
		retry.MaxDelay(writeMaxDelay))
}

// atomicWriteFile writes data to a temp file in the target directory and
// renames it into place, so readers never observe a partial write.
func atomicWriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, dataFilePerm); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
