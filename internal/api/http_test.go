package api

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/realyn/dtguard/internal/config"
	"github.com/realyn/dtguard/internal/engine"
	"github.com/realyn/dtguard/internal/model"
)

func newTestServer(t *testing.T) (*Server, *engine.Engine) {
	t.Helper()
	cfg := config.Default()
	cfg.DataDir = t.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	e, err := engine.New(cfg, logger, nil)
	require.NoError(t, err)
	return NewServer(e, logger), e
}

func rootedBundle() engine.EvidenceBundle {
	return engine.EvidenceBundle{
		Root: &model.RootEvidence{
			SuBinaryPresent: true,
			SecureFlag:      true,
			VerifiedBoot:    model.BootStateGreen,
		},
		Wifi: &model.WifiEvidence{SSID: "home", SecurityType: "wpa3"},
	}
}

func TestHealthz(t *testing.T) {
	s, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestFeedEndpoint(t *testing.T) {
	s, e := newTestServer(t)
	e.Scan(rootedBundle())

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/feed", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body struct {
		Entries []model.AlertFeedEntry `json:"entries"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotEmpty(t, body.Entries)
	assert.Equal(t, model.SeverityHigh, body.Entries[0].Severity)
}

func TestFeedEndpointEmptyIsArray(t *testing.T) {
	s, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/feed", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"entries": []}`, rec.Body.String())
}

func TestFeedEndpointRejectsBadLimit(t *testing.T) {
	s, _ := newTestServer(t)

	for _, limit := range []string{"abc", "0", "-1"} {
		rec := httptest.NewRecorder()
		s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/feed?limit="+limit, nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code, "limit=%s", limit)
	}
}

func TestIncidentsEndpoint(t *testing.T) {
	s, e := newTestServer(t)
	e.Scan(rootedBundle())

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/incidents", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Incidents []model.Incident `json:"incidents"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Incidents, 1)
	assert.Equal(t, model.StatusOpen, body.Incidents[0].Status)
}

func TestStatusEndpoint(t *testing.T) {
	s, e := newTestServer(t)
	e.Scan(rootedBundle())

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		LastFingerprint string         `json:"last_fingerprint"`
		Incidents       map[string]int `json:"incidents"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotEmpty(t, body.LastFingerprint)
	assert.Equal(t, 1, body.Incidents["open"])
}

func TestMutationsNotRouted(t *testing.T) {
	s, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/incidents", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
