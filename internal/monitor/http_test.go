package monitor

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kaivalyagandhi/catchup-app-sub002/internal/capture"
	"github.com/kaivalyagandhi/catchup-app-sub002/internal/config"
	"github.com/kaivalyagandhi/catchup-app-sub002/internal/metrics"
	"github.com/kaivalyagandhi/catchup-app-sub002/internal/recorder"
	"github.com/kaivalyagandhi/catchup-app-sub002/internal/session"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeStatus struct {
	snap recorder.Snapshot
}

func (f *fakeStatus) Snapshot() recorder.Snapshot { return f.snap }

func newTestServer(status StatusSource) (*Server, *prometheus.Registry, *metrics.Metrics) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	s := NewServer(config.MonitorConfig{Address: "127.0.0.1", Port: 9477}, testLogger(), m, reg, status)
	return s, reg, m
}

func TestHealthzEndpoint(t *testing.T) {
	s, _, _ := newTestServer(nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("Failed to parse health response: %v", err)
	}
	if body["status"] != "healthy" {
		t.Errorf("Expected status healthy, got %v", body["status"])
	}
	svc, ok := body["service"].(map[string]interface{})
	if !ok || svc["name"] != "catchup-voice" {
		t.Errorf("Expected service name catchup-voice, got %v", body["service"])
	}
}

func TestHealthzMethodNotAllowed(t *testing.T) {
	s, _, _ := newTestServer(nil)

	req := httptest.NewRequest(http.MethodPost, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected 405, got %d", rec.Code)
	}
}

func TestStatusEndpoint(t *testing.T) {
	status := &fakeStatus{snap: recorder.Snapshot{
		Capture: capture.CaptureStats{State: "recording", ChunksEmitted: 12},
		Session: session.ChannelStats{State: "connected", ChunksSent: 10},
	}}
	s, _, _ := newTestServer(status)

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var snap recorder.Snapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("Failed to parse status response: %v", err)
	}
	if snap.Capture.State != "recording" {
		t.Errorf("Expected capture state recording, got %s", snap.Capture.State)
	}
	if snap.Session.ChunksSent != 10 {
		t.Errorf("Expected 10 chunks sent, got %d", snap.Session.ChunksSent)
	}
}

func TestStatusWithoutRecording(t *testing.T) {
	s, _, _ := newTestServer(nil)

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503 without an active recording, got %d", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s, _, m := newTestServer(nil)
	m.RecordChunkCaptured(3200)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "catchup_voice_chunks_captured_total") {
		t.Error("Expected chunk counter in metrics exposition")
	}
}

func TestRequestMetricsRecorded(t *testing.T) {
	s, reg, _ := newTestServer(nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	s.mux.ServeHTTP(httptest.NewRecorder(), req)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}
	found := false
	for _, mf := range families {
		if mf.GetName() == "catchup_voice_http_requests_total" {
			found = true
		}
	}
	if !found {
		t.Error("Expected catchup_voice_http_requests_total after a request")
	}
}
