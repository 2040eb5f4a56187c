package api

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/inboxvault/inboxvault/internal/config"
	"github.com/inboxvault/inboxvault/internal/deletion"
	"github.com/inboxvault/inboxvault/internal/ingest"
	"github.com/inboxvault/inboxvault/internal/scheduler"
	"github.com/inboxvault/inboxvault/internal/send"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// mockScheduler satisfies RepairScheduler for handler tests.
type mockScheduler struct {
	busy      bool
	triggered int
	status    scheduler.Status
}

func (m *mockScheduler) Status() scheduler.Status { return m.status }

func (m *mockScheduler) TriggerNow() bool {
	if m.busy {
		return false
	}
	m.triggered++
	return true
}

func newTestServer(t *testing.T, apiKey string) (*Server, *mockScheduler) {
	t.Helper()

	root := t.TempDir()
	cfg := &config.Config{
		Data:   config.DataConfig{RootDir: root},
		Quota:  config.QuotaConfig{DefaultBytes: 1 << 30},
		Server: config.ServerConfig{APIPort: 8080, BindAddr: "127.0.0.1", APIKey: apiKey},
	}

	svc := Services{
		Ingest:   &ingest.Service{InboxRoot: root, QuotaForUser: cfg.QuotaForUser, Logger: testLogger()},
		Send:     &send.Service{InboxRoot: root, QuotaForUser: cfg.QuotaForUser, Logger: testLogger()},
		Deletion: &deletion.Service{InboxRoot: root, Logger: testLogger()},
	}

	sched := &mockScheduler{status: scheduler.Status{Schedule: "0 3 * * *", LastRun: time.Now()}}
	return NewServer(cfg, svc, sched, testLogger()), sched
}

func TestHandleHealthNoAuth(t *testing.T) {
	srv, _ := newTestServer(t, "secret")

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestAuthMiddleware(t *testing.T) {
	srv, _ := newTestServer(t, "secret")

	tests := []struct {
		name       string
		header     string
		value      string
		wantStatus int
	}{
		{"missing key", "", "", http.StatusUnauthorized},
		{"wrong key", "Authorization", "nope", http.StatusUnauthorized},
		{"raw authorization header", "Authorization", "secret", http.StatusOK},
		{"bearer token", "Authorization", "Bearer secret", http.StatusOK},
		{"x-api-key header", "X-API-Key", "secret", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/api/v1/sendlog", nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}
			w := httptest.NewRecorder()
			srv.Router().ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}

func TestAuthSkippedWithoutConfiguredKey(t *testing.T) {
	srv, _ := newTestServer(t, "")

	req := httptest.NewRequest("GET", "/api/v1/sendlog", nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
}
