package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/agendly/whatsapp-agent/internal/config"
	"github.com/agendly/whatsapp-agent/internal/models"
	"github.com/agendly/whatsapp-agent/internal/whatsapp"
)

// fakeManager satisfies SessionManager for handler tests.
type fakeManager struct {
	status      models.SessionStatus
	state       whatsapp.State
	sendErr     error
	sendReceipt *models.SendReceipt
	logoutErr   error

	reconnectCalls  int
	disconnectCalls int
	logoutCalls     int
	sent            []models.OutboundMessage
}

func (f *fakeManager) Status() models.SessionStatus { return f.status }
func (f *fakeManager) State() whatsapp.State        { return f.state }

func (f *fakeManager) Send(ctx context.Context, msg models.OutboundMessage) (*models.SendReceipt, error) {
	f.sent = append(f.sent, msg)
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	if f.sendReceipt != nil {
		return f.sendReceipt, nil
	}
	return &models.SendReceipt{MessageID: "MSG-1", Timestamp: time.Now()}, nil
}

func (f *fakeManager) Disconnect() { f.disconnectCalls++ }

func (f *fakeManager) Logout(ctx context.Context) error {
	f.logoutCalls++
	return f.logoutErr
}

func (f *fakeManager) Reconnect() { f.reconnectCalls++ }

func newTestServer(t *testing.T, mgr *fakeManager) (*Server, http.Handler) {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.Notifications.SalonName = "Studio Bela"
	cfg.Notifications.SalonAddress = "Rua das Flores, 100"
	cfg.Notifications.SalonPhone = "(11) 4002-8922"

	srv := NewServer(cfg, mgr)
	router := srv.buildRouter()
	t.Cleanup(srv.Stop)

	return srv, router
}

func doJSON(router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("Failed to decode response %q: %v", w.Body.String(), err)
	}
	return out
}

func TestGetStatus(t *testing.T) {
	code := "ABC123"
	mgr := &fakeManager{
		status: models.SessionStatus{Connected: false, PairingCode: &code},
		state:  whatsapp.StateAwaitingPairing,
	}
	_, router := newTestServer(t, mgr)

	w := doJSON(router, http.MethodGet, "/status", nil)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	body := decodeBody(t, w)
	if body["connected"] != false {
		t.Error("Expected connected false")
	}
	if body["pairingCode"] != "ABC123" {
		t.Errorf("Expected pairing code ABC123, got %v", body["pairingCode"])
	}
	// Absent optionals serialize as explicit nulls.
	if v, ok := body["lastError"]; !ok || v != nil {
		t.Errorf("Expected lastError null, got %v", v)
	}
}

func TestGetTest(t *testing.T) {
	mgr := &fakeManager{status: models.SessionStatus{Connected: true}}
	_, router := newTestServer(t, mgr)

	w := doJSON(router, http.MethodGet, "/test", nil)

	body := decodeBody(t, w)
	if body["serviceRunning"] != true {
		t.Error("Expected serviceRunning true")
	}
	if body["connected"] != true {
		t.Error("Expected connected true")
	}
	if _, ok := body["timestamp"].(string); !ok {
		t.Error("Expected a timestamp string")
	}
}

func TestPostSendSuccess(t *testing.T) {
	mgr := &fakeManager{status: models.SessionStatus{Connected: true}}
	_, router := newTestServer(t, mgr)

	w := doJSON(router, http.MethodPost, "/send", models.SendMessageRequest{
		To:      "(11) 99999-8888",
		Message: "hi",
	})

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if len(mgr.sent) != 1 {
		t.Fatalf("Expected 1 sent message, got %d", len(mgr.sent))
	}
	if mgr.sent[0].Recipient != "5511999998888" {
		t.Errorf("Expected normalized recipient 5511999998888, got %q", mgr.sent[0].Recipient)
	}
	body := decodeBody(t, w)
	if body["success"] != true {
		t.Error("Expected success true")
	}
	if body["message"] != "MSG-1" {
		t.Errorf("Expected message id MSG-1, got %v", body["message"])
	}
}

func TestPostSendValidation(t *testing.T) {
	tests := []struct {
		name       string
		body       any
		wantFields []string
	}{
		{
			name:       "missing message",
			body:       map[string]string{"to": "11999998888"},
			wantFields: []string{"message"},
		},
		{
			name:       "missing both",
			body:       map[string]string{},
			wantFields: []string{"to", "message"},
		},
		{
			name:       "short phone",
			body:       map[string]string{"to": "12345", "message": "hi"},
			wantFields: []string{"to"},
		},
		{
			name:       "unsupported type",
			body:       map[string]string{"to": "11999998888", "message": "hi", "type": "image"},
			wantFields: []string{"type"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mgr := &fakeManager{}
			_, router := newTestServer(t, mgr)

			w := doJSON(router, http.MethodPost, "/send", tt.body)

			if w.Code != http.StatusBadRequest {
				t.Fatalf("Expected 400, got %d: %s", w.Code, w.Body.String())
			}
			if len(mgr.sent) != 0 {
				t.Error("Validation failure must not reach the session manager")
			}
			for _, f := range tt.wantFields {
				if !strings.Contains(w.Body.String(), f) {
					t.Errorf("Expected field %q in %s", f, w.Body.String())
				}
			}
		})
	}
}

func TestPostSendNotConnected(t *testing.T) {
	mgr := &fakeManager{sendErr: whatsapp.ErrNotConnected}
	_, router := newTestServer(t, mgr)

	w := doJSON(router, http.MethodPost, "/send", models.SendMessageRequest{
		To:      "11999998888",
		Message: "hi",
	})

	if w.Code != http.StatusConflict {
		t.Fatalf("Expected 409, got %d", w.Code)
	}
	body := decodeBody(t, w)
	if body["success"] != false {
		t.Error("Expected success false")
	}
	if body["error"] == "" {
		t.Error("Expected an error description")
	}
}

func TestPostSendFailureCodes(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
	}{
		{"timeout", whatsapp.ErrSendTimeout, http.StatusGatewayTimeout},
		{"invalid recipient", whatsapp.NewSendError(whatsapp.InvalidRecipient, whatsapp.ErrNotConnected), http.StatusBadRequest},
		{"rate limited", whatsapp.NewSendError(whatsapp.SendRateLimited, whatsapp.ErrNotConnected), http.StatusTooManyRequests},
		{"generic", whatsapp.NewSendError(whatsapp.SendFailed, whatsapp.ErrNotConnected), http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mgr := &fakeManager{sendErr: tt.err}
			_, router := newTestServer(t, mgr)

			w := doJSON(router, http.MethodPost, "/send", models.SendMessageRequest{
				To:      "11999998888",
				Message: "hi",
			})

			if w.Code != tt.wantCode {
				t.Errorf("Expected %d, got %d", tt.wantCode, w.Code)
			}
		})
	}
}

func TestPostBookingConfirmation(t *testing.T) {
	mgr := &fakeManager{status: models.SessionStatus{Connected: true}}
	_, router := newTestServer(t, mgr)

	w := doJSON(router, http.MethodPost, "/booking/confirmation", models.BookingNotificationRequest{
		ClientName:  "Ana",
		Phone:       "11999998888",
		ServiceName: "Corte",
		Date:        "2024-01-15",
		Time:        "14:30",
		TotalPrice:  "R$ 80,00",
	})

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if len(mgr.sent) != 1 {
		t.Fatalf("Expected 1 sent message, got %d", len(mgr.sent))
	}

	body := mgr.sent[0].Body
	if !strings.Contains(body, "Ana") {
		t.Errorf("Expected client name in message: %q", body)
	}
	if !strings.Contains(body, "segunda-feira, 15 de janeiro de 2024") {
		t.Errorf("Expected long date in default template: %q", body)
	}
	if !strings.Contains(body, "Studio Bela") {
		t.Errorf("Expected configured salon name in message: %q", body)
	}
}

func TestPostBookingCustomTemplate(t *testing.T) {
	mgr := &fakeManager{status: models.SessionStatus{Connected: true}}
	_, router := newTestServer(t, mgr)

	w := doJSON(router, http.MethodPost, "/booking/reminder", models.BookingNotificationRequest{
		ClientName:  "Ana",
		Phone:       "11999998888",
		ServiceName: "Corte",
		Date:        "2024-01-15",
		Time:        "14:30",
		Config: &models.NotificationConfig{
			ReminderTemplate: "Oi {clientName}, amanhã às {time} ({date})",
		},
	})

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	// Custom templates receive field values verbatim.
	want := "Oi Ana, amanhã às 14:30 (2024-01-15)"
	if got := mgr.sent[0].Body; got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
}

func TestPostBookingValidation(t *testing.T) {
	mgr := &fakeManager{}
	_, router := newTestServer(t, mgr)

	w := doJSON(router, http.MethodPost, "/booking/cancellation", map[string]string{
		"clientName": "Ana",
		"phone":      "11999998888",
	})

	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", w.Code)
	}
	for _, f := range []string{"serviceName", "date", "time"} {
		if !strings.Contains(w.Body.String(), f) {
			t.Errorf("Expected field %q in %s", f, w.Body.String())
		}
	}
	if len(mgr.sent) != 0 {
		t.Error("Validation failure must not reach the session manager")
	}
}

func TestSessionControlEndpoints(t *testing.T) {
	mgr := &fakeManager{}
	_, router := newTestServer(t, mgr)

	for _, path := range []string{"/reconnect", "/disconnect", "/logout"} {
		w := doJSON(router, http.MethodPost, path, nil)
		if w.Code != http.StatusOK {
			t.Errorf("POST %s: expected 200, got %d", path, w.Code)
		}
		body := decodeBody(t, w)
		if body["success"] != true {
			t.Errorf("POST %s: expected success true", path)
		}
	}

	if mgr.reconnectCalls != 1 || mgr.disconnectCalls != 1 || mgr.logoutCalls != 1 {
		t.Errorf("Expected one call each, got reconnect=%d disconnect=%d logout=%d",
			mgr.reconnectCalls, mgr.disconnectCalls, mgr.logoutCalls)
	}
}

func TestPostLogoutFailure(t *testing.T) {
	mgr := &fakeManager{logoutErr: whatsapp.ErrCorruptStore}
	_, router := newTestServer(t, mgr)

	w := doJSON(router, http.MethodPost, "/logout", nil)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("Expected 500, got %d", w.Code)
	}
	body := decodeBody(t, w)
	if body["success"] != false {
		t.Error("Expected success false")
	}
}

func TestCorrelationIDEchoed(t *testing.T) {
	mgr := &fakeManager{}
	_, router := newTestServer(t, mgr)

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	req.Header.Set("X-Correlation-ID", "corr-42")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if got := w.Header().Get("X-Correlation-ID"); got != "corr-42" {
		t.Errorf("Expected correlation ID echoed, got %q", got)
	}

	// Without the header a fresh ID is generated.
	req = httptest.NewRequest(http.MethodGet, "/status", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Header().Get("X-Correlation-ID") == "" {
		t.Error("Expected a generated correlation ID")
	}
}

func TestHealthAndMetrics(t *testing.T) {
	mgr := &fakeManager{state: whatsapp.StateConnected}
	_, router := newTestServer(t, mgr)

	w := doJSON(router, http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200 from /health, got %d", w.Code)
	}
	body := decodeBody(t, w)
	if body["status"] != "healthy" {
		t.Errorf("Expected healthy status, got %v", body["status"])
	}

	w = doJSON(router, http.MethodGet, "/metrics", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200 from /metrics, got %d", w.Code)
	}
	body = decodeBody(t, w)
	if body["totalRequests"].(float64) < 1 {
		t.Error("Expected request counter to have advanced")
	}
	if body["sessionState"] != "connected" {
		t.Errorf("Expected session state connected, got %v", body["sessionState"])
	}
}

func TestSendRateLimited(t *testing.T) {
	mgr := &fakeManager{status: models.SessionStatus{Connected: true}}
	srv, router := newTestServer(t, mgr)
	srv.Config.Server.RateLimit.Burst = 2

	// Rebuild so the limiter picks up the tightened burst.
	router = srv.buildRouter()

	for i := 0; i < 2; i++ {
		w := doJSON(router, http.MethodPost, "/send", models.SendMessageRequest{
			To:      "11999998888",
			Message: "hi",
		})
		if w.Code != http.StatusOK {
			t.Fatalf("Request %d: expected 200, got %d", i+1, w.Code)
		}
	}

	w := doJSON(router, http.MethodPost, "/send", models.SendMessageRequest{
		To:      "11999998888",
		Message: "hi",
	})
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("Expected 429 after burst exhausted, got %d", w.Code)
	}

	// Status reads bypass the limiter.
	if got := doJSON(router, http.MethodGet, "/status", nil); got.Code != http.StatusOK {
		t.Errorf("Expected status to bypass rate limit, got %d", got.Code)
	}
}
