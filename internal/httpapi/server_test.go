package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"bishop/internal/geo"
	"bishop/internal/integration"
	"bishop/internal/notify"
	logx "bishop/pkg/logx"
)

type fakeNotifier struct {
	token   string
	pending []notify.Notification
	sendErr error
	markErr error
	marked  []string
}

func (f *fakeNotifier) RegisterDevice(token string) error {
	if token == "" {
		return notify.ErrNoToken
	}
	f.token = token
	return nil
}

func (f *fakeNotifier) Send(ctx context.Context, title, body string) (*notify.Notification, error) {
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	return &notify.Notification{ID: "n1", Title: title, Body: body, CreatedAt: time.Now()}, nil
}

func (f *fakeNotifier) Pending() []notify.Notification { return f.pending }

func (f *fakeNotifier) MarkDelivered(id string) (*notify.Notification, error) {
	if f.markErr != nil {
		return nil, f.markErr
	}
	f.marked = append(f.marked, id)
	return &notify.Notification{ID: id, Delivered: true}, nil
}

type fakeRecorder struct {
	coords []geo.Coordinate
	err    error
}

func (f *fakeRecorder) Record(ctx context.Context, at geo.Coordinate) error {
	f.coords = append(f.coords, at)
	return f.err
}

func newTestServer(n Notifier, r Recorder) *Server {
	endpoints := func() []integration.EndpointConfig {
		return []integration.EndpointConfig{{Path: "weather", Method: integration.MethodGet}}
	}
	return New(Config{}, n, r, nil, endpoints, logx.Nop())
}

func do(t *testing.T, s *Server, method, path, body string) (*httptest.ResponseRecorder, response) {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)

	var resp response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return rec, resp
}

func TestSendNotification(t *testing.T) {
	s := newTestServer(&fakeNotifier{}, &fakeRecorder{})
	rec, resp := do(t, s, http.MethodPost, "/notifications", `{"title":"Hi","body":"there"}`)

	if rec.Code != http.StatusOK || !resp.Success {
		t.Fatalf("status=%d resp=%+v", rec.Code, resp)
	}
	if len(resp.Notifications) != 1 || resp.Notifications[0].Title != "Hi" {
		t.Fatalf("unexpected notifications %+v", resp.Notifications)
	}
}

func TestRegisterDevice(t *testing.T) {
	n := &fakeNotifier{}
	s := newTestServer(n, &fakeRecorder{})
	rec, resp := do(t, s, http.MethodPost, "/notifications/register", `{"token":"abc123"}`)

	if rec.Code != http.StatusOK || !resp.Success {
		t.Fatalf("status=%d resp=%+v", rec.Code, resp)
	}
	if n.token != "abc123" {
		t.Fatalf("token = %q", n.token)
	}
	if !strings.Contains(resp.Message, "abc123") {
		t.Fatalf("message = %q", resp.Message)
	}
}

func TestRegisterDeviceLegacyBody(t *testing.T) {
	n := &fakeNotifier{}
	s := newTestServer(n, &fakeRecorder{})
	_, resp := do(t, s, http.MethodPost, "/notifications/register",
		`{"body":"Device registered with token: xyz789"}`)

	if !resp.Success {
		t.Fatalf("resp=%+v", resp)
	}
	if n.token != "xyz789" {
		t.Fatalf("token = %q", n.token)
	}
}

func TestRegisterDeviceEmptyToken(t *testing.T) {
	s := newTestServer(&fakeNotifier{}, &fakeRecorder{})
	rec, resp := do(t, s, http.MethodPost, "/notifications/register", `{"token":""}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if resp.Success || resp.Message != "No valid token provided" {
		t.Fatalf("resp=%+v", resp)
	}
}

func TestPendingEmptyIsArray(t *testing.T) {
	s := newTestServer(&fakeNotifier{}, &fakeRecorder{})
	rec, resp := do(t, s, http.MethodGet, "/notifications/pending", "")

	if rec.Code != http.StatusOK || !resp.Success {
		t.Fatalf("status=%d resp=%+v", rec.Code, resp)
	}
	if !strings.Contains(rec.Body.String(), `"notifications"`) {
		t.Fatalf("expected notifications array in body, got %q", rec.Body.String())
	}
}

func TestMarkDeliveredNotFound(t *testing.T) {
	s := newTestServer(&fakeNotifier{markErr: notify.ErrNotFound}, &fakeRecorder{})
	rec, resp := do(t, s, http.MethodPost, "/notifications/nope/delivered", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if resp.Success || resp.Message != "Notification not found" {
		t.Fatalf("resp=%+v", resp)
	}
}

func TestMarkDelivered(t *testing.T) {
	n := &fakeNotifier{}
	s := newTestServer(n, &fakeRecorder{})
	_, resp := do(t, s, http.MethodPost, "/notifications/n1/delivered", "")

	if !resp.Success {
		t.Fatalf("resp=%+v", resp)
	}
	if len(n.marked) != 1 || n.marked[0] != "n1" {
		t.Fatalf("marked = %v", n.marked)
	}
	if len(resp.Notifications) != 1 || resp.Notifications[0].ID != "n1" || !resp.Notifications[0].Delivered {
		t.Fatalf("expected the updated notification in the response, got %+v", resp.Notifications)
	}
}

func TestRecordCoordinates(t *testing.T) {
	r := &fakeRecorder{}
	s := newTestServer(&fakeNotifier{}, r)
	rec, resp := do(t, s, http.MethodPost, "/coordinates", `{"latitude":40.0,"longitude":-105.25}`)

	if rec.Code != http.StatusOK || !resp.Success {
		t.Fatalf("status=%d resp=%+v", rec.Code, resp)
	}
	if len(r.coords) != 1 || r.coords[0].Lat != 40.0 {
		t.Fatalf("recorded = %+v", r.coords)
	}
}

func TestRecordCoordinatesOutOfRange(t *testing.T) {
	s := newTestServer(&fakeNotifier{}, &fakeRecorder{})
	rec, resp := do(t, s, http.MethodPost, "/coordinates", `{"latitude":123.0,"longitude":0}`)

	if rec.Code != http.StatusBadRequest || resp.Success {
		t.Fatalf("status=%d resp=%+v", rec.Code, resp)
	}
}

func TestRecordCoordinatesModelFailure(t *testing.T) {
	s := newTestServer(&fakeNotifier{}, &fakeRecorder{err: errors.New("model down")})
	rec, resp := do(t, s, http.MethodPost, "/coordinates", `{"latitude":40.0,"longitude":-105.25}`)

	if rec.Code != http.StatusInternalServerError || resp.Success {
		t.Fatalf("status=%d resp=%+v", rec.Code, resp)
	}
}

func TestHealthz(t *testing.T) {
	s := newTestServer(&fakeNotifier{}, &fakeRecorder{})
	rec, resp := do(t, s, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK || !resp.Success {
		t.Fatalf("status=%d resp=%+v", rec.Code, resp)
	}
}

func TestSettings(t *testing.T) {
	s := newTestServer(&fakeNotifier{}, &fakeRecorder{})
	req := httptest.NewRequest(http.MethodGet, "/settings", nil)
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)

	var body struct {
		Success   bool                         `json:"success"`
		Endpoints []integration.EndpointConfig `json:"endpoints"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !body.Success || len(body.Endpoints) != 1 || body.Endpoints[0].Path != "weather" {
		t.Fatalf("body=%+v", body)
	}
}
