package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"resume-hub/auth-service/internal/auth/gate"
	"resume-hub/auth-service/internal/auth/service"
	"resume-hub/auth-service/internal/clock"
	"resume-hub/auth-service/internal/security"
	sessionrepo "resume-hub/auth-service/internal/session/repository"
	"resume-hub/auth-service/internal/telemetry"
	userdomain "resume-hub/auth-service/internal/user/domain"
	userrepo "resume-hub/auth-service/internal/user/repository"
)

const (
	testSecret   = "0123456789abcdef0123456789abcdef"
	testEmail    = "a@x.com"
	testPassword = "p"
)

// captureEmitter records emitted events for assertion.
type captureEmitter struct {
	mu     sync.Mutex
	events []*telemetry.Event
}

func (c *captureEmitter) Emit(_ context.Context, e *telemetry.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
	return nil
}

func (c *captureEmitter) byType(eventType string) *telemetry.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.events {
		if e.EventType == eventType {
			return e
		}
	}
	return nil
}

type fixture struct {
	ts    *httptest.Server
	store *sessionrepo.MemoryStore
	users *userrepo.MemoryDirectory
	clk   *clock.Fixed
	emit  *captureEmitter
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	hasher := security.NewHasher(4)
	codec := security.NewTokenCodec([]byte(testSecret), "resume-hub-auth", "resume-hub-api")
	store := sessionrepo.NewMemoryStore()
	users := userrepo.NewMemoryDirectory()
	clk := &clock.Fixed{T: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}

	hash, err := hasher.Hash([]byte(testPassword))
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if err := users.Create(context.Background(), &userdomain.User{
		ID: "u1", Email: testEmail, Name: "Ada", PasswordHash: hash, Active: true,
	}); err != nil {
		t.Fatalf("seed user: %v", err)
	}

	auth := service.NewAuthService(users, store, hasher, codec, clk, nil, nil,
		30*time.Minute, 7*24*time.Hour, 30*24*time.Hour)
	emit := &captureEmitter{}
	srv := New(":0", Deps{
		Auth:     auth,
		Gate:     gate.New(codec, store, users, clk),
		Sessions: store,
		Emitter:  emit,
	})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &fixture{ts: ts, store: store, users: users, clk: clk, emit: emit}
}

func (f *fixture) post(t *testing.T, path string, body any, headers map[string]string) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(http.MethodPost, f.ts.URL+path, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := f.ts.Client().Do(req)
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	return resp
}

func (f *fixture) get(t *testing.T, path, bearer string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, f.ts.URL+path, nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := f.ts.Client().Do(req)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	return resp
}

func (f *fixture) login(t *testing.T) loginResponse {
	t.Helper()
	resp := f.post(t, "/auth/login", loginRequest{Email: testEmail, Password: testPassword}, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status = %d", resp.StatusCode)
	}
	var out loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode login: %v", err)
	}
	return out
}

func TestLoginMeRefreshLogoutFlow(t *testing.T) {
	f := newFixture(t)

	login := f.login(t)
	if login.TokenType != "Bearer" || login.AccessToken == "" || login.RefreshToken == "" {
		t.Fatalf("login response incomplete: %+v", login)
	}

	// authenticated /auth/me
	resp := f.get(t, "/auth/me", login.AccessToken)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("me status = %d", resp.StatusCode)
	}
	var me meResponse
	if err := json.NewDecoder(resp.Body).Decode(&me); err != nil {
		t.Fatalf("decode me: %v", err)
	}
	resp.Body.Close()
	if me.UserID != "u1" || me.Email != testEmail || me.SessionID != login.SessionID {
		t.Errorf("me = %+v", me)
	}
	if me.LastActivityAt == nil {
		t.Error("me has no last_activity_at")
	}

	// refresh yields a fresh access token that also works
	f.clk.Advance(time.Minute)
	resp = f.post(t, "/auth/refresh", refreshRequest{RefreshToken: login.RefreshToken}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("refresh status = %d", resp.StatusCode)
	}
	var ref refreshResponse
	if err := json.NewDecoder(resp.Body).Decode(&ref); err != nil {
		t.Fatalf("decode refresh: %v", err)
	}
	resp.Body.Close()
	if ref.AccessToken == login.AccessToken {
		t.Error("refresh returned the original access token")
	}
	resp = f.get(t, "/auth/me", ref.AccessToken)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("me with refreshed token status = %d", resp.StatusCode)
	}

	// logout, then both tokens are dead
	resp = f.post(t, "/auth/logout", logoutRequest{AccessToken: login.AccessToken, RefreshToken: login.RefreshToken}, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("logout status = %d", resp.StatusCode)
	}
	resp = f.get(t, "/auth/me", login.AccessToken)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("me after logout status = %d, want 401", resp.StatusCode)
	}
	resp = f.post(t, "/auth/refresh", refreshRequest{RefreshToken: login.RefreshToken}, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("refresh after logout status = %d, want 401", resp.StatusCode)
	}
}

func TestLogin_BadInputs(t *testing.T) {
	f := newFixture(t)

	cases := []struct {
		name string
		body any
		want int
	}{
		{"wrong password", loginRequest{Email: testEmail, Password: "nope"}, http.StatusUnauthorized},
		{"unknown email", loginRequest{Email: "ghost@x.com", Password: testPassword}, http.StatusUnauthorized},
		{"missing fields", loginRequest{}, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := f.post(t, "/auth/login", tc.body, nil)
			resp.Body.Close()
			if resp.StatusCode != tc.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tc.want)
			}
		})
	}
}

func TestLogin_DisabledAccountForbidden(t *testing.T) {
	f := newFixture(t)
	f.users.SetActive("u1", false)

	resp := f.post(t, "/auth/login", loginRequest{Email: testEmail, Password: testPassword}, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("status = %d, want 403", resp.StatusCode)
	}
}

func TestRefresh_RejectsAccessToken(t *testing.T) {
	f := newFixture(t)
	login := f.login(t)

	resp := f.post(t, "/auth/refresh", refreshRequest{RefreshToken: login.AccessToken}, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
	var e errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&e); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if e.Error != "unauthorized" {
		t.Errorf("error = %q, want generic %q", e.Error, "unauthorized")
	}
}

func TestMe_ExpiredToken(t *testing.T) {
	f := newFixture(t)
	login := f.login(t)

	f.clk.Advance(31 * time.Minute)
	resp := f.get(t, "/auth/me", login.AccessToken)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}
}

func TestMe_StoreUnavailableIs503(t *testing.T) {
	f := newFixture(t)
	login := f.login(t)

	f.store.SetFailing(true)
	resp := f.get(t, "/auth/me", login.AccessToken)
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", resp.StatusCode)
	}
}

func TestLogout_BearerHeaderFallbackAndIdempotence(t *testing.T) {
	f := newFixture(t)
	login := f.login(t)

	headers := map[string]string{"Authorization": "Bearer " + login.AccessToken}
	resp := f.post(t, "/auth/logout", nil, headers)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("logout status = %d", resp.StatusCode)
	}
	// the header-supplied access token was revoked
	resp = f.get(t, "/auth/me", login.AccessToken)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("me after header logout status = %d, want 401", resp.StatusCode)
	}
	// repeating logout stays 204
	resp = f.post(t, "/auth/logout", nil, headers)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("second logout status = %d, want 204", resp.StatusCode)
	}
}

func TestLogin_EmitsEventToEmitter(t *testing.T) {
	f := newFixture(t)
	login := f.login(t)

	// emission is asynchronous; poll briefly
	deadline := time.Now().Add(2 * time.Second)
	var event *telemetry.Event
	for time.Now().Before(deadline) {
		if event = f.emit.byType(telemetry.EventLogin); event != nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if event == nil {
		t.Fatal("no login event reached the emitter")
	}
	if event.UserID != "u1" || event.SessionID != login.SessionID {
		t.Errorf("event = %+v, want user u1 session %s", event, login.SessionID)
	}
	if event.Source != "http" {
		t.Errorf("event source = %q, want http", event.Source)
	}
}

func TestHealthz(t *testing.T) {
	f := newFixture(t)
	resp := f.get(t, "/healthz", "")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status = %q", body["status"])
	}
}

type failingPinger struct{}

func (failingPinger) PingContext(context.Context) error { return errors.New("db down") }

func TestHealthz_FailingPinger(t *testing.T) {
	srv := New(":0", Deps{Pinger: failingPinger{}})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := ts.Client().Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", resp.StatusCode)
	}
}
