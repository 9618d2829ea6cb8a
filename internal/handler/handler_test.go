package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vaultpass/passgen/internal/crypto"
	"github.com/vaultpass/passgen/internal/model"
	"github.com/vaultpass/passgen/internal/repository"
	"github.com/vaultpass/passgen/internal/service"
)

const testSecret = "test-secret"

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	store := repository.NewMemoryStore()
	keyring := crypto.NewKeyring(0)
	passwords := service.NewPasswordGenerationService(store, keyring)
	keyring.OnLock(passwords.PurgeCache)

	router := NewRouter(ctx, RouterConfig{
		Passwords:   passwords,
		Lock:        service.NewLockService(store, keyring, testSecret, time.Hour),
		JWTSecret:   testSecret,
		UnlockRPS:   100,
		UnlockBurst: 100,
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, srv *httptest.Server, method, path, token, body string) *http.Response {
	t.Helper()

	var req *http.Request
	var err error
	if body == "" {
		req, err = http.NewRequest(method, srv.URL+path, nil)
	} else {
		req, err = http.NewRequest(method, srv.URL+path, strings.NewReader(body))
	}
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func unlock(t *testing.T, srv *httptest.Server, password string) string {
	t.Helper()

	resp := doJSON(t, srv, http.MethodPost, "/api/v1/unlock", "", `{"master_password":"`+password+`"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var session model.SessionResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&session))
	require.NotEmpty(t, session.Token)
	return session.Token
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)

	resp := doJSON(t, srv, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHandleGenerate(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantLength int
	}{
		{name: "empty body uses defaults", body: "", wantStatus: http.StatusOK, wantLength: 14},
		{name: "custom length", body: `{"length":30,"special":true}`, wantStatus: http.StatusOK, wantLength: 30},
		{name: "zero length normalized", body: `{"length":0}`, wantStatus: http.StatusOK, wantLength: 10},
		{name: "too long", body: `{"length":500}`, wantStatus: http.StatusBadRequest},
		{name: "invalid json", body: `{`, wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := doJSON(t, srv, http.MethodPost, "/api/v1/generate", "", tt.body)
			require.Equal(t, tt.wantStatus, resp.StatusCode)

			if tt.wantStatus != http.StatusOK {
				return
			}
			var gen model.GenerateResponse
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&gen))
			assert.Equal(t, tt.wantLength, gen.Length)
			assert.Len(t, gen.Password, tt.wantLength)
		})
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	srv := newTestServer(t)

	for _, route := range []struct{ method, path string }{
		{http.MethodGet, "/api/v1/history"},
		{http.MethodPost, "/api/v1/history"},
		{http.MethodDelete, "/api/v1/history"},
		{http.MethodGet, "/api/v1/options"},
		{http.MethodPut, "/api/v1/options"},
		{http.MethodPost, "/api/v1/lock"},
		{http.MethodGet, "/api/v1/status"},
	} {
		resp := doJSON(t, srv, route.method, route.path, "", "")
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "%s %s", route.method, route.path)
	}
}

func TestUnlockWrongPassword(t *testing.T) {
	srv := newTestServer(t)
	unlock(t, srv, "master")

	resp := doJSON(t, srv, http.MethodPost, "/api/v1/unlock", "", `{"master_password":"nope"}`)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = doJSON(t, srv, http.MethodPost, "/api/v1/unlock", "", `{}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHistoryFlow(t *testing.T) {
	srv := newTestServer(t)
	token := unlock(t, srv, "master")

	for _, pw := range []string{"first", "first", "second"} {
		resp := doJSON(t, srv, http.MethodPost, "/api/v1/history", token, `{"password":"`+pw+`"}`)
		require.Equal(t, http.StatusNoContent, resp.StatusCode)
	}

	resp := doJSON(t, srv, http.MethodGet, "/api/v1/history", token, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var history []model.HistoryEntryResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&history))
	require.Len(t, history, 2)
	assert.Equal(t, "first", history[0].Password)
	assert.Equal(t, "second", history[1].Password)

	resp = doJSON(t, srv, http.MethodDelete, "/api/v1/history", token, "")
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = doJSON(t, srv, http.MethodGet, "/api/v1/history", token, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	history = nil
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&history))
	assert.Empty(t, history)

	resp = doJSON(t, srv, http.MethodPost, "/api/v1/history", token, `{"password":""}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHistoryHiddenWhileLocked(t *testing.T) {
	srv := newTestServer(t)
	token := unlock(t, srv, "master")

	resp := doJSON(t, srv, http.MethodPost, "/api/v1/history", token, `{"password":"secret"}`)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = doJSON(t, srv, http.MethodPost, "/api/v1/lock", token, "")
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = doJSON(t, srv, http.MethodGet, "/api/v1/status", token, "")
	var status model.StatusResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	assert.False(t, status.Unlocked)

	resp = doJSON(t, srv, http.MethodGet, "/api/v1/history", token, "")
	var history []model.HistoryEntryResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&history))
	assert.Empty(t, history)

	token = unlock(t, srv, "master")
	resp = doJSON(t, srv, http.MethodGet, "/api/v1/history", token, "")
	history = nil
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&history))
	require.Len(t, history, 1)
	assert.Equal(t, "secret", history[0].Password)
}

func TestOptionsFlow(t *testing.T) {
	srv := newTestServer(t)
	token := unlock(t, srv, "master")

	resp := doJSON(t, srv, http.MethodGet, "/api/v1/options", token, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var opts crypto.GenerationOptions
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&opts))
	assert.Equal(t, crypto.DefaultGenerationOptions(), opts)

	resp = doJSON(t, srv, http.MethodPut, "/api/v1/options", token, `{"length":18,"special":true}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&opts))
	assert.Equal(t, 18, opts.Length)
	assert.True(t, opts.Special)
	assert.True(t, opts.Uppercase, "unsupplied fields keep their saved values")

	// generation now starts from the saved options
	resp = doJSON(t, srv, http.MethodPost, "/api/v1/generate", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var gen model.GenerateResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&gen))
	assert.Equal(t, 18, gen.Length)
}

// syncBuffer lets request goroutines write logs while the test reads them.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) lines() []map[string]any {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []map[string]any
	dec := json.NewDecoder(bytes.NewReader(b.buf.Bytes()))
	for dec.More() {
		var line map[string]any
		if err := dec.Decode(&line); err != nil {
			break
		}
		out = append(out, line)
	}
	return out
}

func captureLogs(t *testing.T) *syncBuffer {
	t.Helper()

	buf := &syncBuffer{}
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })
	return buf
}

func TestAuditLogsCarrySession(t *testing.T) {
	logs := captureLogs(t)
	srv := newTestServer(t)
	token := unlock(t, srv, "master-password")

	claims, err := crypto.ValidateToken(token, testSecret)
	require.NoError(t, err)
	sessionID := claims.SessionID()

	resp := doJSON(t, srv, http.MethodPost, "/api/v1/history", token, `{"password":"audited"}`)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = doJSON(t, srv, http.MethodPut, "/api/v1/options", token, `{"length":20}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp = doJSON(t, srv, http.MethodDelete, "/api/v1/history", token, "")
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = doJSON(t, srv, http.MethodPost, "/api/v1/lock", token, "")
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	sessions := make(map[string]any)
	for _, line := range logs.lines() {
		if msg, ok := line["msg"].(string); ok {
			if id, ok := line["session"]; ok {
				sessions[msg] = id
			}
		}
		assert.NotContains(t, line, "password", "log line leaks a password field")
	}

	for _, msg := range []string{
		"password history entry added",
		"generator options saved",
		"password history cleared",
		"lock requested",
	} {
		assert.Equal(t, sessionID, sessions[msg], msg)
	}
}
