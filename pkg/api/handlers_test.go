package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roboricindustries/raycon-micbridge/pkg/lifecycle"
	"github.com/roboricindustries/raycon-micbridge/pkg/permission"
	"github.com/roboricindustries/raycon-micbridge/pkg/recorder"
	bridge "github.com/roboricindustries/raycon-micbridge/pkg/schemas/bridge/v1"
	"github.com/roboricindustries/raycon-micbridge/pkg/shell"
)

type fakeShell struct {
	states     []lifecycle.AppState
	navs       []shell.NavigationEvent
	dispatched []bridge.Message
}

func (f *fakeShell) Dispatch(_ context.Context, msg bridge.Message) {
	f.dispatched = append(f.dispatched, msg)
}

func (f *fakeShell) Status() shell.Status {
	return shell.Status{
		Session:    recorder.Session{ID: "s-1", State: recorder.Recording},
		Permission: permission.Granted,
		AppState:   lifecycle.Active,
	}
}

func (f *fakeShell) SetAppState(st lifecycle.AppState) { f.states = append(f.states, st) }

func (f *fakeShell) Navigate(e shell.NavigationEvent) error {
	if err := e.Validate(); err != nil {
		return err
	}
	f.navs = append(f.navs, e)
	return nil
}

func newTestRouter(sh *fakeShell, ws http.Handler) http.Handler {
	return NewRouter(sh, "/bridge", ws, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	rec := do(t, newTestRouter(&fakeShell{}, nil), http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok\n", rec.Body.String())
}

func TestStatus(t *testing.T) {
	rec := do(t, newTestRouter(&fakeShell{}, nil), http.MethodGet, "/v1/status", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "granted", body["permission"])
	assert.Equal(t, "active", body["app_state"])
	session := body["session"].(map[string]any)
	assert.Equal(t, "recording", session["state"])
	assert.Equal(t, "s-1", session["id"])
}

func TestLifecycle(t *testing.T) {
	sh := &fakeShell{}
	r := newTestRouter(sh, nil)

	assert.Equal(t, http.StatusNoContent, do(t, r, http.MethodPost, "/v1/lifecycle/background", "").Code)
	assert.Equal(t, http.StatusNoContent, do(t, r, http.MethodPost, "/v1/lifecycle/active", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, r, http.MethodPost, "/v1/lifecycle/asleep", "").Code)
	assert.Equal(t, http.StatusMethodNotAllowed, do(t, r, http.MethodGet, "/v1/lifecycle/active", "").Code)

	assert.Equal(t, []lifecycle.AppState{lifecycle.Background, lifecycle.Active}, sh.states)
}

func TestNavigation(t *testing.T) {
	sh := &fakeShell{}
	r := newTestRouter(sh, nil)

	rec := do(t, r, http.MethodPost, "/v1/navigation", `{"kind":"navigated","url":"https://app.example/x","can_go_back":true}`)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	require.Len(t, sh.navs, 1)
	assert.True(t, sh.navs[0].CanGoBack)

	assert.Equal(t, http.StatusBadRequest, do(t, r, http.MethodPost, "/v1/navigation", `{"kind":"reload"}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, r, http.MethodPost, "/v1/navigation", `{"kind":"navigated","extra":1}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, r, http.MethodPost, "/v1/navigation", `{`).Code)
	assert.Len(t, sh.navs, 1)
}

func TestRecordingControls(t *testing.T) {
	sh := &fakeShell{}
	r := newTestRouter(sh, nil)

	rec := do(t, r, http.MethodPost, "/v1/recording/start", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var session map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &session))
	assert.Equal(t, "recording", session["state"])

	assert.Equal(t, http.StatusOK, do(t, r, http.MethodPost, "/v1/recording/stop", "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, r, http.MethodPost, "/v1/recording/pause", "").Code)
	assert.Equal(t, http.StatusMethodNotAllowed, do(t, r, http.MethodGet, "/v1/recording/start", "").Code)

	require.Len(t, sh.dispatched, 2)
	assert.Equal(t, bridge.StartRecord, sh.dispatched[0].Type)
	assert.Equal(t, bridge.StopRecord, sh.dispatched[1].Type)
}

func TestBridgeMount(t *testing.T) {
	called := false
	ws := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusTeapot)
	})
	r := newTestRouter(&fakeShell{}, ws)
	assert.Equal(t, http.StatusTeapot, do(t, r, http.MethodGet, "/bridge", "").Code)
	assert.True(t, called)

	assert.Equal(t, http.StatusNotFound, do(t, newTestRouter(&fakeShell{}, nil), http.MethodGet, "/bridge", "").Code)
}
