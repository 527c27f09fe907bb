package features_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/danceflow/danceflow/adapters/sqlite"
	"github.com/danceflow/danceflow/core"
	"github.com/danceflow/danceflow/features"
	"github.com/danceflow/danceflow/logging"
	"github.com/danceflow/danceflow/middleware/auth"
	"github.com/danceflow/danceflow/storage"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type harness struct {
	t        *testing.T
	app      *features.App
	gw       core.Gateway
	hooks    *core.HookRunner
	sessions *auth.Sessions
	fs       afero.Fs
	router   http.Handler
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	log := logging.Discard()

	gw, err := sqlite.Open(":memory:", log, false)
	require.NoError(t, err)
	t.Cleanup(func() { gw.Close() })

	tokens := auth.NewMemoryTokenStore()
	t.Cleanup(func() { tokens.Close() })
	sessions := auth.NewSessions("test-secret-test-secret-test-secret", time.Hour, tokens)

	fs := afero.NewMemMapFs()
	hooks := core.NewHookRunner(log, 0)
	app := features.New(features.Deps{
		Gateway:        gw,
		Hooks:          hooks,
		Sessions:       sessions,
		Storage:        storage.NewDiskProvider(fs, "/uploads", "/uploads"),
		Log:            log,
		MaxUploadBytes: 1 << 10,
		Now:            func() time.Time { return fixedNow },
	})

	r := chi.NewRouter()
	r.Use(auth.Middleware(auth.NewSessionResolver(sessions, app), log))
	app.Routes(r)

	return &harness{t: t, app: app, gw: gw, hooks: hooks, sessions: sessions, fs: fs, router: r}
}

type response struct {
	Status  int
	Header  http.Header
	Success bool              `json:"success"`
	Data    json.RawMessage   `json:"data"`
	Error   string            `json:"error"`
	Details []core.FieldIssue `json:"details"`
}

func (res *response) decode(t *testing.T, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(res.Data, v), string(res.Data))
}

func (res *response) doc(t *testing.T) map[string]any {
	t.Helper()
	var m map[string]any
	res.decode(t, &m)
	return m
}

func (res *response) issue(path string) string {
	for _, d := range res.Details {
		if d.Path == path {
			return d.Message
		}
	}
	return ""
}

func (h *harness) send(req *http.Request, token string) *response {
	h.t.Helper()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)

	res := &response{Status: rec.Code, Header: rec.Header()}
	body, _ := io.ReadAll(rec.Body)
	require.NoError(h.t, json.Unmarshal(body, res), string(body))
	return res
}

func (h *harness) do(method, path, token, body string) *response {
	h.t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	return h.send(req, token)
}

type account struct {
	ID    string
	Token string
}

// signUp registers an account and, for other roles, promotes it in the store
func (h *harness) signUp(name, role string) account {
	h.t.Helper()
	email := strings.ToLower(strings.ReplaceAll(name, " ", ".")) + "@example.com"
	res := h.do(http.MethodPost, "/auth/register", "",
		`{"name":"`+name+`","email":"`+email+`","password":"dance-all-night"}`)
	require.Equal(h.t, http.StatusCreated, res.Status, res.Error)

	var out features.SessionResult
	res.decode(h.t, &out)
	id := out.User["id"].(string)
	if role != auth.RoleMember {
		require.NoError(h.t, h.gw.UpdateOne(context.Background(), features.CollectionUsers, id, core.Document{"role": role}))
	}
	return account{ID: id, Token: out.Token}
}

func (h *harness) create(path, token, body string) string {
	h.t.Helper()
	res := h.do(http.MethodPost, path, token, body)
	require.Equal(h.t, http.StatusCreated, res.Status, "%s: %s %v", path, res.Error, res.Details)
	return res.doc(h.t)["id"].(string)
}

