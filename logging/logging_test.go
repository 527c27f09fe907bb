package logging

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danceflow/danceflow/config"
)

func TestNewWritesRotatingFiles(t *testing.T) {
	dir := t.TempDir()
	log, err := New(config.LogConfig{Level: "debug", Dir: dir, MaxSize: 1})
	require.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, log.GetLevel())

	log.Info("hello")
	log.Error("boom")

	app, err := os.ReadFile(filepath.Join(dir, "app.log"))
	require.NoError(t, err)
	assert.Contains(t, string(app), "hello")
	assert.Contains(t, string(app), "boom")

	errs, err := os.ReadFile(filepath.Join(dir, "error.log"))
	require.NoError(t, err)
	assert.Contains(t, string(errs), "boom")
	assert.NotContains(t, string(errs), "hello")
}

func TestNewFallsBackToInfo(t *testing.T) {
	log, err := New(config.LogConfig{Level: "chatty"})
	require.NoError(t, err)
	assert.Equal(t, logrus.InfoLevel, log.GetLevel())
}

func TestErrorFileHookLevels(t *testing.T) {
	var buf bytes.Buffer
	log := Discard()
	log.AddHook(NewErrorFileHook(&buf))

	log.Warn("just a warning")
	assert.Zero(t, buf.Len())
	log.Error("a real problem")
	assert.Contains(t, buf.String(), "a real problem")
}

func TestAccessLog(t *testing.T) {
	log, hook := test.NewNullLogger()
	h := middleware.RequestID(AccessLog(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/events/x", nil))

	require.Len(t, hook.Entries, 1)
	entry := hook.LastEntry()
	assert.Equal(t, logrus.WarnLevel, entry.Level)
	assert.Equal(t, 404, entry.Data["status"])
	assert.Equal(t, "/events/x", entry.Data["path"])
	assert.NotEmpty(t, entry.Data["request_id"])
}
