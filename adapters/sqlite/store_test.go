package sqlite

import (
	"context"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danceflow/danceflow/core"
	"github.com/danceflow/danceflow/core/gatewaytest"
	"github.com/danceflow/danceflow/logging"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:", logging.Discard(), false)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestGatewayContract(t *testing.T) {
	gatewaytest.Run(t, func(t *testing.T) core.Gateway { return newStore(t) })
}

func TestTableNamesAreSnakeCase(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	_, err := s.Insert(ctx, "danceStyles", core.Document{"name": "tango"})
	require.NoError(t, err)

	var name string
	err = s.DB().QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'dance_styles'`).Scan(&name)
	require.NoError(t, err)
	assert.Equal(t, "dance_styles", name)
}

func TestRejectsUnsafeFieldPaths(t *testing.T) {
	s := newStore(t)
	_, _, err := s.Find(context.Background(), "tags", core.NewQuery().Where(core.Eq("name') OR 1=1 --", "x")))
	assert.Error(t, err)
}

func TestDebugLogging(t *testing.T) {
	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)

	s, err := Open(":memory:", log, true)
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Insert(context.Background(), "tags", core.Document{"name": "salsa"})
	require.NoError(t, err)

	var sawInsert bool
	for _, e := range hook.AllEntries() {
		sql, _ := e.Data["sql"].(string)
		if e.Message == "exec" && strings.HasPrefix(sql, "INSERT INTO") {
			sawInsert = true
		}
	}
	assert.True(t, sawInsert, "insert statement is logged")

	hook.Reset()
	s.SetDebugEnabled(false)
	_, _, err = s.Find(context.Background(), "tags", core.NewQuery())
	require.NoError(t, err)
	assert.Empty(t, hook.AllEntries())
}
