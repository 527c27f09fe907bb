package features_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danceflow/danceflow/features"
	"github.com/danceflow/danceflow/middleware/auth"
)

func TestRegisterLoginLogout(t *testing.T) {
	h := newHarness(t)

	res := h.do(http.MethodPost, "/auth/register", "", `{"name":"Lola","email":"Lola@Example.com","password":"cha-cha-cha"}`)
	require.Equal(t, http.StatusCreated, res.Status, res.Error)
	assert.Contains(t, res.Header.Get("Set-Cookie"), auth.SessionCookieName+"=")

	var reg features.SessionResult
	res.decode(t, &reg)
	assert.Equal(t, "lola@example.com", reg.User["email"])
	assert.Equal(t, auth.RoleMember, reg.User["role"])
	assert.NotContains(t, reg.User, "password")
	assert.NotEmpty(t, reg.Token)

	res = h.do(http.MethodGet, "/auth/session", reg.Token, "")
	require.Equal(t, http.StatusOK, res.Status)
	assert.Equal(t, reg.User["id"], res.doc(t)["id"])

	res = h.do(http.MethodPost, "/auth/register", "", `{"name":"Lola Two","email":"lola@example.com","password":"cha-cha-cha"}`)
	assert.Equal(t, http.StatusBadRequest, res.Status)
	assert.Equal(t, "email is already registered", res.Error)

	res = h.do(http.MethodPost, "/auth/login", "", `{"email":"lola@example.com","password":"wrong-password"}`)
	assert.Equal(t, http.StatusUnauthorized, res.Status)
	assert.False(t, res.Success)

	res = h.do(http.MethodPost, "/auth/login", "", `{"email":"nobody@example.com","password":"cha-cha-cha"}`)
	assert.Equal(t, http.StatusUnauthorized, res.Status)

	res = h.do(http.MethodPost, "/auth/login", "", `{"email":"LOLA@example.com","password":"cha-cha-cha"}`)
	require.Equal(t, http.StatusOK, res.Status, res.Error)
	var login features.SessionResult
	res.decode(t, &login)

	res = h.do(http.MethodPost, "/auth/logout", login.Token, "")
	require.Equal(t, http.StatusOK, res.Status)
	assert.Contains(t, res.Header.Get("Set-Cookie"), "Max-Age=0")

	res = h.do(http.MethodGet, "/auth/session", login.Token, "")
	assert.Equal(t, http.StatusUnauthorized, res.Status, "revoked tokens resolve to no identity")

	res = h.do(http.MethodGet, "/auth/session", reg.Token, "")
	assert.Equal(t, http.StatusOK, res.Status, "other sessions stay valid")
}

func TestRegisterCannotChooseRole(t *testing.T) {
	h := newHarness(t)

	res := h.do(http.MethodPost, "/auth/register", "", `{"name":"Sneaky","email":"s@example.com","password":"cha-cha-cha","role":"admin"}`)
	assert.Equal(t, http.StatusForbidden, res.Status)

	res = h.do(http.MethodPost, "/auth/register", "", `{"name":"S","email":"not-an-email","password":"short"}`)
	require.Equal(t, http.StatusBadRequest, res.Status)
	assert.NotEmpty(t, res.issue("name"))
	assert.NotEmpty(t, res.issue("email"))
	assert.NotEmpty(t, res.issue("password"))
}

func TestSessionCookie(t *testing.T) {
	h := newHarness(t)
	acc := h.signUp("Cookie Dancer", auth.RoleMember)

	req := httptest.NewRequest(http.MethodGet, "/auth/session", nil)
	req.AddCookie(&http.Cookie{Name: auth.SessionCookieName, Value: acc.Token})
	res := h.send(req, "")
	require.Equal(t, http.StatusOK, res.Status)
	assert.Equal(t, acc.ID, res.doc(t)["id"])

	req = httptest.NewRequest(http.MethodGet, "/auth/session", nil)
	req.AddCookie(&http.Cookie{Name: auth.SessionCookieName, Value: strings.Repeat("x", 20)})
	res = h.send(req, "")
	assert.Equal(t, http.StatusUnauthorized, res.Status)
}
