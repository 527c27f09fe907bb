package features

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/danceflow/danceflow/api"
	"github.com/danceflow/danceflow/core"
	"github.com/danceflow/danceflow/middleware/auth"
)

type credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

var credentialsSchema = core.NewSchema[credentials]()

// SessionResult is returned by register and login
type SessionResult struct {
	User      core.Document `json:"user"`
	Token     string        `json:"token"`
	ExpiresAt time.Time     `json:"expiresAt"`
}

func (a *App) authRoutes(r chi.Router) {
	r.Post("/register", a.register)
	r.Post("/login", a.login)
	r.Post("/logout", a.logout)
	r.Get("/session", a.session)
}

// register creates a member account and signs it in
func (a *App) register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	body, err := api.ReadBody(w, r)
	if err != nil {
		api.WriteError(w, r, a.log, err)
		return
	}
	u, err := a.Users.Entity().Schema().ValidateFull(body)
	if err != nil {
		api.WriteError(w, r, a.log, err)
		return
	}
	if u.Role != "" && u.Role != auth.RoleMember {
		api.WriteError(w, r, a.log, core.Forbidden("only admins may assign roles"))
		return
	}
	u, err = a.prepareUser(ctx, u)
	if err != nil {
		api.WriteError(w, r, a.log, err)
		return
	}

	doc, err := core.ToDocument(u)
	if err != nil {
		api.WriteError(w, r, a.log, core.Internal(err))
		return
	}
	delete(doc, "id")
	stored, err := a.gw.Insert(ctx, CollectionUsers, doc)
	if err != nil {
		api.WriteError(w, r, a.log, err)
		return
	}

	a.log.WithField("user_id", stored.ID()).Info("user registered")
	a.startSession(w, r, stored, http.StatusCreated)
}

func (a *App) login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	body, err := api.ReadBody(w, r)
	if err != nil {
		api.WriteError(w, r, a.log, err)
		return
	}
	c, err := credentialsSchema.ValidateFull(body)
	if err != nil {
		api.WriteError(w, r, a.log, err)
		return
	}

	who, err := a.Authenticate(ctx, c.Email, c.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		api.WriteError(w, r, a.log, core.Unauthorized("invalid email or password"))
		return
	}
	if err != nil {
		api.WriteError(w, r, a.log, err)
		return
	}

	doc, err := a.gw.FindOne(ctx, CollectionUsers, who.Subject)
	if err != nil {
		api.WriteError(w, r, a.log, err)
		return
	}
	a.startSession(w, r, doc, http.StatusOK)
}

// startSession issues a token for the stored user, sets the session cookie
// and answers with the user and token
func (a *App) startSession(w http.ResponseWriter, r *http.Request, user core.Document, status int) {
	if a.sessions == nil {
		api.WriteError(w, r, a.log, core.Internal(errors.New("sessions are not configured")))
		return
	}
	token, expires, err := a.sessions.Issue(r.Context(), identityOf(user))
	if err != nil {
		api.WriteError(w, r, a.log, core.Internal(err))
		return
	}
	http.SetCookie(w, auth.CreateSessionCookie(token, expires, a.secureCookie))
	api.WriteData(w, status, SessionResult{
		User:      core.Projection{"password": false}.Apply(user),
		Token:     token,
		ExpiresAt: expires,
	})
}

func (a *App) logout(w http.ResponseWriter, r *http.Request) {
	if token := auth.TokenFromRequest(r); token != "" && a.sessions != nil {
		if err := a.sessions.Revoke(r.Context(), token); err != nil {
			api.WriteError(w, r, a.log, core.Internal(err))
			return
		}
	}
	http.SetCookie(w, auth.DeleteSessionCookie(a.secureCookie))
	api.WriteData(w, http.StatusOK, json.RawMessage(`{"loggedOut":true}`))
}

func (a *App) session(w http.ResponseWriter, r *http.Request) {
	who := auth.GetIdentity(r.Context())
	if who == nil {
		api.WriteError(w, r, a.log, core.Unauthorized(""))
		return
	}
	api.WriteData(w, http.StatusOK, who)
}
