package features

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/danceflow/danceflow/api"
	"github.com/danceflow/danceflow/core"
	"github.com/danceflow/danceflow/middleware/auth"
)

func (a *App) userEntity() *core.Entity[User] {
	schema := core.NewSchema[User]().ReadOnly("password", "createdAt")

	return core.NewEntity(CollectionUsers, schema).
		RequireAuth().
		Exclude("password").
		WithSort("name", core.SortAsc).
		Searchable("name", "email").
		BeforeCreate(func(ctx context.Context, u User, who *auth.Identity) (User, error) {
			if !who.IsAdmin() {
				return u, core.Forbidden("only admins may create users")
			}
			return a.prepareUser(ctx, u)
		}).
		BeforeUpdate(func(ctx context.Context, p core.Patch[User], who *auth.Identity, id string) (core.Patch[User], error) {
			if !who.IsAdmin() && !who.Is(id) {
				return p, core.Forbidden("users may only edit their own profile")
			}
			if p.Has("role") && !who.IsAdmin() {
				return p, core.Forbidden("only admins may change roles")
			}
			if p.Has("email") {
				p.Value.Email = normalizeEmail(p.Value.Email)
				taken, err := a.exists(ctx, CollectionUsers, core.And(core.Eq("email", p.Value.Email), core.Ne("id", id)))
				if err != nil {
					return p, err
				}
				if taken {
					return p, core.Conflict("email is already registered")
				}
			}
			return p, nil
		}).
		BeforeDelete(func(ctx context.Context, who *auth.Identity, id string) error {
			if !who.IsAdmin() {
				return core.Forbidden("only admins may delete users")
			}
			if who.Is(id) {
				return core.Forbidden("admins may not delete their own account")
			}
			return nil
		}).
		AfterDelete(func(ctx context.Context, id string, who *auth.Identity) error {
			a.log.WithFields(logrus.Fields{"user_id": id, "deleted_by": who.Subject}).Info("user deleted")
			return nil
		}).
		Build()
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// prepareUser applies the rules shared by admin creation and registration:
// unique email, hashed password, default role and creation time
func (a *App) prepareUser(ctx context.Context, u User) (User, error) {
	u.Email = normalizeEmail(u.Email)
	taken, err := a.exists(ctx, CollectionUsers, core.Eq("email", u.Email))
	if err != nil {
		return u, err
	}
	if taken {
		return u, core.Conflict("email is already registered")
	}

	hash, err := auth.HashPassword(u.Password)
	if err != nil {
		return u, core.Internal(err)
	}
	u.Password = hash
	if u.Role == "" {
		u.Role = auth.RoleMember
	}
	u.CreatedAt = a.clock()
	return u, nil
}

func identityOf(doc core.Document) *auth.Identity {
	str := func(k string) string {
		s, _ := doc[k].(string)
		return s
	}
	return &auth.Identity{Subject: doc.ID(), Role: str("role"), Email: str("email"), Name: str("name")}
}

// LookupUser loads the current identity of a user. A deleted user yields nil.
func (a *App) LookupUser(ctx context.Context, subject string) (*auth.Identity, error) {
	doc, err := a.gw.FindOne(ctx, CollectionUsers, subject)
	if errors.Is(err, core.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("looking up user %s: %w", subject, err)
	}
	return identityOf(doc), nil
}

// Authenticate checks an email and password pair
func (a *App) Authenticate(ctx context.Context, email, password string) (*auth.Identity, error) {
	docs, _, err := a.gw.Find(ctx, CollectionUsers, core.NewQuery().Where(core.Eq("email", normalizeEmail(email))).WithPage(1, 1))
	if err != nil {
		return nil, fmt.Errorf("finding user: %w", err)
	}
	if len(docs) == 0 {
		return nil, auth.ErrInvalidCredentials
	}
	hash, _ := docs[0]["password"].(string)
	if err := auth.CheckPassword(password, hash); err != nil {
		return nil, err
	}
	return identityOf(docs[0]), nil
}

type passwordChange struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=8,max=72"`
}

var passwordSchema = core.NewSchema[passwordChange]()

// changePassword handles PATCH /users/{id}/password
func (a *App) changePassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	who := auth.GetIdentity(ctx)
	id := chi.URLParam(r, "id")

	if who == nil {
		api.WriteError(w, r, a.log, core.Unauthorized(""))
		return
	}
	if !who.Is(id) {
		api.WriteError(w, r, a.log, core.Forbidden("users may only change their own password"))
		return
	}

	body, err := api.ReadBody(w, r)
	if err != nil {
		api.WriteError(w, r, a.log, err)
		return
	}
	req, err := passwordSchema.ValidateFull(body)
	if err != nil {
		api.WriteError(w, r, a.log, err)
		return
	}

	current, err := a.Users.Fetch(ctx, id)
	if err != nil {
		api.WriteError(w, r, a.log, err)
		return
	}
	if err := auth.CheckPassword(req.CurrentPassword, current.Password); err != nil {
		api.WriteError(w, r, a.log, core.Validation("", core.FieldIssue{Path: "currentPassword", Message: "is incorrect"}))
		return
	}

	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		api.WriteError(w, r, a.log, core.Internal(err))
		return
	}
	if err := a.gw.UpdateOne(ctx, CollectionUsers, id, core.Document{"password": hash}); err != nil {
		api.WriteError(w, r, a.log, err)
		return
	}

	a.log.WithField("user_id", id).Info("password changed")
	api.WriteData(w, http.StatusOK, core.UpdateResult{ID: id, Updated: []string{"password"}})
}
