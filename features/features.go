// Package features wires the danceflow entities into the CRUD route
// generator and adds the routes the generator cannot express.
package features

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/danceflow/danceflow/api"
	"github.com/danceflow/danceflow/core"
	"github.com/danceflow/danceflow/logging"
	"github.com/danceflow/danceflow/middleware/auth"
	"github.com/danceflow/danceflow/storage"
)

// DefaultMaxUploadBytes caps uploads when Deps.MaxUploadBytes is unset
const DefaultMaxUploadBytes = 5 << 20

// Deps are the collaborators of the feature routes
type Deps struct {
	Gateway        core.Gateway
	Hooks          *core.HookRunner
	Sessions       *auth.Sessions
	Storage        storage.Provider
	Log            logrus.FieldLogger
	MaxUploadBytes int64
	SecureCookie   bool

	// Now is the clock; nil means time.Now
	Now func() time.Time
}

// App holds one service per entity
type App struct {
	Users     *core.Service[User]
	Locations *core.Service[Location]
	Events    *core.Service[Event]
	Posts     *core.Service[Post]
	Tags      *core.Service[Tag]

	gw       core.Gateway
	sessions *auth.Sessions
	storage  storage.Provider
	log      logrus.FieldLogger
	now      func() time.Time

	maxUpload    int64
	secureCookie bool
}

// New builds every entity service over d.Gateway
func New(d Deps) *App {
	if d.Gateway == nil {
		panic("features.New expects a gateway")
	}
	a := &App{
		gw:           d.Gateway,
		sessions:     d.Sessions,
		storage:      d.Storage,
		log:          d.Log,
		now:          d.Now,
		maxUpload:    d.MaxUploadBytes,
		secureCookie: d.SecureCookie,
	}
	if a.log == nil {
		a.log = logging.Discard()
	}
	if a.now == nil {
		a.now = time.Now
	}
	if a.maxUpload <= 0 {
		a.maxUpload = DefaultMaxUploadBytes
	}

	a.Users = core.NewService(a.userEntity(), d.Gateway, d.Hooks)
	a.Locations = core.NewService(a.locationEntity(), d.Gateway, d.Hooks)
	a.Events = core.NewService(a.eventEntity(), d.Gateway, d.Hooks)
	a.Posts = core.NewService(a.postEntity(), d.Gateway, d.Hooks)
	a.Tags = core.NewService(a.tagEntity(), d.Gateway, d.Hooks)
	return a
}

// Routes mounts the generated and hand-written routes on r
func (a *App) Routes(r chi.Router) {
	r.Route("/auth", a.authRoutes)
	r.Post("/uploads", a.upload)

	api.Mount(r, a.Users, a.log, func(r chi.Router) {
		r.Patch("/{id}/password", a.changePassword)
	})
	api.Mount(r, a.Locations, a.log)
	api.Mount(r, a.Events, a.log)
	api.Mount(r, a.Posts, a.log, func(r chi.Router) {
		r.Post("/{id}/reactions", a.react)
	})
	api.Mount(r, a.Tags, a.log)
}

// clock returns the current time in UTC truncated to seconds, the
// resolution timestamps are stored with
func (a *App) clock() time.Time {
	return a.now().UTC().Truncate(time.Second)
}

// exists reports whether any document of collection matches f
func (a *App) exists(ctx context.Context, collection string, f core.Filter) (bool, error) {
	n, err := a.count(ctx, collection, f)
	return n > 0, err
}

func (a *App) count(ctx context.Context, collection string, f core.Filter) (int64, error) {
	_, total, err := a.gw.Find(ctx, collection, core.NewQuery().Where(f).WithPage(1, 1))
	if err != nil {
		return 0, fmt.Errorf("counting %s: %w", collection, err)
	}
	return total, nil
}

// requireOwner allows the owner of a record and admins
func requireOwner(who *auth.Identity, ownerID, what string) error {
	if who == nil {
		return core.Unauthorized("")
	}
	if who.IsAdmin() || who.Is(ownerID) {
		return nil
	}
	return core.Forbidden(fmt.Sprintf("only the %s or an admin may do this", what))
}

// notFoundAsValidation reports a dangling reference on field
func notFoundAsValidation(err error, field, msg string) error {
	if errors.Is(err, core.ErrNotFound) || core.IsKind(err, core.KindNotFound) {
		return core.Validation("", core.FieldIssue{Path: field, Message: msg})
	}
	return err
}
