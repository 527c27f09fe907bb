package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/danceflow/danceflow/adapters/jsonfile"
	"github.com/danceflow/danceflow/adapters/sqlite"
	"github.com/danceflow/danceflow/config"
	"github.com/danceflow/danceflow/core"
	"github.com/danceflow/danceflow/features"
	"github.com/danceflow/danceflow/middleware/auth"
	"github.com/danceflow/danceflow/storage"
)

// stack holds the collaborators shared by the commands
type stack struct {
	cfg      *config.Config
	log      *logrus.Logger
	gateway  core.Gateway
	tokens   auth.TokenStore
	sessions *auth.Sessions
	hooks    *core.HookRunner
	disk     *storage.DiskProvider
	app      *features.App
	closers  []func() error
}

func openGateway(cfg config.StoreConfig, log logrus.FieldLogger, debug bool) (core.Gateway, error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		return sqlite.Open(cfg.SQLiteDSN, log, debug)
	case config.DriverFile:
		return jsonfile.Open(cfg.DataDir, log)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

func openTokenStore(ctx context.Context, cfg config.AuthConfig, log logrus.FieldLogger) (auth.TokenStore, func() error, error) {
	if cfg.RedisURL == "" {
		log.Info("using in-memory session store")
		store := auth.NewMemoryTokenStore()
		return store, store.Close, nil
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("connecting to redis: %w", err)
	}
	log.WithField("addr", opts.Addr).Info("using redis session store")
	store := auth.NewRedisTokenStore(client, "danceflow")
	return store, store.Close, nil
}

func openStorage(cfg config.UploadConfig, log logrus.FieldLogger) (*storage.DiskProvider, storage.Provider) {
	disk := storage.NewDiskProvider(afero.NewOsFs(), cfg.Dir, cfg.BaseURL)
	if cfg.RemoteURL == "" {
		return disk, disk
	}
	remote := storage.NewRemoteProvider(cfg.RemoteURL, &http.Client{Timeout: 30 * time.Second})
	log.WithField("endpoint", cfg.RemoteURL).Info("uploading to remote storage with local fallback")
	return disk, storage.Fallback(remote, disk, log)
}

func newStack(ctx context.Context, cfg *config.Config, log *logrus.Logger) (*stack, error) {
	rt := &stack{cfg: cfg, log: log}

	gw, err := openGateway(cfg.Store, log, cfg.Debug)
	if err != nil {
		return nil, fmt.Errorf("opening %s store: %w", cfg.Store.Driver, err)
	}
	rt.gateway = gw
	rt.closers = append(rt.closers, gw.Close)

	tokens, closeTokens, err := openTokenStore(ctx, cfg.Auth, log)
	if err != nil {
		_ = rt.Close()
		return nil, err
	}
	rt.tokens = tokens
	rt.closers = append(rt.closers, closeTokens)

	var provider storage.Provider
	rt.disk, provider = openStorage(cfg.Upload, log)
	rt.hooks = core.NewHookRunner(log, 0)
	rt.sessions = auth.NewSessions(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, tokens)

	rt.app = features.New(features.Deps{
		Gateway:        gw,
		Hooks:          rt.hooks,
		Sessions:       rt.sessions,
		Storage:        provider,
		Log:            log,
		MaxUploadBytes: cfg.Upload.MaxBytes,
		SecureCookie:   cfg.Auth.SecureCookie,
	})
	return rt, nil
}

// Close releases the collaborators in reverse order of opening
func (rt *stack) Close() error {
	var first error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	return first
}
