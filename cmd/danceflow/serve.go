package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/danceflow/danceflow/config"
	"github.com/danceflow/danceflow/logging"
	"github.com/danceflow/danceflow/middleware/auth"
	"github.com/danceflow/danceflow/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return serve(ctx)
	},
}

func serve(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	log, err := logging.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("configuring logging: %w", err)
	}

	rt, err := newStack(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := rt.Close(); err != nil {
			log.WithError(err).Error("closing resources")
		}
	}()

	srv := server.New(server.Options{
		Config:      cfg.Server,
		Log:         log,
		Resolver:    auth.NewSessionResolver(rt.sessions, rt.app),
		Routes:      rt.app.Routes,
		Hooks:       rt.hooks,
		UploadsPath: cfg.Upload.BaseURL,
		Uploads:     afero.NewHttpFs(rt.disk.Fs()),
	})

	log.WithFields(map[string]any{
		"env":     cfg.Env,
		"store":   cfg.Store.Driver,
		"version": version,
	}).Info("starting danceflow")
	return srv.Run(ctx)
}
