package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/desertthunder/spotstats/internal/auth"
	"github.com/desertthunder/spotstats/internal/profile"
	"github.com/desertthunder/spotstats/internal/server"
	"github.com/desertthunder/spotstats/internal/session"
	"github.com/desertthunder/spotstats/internal/shared"
	"github.com/urfave/cli/v3"
)

// janitorInterval is how often the server prunes expired sessions.
const janitorInterval = time.Hour

// Serve runs the web server until the context is cancelled (SIGINT/SIGTERM).
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := config.Validate(); err != nil {
		return err
	}

	store, closeStore, err := r.openStore(ctx, config)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeStore(); err != nil {
			r.logger.Warn("failed to close session store", "error", err)
		}
	}()

	handler, sessions, err := r.buildServer(config, store)
	if err != nil {
		return err
	}

	go sessions.Janitor(ctx, janitorInterval)

	var ready func(addr string)
	if cmd.Bool("open") {
		ready = func(addr string) {
			url := shared.LocalURL(addr)
			if err := r.openBrowser(url); err != nil {
				r.logger.Warn("could not open browser", "url", url, "error", err)
			}
		}
	}

	r.logger.Info("starting spotstats", "backend", config.Session.Backend, "time_range", config.Spotify.TimeRange)
	return server.Run(ctx, config.Server.Addr(), handler, r.logger, ready)
}

// buildServer wires the route layer over store.
func (r *Runner) buildServer(config *shared.Config, store session.Store) (http.Handler, *session.Manager, error) {
	oauth, newClient, err := r.spotify(config)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to configure spotify: %w", err)
	}

	sessions := session.NewManager(store, sessionOptions(config), r.logger)

	router, err := server.New(server.Deps{
		Auth:           auth.NewManager(oauth, newClient, r.logger),
		Profiles:       profile.NewAggregator(profile.WithTimeRange(config.Spotify.TimeRange)),
		Sessions:       sessions,
		Logger:         r.logger,
		AllowedOrigins: config.Server.AllowedOrigins,
		RequestTimeout: config.Server.RequestTimeout(),
	})
	if err != nil {
		return nil, nil, err
	}

	return router, sessions, nil
}

func sessionOptions(config *shared.Config) session.Options {
	return session.Options{
		CookieName: config.Session.CookieName,
		Secure:     config.Session.CookieSecure,
		TTL:        config.Session.TTL(),
	}
}
