package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/spotstats/internal/auth"
	"github.com/desertthunder/spotstats/internal/formatter"
	"github.com/desertthunder/spotstats/internal/models"
	"github.com/desertthunder/spotstats/internal/profile"
	"github.com/desertthunder/spotstats/internal/session"
	"github.com/desertthunder/spotstats/internal/shared"
	"github.com/desertthunder/spotstats/internal/ui"
	"github.com/urfave/cli/v3"
)

// Profile builds the snapshot for a stored session and prints or writes it.
//
// The session must live in a persistent backend and hold a token from a web login.
// An expired token is refreshed and saved back like it would be by the server.
func (r *Runner) Profile(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}

	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	if config.Session.Backend == shared.BackendMemory {
		return fmt.Errorf("%w: profile needs the sqlite or redis session backend", shared.ErrInvalidConfig)
	}

	oauth, newClient, err := r.spotify(config)
	if err != nil {
		return fmt.Errorf("failed to configure spotify: %w", err)
	}

	store, closeStore, err := r.openStore(ctx, config)
	if err != nil {
		return err
	}
	defer closeStore()

	sess, err := session.NewManager(store, sessionOptions(config), r.logger).Open(ctx, cmd.String("session"))
	if err != nil {
		return fmt.Errorf("failed to open session: %w", err)
	}

	api, ok := auth.NewManager(oauth, newClient, r.logger).Client(ctx, sess)
	if !ok {
		return fmt.Errorf("%w: log in through the web server first", shared.ErrNotAuthenticated)
	}

	aggregator := profile.NewAggregator(profile.WithTimeRange(config.Spotify.TimeRange)).ForTimeRange(cmd.String("range"))
	snapshot, err := aggregator.Aggregate(ctx, api)
	if err != nil {
		return fmt.Errorf("failed to build profile: %w", err)
	}

	return r.writeProfile(snapshot, format, cmd.String("output"))
}

func (r *Runner) writeProfile(snapshot *models.ProfileSnapshot, format, output string) error {
	switch {
	case output != "" && format == formatter.FormatMarkdown:
		result, err := formatter.WriteMarkdownExport(snapshot, output, r.output)
		if err != nil {
			return err
		}
		for _, f := range result.Files {
			r.writePlain("%s\n", ui.Success("wrote "+f))
		}
		return nil

	case output != "":
		path, err := formatter.WriteExport(snapshot, format, output)
		if err != nil {
			return err
		}
		return r.writePlain("%s\n", ui.Success("wrote "+path))

	case format == formatter.FormatText:
		return r.writePlain("%s\n", ui.ProfileCard(snapshot))

	case format == formatter.FormatJSON:
		return r.writeJSON(snapshot, true)
	}

	rendered, err := formatter.Export(snapshot, format)
	if err != nil {
		return err
	}
	return r.writePlain("%s", rendered.Data)
}
