package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/spotstats/internal/session"
	"github.com/desertthunder/spotstats/internal/shared"
	"github.com/desertthunder/spotstats/internal/ui"
	"github.com/urfave/cli/v3"
)

// SessionsPrune deletes expired sessions from the configured backend.
func (r *Runner) SessionsPrune(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}

	if config.Session.Backend == shared.BackendMemory {
		r.writePlain("%s\n", ui.Warning("memory sessions live inside the server process; nothing to prune"))
		return nil
	}

	store, closeStore, err := r.openStore(ctx, config)
	if err != nil {
		return err
	}
	defer closeStore()

	n, err := session.NewManager(store, sessionOptions(config), r.logger).Prune(ctx)
	if err != nil {
		return err
	}

	return r.writePlain("%s\n", ui.Success(pruned(n)))
}

func pruned(n int64) string {
	if n == 1 {
		return "pruned 1 expired session"
	}
	return fmt.Sprintf("pruned %d expired sessions", n)
}
