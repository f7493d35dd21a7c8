package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotstats/internal/repositories"
	"github.com/desertthunder/spotstats/internal/services"
	"github.com/desertthunder/spotstats/internal/session"
	"github.com/desertthunder/spotstats/internal/shared"
	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config      *shared.Config
	configPath  string
	oauth       services.OAuthClient
	newClient   services.ClientFactory
	logger      *log.Logger
	output      io.Writer
	openBrowser func(url string) error
}

// RunnerOpts contains configuration options for creating a Runner.
//
// OAuth and NewClient are built from the config's Spotify credentials when nil.
type RunnerOpts struct {
	Config      *shared.Config
	ConfigPath  string
	OAuth       services.OAuthClient
	NewClient   services.ClientFactory
	Logger      *log.Logger
	Output      io.Writer
	OpenBrowser func(url string) error
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.OpenBrowser == nil {
		opts.OpenBrowser = shared.OpenBrowser
	}

	return &Runner{
		config:      opts.Config,
		configPath:  opts.ConfigPath,
		oauth:       opts.OAuth,
		newClient:   opts.NewClient,
		logger:      opts.Logger,
		output:      opts.Output,
		openBrowser: opts.OpenBrowser,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		serveCommand, setupCommand, sessionsCommand, profileCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// loadConfig returns the injected config, or loads the --config path (falling back to
// the runner's path) with environment overrides applied.
func (r *Runner) loadConfig(cmd *cli.Command) (*shared.Config, error) {
	if r.config != nil {
		return r.config, nil
	}

	path := r.configPath
	if p := cmd.String("config"); p != "" {
		path = p
	}

	config, err := shared.LoadConfigOrDefault(path)
	if err != nil {
		return nil, err
	}

	shared.SetLogLevel(r.logger, config.Log.Level)
	r.config = config
	return config, nil
}

// spotify returns the OAuth client and handle factory, building them from config
// unless they were injected.
func (r *Runner) spotify(config *shared.Config) (services.OAuthClient, services.ClientFactory, error) {
	if r.oauth != nil && r.newClient != nil {
		return r.oauth, r.newClient, nil
	}

	sa, err := services.NewSpotifyAuth(
		config.Credentials.Spotify,
		services.WithTimeout(config.Spotify.Timeout()),
		services.WithRateLimit(config.Spotify.RateLimit),
	)
	if err != nil {
		return nil, nil, err
	}
	return sa, sa.NewClient, nil
}

// openStore opens the configured session backend. The returned func releases it.
func (r *Runner) openStore(ctx context.Context, config *shared.Config) (session.Store, func() error, error) {
	switch config.Session.Backend {
	case shared.BackendMemory:
		return session.NewMemoryStore(), func() error { return nil }, nil

	case shared.BackendSQLite:
		db, err := shared.NewDatabase(config.Database.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create database: %w", err)
		}
		shared.ConfigureDatabase(db, config.Database.Path, config.Database.MaxOpenConns, config.Database.MaxIdleConns)

		if err := shared.RunMigrations(ctx, db); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		return repositories.NewSessionRepository(db), db.Close, nil

	case shared.BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     config.Redis.Addr,
			Password: config.Redis.Password,
			DB:       config.Redis.DB,
		})

		store := repositories.NewRedisSessionStore(client, config.Redis.Prefix)
		if err := store.Ping(ctx); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("failed to connect to redis at %s: %w", config.Redis.Addr, err)
		}
		return store, client.Close, nil
	}

	return nil, nil, fmt.Errorf("%w: unknown session backend %q", shared.ErrInvalidConfig, config.Session.Backend)
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	output, err := shared.MarshalJSON(data, pretty)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
