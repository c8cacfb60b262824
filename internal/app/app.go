package app

import (
	"context"
	"fmt"
	"io"

	"github.com/five82/plume/internal/config"
	"github.com/five82/plume/internal/logging"
	"github.com/five82/plume/internal/parseable"
	"github.com/five82/plume/internal/prefs"
	"github.com/five82/plume/internal/session"
	"github.com/five82/plume/internal/ui"
)

// Options configure the plume application.
type Options struct {
	ConfigPath string
	Overrides  config.Overrides
	// Console, when set, mirrors log output there. The TUI leaves it nil
	// because it owns the terminal.
	Console io.Writer
	// LogLevel overrides the configured level when non-empty.
	LogLevel string
	// PrefsPath is where the TUI keeps its preferences; empty uses
	// ~/.config/plume/prefs.toml.
	PrefsPath string
}

// Env holds the dependencies shared by the TUI and the one-shot commands.
type Env struct {
	Config config.Config
	Logger *logging.Logger
	Client *parseable.Client
}

// Bootstrap resolves configuration, opens the log and builds the backend
// client. Callers must Close the returned Env.
func Bootstrap(opts Options) (*Env, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	cfg.Apply(opts.Overrides)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	level := cfg.LogLevel
	if opts.LogLevel != "" {
		level = opts.LogLevel
	}
	logger, err := logging.New(logging.Options{Path: cfg.LogFile, Level: level, Console: opts.Console})
	if err != nil {
		return nil, fmt.Errorf("init logging: %w", err)
	}

	client, err := parseable.NewClient(cfg.BaseURL, cfg.Credential, cfg.RequestTimeout)
	if err != nil {
		_ = logger.Close()
		return nil, fmt.Errorf("init parseable client: %w", err)
	}

	logger.Debug().
		Str("base_url", client.BaseURL()).
		Str("identity", client.Identity()).
		Str("config", cfg.Path).
		Msg("bootstrapped")

	return &Env{Config: cfg, Logger: logger, Client: client}, nil
}

// NewSession creates a session over the env's client using the configured
// poll interval and row limit.
func (e *Env) NewSession() *session.Session {
	return session.New(e.Client, session.Options{
		PollInterval: e.Config.PollInterval,
		Limit:        e.Config.QueryLimit,
		Logger:       &e.Logger.Logger,
	})
}

// Close releases the log file.
func (e *Env) Close() error {
	if e == nil {
		return nil
	}
	return e.Logger.Close()
}

// Run boots the plume TUI until the user quits or the context is cancelled.
func Run(ctx context.Context, opts Options) error {
	env, err := Bootstrap(opts)
	if err != nil {
		return err
	}
	defer func() { _ = env.Close() }()

	sess := env.NewSession()
	defer func() {
		if err := sess.Close(); err != nil {
			env.Logger.Warn().Err(err).Msg("close session")
		}
	}()

	prefsPath := opts.PrefsPath
	if prefsPath == "" {
		prefsPath = prefs.DefaultPath()
	}

	env.Logger.Info().Str("session", sess.ID()).Msg("starting tui")
	err = ui.Run(ui.Options{
		Context:   ctx,
		Session:   sess,
		ThemeName: env.Config.Theme,
		Logger:    &env.Logger.Logger,
		Prefs:     prefs.Load(prefsPath),
		PrefsPath: prefsPath,
	})
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}
