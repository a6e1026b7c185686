package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/panoraguard/alarm-console/internal/config"
	"github.com/panoraguard/alarm-console/internal/console"
	"github.com/panoraguard/alarm-console/internal/logger"
	"github.com/panoraguard/alarm-console/internal/metrics"
	"github.com/panoraguard/alarm-console/internal/remote"
	repository "github.com/panoraguard/alarm-console/internal/repository/state"
	"github.com/panoraguard/alarm-console/internal/session"
)

// Options controls how the console is assembled.
type Options struct {
	// ConfigPath specifies the path to settings YAML file.
	ConfigPath string
	// SessionFile overrides the session file from the settings.
	SessionFile string
	// Metrics, when set, is passed to every component that records metrics.
	Metrics *metrics.Metrics
	// HTTPClient overrides the client used for REST calls.
	HTTPClient *http.Client
}

// App is an assembled console.
type App struct {
	// Settings are the validated settings.
	Settings *config.Config
	// Sessions is the session store.
	Sessions *session.Store
	// Client is the REST client of the alarm service.
	Client *remote.Client
	// Console is the facade commands call.
	Console *console.Console

	repo *repository.FileRepository
}

// Open loads settings, restores the session and builds the console.
func Open(ctx context.Context, opts *Options) (*App, error) {
	settings, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	return New(ctx, settings, opts)
}

// New builds the console from already loaded settings.
func New(ctx context.Context, settings *config.Config, opts *Options) (*App, error) {
	if err := config.Validate(settings); err != nil {
		return nil, err
	}

	sessionFile := settings.SessionFile
	if opts.SessionFile != "" {
		sessionFile = opts.SessionFile
	}

	var (
		sessions = session.NewStore(session.WithTTL(settings.SessionTTL))
		repo     = repository.NewFileRepository(sessionFile)
	)

	switch err := sessions.Restore(ctx, repo); {
	case err == nil:
	case errors.Is(err, repository.ErrNotFound):
		logger.DebugKV(ctx, "No saved session", "session_file", sessionFile)
	default:
		// A corrupt session file only costs a new login.
		logger.WarnKV(ctx, "Ignoring unreadable session file", "session_file", sessionFile, "error", err)
	}

	clientOpts := []remote.Option{
		remote.WithCallTimeout(settings.Timeout),
		remote.WithSpeakerURL(settings.SpeakerBaseURL),
		remote.WithTokenSource(sessions.Token),
		remote.WithHTTPClient(opts.HTTPClient),
	}

	client, err := remote.New(settings.APIBaseURL, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}

	return &App{
		Settings: settings,
		Sessions: sessions,
		Client:   client,
		Console: console.New(client, sessions,
			console.WithPageSize(settings.PageSize),
			console.WithMetrics(opts.Metrics),
		),
		repo: repo,
	}, nil
}

// Close saves the session for the next run.
func (a *App) Close(ctx context.Context) error {
	return a.Sessions.Save(ctx, a.repo)
}
