package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/vidx/internal/auth"
	"github.com/desertthunder/vidx/internal/favorites"
	"github.com/desertthunder/vidx/internal/services"
	"github.com/desertthunder/vidx/internal/session"
	"github.com/desertthunder/vidx/internal/shared"
	"github.com/desertthunder/vidx/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	store      session.Store
	gateway    *services.Gateway
	backend    *services.BackendService
	catalog    services.Catalog
	rec        *auth.Reconciler
	coord      *auth.Coordinator
	favorites  *favorites.Controller
	google     *auth.GoogleProvider
	engine     *tasks.Engine
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	Store      session.Store
	Catalog    services.Catalog
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
}

// NewRunner creates a new Runner with the provided configuration.
//
// The gateway is created before the refresh coordinator exists, so its token
// source is wired after the reconciler and coordinator are built.
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Store == nil {
		opts.Store = session.NewMemoryStore()
	}

	// A nil HTTP client lets each service apply its own request timeout.

	gateway := services.NewGateway(opts.Config.Credentials.Backend.BaseURL, opts.HTTPClient, opts.Logger)
	backend := services.NewBackendService(gateway, opts.Logger)
	rec := auth.NewReconciler(opts.Store, backend, opts.Logger)
	coord := auth.NewCoordinator(rec, backend, opts.Logger)
	gateway.SetTokenSource(coord)

	catalog := opts.Catalog
	if catalog == nil {
		catalog = services.NewCatalogService(
			opts.Config.Credentials.TMDB.APIKey,
			opts.Config.Credentials.TMDB.BaseURL,
			opts.HTTPClient,
			opts.Logger,
		)
	}

	controller := favorites.NewController(rec, backend, opts.Logger)
	engine := tasks.NewEngine(rec, controller, catalog, backend)
	google := auth.NewGoogleProvider(
		opts.Config.Credentials.Google.ClientID,
		opts.Config.Credentials.Google.ClientSecret,
		opts.Config.Credentials.Google.RedirectURI,
	)

	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}

	return &Runner{
		config:     opts.Config,
		store:      opts.Store,
		gateway:    gateway,
		backend:    backend,
		catalog:    catalog,
		rec:        rec,
		coord:      coord,
		favorites:  controller,
		google:     google,
		engine:     engine,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
	}
}

// SetLogger swaps the runner's logger, used when the TUI redirects logs to a file.
func (r *Runner) SetLogger(logger *log.Logger) {
	r.logger = logger
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, moviesCommand, favoritesCommand, libraryCommand, historyCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

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

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
