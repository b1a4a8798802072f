// Package app wires configuration, storage, the ingest pipeline, and the
// HTTP server into a runnable application.
package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"funneldash/internal/config"
	"funneldash/internal/httpx"
	"funneldash/internal/identity"
	"funneldash/internal/ingest"
	"funneldash/internal/logging"
	"funneldash/internal/store"
)

// Define common application-level errors.
var (
	ErrUsage          = errors.New("usage error")
	ErrConfigNotFound = errors.New("configuration file not found")
)

// Filesystem function hooks, overridable in tests.
var (
	osStatFunc = os.Stat
)

// AppRunner encapsulates the application's execution logic.
type AppRunner struct{}

// NewAppRunner creates a new instance of the application runner.
func NewAppRunner() *AppRunner {
	return &AppRunner{}
}

// usageText defines the command-line help information.
const usageText = `Usage:
  funneldash [options]

Options:
  -config string
        YAML configuration file (default "config/funneldash.yaml")
  -loglevel string
        Logging level (none, error, warn, info, debug) (default "info")
  -serve
        Start the HTTP API server (default true)
  -ingest
        Run pending ingest jobs once, then exit; positional file
        arguments are enqueued as a new job first
  -reset
        Reset the funnel store to demo mode, then exit
  -dry-run
        With -ingest, process jobs without merging funnels into the store
  -help
        Show help

Environment Variables:
  DB_CREDENTIALS   PostgreSQL connection string (used when store backend is postgres
                   and no connString is configured)
  Any VAR          Can be used in config paths/connection strings via $VAR/${VAR} or %VAR%

Examples:
  funneldash -config=path/to/funneldash.yaml -loglevel=debug
  funneldash -config=funneldash.yaml -ingest
  funneldash -reset
`

// Usage prints the command-line help information to the specified writer.
func (a *AppRunner) Usage(writer io.Writer) {
	fmt.Fprint(writer, usageText)
}

// Run parses command-line arguments and executes the requested workflow:
// serving the API, draining the ingest queue, or resetting the store.
func (a *AppRunner) Run(args []string) error {
	fs := flag.NewFlagSet("funneldash", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	configFile := fs.String("config", "config/funneldash.yaml", "YAML configuration file")
	logLevelStr := fs.String("loglevel", "info", "Logging level")
	serveFlag := fs.Bool("serve", true, "Start the HTTP API server")
	ingestFlag := fs.Bool("ingest", false, "Run pending ingest jobs once, then exit")
	resetFlag := fs.Bool("reset", false, "Reset the funnel store to demo mode, then exit")
	dryRunFlag := fs.Bool("dry-run", false, "Process ingest jobs without merging funnels")
	helpFlag := fs.Bool("help", false, "Show help")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			a.Usage(os.Stderr)
			return nil
		}
		logging.Logf(logging.Error, "Failed to parse args: %v", err)
		return fmt.Errorf("%w: %v", ErrUsage, err)
	}
	if *helpFlag {
		a.Usage(os.Stderr)
		return nil
	}

	logging.SetupLogging(*logLevelStr)

	cfg := config.Default()
	if _, err := osStatFunc(*configFile); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat config file '%s': %w", *configFile, err)
		}
		if isFlagSet(fs, "config") {
			logging.Logf(logging.Error, "Config file '%s' not found.", *configFile)
			return ErrConfigNotFound
		}
		logging.Logf(logging.Info, "No config file at %s, using defaults", *configFile)
	} else {
		loaded, err := config.LoadConfig(*configFile)
		if err != nil {
			logging.Logf(logging.Error, "Error loading/validating config '%s': %v", *configFile, err)
			return err
		}
		cfg = loaded
	}

	if !isFlagSet(fs, "loglevel") && cfg.Logging.Level != "" {
		logging.SetupLogging(cfg.Logging.Level)
	}

	persistence, err := newPersistence(cfg)
	if err != nil {
		return err
	}
	funnelStore, err := store.New(persistence)
	if err != nil {
		return err
	}
	defer funnelStore.Close()

	if *resetFlag {
		if err := funnelStore.Reset(); err != nil {
			return fmt.Errorf("resetting store: %w", err)
		}
		fmt.Fprintln(os.Stdout, "Store reset to demo mode.")
		return nil
	}

	roster, err := identity.LoadRoster(cfg.RosterFile)
	if err != nil {
		return err
	}
	queue, err := ingest.NewQueue(cfg.DataDir)
	if err != nil {
		return err
	}
	uploads, err := ingest.NewUploadLog(cfg.DataDir)
	if err != nil {
		return err
	}

	ingestCfg := cfg.Ingest
	targetStore := funnelStore
	if *dryRunFlag {
		dryStore, err := newDryRunStore()
		if err != nil {
			return err
		}
		defer dryStore.Close()
		targetStore = dryStore
		logging.Logf(logging.Info, "Dry run: funnels will not be merged into the live store")
	}
	runner, err := ingest.NewRunner(queue, uploads, targetStore, roster, ingestCfg)
	if err != nil {
		return err
	}

	if *ingestFlag {
		if files := fs.Args(); len(files) > 0 {
			for _, file := range files {
				if _, err := osStatFunc(file); err != nil {
					return fmt.Errorf("input file '%s': %w", file, err)
				}
			}
			job, err := queue.Enqueue(files)
			if err != nil {
				return err
			}
			logging.Logf(logging.Info, "Enqueued job %s with %d file(s)", job.ID, len(files))
		}
		return drainQueue(context.Background(), runner)
	}
	if !*serveFlag {
		a.Usage(os.Stderr)
		return nil
	}

	server := &httpx.Server{
		Store:   funnelStore,
		Queue:   queue,
		Uploads: uploads,
		Runner:  runner,
		DataDir: cfg.DataDir,
	}
	return serveHTTP(cfg.Server.Port, httpx.NewRouter(server))
}

// drainQueue runs pending jobs until the queue is empty. Job failures are
// recorded on the job itself and do not stop the drain.
func drainQueue(ctx context.Context, runner *ingest.Runner) error {
	processed := 0
	for {
		job, found, err := runner.RunNext(ctx)
		if !found {
			break
		}
		processed++
		if err != nil {
			logging.Logf(logging.Error, "Job %s failed: %v", job.ID, err)
		}
	}
	logging.Logf(logging.Info, "Processed %d ingest job(s)", processed)
	return nil
}

// newPersistence builds the configured store backend.
func newPersistence(cfg *config.Config) (store.Persistence, error) {
	switch cfg.Store.Backend {
	case config.StoreBackendPostgres:
		return store.NewPostgresPersistence(cfg.Store.ConnString, cfg.Store.Table)
	default:
		return store.NewJSONFilePersistence(cfg.DataDir)
	}
}

// newDryRunStore builds a throwaway store over a temp directory so a dry
// run exercises the full pipeline without touching live data.
func newDryRunStore() (*store.FunnelStore, error) {
	dir, err := os.MkdirTemp("", "funneldash-dryrun-")
	if err != nil {
		return nil, fmt.Errorf("creating dry-run directory: %w", err)
	}
	p, err := store.NewJSONFilePersistence(dir)
	if err != nil {
		return nil, err
	}
	return store.New(p)
}

// serveHTTP runs the API server until SIGINT or SIGTERM, then shuts down
// gracefully.
func serveHTTP(port string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Logf(logging.Info, "Serving API on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("http server failed: %w", err)
	case sig := <-stop:
		logging.Logf(logging.Info, "Received %s, shutting down", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	return nil
}

// isFlagSet checks whether a flag was explicitly provided on the command
// line.
func isFlagSet(fs *flag.FlagSet, name string) bool {
	set := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}
