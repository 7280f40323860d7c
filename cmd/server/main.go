/*
main.go - Application entry point

PURPOSE:
  benefitsd runs the benefit voucher service. It loads configuration,
  wires the store, event bus and subscribers, and exposes three commands.

COMMANDS:
  serve    HTTP API plus the expiry scheduler, with graceful shutdown
  expire   One expiry sweep, then exit (for cron)
  seed     Reset the database and load a demo scenario

FLAGS (all commands):
  --config     config file (default ./benefits.yaml, /etc/benefits/benefits.yaml)
  --db         SQLite database path; ":memory:" for an ephemeral run
  --log-level  debug, info, warn, error

  Flags win over BENEFITS_* environment variables, which win over the
  config file, which wins over defaults.

STARTUP SEQUENCE (serve):
  1. Load config and initialize logging
  2. Open SQLite store (migrations run on open)
  3. Create event bus; attach audit recorder, metrics, optional Redis relay
  4. Create API handler (pipeline, lifecycle, self-service)
  5. Start expiry scheduler and HTTP server
  6. On SIGINT/SIGTERM: stop accepting connections, drain, close store

EXAMPLES:
  benefitsd serve --db ./data/benefits.db --port 3000
  benefitsd seed --db ./data/benefits.db --scenario partial-persistence
  BENEFITS_NOTIFY_ENDPOINT=https://mailer.internal/send benefitsd serve

SEE ALSO:
  - api/server.go: Router configuration
  - config/loader.go: Configuration precedence
*/
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/warp/benefit-engine/api"
	"github.com/warp/benefit-engine/audit"
	"github.com/warp/benefit-engine/config"
	"github.com/warp/benefit-engine/events"
	"github.com/warp/benefit-engine/issuance"
	"github.com/warp/benefit-engine/logging"
	"github.com/warp/benefit-engine/metrics"
	"github.com/warp/benefit-engine/notify"
	"github.com/warp/benefit-engine/store/sqlite"
)

// Version information (set at build time)
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type options struct {
	configFile string
	loader     *config.Loader
	cfg        *config.Config
}

func newRootCmd() *cobra.Command {
	opts := &options{loader: config.NewLoader()}

	cmd := &cobra.Command{
		Use:          "benefitsd",
		Short:        "Benefit voucher issuance and self-service approvals",
		Version:      version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.load(cmd)
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.configFile, "config", "", "config file (default ./benefits.yaml)")
	pf.String("db", "", `SQLite database path (":memory:" for an ephemeral run)`)
	pf.String("log-level", "", "logging level (debug, info, warn, error)")

	cmd.AddCommand(newServeCmd(opts), newExpireCmd(opts), newSeedCmd(opts))
	return cmd
}

// load binds the flags that were declared on the running command chain,
// then reads the configuration and initializes logging.
func (o *options) load(cmd *cobra.Command) error {
	if o.configFile != "" {
		o.loader.SetConfigFile(o.configFile)
	}

	flags := cmd.Flags()
	bindings := map[string]string{
		"database.path": "db",
		"logging.level": "log-level",
		"server.port":   "port",
	}
	for key, name := range bindings {
		if err := o.loader.BindFlag(key, flags.Lookup(name)); err != nil {
			return fmt.Errorf("bind --%s: %w", name, err)
		}
	}

	cfg, err := o.loader.Load()
	if err != nil {
		return err
	}
	o.cfg = cfg

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: os.Stderr,
	})
	return nil
}

// =============================================================================
// WIRING
// =============================================================================

type app struct {
	store   *sqlite.Store
	handler *api.Handler
	closers []func()
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	logger := logging.Component("benefitsd")

	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	a := &app{store: store}

	bus := events.NewBus(logging.Component("events"))
	recorder := &audit.Recorder{Log: store, Logger: logging.Component("audit")}
	a.closers = append(a.closers, recorder.Attach(bus))
	if cfg.Metrics.Enabled {
		a.closers = append(a.closers, metrics.Attach(bus))
	}

	if cfg.Events.RedisAddr != "" {
		client, err := events.DialRedis(ctx, cfg.Events.RedisAddr)
		if err != nil {
			// The relay is optional; the service runs without it.
			logger.Warn().Err(err).Msg("event relay disabled")
		} else {
			relay := events.NewRedisRelay(client, cfg.Events.RedisChannel, logging.Component("relay"))
			a.closers = append(a.closers, relay.Attach(bus), func() { client.Close() })
			logger.Info().Str("addr", cfg.Events.RedisAddr).Str("channel", cfg.Events.RedisChannel).Msg("event relay enabled")
		}
	}

	var dispatcher notify.Dispatcher = notify.DisabledDispatcher{}
	if cfg.Notify.Endpoint != "" {
		dispatcher = notify.NewHTTPDispatcher(cfg.Notify.Endpoint, cfg.Notify.APIKey, cfg.Notify.SenderName, cfg.Notify.Timeout)
	} else {
		logger.Warn().Msg("notify.endpoint not set, vouchers will be issued without e-mail delivery")
	}

	a.handler = api.NewHandler(api.Deps{
		Store:      store,
		Bus:        bus,
		Dispatcher: dispatcher,
		Issuance: issuance.Config{
			ValidityDays: cfg.Issuance.ValidityDays,
			Issuer:       cfg.Issuance.Issuer,
			Concurrency:  cfg.Issuance.Concurrency,
		},
		Logger: logging.Logger,
	})
	return a, nil
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.store.Close()
}

// =============================================================================
// COMMANDS
// =============================================================================

func newServeCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the expiry scheduler",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), opts.cfg)
		},
	}
	cmd.Flags().Int("port", 0, "HTTP server port")
	return cmd
}

func serve(parent context.Context, cfg *config.Config) error {
	logger := logging.Component("benefitsd")
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	scheduler := api.NewExpiryScheduler(a.handler.Lifecycle, logging.Component("scheduler"))
	scheduler.Enabled = cfg.Scheduler.Enabled
	scheduler.CheckInterval = cfg.Scheduler.ExpiryInterval
	scheduler.Start()
	defer scheduler.Stop()

	routerOpts := api.RouterOptions{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Logger:         logging.Component("http"),
	}
	if cfg.Metrics.Enabled {
		routerOpts.MetricsHandler = metrics.Handler()
		routerOpts.MetricsPath = cfg.Metrics.Path
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      api.NewRouter(a.handler, routerOpts),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().
			Str("version", version).
			Int("port", cfg.Server.Port).
			Str("db", cfg.Database.Path).
			Msg("server starting")
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	logger.Info().Msg("server stopped")
	return nil
}

func newExpireCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "expire",
		Short: "Expire issued vouchers past their validity window, then exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, opts.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			n, err := a.handler.Lifecycle.Expire(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d vouchers expired\n", n)
			return nil
		},
	}
}

func newSeedCmd(opts *options) *cobra.Command {
	var scenarioID string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Reset the database and load a demo scenario",
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			if scenarioID == "" {
				for _, s := range api.Scenarios() {
					fmt.Fprintf(out, "%-26s %s\n", s.ID, s.Description)
				}
				return nil
			}

			ctx := cmd.Context()
			a, err := newApp(ctx, opts.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			result, err := a.handler.Load(ctx, scenarioID)
			if err != nil {
				return err
			}
			return printJSON(out, result)
		},
	}
	cmd.Flags().StringVar(&scenarioID, "scenario", "", "scenario ID (omit to list scenarios)")
	return cmd
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
