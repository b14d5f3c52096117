package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"

	"github.com/teranos/phylo/am"
	"github.com/teranos/phylo/errors"
	"github.com/teranos/phylo/internal/version"
	"github.com/teranos/phylo/logger"
	"github.com/teranos/phylo/observability"
	"github.com/teranos/phylo/server"
)

// ServerCmd starts the phylo HTTP API
var ServerCmd = &cobra.Command{
	Use:     "server",
	Aliases: []string{"serve"},
	Short:   "Start the phylo HTTP API",
	Long: `Serve phylogeny queries, concept lookups, prometheus metrics and a websocket
feed of cache rebuilds. Allowed origins and the rate limit are reloaded when
the project am.toml changes.`,
	RunE: runServer,
}

var (
	serverDBPath string
	serverPort   int
)

func init() {
	ServerCmd.Flags().StringVar(&serverDBPath, "db-path", "", "Database path (overrides config)")
	ServerCmd.Flags().IntVar(&serverPort, "port", 0, "Port to listen on (overrides config)")
}

func runServer(cmd *cobra.Command, args []string) error {
	verbosity, _ := cmd.Flags().GetCount("verbose")
	if verbosity == 0 {
		verbosity = logger.VerbosityInfo
	}

	cfg, err := am.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load configuration")
	}
	port := cfg.GetServerPort()
	if cmd.Flags().Changed("port") {
		port = serverPort
	}

	database, dbPath, err := openDatabase(serverDBPath)
	if err != nil {
		return errors.Wrap(err, "failed to open database")
	}
	defer database.Close()

	var serverOpts []server.Option
	tp, err := observability.NewTracerProvider(cmd.Context(), observability.TracingConfig{
		ServiceName: "phylo",
		Version:     version.Get().Version,
		Exporter:    cfg.Tracing.Exporter,
		Endpoint:    cfg.Tracing.Endpoint,
		Insecure:    cfg.Tracing.Insecure,
		SampleRatio: cfg.Tracing.SampleRatio,
	})
	if err != nil {
		return errors.Wrap(err, "failed to set up tracing")
	}
	if tp != nil {
		otel.SetTracerProvider(tp)
		serverOpts = append(serverOpts, server.WithTracerProvider(tp))
		logger.Infow("Tracing enabled", "exporter", cfg.Tracing.Exporter, "endpoint", cfg.Tracing.Endpoint)
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), server.ShutdownTimeout)
			defer cancel()
			if err := tp.Shutdown(ctx); err != nil {
				logger.Warnw("Failed to flush spans", logger.FieldError, err)
			}
		}()
	}

	srv, err := server.New(cfg, database, logger.Named("server"), serverOpts...)
	if err != nil {
		return errors.Wrap(err, "failed to create server")
	}

	if path := am.FindProjectConfig(); path != "" {
		watcher, err := am.NewConfigWatcher(path)
		if err != nil {
			logger.Warnw("Config hot-reload disabled", logger.FieldPath, path, logger.FieldError, err)
		} else {
			watcher.OnReload(srv.ApplyConfig)
			watcher.Start()
			am.SetGlobalWatcher(watcher)
			defer watcher.Stop()
		}
	}

	ln, err := server.Listen(port)
	if err != nil {
		return err
	}
	printStartupBanner(verbosity, dbPath, ln.Addr().String())

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Serve(ln)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return errors.Wrap(err, "server stopped unexpectedly")
	case <-sigChan:
		pterm.Info.Println("Shutting down gracefully (press Ctrl+C again to force)...")

		shutdownDone := make(chan error, 1)
		go func() {
			shutdownDone <- srv.Stop()
		}()

		select {
		case err := <-shutdownDone:
			if err != nil {
				return errors.Wrap(err, "shutdown error")
			}
			pterm.Success.Println("Server stopped cleanly")
			return nil
		case <-sigChan:
			pterm.Warning.Println("Force shutdown - exiting immediately")
			os.Exit(1)
			return nil
		}
	}
}
