package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	otelapi "go.opentelemetry.io/otel"

	scribeflow "github.com/scribeflow/scribeflow"
	"github.com/scribeflow/scribeflow/bus"
	scribeotel "github.com/scribeflow/scribeflow/otel"
	"github.com/scribeflow/scribeflow/server"
)

// NewServeCmd creates the "serve" subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the blog generation HTTP server",
		RunE:  runServe,
	}

	cmd.Flags().IntP("port", "p", 8080, "Listen port")
	cmd.Flags().String("host", "0.0.0.0", "Listen host")
	cmd.Flags().String("cors-origin", "*", "Allowed CORS origin")
	cmd.Flags().String("sqlite-path", "", "Path to SQLite database (default: ~/.scribeflow/scribeflow.db)")
	cmd.Flags().String("config", "", "Path to scribeflow.yaml config")
	cmd.Flags().String("otel-endpoint", "", "OTLP/HTTP endpoint for trace export")
	cmd.Flags().String("tls-cert", "", "TLS certificate file")
	cmd.Flags().String("tls-key", "", "TLS key file")
	cmd.Flags().Duration("read-timeout", 30*time.Second, "HTTP read timeout")
	cmd.Flags().Duration("write-timeout", 10*time.Minute, "HTTP write timeout")
	cmd.Flags().Int64("max-body", 1<<20, "Max request body size in bytes")
	cmd.Flags().Duration("run-timeout", 5*time.Minute, "Per-run execution timeout")
	cmd.Flags().Duration("schedule-poll", 5*time.Second, "Schedule poll interval")

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	host, _ := cmd.Flags().GetString("host")
	port, _ := cmd.Flags().GetInt("port")
	corsOrigin, _ := cmd.Flags().GetString("cors-origin")
	otelEndpoint, _ := cmd.Flags().GetString("otel-endpoint")
	readTimeout, _ := cmd.Flags().GetDuration("read-timeout")
	writeTimeout, _ := cmd.Flags().GetDuration("write-timeout")
	maxBody, _ := cmd.Flags().GetInt64("max-body")
	runTimeout, _ := cmd.Flags().GetDuration("run-timeout")
	schedulePoll, _ := cmd.Flags().GetDuration("schedule-poll")
	tlsCert, _ := cmd.Flags().GetString("tls-cert")
	tlsKey, _ := cmd.Flags().GetString("tls-key")
	configPath, _ := cmd.Flags().GetString("config")

	logger := slog.Default()

	cfg, err := loadConfig(configPath)
	if err != nil {
		return exitError(exitInputParse, "loading config: %v", err)
	}
	client, err := buildTextClient(cfg)
	if err != nil {
		return exitError(exitProvider, "configuring provider: %v", err)
	}

	sqliteDSN, err := resolveSQLiteDSN(cmd)
	if err != nil {
		return err
	}

	shutdownTelemetry, err := setupTelemetry(cmd.Context(), otelEndpoint, cmd.Root().Version)
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}
	defer func() {
		_ = shutdownTelemetry(context.Background())
	}()

	graph, err := scribeflow.BuildBlogGraph(client, logger)
	if err != nil {
		return fmt.Errorf("building workflow graph: %w", err)
	}

	eb := bus.NewMemBus(bus.MemBusConfig{})
	defer func() {
		_ = eb.Close()
	}()

	eventStore, err := bus.NewSQLiteEventStore(bus.SQLiteStoreConfig{DSN: sqliteDSN})
	if err != nil {
		return fmt.Errorf("opening sqlite event store: %w", err)
	}
	defer func() {
		_ = eventStore.Close()
	}()

	store, err := server.NewSQLiteStore(server.SQLiteStoreConfig{DSN: sqliteDSN})
	if err != nil {
		return fmt.Errorf("opening sqlite run store: %w", err)
	}
	defer func() {
		_ = store.Close()
	}()

	// The enrich decorator maintains run and node spans and stamps trace
	// context onto every event before the bus and stores see it; metrics
	// observe the enriched stream.
	tracing := scribeotel.NewTracingHandler(otelapi.GetTracerProvider().Tracer("scribeflow"))
	metrics, err := scribeotel.NewMetricsHandler(otelapi.GetMeterProvider().Meter("scribeflow"))
	if err != nil {
		return fmt.Errorf("initializing metrics: %w", err)
	}

	apiServer, err := server.NewServer(server.ServerConfig{
		Graph:      graph,
		Runs:       store,
		Schedules:  store,
		Bus:        eb,
		EventStore: eventStore,
		Events:     metrics.Handle,
		EmitDecorator: func(next scribeflow.EventHandler) scribeflow.EventHandler {
			return scribeotel.EnrichHandler(next, tracing)
		},
		Version:    cmd.Root().Version,
		CORSOrigin: corsOrigin,
		MaxBody:    maxBody,
		RunTimeout: runTimeout,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	scheduler, err := server.NewScheduler(server.SchedulerConfig{
		Runner:       apiServer,
		Store:        store,
		PollInterval: schedulePoll,
		Logger:       logger,
	})
	if err != nil {
		return fmt.Errorf("creating scheduler: %w", err)
	}
	if err := scheduler.Start(); err != nil {
		return fmt.Errorf("starting scheduler: %w", err)
	}
	defer func() {
		_ = scheduler.Stop(context.Background())
	}()

	addr := net.JoinHostPort(host, fmt.Sprintf("%d", port))
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      apiServer.Handler(),
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(cmd.OutOrStdout(), "scribeflow listening on %s\n", addr)
		if tlsCert != "" && tlsKey != "" {
			errCh <- httpServer.ListenAndServeTLS(tlsCert, tlsKey)
		} else {
			errCh <- httpServer.ListenAndServe()
		}
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(cmd.OutOrStdout(), "Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return exitError(exitRuntime, "shutdown error: %v", err)
		}
		return nil
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return exitError(exitRuntime, "server error: %v", err)
		}
		return nil
	}
}

func resolveSQLiteDSN(cmd *cobra.Command) (string, error) {
	sqlitePath, _ := cmd.Flags().GetString("sqlite-path")
	dsn := strings.TrimSpace(sqlitePath)
	if dsn == "" {
		dsn = strings.TrimSpace(os.Getenv("SCRIBEFLOW_SQLITE_PATH"))
	}
	if dsn == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolving default sqlite path: %w", err)
		}
		dir := filepath.Join(home, ".scribeflow")
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("creating %s: %w", dir, err)
		}
		dsn = filepath.Join(dir, "scribeflow.db")
	}
	if !strings.HasPrefix(strings.ToLower(dsn), "file:") {
		dsn = filepath.Clean(dsn)
	}
	return dsn, nil
}
