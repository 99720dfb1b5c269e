package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/frahmantamala/meter-fleet/internal/assignment"
	"github.com/frahmantamala/meter-fleet/internal/auth"
	"github.com/frahmantamala/meter-fleet/internal/live"
	"github.com/frahmantamala/meter-fleet/internal/meter"
	"github.com/frahmantamala/meter-fleet/internal/report"
	"github.com/frahmantamala/meter-fleet/internal/telemetry"
	"github.com/frahmantamala/meter-fleet/internal/transport/rest"
	"github.com/frahmantamala/meter-fleet/internal/transport/swagger"
	"github.com/frahmantamala/meter-fleet/internal/user"

	"github.com/go-chi/chi"
	"github.com/spf13/cobra"
)

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server to handle API requests`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

func startHTTPServer() {
	config, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, err := initializeDependencies(ctx, config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}
	defer deps.Close()

	hub := live.NewHub(deps.Telemetry, splitOrigins(config.Server.AllowedOrigins), deps.Logger)
	hub.RegisterEventHandlers(deps.EventBus)
	defer hub.Close()

	router, err := setupRoutes(deps, hub)
	if err != nil {
		deps.Logger.Error("failed to set up routes", "error", err)
		return
	}

	go deps.Report.RunJanitor(ctx, config.Reports.JanitorInterval)

	addr := fmt.Sprintf(":%d", config.Server.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: config.Server.ReadHeaderTimeout,
		ReadTimeout:       config.Server.ReadTimeout,
		WriteTimeout:      config.Server.WriteTimeout,
		IdleTimeout:       config.Server.IdleTimeout,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		deps.Logger.Info("Starting HTTP server", "address", addr, "env", config.Env)
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		deps.Logger.Info("Received signal, shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			deps.Logger.Error("Server shutdown error", "error", err)
		}
	case err := <-serverErrChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			deps.Logger.Error("Server failed to start", "error", err)
		}
	}

	deps.Logger.Info("Server stopped")
}

func setupRoutes(deps *Dependencies, hub *live.Hub) (*chi.Mux, error) {
	lg := deps.Logger

	var openAPI []byte
	if path := deps.Config.Server.OpenAPIPath; path != "" {
		doc, err := swagger.LoadSpec(path)
		if err != nil {
			return nil, err
		}
		openAPI = doc
	}

	router := chi.NewRouter()
	rest.RegisterAllRoutes(router, rest.Handlers{
		Health:     rest.NewHealthHandler(healthChecks(deps)),
		Auth:       auth.NewHandler(deps.Auth, lg),
		Authorizer: auth.NewAuthorizer(deps.Policy, lg),
		User:       user.NewHandler(deps.User, lg),
		Meter:      meter.NewHandler(deps.Meter, lg),
		Assignment: assignment.NewHandler(deps.Assignment, lg),
		Telemetry:  telemetry.NewHandler(deps.Telemetry, lg),
		Report:     report.NewHandler(deps.Report, lg),
		Live:       hub,
		OpenAPI:    openAPI,
	}, splitOrigins(deps.Config.Server.AllowedOrigins), lg)

	return router, nil
}

func healthChecks(deps *Dependencies) map[string]rest.Check {
	return map[string]rest.Check{
		"database": func(ctx context.Context) error {
			return deps.DB.SQL.PingContext(ctx)
		},
	}
}
