package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/frahmantamala/meter-fleet/internal"
	"github.com/frahmantamala/meter-fleet/internal/alarm"
	"github.com/frahmantamala/meter-fleet/internal/assignment"
	assignmentPostgres "github.com/frahmantamala/meter-fleet/internal/assignment/postgres"
	"github.com/frahmantamala/meter-fleet/internal/auth"
	authPostgres "github.com/frahmantamala/meter-fleet/internal/auth/postgres"
	"github.com/frahmantamala/meter-fleet/internal/core/events"
	"github.com/frahmantamala/meter-fleet/internal/database"
	"github.com/frahmantamala/meter-fleet/internal/meter"
	meterPostgres "github.com/frahmantamala/meter-fleet/internal/meter/postgres"
	"github.com/frahmantamala/meter-fleet/internal/report"
	"github.com/frahmantamala/meter-fleet/internal/telemetry"
	telemetryPostgres "github.com/frahmantamala/meter-fleet/internal/telemetry/postgres"
	"github.com/frahmantamala/meter-fleet/internal/user"
	userPostgres "github.com/frahmantamala/meter-fleet/internal/user/postgres"
	"github.com/frahmantamala/meter-fleet/pkg/logger"
)

// Dependencies is the wired application shared by the server and the workers.
type Dependencies struct {
	Config   *internal.Config
	DB       *database.DB
	Logger   *slog.Logger
	Policy   *auth.Policy
	EventBus *events.EventBus

	Auth       *auth.Service
	User       *user.Service
	Meter      *meter.Service
	Assignment *assignment.Service
	Telemetry  *telemetry.Service
	Report     *report.Service
	Alarms     *alarm.Pool

	closers []func() error
}

func initializeDependencies(ctx context.Context, config *internal.Config) (*Dependencies, error) {
	lg := logger.LoggerWrapper()

	db, err := database.Open(config.Database, lg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	deps := &Dependencies{
		Config:   config,
		DB:       db,
		Logger:   lg,
		Policy:   auth.NewPolicy(),
		EventBus: events.NewEventBus(lg),
		closers:  []func() error{db.Close},
	}

	tokenGen := auth.NewJWTTokenGenerator(
		config.Security.JWTAccessSecret,
		config.Security.JWTRefreshSecret,
		config.Security.AccessTokenDuration,
		config.Security.RefreshTokenDuration,
	)
	deps.Auth = auth.NewService(authPostgres.NewRepository(db.Gorm), tokenGen, config.Security.BCryptCost)
	deps.User = user.NewService(userPostgres.NewUserRepository(db.Gorm), deps.Policy, lg)
	deps.Meter = meter.NewService(meterPostgres.NewMeterRepository(db.Gorm), deps.Policy, lg)
	deps.Assignment = assignment.NewService(assignmentPostgres.NewAssignmentRepository(db.Gorm), deps.Policy, lg)

	limiter := telemetry.NewRateLimiterStore(config.Telemetry.RatePerSecond, config.Telemetry.Burst)
	deps.Telemetry = telemetry.NewService(
		telemetryPostgres.NewMeterDataRepository(db.Gorm),
		deps.Meter,
		deps.Assignment,
		deps.Policy,
		limiter,
		deps.EventBus,
		lg,
		config.Telemetry.MaxPageSize,
	)

	blobs, err := report.NewBlobStore(ctx, config.Storage)
	if err != nil {
		deps.Close()
		return nil, fmt.Errorf("failed to initialize report storage: %w", err)
	}
	registry, closeRegistry := report.NewRegistry(ctx, config.Redis, lg)
	deps.closers = append(deps.closers, closeRegistry)
	deps.Report = report.NewService(
		deps.Telemetry,
		report.NewWindowReader(db.SQL),
		blobs,
		registry,
		deps.Policy,
		config.Reports,
		config.Server.BaseURL,
		lg,
	)

	notifier, err := alarm.NewNotifier(ctx, config.Alarms, lg)
	if err != nil {
		deps.Close()
		return nil, fmt.Errorf("failed to initialize alarm notifier: %w", err)
	}
	deps.Alarms = alarm.NewPool(notifier, config.Alarms.Workers, config.Alarms.QueueSize, lg)
	alarm.NewEventHandler(deps.Alarms, lg).RegisterEventHandlers(deps.EventBus)

	return deps, nil
}

// Close releases everything in reverse order of acquisition.
func (d *Dependencies) Close() {
	if d.Alarms != nil {
		d.Alarms.Shutdown()
	}
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			d.Logger.Error("failed to release dependency", "error", err)
		}
	}
}

func splitOrigins(raw string) []string {
	var origins []string
	for _, origin := range strings.Split(raw, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	return origins
}
