package rest

import (
	"log/slog"
	"net/http"

	"github.com/frahmantamala/meter-fleet/internal"
	"github.com/frahmantamala/meter-fleet/internal/assignment"
	"github.com/frahmantamala/meter-fleet/internal/auth"
	"github.com/frahmantamala/meter-fleet/internal/live"
	"github.com/frahmantamala/meter-fleet/internal/meter"
	"github.com/frahmantamala/meter-fleet/internal/report"
	"github.com/frahmantamala/meter-fleet/internal/telemetry"
	"github.com/frahmantamala/meter-fleet/internal/transport"
	"github.com/frahmantamala/meter-fleet/internal/transport/middleware"
	"github.com/frahmantamala/meter-fleet/internal/transport/swagger"
	"github.com/frahmantamala/meter-fleet/internal/user"
	"github.com/go-chi/chi"
	chiMiddleware "github.com/go-chi/chi/middleware"
)

// Handlers collects everything the router mounts. Nil handlers leave their
// routes out.
type Handlers struct {
	Health     *HealthHandler
	Auth       *auth.Handler
	Authorizer *auth.Authorizer
	User       *user.Handler
	Meter      *meter.Handler
	Assignment *assignment.Handler
	Telemetry  *telemetry.Handler
	Report     *report.Handler
	Live       *live.Hub
	// OpenAPI is the validated document served at /openapi.yml.
	OpenAPI []byte
}

func RegisterAllRoutes(router *chi.Mux, h Handlers, allowedOrigins []string, logger *slog.Logger) {
	// Apply global middleware
	router.Use(middleware.CORS(allowedOrigins))
	router.Use(middleware.RequestID)
	router.Use(middleware.LoggingMiddleware(logger))
	router.Use(middleware.RecoveryMiddleware(logger))
	router.Use(chiMiddleware.StripSlashes)
	router.NotFound(notFound(logger))

	if h.OpenAPI != nil {
		router.Get("/openapi.yml", swagger.SpecHandler(h.OpenAPI))
		router.Handle("/swagger/*", swagger.Handler())
	}

	router.Route("/api", func(r chi.Router) {
		if h.Health != nil {
			r.Get("/health", h.Health.healthCheckHandler)
			r.Get("/ping", h.Health.pingHandler)
		}

		// Public routes: devices post telemetry and download links carry their own capability
		if h.Telemetry != nil {
			r.Post("/meter-data", h.Telemetry.IngestMeterData)
		}
		if h.Report != nil {
			r.Get("/reports/download/{file_name}", h.Report.Download)
		}

		if h.Auth == nil {
			return
		}

		r.Route("/auth", func(sr chi.Router) {
			sr.Post("/signup", h.Auth.Signup)
			sr.Post("/login", h.Auth.Login)
			sr.Post("/token/refresh", h.Auth.RefreshToken)
			sr.Group(func(pr chi.Router) {
				pr.Use(h.Auth.AuthMiddleware)
				pr.Post("/logout", h.Auth.Logout)
				pr.Get("/me", h.Auth.Me)
			})
		})
		// signup is also reachable as user creation
		r.Post("/users", h.Auth.Signup)

		r.Group(func(pr chi.Router) {
			pr.Use(h.Auth.AuthMiddleware)
			registerProtected(pr, h, logger)
		})
	})
}

func registerProtected(pr chi.Router, h Handlers, logger *slog.Logger) {
	rbac := h.Authorizer
	if rbac == nil {
		rbac = auth.NewAuthorizer(auth.NewPolicy(), logger)
	}
	require := rbac.RequireAction

	if h.User != nil {
		pr.With(require(auth.ActionUsersList)).Get("/users", h.User.ListUsers)
		pr.With(require(auth.ActionUsersView)).Get("/users/{id}", h.User.GetUser)
		pr.With(require(auth.ActionUsersUpdate)).Put("/users/{id}", h.User.UpdateUser)
		pr.With(require(auth.ActionUsersUpdate)).Patch("/users/{id}", h.User.UpdateUser)
		pr.With(require(auth.ActionUsersDelete)).Delete("/users/{id}", h.User.DeleteUser)
		pr.With(middleware.RequireRoles(logger, auth.RoleAdmin)).Get("/all-users", h.User.ListUsers)
	}

	if h.Meter != nil {
		pr.Route("/meters", func(mr chi.Router) {
			mr.With(require(auth.ActionMetersView)).Get("/", h.Meter.ListMeters)
			mr.With(require(auth.ActionMetersManage)).Post("/", h.Meter.CreateMeter)
			mr.With(require(auth.ActionMetersView)).Get("/{device_id}", h.Meter.GetMeter)
			mr.With(require(auth.ActionMetersManage)).Put("/{device_id}", h.Meter.UpdateMeter)
			mr.With(require(auth.ActionMetersManage)).Patch("/{device_id}", h.Meter.UpdateMeter)
			mr.With(require(auth.ActionMetersManage)).Delete("/{device_id}", h.Meter.DeleteMeter)
			if h.Live != nil {
				mr.With(require(auth.ActionTelemetryView)).Get("/{device_id}/live", h.Live.ServeLive)
			}
		})
	}

	if h.Assignment != nil {
		a := h.Assignment
		pr.Route("/assignments", func(ar chi.Router) {
			ar.Use(require(auth.ActionAssignmentsManage))
			ar.Get("/", a.ListUserAssignments)
			ar.Post("/", a.CreateUserAssignment)
			ar.Get("/{id}", a.GetUserAssignment)
			ar.Delete("/{id}", a.DeleteUserAssignment)
		})
		pr.Route("/meter-assignments", func(ar chi.Router) {
			ar.Use(require(auth.ActionMeterAssignmentsManage))
			ar.Get("/", a.ListMeterAssignments)
			ar.Post("/", a.CreateMeterAssignment)
			ar.Get("/{id}", a.GetMeterAssignment)
			ar.Put("/{id}", a.UpdateMeterAssignment)
			ar.Patch("/{id}", a.UpdateMeterAssignment)
			ar.Delete("/{id}", a.DeleteMeterAssignment)
		})
		pr.Route("/manager", func(mr chi.Router) {
			mr.With(require(auth.ActionTeamView)).Get("/engineers", a.Team)
			mr.With(require(auth.ActionTeamView)).Get("/meters", a.ManagerMeters)
			mr.With(require(auth.ActionTeamAssignMeter)).Post("/assign-meter", a.AssignMeter)
			mr.With(require(auth.ActionTeamAssignMeter)).Delete("/assign-meter", a.UnassignMeter)
		})
		pr.With(require(auth.ActionEngineerMeters)).Get("/engineer/meters", a.EngineerMeters)
	}

	if h.Telemetry != nil {
		pr.With(require(auth.ActionTelemetryView)).Get("/meter-data", h.Telemetry.ListMeterData)
	}

	if h.Report != nil {
		pr.Group(func(rr chi.Router) {
			rr.Use(require(auth.ActionReportsGenerate))
			rr.Post("/meter-report", h.Report.GenerateMeterReport)
			rr.Post("/meter-alarm-report", h.Report.GenerateAlarmReport)
		})
	}
}

func notFound(logger *slog.Logger) http.HandlerFunc {
	base := transport.NewBaseHandler(logger)
	return func(w http.ResponseWriter, r *http.Request) {
		base.WriteError(w, internal.NewNotFoundError("Not found", internal.ErrCodeRouteNotFound))
	}
}
