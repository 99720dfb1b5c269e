package telemetry

import (
	"context"
	"log/slog"
	"time"

	"github.com/frahmantamala/meter-fleet/internal"
	"github.com/frahmantamala/meter-fleet/internal/auth"
	meterDatamodel "github.com/frahmantamala/meter-fleet/internal/core/datamodel/meter"
	telemetryDatamodel "github.com/frahmantamala/meter-fleet/internal/core/datamodel/telemetry"
	"github.com/frahmantamala/meter-fleet/internal/core/events"
)

type Repository interface {
	Create(ctx context.Context, d *telemetryDatamodel.MeterData) error
	// List returns rows of meterID inside [start, end], newest first. Zero
	// bounds are open.
	List(ctx context.Context, meterID int64, start, end time.Time, limit int) ([]*telemetryDatamodel.MeterData, error)
}

// MeterResolver turns a device id into a meter, failing with 404.
type MeterResolver interface {
	Resolve(ctx context.Context, deviceID string) (*meterDatamodel.Meter, error)
}

// ScopeResolver reports which managers and engineers hold a meter.
type ScopeResolver interface {
	Scope(ctx context.Context, meterID int64) (*auth.Resource, error)
}

type Publisher interface {
	Publish(ctx context.Context, event events.Event) error
}

type Service struct {
	repo      Repository
	meters    MeterResolver
	scopes    ScopeResolver
	policy    *auth.Policy
	limiter   *RateLimiterStore
	publisher Publisher
	logger    *slog.Logger
	maxPage   int
	now       func() time.Time
}

func NewService(repo Repository, meters MeterResolver, scopes ScopeResolver, policy *auth.Policy, limiter *RateLimiterStore, publisher Publisher, logger *slog.Logger, maxPageSize int) *Service {
	return &Service{
		repo:      repo,
		meters:    meters,
		scopes:    scopes,
		policy:    policy,
		limiter:   limiter,
		publisher: publisher,
		logger:    logger,
		maxPage:   maxPageSize,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Ingest stores one snapshot for the meter named by dto.MeterID and announces
// it on the event bus.
func (s *Service) Ingest(ctx context.Context, dto IngestDTO) (*Reading, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	m, err := s.meters.Resolve(ctx, dto.MeterID)
	if err != nil {
		return nil, err
	}
	if !s.limiter.Allow(m.DeviceID) {
		return nil, internal.NewTooManyRequestsError("Too many readings for this meter, slow down")
	}

	row := dto.ToDataModel(m.ID, s.now())
	if err := s.repo.Create(ctx, row); err != nil {
		return nil, internal.NewInternalError("Failed to store meter data", err)
	}
	reading := FromDataModel(row, m.DeviceID)

	s.publish(ctx, events.NewTelemetryRecordedEvent(m.ID, m.DeviceID, row.CreatedAt, reading))
	if raised := RaisedAlarms(row); len(raised) > 0 {
		s.logger.Warn("meter raised alarms", "device_id", m.DeviceID, "alarms", raised)
		s.publish(ctx, events.NewTelemetryAlarmEvent(m.ID, m.DeviceID, m.Location, row.CreatedAt, raised))
	}
	return reading, nil
}

func (s *Service) publish(ctx context.Context, e events.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, e); err != nil {
		s.logger.Error("failed to publish event", "event_type", e.EventType(), "error", err)
	}
}

// AuthorizeMeter resolves deviceID and checks that p may see its telemetry.
func (s *Service) AuthorizeMeter(ctx context.Context, p *auth.Principal, deviceID string) (*meterDatamodel.Meter, error) {
	if p == nil {
		return nil, s.policy.Allow(nil, auth.ActionTelemetryView, nil)
	}
	m, err := s.meters.Resolve(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	scope, err := s.scopes.Scope(ctx, m.ID)
	if err != nil {
		return nil, err
	}
	if err := s.policy.Allow(p, auth.ActionTelemetryView, scope); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *Service) List(ctx context.Context, p *auth.Principal, q ListQuery) ([]*Reading, error) {
	m, err := s.AuthorizeMeter(ctx, p, q.DeviceID)
	if err != nil {
		return nil, err
	}
	limit := q.Limit
	if limit < 1 || (s.maxPage > 0 && limit > s.maxPage) {
		limit = s.maxPage
	}
	rows, err := s.repo.List(ctx, m.ID, q.Start, q.End, limit)
	if err != nil {
		return nil, internal.NewInternalError("Failed to list meter data", err)
	}
	return FromDataModels(rows, m.DeviceID), nil
}

// MaxPageSize bounds the limit accepted by List.
func (s *Service) MaxPageSize() int {
	return s.maxPage
}
