package meter

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/frahmantamala/meter-fleet/internal"
	"github.com/frahmantamala/meter-fleet/internal/auth"
	meterDatamodel "github.com/frahmantamala/meter-fleet/internal/core/datamodel/meter"
)

// Repository lookups return nil, nil when the meter does not exist.
type Repository interface {
	List(ctx context.Context) ([]*meterDatamodel.Meter, error)
	GetByDeviceID(ctx context.Context, deviceID string) (*meterDatamodel.Meter, error)
	GetByID(ctx context.Context, id int64) (*meterDatamodel.Meter, error)
	ExistsDeviceID(ctx context.Context, deviceID string, excludeID int64) (bool, error)
	Create(ctx context.Context, m *meterDatamodel.Meter) error
	Update(ctx context.Context, m *meterDatamodel.Meter) error
	// Delete removes the meter with its telemetry and assignments.
	Delete(ctx context.Context, id int64) error
}

type Service struct {
	repo   Repository
	policy *auth.Policy
	logger *slog.Logger
}

func NewService(repo Repository, policy *auth.Policy, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		policy: policy,
		logger: logger,
	}
}

func (s *Service) List(ctx context.Context, p *auth.Principal) ([]*Meter, error) {
	if err := s.policy.Allow(p, auth.ActionMetersView, nil); err != nil {
		return nil, err
	}
	meters, err := s.repo.List(ctx)
	if err != nil {
		return nil, internal.NewInternalError("Failed to list meters", err)
	}
	return FromDataModels(meters), nil
}

func (s *Service) Get(ctx context.Context, p *auth.Principal, deviceID string) (*Meter, error) {
	if err := s.policy.Allow(p, auth.ActionMetersView, nil); err != nil {
		return nil, err
	}
	m, err := s.Resolve(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	return FromDataModel(m), nil
}

// Resolve looks a meter up by device id and fails with 404 when it is unknown.
func (s *Service) Resolve(ctx context.Context, deviceID string) (*meterDatamodel.Meter, error) {
	m, err := s.repo.GetByDeviceID(ctx, deviceID)
	if err != nil {
		return nil, internal.NewInternalError("Failed to load meter", err)
	}
	if m == nil {
		return nil, internal.NewNotFoundError(fmt.Sprintf("Meter with device ID '%s' not found", deviceID), internal.ErrCodeMeterNotFound)
	}
	return m, nil
}

// ResolveID is Resolve keyed by primary key.
func (s *Service) ResolveID(ctx context.Context, id int64) (*meterDatamodel.Meter, error) {
	m, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, internal.NewInternalError("Failed to load meter", err)
	}
	if m == nil {
		return nil, internal.NewNotFoundError("Meter not found", internal.ErrCodeMeterNotFound)
	}
	return m, nil
}

func (s *Service) Create(ctx context.Context, p *auth.Principal, dto CreateMeterDTO) (*Meter, error) {
	if err := s.policy.Allow(p, auth.ActionMetersManage, nil); err != nil {
		return nil, err
	}
	if err := dto.Validate(); err != nil {
		return nil, err
	}
	if err := s.ensureUnique(ctx, dto.DeviceID, 0); err != nil {
		return nil, err
	}

	m := &meterDatamodel.Meter{DeviceID: dto.DeviceID, Location: dto.Location}
	if err := s.repo.Create(ctx, m); err != nil {
		return nil, internal.NewInternalError("Failed to create meter", err)
	}

	s.logger.Info("meter created", "meter_id", m.ID, "device_id", m.DeviceID)
	return FromDataModel(m), nil
}

func (s *Service) Update(ctx context.Context, p *auth.Principal, deviceID string, dto UpdateMeterDTO) (*Meter, error) {
	if err := s.policy.Allow(p, auth.ActionMetersManage, nil); err != nil {
		return nil, err
	}
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	m, err := s.Resolve(ctx, deviceID)
	if err != nil {
		return nil, err
	}

	if dto.DeviceID != nil && *dto.DeviceID != m.DeviceID {
		if err := s.ensureUnique(ctx, *dto.DeviceID, m.ID); err != nil {
			return nil, err
		}
		m.DeviceID = *dto.DeviceID
	}
	if dto.Location != nil {
		m.Location = *dto.Location
	}

	if err := s.repo.Update(ctx, m); err != nil {
		return nil, internal.NewInternalError("Failed to update meter", err)
	}
	return FromDataModel(m), nil
}

func (s *Service) Delete(ctx context.Context, p *auth.Principal, deviceID string) error {
	if err := s.policy.Allow(p, auth.ActionMetersManage, nil); err != nil {
		return err
	}
	m, err := s.Resolve(ctx, deviceID)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, m.ID); err != nil {
		return internal.NewInternalError("Failed to delete meter", err)
	}
	s.logger.Info("meter deleted", "meter_id", m.ID, "device_id", m.DeviceID)
	return nil
}

func (s *Service) ensureUnique(ctx context.Context, deviceID string, excludeID int64) error {
	taken, err := s.repo.ExistsDeviceID(ctx, deviceID, excludeID)
	if err != nil {
		return internal.NewInternalError("Failed to check device id", err)
	}
	if taken {
		return internal.NewConflictError(fmt.Sprintf("Meter with device ID '%s' already exists", deviceID), internal.ErrCodeDuplicateMeter)
	}
	return nil
}
