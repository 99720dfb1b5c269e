package assignment

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/frahmantamala/meter-fleet/internal"
	"github.com/frahmantamala/meter-fleet/internal/auth"
	assignmentDatamodel "github.com/frahmantamala/meter-fleet/internal/core/datamodel/assignment"
	meterDatamodel "github.com/frahmantamala/meter-fleet/internal/core/datamodel/meter"
	userDatamodel "github.com/frahmantamala/meter-fleet/internal/core/datamodel/user"
)

// Repository single-row lookups return nil, nil when nothing matches.
type Repository interface {
	GetUser(ctx context.Context, id int64) (*userDatamodel.User, error)
	GetUsersByIDs(ctx context.Context, ids []int64) ([]*userDatamodel.User, error)
	GetMeter(ctx context.Context, id int64) (*meterDatamodel.Meter, error)
	GetMetersByIDs(ctx context.Context, ids []int64) ([]*meterDatamodel.Meter, error)

	FindUserAssignment(ctx context.Context, managerID, engineerID int64) (*assignmentDatamodel.UserAssignment, error)
	GetUserAssignment(ctx context.Context, id int64) (*assignmentDatamodel.UserAssignment, error)
	ListUserAssignments(ctx context.Context) ([]*assignmentDatamodel.UserAssignment, error)
	ListUserAssignmentsByManager(ctx context.Context, managerID int64) ([]*assignmentDatamodel.UserAssignment, error)
	CreateUserAssignment(ctx context.Context, a *assignmentDatamodel.UserAssignment) error
	// DeleteUserAssignment also clears the engineer from that manager's meter
	// assignments, in one transaction.
	DeleteUserAssignment(ctx context.Context, a *assignmentDatamodel.UserAssignment) error

	GetMeterAssignment(ctx context.Context, id int64) (*assignmentDatamodel.MeterAssignment, error)
	ListMeterAssignments(ctx context.Context, filter MeterAssignmentFilter) ([]*assignmentDatamodel.MeterAssignment, error)
	ListMeterAssignmentsByManager(ctx context.Context, managerID int64) ([]*assignmentDatamodel.MeterAssignment, error)
	ListMeterAssignmentsByEngineer(ctx context.Context, engineerID int64) ([]*assignmentDatamodel.MeterAssignment, error)
	ListMeterAssignmentsByMeter(ctx context.Context, meterID int64) ([]*assignmentDatamodel.MeterAssignment, error)
	FindMeterAssignments(ctx context.Context, meterID, managerID int64) ([]*assignmentDatamodel.MeterAssignment, error)
	MeterAssignmentExists(ctx context.Context, meterID, managerID int64, status string, excludeID int64) (bool, error)
	CreateMeterAssignment(ctx context.Context, a *assignmentDatamodel.MeterAssignment) error
	UpdateMeterAssignment(ctx context.Context, a *assignmentDatamodel.MeterAssignment) error
	SetEngineer(ctx context.Context, meterID, managerID int64, engineerID *int64) error
	DeleteMeterAssignment(ctx context.Context, id int64) error
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

// CreateUserAssignment is get-or-create; Created reports whether a new row was written.
func (s *Service) CreateUserAssignment(ctx context.Context, p *auth.Principal, dto CreateUserAssignmentDTO) (*UserAssignmentResult, error) {
	if err := s.policy.Allow(p, auth.ActionAssignmentsManage, nil); err != nil {
		return nil, err
	}
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	manager, err := s.userWithRole(ctx, dto.ManagerID, auth.RoleManager)
	if err != nil {
		return nil, err
	}
	engineer, err := s.userWithRole(ctx, dto.EngineerID, auth.RoleEngineer)
	if err != nil {
		return nil, err
	}
	if manager == nil || engineer == nil {
		return nil, internal.NewNotFoundError("Manager or engineer not found or invalid role", internal.ErrCodeUserNotFound)
	}

	already := func(a *assignmentDatamodel.UserAssignment) *UserAssignmentResult {
		return &UserAssignmentResult{
			Assignment: UserAssignmentFromDataModel(a),
			Message:    fmt.Sprintf("Engineer %s is already assigned to manager %s", engineer.Username, manager.Username),
		}
	}

	existing, err := s.repo.FindUserAssignment(ctx, manager.ID, engineer.ID)
	if err != nil {
		return nil, internal.NewInternalError("Failed to load assignment", err)
	}
	if existing != nil {
		return already(existing), nil
	}

	a := &assignmentDatamodel.UserAssignment{ManagerID: manager.ID, EngineerID: engineer.ID}
	if err := s.repo.CreateUserAssignment(ctx, a); err != nil {
		// a concurrent create won the unique index
		if existing, ferr := s.repo.FindUserAssignment(ctx, manager.ID, engineer.ID); ferr == nil && existing != nil {
			return already(existing), nil
		}
		return nil, internal.NewInternalError("Failed to create assignment", err)
	}

	s.logger.Info("engineer assigned to manager", "manager_id", manager.ID, "engineer_id", engineer.ID, "by", p.ID)
	return &UserAssignmentResult{
		Assignment: UserAssignmentFromDataModel(a),
		Message:    fmt.Sprintf("Engineer %s assigned to manager %s", engineer.Username, manager.Username),
		Created:    true,
	}, nil
}

func (s *Service) ListUserAssignments(ctx context.Context, p *auth.Principal) ([]*UserAssignment, error) {
	if err := s.policy.Allow(p, auth.ActionAssignmentsManage, nil); err != nil {
		return nil, err
	}
	rows, err := s.repo.ListUserAssignments(ctx)
	if err != nil {
		return nil, internal.NewInternalError("Failed to list assignments", err)
	}
	out := make([]*UserAssignment, len(rows))
	for i, a := range rows {
		out[i] = UserAssignmentFromDataModel(a)
	}
	return out, nil
}

func (s *Service) GetUserAssignment(ctx context.Context, p *auth.Principal, id int64) (*UserAssignment, error) {
	if err := s.policy.Allow(p, auth.ActionAssignmentsManage, nil); err != nil {
		return nil, err
	}
	a, err := s.loadUserAssignment(ctx, id)
	if err != nil {
		return nil, err
	}
	return UserAssignmentFromDataModel(a), nil
}

func (s *Service) DeleteUserAssignment(ctx context.Context, p *auth.Principal, id int64) error {
	if err := s.policy.Allow(p, auth.ActionAssignmentsManage, nil); err != nil {
		return err
	}
	a, err := s.loadUserAssignment(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteUserAssignment(ctx, a); err != nil {
		return internal.NewInternalError("Failed to delete assignment", err)
	}
	s.logger.Info("engineer removed from manager", "manager_id", a.ManagerID, "engineer_id", a.EngineerID, "by", p.ID)
	return nil
}

func (s *Service) CreateMeterAssignment(ctx context.Context, p *auth.Principal, dto CreateMeterAssignmentDTO) (*MeterAssignment, error) {
	if err := s.policy.Allow(p, auth.ActionMeterAssignmentsManage, nil); err != nil {
		return nil, err
	}
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	if err := s.requireMeter(ctx, dto.MeterID); err != nil {
		return nil, err
	}
	if err := s.requireAssignee(ctx, "manager_id", dto.ManagerID, auth.RoleManager); err != nil {
		return nil, err
	}
	if dto.EngineerID != nil {
		if err := s.requireAssignee(ctx, "engineer_id", *dto.EngineerID, auth.RoleEngineer); err != nil {
			return nil, err
		}
	}
	if dto.PreviousAssignmentID != nil {
		prev, err := s.repo.GetMeterAssignment(ctx, *dto.PreviousAssignmentID)
		if err != nil {
			return nil, internal.NewInternalError("Failed to load assignment", err)
		}
		if prev == nil {
			return nil, internal.NewValidationFieldError("previous_assignment_id", "Previous assignment does not exist", internal.ErrCodeAssignmentNotFound)
		}
	}
	if err := s.ensureUniqueStatus(ctx, dto.MeterID, dto.ManagerID, dto.Status, 0); err != nil {
		return nil, err
	}

	a := &assignmentDatamodel.MeterAssignment{
		MeterID:              dto.MeterID,
		ManagerID:            dto.ManagerID,
		EngineerID:           dto.EngineerID,
		Status:               dto.Status,
		PreviousAssignmentID: dto.PreviousAssignmentID,
	}
	if err := s.repo.CreateMeterAssignment(ctx, a); err != nil {
		return nil, internal.NewInternalError("Failed to create meter assignment", err)
	}

	s.logger.Info("meter assigned to manager", "meter_id", a.MeterID, "manager_id", a.ManagerID, "status", a.Status)
	return MeterAssignmentFromDataModel(a), nil
}

func (s *Service) ListMeterAssignments(ctx context.Context, p *auth.Principal, filter MeterAssignmentFilter) ([]*MeterAssignment, error) {
	if err := s.policy.Allow(p, auth.ActionMeterAssignmentsManage, nil); err != nil {
		return nil, err
	}
	rows, err := s.repo.ListMeterAssignments(ctx, filter)
	if err != nil {
		return nil, internal.NewInternalError("Failed to list meter assignments", err)
	}
	return meterAssignmentsFromDataModels(rows), nil
}

func (s *Service) GetMeterAssignment(ctx context.Context, p *auth.Principal, id int64) (*MeterAssignment, error) {
	if err := s.policy.Allow(p, auth.ActionMeterAssignmentsManage, nil); err != nil {
		return nil, err
	}
	a, err := s.loadMeterAssignment(ctx, id)
	if err != nil {
		return nil, err
	}
	return MeterAssignmentFromDataModel(a), nil
}

func (s *Service) UpdateMeterAssignment(ctx context.Context, p *auth.Principal, id int64, dto UpdateMeterAssignmentDTO) (*MeterAssignment, error) {
	if err := s.policy.Allow(p, auth.ActionMeterAssignmentsManage, nil); err != nil {
		return nil, err
	}
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	a, err := s.loadMeterAssignment(ctx, id)
	if err != nil {
		return nil, err
	}

	if dto.Status != nil && *dto.Status != a.Status {
		if err := s.ensureUniqueStatus(ctx, a.MeterID, a.ManagerID, *dto.Status, a.ID); err != nil {
			return nil, err
		}
		a.Status = *dto.Status
	}
	switch {
	case dto.ClearEngineer:
		a.EngineerID = nil
	case dto.EngineerID != nil:
		if err := s.requireAssignee(ctx, "engineer_id", *dto.EngineerID, auth.RoleEngineer); err != nil {
			return nil, err
		}
		a.EngineerID = dto.EngineerID
	}

	if err := s.repo.UpdateMeterAssignment(ctx, a); err != nil {
		return nil, internal.NewInternalError("Failed to update meter assignment", err)
	}
	return MeterAssignmentFromDataModel(a), nil
}

func (s *Service) DeleteMeterAssignment(ctx context.Context, p *auth.Principal, id int64) error {
	if err := s.policy.Allow(p, auth.ActionMeterAssignmentsManage, nil); err != nil {
		return err
	}
	if _, err := s.loadMeterAssignment(ctx, id); err != nil {
		return err
	}
	if err := s.repo.DeleteMeterAssignment(ctx, id); err != nil {
		return internal.NewInternalError("Failed to delete meter assignment", err)
	}
	return nil
}

// Scope collects who may see a meter's telemetry.
func (s *Service) Scope(ctx context.Context, meterID int64) (*auth.Resource, error) {
	rows, err := s.repo.ListMeterAssignmentsByMeter(ctx, meterID)
	if err != nil {
		return nil, internal.NewInternalError("Failed to load meter scope", err)
	}
	res := &auth.Resource{}
	for _, a := range rows {
		res.MeterManagerIDs = append(res.MeterManagerIDs, a.ManagerID)
		if a.EngineerID != nil {
			res.MeterEngineerIDs = append(res.MeterEngineerIDs, *a.EngineerID)
		}
	}
	return res, nil
}

func (s *Service) userWithRole(ctx context.Context, id int64, role auth.Role) (*userDatamodel.User, error) {
	u, err := s.repo.GetUser(ctx, id)
	if err != nil {
		return nil, internal.NewInternalError("Failed to load user", err)
	}
	if u == nil || auth.Role(u.Role) != role {
		return nil, nil
	}
	return u, nil
}

func (s *Service) requireAssignee(ctx context.Context, field string, id int64, role auth.Role) error {
	u, err := s.repo.GetUser(ctx, id)
	if err != nil {
		return internal.NewInternalError("Failed to load user", err)
	}
	if u == nil {
		return internal.NewNotFoundError("User not found", internal.ErrCodeUserNotFound)
	}
	if auth.Role(u.Role) != role {
		msg := fmt.Sprintf("User %s must have role %s", u.Username, role)
		return internal.NewValidationFieldError(field, msg, internal.ErrCodeInvalidAssignee)
	}
	return nil
}

func (s *Service) requireMeter(ctx context.Context, id int64) error {
	m, err := s.repo.GetMeter(ctx, id)
	if err != nil {
		return internal.NewInternalError("Failed to load meter", err)
	}
	if m == nil {
		return internal.NewNotFoundError("Meter not found", internal.ErrCodeMeterNotFound)
	}
	return nil
}

func (s *Service) ensureUniqueStatus(ctx context.Context, meterID, managerID int64, status string, excludeID int64) error {
	exists, err := s.repo.MeterAssignmentExists(ctx, meterID, managerID, status, excludeID)
	if err != nil {
		return internal.NewInternalError("Failed to check meter assignment", err)
	}
	if exists {
		return internal.NewConflictError("Meter assignment with this meter, manager and status already exists", internal.ErrCodeDuplicateAssign)
	}
	return nil
}

func (s *Service) loadUserAssignment(ctx context.Context, id int64) (*assignmentDatamodel.UserAssignment, error) {
	a, err := s.repo.GetUserAssignment(ctx, id)
	if err != nil {
		return nil, internal.NewInternalError("Failed to load assignment", err)
	}
	if a == nil {
		return nil, internal.NewNotFoundError("Assignment not found", internal.ErrCodeAssignmentNotFound)
	}
	return a, nil
}

func (s *Service) loadMeterAssignment(ctx context.Context, id int64) (*assignmentDatamodel.MeterAssignment, error) {
	a, err := s.repo.GetMeterAssignment(ctx, id)
	if err != nil {
		return nil, internal.NewInternalError("Failed to load meter assignment", err)
	}
	if a == nil {
		return nil, internal.NewNotFoundError("Meter assignment not found", internal.ErrCodeAssignmentNotFound)
	}
	return a, nil
}
