package user

import (
	"context"
	"log/slog"

	"github.com/frahmantamala/meter-fleet/internal"
	"github.com/frahmantamala/meter-fleet/internal/auth"
	userDatamodel "github.com/frahmantamala/meter-fleet/internal/core/datamodel/user"
)

type Repository interface {
	List(ctx context.Context) ([]*userDatamodel.User, error)
	GetByID(ctx context.Context, id int64) (*userDatamodel.User, error)
	ExistsOther(ctx context.Context, id int64, username, email string) (bool, error)
	Update(ctx context.Context, u *userDatamodel.User) error
	// Delete removes the user together with the assignments that reference them.
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

func (s *Service) List(ctx context.Context, p *auth.Principal) ([]*User, error) {
	if err := s.policy.Allow(p, auth.ActionUsersList, nil); err != nil {
		return nil, err
	}
	users, err := s.repo.List(ctx)
	if err != nil {
		return nil, internal.NewInternalError("Failed to list users", err)
	}
	return FromDataModels(users), nil
}

func (s *Service) Get(ctx context.Context, p *auth.Principal, id int64) (*User, error) {
	if err := s.policy.Allow(p, auth.ActionUsersView, &auth.Resource{OwnerID: id}); err != nil {
		return nil, err
	}
	u, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return FromDataModel(u), nil
}

func (s *Service) Update(ctx context.Context, p *auth.Principal, id int64, dto UpdateUserDTO) (*User, error) {
	if err := s.policy.Allow(p, auth.ActionUsersUpdate, &auth.Resource{OwnerID: id}); err != nil {
		return nil, err
	}
	if dto.TouchesPrivileges() {
		if err := s.policy.Allow(p, auth.ActionUsersManage, nil); err != nil {
			return nil, err
		}
	}

	dto.Normalize()
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	u, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	if dto.Username != nil {
		u.Username = *dto.Username
	}
	if dto.Email != nil {
		u.Email = *dto.Email
	}
	if dto.Username != nil || dto.Email != nil {
		taken, err := s.repo.ExistsOther(ctx, u.ID, u.Username, u.Email)
		if err != nil {
			return nil, internal.NewInternalError("Failed to check existing users", err)
		}
		if taken {
			return nil, internal.NewConflictError("A user with that username or email already exists", internal.ErrCodeDuplicateUser)
		}
	}
	if dto.FirstName != nil {
		u.FirstName = *dto.FirstName
	}
	if dto.LastName != nil {
		u.LastName = *dto.LastName
	}
	if dto.Role != nil {
		u.Role = *dto.Role
	}
	if dto.IsActive != nil {
		u.IsActive = *dto.IsActive
	}
	if dto.IsSuperuser != nil {
		u.IsSuperuser = *dto.IsSuperuser
		u.IsStaff = u.IsStaff || *dto.IsSuperuser
	}

	if err := s.repo.Update(ctx, u); err != nil {
		return nil, internal.NewInternalError("Failed to update user", err)
	}

	s.logger.Info("user updated", "user_id", u.ID, "by", p.ID)
	return FromDataModel(u), nil
}

func (s *Service) Delete(ctx context.Context, p *auth.Principal, id int64) error {
	if err := s.policy.Allow(p, auth.ActionUsersDelete, nil); err != nil {
		return err
	}
	if _, err := s.load(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return internal.NewInternalError("Failed to delete user", err)
	}
	s.logger.Info("user deleted", "user_id", id, "by", p.ID)
	return nil
}

func (s *Service) load(ctx context.Context, id int64) (*userDatamodel.User, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, internal.NewInternalError("Failed to load user", err)
	}
	if u == nil {
		return nil, internal.NewNotFoundError("User not found", internal.ErrCodeUserNotFound)
	}
	return u, nil
}
