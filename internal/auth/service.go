package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/frahmantamala/meter-fleet/internal"
	"github.com/frahmantamala/meter-fleet/internal/core/datamodel/user"
	"golang.org/x/crypto/bcrypt"
)

// Repository is the slice of user storage the auth flows need. Lookups
// return nil, nil when the user does not exist.
type Repository interface {
	FindByUsername(ctx context.Context, username string) (*user.User, error)
	FindByID(ctx context.Context, id int64) (*user.User, error)
	ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error)
	Create(ctx context.Context, u *user.User) error
	TouchLastLogin(ctx context.Context, id int64, at time.Time) error
}

type ServiceAPI interface {
	Signup(ctx context.Context, dto SignupDTO) (*AuthResult, error)
	Login(ctx context.Context, dto LoginDTO) (*AuthResult, error)
	Refresh(ctx context.Context, dto RefreshTokenDTO) (*TokenPair, error)
	ValidateAccessToken(token string) (*Claims, error)
	LoadPrincipal(ctx context.Context, claims *Claims) (*Principal, error)
	Me(ctx context.Context, p *Principal) (*Account, error)
}

// Service is the main auth service with dependencies
type Service struct {
	repo           Repository
	tokenGenerator TokenGenerator
	bcryptCost     int
	now            func() time.Time
}

// NewService creates a new auth service
func NewService(repo Repository, tokenGen TokenGenerator, bcryptCost int) *Service {
	if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		bcryptCost = bcrypt.DefaultCost
	}
	return &Service{
		repo:           repo,
		tokenGenerator: tokenGen,
		bcryptCost:     bcryptCost,
		now:            time.Now,
	}
}

func (s *Service) Signup(ctx context.Context, dto SignupDTO) (*AuthResult, error) {
	dto.Normalize()
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	exists, err := s.repo.ExistsByUsernameOrEmail(ctx, dto.Username, dto.Email)
	if err != nil {
		return nil, internal.NewInternalError("Failed to check existing users", err)
	}
	if exists {
		return nil, internal.NewConflictError("A user with that username or email already exists", internal.ErrCodeDuplicateUser)
	}

	hash, err := s.HashPassword(dto.Password)
	if err != nil {
		return nil, internal.NewInternalError("Failed to hash password", err)
	}

	role := Role(dto.Role)
	u := &user.User{
		Username:     dto.Username,
		Email:        dto.Email,
		FirstName:    dto.FirstName,
		LastName:     dto.LastName,
		Role:         string(role),
		PasswordHash: hash,
		IsActive:     true,
		IsStaff:      role == RoleAdmin,
		IsSuperuser:  role == RoleAdmin,
	}
	if err := s.repo.Create(ctx, u); err != nil {
		return nil, internal.NewInternalError("Failed to create user", err)
	}

	return s.issue(ToAccount(u))
}

func (s *Service) Login(ctx context.Context, dto LoginDTO) (*AuthResult, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	u, err := s.repo.FindByUsername(ctx, dto.Username)
	if err != nil {
		return nil, internal.NewInternalError("Failed to load user", err)
	}
	if u == nil {
		return nil, internal.ErrInvalidCredentials()
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(dto.Password)); err != nil {
		return nil, internal.ErrInvalidCredentials()
	}
	if !u.IsActive {
		return nil, internal.ErrUserInactive()
	}

	now := s.now().UTC()
	if err := s.repo.TouchLastLogin(ctx, u.ID, now); err != nil {
		return nil, internal.NewInternalError("Failed to record login", err)
	}
	u.LastLogin = &now

	return s.issue(ToAccount(u))
}

// Refresh validates a refresh token against the current user record and rotates the pair.
func (s *Service) Refresh(ctx context.Context, dto RefreshTokenDTO) (*TokenPair, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	claims, err := s.tokenGenerator.ValidateRefreshToken(dto.Refresh)
	if err != nil {
		return nil, tokenError(err)
	}

	u, err := s.repo.FindByID(ctx, claims.UserID)
	if err != nil {
		return nil, internal.NewInternalError("Failed to load user", err)
	}
	if u == nil {
		return nil, internal.NewUnauthorizedError("User not found", internal.ErrCodeUserNotFound)
	}
	if !u.IsActive {
		return nil, internal.ErrUserInactive()
	}

	res, err := s.issue(ToAccount(u))
	if err != nil {
		return nil, err
	}
	return &res.Tokens, nil
}

func (s *Service) ValidateAccessToken(token string) (*Claims, error) {
	claims, err := s.tokenGenerator.ValidateAccessToken(token)
	if err != nil {
		return nil, tokenError(err)
	}
	return claims, nil
}

// LoadPrincipal resolves token claims to the live user; role changes take effect
// on the next request rather than at token expiry.
func (s *Service) LoadPrincipal(ctx context.Context, claims *Claims) (*Principal, error) {
	u, err := s.repo.FindByID(ctx, claims.UserID)
	if err != nil {
		return nil, internal.NewInternalError("Authentication error", err)
	}
	if u == nil || !u.IsActive {
		return nil, internal.NewUnauthorizedError("User not found", internal.ErrCodeUserNotFound)
	}
	return ToAccount(u).Principal(), nil
}

func (s *Service) Me(ctx context.Context, p *Principal) (*Account, error) {
	u, err := s.repo.FindByID(ctx, p.ID)
	if err != nil {
		return nil, internal.NewInternalError("Failed to load user", err)
	}
	if u == nil {
		return nil, internal.NewNotFoundError("User not found", internal.ErrCodeUserNotFound)
	}
	return ToAccount(u), nil
}

// HashPassword creates a bcrypt hash of the password
func (s *Service) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func (s *Service) issue(a *Account) (*AuthResult, error) {
	access, err := s.tokenGenerator.GenerateAccessToken(a)
	if err != nil {
		return nil, internal.NewInternalError("Failed to issue token", err)
	}
	refresh, err := s.tokenGenerator.GenerateRefreshToken(a)
	if err != nil {
		return nil, internal.NewInternalError("Failed to issue token", err)
	}
	return &AuthResult{
		User:   a,
		Tokens: TokenPair{Refresh: refresh, Access: access},
	}, nil
}

func tokenError(err error) error {
	switch {
	case errors.Is(err, ErrTokenExpired):
		return internal.NewUnauthorizedError("Invalid or expired token", internal.ErrCodeTokenExpired)
	case errors.Is(err, ErrInvalidToken):
		return internal.ErrInvalidToken()
	default:
		return internal.ErrInvalidToken().WithCause(fmt.Errorf("validate token: %w", err))
	}
}

// ToAccount converts the stored user into its public representation.
func ToAccount(u *user.User) *Account {
	return &Account{
		ID:          u.ID,
		Username:    u.Username,
		Email:       u.Email,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		Role:        Role(u.Role),
		IsActive:    u.IsActive,
		IsStaff:     u.IsStaff,
		IsSuperuser: u.IsSuperuser,
		DateJoined:  u.DateJoined,
		LastLogin:   u.LastLogin,
	}
}

// HashPassword hashes with the given cost; used by the seeder.
func HashPassword(password string, cost int) (string, error) {
	return NewService(nil, nil, cost).HashPassword(password)
}
