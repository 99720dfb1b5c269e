package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type Role string

const (
	RoleAdmin    Role = "ADMIN"
	RoleManager  Role = "MANAGER"
	RoleEngineer Role = "ENGINEER"
)

var Roles = []Role{RoleAdmin, RoleManager, RoleEngineer}

func (r Role) Valid() bool {
	for _, known := range Roles {
		if r == known {
			return true
		}
	}
	return false
}

func RoleNames() []string {
	names := make([]string, len(Roles))
	for i, r := range Roles {
		names[i] = string(r)
	}
	return names
}

// ParseRole accepts role names case-insensitively.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	return r, r.Valid()
}

// Principal is the authenticated user acting on a request.
type Principal struct {
	ID          int64
	Username    string
	Email       string
	Role        Role
	IsStaff     bool
	IsSuperuser bool
}

func (p *Principal) IsAdmin() bool {
	return p != nil && (p.IsSuperuser || p.Role == RoleAdmin)
}

// Account is the user record returned by signup, login and /auth/me.
type Account struct {
	ID          int64      `json:"id"`
	Username    string     `json:"username"`
	Email       string     `json:"email"`
	FirstName   string     `json:"first_name"`
	LastName    string     `json:"last_name"`
	Role        Role       `json:"role"`
	IsActive    bool       `json:"is_active"`
	IsStaff     bool       `json:"is_staff"`
	IsSuperuser bool       `json:"is_superuser"`
	DateJoined  time.Time  `json:"date_joined"`
	LastLogin   *time.Time `json:"last_login"`
}

func (a *Account) Principal() *Principal {
	return &Principal{
		ID:          a.ID,
		Username:    a.Username,
		Email:       a.Email,
		Role:        a.Role,
		IsStaff:     a.IsStaff,
		IsSuperuser: a.IsSuperuser,
	}
}

type TokenPair struct {
	Refresh string `json:"refresh"`
	Access  string `json:"access"`
}

type AuthResult struct {
	User   *Account  `json:"user"`
	Tokens TokenPair `json:"tokens"`
}

type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// Claims represents JWT token claims
type Claims struct {
	UserID    int64     `json:"user_id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	TokenType TokenType `json:"token_type"`
	jwt.RegisteredClaims
}

// TokenGenerator creates and validates signed tokens.
type TokenGenerator interface {
	GenerateAccessToken(a *Account) (string, error)
	GenerateRefreshToken(a *Account) (string, error)
	ValidateAccessToken(tokenString string) (*Claims, error)
	ValidateRefreshToken(tokenString string) (*Claims, error)
}

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)
