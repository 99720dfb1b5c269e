package user

import (
	"time"

	"github.com/frahmantamala/meter-fleet/internal/auth"
	userDatamodel "github.com/frahmantamala/meter-fleet/internal/core/datamodel/user"
)

// User is the public user record; the password hash never leaves the repository.
type User struct {
	ID          int64      `json:"id"`
	Username    string     `json:"username"`
	Email       string     `json:"email"`
	FirstName   string     `json:"first_name"`
	LastName    string     `json:"last_name"`
	Role        auth.Role  `json:"role"`
	IsActive    bool       `json:"is_active"`
	IsStaff     bool       `json:"is_staff"`
	IsSuperuser bool       `json:"is_superuser"`
	DateJoined  time.Time  `json:"date_joined"`
	LastLogin   *time.Time `json:"last_login"`
}

func FromDataModel(u *userDatamodel.User) *User {
	return &User{
		ID:          u.ID,
		Username:    u.Username,
		Email:       u.Email,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		Role:        auth.Role(u.Role),
		IsActive:    u.IsActive,
		IsStaff:     u.IsStaff,
		IsSuperuser: u.IsSuperuser,
		DateJoined:  u.DateJoined,
		LastLogin:   u.LastLogin,
	}
}

func FromDataModels(users []*userDatamodel.User) []*User {
	out := make([]*User, len(users))
	for i, u := range users {
		out[i] = FromDataModel(u)
	}
	return out
}
