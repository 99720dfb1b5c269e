package user

import (
	"strings"

	"github.com/frahmantamala/meter-fleet/internal"
	"github.com/frahmantamala/meter-fleet/internal/auth"
	"github.com/frahmantamala/meter-fleet/internal/core/common/validation"
)

// UpdateUserDTO is used for both PUT and PATCH; absent fields are left unchanged.
type UpdateUserDTO struct {
	Username    *string `json:"username"`
	Email       *string `json:"email"`
	FirstName   *string `json:"first_name"`
	LastName    *string `json:"last_name"`
	Role        *string `json:"role"`
	IsActive    *bool   `json:"is_active"`
	IsSuperuser *bool   `json:"is_superuser"`
}

func (d *UpdateUserDTO) Normalize() {
	trim := func(s *string) {
		if s != nil {
			*s = strings.TrimSpace(*s)
		}
	}
	trim(d.Username)
	trim(d.FirstName)
	trim(d.LastName)
	if d.Email != nil {
		*d.Email = strings.ToLower(strings.TrimSpace(*d.Email))
	}
	if d.Role != nil {
		*d.Role = strings.ToUpper(strings.TrimSpace(*d.Role))
	}
}

// TouchesPrivileges reports whether the update needs users:manage.
func (d UpdateUserDTO) TouchesPrivileges() bool {
	return d.Role != nil || d.IsActive != nil || d.IsSuperuser != nil
}

func (d UpdateUserDTO) Validate() *internal.AppError {
	v := validation.NewValidator()
	if d.Username != nil {
		v.Field("username", *d.Username).Required().MaxLength(150)
	}
	if d.Email != nil {
		v.Field("email", *d.Email).Required().Email()
	}
	if d.FirstName != nil {
		v.Field("first_name", *d.FirstName).MaxLength(150)
	}
	if d.LastName != nil {
		v.Field("last_name", *d.LastName).MaxLength(150)
	}
	if d.Role != nil {
		v.Field("role", *d.Role).OneOf(auth.RoleNames(), "Role must be ADMIN, MANAGER or ENGINEER", internal.ErrCodeInvalidRole)
	}
	return v.Validate()
}
