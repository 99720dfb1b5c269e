package auth

import (
	"strings"

	"github.com/frahmantamala/meter-fleet/internal"
	"github.com/frahmantamala/meter-fleet/internal/core/common/validation"
)

const roleMessage = "Role must be ADMIN, MANAGER or ENGINEER"

// SignupDTO is the body accepted by /auth/signup and POST /users/.
type SignupDTO struct {
	Username        string `json:"username"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	Role            string `json:"role"`
}

// LoginDTO is the transport shape used by the HTTP handler to accept login requests.
type LoginDTO struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// RefreshTokenDTO for refresh token requests
type RefreshTokenDTO struct {
	Refresh string `json:"refresh"`
}

func (d *SignupDTO) Normalize() {
	d.Username = strings.TrimSpace(d.Username)
	d.Email = strings.ToLower(strings.TrimSpace(d.Email))
	d.FirstName = strings.TrimSpace(d.FirstName)
	d.LastName = strings.TrimSpace(d.LastName)
	d.Role = strings.ToUpper(strings.TrimSpace(d.Role))
	if d.Role == "" {
		d.Role = string(RoleEngineer)
	}
}

func (d SignupDTO) Validate() *internal.AppError {
	v := validation.NewValidator()
	v.Field("username", d.Username).Required().MaxLength(150)
	v.Field("email", d.Email).Required().Email()
	v.Field("password", d.Password).Required().MinLength(8).MaxLength(128)
	v.Field("confirm_password", d.ConfirmPassword).Required().Custom(func(value interface{}) *internal.AppError {
		if value.(string) != d.Password {
			return internal.NewValidationFieldError("confirm_password", "Passwords do not match", internal.ErrCodePasswordMismatch)
		}
		return nil
	})
	v.Field("first_name", d.FirstName).Required().MaxLength(150)
	v.Field("last_name", d.LastName).MaxLength(150)
	v.Field("role", d.Role).OneOf(RoleNames(), roleMessage, internal.ErrCodeInvalidRole)
	return v.Validate()
}

// Validate checks required fields.
func (d LoginDTO) Validate() *internal.AppError {
	v := validation.NewValidator()
	v.Field("username", d.Username).Required()
	v.Field("password", d.Password).Required()
	return v.Validate()
}

func (d RefreshTokenDTO) Validate() *internal.AppError {
	v := validation.NewValidator()
	v.Field("refresh", d.Refresh).Required()
	return v.Validate()
}
