package user

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/frahmantamala/meter-fleet/internal/auth"
	"github.com/frahmantamala/meter-fleet/internal/transport"
)

type ServiceAPI interface {
	List(ctx context.Context, p *auth.Principal) ([]*User, error)
	Get(ctx context.Context, p *auth.Principal, id int64) (*User, error)
	Update(ctx context.Context, p *auth.Principal, id int64, dto UpdateUserDTO) (*User, error)
	Delete(ctx context.Context, p *auth.Principal, id int64) error
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(svc ServiceAPI, lg *slog.Logger) *Handler {
	return &Handler{
		BaseHandler: transport.NewBaseHandler(lg),
		Service:     svc,
	}
}

// ListUsers handles GET /users/ and GET /all-users/
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFromContext(r.Context())
	users, err := h.Service.List(r.Context(), p)
	if err != nil {
		h.HandleError(w, r, err)
		return
	}
	h.WriteDetails(w, http.StatusOK, "Users retrieved successfully", users)
}

func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, err := h.PathInt64(r, "id")
	if err != nil {
		h.HandleError(w, r, err)
		return
	}

	p, _ := auth.PrincipalFromContext(r.Context())
	u, err := h.Service.Get(r.Context(), p, id)
	if err != nil {
		h.HandleError(w, r, err)
		return
	}
	h.WriteDetails(w, http.StatusOK, "User retrieved successfully", u)
}

// UpdateUser serves both PUT and PATCH.
func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	id, err := h.PathInt64(r, "id")
	if err != nil {
		h.HandleError(w, r, err)
		return
	}

	var dto UpdateUserDTO
	if err := h.DecodeJSON(w, r, &dto); err != nil {
		h.HandleError(w, r, err)
		return
	}

	p, _ := auth.PrincipalFromContext(r.Context())
	u, err := h.Service.Update(r.Context(), p, id, dto)
	if err != nil {
		h.HandleError(w, r, err)
		return
	}
	h.WriteDetails(w, http.StatusOK, "User updated successfully", u)
}

func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := h.PathInt64(r, "id")
	if err != nil {
		h.HandleError(w, r, err)
		return
	}

	p, _ := auth.PrincipalFromContext(r.Context())
	if err := h.Service.Delete(r.Context(), p, id); err != nil {
		h.HandleError(w, r, err)
		return
	}
	h.WriteDetails(w, http.StatusOK, "User deleted successfully", nil)
}
