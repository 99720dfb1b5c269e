package assignment

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/frahmantamala/meter-fleet/internal/auth"
	"github.com/frahmantamala/meter-fleet/internal/transport"
)

type ServiceAPI interface {
	CreateUserAssignment(ctx context.Context, p *auth.Principal, dto CreateUserAssignmentDTO) (*UserAssignmentResult, error)
	ListUserAssignments(ctx context.Context, p *auth.Principal) ([]*UserAssignment, error)
	GetUserAssignment(ctx context.Context, p *auth.Principal, id int64) (*UserAssignment, error)
	DeleteUserAssignment(ctx context.Context, p *auth.Principal, id int64) error

	CreateMeterAssignment(ctx context.Context, p *auth.Principal, dto CreateMeterAssignmentDTO) (*MeterAssignment, error)
	ListMeterAssignments(ctx context.Context, p *auth.Principal, filter MeterAssignmentFilter) ([]*MeterAssignment, error)
	GetMeterAssignment(ctx context.Context, p *auth.Principal, id int64) (*MeterAssignment, error)
	UpdateMeterAssignment(ctx context.Context, p *auth.Principal, id int64, dto UpdateMeterAssignmentDTO) (*MeterAssignment, error)
	DeleteMeterAssignment(ctx context.Context, p *auth.Principal, id int64) error

	Team(ctx context.Context, p *auth.Principal) ([]*TeamMember, error)
	ManagerMeters(ctx context.Context, p *auth.Principal) (*ManagerMeters, error)
	AssignMeter(ctx context.Context, p *auth.Principal, dto AssignMeterDTO) (*AssignMeterResult, error)
	UnassignMeter(ctx context.Context, p *auth.Principal, dto AssignMeterDTO) (*AssignMeterResult, error)
	EngineerMeters(ctx context.Context, p *auth.Principal) (*EngineerMeters, error)
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

func (h *Handler) CreateUserAssignment(w http.ResponseWriter, r *http.Request) {
	var dto CreateUserAssignmentDTO
	if err := h.DecodeJSON(w, r, &dto); err != nil {
		h.HandleError(w, r, err)
		return
	}

	p, _ := auth.PrincipalFromContext(r.Context())
	res, err := h.Service.CreateUserAssignment(r.Context(), p, dto)
	if err != nil {
		h.HandleError(w, r, err)
		return
	}

	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	h.WriteDetails(w, status, res.Message, res.Assignment)
}

func (h *Handler) ListUserAssignments(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFromContext(r.Context())
	list, err := h.Service.ListUserAssignments(r.Context(), p)
	if err != nil {
		h.HandleError(w, r, err)
		return
	}
	h.WriteDetails(w, http.StatusOK, "Assignments retrieved successfully", list)
}

func (h *Handler) GetUserAssignment(w http.ResponseWriter, r *http.Request) {
	id, err := h.PathInt64(r, "id")
	if err != nil {
		h.HandleError(w, r, err)
		return
	}
	p, _ := auth.PrincipalFromContext(r.Context())
	a, err := h.Service.GetUserAssignment(r.Context(), p, id)
	if err != nil {
		h.HandleError(w, r, err)
		return
	}
	h.WriteDetails(w, http.StatusOK, "Assignment retrieved successfully", a)
}

func (h *Handler) DeleteUserAssignment(w http.ResponseWriter, r *http.Request) {
	id, err := h.PathInt64(r, "id")
	if err != nil {
		h.HandleError(w, r, err)
		return
	}
	p, _ := auth.PrincipalFromContext(r.Context())
	if err := h.Service.DeleteUserAssignment(r.Context(), p, id); err != nil {
		h.HandleError(w, r, err)
		return
	}
	h.WriteDetails(w, http.StatusOK, "Assignment deleted successfully", nil)
}

func (h *Handler) CreateMeterAssignment(w http.ResponseWriter, r *http.Request) {
	var dto CreateMeterAssignmentDTO
	if err := h.DecodeJSON(w, r, &dto); err != nil {
		h.HandleError(w, r, err)
		return
	}
	p, _ := auth.PrincipalFromContext(r.Context())
	a, err := h.Service.CreateMeterAssignment(r.Context(), p, dto)
	if err != nil {
		h.HandleError(w, r, err)
		return
	}
	h.WriteDetails(w, http.StatusCreated, "Meter assignment created successfully", a)
}

// ListMeterAssignments accepts ?meter_id=<device id>&status=.
func (h *Handler) ListMeterAssignments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := MeterAssignmentFilter{DeviceID: q.Get("meter_id"), Status: q.Get("status")}

	p, _ := auth.PrincipalFromContext(r.Context())
	list, err := h.Service.ListMeterAssignments(r.Context(), p, filter)
	if err != nil {
		h.HandleError(w, r, err)
		return
	}
	h.WriteDetails(w, http.StatusOK, "Meter assignments retrieved successfully", list)
}

func (h *Handler) GetMeterAssignment(w http.ResponseWriter, r *http.Request) {
	id, err := h.PathInt64(r, "id")
	if err != nil {
		h.HandleError(w, r, err)
		return
	}
	p, _ := auth.PrincipalFromContext(r.Context())
	a, err := h.Service.GetMeterAssignment(r.Context(), p, id)
	if err != nil {
		h.HandleError(w, r, err)
		return
	}
	h.WriteDetails(w, http.StatusOK, "Meter assignment retrieved successfully", a)
}

func (h *Handler) UpdateMeterAssignment(w http.ResponseWriter, r *http.Request) {
	id, err := h.PathInt64(r, "id")
	if err != nil {
		h.HandleError(w, r, err)
		return
	}
	var dto UpdateMeterAssignmentDTO
	if err := h.DecodeJSON(w, r, &dto); err != nil {
		h.HandleError(w, r, err)
		return
	}
	p, _ := auth.PrincipalFromContext(r.Context())
	a, err := h.Service.UpdateMeterAssignment(r.Context(), p, id, dto)
	if err != nil {
		h.HandleError(w, r, err)
		return
	}
	h.WriteDetails(w, http.StatusOK, "Meter assignment updated successfully", a)
}

func (h *Handler) DeleteMeterAssignment(w http.ResponseWriter, r *http.Request) {
	id, err := h.PathInt64(r, "id")
	if err != nil {
		h.HandleError(w, r, err)
		return
	}
	p, _ := auth.PrincipalFromContext(r.Context())
	if err := h.Service.DeleteMeterAssignment(r.Context(), p, id); err != nil {
		h.HandleError(w, r, err)
		return
	}
	h.WriteDetails(w, http.StatusOK, "Meter assignment deleted successfully", nil)
}

// Team handles GET /manager/engineers/
func (h *Handler) Team(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFromContext(r.Context())
	team, err := h.Service.Team(r.Context(), p)
	if err != nil {
		h.HandleError(w, r, err)
		return
	}
	h.WriteDetails(w, http.StatusOK, "Assigned engineers retrieved successfully", team)
}

// ManagerMeters handles GET /manager/meters/
func (h *Handler) ManagerMeters(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFromContext(r.Context())
	res, err := h.Service.ManagerMeters(r.Context(), p)
	if err != nil {
		h.HandleError(w, r, err)
		return
	}
	h.WriteDetails(w, http.StatusOK, "Assigned meters retrieved successfully", res)
}

func (h *Handler) AssignMeter(w http.ResponseWriter, r *http.Request) {
	var dto AssignMeterDTO
	if err := h.DecodeJSON(w, r, &dto); err != nil {
		h.HandleError(w, r, err)
		return
	}
	p, _ := auth.PrincipalFromContext(r.Context())
	res, err := h.Service.AssignMeter(r.Context(), p, dto)
	if err != nil {
		h.HandleError(w, r, err)
		return
	}
	h.WriteDetails(w, http.StatusOK, "Meter assigned to engineer successfully", res)
}

func (h *Handler) UnassignMeter(w http.ResponseWriter, r *http.Request) {
	var dto AssignMeterDTO
	if err := h.DecodeJSON(w, r, &dto); err != nil {
		h.HandleError(w, r, err)
		return
	}
	p, _ := auth.PrincipalFromContext(r.Context())
	res, err := h.Service.UnassignMeter(r.Context(), p, dto)
	if err != nil {
		h.HandleError(w, r, err)
		return
	}
	h.WriteDetails(w, http.StatusOK, "Meter unassigned from engineer successfully", res)
}

// EngineerMeters handles GET /engineer/meters/
func (h *Handler) EngineerMeters(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFromContext(r.Context())
	res, err := h.Service.EngineerMeters(r.Context(), p)
	if err != nil {
		h.HandleError(w, r, err)
		return
	}
	h.WriteDetails(w, http.StatusOK, "Meters assigned to the engineer", res)
}
