package meter

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/frahmantamala/meter-fleet/internal/auth"
	"github.com/frahmantamala/meter-fleet/internal/transport"
	"github.com/go-chi/chi"
)

type ServiceAPI interface {
	List(ctx context.Context, p *auth.Principal) ([]*Meter, error)
	Get(ctx context.Context, p *auth.Principal, deviceID string) (*Meter, error)
	Create(ctx context.Context, p *auth.Principal, dto CreateMeterDTO) (*Meter, error)
	Update(ctx context.Context, p *auth.Principal, deviceID string, dto UpdateMeterDTO) (*Meter, error)
	Delete(ctx context.Context, p *auth.Principal, deviceID string) error
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

func (h *Handler) ListMeters(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFromContext(r.Context())
	meters, err := h.Service.List(r.Context(), p)
	if err != nil {
		h.HandleError(w, r, err)
		return
	}
	h.WriteDetails(w, http.StatusOK, "Meters retrieved successfully", meters)
}

func (h *Handler) CreateMeter(w http.ResponseWriter, r *http.Request) {
	var dto CreateMeterDTO
	if err := h.DecodeJSON(w, r, &dto); err != nil {
		h.HandleError(w, r, err)
		return
	}

	p, _ := auth.PrincipalFromContext(r.Context())
	m, err := h.Service.Create(r.Context(), p, dto)
	if err != nil {
		h.HandleError(w, r, err)
		return
	}
	h.WriteDetails(w, http.StatusCreated, "Meter created successfully", m)
}

func (h *Handler) GetMeter(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFromContext(r.Context())
	m, err := h.Service.Get(r.Context(), p, chi.URLParam(r, "device_id"))
	if err != nil {
		h.HandleError(w, r, err)
		return
	}
	h.WriteDetails(w, http.StatusOK, "Meter retrieved successfully", m)
}

func (h *Handler) UpdateMeter(w http.ResponseWriter, r *http.Request) {
	var dto UpdateMeterDTO
	if err := h.DecodeJSON(w, r, &dto); err != nil {
		h.HandleError(w, r, err)
		return
	}

	p, _ := auth.PrincipalFromContext(r.Context())
	m, err := h.Service.Update(r.Context(), p, chi.URLParam(r, "device_id"), dto)
	if err != nil {
		h.HandleError(w, r, err)
		return
	}
	h.WriteDetails(w, http.StatusOK, "Meter updated successfully", m)
}

func (h *Handler) DeleteMeter(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "device_id")
	p, _ := auth.PrincipalFromContext(r.Context())
	if err := h.Service.Delete(r.Context(), p, deviceID); err != nil {
		h.HandleError(w, r, err)
		return
	}
	h.WriteDetails(w, http.StatusOK, fmt.Sprintf("Meter with device ID '%s' was successfully deleted", deviceID), nil)
}
