package telemetry

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/frahmantamala/meter-fleet/internal/auth"
	"github.com/frahmantamala/meter-fleet/internal/transport"
)

type ServiceAPI interface {
	Ingest(ctx context.Context, dto IngestDTO) (*Reading, error)
	List(ctx context.Context, p *auth.Principal, q ListQuery) ([]*Reading, error)
	MaxPageSize() int
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

// IngestMeterData is public: devices post without credentials.
func (h *Handler) IngestMeterData(w http.ResponseWriter, r *http.Request) {
	var dto IngestDTO
	if err := h.DecodeJSON(w, r, &dto); err != nil {
		h.HandleError(w, r, err)
		return
	}

	reading, err := h.Service.Ingest(r.Context(), dto)
	if err != nil {
		h.HandleError(w, r, err)
		return
	}
	h.WriteDetails(w, http.StatusCreated, "Meter data recorded successfully", reading)
}

func (h *Handler) ListMeterData(w http.ResponseWriter, r *http.Request) {
	q, appErr := ParseListQuery(r.URL.Query(), h.Service.MaxPageSize())
	if appErr != nil {
		h.HandleError(w, r, appErr)
		return
	}

	p, _ := auth.PrincipalFromContext(r.Context())
	readings, err := h.Service.List(r.Context(), p, q)
	if err != nil {
		h.HandleError(w, r, err)
		return
	}
	h.WriteDetails(w, http.StatusOK, "Meter data retrieved successfully", readings)
}
