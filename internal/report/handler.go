package report

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/frahmantamala/meter-fleet/internal/auth"
	"github.com/frahmantamala/meter-fleet/internal/transport"
	"github.com/go-chi/chi"
)

type ServiceAPI interface {
	Generate(ctx context.Context, p *auth.Principal, kind Kind, dto GenerateDTO) (*Result, error)
	Download(ctx context.Context, name string) (io.ReadCloser, error)
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

func (h *Handler) GenerateMeterReport(w http.ResponseWriter, r *http.Request) {
	h.generate(w, r, KindMeter, "Meter report generated successfully")
}

func (h *Handler) GenerateAlarmReport(w http.ResponseWriter, r *http.Request) {
	h.generate(w, r, KindAlarm, "Alarm report generated successfully")
}

func (h *Handler) generate(w http.ResponseWriter, r *http.Request, kind Kind, message string) {
	var dto GenerateDTO
	if err := h.DecodeJSON(w, r, &dto); err != nil {
		h.HandleError(w, r, err)
		return
	}

	p, _ := auth.PrincipalFromContext(r.Context())
	res, err := h.Service.Generate(r.Context(), p, kind, dto)
	if err != nil {
		h.HandleError(w, r, err)
		return
	}
	h.WriteDetails(w, http.StatusCreated, message, res)
}

// Download is public; the unguessable file name is the credential.
func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "file_name")
	body, err := h.Service.Download(r.Context(), name)
	if err != nil {
		h.HandleError(w, r, err)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", contentTypeXLSX)
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		h.Logger.Warn("report download interrupted", "file_name", name, "error", err)
	}
}
