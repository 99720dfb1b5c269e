package transport

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/frahmantamala/meter-fleet/internal"
	"github.com/frahmantamala/meter-fleet/pkg/logger"
	"github.com/go-chi/chi"
)

const maxBodyBytes = 1 << 20

// BaseHandler provides common functionality for HTTP handlers
type BaseHandler struct {
	Logger *slog.Logger
}

// Envelope is the success body shape shared by every endpoint.
type Envelope struct {
	Details Details `json:"details"`
}

type Details struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// NewBaseHandler creates a base handler with logger
func NewBaseHandler(lg *slog.Logger) *BaseHandler {
	if lg == nil {
		lg = logger.LoggerWrapper()
	}
	return &BaseHandler{Logger: lg}
}

// WriteJSON writes a JSON response
func (h *BaseHandler) WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.Logger.Error("failed to encode JSON response", "error", err)
	}
}

// WriteDetails writes the {"details": {"message", "data"}} envelope.
func (h *BaseHandler) WriteDetails(w http.ResponseWriter, status int, message string, data interface{}) {
	h.WriteJSON(w, status, Envelope{Details: Details{Message: message, Data: data}})
}

// WriteError writes an error response
func (h *BaseHandler) WriteError(w http.ResponseWriter, err *internal.AppError) {
	status, body := err.ToHTTPResponse()
	h.WriteJSON(w, status, body)
}

// HandleError maps any error onto the error envelope. Unknown errors become 500s
// and their cause is logged, never returned.
func (h *BaseHandler) HandleError(w http.ResponseWriter, r *http.Request, err error) {
	lg := logger.From(r.Context())
	if lg == nil {
		lg = h.Logger
	}

	appErr, ok := internal.IsAppError(err)
	if !ok {
		appErr = internal.NewInternalError("Internal server error", err)
	}

	switch {
	case appErr.StatusCode >= http.StatusInternalServerError:
		lg.Error("request failed", "path", r.URL.Path, "status", appErr.StatusCode, "error", err)
	default:
		lg.Warn("request rejected", "path", r.URL.Path, "status", appErr.StatusCode, "code", appErr.Code, "message", appErr.GetDetailedMessage())
	}

	h.WriteError(w, appErr)
}

// DecodeJSON reads a bounded JSON body into dst.
func (h *BaseHandler) DecodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	if r.Body == nil {
		return internal.NewValidationError("Request body is required", internal.ErrCodeInvalidBody)
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return internal.NewValidationError("Request body is required", internal.ErrCodeInvalidBody)
		}
		return internal.NewValidationError("Invalid request body", internal.ErrCodeInvalidBody).WithCause(err)
	}
	return nil
}

// PathInt64 parses a numeric chi URL parameter.
func (h *BaseHandler) PathInt64(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, internal.NewValidationFieldError(name, name+" must be a positive integer", internal.ErrCodeValidationFailed)
	}
	return id, nil
}

// ExtractTokenFromHeader extracts Bearer token from Authorization header
func (h *BaseHandler) ExtractTokenFromHeader(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(authHeader[len("Bearer "):])
}
