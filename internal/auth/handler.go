package auth

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/frahmantamala/meter-fleet/internal"
	"github.com/frahmantamala/meter-fleet/internal/transport"
	"github.com/frahmantamala/meter-fleet/pkg/logger"
)

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

func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var dto SignupDTO
	if err := h.DecodeJSON(w, r, &dto); err != nil {
		h.HandleError(w, r, err)
		return
	}

	res, err := h.Service.Signup(r.Context(), dto)
	if err != nil {
		h.HandleError(w, r, err)
		return
	}

	logger.From(r.Context()).Info("account created", "user_id", res.User.ID, "role", res.User.Role)
	h.WriteDetails(w, http.StatusCreated, fmt.Sprintf("%s account created successfully", res.User.Role), res)
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var dto LoginDTO
	if err := h.DecodeJSON(w, r, &dto); err != nil {
		h.HandleError(w, r, err)
		return
	}

	res, err := h.Service.Login(r.Context(), dto)
	if err != nil {
		h.HandleError(w, r, err)
		return
	}

	h.WriteDetails(w, http.StatusOK, "Login successful", res)
}

func (h *Handler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var dto RefreshTokenDTO
	if err := h.DecodeJSON(w, r, &dto); err != nil {
		h.HandleError(w, r, err)
		return
	}

	tokens, err := h.Service.Refresh(r.Context(), dto)
	if err != nil {
		h.HandleError(w, r, err)
		return
	}

	h.WriteDetails(w, http.StatusOK, "Token refreshed successfully", tokens)
}

// Logout is advisory: tokens are stateless and simply expire.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.WriteDetails(w, http.StatusOK, "Logged out successfully", nil)
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFromContext(r.Context())
	account, err := h.Service.Me(r.Context(), p)
	if err != nil {
		h.HandleError(w, r, err)
		return
	}
	h.WriteDetails(w, http.StatusOK, "Current user", account)
}

func (h *Handler) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			h.WriteError(w, internal.NewUnauthorizedError("Authentication credentials were not provided", internal.ErrCodeMissingToken))
			return
		}
		if !strings.HasPrefix(header, "Bearer ") {
			h.WriteError(w, internal.NewUnauthorizedError("Authorization header must start with Bearer", internal.ErrCodeInvalidToken))
			return
		}

		token := h.ExtractTokenFromHeader(r)
		claims, err := h.Service.ValidateAccessToken(token)
		if err != nil {
			h.Logger.Warn("auth middleware: token validation failed", "error", err)
			h.WriteError(w, internal.ErrInvalidToken())
			return
		}

		p, err := h.Service.LoadPrincipal(r.Context(), claims)
		if err != nil {
			if appErr, ok := internal.IsAppError(err); ok && appErr.StatusCode == http.StatusUnauthorized {
				h.WriteError(w, appErr)
				return
			}
			h.Logger.Error("auth middleware: failed to load principal", "user_id", claims.UserID, "error", err)
			h.WriteError(w, internal.NewUnauthorizedError("Authentication error", internal.ErrCodeInvalidToken))
			return
		}

		ctx := WithPrincipal(r.Context(), p)
		ctx = logger.With(ctx, "user_id", p.ID, "role", p.Role)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
