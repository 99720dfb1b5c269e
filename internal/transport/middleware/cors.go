package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

// CORS allows browser dashboards on the configured origins to call the API.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	return cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", TraceHeader},
		ExposedHeaders:   []string{TraceHeader, "Content-Disposition"},
		AllowCredentials: false,
		MaxAge:           300,
	})
}
