package middleware

import (
	"net/http"

	"github.com/frahmantamala/meter-fleet/internal"
	"github.com/frahmantamala/meter-fleet/pkg/logger"

	"github.com/google/uuid"
)

const TraceHeader = "X-Trace-ID"

func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID := r.Header.Get(TraceHeader)
		if traceID == "" || len(traceID) > 64 {
			traceID = uuid.NewString()
		}

		// inject into context
		ctx := internal.ContextWithTraceID(r.Context(), traceID)
		ctx = logger.With(ctx, "traceID", traceID)

		// propagate back to response
		w.Header().Set(TraceHeader, traceID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
