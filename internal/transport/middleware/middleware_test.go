package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/frahmantamala/meter-fleet/internal"
	"github.com/frahmantamala/meter-fleet/internal/auth"
	"github.com/frahmantamala/meter-fleet/internal/transport/middleware"
	"github.com/frahmantamala/meter-fleet/pkg/logger"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestMiddleware(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Middleware Suite")
}

var ok = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
})

func serve(h http.Handler, r *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

var _ = Describe("RequestID", func() {
	It("keeps a caller supplied trace id", func() {
		var seen string
		h := middleware.RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = internal.TraceIDFromContext(r.Context())
		}))
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(middleware.TraceHeader, "trace-123")

		w := serve(h, req)
		Expect(seen).To(Equal("trace-123"))
		Expect(w.Header().Get(middleware.TraceHeader)).To(Equal("trace-123"))
	})

	It("mints one when the caller sends none", func() {
		w := serve(middleware.RequestID(ok), httptest.NewRequest(http.MethodGet, "/", nil))
		Expect(w.Header().Get(middleware.TraceHeader)).To(HaveLen(36))
	})
})

var _ = Describe("RecoveryMiddleware", func() {
	It("turns a panic into a 500 envelope", func() {
		h := middleware.RecoveryMiddleware(logger.Discard())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			panic("boom")
		}))
		w := serve(h, httptest.NewRequest(http.MethodGet, "/", nil))
		Expect(w.Code).To(Equal(http.StatusInternalServerError))
		Expect(w.Body.String()).To(ContainSubstring(`"error"`))
		Expect(w.Body.String()).NotTo(ContainSubstring("boom"))
	})
})

var _ = Describe("RequireRoles", func() {
	guard := middleware.RequireRoles(logger.Discard(), auth.RoleAdmin)

	withPrincipal := func(p *auth.Principal) *http.Request {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		return req.WithContext(auth.WithPrincipal(req.Context(), p))
	}

	It("rejects anonymous requests", func() {
		w := serve(guard(ok), httptest.NewRequest(http.MethodGet, "/", nil))
		Expect(w.Code).To(Equal(http.StatusUnauthorized))
	})

	It("forbids other roles", func() {
		w := serve(guard(ok), withPrincipal(&auth.Principal{ID: 2, Role: auth.RoleEngineer}))
		Expect(w.Code).To(Equal(http.StatusForbidden))
	})

	It("admits the role and superusers", func() {
		Expect(serve(guard(ok), withPrincipal(&auth.Principal{ID: 1, Role: auth.RoleAdmin})).Code).To(Equal(http.StatusNoContent))
		Expect(serve(guard(ok), withPrincipal(&auth.Principal{ID: 3, Role: auth.RoleManager, IsSuperuser: true})).Code).To(Equal(http.StatusNoContent))
	})
})

var _ = Describe("CORS", func() {
	It("answers preflight for allowed origins only", func() {
		h := middleware.CORS([]string{"https://dash.example.com"})(ok)

		preflight := func(origin string) *httptest.ResponseRecorder {
			req := httptest.NewRequest(http.MethodOptions, "/api/meters", nil)
			req.Header.Set("Origin", origin)
			req.Header.Set("Access-Control-Request-Method", http.MethodGet)
			return serve(h, req)
		}

		Expect(preflight("https://dash.example.com").Header().Get("Access-Control-Allow-Origin")).To(Equal("https://dash.example.com"))
		Expect(preflight("https://evil.example.com").Header().Get("Access-Control-Allow-Origin")).To(BeEmpty())
	})
})
