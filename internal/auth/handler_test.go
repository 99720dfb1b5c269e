package auth

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
	"golang.org/x/crypto/bcrypt"
)

type envelope struct {
	Details struct {
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	} `json:"details"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func decodeEnvelope(w *httptest.ResponseRecorder) envelope {
	var env envelope
	gomega.ExpectWithOffset(1, json.Unmarshal(w.Body.Bytes(), &env)).To(gomega.Succeed())
	return env
}

var _ = ginkgo.Describe("Handler", func() {
	var (
		handler  *Handler
		mockRepo *mockUserRepository
	)

	ginkgo.BeforeEach(func() {
		mockRepo = newMockUserRepository()
		tokenGen := NewJWTTokenGenerator("access", "refresh", time.Minute, time.Hour)
		handler = NewHandler(NewService(mockRepo, tokenGen, bcrypt.MinCost), nil)
	})

	post := func(h http.HandlerFunc, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
		w := httptest.NewRecorder()
		h(w, req)
		return w
	}

	ginkgo.It("signs up with a role-specific message", func() {
		w := post(handler.Signup, `{"username":"boss","email":"boss@example.com","password":"password1","confirm_password":"password1","first_name":"B","role":"MANAGER"}`)

		gomega.Expect(w.Code).To(gomega.Equal(http.StatusCreated))
		env := decodeEnvelope(w)
		gomega.Expect(env.Details.Message).To(gomega.Equal("MANAGER account created successfully"))

		var res AuthResult
		gomega.Expect(json.Unmarshal(env.Details.Data, &res)).To(gomega.Succeed())
		gomega.Expect(res.Tokens.Access).ToNot(gomega.BeEmpty())
		gomega.Expect(res.Tokens.Refresh).ToNot(gomega.BeEmpty())
	})

	ginkgo.It("rejects malformed JSON", func() {
		w := post(handler.Signup, `{"username":`)
		gomega.Expect(w.Code).To(gomega.Equal(http.StatusBadRequest))
		gomega.Expect(decodeEnvelope(w).Error.Code).To(gomega.Equal("INVALID_BODY"))
	})

	ginkgo.It("logs in and answers 401 on bad credentials", func() {
		w := post(handler.Login, `{"username":"engineer","password":"correct_password"}`)
		gomega.Expect(w.Code).To(gomega.Equal(http.StatusOK))
		gomega.Expect(decodeEnvelope(w).Details.Message).To(gomega.Equal("Login successful"))

		w = post(handler.Login, `{"username":"engineer","password":"nope"}`)
		gomega.Expect(w.Code).To(gomega.Equal(http.StatusUnauthorized))
		gomega.Expect(decodeEnvelope(w).Error.Message).To(gomega.Equal("Invalid credentials"))
	})

	ginkgo.Describe("AuthMiddleware", func() {
		var (
			seen *Principal
			next http.Handler
		)

		ginkgo.BeforeEach(func() {
			seen = nil
			next = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen, _ = PrincipalFromContext(r.Context())
				w.WriteHeader(http.StatusOK)
			})
		})

		call := func(header string) *httptest.ResponseRecorder {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			w := httptest.NewRecorder()
			handler.AuthMiddleware(next).ServeHTTP(w, req)
			return w
		}

		login := func() AuthResult {
			w := post(handler.Login, `{"username":"engineer","password":"correct_password"}`)
			var res AuthResult
			gomega.Expect(json.Unmarshal(decodeEnvelope(w).Details.Data, &res)).To(gomega.Succeed())
			return res
		}

		ginkgo.It("stores the principal for a valid access token", func() {
			res := login()
			w := call("Bearer " + res.Tokens.Access)

			gomega.Expect(w.Code).To(gomega.Equal(http.StatusOK))
			gomega.Expect(seen).ToNot(gomega.BeNil())
			gomega.Expect(seen.Username).To(gomega.Equal("engineer"))
		})

		ginkgo.It("requires the Bearer scheme", func() {
			w := call("Token abc")
			gomega.Expect(w.Code).To(gomega.Equal(http.StatusUnauthorized))
			gomega.Expect(decodeEnvelope(w).Error.Message).To(gomega.Equal("Authorization header must start with Bearer"))
		})

		ginkgo.It("rejects refresh tokens", func() {
			res := login()
			w := call("Bearer " + res.Tokens.Refresh)
			gomega.Expect(w.Code).To(gomega.Equal(http.StatusUnauthorized))
			gomega.Expect(decodeEnvelope(w).Error.Message).To(gomega.Equal("Invalid or expired token"))
			gomega.Expect(seen).To(gomega.BeNil())
		})

		ginkgo.It("rejects tokens of users that no longer exist", func() {
			res := login()
			delete(mockRepo.users, 1)

			w := call("Bearer " + res.Tokens.Access)
			gomega.Expect(w.Code).To(gomega.Equal(http.StatusUnauthorized))
			gomega.Expect(decodeEnvelope(w).Error.Message).To(gomega.Equal("User not found"))
		})

		ginkgo.It("serves /auth/me for the principal", func() {
			res := login()
			req := httptest.NewRequest(http.MethodGet, "/auth/me", bytes.NewReader(nil))
			req.Header.Set("Authorization", "Bearer "+res.Tokens.Access)
			w := httptest.NewRecorder()
			handler.AuthMiddleware(http.HandlerFunc(handler.Me)).ServeHTTP(w, req)

			gomega.Expect(w.Code).To(gomega.Equal(http.StatusOK))
			var account Account
			gomega.Expect(json.Unmarshal(decodeEnvelope(w).Details.Data, &account)).To(gomega.Succeed())
			gomega.Expect(account.ID).To(gomega.Equal(int64(1)))
		})
	})
})
