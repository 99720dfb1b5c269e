package auth

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/frahmantamala/meter-fleet/internal"
	"github.com/frahmantamala/meter-fleet/internal/core/datamodel/user"
	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
	"golang.org/x/crypto/bcrypt"
)

func TestAuth(t *testing.T) {
	gomega.RegisterFailHandler(ginkgo.Fail)
	ginkgo.RunSpecs(t, "Auth Module Suite")
}

// Mock Repository for testing
type mockUserRepository struct {
	users       map[int64]*user.User
	nextID      int64
	returnError bool
	errToReturn error
}

func newMockUserRepository() *mockUserRepository {
	hashed, _ := bcrypt.GenerateFromPassword([]byte("correct_password"), bcrypt.MinCost)

	return &mockUserRepository{
		nextID: 4,
		users: map[int64]*user.User{
			1: {ID: 1, Username: "engineer", Email: "engineer@example.com", Role: "ENGINEER", PasswordHash: string(hashed), IsActive: true},
			2: {ID: 2, Username: "admin", Email: "admin@example.com", Role: "ADMIN", PasswordHash: string(hashed), IsActive: true, IsStaff: true, IsSuperuser: true},
			3: {ID: 3, Username: "dormant", Email: "dormant@example.com", Role: "MANAGER", PasswordHash: string(hashed), IsActive: false},
		},
	}
}

func (m *mockUserRepository) FindByUsername(_ context.Context, username string) (*user.User, error) {
	if m.returnError {
		return nil, m.errToReturn
	}
	for _, u := range m.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *mockUserRepository) FindByID(_ context.Context, id int64) (*user.User, error) {
	if m.returnError {
		return nil, m.errToReturn
	}
	if u, ok := m.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, nil
}

func (m *mockUserRepository) ExistsByUsernameOrEmail(_ context.Context, username, email string) (bool, error) {
	if m.returnError {
		return false, m.errToReturn
	}
	for _, u := range m.users {
		if u.Username == username || u.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockUserRepository) Create(_ context.Context, u *user.User) error {
	if m.returnError {
		return m.errToReturn
	}
	u.ID = m.nextID
	m.nextID++
	u.DateJoined = time.Now()
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *mockUserRepository) TouchLastLogin(_ context.Context, id int64, at time.Time) error {
	if u, ok := m.users[id]; ok {
		u.LastLogin = &at
	}
	return nil
}

func (m *mockUserRepository) setError(err error) {
	m.returnError = true
	m.errToReturn = err
}

func expectAppError(err error, status int, code internal.ErrorCode) {
	gomega.ExpectWithOffset(1, err).To(gomega.HaveOccurred())
	appErr, ok := internal.IsAppError(err)
	gomega.ExpectWithOffset(1, ok).To(gomega.BeTrue())
	gomega.ExpectWithOffset(1, appErr.StatusCode).To(gomega.Equal(status))
	gomega.ExpectWithOffset(1, appErr.Code).To(gomega.Equal(code))
}

var _ = ginkgo.Describe("AuthService", func() {
	var (
		ctx      context.Context
		service  *Service
		mockRepo *mockUserRepository
		tokenGen *JWTTokenGenerator
	)

	ginkgo.BeforeEach(func() {
		ctx = context.Background()
		mockRepo = newMockUserRepository()
		tokenGen = NewJWTTokenGenerator("test-access-secret", "test-refresh-secret", 15*time.Minute, 24*time.Hour)
		service = NewService(mockRepo, tokenGen, bcrypt.MinCost)
	})

	ginkgo.Describe("Signup", func() {
		var dto SignupDTO

		ginkgo.BeforeEach(func() {
			dto = SignupDTO{
				Username:        "newmanager",
				Email:           "New.Manager@Example.com",
				Password:        "s3cret-pass",
				ConfirmPassword: "s3cret-pass",
				FirstName:       "New",
				Role:            "manager",
			}
		})

		ginkgo.It("creates the account and issues a token pair", func() {
			res, err := service.Signup(ctx, dto)

			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(res.User.ID).To(gomega.Equal(int64(4)))
			gomega.Expect(res.User.Role).To(gomega.Equal(RoleManager))
			gomega.Expect(res.User.Email).To(gomega.Equal("new.manager@example.com"))
			gomega.Expect(res.User.IsSuperuser).To(gomega.BeFalse())
			gomega.Expect(res.Tokens.Access).ToNot(gomega.BeEmpty())
			gomega.Expect(res.Tokens.Refresh).ToNot(gomega.Equal(res.Tokens.Access))

			stored := mockRepo.users[4]
			gomega.Expect(bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("s3cret-pass"))).To(gomega.Succeed())
		})

		ginkgo.It("defaults the role to ENGINEER", func() {
			dto.Role = ""
			res, err := service.Signup(ctx, dto)

			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(res.User.Role).To(gomega.Equal(RoleEngineer))
		})

		ginkgo.It("makes ADMIN accounts staff and superuser", func() {
			dto.Role = "ADMIN"
			res, err := service.Signup(ctx, dto)

			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(res.User.IsStaff).To(gomega.BeTrue())
			gomega.Expect(res.User.IsSuperuser).To(gomega.BeTrue())
		})

		ginkgo.It("rejects mismatched passwords", func() {
			dto.ConfirmPassword = "something-else"
			_, err := service.Signup(ctx, dto)

			expectAppError(err, http.StatusBadRequest, internal.ErrCodeValidationFailed)
			gomega.Expect(err.Error()).To(gomega.Equal("Passwords do not match"))
		})

		ginkgo.It("rejects unknown roles", func() {
			dto.Role = "OWNER"
			_, err := service.Signup(ctx, dto)

			expectAppError(err, http.StatusBadRequest, internal.ErrCodeValidationFailed)
			gomega.Expect(err.Error()).To(gomega.Equal("Role must be ADMIN, MANAGER or ENGINEER"))
		})

		ginkgo.It("returns a conflict for a taken username", func() {
			dto.Username = "engineer"
			_, err := service.Signup(ctx, dto)

			expectAppError(err, http.StatusConflict, internal.ErrCodeDuplicateUser)
		})

		ginkgo.It("wraps repository failures as internal errors", func() {
			mockRepo.setError(errors.New("connection reset"))
			_, err := service.Signup(ctx, dto)

			expectAppError(err, http.StatusInternalServerError, "INTERNAL_ERROR")
		})
	})

	ginkgo.Describe("Login", func() {
		ginkgo.It("returns the user and tokens for valid credentials", func() {
			res, err := service.Login(ctx, LoginDTO{Username: "engineer", Password: "correct_password"})

			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(res.User.Username).To(gomega.Equal("engineer"))
			gomega.Expect(res.User.LastLogin).ToNot(gomega.BeNil())
			gomega.Expect(mockRepo.users[1].LastLogin).ToNot(gomega.BeNil())

			claims, err := service.ValidateAccessToken(res.Tokens.Access)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(claims.UserID).To(gomega.Equal(int64(1)))
			gomega.Expect(claims.Role).To(gomega.Equal(RoleEngineer))
		})

		ginkgo.It("rejects a wrong password", func() {
			_, err := service.Login(ctx, LoginDTO{Username: "engineer", Password: "wrong_password"})
			expectAppError(err, http.StatusUnauthorized, internal.ErrCodeInvalidCredentials)
		})

		ginkgo.It("rejects an unknown username with the same error", func() {
			_, err := service.Login(ctx, LoginDTO{Username: "ghost", Password: "correct_password"})
			expectAppError(err, http.StatusUnauthorized, internal.ErrCodeInvalidCredentials)
		})

		ginkgo.It("forbids inactive users", func() {
			_, err := service.Login(ctx, LoginDTO{Username: "dormant", Password: "correct_password"})
			expectAppError(err, http.StatusForbidden, internal.ErrCodeUserInactive)
		})

		ginkgo.It("requires both fields", func() {
			_, err := service.Login(ctx, LoginDTO{Username: "engineer"})
			expectAppError(err, http.StatusBadRequest, internal.ErrCodeValidationFailed)
		})
	})

	ginkgo.Describe("Refresh", func() {
		ginkgo.It("rotates the token pair", func() {
			res, err := service.Login(ctx, LoginDTO{Username: "admin", Password: "correct_password"})
			gomega.Expect(err).ToNot(gomega.HaveOccurred())

			pair, err := service.Refresh(ctx, RefreshTokenDTO{Refresh: res.Tokens.Refresh})
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(pair.Access).ToNot(gomega.BeEmpty())
			gomega.Expect(pair.Refresh).ToNot(gomega.Equal(res.Tokens.Refresh))
		})

		ginkgo.It("rejects an access token presented as refresh", func() {
			res, err := service.Login(ctx, LoginDTO{Username: "admin", Password: "correct_password"})
			gomega.Expect(err).ToNot(gomega.HaveOccurred())

			_, err = service.Refresh(ctx, RefreshTokenDTO{Refresh: res.Tokens.Access})
			expectAppError(err, http.StatusUnauthorized, internal.ErrCodeInvalidToken)
		})

		ginkgo.It("rejects tokens of deleted users", func() {
			res, err := service.Login(ctx, LoginDTO{Username: "engineer", Password: "correct_password"})
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			delete(mockRepo.users, 1)

			_, err = service.Refresh(ctx, RefreshTokenDTO{Refresh: res.Tokens.Refresh})
			expectAppError(err, http.StatusUnauthorized, internal.ErrCodeUserNotFound)
		})
	})

	ginkgo.Describe("ValidateAccessToken", func() {
		ginkgo.It("rejects a refresh token presented as access", func() {
			token, err := tokenGen.GenerateRefreshToken(&Account{ID: 1, Username: "engineer", Role: RoleEngineer})
			gomega.Expect(err).ToNot(gomega.HaveOccurred())

			_, err = service.ValidateAccessToken(token)
			expectAppError(err, http.StatusUnauthorized, internal.ErrCodeInvalidToken)
		})

		ginkgo.It("reports expired tokens", func() {
			expired := NewJWTTokenGenerator("test-access-secret", "test-refresh-secret", time.Nanosecond, time.Hour)
			token, err := expired.GenerateAccessToken(&Account{ID: 1, Role: RoleEngineer})
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			time.Sleep(1100 * time.Millisecond)

			_, err = service.ValidateAccessToken(token)
			expectAppError(err, http.StatusUnauthorized, internal.ErrCodeTokenExpired)
		})

		ginkgo.It("rejects tokens signed with another secret", func() {
			other := NewJWTTokenGenerator("other-secret", "other-refresh", time.Minute, time.Hour)
			token, err := other.GenerateAccessToken(&Account{ID: 1, Role: RoleEngineer})
			gomega.Expect(err).ToNot(gomega.HaveOccurred())

			_, err = service.ValidateAccessToken(token)
			expectAppError(err, http.StatusUnauthorized, internal.ErrCodeInvalidToken)
		})
	})

	ginkgo.Describe("LoadPrincipal", func() {
		ginkgo.It("loads the live user record", func() {
			p, err := service.LoadPrincipal(ctx, &Claims{UserID: 2})
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(p.IsAdmin()).To(gomega.BeTrue())
		})

		ginkgo.It("treats inactive users as missing", func() {
			_, err := service.LoadPrincipal(ctx, &Claims{UserID: 3})
			expectAppError(err, http.StatusUnauthorized, internal.ErrCodeUserNotFound)
		})
	})
})
