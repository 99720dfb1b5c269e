package rest_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/frahmantamala/meter-fleet/internal"
	"github.com/frahmantamala/meter-fleet/internal/assignment"
	assignmentPostgres "github.com/frahmantamala/meter-fleet/internal/assignment/postgres"
	"github.com/frahmantamala/meter-fleet/internal/auth"
	authPostgres "github.com/frahmantamala/meter-fleet/internal/auth/postgres"
	"github.com/frahmantamala/meter-fleet/internal/core/events"
	"github.com/frahmantamala/meter-fleet/internal/database"
	"github.com/frahmantamala/meter-fleet/internal/live"
	"github.com/frahmantamala/meter-fleet/internal/meter"
	meterPostgres "github.com/frahmantamala/meter-fleet/internal/meter/postgres"
	"github.com/frahmantamala/meter-fleet/internal/report"
	"github.com/frahmantamala/meter-fleet/internal/telemetry"
	telemetryPostgres "github.com/frahmantamala/meter-fleet/internal/telemetry/postgres"
	"github.com/frahmantamala/meter-fleet/internal/transport/middleware"
	"github.com/frahmantamala/meter-fleet/internal/transport/rest"
	"github.com/frahmantamala/meter-fleet/internal/user"
	userPostgres "github.com/frahmantamala/meter-fleet/internal/user/postgres"
	"github.com/frahmantamala/meter-fleet/pkg/logger"
	"github.com/go-chi/chi"
	"github.com/jmoiron/sqlx"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/afero"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

func TestRest(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Rest Suite")
}

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

func decode(w *httptest.ResponseRecorder) envelope {
	GinkgoHelper()
	var env envelope
	Expect(json.Unmarshal(w.Body.Bytes(), &env)).To(Succeed(), w.Body.String())
	return env
}

var _ = Describe("Router", func() {
	var (
		db     *gorm.DB
		router *chi.Mux
	)

	do := func(method, path, token string, body interface{}) *httptest.ResponseRecorder {
		GinkgoHelper()
		var reader io.Reader
		if body != nil {
			raw, err := json.Marshal(body)
			Expect(err).NotTo(HaveOccurred())
			reader = bytes.NewReader(raw)
		}
		req := httptest.NewRequest(method, path, reader)
		req.Header.Set("Content-Type", "application/json")
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	signup := func(username string, role auth.Role) (int64, auth.TokenPair) {
		GinkgoHelper()
		w := do(http.MethodPost, "/api/auth/signup", "", map[string]string{
			"username":         username,
			"email":            username + "@example.com",
			"password":         "s3cret-pass",
			"confirm_password": "s3cret-pass",
			"first_name":       strings.ToUpper(username[:1]) + username[1:],
			"role":             string(role),
		})
		Expect(w.Code).To(Equal(http.StatusCreated), w.Body.String())

		var res struct {
			User   struct{ ID int64 } `json:"user"`
			Tokens auth.TokenPair     `json:"tokens"`
		}
		Expect(json.Unmarshal(decode(w).Details.Data, &res)).To(Succeed())
		return res.User.ID, res.Tokens
	}

	BeforeEach(func() {
		var err error
		db, err = database.OpenSQLite("")
		Expect(err).NotTo(HaveOccurred())
		sqlDB, err := db.DB()
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(sqlDB.Close)

		lg := logger.Discard()
		policy := auth.NewPolicy()
		bus := events.NewEventBus(lg)

		tokens := auth.NewJWTTokenGenerator(
			"access-secret-access-secret-access-secret",
			"refresh-secret-refresh-secret-refresh-secret",
			15*time.Minute, time.Hour,
		)
		authSvc := auth.NewService(authPostgres.NewRepository(db), tokens, bcrypt.MinCost)
		meterSvc := meter.NewService(meterPostgres.NewMeterRepository(db), policy, lg)
		assignmentSvc := assignment.NewService(assignmentPostgres.NewAssignmentRepository(db), policy, lg)
		telemetrySvc := telemetry.NewService(telemetryPostgres.NewMeterDataRepository(db), meterSvc, assignmentSvc, policy, nil, bus, lg, 500)

		blobs, err := report.NewLocalStore(afero.NewMemMapFs(), "reports")
		Expect(err).NotTo(HaveOccurred())
		reportSvc := report.NewService(
			telemetrySvc,
			report.NewWindowReader(sqlx.NewDb(sqlDB, "sqlite3")),
			blobs,
			report.NewMemoryRegistry(),
			policy,
			internal.ReportsConfig{TTL: time.Minute, DefaultWindow: 24 * time.Hour, MaxRows: 1000},
			"",
			lg,
		)

		router = chi.NewRouter()
		rest.RegisterAllRoutes(router, rest.Handlers{
			Health: rest.NewHealthHandler(map[string]rest.Check{
				"database": sqlDB.PingContext,
			}),
			Auth:       auth.NewHandler(authSvc, lg),
			Authorizer: auth.NewAuthorizer(policy, lg),
			User:       user.NewHandler(user.NewService(userPostgres.NewUserRepository(db), policy, lg), lg),
			Meter:      meter.NewHandler(meterSvc, lg),
			Assignment: assignment.NewHandler(assignmentSvc, lg),
			Telemetry:  telemetry.NewHandler(telemetrySvc, lg),
			Report:     report.NewHandler(reportSvc, lg),
			Live:       live.NewHub(telemetrySvc, nil, lg),
		}, nil, lg)
	})

	It("reports health and answers unknown routes with the error envelope", func() {
		w := do(http.MethodGet, "/api/health", "", nil)
		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(w.Body.String()).To(ContainSubstring(`"database"`))

		w = do(http.MethodGet, "/api/ping/", "", nil)
		Expect(w.Code).To(Equal(http.StatusOK))

		w = do(http.MethodGet, "/api/nowhere", "", nil)
		Expect(w.Code).To(Equal(http.StatusNotFound))
		Expect(decode(w).Error.Code).To(Equal(string(internal.ErrCodeRouteNotFound)))
	})

	It("stamps every response with a trace id", func() {
		w := do(http.MethodGet, "/api/ping", "", nil)
		Expect(w.Header().Get(middleware.TraceHeader)).NotTo(BeEmpty())
	})

	It("rejects protected routes without a token", func() {
		w := do(http.MethodGet, "/api/meters/", "", nil)
		Expect(w.Code).To(Equal(http.StatusUnauthorized))
		Expect(decode(w).Error.Code).To(Equal(string(internal.ErrCodeMissingToken)))
	})

	It("does not accept a refresh token as an access token", func() {
		_, pair := signup("root", auth.RoleAdmin)

		w := do(http.MethodGet, "/api/auth/me", pair.Refresh, nil)
		Expect(w.Code).To(Equal(http.StatusUnauthorized))

		w = do(http.MethodGet, "/api/auth/me", pair.Access, nil)
		Expect(w.Code).To(Equal(http.StatusOK))
	})

	It("keeps assignment management to admins", func() {
		managerID, managerTokens := signup("manager", auth.RoleManager)
		engineerID, _ := signup("engineer", auth.RoleEngineer)

		w := do(http.MethodPost, "/api/assignments/", managerTokens.Access, map[string]int64{
			"manager_id":  managerID,
			"engineer_id": engineerID,
		})
		Expect(w.Code).To(Equal(http.StatusForbidden))

		w = do(http.MethodGet, "/api/all-users/", managerTokens.Access, nil)
		Expect(w.Code).To(Equal(http.StatusForbidden))
	})

	It("runs a meter from creation through telemetry to a single use report", func() {
		_, admin := signup("root", auth.RoleAdmin)

		w := do(http.MethodPost, "/api/auth/login", "", map[string]string{"username": "root", "password": "s3cret-pass"})
		Expect(w.Code).To(Equal(http.StatusOK), w.Body.String())

		w = do(http.MethodPost, "/api/meters/", admin.Access, map[string]string{"device_id": "GEN-1", "location": "Roof"})
		Expect(w.Code).To(Equal(http.StatusCreated), w.Body.String())

		By("ingesting without credentials")
		w = do(http.MethodPost, "/api/meter-data/", "", map[string]interface{}{
			"meter_id":               "GEN-1",
			"voltage_l1":             231.4,
			"low_oil_pressure_alarm": true,
		})
		Expect(w.Code).To(Equal(http.StatusCreated), w.Body.String())
		Expect(decode(w).Details.Message).To(Equal("Meter data recorded successfully"))

		w = do(http.MethodPost, "/api/meter-data/", "", map[string]interface{}{"meter_id": "GEN-404"})
		Expect(w.Code).To(Equal(http.StatusNotFound))

		w = do(http.MethodGet, "/api/meter-data/?meter_id=GEN-1", admin.Access, nil)
		Expect(w.Code).To(Equal(http.StatusOK), w.Body.String())
		var readings []map[string]interface{}
		Expect(json.Unmarshal(decode(w).Details.Data, &readings)).To(Succeed())
		Expect(readings).To(HaveLen(1))
		Expect(readings[0]["voltage_l1"]).To(BeNumerically("~", 231.4))

		By("generating and downloading the alarm report once")
		w = do(http.MethodPost, "/api/meter-alarm-report/", admin.Access, map[string]string{"meter_id": "GEN-1"})
		Expect(w.Code).To(Equal(http.StatusCreated), w.Body.String())
		var result report.Result
		Expect(json.Unmarshal(decode(w).Details.Data, &result)).To(Succeed())
		Expect(result.DownloadURL).To(Equal(report.DownloadPath + result.FileName))

		w = do(http.MethodGet, result.DownloadURL, "", nil)
		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(w.Header().Get("Content-Disposition")).To(ContainSubstring(result.FileName))
		Expect(w.Body.Len()).To(BeNumerically(">", 0))

		w = do(http.MethodGet, result.DownloadURL, "", nil)
		Expect(w.Code).To(Equal(http.StatusNotFound))
		Expect(decode(w).Error.Code).To(Equal(string(internal.ErrCodeReportNotFound)))

		By("refusing an empty window")
		w = do(http.MethodPost, "/api/meter-report/", admin.Access, map[string]string{
			"meter_id": "GEN-1",
			"start":    "2020-01-01T00:00:00Z",
			"end":      "2020-01-02T00:00:00Z",
		})
		Expect(w.Code).To(Equal(http.StatusNotFound))
		Expect(decode(w).Error.Message).To(Equal("No data found for the given time range"))
	})

	It("lets a manager see telemetry only for meters the manager holds", func() {
		_, admin := signup("root", auth.RoleAdmin)
		managerID, managerTokens := signup("manager", auth.RoleManager)

		for _, device := range []string{"GEN-A", "GEN-B"} {
			w := do(http.MethodPost, "/api/meters/", admin.Access, map[string]string{"device_id": device})
			Expect(w.Code).To(Equal(http.StatusCreated))
			w = do(http.MethodPost, "/api/meter-data/", "", map[string]interface{}{"meter_id": device, "frequency": 50.0})
			Expect(w.Code).To(Equal(http.StatusCreated))
		}

		var held meter.Meter
		w := do(http.MethodGet, "/api/meters/GEN-A", admin.Access, nil)
		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(json.Unmarshal(decode(w).Details.Data, &held)).To(Succeed())

		w = do(http.MethodPost, "/api/meter-assignments/", admin.Access, map[string]interface{}{
			"meter_id":   held.ID,
			"manager_id": managerID,
		})
		Expect(w.Code).To(Equal(http.StatusCreated), w.Body.String())

		w = do(http.MethodGet, "/api/meter-data/?meter_id=GEN-A", managerTokens.Access, nil)
		Expect(w.Code).To(Equal(http.StatusOK), w.Body.String())

		w = do(http.MethodGet, "/api/meter-data/?meter_id=GEN-B", managerTokens.Access, nil)
		Expect(w.Code).To(Equal(http.StatusForbidden))

		w = do(http.MethodGet, "/api/manager/meters", managerTokens.Access, nil)
		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(w.Body.String()).To(ContainSubstring("GEN-A"))
		Expect(w.Body.String()).NotTo(ContainSubstring("GEN-B"))
	})

	It("creates users through POST /api/users as well", func() {
		w := do(http.MethodPost, "/api/users/", "", map[string]string{
			"username":         "eng",
			"email":            "eng@example.com",
			"password":         "s3cret-pass",
			"confirm_password": "s3cret-pass",
			"first_name":       "Eng",
		})
		Expect(w.Code).To(Equal(http.StatusCreated), w.Body.String())
		Expect(decode(w).Details.Message).To(Equal(fmt.Sprintf("%s account created successfully", auth.RoleEngineer)))
	})
})
