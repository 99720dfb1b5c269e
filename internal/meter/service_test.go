package meter_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/frahmantamala/meter-fleet/internal"
	"github.com/frahmantamala/meter-fleet/internal/auth"
	assignmentDatamodel "github.com/frahmantamala/meter-fleet/internal/core/datamodel/assignment"
	meterDatamodel "github.com/frahmantamala/meter-fleet/internal/core/datamodel/meter"
	telemetryDatamodel "github.com/frahmantamala/meter-fleet/internal/core/datamodel/telemetry"
	userDatamodel "github.com/frahmantamala/meter-fleet/internal/core/datamodel/user"
	"github.com/frahmantamala/meter-fleet/internal/database"
	"github.com/frahmantamala/meter-fleet/internal/meter"
	meterPostgres "github.com/frahmantamala/meter-fleet/internal/meter/postgres"
	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/gorm"
)

func TestMeter(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Meter Suite")
}

var _ = Describe("Meter", func() {
	var (
		ctx      context.Context
		db       *gorm.DB
		service  *meter.Service
		admin    *auth.Principal
		engineer *auth.Principal
	)

	BeforeEach(func() {
		var err error
		ctx = context.Background()
		db, err = database.OpenSQLite("")
		Expect(err).NotTo(HaveOccurred())

		admin = &auth.Principal{ID: 1, Role: auth.RoleAdmin}
		engineer = &auth.Principal{ID: 2, Role: auth.RoleEngineer}
		lg := slog.New(slog.NewTextHandler(io.Discard, nil))
		service = meter.NewService(meterPostgres.NewMeterRepository(db), auth.NewPolicy(), lg)
	})

	Describe("Service", func() {
		It("creates meters and rejects duplicate device ids", func() {
			m, err := service.Create(ctx, admin, meter.CreateMeterDTO{DeviceID: " GEN-001 ", Location: "Plant A"})
			Expect(err).NotTo(HaveOccurred())
			Expect(m.DeviceID).To(Equal("GEN-001"))

			_, err = service.Create(ctx, admin, meter.CreateMeterDTO{DeviceID: "GEN-001"})
			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.StatusCode).To(Equal(http.StatusConflict))
		})

		It("keeps writes admin-only", func() {
			_, err := service.Create(ctx, engineer, meter.CreateMeterDTO{DeviceID: "GEN-002"})
			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.StatusCode).To(Equal(http.StatusForbidden))
		})

		It("lists newest first", func() {
			older := &meterDatamodel.Meter{DeviceID: "OLD", CreatedAt: time.Now().Add(-time.Hour)}
			newer := &meterDatamodel.Meter{DeviceID: "NEW", CreatedAt: time.Now()}
			Expect(db.Create(older).Error).To(Succeed())
			Expect(db.Create(newer).Error).To(Succeed())

			list, err := service.List(ctx, engineer)
			Expect(err).NotTo(HaveOccurred())
			Expect(list).To(HaveLen(2))
			Expect(list[0].DeviceID).To(Equal("NEW"))
		})

		It("renames a meter without tripping the uniqueness check on itself", func() {
			_, err := service.Create(ctx, admin, meter.CreateMeterDTO{DeviceID: "GEN-003"})
			Expect(err).NotTo(HaveOccurred())

			location := "Roof"
			m, err := service.Update(ctx, admin, "GEN-003", meter.UpdateMeterDTO{Location: &location})
			Expect(err).NotTo(HaveOccurred())
			Expect(m.Location).To(Equal("Roof"))
		})

		It("deletes telemetry and assignments with the meter", func() {
			m, err := service.Create(ctx, admin, meter.CreateMeterDTO{DeviceID: "GEN-004"})
			Expect(err).NotTo(HaveOccurred())

			mgr := &userDatamodel.User{Username: "mgr", Email: "m@example.com", Role: "MANAGER", PasswordHash: "x", IsActive: true}
			Expect(db.Create(mgr).Error).To(Succeed())
			Expect(db.Create(&assignmentDatamodel.MeterAssignment{MeterID: m.ID, ManagerID: mgr.ID, Status: "ACTIVE"}).Error).To(Succeed())
			Expect(db.Create(&telemetryDatamodel.MeterData{MeterID: m.ID, CreatedAt: time.Now()}).Error).To(Succeed())

			Expect(service.Delete(ctx, admin, "GEN-004")).To(Succeed())

			var count int64
			Expect(db.Model(&telemetryDatamodel.MeterData{}).Count(&count).Error).To(Succeed())
			Expect(count).To(BeZero())
			Expect(db.Model(&assignmentDatamodel.MeterAssignment{}).Count(&count).Error).To(Succeed())
			Expect(count).To(BeZero())

			_, err = service.Get(ctx, admin, "GEN-004")
			appErr, _ := internal.IsAppError(err)
			Expect(appErr.StatusCode).To(Equal(http.StatusNotFound))
		})
	})

	Describe("Handler", func() {
		var router *chi.Mux

		BeforeEach(func() {
			handler := meter.NewHandler(service, nil)
			router = chi.NewRouter()
			router.Use(func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					next.ServeHTTP(w, r.WithContext(auth.WithPrincipal(r.Context(), admin)))
				})
			})
			router.Post("/meters/", handler.CreateMeter)
			router.Get("/meters/{device_id}", handler.GetMeter)
			router.Delete("/meters/{device_id}", handler.DeleteMeter)
		})

		It("creates, fetches and deletes by device id", func() {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/meters/", strings.NewReader(`{"device_id":"GEN-100","location":"Yard"}`)))
			Expect(w.Code).To(Equal(http.StatusCreated))

			w = httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/meters/GEN-100", nil))
			Expect(w.Code).To(Equal(http.StatusOK))

			w = httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/meters/GEN-100", nil))
			Expect(w.Code).To(Equal(http.StatusOK))

			var body struct {
				Details struct {
					Message string `json:"message"`
				} `json:"details"`
			}
			Expect(json.Unmarshal(w.Body.Bytes(), &body)).To(Succeed())
			Expect(body.Details.Message).To(Equal("Meter with device ID 'GEN-100' was successfully deleted"))

			w = httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/meters/GEN-100", nil))
			Expect(w.Code).To(Equal(http.StatusNotFound))
		})
	})
})
