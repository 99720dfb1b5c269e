package assignment_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/frahmantamala/meter-fleet/internal"
	"github.com/frahmantamala/meter-fleet/internal/assignment"
	assignmentPostgres "github.com/frahmantamala/meter-fleet/internal/assignment/postgres"
	"github.com/frahmantamala/meter-fleet/internal/auth"
	assignmentDatamodel "github.com/frahmantamala/meter-fleet/internal/core/datamodel/assignment"
	meterDatamodel "github.com/frahmantamala/meter-fleet/internal/core/datamodel/meter"
	userDatamodel "github.com/frahmantamala/meter-fleet/internal/core/datamodel/user"
	"github.com/frahmantamala/meter-fleet/internal/database"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/gorm"
)

func TestAssignment(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Assignment Suite")
}

func expectStatus(err error, status int) {
	GinkgoHelper()
	appErr, ok := internal.IsAppError(err)
	Expect(ok).To(BeTrue(), "expected AppError, got %v", err)
	Expect(appErr.StatusCode).To(Equal(status))
}

func principalOf(u *userDatamodel.User) *auth.Principal {
	return &auth.Principal{ID: u.ID, Username: u.Username, Role: auth.Role(u.Role), IsSuperuser: u.IsSuperuser}
}

var _ = Describe("Assignment Service", func() {
	var (
		ctx      context.Context
		db       *gorm.DB
		service  *assignment.Service
		admin    *auth.Principal
		manager  *userDatamodel.User
		rival    *userDatamodel.User
		engineer *userDatamodel.User
		gen1     *meterDatamodel.Meter
		gen2     *meterDatamodel.Meter
	)

	newUser := func(username, role string) *userDatamodel.User {
		u := &userDatamodel.User{Username: username, Email: username + "@example.com", Role: role, PasswordHash: "x", IsActive: true}
		Expect(db.Create(u).Error).To(Succeed())
		return u
	}

	BeforeEach(func() {
		var err error
		ctx = context.Background()
		db, err = database.OpenSQLite("")
		Expect(err).NotTo(HaveOccurred())

		admin = principalOf(newUser("root", "ADMIN"))
		manager = newUser("mia", "MANAGER")
		rival = newUser("rob", "MANAGER")
		engineer = newUser("eli", "ENGINEER")

		gen1 = &meterDatamodel.Meter{DeviceID: "GEN-1", Location: "North"}
		gen2 = &meterDatamodel.Meter{DeviceID: "GEN-2", Location: "South"}
		Expect(db.Create(gen1).Error).To(Succeed())
		Expect(db.Create(gen2).Error).To(Succeed())

		lg := slog.New(slog.NewTextHandler(io.Discard, nil))
		service = assignment.NewService(assignmentPostgres.NewAssignmentRepository(db), auth.NewPolicy(), lg)
	})

	Describe("user assignments", func() {
		It("creates once and then reports the existing row", func() {
			dto := assignment.CreateUserAssignmentDTO{ManagerID: manager.ID, EngineerID: engineer.ID}

			res, err := service.CreateUserAssignment(ctx, admin, dto)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Created).To(BeTrue())
			Expect(res.Message).To(Equal("Engineer eli assigned to manager mia"))

			again, err := service.CreateUserAssignment(ctx, admin, dto)
			Expect(err).NotTo(HaveOccurred())
			Expect(again.Created).To(BeFalse())
			Expect(again.Assignment.ID).To(Equal(res.Assignment.ID))
			Expect(again.Message).To(Equal("Engineer eli is already assigned to manager mia"))
		})

		It("denies managers even for their own team", func() {
			_, err := service.CreateUserAssignment(ctx, principalOf(manager), assignment.CreateUserAssignmentDTO{ManagerID: manager.ID, EngineerID: engineer.ID})
			expectStatus(err, http.StatusForbidden)
		})

		It("answers 404 when roles do not match", func() {
			_, err := service.CreateUserAssignment(ctx, admin, assignment.CreateUserAssignmentDTO{ManagerID: engineer.ID, EngineerID: manager.ID})
			expectStatus(err, http.StatusNotFound)
			Expect(err.Error()).To(Equal("Manager or engineer not found or invalid role"))
		})

		It("clears the engineer from that manager's meters on delete", func() {
			res, err := service.CreateUserAssignment(ctx, admin, assignment.CreateUserAssignmentDTO{ManagerID: manager.ID, EngineerID: engineer.ID})
			Expect(err).NotTo(HaveOccurred())

			mine := &assignmentDatamodel.MeterAssignment{MeterID: gen1.ID, ManagerID: manager.ID, EngineerID: &engineer.ID, Status: "ACTIVE"}
			theirs := &assignmentDatamodel.MeterAssignment{MeterID: gen2.ID, ManagerID: rival.ID, EngineerID: &engineer.ID, Status: "ACTIVE"}
			Expect(db.Create(mine).Error).To(Succeed())
			Expect(db.Create(theirs).Error).To(Succeed())

			Expect(service.DeleteUserAssignment(ctx, admin, res.Assignment.ID)).To(Succeed())

			var reloadedMine, reloadedTheirs assignmentDatamodel.MeterAssignment
			Expect(db.First(&reloadedMine, mine.ID).Error).To(Succeed())
			Expect(reloadedMine.EngineerID).To(BeNil())
			Expect(db.First(&reloadedTheirs, theirs.ID).Error).To(Succeed())
			Expect(reloadedTheirs.EngineerID).NotTo(BeNil())
			Expect(*reloadedTheirs.EngineerID).To(Equal(engineer.ID))

			_, err = service.GetUserAssignment(ctx, admin, res.Assignment.ID)
			expectStatus(err, http.StatusNotFound)
		})
	})

	Describe("meter assignments", func() {
		It("defaults the status to ACTIVE", func() {
			a, err := service.CreateMeterAssignment(ctx, admin, assignment.CreateMeterAssignmentDTO{MeterID: gen1.ID, ManagerID: manager.ID})
			Expect(err).NotTo(HaveOccurred())
			Expect(a.Status).To(Equal(assignment.StatusActive))
			Expect(a.EngineerID).To(BeNil())
		})

		It("rejects a manager slot held by a non-manager", func() {
			_, err := service.CreateMeterAssignment(ctx, admin, assignment.CreateMeterAssignmentDTO{MeterID: gen1.ID, ManagerID: engineer.ID})
			expectStatus(err, http.StatusBadRequest)
		})

		It("rejects an engineer slot held by a non-engineer", func() {
			_, err := service.CreateMeterAssignment(ctx, admin, assignment.CreateMeterAssignmentDTO{MeterID: gen1.ID, ManagerID: manager.ID, EngineerID: &rival.ID})
			expectStatus(err, http.StatusBadRequest)
		})

		It("rejects an unknown previous assignment", func() {
			missing := int64(999)
			_, err := service.CreateMeterAssignment(ctx, admin, assignment.CreateMeterAssignmentDTO{MeterID: gen1.ID, ManagerID: manager.ID, PreviousAssignmentID: &missing})
			expectStatus(err, http.StatusBadRequest)
		})

		It("conflicts on a repeated meter, manager and status", func() {
			dto := assignment.CreateMeterAssignmentDTO{MeterID: gen1.ID, ManagerID: manager.ID, Status: "maintenance"}
			_, err := service.CreateMeterAssignment(ctx, admin, dto)
			Expect(err).NotTo(HaveOccurred())

			_, err = service.CreateMeterAssignment(ctx, admin, dto)
			expectStatus(err, http.StatusConflict)
		})

		It("filters by device id and status", func() {
			_, err := service.CreateMeterAssignment(ctx, admin, assignment.CreateMeterAssignmentDTO{MeterID: gen1.ID, ManagerID: manager.ID})
			Expect(err).NotTo(HaveOccurred())
			_, err = service.CreateMeterAssignment(ctx, admin, assignment.CreateMeterAssignmentDTO{MeterID: gen2.ID, ManagerID: manager.ID, Status: "INACTIVE"})
			Expect(err).NotTo(HaveOccurred())

			list, err := service.ListMeterAssignments(ctx, admin, assignment.MeterAssignmentFilter{DeviceID: "GEN-2"})
			Expect(err).NotTo(HaveOccurred())
			Expect(list).To(HaveLen(1))
			Expect(list[0].MeterID).To(Equal(gen2.ID))

			list, err = service.ListMeterAssignments(ctx, admin, assignment.MeterAssignmentFilter{Status: "ACTIVE"})
			Expect(err).NotTo(HaveOccurred())
			Expect(list).To(HaveLen(1))
		})

		It("updates status and clears the engineer", func() {
			a, err := service.CreateMeterAssignment(ctx, admin, assignment.CreateMeterAssignmentDTO{MeterID: gen1.ID, ManagerID: manager.ID, EngineerID: &engineer.ID})
			Expect(err).NotTo(HaveOccurred())

			status := "INACTIVE"
			updated, err := service.UpdateMeterAssignment(ctx, admin, a.ID, assignment.UpdateMeterAssignmentDTO{Status: &status, ClearEngineer: true})
			Expect(err).NotTo(HaveOccurred())
			Expect(updated.Status).To(Equal(assignment.StatusInactive))
			Expect(updated.EngineerID).To(BeNil())
		})
	})

	Describe("manager and engineer flows", func() {
		var mgr *auth.Principal

		BeforeEach(func() {
			mgr = principalOf(manager)
			_, err := service.CreateUserAssignment(ctx, admin, assignment.CreateUserAssignmentDTO{ManagerID: manager.ID, EngineerID: engineer.ID})
			Expect(err).NotTo(HaveOccurred())
			_, err = service.CreateMeterAssignment(ctx, admin, assignment.CreateMeterAssignmentDTO{MeterID: gen1.ID, ManagerID: manager.ID})
			Expect(err).NotTo(HaveOccurred())
		})

		It("assigns a held meter to a team engineer", func() {
			res, err := service.AssignMeter(ctx, mgr, assignment.AssignMeterDTO{MeterID: gen1.ID, EngineerID: engineer.ID})
			Expect(err).NotTo(HaveOccurred())
			Expect(*res.MeterAssignment.EngineerID).To(Equal(engineer.ID))
			Expect(res.Meter.DeviceID).To(Equal("GEN-1"))
			Expect(res.Engineer.Username).To(Equal("eli"))

			team, err := service.Team(ctx, mgr)
			Expect(err).NotTo(HaveOccurred())
			Expect(team).To(HaveLen(1))
			Expect(team[0].Meters).To(HaveLen(1))
			Expect(team[0].Meters[0].DeviceID).To(Equal("GEN-1"))

			mine, err := service.EngineerMeters(ctx, principalOf(engineer))
			Expect(err).NotTo(HaveOccurred())
			Expect(mine.Meters).To(HaveLen(1))
		})

		It("refuses engineers outside the team", func() {
			outsider := newUser("oz", "ENGINEER")
			_, err := service.AssignMeter(ctx, mgr, assignment.AssignMeterDTO{MeterID: gen1.ID, EngineerID: outsider.ID})
			expectStatus(err, http.StatusBadRequest)
			Expect(err.Error()).To(Equal("Engineer is not assigned to the user"))
		})

		It("refuses meters the manager does not hold", func() {
			_, err := service.AssignMeter(ctx, mgr, assignment.AssignMeterDTO{MeterID: gen2.ID, EngineerID: engineer.ID})
			expectStatus(err, http.StatusBadRequest)
			Expect(err.Error()).To(Equal("Meter is not assigned to the user"))
		})

		It("answers 404 for unknown meters", func() {
			_, err := service.AssignMeter(ctx, mgr, assignment.AssignMeterDTO{MeterID: 404, EngineerID: engineer.ID})
			expectStatus(err, http.StatusNotFound)
		})

		It("unassigns and leaves the engineer with nothing", func() {
			_, err := service.AssignMeter(ctx, mgr, assignment.AssignMeterDTO{MeterID: gen1.ID, EngineerID: engineer.ID})
			Expect(err).NotTo(HaveOccurred())

			res, err := service.UnassignMeter(ctx, mgr, assignment.AssignMeterDTO{MeterID: gen1.ID, EngineerID: engineer.ID})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.MeterAssignment.EngineerID).To(BeNil())

			_, err = service.EngineerMeters(ctx, principalOf(engineer))
			expectStatus(err, http.StatusNotFound)
			Expect(err.Error()).To(Equal("No meters assigned to the engineer"))
		})

		It("lists the manager's meters", func() {
			res, err := service.ManagerMeters(ctx, mgr)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Assignments).To(HaveLen(1))
			Expect(res.Meters).To(HaveLen(1))

			_, err = service.ManagerMeters(ctx, principalOf(engineer))
			expectStatus(err, http.StatusForbidden)
		})

		It("derives telemetry scope from assignments", func() {
			_, err := service.AssignMeter(ctx, mgr, assignment.AssignMeterDTO{MeterID: gen1.ID, EngineerID: engineer.ID})
			Expect(err).NotTo(HaveOccurred())

			scope, err := service.Scope(ctx, gen1.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(scope.MeterManagerIDs).To(ConsistOf(manager.ID))
			Expect(scope.MeterEngineerIDs).To(ConsistOf(engineer.ID))
		})
	})
})
