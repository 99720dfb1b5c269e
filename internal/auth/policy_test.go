package auth

import (
	"net/http"
	"net/http/httptest"

	"github.com/frahmantamala/meter-fleet/internal"
	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
)

var _ = ginkgo.Describe("Policy", func() {
	var (
		policy   *Policy
		admin    *Principal
		manager  *Principal
		engineer *Principal
		root     *Principal
	)

	ginkgo.BeforeEach(func() {
		policy = NewPolicy()
		admin = &Principal{ID: 1, Role: RoleAdmin}
		manager = &Principal{ID: 2, Role: RoleManager}
		engineer = &Principal{ID: 3, Role: RoleEngineer}
		root = &Principal{ID: 4, Role: RoleEngineer, IsSuperuser: true}
	})

	ginkgo.Describe("Allowed", func() {
		ginkgo.It("passes listed roles and superusers only", func() {
			gomega.Expect(Allowed(RoleManager, false, RoleManager)).To(gomega.BeTrue())
			gomega.Expect(Allowed(RoleEngineer, false, RoleManager)).To(gomega.BeFalse())
			gomega.Expect(Allowed(RoleEngineer, true, RoleManager)).To(gomega.BeTrue())
			gomega.Expect(Allowed(RoleAdmin, false)).To(gomega.BeFalse())
		})
	})

	ginkgo.DescribeTable("route-level decisions",
		func(pick func() *Principal, action Action, allowed bool) {
			err := policy.Allow(pick(), action, nil)
			if allowed {
				gomega.Expect(err).ToNot(gomega.HaveOccurred())
			} else {
				expectAppError(err, http.StatusForbidden, internal.ErrCodeForbidden)
			}
		},
		ginkgo.Entry("admin lists users", func() *Principal { return admin }, ActionUsersList, true),
		ginkgo.Entry("manager cannot list users", func() *Principal { return manager }, ActionUsersList, false),
		ginkgo.Entry("manager cannot create user assignments", func() *Principal { return manager }, ActionAssignmentsManage, false),
		ginkgo.Entry("engineer cannot create user assignments", func() *Principal { return engineer }, ActionAssignmentsManage, false),
		ginkgo.Entry("superuser creates user assignments", func() *Principal { return root }, ActionAssignmentsManage, true),
		ginkgo.Entry("engineer views meters", func() *Principal { return engineer }, ActionMetersView, true),
		ginkgo.Entry("engineer cannot manage meters", func() *Principal { return engineer }, ActionMetersManage, false),
		ginkgo.Entry("manager views team", func() *Principal { return manager }, ActionTeamView, true),
		ginkgo.Entry("admin without superuser is not a manager", func() *Principal { return admin }, ActionTeamView, false),
		ginkgo.Entry("engineer views own meters", func() *Principal { return engineer }, ActionEngineerMeters, true),
		ginkgo.Entry("manager cannot use engineer endpoint", func() *Principal { return manager }, ActionEngineerMeters, false),
		ginkgo.Entry("everyone generates reports", func() *Principal { return engineer }, ActionReportsGenerate, true),
	)

	ginkgo.It("returns 401 without a principal", func() {
		expectAppError(policy.Allow(nil, ActionMetersView, nil), http.StatusUnauthorized, internal.ErrCodeMissingToken)
	})

	ginkgo.Describe("resource rules", func() {
		ginkgo.It("lets users view and update themselves", func() {
			self := &Resource{OwnerID: engineer.ID}
			gomega.Expect(policy.Allow(engineer, ActionUsersView, self)).To(gomega.Succeed())
			gomega.Expect(policy.Allow(engineer, ActionUsersUpdate, self)).To(gomega.Succeed())
			gomega.Expect(policy.Allow(engineer, ActionUsersView, &Resource{OwnerID: admin.ID})).ToNot(gomega.Succeed())
		})

		ginkgo.It("never lets a user manage their own role", func() {
			gomega.Expect(policy.Allow(engineer, ActionUsersManage, &Resource{OwnerID: engineer.ID})).ToNot(gomega.Succeed())
		})

		ginkgo.It("scopes telemetry to the meter's assignments", func() {
			res := &Resource{MeterManagerIDs: []int64{manager.ID}, MeterEngineerIDs: []int64{engineer.ID}}
			gomega.Expect(policy.Allow(manager, ActionTelemetryView, res)).To(gomega.Succeed())
			gomega.Expect(policy.Allow(engineer, ActionTelemetryView, res)).To(gomega.Succeed())
			gomega.Expect(policy.Allow(admin, ActionTelemetryView, &Resource{})).To(gomega.Succeed())

			other := &Resource{MeterManagerIDs: []int64{99}, MeterEngineerIDs: []int64{98}}
			gomega.Expect(policy.Allow(manager, ActionTelemetryView, other)).ToNot(gomega.Succeed())
			gomega.Expect(policy.Allow(engineer, ActionTelemetryView, other)).ToNot(gomega.Succeed())
		})

		ginkgo.It("does not let an engineer borrow the manager list", func() {
			res := &Resource{MeterManagerIDs: []int64{engineer.ID}}
			gomega.Expect(policy.Allow(engineer, ActionTelemetryView, res)).ToNot(gomega.Succeed())
		})
	})

	ginkgo.Describe("Authorizer middleware", func() {
		var (
			authorizer *Authorizer
			reached    bool
			next       http.Handler
		)

		ginkgo.BeforeEach(func() {
			authorizer = NewAuthorizer(policy, nil)
			reached = false
			next = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				reached = true
				w.WriteHeader(http.StatusNoContent)
			})
		})

		serve := func(p *Principal, action Action) *httptest.ResponseRecorder {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if p != nil {
				req = req.WithContext(WithPrincipal(req.Context(), p))
			}
			w := httptest.NewRecorder()
			authorizer.RequireAction(action)(next).ServeHTTP(w, req)
			return w
		}

		ginkgo.It("passes allowed principals through", func() {
			w := serve(admin, ActionMetersManage)
			gomega.Expect(w.Code).To(gomega.Equal(http.StatusNoContent))
			gomega.Expect(reached).To(gomega.BeTrue())
		})

		ginkgo.It("answers 403 for denied principals", func() {
			w := serve(manager, ActionAssignmentsManage)
			gomega.Expect(w.Code).To(gomega.Equal(http.StatusForbidden))
			gomega.Expect(reached).To(gomega.BeFalse())
		})

		ginkgo.It("answers 401 when no principal is present", func() {
			w := serve(nil, ActionMetersView)
			gomega.Expect(w.Code).To(gomega.Equal(http.StatusUnauthorized))
		})

		ginkgo.It("defers resource-scoped actions to the handler", func() {
			w := serve(engineer, ActionUsersView)
			gomega.Expect(w.Code).To(gomega.Equal(http.StatusNoContent))
		})
	})
})
