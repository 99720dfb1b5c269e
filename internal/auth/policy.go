package auth

import (
	"github.com/frahmantamala/meter-fleet/internal"
)

type Action string

const (
	ActionUsersList   Action = "users:list"
	ActionUsersView   Action = "users:view"
	ActionUsersUpdate Action = "users:update"
	ActionUsersManage Action = "users:manage"
	ActionUsersDelete Action = "users:delete"

	ActionMetersView   Action = "meters:view"
	ActionMetersManage Action = "meters:manage"

	ActionAssignmentsManage      Action = "assignments:manage"
	ActionMeterAssignmentsManage Action = "meter-assignments:manage"

	ActionTeamView        Action = "team:view"
	ActionTeamAssignMeter Action = "team:assign-meter"
	ActionEngineerMeters  Action = "engineer-meters:view"

	ActionTelemetryView   Action = "telemetry:view"
	ActionReportsGenerate Action = "reports:generate"
)

// Resource carries the ownership facts a resource-level rule needs.
type Resource struct {
	// OwnerID is the user the request targets.
	OwnerID int64
	// MeterManagerIDs and MeterEngineerIDs come from the meter's assignments.
	MeterManagerIDs  []int64
	MeterEngineerIDs []int64
}

// Allowed is the plain role gate. Superusers always pass.
func Allowed(role Role, isSuperuser bool, required ...Role) bool {
	if isSuperuser {
		return true
	}
	for _, r := range required {
		if r == role {
			return true
		}
	}
	return false
}

type Policy struct {
	roles map[Action][]Role
}

func NewPolicy() *Policy {
	all := []Role{RoleAdmin, RoleManager, RoleEngineer}
	return &Policy{
		roles: map[Action][]Role{
			ActionUsersList:   {RoleAdmin},
			ActionUsersView:   {RoleAdmin},
			ActionUsersUpdate: {RoleAdmin},
			ActionUsersManage: {RoleAdmin},
			ActionUsersDelete: {RoleAdmin},

			ActionMetersView:   all,
			ActionMetersManage: {RoleAdmin},

			ActionAssignmentsManage:      {RoleAdmin},
			ActionMeterAssignmentsManage: {RoleAdmin},

			ActionTeamView:        {RoleManager},
			ActionTeamAssignMeter: {RoleManager},
			ActionEngineerMeters:  {RoleEngineer},

			ActionTelemetryView:   {RoleAdmin},
			ActionReportsGenerate: all,
		},
	}
}

// Allow returns nil when p may perform action on res, a 401 when there is no
// principal and a 403 otherwise. res may be nil for route-level checks.
func (pl *Policy) Allow(p *Principal, action Action, res *Resource) error {
	if p == nil {
		return internal.NewUnauthorizedError("Authentication credentials were not provided", internal.ErrCodeMissingToken)
	}
	if Allowed(p.Role, p.IsSuperuser, pl.roles[action]...) {
		return nil
	}
	if res != nil && pl.allowResource(p, action, res) {
		return nil
	}
	return internal.ErrForbidden()
}

func (pl *Policy) allowResource(p *Principal, action Action, res *Resource) bool {
	switch action {
	case ActionUsersView, ActionUsersUpdate:
		return res.OwnerID != 0 && res.OwnerID == p.ID
	case ActionTelemetryView:
		switch p.Role {
		case RoleManager:
			return contains(res.MeterManagerIDs, p.ID)
		case RoleEngineer:
			return contains(res.MeterEngineerIDs, p.ID)
		}
	}
	return false
}

// HasResourceRules reports whether a denied role may still pass once the resource is known.
func (pl *Policy) HasResourceRules(action Action) bool {
	switch action {
	case ActionUsersView, ActionUsersUpdate, ActionTelemetryView:
		return true
	}
	return false
}

func contains(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
