package assignment

import (
	"time"

	assignmentDatamodel "github.com/frahmantamala/meter-fleet/internal/core/datamodel/assignment"
	"github.com/frahmantamala/meter-fleet/internal/meter"
	"github.com/frahmantamala/meter-fleet/internal/user"
)

type Status string

const (
	StatusActive      Status = "ACTIVE"
	StatusInactive    Status = "INACTIVE"
	StatusMaintenance Status = "MAINTENANCE"
)

var Statuses = []Status{StatusActive, StatusInactive, StatusMaintenance}

func (s Status) Valid() bool {
	for _, known := range Statuses {
		if s == known {
			return true
		}
	}
	return false
}

func StatusNames() []string {
	names := make([]string, len(Statuses))
	for i, s := range Statuses {
		names[i] = string(s)
	}
	return names
}

// UserAssignment places an engineer on a manager's team.
type UserAssignment struct {
	ID         int64     `json:"id"`
	ManagerID  int64     `json:"manager_id"`
	EngineerID int64     `json:"engineer_id"`
	AssignedAt time.Time `json:"assigned_at"`
}

type UserAssignmentResult struct {
	Assignment *UserAssignment
	Message    string
	Created    bool
}

// MeterAssignment gives a manager, and optionally one engineer, scope over a meter.
type MeterAssignment struct {
	ID                   int64     `json:"id"`
	MeterID              int64     `json:"meter_id"`
	ManagerID            int64     `json:"manager_id"`
	EngineerID           *int64    `json:"engineer_id"`
	Status               Status    `json:"status"`
	PreviousAssignmentID *int64    `json:"previous_assignment_id"`
	AssignedAt           time.Time `json:"assigned_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// TeamMember is an engineer on the requesting manager's team with the meters
// that manager has handed them.
type TeamMember struct {
	*user.User
	Meters []*TeamMeter `json:"meters"`
}

type TeamMeter struct {
	DeviceID string `json:"device_id"`
	Location string `json:"location"`
	Status   Status `json:"status"`
}

type ManagerMeters struct {
	Assignments []*MeterAssignment `json:"assignments"`
	Meters      []*meter.Meter     `json:"meters"`
}

type AssignMeterResult struct {
	MeterAssignment *MeterAssignment `json:"meter_assignment"`
	Meter           *meter.Meter     `json:"meter"`
	Engineer        *user.User       `json:"engineer"`
}

type EngineerMeters struct {
	MeterAssignments []*MeterAssignment `json:"meter_assignments"`
	Meters           []*meter.Meter     `json:"meters"`
}

func UserAssignmentFromDataModel(a *assignmentDatamodel.UserAssignment) *UserAssignment {
	return &UserAssignment{
		ID:         a.ID,
		ManagerID:  a.ManagerID,
		EngineerID: a.EngineerID,
		AssignedAt: a.AssignedAt,
	}
}

func MeterAssignmentFromDataModel(a *assignmentDatamodel.MeterAssignment) *MeterAssignment {
	return &MeterAssignment{
		ID:                   a.ID,
		MeterID:              a.MeterID,
		ManagerID:            a.ManagerID,
		EngineerID:           a.EngineerID,
		Status:               Status(a.Status),
		PreviousAssignmentID: a.PreviousAssignmentID,
		AssignedAt:           a.AssignedAt,
		UpdatedAt:            a.UpdatedAt,
	}
}

func meterAssignmentsFromDataModels(in []*assignmentDatamodel.MeterAssignment) []*MeterAssignment {
	out := make([]*MeterAssignment, len(in))
	for i, a := range in {
		out[i] = MeterAssignmentFromDataModel(a)
	}
	return out
}
