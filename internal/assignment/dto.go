package assignment

import (
	"strings"

	"github.com/frahmantamala/meter-fleet/internal"
	"github.com/frahmantamala/meter-fleet/internal/core/common/validation"
)

const statusMessage = "Status must be ACTIVE, INACTIVE or MAINTENANCE"

type CreateUserAssignmentDTO struct {
	ManagerID  int64 `json:"manager_id"`
	EngineerID int64 `json:"engineer_id"`
}

func (d CreateUserAssignmentDTO) Validate() *internal.AppError {
	v := validation.NewValidator()
	v.Field("manager_id", d.ManagerID).Required().Positive()
	v.Field("engineer_id", d.EngineerID).Required().Positive()
	return v.Validate()
}

type CreateMeterAssignmentDTO struct {
	MeterID              int64  `json:"meter_id"`
	ManagerID            int64  `json:"manager_id"`
	EngineerID           *int64 `json:"engineer_id"`
	Status               string `json:"status"`
	PreviousAssignmentID *int64 `json:"previous_assignment_id"`
}

func (d *CreateMeterAssignmentDTO) Validate() *internal.AppError {
	d.Status = strings.ToUpper(strings.TrimSpace(d.Status))
	if d.Status == "" {
		d.Status = string(StatusActive)
	}

	v := validation.NewValidator()
	v.Field("meter_id", d.MeterID).Required().Positive()
	v.Field("manager_id", d.ManagerID).Required().Positive()
	v.Field("status", d.Status).OneOf(StatusNames(), statusMessage, internal.ErrCodeInvalidStatus)
	return v.Validate()
}

// UpdateMeterAssignmentDTO changes status or engineer. ClearEngineer removes
// the engineer, since a null engineer_id cannot be told apart from an absent one.
type UpdateMeterAssignmentDTO struct {
	Status        *string `json:"status"`
	EngineerID    *int64  `json:"engineer_id"`
	ClearEngineer bool    `json:"clear_engineer"`
}

func (d *UpdateMeterAssignmentDTO) Validate() *internal.AppError {
	v := validation.NewValidator()
	if d.Status != nil {
		*d.Status = strings.ToUpper(strings.TrimSpace(*d.Status))
		v.Field("status", *d.Status).OneOf(StatusNames(), statusMessage, internal.ErrCodeInvalidStatus)
	}
	if d.EngineerID != nil {
		v.Field("engineer_id", *d.EngineerID).Required().Positive()
	}
	return v.Validate()
}

// MeterAssignmentFilter narrows the admin listing.
type MeterAssignmentFilter struct {
	DeviceID string
	Status   string
}

// AssignMeterDTO is the manager's body for assign-meter and unassign.
type AssignMeterDTO struct {
	MeterID    int64 `json:"meter_id"`
	EngineerID int64 `json:"engineer_id"`
}

func (d AssignMeterDTO) Validate() *internal.AppError {
	v := validation.NewValidator()
	v.Field("meter_id", d.MeterID).Required().Positive()
	v.Field("engineer_id", d.EngineerID).Required().Positive()
	return v.Validate()
}
