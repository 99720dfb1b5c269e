package assignment

import "time"

type UserAssignment struct {
	ID         int64     `gorm:"primaryKey"`
	ManagerID  int64     `gorm:"column:manager_id;not null;uniqueIndex:uq_user_assignments_pair"`
	EngineerID int64     `gorm:"column:engineer_id;not null;uniqueIndex:uq_user_assignments_pair;index"`
	AssignedAt time.Time `gorm:"column:assigned_at;autoCreateTime"`
}

func (UserAssignment) TableName() string {
	return "user_assignments"
}

type MeterAssignment struct {
	ID                   int64     `gorm:"primaryKey"`
	MeterID              int64     `gorm:"column:meter_id;not null;uniqueIndex:uq_meter_assignments_status"`
	ManagerID            int64     `gorm:"column:manager_id;not null;uniqueIndex:uq_meter_assignments_status"`
	Status               string    `gorm:"column:status;size:20;not null;uniqueIndex:uq_meter_assignments_status"`
	EngineerID           *int64    `gorm:"column:engineer_id;index"`
	PreviousAssignmentID *int64    `gorm:"column:previous_assignment_id"`
	AssignedAt           time.Time `gorm:"column:assigned_at;autoCreateTime"`
	UpdatedAt            time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (MeterAssignment) TableName() string {
	return "meter_assignments"
}
