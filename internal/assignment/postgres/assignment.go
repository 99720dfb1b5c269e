package postgres

import (
	"context"
	"errors"

	"github.com/frahmantamala/meter-fleet/internal/assignment"
	assignmentDatamodel "github.com/frahmantamala/meter-fleet/internal/core/datamodel/assignment"
	meterDatamodel "github.com/frahmantamala/meter-fleet/internal/core/datamodel/meter"
	userDatamodel "github.com/frahmantamala/meter-fleet/internal/core/datamodel/user"
	"gorm.io/gorm"
)

type AssignmentRepository struct {
	db *gorm.DB
}

func NewAssignmentRepository(db *gorm.DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

// first loads one row into dst and reports whether it existed.
func first(q *gorm.DB, dst interface{}) (bool, error) {
	if err := q.First(dst).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *AssignmentRepository) GetUser(ctx context.Context, id int64) (*userDatamodel.User, error) {
	var u userDatamodel.User
	ok, err := first(r.db.WithContext(ctx).Where("id = ?", id), &u)
	if !ok {
		return nil, err
	}
	return &u, nil
}

func (r *AssignmentRepository) GetUsersByIDs(ctx context.Context, ids []int64) ([]*userDatamodel.User, error) {
	var users []*userDatamodel.User
	if len(ids) == 0 {
		return users, nil
	}
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Order("id").Find(&users).Error
	return users, err
}

func (r *AssignmentRepository) GetMeter(ctx context.Context, id int64) (*meterDatamodel.Meter, error) {
	var m meterDatamodel.Meter
	ok, err := first(r.db.WithContext(ctx).Where("id = ?", id), &m)
	if !ok {
		return nil, err
	}
	return &m, nil
}

func (r *AssignmentRepository) GetMetersByIDs(ctx context.Context, ids []int64) ([]*meterDatamodel.Meter, error) {
	var meters []*meterDatamodel.Meter
	if len(ids) == 0 {
		return meters, nil
	}
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&meters).Error
	return meters, err
}

func (r *AssignmentRepository) FindUserAssignment(ctx context.Context, managerID, engineerID int64) (*assignmentDatamodel.UserAssignment, error) {
	var a assignmentDatamodel.UserAssignment
	ok, err := first(r.db.WithContext(ctx).Where("manager_id = ? AND engineer_id = ?", managerID, engineerID), &a)
	if !ok {
		return nil, err
	}
	return &a, nil
}

func (r *AssignmentRepository) GetUserAssignment(ctx context.Context, id int64) (*assignmentDatamodel.UserAssignment, error) {
	var a assignmentDatamodel.UserAssignment
	ok, err := first(r.db.WithContext(ctx).Where("id = ?", id), &a)
	if !ok {
		return nil, err
	}
	return &a, nil
}

func (r *AssignmentRepository) ListUserAssignments(ctx context.Context) ([]*assignmentDatamodel.UserAssignment, error) {
	var rows []*assignmentDatamodel.UserAssignment
	err := r.db.WithContext(ctx).Order("assigned_at DESC, id DESC").Find(&rows).Error
	return rows, err
}

func (r *AssignmentRepository) ListUserAssignmentsByManager(ctx context.Context, managerID int64) ([]*assignmentDatamodel.UserAssignment, error) {
	var rows []*assignmentDatamodel.UserAssignment
	err := r.db.WithContext(ctx).Where("manager_id = ?", managerID).Order("assigned_at DESC, id DESC").Find(&rows).Error
	return rows, err
}

func (r *AssignmentRepository) CreateUserAssignment(ctx context.Context, a *assignmentDatamodel.UserAssignment) error {
	return r.db.WithContext(ctx).Create(a).Error
}

func (r *AssignmentRepository) DeleteUserAssignment(ctx context.Context, a *assignmentDatamodel.UserAssignment) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&assignmentDatamodel.MeterAssignment{}).
			Where("manager_id = ? AND engineer_id = ?", a.ManagerID, a.EngineerID).
			Update("engineer_id", nil).Error; err != nil {
			return err
		}
		return tx.Delete(&assignmentDatamodel.UserAssignment{}, a.ID).Error
	})
}

func (r *AssignmentRepository) GetMeterAssignment(ctx context.Context, id int64) (*assignmentDatamodel.MeterAssignment, error) {
	var a assignmentDatamodel.MeterAssignment
	ok, err := first(r.db.WithContext(ctx).Where("id = ?", id), &a)
	if !ok {
		return nil, err
	}
	return &a, nil
}

func (r *AssignmentRepository) ListMeterAssignments(ctx context.Context, filter assignment.MeterAssignmentFilter) ([]*assignmentDatamodel.MeterAssignment, error) {
	q := r.db.WithContext(ctx).Model(&assignmentDatamodel.MeterAssignment{})
	if filter.DeviceID != "" {
		q = q.Where("meter_id IN (?)", r.db.Model(&meterDatamodel.Meter{}).Select("id").Where("device_id = ?", filter.DeviceID))
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	var rows []*assignmentDatamodel.MeterAssignment
	err := q.Order("assigned_at DESC, id DESC").Find(&rows).Error
	return rows, err
}

func (r *AssignmentRepository) ListMeterAssignmentsByManager(ctx context.Context, managerID int64) ([]*assignmentDatamodel.MeterAssignment, error) {
	return r.listMeterAssignments(ctx, "manager_id = ?", managerID)
}

func (r *AssignmentRepository) ListMeterAssignmentsByEngineer(ctx context.Context, engineerID int64) ([]*assignmentDatamodel.MeterAssignment, error) {
	return r.listMeterAssignments(ctx, "engineer_id = ?", engineerID)
}

func (r *AssignmentRepository) ListMeterAssignmentsByMeter(ctx context.Context, meterID int64) ([]*assignmentDatamodel.MeterAssignment, error) {
	return r.listMeterAssignments(ctx, "meter_id = ?", meterID)
}

func (r *AssignmentRepository) FindMeterAssignments(ctx context.Context, meterID, managerID int64) ([]*assignmentDatamodel.MeterAssignment, error) {
	var rows []*assignmentDatamodel.MeterAssignment
	err := r.db.WithContext(ctx).
		Where("meter_id = ? AND manager_id = ?", meterID, managerID).
		Order("id").Find(&rows).Error
	return rows, err
}

func (r *AssignmentRepository) listMeterAssignments(ctx context.Context, query string, arg interface{}) ([]*assignmentDatamodel.MeterAssignment, error) {
	var rows []*assignmentDatamodel.MeterAssignment
	err := r.db.WithContext(ctx).Where(query, arg).Order("assigned_at DESC, id DESC").Find(&rows).Error
	return rows, err
}

func (r *AssignmentRepository) MeterAssignmentExists(ctx context.Context, meterID, managerID int64, status string, excludeID int64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&assignmentDatamodel.MeterAssignment{}).
		Where("meter_id = ? AND manager_id = ? AND status = ? AND id <> ?", meterID, managerID, status, excludeID).
		Count(&count).Error
	return count > 0, err
}

func (r *AssignmentRepository) CreateMeterAssignment(ctx context.Context, a *assignmentDatamodel.MeterAssignment) error {
	return r.db.WithContext(ctx).Create(a).Error
}

func (r *AssignmentRepository) UpdateMeterAssignment(ctx context.Context, a *assignmentDatamodel.MeterAssignment) error {
	return r.db.WithContext(ctx).Save(a).Error
}

func (r *AssignmentRepository) SetEngineer(ctx context.Context, meterID, managerID int64, engineerID *int64) error {
	return r.db.WithContext(ctx).Model(&assignmentDatamodel.MeterAssignment{}).
		Where("meter_id = ? AND manager_id = ?", meterID, managerID).
		Update("engineer_id", engineerID).Error
}

func (r *AssignmentRepository) DeleteMeterAssignment(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&assignmentDatamodel.MeterAssignment{}).
			Where("previous_assignment_id = ?", id).
			Update("previous_assignment_id", nil).Error; err != nil {
			return err
		}
		return tx.Delete(&assignmentDatamodel.MeterAssignment{}, id).Error
	})
}
