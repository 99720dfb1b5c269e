package postgres

import (
	"context"
	"errors"

	assignmentDatamodel "github.com/frahmantamala/meter-fleet/internal/core/datamodel/assignment"
	meterDatamodel "github.com/frahmantamala/meter-fleet/internal/core/datamodel/meter"
	telemetryDatamodel "github.com/frahmantamala/meter-fleet/internal/core/datamodel/telemetry"
	"gorm.io/gorm"
)

type MeterRepository struct {
	db *gorm.DB
}

func NewMeterRepository(db *gorm.DB) *MeterRepository {
	return &MeterRepository{db: db}
}

func (r *MeterRepository) List(ctx context.Context) ([]*meterDatamodel.Meter, error) {
	var meters []*meterDatamodel.Meter
	err := r.db.WithContext(ctx).Order("created_at DESC, id DESC").Find(&meters).Error
	return meters, err
}

func (r *MeterRepository) GetByDeviceID(ctx context.Context, deviceID string) (*meterDatamodel.Meter, error) {
	return r.first(ctx, "device_id = ?", deviceID)
}

func (r *MeterRepository) GetByID(ctx context.Context, id int64) (*meterDatamodel.Meter, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *MeterRepository) first(ctx context.Context, query string, arg interface{}) (*meterDatamodel.Meter, error) {
	var m meterDatamodel.Meter
	if err := r.db.WithContext(ctx).Where(query, arg).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}

func (r *MeterRepository) ExistsDeviceID(ctx context.Context, deviceID string, excludeID int64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&meterDatamodel.Meter{}).
		Where("device_id = ? AND id <> ?", deviceID, excludeID).
		Count(&count).Error
	return count > 0, err
}

func (r *MeterRepository) Create(ctx context.Context, m *meterDatamodel.Meter) error {
	return r.db.WithContext(ctx).Create(m).Error
}

func (r *MeterRepository) Update(ctx context.Context, m *meterDatamodel.Meter) error {
	return r.db.WithContext(ctx).Save(m).Error
}

func (r *MeterRepository) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("meter_id = ?", id).Delete(&telemetryDatamodel.MeterData{}).Error; err != nil {
			return err
		}
		owned := tx.Model(&assignmentDatamodel.MeterAssignment{}).Select("id").Where("meter_id = ?", id)
		if err := tx.Model(&assignmentDatamodel.MeterAssignment{}).
			Where("previous_assignment_id IN (?)", owned).
			Update("previous_assignment_id", nil).Error; err != nil {
			return err
		}
		if err := tx.Where("meter_id = ?", id).Delete(&assignmentDatamodel.MeterAssignment{}).Error; err != nil {
			return err
		}
		return tx.Delete(&meterDatamodel.Meter{}, id).Error
	})
}
