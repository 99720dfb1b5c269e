package postgres

import (
	"context"
	"time"

	telemetryDatamodel "github.com/frahmantamala/meter-fleet/internal/core/datamodel/telemetry"
	"gorm.io/gorm"
)

type MeterDataRepository struct {
	db *gorm.DB
}

func NewMeterDataRepository(db *gorm.DB) *MeterDataRepository {
	return &MeterDataRepository{db: db}
}

func (r *MeterDataRepository) Create(ctx context.Context, d *telemetryDatamodel.MeterData) error {
	return r.db.WithContext(ctx).Create(d).Error
}

func (r *MeterDataRepository) List(ctx context.Context, meterID int64, start, end time.Time, limit int) ([]*telemetryDatamodel.MeterData, error) {
	q := r.db.WithContext(ctx).Where("meter_id = ?", meterID)
	if !start.IsZero() {
		q = q.Where("created_at >= ?", start)
	}
	if !end.IsZero() {
		q = q.Where("created_at <= ?", end)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}

	var rows []*telemetryDatamodel.MeterData
	if err := q.Order("created_at DESC").Order("id DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
