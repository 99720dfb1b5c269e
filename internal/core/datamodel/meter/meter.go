package meter

import "time"

type Meter struct {
	ID        int64     `gorm:"primaryKey"`
	DeviceID  string    `gorm:"column:device_id;size:100;uniqueIndex;not null"`
	Location  string    `gorm:"column:location;size:255"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Meter) TableName() string {
	return "meters"
}
