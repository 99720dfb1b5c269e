package meter

import (
	"time"

	meterDatamodel "github.com/frahmantamala/meter-fleet/internal/core/datamodel/meter"
)

type Meter struct {
	ID        int64     `json:"id"`
	DeviceID  string    `json:"device_id"`
	Location  string    `json:"location"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func FromDataModel(m *meterDatamodel.Meter) *Meter {
	return &Meter{
		ID:        m.ID,
		DeviceID:  m.DeviceID,
		Location:  m.Location,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func FromDataModels(meters []*meterDatamodel.Meter) []*Meter {
	out := make([]*Meter, len(meters))
	for i, m := range meters {
		out[i] = FromDataModel(m)
	}
	return out
}
