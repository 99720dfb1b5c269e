package meter

import (
	"strings"

	"github.com/frahmantamala/meter-fleet/internal"
	"github.com/frahmantamala/meter-fleet/internal/core/common/validation"
)

type CreateMeterDTO struct {
	DeviceID string `json:"device_id"`
	Location string `json:"location"`
}

// UpdateMeterDTO serves PUT and PATCH; nil fields are kept.
type UpdateMeterDTO struct {
	DeviceID *string `json:"device_id"`
	Location *string `json:"location"`
}

func (d *CreateMeterDTO) Validate() *internal.AppError {
	d.DeviceID = strings.TrimSpace(d.DeviceID)
	d.Location = strings.TrimSpace(d.Location)

	v := validation.NewValidator()
	v.Field("device_id", d.DeviceID).Required().MaxLength(100)
	v.Field("location", d.Location).MaxLength(255)
	return v.Validate()
}

func (d *UpdateMeterDTO) Validate() *internal.AppError {
	v := validation.NewValidator()
	if d.DeviceID != nil {
		*d.DeviceID = strings.TrimSpace(*d.DeviceID)
		v.Field("device_id", *d.DeviceID).Required().MaxLength(100)
	}
	if d.Location != nil {
		*d.Location = strings.TrimSpace(*d.Location)
		v.Field("location", *d.Location).MaxLength(255)
	}
	return v.Validate()
}
