package report

import (
	"time"

	"github.com/frahmantamala/meter-fleet/internal"
	"github.com/frahmantamala/meter-fleet/internal/core/common/validation"
)

type Kind string

const (
	KindMeter Kind = "meter"
	KindAlarm Kind = "alarm"
)

// GenerateDTO is the body of both report endpoints. MeterID is the device id.
type GenerateDTO struct {
	MeterID string     `json:"meter_id"`
	Start   *time.Time `json:"start"`
	End     *time.Time `json:"end"`
}

func (d GenerateDTO) Validate() *internal.AppError {
	v := validation.NewValidator()
	v.Field("meter_id", d.MeterID).Required().MaxLength(100)
	return v.Validate()
}

// Window resolves the requested range. A missing end is now and a missing
// start is end minus def.
func (d GenerateDTO) Window(now time.Time, def time.Duration) (time.Time, time.Time, *internal.AppError) {
	end := now
	if d.End != nil {
		end = d.End.UTC()
	}
	start := end.Add(-def)
	if d.Start != nil {
		start = d.Start.UTC()
	}
	if err := validation.ValidateTimeRange(start, end); err != nil {
		return time.Time{}, time.Time{}, err
	}
	return start, end, nil
}

// Result tells the client where to fetch the workbook, once.
type Result struct {
	FileName    string    `json:"file_name"`
	DownloadURL string    `json:"download_url"`
	ExpiresAt   time.Time `json:"expires_at"`
}
