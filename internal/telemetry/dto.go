package telemetry

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	z "github.com/Oudwins/zog"
	"github.com/frahmantamala/meter-fleet/internal"
	"github.com/frahmantamala/meter-fleet/internal/core/common/validation"
	telemetryDatamodel "github.com/frahmantamala/meter-fleet/internal/core/datamodel/telemetry"
)

const defaultPageSize = 100

// IngestDTO is one device snapshot. MeterID is the meter's device id.
type IngestDTO struct {
	MeterID string `json:"meter_id"`
	Measurements
	AlarmFlags
}

var ingestSchema = z.Struct(z.Shape{
	"MeterID": z.String().Trim().Required().Max(100),
})

var measurementsSchema = z.Struct(z.Shape{
	"PowerFactor":    z.Ptr(z.Float64().GTE(-1).LTE(1)),
	"FuelLevel":      z.Ptr(z.Float64().GTE(0).LTE(100)),
	"Frequency":      z.Ptr(z.Float64().GTE(0)),
	"RunningHours":   z.Ptr(z.Float64().GTE(0)),
	"EngineSpeedRPM": z.Ptr(z.Float64().GTE(0)),
})

// fieldMessages maps lower-cased schema keys to the JSON field and message
// reported to the client.
var fieldMessages = map[string]internal.ValidationError{
	"meterid":        {Field: "meter_id", Message: "meter_id is required and must be at most 100 characters"},
	"powerfactor":    {Field: "power_factor", Message: "power_factor must be between -1 and 1"},
	"fuellevel":      {Field: "fuel_level", Message: "fuel_level must be between 0 and 100"},
	"frequency":      {Field: "frequency", Message: "frequency must not be negative"},
	"runninghours":   {Field: "running_hours", Message: "running_hours must not be negative"},
	"enginespeedrpm": {Field: "engine_speed_rpm", Message: "engine_speed_rpm must not be negative"},
}

func (d *IngestDTO) Validate() *internal.AppError {
	d.MeterID = strings.TrimSpace(d.MeterID)

	var failures []internal.ValidationError
	collect := func(issues map[string][]*z.ZogIssue) {
		for key := range issues {
			if strings.HasPrefix(key, "$") {
				continue
			}
			if ve, ok := fieldMessages[strings.ToLower(strings.ReplaceAll(key, "_", ""))]; ok {
				ve.Code = string(internal.ErrCodeValidationFailed)
				failures = append(failures, ve)
			}
		}
	}
	collect(ingestSchema.Validate(d))
	collect(measurementsSchema.Validate(&d.Measurements))

	if len(failures) > 0 {
		return internal.NewValidationFieldErrors(failures...)
	}
	if d.MeterID == "" {
		return internal.NewValidationFieldErrors(fieldMessages["meterid"])
	}
	return nil
}

func (d *IngestDTO) ToDataModel(meterID int64, at time.Time) *telemetryDatamodel.MeterData {
	m, a := d.Measurements, d.AlarmFlags
	return &telemetryDatamodel.MeterData{
		MeterID:   meterID,
		CreatedAt: at,

		VoltageL1:          m.VoltageL1,
		VoltageL2:          m.VoltageL2,
		VoltageL3:          m.VoltageL3,
		VoltageL1L2:        m.VoltageL1L2,
		VoltageL2L3:        m.VoltageL2L3,
		VoltageL3L1:        m.VoltageL3L1,
		CurrentL1:          m.CurrentL1,
		CurrentL2:          m.CurrentL2,
		CurrentL3:          m.CurrentL3,
		Frequency:          m.Frequency,
		PowerFactor:        m.PowerFactor,
		ActivePowerKW:      m.ActivePowerKW,
		ReactivePowerKVAR:  m.ReactivePowerKVAR,
		ApparentPowerKVA:   m.ApparentPowerKVA,
		EnergyKWH:          m.EnergyKWH,
		EngineSpeedRPM:     m.EngineSpeedRPM,
		RunningHours:       m.RunningHours,
		BatteryVoltage:     m.BatteryVoltage,
		FuelLevel:          m.FuelLevel,
		CoolantTemperature: m.CoolantTemperature,
		OilTemperature:     m.OilTemperature,
		AmbientTemperature: m.AmbientTemperature,
		OilPressure:        m.OilPressure,
		FuelPressure:       m.FuelPressure,

		LowOilPressureAlarm:         a.LowOilPressureAlarm,
		HighCoolantTemperatureAlarm: a.HighCoolantTemperatureAlarm,
		OverSpeedAlarm:              a.OverSpeedAlarm,
		UnderVoltageAlarm:           a.UnderVoltageAlarm,
		OverVoltageAlarm:            a.OverVoltageAlarm,
		OverCurrentAlarm:            a.OverCurrentAlarm,
		LowFuelAlarm:                a.LowFuelAlarm,
		BatteryLowAlarm:             a.BatteryLowAlarm,
		EmergencyStopAlarm:          a.EmergencyStopAlarm,
	}
}

// ListQuery selects a window of one meter's readings, newest first.
type ListQuery struct {
	DeviceID string
	Start    time.Time
	End      time.Time
	Limit    int
}

// ParseListQuery reads meter_id, start, end (RFC 3339) and limit. Limit is
// clamped to maxLimit.
func ParseListQuery(q url.Values, maxLimit int) (ListQuery, *internal.AppError) {
	var failures []internal.ValidationError
	fail := func(field, msg string) {
		failures = append(failures, internal.ValidationError{Field: field, Message: msg, Code: string(internal.ErrCodeValidationFailed)})
	}

	out := ListQuery{DeviceID: strings.TrimSpace(q.Get("meter_id")), Limit: defaultPageSize}
	if out.DeviceID == "" {
		fail("meter_id", "meter_id is required")
	}
	for _, p := range []struct {
		name string
		dst  *time.Time
	}{{"start", &out.Start}, {"end", &out.End}} {
		raw := q.Get(p.name)
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			fail(p.name, p.name+" must be an RFC 3339 timestamp")
			continue
		}
		*p.dst = t.UTC()
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			fail("limit", "limit must be a positive integer")
		} else {
			out.Limit = n
		}
	}
	if len(failures) > 0 {
		return out, internal.NewValidationFieldErrors(failures...)
	}
	if maxLimit > 0 && out.Limit > maxLimit {
		out.Limit = maxLimit
	}
	if err := validation.ValidateTimeRange(out.Start, out.End); err != nil {
		return out, err
	}
	return out, nil
}
