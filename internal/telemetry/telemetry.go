package telemetry

import (
	"time"

	telemetryDatamodel "github.com/frahmantamala/meter-fleet/internal/core/datamodel/telemetry"
)

// Measurements are the analog channels of a snapshot. Absent channels stay nil.
type Measurements struct {
	VoltageL1   *float64 `json:"voltage_l1"`
	VoltageL2   *float64 `json:"voltage_l2"`
	VoltageL3   *float64 `json:"voltage_l3"`
	VoltageL1L2 *float64 `json:"voltage_l1_l2"`
	VoltageL2L3 *float64 `json:"voltage_l2_l3"`
	VoltageL3L1 *float64 `json:"voltage_l3_l1"`

	CurrentL1 *float64 `json:"current_l1"`
	CurrentL2 *float64 `json:"current_l2"`
	CurrentL3 *float64 `json:"current_l3"`

	Frequency         *float64 `json:"frequency"`
	PowerFactor       *float64 `json:"power_factor"`
	ActivePowerKW     *float64 `json:"active_power_kw"`
	ReactivePowerKVAR *float64 `json:"reactive_power_kvar"`
	ApparentPowerKVA  *float64 `json:"apparent_power_kva"`
	EnergyKWH         *float64 `json:"energy_kwh"`

	EngineSpeedRPM *float64 `json:"engine_speed_rpm"`
	RunningHours   *float64 `json:"running_hours"`
	BatteryVoltage *float64 `json:"battery_voltage"`
	FuelLevel      *float64 `json:"fuel_level"`

	CoolantTemperature *float64 `json:"coolant_temperature"`
	OilTemperature     *float64 `json:"oil_temperature"`
	AmbientTemperature *float64 `json:"ambient_temperature"`

	OilPressure  *float64 `json:"oil_pressure"`
	FuelPressure *float64 `json:"fuel_pressure"`
}

// AlarmFlags are the discrete alarm inputs of a snapshot.
type AlarmFlags struct {
	LowOilPressureAlarm         bool `json:"low_oil_pressure_alarm"`
	HighCoolantTemperatureAlarm bool `json:"high_coolant_temperature_alarm"`
	OverSpeedAlarm              bool `json:"over_speed_alarm"`
	UnderVoltageAlarm           bool `json:"under_voltage_alarm"`
	OverVoltageAlarm            bool `json:"over_voltage_alarm"`
	OverCurrentAlarm            bool `json:"over_current_alarm"`
	LowFuelAlarm                bool `json:"low_fuel_alarm"`
	BatteryLowAlarm             bool `json:"battery_low_alarm"`
	EmergencyStopAlarm          bool `json:"emergency_stop_alarm"`
}

// Reading is the API view of a stored MeterData row.
type Reading struct {
	ID        int64     `json:"id"`
	MeterID   int64     `json:"meter"`
	DeviceID  string    `json:"device_id"`
	CreatedAt time.Time `json:"created_at"`
	Measurements
	AlarmFlags
}

// Metric names one analog column for report pivots.
type Metric struct {
	Name  string
	Value func(d *telemetryDatamodel.MeterData) *float64
}

// Alarm names one alarm column.
type Alarm struct {
	Name   string
	Raised func(d *telemetryDatamodel.MeterData) bool
}

var Metrics = []Metric{
	{"voltage_l1", func(d *telemetryDatamodel.MeterData) *float64 { return d.VoltageL1 }},
	{"voltage_l2", func(d *telemetryDatamodel.MeterData) *float64 { return d.VoltageL2 }},
	{"voltage_l3", func(d *telemetryDatamodel.MeterData) *float64 { return d.VoltageL3 }},
	{"voltage_l1_l2", func(d *telemetryDatamodel.MeterData) *float64 { return d.VoltageL1L2 }},
	{"voltage_l2_l3", func(d *telemetryDatamodel.MeterData) *float64 { return d.VoltageL2L3 }},
	{"voltage_l3_l1", func(d *telemetryDatamodel.MeterData) *float64 { return d.VoltageL3L1 }},
	{"current_l1", func(d *telemetryDatamodel.MeterData) *float64 { return d.CurrentL1 }},
	{"current_l2", func(d *telemetryDatamodel.MeterData) *float64 { return d.CurrentL2 }},
	{"current_l3", func(d *telemetryDatamodel.MeterData) *float64 { return d.CurrentL3 }},
	{"frequency", func(d *telemetryDatamodel.MeterData) *float64 { return d.Frequency }},
	{"power_factor", func(d *telemetryDatamodel.MeterData) *float64 { return d.PowerFactor }},
	{"active_power_kw", func(d *telemetryDatamodel.MeterData) *float64 { return d.ActivePowerKW }},
	{"reactive_power_kvar", func(d *telemetryDatamodel.MeterData) *float64 { return d.ReactivePowerKVAR }},
	{"apparent_power_kva", func(d *telemetryDatamodel.MeterData) *float64 { return d.ApparentPowerKVA }},
	{"energy_kwh", func(d *telemetryDatamodel.MeterData) *float64 { return d.EnergyKWH }},
	{"engine_speed_rpm", func(d *telemetryDatamodel.MeterData) *float64 { return d.EngineSpeedRPM }},
	{"running_hours", func(d *telemetryDatamodel.MeterData) *float64 { return d.RunningHours }},
	{"battery_voltage", func(d *telemetryDatamodel.MeterData) *float64 { return d.BatteryVoltage }},
	{"fuel_level", func(d *telemetryDatamodel.MeterData) *float64 { return d.FuelLevel }},
	{"coolant_temperature", func(d *telemetryDatamodel.MeterData) *float64 { return d.CoolantTemperature }},
	{"oil_temperature", func(d *telemetryDatamodel.MeterData) *float64 { return d.OilTemperature }},
	{"ambient_temperature", func(d *telemetryDatamodel.MeterData) *float64 { return d.AmbientTemperature }},
	{"oil_pressure", func(d *telemetryDatamodel.MeterData) *float64 { return d.OilPressure }},
	{"fuel_pressure", func(d *telemetryDatamodel.MeterData) *float64 { return d.FuelPressure }},
}

var Alarms = []Alarm{
	{"low_oil_pressure_alarm", func(d *telemetryDatamodel.MeterData) bool { return d.LowOilPressureAlarm }},
	{"high_coolant_temperature_alarm", func(d *telemetryDatamodel.MeterData) bool { return d.HighCoolantTemperatureAlarm }},
	{"over_speed_alarm", func(d *telemetryDatamodel.MeterData) bool { return d.OverSpeedAlarm }},
	{"under_voltage_alarm", func(d *telemetryDatamodel.MeterData) bool { return d.UnderVoltageAlarm }},
	{"over_voltage_alarm", func(d *telemetryDatamodel.MeterData) bool { return d.OverVoltageAlarm }},
	{"over_current_alarm", func(d *telemetryDatamodel.MeterData) bool { return d.OverCurrentAlarm }},
	{"low_fuel_alarm", func(d *telemetryDatamodel.MeterData) bool { return d.LowFuelAlarm }},
	{"battery_low_alarm", func(d *telemetryDatamodel.MeterData) bool { return d.BatteryLowAlarm }},
	{"emergency_stop_alarm", func(d *telemetryDatamodel.MeterData) bool { return d.EmergencyStopAlarm }},
}

// RaisedAlarms lists the names of the alarms set on d, in column order.
func RaisedAlarms(d *telemetryDatamodel.MeterData) []string {
	var raised []string
	for _, a := range Alarms {
		if a.Raised(d) {
			raised = append(raised, a.Name)
		}
	}
	return raised
}

func FromDataModel(d *telemetryDatamodel.MeterData, deviceID string) *Reading {
	return &Reading{
		ID:        d.ID,
		MeterID:   d.MeterID,
		DeviceID:  deviceID,
		CreatedAt: d.CreatedAt,
		Measurements: Measurements{
			VoltageL1:          d.VoltageL1,
			VoltageL2:          d.VoltageL2,
			VoltageL3:          d.VoltageL3,
			VoltageL1L2:        d.VoltageL1L2,
			VoltageL2L3:        d.VoltageL2L3,
			VoltageL3L1:        d.VoltageL3L1,
			CurrentL1:          d.CurrentL1,
			CurrentL2:          d.CurrentL2,
			CurrentL3:          d.CurrentL3,
			Frequency:          d.Frequency,
			PowerFactor:        d.PowerFactor,
			ActivePowerKW:      d.ActivePowerKW,
			ReactivePowerKVAR:  d.ReactivePowerKVAR,
			ApparentPowerKVA:   d.ApparentPowerKVA,
			EnergyKWH:          d.EnergyKWH,
			EngineSpeedRPM:     d.EngineSpeedRPM,
			RunningHours:       d.RunningHours,
			BatteryVoltage:     d.BatteryVoltage,
			FuelLevel:          d.FuelLevel,
			CoolantTemperature: d.CoolantTemperature,
			OilTemperature:     d.OilTemperature,
			AmbientTemperature: d.AmbientTemperature,
			OilPressure:        d.OilPressure,
			FuelPressure:       d.FuelPressure,
		},
		AlarmFlags: AlarmFlags{
			LowOilPressureAlarm:         d.LowOilPressureAlarm,
			HighCoolantTemperatureAlarm: d.HighCoolantTemperatureAlarm,
			OverSpeedAlarm:              d.OverSpeedAlarm,
			UnderVoltageAlarm:           d.UnderVoltageAlarm,
			OverVoltageAlarm:            d.OverVoltageAlarm,
			OverCurrentAlarm:            d.OverCurrentAlarm,
			LowFuelAlarm:                d.LowFuelAlarm,
			BatteryLowAlarm:             d.BatteryLowAlarm,
			EmergencyStopAlarm:          d.EmergencyStopAlarm,
		},
	}
}

func FromDataModels(rows []*telemetryDatamodel.MeterData, deviceID string) []*Reading {
	out := make([]*Reading, len(rows))
	for i, r := range rows {
		out[i] = FromDataModel(r, deviceID)
	}
	return out
}
