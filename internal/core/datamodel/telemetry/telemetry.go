package telemetry

import "time"

// MeterData is one append-only telemetry snapshot. The db tags serve the sqlx
// window reads used by reports.
type MeterData struct {
	ID        int64     `gorm:"primaryKey" db:"id"`
	MeterID   int64     `gorm:"column:meter_id;not null;index:idx_meter_data_meter_created,priority:1" db:"meter_id"`
	CreatedAt time.Time `gorm:"column:created_at;not null;index:idx_meter_data_meter_created,priority:2" db:"created_at"`

	VoltageL1   *float64 `gorm:"column:voltage_l1" db:"voltage_l1"`
	VoltageL2   *float64 `gorm:"column:voltage_l2" db:"voltage_l2"`
	VoltageL3   *float64 `gorm:"column:voltage_l3" db:"voltage_l3"`
	VoltageL1L2 *float64 `gorm:"column:voltage_l1_l2" db:"voltage_l1_l2"`
	VoltageL2L3 *float64 `gorm:"column:voltage_l2_l3" db:"voltage_l2_l3"`
	VoltageL3L1 *float64 `gorm:"column:voltage_l3_l1" db:"voltage_l3_l1"`

	CurrentL1 *float64 `gorm:"column:current_l1" db:"current_l1"`
	CurrentL2 *float64 `gorm:"column:current_l2" db:"current_l2"`
	CurrentL3 *float64 `gorm:"column:current_l3" db:"current_l3"`

	Frequency         *float64 `gorm:"column:frequency" db:"frequency"`
	PowerFactor       *float64 `gorm:"column:power_factor" db:"power_factor"`
	ActivePowerKW     *float64 `gorm:"column:active_power_kw" db:"active_power_kw"`
	ReactivePowerKVAR *float64 `gorm:"column:reactive_power_kvar" db:"reactive_power_kvar"`
	ApparentPowerKVA  *float64 `gorm:"column:apparent_power_kva" db:"apparent_power_kva"`
	EnergyKWH         *float64 `gorm:"column:energy_kwh" db:"energy_kwh"`

	EngineSpeedRPM *float64 `gorm:"column:engine_speed_rpm" db:"engine_speed_rpm"`
	RunningHours   *float64 `gorm:"column:running_hours" db:"running_hours"`
	BatteryVoltage *float64 `gorm:"column:battery_voltage" db:"battery_voltage"`
	FuelLevel      *float64 `gorm:"column:fuel_level" db:"fuel_level"`

	CoolantTemperature *float64 `gorm:"column:coolant_temperature" db:"coolant_temperature"`
	OilTemperature     *float64 `gorm:"column:oil_temperature" db:"oil_temperature"`
	AmbientTemperature *float64 `gorm:"column:ambient_temperature" db:"ambient_temperature"`

	OilPressure  *float64 `gorm:"column:oil_pressure" db:"oil_pressure"`
	FuelPressure *float64 `gorm:"column:fuel_pressure" db:"fuel_pressure"`

	LowOilPressureAlarm         bool `gorm:"column:low_oil_pressure_alarm;not null" db:"low_oil_pressure_alarm"`
	HighCoolantTemperatureAlarm bool `gorm:"column:high_coolant_temperature_alarm;not null" db:"high_coolant_temperature_alarm"`
	OverSpeedAlarm              bool `gorm:"column:over_speed_alarm;not null" db:"over_speed_alarm"`
	UnderVoltageAlarm           bool `gorm:"column:under_voltage_alarm;not null" db:"under_voltage_alarm"`
	OverVoltageAlarm            bool `gorm:"column:over_voltage_alarm;not null" db:"over_voltage_alarm"`
	OverCurrentAlarm            bool `gorm:"column:over_current_alarm;not null" db:"over_current_alarm"`
	LowFuelAlarm                bool `gorm:"column:low_fuel_alarm;not null" db:"low_fuel_alarm"`
	BatteryLowAlarm             bool `gorm:"column:battery_low_alarm;not null" db:"battery_low_alarm"`
	EmergencyStopAlarm          bool `gorm:"column:emergency_stop_alarm;not null" db:"emergency_stop_alarm"`
}

func (MeterData) TableName() string {
	return "meter_data"
}
