package report

import (
	"bytes"
	"fmt"

	telemetryDatamodel "github.com/frahmantamala/meter-fleet/internal/core/datamodel/telemetry"
	"github.com/frahmantamala/meter-fleet/internal/telemetry"
	"github.com/xuri/excelize/v2"
)

const (
	timestampLayout = "2006-01-02 15:04:05"
	alarmRaised     = "ALARM"
	alarmClear      = "OK"
)

// pivot writes one metric per row and one reading per column. Column A holds
// the metric names and row 1 the reading timestamps.
func pivot(sheet string, rows []*telemetryDatamodel.MeterData, labels []string, cell func(d *telemetryDatamodel.MeterData, i int) interface{}) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheet)
	if err != nil {
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("drop default sheet: %w", err)
	}

	set := func(col, row int, v interface{}) error {
		name, err := excelize.CoordinatesToCellName(col, row)
		if err != nil {
			return err
		}
		return f.SetCellValue(sheet, name, v)
	}

	if err := set(1, 1, "Metric"); err != nil {
		return nil, err
	}
	for c, d := range rows {
		if err := set(c+2, 1, d.CreatedAt.UTC().Format(timestampLayout)); err != nil {
			return nil, err
		}
	}
	for r, label := range labels {
		if err := set(1, r+2, label); err != nil {
			return nil, err
		}
		for c, d := range rows {
			if v := cell(d, r); v != nil {
				if err := set(c+2, r+2, v); err != nil {
					return nil, err
				}
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf, nil
}

// MeterWorkbook pivots every analog channel of rows. Missing values stay blank.
func MeterWorkbook(rows []*telemetryDatamodel.MeterData) (*bytes.Buffer, error) {
	labels := make([]string, len(telemetry.Metrics))
	for i, m := range telemetry.Metrics {
		labels[i] = m.Name
	}
	return pivot("Meter Data", rows, labels, func(d *telemetryDatamodel.MeterData, i int) interface{} {
		if v := telemetry.Metrics[i].Value(d); v != nil {
			return *v
		}
		return nil
	})
}

// AlarmWorkbook pivots the alarm columns of rows, which should already be
// limited to readings with at least one alarm.
func AlarmWorkbook(rows []*telemetryDatamodel.MeterData) (*bytes.Buffer, error) {
	labels := make([]string, len(telemetry.Alarms))
	for i, a := range telemetry.Alarms {
		labels[i] = a.Name
	}
	return pivot("Alarms", rows, labels, func(d *telemetryDatamodel.MeterData, i int) interface{} {
		if telemetry.Alarms[i].Raised(d) {
			return alarmRaised
		}
		return alarmClear
	})
}

// WithAlarms keeps the rows that raised at least one alarm.
func WithAlarms(rows []*telemetryDatamodel.MeterData) []*telemetryDatamodel.MeterData {
	var out []*telemetryDatamodel.MeterData
	for _, d := range rows {
		if len(telemetry.RaisedAlarms(d)) > 0 {
			out = append(out, d)
		}
	}
	return out
}
