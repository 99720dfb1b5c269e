package report

import (
	"context"
	"time"

	telemetryDatamodel "github.com/frahmantamala/meter-fleet/internal/core/datamodel/telemetry"
	"github.com/jmoiron/sqlx"
)

const windowQuery = `SELECT * FROM meter_data
WHERE meter_id = ? AND created_at >= ? AND created_at <= ?
ORDER BY created_at ASC, id ASC
LIMIT ?`

// WindowReader reads report windows straight through sqlx, oldest first.
type WindowReader struct {
	db *sqlx.DB
}

func NewWindowReader(db *sqlx.DB) *WindowReader {
	return &WindowReader{db: db}
}

func (r *WindowReader) Rows(ctx context.Context, meterID int64, start, end time.Time, limit int) ([]*telemetryDatamodel.MeterData, error) {
	var rows []*telemetryDatamodel.MeterData
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(windowQuery), meterID, start, end, limit); err != nil {
		return nil, err
	}
	return rows, nil
}
