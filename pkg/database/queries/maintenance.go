package queries

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"
)

type MaintenanceRepository struct {
	db *sql.DB
}

func NewMaintenanceRepository(db *sql.DB) *MaintenanceRepository {
	return &MaintenanceRepository{db: db}
}

// MaintenanceRow is the most recent completed maintenance visit for a serial.
type MaintenanceRow struct {
	Serial       string
	CompletedAt  time.Time
	CustomerName sql.NullString
	DeviceBrand  sql.NullString
	DeviceModel  sql.NullString
}

// GetLatestBySerial returns the latest completed maintenance record per
// serial, restricted to the given serial numbers.
func (r *MaintenanceRepository) GetLatestBySerial(ctx context.Context, serials []string) ([]MaintenanceRow, error) {
	if len(serials) == 0 {
		return nil, nil
	}

	query := `
		SELECT DISTINCT ON (serial)
			serial,
			maintenance_completed_at,
			customer_name,
			device_brand,
			device_model
		FROM maintenance_visits
		WHERE serial = ANY($1)
		  AND maintenance_completed_at IS NOT NULL
		ORDER BY serial, maintenance_completed_at DESC`

	rows, err := r.db.QueryContext(ctx, query, pq.Array(serials))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []MaintenanceRow
	for rows.Next() {
		var row MaintenanceRow
		if err := rows.Scan(&row.Serial, &row.CompletedAt, &row.CustomerName, &row.DeviceBrand, &row.DeviceModel); err != nil {
			return nil, err
		}
		results = append(results, row)
	}

	return results, rows.Err()
}
