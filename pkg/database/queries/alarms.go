package queries

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"

	"github.com/ecoaire/crac-forecast/pkg/models"
)

type AlarmRepository struct {
	db *sql.DB
}

func NewAlarmRepository(db *sql.DB) *AlarmRepository {
	return &AlarmRepository{db: db}
}

// GetCoolingAlarms returns the full alarm history for cooling devices,
// oldest first, minus the excluded device names.
func (r *AlarmRepository) GetCoolingAlarms(ctx context.Context, excludeDevices []string) ([]models.AlarmRecord, error) {
	query := `
		SELECT
			a.alarm_date,
			d.serial_number,
			d.model,
			d.name,
			a.resolution_date,
			a.description,
			a.severity
		FROM alarms a
		JOIN devices d ON a.device_id = d.id
		WHERE LOWER(d.type) = 'cooling device'
		  AND NOT (d.name = ANY($1))
		ORDER BY a.alarm_date`

	if excludeDevices == nil {
		excludeDevices = []string{}
	}

	rows, err := r.db.QueryContext(ctx, query, pq.Array(excludeDevices))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []models.AlarmRecord
	for rows.Next() {
		var (
			rec        models.AlarmRecord
			serial     sql.NullString
			model      sql.NullString
			resolvedAt sql.NullTime
		)
		if err := rows.Scan(&rec.Timestamp, &serial, &model, &rec.Device, &resolvedAt, &rec.Description, &rec.Severity); err != nil {
			return nil, err
		}
		rec.Serial = serial.String
		rec.Model = model.String
		if resolvedAt.Valid {
			t := resolvedAt.Time
			rec.ResolvedAt = &t
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}

// CountAlarmsSince reports alarm volume per device after the cutoff, for
// source health reporting.
func (r *AlarmRepository) CountAlarmsSince(ctx context.Context, cutoff time.Time) (map[string]int, error) {
	query := `
		SELECT d.name, COUNT(*)
		FROM alarms a
		JOIN devices d ON a.device_id = d.id
		WHERE LOWER(d.type) = 'cooling device' AND a.alarm_date >= $1
		GROUP BY d.name`

	rows, err := r.db.QueryContext(ctx, query, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var device string
		var count int
		if err := rows.Scan(&device, &count); err != nil {
			return nil, err
		}
		counts[device] = count
	}

	return counts, rows.Err()
}
