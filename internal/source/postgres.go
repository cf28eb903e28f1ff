package source

import (
	"context"
	"fmt"
	"time"

	"github.com/ecoaire/crac-forecast/internal/logger"
	"github.com/ecoaire/crac-forecast/pkg/database"
	"github.com/ecoaire/crac-forecast/pkg/database/queries"
	"github.com/ecoaire/crac-forecast/pkg/models"
)

// PostgresAlarmSource reads the alarm history from the monitoring database.
type PostgresAlarmSource struct {
	db   *database.DB
	repo *queries.AlarmRepository
}

func NewPostgresAlarmSource(db *database.DB) *PostgresAlarmSource {
	return &PostgresAlarmSource{
		db:   db,
		repo: queries.NewAlarmRepository(db.DB),
	}
}

func (s *PostgresAlarmSource) Alarms(ctx context.Context, excludeDevices []string) ([]models.AlarmRecord, error) {
	records, err := s.repo.GetCoolingAlarms(ctx, excludeDevices)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQueryFailed, err)
	}

	logger.Debugf("Alarm source returned %d records", len(records))
	return records, nil
}

func (s *PostgresAlarmSource) HealthCheck(ctx context.Context) error {
	if err := s.db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	return nil
}

// PostgresMaintenanceSource reads maintenance visit metadata from the
// maintenance database.
type PostgresMaintenanceSource struct {
	repo *queries.MaintenanceRepository
}

func NewPostgresMaintenanceSource(db *database.DB) *PostgresMaintenanceSource {
	return &PostgresMaintenanceSource{
		repo: queries.NewMaintenanceRepository(db.DB),
	}
}

func (s *PostgresMaintenanceSource) Metadata(ctx context.Context, serials []string) (*MaintenanceMetadata, error) {
	meta := &MaintenanceMetadata{
		LastMaintenance: make(map[string]time.Time),
		Clients:         make(map[string]string),
		Brands:          make(map[string]string),
		Models:          make(map[string]string),
	}

	if len(serials) == 0 {
		return meta, nil
	}

	rows, err := s.repo.GetLatestBySerial(ctx, serials)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQueryFailed, err)
	}

	for _, row := range rows {
		meta.LastMaintenance[row.Serial] = row.CompletedAt
		if row.CustomerName.Valid {
			meta.Clients[row.Serial] = row.CustomerName.String
		}
		if row.DeviceBrand.Valid {
			meta.Brands[row.Serial] = row.DeviceBrand.String
		}
		if row.DeviceModel.Valid {
			meta.Models[row.Serial] = row.DeviceModel.String
		}
	}

	logger.Debugf("Maintenance source returned metadata for %d serials", len(meta.LastMaintenance))
	return meta, nil
}
