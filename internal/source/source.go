package source

import (
	"context"
	"errors"
	"time"

	"github.com/ecoaire/crac-forecast/pkg/models"
)

var (
	ErrSourceUnavailable = errors.New("data source unavailable")
	ErrQueryFailed       = errors.New("data source query failed")
)

// AlarmSource supplies the alarm event stream the forecast pipeline runs on.
type AlarmSource interface {
	// Alarms returns the full cooling-device alarm history, oldest first,
	// minus the excluded device names.
	Alarms(ctx context.Context, excludeDevices []string) ([]models.AlarmRecord, error)

	// HealthCheck verifies the source can be reached.
	HealthCheck(ctx context.Context) error
}

// MaintenanceMetadata is the latest-per-serial maintenance lookup tables.
type MaintenanceMetadata struct {
	LastMaintenance map[string]time.Time
	Clients         map[string]string
	Brands          map[string]string
	Models          map[string]string
}

// MaintenanceSource supplies maintenance metadata for a set of serials.
type MaintenanceSource interface {
	Metadata(ctx context.Context, serials []string) (*MaintenanceMetadata, error)
}
