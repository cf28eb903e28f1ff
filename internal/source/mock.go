package source

import (
	"context"
	"sync"
	"time"

	"github.com/ecoaire/crac-forecast/pkg/models"
)

// MockAlarmSource serves a fixed alarm set, for tests and local development.
type MockAlarmSource struct {
	mu      sync.Mutex
	records []models.AlarmRecord
	err     error
	calls   int
}

func NewMockAlarmSource(records []models.AlarmRecord) *MockAlarmSource {
	return &MockAlarmSource{records: records}
}

func (m *MockAlarmSource) Alarms(_ context.Context, excludeDevices []string) ([]models.AlarmRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	if m.err != nil {
		return nil, m.err
	}

	excluded := make(map[string]bool, len(excludeDevices))
	for _, d := range excludeDevices {
		excluded[d] = true
	}

	var out []models.AlarmRecord
	for _, rec := range m.records {
		if !excluded[rec.Device] {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (m *MockAlarmSource) HealthCheck(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

func (m *MockAlarmSource) SetRecords(records []models.AlarmRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = records
}

func (m *MockAlarmSource) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *MockAlarmSource) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// MockMaintenanceSource serves fixed maintenance metadata.
type MockMaintenanceSource struct {
	Meta *MaintenanceMetadata
	Err  error
}

func NewMockMaintenanceSource() *MockMaintenanceSource {
	return &MockMaintenanceSource{
		Meta: &MaintenanceMetadata{
			LastMaintenance: make(map[string]time.Time),
			Clients:         make(map[string]string),
			Brands:          make(map[string]string),
			Models:          make(map[string]string),
		},
	}
}

func (m *MockMaintenanceSource) Metadata(context.Context, []string) (*MaintenanceMetadata, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Meta, nil
}
