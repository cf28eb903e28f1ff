package source

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ecoaire/crac-forecast/internal/logger"
	"github.com/ecoaire/crac-forecast/internal/metrics"
	"github.com/ecoaire/crac-forecast/pkg/models"
)

// ResilientAlarmSource wraps an AlarmSource with bounded retries and a
// fail-fast breaker so a flapping database does not stall every refresh
// cycle for the full query timeout.
type ResilientAlarmSource struct {
	source        AlarmSource
	retryAttempts int
	retryDelay    time.Duration
	maxFailures   int
	cooloff       time.Duration

	mu          sync.Mutex
	failures    int
	lastFailure time.Time
}

type ResilientConfig struct {
	Source        AlarmSource
	RetryAttempts int
	RetryDelay    time.Duration
	MaxFailures   int
	Cooloff       time.Duration
}

func NewResilientAlarmSource(cfg ResilientConfig) *ResilientAlarmSource {
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.Cooloff <= 0 {
		cfg.Cooloff = 30 * time.Second
	}

	return &ResilientAlarmSource{
		source:        cfg.Source,
		retryAttempts: cfg.RetryAttempts,
		retryDelay:    cfg.RetryDelay,
		maxFailures:   cfg.MaxFailures,
		cooloff:       cfg.Cooloff,
	}
}

func (s *ResilientAlarmSource) Alarms(ctx context.Context, excludeDevices []string) ([]models.AlarmRecord, error) {
	if err := s.checkBreaker(); err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 1; attempt <= s.retryAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		records, err := s.source.Alarms(ctx, excludeDevices)
		if err == nil {
			s.recordSuccess()
			return records, nil
		}

		lastErr = err
		logger.Warnf("Alarm query attempt %d/%d failed: %v", attempt, s.retryAttempts, err)

		if attempt < s.retryAttempts {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(s.retryDelay):
			}
		}
	}

	s.recordFailure()
	return nil, lastErr
}

func (s *ResilientAlarmSource) HealthCheck(ctx context.Context) error {
	return s.source.HealthCheck(ctx)
}

func (s *ResilientAlarmSource) checkBreaker() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failures < s.maxFailures {
		return nil
	}
	if time.Since(s.lastFailure) >= s.cooloff {
		// Cooloff elapsed: allow one probe through.
		s.failures = s.maxFailures - 1
		return nil
	}
	return fmt.Errorf("%w: breaker open after %d consecutive failures", ErrSourceUnavailable, s.failures)
}

func (s *ResilientAlarmSource) recordSuccess() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = 0
	metrics.Get().SetBreakerState(0)
}

func (s *ResilientAlarmSource) recordFailure() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures++
	s.lastFailure = time.Now()
	if s.failures >= s.maxFailures {
		metrics.Get().SetBreakerState(1)
	}
}
