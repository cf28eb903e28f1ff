package source

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecoaire/crac-forecast/pkg/models"
)

func newResilient(inner AlarmSource) *ResilientAlarmSource {
	return NewResilientAlarmSource(ResilientConfig{
		Source:        inner,
		RetryAttempts: 3,
		RetryDelay:    time.Millisecond,
		MaxFailures:   2,
		Cooloff:       50 * time.Millisecond,
	})
}

func TestResilientAlarmSource_PassThrough(t *testing.T) {
	inner := NewMockAlarmSource([]models.AlarmRecord{{Device: "CRAC-01"}})
	s := newResilient(inner)

	records, err := s.Alarms(context.Background(), nil)

	require.NoError(t, err)
	assert.Len(t, records, 1)
	assert.Equal(t, 1, inner.Calls())
}

func TestResilientAlarmSource_RetriesThenFails(t *testing.T) {
	inner := NewMockAlarmSource(nil)
	inner.SetError(errors.New("connection refused"))
	s := newResilient(inner)

	_, err := s.Alarms(context.Background(), nil)

	require.Error(t, err)
	assert.Equal(t, 3, inner.Calls())
}

func TestResilientAlarmSource_RecoversMidRetry(t *testing.T) {
	inner := NewMockAlarmSource(nil)
	inner.SetError(errors.New("transient"))
	s := newResilient(inner)

	done := make(chan struct{})
	go func() {
		defer close(done)
		time.Sleep(500 * time.Microsecond)
		inner.SetError(nil)
		inner.SetRecords([]models.AlarmRecord{{Device: "CRAC-01"}})
	}()

	records, err := s.Alarms(context.Background(), nil)
	<-done

	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestResilientAlarmSource_BreakerOpensAndProbes(t *testing.T) {
	inner := NewMockAlarmSource(nil)
	inner.SetError(errors.New("down"))
	s := newResilient(inner)

	// Two failed rounds trip the breaker.
	_, err := s.Alarms(context.Background(), nil)
	require.Error(t, err)
	_, err = s.Alarms(context.Background(), nil)
	require.Error(t, err)

	callsBefore := inner.Calls()
	_, err = s.Alarms(context.Background(), nil)
	require.ErrorIs(t, err, ErrSourceUnavailable)
	assert.Equal(t, callsBefore, inner.Calls(), "open breaker must not reach the source")

	// After the cooloff one probe goes through and a success resets the
	// breaker.
	time.Sleep(60 * time.Millisecond)
	inner.SetError(nil)
	inner.SetRecords([]models.AlarmRecord{{Device: "CRAC-01"}})

	records, err := s.Alarms(context.Background(), nil)
	require.NoError(t, err)
	assert.Len(t, records, 1)

	_, err = s.Alarms(context.Background(), nil)
	assert.NoError(t, err)
}

func TestResilientAlarmSource_ContextCancelled(t *testing.T) {
	inner := NewMockAlarmSource(nil)
	inner.SetError(errors.New("slow"))
	s := NewResilientAlarmSource(ResilientConfig{
		Source:        inner,
		RetryAttempts: 5,
		RetryDelay:    time.Hour,
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Alarms(ctx, nil)
	assert.ErrorIs(t, err, context.Canceled)
}
