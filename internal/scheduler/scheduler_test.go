package scheduler

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wicksy-telegram-bot/internal/alert"
	"wicksy-telegram-bot/internal/database"
	"wicksy-telegram-bot/internal/metrics"
	"wicksy-telegram-bot/internal/price"
	"wicksy-telegram-bot/internal/types"
)

func TestSchedulerRunsJobsRepeatedly(t *testing.T) {
	var runs atomic.Int32
	s := New(Job{
		Name:     "tick",
		Interval: 20 * time.Millisecond,
		Run: func(context.Context) error {
			runs.Add(1)
			return nil
		},
	})
	require.NoError(t, s.Start(context.Background()))

	assert.Eventually(t, func() bool { return runs.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)

	s.Stop()
	stopped := runs.Load()
	time.Sleep(100 * time.Millisecond)
	assert.LessOrEqual(t, runs.Load(), stopped+1)
}

func TestSchedulerRejectsNonPositiveInterval(t *testing.T) {
	s := New(Job{Name: "broken", Run: func(context.Context) error { return nil }})
	err := s.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken")
}

func TestRunJobSkipsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	runJob(ctx, Job{Name: "late", Run: func(context.Context) error {
		called = true
		return nil
	}})
	assert.False(t, called)
}

func TestRunJobToleratesErrors(t *testing.T) {
	for _, err := range []error{
		alert.ErrPassInProgress,
		errors.Wrap(alert.ErrPassInProgress, "wrapped"),
		errors.New("boom"),
	} {
		assert.NotPanics(t, func() {
			runJob(context.Background(), Job{Name: "failing", Run: func(context.Context) error { return err }})
		})
	}
}

type emptyStore struct{ lists atomic.Int32 }

func (s *emptyStore) ListActiveAlerts(context.Context) ([]types.Alert, error) {
	s.lists.Add(1)
	return nil, nil
}

func (s *emptyStore) DeleteAlerts(context.Context, []int64) error { return nil }

type noPrices struct{}

func (noPrices) Get(context.Context, string) price.Quote { return price.Quote{} }

type noDeliverer struct{}

func (noDeliverer) Deliver(context.Context, alert.Notification) bool { return false }

func TestAlertJobRunsEvaluator(t *testing.T) {
	store := &emptyStore{}
	job := AlertJob(alert.NewEvaluator(store, noPrices{}, noDeliverer{}), time.Minute)

	assert.Equal(t, "alerts", job.Name)
	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, int32(1), store.lists.Load())
}

func TestMetricsJobPersistsCounters(t *testing.T) {
	db, err := database.Open(filepath.Join(t.TempDir(), "metrics.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	m := metrics.New(prometheus.NewRegistry())
	m.CommandsProcessed.Add(4)

	require.NoError(t, MetricsJob(m, db, time.Minute).Run(context.Background()))

	v, err := db.GetMetric(context.Background(), "commands_processed")
	require.NoError(t, err)
	assert.Equal(t, float64(4), v)
}
