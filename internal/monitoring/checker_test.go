package monitoring

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/profile-cli/internal/config"
	"github.com/sells-group/profile-cli/internal/model"
)

func TestChecker_RunStopsOnCancel(t *testing.T) {
	cfg := config.MonitoringConfig{
		CheckIntervalSecs:    1,
		LookbackWindowHours:  24,
		FailureRateThreshold: 0.25,
	}
	checker := NewChecker(NewCollector(&mockLister{}, 0), NewAlerter(cfg), cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		checker.Run(ctx)
		close(done)
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Checker.Run did not stop after context cancellation")
	}
}

func TestChecker_DefaultInterval(t *testing.T) {
	checker := NewChecker(NewCollector(&mockLister{}, 0), NewAlerter(config.MonitoringConfig{}), config.MonitoringConfig{})
	require.NotNil(t, checker)

	// Zero interval defaults to 5 minutes; a cancelled context returns at once.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	checker.Run(ctx)
}

func TestChecker_CheckSendsAlerts(t *testing.T) {
	var received atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		received.Add(1)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ts.Close()

	cfg := config.MonitoringConfig{
		WebhookURL:           ts.URL,
		FailureRateThreshold: 0.25,
		StaleAfterMinutes:    30,
		LookbackWindowHours:  24,
	}
	l := &mockLister{analyses: []model.Analysis{
		analysisAt(model.AnalysisStatusPolling, time.Hour, time.Hour, 3),
	}}
	checker := NewChecker(newTestCollector(l, 30*time.Minute), NewAlerter(cfg), cfg)

	alerts := checker.Check(context.Background())
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertStaleAnalyses, alerts[0].Type)
	assert.Equal(t, int32(1), received.Load())
}

func TestChecker_RunChecksImmediately(t *testing.T) {
	cfg := config.MonitoringConfig{CheckIntervalSecs: 3600, LookbackWindowHours: 24}
	l := &mockLister{analyses: []model.Analysis{
		analysisAt(model.AnalysisStatusReady, time.Hour, time.Hour, 12),
	}}
	checker := NewChecker(newTestCollector(l, 0), NewAlerter(cfg), cfg)
	assert.Nil(t, checker.Last())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		checker.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return checker.Last() != nil }, time.Second, 5*time.Millisecond)
	cancel()
	<-done

	snap := checker.Last()
	assert.Equal(t, 1, snap.Ready)
	assert.InDelta(t, 12.0, snap.AvgAttempts, 1e-9)
}

func TestChecker_CheckCollectError(t *testing.T) {
	cfg := config.MonitoringConfig{LookbackWindowHours: 24}
	checker := NewChecker(NewCollector(&mockLister{err: errors.New("boom")}, 0), NewAlerter(cfg), cfg)
	assert.Nil(t, checker.Check(context.Background()))
}
