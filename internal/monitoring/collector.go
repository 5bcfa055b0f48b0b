package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/profile-cli/internal/metrics"
	"github.com/sells-group/profile-cli/internal/model"
	"github.com/sells-group/profile-cli/internal/store"
)

// collectLimit caps how many recent analyses one collection reads.
const collectLimit = 10000

// Snapshot holds a point-in-time view of analysis health.
type Snapshot struct {
	// Analyses created within the lookback window.
	Total     int `json:"total"`
	Ready     int `json:"ready"`
	Failed    int `json:"failed"`
	TimedOut  int `json:"timed_out"`
	Cancelled int `json:"cancelled"`
	InFlight  int `json:"in_flight"`

	// Stale counts in-flight analyses with no progress for longer than the
	// stale threshold. These are usually left behind by a crashed process.
	Stale int `json:"stale"`

	// FailureRate is (failed + timed_out) / (ready + failed + timed_out).
	FailureRate float64 `json:"failure_rate"`
	// AvgAttempts is the mean poll attempts of ready analyses.
	AvgAttempts float64 `json:"avg_attempts"`

	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// Finished returns the number of analyses that count toward the failure rate.
func (s *Snapshot) Finished() int {
	return s.Ready + s.Failed + s.TimedOut
}

// AnalysisLister is the subset of store.Store the collector reads.
type AnalysisLister interface {
	ListAnalyses(ctx context.Context, filter store.AnalysisFilter) ([]model.Analysis, error)
}

// Collector gathers health figures from the run history.
type Collector struct {
	store      AnalysisLister
	staleAfter time.Duration
	now        func() time.Time
}

// NewCollector creates a collector. staleAfter <= 0 disables stale detection.
func NewCollector(st AnalysisLister, staleAfter time.Duration) *Collector {
	return &Collector{store: st, staleAfter: staleAfter, now: time.Now}
}

// Collect gathers a snapshot over the given lookback window.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*Snapshot, error) {
	now := c.now().UTC()
	snap := &Snapshot{
		LookbackHours: lookbackHours,
		CollectedAt:   now,
	}
	cutoff := now.Add(-time.Duration(lookbackHours) * time.Hour)

	list, err := c.store.ListAnalyses(ctx, store.AnalysisFilter{Limit: collectLimit})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list analyses")
	}

	var attempts int
	for _, a := range list {
		if a.CreatedAt.Before(cutoff) {
			continue
		}
		snap.Total++
		switch a.Status {
		case model.AnalysisStatusReady:
			snap.Ready++
			attempts += a.Progress.Attempt
		case model.AnalysisStatusFailed:
			snap.Failed++
		case model.AnalysisStatusTimedOut:
			snap.TimedOut++
		case model.AnalysisStatusCancelled:
			snap.Cancelled++
		default:
			snap.InFlight++
			if c.staleAfter > 0 && now.Sub(a.UpdatedAt) > c.staleAfter {
				snap.Stale++
			}
		}
	}

	if finished := snap.Finished(); finished > 0 {
		snap.FailureRate = float64(snap.Failed+snap.TimedOut) / float64(finished)
	}
	if snap.Ready > 0 {
		snap.AvgAttempts = float64(attempts) / float64(snap.Ready)
	}
	metrics.SetStaleAnalyses(snap.Stale)

	return snap, nil
}
