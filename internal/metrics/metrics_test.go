package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordPollAttempt(t *testing.T) {
	before := testutil.ToFloat64(pollAttempts.WithLabelValues(OutcomeNotReady))
	RecordPollAttempt(OutcomeNotReady)
	RecordPollAttempt(OutcomeNotReady)
	assert.Equal(t, before+2, testutil.ToFloat64(pollAttempts.WithLabelValues(OutcomeNotReady)))
}

func TestRecordInitiation_EmptyKindIsOK(t *testing.T) {
	before := testutil.ToFloat64(initiations.WithLabelValues("ok"))
	RecordInitiation("")
	assert.Equal(t, before+1, testutil.ToFloat64(initiations.WithLabelValues("ok")))

	beforeAuth := testutil.ToFloat64(initiations.WithLabelValues("authentication"))
	RecordInitiation("authentication")
	assert.Equal(t, beforeAuth+1, testutil.ToFloat64(initiations.WithLabelValues("authentication")))
}

func TestRecordAnalysis(t *testing.T) {
	before := testutil.ToFloat64(analyses.WithLabelValues("ready"))
	RecordAnalysis("ready", 42*time.Second)
	assert.Equal(t, before+1, testutil.ToFloat64(analyses.WithLabelValues("ready")))
	assert.Positive(t, testutil.CollectAndCount(analysisDuration))
}

func TestPollStarted(t *testing.T) {
	before := testutil.ToFloat64(activePolls)
	done := PollStarted()
	assert.Equal(t, before+1, testutil.ToFloat64(activePolls))
	done()
	assert.Equal(t, before, testutil.ToFloat64(activePolls))
}

func TestSetStaleAnalyses(t *testing.T) {
	SetStaleAnalyses(3)
	assert.Equal(t, 3.0, testutil.ToFloat64(staleAnalyses))
	SetStaleAnalyses(0)
	assert.Equal(t, 0.0, testutil.ToFloat64(staleAnalyses))
}
