package analysis

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/profile-cli/internal/metrics"
	"github.com/sells-group/profile-cli/internal/model"
	"github.com/sells-group/profile-cli/internal/resilience"
)

// ProfileSaver is the session-scoped slot the finished profile is written to.
type ProfileSaver interface {
	SaveProfile(ctx context.Context, sessionID string, profile model.CompanyProfile) error
}

// Workflow composes initiation, polling and session storage for one run.
type Workflow struct {
	initiator *Initiator
	poller    *Poller
	sessions  ProfileSaver
	saveRetry resilience.RetryConfig
}

// NewWorkflow creates a Workflow.
func NewWorkflow(initiator *Initiator, poller *Poller, sessions ProfileSaver) *Workflow {
	return &Workflow{
		initiator: initiator,
		poller:    poller,
		sessions:  sessions,
		saveRetry: resilience.DefaultRetryConfig(),
	}
}

// MaxAttempts returns the poller's attempt budget.
func (w *Workflow) MaxAttempts() int {
	return w.poller.MaxAttempts()
}

// Start initiates the remote job.
func (w *Workflow) Start(ctx context.Context, req model.AnalysisRequest) (model.JobHandle, error) {
	handle, err := w.initiator.Initiate(ctx, req)
	metrics.RecordInitiation(string(KindOf(err)))
	return handle, err
}

// Complete polls handle and writes the ready profile to the session exactly
// once. Nothing is stored when polling fails.
func (w *Workflow) Complete(ctx context.Context, sessionID string, handle model.JobHandle, onProgress ProgressFunc) (model.CompanyProfile, error) {
	profile, err := w.poller.Poll(ctx, handle, onProgress)
	if err != nil {
		return nil, err
	}

	// Store even if ctx was cancelled after the profile arrived.
	if err := w.save(context.WithoutCancel(ctx), sessionID, profile); err != nil {
		zap.L().Error("analysis: store profile failed",
			zap.String("session_id", sessionID),
			zap.Error(err),
		)
		return nil, newError(KindUnexpected, "Failed to store analysis results. Please try again.", err)
	}
	return profile, nil
}

// save writes the profile, retrying transient store errors.
func (w *Workflow) save(ctx context.Context, sessionID string, profile model.CompanyProfile) error {
	retry := w.saveRetry
	retry.OnRetry = func(attempt int, err error) {
		zap.L().Warn("analysis: retrying profile store",
			zap.String("session_id", sessionID),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}
	_, err := resilience.DoVal(ctx, retry, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, w.sessions.SaveProfile(ctx, sessionID, profile)
	})
	return err
}

// Run executes the full workflow: Start, then Complete. Any initiation error
// aborts before polling.
func (w *Workflow) Run(ctx context.Context, sessionID string, req model.AnalysisRequest, onProgress ProgressFunc) (model.CompanyProfile, error) {
	handle, err := w.Start(ctx, req)
	if err != nil {
		return nil, err
	}
	return w.Complete(ctx, sessionID, handle, onProgress)
}
