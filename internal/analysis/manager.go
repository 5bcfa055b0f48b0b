package analysis

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/profile-cli/internal/metrics"
	"github.com/sells-group/profile-cli/internal/model"
)

// ErrNotRunning is returned by Cancel when no polling loop is active for the
// analysis.
var ErrNotRunning = errors.New("analysis is not running")

// Recorder persists the run history of analyses.
type Recorder interface {
	CreateAnalysis(ctx context.Context, sessionID string, req model.AnalysisRequest) (*model.Analysis, error)
	SetAnalysisHandle(ctx context.Context, id string, handle model.JobHandle) error
	UpdateAnalysisProgress(ctx context.Context, id string, progress model.Progress) error
	CompleteAnalysis(ctx context.Context, id string, result *model.AnalysisResult) error
}

type activeRun struct {
	analysisID string
	cancel     context.CancelFunc
	done       chan struct{}
}

// Manager runs analyses in the background, at most one per session. A new
// submission in a session cancels that session's in-flight poll.
type Manager struct {
	wf  *Workflow
	rec Recorder

	mu       sync.Mutex
	sessions map[string]*activeRun
	byID     map[string]*activeRun
	wg       sync.WaitGroup
}

// NewManager creates a Manager.
func NewManager(wf *Workflow, rec Recorder) *Manager {
	return &Manager{
		wf:       wf,
		rec:      rec,
		sessions: make(map[string]*activeRun),
		byID:     make(map[string]*activeRun),
	}
}

// Submit validates req, records the analysis and initiates the remote job
// synchronously. On success polling continues in the background and the
// returned analysis is in the polling state. Initiation errors are returned
// alongside the failed record.
//
// The session slot is claimed before initiation. A claim cancels the
// session's previous run and waits for it to exit, bounded by ctx. At most
// one loop runs per session.
func (m *Manager) Submit(ctx context.Context, sessionID string, req model.AnalysisRequest) (*model.Analysis, error) {
	req = req.Normalize()
	if err := Validate(req); err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	run := &activeRun{cancel: cancel, done: make(chan struct{})}
	m.wg.Add(1)
	// abandon ends a run that never reached its polling loop.
	abandon := func() {
		cancel()
		m.release(sessionID, run)
		close(run.done)
		m.wg.Done()
	}

	if err := m.claimSession(ctx, sessionID, run); err != nil {
		abandon()
		return nil, err
	}
	if err := runCtx.Err(); err != nil {
		abandon()
		return nil, newError(KindCancelled, msgCancelled, err)
	}

	a, err := m.rec.CreateAnalysis(ctx, sessionID, req)
	if err != nil {
		abandon()
		return nil, eris.Wrap(err, "analysis: create record")
	}
	m.mu.Lock()
	run.analysisID = a.ID
	m.byID[a.ID] = run
	m.mu.Unlock()

	a.Progress.MaxAttempts = m.wf.MaxAttempts()
	started := time.Now()

	// Initiation stops when either the caller or a newer submission gives up.
	startCtx, stopStart := context.WithCancel(ctx)
	stopAfter := context.AfterFunc(runCtx, stopStart)
	handle, err := m.wf.Start(startCtx, req)
	stopAfter()
	stopStart()
	if err == nil && runCtx.Err() != nil {
		err = newError(KindCancelled, msgCancelled, runCtx.Err())
	}
	if err != nil {
		m.finish(a, nil, err, started)
		abandon()
		return a, err
	}

	if err := m.rec.SetAnalysisHandle(ctx, a.ID, handle); err != nil {
		zap.L().Error("analysis: record handle failed", zap.String("analysis_id", a.ID), zap.Error(err))
	}
	a.Handle = &handle
	a.Status = model.AnalysisStatusPolling
	snapshot := *a

	go func() {
		defer m.wg.Done()
		defer close(run.done)
		defer m.release(sessionID, run)
		defer cancel()

		onProgress := func(p model.Progress) {
			if err := m.rec.UpdateAnalysisProgress(context.WithoutCancel(runCtx), a.ID, p); err != nil {
				zap.L().Warn("analysis: record progress failed", zap.String("analysis_id", a.ID), zap.Error(err))
			}
		}
		profile, err := m.wf.Complete(runCtx, sessionID, handle, onProgress)
		m.finish(a, profile, err, started)
	}()

	return &snapshot, nil
}

// Cancel stops the polling loop of the analysis and waits for it to exit.
func (m *Manager) Cancel(ctx context.Context, analysisID string) error {
	m.mu.Lock()
	run, ok := m.byID[analysisID]
	m.mu.Unlock()
	if !ok {
		return ErrNotRunning
	}

	run.cancel()
	select {
	case <-run.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Wait blocks until the polling loop of the analysis exits. It returns nil
// immediately when no loop is active.
func (m *Manager) Wait(ctx context.Context, analysisID string) error {
	m.mu.Lock()
	run, ok := m.byID[analysisID]
	m.mu.Unlock()
	if !ok {
		return nil
	}

	select {
	case <-run.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Running reports whether a polling loop is active for the analysis.
func (m *Manager) Running(analysisID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.byID[analysisID]
	return ok
}

// Shutdown cancels every running analysis and waits for the loops to exit.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	for _, run := range m.byID {
		run.cancel()
	}
	for _, run := range m.sessions {
		run.cancel()
	}
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// claimSession makes run the session's active run. A previous run is
// cancelled and awaited until it exits or ctx is done.
func (m *Manager) claimSession(ctx context.Context, sessionID string, run *activeRun) error {
	m.mu.Lock()
	prev, ok := m.sessions[sessionID]
	m.sessions[sessionID] = run
	var prevID string
	if ok {
		prevID = prev.analysisID
	}
	m.mu.Unlock()
	if !ok {
		return nil
	}

	zap.L().Info("analysis: superseding in-flight analysis",
		zap.String("session_id", sessionID),
		zap.String("analysis_id", prevID),
	)
	prev.cancel()
	select {
	case <-prev.done:
		return nil
	case <-ctx.Done():
		return newError(KindCancelled, msgCancelled, ctx.Err())
	}
}

func (m *Manager) release(sessionID string, run *activeRun) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sessions[sessionID] == run {
		delete(m.sessions, sessionID)
	}
	delete(m.byID, run.analysisID)
}

// finish writes the terminal outcome of a and updates it in place.
func (m *Manager) finish(a *model.Analysis, profile model.CompanyProfile, err error, started time.Time) {
	result := &model.AnalysisResult{Status: model.AnalysisStatusReady, Profile: profile}
	if err != nil {
		kind := KindOf(err)
		result = &model.AnalysisResult{
			Status:    statusForKind(kind),
			Error:     UserMessage(err),
			ErrorKind: string(kind),
		}
	}

	if recErr := m.rec.CompleteAnalysis(context.Background(), a.ID, result); recErr != nil {
		zap.L().Error("analysis: record completion failed",
			zap.String("analysis_id", a.ID),
			zap.Error(recErr),
		)
	}

	a.Status = result.Status
	a.Profile = result.Profile
	a.Error = result.Error
	a.ErrorKind = result.ErrorKind
	metrics.RecordAnalysis(string(result.Status), time.Since(started))

	zap.L().Info("analysis: finished",
		zap.String("analysis_id", a.ID),
		zap.String("session_id", a.SessionID),
		zap.String("status", string(result.Status)),
		zap.Duration("elapsed", time.Since(started)),
	)
}

func statusForKind(kind Kind) model.AnalysisStatus {
	switch kind {
	case KindTimeout:
		return model.AnalysisStatusTimedOut
	case KindCancelled:
		return model.AnalysisStatusCancelled
	default:
		return model.AnalysisStatusFailed
	}
}
