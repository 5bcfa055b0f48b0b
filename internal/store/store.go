package store

import (
	"context"
	"errors"

	"github.com/sells-group/profile-cli/internal/model"
)

var (
	// ErrNotFound is returned when no analysis has the requested id.
	ErrNotFound = errors.New("analysis not found")
	// ErrTerminal is returned when an update targets an analysis that has
	// already finished.
	ErrTerminal = errors.New("analysis already finished")
)

// AnalysisFilter specifies criteria for listing analyses.
type AnalysisFilter struct {
	SessionID string               `json:"session_id,omitempty"`
	Status    model.AnalysisStatus `json:"status,omitempty"`
	Limit     int                  `json:"limit,omitempty"`
	Offset    int                  `json:"offset,omitempty"`
}

// Store defines the persistence interface for the analysis run history.
type Store interface {
	CreateAnalysis(ctx context.Context, sessionID string, req model.AnalysisRequest) (*model.Analysis, error)
	// SetAnalysisHandle records the remote job handle and moves the analysis
	// to polling.
	SetAnalysisHandle(ctx context.Context, id string, handle model.JobHandle) error
	UpdateAnalysisProgress(ctx context.Context, id string, progress model.Progress) error
	// CompleteAnalysis writes the terminal outcome. It succeeds at most once
	// per analysis; later calls return ErrTerminal.
	CompleteAnalysis(ctx context.Context, id string, result *model.AnalysisResult) error
	GetAnalysis(ctx context.Context, id string) (*model.Analysis, error)
	ListAnalyses(ctx context.Context, filter AnalysisFilter) ([]model.Analysis, error)

	// Lifecycle
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}

// activeStatuses are the statuses from which updates are accepted.
var activeStatuses = []any{
	string(model.AnalysisStatusInitiating),
	string(model.AnalysisStatusPolling),
}

func defaultLimit(n int) int {
	if n <= 0 {
		return 100
	}
	return n
}
