package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sells-group/profile-cli/internal/model"
	"github.com/sells-group/profile-cli/pkg/simplai"
)

// fakeClient is a scripted simplai.Client. Each FetchDetails call consumes the
// next entry of polls; the last entry repeats once the script runs out.
type fakeClient struct {
	mu sync.Mutex

	startResp *simplai.ConversationResponse
	startErr  error
	starts    []simplai.ConversationRequest
	// startGate, when set, holds every StartConversation until it is closed
	// or the call's context is done.
	startGate chan struct{}

	polls     []pollStep
	fetches   int
	fetchArgs []model.JobHandle
	onFetch   func(n int)
}

type pollStep struct {
	output string
	err    error
}

func (f *fakeClient) StartConversation(ctx context.Context, req simplai.ConversationRequest) (*simplai.ConversationResponse, error) {
	f.mu.Lock()
	f.starts = append(f.starts, req)
	gate := f.startGate
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return nil, f.startErr
	}
	return f.startResp, nil
}

func (f *fakeClient) FetchDetails(ctx context.Context, conversationID, messageID string) (*simplai.DetailsResponse, error) {
	f.mu.Lock()
	f.fetches++
	n := f.fetches
	f.fetchArgs = append(f.fetchArgs, model.JobHandle{ConversationID: conversationID, MessageID: messageID})
	var step pollStep
	if len(f.polls) > 0 {
		step = f.polls[min(n, len(f.polls))-1]
	}
	hook := f.onFetch
	f.mu.Unlock()

	if hook != nil {
		hook(n)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if step.err != nil {
		return nil, step.err
	}
	return &simplai.DetailsResponse{Output: json.RawMessage(step.output)}, nil
}

func (f *fakeClient) fetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches
}

func (f *fakeClient) startCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.starts)
}

func okStart() *simplai.ConversationResponse {
	return &simplai.ConversationResponse{Result: simplai.ConversationResult{
		ConversationID: "conv-1",
		MessageID:      "msg-1",
	}}
}

// fakeSessions records saved profiles.
type fakeSessions struct {
	mu    sync.Mutex
	saved map[string][]model.CompanyProfile
	err   error

	// failures makes the next n saves fail with a connection error.
	failures int
	calls    int
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{saved: make(map[string][]model.CompanyProfile)}
}

func (s *fakeSessions) SaveProfile(_ context.Context, sessionID string, p model.CompanyProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return s.err
	}
	if s.failures > 0 {
		s.failures--
		return errors.New("dial tcp 127.0.0.1:6379: connect: connection refused")
	}
	s.saved[sessionID] = append(s.saved[sessionID], p)
	return nil
}

func (s *fakeSessions) count(sessionID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.saved[sessionID])
}

// fakeRecorder is an in-memory Recorder.
type fakeRecorder struct {
	mu       sync.Mutex
	analyses map[string]*model.Analysis
	progress map[string][]model.Progress
	results  map[string][]*model.AnalysisResult
	done     chan string
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{
		analyses: make(map[string]*model.Analysis),
		progress: make(map[string][]model.Progress),
		results:  make(map[string][]*model.AnalysisResult),
		done:     make(chan string, 16),
	}
}

func (r *fakeRecorder) CreateAnalysis(_ context.Context, sessionID string, req model.AnalysisRequest) (*model.Analysis, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	a := &model.Analysis{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Request:   req,
		Status:    model.AnalysisStatusInitiating,
		CreatedAt: now,
		UpdatedAt: now,
	}
	stored := *a
	r.analyses[a.ID] = &stored
	return a, nil
}

func (r *fakeRecorder) SetAnalysisHandle(_ context.Context, id string, h model.JobHandle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.analyses[id].Handle = &h
	r.analyses[id].Status = model.AnalysisStatusPolling
	return nil
}

func (r *fakeRecorder) UpdateAnalysisProgress(_ context.Context, id string, p model.Progress) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progress[id] = append(r.progress[id], p)
	r.analyses[id].Progress = p
	return nil
}

func (r *fakeRecorder) CompleteAnalysis(_ context.Context, id string, res *model.AnalysisResult) error {
	r.mu.Lock()
	r.results[id] = append(r.results[id], res)
	r.analyses[id].Status = res.Status
	r.analyses[id].Profile = res.Profile
	r.analyses[id].Error = res.Error
	r.analyses[id].ErrorKind = res.ErrorKind
	r.mu.Unlock()
	r.done <- id
	return nil
}

func (r *fakeRecorder) get(id string) model.Analysis {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.analyses[id]
}

func (r *fakeRecorder) resultCount(id string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.results[id])
}

func noWait(_ context.Context, _ time.Duration) error { return nil }

const readyOutput = `{"Company_Name":"Acme","Business_Overview":"Makes anvils","Headquarters":"Springfield","Field4":1,"Field5":2,"Field6":3}`
