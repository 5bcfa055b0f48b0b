package analysis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/profile-cli/internal/model"
	"github.com/sells-group/profile-cli/pkg/simplai"
)

var testHandle = model.JobHandle{ConversationID: "conv-1", MessageID: "msg-1"}

func newTestPoller(fc *fakeClient, maxAttempts int) *Poller {
	return NewPoller(fc, PollerConfig{MaxAttempts: maxAttempts, Interval: 5 * time.Second, Wait: noWait})
}

func TestPoll_ReadyAfterNotReadyShapes(t *testing.T) {
	fc := &fakeClient{polls: []pollStep{
		{err: errors.New("connection reset by peer")},
		{err: &simplai.APIError{StatusCode: 503, Body: "busy"}},
		{err: simplai.ErrEmptyBody},
		{err: simplai.ErrInvalidJSON},
		{output: ``},
		{output: `null`},
		{output: `[{"Company_Name":"Acme"}]`},
		{output: `"pending"`},
		{output: `{"Company_Name":"Acme"}`},
		{output: readyOutput},
	}}
	p := newTestPoller(fc, 180)

	var progress []model.Progress
	profile, err := p.Poll(context.Background(), testHandle, func(pr model.Progress) {
		progress = append(progress, pr)
	})
	require.NoError(t, err)
	assert.Equal(t, "Acme", profile.Name())
	assert.Len(t, profile, 6)
	assert.Equal(t, 10, fc.fetchCount())

	require.Len(t, progress, 10)
	assert.Equal(t, 1, progress[0].Attempt)
	assert.Equal(t, 180, progress[0].MaxAttempts)
	last := progress[len(progress)-1]
	assert.Equal(t, 100, last.Percent)
	assert.Equal(t, MsgComplete, last.Message)
}

func TestPoll_HandleNeverMutated(t *testing.T) {
	fc := &fakeClient{polls: []pollStep{{output: `{}`}}}
	p := newTestPoller(fc, 25)

	h := testHandle
	_, err := p.Poll(context.Background(), h, nil)
	require.Error(t, err)
	assert.Equal(t, testHandle, h)
	require.Len(t, fc.fetchArgs, 25)
	for _, got := range fc.fetchArgs {
		assert.Equal(t, testHandle, got)
	}
}

func TestPoll_TimeoutBoundary(t *testing.T) {
	fc := &fakeClient{polls: []pollStep{{output: `{}`}}}
	var waits int
	p := NewPoller(fc, PollerConfig{
		MaxAttempts: 180,
		Interval:    5 * time.Second,
		Wait: func(_ context.Context, d time.Duration) error {
			waits++
			assert.Equal(t, 5*time.Second, d)
			return nil
		},
	})

	_, err := p.Poll(context.Background(), testHandle, nil)
	require.Error(t, err)
	assert.Equal(t, 180, fc.fetchCount(), "no attempt after the last")
	assert.Equal(t, 179, waits, "no wait after the last attempt")

	var ae *Error
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, KindTimeout, ae.Kind)
	assert.Contains(t, ae.UserMessage(), "180 attempts")
	assert.Contains(t, ae.UserMessage(), "15 minutes")
}

func TestPoll_ProgressAfterEveryAttempt(t *testing.T) {
	fc := &fakeClient{polls: []pollStep{{output: `{}`}}}
	p := newTestPoller(fc, 20)

	var progress []model.Progress
	_, err := p.Poll(context.Background(), testHandle, func(pr model.Progress) {
		progress = append(progress, pr)
	})
	require.Error(t, err)
	require.Len(t, progress, 20)
	for i, pr := range progress {
		assert.Equal(t, i+1, pr.Attempt)
		assert.Equal(t, (i+1)*100/20, pr.Percent)
	}
	assert.Equal(t, "Finalizing comprehensive report...", progress[19].Message)
}

func TestPoll_CancelStopsFurtherAttempts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	fc := &fakeClient{polls: []pollStep{{output: `{}`}}}
	fc.onFetch = func(n int) {
		if n == 3 {
			cancel()
		}
	}
	p := newTestPoller(fc, 180)

	_, err := p.Poll(ctx, testHandle, nil)
	require.Error(t, err)
	assert.Equal(t, KindCancelled, KindOf(err))
	assert.Equal(t, 3, fc.fetchCount())
}

func TestPoll_CancelDuringWait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	fc := &fakeClient{polls: []pollStep{{output: `{}`}}}
	p := NewPoller(fc, PollerConfig{MaxAttempts: 180, Interval: time.Hour})

	done := make(chan error, 1)
	go func() {
		_, err := p.Poll(ctx, testHandle, nil)
		done <- err
	}()

	require.Eventually(t, func() bool { return fc.fetchCount() == 1 }, time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.Equal(t, KindCancelled, KindOf(err))
	case <-time.After(2 * time.Second):
		t.Fatal("poll did not stop after cancel")
	}
	assert.Equal(t, 1, fc.fetchCount())
}

func TestPoll_InvalidHandle(t *testing.T) {
	fc := &fakeClient{}
	p := newTestPoller(fc, 3)

	_, err := p.Poll(context.Background(), model.JobHandle{ConversationID: "c"}, nil)
	assert.Equal(t, KindInvalidResponse, KindOf(err))
	assert.Equal(t, 0, fc.fetchCount())
}

func TestNewPoller_Defaults(t *testing.T) {
	p := NewPoller(&fakeClient{}, PollerConfig{})
	assert.Equal(t, DefaultMaxAttempts, p.cfg.MaxAttempts)
	assert.Equal(t, DefaultInterval, p.cfg.Interval)
}

func TestDecodeOutput(t *testing.T) {
	tests := []struct {
		raw  string
		ok   bool
		keys int
	}{
		{raw: ``, ok: false},
		{raw: `null`, ok: false},
		{raw: `[]`, ok: false},
		{raw: `[{"a":1}]`, ok: false},
		{raw: `42`, ok: false},
		{raw: `"text"`, ok: false},
		{raw: `{}`, ok: true, keys: 0},
		{raw: ` {"a":1,"b":[1,2]} `, ok: true, keys: 2},
	}
	for _, tt := range tests {
		out, ok := decodeOutput([]byte(tt.raw))
		assert.Equal(t, tt.ok, ok, tt.raw)
		if ok {
			assert.Len(t, out, tt.keys, tt.raw)
		}
	}
}

func TestTimeoutMessage(t *testing.T) {
	assert.Equal(t,
		"Analysis timed out after 15 minutes (180 attempts). The service may be experiencing high load or the analysis is taking longer than expected. Please try again.",
		timeoutMessage(180, 5*time.Second))
	assert.Contains(t, timeoutMessage(1, time.Minute), "after 1 minute (1 attempts)")
	assert.Contains(t, timeoutMessage(3, 5*time.Second), "after 15 seconds")
	assert.Contains(t, timeoutMessage(3, 10*time.Millisecond), "after 30ms")
}
