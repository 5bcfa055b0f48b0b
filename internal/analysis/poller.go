package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/profile-cli/internal/metrics"
	"github.com/sells-group/profile-cli/internal/model"
	"github.com/sells-group/profile-cli/internal/resilience"
	"github.com/sells-group/profile-cli/pkg/simplai"
)

// Defaults for the polling loop.
const (
	DefaultMaxAttempts = 180
	DefaultInterval    = 5 * time.Second
)

var errNotReady = errors.New("profile not ready")

// PollerConfig bounds the polling loop. The loop is limited by attempt count;
// the time budget reported on timeout is MaxAttempts * Interval.
type PollerConfig struct {
	MaxAttempts int
	Interval    time.Duration

	// Wait overrides the suspension between attempts. Nil uses a timer that
	// returns early when ctx is cancelled.
	Wait func(ctx context.Context, d time.Duration) error
}

// Poller queries a remote job until its output is a ready profile.
type Poller struct {
	client simplai.Client
	cfg    PollerConfig
}

// NewPoller creates a Poller. Zero config values fall back to the defaults.
func NewPoller(client simplai.Client, cfg PollerConfig) *Poller {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	return &Poller{client: client, cfg: cfg}
}

// MaxAttempts returns the attempt budget.
func (p *Poller) MaxAttempts() int {
	return p.cfg.MaxAttempts
}

// Poll issues sequential status requests for handle until one returns a
// ready profile. Per-attempt failures are treated as not ready. After
// MaxAttempts unsuccessful attempts it fails with KindTimeout; cancelling ctx
// stops the loop with KindCancelled. onProgress may be nil.
func (p *Poller) Poll(ctx context.Context, handle model.JobHandle, onProgress ProgressFunc) (model.CompanyProfile, error) {
	if !handle.Valid() {
		return nil, newError(KindInvalidResponse, msgMissingHandle, nil)
	}

	log := zap.L().With(
		zap.String("conversation_id", handle.ConversationID),
		zap.String("message_id", handle.MessageID),
	)
	defer metrics.PollStarted()()

	retry := resilience.FixedRetryConfig(p.cfg.MaxAttempts, p.cfg.Interval)
	retry.Wait = p.cfg.Wait

	attempts := 0
	profile, err := resilience.DoVal(ctx, retry, func(ctx context.Context) (model.CompanyProfile, error) {
		attempts++
		prof, outcome, err := p.attempt(ctx, handle)
		metrics.RecordPollAttempt(outcome)
		if err != nil {
			log.Debug("analysis: poll attempt not ready",
				zap.Int("attempt", attempts),
				zap.Int("max_attempts", p.cfg.MaxAttempts),
				zap.String("outcome", outcome),
				zap.Bool("transient", resilience.IsTransient(err)),
				zap.Error(err),
			)
			emit(onProgress, ProgressFor(attempts, p.cfg.MaxAttempts))
			return nil, err
		}
		emit(onProgress, ProgressComplete(attempts, p.cfg.MaxAttempts))
		return prof, nil
	})
	if err == nil {
		log.Info("analysis: profile ready", zap.Int("attempts", attempts), zap.Int("fields", len(profile)))
		return profile, nil
	}

	if ctx.Err() != nil {
		log.Info("analysis: polling cancelled", zap.Int("attempts", attempts))
		return nil, newError(KindCancelled, msgCancelled, ctx.Err())
	}

	log.Warn("analysis: polling timed out", zap.Int("attempts", attempts))
	return nil, newError(KindTimeout, timeoutMessage(attempts, p.cfg.Interval), err)
}

// attempt issues one status request. It returns the profile when ready, or
// an error wrapping errNotReady together with the attempt outcome.
func (p *Poller) attempt(ctx context.Context, handle model.JobHandle) (model.CompanyProfile, string, error) {
	resp, err := p.client.FetchDetails(ctx, handle.ConversationID, handle.MessageID)
	if err != nil {
		var apiErr *simplai.APIError
		switch {
		case errors.As(err, &apiErr):
			return nil, metrics.OutcomeHTTPErr, err
		case errors.Is(err, simplai.ErrEmptyBody), errors.Is(err, simplai.ErrInvalidJSON):
			return nil, metrics.OutcomeInvalidBody, err
		default:
			return nil, metrics.OutcomeTransportErr, err
		}
	}

	output, ok := decodeOutput(resp.Output)
	if !ok {
		return nil, metrics.OutcomeNotReady, eris.Wrap(errNotReady, "output is not an object")
	}
	if !IsReady(output) {
		return nil, metrics.OutcomeNotReady, eris.Wrapf(errNotReady, "output has %d keys", len(output))
	}
	return model.CompanyProfile(output), metrics.OutcomeReady, nil
}

// decodeOutput returns the output field when it is a JSON object. Missing,
// null, array and scalar outputs are rejected.
func decodeOutput(raw json.RawMessage) (map[string]any, bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, false
	}
	var out map[string]any
	if err := json.Unmarshal(trimmed, &out); err != nil {
		return nil, false
	}
	return out, true
}

func timeoutMessage(attempts int, interval time.Duration) string {
	return fmt.Sprintf(
		"Analysis timed out after %s (%d attempts). The service may be experiencing high load or the analysis is taking longer than expected. Please try again.",
		formatBudget(time.Duration(attempts)*interval), attempts)
}

func formatBudget(d time.Duration) string {
	switch {
	case d >= time.Minute && d%time.Minute == 0:
		return plural(int(d/time.Minute), "minute")
	case d >= time.Second && d%time.Second == 0:
		return plural(int(d/time.Second), "second")
	default:
		return d.String()
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
