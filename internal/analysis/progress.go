package analysis

import "github.com/sells-group/profile-cli/internal/model"

// ProgressFunc receives the loop state after every poll attempt. It is called
// from the polling goroutine and must not block.
type ProgressFunc func(model.Progress)

// MsgComplete is the status shown once a profile has been accepted.
const MsgComplete = "Analysis complete! Processing results..."

var progressMessages = []string{
	"Initializing company analysis...",
	"Gathering financial data...",
	"Processing market information...",
	"Analyzing competitive landscape...",
	"Extracting management details...",
	"Compiling product portfolio...",
	"Reviewing recent developments...",
	"Analyzing revenue streams...",
	"Processing historical data...",
	"Finalizing comprehensive report...",
}

// ProgressFor returns the progress after attempts of maxAttempts have
// finished without a ready profile.
func ProgressFor(attempts, maxAttempts int) model.Progress {
	if maxAttempts <= 0 {
		return model.Progress{Attempt: attempts, Message: progressMessages[0]}
	}
	idx := min(attempts*len(progressMessages)/maxAttempts, len(progressMessages)-1)
	return model.Progress{
		Attempt:     attempts,
		MaxAttempts: maxAttempts,
		Percent:     min(attempts*100/maxAttempts, 100),
		Message:     progressMessages[max(idx, 0)],
	}
}

// ProgressComplete returns the progress reported when attempt produced a
// ready profile.
func ProgressComplete(attempt, maxAttempts int) model.Progress {
	return model.Progress{
		Attempt:     attempt,
		MaxAttempts: maxAttempts,
		Percent:     100,
		Message:     MsgComplete,
	}
}

func emit(fn ProgressFunc, p model.Progress) {
	if fn != nil {
		fn(p)
	}
}
