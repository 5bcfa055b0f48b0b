package server

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/sells-group/profile-cli/internal/analysis"
	"github.com/sells-group/profile-cli/internal/session"
	"github.com/sells-group/profile-cli/internal/store"
)

type handlerFunc func(http.ResponseWriter, *http.Request) error

// httpError is a handler error with an explicit status.
type httpError struct {
	status  int
	message string
}

func (e *httpError) Error() string { return e.message }

func errStatus(status int, message string) error {
	return &httpError{status: status, message: message}
}

// analysisFailure ties a workflow error to the analysis record it failed.
type analysisFailure struct {
	err        error
	analysisID string
}

func (e *analysisFailure) Error() string { return e.err.Error() }
func (e *analysisFailure) Unwrap() error { return e.err }

type errorResponse struct {
	Error      string `json:"error"`
	Kind       string `json:"kind,omitempty"`
	AnalysisID string `json:"analysis_id,omitempty"`
}

// StatusForKind maps a workflow error kind to an HTTP status. Upstream
// rejections surface as 502 and transport failures as 503.
func StatusForKind(kind analysis.Kind) int {
	switch kind {
	case analysis.KindValidation, analysis.KindBadRequest:
		return http.StatusBadRequest
	case analysis.KindAuthentication, analysis.KindAuthorization, analysis.KindNotFound,
		analysis.KindInvalidResponse, analysis.KindFailed:
		return http.StatusBadGateway
	case analysis.KindNetwork:
		return http.StatusServiceUnavailable
	case analysis.KindTimeout:
		return http.StatusGatewayTimeout
	case analysis.KindCancelled:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := h(w, r)
		if err == nil {
			return
		}

		resp := errorResponse{Error: err.Error()}
		status := http.StatusInternalServerError

		var he *httpError
		var ae *analysis.Error
		var af *analysisFailure
		if errors.As(err, &af) {
			resp.AnalysisID = af.analysisID
		}

		switch {
		case errors.As(err, &he):
			status = he.status
		case errors.As(err, &ae):
			status = StatusForKind(ae.Kind)
			resp.Error = ae.UserMessage()
			resp.Kind = string(ae.Kind)
		case errors.Is(err, store.ErrNotFound):
			status = http.StatusNotFound
			resp.Error = "analysis not found"
		case errors.Is(err, session.ErrNotFound):
			status = http.StatusNotFound
			resp.Error = "no profile stored for this session"
		case errors.Is(err, analysis.ErrNotRunning), errors.Is(err, store.ErrTerminal):
			status = http.StatusConflict
			resp.Error = "analysis already finished"
		default:
			resp.Error = "internal server error"
		}

		if status >= http.StatusInternalServerError {
			zap.L().Error("server: request failed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", status),
				zap.Error(err),
			)
		}
		writeJSON(w, status, resp)
	}
}
