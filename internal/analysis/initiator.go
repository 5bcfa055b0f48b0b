package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/profile-cli/internal/model"
	"github.com/sells-group/profile-cli/pkg/simplai"
)

const (
	msgValidation      = "Please fill in both company name and website"
	msgInvalidResponse = "Invalid response from analysis service"
	msgMissingHandle   = "Invalid response from analysis service - missing conversation details"
	msgNetwork         = "Network error: Please check your internet connection and try again"
	msgCancelled       = "Analysis was cancelled"
)

// ToolConfig identifies the remote analysis tool and how it is invoked.
type ToolConfig struct {
	ToolID       string
	LanguageCode string
	Source       string
	Action       string
}

// Initiator starts remote analysis jobs.
type Initiator struct {
	client simplai.Client
	tool   ToolConfig
}

// NewInitiator creates an Initiator that starts jobs through client.
func NewInitiator(client simplai.Client, tool ToolConfig) *Initiator {
	return &Initiator{client: client, tool: tool}
}

// Initiate validates req and issues exactly one request to start the remote
// job. Blank input is rejected before any network call. Errors are always
// *Error values.
func (in *Initiator) Initiate(ctx context.Context, req model.AnalysisRequest) (model.JobHandle, error) {
	req = req.Normalize()
	if err := Validate(req); err != nil {
		return model.JobHandle{}, err
	}

	log := zap.L().With(
		zap.String("company", req.CompanyName),
		zap.String("website", req.CompanyWebsite),
	)
	log.Info("analysis: initiating")

	resp, err := in.client.StartConversation(ctx, simplai.ConversationRequest{
		ToolID:       in.tool.ToolID,
		LanguageCode: in.tool.LanguageCode,
		Source:       in.tool.Source,
		Action:       in.tool.Action,
		CustAttr:     map[string]any{},
		Inputs: simplai.ToolInputs{
			CompanyName:    req.CompanyName,
			CompanyWebsite: req.CompanyWebsite,
		},
	})
	if err != nil {
		ae := classifyInitiateError(ctx, err)
		log.Warn("analysis: initiation failed",
			zap.String("kind", string(ae.Kind)),
			zap.Int("status", ae.StatusCode),
			zap.Error(err),
		)
		return model.JobHandle{}, ae
	}

	handle := model.JobHandle{
		ConversationID: resp.Result.ConversationID,
		MessageID:      resp.Result.MessageID,
	}
	if !handle.Valid() {
		log.Warn("analysis: initiate response missing handle",
			zap.String("conversation_id", handle.ConversationID),
			zap.String("message_id", handle.MessageID),
		)
		return model.JobHandle{}, newError(KindInvalidResponse, msgMissingHandle, nil)
	}

	log.Info("analysis: initiated",
		zap.String("conversation_id", handle.ConversationID),
		zap.String("message_id", handle.MessageID),
	)
	return handle, nil
}

// Validate rejects requests with a blank company name or website.
func Validate(req model.AnalysisRequest) error {
	req = req.Normalize()
	if req.CompanyName == "" || req.CompanyWebsite == "" {
		return newError(KindValidation, msgValidation, nil)
	}
	return nil
}

func classifyInitiateError(ctx context.Context, err error) *Error {
	var apiErr *simplai.APIError
	switch {
	case errors.As(err, &apiErr):
		return classifyStatus(apiErr.StatusCode, apiErr.Body, err)
	case errors.Is(err, simplai.ErrInvalidJSON), errors.Is(err, simplai.ErrEmptyBody):
		return newError(KindInvalidResponse, msgInvalidResponse, err)
	case ctx.Err() != nil || errors.Is(err, context.Canceled):
		return newError(KindCancelled, msgCancelled, err)
	default:
		return newError(KindNetwork, msgNetwork, err)
	}
}

// classifyStatus maps a non-2xx initiate response to a Kind with a message
// drawn from the body when possible.
func classifyStatus(status int, body string, cause error) *Error {
	fields, isJSON := parseErrorBody(body)
	// reason prefers the named JSON fields and falls back to plain-text bodies.
	reason := func(keys ...string) string {
		vals := make([]string, len(keys))
		for i, k := range keys {
			vals[i] = fields[k]
		}
		if r := firstNonEmpty(vals...); r != "" || isJSON {
			return r
		}
		return strings.TrimSpace(body)
	}

	var e *Error
	switch status {
	case http.StatusUnauthorized:
		r := firstNonEmpty(reason("result", "message", "error"), "Access denied")
		e = newError(KindAuthentication, fmt.Sprintf(
			"Authentication failed: %s. Please verify your credentials and permissions.", r), cause)
	case http.StatusForbidden:
		r := firstNonEmpty(reason("result", "message", "error"), "You don't have permission to access this resource")
		e = newError(KindAuthorization, fmt.Sprintf("Access forbidden: %s.", r), cause)
	case http.StatusNotFound:
		msg := "Tool configuration not found. Please verify the tool ID is correct and active."
		if r := reason("result", "message", "error"); r != "" {
			msg = fmt.Sprintf("Tool configuration not found: %s. Please verify the tool ID is correct and active.", r)
		}
		e = newError(KindNotFound, msg, cause)
	case http.StatusBadRequest:
		r := firstNonEmpty(reason("message", "result", "error"), "Please check the input parameters")
		e = newError(KindBadRequest, fmt.Sprintf("Invalid request format: %s.", r), cause)
	default:
		r := firstNonEmpty(fields["result"], fields["message"], fields["error"])
		if r == "" {
			r = strings.TrimSpace(body)
		}
		e = newError(KindFailed, fmt.Sprintf("Failed to initiate analysis: %d - %s", status, r), cause)
	}
	e.StatusCode = status
	return e
}

// parseErrorBody extracts the string-valued top-level fields of a JSON error
// body. The second result reports whether the body was a JSON object.
func parseErrorBody(body string) (map[string]string, bool) {
	var raw map[string]any
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		return map[string]string{}, false
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		if s, ok := v.(string); ok {
			out[k] = strings.TrimSpace(s)
		}
	}
	return out, true
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
