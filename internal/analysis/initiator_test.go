package analysis

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/profile-cli/internal/model"
	"github.com/sells-group/profile-cli/pkg/simplai"
)

var testTool = ToolConfig{
	ToolID:       "tool-1",
	LanguageCode: "EN",
	Source:       "APP",
	Action:       "START_SCREEN",
}

func newHTTPInitiator(t *testing.T, status int, body string) (*Initiator, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	client := simplai.NewClient(simplai.Identity{DeviceID: "simplai"}, simplai.WithBaseURL(srv.URL))
	return NewInitiator(client, testTool), &calls
}

func TestInitiate_Success(t *testing.T) {
	fc := &fakeClient{startResp: okStart()}
	in := NewInitiator(fc, testTool)

	h, err := in.Initiate(context.Background(), model.AnalysisRequest{
		CompanyName:    "  Acme  ",
		CompanyWebsite: " https://acme.com ",
	})
	require.NoError(t, err)
	assert.Equal(t, model.JobHandle{ConversationID: "conv-1", MessageID: "msg-1"}, h)

	require.Len(t, fc.starts, 1)
	sent := fc.starts[0]
	assert.Equal(t, "tool-1", sent.ToolID)
	assert.Equal(t, "EN", sent.LanguageCode)
	assert.Equal(t, "APP", sent.Source)
	assert.Equal(t, "START_SCREEN", sent.Action)
	assert.Equal(t, map[string]any{}, sent.CustAttr)
	assert.Equal(t, "Acme", sent.Inputs.CompanyName)
	assert.Equal(t, "https://acme.com", sent.Inputs.CompanyWebsite)
}

func TestInitiate_BlankInputMakesNoCall(t *testing.T) {
	inputs := []model.AnalysisRequest{
		{},
		{CompanyName: "Acme"},
		{CompanyWebsite: "https://acme.com"},
		{CompanyName: "   ", CompanyWebsite: "https://acme.com"},
		{CompanyName: "Acme", CompanyWebsite: "\t\n"},
	}
	for _, req := range inputs {
		in, calls := newHTTPInitiator(t, http.StatusOK, `{"result":{"conversation_id":"c","message_id":"m"}}`)
		_, err := in.Initiate(context.Background(), req)
		require.Error(t, err)
		assert.Equal(t, KindValidation, KindOf(err))
		assert.Equal(t, int32(0), calls.Load(), "request issued for %+v", req)
	}
}

func TestInitiate_StatusClassification(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantKind    Kind
		wantMessage string
	}{
		{
			name:        "401 with result",
			status:      http.StatusUnauthorized,
			body:        `{"result":"bad token"}`,
			wantKind:    KindAuthentication,
			wantMessage: "Authentication failed: bad token. Please verify your credentials and permissions.",
		},
		{
			name:        "401 without reason",
			status:      http.StatusUnauthorized,
			body:        `{}`,
			wantKind:    KindAuthentication,
			wantMessage: "Authentication failed: Access denied. Please verify your credentials and permissions.",
		},
		{
			name:        "401 plain text",
			status:      http.StatusUnauthorized,
			body:        `token expired`,
			wantKind:    KindAuthentication,
			wantMessage: "Authentication failed: token expired. Please verify your credentials and permissions.",
		},
		{
			name:        "403 with result",
			status:      http.StatusForbidden,
			body:        `{"result":"tenant 11 cannot use tool-1"}`,
			wantKind:    KindAuthorization,
			wantMessage: "Access forbidden: tenant 11 cannot use tool-1.",
		},
		{
			name:        "403 without reason",
			status:      http.StatusForbidden,
			body:        `{}`,
			wantKind:    KindAuthorization,
			wantMessage: "Access forbidden: You don't have permission to access this resource.",
		},
		{
			name:        "404 with message",
			status:      http.StatusNotFound,
			body:        `{"message":"tool tool-1 is archived"}`,
			wantKind:    KindNotFound,
			wantMessage: "Tool configuration not found: tool tool-1 is archived. Please verify the tool ID is correct and active.",
		},
		{
			name:        "404 empty",
			status:      http.StatusNotFound,
			body:        ``,
			wantKind:    KindNotFound,
			wantMessage: "Tool configuration not found. Please verify the tool ID is correct and active.",
		},
		{
			name:        "400 with message",
			status:      http.StatusBadRequest,
			body:        `{"message":"inputs.company_name is required"}`,
			wantKind:    KindBadRequest,
			wantMessage: "Invalid request format: inputs.company_name is required.",
		},
		{
			name:        "400 plain text",
			status:      http.StatusBadRequest,
			body:        `malformed`,
			wantKind:    KindBadRequest,
			wantMessage: "Invalid request format: malformed.",
		},
		{
			name:        "400 empty",
			status:      http.StatusBadRequest,
			body:        ``,
			wantKind:    KindBadRequest,
			wantMessage: "Invalid request format: Please check the input parameters.",
		},
		{
			name:        "500 with result",
			status:      http.StatusInternalServerError,
			body:        `{"result":"upstream down"}`,
			wantKind:    KindFailed,
			wantMessage: "Failed to initiate analysis: 500 - upstream down",
		},
		{
			name:        "502 raw text",
			status:      http.StatusBadGateway,
			body:        `gateway error`,
			wantKind:    KindFailed,
			wantMessage: "Failed to initiate analysis: 502 - gateway error",
		},
		{
			name:        "409 generic",
			status:      http.StatusConflict,
			body:        `{"error":"busy"}`,
			wantKind:    KindFailed,
			wantMessage: "Failed to initiate analysis: 409 - busy",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, calls := newHTTPInitiator(t, tt.status, tt.body)
			_, err := in.Initiate(context.Background(), model.AnalysisRequest{
				CompanyName:    "Acme",
				CompanyWebsite: "https://acme.com",
			})
			require.Error(t, err)
			assert.Equal(t, int32(1), calls.Load())

			var ae *Error
			require.ErrorAs(t, err, &ae)
			assert.Equal(t, tt.wantKind, ae.Kind)
			assert.Equal(t, tt.wantMessage, ae.UserMessage())
			assert.Equal(t, tt.status, ae.StatusCode)

			var apiErr *simplai.APIError
			assert.ErrorAs(t, err, &apiErr)
		})
	}
}

func TestInitiate_InvalidJSON(t *testing.T) {
	in, calls := newHTTPInitiator(t, http.StatusOK, `<html>not json</html>`)
	_, err := in.Initiate(context.Background(), model.AnalysisRequest{CompanyName: "Acme", CompanyWebsite: "acme.com"})
	require.Error(t, err)
	assert.Equal(t, KindInvalidResponse, KindOf(err))
	assert.Equal(t, "Invalid response from analysis service", UserMessage(err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestInitiate_MissingHandle(t *testing.T) {
	bodies := []string{
		`{}`,
		`{"result":{}}`,
		`{"result":{"conversation_id":"c-1"}}`,
		`{"result":{"message_id":"m-1"}}`,
		`{"result":{"conversation_id":"","message_id":""}}`,
		`{"result":"pending"}`,
		`{"result":{"conversation_id":123,"message_id":"m-1"}}`,
		`{"result":null}`,
		`[]`,
		`"ok"`,
		`null`,
	}
	for _, body := range bodies {
		in, _ := newHTTPInitiator(t, http.StatusOK, body)
		_, err := in.Initiate(context.Background(), model.AnalysisRequest{CompanyName: "Acme", CompanyWebsite: "acme.com"})
		require.Error(t, err, body)
		assert.Equal(t, KindInvalidResponse, KindOf(err), body)
		assert.Equal(t, "Invalid response from analysis service - missing conversation details", UserMessage(err), body)
	}
}

func TestInitiate_NetworkError(t *testing.T) {
	fc := &fakeClient{startErr: errors.New("dial tcp: connection refused")}
	in := NewInitiator(fc, testTool)

	_, err := in.Initiate(context.Background(), model.AnalysisRequest{CompanyName: "Acme", CompanyWebsite: "acme.com"})
	require.Error(t, err)
	assert.Equal(t, KindNetwork, KindOf(err))
	assert.Len(t, fc.starts, 1)
}

func TestInitiate_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	fc := &fakeClient{startErr: context.Canceled}
	in := NewInitiator(fc, testTool)

	_, err := in.Initiate(ctx, model.AnalysisRequest{CompanyName: "Acme", CompanyWebsite: "acme.com"})
	require.Error(t, err)
	assert.Equal(t, KindCancelled, KindOf(err))
}
