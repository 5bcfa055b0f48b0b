// Package simplai is a client for the SimplAI edge service tool-conversation
// API used to start and poll company profile analyses.
package simplai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

const (
	defaultBaseURL      = "https://edge-service.simplai.ai"
	defaultInitiatePath = "/interact/api/ve1/intract/tool/conversation"
	defaultPollPath     = "/interact/api/v1/intract/conversation/fetchDetails"
)

// Identity header names expected by the edge service.
const (
	HeaderDeviceID = "X-DEVICE-ID"
	HeaderPIMSID   = "PIM-SID"
	HeaderTenantID = "X-TENANT-ID"
	HeaderUserID   = "X-USER-ID"
)

var (
	// ErrEmptyBody is returned when a 2xx response carries no content.
	ErrEmptyBody = errors.New("simplai: empty response body")
	// ErrInvalidJSON is returned when a 2xx response cannot be decoded.
	ErrInvalidJSON = errors.New("simplai: invalid JSON response")
)

// Client defines the tool-conversation operations.
type Client interface {
	StartConversation(ctx context.Context, req ConversationRequest) (*ConversationResponse, error)
	FetchDetails(ctx context.Context, conversationID, messageID string) (*DetailsResponse, error)
}

// Identity carries the caller identity sent on every request.
type Identity struct {
	DeviceID string
	PIMSID   string
	TenantID string
	UserID   string
}

// ConversationRequest is the body for the initiate call.
type ConversationRequest struct {
	ToolID       string         `json:"tool_id"`
	LanguageCode string         `json:"language_code"`
	Source       string         `json:"source"`
	Action       string         `json:"action"`
	CustAttr     map[string]any `json:"cust_attr"`
	Inputs       ToolInputs     `json:"inputs"`
}

// ToolInputs are the company fields the analysis tool consumes.
type ToolInputs struct {
	CompanyName    string `json:"company_name"`
	CompanyWebsite string `json:"company_website"`
}

// ConversationResponse is the success response of the initiate call.
type ConversationResponse struct {
	Result ConversationResult `json:"result"`
}

// ConversationResult holds the identifiers of the started job.
type ConversationResult struct {
	ConversationID string `json:"conversation_id"`
	MessageID      string `json:"message_id"`
}

// DetailsResponse is a decoded poll response. Output is left raw because the
// service returns different shapes while the job is still running.
type DetailsResponse struct {
	Output json.RawMessage `json:"output"`
}

// APIError is returned when the service responds with a non-2xx status.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("simplai: HTTP %d: %s", e.StatusCode, e.Body)
}

// HTTPStatus returns the response status code.
func (e *APIError) HTTPStatus() int {
	return e.StatusCode
}

// Option configures the httpClient.
type Option func(*httpClient)

// WithBaseURL overrides the default base URL.
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithPaths overrides the initiate and poll endpoint paths. Empty values keep
// the defaults.
func WithPaths(initiate, poll string) Option {
	return func(c *httpClient) {
		if initiate != "" {
			c.initiatePath = initiate
		}
		if poll != "" {
			c.pollPath = poll
		}
	}
}

// WithHTTPClient sets a custom *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithTimeout overrides the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *httpClient) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithRateLimit throttles outbound requests to rps per second across all
// analyses sharing this client. Zero disables throttling.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
		} else {
			c.limiter = nil
		}
	}
}

// httpClient implements Client using net/http.
type httpClient struct {
	identity     Identity
	baseURL      string
	initiatePath string
	pollPath     string
	http         *http.Client
	limiter      *rate.Limiter
}

// NewClient creates a new edge service client.
func NewClient(identity Identity, opts ...Option) Client {
	c := &httpClient{
		identity:     identity,
		baseURL:      defaultBaseURL,
		initiatePath: defaultInitiatePath,
		pollPath:     defaultPollPath,
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) StartConversation(ctx context.Context, body ConversationRequest) (*ConversationResponse, error) {
	if body.CustAttr == nil {
		body.CustAttr = map[string]any{}
	}
	buf, err := json.Marshal(body)
	if err != nil {
		return nil, eris.Wrap(err, "simplai: marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+c.initiatePath, bytes.NewReader(buf))
	if err != nil {
		return nil, eris.Wrap(err, "simplai: create request")
	}

	data, err := c.do(req)
	if err != nil {
		return nil, eris.Wrap(err, "simplai: start conversation")
	}

	var raw any
	if err := decode(data, &raw); err != nil {
		return nil, eris.Wrap(err, "simplai: start conversation")
	}
	return conversationFrom(raw), nil
}

// conversationFrom extracts the job identifiers from a parsed initiate body.
// Any other shape yields empty identifiers rather than a decode error.
func conversationFrom(raw any) *ConversationResponse {
	var resp ConversationResponse
	obj, _ := raw.(map[string]any)
	result, _ := obj["result"].(map[string]any)
	resp.Result.ConversationID, _ = result["conversation_id"].(string)
	resp.Result.MessageID, _ = result["message_id"].(string)
	return &resp
}

func (c *httpClient) FetchDetails(ctx context.Context, conversationID, messageID string) (*DetailsResponse, error) {
	q := url.Values{}
	q.Set("cId", conversationID)
	q.Set("mId", messageID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+c.pollPath+"?"+q.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "simplai: create request")
	}

	data, err := c.do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "simplai: fetch details %s", conversationID)
	}

	var resp DetailsResponse
	if err := decode(data, &resp); err != nil {
		return nil, eris.Wrapf(err, "simplai: fetch details %s", conversationID)
	}
	return &resp, nil
}

func (c *httpClient) setHeaders(req *http.Request) {
	req.Header.Set(HeaderDeviceID, c.identity.DeviceID)
	req.Header.Set(HeaderPIMSID, c.identity.PIMSID)
	req.Header.Set(HeaderTenantID, c.identity.TenantID)
	req.Header.Set(HeaderUserID, c.identity.UserID)
	req.Header.Set("Content-Type", "application/json")
}

func (c *httpClient) do(req *http.Request) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(req.Context()); err != nil {
			return nil, eris.Wrap(err, "rate limit")
		}
	}
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "execute request")
	}
	defer resp.Body.Close() //nolint:errcheck

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "read response body")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Body:       string(data),
		}
	}
	return data, nil
}

func decode(data []byte, out any) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return ErrEmptyBody
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	return nil
}
