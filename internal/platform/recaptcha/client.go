package recaptcha

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/weiwei-tsao/form-relay/apps/api/pkg/model"
)

const maxResponseBytes = 64 << 10

// Reason codes used in synthesized payloads when the service gave us nothing usable.
const (
	ReasonUnreachable  = "verification-unreachable"
	ReasonBadStatus    = "verification-bad-status"
	ReasonBadResponse  = "verification-bad-response"
	ReasonLowScore     = "score-below-threshold"
	ReasonHostMismatch = "hostname-mismatch"
	ReasonMissingToken = "missing-input-response"
)

// HTTPClient matches net/http.Client Do signature for testability.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config defines settings for the verification client.
type Config struct {
	Secret           string
	VerifyURL        string
	Timeout          time.Duration
	MinScore         float64
	ExpectedHostname string
}

// Client checks human-verification tokens against the siteverify API.
type Client struct {
	secret     string
	verifyURL  string
	timeout    time.Duration
	minScore   float64
	hostname   string
	httpClient HTTPClient
}

// New creates a verification client.
func New(httpClient HTTPClient, cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	verifyURL := cfg.VerifyURL
	if verifyURL == "" {
		verifyURL = "https://www.google.com/recaptcha/api/siteverify"
	}
	return &Client{
		secret:     cfg.Secret,
		verifyURL:  verifyURL,
		timeout:    timeout,
		minScore:   cfg.MinScore,
		hostname:   cfg.ExpectedHostname,
		httpClient: httpClient,
	}
}

type siteverifyResponse struct {
	Success     bool     `json:"success"`
	Score       *float64 `json:"score,omitempty"`
	Action      string   `json:"action,omitempty"`
	ChallengeTS string   `json:"challenge_ts,omitempty"`
	Hostname    string   `json:"hostname,omitempty"`
	ErrorCodes  []string `json:"error-codes,omitempty"`
}

// Verify calls the verification service once. It fails closed: anything other
// than an explicit, parseable success is reported as Passed=false.
func (c *Client) Verify(ctx context.Context, token, remoteIP string) model.VerificationOutcome {
	if strings.TrimSpace(token) == "" {
		return failed(ReasonMissingToken)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	form := url.Values{}
	form.Set("secret", c.secret)
	form.Set("response", token)
	if remoteIP != "" {
		form.Set("remoteip", remoteIP)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.verifyURL, strings.NewReader(form.Encode()))
	if err != nil {
		return failed(ReasonUnreachable)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return failed(ReasonUnreachable)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return failed(ReasonBadResponse)
	}
	body = bytes.TrimSpace(body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if json.Valid(body) && len(body) > 0 {
			return model.VerificationOutcome{Passed: false, RawResponse: body}
		}
		return failed(ReasonBadStatus)
	}

	var parsed siteverifyResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return failed(ReasonBadResponse)
	}
	if !parsed.Success {
		return model.VerificationOutcome{Passed: false, RawResponse: body}
	}
	if c.minScore > 0 && (parsed.Score == nil || *parsed.Score < c.minScore) {
		return rejectPassing(parsed, ReasonLowScore)
	}
	if c.hostname != "" && !strings.EqualFold(parsed.Hostname, c.hostname) {
		return rejectPassing(parsed, ReasonHostMismatch)
	}
	return model.VerificationOutcome{Passed: true, RawResponse: body}
}

// rejectPassing turns a service-level success into a failure, keeping the
// service's fields and adding our own error code.
func rejectPassing(parsed siteverifyResponse, reason string) model.VerificationOutcome {
	parsed.Success = false
	parsed.ErrorCodes = append(parsed.ErrorCodes, reason)
	raw, err := json.Marshal(parsed)
	if err != nil {
		return failed(reason)
	}
	return model.VerificationOutcome{Passed: false, RawResponse: raw}
}

func failed(reason string) model.VerificationOutcome {
	raw, _ := json.Marshal(siteverifyResponse{Success: false, ErrorCodes: []string{reason}})
	return model.VerificationOutcome{Passed: false, RawResponse: raw}
}
