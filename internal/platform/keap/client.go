package keap

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/weiwei-tsao/form-relay/apps/api/pkg/model"
	"github.com/weiwei-tsao/form-relay/apps/api/pkg/util"
)

const defaultSnippetBytes = 512

// Form identifies the hosted web form submissions are relayed to.
type Form struct {
	XID     string
	Name    string
	Version string
}

// FormFields builds the field set the form processor expects for an email-only form.
func FormFields(form Form, email string) map[string]string {
	fields := map[string]string{
		"inf_form_xid":    form.XID,
		"inf_form_name":   form.Name,
		"inf_field_Email": email,
	}
	if form.Version != "" {
		fields["infusionsoft_version"] = form.Version
	}
	return fields
}

// HTTPClient matches net/http.Client Do signature for testability. Implementations
// must not follow redirects; the client built by New never does.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config defines settings for the relay client.
type Config struct {
	URL          string
	Timeout      time.Duration
	SnippetBytes int
	UserAgent    string
}

// Client posts submissions to the form processor and reports the raw outcome.
type Client struct {
	url          string
	timeout      time.Duration
	snippetBytes int
	userAgent    string
	httpClient   HTTPClient
}

// New creates a relay client. A nil httpClient gets a client that returns
// redirect responses to the caller instead of following them.
func New(httpClient HTTPClient, cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if httpClient == nil {
		httpClient = NewNoRedirectClient(timeout)
	}
	snippet := cfg.SnippetBytes
	if snippet <= 0 {
		snippet = defaultSnippetBytes
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = "form-relay/1.0"
	}
	return &Client{
		url:          cfg.URL,
		timeout:      timeout,
		snippetBytes: snippet,
		userAgent:    ua,
		httpClient:   httpClient,
	}
}

// NewNoRedirectClient returns an *http.Client that hands 3xx responses back unread.
func NewNoRedirectClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// URL returns the configured form processor endpoint.
func (c *Client) URL() string {
	return c.url
}

// Relay sends the submission to the form processor as a single url-encoded POST.
func (c *Client) Relay(ctx context.Context, fields map[string]string) model.RelayAttempt {
	return c.Follow(ctx, http.MethodPost, c.url, fields)
}

// Follow issues one request to target. GET requests carry no body; any other
// method repeats fields url-encoded. Failures come back as an attempt with
// StatusCode 0.
func (c *Client) Follow(ctx context.Context, method, target string, fields map[string]string) model.RelayAttempt {
	attempt := model.RelayAttempt{Method: method, URL: target}
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var req *http.Request
	var err error
	if method == http.MethodGet {
		req, err = http.NewRequestWithContext(ctx, method, target, nil)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, target, strings.NewReader(encode(fields)))
		if err == nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	}
	if err != nil {
		attempt.Error = "build request: " + err.Error()
		return finish(attempt, start)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html,application/json;q=0.9,*/*;q=0.8")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		attempt.Error = "request: " + err.Error()
		return finish(attempt, start)
	}
	defer resp.Body.Close()

	attempt.StatusCode = resp.StatusCode
	attempt.LocationHeader = strings.TrimSpace(resp.Header.Get("Location"))
	attempt.BodySnippet = util.ReadSnippet(resp.Body, c.snippetBytes)
	if strings.Contains(resp.Header.Get("Content-Type"), "html") {
		attempt.PageTitle = pageTitle(attempt.BodySnippet)
	}
	return finish(attempt, start)
}

func finish(attempt model.RelayAttempt, start time.Time) model.RelayAttempt {
	attempt.DurationMs = time.Since(start).Milliseconds()
	return attempt
}

// pageTitle pulls the <title> out of an HTML snippet for diagnostics.
func pageTitle(snippet string) string {
	if snippet == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(snippet))
	if err != nil {
		return ""
	}
	return util.TruncateUTF8(strings.TrimSpace(doc.Find("title").First().Text()), 120)
}

func encode(fields map[string]string) string {
	values := url.Values{}
	for k, v := range fields {
		values.Set(k, v)
	}
	return values.Encode()
}
