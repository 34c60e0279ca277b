package jira

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
)

// Credentials holds connection info for one Jira instance.
type Credentials struct {
	Site  string // e.g. "https://eso.atlassian.net"
	Email string // e.g. "service@eso.com"
	Token string // Atlassian API token
}

// Client wraps an HTTP client with Jira basic auth. It is the injected
// transport capability: it performs authenticated GETs and decodes JSON,
// nothing more. Credentials are set once at construction and never change.
type Client struct {
	creds      Credentials
	httpClient *http.Client
	log        *zap.Logger
}

// Shared HTTP client with connection pooling.
var sharedHTTPClient = &http.Client{
	Timeout: 30 * time.Second,
	Transport: &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		DisableKeepAlives:   false,
	},
}

// NewClient creates an authenticated Jira client. A zero timeout uses
// the shared pooled client as-is.
func NewClient(creds Credentials, timeout time.Duration, log *zap.Logger) *Client {
	client := sharedHTTPClient
	if timeout > 0 && timeout != sharedHTTPClient.Timeout {
		client = &http.Client{
			Timeout:   timeout,
			Transport: sharedHTTPClient.Transport,
		}
	}

	if log == nil {
		log = zap.NewNop()
	}

	return &Client{
		creds:      creds,
		httpClient: client,
		log:        log,
	}
}

// Site returns the base URL of the Jira instance this client talks to.
func (c *Client) Site() string { return c.creds.Site }

// authHeader returns the Basic auth header value.
func (c *Client) authHeader() string {
	credentials := fmt.Sprintf("%s:%s", c.creds.Email, c.creds.Token)
	encoded := base64.StdEncoding.EncodeToString([]byte(credentials))
	return "Basic " + encoded
}

// Get issues an authenticated GET against endpoint with params merged
// into any query string the endpoint already carries, and returns the
// decoded JSON envelope. Any failure surfaces as a *TransportError; no
// retry is attempted.
func (c *Client) Get(ctx context.Context, endpoint string, params url.Values) (map[string]any, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, &TransportError{URL: endpoint, Err: err}
	}

	q := u.Query()
	for key, vals := range params {
		for _, v := range vals {
			q.Set(key, v)
		}
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, &TransportError{URL: u.String(), Err: err}
	}
	req.Header.Set("Authorization", c.authHeader())
	req.Header.Set("Accept", "application/json")

	c.log.Debug("jira request", zap.String("url", u.String()))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{URL: u.String(), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(resp.Body)
		return nil, &TransportError{URL: u.String(), Status: resp.StatusCode, Body: string(body)}
	}

	var envelope map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, &TransportError{URL: u.String(), Err: fmt.Errorf("decoding response: %w", err)}
	}

	return envelope, nil
}
