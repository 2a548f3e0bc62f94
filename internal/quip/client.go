package quip

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

const (
	// DefaultBaseURL is the platform API root.
	DefaultBaseURL = "https://platform.quip-amazon.com"

	// DefaultConnectTimeout bounds TCP connect and TLS handshake.
	DefaultConnectTimeout = 10 * time.Second

	// DefaultReadTimeout bounds the wait for response headers.
	DefaultReadTimeout = 90 * time.Second

	currentUserPath = "/1/users/current"
	maxErrorBody    = 512
)

// ErrMalformedResponse is returned when a 2xx response body cannot be decoded.
var ErrMalformedResponse = errors.New("malformed response")

// UserIdentity is the subset of the "who am I" payload the tool relies on.
type UserIdentity struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Emails []string `json:"emails,omitempty"`
}

// DisplayName returns the user's name, or a placeholder when the platform omitted it.
func (u *UserIdentity) DisplayName() string {
	if u == nil || u.Name == "" {
		return "Unknown"
	}
	return u.Name
}

// APIError is returned for non-2xx responses.
type APIError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("quip api: %s", e.Status)
	}
	return fmt.Sprintf("quip api: %s: %s", e.Status, e.Body)
}

// Option configures a Client.
type Option func(*clientConfig)

type clientConfig struct {
	baseTransport  http.RoundTripper
	tokenSource    oauth2.TokenSource
	connectTimeout time.Duration
	readTimeout    time.Duration
}

// WithTransport sets a custom base transport. Timeouts configured through
// WithTimeouts are ignored when a transport is supplied.
func WithTransport(transport http.RoundTripper) Option {
	return func(c *clientConfig) {
		c.baseTransport = transport
	}
}

// WithTokenSource authenticates requests with tokens from ts instead of the
// static token passed to NewClient.
func WithTokenSource(ts oauth2.TokenSource) Option {
	return func(c *clientConfig) {
		c.tokenSource = ts
	}
}

// WithTimeouts overrides the connect and read timeouts.
func WithTimeouts(connect, read time.Duration) Option {
	return func(c *clientConfig) {
		if connect > 0 {
			c.connectTimeout = connect
		}
		if read > 0 {
			c.readTimeout = read
		}
	}
}

// Client talks to the platform API.
type Client struct {
	baseURL *url.URL
	http    *http.Client
}

// NewClient creates a Client for baseURL. An empty token without
// WithTokenSource produces an unauthenticated client, which is only useful
// for Ping.
func NewClient(baseURL, token string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q: scheme and host required", baseURL)
	}

	cfg := &clientConfig{
		connectTimeout: DefaultConnectTimeout,
		readTimeout:    DefaultReadTimeout,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.baseTransport == nil {
		cfg.baseTransport = newTransport(cfg.connectTimeout, cfg.readTimeout)
	}

	source := cfg.tokenSource
	if source == nil && token != "" {
		source = oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"})
	}

	var transport http.RoundTripper = cfg.baseTransport
	if source != nil {
		transport = &oauth2.Transport{
			Source: source,
			Base:   cfg.baseTransport,
		}
	}

	return &Client{
		baseURL: u,
		http:    &http.Client{Transport: transport},
	}, nil
}

func newTransport(connect, read time.Duration) *http.Transport {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.DialContext = (&net.Dialer{Timeout: connect, KeepAlive: 30 * time.Second}).DialContext
	t.TLSHandshakeTimeout = connect
	t.ResponseHeaderTimeout = read
	return t
}

// Host returns the API host name without port.
func (c *Client) Host() string {
	return c.baseURL.Hostname()
}

// BaseURL returns the configured API root.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// CurrentUser returns the identity owning the token.
func (c *Client) CurrentUser(ctx context.Context) (*UserIdentity, error) {
	resp, err := c.get(ctx, currentUserPath)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, newAPIError(resp)
	}

	var user UserIdentity
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, fmt.Errorf("%w: decoding current user: %w", ErrMalformedResponse, err)
	}
	return &user, nil
}

// Ping issues a plain GET against the API root and returns the HTTP status code.
// Any HTTP response counts as reachable.
func (c *Client) Ping(ctx context.Context) (int, error) {
	resp, err := c.get(ctx, "/")
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}

func (c *Client) get(ctx context.Context, path string) (*http.Response, error) {
	endpoint := c.baseURL.JoinPath(path)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", uuid.NewString())

	return c.http.Do(req)
}

func newAPIError(resp *http.Response) *APIError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &APIError{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Body:       strings.TrimSpace(string(body)),
	}
}
