// Package launchpad is a small client for the Launchpad REST web service.
//
// It covers the read-only subset needed to list bug tasks on a milestone:
// logging in, resolving projects and series, paging through milestone
// collections and searching bug tasks.
package launchpad

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/andywolf/ci-buglist/internal/version"
)

// ProductionServiceRoot is the API root of the public Launchpad instance.
const ProductionServiceRoot = "https://api.launchpad.net/"

// DefaultAPIVersion is the web service version launchpadlib uses by default.
const DefaultAPIVersion = "devel"

var (
	// ErrNotFound is returned when an entry does not exist.
	ErrNotFound = errors.New("launchpad: not found")

	// ErrUnauthorized is returned when the service rejects the credentials.
	ErrUnauthorized = errors.New("launchpad: unauthorized")
)

// APIError is a non-2xx response from the web service.
type APIError struct {
	StatusCode int
	Method     string
	URL        string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("launchpad API error (status %d) for %s %s: %s", e.StatusCode, e.Method, e.URL, e.Body)
}

// Unwrap maps well-known status codes to sentinel errors.
func (e *APIError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusUnauthorized:
		return ErrUnauthorized
	default:
		return nil
	}
}

// maxErrorBody bounds how much of an error response ends up in APIError.
const maxErrorBody = 256

// Client creates authenticated sessions against a Launchpad service root.
type Client struct {
	httpClient  *http.Client
	serviceRoot string
	apiVersion  string
	consumer    string
	logger      *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client used as the base for every session.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithServiceRoot sets the API root, e.g. https://api.staging.launchpad.net/.
func WithServiceRoot(root string) Option {
	return func(c *Client) {
		if !strings.HasSuffix(root, "/") {
			root += "/"
		}
		c.serviceRoot = root
	}
}

// WithAPIVersion sets the web service version ("devel", "1.0", "beta").
func WithAPIVersion(v string) Option {
	return func(c *Client) {
		c.apiVersion = v
	}
}

// WithConsumer sets the OAuth consumer key used for anonymous logins.
func WithConsumer(consumer string) Option {
	return func(c *Client) {
		c.consumer = consumer
	}
}

// WithLogger sets the logger for request diagnostics.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a new Client with the given options.
func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient:  &http.Client{Timeout: 60 * time.Second},
		serviceRoot: ProductionServiceRoot,
		apiVersion:  DefaultAPIVersion,
		logger:      zap.NewNop(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Login opens a session signed with the given credentials and loads the
// service root document. A failure here means the service is unreachable
// or the credentials were rejected.
func (c *Client) Login(ctx context.Context, creds *Credentials) (*Session, error) {
	if creds == nil {
		return nil, fmt.Errorf("credentials cannot be nil")
	}

	signed := *creds
	if signed.ConsumerKey == "" {
		signed.ConsumerKey = c.consumer
	}
	if signed.ConsumerKey == "" {
		return nil, fmt.Errorf("consumer key is required")
	}

	base := c.httpClient.Transport
	if base == nil {
		base = http.DefaultTransport
	}

	s := &Session{
		httpClient: &http.Client{
			Transport:     newOAuthTransport(base, signed),
			Timeout:       c.httpClient.Timeout,
			CheckRedirect: c.httpClient.CheckRedirect,
		},
		apiRoot: c.serviceRoot + c.apiVersion + "/",
		logger:  c.logger,
	}

	c.logger.Debug("logging in to launchpad",
		zap.String("api_root", s.apiRoot),
		zap.String("consumer", signed.ConsumerKey),
		zap.Bool("anonymous", signed.Anonymous()),
	)

	if err := s.get(ctx, s.apiRoot, nil, &s.root); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to load service root: %w", err)
	}

	return s, nil
}

// LoginAnonymously opens a read-only session without an access token.
func (c *Client) LoginAnonymously(ctx context.Context) (*Session, error) {
	return c.Login(ctx, AnonymousCredentials(c.consumer))
}

// Session is an authenticated handle to the web service. Every lookup goes
// through it; Close releases its connections.
type Session struct {
	httpClient *http.Client
	apiRoot    string
	root       ServiceRoot
	logger     *zap.Logger
}

// APIRoot returns the versioned API root, ending in a slash.
func (s *Session) APIRoot() string {
	return s.apiRoot
}

// Close releases idle connections held by the session.
func (s *Session) Close() {
	s.httpClient.CloseIdleConnections()
}

// get fetches link (with optional extra query parameters) and decodes the
// JSON body into out.
func (s *Session) get(ctx context.Context, link string, params url.Values, out interface{}) error {
	u, err := url.Parse(link)
	if err != nil {
		return fmt.Errorf("invalid link %q: %w", link, err)
	}
	if len(params) > 0 {
		q := u.Query()
		for k, vs := range params {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())

	start := time.Now()
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	s.logger.Debug("launchpad request",
		zap.String("method", req.Method),
		zap.String("url", req.URL.String()),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return newAPIError(req, resp.StatusCode, body)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse response from %s: %w", req.URL.String(), err)
	}

	return nil
}

func newAPIError(req *http.Request, statusCode int, body []byte) *APIError {
	msg := redactSecrets(strings.TrimSpace(string(body)))
	if len(msg) > maxErrorBody {
		msg = msg[:maxErrorBody] + "..."
	}
	return &APIError{
		StatusCode: statusCode,
		Method:     req.Method,
		URL:        req.URL.String(),
		Body:       msg,
	}
}
