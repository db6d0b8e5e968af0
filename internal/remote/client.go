package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/nao1215/caiber/internal/pipeline"
)

// DefaultMaxBodySize caps how much of a response is read.
const DefaultMaxBodySize int64 = 10 << 20

// userAgent identifies the client to the backend.
const userAgent = "caiber"

// Endpoint is the HTTP method and path of one stage.
type Endpoint struct {
	Method string
	Path   string
}

// DefaultEndpoints returns the endpoint of every default stage.
func DefaultEndpoints() map[pipeline.StageID]Endpoint {
	return map[pipeline.StageID]Endpoint{
		pipeline.StageRequirements: {Method: http.MethodPost, Path: "/generate-pirs"},
		pipeline.StageCollection:   {Method: http.MethodPost, Path: "/collect-threats"},
		pipeline.StageCorrelation:  {Method: http.MethodPost, Path: "/correlate-threats"},
		pipeline.StageThreatModel:  {Method: http.MethodPost, Path: "/threat-model"},
	}
}

// Client executes pipeline stages against the backend over HTTP/JSON.
// It is safe for concurrent use.
type Client struct {
	baseURL      *url.URL
	httpClient   *http.Client
	endpoints    map[pipeline.StageID]Endpoint
	token        string
	headers      map[string]string
	proxyAddress string
	maxBodySize  int64
	logger       *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client. The proxy option does not apply
// to a replaced client; its transport is used as is.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithToken sends token as a bearer token on every request.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// WithHeader sets an extra header on every request.
func WithHeader(key, value string) Option {
	return func(c *Client) {
		if c.headers == nil {
			c.headers = make(map[string]string)
		}
		c.headers[key] = value
	}
}

// WithEndpoint overrides the endpoint of stage. Empty fields keep the
// default.
func WithEndpoint(stage pipeline.StageID, ep Endpoint) Option {
	return func(c *Client) {
		cur, ok := c.endpoints[stage]
		if ep.Method != "" {
			cur.Method = strings.ToUpper(ep.Method)
		}
		if ep.Path != "" {
			cur.Path = ep.Path
		}
		if !ok && cur.Method == "" {
			cur.Method = http.MethodPost
		}
		c.endpoints[stage] = cur
	}
}

// WithMaxBodySize caps the response size. Larger responses fail the stage
// with a validation error.
func WithMaxBodySize(n int64) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxBodySize = n
		}
	}
}

// WithProxy routes backend traffic through the SOCKS5 proxy at address.
func WithProxy(address string) Option {
	return func(c *Client) {
		c.proxyAddress = address
	}
}

// WithLogger sets the logger for request diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient returns a Client for the backend at baseURL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidBaseURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidBaseURL, baseURL)
	}

	c := &Client{
		baseURL:     u,
		endpoints:   DefaultEndpoints(),
		maxBodySize: DefaultMaxBodySize,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}

	defaults := DefaultEndpoints()
	for stage, ep := range c.endpoints {
		if _, ok := defaults[stage]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownStage, stage)
		}
		if !strings.HasPrefix(ep.Path, "/") {
			return nil, fmt.Errorf("endpoint for %s: path %q must start with /", stage, ep.Path)
		}
	}

	base := c.httpClient
	if base == nil {
		transport, err := newTransport(c.proxyAddress)
		if err != nil {
			return nil, err
		}
		base = &http.Client{Transport: transport}
	}
	rt := base.Transport
	if rt == nil {
		rt = http.DefaultTransport
	}
	hc := *base
	hc.Transport = &authTransport{base: rt, token: c.token, headers: maps.Clone(c.headers)}
	c.httpClient = &hc

	return c, nil
}

// Endpoint returns the endpoint used for stage.
func (c *Client) Endpoint(stage pipeline.StageID) (Endpoint, bool) {
	ep, ok := c.endpoints[stage]
	return ep, ok
}

// BaseURL returns the backend base URL.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// CheckProxy verifies the configured proxy can reach the backend host.
// It reports OK when no proxy is configured.
func (c *Client) CheckProxy(ctx context.Context) ProxyStatus {
	if c.proxyAddress == "" {
		return ProxyStatusOK
	}
	port := c.baseURL.Port()
	if port == "" {
		port = "80"
		if c.baseURL.Scheme == "https" {
			port = "443"
		}
	}
	return CheckProxy(ctx, c.proxyAddress, net.JoinHostPort(c.baseURL.Hostname(), port))
}

// Execute implements pipeline.Executor. Every failure is a
// *pipeline.RemoteError.
func (c *Client) Execute(ctx context.Context, stage pipeline.StageID, in pipeline.Input) (any, error) {
	ep, ok := c.endpoints[stage]
	if !ok {
		return nil, validationError(stage, fmt.Errorf("%w: %s", ErrUnknownStage, stage))
	}
	body, err := encodeRequest(stage, in)
	if errors.Is(err, pipeline.ErrMissingDependency) {
		return nil, err
	}
	if err != nil {
		return nil, validationError(stage, err)
	}

	target := c.baseURL.JoinPath(ep.Path).String()
	req, err := http.NewRequestWithContext(ctx, ep.Method, target, bytes.NewReader(body))
	if err != nil {
		return nil, validationError(stage, fmt.Errorf("building request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	c.logger.Debug("calling stage", "stage", stage, "method", ep.Method, "url", target)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, transportError(stage, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodySize+1))
	if err != nil {
		return nil, transportError(stage, err)
	}
	if int64(len(data)) > c.maxBodySize {
		return nil, pipeline.NewRemoteError(stage, pipeline.KindValidation, "response exceeds %d bytes", c.maxBodySize)
	}

	if _, failed := statusKind(resp.StatusCode); failed {
		re := statusError(stage, resp, data)
		c.logger.Debug("stage call failed", "stage", stage, "status", resp.StatusCode, "kind", re.Kind)
		return nil, re
	}

	out, err := decodeResponse(stage, data)
	if err != nil {
		return nil, validationError(stage, err)
	}
	c.logger.Debug("stage response accepted", "stage", stage, "status", resp.StatusCode, "bytes", len(data))
	return out, nil
}
