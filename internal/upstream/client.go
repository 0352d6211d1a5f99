package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"agrovista.dev/panel/pkg/metrics"
	"agrovista.dev/panel/pkg/session"
)

const defaultTimeout = 15 * time.Second

// Client talks to the external monitoring API on behalf of the panel.
type Client struct {
	baseURL  string
	http     *http.Client
	sessions *session.Store
	logger   *slog.Logger
	metrics  *metrics.UpstreamMetrics
}

// ClientConfig holds the configuration for the Client.
type ClientConfig struct {
	// BaseURL is the upstream root, e.g. "http://localhost:3001".
	BaseURL string
	// Sessions is the credential store consulted on every request.
	Sessions *session.Store
	// Logger is the structured logger.
	Logger *slog.Logger
	// HTTPClient overrides the transport; a default with a 15s timeout
	// is used when nil.
	HTTPClient *http.Client
	// Metrics is the optional Prometheus collector.
	Metrics *metrics.UpstreamMetrics
}

// NewClient creates a Client.
func NewClient(cfg *ClientConfig) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("client config cannot be nil")
	}
	if cfg.BaseURL == "" {
		return nil, errors.New("base URL cannot be empty")
	}
	if cfg.Sessions == nil {
		return nil, errors.New("session store cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}

	return &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		http:     httpClient,
		sessions: cfg.Sessions,
		logger:   cfg.Logger,
		metrics:  cfg.Metrics,
	}, nil
}

// Register creates an account. On success the returned credential is
// stored as a side effect, signing the operator in.
func (c *Client) Register(ctx context.Context, email, password, name string) (Credentials, error) {
	email = strings.TrimSpace(email)
	password = strings.TrimSpace(password)
	if err := ValidateEmail(email); err != nil {
		return Credentials{}, err
	}
	if err := ValidatePassword(password); err != nil {
		return Credentials{}, err
	}

	body, err := c.do(ctx, "register", http.MethodPost, "/api/auth/register", nil, nil, map[string]string{
		"email":    email,
		"password": password,
		"nombre":   name,
	})
	if err != nil {
		return Credentials{}, err
	}

	creds, err := decodeCredentials(body)
	if err != nil {
		return Credentials{}, c.shapeErr("register", err)
	}
	c.sessions.Set(creds.Token)
	return creds, nil
}

// Login exchanges credentials for a bearer token and stores it.
func (c *Client) Login(ctx context.Context, email, password string) (Credentials, error) {
	email = strings.TrimSpace(email)
	password = strings.TrimSpace(password)
	if err := ValidateEmail(email); err != nil {
		return Credentials{}, err
	}
	if err := ValidatePassword(password); err != nil {
		return Credentials{}, err
	}

	body, err := c.do(ctx, "login", http.MethodPost, "/api/auth/login", nil, nil, map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return Credentials{}, err
	}

	creds, err := decodeCredentials(body)
	if err != nil {
		return Credentials{}, c.shapeErr("login", err)
	}
	c.sessions.Set(creds.Token)
	return creds, nil
}

// CurrentUser returns the profile for the stored credential.
func (c *Client) CurrentUser(ctx context.Context) (User, error) {
	body, err := c.do(ctx, "current_user", http.MethodGet, "/api/auth/me", nil, nil, nil)
	if err != nil {
		return User{}, err
	}
	user, err := decodeUser(body)
	if err != nil {
		return User{}, c.shapeErr("current_user", err)
	}
	return user, nil
}

// FetchSnapshot retrieves the full plots-plus-history aggregate from the
// bulk endpoint.
func (c *Client) FetchSnapshot(ctx context.Context) (Snapshot, error) {
	body, err := c.do(ctx, "fetch_snapshot", http.MethodGet, "/api/dump", nil, nil, nil)
	if err != nil {
		return Snapshot{}, err
	}
	snap, err := decodeSnapshot(body)
	if err != nil {
		return Snapshot{}, c.shapeErr("fetch_snapshot", err)
	}
	return snap, nil
}

// FetchLatestReading retrieves the most recent sensor reading with all
// four channels normalized; the caller never receives NaN.
func (c *Client) FetchLatestReading(ctx context.Context) (Reading, error) {
	body, err := c.do(ctx, "fetch_latest", http.MethodGet, "/api/datos-generales", nil, nil, nil)
	if err != nil {
		return Reading{}, err
	}
	reading, err := decodeLatestReading(body)
	if err != nil {
		return Reading{}, c.shapeErr("fetch_latest", err)
	}
	return reading, nil
}

// FetchIrrigationZones retrieves the zone list. Zone status changes are
// safety-relevant, so the request is cache-busted with a timestamp and a
// random nonce on top of explicit no-cache headers.
func (c *Client) FetchIrrigationZones(ctx context.Context) ([]IrrigationZone, error) {
	query := url.Values{
		"t":       {strconv.FormatInt(time.Now().UnixMilli(), 10)},
		"nocache": {uuid.NewString()},
	}
	headers := http.Header{
		"Cache-Control": {"no-cache, no-store, must-revalidate"},
		"Pragma":        {"no-cache"},
		"Expires":       {"0"},
	}

	body, err := c.do(ctx, "fetch_zones", http.MethodGet, "/api/zonas-riego", query, headers, nil)
	if err != nil {
		return nil, err
	}
	zones, err := decodeZones(body)
	if err != nil {
		return nil, c.shapeErr("fetch_zones", err)
	}
	return zones, nil
}

// UpdatePlot issues a partial update and returns the updated record.
func (c *Client) UpdatePlot(ctx context.Context, id int64, update PlotUpdate) (Plot, error) {
	path := fmt.Sprintf("/api/parcelas/%d", id)
	body, err := c.do(ctx, "update_plot", http.MethodPut, path, nil, nil, update)
	if err != nil {
		return Plot{}, err
	}
	plot, err := decodePlot(body)
	if err != nil {
		return Plot{}, c.shapeErr("update_plot", err)
	}
	return plot, nil
}

// CreateSensorReading issues a creation request and returns the created
// record.
func (c *Client) CreateSensorReading(ctx context.Context, reading NewReading) (Reading, error) {
	body, err := c.do(ctx, "create_reading", http.MethodPost, "/api/sensor-lecturas", nil, nil, reading)
	if err != nil {
		return Reading{}, err
	}
	created, err := decodeReading(body)
	if err != nil {
		return Reading{}, c.shapeErr("create_reading", err)
	}
	return created, nil
}

// do performs one HTTP round-trip: builds the request, attaches the
// bearer credential, and maps failures to the error taxonomy. A 401
// tears the session down before returning.
func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, headers http.Header, payload any) ([]byte, error) {
	var timerDone func()
	if c.metrics != nil {
		start := time.Now()
		timerDone = func() {
			c.metrics.CallDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
		}
	}

	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, &DataShapeError{Operation: op, Err: err}
		}
		reqBody = bytes.NewReader(data)
	}

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reqBody)
	if err != nil {
		return nil, &TransportError{Operation: op, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	for k, vals := range headers {
		for _, v := range vals {
			req.Header.Add(k, v)
		}
	}
	if token := c.sessions.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if timerDone != nil {
		timerDone()
	}
	if err != nil {
		c.count(op, "transport_failure")
		return nil, &TransportError{Operation: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.count(op, "transport_failure")
		return nil, &TransportError{Operation: op, Err: err}
	}

	if resp.StatusCode == http.StatusUnauthorized {
		c.logger.Warn("unauthorized response, clearing session", "operation", op)
		c.sessions.Clear()
		c.count(op, "auth_failure")
		if c.metrics != nil {
			c.metrics.AuthFailures.Inc()
		}
		return nil, &AuthError{Operation: op}
	}

	if resp.StatusCode >= 400 {
		c.count(op, "transport_failure")
		return nil, &TransportError{Operation: op, Status: resp.StatusCode}
	}

	c.count(op, "success")
	return body, nil
}

func (c *Client) shapeErr(op string, err error) error {
	c.logger.Warn("payload rejected at decode boundary", "operation", op, "error", err)
	if c.metrics != nil {
		c.metrics.DecodeErrors.WithLabelValues(op).Inc()
	}
	return &DataShapeError{Operation: op, Err: err}
}

func (c *Client) count(op, status string) {
	if c.metrics != nil {
		c.metrics.Calls.WithLabelValues(op, status).Inc()
	}
}
