package telemetry

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"
)

const (
	authEndpoint = "/api/v1/auth/tokens"
	getEndpoint  = "/api/v1/db/get"
	contentType  = "application/vnd.api+json"
)

// Client talks to the AirLink OS REST API of the router the buoy rides on.
// When built from a file path instead of a URL it serves the file's
// recorded response for every request.
type Client struct {
	baseURL    string
	username   string
	password   string
	httpClient *http.Client
	userAgent  string
	logger     *log.Logger

	mu    sync.Mutex
	token string

	fileData Snapshot
}

// ClientOption is a functional option for configuring the Client.
type ClientOption func(*Client)

// WithCredentials sets the login used to obtain access tokens.
func WithCredentials(username, password string) ClientOption {
	return func(c *Client) {
		c.username = username
		c.password = password
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithInsecureTLS disables certificate verification. Routers ship with
// self-signed certificates.
func WithInsecureTLS() ClientOption {
	return func(c *Client) {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
		c.httpClient.Transport = transport
	}
}

// WithUserAgent sets a custom User-Agent header.
func WithUserAgent(ua string) ClientOption {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithLogger routes client diagnostics to logger.
func WithLogger(logger *log.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a client for baseURL, which is either an http(s) URL
// or the path of a JSON file holding a recorded db/get response.
func NewClient(baseURL string, opts ...ClientOption) (*Client, error) {
	client := &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		userAgent:  "njord",
		logger:     log.Default(),
	}
	for _, opt := range opts {
		opt(client)
	}

	if u, err := url.Parse(baseURL); err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != "" {
		client.baseURL = strings.TrimRight(baseURL, "/")
		return client, nil
	}

	if info, err := os.Stat(baseURL); err == nil && !info.IsDir() {
		data, err := loadResponseFile(baseURL)
		if err != nil {
			return nil, err
		}
		client.fileData = data
		return client, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrInvalidBaseURL, baseURL)
}

// FileProxy reports whether the client replays a recorded response file.
func (c *Client) FileProxy() bool {
	return c.fileData != nil
}

type responseEnvelope struct {
	Data json.RawMessage `json:"data"`
}

func loadResponseFile(path string) (Snapshot, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read AOS API JSON %s: %w", path, err)
	}
	data, err := decodeSnapshot(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to decode AOS API JSON %s: %w", path, err)
	}
	return data, nil
}

// decodeSnapshot extracts data[0] from a db/get response body.
func decodeSnapshot(raw []byte) (Snapshot, error) {
	var envelope responseEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, err
	}
	var rows []Snapshot
	if err := json.Unmarshal(envelope.Data, &rows); err != nil {
		return nil, fmt.Errorf("unexpected data section: %w", err)
	}
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, ErrEmptyResponse
	}
	return rows[0], nil
}

// Authenticate obtains a fresh access token.
func (c *Client) Authenticate(ctx context.Context) error {
	if c.FileProxy() {
		c.setToken("file access")
		return nil
	}

	body, err := json.Marshal(map[string]string{"login": c.username, "password": c.password})
	if err != nil {
		return err
	}
	resp, err := c.post(ctx, authEndpoint, body, "")
	if err != nil {
		return fmt.Errorf("authentication request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("authentication failed: unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var parsed struct {
		Data struct {
			AccessToken string `json:"access_token"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return fmt.Errorf("failed to decode authentication response: %w", err)
	}
	if parsed.Data.AccessToken == "" {
		return ErrNoAccessToken
	}
	c.setToken(parsed.Data.AccessToken)
	return nil
}

func (c *Client) setToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

func (c *Client) currentToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

// Get reads the requested database fields. An expired token is renewed
// once per call.
func (c *Client) Get(ctx context.Context, fields []string) (Snapshot, error) {
	if c.FileProxy() {
		return c.fileData.Clone(), nil
	}

	if c.currentToken() == "" {
		if err := c.Authenticate(ctx); err != nil {
			return nil, err
		}
	}

	data, err := c.get(ctx, fields)
	if errors.Is(err, ErrUnauthorized) {
		c.logger.Printf("AOS token rejected, re-authenticating")
		if err := c.Authenticate(ctx); err != nil {
			return nil, err
		}
		data, err = c.get(ctx, fields)
	}
	return data, err
}

// Fetch implements Fetcher using DefaultFields.
func (c *Client) Fetch(ctx context.Context) (Snapshot, error) {
	return c.Get(ctx, DefaultFields)
}

func (c *Client) get(ctx context.Context, fields []string) (Snapshot, error) {
	body, err := json.Marshal([]map[string][]string{{"fields": fields}})
	if err != nil {
		return nil, err
	}
	resp, err := c.post(ctx, getEndpoint, body, c.currentToken())
	if err != nil {
		return nil, fmt.Errorf("data request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, ErrUnauthorized
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	data, err := decodeSnapshot(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve data: %w", err)
	}
	return data, nil
}

func (c *Client) post(ctx context.Context, endpoint string, body []byte, token string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", contentType)
	req.Header.Set("User-Agent", c.userAgent)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return c.httpClient.Do(req)
}
