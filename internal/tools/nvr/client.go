// Package nvr wraps a camera/NVR proxy's REST surface (camera listing and
// still-snapshot retrieval) the same way internal/tools/smarthome wraps Home
// Assistant: a small bearer-token HTTP client with a response size cap.
package nvr

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultTimeout          = 10 * time.Second
	defaultMaxResponseBytes = int64(8 << 20) // snapshots run larger than HA state payloads
)

// Config configures the NVR proxy client.
type Config struct {
	BaseURL          string
	Token            string
	Timeout          time.Duration
	MaxResponseBytes int64
	HTTPClient       *http.Client
}

// Client talks to a camera/NVR proxy exposing /cameras and
// /cameras/{id}/snapshot endpoints.
type Client struct {
	baseURL  string
	token    string
	client   *http.Client
	maxBytes int64
}

// NewClient creates an NVR proxy client.
func NewClient(cfg Config) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("nvr: base_url is required")
	}
	parsed, err := url.Parse(baseURL)
	if err != nil || parsed == nil || strings.TrimSpace(parsed.Scheme) == "" || strings.TrimSpace(parsed.Host) == "" {
		return nil, fmt.Errorf("nvr: invalid base_url")
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("nvr: base_url scheme must be http or https")
	}

	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, fmt.Errorf("nvr: token is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}

	maxBytes := cfg.MaxResponseBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxResponseBytes
	}

	return &Client{baseURL: baseURL, token: token, client: client, maxBytes: maxBytes}, nil
}

// Camera describes one camera the proxy knows about.
type Camera struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Online bool   `json:"online"`
}

// ListCameras returns every camera the proxy exposes (GET /cameras).
func (c *Client) ListCameras(ctx context.Context) ([]Camera, error) {
	data, err := c.doRaw(ctx, http.MethodGet, c.baseURL+"/cameras", "")
	if err != nil {
		return nil, err
	}
	var cameras []Camera
	if err := json.Unmarshal(data, &cameras); err != nil {
		return nil, fmt.Errorf("nvr: decode cameras: %w", err)
	}
	return cameras, nil
}

// Snapshot fetches a single still frame for cameraID
// (GET /cameras/{id}/snapshot), returning the raw image bytes and its
// content type.
func (c *Client) Snapshot(ctx context.Context, cameraID string) ([]byte, string, error) {
	cameraID = strings.TrimSpace(cameraID)
	if cameraID == "" {
		return nil, "", fmt.Errorf("nvr: camera_id is required")
	}
	if c == nil || c.client == nil {
		return nil, "", fmt.Errorf("nvr: client not configured")
	}

	endpoint := c.baseURL + "/cameras/" + url.PathEscape(cameraID) + "/snapshot"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, "", fmt.Errorf("nvr: create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("nvr: request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := c.readLimited(resp)
	if err != nil {
		return nil, "", err
	}
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "image/jpeg"
	}
	return data, contentType, nil
}

func (c *Client) doRaw(ctx context.Context, method, endpoint, body string) (json.RawMessage, error) {
	if c == nil || c.client == nil {
		return nil, fmt.Errorf("nvr: client not configured")
	}
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("nvr: create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("nvr: request failed: %w", err)
	}
	defer resp.Body.Close()

	return c.readLimited(resp)
}

func (c *Client) readLimited(resp *http.Response) ([]byte, error) {
	limit := c.maxBytes
	if limit <= 0 {
		limit = defaultMaxResponseBytes
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("nvr: read response: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("nvr: response too large")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := strings.TrimSpace(string(data))
		if msg == "" {
			msg = resp.Status
		}
		return nil, fmt.Errorf("nvr: %s", msg)
	}
	return data, nil
}
