// Package hypervisor is the consumed contract for the cluster's hypervisor
// REST API: cluster resources/status, VM/CT lifecycle, and recent tasks.
// Payload shapes beyond the fields this plane touches are treated as
// opaque.
package hypervisor

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/homelab/jarvis/internal/infra"
)

// Config configures the hypervisor client.
type Config struct {
	BaseURL    string
	Token      string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client is a thin REST client over the hypervisor's API, authenticated with
// a long-lived bearer token header. Calls are wrapped in a circuit breaker so
// the monitor's critical-tier poll (every few seconds) stops hammering a
// hypervisor that is actually down, plus a bounded retry for transient
// request failures.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
	breaker *infra.CircuitBreaker
	retry   *infra.RetryConfig
}

// NewClient constructs a Client. Timeout defaults to 15s, the typical
// outbound HTTP deadline used across this plane.
func NewClient(cfg Config) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("hypervisor: base_url is required")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("hypervisor: invalid base_url: %w", err)
	}
	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, fmt.Errorf("hypervisor: token is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	breaker := infra.NewCircuitBreaker(infra.CircuitBreakerConfig{
		Name:             "hypervisor",
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Timeout:          30 * time.Second,
	})
	retry := infra.DefaultRetryConfig()
	retry.MaxAttempts = 2
	retry.InitialDelay = 200 * time.Millisecond
	return &Client{baseURL: baseURL, token: token, client: client, breaker: breaker, retry: retry}, nil
}

// Resource is one row of the cluster-resources list.
type Resource struct {
	Name    string  `json:"name"`
	VMID    int     `json:"vmid,omitempty"`
	Node    string  `json:"node"`
	Status  string  `json:"status"`
	CPU     float64 `json:"cpu"`
	MaxCPU  int     `json:"maxcpu"`
	Mem     int64   `json:"mem"`
	MaxMem  int64   `json:"maxmem"`
	Disk    int64   `json:"disk"`
	MaxDisk int64   `json:"maxdisk"`
	Uptime  int64   `json:"uptime"`
	Type    string  `json:"type"` // qemu | lxc | node | storage
}

// ClusterResources lists resources optionally filtered by kind
// ("node", "vm", "storage").
func (c *Client) ClusterResources(ctx context.Context, kind string) ([]Resource, error) {
	endpoint := c.baseURL + "/cluster/resources"
	if kind != "" {
		endpoint += "?type=" + url.QueryEscape(kind)
	}
	var out []Resource
	if err := c.doJSON(ctx, http.MethodGet, endpoint, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// NodeStatus is one row of cluster status with quorum information.
type NodeStatus struct {
	Name    string `json:"name"`
	Online  bool   `json:"online"`
	Quorate bool   `json:"quorate"`
}

// ClusterStatus returns the per-node quorum view.
func (c *Client) ClusterStatus(ctx context.Context) ([]NodeStatus, error) {
	var out []NodeStatus
	if err := c.doJSON(ctx, http.MethodGet, c.baseURL+"/cluster/status", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// LifecycleAction is one of the VM/CT lifecycle operations.
type LifecycleAction string

const (
	ActionStart    LifecycleAction = "start"
	ActionStop     LifecycleAction = "stop"
	ActionReboot   LifecycleAction = "reboot"
	ActionShutdown LifecycleAction = "shutdown"
)

// VMAction invokes a lifecycle action against a VM on a node. The request
// always goes to the qemu path; containers (lxc) are not addressed.
func (c *Client) VMAction(ctx context.Context, node string, vmid int, action LifecycleAction) error {
	endpoint := fmt.Sprintf("%s/nodes/%s/qemu/%d/status/%s", c.baseURL, url.PathEscape(node), vmid, action)
	return c.doJSON(ctx, http.MethodPost, endpoint, nil, nil)
}

// Task is one row of recent activity.
type Task struct {
	UPID   string `json:"upid"`
	Node   string `json:"node"`
	Type   string `json:"type"`
	Status string `json:"status"`
}

// Tasks lists recent activity for a node.
func (c *Client) Tasks(ctx context.Context, node string) ([]Task, error) {
	endpoint := fmt.Sprintf("%s/nodes/%s/tasks", c.baseURL, url.PathEscape(node))
	var out []Task
	if err := c.doJSON(ctx, http.MethodGet, endpoint, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// doJSON executes a request through the circuit breaker with a short bounded
// retry, so a single flaky response doesn't fail a poll cycle outright but a
// genuinely down hypervisor trips the breaker instead of being retried
// forever.
func (c *Client) doJSON(ctx context.Context, method, endpoint string, body io.Reader, out any) error {
	return c.breaker.Execute(ctx, func(ctx context.Context) error {
		result := infra.RetryVoid(ctx, c.retry, func(ctx context.Context) error {
			return c.doJSONOnce(ctx, method, endpoint, body, out)
		})
		return result.LastError
	})
}

func (c *Client) doJSONOnce(ctx context.Context, method, endpoint string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("hypervisor: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("hypervisor: request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("hypervisor: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := strings.TrimSpace(string(data))
		if msg == "" {
			msg = resp.Status
		}
		return fmt.Errorf("hypervisor: %s", msg)
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("hypervisor: decode response: %w", err)
	}
	return nil
}
