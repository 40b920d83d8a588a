package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/artasov/speechd"
	"github.com/artasov/speechd/internal/config"
)

// APIClient provides HTTP client functionality to communicate with the speechd daemon
type APIClient struct {
	baseURL string
	client  *http.Client
}

// NewAPIClient creates a new API client
func NewAPIClient(baseURL string, timeout time.Duration) *APIClient {
	if baseURL == "" {
		baseURL = "http://" + config.DefaultAPIAddr
	}
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &APIClient{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// IsReachable checks if the daemon is running and reachable
func (c *APIClient) IsReachable() bool {
	probe := &http.Client{Timeout: 2 * time.Second}
	resp, err := probe.Get(c.baseURL + "/status")
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	return resp.StatusCode == http.StatusOK
}

// Op runs a lifecycle operation (install, start, stop, restart, reinstall)
// and returns the resulting status.
func (c *APIClient) Op(op string) (speechd.Status, error) {
	resp, err := c.client.Post(c.baseURL+"/"+op, "application/json", nil)
	if err != nil {
		return speechd.Status{}, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		var errorResp struct {
			Error  string          `json:"error"`
			Status *speechd.Status `json:"status"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&errorResp); err != nil {
			return speechd.Status{}, err
		}
		if errorResp.Status != nil {
			return *errorResp.Status, fmt.Errorf("API error: %s", errorResp.Error)
		}
		return speechd.Status{}, fmt.Errorf("API error: %s", errorResp.Error)
	}

	var st speechd.Status
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return speechd.Status{}, err
	}
	return st, nil
}

// Status gets the current status via API
func (c *APIClient) Status() (speechd.Status, error) {
	return c.getStatus("/status")
}

// Health runs a one-shot health probe via API
func (c *APIClient) Health() (speechd.Status, error) {
	return c.getStatus("/health")
}

func (c *APIClient) getStatus(path string) (speechd.Status, error) {
	resp, err := c.client.Get(c.baseURL + path)
	if err != nil {
		return speechd.Status{}, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		var errorResp struct {
			Error string `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&errorResp); err != nil {
			return speechd.Status{}, err
		}
		return speechd.Status{}, fmt.Errorf("API error: %s", errorResp.Error)
	}

	var st speechd.Status
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return speechd.Status{}, err
	}
	return st, nil
}

// ModelDownloaded checks whether the named model's weights are present
func (c *APIClient) ModelDownloaded(name string) (bool, error) {
	resp, err := c.client.Get(c.baseURL + "/models/downloaded?name=" + url.QueryEscape(name))
	if err != nil {
		return false, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		var errorResp struct {
			Error string `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&errorResp); err != nil {
			return false, err
		}
		return false, fmt.Errorf("API error: %s", errorResp.Error)
	}

	var body struct {
		Name       string `json:"name"`
		Downloaded bool   `json:"downloaded"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return false, err
	}
	return body.Downloaded, nil
}
