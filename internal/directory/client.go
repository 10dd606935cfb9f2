// Package directory is a client for the central directory service that
// brokers pairing codes and lists the servers owned by an account.
package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/matst80/mediabroker/internal/httpx"
	"github.com/pkg/errors"
)

const (
	DefaultBaseURL = "https://plex.tv/api/v2"
	DefaultAuthApp = "https://app.plex.tv/auth"

	maxErrorBody = 4 << 10
)

// StatusError is returned for non-2xx directory responses.
type StatusError struct {
	Op     string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("directory %s: status %d", e.Op, e.Status)
}

// Pin is a pairing code. AuthToken is empty until the user approves it.
type Pin struct {
	ID        json.Number `json:"id"`
	Code      string      `json:"code"`
	AuthToken string      `json:"authToken"`
}

// Connection is one advertised endpoint of a resource.
type Connection struct {
	Protocol string `json:"protocol"`
	Address  string `json:"address"`
	Port     int    `json:"port"`
	URI      string `json:"uri"`
	Local    bool   `json:"local"`
	Relay    bool   `json:"relay"`
}

// Resource is a device or server owned by the account.
type Resource struct {
	Name             string       `json:"name"`
	Provides         string       `json:"provides"`
	ClientIdentifier string       `json:"clientIdentifier"`
	Connections      []Connection `json:"connections"`
}

// ProvidesServer reports whether "server" is among the resource capabilities.
func (r Resource) ProvidesServer() bool {
	for _, p := range strings.Split(r.Provides, ",") {
		if strings.TrimSpace(p) == "server" {
			return true
		}
	}
	return false
}

// Client talks to the directory service over HTTP.
type Client struct {
	baseURL    string
	descriptor httpx.ClientDescriptor
	httpClient *http.Client
}

// New creates a Client. An empty baseURL selects DefaultBaseURL.
func New(baseURL string, descriptor httpx.ClientDescriptor, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		descriptor: descriptor.WithDefaults(),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// CreatePin requests a new pairing code for clientID.
func (c *Client) CreatePin(ctx context.Context, clientID string) (*Pin, error) {
	var pin Pin
	if err := c.do(ctx, "create pin", http.MethodPost, "/pins?strong=true", "", clientID, true, &pin); err != nil {
		return nil, err
	}
	if pin.ID == "" || pin.Code == "" {
		return nil, errors.New("directory create pin: response missing id or code")
	}
	return &pin, nil
}

// CheckPin polls the pairing status of pinID.
func (c *Client) CheckPin(ctx context.Context, pinID, clientID string) (*Pin, error) {
	var pin Pin
	if err := c.do(ctx, "check pin", http.MethodGet, "/pins/"+url.PathEscape(pinID), "", clientID, false, &pin); err != nil {
		return nil, err
	}
	return &pin, nil
}

// Resources lists the account's resources including HTTPS connections.
func (c *Client) Resources(ctx context.Context, token, clientID string) ([]Resource, error) {
	var out []Resource
	if err := c.do(ctx, "resources", http.MethodGet, "/resources?includeHttps=1", token, clientID, false, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, op, method, path, token, clientID string, describe bool, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return errors.Wrapf(err, "directory %s: build request", op)
	}
	req.Header.Set("Accept", "application/json")
	httpx.SetIdentity(req.Header, token, clientID)
	if describe {
		c.descriptor.Apply(req.Header)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrapf(err, "directory %s", op)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{Op: op, Status: resp.StatusCode, Body: string(body)}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrapf(err, "directory %s: decode response", op)
	}
	return nil
}

// AuthURL builds the hosted approval page URL for a pairing code.
func AuthURL(authApp, clientID, code, forwardURL, product string) string {
	if authApp == "" {
		authApp = DefaultAuthApp
	}
	q := url.Values{}
	q.Set("clientID", clientID)
	q.Set("code", code)
	if forwardURL != "" {
		q.Set("forwardUrl", forwardURL)
	}
	if product != "" {
		q.Set("context[device][product]", product)
	}
	return authApp + "#?" + q.Encode()
}
