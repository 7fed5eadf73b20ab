// Package adminclient habla con el admin API de un civicauth corriendo.
package adminclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dropDatabas3/civicauth/internal/jwt"
	"github.com/dropDatabas3/civicauth/internal/rotation"
)

const adminKeyHeader = "X-Admin-API-Key"

// APIError es una respuesta no-2xx del server.
type APIError struct {
	Status  int
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("admin api: http %d", e.Status)
	}
	return fmt.Sprintf("admin api: %s (%d): %s", e.Code, e.Status, e.Message)
}

type Client struct {
	base   string
	apiKey string
	http   *http.Client
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option { return func(c *Client) { c.http = h } }

func New(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		base:   strings.TrimRight(baseURL, "/"),
		apiKey: apiKey,
		http:   &http.Client{Timeout: 30 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type KeysResponse struct {
	Current       string        `json:"current"`
	ThresholdDays int           `json:"threshold_days"`
	Keys          []jwt.KeyInfo `json:"keys"`
}

type RotateResponse struct {
	KeyID   string `json:"kid"`
	Current string `json:"current"`
}

type ChangedResponse struct {
	OlderThan *time.Time `json:"older_than,omitempty"`
	KeyIDs    []string   `json:"kids"`
}

func (c *Client) Keys(ctx context.Context) (*KeysResponse, error) {
	var out KeysResponse
	return &out, c.do(ctx, http.MethodGet, "/admin/keys", &out)
}

func (c *Client) Rotate(ctx context.Context) (*RotateResponse, error) {
	var out RotateResponse
	return &out, c.do(ctx, http.MethodPost, "/admin/keys/rotate", &out)
}

// Deprecate con olderThan cero usa el corte del scheduler. Un corte posterior
// al umbral del servidor requiere force.
func (c *Client) Deprecate(ctx context.Context, olderThan time.Time, force bool) (*ChangedResponse, error) {
	q := url.Values{}
	if !olderThan.IsZero() {
		q.Set("olderThan", olderThan.UTC().Format(time.RFC3339))
	}
	if force {
		q.Set("force", "true")
	}
	p := "/admin/keys/deprecate"
	if len(q) > 0 {
		p += "?" + q.Encode()
	}
	var out ChangedResponse
	return &out, c.do(ctx, http.MethodPost, p, &out)
}

func (c *Client) Purge(ctx context.Context) (*ChangedResponse, error) {
	var out ChangedResponse
	return &out, c.do(ctx, http.MethodPost, "/admin/keys/purge", &out)
}

func (c *Client) Tasks(ctx context.Context) ([]rotation.TaskStatus, error) {
	var out []rotation.TaskStatus
	return out, c.do(ctx, http.MethodGet, "/admin/tasks", &out)
}

func (c *Client) RunTask(ctx context.Context, name string) (*rotation.TaskStatus, error) {
	var out rotation.TaskStatus
	return &out, c.do(ctx, http.MethodPost, "/admin/tasks/"+url.PathEscape(name)+"/run", &out)
}

// JWKS trae el documento público; no manda la API key.
func (c *Client) JWKS(ctx context.Context) (*jwt.JWKS, error) {
	var out jwt.JWKS
	return &out, c.do(ctx, http.MethodGet, "/.well-known/jwks.json", &out)
}

func (c *Client) do(ctx context.Context, method, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" && strings.HasPrefix(path, "/admin/") {
		req.Header.Set(adminKeyHeader, c.apiKey)
	}
	res, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return err
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		apiErr := &APIError{Status: res.StatusCode}
		_ = json.Unmarshal(body, apiErr)
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("admin api: decode %s: %w", path, err)
	}
	return nil
}
