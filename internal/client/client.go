package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	api "github.com/kubev2v/wave-planner/api/v1alpha1"
	"github.com/kubev2v/wave-planner/internal/auth"
	"github.com/kubev2v/wave-planner/pkg/requestid"
)

// Client calls the planner REST API.
type Client struct {
	server string
	user   string
	http   *http.Client
}

// apiErrorBody aliases api.Error so the embedded field does not collide with the Error method.
type apiErrorBody = api.Error

// APIError is a non 2xx answer of the server.
type APIError struct {
	StatusCode int
	apiErrorBody
}

func (e *APIError) Error() string {
	if len(e.Details) > 0 {
		return fmt.Sprintf("%d: %s (%s)", e.StatusCode, e.Message, strings.Join(e.Details, ", "))
	}
	return fmt.Sprintf("%d: %s", e.StatusCode, e.Message)
}

func NewFromConfig(config *Config) *Client {
	return New(config.Service.Server, config.Service.User, NewHTTPClient())
}

func New(server, user string, httpClient *http.Client) *Client {
	return &Client{server: strings.TrimSuffix(server, "/"), user: user, http: httpClient}
}

func NewHTTPClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   30 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:          100,
			IdleConnTimeout:       90 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}
}

func (c *Client) ListProjects(ctx context.Context) (api.ProjectList, error) {
	var out api.ProjectList
	return out, c.do(ctx, http.MethodGet, "/api/v1/projects", nil, &out)
}

func (c *Client) GetProject(ctx context.Context, id uuid.UUID) (*api.Project, error) {
	out := &api.Project{}
	return out, c.do(ctx, http.MethodGet, "/api/v1/projects/"+id.String(), nil, out)
}

func (c *Client) CreateProject(ctx context.Context, form api.ProjectCreate) (*api.Project, error) {
	out := &api.Project{}
	return out, c.do(ctx, http.MethodPost, "/api/v1/projects", form, out)
}

func (c *Client) DeleteProject(ctx context.Context, id uuid.UUID) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/projects/"+id.String(), nil, nil)
}

// ImportInventory uploads an inventory document as is, JSON or YAML.
func (c *Client) ImportInventory(ctx context.Context, id uuid.UUID, document []byte) (*api.ImportResult, error) {
	out := &api.ImportResult{}
	return out, c.doRaw(ctx, http.MethodPut, "/api/v1/projects/"+id.String()+"/inventory", bytes.NewReader(document), out)
}

func (c *Client) ListWaves(ctx context.Context, id uuid.UUID) (api.WaveList, error) {
	var out api.WaveList
	return out, c.do(ctx, http.MethodGet, "/api/v1/projects/"+id.String()+"/waves", nil, &out)
}

func (c *Client) ListGaps(ctx context.Context, id uuid.UUID) (api.GapList, error) {
	var out api.GapList
	return out, c.do(ctx, http.MethodGet, "/api/v1/projects/"+id.String()+"/gaps", nil, &out)
}

func (c *Client) ListPasses(ctx context.Context, id uuid.UUID) (api.PassList, error) {
	var out api.PassList
	return out, c.do(ctx, http.MethodGet, "/api/v1/projects/"+id.String()+"/passes", nil, &out)
}

// RunPass runs one pass kind, or "all" for the classify to schedule chain.
func (c *Client) RunPass(ctx context.Context, id uuid.UUID, kind string, req api.PassRequest) (api.PassList, error) {
	var out api.PassList
	path := "/api/v1/projects/" + id.String() + "/passes/" + kind
	if kind == "all" {
		return out, c.do(ctx, http.MethodPost, path, req, &out)
	}
	pass := api.Pass{}
	if err := c.do(ctx, http.MethodPost, path, req, &pass); err != nil {
		return nil, err
	}
	return api.PassList{pass}, nil
}

// Export downloads the rendered plan in format.
func (c *Client) Export(ctx context.Context, id uuid.UUID, format string) ([]byte, error) {
	resp, err := c.send(ctx, http.MethodGet, "/api/v1/projects/"+id.String()+"/export?format="+format, nil, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	return c.doRaw(ctx, method, path, reader, out)
}

func (c *Client) doRaw(ctx context.Context, method, path string, body io.Reader, out any) error {
	contentType := ""
	if body != nil {
		contentType = "application/json"
	}
	resp, err := c.send(ctx, method, path, body, contentType)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func (c *Client) send(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.server+path, body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set(requestid.Header, requestid.Generate())
	if c.user != "" {
		req.Header.Set(auth.DefaultUserHeader, c.user)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	defer resp.Body.Close()

	apiErr := &APIError{StatusCode: resp.StatusCode}
	if err := json.NewDecoder(resp.Body).Decode(&apiErr.apiErrorBody); err != nil || apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return nil, apiErr
}
