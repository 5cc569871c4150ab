package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cuemby/catena/pkg/api"
	"github.com/cuemby/catena/pkg/chain"
	"github.com/cuemby/catena/pkg/manager"
	"github.com/cuemby/catena/pkg/storage"
	"github.com/cuemby/catena/pkg/types"
)

// Client talks to a Catena server over its REST API
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for the server at addr (host:port or URL).
// Chain creation blocks until the controller is provisioned, so the default
// timeout is long.
func NewClient(addr string) (*Client, error) {
	if addr == "" {
		return nil, fmt.Errorf("%w: server address is required", types.ErrValidation)
	}
	if !strings.Contains(addr, "://") {
		addr = "http://" + addr
	}
	u, err := url.Parse(addr)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid server address %q: %v", types.ErrValidation, addr, err)
	}
	return &Client{
		baseURL: strings.TrimRight(u.String(), "/"),
		http:    &http.Client{Timeout: 30 * time.Minute},
	}, nil
}

// APIError is a non-2xx response from the server. It unwraps to the error
// kind matching the status code.
type APIError struct {
	StatusCode int
	Message    string
	Orphaned   []string
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
	if len(e.Orphaned) > 0 {
		msg += fmt.Sprintf(" (orphaned instances: %s)", strings.Join(e.Orphaned, ", "))
	}
	return msg
}

func (e *APIError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusBadRequest:
		return types.ErrValidation
	case http.StatusNotFound:
		return types.ErrNotFound
	case http.StatusConflict:
		return types.ErrConflict
	case http.StatusBadGateway:
		return types.ErrCloudProvider
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var apiErr struct {
			Error    string   `json:"error"`
			Orphaned []string `json:"orphaned_instances"`
		}
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if json.Unmarshal(data, &apiErr) != nil || apiErr.Error == "" {
			apiErr.Error = strings.TrimSpace(string(data))
		}
		return &APIError{StatusCode: resp.StatusCode, Message: apiErr.Error, Orphaned: apiErr.Orphaned}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func listQuery(opts storage.ListOptions) url.Values {
	q := url.Values{}
	for k, v := range opts.Filters {
		q.Set(k, v)
	}
	if opts.SortKey != "" {
		q.Set("sort_key", opts.SortKey)
	}
	if opts.SortDir != "" {
		q.Set("sort_dir", opts.SortDir)
	}
	if opts.Marker != "" {
		q.Set("marker", opts.Marker)
	}
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}
	return q
}

// CreateCloud registers a cloud account
func (c *Client) CreateCloud(ctx context.Context, req api.CloudRequest) (*types.CloudView, error) {
	var out types.CloudView
	if err := c.do(ctx, http.MethodPost, "/v1/clouds", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListClouds lists clouds
func (c *Client) ListClouds(ctx context.Context, opts storage.ListOptions) ([]*types.CloudView, error) {
	var out []*types.CloudView
	err := c.do(ctx, http.MethodGet, "/v1/clouds", listQuery(opts), nil, &out)
	return out, err
}

// CloudTypes lists the supported cloud providers
func (c *Client) CloudTypes(ctx context.Context) ([]string, error) {
	var out []string
	err := c.do(ctx, http.MethodGet, "/v1/clouds/types", nil, nil, &out)
	return out, err
}

// NodeFlavours lists VM sizes of a cloud
func (c *Client) NodeFlavours(ctx context.Context, cloudID string) ([]string, error) {
	return c.cloudList(ctx, cloudID, "node_flavours")
}

// Networks lists networks of a cloud
func (c *Client) Networks(ctx context.Context, cloudID string) ([]string, error) {
	return c.cloudList(ctx, cloudID, "networks")
}

// Instances lists instances of a cloud
func (c *Client) Instances(ctx context.Context, cloudID string) ([]string, error) {
	return c.cloudList(ctx, cloudID, "instances")
}

func (c *Client) cloudList(ctx context.Context, cloudID, what string) ([]string, error) {
	var out []string
	err := c.do(ctx, http.MethodGet, "/v1/clouds/"+url.PathEscape(cloudID)+"/"+what, nil, nil, &out)
	return out, err
}

// CreateChain creates a chain and waits for its controller
func (c *Client) CreateChain(ctx context.Context, req api.ChainRequest) (*types.ChainView, error) {
	var out types.ChainView
	if err := c.do(ctx, http.MethodPost, "/v1/chains", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListChains lists chains
func (c *Client) ListChains(ctx context.Context, opts storage.ListOptions) ([]*types.ChainView, error) {
	var out []*types.ChainView
	err := c.do(ctx, http.MethodGet, "/v1/chains", listQuery(opts), nil, &out)
	return out, err
}

// GetChain returns one chain
func (c *Client) GetChain(ctx context.Context, chainID string) (*types.ChainView, error) {
	var out types.ChainView
	if err := c.do(ctx, http.MethodGet, "/v1/chains/"+url.PathEscape(chainID), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteChain deletes a chain and its nodes
func (c *Client) DeleteChain(ctx context.Context, chainID string) error {
	return c.do(ctx, http.MethodDelete, "/v1/chains/"+url.PathEscape(chainID), nil, nil, nil)
}

// CreateNode adds a worker node to a chain
func (c *Client) CreateNode(ctx context.Context, chainID string, req manager.NodeRequest) (*types.NodeView, error) {
	var out types.NodeView
	if err := c.do(ctx, http.MethodPost, "/v1/chains/"+url.PathEscape(chainID)+"/nodes", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListNodes lists the nodes of a chain
func (c *Client) ListNodes(ctx context.Context, chainID string, opts storage.ListOptions) ([]*types.NodeView, error) {
	var out []*types.NodeView
	err := c.do(ctx, http.MethodGet, "/v1/chains/"+url.PathEscape(chainID)+"/nodes", listQuery(opts), nil, &out)
	return out, err
}

// GetNode returns one node
func (c *Client) GetNode(ctx context.Context, chainID, nodeID string) (*types.NodeView, error) {
	var out types.NodeView
	path := "/v1/chains/" + url.PathEscape(chainID) + "/nodes/" + url.PathEscape(nodeID)
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteNode removes a worker node
func (c *Client) DeleteNode(ctx context.Context, chainID, nodeID string) error {
	path := "/v1/chains/" + url.PathEscape(chainID) + "/nodes/" + url.PathEscape(nodeID)
	return c.do(ctx, http.MethodDelete, path, nil, nil, nil)
}

// Backends returns chain backend capabilities
func (c *Client) Backends(ctx context.Context) (map[string]chain.BackendInfo, error) {
	var out map[string]chain.BackendInfo
	err := c.do(ctx, http.MethodGet, "/v1/backends", nil, nil, &out)
	return out, err
}

// Close releases idle connections held by the client
func (c *Client) Close() error {
	c.http.CloseIdleConnections()
	return nil
}
