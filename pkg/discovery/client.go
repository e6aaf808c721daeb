package discovery

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

var ErrNoLeader = errors.New("no leader available")

// Client talks to a Registry over HTTP.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTP:    &http.Client{Timeout: 5 * time.Second},
	}
}

func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) (int, error) {
	var body bytes.Buffer
	if in != nil {
		if err := json.NewEncoder(&body).Encode(in); err != nil {
			return 0, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, &body)
	if err != nil {
		return 0, err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to query discovery: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return resp.StatusCode, nil
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("failed to parse response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

// expect2xx turns the result of do into an error for non-2xx responses.
func expect2xx(code int, err error) error {
	if err != nil {
		return err
	}
	if code < 200 || code >= 300 {
		return fmt.Errorf("discovery: unexpected status %d", code)
	}
	return nil
}

// Leader returns the announced leader or ErrNoLeader.
func (c *Client) Leader(ctx context.Context) (*LeaderInfo, error) {
	var leader LeaderInfo
	code, err := c.do(ctx, http.MethodGet, "/leader", nil, &leader)
	if err != nil {
		return nil, err
	}
	if code == http.StatusNotFound {
		return nil, ErrNoLeader
	}
	if err := expect2xx(code, nil); err != nil {
		return nil, err
	}
	return &leader, nil
}

// LeaderGRPCAddr returns a dialable gRPC address of the leader.
func (c *Client) LeaderGRPCAddr(ctx context.Context) (string, error) {
	leader, err := c.Leader(ctx)
	if err != nil {
		return "", err
	}
	if leader.GRPCAddr == "" {
		return "", fmt.Errorf("leader gRPC address not available")
	}
	return dialable(leader.GRPCAddr), nil
}

// LeaderHTTPAddr returns the HTTP address of the leader.
func (c *Client) LeaderHTTPAddr(ctx context.Context) (string, error) {
	leader, err := c.Leader(ctx)
	if err != nil {
		return "", err
	}
	if leader.HTTPAddr == "" {
		return "", fmt.Errorf("leader HTTP address not available")
	}
	return dialable(leader.HTTPAddr), nil
}

// dialable fills in localhost for addresses missing a host, e.g. ":9090".
func dialable(addr string) string {
	if strings.HasPrefix(addr, ":") {
		return "localhost" + addr
	}
	return addr
}

func (c *Client) AnnounceLeader(ctx context.Context, info LeaderInfo) error {
	return expect2xx(c.do(ctx, http.MethodPut, "/leader", info, nil))
}

func (c *Client) RequestJoin(ctx context.Context, id, addr string) error {
	return expect2xx(c.do(ctx, http.MethodPost, "/join-requests", JoinRequest{ID: id, Addr: addr}, nil))
}

func (c *Client) JoinRequests(ctx context.Context) ([]JoinRequest, error) {
	var list []JoinRequest
	if err := expect2xx(c.do(ctx, http.MethodGet, "/join-requests", nil, &list)); err != nil {
		return nil, err
	}
	return list, nil
}

func (c *Client) DeleteJoinRequest(ctx context.Context, id string) error {
	return expect2xx(c.do(ctx, http.MethodDelete, "/join-requests?id="+url.QueryEscape(id), nil, nil))
}
