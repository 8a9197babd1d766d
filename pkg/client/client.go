// Package client is the HTTP SDK for the vmforge daemon. The CLI and
// integration tests talk to the API exclusively through it.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Sentinels mapped back from API status codes.
var (
	ErrDuplicate    = errors.New("hostname already in use")
	ErrNotFound     = errors.New("machine not found")
	ErrUnauthorized = errors.New("missing or rejected tenant identity")
	ErrUnavailable  = errors.New("service unavailable")
)

// API is what callers need from the daemon.
type API interface {
	CreateMachine(ctx context.Context, req CreateMachineRequest) (MachineSummary, error)
	GetMachine(ctx context.Context, id string) (MachineSummary, error)
	ListMachines(ctx context.Context, page, limit int) (MachineList, error)
}

// Client talks to one daemon on behalf of one tenant. The tenant id is
// sent as X-User-Id on every request; in production deployments the
// gateway overwrites it from the verified token, so the daemon never
// trusts the raw client value.
type Client struct {
	base   string
	userID string
	http   *http.Client
}

// New returns a Client for baseURL acting as userID.
func New(baseURL, userID string) *Client {
	return &Client{
		base:   strings.TrimRight(baseURL, "/"),
		userID: userID,
		http:   &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) CreateMachine(ctx context.Context, req CreateMachineRequest) (MachineSummary, error) {
	var out MachineSummary
	if err := c.do(ctx, http.MethodPost, "/api/machines", req, &out); err != nil {
		return MachineSummary{}, err
	}
	return out, nil
}

func (c *Client) GetMachine(ctx context.Context, id string) (MachineSummary, error) {
	var out MachineSummary
	if err := c.do(ctx, http.MethodGet, "/api/machines/"+url.PathEscape(id), nil, &out); err != nil {
		return MachineSummary{}, err
	}
	return out, nil
}

func (c *Client) ListMachines(ctx context.Context, page, limit int) (MachineList, error) {
	q := url.Values{}
	if page > 0 {
		q.Set("page", strconv.Itoa(page))
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	path := "/api/machines"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var out MachineList
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return MachineList{}, err
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("X-User-Id", c.userID)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("call %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return apiError(resp)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func apiError(resp *http.Response) error {
	var body ErrorResponse
	msg := resp.Status
	if err := json.NewDecoder(resp.Body).Decode(&body); err == nil && body.Error != "" {
		msg = body.Error
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return fmt.Errorf("%w: %s", ErrUnauthorized, msg)
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, msg)
	case http.StatusConflict:
		return fmt.Errorf("%w: %s", ErrDuplicate, msg)
	case http.StatusServiceUnavailable:
		return fmt.Errorf("%w: %s", ErrUnavailable, msg)
	default:
		return fmt.Errorf("api error (%d): %s", resp.StatusCode, msg)
	}
}
