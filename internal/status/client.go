package status

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/maxg/didit-sub000/internal/coordinator"
	"github.com/maxg/didit-sub000/internal/logger"
	"github.com/maxg/didit-sub000/internal/types"
)

// Talks to a running coordinator's status surface
type Client struct {
	http    *retryablehttp.Client
	baseURL string
}

func NewClient(baseURL string) *Client {
	client := retryablehttp.NewClient()
	client.RetryMax = 3
	client.RetryWaitMin = 100 * time.Millisecond
	client.RetryWaitMax = 5 * time.Second
	client.Logger = logger.Logger
	return &Client{http: client, baseURL: strings.TrimSuffix(baseURL, "/")}
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var payload io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		payload = bytes.NewReader(data)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, c.baseURL+path, payload)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var e Error
		if err := json.NewDecoder(resp.Body).Decode(&e); err != nil || e.Message == "" {
			return fmt.Errorf("%s %s: %s", method, path, resp.Status)
		}
		return fmt.Errorf("%s %s: %s: %s", method, path, resp.Status, e.Message)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) Stats(ctx context.Context) (*coordinator.Stats, error) {
	var stats coordinator.Stats
	if err := c.do(ctx, http.MethodGet, "/status/", nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

func (c *Client) Scheduled(ctx context.Context) ([]types.ScheduledSweep, error) {
	var scheduled []types.ScheduledSweep
	if err := c.do(ctx, http.MethodGet, "/sweeps/scheduled/", nil, &scheduled); err != nil {
		return nil, err
	}
	return scheduled, nil
}

func (c *Client) ScheduleSweep(ctx context.Context, kind, proj string, when time.Time) error {
	return c.do(ctx, http.MethodPost, "/sweeps/scheduled/", ScheduleRequest{When: when, Kind: kind, Proj: proj}, nil)
}

// Spreads current-revision builds of every repository over `hours`
func (c *Client) ScheduleCatchups(ctx context.Context, kind, proj string, hours int) (int, error) {
	var resp CatchupResponse
	if err := c.do(ctx, http.MethodPost, "/catchups/", CatchupRequest{Kind: kind, Proj: proj, Hours: hours}, &resp); err != nil {
		return 0, err
	}
	return resp.Repos, nil
}
