package api

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/Vex788/zeus-trading-bot/internal/config"
	"github.com/Vex788/zeus-trading-bot/internal/engine"
	"github.com/Vex788/zeus-trading-bot/internal/risk"
	"github.com/Vex788/zeus-trading-bot/internal/state"
)

// Client drives a running bot over its HTTP API.
type Client struct {
	client *resty.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	c := resty.New()
	c.SetBaseURL(strings.TrimRight(baseURL, "/"))
	c.SetTimeout(timeout)
	c.SetHeader("Accept", "application/json")
	return &Client{client: c}
}

// APIError is a non-2xx reply.
type APIError struct {
	Status  int
	Details []ErrorDetail
}

func (e *APIError) Error() string {
	if len(e.Details) == 0 {
		return fmt.Sprintf("api error: status %d", e.Status)
	}
	msgs := make([]string, 0, len(e.Details))
	for _, d := range e.Details {
		msgs = append(msgs, d.Message)
	}
	return fmt.Sprintf("api error: status %d: %s", e.Status, strings.Join(msgs, "; "))
}

func (c *Client) Start(ctx context.Context) (engine.Status, error) {
	return post[engine.Status](ctx, c, "/api/bot/start", nil)
}

func (c *Client) Stop(ctx context.Context) (engine.Status, error) {
	return post[engine.Status](ctx, c, "/api/bot/stop", nil)
}

func (c *Client) Pause(ctx context.Context) (engine.Status, error) {
	return post[engine.Status](ctx, c, "/api/bot/pause", nil)
}

func (c *Client) Resume(ctx context.Context) (engine.Status, error) {
	return post[engine.Status](ctx, c, "/api/bot/resume", nil)
}

func (c *Client) SwitchMode(ctx context.Context, mode config.Mode) (engine.Status, error) {
	return post[engine.Status](ctx, c, "/api/bot/mode", modeRequest{Mode: string(mode)})
}

func (c *Client) Status(ctx context.Context) (engine.Status, error) {
	return get[engine.Status](ctx, c, "/api/bot/status")
}

func (c *Client) Portfolio(ctx context.Context) (engine.Portfolio, error) {
	return get[engine.Portfolio](ctx, c, "/api/portfolio")
}

func (c *Client) Trades(ctx context.Context, limit int) ([]state.Trade, error) {
	return get[[]state.Trade](ctx, c, fmt.Sprintf("/api/trades?limit=%d", limit))
}

func (c *Client) Learning(ctx context.Context, pair string) (engine.LearningState, error) {
	return get[engine.LearningState](ctx, c, "/api/learning/"+url.PathEscape(pair))
}

func (c *Client) RiskStatus(ctx context.Context) (risk.Status, error) {
	return get[risk.Status](ctx, c, "/api/risk/status")
}

func get[T any](ctx context.Context, c *Client, path string) (T, error) {
	return do[T](c.client.R().SetContext(ctx), resty.MethodGet, path)
}

func post[T any](ctx context.Context, c *Client, path string, body any) (T, error) {
	req := c.client.R().SetContext(ctx)
	if body != nil {
		req.SetBody(body)
	}
	return do[T](req, resty.MethodPost, path)
}

func do[T any](req *resty.Request, method, path string) (T, error) {
	var (
		ok   Response[T]
		fail Response[[]ErrorDetail]
		zero T
	)
	resp, err := req.SetResult(&ok).SetError(&fail).Execute(method, path)
	if err != nil {
		return zero, fmt.Errorf("%s %s: %w", method, path, err)
	}
	if resp.IsError() {
		return zero, &APIError{Status: resp.StatusCode(), Details: fail.Data}
	}
	return ok.Data, nil
}
