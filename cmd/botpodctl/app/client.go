package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/autopeer-io/botpod/internal/botpod/core/model"
	httpserver "github.com/autopeer-io/botpod/internal/botpod/server/http"
)

// apiError is a non-2xx answer of the botpod API.
type apiError struct {
	Status         int
	Message        string
	UpstreamStatus int
}

func (e *apiError) Error() string {
	if e.UpstreamStatus != 0 {
		return fmt.Sprintf("%s (status %d, upstream status %d)", e.Message, e.Status, e.UpstreamStatus)
	}
	return fmt.Sprintf("%s (status %d)", e.Message, e.Status)
}

type intentResult struct {
	PodID   string      `json:"podId"`
	Outcome string      `json:"outcome"`
	State   model.State `json:"state"`
}

// client talks to a botpod server. It logs in lazily when a password is set.
type client struct {
	base     string
	password string
	http     *http.Client
	token    string
}

func newClient(server, password string, timeout time.Duration) *client {
	return &client{
		base:     strings.TrimRight(server, "/"),
		password: password,
		http:     &http.Client{Timeout: timeout},
	}
}

func (c *client) Bots(ctx context.Context) ([]httpserver.BotView, error) {
	var bots []httpserver.BotView
	return bots, c.do(ctx, http.MethodGet, "/v1/bots", nil, &bots)
}

func (c *client) Bot(ctx context.Context, podID string) (*httpserver.BotView, error) {
	var bot httpserver.BotView
	if err := c.do(ctx, http.MethodGet, "/v1/bots/"+url.PathEscape(podID), nil, &bot); err != nil {
		return nil, err
	}
	return &bot, nil
}

func (c *client) Pods(ctx context.Context, computeType string) ([]model.Pod, error) {
	path := "/v1/pods"
	if computeType != "" {
		path += "?" + url.Values{"computeType": {computeType}}.Encode()
	}
	var pods []model.Pod
	return pods, c.do(ctx, http.MethodGet, path, nil, &pods)
}

func (c *client) CreatePod(ctx context.Context, req *model.CreatePodRequest) (*model.Pod, error) {
	var pod model.Pod
	if err := c.do(ctx, http.MethodPost, "/v1/pods", req, &pod); err != nil {
		return nil, err
	}
	return &pod, nil
}

func (c *client) Wake(ctx context.Context, podID string) (*intentResult, error) {
	return c.intent(ctx, podID, "wake")
}

func (c *client) Shutdown(ctx context.Context, podID string) (*intentResult, error) {
	return c.intent(ctx, podID, "shutdown")
}

func (c *client) intent(ctx context.Context, podID, action string) (*intentResult, error) {
	var res intentResult
	if err := c.do(ctx, http.MethodPost, "/v1/bots/"+url.PathEscape(podID)+"/"+action, nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *client) login(ctx context.Context) error {
	var res struct {
		Token string `json:"token"`
	}
	if err := c.send(ctx, http.MethodPost, "/v1/auth/login", map[string]string{"password": c.password}, &res); err != nil {
		return fmt.Errorf("login failed: %w", err)
	}
	c.token = res.Token
	return nil
}

func (c *client) do(ctx context.Context, method, path string, in, out any) error {
	if c.password != "" && c.token == "" {
		if err := c.login(ctx); err != nil {
			return err
		}
	}
	return c.send(ctx, method, path, in, out)
}

func (c *client) send(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &apiError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		var e struct {
			Error          string `json:"error"`
			UpstreamStatus int    `json:"upstreamStatus"`
		}
		if json.Unmarshal(data, &e) == nil && e.Error != "" {
			apiErr.Message = e.Error
			apiErr.UpstreamStatus = e.UpstreamStatus
		}
		return apiErr
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, out)
}
