package gateway

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

	"github.com/autopeer-io/botpod/internal/botpod/core"
	"github.com/autopeer-io/botpod/internal/botpod/core/model"
	"github.com/autopeer-io/botpod/internal/pkg/metrics"
	"github.com/autopeer-io/botpod/pkg/log"
	"github.com/autopeer-io/botpod/pkg/options"
)

const (
	userAgent       = "botpod/gateway"
	maxResponseSize = 4 << 20
)

var _ core.Gateway = (*RunPod)(nil)

// RunPod forwards pod operations to the RunPod REST API and normalizes its errors.
type RunPod struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  log.Logger
}

// NewRunPod creates a gateway from the options. A missing API key is accepted
// here and reported by every call instead.
func NewRunPod(opts *options.RunPodOptions) *RunPod {
	return NewRunPodWithClient(opts, &http.Client{Timeout: opts.Timeout})
}

// NewRunPodWithClient is NewRunPod with a caller supplied HTTP client.
func NewRunPodWithClient(opts *options.RunPodOptions, client *http.Client) *RunPod {
	return &RunPod{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		apiKey:  opts.APIKey,
		client:  client,
		logger:  log.WithName("gateway"),
	}
}

// List returns every pod, optionally narrowed by compute type.
func (g *RunPod) List(ctx context.Context, opts core.ListOptions) ([]model.Pod, error) {
	query := url.Values{}
	if opts.ComputeType != "" {
		query.Set("computeType", opts.ComputeType)
	}

	var pods []model.Pod
	if err := g.do(ctx, "list", http.MethodGet, "/pods", query, nil, &pods); err != nil {
		return nil, err
	}
	if pods == nil {
		pods = []model.Pod{}
	}
	return pods, nil
}

// Get returns a single pod.
func (g *RunPod) Get(ctx context.Context, id string, opts core.GetOptions) (*model.Pod, error) {
	query := url.Values{}
	if opts.IncludeMachine {
		query.Set("includeMachine", "true")
	}
	if opts.IncludeNetworkVolume {
		query.Set("includeNetworkVolume", "true")
	}
	if opts.IncludeSavingsPlans {
		query.Set("includeSavingsPlans", "true")
	}

	var pod model.Pod
	if err := g.do(ctx, "get", http.MethodGet, "/pods/"+url.PathEscape(id), query, nil, &pod); err != nil {
		return nil, err
	}
	return &pod, nil
}

// Create creates a pod from a template.
func (g *RunPod) Create(ctx context.Context, req *model.CreatePodRequest) (*model.Pod, error) {
	var pod model.Pod
	if err := g.do(ctx, "create", http.MethodPost, "/pods", nil, req, &pod); err != nil {
		return nil, err
	}
	return &pod, nil
}

// Start asks the API to start a pod.
func (g *RunPod) Start(ctx context.Context, id string) (*model.Ack, error) {
	return g.control(ctx, "start", id)
}

// Stop asks the API to stop a pod.
func (g *RunPod) Stop(ctx context.Context, id string) (*model.Ack, error) {
	return g.control(ctx, "stop", id)
}

func (g *RunPod) control(ctx context.Context, op, id string) (*model.Ack, error) {
	ack := model.Ack{}
	if err := g.do(ctx, op, http.MethodPost, "/pods/"+url.PathEscape(id)+"/"+op, nil, nil, &ack); err != nil {
		return nil, err
	}
	if ack.ID == "" {
		ack.ID = id
	}
	return &ack, nil
}

// do performs one call. out is left untouched when the response body is empty.
func (g *RunPod) do(ctx context.Context, op, method, path string, query url.Values, in, out any) (err error) {
	start := time.Now()
	defer func() {
		metrics.GatewayLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
		metrics.GatewayRequests.WithLabelValues(op, outcome(err)).Inc()
	}()

	if g.apiKey == "" {
		return &core.ConfigurationError{Setting: "RunPod API key", Reason: core.ErrMissingCredential}
	}

	endpoint := g.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", op, err)
		}
		body = bytes.NewReader(data)
	}

	request, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("create %s request: %w", op, err)
	}
	request.Header.Set("Authorization", "Bearer "+g.apiKey)
	request.Header.Set("Accept", "application/json")
	request.Header.Set("User-Agent", userAgent)
	if in != nil {
		request.Header.Set("Content-Type", "application/json")
	}

	response, err := g.client.Do(request)
	if err != nil {
		return &core.TransportError{Op: op, Err: err}
	}
	defer response.Body.Close()

	data, err := io.ReadAll(io.LimitReader(response.Body, maxResponseSize))
	if err != nil {
		return &core.TransportError{Op: op, Err: fmt.Errorf("read response: %w", err)}
	}

	if response.StatusCode < 200 || response.StatusCode > 299 {
		upstream := &core.UpstreamError{StatusCode: response.StatusCode, Message: upstreamMessage(response, data)}
		g.logger.Debug("Upstream rejected call", "op", op, "status", response.StatusCode, "message", upstream.Message)
		return upstream
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s response: %w", op, err)
	}
	return nil
}

// upstreamMessage prefers the API's own error text, then the raw body, then the status text.
func upstreamMessage(response *http.Response, body []byte) string {
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &payload) == nil {
		if payload.Error != "" {
			return payload.Error
		}
		if payload.Message != "" {
			return payload.Message
		}
	}

	if text := strings.TrimSpace(string(body)); text != "" {
		return text
	}

	return http.StatusText(response.StatusCode)
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case core.IsConfiguration(err):
		return "config_error"
	case core.IsUpstream(err):
		return "upstream_error"
	case core.IsTransport(err):
		return "transport_error"
	default:
		return "error"
	}
}
