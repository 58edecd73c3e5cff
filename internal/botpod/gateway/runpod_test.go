package gateway

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autopeer-io/botpod/internal/botpod/core"
	"github.com/autopeer-io/botpod/internal/botpod/core/model"
	"github.com/autopeer-io/botpod/pkg/options"
)

func newTestGateway(t *testing.T, apiKey string, handler http.HandlerFunc) (*RunPod, *atomic.Int32) {
	t.Helper()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	opts := options.NewRunPodOptions()
	opts.BaseURL = srv.URL + "/v1/"
	opts.APIKey = apiKey
	opts.Timeout = 2 * time.Second

	return NewRunPod(opts), &calls
}

func TestMissingCredentialNeverReachesNetwork(t *testing.T) {
	g, calls := newTestGateway(t, "", func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
	})
	ctx := context.Background()

	_, err := g.List(ctx, core.ListOptions{})
	assert.True(t, core.IsConfiguration(err))
	_, err = g.Get(ctx, "p1", core.GetOptions{})
	assert.True(t, core.IsConfiguration(err))
	_, err = g.Create(ctx, &model.CreatePodRequest{Name: "livekit_a", TemplateID: "t1"})
	assert.True(t, core.IsConfiguration(err))
	_, err = g.Start(ctx, "p1")
	assert.True(t, core.IsConfiguration(err))
	_, err = g.Stop(ctx, "p1")
	assert.True(t, core.IsConfiguration(err))

	assert.Equal(t, int32(0), calls.Load())
}

func TestListForwardsFilterAndCredential(t *testing.T) {
	g, _ := newTestGateway(t, "rpa_key", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v1/pods", r.URL.Path)
		assert.Equal(t, "GPU", r.URL.Query().Get("computeType"))
		assert.Equal(t, "Bearer rpa_key", r.Header.Get("Authorization"))

		_ = json.NewEncoder(w).Encode([]model.Pod{
			{ID: "p1", Name: "livekit_a", DesiredStatus: model.PodStatusRunning, LastStartedAt: "2024-05-01T12:00:00Z"},
			{ID: "p2", Name: "other", DesiredStatus: model.PodStatusExited},
		})
	})

	pods, err := g.List(context.Background(), core.ListOptions{ComputeType: "GPU"})
	require.NoError(t, err)
	require.Len(t, pods, 2)
	assert.Equal(t, "p1", pods[0].ID)
	assert.True(t, model.Ready(pods[0]))
	assert.Equal(t, model.PodStatusExited, pods[1].DesiredStatus)
}

func TestGetForwardsIncludeFlags(t *testing.T) {
	g, _ := newTestGateway(t, "k", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/pods/p1", r.URL.Path)
		assert.Equal(t, "true", r.URL.Query().Get("includeMachine"))
		assert.Empty(t, r.URL.Query().Get("includeNetworkVolume"))
		assert.Equal(t, "true", r.URL.Query().Get("includeSavingsPlans"))
		_, _ = io.WriteString(w, `{"id":"p1","desiredStatus":"RUNNING","machine":{"gpuTypeId":"A40"}}`)
	})

	pod, err := g.Get(context.Background(), "p1", core.GetOptions{IncludeMachine: true, IncludeSavingsPlans: true})
	require.NoError(t, err)
	assert.Equal(t, "p1", pod.ID)
	assert.Equal(t, "A40", pod.Machine["gpuTypeId"])
	assert.False(t, model.Ready(*pod))
}

func TestCreateSendsSpec(t *testing.T) {
	g, _ := newTestGateway(t, "k", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "livekit_a", req["name"])
		assert.Equal(t, "t1", req["templateId"])
		assert.EqualValues(t, 2, req["gpuCount"])
		assert.NotContains(t, req, "containerDiskInGb")

		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"id":"p9","name":"livekit_a","desiredStatus":"RUNNING"}`)
	})

	gpus := 2
	pod, err := g.Create(context.Background(), &model.CreatePodRequest{Name: "livekit_a", TemplateID: "t1", GPUCount: &gpus})
	require.NoError(t, err)
	assert.Equal(t, "p9", pod.ID)
}

func TestStartAndStopAcknowledge(t *testing.T) {
	g, calls := newTestGateway(t, "k", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		switch r.URL.Path {
		case "/v1/pods/p1/start":
			_, _ = io.WriteString(w, `{"id":"p1","message":"starting"}`)
		case "/v1/pods/p1/stop":
			w.WriteHeader(http.StatusOK) // empty body
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	})

	ack, err := g.Start(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "starting", ack.Message)

	ack, err = g.Stop(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "p1", ack.ID)
	assert.Equal(t, int32(2), calls.Load())
}

func TestNonSuccessBecomesUpstreamError(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		message string
	}{
		{"json error field", http.StatusBadRequest, `{"error":"pod is not running"}`, "pod is not running"},
		{"json message field", http.StatusNotFound, `{"message":"pod not found"}`, "pod not found"},
		{"plain text", http.StatusBadGateway, "bad gateway\n", "bad gateway"},
		{"empty body", http.StatusUnauthorized, "", "Unauthorized"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, calls := newTestGateway(t, "k", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})

			_, err := g.Stop(context.Background(), "p1")

			var upstream *core.UpstreamError
			require.ErrorAs(t, err, &upstream)
			assert.Equal(t, tt.status, upstream.StatusCode)
			assert.Equal(t, tt.message, upstream.Message)
			assert.Equal(t, int32(1), calls.Load(), "gateway must not retry")
		})
	}
}

func TestNetworkFailureBecomesTransportError(t *testing.T) {
	opts := options.NewRunPodOptions()
	opts.BaseURL = "http://127.0.0.1:1"
	opts.APIKey = "k"
	opts.Timeout = time.Second

	_, err := NewRunPod(opts).List(context.Background(), core.ListOptions{})
	assert.True(t, core.IsTransport(err))
}
