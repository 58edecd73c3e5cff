package http

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autopeer-io/botpod/internal/botpod/cache"
	"github.com/autopeer-io/botpod/internal/botpod/core"
	"github.com/autopeer-io/botpod/internal/botpod/core/model"
	"github.com/autopeer-io/botpod/internal/botpod/lifecycle"
	"github.com/autopeer-io/botpod/internal/botpod/registry"
	"github.com/autopeer-io/botpod/internal/botpod/server/ws"
	"github.com/autopeer-io/botpod/internal/botpod/session"
	"github.com/autopeer-io/botpod/pkg/options"
)

const startedAt = "2026-01-01T00:00:00Z"

type fakeGateway struct {
	mu   sync.Mutex
	pods map[string]model.Pod

	starts  atomic.Int32
	stops   atomic.Int32
	creates atomic.Int32
}

func newFakeGateway(pods ...model.Pod) *fakeGateway {
	g := &fakeGateway{pods: make(map[string]model.Pod)}
	for _, p := range pods {
		g.pods[p.ID] = p
	}
	return g
}

func (g *fakeGateway) List(_ context.Context, opts core.ListOptions) ([]model.Pod, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]model.Pod, 0, len(g.pods))
	for _, p := range g.pods {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (g *fakeGateway) Get(_ context.Context, id string, _ core.GetOptions) (*model.Pod, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	p, ok := g.pods[id]
	if !ok {
		return nil, &core.UpstreamError{StatusCode: http.StatusNotFound, Message: "pod not found"}
	}
	return &p, nil
}

func (g *fakeGateway) Create(_ context.Context, req *model.CreatePodRequest) (*model.Pod, error) {
	n := g.creates.Add(1)
	p := model.Pod{
		ID:            fmt.Sprintf("new-%d", n),
		Name:          req.Name,
		DesiredStatus: model.PodStatusRunning,
		TemplateID:    req.TemplateID,
	}
	g.mu.Lock()
	g.pods[p.ID] = p
	g.mu.Unlock()
	return &p, nil
}

func (g *fakeGateway) Start(_ context.Context, id string) (*model.Ack, error) {
	g.starts.Add(1)
	return g.setStatus(id, model.PodStatusRunning, startedAt)
}

func (g *fakeGateway) Stop(_ context.Context, id string) (*model.Ack, error) {
	g.stops.Add(1)
	return g.setStatus(id, model.PodStatusExited, "")
}

func (g *fakeGateway) setStatus(id string, status model.PodStatus, started string) (*model.Ack, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	p, ok := g.pods[id]
	if !ok {
		return nil, &core.UpstreamError{StatusCode: http.StatusNotFound, Message: "pod not found"}
	}
	p.DesiredStatus = status
	p.LastStartedAt = started
	g.pods[id] = p
	return &model.Ack{ID: id}, nil
}

type testEnv struct {
	gw       *fakeGateway
	cache    *cache.Cache
	orch     *lifecycle.Orchestrator
	sessions *session.Coordinator
	hub      *ws.Hub
	handler  http.Handler
}

func newTestEnv(t *testing.T, authOpts *options.AuthOptions) *testEnv {
	t.Helper()

	gw := newFakeGateway(
		model.Pod{ID: "p1", Name: "livekit_alpha", DesiredStatus: model.PodStatusExited},
		model.Pod{ID: "p2", Name: "livekit_beta", DesiredStatus: model.PodStatusRunning, LastStartedAt: startedAt},
		model.Pod{ID: "p3", Name: "worker", DesiredStatus: model.PodStatusRunning, LastStartedAt: startedAt},
	)

	c := cache.New(gw, &options.CacheOptions{
		ListInterval:  time.Hour,
		WatchInterval: time.Hour,
		WatchLimit:    time.Minute,
	}, core.ListOptions{}, nil)
	reg := registry.New("livekit_")
	orch := lifecycle.New(lifecycle.Config{Gateway: gw, Cache: c})

	hub := ws.NewHub(c, func(pods []model.Pod) any { return BotViews(reg, orch, pods) })

	sessionOpts := options.NewSessionOptions()
	sessionOpts.NavigationDelay = 10 * time.Millisecond
	sessions := session.New(orch, c, reg, nil, hub, sessionOpts)

	if authOpts == nil {
		authOpts = options.NewAuthOptions()
	} else {
		authOpts.Complete()
	}

	t.Cleanup(func() {
		sessions.Close()
		orch.Close()
	})

	return &testEnv{
		gw:       gw,
		cache:    c,
		orch:     orch,
		sessions: sessions,
		hub:      hub,
		handler: NewRouter(&Container{
			Gateway:      gw,
			Cache:        c,
			Registry:     reg,
			Orchestrator: orch,
			Sessions:     sessions,
			Hub:          hub,
			Auth:         NewAuthenticator(authOpts),
		}),
	}
}

func (e *testEnv) do(t *testing.T, method, path, contentType, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealthAndReadiness(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, "GET", "/healthz", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, "GET", "/readyz", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	_, err := env.cache.Pods(context.Background())
	require.NoError(t, err)

	rec = env.do(t, "GET", "/readyz", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode[readiness](t, rec).Status)

	rec = env.do(t, "GET", "/metrics", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestListBots(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, "GET", "/v1/bots", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	bots := decode[[]BotView](t, rec)
	require.Len(t, bots, 2)
	assert.Equal(t, "alpha", bots[0].Name)
	assert.Equal(t, model.StateStopped, bots[0].State)
	assert.Equal(t, "beta", bots[1].Name)
	assert.Equal(t, model.StateReady, bots[1].State)
	assert.True(t, bots[1].Ready)
}

func TestWakeBot(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, "POST", "/v1/bots/p1/wake", "", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decode[intentResponse](t, rec)
	assert.Equal(t, "p1", resp.PodID)
	assert.Equal(t, lifecycle.OutcomeDispatched, resp.Outcome)
	assert.Equal(t, int32(1), env.gw.starts.Load())

	require.Eventually(t, func() bool {
		pod, fresh, ok := env.cache.Lookup("p1")
		return ok && fresh && model.Ready(pod)
	}, 2*time.Second, 10*time.Millisecond)

	rec = env.do(t, "GET", "/v1/bots/p1", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.StateReady, decode[BotView](t, rec).State)
}

func TestWakeNonBotIsNotFound(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, "POST", "/v1/bots/p3/wake", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, int32(0), env.gw.starts.Load())
}

func TestPodProxy(t *testing.T) {
	env := newTestEnv(t, nil)

	t.Run("list", func(t *testing.T) {
		rec := env.do(t, "GET", "/v1/pods", "", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, decode[[]model.Pod](t, rec), 3)
	})

	t.Run("upstream error", func(t *testing.T) {
		rec := env.do(t, "GET", "/v1/pods/missing", "", "")
		require.Equal(t, http.StatusBadGateway, rec.Code)

		resp := decode[errorResponse](t, rec)
		assert.Equal(t, http.StatusNotFound, resp.UpstreamStatus)
		assert.Equal(t, "pod not found", resp.Error)
	})

	t.Run("bad include flag", func(t *testing.T) {
		rec := env.do(t, "GET", "/v1/pods/p1?includeMachine=maybe", "", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("create requires name and template", func(t *testing.T) {
		rec := env.do(t, "POST", "/v1/pods", "application/json", `{"name":"livekit_gamma"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, int32(0), env.gw.creates.Load())
	})

	t.Run("create", func(t *testing.T) {
		rec := env.do(t, "POST", "/v1/pods", "application/json", `{"name":"livekit_gamma","templateId":"tpl"}`)
		require.Equal(t, http.StatusCreated, rec.Code)
		assert.Equal(t, "livekit_gamma", decode[model.Pod](t, rec).Name)
	})

	t.Run("stop", func(t *testing.T) {
		rec := env.do(t, "POST", "/v1/pods/p2/stop", "", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, lifecycle.OutcomeDispatched, decode[intentResponse](t, rec).Outcome)
		assert.Equal(t, int32(1), env.gw.stops.Load())
	})
}

func TestSessionLeaveStopsPodOnce(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, "POST", "/v1/sessions", "application/json", `{"botName":"beta","room":"r1"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	s := decode[model.Session](t, rec)
	assert.Equal(t, "p2", s.PodID)

	rec = env.do(t, "POST", "/v1/sessions/"+s.ID+"/leave", "", "")
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, model.ExitManual, decode[model.Session](t, rec).ExitCause)

	rec = env.do(t, "POST", "/v1/sessions/"+s.ID+"/disconnected", "", "")
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, model.ExitManual, decode[model.Session](t, rec).ExitCause)

	assert.Equal(t, int32(1), env.gw.stops.Load())

	rec = env.do(t, "GET", "/v1/sessions/unknown", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUnloadBeacon(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, "POST", "/v1/shutdown-bot", "text/plain", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, "POST", "/v1/shutdown-bot", "application/json", `{"botName":"nobody"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, "POST", "/v1/shutdown-bot", "text/plain;charset=UTF-8", "beta")
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "p2", decode[unloadResponse](t, rec).PodID)

	require.Eventually(t, func() bool {
		return env.gw.stops.Load() == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestLoginGate(t *testing.T) {
	authOpts := options.NewAuthOptions()
	authOpts.Password = "s3cret"
	env := newTestEnv(t, authOpts)

	rec := env.do(t, "GET", "/v1/bots", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, "POST", "/v1/auth/login", "application/json", `{"password":"wrong"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, "POST", "/v1/auth/login", "application/json", `{"password":"s3cret"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "auth-token", cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
	assert.Equal(t, http.SameSiteStrictMode, cookies[0].SameSite)

	rec = env.do(t, "GET", "/v1/bots", "", "", cookies[0])
	assert.Equal(t, http.StatusOK, rec.Code)

	req := httptest.NewRequest("GET", "/v1/bots", nil)
	req.Header.Set("Authorization", "Bearer "+cookies[0].Value)
	rec = httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, "GET", "/v1/bots", "", "", &http.Cookie{Name: "auth-token", Value: "forged"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// The beacon and the probes stay public.
	rec = env.do(t, "POST", "/v1/shutdown-bot", "text/plain", "alpha")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	rec = env.do(t, "GET", "/healthz", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, "POST", "/v1/auth/logout", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	cookies = rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Less(t, cookies[0].MaxAge, 0)
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t, nil)

	req := httptest.NewRequest("OPTIONS", "/v1/bots", nil)
	req.Header.Set("Origin", "https://app.example.com")
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
}

func TestSessionViewIsNavigatedAfterLeave(t *testing.T) {
	env := newTestEnv(t, nil)
	srv := httptest.NewServer(env.handler)
	defer srv.Close()

	s, err := env.sessions.Open(context.Background(), session.Binding{PodID: "p2"})
	require.NoError(t, err)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/ws/sessions/" + s.ID
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool {
		_, sessions := env.hub.Clients()
		return sessions == 1
	}, 2*time.Second, 10*time.Millisecond)

	resp, err := http.Post(srv.URL+"/v1/sessions/"+s.ID+"/leave", "application/json", nil)
	require.NoError(t, err)
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg ws.Message
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, ws.MsgNavigate, msg.Type)

	var nav ws.NavigatePayload
	require.NoError(t, json.Unmarshal(msg.Payload, &nav))
	assert.Equal(t, "/", nav.Target)
}

func TestSessionViewOfUnknownSession(t *testing.T) {
	env := newTestEnv(t, nil)
	srv := httptest.NewServer(env.handler)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/ws/sessions/nope"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
