package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/autopeer-io/botpod/internal/botpod/cache"
	"github.com/autopeer-io/botpod/internal/botpod/core"
	"github.com/autopeer-io/botpod/internal/botpod/core/model"
	"github.com/autopeer-io/botpod/internal/botpod/lifecycle"
)

type intentResponse struct {
	PodID   string            `json:"podId"`
	Outcome lifecycle.Outcome `json:"outcome"`
	State   model.State       `json:"state"`
}

type intentFunc func(ctx context.Context, podID string) (lifecycle.Outcome, error)

// podHandler proxies the pod-control API. Start and stop go through the orchestrator.
type podHandler struct {
	gw    core.Gateway
	cache *cache.Cache
	orch  *lifecycle.Orchestrator
}

// List handles GET /v1/pods
func (h *podHandler) List(w http.ResponseWriter, r *http.Request) {
	var (
		pods []model.Pod
		err  error
	)
	if computeType := r.URL.Query().Get("computeType"); computeType != "" {
		pods, err = h.gw.List(r.Context(), core.ListOptions{ComputeType: computeType})
	} else {
		pods, err = h.cache.Pods(r.Context())
	}
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pods)
}

// Get handles GET /v1/pods/{id}
func (h *podHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	opts, err := getOptions(r)
	if err != nil {
		writeErr(w, err)
		return
	}

	if opts == (core.GetOptions{}) {
		pod, err := h.cache.Pod(r.Context(), id)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, pod)
		return
	}

	pod, err := h.gw.Get(r.Context(), id, opts)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pod)
}

// Create handles POST /v1/pods
func (h *podHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req model.CreatePodRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, err)
		return
	}
	if req.Name == "" || req.TemplateID == "" {
		writeError(w, http.StatusBadRequest, "name and templateId are required")
		return
	}

	pod, err := h.gw.Create(r.Context(), &req)
	if err != nil {
		writeErr(w, err)
		return
	}

	h.cache.Invalidate(pod.ID)
	writeJSON(w, http.StatusCreated, pod)
}

// Start handles POST /v1/pods/{id}/start
func (h *podHandler) Start(w http.ResponseWriter, r *http.Request) {
	runIntent(w, r, h.orch, h.orch.WakeUp)
}

// Stop handles POST /v1/pods/{id}/stop
func (h *podHandler) Stop(w http.ResponseWriter, r *http.Request) {
	runIntent(w, r, h.orch, h.orch.Shutdown)
}

func runIntent(w http.ResponseWriter, r *http.Request, orch *lifecycle.Orchestrator, fn intentFunc) {
	id := mux.Vars(r)["id"]

	outcome, err := fn(r.Context(), id)
	if err != nil {
		writeErr(w, err)
		return
	}

	writeJSON(w, http.StatusOK, intentResponse{
		PodID:   id,
		Outcome: outcome,
		State:   orch.State(id),
	})
}

func getOptions(r *http.Request) (core.GetOptions, error) {
	var opts core.GetOptions
	q := r.URL.Query()

	for name, dst := range map[string]*bool{
		"includeMachine":       &opts.IncludeMachine,
		"includeNetworkVolume": &opts.IncludeNetworkVolume,
		"includeSavingsPlans":  &opts.IncludeSavingsPlans,
	} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return opts, errors.Join(core.ErrInvalidRequest, errors.New(name+" must be a boolean"))
		}
		*dst = v
	}
	return opts, nil
}
