package http

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/autopeer-io/botpod/internal/botpod/cache"
	"github.com/autopeer-io/botpod/internal/botpod/core"
	"github.com/autopeer-io/botpod/internal/botpod/core/model"
	"github.com/autopeer-io/botpod/internal/botpod/lifecycle"
	"github.com/autopeer-io/botpod/internal/botpod/registry"
)

// BotView is a bot together with its orchestrator state.
type BotView struct {
	model.Bot
	State   model.State   `json:"state"`
	Pending model.Pending `json:"pending"`
}

// BotViews projects pods into bot views, in input order.
func BotViews(reg *registry.Registry, orch *lifecycle.Orchestrator, pods []model.Pod) []BotView {
	bots := reg.Bots(pods)
	views := make([]BotView, 0, len(bots))
	for _, b := range bots {
		views = append(views, BotView{
			Bot:     b,
			State:   orch.State(b.PodID),
			Pending: orch.PendingFor(b.PodID),
		})
	}
	return views
}

type botHandler struct {
	cache    *cache.Cache
	registry *registry.Registry
	orch     *lifecycle.Orchestrator
}

// List handles GET /v1/bots
func (h *botHandler) List(w http.ResponseWriter, r *http.Request) {
	pods, err := h.cache.Pods(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, BotViews(h.registry, h.orch, pods))
}

// Get handles GET /v1/bots/{id}
func (h *botHandler) Get(w http.ResponseWriter, r *http.Request) {
	bot, err := h.bot(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, BotView{
		Bot:     bot,
		State:   h.orch.State(bot.PodID),
		Pending: h.orch.PendingFor(bot.PodID),
	})
}

// Wake handles POST /v1/bots/{id}/wake
func (h *botHandler) Wake(w http.ResponseWriter, r *http.Request) {
	if _, err := h.bot(r); err != nil {
		writeErr(w, err)
		return
	}
	runIntent(w, r, h.orch, h.orch.WakeUp)
}

// Shutdown handles POST /v1/bots/{id}/shutdown
func (h *botHandler) Shutdown(w http.ResponseWriter, r *http.Request) {
	if _, err := h.bot(r); err != nil {
		writeErr(w, err)
		return
	}
	runIntent(w, r, h.orch, h.orch.Shutdown)
}

func (h *botHandler) bot(r *http.Request) (model.Bot, error) {
	id := mux.Vars(r)["id"]

	pod, err := h.cache.Pod(r.Context(), id)
	if err != nil {
		return model.Bot{}, err
	}
	bot, ok := h.registry.Bot(pod)
	if !ok {
		return model.Bot{}, &core.NotFoundError{Kind: "bot", Key: id}
	}
	return bot, nil
}
