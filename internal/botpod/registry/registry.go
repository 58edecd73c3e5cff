// Package registry projects raw pods into conferencing bots.
package registry

import (
	"strings"

	"github.com/autopeer-io/botpod/internal/botpod/core"
	"github.com/autopeer-io/botpod/internal/botpod/core/model"
)

// DefaultPrefix marks pods that back conferencing bots.
const DefaultPrefix = "livekit_"

// Registry filters and projects pods by a fixed name prefix. It holds no state
// besides the prefix and is safe for concurrent use.
type Registry struct {
	prefix string
}

// New returns a Registry for prefix, or DefaultPrefix when empty.
func New(prefix string) *Registry {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Registry{prefix: prefix}
}

// Prefix returns the bot name prefix.
func (r *Registry) Prefix() string {
	return r.prefix
}

// Bots returns the bots among pods, in input order, with the prefix stripped.
func (r *Registry) Bots(pods []model.Pod) []model.Bot {
	bots := make([]model.Bot, 0, len(pods))
	for _, p := range pods {
		if !r.IsBot(p) {
			continue
		}
		bots = append(bots, r.project(p))
	}
	return bots
}

// Bot returns the bot view of a single pod, and false when the pod is not a bot.
func (r *Registry) Bot(p model.Pod) (model.Bot, bool) {
	if !r.IsBot(p) {
		return model.Bot{}, false
	}
	return r.project(p), true
}

// IsBot reports whether the pod's name carries the prefix.
func (r *Registry) IsBot(p model.Pod) bool {
	return strings.HasPrefix(p.Name, r.prefix)
}

// DisplayName strips the prefix from a pod name.
func (r *Registry) DisplayName(name string) string {
	return strings.TrimPrefix(name, r.prefix)
}

// NormalizeName adds the prefix to a bot name that lacks it.
func (r *Registry) NormalizeName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" || strings.HasPrefix(name, r.prefix) {
		return name
	}
	return r.prefix + name
}

// Resolve finds the pod of a bot by name, with or without the prefix.
func (r *Registry) Resolve(pods []model.Pod, name string) (model.Pod, error) {
	full := r.NormalizeName(name)
	for _, p := range pods {
		if p.Name == full {
			return p, nil
		}
	}
	return model.Pod{}, &core.NotFoundError{Kind: "bot", Key: name}
}

func (r *Registry) project(p model.Pod) model.Bot {
	status := p.DesiredStatus
	if status == "" {
		status = model.PodStatusTerminated
	}
	return model.Bot{
		PodID:  p.ID,
		Name:   r.DisplayName(p.Name),
		Status: status,
		Ready:  model.Ready(p),
	}
}
