package server

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/autopeer-io/botpod/pkg/log"
)

// Server defines the common interface for all sub-servers (http, mqtt, cache, hub).
type Server interface {
	Start(ctx context.Context) error
}

// Manager manages the lifecycle of all long-running servers.
type Manager struct {
	servers []Server
}

// NewManager creates a new server manager.
func NewManager(servers ...Server) *Manager {
	return &Manager{servers: servers}
}

// Start launches all servers in parallel and waits for termination. The
// first failing server stops the others.
func (m *Manager) Start(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	for _, srv := range m.servers {
		g.Go(func() error {
			return srv.Start(ctx)
		})
	}

	log.Info("All servers starting...", "count", len(m.servers))
	return g.Wait()
}
