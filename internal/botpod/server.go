// Package botpod wires the pod lifecycle orchestrator into a runnable server.
package botpod

import (
	"context"

	"github.com/redis/go-redis/v9"

	"github.com/autopeer-io/botpod/internal/botpod/lifecycle"
	"github.com/autopeer-io/botpod/internal/botpod/server"
	"github.com/autopeer-io/botpod/internal/botpod/session"
	"github.com/autopeer-io/botpod/pkg/log"
)

type BotpodServer struct {
	manager      *server.Manager
	orchestrator *lifecycle.Orchestrator
	sessions     *session.Coordinator
	redis        *redis.Client
}

// Run blocks until ctx is done or a server fails, then releases sessions,
// settle watches and the Redis connection.
func (s *BotpodServer) Run(ctx context.Context) error {
	defer s.close()

	log.Info("Starting botpod server")
	return s.manager.Start(ctx)
}

func (s *BotpodServer) close() {
	s.sessions.Close()
	s.orchestrator.Close()
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			log.Warn("Failed to close redis client", "error", err.Error())
		}
	}
	log.Info("Botpod server stopped")
}
