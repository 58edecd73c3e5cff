package mqtt

import (
	"context"
	"time"

	"github.com/autopeer-io/botpod/internal/pkg/metrics"
	"github.com/autopeer-io/botpod/pkg/log"
	pkgmqtt "github.com/autopeer-io/botpod/pkg/mqtt"
)

const probeInterval = 5 * time.Second

// Server owns the MQTT connection shared by the intent notifier and the
// session event source.
type Server struct {
	client pkgmqtt.Client
}

// NewServer creates a new MQTT server (client).
func NewServer(client pkgmqtt.Client) *Server {
	return &Server{client: client}
}

// Start connects to the broker and keeps the connectivity gauge current
// until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	// 1. Start the connection manager (Non-blocking)
	if err := s.client.Start(ctx); err != nil {
		return err
	}

	// Ensure MQTT disconnects when Start exits
	defer func() {
		log.Info("Disconnecting MQTT client...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.client.Disconnect(shutdownCtx)
		metrics.MQTTConnectivityStatus.Set(0)
		log.Info("MQTT client disconnected")
	}()

	// 2. Wait for the initial connection to be established
	log.Info("Waiting for MQTT connection...")
	if err := s.client.AwaitConnection(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	log.Info("MQTT Connected")
	metrics.MQTTConnectivityStatus.Set(1)

	ticker := time.NewTicker(probeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if s.client.IsConnected() {
				metrics.MQTTConnectivityStatus.Set(1)
			} else {
				metrics.MQTTConnectivityStatus.Set(0)
			}
		}
	}
}
