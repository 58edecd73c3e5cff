package botpod

import (
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/autopeer-io/botpod/internal/botpod/cache"
	"github.com/autopeer-io/botpod/internal/botpod/core"
	"github.com/autopeer-io/botpod/internal/botpod/core/model"
	"github.com/autopeer-io/botpod/internal/botpod/gateway"
	"github.com/autopeer-io/botpod/internal/botpod/lifecycle"
	"github.com/autopeer-io/botpod/internal/botpod/notifier"
	"github.com/autopeer-io/botpod/internal/botpod/registry"
	"github.com/autopeer-io/botpod/internal/botpod/server"
	httpserver "github.com/autopeer-io/botpod/internal/botpod/server/http"
	mqttserver "github.com/autopeer-io/botpod/internal/botpod/server/mqtt"
	"github.com/autopeer-io/botpod/internal/botpod/server/ws"
	"github.com/autopeer-io/botpod/internal/botpod/session"
	"github.com/autopeer-io/botpod/pkg/mqtt/topic"
	"github.com/autopeer-io/botpod/pkg/options"
)

type Config struct {
	HttpOptions    *options.HttpOptions
	RunPodOptions  *options.RunPodOptions
	CacheOptions   *options.CacheOptions
	MqttOptions    *options.MqttOptions
	RedisOptions   *options.RedisOptions
	AuthOptions    *options.AuthOptions
	SessionOptions *options.SessionOptions
}

func (cfg *Config) NewBotpodServer() (*BotpodServer, error) {
	// 1. Remote control gateway
	gw := gateway.NewRunPod(cfg.RunPodOptions)

	// 2. Optional shared state: pod snapshot and intent ledger
	var (
		rdb    *redis.Client
		store  core.SnapshotStore
		ledger core.IntentLedger
	)
	if cfg.RedisOptions.Enabled() {
		var err error
		rdb, err = InitializeRedisClient(cfg.RedisOptions)
		if err != nil {
			return nil, fmt.Errorf("failed to init redis: %w", err)
		}
		store = cache.NewRedisStore(rdb, cfg.RedisOptions.KeyPrefix, cfg.RedisOptions.SnapshotTTL)
		ledger = lifecycle.NewRedisLedger(rdb, cfg.RedisOptions.KeyPrefix, cfg.RedisOptions.IntentTTL)
	}

	// 3. Pod status cache and bot registry
	podCache := cache.New(gw, cfg.CacheOptions, core.ListOptions{ComputeType: cfg.RunPodOptions.ComputeType}, store)
	reg := registry.New(cfg.SessionOptions.BotPrefix)

	var servers []server.Server
	servers = append(servers, podCache)

	// 4. Optional MQTT: intent notifications and session events
	var (
		intents core.Notifier
		events  core.EventSource
	)
	if cfg.MqttOptions.Enabled() {
		client, err := InitializeMQTTClient(cfg.MqttOptions)
		if err != nil {
			return nil, fmt.Errorf("failed to init mqtt client: %w", err)
		}
		topics := topic.NewTopicBuilder(cfg.MqttOptions.TopicRoot)
		intents = notifier.NewMQTTNotifier(client, topics)
		events = notifier.NewMQTTEventSource(client, topics)
		servers = append(servers, mqttserver.NewServer(client))
	}

	// 5. Lifecycle orchestrator
	orch := lifecycle.New(lifecycle.Config{
		Gateway:           gw,
		Cache:             podCache,
		Ledger:            ledger,
		Notifier:          intents,
		WatchLimit:        cfg.CacheOptions.WatchLimit,
		BestEffortTimeout: cfg.SessionOptions.ShutdownTimeout,
	})

	// 6. Live views and the session exit coordinator
	hub := ws.NewHub(podCache, func(pods []model.Pod) any {
		return httpserver.BotViews(reg, orch, pods)
	})
	sessions := session.New(orch, podCache, reg, events, hub, cfg.SessionOptions)
	servers = append(servers, hub)

	// 7. HTTP API
	router := httpserver.NewRouter(&httpserver.Container{
		Gateway:        gw,
		Cache:          podCache,
		Registry:       reg,
		Orchestrator:   orch,
		Sessions:       sessions,
		Hub:            hub,
		Auth:           httpserver.NewAuthenticator(cfg.AuthOptions),
		AllowedOrigins: cfg.HttpOptions.AllowedOrigins,
	})
	servers = append(servers, httpserver.NewServer(cfg.HttpOptions, router))

	return &BotpodServer{
		manager:      server.NewManager(servers...),
		orchestrator: orch,
		sessions:     sessions,
		redis:        rdb,
	}, nil
}
