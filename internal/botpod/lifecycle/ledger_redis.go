package lifecycle

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/autopeer-io/botpod/internal/botpod/core"
	"github.com/autopeer-io/botpod/internal/botpod/core/model"
	"github.com/autopeer-io/botpod/pkg/log"
)

var _ core.IntentLedger = (*RedisLedger)(nil)

// releaseScript deletes the key only if it still holds our token, so a
// release after TTL expiry never clears another replica's intent.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLedger shares pending intents between replicas. Each key expires after
// ttl so a replica that dies mid-call cannot block the pod forever.
type RedisLedger struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger log.Logger

	mu     sync.Mutex
	tokens map[ledgerKey]string
}

func NewRedisLedger(client *redis.Client, prefix string, ttl time.Duration) *RedisLedger {
	return &RedisLedger{
		client: client,
		prefix: prefix,
		ttl:    ttl,
		logger: log.WithName("ledger"),
		tokens: make(map[ledgerKey]string),
	}
}

func (l *RedisLedger) key(podID string, kind model.IntentKind) string {
	return fmt.Sprintf("%s:intent:%s:%s", l.prefix, podID, kind)
}

func (l *RedisLedger) Acquire(ctx context.Context, podID string, kind model.IntentKind) (bool, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key(podID, kind), token, l.ttl).Result()
	if err != nil {
		return false, &core.TransportError{Op: "intent ledger acquire", Err: err}
	}
	if !ok {
		return false, nil
	}

	l.mu.Lock()
	l.tokens[ledgerKey{podID: podID, kind: kind}] = token
	l.mu.Unlock()
	return true, nil
}

func (l *RedisLedger) Release(ctx context.Context, podID string, kind model.IntentKind) {
	k := ledgerKey{podID: podID, kind: kind}

	l.mu.Lock()
	token, ok := l.tokens[k]
	delete(l.tokens, k)
	l.mu.Unlock()
	if !ok {
		return
	}

	// The caller's context may already be done when the gateway call timed out.
	ctx = context.WithoutCancel(ctx)
	if err := releaseScript.Run(ctx, l.client, []string{l.key(podID, kind)}, token).Err(); err != nil {
		l.logger.Warn("Failed to release intent, it expires with its TTL", "podID", podID, "kind", kind, "error", err.Error())
	}
}

func (l *RedisLedger) Pending(ctx context.Context, podID string, kind model.IntentKind) bool {
	n, err := l.client.Exists(ctx, l.key(podID, kind)).Result()
	if err != nil {
		l.logger.Debug("Failed to read intent", "podID", podID, "kind", kind, "error", err.Error())
		return false
	}
	return n > 0
}
