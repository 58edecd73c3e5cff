package lifecycle

import (
	"context"
	"sync"

	"github.com/autopeer-io/botpod/internal/botpod/core"
	"github.com/autopeer-io/botpod/internal/botpod/core/model"
)

var _ core.IntentLedger = (*MemoryLedger)(nil)

type ledgerKey struct {
	podID string
	kind  model.IntentKind
}

// MemoryLedger tracks pending intents of a single process.
type MemoryLedger struct {
	mu      sync.Mutex
	pending map[ledgerKey]struct{}
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{pending: make(map[ledgerKey]struct{})}
}

func (l *MemoryLedger) Acquire(_ context.Context, podID string, kind model.IntentKind) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	k := ledgerKey{podID: podID, kind: kind}
	if _, ok := l.pending[k]; ok {
		return false, nil
	}
	l.pending[k] = struct{}{}
	return true, nil
}

func (l *MemoryLedger) Release(_ context.Context, podID string, kind model.IntentKind) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.pending, ledgerKey{podID: podID, kind: kind})
}

func (l *MemoryLedger) Pending(_ context.Context, podID string, kind model.IntentKind) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.pending[ledgerKey{podID: podID, kind: kind}]
	return ok
}
