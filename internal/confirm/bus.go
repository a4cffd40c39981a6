package confirm

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/toolgate/toolgate/pkg/types"
)

// Bus routes confirmation responses to the caller waiting on a correlation
// id. It is a typed pub/sub: subscribers register per correlation id, so a
// response can never reach the wrong waiter and unsubscribing leaves nothing
// behind.
type Bus struct {
	mu      sync.RWMutex
	subs    map[string]map[chan types.ConfirmationResponse]struct{}
	dropped atomic.Int64
	logger  *slog.Logger
}

func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		subs:   make(map[string]map[chan types.ConfirmationResponse]struct{}),
		logger: logger,
	}
}

// Subscribe registers for responses with the given correlation id. The
// returned cancel func removes the subscription and closes the channel.
func (b *Bus) Subscribe(correlationID string) (<-chan types.ConfirmationResponse, func()) {
	ch := make(chan types.ConfirmationResponse, 1)

	b.mu.Lock()
	if _, ok := b.subs[correlationID]; !ok {
		b.subs[correlationID] = make(map[chan types.ConfirmationResponse]struct{})
	}
	b.subs[correlationID][ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if m, ok := b.subs[correlationID]; ok {
				delete(m, ch)
				if len(m) == 0 {
					delete(b.subs, correlationID)
				}
			}
			close(ch)
		})
	}
	return ch, cancel
}

// Publish delivers a response to the subscribers of its correlation id.
func (b *Bus) Publish(resp types.ConfirmationResponse) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs[resp.CorrelationID] {
		select {
		case ch <- resp:
		default:
			count := b.dropped.Add(1)
			b.logger.Warn("dropped confirmation response",
				"correlation_id", resp.CorrelationID, "total_dropped", count)
		}
	}
}
