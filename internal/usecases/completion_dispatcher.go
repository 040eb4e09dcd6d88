package usecases

import (
	"sync"

	"go.uber.org/zap"

	"crosspay.client/internal/domain/entities"
	"crosspay.client/internal/metrics"
)

// CompletionKey identifies one logical completion event. Two observations of
// the same (kind, txHash, orderId) triple are the same event.
type CompletionKey struct {
	Kind    entities.EventType
	TxHash  string
	OrderID entities.OrderID
}

// CompletionDispatcher guarantees each completion callback fires at most
// once per key for the lifetime of the dispatcher instance, no matter how
// many times the surrounding reactive logic re-evaluates.
type CompletionDispatcher struct {
	mu         sync.Mutex
	dispatched map[CompletionKey]struct{}
	log        *zap.Logger
}

// NewCompletionDispatcher creates a new completion dispatcher
func NewCompletionDispatcher(log *zap.Logger) *CompletionDispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &CompletionDispatcher{
		dispatched: make(map[CompletionKey]struct{}),
		log:        log,
	}
}

// TryDispatch runs action unless the key was already dispatched. The key is
// recorded under the same lock as the check, before action runs, so two
// near-simultaneous evaluations cannot both see "not yet dispatched". A
// panicking action keeps its key recorded: this is a fire-once notification,
// not a durable delivery guarantee, and retries belong to the consumer's own
// delivery queue.
func (d *CompletionDispatcher) TryDispatch(key CompletionKey, action func()) bool {
	d.mu.Lock()
	if _, ok := d.dispatched[key]; ok {
		d.mu.Unlock()
		metrics.DispatchSuppressed.Inc()
		return false
	}
	d.dispatched[key] = struct{}{}
	d.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			d.log.Error("completion callback panicked",
				zap.String("kind", string(key.Kind)),
				zap.String("tx_hash", key.TxHash),
				zap.String("order_id", key.OrderID.String()),
				zap.Any("panic", r))
		}
	}()
	action()
	return true
}
