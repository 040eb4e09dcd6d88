// Package poll provides a cancellation-scoped repeating probe against an
// eventually-consistent backend. One poller runs one concern; stopping the
// poller guarantees its success callback never fires afterwards.
package poll

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"crosspay.client/internal/metrics"
)

// Probe checks the external status source once. It returns found=true when
// the awaited condition holds. Errors are treated as transient: logged and
// retried on the next tick.
type Probe func(ctx context.Context) (found bool, err error)

// Options configure a poller.
type Options struct {
	// Key identifies the poller in logs and metrics, eg "find_source_payment:3f".
	Key string
	// Interval between probes. Slower external systems use a longer
	// interval to respect rate limits.
	Interval time.Duration
	Probe    Probe
	// OnFound runs exactly once, on the goroutine that ran the probe,
	// after a probe reports found and before the poller stops itself.
	OnFound func()
	// MaxFailures stops the poller and calls OnGiveUp after this many
	// consecutive probe errors. Zero means retry forever.
	MaxFailures int
	OnGiveUp    func(err error)
	Log         *zap.Logger
}

// Handle stops a running poller.
type Handle struct {
	cancel context.CancelFunc

	mu      sync.Mutex
	stopped bool
}

// Stop cancels the poller. After Stop returns, no further probe is issued
// and OnFound will not be invoked, even if a probe is mid-flight.
func (h *Handle) Stop() {
	h.mu.Lock()
	h.stopped = true
	h.mu.Unlock()
	h.cancel()
}

// claim transitions the handle to stopped and reports whether the caller
// won the transition. OnFound and Stop race through this mutex, so at most
// one of "callback fires" and "stop precedes callback" is observed.
func (h *Handle) claim() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopped {
		return false
	}
	h.stopped = true
	return true
}

// Start begins polling immediately and then on every interval tick. At most
// one probe is in flight per poller: the next probe is scheduled only after
// the previous one resolves, so network latency above the interval never
// causes overlapping requests.
func Start(ctx context.Context, opts Options) *Handle {
	ctx, cancel := context.WithCancel(ctx)
	h := &Handle{cancel: cancel}
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(zap.String("poller", opts.Key))

	go func() {
		defer cancel()
		failures := 0
		timer := time.NewTimer(0)
		defer timer.Stop()

		for {
			select {
			case <-ctx.Done():
				log.Debug("poller stopped")
				return
			case <-timer.C:
			}

			metrics.PollProbes.WithLabelValues(opts.Key).Inc()
			found, err := opts.Probe(ctx)
			switch {
			case ctx.Err() != nil:
				log.Debug("poller stopped during probe")
				return
			case err != nil:
				metrics.PollProbeErrors.WithLabelValues(opts.Key).Inc()
				failures++
				log.Warn("probe failed, retrying",
					zap.Error(err), zap.Int("consecutive_failures", failures))
				if opts.MaxFailures > 0 && failures >= opts.MaxFailures {
					if h.claim() && opts.OnGiveUp != nil {
						opts.OnGiveUp(err)
					}
					return
				}
			case found:
				if h.claim() {
					log.Debug("probe found result")
					if opts.OnFound != nil {
						opts.OnFound()
					}
				}
				return
			default:
				failures = 0
			}

			timer.Reset(opts.Interval)
		}
	}()

	return h
}
