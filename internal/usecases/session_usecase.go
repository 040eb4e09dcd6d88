package usecases

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"
	"go.uber.org/zap"

	"crosspay.client/internal/config"
	"crosspay.client/internal/domain/entities"
	domainerrors "crosspay.client/internal/domain/errors"
	"crosspay.client/internal/domain/gateways"
	"crosspay.client/internal/metrics"
	"crosspay.client/pkg/poll"
)

// SessionState is the lifecycle of one checkout session.
type SessionState string

const (
	SessionStateIdle       SessionState = "idle"
	SessionStatePreview    SessionState = "preview"
	SessionStateUnhydrated SessionState = "unhydrated"
	SessionStateUnpaid     SessionState = "payment_unpaid"
	SessionStateStarted    SessionState = "payment_started"
	SessionStateCompleted  SessionState = "payment_completed"
	SessionStateBounced    SessionState = "payment_bounced"
	SessionStateError      SessionState = "error"
)

// Terminal reports whether the session can only be left via Reset.
func (s SessionState) Terminal() bool {
	return s == SessionStateCompleted || s == SessionStateBounced || s == SessionStateError
}

// SessionCallbacks are the host application's payment event handlers.
// Emission cardinality is enforced by the completion dispatcher: each
// callback fires at most once per (kind, txHash, orderId).
type SessionCallbacks struct {
	OnPaymentStarted   func(entities.PaymentEvent)
	OnPaymentCompleted func(entities.PaymentEvent)
	OnPaymentBounced   func(entities.PaymentEvent)
	OnPaymentRefunded  func(entities.PaymentEvent)
}

// Poller keys, one per concern.
const (
	pollerSourcePayment = "find_source_payment"
	pollerPayoutStatus  = "payout_status"
	pollerOrderRefresh  = "refresh_order"
)

// PaymentSession owns the order reference for the duration of one checkout.
// All mutations go through its status-transition methods; nothing else
// mutates the order. Status transitions applied from polling are monotone:
// a refresh can never move a leg backwards or regress the intent status.
type PaymentSession struct {
	ID string

	svc        gateways.OrderService
	cfg        config.PollingConfig
	log        *zap.Logger
	dispatcher *CompletionDispatcher
	callbacks  SessionCallbacks

	mu             sync.Mutex
	state          SessionState
	order          *entities.PaymentOrder
	errMessage     string
	payParams      *gateways.PayParams
	depositFlow    bool
	pollers        map[string]*poll.Handle
	stateListeners []func(prev, next SessionState)
}

// NewPaymentSession creates a session bound to an order service.
func NewPaymentSession(svc gateways.OrderService, cfg config.PollingConfig, log *zap.Logger, callbacks SessionCallbacks) *PaymentSession {
	if log == nil {
		log = zap.NewNop()
	}
	id := uuid.NewString()
	return &PaymentSession{
		ID:         id,
		svc:        svc,
		cfg:        cfg,
		log:        log.With(zap.String("session_id", id)),
		dispatcher: NewCompletionDispatcher(log),
		callbacks:  callbacks,
		state:      SessionStateIdle,
		pollers:    make(map[string]*poll.Handle),
	}
}

// AddStateListener registers a listener invoked after every state change.
func (s *PaymentSession) AddStateListener(fn func(prev, next SessionState)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stateListeners = append(s.stateListeners, fn)
}

// State returns the current session state.
func (s *PaymentSession) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Order returns the session's order, nil before one is loaded.
func (s *PaymentSession) Order() *entities.PaymentOrder {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.order
}

// ErrorMessage returns the captured message when the session is in the
// error state.
func (s *PaymentSession) ErrorMessage() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errMessage
}

// IsDepositFlow reports whether the user chooses the amount (no fixed
// toUnits in the pay params).
func (s *PaymentSession) IsDepositFlow() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.depositFlow
}

// SetPayParams resets the session and creates a preview order.
func (s *PaymentSession) SetPayParams(ctx context.Context, params gateways.PayParams) error {
	if params.AppID == "" {
		return domainerrors.Validation("pay params: appId required")
	}
	s.Reset()

	order, err := s.svc.PreviewOrder(ctx, params)
	if err != nil {
		s.fail(fmt.Sprintf("preview order: %v", err))
		return err
	}

	s.mu.Lock()
	s.payParams = &params
	s.depositFlow = !params.ToUnits.Valid
	s.order = order
	s.mu.Unlock()
	s.setState(SessionStatePreview)
	return nil
}

// SetPayID resets the session and loads an existing order by its displayed
// (base58) id. Orders that are already partially or fully processed land
// directly in the matching state.
func (s *PaymentSession) SetPayID(ctx context.Context, payID string) error {
	id, err := entities.ParseOrderID(payID)
	if err != nil {
		return domainerrors.Validation(err.Error())
	}

	s.mu.Lock()
	if s.order != nil && s.order.ID == id {
		s.mu.Unlock()
		return nil // already loaded
	}
	s.mu.Unlock()
	s.Reset()

	order, err := s.svc.GetOrder(ctx, id)
	if err != nil {
		s.fail(fmt.Sprintf("load order %s: %v", payID, err))
		return err
	}

	next, err := stateForOrder(order)
	if err != nil {
		s.fail(err.Error())
		return err
	}

	s.mu.Lock()
	s.order = order
	s.depositFlow = false
	s.mu.Unlock()
	s.setState(next)
	s.emitForOrder(order)
	return nil
}

// stateForOrder maps a freshly loaded order onto a session state. An order
// reported as started/completed/bounced but not hydrated is a server data
// integrity violation.
func stateForOrder(order *entities.PaymentOrder) (SessionState, error) {
	if order.IntentStatus != entities.IntentStatusUnpaid && !order.IsHydrated() {
		return SessionStateError, domainerrors.Integrity(fmt.Sprintf(
			"order %s is %s but not hydrated", order.ID, order.IntentStatus))
	}
	switch order.IntentStatus {
	case entities.IntentStatusCompleted:
		return SessionStateCompleted, nil
	case entities.IntentStatusBounced:
		return SessionStateBounced, nil
	case entities.IntentStatusStarted:
		return SessionStateStarted, nil
	default:
		if order.IsHydrated() {
			return SessionStateUnpaid, nil
		}
		return SessionStateUnhydrated, nil
	}
}

// SetChosenUsd edits the preview order's destination amount in memory.
// Regenerating the preview on the server for every keystroke is too
// expensive; the real amounts are fixed at hydration.
func (s *PaymentSession) SetChosenUsd(usd float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != SessionStatePreview {
		return domainerrors.Validation(fmt.Sprintf("cannot set amount in state %s", s.state))
	}
	s.order.DestTokenAmount = entities.TokenAmountFromUsd(s.order.DestTokenAmount.Token, usd)
	return nil
}

// RegeneratePreview discards the current preview and recomputes it from the
// stored pay params. Back-navigation from a waiting state in deposit mode
// uses this: the previously computed preview may be stale.
func (s *PaymentSession) RegeneratePreview(ctx context.Context) error {
	s.mu.Lock()
	params := s.payParams
	s.mu.Unlock()
	if params == nil {
		return domainerrors.Validation("no pay params to regenerate preview from")
	}

	s.stopPollers()
	order, err := s.svc.PreviewOrder(ctx, *params)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.order = order
	s.mu.Unlock()
	s.setState(SessionStatePreview)
	return nil
}

// Hydrate finalizes the order for the selected rail. After hydration the
// order parameters are immutable; only status fields advance.
func (s *PaymentSession) Hydrate(ctx context.Context, refundAddress, externalOption null.String) (*gateways.HydrateResult, error) {
	s.mu.Lock()
	if s.order == nil {
		s.mu.Unlock()
		return nil, domainerrors.Validation("no order to hydrate")
	}
	if s.state == SessionStateUnpaid {
		// Already hydrated, eg the user re-entered a pay page.
		res := &gateways.HydrateResult{Order: s.order}
		s.mu.Unlock()
		return res, nil
	}
	if s.state != SessionStatePreview && s.state != SessionStateUnhydrated {
		state := s.state
		s.mu.Unlock()
		return nil, domainerrors.Validation(fmt.Sprintf("cannot hydrate in state %s", state))
	}
	input := gateways.HydrateInput{
		OrderID:               s.order.ID,
		RefundAddress:         refundAddress,
		ExternalPaymentOption: externalOption,
	}
	if !input.RefundAddress.Valid {
		input.RefundAddress = s.order.RefundAddress
	}
	s.mu.Unlock()

	res, err := s.svc.CreateOrHydrate(ctx, input)
	if err != nil {
		s.fail(fmt.Sprintf("hydrate order: %v", err))
		return nil, err
	}
	if !res.Order.IsHydrated() {
		err := domainerrors.Integrity(fmt.Sprintf("order %s not hydrated after hydration call", res.Order.ID))
		s.fail(err.Error())
		return nil, err
	}

	s.mu.Lock()
	s.order = res.Order
	s.mu.Unlock()
	s.setState(SessionStateUnpaid)
	return res, nil
}

// ReportSourcePayment verifies a wallet-submitted source transaction with
// the order service and applies the refreshed order.
func (s *PaymentSession) ReportSourcePayment(ctx context.Context, report gateways.SourcePaymentReport) error {
	order, err := s.svc.ProcessSourcePayment(ctx, report)
	if err != nil {
		return domainerrors.Transient(fmt.Sprintf("could not verify payment tx %s on chain", report.TxHash), err)
	}
	s.ApplyOrder(order)
	return nil
}

// StartSourcePoll watches for a detected source payment on the given
// interval until found or cancelled. Entering a waiting state starts this;
// leaving it stops it.
func (s *PaymentSession) StartSourcePoll(ctx context.Context, interval time.Duration) {
	s.mu.Lock()
	if s.order == nil || s.state.Terminal() {
		s.mu.Unlock()
		return
	}
	orderID := s.order.ID
	s.mu.Unlock()

	s.startPoller(ctx, pollerSourcePayment, poll.Options{
		Key:      fmt.Sprintf("%s:%s", pollerSourcePayment, orderID),
		Interval: interval,
		Probe: func(ctx context.Context) (bool, error) {
			payment, err := s.svc.FindSourcePayment(ctx, orderID)
			if err != nil {
				// The order is not persisted server-side until hydration,
				// so not-found means no payment yet, not a probe failure.
				if errors.Is(err, domainerrors.ErrNotFound) {
					return false, nil
				}
				return false, err
			}
			if payment == nil {
				return false, nil
			}
			// Refresh the order so the detected payment's linkage and
			// statuses come from the service, not local guesses.
			order, err := s.svc.GetOrder(ctx, orderID)
			if err != nil {
				return false, err
			}
			s.ApplyOrder(order)
			return true, nil
		},
		OnFound: func() {
			s.StartRefreshPoll(ctx)
		},
		MaxFailures: s.cfg.MaxFailures,
		OnGiveUp: func(err error) {
			s.fail(fmt.Sprintf("source payment detection failed: %v", err))
		},
		Log: s.log,
	})
}

// StartPayoutPoll watches an external rail's payout until a destination
// transaction appears. Exchange backends rate-limit aggressively, so this
// runs on the slower exchange interval.
func (s *PaymentSession) StartPayoutPoll(ctx context.Context, interval time.Duration) {
	s.mu.Lock()
	if s.order == nil || s.state.Terminal() {
		s.mu.Unlock()
		return
	}
	orderID := s.order.ID
	s.mu.Unlock()

	s.startPoller(ctx, pollerPayoutStatus, poll.Options{
		Key:      fmt.Sprintf("%s:%s", pollerPayoutStatus, orderID),
		Interval: interval,
		Probe: func(ctx context.Context) (bool, error) {
			status, err := s.svc.GetPayoutStatus(ctx, orderID.String())
			if err != nil {
				// No payout record yet.
				if errors.Is(err, domainerrors.ErrNotFound) {
					return false, nil
				}
				return false, err
			}
			if !status.PayoutTransactionHash.Valid {
				return false, nil
			}
			order, err := s.svc.GetOrder(ctx, orderID)
			if err != nil {
				return false, err
			}
			s.ApplyOrder(order)
			return true, nil
		},
		OnFound: func() {
			s.StartRefreshPoll(ctx)
		},
		MaxFailures: s.cfg.MaxFailures,
		OnGiveUp: func(err error) {
			s.fail(fmt.Sprintf("payout detection failed: %v", err))
		},
		Log: s.log,
	})
}

// StartRefreshPoll refreshes the order until the intent status is terminal.
func (s *PaymentSession) StartRefreshPoll(ctx context.Context) {
	s.mu.Lock()
	if s.order == nil || s.state.Terminal() {
		s.mu.Unlock()
		return
	}
	orderID := s.order.ID
	s.mu.Unlock()

	s.startPoller(ctx, pollerOrderRefresh, poll.Options{
		Key:      fmt.Sprintf("%s:%s", pollerOrderRefresh, orderID),
		Interval: s.cfg.OrderRefreshInterval,
		Probe: func(ctx context.Context) (bool, error) {
			order, err := s.svc.GetOrder(ctx, orderID)
			if err != nil {
				return false, err
			}
			s.ApplyOrder(order)
			return s.State().Terminal(), nil
		},
		OnFound:     func() {},
		MaxFailures: s.cfg.MaxFailures,
		OnGiveUp: func(err error) {
			s.fail(fmt.Sprintf("order refresh failed: %v", err))
		},
		Log: s.log,
	})
}

// ApplyOrder merges a refreshed order into the session. Leg statuses only
// advance; the intent status is re-derived from the merged legs, so arrival
// order of source and destination updates does not matter.
func (s *PaymentSession) ApplyOrder(next *entities.PaymentOrder) {
	s.mu.Lock()
	if s.order == nil || s.order.ID != next.ID || s.state.Terminal() {
		// A refresh for a previous order arriving late is discarded.
		s.mu.Unlock()
		return
	}

	merged := mergeOrder(s.order, next)
	s.order = merged

	nextState, err := stateForOrder(merged)
	s.mu.Unlock()
	if err != nil {
		s.fail(err.Error())
		return
	}
	if nextState == SessionStateUnhydrated && s.State() != SessionStateIdle {
		// Don't regress preview/unpaid to unhydrated on a refresh.
		s.emitForOrder(merged)
		return
	}
	s.setState(nextState)
	s.emitForOrder(merged)
}

// mergeOrder applies next over cur without letting any leg move backwards.
func mergeOrder(cur, next *entities.PaymentOrder) *entities.PaymentOrder {
	if !next.IsHydrated() {
		if cur.IsHydrated() {
			return cur
		}
		out := *next
		return &out
	}
	out := *next
	if cur.IsHydrated() {
		h := *next.Hydrated
		if cur.Hydrated.SourceStatus.Rank() > h.SourceStatus.Rank() {
			h.SourceStatus = cur.Hydrated.SourceStatus
		}
		if cur.Hydrated.DestStatus.Rank() > h.DestStatus.Rank() {
			h.DestStatus = cur.Hydrated.DestStatus
		}
		h.Bounced = h.Bounced || cur.Hydrated.Bounced
		if !h.SourceInitiateTxHash.Valid {
			h.SourceInitiateTxHash = cur.Hydrated.SourceInitiateTxHash
		}
		if !h.RefundTxHash.Valid {
			h.RefundTxHash = cur.Hydrated.RefundTxHash
		}
		out.Hydrated = &h
	}
	out.IntentStatus = entities.DeriveIntentStatus(
		out.Hydrated.SourceStatus, out.Hydrated.DestStatus, out.Hydrated.Bounced)
	// Derivation is monotone, but guard against a stale snapshot with
	// lower-ranked legs anyway.
	if cur.IntentStatus.Rank() > out.IntentStatus.Rank() {
		out.IntentStatus = cur.IntentStatus
	}
	return &out
}

// emitForOrder fires host callbacks for the order's observed progress.
// The dispatcher deduplicates re-evaluations.
func (s *PaymentSession) emitForOrder(order *entities.PaymentOrder) {
	if !order.IsHydrated() {
		return
	}
	h := order.Hydrated

	if h.SourceInitiateTxHash.Valid && order.IntentStatus.Rank() >= entities.IntentStatusStarted.Rank() {
		chainID := order.DestChainID()
		if src, ok := order.SourceChainID(); ok {
			chainID = src
		}
		s.emit(entities.EventPaymentStarted, order, chainID, h.SourceInitiateTxHash.String, s.callbacks.OnPaymentStarted)
	}

	completionHash := s.completionTxHash(order)
	if !completionHash.Valid {
		return
	}
	switch order.IntentStatus {
	case entities.IntentStatusCompleted:
		s.emit(entities.EventPaymentCompleted, order, order.DestChainID(), completionHash.String, s.callbacks.OnPaymentCompleted)
	case entities.IntentStatusBounced:
		s.emit(entities.EventPaymentBounced, order, order.DestChainID(), completionHash.String, s.callbacks.OnPaymentBounced)
		if h.RefundTxHash.Valid {
			// The refund lands on the chain the user paid from.
			chainID := order.DestChainID()
			if src, ok := order.SourceChainID(); ok {
				chainID = src
			}
			s.emit(entities.EventPaymentRefunded, order, chainID, h.RefundTxHash.String, s.callbacks.OnPaymentRefunded)
		}
	}
}

// completionTxHash returns the hash that completes the order: the
// destination payout, or the source tx itself for pass-through tokens.
func (s *PaymentSession) completionTxHash(order *entities.PaymentOrder) null.String {
	if order.Hydrated == nil {
		return null.String{}
	}
	if order.Hydrated.PassThrough {
		return order.Hydrated.SourceInitiateTxHash
	}
	return order.DestTxHash()
}

func (s *PaymentSession) emit(kind entities.EventType, order *entities.PaymentOrder, chainID int64, txHash string, handler func(entities.PaymentEvent)) {
	if handler == nil {
		return
	}
	key := CompletionKey{Kind: kind, TxHash: txHash, OrderID: order.ID}
	s.dispatcher.TryDispatch(key, func() {
		view, err := order.View()
		if err != nil {
			// Server data integrity violation: report, never default.
			s.log.Error("cannot build order view for event",
				zap.String("event", string(kind)), zap.Error(err))
			s.fail(err.Error())
			return
		}
		metrics.EventsEmitted.WithLabelValues(string(kind)).Inc()
		s.log.Info("emitting payment event",
			zap.String("event", string(kind)),
			zap.String("order_id", order.ID.String()),
			zap.String("tx_hash", txHash))
		handler(entities.PaymentEvent{
			Type:      kind,
			PaymentID: order.ID.String(),
			ChainID:   chainID,
			TxHash:    txHash,
			Payment:   view,
		})
	})
}

// Reset clears the session for a new checkout. Pollers for the previous
// order are stopped; any late results they produced are discarded by
// ApplyOrder's order-id check.
func (s *PaymentSession) Reset() {
	s.stopPollers()
	s.mu.Lock()
	s.order = nil
	s.payParams = nil
	s.depositFlow = false
	s.errMessage = ""
	s.mu.Unlock()
	s.setState(SessionStateIdle)
}

func (s *PaymentSession) fail(message string) {
	s.stopPollers()
	s.mu.Lock()
	s.errMessage = message
	s.mu.Unlock()
	s.log.Error("session failed", zap.String("message", message))
	s.setState(SessionStateError)
}

func (s *PaymentSession) setState(next SessionState) {
	s.mu.Lock()
	prev := s.state
	if prev == next {
		s.mu.Unlock()
		return
	}
	s.state = next
	listeners := make([]func(SessionState, SessionState), len(s.stateListeners))
	copy(listeners, s.stateListeners)
	s.mu.Unlock()

	s.log.Debug("session state changed",
		zap.String("from", string(prev)), zap.String("to", string(next)))
	if next.Terminal() {
		s.stopPollers()
	}
	for _, fn := range listeners {
		fn(prev, next)
	}
}

func (s *PaymentSession) startPoller(ctx context.Context, name string, opts poll.Options) {
	s.mu.Lock()
	if prev, ok := s.pollers[name]; ok {
		prev.Stop()
	}
	s.mu.Unlock()

	h := poll.Start(ctx, opts)

	s.mu.Lock()
	s.pollers[name] = h
	s.mu.Unlock()
}

// StopPollers cancels every active poller. Called on route exit and reset so
// no stale transition fires after the user navigated away.
func (s *PaymentSession) StopPollers() {
	s.stopPollers()
}

func (s *PaymentSession) stopPollers() {
	s.mu.Lock()
	handles := make([]*poll.Handle, 0, len(s.pollers))
	for _, h := range s.pollers {
		handles = append(handles, h)
	}
	s.pollers = make(map[string]*poll.Handle)
	s.mu.Unlock()
	for _, h := range handles {
		h.Stop()
	}
}
