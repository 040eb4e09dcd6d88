package usecases

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"crosspay.client/internal/config"
	"crosspay.client/internal/domain/entities"
	domainerrors "crosspay.client/internal/domain/errors"
	"crosspay.client/internal/domain/gateways"
	"crosspay.client/pkg/logger"
)

// Route is a named screen in the checkout workflow.
type Route string

const (
	RouteSelectMethod               Route = "select_method"
	RouteSelectToken                Route = "select_token"
	RouteSelectAmount               Route = "select_amount"
	RouteSelectExternalAmount       Route = "select_external_amount"
	RouteSelectDepositAddressChain  Route = "select_deposit_address_chain"
	RouteSelectDepositAddressAmount Route = "select_deposit_address_amount"
	RouteSelectWalletAmount         Route = "select_wallet_amount"
	RoutePayWithToken               Route = "pay_with_token"
	RouteWaitingExternal            Route = "waiting_external"
	RouteWaitingDepositAddress      Route = "waiting_deposit_address"
	RouteWaitingWallet              Route = "waiting_wallet"
	RouteSolanaConnect              Route = "solana_connect"
	RouteSolanaSelectToken          Route = "solana_select_token"
	RouteSolanaSelectAmount         Route = "solana_select_amount"
	RouteSolanaPayWithToken         Route = "solana_pay_with_token"
	RouteConfirmation               Route = "confirmation"
	RouteError                      Route = "error"
)

// Terminal reports whether the route ends the current checkout.
func (r Route) Terminal() bool {
	return r == RouteConfirmation || r == RouteError
}

// WaitingContext carries what the user selected on the way to a waiting
// route. GoBack clears the slice of it that belongs to the route being
// left.
type WaitingContext struct {
	SelectedWalletOption   *entities.WalletPaymentOption
	SelectedExternalOption *entities.ExternalPaymentOption
	SelectedDepositOption  *entities.DepositAddressOption
	WaitingMessage         string
	ChosenUsd              float64
}

// transitionRule is one row of the routing table. Forward lists the routes
// reachable from this one; Backward computes where GoBack lands given the
// flow's current context. A nil Backward means the route has no back
// affordance.
type transitionRule struct {
	forward  []Route
	backward func(f *Flow) Route
}

var transitionTable = map[Route]transitionRule{
	RouteSelectMethod: {
		forward: []Route{RouteSelectToken, RouteSolanaConnect, RouteSelectExternalAmount, RouteSelectDepositAddressChain},
	},
	RouteSelectToken: {
		forward:  []Route{RouteSelectAmount, RouteSelectWalletAmount, RoutePayWithToken},
		backward: func(f *Flow) Route { return RouteSelectMethod },
	},
	RouteSelectAmount: {
		forward:  []Route{RoutePayWithToken},
		backward: func(f *Flow) Route { return RouteSelectToken },
	},
	RouteSelectWalletAmount: {
		forward:  []Route{RouteWaitingWallet},
		backward: func(f *Flow) Route { return RouteSelectToken },
	},
	RouteSelectExternalAmount: {
		forward:  []Route{RouteWaitingExternal},
		backward: func(f *Flow) Route { return RouteSelectMethod },
	},
	RouteSelectDepositAddressChain: {
		forward:  []Route{RouteSelectDepositAddressAmount, RouteWaitingDepositAddress},
		backward: func(f *Flow) Route { return RouteSelectMethod },
	},
	RouteSelectDepositAddressAmount: {
		forward:  []Route{RouteWaitingDepositAddress},
		backward: func(f *Flow) Route { return RouteSelectDepositAddressChain },
	},
	RoutePayWithToken: {
		forward:  []Route{RouteConfirmation, RouteError},
		backward: func(f *Flow) Route { return f.backFromPayment(RouteSelectToken, RouteSelectAmount) },
	},
	RouteWaitingWallet: {
		forward:  []Route{RouteConfirmation, RouteError},
		backward: func(f *Flow) Route { return f.backFromPayment(RouteSelectToken, RouteSelectWalletAmount) },
	},
	RouteWaitingExternal: {
		forward:  []Route{RouteConfirmation, RouteError},
		backward: func(f *Flow) Route { return f.backFromPayment(RouteSelectMethod, RouteSelectExternalAmount) },
	},
	RouteWaitingDepositAddress: {
		forward:  []Route{RouteConfirmation, RouteError},
		backward: func(f *Flow) Route {
			return f.backFromPayment(RouteSelectDepositAddressChain, RouteSelectDepositAddressAmount)
		},
	},
	RouteSolanaConnect: {
		forward:  []Route{RouteSolanaSelectToken},
		backward: func(f *Flow) Route { return RouteSelectMethod },
	},
	RouteSolanaSelectToken: {
		forward:  []Route{RouteSolanaSelectAmount, RouteSolanaPayWithToken},
		backward: func(f *Flow) Route { return RouteSelectMethod },
	},
	RouteSolanaSelectAmount: {
		forward:  []Route{RouteSolanaPayWithToken},
		backward: func(f *Flow) Route { return RouteSolanaSelectToken },
	},
	RouteSolanaPayWithToken: {
		forward:  []Route{RouteConfirmation, RouteError},
		backward: func(f *Flow) Route { return f.backFromPayment(RouteSolanaSelectToken, RouteSolanaSelectAmount) },
	},
	RouteConfirmation: {},
	RouteError:        {},
}

// Flow routes the checkout UI. It owns the session and decides, from order
// status plus wallet signals, which route the user should be on next.
type Flow struct {
	session *PaymentSession
	kit     *WalletKit
	svc     gateways.OrderService
	cfg     config.FlowConfig
	polling config.PollingConfig
	log     *zap.Logger

	mu      sync.Mutex
	route   Route
	waiting WaitingContext
	errMsg  string

	limitsOnce sync.Once
	limits     map[int64]float64

	routeListeners []func(Route)
}

// NewFlow wires a flow to its session and wallet kit.
func NewFlow(session *PaymentSession, kit *WalletKit, svc gateways.OrderService, cfg config.FlowConfig, polling config.PollingConfig, log *zap.Logger) *Flow {
	if log == nil {
		log = logger.GetLogger()
	}
	f := &Flow{
		session: session,
		kit:     kit,
		svc:     svc,
		cfg:     cfg,
		polling: polling,
		log:     log,
		route:   RouteSelectMethod,
	}
	session.AddStateListener(f.onSessionState)
	return f
}

// AddRouteListener registers a listener invoked after every route change.
func (f *Flow) AddRouteListener(fn func(Route)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.routeListeners = append(f.routeListeners, fn)
}

// Route returns the current route.
func (f *Flow) Route() Route {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.route
}

// Waiting returns the current waiting context.
func (f *Flow) Waiting() WaitingContext {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.waiting
}

// ErrorMessage returns the captured message when routed to the error state.
func (f *Flow) ErrorMessage() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.errMsg != "" {
		return f.errMsg
	}
	return f.session.ErrorMessage()
}

// Start resets the flow and picks the entry route. With exactly one wallet
// rail connected the method selector is redundant and is skipped; with
// both connected the user has to disambiguate.
func (f *Flow) Start(ctx context.Context) Route {
	f.mu.Lock()
	f.waiting = WaitingContext{}
	f.errMsg = ""
	f.mu.Unlock()

	evm := f.kit != nil && f.kit.EVM != nil && f.kit.EVM.IsConnected()
	solana := f.kit != nil && f.kit.Solana != nil && f.kit.Solana.IsConnected()

	entry := RouteSelectMethod
	switch {
	case evm && !solana:
		entry = RouteSelectToken
	case solana && !evm:
		entry = RouteSolanaSelectToken
	}
	f.apply(ctx, entry, true)
	return entry
}

// SetRoute moves the flow forward. Unknown routes and transitions the
// table does not allow route to the error state instead of being applied;
// panics while applying are captured the same way.
func (f *Flow) SetRoute(ctx context.Context, next Route) (route Route) {
	defer func() {
		if r := recover(); r != nil {
			f.toError(fmt.Sprintf("route transition to %s: %v", next, r))
			route = RouteError
		}
	}()

	f.mu.Lock()
	cur := f.route
	f.mu.Unlock()

	if cur.Terminal() && !next.Terminal() {
		f.toError(fmt.Sprintf("cannot leave terminal route %s for %s", cur, next))
		return RouteError
	}
	rule, ok := transitionTable[cur]
	if !ok {
		f.toError(fmt.Sprintf("unknown route %s", cur))
		return RouteError
	}
	if next != RouteError && next != cur && !routeAllowed(rule.forward, next) {
		f.toError(fmt.Sprintf("transition %s -> %s not allowed", cur, next))
		return RouteError
	}

	f.apply(ctx, next, false)
	return next
}

// GoBack walks the structural inverse of the forward transition that led
// here. Leaving a waiting state in deposit mode regenerates the preview:
// the previously computed one may be stale by the time the user re-enters
// the amount page.
func (f *Flow) GoBack(ctx context.Context) (route Route) {
	defer func() {
		if r := recover(); r != nil {
			f.toError(fmt.Sprintf("back navigation: %v", r))
			route = RouteError
		}
	}()

	f.mu.Lock()
	cur := f.route
	f.mu.Unlock()

	rule, ok := transitionTable[cur]
	if !ok || rule.backward == nil {
		return cur
	}
	prev := rule.backward(f)

	if isWaitingRoute(cur) {
		f.session.StopPollers()
		if f.session.IsDepositFlow() {
			if err := f.session.RegeneratePreview(ctx); err != nil {
				f.toError(fmt.Sprintf("regenerate preview: %v", err))
				return RouteError
			}
		}
	}
	f.clearSelectionFor(cur)
	f.apply(ctx, prev, false)
	return prev
}

// backFromPayment picks the amount page when the user chose an amount on
// the way in, else the selection page.
func (f *Flow) backFromPayment(selectRoute, amountRoute Route) Route {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.waiting.ChosenUsd > 0 {
		return amountRoute
	}
	return selectRoute
}

// SelectWalletOption records the chosen wallet payment option and routes
// to the pay page.
func (f *Flow) SelectWalletOption(ctx context.Context, opt entities.WalletPaymentOption, next Route) (Route, error) {
	if opt.Disabled() {
		return f.Route(), domainerrors.Validation(fmt.Sprintf("payment option unavailable: %s", opt.DisabledReason))
	}
	f.mu.Lock()
	f.waiting.SelectedWalletOption = &opt
	f.mu.Unlock()
	return f.SetRoute(ctx, next), nil
}

// SelectExternalOption records the chosen exchange/on-ramp option.
func (f *Flow) SelectExternalOption(ctx context.Context, opt entities.ExternalPaymentOption, next Route) Route {
	f.mu.Lock()
	f.waiting.SelectedExternalOption = &opt
	f.mu.Unlock()
	return f.SetRoute(ctx, next)
}

// SelectDepositOption records the chosen deposit-address chain.
func (f *Flow) SelectDepositOption(ctx context.Context, opt entities.DepositAddressOption, next Route) Route {
	f.mu.Lock()
	f.waiting.SelectedDepositOption = &opt
	f.mu.Unlock()
	return f.SetRoute(ctx, next)
}

// SetChosenUsd records the amount entered at an amount page and applies it
// to the preview order.
func (f *Flow) SetChosenUsd(usd float64) error {
	if err := f.session.SetChosenUsd(usd); err != nil {
		return err
	}
	f.mu.Lock()
	f.waiting.ChosenUsd = usd
	f.mu.Unlock()
	return nil
}

// Closeable reports whether the checkout may be dismissed. With chain
// enforcement on and the connected wallet on an unsupported chain the
// checkout stays open until the user switches.
func (f *Flow) Closeable() bool {
	if !f.cfg.EnforceSupportedChains {
		return true
	}
	if f.kit == nil || f.kit.EVM == nil || !f.kit.EVM.IsConnected() {
		return true
	}
	chainID := f.kit.EVM.ChainID()
	for _, id := range f.cfg.SupportedChains {
		if id == chainID {
			return true
		}
	}
	return false
}

// OrderUsdLimit returns the maximum order size for a destination chain.
// Limits are fetched once per flow; a fetch failure falls back to the
// configured default rather than blocking checkout.
func (f *Flow) OrderUsdLimit(ctx context.Context, chainID int64) float64 {
	f.limitsOnce.Do(func() {
		limits, err := f.svc.GetOrderUsdLimits(ctx)
		if err != nil {
			f.log.Warn("could not fetch order usd limits, using default",
				zap.Float64("default", f.cfg.DefaultUsdLimit), zap.Error(err))
			return
		}
		f.limits = limits
	})
	f.mu.Lock()
	defer f.mu.Unlock()
	if limit, ok := f.limits[chainID]; ok {
		return limit
	}
	return f.cfg.DefaultUsdLimit
}

// onSessionState routes terminal session states. Route changes triggered
// here carry no request context; pollers are already stopped by the
// session when it goes terminal.
func (f *Flow) onSessionState(prev, next SessionState) {
	switch next {
	case SessionStateCompleted, SessionStateBounced:
		f.apply(context.Background(), RouteConfirmation, false)
	case SessionStateError:
		f.apply(context.Background(), RouteError, false)
	}
}

func (f *Flow) toError(message string) {
	f.mu.Lock()
	f.errMsg = message
	f.mu.Unlock()
	f.log.Error("flow error", zap.String("message", message))
	f.apply(context.Background(), RouteError, false)
}

// apply commits a route change and runs its entry effects.
func (f *Flow) apply(ctx context.Context, next Route, reset bool) {
	f.mu.Lock()
	cur := f.route
	if cur == next && !reset {
		f.mu.Unlock()
		return
	}
	f.route = next
	listeners := make([]func(Route), len(f.routeListeners))
	copy(listeners, f.routeListeners)
	f.mu.Unlock()

	f.log.Debug("route changed",
		zap.String("from", string(cur)), zap.String("to", string(next)))

	switch {
	case next == RouteWaitingExternal:
		// External rails report progress through payout status, not
		// detected source payments.
		f.session.StartPayoutPoll(ctx, f.polling.ExchangeSourceInterval)
	case isWaitingRoute(next):
		f.session.StartSourcePoll(ctx, f.sourceInterval(next))
	}

	for _, fn := range listeners {
		fn(next)
	}
}

// sourceInterval picks the probe cadence for a waiting route. Wallet rails
// confirm in seconds and poll fast; exchange and deposit-address rails are
// slower and poll gently to respect provider rate limits.
func (f *Flow) sourceInterval(route Route) time.Duration {
	switch route {
	case RouteWaitingExternal, RouteWaitingDepositAddress:
		return f.polling.ExchangeSourceInterval
	default:
		return f.polling.WalletSourceInterval
	}
}

func (f *Flow) clearSelectionFor(route Route) {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch route {
	case RouteWaitingWallet, RoutePayWithToken, RouteSolanaPayWithToken:
		f.waiting.SelectedWalletOption = nil
	case RouteWaitingExternal:
		f.waiting.SelectedExternalOption = nil
	case RouteWaitingDepositAddress:
		f.waiting.SelectedDepositOption = nil
	}
	f.waiting.WaitingMessage = ""
}

func isWaitingRoute(r Route) bool {
	switch r {
	case RoutePayWithToken, RouteWaitingWallet, RouteWaitingExternal,
		RouteWaitingDepositAddress, RouteSolanaPayWithToken:
		return true
	}
	return false
}

func routeAllowed(allowed []Route, next Route) bool {
	for _, r := range allowed {
		if r == next {
			return true
		}
	}
	return false
}
