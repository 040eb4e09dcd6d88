package usecases_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"crosspay.client/internal/config"
	"crosspay.client/internal/domain/entities"
	domainerrors "crosspay.client/internal/domain/errors"
	"crosspay.client/internal/domain/gateways"
	"crosspay.client/internal/usecases"
)

func testPollingConfig() config.PollingConfig {
	return config.PollingConfig{
		WalletSourceInterval:   5 * time.Millisecond,
		ExchangeSourceInterval: 5 * time.Millisecond,
		OrderRefreshInterval:   5 * time.Millisecond,
	}
}

// eventRecorder captures emitted payment events.
type eventRecorder struct {
	mu     sync.Mutex
	events []entities.PaymentEvent
}

func (r *eventRecorder) record(e entities.PaymentEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *eventRecorder) ofType(kind entities.EventType) []entities.PaymentEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []entities.PaymentEvent
	for _, e := range r.events {
		if e.Type == kind {
			out = append(out, e)
		}
	}
	return out
}

func (r *eventRecorder) callbacks() usecases.SessionCallbacks {
	return usecases.SessionCallbacks{
		OnPaymentStarted:   r.record,
		OnPaymentCompleted: r.record,
		OnPaymentBounced:   r.record,
		OnPaymentRefunded:  r.record,
	}
}

func saleOrder(id entities.OrderID) *entities.PaymentOrder {
	return &entities.PaymentOrder{
		Mode: entities.OrderModeSale,
		ID:   id,
		DestTokenAmount: entities.TokenAmount{
			Token:  entities.Token{ChainID: 8453, Address: "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913", Symbol: "USDC", Decimals: 6, PriceFromUsd: 1},
			Amount: "10000000",
			Usd:    10,
		},
		DestCall: entities.OnChainCall{
			To: common.HexToAddress("0x1111111111111111111111111111111111111111"),
		},
		Metadata:     entities.OrderMetadata{Intent: "Purchase"},
		IntentStatus: entities.IntentStatusUnpaid,
		CreatedAt:    null.TimeFrom(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)),
	}
}

func hydratedOrder(id entities.OrderID, passThrough bool) *entities.PaymentOrder {
	order := saleOrder(id)
	order.Mode = entities.OrderModeHydrated
	order.Hydrated = &entities.HydratedFields{
		IntentAddress:  "0x3333333333333333333333333333333333333333",
		Nonce:          99,
		UsdValue:       10,
		SourceStatus:   entities.SourceStatusWaitingPayment,
		DestStatus:     entities.DestStatusPending,
		ExpirationTime: null.TimeFrom(order.CreatedAt.Time.Add(24 * time.Hour)),
		PassThrough:    passThrough,
	}
	return order
}

func withSourceDetected(order *entities.PaymentOrder, txHash string) *entities.PaymentOrder {
	out := *order
	h := *order.Hydrated
	h.SourceStatus = entities.SourceStatusProcessed
	h.SourceInitiateTxHash = null.StringFrom(txHash)
	h.SourceTokenAmount = &entities.TokenAmount{
		Token:  entities.Token{ChainID: 137, Address: "0x3c499c542cEF5E3811e1192ce70d8cC03d5c3359", Symbol: "USDC", Decimals: 6},
		Amount: "10000000",
	}
	h.SourceFulfillerAddress = null.StringFrom("0x2222222222222222222222222222222222222222")
	out.Hydrated = &h
	out.IntentStatus = entities.DeriveIntentStatus(h.SourceStatus, h.DestStatus, h.Bounced)
	return &out
}

func withDestClaimed(order *entities.PaymentOrder) *entities.PaymentOrder {
	out := *order
	h := *order.Hydrated
	h.DestStatus = entities.DestStatusClaimSuccessful
	out.Hydrated = &h
	out.IntentStatus = entities.DeriveIntentStatus(h.SourceStatus, h.DestStatus, h.Bounced)
	return &out
}

func testPayParams() gateways.PayParams {
	return gateways.PayParams{
		AppID:     "app-test",
		ToChain:   8453,
		ToToken:   "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913",
		ToUnits:   null.StringFrom("10"),
		ToAddress: "0x1111111111111111111111111111111111111111",
	}
}

// Happy path: sale order hydrated, user pays from chain 137 with a
// pass-through token, source detection finds 0xabc, destination claims, the
// completed event fires exactly once with the source hash as completion
// hash.
func TestSession_HappyPath(t *testing.T) {
	id := entities.OrderID(7)
	svc := new(MockOrderService)
	rec := &eventRecorder{}

	preview := saleOrder(id)
	hydrated := hydratedOrder(id, true)
	started := withSourceDetected(hydrated, "0xabc")
	completed := withDestClaimed(started)

	svc.On("PreviewOrder", mock.Anything, mock.Anything).Return(preview, nil)
	svc.On("CreateOrHydrate", mock.Anything, mock.Anything).Return(&gateways.HydrateResult{Order: hydrated}, nil)
	svc.On("FindSourcePayment", mock.Anything, id).Return(&gateways.SourcePayment{
		TxHash: "0xabc", ChainID: 137,
	}, nil)
	svc.On("GetOrder", mock.Anything, id).Return(started, nil).Once()
	svc.On("GetOrder", mock.Anything, id).Return(completed, nil)

	session := usecases.NewPaymentSession(svc, testPollingConfig(), nil, rec.callbacks())

	require.NoError(t, session.SetPayParams(context.Background(), testPayParams()))
	assert.Equal(t, usecases.SessionStatePreview, session.State())

	_, err := session.Hydrate(context.Background(), null.String{}, null.String{})
	require.NoError(t, err)
	assert.Equal(t, usecases.SessionStateUnpaid, session.State())

	session.StartSourcePoll(context.Background(), 5*time.Millisecond)

	require.Eventually(t, func() bool {
		return session.State() == usecases.SessionStateCompleted
	}, 2*time.Second, 5*time.Millisecond)

	// Give re-evaluations a chance to double-fire before asserting.
	time.Sleep(50 * time.Millisecond)

	startedEvents := rec.ofType(entities.EventPaymentStarted)
	require.Len(t, startedEvents, 1)
	assert.Equal(t, "0xabc", startedEvents[0].TxHash)
	assert.Equal(t, int64(137), startedEvents[0].ChainID, "started event carries the source chain")

	completedEvents := rec.ofType(entities.EventPaymentCompleted)
	require.Len(t, completedEvents, 1)
	assert.Equal(t, "0xabc", completedEvents[0].TxHash, "pass-through completes on the source hash")
	assert.Equal(t, int64(8453), completedEvents[0].ChainID)
	require.NotNil(t, completedEvents[0].Payment)
	assert.Equal(t, entities.IntentStatusCompleted, completedEvents[0].Payment.Status)

	assert.Empty(t, rec.ofType(entities.EventPaymentBounced))
}

// Bridged orders complete on the destination payout hash instead.
func TestSession_CompletionUsesDestHashWhenBridged(t *testing.T) {
	id := entities.OrderID(11)
	svc := new(MockOrderService)
	rec := &eventRecorder{}

	hydrated := hydratedOrder(id, false)
	completed := withDestClaimed(withSourceDetected(hydrated, "0xabc"))
	completed.Hydrated.DestClaimTxHash = null.StringFrom("0xdef")

	svc.On("PreviewOrder", mock.Anything, mock.Anything).Return(hydratedOrder(id, false), nil)
	svc.On("CreateOrHydrate", mock.Anything, mock.Anything).Return(&gateways.HydrateResult{Order: hydrated}, nil)

	session := usecases.NewPaymentSession(svc, testPollingConfig(), nil, rec.callbacks())
	require.NoError(t, session.SetPayParams(context.Background(), testPayParams()))
	_, err := session.Hydrate(context.Background(), null.String{}, null.String{})
	require.NoError(t, err)

	session.ApplyOrder(completed)
	// Re-applying the same refresh must not double-fire.
	session.ApplyOrder(completed)

	assert.Equal(t, usecases.SessionStateCompleted, session.State())
	completedEvents := rec.ofType(entities.EventPaymentCompleted)
	require.Len(t, completedEvents, 1)
	assert.Equal(t, "0xdef", completedEvents[0].TxHash)
}

// Bounce: destination never reaches success, the bounce signal makes the
// intent terminal, and no completed event ever fires.
func TestSession_Bounce(t *testing.T) {
	id := entities.OrderID(13)
	svc := new(MockOrderService)
	rec := &eventRecorder{}

	hydrated := hydratedOrder(id, false)
	bounced := withSourceDetected(hydrated, "0xabc")
	h := *bounced.Hydrated
	h.Bounced = true
	h.DestClaimTxHash = null.StringFrom("0xbounce")
	h.RefundTxHash = null.StringFrom("0xrefund")
	bounced.Hydrated = &h
	bounced.IntentStatus = entities.DeriveIntentStatus(h.SourceStatus, h.DestStatus, h.Bounced)
	require.Equal(t, entities.IntentStatusBounced, bounced.IntentStatus)

	svc.On("PreviewOrder", mock.Anything, mock.Anything).Return(saleOrder(id), nil)
	svc.On("CreateOrHydrate", mock.Anything, mock.Anything).Return(&gateways.HydrateResult{Order: hydrated}, nil)

	session := usecases.NewPaymentSession(svc, testPollingConfig(), nil, rec.callbacks())
	require.NoError(t, session.SetPayParams(context.Background(), testPayParams()))
	_, err := session.Hydrate(context.Background(), null.String{}, null.String{})
	require.NoError(t, err)

	session.ApplyOrder(bounced)

	assert.Equal(t, usecases.SessionStateBounced, session.State())
	assert.Empty(t, rec.ofType(entities.EventPaymentCompleted))
	bouncedEvents := rec.ofType(entities.EventPaymentBounced)
	require.Len(t, bouncedEvents, 1)
	assert.Equal(t, "0xbounce", bouncedEvents[0].TxHash)

	// The refund is reported on the chain the user paid from.
	refunded := rec.ofType(entities.EventPaymentRefunded)
	require.Len(t, refunded, 1)
	assert.Equal(t, "0xrefund", refunded[0].TxHash)
	assert.Equal(t, int64(137), refunded[0].ChainID)
}

// Source polling can start while the order is still a preview, before the
// service has persisted it. Not-found responses mean "no payment yet" and
// must not consume the failure budget or error the session.
func TestSession_SourcePollToleratesNotFoundBeforeHydration(t *testing.T) {
	id := entities.OrderID(17)
	svc := new(MockOrderService)
	rec := &eventRecorder{}

	detected := withSourceDetected(hydratedOrder(id, true), "0xabc")
	notFound := domainerrors.NewAppError("order not found", domainerrors.ErrNotFound)

	svc.On("PreviewOrder", mock.Anything, mock.Anything).Return(saleOrder(id), nil)
	svc.On("FindSourcePayment", mock.Anything, id).Return(nil, notFound).Times(5)
	svc.On("FindSourcePayment", mock.Anything, id).Return(&gateways.SourcePayment{
		TxHash: "0xabc", ChainID: 137,
	}, nil)
	svc.On("GetOrder", mock.Anything, id).Return(detected, nil)

	cfg := testPollingConfig()
	cfg.MaxFailures = 3 // fewer than the not-found responses above

	session := usecases.NewPaymentSession(svc, cfg, nil, rec.callbacks())
	require.NoError(t, session.SetPayParams(context.Background(), testPayParams()))
	session.StartSourcePoll(context.Background(), cfg.WalletSourceInterval)

	require.Eventually(t, func() bool {
		return session.State() == usecases.SessionStateStarted
	}, 2*time.Second, 5*time.Millisecond)
	assert.Empty(t, session.ErrorMessage())
	session.StopPollers()
}

// A late refresh for a previous order is discarded, not applied.
func TestSession_ApplyOrderDiscardsForeignOrder(t *testing.T) {
	svc := new(MockOrderService)
	rec := &eventRecorder{}

	hydrated := hydratedOrder(17, false)
	svc.On("PreviewOrder", mock.Anything, mock.Anything).Return(saleOrder(17), nil)
	svc.On("CreateOrHydrate", mock.Anything, mock.Anything).Return(&gateways.HydrateResult{Order: hydrated}, nil)

	session := usecases.NewPaymentSession(svc, testPollingConfig(), nil, rec.callbacks())
	require.NoError(t, session.SetPayParams(context.Background(), testPayParams()))
	_, err := session.Hydrate(context.Background(), null.String{}, null.String{})
	require.NoError(t, err)

	stale := withDestClaimed(withSourceDetected(hydratedOrder(99, false), "0xstale"))
	session.ApplyOrder(stale)

	assert.Equal(t, usecases.SessionStateUnpaid, session.State())
	assert.Equal(t, entities.OrderID(17), session.Order().ID)
	assert.Empty(t, rec.events)
}

// A refresh can never move a leg backwards.
func TestSession_ApplyOrderIsMonotone(t *testing.T) {
	svc := new(MockOrderService)

	hydrated := hydratedOrder(19, false)
	started := withSourceDetected(hydrated, "0xabc")
	svc.On("PreviewOrder", mock.Anything, mock.Anything).Return(saleOrder(19), nil)
	svc.On("CreateOrHydrate", mock.Anything, mock.Anything).Return(&gateways.HydrateResult{Order: hydrated}, nil)

	session := usecases.NewPaymentSession(svc, testPollingConfig(), nil, usecases.SessionCallbacks{})
	require.NoError(t, session.SetPayParams(context.Background(), testPayParams()))
	_, err := session.Hydrate(context.Background(), null.String{}, null.String{})
	require.NoError(t, err)

	session.ApplyOrder(started)
	assert.Equal(t, usecases.SessionStateStarted, session.State())

	// An eventually-consistent backend may briefly serve the older snapshot.
	session.ApplyOrder(hydrated)
	assert.Equal(t, usecases.SessionStateStarted, session.State())
	assert.Equal(t, entities.SourceStatusProcessed, session.Order().Hydrated.SourceStatus)
}

func TestSession_SetPayID(t *testing.T) {
	id := entities.OrderID(23)
	svc := new(MockOrderService)
	rec := &eventRecorder{}

	completed := withDestClaimed(withSourceDetected(hydratedOrder(id, false), "0xabc"))
	completed.Hydrated.DestClaimTxHash = null.StringFrom("0xdef")
	svc.On("GetOrder", mock.Anything, id).Return(completed, nil)

	session := usecases.NewPaymentSession(svc, testPollingConfig(), nil, rec.callbacks())
	require.NoError(t, session.SetPayID(context.Background(), id.String()))

	assert.Equal(t, usecases.SessionStateCompleted, session.State())
	assert.Len(t, rec.ofType(entities.EventPaymentCompleted), 1)

	// Loading the same order again is a no-op.
	require.NoError(t, session.SetPayID(context.Background(), id.String()))
	svc.AssertNumberOfCalls(t, "GetOrder", 1)

	assert.Error(t, session.SetPayID(context.Background(), "not!base58"))
}

// An order reported as progressed but not hydrated is a server integrity
// violation and fails the checkout.
func TestSession_SetPayID_IntegrityViolation(t *testing.T) {
	id := entities.OrderID(29)
	svc := new(MockOrderService)

	broken := saleOrder(id)
	broken.IntentStatus = entities.IntentStatusStarted
	svc.On("GetOrder", mock.Anything, id).Return(broken, nil)

	session := usecases.NewPaymentSession(svc, testPollingConfig(), nil, usecases.SessionCallbacks{})
	err := session.SetPayID(context.Background(), id.String())
	assert.Error(t, err)
	assert.True(t, errors.Is(err, domainerrors.ErrIntegrity))
	assert.Equal(t, usecases.SessionStateError, session.State())
	assert.NotEmpty(t, session.ErrorMessage())
}

func TestSession_HydrateRequiresOrder(t *testing.T) {
	session := usecases.NewPaymentSession(new(MockOrderService), testPollingConfig(), nil, usecases.SessionCallbacks{})
	_, err := session.Hydrate(context.Background(), null.String{}, null.String{})
	assert.Error(t, err)
}

func TestSession_HydrateFailsOnUnhydratedResponse(t *testing.T) {
	svc := new(MockOrderService)
	svc.On("PreviewOrder", mock.Anything, mock.Anything).Return(saleOrder(31), nil)
	svc.On("CreateOrHydrate", mock.Anything, mock.Anything).Return(&gateways.HydrateResult{Order: saleOrder(31)}, nil)

	session := usecases.NewPaymentSession(svc, testPollingConfig(), nil, usecases.SessionCallbacks{})
	require.NoError(t, session.SetPayParams(context.Background(), testPayParams()))

	_, err := session.Hydrate(context.Background(), null.String{}, null.String{})
	assert.Error(t, err)
	assert.True(t, errors.Is(err, domainerrors.ErrIntegrity))
	assert.Equal(t, usecases.SessionStateError, session.State())
}

func TestSession_SetChosenUsdOnlyInPreview(t *testing.T) {
	svc := new(MockOrderService)
	preview := saleOrder(37)
	preview.Mode = entities.OrderModeChooseAmount
	svc.On("PreviewOrder", mock.Anything, mock.Anything).Return(preview, nil)

	params := testPayParams()
	params.ToUnits = null.String{} // user picks the amount

	session := usecases.NewPaymentSession(svc, testPollingConfig(), nil, usecases.SessionCallbacks{})
	require.NoError(t, session.SetPayParams(context.Background(), params))
	assert.True(t, session.IsDepositFlow())

	require.NoError(t, session.SetChosenUsd(25))
	assert.Equal(t, float64(25), session.Order().DestTokenAmount.Usd)
	assert.Equal(t, "25000000", session.Order().DestTokenAmount.Amount)

	session.Reset()
	assert.Error(t, session.SetChosenUsd(25))
}
