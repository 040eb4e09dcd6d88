package entities

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/mr-tron/base58"
	"github.com/volatiletech/null/v8"
)

// SourceStatus tracks the user's payment leg.
// Lifecycle: waiting_payment -> pending_processing -> start_submitted ->
// processed (start transaction receipt confirmed).
type SourceStatus string

const (
	SourceStatusWaitingPayment    SourceStatus = "waiting_payment"
	SourceStatusPendingProcessing SourceStatus = "pending_processing"
	SourceStatusStartSubmitted    SourceStatus = "start_submitted"
	SourceStatusProcessed         SourceStatus = "processed"
)

// Rank orders source statuses by lifecycle progress.
func (s SourceStatus) Rank() int {
	switch s {
	case SourceStatusWaitingPayment:
		return 0
	case SourceStatusPendingProcessing:
		return 1
	case SourceStatusStartSubmitted:
		return 2
	case SourceStatusProcessed:
		return 3
	}
	return -1
}

// DestStatus tracks the payout leg. The destination is satisfied either by a
// fast finish (an LP fronts funds, reimbursed by the claim later) or by the
// claim itself; both count as terminal for the user.
type DestStatus string

const (
	DestStatusPending             DestStatus = "pending"
	DestStatusFastFinishSubmitted DestStatus = "fast_finish_submitted"
	DestStatusFastFinished        DestStatus = "fast_finished"
	DestStatusClaimSuccessful     DestStatus = "claimed"
)

// Rank orders destination statuses by lifecycle progress.
func (s DestStatus) Rank() int {
	switch s {
	case DestStatusPending:
		return 0
	case DestStatusFastFinishSubmitted:
		return 1
	case DestStatusFastFinished:
		return 2
	case DestStatusClaimSuccessful:
		return 3
	}
	return -1
}

// Terminal reports whether the destination leg has delivered funds.
func (s DestStatus) Terminal() bool {
	return s == DestStatusFastFinished || s == DestStatusClaimSuccessful
}

// IntentStatus is the user-facing summary of both legs.
type IntentStatus string

const (
	IntentStatusUnpaid    IntentStatus = "payment_unpaid"
	IntentStatusStarted   IntentStatus = "payment_started"
	IntentStatusCompleted IntentStatus = "payment_completed"
	IntentStatusBounced   IntentStatus = "payment_bounced"
)

// Rank orders intent statuses. Completed and Bounced share the terminal rank.
func (s IntentStatus) Rank() int {
	switch s {
	case IntentStatusUnpaid:
		return 0
	case IntentStatusStarted:
		return 1
	case IntentStatusCompleted, IntentStatusBounced:
		return 2
	}
	return -1
}

// Terminal reports whether the intent status can no longer change.
func (s IntentStatus) Terminal() bool {
	return s == IntentStatusCompleted || s == IntentStatusBounced
}

// DeriveIntentStatus computes the user-facing status from the two legs plus
// the bounce signal. It is monotone: non-decreasing inputs never produce an
// earlier-ranked output, and it is insensitive to the arrival order of
// source and destination updates.
func DeriveIntentStatus(source SourceStatus, dest DestStatus, bounced bool) IntentStatus {
	switch {
	case bounced:
		return IntentStatusBounced
	case dest.Terminal():
		return IntentStatusCompleted
	case source.Rank() >= SourceStatusPendingProcessing.Rank():
		return IntentStatusStarted
	default:
		return IntentStatusUnpaid
	}
}

// OrderMode distinguishes order variants. Sale and ChooseAmount orders are
// dehydrated; a Hydrated order is final and immutable except for status.
type OrderMode string

const (
	OrderModeSale         OrderMode = "sale"
	OrderModeChooseAmount OrderMode = "choose_amount"
	OrderModeHydrated     OrderMode = "hydrated"
)

// OrderID is a unique numeric order identifier, displayed base58-encoded.
type OrderID uint64

// String encodes the id as base58 over its big-endian bytes.
func (id OrderID) String() string {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(id))
	// Strip leading zero bytes so small ids stay short, matching the
	// canonical encoding used by the order service.
	i := 0
	for i < 7 && buf[i] == 0 {
		i++
	}
	return base58.Encode(buf[i:])
}

// ParseOrderID decodes a base58 order id.
func ParseOrderID(s string) (OrderID, error) {
	raw, err := base58.Decode(s)
	if err != nil {
		return 0, fmt.Errorf("invalid order id %q: %w", s, err)
	}
	if len(raw) > 8 {
		return 0, fmt.Errorf("invalid order id %q: too long", s)
	}
	buf := make([]byte, 8)
	copy(buf[8-len(raw):], raw)
	return OrderID(binary.BigEndian.Uint64(buf)), nil
}

// LineItem describes one item of the checkout.
type LineItem struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Image       string `json:"image,omitempty"`
	Price       string `json:"price,omitempty"`
}

// OrderMetadata carries display intent and line items.
type OrderMetadata struct {
	Intent string      `json:"intent"`
	Items  []LineItem  `json:"items"`
	Memo   null.String `json:"memo,omitempty"`
}

// HydratedFields are the fields present only once an order is hydrated.
// The nonce, intent address and destination parameters are immutable after
// hydration; only status and hash fields mutate.
type HydratedFields struct {
	IntentAddress          string        `json:"intentAddr"`
	Nonce                  uint64        `json:"nonce"`
	UsdValue               float64       `json:"usdValue"`
	BridgeTokenOutOptions  []TokenAmount `json:"bridgeTokenOutOptions"`
	SelectedBridgeTokenOut *TokenAmount  `json:"selectedBridgeTokenOut,omitempty"`

	SourceFulfillerAddress null.String  `json:"sourceFulfillerAddr,omitempty"`
	SourceTokenAmount      *TokenAmount `json:"sourceTokenAmount,omitempty"`
	SourceInitiateTxHash   null.String  `json:"sourceInitiateTxHash,omitempty"`
	SourceStartTxHash      null.String  `json:"sourceStartTxHash,omitempty"`
	SourceStatus           SourceStatus `json:"sourceStatus"`

	DestStatus           DestStatus  `json:"destStatus"`
	DestFastFinishTxHash null.String `json:"destFastFinishTxHash,omitempty"`
	DestClaimTxHash      null.String `json:"destClaimTxHash,omitempty"`
	Bounced              bool        `json:"bounced"`
	RefundTxHash         null.String `json:"refundTxHash,omitempty"`

	ExpirationTime null.Time `json:"expirationTs,omitempty"`

	// PassThrough marks orders paid in a non-bridged token: the detected
	// source transaction is itself the completion transaction.
	PassThrough bool `json:"passThrough,omitempty"`
}

// PaymentOrder is a payment intent and its two-sided lifecycle. Hydrated is
// nil for dehydrated (Sale / ChooseAmount) orders.
type PaymentOrder struct {
	Mode            OrderMode         `json:"mode"`
	ID              OrderID           `json:"id"`
	DestTokenAmount TokenAmount       `json:"destFinalCallTokenAmount"`
	DestCall        OnChainCall       `json:"destFinalCall"`
	Metadata        OrderMetadata     `json:"metadata"`
	UserMetadata    map[string]string `json:"userMetadata,omitempty"`
	ExternalID      null.String       `json:"externalId,omitempty"`
	RefundAddress   null.String       `json:"refundAddr,omitempty"`
	IntentStatus    IntentStatus      `json:"intentStatus"`
	CreatedAt       null.Time         `json:"createdAt,omitempty"`
	LastUpdatedAt   null.Time         `json:"lastUpdatedAt,omitempty"`

	Hydrated *HydratedFields `json:"hydrated,omitempty"`
}

// IsHydrated reports whether all order parameters are final.
func (o *PaymentOrder) IsHydrated() bool {
	return o.Mode == OrderModeHydrated && o.Hydrated != nil
}

// DestChainID returns the destination chain from the order's own linkage.
func (o *PaymentOrder) DestChainID() int64 {
	return o.DestTokenAmount.Token.ChainID
}

// SourceChainID returns the chain the order was actually paid from, once a
// source token is attached. Never infer this from wallet state: the paying
// wallet's current chain may differ from the chain it paid from.
func (o *PaymentOrder) SourceChainID() (int64, bool) {
	if o.Hydrated == nil || o.Hydrated.SourceTokenAmount == nil {
		return 0, false
	}
	return o.Hydrated.SourceTokenAmount.Token.ChainID, true
}

// DestTxHash returns the transaction that delivered destination funds,
// preferring the fast finish over the claim.
func (o *PaymentOrder) DestTxHash() null.String {
	if o.Hydrated == nil {
		return null.String{}
	}
	if o.Hydrated.DestFastFinishTxHash.Valid {
		return o.Hydrated.DestFastFinishTxHash
	}
	return o.Hydrated.DestClaimTxHash
}

// displayExpiryMargin keeps clients from accepting payments that would land
// after the on-chain expiry.
const displayExpiryMargin = time.Hour

// DisplayExpiresAt returns the instant after which the client stops
// accepting new source payments: one hour before the on-chain expiration.
// For orders whose validity window is shorter than the margin, the result is
// clamped to CreatedAt so it is never in the past at creation. Returns false
// when the order has no recorded expiration.
func (o *PaymentOrder) DisplayExpiresAt() (time.Time, bool) {
	if o.Hydrated == nil || !o.Hydrated.ExpirationTime.Valid {
		return time.Time{}, false
	}
	at := o.Hydrated.ExpirationTime.Time.Add(-displayExpiryMargin)
	if o.CreatedAt.Valid && at.Before(o.CreatedAt.Time) {
		at = o.CreatedAt.Time
	}
	return at, true
}
