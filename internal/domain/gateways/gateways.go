package gateways

import (
	"context"

	"github.com/volatiletech/null/v8"

	"crosspay.client/internal/domain/entities"
)

// PayParams describe the payment to create. The order is created only after
// the user commits to pay.
type PayParams struct {
	AppID           string            `json:"appId"`
	ToChain         int64             `json:"toChain"`
	ToToken         string            `json:"toToken"`
	ToUnits         null.String       `json:"toUnits,omitempty"` // null: user picks an amount
	ToAddress       string            `json:"toAddress"`
	ToCallData      string            `json:"toCallData,omitempty"`
	Intent          string            `json:"intent,omitempty"`
	ExternalID      null.String       `json:"externalId,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`
	RefundAddress   null.String       `json:"refundAddress,omitempty"`
	PreferredChains []int64           `json:"preferredChains,omitempty"`
}

// HydrateInput finalizes a dehydrated order.
type HydrateInput struct {
	OrderID               entities.OrderID `json:"orderId"`
	RefundAddress         null.String      `json:"refundAddress,omitempty"`
	ExternalPaymentOption null.String      `json:"externalPaymentOption,omitempty"`
}

// HydrateResult is the hydrated order plus rail data when an external
// payment option was requested.
type HydrateResult struct {
	Order        *entities.PaymentOrder        `json:"hydratedOrder"`
	ExternalData *entities.ExternalPaymentData `json:"externalPaymentOptionData,omitempty"`
}

// SourcePaymentReport is sent after the wallet submits the source tx.
type SourcePaymentReport struct {
	OrderID       entities.OrderID `json:"orderId"`
	TxHash        string           `json:"sourceInitiateTxHash"`
	SourceChainID int64            `json:"sourceChainId"`
	PayerAddress  string           `json:"sourceFulfillerAddr"`
	SourceToken   string           `json:"sourceToken"`
	SourceAmount  string           `json:"sourceAmount"`
}

// SourcePayment is a detected payment into the order's intent address.
type SourcePayment struct {
	TxHash       string `json:"txHash"`
	ChainID      int64  `json:"chainId"`
	PayerAddress string `json:"payerAddress"`
	TokenAddress string `json:"tokenAddress"`
	Amount       string `json:"amount"`
}

// PayoutStatus is the destination leg of an external-rail payment.
type PayoutStatus struct {
	PayoutTransactionHash null.String `json:"payoutTransactionHash,omitempty"`
	Destination           string      `json:"destination"`
}

// OrderService is the remote order API. All calls are asynchronous I/O and
// may fail with network or validation errors; pollers retry transient
// failures on their interval.
type OrderService interface {
	// PreviewOrder creates an in-memory (unsaved) order from pay params.
	PreviewOrder(ctx context.Context, params PayParams) (*entities.PaymentOrder, error)
	// GetOrder loads an order by id.
	GetOrder(ctx context.Context, id entities.OrderID) (*entities.PaymentOrder, error)
	// CreateOrHydrate persists and finalizes the order for the chosen rail.
	CreateOrHydrate(ctx context.Context, input HydrateInput) (*HydrateResult, error)
	// FindSourcePayment returns the detected source payment, or nil while
	// none has been observed. Polled.
	FindSourcePayment(ctx context.Context, id entities.OrderID) (*SourcePayment, error)
	// GetPayoutStatus returns the destination payout progress. Polled.
	GetPayoutStatus(ctx context.Context, paymentID string) (*PayoutStatus, error)
	// ProcessSourcePayment reports a wallet-submitted source tx and returns
	// the refreshed order.
	ProcessSourcePayment(ctx context.Context, report SourcePaymentReport) (*entities.PaymentOrder, error)
	// GetDepositAddress returns a deposit address bound to the order.
	GetDepositAddress(ctx context.Context, id entities.OrderID, option string) (*entities.DepositAddressData, error)
	// GetOrderUsdLimits returns the per-destination-chain order ceiling.
	GetOrderUsdLimits(ctx context.Context) (map[int64]float64, error)
	// GetSolanaPaymentTx returns a serialized transaction for the user's
	// Solana wallet to sign and submit.
	GetSolanaPaymentTx(ctx context.Context, id entities.OrderID, payerPubKey, inputToken string) ([]byte, error)
}

// WalletProvider is an opaque wallet/chain capability. The core never
// inspects provider internals; EVM, Solana and Stellar connectors all reduce
// to this surface.
type WalletProvider interface {
	IsConnected() bool
	Address() string
	ChainID() int64
	// SignAndSubmit signs and broadcasts a payment, returning the tx hash
	// (hex on EVM, base58 on Solana).
	SignAndSubmit(ctx context.Context, payment WalletPayment) (string, error)
}

// WalletPayment is a rail-agnostic payment instruction for a wallet.
type WalletPayment struct {
	// To is the recipient: intent address, or pass-through destination.
	To string
	// TokenAddress is empty for the chain's native asset.
	TokenAddress string
	// Amount in raw base units, decimal string.
	Amount string
	// SerializedTx, when set, is a pre-built transaction (Solana) that the
	// wallet signs and submits as-is.
	SerializedTx []byte
}

// CheckoutPreference is the persisted per-configuration client state. It is
// a best-effort convenience cache, not an integrity-critical store.
type CheckoutPreference struct {
	RecipientAddress string      `json:"recipientAddress"`
	ChainID          int64       `json:"chainId"`
	TokenAddress     string      `json:"tokenAddress"`
	Amount           null.String `json:"amount,omitempty"`
}

// PreferenceStore persists checkout preferences under named configurations.
type PreferenceStore interface {
	Save(ctx context.Context, name string, pref *CheckoutPreference) error
	// Load returns nil without error when no valid preference is stored.
	Load(ctx context.Context, name string) (*CheckoutPreference, error)
}
