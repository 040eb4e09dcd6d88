package entities

// EventType identifies payment events emitted to the host application.
type EventType string

const (
	EventPaymentStarted   EventType = "payment_started"
	EventPaymentCompleted EventType = "payment_completed"
	EventPaymentBounced   EventType = "payment_bounced"
	EventPaymentRefunded  EventType = "payment_refunded"
)

// PaymentEvent is delivered to the host application's callbacks. ChainID is
// the source chain for payment_started, the destination chain otherwise.
// TxHash is hex for EVM events and base58 for Solana source transactions.
type PaymentEvent struct {
	Type      EventType  `json:"type"`
	PaymentID string     `json:"paymentId"`
	ChainID   int64      `json:"chainId"`
	TxHash    string     `json:"txHash"`
	Payment   *OrderView `json:"payment"`
}
