package entities

import "github.com/volatiletech/null/v8"

// WalletPaymentOption is a payable token balance in a connected wallet.
type WalletPaymentOption struct {
	Balance         TokenAmount `json:"balance"`
	Required        TokenAmount `json:"required"`
	MinimumRequired TokenAmount `json:"minimumRequired"`
	Fees            TokenAmount `json:"fees"`
	DisabledReason  string      `json:"disabledReason,omitempty"`

	// PassThroughAddress is set for non-bridged tokens that are sent
	// directly to the recipient instead of the intent address.
	PassThroughAddress null.String `json:"passthroughAddress,omitempty"`
}

// Disabled reports whether the option can currently be selected.
func (o WalletPaymentOption) Disabled() bool {
	return o.DisabledReason != ""
}

// ExternalOptionKind classifies external payment options.
type ExternalOptionKind string

const (
	ExternalOptionKindExternal ExternalOptionKind = "external"
	ExternalOptionKindExchange ExternalOptionKind = "exchange"
)

// ExternalPaymentOption is an exchange or on-ramp rail.
type ExternalPaymentOption struct {
	ID           string             `json:"id"`
	Kind         ExternalOptionKind `json:"optionType"`
	CTA          string             `json:"cta"`
	LogoURI      string             `json:"logoURI"`
	PaymentToken Token              `json:"paymentToken"`
	Disabled     bool               `json:"disabled"`
	Message      string             `json:"message,omitempty"`
	MinimumUsd   float64            `json:"minimumUsd,omitempty"`
}

// ExternalPaymentData is returned once an order is bound to an external
// rail: the URL to send the user to and the message to show while waiting.
type ExternalPaymentData struct {
	URL            string `json:"url"`
	WaitingMessage string `json:"waitingMessage"`
}

// DepositAddressOption is a chain the user can pay by plain transfer.
type DepositAddressOption struct {
	ID         string  `json:"id"`
	LogoURI    string  `json:"logoURI"`
	MinimumUsd float64 `json:"minimumUsd"`
}

// DepositAddressData is a generated deposit address with its exact amount.
type DepositAddressData struct {
	Address           string `json:"address"`
	URI               string `json:"uri"`
	Amount            string `json:"amount"`
	Suffix            string `json:"suffix"`
	ExpirationSeconds int64  `json:"expirationS"`
}
