package wallets

import (
	"context"
	"fmt"

	"crosspay.client/internal/domain/entities"
	domainerrors "crosspay.client/internal/domain/errors"
	"crosspay.client/internal/domain/gateways"
)

// StellarPayment is the payment handed to the Stellar connector. Token is
// the asset in "CODE:issuer" form, empty for native XLM.
type StellarPayment struct {
	To     string
	Token  string
	Amount string
}

// StellarSigner is the narrow surface a Stellar wallet connector must
// expose. Keys and transaction envelopes stay inside the connector; the
// core never inspects them.
type StellarSigner interface {
	IsConnected() bool
	Address() string
	SubmitPayment(ctx context.Context, payment StellarPayment) (string, error)
}

// StellarWallet adapts a Stellar connector to gateways.WalletProvider.
type StellarWallet struct {
	signer StellarSigner
}

// NewStellarWallet wraps a host-owned Stellar connector.
func NewStellarWallet(signer StellarSigner) *StellarWallet {
	return &StellarWallet{signer: signer}
}

var _ gateways.WalletProvider = (*StellarWallet)(nil)

func (w *StellarWallet) IsConnected() bool {
	return w.signer != nil && w.signer.IsConnected()
}

func (w *StellarWallet) Address() string {
	if w.signer == nil {
		return ""
	}
	return w.signer.Address()
}

func (w *StellarWallet) ChainID() int64 {
	return entities.StellarChainID
}

// SignAndSubmit submits the payment through the connector and returns the
// transaction hash.
func (w *StellarWallet) SignAndSubmit(ctx context.Context, payment gateways.WalletPayment) (string, error) {
	if !w.IsConnected() {
		return "", domainerrors.Validation("stellar wallet not connected")
	}
	if !entities.ValidAddress(entities.StellarChainID, payment.To) {
		return "", domainerrors.Validation(fmt.Sprintf("invalid stellar recipient %q", payment.To))
	}
	hash, err := w.signer.SubmitPayment(ctx, StellarPayment{
		To:     payment.To,
		Token:  payment.TokenAddress,
		Amount: payment.Amount,
	})
	if err != nil {
		return "", domainerrors.Transient("stellar wallet rejected or failed to submit", err)
	}
	return hash, nil
}
