package wallets

import (
	"context"

	"github.com/gagliardetto/solana-go"

	"crosspay.client/internal/domain/entities"
	domainerrors "crosspay.client/internal/domain/errors"
	"crosspay.client/internal/domain/gateways"
)

// SolanaSigner is the narrow surface a Solana wallet connector must expose.
// Solana payment transactions are built server-side; the wallet only signs
// and broadcasts them.
type SolanaSigner interface {
	IsConnected() bool
	PublicKey() solana.PublicKey
	SignAndSend(ctx context.Context, serializedTx []byte) (solana.Signature, error)
}

// SolanaWallet adapts a Solana connector to gateways.WalletProvider.
type SolanaWallet struct {
	signer SolanaSigner
}

// NewSolanaWallet wraps a host-owned Solana connector.
func NewSolanaWallet(signer SolanaSigner) *SolanaWallet {
	return &SolanaWallet{signer: signer}
}

var _ gateways.WalletProvider = (*SolanaWallet)(nil)

func (w *SolanaWallet) IsConnected() bool {
	return w.signer != nil && w.signer.IsConnected()
}

func (w *SolanaWallet) Address() string {
	if w.signer == nil {
		return ""
	}
	return w.signer.PublicKey().String()
}

func (w *SolanaWallet) ChainID() int64 {
	return entities.SolanaChainID
}

// SignAndSubmit signs and broadcasts the server-built transaction. The
// returned hash is the base58 signature.
func (w *SolanaWallet) SignAndSubmit(ctx context.Context, payment gateways.WalletPayment) (string, error) {
	if !w.IsConnected() {
		return "", domainerrors.Validation("solana wallet not connected")
	}
	if len(payment.SerializedTx) == 0 {
		return "", domainerrors.Validation("solana payment requires a server-built transaction")
	}
	sig, err := w.signer.SignAndSend(ctx, payment.SerializedTx)
	if err != nil {
		return "", domainerrors.Transient("solana wallet rejected or failed to submit", err)
	}
	return sig.String(), nil
}
