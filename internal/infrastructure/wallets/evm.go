// Package wallets adapts host-owned wallet connectors to the opaque
// capability surface the core consumes. Each adapter validates addresses
// for its rail and builds the rail's payment transaction; signing stays
// with the host's connector.
package wallets

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"crosspay.client/internal/domain/entities"
	domainerrors "crosspay.client/internal/domain/errors"
	"crosspay.client/internal/domain/gateways"
)

// EVMTransaction is the unsigned payment handed to the connector.
type EVMTransaction struct {
	To    common.Address
	Value *big.Int
	Data  []byte
}

// EVMSigner is the narrow surface an EVM wallet connector must expose.
type EVMSigner interface {
	IsConnected() bool
	Address() common.Address
	ChainID() int64
	// SendTransaction signs and broadcasts, returning the tx hash.
	SendTransaction(ctx context.Context, tx EVMTransaction) (common.Hash, error)
}

const erc20TransferABI = `[{"name":"transfer","type":"function","stateMutability":"nonpayable","inputs":[{"name":"to","type":"address"},{"name":"value","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]}]`

var (
	erc20Once sync.Once
	erc20     abi.ABI
	erc20Err  error
)

func erc20ABIParsed() (abi.ABI, error) {
	erc20Once.Do(func() {
		erc20, erc20Err = abi.JSON(strings.NewReader(erc20TransferABI))
	})
	return erc20, erc20Err
}

// EVMWallet adapts an EVM connector to gateways.WalletProvider.
type EVMWallet struct {
	signer EVMSigner
}

// NewEVMWallet wraps a host-owned EVM connector.
func NewEVMWallet(signer EVMSigner) *EVMWallet {
	return &EVMWallet{signer: signer}
}

var _ gateways.WalletProvider = (*EVMWallet)(nil)

func (w *EVMWallet) IsConnected() bool {
	return w.signer != nil && w.signer.IsConnected()
}

func (w *EVMWallet) Address() string {
	if w.signer == nil {
		return ""
	}
	return w.signer.Address().Hex()
}

func (w *EVMWallet) ChainID() int64 {
	if w.signer == nil {
		return 0
	}
	return w.signer.ChainID()
}

// SignAndSubmit builds the payment transaction and hands it to the
// connector: a plain value transfer for the native asset, an ERC-20
// transfer call otherwise.
func (w *EVMWallet) SignAndSubmit(ctx context.Context, payment gateways.WalletPayment) (string, error) {
	if !w.IsConnected() {
		return "", domainerrors.Validation("evm wallet not connected")
	}
	if !common.IsHexAddress(payment.To) {
		return "", domainerrors.Validation(fmt.Sprintf("invalid evm recipient %q", payment.To))
	}
	amount, ok := new(big.Int).SetString(payment.Amount, 10)
	if !ok || amount.Sign() <= 0 {
		return "", domainerrors.Validation(fmt.Sprintf("invalid payment amount %q", payment.Amount))
	}

	tx, err := buildEVMTransaction(common.HexToAddress(payment.To), payment.TokenAddress, amount)
	if err != nil {
		return "", err
	}

	hash, err := w.signer.SendTransaction(ctx, tx)
	if err != nil {
		return "", domainerrors.Transient("evm wallet rejected or failed to submit", err)
	}
	return hash.Hex(), nil
}

// buildEVMTransaction packs the transfer. Empty tokenAddress (or the zero
// address) means the chain's native asset.
func buildEVMTransaction(to common.Address, tokenAddress string, amount *big.Int) (EVMTransaction, error) {
	if tokenAddress == "" || tokenAddress == (common.Address{}).Hex() {
		return EVMTransaction{To: to, Value: amount}, nil
	}
	if !common.IsHexAddress(tokenAddress) {
		return EVMTransaction{}, domainerrors.Validation(fmt.Sprintf("invalid token address %q", tokenAddress))
	}
	parsed, err := erc20ABIParsed()
	if err != nil {
		return EVMTransaction{}, domainerrors.Integrity(fmt.Sprintf("erc20 abi: %v", err))
	}
	data, err := parsed.Pack("transfer", to, amount)
	if err != nil {
		return EVMTransaction{}, domainerrors.Integrity(fmt.Sprintf("pack erc20 transfer: %v", err))
	}
	return EVMTransaction{
		To:    common.HexToAddress(tokenAddress),
		Value: new(big.Int),
		Data:  data,
	}, nil
}

// ValidRecipient reports whether addr can receive on the given chain.
func ValidRecipient(chainID int64, addr string) bool {
	return entities.ValidAddress(chainID, addr)
}
