package entities

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/mr-tron/base58"
)

// ChainType classifies a chain by the wallet rail that pays on it.
type ChainType string

const (
	ChainTypeEVM     ChainType = "evm"
	ChainTypeSolana  ChainType = "solana"
	ChainTypeStellar ChainType = "stellar"
)

// Non-EVM chains carry synthetic numeric ids assigned by the order service,
// so the order's chain linkage stays a single integer across rails. EVM
// chains use their canonical network ids (1, 137, 8453, ...).
const (
	SolanaChainID  int64 = 501
	StellarChainID int64 = 1500
)

// TypeOfChain classifies a chain id. Every id outside the synthetic non-EVM
// range is an EVM network id.
func TypeOfChain(chainID int64) ChainType {
	switch chainID {
	case SolanaChainID:
		return ChainTypeSolana
	case StellarChainID:
		return ChainTypeStellar
	default:
		return ChainTypeEVM
	}
}

// ValidAddress reports whether addr is well-formed for the chain's rail:
// 0x-hex for EVM, 32-byte base58 for Solana, G-prefixed 56-char base32 for
// Stellar.
func ValidAddress(chainID int64, addr string) bool {
	switch TypeOfChain(chainID) {
	case ChainTypeSolana:
		raw, err := base58.Decode(addr)
		return err == nil && len(raw) == 32
	case ChainTypeStellar:
		return validStellarAddress(addr)
	default:
		return common.IsHexAddress(addr)
	}
}

// validStellarAddress checks the shape of an ed25519 Stellar public key.
// The core carries Stellar keys as opaque validated strings; checksum
// verification belongs to the wallet provider that signs with them.
func validStellarAddress(addr string) bool {
	if len(addr) != 56 || addr[0] != 'G' {
		return false
	}
	for i := 1; i < len(addr); i++ {
		c := addr[i]
		if (c < 'A' || c > 'Z') && (c < '2' || c > '7') {
			return false
		}
	}
	return true
}
