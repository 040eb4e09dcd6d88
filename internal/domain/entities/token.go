package entities

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/shopspring/decimal"
)

// Token describes an asset on some chain. Address format depends on the
// chain: 0x-hex for EVM, base58 for Solana, G... for Stellar.
type Token struct {
	ChainID         int64   `json:"chainId"`
	Address         string  `json:"token"`
	Symbol          string  `json:"symbol"`
	Decimals        int32   `json:"decimals"`
	DisplayDecimals int32   `json:"displayDecimals"`
	UsdPrice        float64 `json:"usd"`
	PriceFromUsd    float64 `json:"priceFromUsd"`
	MaxAcceptUsd    float64 `json:"maxAcceptUsd"`
	MaxSendUsd      float64 `json:"maxSendUsd"`
	FiatSymbol      string  `json:"fiatSymbol,omitempty"`
}

// IsNative reports whether the token is the chain's native asset,
// represented by the zero address on EVM chains.
func (t Token) IsNative() bool {
	return t.Address == common.Address{}.Hex() || t.Address == "0x0000000000000000000000000000000000000000"
}

// TokenAmount is an amount of a token in base units, plus its USD value.
// Amount is a decimal string of the raw integer amount.
type TokenAmount struct {
	Token  Token   `json:"token"`
	Amount string  `json:"amount"`
	Usd    float64 `json:"usd"`
}

// BigInt parses the raw amount. Returns false if the amount string is not a
// valid non-negative integer.
func (a TokenAmount) BigInt() (*big.Int, bool) {
	n, ok := new(big.Int).SetString(a.Amount, 10)
	if !ok || n.Sign() < 0 {
		return nil, false
	}
	return n, true
}

// Units formats the raw amount in whole token units, eg "10.5" for
// 10500000 of a 6-decimal token. Invalid amounts format as "0".
func (a TokenAmount) Units() string {
	n, ok := a.BigInt()
	if !ok {
		return "0"
	}
	return decimal.NewFromBigInt(n, -a.Token.Decimals).String()
}

// TokenAmountFromUsd converts a USD value into a TokenAmount using the
// token's priceFromUsd quote.
func TokenAmountFromUsd(token Token, usd float64) TokenAmount {
	units := decimal.NewFromFloat(usd).Mul(decimal.NewFromFloat(token.PriceFromUsd))
	raw := units.Shift(token.Decimals).Truncate(0)
	return TokenAmount{
		Token:  token,
		Amount: raw.BigInt().String(),
		Usd:    usd,
	}
}

// OnChainCall is the destination transfer or contract call of an order.
// Empty Data means a plain transfer.
type OnChainCall struct {
	To    common.Address `json:"to"`
	Data  hexutil.Bytes  `json:"data"`
	Value *big.Int       `json:"value"`
}
