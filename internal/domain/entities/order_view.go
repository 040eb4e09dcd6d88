package entities

import (
	"strconv"

	"github.com/volatiletech/null/v8"

	domainerrors "crosspay.client/internal/domain/errors"
)

// OrderDisplay is the human-facing summary line of a payment.
type OrderDisplay struct {
	Intent       string `json:"intent"`
	PaymentValue string `json:"paymentValue"`
	Currency     string `json:"currency"`
}

// SourceView describes the user's payment leg for display.
type SourceView struct {
	PayerAddress null.String `json:"payerAddress"`
	TxHash       null.String `json:"txHash"`
	ChainID      string      `json:"chainId"`
	AmountUnits  string      `json:"amountUnits"`
	TokenSymbol  string      `json:"tokenSymbol"`
	TokenAddress string      `json:"tokenAddress"`
}

// DestinationView describes the payout leg for display.
type DestinationView struct {
	DestinationAddress string      `json:"destinationAddress"`
	TxHash             null.String `json:"txHash"`
	ChainID            string      `json:"chainId"`
	AmountUnits        string      `json:"amountUnits"`
	TokenSymbol        string      `json:"tokenSymbol"`
	TokenAddress       string      `json:"tokenAddress"`
	CallData           string      `json:"callData,omitempty"`
}

// OrderView is the projection of an order handed to the host application
// inside payment events.
type OrderView struct {
	ID          string            `json:"id"`
	Status      IntentStatus      `json:"status"`
	CreatedAt   string            `json:"createdAt"`
	Display     OrderDisplay      `json:"display"`
	Source      *SourceView       `json:"source"`
	Destination DestinationView   `json:"destination"`
	ExternalID  null.String       `json:"externalId,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// View builds the host-facing projection. An order without a persisted
// createdAt is a server data integrity violation and is reported, never
// defaulted: downstream display relies on the timestamp.
func (o *PaymentOrder) View() (*OrderView, error) {
	if !o.CreatedAt.Valid {
		return nil, domainerrors.MissingTimestamp(o.ID.String())
	}

	view := &OrderView{
		ID:        o.ID.String(),
		Status:    o.IntentStatus,
		CreatedAt: strconv.FormatInt(o.CreatedAt.Time.Unix(), 10),
		Display: OrderDisplay{
			Intent:       o.Metadata.Intent,
			PaymentValue: strconv.FormatFloat(o.DestTokenAmount.Usd, 'f', 2, 64),
			Currency:     "USD",
		},
		Destination: DestinationView{
			DestinationAddress: o.DestCall.To.Hex(),
			TxHash:             o.DestTxHash(),
			ChainID:            strconv.FormatInt(o.DestChainID(), 10),
			AmountUnits:        o.DestTokenAmount.Units(),
			TokenSymbol:        o.DestTokenAmount.Token.Symbol,
			TokenAddress:       o.DestTokenAmount.Token.Address,
			CallData:           o.DestCall.Data.String(),
		},
		ExternalID: o.ExternalID,
		Metadata:   o.UserMetadata,
	}

	if o.Hydrated != nil && o.Hydrated.SourceTokenAmount != nil {
		src := o.Hydrated.SourceTokenAmount
		chainID, ok := o.SourceChainID()
		if !ok {
			return nil, domainerrors.Integrity("source token attached without chain id on order " + o.ID.String())
		}
		view.Source = &SourceView{
			PayerAddress: o.Hydrated.SourceFulfillerAddress,
			TxHash:       o.Hydrated.SourceInitiateTxHash,
			ChainID:      strconv.FormatInt(chainID, 10),
			AmountUnits:  src.Units(),
			TokenSymbol:  src.Token.Symbol,
			TokenAddress: src.Token.Address,
		}
	}

	return view, nil
}
