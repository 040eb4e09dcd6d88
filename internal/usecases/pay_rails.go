package usecases

import (
	"context"
	"fmt"

	"github.com/volatiletech/null/v8"
	"go.uber.org/zap"

	"crosspay.client/internal/domain/entities"
	domainerrors "crosspay.client/internal/domain/errors"
	"crosspay.client/internal/domain/gateways"
)

// Pay-rail operations. Each one hydrates the order for its rail, performs
// the rail-specific payment step, and leaves the session's pollers to track
// the rest of the lifecycle.

// PayWithEVMToken pays the selected wallet option from the connected EVM
// wallet: hydrate, build and submit the transfer, then report the tx so the
// service can verify it on chain. Returns the submitted tx hash.
func (f *Flow) PayWithEVMToken(ctx context.Context) (string, error) {
	opt := f.Waiting().SelectedWalletOption
	if opt == nil {
		return "", domainerrors.Validation("no wallet payment option selected")
	}
	if f.kit == nil || f.kit.EVM == nil || !f.kit.EVM.IsConnected() {
		return "", domainerrors.Validation("evm wallet not connected")
	}
	wallet := f.kit.EVM

	res, err := f.session.Hydrate(ctx, null.StringFrom(wallet.Address()), null.String{})
	if err != nil {
		return "", err
	}
	order := res.Order

	// Pass-through tokens go straight to the recipient; bridged tokens pay
	// the intent address.
	to := order.Hydrated.IntentAddress
	if opt.PassThroughAddress.Valid {
		to = opt.PassThroughAddress.String
	}
	tokenAddress := opt.Required.Token.Address
	if opt.Required.Token.IsNative() {
		tokenAddress = ""
	}

	txHash, err := wallet.SignAndSubmit(ctx, gateways.WalletPayment{
		To:           to,
		TokenAddress: tokenAddress,
		Amount:       opt.Required.Amount,
	})
	if err != nil {
		return "", err
	}
	f.log.Info("evm payment submitted",
		zap.String("order_id", order.ID.String()), zap.String("tx_hash", txHash))

	f.reportSourcePayment(ctx, order, txHash, wallet.Address(), opt.Required)
	return txHash, nil
}

// PayWithSolanaToken pays from the connected Solana wallet. The payment
// transaction is built server-side; the wallet signs and broadcasts it.
func (f *Flow) PayWithSolanaToken(ctx context.Context, inputTokenMint string) (string, error) {
	if f.kit == nil || f.kit.Solana == nil || !f.kit.Solana.IsConnected() {
		return "", domainerrors.Validation("solana wallet not connected")
	}
	wallet := f.kit.Solana

	res, err := f.session.Hydrate(ctx, null.StringFrom(wallet.Address()), null.String{})
	if err != nil {
		return "", err
	}
	order := res.Order

	serialized, err := f.svc.GetSolanaPaymentTx(ctx, order.ID, wallet.Address(), inputTokenMint)
	if err != nil {
		return "", err
	}
	txHash, err := wallet.SignAndSubmit(ctx, gateways.WalletPayment{SerializedTx: serialized})
	if err != nil {
		return "", err
	}
	f.log.Info("solana payment submitted",
		zap.String("order_id", order.ID.String()), zap.String("tx_hash", txHash))

	f.reportSourcePayment(ctx, order, txHash, wallet.Address(), entities.TokenAmount{
		Token: entities.Token{ChainID: entities.SolanaChainID, Address: inputTokenMint},
	})
	return txHash, nil
}

// reportSourcePayment tells the service about a wallet-submitted tx. A
// transient verification failure is not fatal: the source poller will pick
// the payment up when the service indexes it.
func (f *Flow) reportSourcePayment(ctx context.Context, order *entities.PaymentOrder, txHash, payer string, source entities.TokenAmount) {
	err := f.session.ReportSourcePayment(ctx, gateways.SourcePaymentReport{
		OrderID:       order.ID,
		TxHash:        txHash,
		SourceChainID: source.Token.ChainID,
		PayerAddress:  payer,
		SourceToken:   source.Token.Address,
		SourceAmount:  source.Amount,
	})
	if err != nil {
		f.log.Warn("source payment report failed, falling back to detection",
			zap.String("order_id", order.ID.String()),
			zap.String("tx_hash", txHash), zap.Error(err))
		f.session.StartSourcePoll(ctx, f.polling.WalletSourceInterval)
		return
	}
	f.session.StartRefreshPoll(ctx)
}

// StartExternalPayment binds the order to the selected exchange/on-ramp and
// returns the URL to send the user to plus the message to show while
// waiting. Entering the waiting route starts the payout poll.
func (f *Flow) StartExternalPayment(ctx context.Context) (*entities.ExternalPaymentData, error) {
	opt := f.Waiting().SelectedExternalOption
	if opt == nil {
		return nil, domainerrors.Validation("no external payment option selected")
	}

	res, err := f.session.Hydrate(ctx, null.String{}, null.StringFrom(opt.ID))
	if err != nil {
		return nil, err
	}
	if res.ExternalData == nil {
		err := domainerrors.Integrity(fmt.Sprintf("no external payment data for option %s", opt.ID))
		f.toError(err.Error())
		return nil, err
	}

	f.mu.Lock()
	f.waiting.WaitingMessage = res.ExternalData.WaitingMessage
	f.mu.Unlock()
	return res.ExternalData, nil
}

// StartDepositAddressPayment hydrates the order and fetches the deposit
// address the user transfers to. Entering the waiting route starts source
// detection on the slow interval.
func (f *Flow) StartDepositAddressPayment(ctx context.Context) (*entities.DepositAddressData, error) {
	opt := f.Waiting().SelectedDepositOption
	if opt == nil {
		return nil, domainerrors.Validation("no deposit address option selected")
	}

	res, err := f.session.Hydrate(ctx, null.String{}, null.String{})
	if err != nil {
		return nil, err
	}
	return f.svc.GetDepositAddress(ctx, res.Order.ID, opt.ID)
}
