package usecases_test

import (
	"context"

	"github.com/stretchr/testify/mock"

	"crosspay.client/internal/domain/entities"
	"crosspay.client/internal/domain/gateways"
)

// MockOrderService mocks the remote order API.
type MockOrderService struct {
	mock.Mock
}

func (m *MockOrderService) PreviewOrder(ctx context.Context, params gateways.PayParams) (*entities.PaymentOrder, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.PaymentOrder), args.Error(1)
}

func (m *MockOrderService) GetOrder(ctx context.Context, id entities.OrderID) (*entities.PaymentOrder, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.PaymentOrder), args.Error(1)
}

func (m *MockOrderService) CreateOrHydrate(ctx context.Context, input gateways.HydrateInput) (*gateways.HydrateResult, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateways.HydrateResult), args.Error(1)
}

func (m *MockOrderService) FindSourcePayment(ctx context.Context, id entities.OrderID) (*gateways.SourcePayment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateways.SourcePayment), args.Error(1)
}

func (m *MockOrderService) GetPayoutStatus(ctx context.Context, paymentID string) (*gateways.PayoutStatus, error) {
	args := m.Called(ctx, paymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateways.PayoutStatus), args.Error(1)
}

func (m *MockOrderService) ProcessSourcePayment(ctx context.Context, report gateways.SourcePaymentReport) (*entities.PaymentOrder, error) {
	args := m.Called(ctx, report)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.PaymentOrder), args.Error(1)
}

func (m *MockOrderService) GetDepositAddress(ctx context.Context, id entities.OrderID, option string) (*entities.DepositAddressData, error) {
	args := m.Called(ctx, id, option)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.DepositAddressData), args.Error(1)
}

func (m *MockOrderService) GetOrderUsdLimits(ctx context.Context) (map[int64]float64, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[int64]float64), args.Error(1)
}

func (m *MockOrderService) GetSolanaPaymentTx(ctx context.Context, id entities.OrderID, payerPubKey, inputToken string) ([]byte, error) {
	args := m.Called(ctx, id, payerPubKey, inputToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

// fakeWallet is a stub wallet capability provider.
type fakeWallet struct {
	connected bool
	addr      string
	chainID   int64
	txHash    string
	submitErr error
}

func (w *fakeWallet) IsConnected() bool { return w.connected }
func (w *fakeWallet) Address() string   { return w.addr }
func (w *fakeWallet) ChainID() int64    { return w.chainID }

func (w *fakeWallet) SignAndSubmit(ctx context.Context, payment gateways.WalletPayment) (string, error) {
	if w.submitErr != nil {
		return "", w.submitErr
	}
	return w.txHash, nil
}
