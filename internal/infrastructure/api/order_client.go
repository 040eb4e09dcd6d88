// Package api implements the order service gateway over its HTTP API.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"go.uber.org/zap"

	"crosspay.client/internal/config"
	"crosspay.client/internal/domain/entities"
	domainerrors "crosspay.client/internal/domain/errors"
	"crosspay.client/internal/domain/gateways"
)

// OrderClient is the HTTP implementation of gateways.OrderService.
type OrderClient struct {
	baseURL    string
	appID      string
	httpClient *http.Client
	log        *zap.Logger
}

// NewOrderClient creates a client for the order service API.
func NewOrderClient(cfg config.APIConfig, log *zap.Logger) *OrderClient {
	if log == nil {
		log = zap.NewNop()
	}
	return &OrderClient{
		baseURL: cfg.BaseURL,
		appID:   cfg.AppID,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		log: log,
	}
}

var _ gateways.OrderService = (*OrderClient)(nil)

// apiError is the error envelope the order service returns on 4xx/5xx.
type apiError struct {
	Message string `json:"message"`
}

// do sends one request and decodes the response into out. Network failures
// and 5xx responses are transient (pollers retry them); 4xx responses are
// validation failures and are returned as-is.
func (c *OrderClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request %s: %w", path, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request %s: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.appID != "" {
		req.Header.Set("X-App-Id", c.appID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domainerrors.Transient(fmt.Sprintf("order service unreachable: %s %s", method, path), err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return domainerrors.Transient(fmt.Sprintf("read response: %s %s", method, path), err)
	}

	if resp.StatusCode >= 400 {
		var envelope apiError
		_ = json.Unmarshal(raw, &envelope)
		if envelope.Message == "" {
			envelope.Message = fmt.Sprintf("order service returned %d", resp.StatusCode)
		}
		c.log.Warn("order service error",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("message", envelope.Message))
		if resp.StatusCode >= 500 {
			return domainerrors.Transient(envelope.Message, fmt.Errorf("status %d", resp.StatusCode))
		}
		if resp.StatusCode == http.StatusNotFound {
			return domainerrors.NewAppError(envelope.Message, domainerrors.ErrNotFound)
		}
		return domainerrors.Validation(envelope.Message)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return domainerrors.Integrity(fmt.Sprintf("malformed response from %s: %v", path, err))
	}
	return nil
}

// PreviewOrder creates an unsaved order from pay params.
func (c *OrderClient) PreviewOrder(ctx context.Context, params gateways.PayParams) (*entities.PaymentOrder, error) {
	var order entities.PaymentOrder
	if err := c.do(ctx, http.MethodPost, "/order/preview", params, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrder loads an order by id.
func (c *OrderClient) GetOrder(ctx context.Context, id entities.OrderID) (*entities.PaymentOrder, error) {
	var order entities.PaymentOrder
	if err := c.do(ctx, http.MethodGet, "/order/"+id.String(), nil, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// CreateOrHydrate persists and finalizes the order for the chosen rail.
func (c *OrderClient) CreateOrHydrate(ctx context.Context, input gateways.HydrateInput) (*gateways.HydrateResult, error) {
	var res gateways.HydrateResult
	if err := c.do(ctx, http.MethodPost, "/order/hydrate", input, &res); err != nil {
		return nil, err
	}
	if res.Order == nil {
		return nil, domainerrors.Integrity("hydrate response carried no order")
	}
	return &res, nil
}

// sourcePaymentEnvelope distinguishes "no payment yet" (payment: null) from
// a malformed response.
type sourcePaymentEnvelope struct {
	Payment *gateways.SourcePayment `json:"payment"`
}

// FindSourcePayment returns the detected source payment, or nil while none
// has been observed.
func (c *OrderClient) FindSourcePayment(ctx context.Context, id entities.OrderID) (*gateways.SourcePayment, error) {
	var envelope sourcePaymentEnvelope
	if err := c.do(ctx, http.MethodGet, "/order/"+id.String()+"/source-payment", nil, &envelope); err != nil {
		return nil, err
	}
	return envelope.Payment, nil
}

// GetPayoutStatus returns the destination payout progress.
func (c *OrderClient) GetPayoutStatus(ctx context.Context, paymentID string) (*gateways.PayoutStatus, error) {
	var status gateways.PayoutStatus
	path := "/payment/" + url.PathEscape(paymentID) + "/payout"
	if err := c.do(ctx, http.MethodGet, path, nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// ProcessSourcePayment reports a wallet-submitted source tx and returns the
// refreshed order.
func (c *OrderClient) ProcessSourcePayment(ctx context.Context, report gateways.SourcePaymentReport) (*entities.PaymentOrder, error) {
	var order entities.PaymentOrder
	if err := c.do(ctx, http.MethodPost, "/order/source-payment", report, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// GetDepositAddress returns a deposit address bound to the order.
func (c *OrderClient) GetDepositAddress(ctx context.Context, id entities.OrderID, option string) (*entities.DepositAddressData, error) {
	var data entities.DepositAddressData
	path := "/order/" + id.String() + "/deposit-address?option=" + url.QueryEscape(option)
	if err := c.do(ctx, http.MethodGet, path, nil, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// usdLimitsEnvelope maps destination chain id to USD ceiling. JSON object
// keys are strings, so ids are parsed on the way out.
type usdLimitsEnvelope struct {
	Limits map[string]float64 `json:"limits"`
}

// GetOrderUsdLimits returns the per-destination-chain order ceiling.
func (c *OrderClient) GetOrderUsdLimits(ctx context.Context) (map[int64]float64, error) {
	var envelope usdLimitsEnvelope
	if err := c.do(ctx, http.MethodGet, "/order/usd-limits", nil, &envelope); err != nil {
		return nil, err
	}
	limits := make(map[int64]float64, len(envelope.Limits))
	for key, value := range envelope.Limits {
		chainID, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			return nil, domainerrors.Integrity(fmt.Sprintf("usd limits: bad chain id %q", key))
		}
		limits[chainID] = value
	}
	return limits, nil
}

// solanaTxRequest asks the service to build the payment transaction for the
// user's wallet to sign.
type solanaTxRequest struct {
	OrderID     entities.OrderID `json:"orderId"`
	PayerPubKey string           `json:"payerPubKey"`
	InputToken  string           `json:"inputToken"`
}

type solanaTxEnvelope struct {
	SerializedTx []byte `json:"serializedTx"`
}

// GetSolanaPaymentTx returns a serialized transaction for the user's Solana
// wallet to sign and submit.
func (c *OrderClient) GetSolanaPaymentTx(ctx context.Context, id entities.OrderID, payerPubKey, inputToken string) ([]byte, error) {
	var envelope solanaTxEnvelope
	req := solanaTxRequest{OrderID: id, PayerPubKey: payerPubKey, InputToken: inputToken}
	if err := c.do(ctx, http.MethodPost, "/order/solana-tx", req, &envelope); err != nil {
		return nil, err
	}
	if len(envelope.SerializedTx) == 0 {
		return nil, domainerrors.Integrity("solana payment tx response was empty")
	}
	return envelope.SerializedTx, nil
}
