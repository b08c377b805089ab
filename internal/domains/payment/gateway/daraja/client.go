package daraja

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"sokoni-backend/internal/domains/payment/gateway"
	"sokoni-backend/internal/domains/payment/model"
)

// =====================================================
// DARAJA CLIENT IMPLEMENTATION
// =====================================================

type Client struct {
	config     *Config
	httpClient *http.Client
}

// NewClient creates a new Daraja proxy client
func NewClient(config *Config) (gateway.MpesaGateway, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("daraja base URL is required")
	}
	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}, nil
}

// =====================================================
// STK PUSH
// =====================================================

type stkPushPayload struct {
	Amount              string `json:"amount"`
	Phone               string `json:"phone"`
	AccountRef          string `json:"accountRef"`
	Description         string `json:"description,omitempty"`
	OrderID             string `json:"orderId,omitempty"`
	WalletTransactionID string `json:"walletTransactionId,omitempty"`
	ShortCode           string `json:"shortCode"`
	CallbackURL         string `json:"callbackUrl"`
}

type stkPushResult struct {
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	CustomerMessage     string `json:"CustomerMessage"`
	ErrorMessage        string `json:"errorMessage"`
}

// STKPush sends the push request to the Daraja proxy
func (c *Client) STKPush(
	ctx context.Context,
	req gateway.StkPushRequest,
) (*gateway.StkPushResponse, error) {
	// Step 1: Build request body. M-Pesa takes whole shillings.
	payload := stkPushPayload{
		Amount:              req.Amount.StringFixed(0),
		Phone:               req.Phone,
		AccountRef:          req.AccountRef,
		Description:         req.Description,
		OrderID:             req.OrderID,
		WalletTransactionID: req.WalletTransactionID,
		ShortCode:           c.config.ShortCode,
		CallbackURL:         c.config.CallbackURL,
	}

	bodyJSON, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal push request: %w", err)
	}

	// Step 2: Call the proxy
	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.config.GetPushURL(), bytes.NewReader(bodyJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	// Step 3: Parse response
	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read push response: %w", err)
	}

	var result stkPushResult
	if err := json.Unmarshal(bodyBytes, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal push response: %w", err)
	}

	// Step 4: Check acknowledgement. Only ResponseCode "0" means the
	// prompt actually reached the payer's device.
	if result.ResponseCode != ResponseCodeAccepted {
		reason := result.ErrorMessage
		if reason == "" {
			reason = result.ResponseDescription
		}
		return nil, model.NewPushRejectedError(reason)
	}

	if result.CheckoutRequestID == "" {
		return nil, fmt.Errorf("push accepted but CheckoutRequestID missing")
	}

	return &gateway.StkPushResponse{
		CheckoutRequestID: result.CheckoutRequestID,
		ResponseCode:      result.ResponseCode,
		CustomerMessage:   result.CustomerMessage,
	}, nil
}

// =====================================================
// ACTIVE STATUS QUERY
// =====================================================

type stkQueryPayload struct {
	CheckoutRequestID string `json:"checkoutRequestID"`
	ShortCode         string `json:"shortCode"`
}

type stkQueryResult struct {
	ResultCode   string `json:"ResultCode"`
	ResultDesc   string `json:"ResultDesc"`
	MpesaReceipt string `json:"MpesaReceiptNumber"`
	ErrorCode    string `json:"errorCode"`
	ErrorMessage string `json:"errorMessage"`
}

// QueryStatus asks the provider what happened to a push.
// An errorCode in the response means the transaction is still being
// processed on the provider side. That is reported as Pending, never
// as a failure.
func (c *Client) QueryStatus(
	ctx context.Context,
	checkoutRequestID string,
) (*gateway.StkQueryResponse, error) {
	payload := stkQueryPayload{
		CheckoutRequestID: checkoutRequestID,
		ShortCode:         c.config.ShortCode,
	}

	bodyJSON, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal query request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.config.GetQueryURL(), bytes.NewReader(bodyJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read query response: %w", err)
	}

	var result stkQueryResult
	if err := json.Unmarshal(bodyBytes, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal query response: %w", err)
	}

	if result.ErrorCode != "" {
		return &gateway.StkQueryResponse{
			Pending:    true,
			ResultDesc: result.ErrorMessage,
		}, nil
	}

	return &gateway.StkQueryResponse{
		ResultCode: result.ResultCode,
		ResultDesc: result.ResultDesc,
		Receipt:    result.MpesaReceipt,
	}, nil
}
