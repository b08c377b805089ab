package gateway

import (
	"context"

	"github.com/shopspring/decimal"
)

// =====================================================
// GATEWAY INTERFACE
// =====================================================

// MpesaGateway integrates the STK push provider through the backend
// gateway proxy.
type MpesaGateway interface {
	// STKPush asks the provider to prompt the payer's device.
	// A nil error means the push was accepted, not that the payment
	// succeeded; confirmation arrives asynchronously.
	STKPush(ctx context.Context, req StkPushRequest) (*StkPushResponse, error)

	// QueryStatus actively asks the provider for the current state of a
	// previously initiated push. Used as the fallback when the async
	// callback is delayed or lost.
	QueryStatus(ctx context.Context, checkoutRequestID string) (*StkQueryResponse, error)
}

// =====================================================
// REQUEST/RESPONSE TYPES
// =====================================================

// StkPushRequest initiates a push prompt.
type StkPushRequest struct {
	Amount              decimal.Decimal // whole KES, no cents on M-Pesa
	Phone               string          // normalized 254XXXXXXXXX
	AccountRef          string          // shown on the payer's statement
	Description         string          // human readable reference
	OrderID             string          // set for checkout intents
	WalletTransactionID string          // set for wallet deposits
}

// StkPushResponse is the provider acknowledgement of the push request.
type StkPushResponse struct {
	CheckoutRequestID string // correlates all later queries and callbacks
	ResponseCode      string // "0" = push accepted
	CustomerMessage   string
}

// StkQueryResponse is the provider's answer to an active status query.
type StkQueryResponse struct {
	ResultCode string // "0" = payment confirmed; other codes = explicit failure
	ResultDesc string
	Receipt    string // receipt number when the provider returns one

	// Pending is set when the provider answers with an errorCode meaning
	// "the transaction is still being processed". Not a failure.
	Pending bool
}
