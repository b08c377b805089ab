package model

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestTerminalTokenClassification(t *testing.T) {
	t.Parallel()

	tests := []struct {
		token       string
		wantSuccess bool
		wantFailure bool
	}{
		{token: "paid", wantSuccess: true},
		{token: "completed", wantSuccess: true},
		{token: "active", wantSuccess: true},
		{token: "success", wantSuccess: true},
		{token: "0", wantSuccess: true},
		{token: "failed", wantFailure: true},
		{token: "cancelled", wantFailure: true},
		{token: "pending"},
		{token: ""},
		{token: "PAID"}, // tokens are matched exactly
		{token: "processing"},
	}

	for _, tt := range tests {
		t.Run("token_"+tt.token, func(t *testing.T) {
			t.Parallel()

			require.Equal(t, tt.wantSuccess, IsTerminalSuccessToken(tt.token))
			require.Equal(t, tt.wantFailure, IsTerminalFailureToken(tt.token))
			require.Equal(t, tt.wantSuccess || tt.wantFailure, IsTerminalToken(tt.token))
		})
	}
}

func TestIsMpesaFailureCode(t *testing.T) {
	t.Parallel()

	require.False(t, IsMpesaFailureCode(""))
	require.False(t, IsMpesaFailureCode("0"))
	require.True(t, IsMpesaFailureCode("1"))
	require.True(t, IsMpesaFailureCode("1032"))
	require.True(t, IsMpesaFailureCode("1037"))
	// Unknown codes are not treated as terminal failures.
	require.False(t, IsMpesaFailureCode("9999"))
}

func TestNormalizePhone(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "local safaricom", input: "0712345678", want: "254712345678"},
		{name: "local airtel range", input: "0110345678", want: "254110345678"},
		{name: "international", input: "254712345678", want: "254712345678"},
		{name: "plus prefix", input: "+254712345678", want: "254712345678"},
		{name: "spaces stripped", input: "0712 345 678", want: "254712345678"},
		{name: "too short", input: "071234567", wantErr: true},
		{name: "too long", input: "07123456789", wantErr: true},
		{name: "landline range", input: "0212345678", wantErr: true},
		{name: "letters", input: "07123x5678", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := NormalizePhone(tt.input)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidPhone)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestIntentTerminalHelpers(t *testing.T) {
	t.Parallel()

	intent := &PaymentIntent{
		ID:     uuid.New(),
		Status: IntentStatusPending,
		Amount: decimal.NewFromInt(100),
	}
	require.False(t, intent.IsTerminal())
	require.False(t, intent.IsSuccessful())
	require.False(t, intent.CanQueryGateway())

	checkoutID := "ws_CO_123"
	intent.CheckoutRequestID = &checkoutID
	require.True(t, intent.CanQueryGateway())

	intent.Status = IntentStatusCompleted
	require.True(t, intent.IsTerminal())
	require.True(t, intent.IsSuccessful())

	intent.Status = IntentStatusFailed
	require.True(t, intent.IsTerminal())
	require.False(t, intent.IsSuccessful())
}

func TestInitiatePaymentRequestValidate(t *testing.T) {
	t.Parallel()

	valid := InitiatePaymentRequest{
		Kind:        IntentKindOrder,
		ReferenceID: uuid.New(),
		Phone:       "0712345678",
		Amount:      decimal.NewFromInt(500),
	}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(r *InitiatePaymentRequest)
	}{
		{name: "missing kind", mutate: func(r *InitiatePaymentRequest) { r.Kind = "" }},
		{name: "unknown kind", mutate: func(r *InitiatePaymentRequest) { r.Kind = "subscription" }},
		{name: "missing reference", mutate: func(r *InitiatePaymentRequest) { r.ReferenceID = uuid.Nil }},
		{name: "bad phone", mutate: func(r *InitiatePaymentRequest) { r.Phone = "12345" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := valid
			tt.mutate(&req)
			require.Error(t, req.Validate())
		})
	}
}

func TestStkCallbackReceipt(t *testing.T) {
	t.Parallel()

	var req StkCallbackRequest
	req.Body.StkCallback.CheckoutRequestID = "ws_CO_1"
	req.Body.StkCallback.ResultCode = 0
	req.Body.StkCallback.CallbackMetadata.Item = []StkCallbackItem{
		{Name: "Amount", Value: 1500.0},
		{Name: "MpesaReceiptNumber", Value: "NLJ7RT61SV"},
		{Name: "PhoneNumber", Value: 254712345678.0},
	}

	require.Equal(t, "NLJ7RT61SV", req.Receipt())

	var empty StkCallbackRequest
	require.Equal(t, "", empty.Receipt())
}
