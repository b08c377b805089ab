package daraja

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"sokoni-backend/internal/domains/payment/gateway"
	"sokoni-backend/internal/domains/payment/model"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (gateway.MpesaGateway, *httptest.Server) {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient(NewConfig(srv.URL, "174379", "passkey", "http://localhost/webhook"))
	require.NoError(t, err)
	return client, srv
}

func TestSTKPushAccepted(t *testing.T) {
	t.Parallel()

	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/stk-push", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "1500", body["amount"])
		require.Equal(t, "254712345678", body["phone"])

		json.NewEncoder(w).Encode(map[string]string{
			"ResponseCode":      "0",
			"CheckoutRequestID": "ws_CO_191220191020363925",
			"CustomerMessage":   "Success. Request accepted for processing",
		})
	})

	resp, err := client.STKPush(context.Background(), gateway.StkPushRequest{
		Amount:     decimal.NewFromInt(1500),
		Phone:      "254712345678",
		AccountRef: "order-1",
	})

	require.NoError(t, err)
	require.Equal(t, "ws_CO_191220191020363925", resp.CheckoutRequestID)
	require.Equal(t, "0", resp.ResponseCode)
}

func TestSTKPushRejected(t *testing.T) {
	t.Parallel()

	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{
			"ResponseCode": "1",
			"errorMessage": "Invalid PhoneNumber",
		})
	})

	_, err := client.STKPush(context.Background(), gateway.StkPushRequest{
		Amount: decimal.NewFromInt(100),
		Phone:  "254700000000",
	})

	require.Error(t, err)
	require.ErrorIs(t, err, model.ErrPushRejected)
	require.Contains(t, err.Error(), "Invalid PhoneNumber")
}

func TestSTKPushGatewayUnreachable(t *testing.T) {
	t.Parallel()

	client, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})
	srv.Close()

	_, err := client.STKPush(context.Background(), gateway.StkPushRequest{
		Amount: decimal.NewFromInt(100),
		Phone:  "254712345678",
	})

	require.Error(t, err)
	require.ErrorIs(t, err, model.ErrGatewayUnavailable)
}

func TestQueryStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		response    map[string]string
		wantPending bool
		wantCode    string
		wantReceipt string
	}{
		{
			name: "payment confirmed",
			response: map[string]string{
				"ResultCode":         "0",
				"ResultDesc":         "The service request is processed successfully.",
				"MpesaReceiptNumber": "NLJ7RT61SV",
			},
			wantCode:    "0",
			wantReceipt: "NLJ7RT61SV",
		},
		{
			name: "explicit failure",
			response: map[string]string{
				"ResultCode": "1032",
				"ResultDesc": "Request cancelled by user",
			},
			wantCode: "1032",
		},
		{
			name: "still processing reported as pending not failure",
			response: map[string]string{
				"errorCode":    "500.001.1001",
				"errorMessage": "The transaction is being processed",
			},
			wantPending: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				require.Equal(t, "/api/v1/query", r.URL.Path)
				json.NewEncoder(w).Encode(tt.response)
			})

			resp, err := client.QueryStatus(context.Background(), "ws_CO_test")
			require.NoError(t, err)
			require.Equal(t, tt.wantPending, resp.Pending)
			if !tt.wantPending {
				require.Equal(t, tt.wantCode, resp.ResultCode)
				require.Equal(t, tt.wantReceipt, resp.Receipt)
			}
		})
	}
}

func TestQueryStatusRespectsContext(t *testing.T) {
	t.Parallel()

	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.QueryStatus(ctx, "ws_CO_test")
	require.Error(t, err)
	require.True(t, errors.Is(err, context.Canceled) || errors.Is(err, model.ErrGatewayUnavailable))
}
