package model

import (
	"regexp"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Kenyan mobile numbers: 07XXXXXXXX / 01XXXXXXXX local form or the
// international 2547XXXXXXXX / 2541XXXXXXXX form.
var phonePattern = regexp.MustCompile(`^(?:254|0)(7|1)\d{8}$`)

// NormalizePhone strips whitespace and a leading "+" and converts the
// local 0-prefixed form to the 254 international form the gateway wants.
func NormalizePhone(phone string) (string, error) {
	p := strings.TrimSpace(phone)
	p = strings.TrimPrefix(p, "+")
	p = strings.ReplaceAll(p, " ", "")

	if !phonePattern.MatchString(p) {
		return "", ErrInvalidPhone
	}

	if strings.HasPrefix(p, "0") {
		p = "254" + p[1:]
	}

	return p, nil
}

// =====================================================
// INITIATE PAYMENT REQUEST/RESPONSE
// =====================================================

// InitiatePaymentRequest starts an STK push for an order or a wallet
// deposit. ReferenceID points at the order / wallet transaction row
// created by the owning flow.
type InitiatePaymentRequest struct {
	Kind        string          `json:"kind"`
	ReferenceID uuid.UUID       `json:"reference_id"`
	Phone       string          `json:"phone"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
}

func (r InitiatePaymentRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Kind, validation.Required, validation.In(IntentKindOrder, IntentKindWalletDeposit)),
		validation.Field(&r.ReferenceID, validation.By(requiredUUID)),
		validation.Field(&r.Phone, validation.Required, validation.By(validPhone)),
		validation.Field(&r.Description, validation.Length(0, 100)),
	)
}

func requiredUUID(value interface{}) error {
	id, _ := value.(uuid.UUID)
	if id == uuid.Nil {
		return validation.NewError("validation_required", "is required")
	}
	return nil
}

func validPhone(value interface{}) error {
	phone, _ := value.(string)
	if _, err := NormalizePhone(phone); err != nil {
		return validation.NewError("validation_phone", "must be a valid Kenyan mobile number")
	}
	return nil
}

type InitiatePaymentResponse struct {
	IntentID          uuid.UUID       `json:"intent_id"`
	CheckoutRequestID string          `json:"checkout_request_id"`
	Amount            decimal.Decimal `json:"amount"`
	Currency          string          `json:"currency"`
	Status            string          `json:"status"`
	CustomerMessage   string          `json:"customer_message,omitempty"`
}

// =====================================================
// INTENT STATUS RESPONSE
// =====================================================

type IntentStatusResponse struct {
	IntentID          uuid.UUID       `json:"intent_id"`
	Kind              string          `json:"kind"`
	ReferenceID       uuid.UUID       `json:"reference_id"`
	Status            string          `json:"status"`
	Amount            decimal.Decimal `json:"amount"`
	Currency          string          `json:"currency"`
	MpesaReceipt      *string         `json:"mpesa_receipt,omitempty"`
	FailureReason     *string         `json:"failure_reason,omitempty"`
	CheckoutRequestID *string         `json:"checkout_request_id,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	SettledAt         *time.Time      `json:"settled_at,omitempty"`
}

func NewIntentStatusResponse(intent *PaymentIntent) *IntentStatusResponse {
	return &IntentStatusResponse{
		IntentID:          intent.ID,
		Kind:              intent.Kind,
		ReferenceID:       intent.ReferenceID,
		Status:            intent.Status,
		Amount:            intent.Amount,
		Currency:          intent.Currency,
		MpesaReceipt:      intent.MpesaReceipt,
		FailureReason:     intent.FailureReason,
		CheckoutRequestID: intent.CheckoutRequestID,
		CreatedAt:         intent.CreatedAt,
		SettledAt:         intent.SettledAt,
	}
}

// =====================================================
// STK CALLBACK (WEBHOOK) REQUEST
// =====================================================
// Daraja posts this to the callback URL after the payer responds to the
// push prompt (or fails to).

type StkCallbackRequest struct {
	Body struct {
		StkCallback struct {
			MerchantRequestID string `json:"MerchantRequestID"`
			CheckoutRequestID string `json:"CheckoutRequestID"`
			ResultCode        int    `json:"ResultCode"`
			ResultDesc        string `json:"ResultDesc"`
			CallbackMetadata  struct {
				Item []StkCallbackItem `json:"Item"`
			} `json:"CallbackMetadata"`
		} `json:"stkCallback"`
	} `json:"Body"`
}

type StkCallbackItem struct {
	Name  string      `json:"Name"`
	Value interface{} `json:"Value"`
}

// Receipt extracts the MpesaReceiptNumber metadata item, if present.
func (r *StkCallbackRequest) Receipt() string {
	for _, item := range r.Body.StkCallback.CallbackMetadata.Item {
		if item.Name == "MpesaReceiptNumber" {
			if s, ok := item.Value.(string); ok {
				return s
			}
		}
	}
	return ""
}
