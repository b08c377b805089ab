package model

// =====================================================
// INTENT KINDS
// =====================================================
const (
	IntentKindOrder         = "order"
	IntentKindWalletDeposit = "wallet_deposit"
)

var ValidIntentKinds = []string{
	IntentKindOrder,
	IntentKindWalletDeposit,
}

// =====================================================
// INTENT STATUS
// =====================================================
// Stored statuses. "active" and the provider result code "0" are accepted
// as success synonyms on input and normalized to completed.
const (
	IntentStatusPending   = "pending"
	IntentStatusCompleted = "completed"
	IntentStatusFailed    = "failed"
	IntentStatusCancelled = "cancelled"
)

// Success tokens as reported by the different layers (DB status,
// payment_status alias, realtime payload, gateway result code).
var terminalSuccessTokens = map[string]bool{
	"paid":      true,
	"completed": true,
	"active":    true,
	"success":   true,
	"0":         true,
}

var terminalFailureTokens = map[string]bool{
	IntentStatusFailed:    true,
	IntentStatusCancelled: true,
}

// IsTerminalSuccessToken reports whether a raw status token means the
// payment went through.
func IsTerminalSuccessToken(token string) bool {
	return terminalSuccessTokens[token]
}

// IsTerminalFailureToken reports whether a raw status token means the
// payment definitively failed.
func IsTerminalFailureToken(token string) bool {
	return terminalFailureTokens[token]
}

// IsTerminalToken reports whether a raw status token ends the wait.
// Anything else (pending, empty, provider "still processing" markers) is
// non-terminal: keep waiting.
func IsTerminalToken(token string) bool {
	return IsTerminalSuccessToken(token) || IsTerminalFailureToken(token)
}

// =====================================================
// RECONCILIATION OUTCOMES
// =====================================================
const (
	OutcomeSuccess       = "success"
	OutcomeFailed        = "failed"
	OutcomeIndeterminate = "indeterminate"
	OutcomeCancelled     = "cancelled"
)

// =====================================================
// CHANNEL SOURCES
// =====================================================
const (
	SourceRealtime = "realtime"
	SourcePoll     = "poll"
	SourceGateway  = "gateway"
	SourceManual   = "manual"
	SourceWebhook  = "webhook"
	SourceSweep    = "sweep"
)

// =====================================================
// INTERNAL ERROR CODES
// =====================================================
const (
	ErrCodeIntentNotFound     = "PAY001"
	ErrCodeInvalidPhone       = "PAY002"
	ErrCodeAmountTooSmall     = "PAY003"
	ErrCodePushRejected       = "PAY004"
	ErrCodeGatewayUnavailable = "PAY005"
	ErrCodeAlreadySettled     = "PAY006"
	ErrCodeNotReconciling     = "PAY007"
	ErrCodeInvalidKind        = "PAY008"
	ErrCodeInvalidReference   = "PAY009"
	ErrCodeAmountMismatch     = "PAY010"
)

// =====================================================
// M-PESA RESULT CODE MAPPING
// =====================================================
// Result codes returned by the STK query endpoint. "0" is the only
// success code; the listed codes are explicit failures. Any response
// carrying an errorCode instead of a ResultCode means the request has
// not been processed yet and is NOT a failure.
var MpesaResultCodeMap = map[string]string{
	"0":    "The service request is processed successfully",
	"1":    "The balance is insufficient for the transaction",
	"1032": "Request cancelled by user",
	"1037": "DS timeout - user cannot be reached",
	"2001": "The initiator information is invalid",
}

// IsMpesaFailureCode reports whether a query ResultCode is an explicit,
// terminal failure.
func IsMpesaFailureCode(code string) bool {
	if code == "" || code == "0" {
		return false
	}
	_, known := MpesaResultCodeMap[code]
	return known
}

// MpesaResultMessage returns a human readable message for a result code.
func MpesaResultMessage(code string) string {
	if msg, exists := MpesaResultCodeMap[code]; exists {
		return msg
	}
	return "Unknown payment result"
}

// =====================================================
// PAYMENT CONFIGURATION
// =====================================================
const (
	// DefaultCurrency for all intents
	DefaultCurrency = "KES"
)
