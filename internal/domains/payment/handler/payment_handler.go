package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"sokoni-backend/internal/domains/payment/model"
	"sokoni-backend/internal/domains/payment/service"
	res "sokoni-backend/internal/shared/response"
)

type PaymentHandler struct {
	paymentService service.PaymentService
}

// NewPaymentHandler creates new payment handler
func NewPaymentHandler(paymentService service.PaymentService) *PaymentHandler {
	return &PaymentHandler{paymentService: paymentService}
}

// =====================================================
// PAYMENT ENDPOINTS
// =====================================================

// InitiatePayment starts an STK push
// POST /api/v1/payments
func (h *PaymentHandler) InitiatePayment(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		res.Unauthorized(c, "Unauthorized")
		return
	}

	var req model.InitiatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		res.BadRequest(c, "Invalid request body")
		return
	}

	resp, err := h.paymentService.InitiatePayment(c.Request.Context(), userID, req)
	if err != nil {
		statusCode, errCode := mapPaymentError(err)
		res.ErrorResponse(c, statusCode, errCode, err.Error())
		return
	}

	res.Success(c, http.StatusAccepted, resp)
}

// GetIntentStatus returns the current state of a payment intent
// GET /api/v1/payments/:intent_id
func (h *PaymentHandler) GetIntentStatus(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		res.Unauthorized(c, "Unauthorized")
		return
	}

	intentID, err := uuid.Parse(c.Param("intent_id"))
	if err != nil {
		res.BadRequest(c, "Invalid intent ID")
		return
	}

	resp, err := h.paymentService.GetIntentStatus(c.Request.Context(), userID, intentID)
	if err != nil {
		statusCode, errCode := mapPaymentError(err)
		res.ErrorResponse(c, statusCode, errCode, err.Error())
		return
	}

	res.Success(c, http.StatusOK, resp)
}

// ListIntents lists the user's payment intents
// GET /api/v1/payments
func (h *PaymentHandler) ListIntents(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		res.Unauthorized(c, "Unauthorized")
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	intents, total, err := h.paymentService.ListIntents(c.Request.Context(), userID, page, limit)
	if err != nil {
		statusCode, errCode := mapPaymentError(err)
		res.ErrorResponse(c, statusCode, errCode, err.Error())
		return
	}

	res.SuccessWithMeta(c, http.StatusOK, intents, &res.Meta{
		Page:  page,
		Limit: limit,
		Total: total,
	})
}

// CheckNow forces an immediate gateway status query
// POST /api/v1/payments/:intent_id/check
func (h *PaymentHandler) CheckNow(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		res.Unauthorized(c, "Unauthorized")
		return
	}

	intentID, err := uuid.Parse(c.Param("intent_id"))
	if err != nil {
		res.BadRequest(c, "Invalid intent ID")
		return
	}

	resp, err := h.paymentService.CheckIntentNow(c.Request.Context(), userID, intentID)
	if err != nil {
		statusCode, errCode := mapPaymentError(err)
		res.ErrorResponse(c, statusCode, errCode, err.Error())
		return
	}

	res.Success(c, http.StatusOK, resp)
}

// CancelIntent abandons a pending payment
// POST /api/v1/payments/:intent_id/cancel
func (h *PaymentHandler) CancelIntent(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		res.Unauthorized(c, "Unauthorized")
		return
	}

	intentID, err := uuid.Parse(c.Param("intent_id"))
	if err != nil {
		res.BadRequest(c, "Invalid intent ID")
		return
	}

	resp, err := h.paymentService.CancelIntent(c.Request.Context(), userID, intentID)
	if err != nil {
		statusCode, errCode := mapPaymentError(err)
		res.ErrorResponse(c, statusCode, errCode, err.Error())
		return
	}

	res.Success(c, http.StatusOK, resp)
}

// =====================================================
// WEBHOOK ENDPOINT
// =====================================================

// StkCallback receives the provider's asynchronous confirmation.
// POST /api/v1/webhooks/mpesa
//
// Always acknowledges with 200 once the body parses; the provider
// retries on non-2xx and our settlement is idempotent anyway.
func (h *PaymentHandler) StkCallback(c *gin.Context) {
	var req model.StkCallbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		res.BadRequest(c, "Invalid callback body")
		return
	}

	if err := h.paymentService.HandleStkCallback(c.Request.Context(), req); err != nil {
		// Log-and-ack on unknown intents; a retry will not help.
		if errors.Is(err, model.ErrIntentNotFound) {
			c.JSON(http.StatusOK, gin.H{"ResultCode": 0, "ResultDesc": "Accepted"})
			return
		}
		res.InternalServerError(c, "Callback processing failed")
		return
	}

	c.JSON(http.StatusOK, gin.H{"ResultCode": 0, "ResultDesc": "Accepted"})
}

// =====================================================
// HELPERS
// =====================================================

func getUserID(c *gin.Context) (uuid.UUID, error) {
	value, exists := c.Get("userID")
	if !exists {
		return uuid.Nil, errors.New("user ID not found in context")
	}
	userID, ok := value.(uuid.UUID)
	if !ok {
		return uuid.Nil, errors.New("invalid user ID in context")
	}
	return userID, nil
}

// mapPaymentError maps service errors onto HTTP status and error code
func mapPaymentError(err error) (int, string) {
	var paymentErr *model.PaymentError
	if errors.As(err, &paymentErr) {
		switch paymentErr.Code {
		case model.ErrCodeIntentNotFound:
			return http.StatusNotFound, paymentErr.Code
		case model.ErrCodeInvalidPhone, model.ErrCodeAmountTooSmall, model.ErrCodeInvalidKind,
			model.ErrCodeInvalidReference, model.ErrCodeAmountMismatch:
			return http.StatusBadRequest, paymentErr.Code
		case model.ErrCodePushRejected:
			return http.StatusBadGateway, paymentErr.Code
		case model.ErrCodeGatewayUnavailable:
			return http.StatusBadGateway, paymentErr.Code
		case model.ErrCodeAlreadySettled:
			return http.StatusConflict, paymentErr.Code
		case model.ErrCodeNotReconciling:
			return http.StatusConflict, paymentErr.Code
		default:
			return http.StatusInternalServerError, paymentErr.Code
		}
	}

	switch {
	case errors.Is(err, model.ErrIntentNotFound):
		return http.StatusNotFound, model.ErrCodeIntentNotFound
	case errors.Is(err, model.ErrInvalidPhone):
		return http.StatusBadRequest, model.ErrCodeInvalidPhone
	case errors.Is(err, model.ErrAmountTooSmall):
		return http.StatusBadRequest, model.ErrCodeAmountTooSmall
	case errors.Is(err, model.ErrInvalidReference):
		return http.StatusBadRequest, model.ErrCodeInvalidReference
	case errors.Is(err, model.ErrAmountMismatch):
		return http.StatusBadRequest, model.ErrCodeAmountMismatch
	case errors.Is(err, model.ErrPushRejected):
		return http.StatusBadGateway, model.ErrCodePushRejected
	case errors.Is(err, model.ErrGatewayUnavailable):
		return http.StatusBadGateway, model.ErrCodeGatewayUnavailable
	case errors.Is(err, model.ErrAlreadySettled):
		return http.StatusConflict, model.ErrCodeAlreadySettled
	default:
		return http.StatusInternalServerError, "SYS_001"
	}
}
