package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"sokoni-backend/internal/domains/wallet/model"
	"sokoni-backend/internal/domains/wallet/service"
	res "sokoni-backend/internal/shared/response"
)

type WalletHandler struct {
	walletService service.WalletService
}

// NewWalletHandler creates new wallet handler
func NewWalletHandler(walletService service.WalletService) *WalletHandler {
	return &WalletHandler{walletService: walletService}
}

// StartDeposit creates a pending deposit transaction
// POST /api/v1/wallet/deposits
func (h *WalletHandler) StartDeposit(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		res.Unauthorized(c, "Unauthorized")
		return
	}

	var req model.StartDepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		res.BadRequest(c, "Invalid request body")
		return
	}

	resp, err := h.walletService.StartDeposit(c.Request.Context(), userID, req)
	if err != nil {
		statusCode, errCode := mapWalletError(err)
		res.ErrorResponse(c, statusCode, errCode, err.Error())
		return
	}

	res.Success(c, http.StatusCreated, resp)
}

// GetBalance returns the wallet balance
// GET /api/v1/wallet
func (h *WalletHandler) GetBalance(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		res.Unauthorized(c, "Unauthorized")
		return
	}

	resp, err := h.walletService.GetBalance(c.Request.Context(), userID)
	if err != nil {
		statusCode, errCode := mapWalletError(err)
		res.ErrorResponse(c, statusCode, errCode, err.Error())
		return
	}

	res.Success(c, http.StatusOK, resp)
}

// ListTransactions lists wallet transactions
// GET /api/v1/wallet/transactions
func (h *WalletHandler) ListTransactions(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		res.Unauthorized(c, "Unauthorized")
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	txns, total, err := h.walletService.ListTransactions(c.Request.Context(), userID, page, limit)
	if err != nil {
		statusCode, errCode := mapWalletError(err)
		res.ErrorResponse(c, statusCode, errCode, err.Error())
		return
	}

	res.SuccessWithMeta(c, http.StatusOK, txns, &res.Meta{
		Page:  page,
		Limit: limit,
		Total: total,
	})
}

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

func mapWalletError(err error) (int, string) {
	var walletErr *model.WalletError
	if errors.As(err, &walletErr) {
		switch walletErr.Code {
		case model.ErrCodeTransactionNotFound:
			return http.StatusNotFound, walletErr.Code
		case model.ErrCodeInvalidAmount:
			return http.StatusBadRequest, walletErr.Code
		default:
			return http.StatusInternalServerError, walletErr.Code
		}
	}

	if errors.Is(err, model.ErrTransactionNotFound) || errors.Is(err, model.ErrWalletNotFound) {
		return http.StatusNotFound, model.ErrCodeTransactionNotFound
	}
	return http.StatusInternalServerError, "SYS_001"
}
