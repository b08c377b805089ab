package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"sokoni-backend/internal/domains/order/model"
	"sokoni-backend/internal/domains/order/service"
	res "sokoni-backend/internal/shared/response"
)

type OrderHandler struct {
	orderService service.OrderService
}

// NewOrderHandler creates new order handler
func NewOrderHandler(orderService service.OrderService) *OrderHandler {
	return &OrderHandler{orderService: orderService}
}

// =====================================================
// CART ENDPOINTS
// =====================================================

// AddCartItem adds an item to the cart
// POST /api/v1/cart/items
func (h *OrderHandler) AddCartItem(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		res.Unauthorized(c, "Unauthorized")
		return
	}

	var req model.AddCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		res.BadRequest(c, "Invalid request body")
		return
	}

	item, err := h.orderService.AddCartItem(c.Request.Context(), userID, req)
	if err != nil {
		statusCode, errCode := mapOrderError(err)
		res.ErrorResponse(c, statusCode, errCode, err.Error())
		return
	}

	res.Success(c, http.StatusCreated, item)
}

// GetCart returns the cart contents
// GET /api/v1/cart
func (h *OrderHandler) GetCart(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		res.Unauthorized(c, "Unauthorized")
		return
	}

	items, err := h.orderService.GetCart(c.Request.Context(), userID)
	if err != nil {
		statusCode, errCode := mapOrderError(err)
		res.ErrorResponse(c, statusCode, errCode, err.Error())
		return
	}

	res.Success(c, http.StatusOK, items)
}

// =====================================================
// ORDER ENDPOINTS
// =====================================================

// Checkout turns the cart into an order awaiting payment
// POST /api/v1/orders/checkout
func (h *OrderHandler) Checkout(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		res.Unauthorized(c, "Unauthorized")
		return
	}

	var req model.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		res.BadRequest(c, "Invalid request body")
		return
	}

	resp, err := h.orderService.Checkout(c.Request.Context(), userID, req)
	if err != nil {
		statusCode, errCode := mapOrderError(err)
		res.ErrorResponse(c, statusCode, errCode, err.Error())
		return
	}

	res.Success(c, http.StatusCreated, resp)
}

// GetOrder returns one order
// GET /api/v1/orders/:order_id
func (h *OrderHandler) GetOrder(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		res.Unauthorized(c, "Unauthorized")
		return
	}

	orderID, err := uuid.Parse(c.Param("order_id"))
	if err != nil {
		res.BadRequest(c, "Invalid order ID")
		return
	}

	resp, err := h.orderService.GetOrder(c.Request.Context(), userID, orderID)
	if err != nil {
		statusCode, errCode := mapOrderError(err)
		res.ErrorResponse(c, statusCode, errCode, err.Error())
		return
	}

	res.Success(c, http.StatusOK, resp)
}

// ListOrders lists the user's orders
// GET /api/v1/orders
func (h *OrderHandler) ListOrders(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		res.Unauthorized(c, "Unauthorized")
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	orders, total, err := h.orderService.ListOrders(c.Request.Context(), userID, page, limit)
	if err != nil {
		statusCode, errCode := mapOrderError(err)
		res.ErrorResponse(c, statusCode, errCode, err.Error())
		return
	}

	res.SuccessWithMeta(c, http.StatusOK, orders, &res.Meta{
		Page:  page,
		Limit: limit,
		Total: total,
	})
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

func mapOrderError(err error) (int, string) {
	var orderErr *model.OrderError
	if errors.As(err, &orderErr) {
		switch orderErr.Code {
		case model.ErrCodeOrderNotFound:
			return http.StatusNotFound, orderErr.Code
		case model.ErrCodeEmptyCart, model.ErrCodeInvalidItem:
			return http.StatusBadRequest, orderErr.Code
		case model.ErrCodeOrderNotOpen:
			return http.StatusConflict, orderErr.Code
		default:
			return http.StatusInternalServerError, orderErr.Code
		}
	}

	switch {
	case errors.Is(err, model.ErrOrderNotFound):
		return http.StatusNotFound, model.ErrCodeOrderNotFound
	case errors.Is(err, model.ErrEmptyCart):
		return http.StatusBadRequest, model.ErrCodeEmptyCart
	case errors.Is(err, model.ErrOrderNotOpen):
		return http.StatusConflict, model.ErrCodeOrderNotOpen
	default:
		return http.StatusInternalServerError, "SYS_001"
	}
}
