package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"sokoni-backend/internal/domains/user/model"
	"sokoni-backend/internal/domains/user/service"
	res "sokoni-backend/internal/shared/response"
)

type UserHandler struct {
	userService service.UserService
}

// NewUserHandler creates new user handler
func NewUserHandler(userService service.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

// Register creates a new account
// POST /api/v1/auth/register
func (h *UserHandler) Register(c *gin.Context) {
	var req model.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		res.BadRequest(c, "Invalid request body")
		return
	}

	resp, err := h.userService.Register(c.Request.Context(), req)
	if err != nil {
		statusCode, errCode := mapUserError(err)
		res.ErrorResponse(c, statusCode, errCode, err.Error())
		return
	}

	res.Success(c, http.StatusCreated, resp)
}

// Login authenticates a user
// POST /api/v1/auth/login
func (h *UserHandler) Login(c *gin.Context) {
	var req model.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		res.BadRequest(c, "Invalid request body")
		return
	}

	resp, err := h.userService.Login(c.Request.Context(), req)
	if err != nil {
		statusCode, errCode := mapUserError(err)
		res.ErrorResponse(c, statusCode, errCode, err.Error())
		return
	}

	res.Success(c, http.StatusOK, resp)
}

// GetProfile returns the authenticated user's profile
// GET /api/v1/users/me
func (h *UserHandler) GetProfile(c *gin.Context) {
	value, exists := c.Get("userID")
	if !exists {
		res.Unauthorized(c, "Unauthorized")
		return
	}
	userID, ok := value.(uuid.UUID)
	if !ok {
		res.Unauthorized(c, "Unauthorized")
		return
	}

	user, err := h.userService.GetProfile(c.Request.Context(), userID)
	if err != nil {
		statusCode, errCode := mapUserError(err)
		res.ErrorResponse(c, statusCode, errCode, err.Error())
		return
	}

	res.Success(c, http.StatusOK, user)
}

func mapUserError(err error) (int, string) {
	var userErr *model.UserError
	if errors.As(err, &userErr) {
		switch userErr.Code {
		case model.ErrCodeUserNotFound:
			return http.StatusNotFound, userErr.Code
		case model.ErrCodeEmailTaken:
			return http.StatusConflict, userErr.Code
		case model.ErrCodeInvalidCredentials:
			return http.StatusUnauthorized, userErr.Code
		case model.ErrCodeInvalidRequest:
			return http.StatusBadRequest, userErr.Code
		default:
			return http.StatusInternalServerError, userErr.Code
		}
	}

	switch {
	case errors.Is(err, model.ErrUserNotFound):
		return http.StatusNotFound, model.ErrCodeUserNotFound
	case errors.Is(err, model.ErrEmailTaken):
		return http.StatusConflict, model.ErrCodeEmailTaken
	case errors.Is(err, model.ErrInvalidCredentials):
		return http.StatusUnauthorized, model.ErrCodeInvalidCredentials
	default:
		return http.StatusInternalServerError, "SYS_001"
	}
}
