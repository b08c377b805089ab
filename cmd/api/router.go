package main

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"sokoni-backend/internal/shared/middleware"
	"sokoni-backend/pkg/container"
)

func SetupRouter(c *container.Container) *gin.Engine {
	router := gin.New()

	// Global middlewares
	router.Use(
		middleware.Recovery(),
		middleware.RequestID(),
		middleware.Logger(),
		middleware.CORS(),
	)

	v1 := router.Group("/api/v1")
	{
		// Health check
		v1.GET("/health", healthCheckHandler(c))

		setupAuthRoutes(v1, c)
		setupUserRoutes(v1, c)
		setupCartRoutes(v1, c)
		setupOrderRoutes(v1, c)
		setupWalletRoutes(v1, c)
		setupPaymentRoutes(v1, c)
		setupWebhookRoutes(v1, c)
	}

	return router
}

// ========================================
// AUTH ROUTES
// ========================================
func setupAuthRoutes(v1 *gin.RouterGroup, c *container.Container) {
	auth := v1.Group("/auth")
	{
		auth.POST("/register", c.UserHandler.Register)
		auth.POST("/login", c.UserHandler.Login)
	}
}

// ========================================
// USER ROUTES
// ========================================
func setupUserRoutes(v1 *gin.RouterGroup, c *container.Container) {
	users := v1.Group("/users")
	users.Use(middleware.AuthMiddleware(c.Config.JWT.Secret))
	{
		users.GET("/me", c.UserHandler.GetProfile)
	}
}

// ========================================
// CART ROUTES
// ========================================
func setupCartRoutes(v1 *gin.RouterGroup, c *container.Container) {
	cart := v1.Group("/cart")
	cart.Use(middleware.AuthMiddleware(c.Config.JWT.Secret))
	{
		cart.GET("", c.OrderHandler.GetCart)
		cart.POST("/items", c.OrderHandler.AddCartItem)
	}
}

// ========================================
// ORDER ROUTES
// ========================================
func setupOrderRoutes(v1 *gin.RouterGroup, c *container.Container) {
	orders := v1.Group("/orders")
	orders.Use(middleware.AuthMiddleware(c.Config.JWT.Secret))
	{
		orders.POST("/checkout", c.OrderHandler.Checkout)
		orders.GET("", c.OrderHandler.ListOrders)
		orders.GET("/:order_id", c.OrderHandler.GetOrder)
	}
}

// ========================================
// WALLET ROUTES
// ========================================
func setupWalletRoutes(v1 *gin.RouterGroup, c *container.Container) {
	wallet := v1.Group("/wallet")
	wallet.Use(middleware.AuthMiddleware(c.Config.JWT.Secret))
	{
		wallet.GET("", c.WalletHandler.GetBalance)
		wallet.POST("/deposits", c.WalletHandler.StartDeposit)
		wallet.GET("/transactions", c.WalletHandler.ListTransactions)
	}
}

// ========================================
// PAYMENT ROUTES
// ========================================
func setupPaymentRoutes(v1 *gin.RouterGroup, c *container.Container) {
	payments := v1.Group("/payments")
	payments.Use(middleware.AuthMiddleware(c.Config.JWT.Secret))
	{
		payments.POST("", c.PaymentHandler.InitiatePayment)
		payments.GET("", c.PaymentHandler.ListIntents)
		payments.GET("/:intent_id", c.PaymentHandler.GetIntentStatus)
		payments.POST("/:intent_id/check", c.PaymentHandler.CheckNow)
		payments.POST("/:intent_id/cancel", c.PaymentHandler.CancelIntent)
	}
}

// ========================================
// WEBHOOK ROUTES
// ========================================
// No auth middleware: the provider calls these.
func setupWebhookRoutes(v1 *gin.RouterGroup, c *container.Container) {
	webhooks := v1.Group("/webhooks")
	{
		webhooks.POST("/mpesa", c.PaymentHandler.StkCallback)
	}
}

// ========================================
// HEALTH CHECK
// ========================================
func healthCheckHandler(c *container.Container) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		checkCtx, cancel := context.WithTimeout(ctx.Request.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		dbStatus := "ok"
		if err := c.DB.HealthCheck(checkCtx); err != nil {
			status = http.StatusServiceUnavailable
			dbStatus = err.Error()
		}

		redisStatus := "ok"
		if err := c.Redis.HealthCheck(checkCtx); err != nil {
			status = http.StatusServiceUnavailable
			redisStatus = err.Error()
		}

		ctx.JSON(status, gin.H{
			"status":   http.StatusText(status),
			"database": dbStatus,
			"redis":    redisStatus,
			"version":  c.Config.App.Version,
		})
	}
}
