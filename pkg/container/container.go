package container

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/hibiken/asynq"

	"sokoni-backend/internal/config"
	"sokoni-backend/internal/infrastructure/cache"
	"sokoni-backend/internal/infrastructure/database"
	"sokoni-backend/internal/infrastructure/realtime"
	"sokoni-backend/pkg/jwt"

	orderHandler "sokoni-backend/internal/domains/order/handler"
	orderRepo "sokoni-backend/internal/domains/order/repository"
	orderService "sokoni-backend/internal/domains/order/service"

	paymentGateway "sokoni-backend/internal/domains/payment/gateway"
	"sokoni-backend/internal/domains/payment/gateway/daraja"
	paymentHandler "sokoni-backend/internal/domains/payment/handler"
	paymentModel "sokoni-backend/internal/domains/payment/model"
	paymentRepo "sokoni-backend/internal/domains/payment/repository"
	paymentService "sokoni-backend/internal/domains/payment/service"

	walletHandler "sokoni-backend/internal/domains/wallet/handler"
	walletRepo "sokoni-backend/internal/domains/wallet/repository"
	walletService "sokoni-backend/internal/domains/wallet/service"

	userHandler "sokoni-backend/internal/domains/user/handler"
	userRepo "sokoni-backend/internal/domains/user/repository"
	userService "sokoni-backend/internal/domains/user/service"
)

// ========================================
// CONTAINER STRUCT
// ========================================

// Container holds the full dependency graph of the application.
// Initialization order matters: config, infrastructure, repositories,
// services, handlers.
type Container struct {
	// Infrastructure layer
	Config      *config.Config
	DB          *database.PostgresDB
	Redis       *cache.RedisClient
	Feed        realtime.Feed
	AsynqClient *asynq.Client
	JWTManager  *jwt.Manager

	// Repository layer
	IntentRepo paymentRepo.IntentRepoInterface
	OrderRepo  orderRepo.OrderRepoInterface
	CartRepo   orderRepo.CartRepoInterface
	WalletRepo walletRepo.WalletRepoInterface
	UserRepo   userRepo.UserRepoInterface

	// Gateway integrations
	MpesaGateway paymentGateway.MpesaGateway

	// Service layer
	PaymentService paymentService.PaymentService
	OrderService   orderService.OrderService
	WalletService  walletService.WalletService
	UserService    userService.UserService

	// Handler layer
	PaymentHandler *paymentHandler.PaymentHandler
	OrderHandler   *orderHandler.OrderHandler
	WalletHandler  *walletHandler.WalletHandler
	UserHandler    *userHandler.UserHandler
}

// ========================================
// CONSTRUCTOR
// ========================================

func NewContainer() (*Container, error) {
	log.Println("🔧 Initializing DI Container...")

	c := &Container{}

	// ========================================
	// STEP 1: LOAD CONFIGURATION
	// ========================================
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	c.Config = cfg
	log.Printf("✅ Config loaded (Environment: %s)", cfg.App.Environment)

	// ========================================
	// STEP 2: INITIALIZE DATABASE
	// ========================================
	log.Println("🗄️  Connecting to PostgreSQL...")

	dbConfig, err := config.LoadDatabaseConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load database config: %w", err)
	}

	db := database.NewPostgresDB(dbConfig)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := db.Connect(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.HealthCheck(context.Background()); err != nil {
		return nil, fmt.Errorf("database health check failed: %w", err)
	}

	c.DB = db
	log.Println("✅ Database connected")

	// ========================================
	// STEP 3: INITIALIZE REDIS
	// ========================================
	// Redis backs both the realtime status feed and the task queue, so
	// unlike a plain cache it IS critical here.
	log.Println("🔴 Connecting to Redis...")

	redisClient := cache.NewRedisClient(cfg.Redis.Host, cfg.Redis.Password, cfg.Redis.DB)
	if err := redisClient.Connect(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	c.Redis = redisClient
	c.Feed = realtime.NewRedisFeed(redisClient.Client)
	log.Println("✅ Redis connected")

	c.AsynqClient = asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.Redis.Host,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	c.JWTManager = jwt.NewManager(cfg.JWT.Secret, cfg.JWT.AccessTokenExpiry, cfg.JWT.RefreshTokenExpiry)

	// ========================================
	// STEP 4: INITIALIZE REPOSITORIES
	// ========================================
	log.Println("📦 Initializing repositories...")
	c.initRepositories()
	log.Println("✅ Repositories initialized")

	// ========================================
	// STEP 5: INITIALIZE GATEWAY
	// ========================================
	mpesa, err := daraja.NewClient(daraja.NewConfig(
		cfg.Mpesa.BaseURL,
		cfg.Mpesa.ShortCode,
		cfg.Mpesa.Passkey,
		cfg.Mpesa.CallbackURL,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to init mpesa gateway: %w", err)
	}
	c.MpesaGateway = mpesa

	// ========================================
	// STEP 6: INITIALIZE SERVICES
	// ========================================
	log.Println("⚙️  Initializing services...")
	c.initServices()
	log.Println("✅ Services initialized")

	// ========================================
	// STEP 7: INITIALIZE HANDLERS
	// ========================================
	c.initHandlers()
	log.Println("✅ Handlers initialized")

	log.Println("🎉 DI Container initialized successfully")
	return c, nil
}

// ========================================
// PRIVATE INITIALIZATION METHODS
// ========================================

func (c *Container) initRepositories() {
	pool := c.DB.Pool

	c.IntentRepo = paymentRepo.NewIntentRepository(pool)
	c.OrderRepo = orderRepo.NewOrderRepository(pool)
	c.CartRepo = orderRepo.NewCartRepository(pool)
	c.WalletRepo = walletRepo.NewWalletRepository(pool)
	c.UserRepo = userRepo.NewUserRepository(pool)
}

func (c *Container) initServices() {
	c.PaymentService = paymentService.NewPaymentService(
		c.IntentRepo,
		c.MpesaGateway,
		c.Feed,
		c.Config.Payment,
	)

	c.OrderService = orderService.NewOrderService(c.OrderRepo, c.CartRepo)
	c.WalletService = walletService.NewWalletService(c.WalletRepo)
	c.UserService = userService.NewUserService(c.UserRepo, c.JWTManager)

	// Per-kind payment wiring. Each hook vouches for references before a
	// push goes out and receives settlement side effects afterwards.
	// Registration happens after all services exist so the hooks can
	// reach their repositories.
	orderHook := orderService.NewPaymentHook(c.OrderRepo, c.AsynqClient)
	c.PaymentService.RegisterResolver(paymentModel.IntentKindOrder, orderHook)
	c.PaymentService.RegisterHook(paymentModel.IntentKindOrder, orderHook)

	depositHook := walletService.NewDepositHook(c.WalletRepo)
	c.PaymentService.RegisterResolver(paymentModel.IntentKindWalletDeposit, depositHook)
	c.PaymentService.RegisterHook(paymentModel.IntentKindWalletDeposit, depositHook)
}

func (c *Container) initHandlers() {
	c.PaymentHandler = paymentHandler.NewPaymentHandler(c.PaymentService)
	c.OrderHandler = orderHandler.NewOrderHandler(c.OrderService)
	c.WalletHandler = walletHandler.NewWalletHandler(c.WalletService)
	c.UserHandler = userHandler.NewUserHandler(c.UserService)
}

// ========================================
// CLEANUP
// ========================================

// Cleanup releases container resources during graceful shutdown.
func (c *Container) Cleanup() {
	log.Println("🧹 Cleaning up container resources...")

	if c.PaymentService != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		if err := c.PaymentService.Shutdown(ctx); err != nil {
			log.Printf("⚠️  Reconciler shutdown: %v", err)
		}
		cancel()
	}

	if c.AsynqClient != nil {
		if err := c.AsynqClient.Close(); err != nil {
			log.Printf("⚠️  Asynq client close: %v", err)
		}
	}

	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			log.Printf("⚠️  Redis close: %v", err)
		}
	}

	if c.DB != nil && c.DB.Pool != nil {
		c.DB.Pool.Close()
		log.Println("✅ Database connections closed")
	}
}
