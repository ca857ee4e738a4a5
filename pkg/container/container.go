package container

import (
	"context"
	"fmt"
	"log"
	"time"

	"storefront-backend/internal/config"
	infraCache "storefront-backend/internal/infrastructure/cache"
	"storefront-backend/internal/infrastructure/database"
	"storefront-backend/pkg/jwt"

	// Order domain
	orderRepo "storefront-backend/internal/domains/order/repository"
	orderService "storefront-backend/internal/domains/order/service"

	// Payment domain
	"storefront-backend/internal/domains/payment/gateway"
	"storefront-backend/internal/domains/payment/gateway/billdesk"
	paymentHandler "storefront-backend/internal/domains/payment/handler"
	"storefront-backend/internal/domains/payment/model"
	"storefront-backend/internal/domains/payment/ratelimit"
	paymentRepo "storefront-backend/internal/domains/payment/repository"
	paymentService "storefront-backend/internal/domains/payment/service"

	// User domain
	userRepo "storefront-backend/internal/domains/user/repository"
	userService "storefront-backend/internal/domains/user/service"
)

// ========================================
// CONTAINER STRUCT
// ========================================

// Container holds every application dependency; it is the root of the
// dependency graph and the only place wiring happens.
type Container struct {
	// ========================================
	// INFRASTRUCTURE LAYER
	// ========================================
	Config     *config.Config
	DB         *database.PostgresDB
	Redis      *infraCache.RedisClient
	JWTManager *jwt.Manager

	// ========================================
	// REPOSITORY LAYER (DATA ACCESS)
	// ========================================
	TransactionRepo paymentRepo.TransactionRepository
	DiagnosticRepo  paymentRepo.DiagnosticRepository
	OrderRepo       orderRepo.OrderRepository
	UserRepo        userRepo.UserRepository

	// ========================================
	// GATEWAY / SUPPORTING COMPONENTS
	// ========================================
	BillDeskGateway gateway.BillDeskGateway
	RateLimiter     *ratelimit.Limiter
	DedupCache      paymentService.DedupCache

	// ========================================
	// SERVICE LAYER (BUSINESS LOGIC)
	// ========================================
	OrderService   orderService.OrderService
	UserService    userService.UserService
	PaymentService paymentService.PaymentService

	// ========================================
	// HANDLER LAYER (HTTP)
	// ========================================
	PaymentHandler *paymentHandler.PaymentHandler
}

// ========================================
// CONSTRUCTOR: BUILD CONTAINER
// ========================================

// NewContainer initializes the whole dependency graph, in order:
// config, infrastructure, repositories, gateway, services, handlers.
func NewContainer() (*Container, error) {
	log.Println("Initializing DI Container...")

	c := &Container{}

	// ========================================
	// STEP 1: LOAD CONFIGURATION
	// ========================================
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	c.Config = cfg
	log.Printf("Config loaded (Environment: %s)", cfg.App.Environment)

	// ========================================
	// STEP 2: INITIALIZE DATABASE
	// ========================================
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

	// ========================================
	// STEP 3: INITIALIZE REDIS
	// ========================================
	redisClient := infraCache.NewRedisClient(
		cfg.Redis.Host,
		cfg.Redis.Password,
		cfg.Redis.DB,
	)
	if err := redisClient.Connect(context.Background()); err != nil {
		// Redis only backs the advisory webhook dedup marker; the
		// conditional status update keeps replays safe without it
		log.Printf("Redis connection failed (non-critical): %v", err)
	}
	c.Redis = redisClient

	c.JWTManager = jwt.NewManager(cfg.JWT.Secret)

	// ========================================
	// STEP 4: INITIALIZE REPOSITORIES
	// ========================================
	if err := c.initRepositories(); err != nil {
		return nil, fmt.Errorf("failed to init repositories: %w", err)
	}

	// ========================================
	// STEP 5: INITIALIZE GATEWAY + SERVICES
	// ========================================
	if err := c.initServices(); err != nil {
		return nil, fmt.Errorf("failed to init services: %w", err)
	}

	// ========================================
	// STEP 6: INITIALIZE HANDLERS
	// ========================================
	if err := c.initHandlers(); err != nil {
		return nil, fmt.Errorf("failed to init handlers: %w", err)
	}

	log.Println("DI Container initialized successfully")
	return c, nil
}

// ========================================
// PRIVATE INITIALIZATION METHODS
// ========================================

func (c *Container) initRepositories() error {
	pool := c.DB.Pool

	c.TransactionRepo = paymentRepo.NewTransactionRepository(pool)
	c.DiagnosticRepo = paymentRepo.NewDiagnosticRepository(pool)
	c.OrderRepo = orderRepo.NewOrderRepository(pool)
	c.UserRepo = userRepo.NewUserRepository(pool)

	return nil
}

func (c *Container) initServices() error {
	// ----------------------------------------
	// BILLDESK GATEWAY CLIENT
	// ----------------------------------------
	gatewayConfig := c.Config.BillDeskGatewayConfig()
	billdeskClient, err := billdesk.NewClient(gatewayConfig)
	if err != nil {
		return fmt.Errorf("failed to build billdesk client: %w", err)
	}
	c.BillDeskGateway = billdeskClient

	// ----------------------------------------
	// SUPPORTING COMPONENTS
	// ----------------------------------------
	c.RateLimiter = ratelimit.New(
		model.RateLimitWindowSeconds*time.Second,
		model.RateLimitMax,
	)
	c.DedupCache = paymentService.NewRedisDedupCache(c.Redis.Client)

	// ----------------------------------------
	// DOMAIN SERVICES
	// ----------------------------------------
	c.OrderService = orderService.NewOrderService(c.OrderRepo)
	c.UserService = userService.NewUserService(c.UserRepo)

	c.PaymentService = paymentService.NewPaymentService(
		c.TransactionRepo,
		c.DiagnosticRepo,
		c.BillDeskGateway,
		c.RateLimiter,
		c.DedupCache,
		c.OrderService,
		c.UserService,
		gatewayConfig.MaxAmount,
	)

	return nil
}

func (c *Container) initHandlers() error {
	c.PaymentHandler = paymentHandler.NewPaymentHandler(
		c.PaymentService,
		c.BillDeskGateway,
	)

	return nil
}

// Cleanup releases container resources on shutdown
func (c *Container) Cleanup() {
	log.Println("Cleaning up container resources...")

	if c.DB != nil {
		_ = c.DB.Close()
	}

	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			log.Printf("Failed to close Redis: %v", err)
		}
	}

	log.Println("Container cleanup completed")
}
