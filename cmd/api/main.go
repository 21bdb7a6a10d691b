package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "compugear/api/swagger" // swagger docs
	"compugear/internal/config"
	"compugear/internal/database"
	"compugear/internal/handler"
	"compugear/internal/metrics"
	"compugear/internal/middleware"
	"compugear/internal/payment"
	"compugear/internal/registration"
	"compugear/internal/repository"
	"compugear/internal/service"
	"compugear/internal/websocket"
	"compugear/pkg/logger"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
)

const moduleAccessCacheTTL = 5 * time.Minute

// @title           CompuGear ERP API
// @version         1.0
// @description     Multi-tenant ERP: approval workflow, subscriptions and module access.
// @host            localhost:8080
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.GetLogger().Fatal("invalid configuration", zap.Error(err))
	}
	logger.SetLevel(cfg.Log.Level)
	log := logger.GetLogger()
	defer func() { _ = log.Sync() }()

	metrics.Init(cfg.Metrics.Prefix)

	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		log.Fatal("database connection failed", zap.Error(err))
	}
	if err := database.Migrate(db); err != nil {
		log.Fatal("database migration failed", zap.Error(err))
	}
	log.Info("connected to PostgreSQL")

	var pending registration.Store
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			log.Fatal("redis connection failed", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		}
		defer func() { _ = rdb.Close() }()
		pending = registration.NewRedisStore(rdb)
	} else {
		log.Warn("REDIS_ADDR not set, pending registrations are kept in process memory")
		pending = registration.NewMemoryStore()
	}

	if cfg.Stripe.SecretKey == "" {
		log.Warn("STRIPE_SECRET_KEY not set, checkout calls will fail")
	}
	gateway := payment.NewStripeGateway(cfg.Stripe.SecretKey)

	wsHub := websocket.NewHub(log, cfg.Server.CORSOrigins)
	go wsHub.Run()

	// Repositories
	txManager := repository.NewTransactionManager(db)
	userRepo := repository.NewUserRepository(db)
	roleRepo := repository.NewRoleRepository(db)
	companyRepo := repository.NewCompanyRepository(db)
	moduleRepo := repository.NewModuleRepository(db)
	approvalRepo := repository.NewApprovalRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	productRepo := repository.NewProductRepository(db)
	invTxRepo := repository.NewInventoryTxRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	invoiceRepo := repository.NewInvoiceRepository(db)

	// Services
	auditService := service.NewAuditService(auditRepo)
	roleService := service.NewRoleService(txManager, roleRepo, moduleRepo, userRepo, log)
	accessService := service.NewModuleAccessService(moduleRepo, txManager, auditService, moduleAccessCacheTTL)
	notificationService := service.NewNotificationService(notificationRepo, userRepo, wsHub, log)
	dispatcher := service.NewDispatcher(productRepo, invTxRepo, orderRepo, paymentRepo, invoiceRepo)
	approvalService := service.NewApprovalService(txManager, approvalRepo, dispatcher, accessService, notificationService, auditService, log)
	subscriptionService := service.NewSubscriptionService(txManager, companyRepo, userRepo, moduleRepo, log)
	checkoutService := service.NewCheckoutService(subscriptionService, gateway, pending, service.CheckoutConfig{
		PublicBaseURL: cfg.Server.PublicBaseURL,
		Currency:      cfg.Stripe.Currency,
		PendingTTL:    cfg.Registration.PendingTTL,
	}, log)
	userService := service.NewUserService(txManager, userRepo, companyRepo, auditService, cfg.JWT.Secret, cfg.JWT.TTL)
	inventoryService := service.NewInventoryService(productRepo, invTxRepo, auditService, txManager)
	invoiceService := service.NewInvoiceService(invoiceRepo, paymentRepo)

	seedCtx, cancelSeed := context.WithTimeout(context.Background(), 30*time.Second)
	err = roleService.SeedDefaults(seedCtx, service.SuperAdminSeed{
		Email:    cfg.Seed.SuperAdminEmail,
		Password: cfg.Seed.SuperAdminPassword,
	})
	cancelSeed()
	if err != nil {
		log.Fatal("seeding failed", zap.Error(err))
	}

	// Handlers
	secureCookies := cfg.Server.GinMode == gin.ReleaseMode
	userHandler := handler.NewUserHandler(userService, secureCookies, int(cfg.JWT.TTL.Seconds()))
	approvalHandler := handler.NewApprovalHandler(approvalService)
	websiteHandler := handler.NewWebsiteHandler(subscriptionService, checkoutService)
	roleHandler := handler.NewRoleHandler(roleService, accessService)
	inventoryHandler := handler.NewInventoryHandler(inventoryService, accessService)
	invoiceHandler := handler.NewInvoiceHandler(invoiceService, accessService)
	auditHandler := handler.NewAuditHandler(auditService)
	notificationHandler := handler.NewNotificationHandler(notificationService)

	gin.SetMode(cfg.Server.GinMode)
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestID(), middleware.AccessLog(), middleware.Metrics())

	// CORS configuration
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.Server.CORSOrigins
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept", logger.RequestIDKey}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK"})
	})
	router.GET("/ws", func(c *gin.Context) {
		websocket.ServeWs(wsHub, c, cfg.JWT.Secret)
	})

	api := router.Group("/api")
	userHandler.RegisterPublicRoutes(api)
	websiteHandler.RegisterRoutes(api)

	authed := api.Group("", middleware.RequireAuth(cfg.JWT.Secret))
	userHandler.RegisterRoutes(authed)
	approvalHandler.RegisterRoutes(authed)
	roleHandler.RegisterRoutes(authed)
	inventoryHandler.RegisterRoutes(authed)
	invoiceHandler.RegisterRoutes(authed)
	auditHandler.RegisterRoutes(authed)
	notificationHandler.RegisterRoutes(authed)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
	}
}
