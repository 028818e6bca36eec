package main

import (
	"log"
	"os"

	_ "backend/api/swagger" // swagger docs
	"backend/internal/cache"
	"backend/internal/database"
	"backend/internal/handler"
	"backend/internal/logger"
	"backend/internal/mail"
	"backend/internal/middleware"
	"backend/internal/permission"
	"backend/internal/quote"
	"backend/internal/repository"
	"backend/internal/service"
	ws "backend/internal/websocket"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// @title           Quote & Permission API
// @version         1.0
// @description     Quote lifecycle management with per-app permission resolution for an electronics retailer.
// @host            localhost:8080
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	if err := godotenv.Load("configs/.env"); err != nil {
		log.Println("No configs/.env file found or error loading it")
	}

	zlog := logger.New()
	defer zlog.Sync()

	db, err := database.NewConnection(database.DSNFromEnv(os.Getenv))
	if err != nil {
		zlog.Fatalw("database connection failed", "error", err)
	}
	zlog.Info("connected to PostgreSQL")

	// WebSocket hub for live notifications
	wsHub := ws.NewHub(zlog)
	go wsHub.Run()

	// Repositories
	txManager := repository.NewTransactionManager(db)
	userRepo := repository.NewUserRepository(db)
	permissionRepo := repository.NewPermissionRepository(db)
	approvalRepo := repository.NewApprovalRepository(db)
	quoteRepo := repository.NewQuoteRepository(db)
	clientRepo := repository.NewClientRepository(db)
	productRepo := repository.NewProductRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	eventRepo := repository.NewSecurityEventRepository(db)

	// Permission resolver with in-memory cache
	store := cache.NewMemoryStore()
	resolver := permission.NewResolver(store, permissionRepo, zlog)

	// Outbound mail
	var mailer mail.Mailer = mail.NoopMailer{}
	if os.Getenv("SMTP_HOST") != "" {
		mailer = mail.NewSMTPMailer()
	}

	baseURL := os.Getenv("BASE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}

	// Services
	notificationService := service.NewNotificationService(notificationRepo, eventRepo, wsHub, zlog)
	userService := service.NewUserService(userRepo, resolver, notificationService, zlog)
	clientService := service.NewClientService(clientRepo, zlog)
	productService := service.NewProductService(productRepo)
	quoteService := service.NewQuoteService(quoteRepo, clientRepo, userRepo, txManager,
		notificationService, mailer, quote.DefaultApprovalPolicy(), baseURL, zlog)
	approvalService := service.NewApprovalService(approvalRepo, permissionRepo, userRepo,
		txManager, resolver, notificationService, mailer, zlog)

	// Handlers
	userHandler := handler.NewUserHandler(userService, resolver)
	quoteHandler := handler.NewQuoteHandler(quoteService, resolver)
	portalHandler := handler.NewPortalHandler(quoteService)
	clientHandler := handler.NewClientHandler(clientService, resolver)
	approvalHandler := handler.NewApprovalHandler(approvalService, resolver)
	productHandler := handler.NewProductHandler(productService, resolver)
	notificationHandler := handler.NewNotificationHandler(notificationService, resolver, wsHub)

	// Gin router
	router := gin.Default()

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{"http://localhost:5173", "http://127.0.0.1:5173"}
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "OK"})
	})

	authn := middleware.Authenticate(userRepo)

	root := router.Group("")
	userHandler.RegisterRoutes(root, authn)
	quoteHandler.RegisterRoutes(root, authn)
	portalHandler.RegisterRoutes(root)
	clientHandler.RegisterRoutes(root, authn)
	approvalHandler.RegisterRoutes(root, authn)
	productHandler.RegisterRoutes(root, authn)
	notificationHandler.RegisterRoutes(root, authn)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	zlog.Infow("server listening", "port", port)
	if err := router.Run(":" + port); err != nil {
		zlog.Fatalw("server failed", "error", err)
	}
}
