package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"splitledger/internal/config"
	"splitledger/internal/database"
	"splitledger/internal/handlers"
	"splitledger/internal/logger"
	"splitledger/internal/middleware"
	"splitledger/internal/services"
	"splitledger/internal/validator"
)

// @title           Splitledger API
// @version         1.0
// @description     Splitledger is a group expense-sharing ledger: groups log shared expenses with split policies, and the service maintains pairwise net debts with settlement and debt simplification.
// @termsOfService  http://swagger.io/terms/

// @host      localhost:8080
// @BasePath  /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	// Initialize logger (use ENV var if available, default to development)
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	if err := run(); err != nil {
		logger.Get().Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	log := logger.Get()

	// Load configuration
	appConfig, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Initialize database configuration
	dbConfig, err := database.NewConfig()
	if err != nil {
		return fmt.Errorf("failed to load database configuration: %w", err)
	}

	// Create database manager
	dbManager, err := database.NewManager(dbConfig)
	if err != nil {
		return fmt.Errorf("failed to create database manager: %w", err)
	}

	// Run migrations
	if err := dbManager.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}

	// Register custom binding validators
	validator.Register()

	// Initialize services
	db := dbManager.DB()
	userService := services.NewUserService(db)
	groupService := services.NewGroupService(db)
	ledgerService := services.NewLedgerService(db)
	expenseService := services.NewExpenseService(db, ledgerService, groupService)
	settlementService := services.NewSettlementService(db, ledgerService, groupService)
	recurringService := services.NewRecurringService(db, expenseService, groupService)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(userService)
	groupHandler := handlers.NewGroupHandler(groupService)
	expenseHandler := handlers.NewExpenseHandler(expenseService)
	settlementHandler := handlers.NewSettlementHandler(settlementService)
	recurringHandler := handlers.NewRecurringHandler(recurringService)

	// Initialize Gin router
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogging())
	router.Use(middleware.ErrorHandler())

	// CORS middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	// Swagger documentation
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health check endpoint
	router.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// API v1 group
	v1 := router.Group("/api/v1")

	// Public routes
	auth := v1.Group("/auth")
	auth.POST("/register", authHandler.Register)
	auth.POST("/login", authHandler.Login)

	// Scheduler trigger, protected by API key instead of user auth
	v1.POST("/recurring/run",
		middleware.SchedulerAuthMiddleware(appConfig.SchedulerAPIKey),
		recurringHandler.RunDue)

	// Protected routes
	protected := v1.Group("/")
	protected.Use(middleware.AuthMiddleware())

	// User profile
	protected.GET("/profile", authHandler.GetProfile)

	// Group routes
	groups := protected.Group("/groups")
	groups.POST("", groupHandler.CreateGroup)
	groups.GET("", groupHandler.GetGroups)
	groups.GET("/:id", groupHandler.GetGroup)
	groups.POST("/:id/members", groupHandler.AddMember)
	groups.GET("/:id/expenses", expenseHandler.GetGroupExpenses)
	groups.GET("/:id/balances", settlementHandler.GetGroupBalances)
	groups.GET("/:id/simplify", settlementHandler.SimplifyGroup)

	// Expense routes
	expenses := protected.Group("/expenses")
	expenses.POST("", expenseHandler.CreateExpense)
	expenses.GET("/:id", expenseHandler.GetExpense)

	// Parent expense routes
	parents := protected.Group("/parent-expenses")
	parents.POST("", expenseHandler.CreateParentExpense)
	parents.GET("/:id", expenseHandler.GetParentExpense)

	// Balance and settlement routes
	protected.GET("/balances", settlementHandler.GetBalances)
	settlements := protected.Group("/settlements")
	settlements.POST("", settlementHandler.RecordSettlement)
	settlements.GET("", settlementHandler.GetSettlements)

	// Recurring expense routes
	recurring := protected.Group("/recurring")
	recurring.POST("", recurringHandler.CreateRecurring)
	recurring.GET("", recurringHandler.GetRecurring)
	recurring.POST("/:id/generate", recurringHandler.GenerateNow)

	log.Infof("Starting Splitledger backend server on port %s", appConfig.Port)
	log.Infof("Swagger documentation available at http://localhost:%s/swagger/index.html", appConfig.Port)
	return router.Run(":" + appConfig.Port)
}
