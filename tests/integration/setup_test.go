package integration

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"splitledger/internal/handlers"
	"splitledger/internal/logger"
	"splitledger/internal/middleware"
	"splitledger/internal/models"
	"splitledger/internal/services"
	"splitledger/internal/validator"
)

// schedulerTestKey is the API key wired into the test router's scheduler route.
const schedulerTestKey = "integration-test-key"

// testApp holds the full application stack for integration tests.
type testApp struct {
	DB     *gorm.DB
	Router *gin.Engine
}

// dbCounter ensures each test gets a unique in-memory database.
var dbCounter atomic.Int64

func init() {
	gin.SetMode(gin.TestMode)
	logger.Init("test")
	validator.Register()
}

// setupIsolatedDB creates an isolated in-memory SQLite database for a single test.
func setupIsolatedDB(t *testing.T) *gorm.DB {
	t.Helper()

	n := dbCounter.Add(1)
	dsn := fmt.Sprintf("file:testdb%d?mode=memory&cache=shared", n)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	allModels := []interface{}{
		&models.User{},
		&models.Group{},
		&models.ParentExpense{},
		&models.Expense{},
		&models.Split{},
		&models.Debt{},
		&models.RecurringExpense{},
	}
	if err := db.AutoMigrate(allModels...); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	return db
}

// setupApp creates a full application stack backed by an isolated in-memory SQLite.
func setupApp(t *testing.T) *testApp {
	t.Helper()

	db := setupIsolatedDB(t)

	// Services
	userService := services.NewUserService(db)
	groupService := services.NewGroupService(db)
	ledgerService := services.NewLedgerService(db)
	expenseService := services.NewExpenseService(db, ledgerService, groupService)
	settlementService := services.NewSettlementService(db, ledgerService, groupService)
	recurringService := services.NewRecurringService(db, expenseService, groupService)

	// Handlers
	authHandler := handlers.NewAuthHandler(userService)
	groupHandler := handlers.NewGroupHandler(groupService)
	expenseHandler := handlers.NewExpenseHandler(expenseService)
	settlementHandler := handlers.NewSettlementHandler(settlementService)
	recurringHandler := handlers.NewRecurringHandler(recurringService)

	// Router
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.ErrorHandler())

	v1 := router.Group("/api/v1")

	// Public auth routes
	auth := v1.Group("/auth")
	auth.POST("/register", authHandler.Register)
	auth.POST("/login", authHandler.Login)

	// Scheduler trigger
	v1.POST("/recurring/run",
		middleware.SchedulerAuthMiddleware(schedulerTestKey),
		recurringHandler.RunDue)

	// Protected routes
	protected := v1.Group("/")
	protected.Use(middleware.AuthMiddleware())

	protected.GET("/profile", authHandler.GetProfile)

	groups := protected.Group("/groups")
	groups.POST("", groupHandler.CreateGroup)
	groups.GET("", groupHandler.GetGroups)
	groups.GET("/:id", groupHandler.GetGroup)
	groups.POST("/:id/members", groupHandler.AddMember)
	groups.GET("/:id/expenses", expenseHandler.GetGroupExpenses)
	groups.GET("/:id/balances", settlementHandler.GetGroupBalances)
	groups.GET("/:id/simplify", settlementHandler.SimplifyGroup)

	expenses := protected.Group("/expenses")
	expenses.POST("", expenseHandler.CreateExpense)
	expenses.GET("/:id", expenseHandler.GetExpense)

	parents := protected.Group("/parent-expenses")
	parents.POST("", expenseHandler.CreateParentExpense)
	parents.GET("/:id", expenseHandler.GetParentExpense)

	protected.GET("/balances", settlementHandler.GetBalances)
	settlements := protected.Group("/settlements")
	settlements.POST("", settlementHandler.RecordSettlement)
	settlements.GET("", settlementHandler.GetSettlements)

	recurring := protected.Group("/recurring")
	recurring.POST("", recurringHandler.CreateRecurring)
	recurring.GET("", recurringHandler.GetRecurring)
	recurring.POST("/:id/generate", recurringHandler.GenerateNow)

	return &testApp{DB: db, Router: router}
}

// request makes an HTTP request to the test router and returns the recorder.
func (app *testApp) request(method, path, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)
	return rec
}

// schedulerRequest calls the scheduler trigger route with an API key.
func (app *testApp) schedulerRequest(apiKey string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", "/api/v1/recurring/run", nil)
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}
	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)
	return rec
}

// parseJSON parses the response body into a map.
func parseJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var result map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse JSON: %v\nbody: %s", err, rec.Body.String())
	}
	return result
}

// registerUser registers a new user and returns the token and user ID.
func (app *testApp) registerUser(t *testing.T, email, password string) (token string, userID float64) {
	t.Helper()
	body := fmt.Sprintf(`{"email":%q,"password":%q,"first_name":"Test","last_name":"User"}`, email, password)
	rec := app.request("POST", "/api/v1/auth/register", body, "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("register failed: %d %s", rec.Code, rec.Body.String())
	}
	result := parseJSON(t, rec)
	user := result["user"].(map[string]interface{})
	return result["token"].(string), user["id"].(float64)
}

// loginUser logs in and returns the token.
func (app *testApp) loginUser(t *testing.T, email, password string) string {
	t.Helper()
	body := fmt.Sprintf(`{"email":%q,"password":%q}`, email, password)
	rec := app.request("POST", "/api/v1/auth/login", body, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("login failed: %d %s", rec.Code, rec.Body.String())
	}
	result := parseJSON(t, rec)
	return result["token"].(string)
}

// createGroup creates a group with the given members and returns its ID.
func (app *testApp) createGroup(t *testing.T, token, name string, memberIDs []float64) float64 {
	t.Helper()
	ids := make([]string, len(memberIDs))
	for i, id := range memberIDs {
		ids[i] = fmt.Sprintf("%d", int(id))
	}
	body := fmt.Sprintf(`{"name":%q,"member_ids":[%s]}`, name, strings.Join(ids, ","))
	rec := app.request("POST", "/api/v1/groups", body, token)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create group failed: %d %s", rec.Code, rec.Body.String())
	}
	result := parseJSON(t, rec)
	group := result["group"].(map[string]interface{})
	return group["id"].(float64)
}
