package testutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/bitfantasy/nimo-trade/internal/export/entity"
	"github.com/bitfantasy/nimo-trade/internal/middleware"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	TestSchema = "test_trade"
	JWTSecret  = "nimo-trade-jwt-secret-key-test"
	JWTIssuer  = "nimo-trade"
)

// TestEnv holds test environment resources
type TestEnv struct {
	DB     *gorm.DB
	Router *gin.Engine
	T      *testing.T
}

// projectRoot returns the project root directory by looking for go.mod
func projectRoot() string {
	_, filename, _, _ := runtime.Caller(0)
	dir := filepath.Dir(filename)
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

// loadEnv loads .env from the project root
func loadEnv() {
	root := projectRoot()
	if root != "" {
		_ = godotenv.Load(filepath.Join(root, ".env"))
	}
}

// SetupTestDB returns a migrated database for one test.
// By default it is a SQLite file in the test's temp dir. With TEST_DB=postgres
// it is an isolated schema on the database named by the DB_* variables,
// dropped when the test ends.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	loadEnv()

	var db *gorm.DB
	if os.Getenv("TEST_DB") == "postgres" {
		db = setupPostgres(t)
	} else {
		db = setupSQLite(t)
	}

	if err := entity.AutoMigrate(db); err != nil {
		t.Fatalf("Failed to migrate test tables: %v", err)
	}
	return db
}

func setupSQLite(t *testing.T) *gorm.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "trade.db")
	// busy_timeout lets concurrent writers in a test wait instead of failing with SQLITE_BUSY
	db, err := gorm.Open(sqlite.Open(path+"?_busy_timeout=5000&_journal_mode=WAL"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("Failed to open sqlite test database: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, _ := db.DB(); sqlDB != nil {
			sqlDB.Close()
		}
	})
	return db
}

func setupPostgres(t *testing.T) *gorm.DB {
	t.Helper()
	baseDSN := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		getEnv("DB_HOST", "127.0.0.1"),
		getEnv("DB_PORT", "5432"),
		getEnv("DB_USER", "nimo"),
		getEnv("DB_PASSWORD", "nimo123"),
		getEnv("DB_NAME", "nimo_trade"),
	)

	schemaName := fmt.Sprintf("%s_%d", TestSchema, time.Now().UnixNano()%1000000)

	setupDB, err := gorm.Open(postgres.Open(baseDSN), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Skipf("postgres not available: %v", err)
	}
	setupDB.Exec(fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", schemaName))
	sqlSetup, _ := setupDB.DB()
	sqlSetup.Close()

	// search_path in the DSN so every pooled connection uses the test schema
	testDSN := fmt.Sprintf("%s search_path=%s", baseDSN, schemaName)
	db, err := gorm.Open(postgres.Open(testDSN), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
		TranslateError:                           true,
	})
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	t.Cleanup(func() {
		if sqlDB, _ := db.DB(); sqlDB != nil {
			sqlDB.Close()
		}
		cleanDB, cleanErr := gorm.Open(postgres.Open(baseDSN), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		if cleanErr == nil {
			cleanDB.Exec(fmt.Sprintf("DROP SCHEMA IF EXISTS %s CASCADE", schemaName))
			if sqlClean, _ := cleanDB.DB(); sqlClean != nil {
				sqlClean.Close()
			}
		}
	})
	return db
}

// SetupRouter creates a gin test router
func SetupRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(gin.Recovery())
	return r
}

// AuthGroup creates an API group with JWT auth middleware for testing
func AuthGroup(r *gin.Engine, path string) *gin.RouterGroup {
	return r.Group(path, middleware.JWTAuth(JWTSecret, JWTIssuer))
}

// GenerateTestToken creates a valid JWT token for testing
func GenerateTestToken(userID, name, email string, roles, permissions []string) string {
	if roles == nil {
		roles = []string{}
	}
	if permissions == nil {
		permissions = []string{}
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   userID,
		"uid":   userID,
		"name":  name,
		"email": email,
		"roles": roles,
		"perms": permissions,
		"iss":   JWTIssuer,
		"iat":   now.Unix(),
		"exp":   now.Add(24 * time.Hour).Unix(),
		"jti":   fmt.Sprintf("test-jti-%d", now.UnixNano()),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, _ := token.SignedString([]byte(JWTSecret))
	return tokenString
}

// DefaultTestToken returns a token for a default admin test user
func DefaultTestToken() string {
	return GenerateTestToken(
		"test-user-001",
		"Test Admin",
		"admin@test.com",
		[]string{middleware.AdminRole},
		[]string{"*"},
	)
}

// ReadOnlyTestToken returns a token that may read but not change packing lists
func ReadOnlyTestToken() string {
	return GenerateTestToken(
		"test-user-002",
		"Test Viewer",
		"viewer@test.com",
		nil,
		[]string{middleware.PermPackingRead},
	)
}

// DoRequest executes an HTTP request against the test router
func DoRequest(r *gin.Engine, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer
	if body != nil {
		jsonBytes, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(jsonBytes)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, _ := http.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// ParseResponse parses the JSON response envelope into a map
func ParseResponse(w *httptest.ResponseRecorder) map[string]interface{} {
	var result map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &result)
	return result
}

func f64(v float64) *float64 { return &v }

// SeedInvoice creates a proforma invoice with two lines, a Box line and a
// Pieces line backed by a catalog product, plus the order that owns it.
//
//	Brass Hinge  Box     100   500 kg
//	Steel Screw  Pieces  5000  8 g/pc, 50 pcs/pack, 40 packs/box
func SeedInvoice(t *testing.T, db *gorm.DB, invoiceID, orderID string) (*entity.ProformaInvoice, *entity.Order) {
	t.Helper()
	now := time.Now()
	two := 2

	screw := &entity.Product{
		ID:              "prd-" + invoiceID,
		Code:            "SCR-" + invoiceID,
		Name:            "Steel Screw",
		HSNCode:         "73181500",
		Unit:            "Pieces",
		UnitWeightGrams: f64(8),
		PiecesPerPack:   f64(50),
		PacksPerBox:     f64(40),
		Status:          "active",
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := db.Create(screw).Error; err != nil {
		t.Fatalf("Failed to seed product: %v", err)
	}

	pi := &entity.ProformaInvoice{
		ID:             invoiceID,
		PICode:         "PI-" + invoiceID,
		Buyer:          "Acme Imports LLC",
		Seller:         "Nimo Exports Pvt Ltd",
		ContainerCount: &two,
		Currency:       "USD",
		CreatedBy:      "test-user",
		CreatedAt:      now,
		UpdatedAt:      now,
		Items: []entity.PIItem{
			{ID: "it1-" + invoiceID, ProductName: "Brass Hinge", HSNCode: "83021010", Unit: "Box", Quantity: 100, TotalWeightKg: 500, SortOrder: 1},
			{ID: "it2-" + invoiceID, ProductID: screw.ID, ProductName: "Steel Screw", HSNCode: "73181500", Unit: "Pieces", Quantity: 5000, SortOrder: 2},
		},
	}
	if err := db.Create(pi).Error; err != nil {
		t.Fatalf("Failed to seed invoice: %v", err)
	}

	order := &entity.Order{
		ID:          orderID,
		OrderCode:   "SO-" + orderID,
		PIInvoiceID: invoiceID,
		Buyer:       pi.Buyer,
		Status:      entity.OrderStatusConfirmed,
		CreatedBy:   "test-user",
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := db.Create(order).Error; err != nil {
		t.Fatalf("Failed to seed order: %v", err)
	}
	return pi, order
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
