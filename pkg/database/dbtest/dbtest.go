// Package dbtest opens a migrated in-memory database for package tests.
package dbtest

import (
	"fmt"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/yuditriaji/restopos-backend/pkg/database"
)

// Open returns a fresh migrated database that lives for the duration of t
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sqlite handle: %v", err)
	}
	// one connection keeps the in-memory database alive and serialises writers
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// Fixture is a shop with one branch, used as the starting point of most tests
type Fixture struct {
	Shop   database.Shop
	Branch database.Branch
}

// Password is the plain-text password of every seeded principal
const Password = "secret123"

func hash(t testing.TB) string {
	h, err := bcrypt.GenerateFromPassword([]byte(Password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	return string(h)
}

// SeedShop creates a shop named name with a branch named branchName
func SeedShop(t testing.TB, db *gorm.DB, name, branchName string) Fixture {
	t.Helper()

	shop := database.Shop{
		Name:         name,
		Email:        fmt.Sprintf("%s@example.com", uuid.NewString()[:8]),
		PasswordHash: hash(t),
		Address:      "1 Main St",
	}
	if err := db.Create(&shop).Error; err != nil {
		t.Fatalf("seed shop: %v", err)
	}

	branch := database.Branch{
		ShopID:      shop.ID,
		Name:        branchName,
		Address:     "123 St",
		Contact:     "0300-0000000",
		OpeningTime: "09:00",
		ClosingTime: "23:00",
		CashTax:     decimal.NewFromInt(5),
		CardTax:     decimal.NewFromInt(7),
	}
	if err := db.Create(&branch).Error; err != nil {
		t.Fatalf("seed branch: %v", err)
	}

	return Fixture{Shop: shop, Branch: branch}
}

// SeedManager creates a manager for the fixture's branch
func SeedManager(t testing.TB, db *gorm.DB, f Fixture, username string) database.Manager {
	t.Helper()
	m := database.Manager{ShopID: f.Shop.ID, BranchID: f.Branch.ID, Username: username, PasswordHash: hash(t)}
	if err := db.Create(&m).Error; err != nil {
		t.Fatalf("seed manager: %v", err)
	}
	return m
}

// SeedCashier creates a cashier for the fixture's branch
func SeedCashier(t testing.TB, db *gorm.DB, f Fixture, username string) database.Cashier {
	t.Helper()
	c := database.Cashier{ShopID: f.Shop.ID, BranchID: f.Branch.ID, Username: username, PasswordHash: hash(t)}
	if err := db.Create(&c).Error; err != nil {
		t.Fatalf("seed cashier: %v", err)
	}
	return c
}

// SeedKitchen creates a kitchen account for the fixture's branch
func SeedKitchen(t testing.TB, db *gorm.DB, f Fixture, username string) database.Kitchen {
	t.Helper()
	k := database.Kitchen{ShopID: f.Shop.ID, BranchID: f.Branch.ID, Username: username, PasswordHash: hash(t)}
	if err := db.Create(&k).Error; err != nil {
		t.Fatalf("seed kitchen: %v", err)
	}
	return k
}

// SeedCategory creates a category with the given status
func SeedCategory(t testing.TB, db *gorm.DB, shopID uuid.UUID, name string, active bool) database.Category {
	t.Helper()
	c := database.Category{ShopID: shopID, Name: name, Status: active}
	if err := db.Create(&c).Error; err != nil {
		t.Fatalf("seed category: %v", err)
	}
	return c
}
