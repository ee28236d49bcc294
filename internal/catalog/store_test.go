package catalog

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yuditriaji/restopos-backend/pkg/apperr"
	"github.com/yuditriaji/restopos-backend/pkg/database/dbtest"
)

func TestCreateCategoryIsScopedToShop(t *testing.T) {
	db := dbtest.Open(t)
	store := NewStore(db)
	acme := dbtest.SeedShop(t, db, "Acme", "Downtown")
	other := dbtest.SeedShop(t, db, "Other", "Uptown")

	_, created, err := store.CreateCategory(acme.Shop.ID, "Drinks")
	require.NoError(t, err)
	assert.True(t, created)

	_, _, err = store.CreateCategory(acme.Shop.ID, "Drinks")
	assert.True(t, apperr.Is(err, apperr.KindConflict))

	_, created, err = store.CreateCategory(other.Shop.ID, "Drinks")
	require.NoError(t, err)
	assert.True(t, created)
}

func TestCreateCategoryReactivatesInactive(t *testing.T) {
	db := dbtest.Open(t)
	store := NewStore(db)
	f := dbtest.SeedShop(t, db, "Acme", "Downtown")
	old := dbtest.SeedCategory(t, db, f.Shop.ID, "Desserts", false)

	category, created, err := store.CreateCategory(f.Shop.ID, "Desserts")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, old.ID, category.ID)
	assert.True(t, category.Status)
}

func TestRenameCategoryCollidesOnlyWithActive(t *testing.T) {
	db := dbtest.Open(t)
	store := NewStore(db)
	f := dbtest.SeedShop(t, db, "Acme", "Downtown")
	drinks := dbtest.SeedCategory(t, db, f.Shop.ID, "Drinks", true)
	dbtest.SeedCategory(t, db, f.Shop.ID, "Snacks", true)
	dbtest.SeedCategory(t, db, f.Shop.ID, "Archive", false)

	_, err := store.RenameCategory(f.Shop.ID, drinks.ID, "Snacks")
	assert.True(t, apperr.Is(err, apperr.KindConflict))

	renamed, err := store.RenameCategory(f.Shop.ID, drinks.ID, "Archive")
	require.NoError(t, err)
	assert.Equal(t, "Archive", renamed.Name)

	_, err = store.RenameCategory(uuid.New(), drinks.ID, "Beverages")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestDeleteCategoryOutcomes(t *testing.T) {
	db := dbtest.Open(t)
	store := NewStore(db)
	f := dbtest.SeedShop(t, db, "Acme", "Downtown")
	used := dbtest.SeedCategory(t, db, f.Shop.ID, "Burgers", true)
	unused := dbtest.SeedCategory(t, db, f.Shop.ID, "Salads", true)

	_, err := store.CreateProduct(f.Shop.ID, ProductInput{Name: "Zinger", Price: decimal.NewFromInt(550), CategoryRef: used.ID.String()})
	require.NoError(t, err)

	outcome, err := store.DeleteCategory(f.Shop.ID, used.ID)
	require.NoError(t, err)
	assert.Equal(t, CategoryDeactivated, outcome)

	outcome, err = store.DeleteCategory(f.Shop.ID, unused.ID)
	require.NoError(t, err)
	assert.Equal(t, CategoryDeleted, outcome)

	// a second delete is a successful no-op
	for _, id := range []uuid.UUID{used.ID, unused.ID} {
		outcome, err = store.DeleteCategory(f.Shop.ID, id)
		require.NoError(t, err)
		assert.Equal(t, CategoryUnchanged, outcome)
	}

	active, err := store.ListCategories(f.Shop.ID, false)
	require.NoError(t, err)
	assert.Empty(t, active)

	all, err := store.ListCategories(f.Shop.ID, true)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "Burgers", all[0].Name)
}

func TestCreateProductValidation(t *testing.T) {
	db := dbtest.Open(t)
	store := NewStore(db)
	f := dbtest.SeedShop(t, db, "Acme", "Downtown")
	dbtest.SeedCategory(t, db, f.Shop.ID, "Burgers", true)
	dbtest.SeedCategory(t, db, f.Shop.ID, "Retired", false)

	product, err := store.CreateProduct(f.Shop.ID, ProductInput{
		Name:        "Zinger",
		Price:       decimal.NewFromInt(550),
		CategoryRef: "Burgers",
		Variations:  []string{"Single", "Double"},
	})
	require.NoError(t, err)
	assert.True(t, product.Status)
	require.NotNil(t, product.Category)
	assert.Equal(t, "Burgers", product.Category.Name)

	_, err = store.CreateProduct(f.Shop.ID, ProductInput{Name: "Zinger", Price: decimal.NewFromInt(500), CategoryRef: "Burgers"})
	assert.True(t, apperr.Is(err, apperr.KindConflict))

	_, err = store.CreateProduct(f.Shop.ID, ProductInput{Name: "Old Wrap", Price: decimal.NewFromInt(400), CategoryRef: "Retired"})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = store.CreateProduct(f.Shop.ID, ProductInput{Name: "Ghost", Price: decimal.NewFromInt(400), CategoryRef: "Missing"})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	_, err = store.CreateProduct(f.Shop.ID, ProductInput{Name: "Free", Price: decimal.Zero, CategoryRef: "Burgers"})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	// product names are per shop
	other := dbtest.SeedShop(t, db, "Other", "Uptown")
	dbtest.SeedCategory(t, db, other.Shop.ID, "Burgers", true)
	_, err = store.CreateProduct(other.Shop.ID, ProductInput{Name: "Zinger", Price: decimal.NewFromInt(600), CategoryRef: "Burgers"})
	assert.NoError(t, err)
}

func TestUpdateProductIsPartial(t *testing.T) {
	db := dbtest.Open(t)
	store := NewStore(db)
	f := dbtest.SeedShop(t, db, "Acme", "Downtown")
	burgers := dbtest.SeedCategory(t, db, f.Shop.ID, "Burgers", true)
	retired := dbtest.SeedCategory(t, db, f.Shop.ID, "Retired", false)

	product, err := store.CreateProduct(f.Shop.ID, ProductInput{
		Name:        "Zinger",
		Description: "Crispy",
		Price:       decimal.NewFromInt(550),
		CategoryRef: burgers.ID.String(),
	})
	require.NoError(t, err)

	price := decimal.RequireFromString("575.50")
	updated, err := store.UpdateProduct(f.Shop.ID, product.ID, ProductPatch{Price: &price})
	require.NoError(t, err)
	assert.True(t, price.Equal(updated.Price))
	assert.Equal(t, "Zinger", updated.Name)
	assert.Equal(t, "Crispy", updated.Description)
	assert.Equal(t, burgers.ID, updated.CategoryID)

	ref := retired.ID.String()
	_, err = store.UpdateProduct(f.Shop.ID, product.ID, ProductPatch{CategoryRef: &ref})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = store.UpdateProduct(uuid.New(), product.ID, ProductPatch{Price: &price})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestReactivateProductNeedsActiveCategory(t *testing.T) {
	db := dbtest.Open(t)
	store := NewStore(db)
	f := dbtest.SeedShop(t, db, "Acme", "Downtown")
	burgers := dbtest.SeedCategory(t, db, f.Shop.ID, "Burgers", true)
	wraps := dbtest.SeedCategory(t, db, f.Shop.ID, "Wraps", true)

	product, err := store.CreateProduct(f.Shop.ID, ProductInput{Name: "Zinger", Price: decimal.NewFromInt(550), CategoryRef: "Burgers"})
	require.NoError(t, err)
	_, err = store.DeleteProduct(f.Shop.ID, product.ID)
	require.NoError(t, err)

	outcome, err := store.DeleteCategory(f.Shop.ID, burgers.ID)
	require.NoError(t, err)
	require.Equal(t, CategoryDeleted, outcome)

	active := true
	_, err = store.UpdateProduct(f.Shop.ID, product.ID, ProductPatch{Status: &active})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	listed, err := store.ListProducts(f.Shop.ID, false)
	require.NoError(t, err)
	assert.Empty(t, listed)

	ref := wraps.ID.String()
	revived, err := store.UpdateProduct(f.Shop.ID, product.ID, ProductPatch{Status: &active, CategoryRef: &ref})
	require.NoError(t, err)
	assert.True(t, revived.Status)
	require.NotNil(t, revived.Category)
	assert.Equal(t, "Wraps", revived.Category.Name)
}

func TestDeleteProductIsIdempotent(t *testing.T) {
	db := dbtest.Open(t)
	store := NewStore(db)
	f := dbtest.SeedShop(t, db, "Acme", "Downtown")
	dbtest.SeedCategory(t, db, f.Shop.ID, "Burgers", true)

	product, err := store.CreateProduct(f.Shop.ID, ProductInput{Name: "Zinger", Price: decimal.NewFromInt(550), CategoryRef: "Burgers"})
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		deleted, err := store.DeleteProduct(f.Shop.ID, product.ID)
		require.NoError(t, err)
		assert.Equal(t, product.ID, deleted.ID)
	}

	active, err := store.ListProducts(f.Shop.ID, false)
	require.NoError(t, err)
	assert.Empty(t, active)

	all, err := store.ListProducts(f.Shop.ID, true)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.False(t, all[0].Status)
}
