package catalog

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yuditriaji/restopos-backend/pkg/database/dbtest"
)

func TestParseCSV(t *testing.T) {
	rows, err := parseCSV(strings.NewReader(
		"Product Name,Category,Price,Variations\n" +
			"Chicken Biryani,Rice,650,\"Half, Full\"\n" +
			",Rice,100,\n" +
			"Mint Margarita,Drinks,abc\n"))
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "Chicken Biryani", rows[0].Name)
	assert.Equal(t, "Rice", rows[0].Category)
	assert.Equal(t, "650", rows[0].Price.String())
	assert.Equal(t, []string{"Half", "Full"}, rows[0].Variations)
	assert.Equal(t, 2, rows[0].Line)

	assert.Equal(t, 4, rows[1].Line)
	assert.True(t, rows[1].Price.IsZero())
}

func TestParseRecordsNeedsNameColumn(t *testing.T) {
	_, err := parseRecords([][]string{{"Category", "Price"}, {"Rice", "10"}})
	assert.Error(t, err)
}

func TestImportCreatesAndUpdates(t *testing.T) {
	db := dbtest.Open(t)
	store := NewStore(db)
	f := dbtest.SeedShop(t, db, "Acme", "Downtown")

	rows, err := parseCSV(strings.NewReader(
		"name,category,price\n" +
			"Biryani,Rice,650\n" +
			"Pulao,Rice,500\n" +
			"Lassi,,200\n"))
	require.NoError(t, err)

	result := store.Import(f.Shop.ID, rows)
	assert.Equal(t, 3, result.TotalRows)
	assert.Equal(t, 2, result.CreatedCount)
	assert.Equal(t, 1, result.FailedCount)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "Row 4")

	rows, err = parseCSV(strings.NewReader("name,category,price\nBiryani,Rice,700\n"))
	require.NoError(t, err)
	result = store.Import(f.Shop.ID, rows)
	assert.Equal(t, 1, result.UpdatedCount)

	products, err := store.ListProducts(f.Shop.ID, false)
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, "Biryani", products[0].Name)
	assert.Equal(t, "700", products[0].Price.String())

	categories, err := store.ListCategories(f.Shop.ID, false)
	require.NoError(t, err)
	require.Len(t, categories, 1)
}
