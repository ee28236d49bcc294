package activitylog

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yuditriaji/restopos-backend/pkg/database/dbtest"
	"github.com/yuditriaji/restopos-backend/pkg/middleware"
)

func testContext(shopID, branchID string) *gin.Context {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("POST", "/", nil)
	c.Set(middleware.KeyShopID, shopID)
	c.Set(middleware.KeyBranchID, branchID)
	c.Set(middleware.KeyUserID, "user-1")
	c.Set(middleware.KeyRole, "manager")
	return c
}

func TestLogCreateAndList(t *testing.T) {
	db := dbtest.Open(t)
	l := NewLogger(db)

	shopID, branchID, productID := uuid.New(), uuid.New(), uuid.New()
	c := testContext(shopID.String(), branchID.String())

	l.LogCreate(c, "product", productID, map[string]interface{}{"name": "Tea"})
	l.LogToggle(c, "category", uuid.New(), false, "Drinks")
	// other tenants never leak into the listing
	l.LogCreate(testContext(uuid.NewString(), ""), "product", uuid.New(), nil)

	entries, err := l.List(shopID, Filter{})
	require.NoError(t, err)
	require.Len(t, entries, 2)

	products, err := l.List(shopID, Filter{EntityType: "product"})
	require.NoError(t, err)
	require.Len(t, products, 1)

	entry := products[0]
	assert.Equal(t, "create", entry.Action)
	assert.Equal(t, "user-1", entry.ActorID)
	assert.Equal(t, "manager", entry.ActorRole)
	require.NotNil(t, entry.BranchID)
	assert.Equal(t, branchID, *entry.BranchID)
	require.NotNil(t, entry.EntityID)
	assert.Equal(t, productID, *entry.EntityID)

	var details map[string]map[string]string
	require.NoError(t, json.Unmarshal([]byte(entry.Details), &details))
	assert.Equal(t, "Tea", details["new"]["name"])
}

func TestLogActivityAttributesService(t *testing.T) {
	db := dbtest.Open(t)
	l := NewLogger(db)

	shopID := uuid.New()
	c := testContext(shopID.String(), "")
	c.Set(middleware.KeyService, "ordering-system")

	l.LogCreate(c, "order", uuid.New(), nil)

	entries, err := l.List(shopID, Filter{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "ordering-system", entries[0].ActorID)
	assert.Equal(t, "service", entries[0].ActorRole)
	assert.Nil(t, entries[0].BranchID)
}

func TestLogActivityWithoutShopIsSkipped(t *testing.T) {
	db := dbtest.Open(t)
	l := NewLogger(db)

	l.LogCreate(testContext("", ""), "product", uuid.New(), nil)

	var count int64
	require.NoError(t, db.Table("activity_logs").Count(&count).Error)
	assert.Zero(t, count)
}
