package catalog

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/yuditriaji/restopos-backend/pkg/database"
	"github.com/yuditriaji/restopos-backend/pkg/database/dbtest"
	"github.com/yuditriaji/restopos-backend/pkg/middleware"
	"github.com/yuditriaji/restopos-backend/pkg/rbac"
	"github.com/yuditriaji/restopos-backend/pkg/token"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var tokens = token.NewManager("test-secret", "test-service-secret", time.Hour)

func newRouter(db *gorm.DB) *gin.Engine {
	h := NewHandler(db)
	r := gin.New()

	admin := r.Group("/admin", middleware.AuthRequired(tokens), middleware.RequireRole(rbac.Admin))
	admin.GET("/categories", h.ListCategories)
	admin.POST("/category/add", h.CreateCategory)
	admin.PUT("/category/update", h.UpdateCategory)
	admin.DELETE("/category/delete", h.DeleteCategory)

	manager := r.Group("/manager", middleware.AuthRequired(tokens), middleware.RequireRole(rbac.Manager))
	manager.GET("/products", h.ListProducts)
	manager.POST("/product/add", h.CreateProduct)
	manager.PUT("/product/:id", h.UpdateProduct)
	manager.DELETE("/product/:id", h.DeleteProduct)
	return r
}

func do(t *testing.T, r *gin.Engine, method, path string, p token.Principal, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	raw, err := tokens.Issue(p)
	require.NoError(t, err)

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+raw)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func principal(f dbtest.Fixture, role rbac.Role) token.Principal {
	p := token.Principal{ID: "u1", Role: role, ShopID: f.Shop.ID.String(), ShopName: f.Shop.Name}
	if role.BranchScoped() {
		p.BranchID = f.Branch.ID.String()
		p.BranchName = f.Branch.Name
	}
	return p
}

func TestCategoryEndpoints(t *testing.T) {
	db := dbtest.Open(t)
	r := newRouter(db)
	acme := dbtest.SeedShop(t, db, "Acme", "Downtown")
	other := dbtest.SeedShop(t, db, "Other", "Uptown")

	w := do(t, r, http.MethodPost, "/admin/category/add", principal(acme, rbac.Admin), gin.H{"categoryName": "Drinks"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = do(t, r, http.MethodPost, "/admin/category/add", principal(acme, rbac.Admin), gin.H{"categoryName": "Drinks"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.JSONEq(t, `{"message":"Category already exists"}`, w.Body.String())

	w = do(t, r, http.MethodPost, "/admin/category/add", principal(other, rbac.Admin), gin.H{"categoryName": "Drinks"})
	assert.Equal(t, http.StatusCreated, w.Code)

	w = do(t, r, http.MethodPost, "/admin/category/add", principal(acme, rbac.Manager), gin.H{"categoryName": "Snacks"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	var category database.Category
	require.NoError(t, db.Where("shop_id = ? AND name = ?", acme.Shop.ID, "Drinks").First(&category).Error)

	w = do(t, r, http.MethodDelete, "/admin/category/delete?categoryId="+category.ID.String(), principal(acme, rbac.Admin), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"outcome":"deleted"`)

	w = do(t, r, http.MethodDelete, "/admin/category/delete?categoryId="+category.ID.String(), principal(acme, rbac.Admin), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"outcome":"unchanged"`)

	w = do(t, r, http.MethodDelete, "/admin/category/delete", principal(acme, rbac.Admin), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestProductEndpoints(t *testing.T) {
	db := dbtest.Open(t)
	r := newRouter(db)
	acme := dbtest.SeedShop(t, db, "Acme", "Downtown")
	other := dbtest.SeedShop(t, db, "Other", "Uptown")
	dbtest.SeedCategory(t, db, acme.Shop.ID, "Burgers", true)

	w := do(t, r, http.MethodPost, "/manager/product/add", principal(acme, rbac.Manager), gin.H{
		"name":     "Zinger",
		"price":    550,
		"category": "Burgers",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created struct {
		Data database.Product `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	id := created.Data.ID.String()

	w = do(t, r, http.MethodPost, "/manager/product/add", principal(acme, rbac.Cashier), gin.H{"name": "Tea"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	// admins pass the manager routes
	w = do(t, r, http.MethodPut, "/manager/product/"+id, principal(acme, rbac.Admin), gin.H{"description": "Crispy fillet"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "Crispy fillet")

	// another shop cannot see the product
	w = do(t, r, http.MethodPut, "/manager/product/"+id, principal(other, rbac.Manager), gin.H{"description": "x"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, r, http.MethodDelete, "/manager/product/"+id, principal(acme, rbac.Manager), nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, r, http.MethodGet, "/manager/products", principal(acme, rbac.Manager), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"data":[]}`, w.Body.String())

	w = do(t, r, http.MethodGet, "/manager/products?include_inactive=true", principal(acme, rbac.Manager), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Zinger")

	w = do(t, r, http.MethodDelete, "/manager/product/not-a-uuid", principal(acme, rbac.Manager), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
