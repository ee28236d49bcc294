package staff

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
	"golang.org/x/crypto/bcrypt"
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
	h.store.cost = bcrypt.MinCost
	r := gin.New()

	admin := r.Group("/admin", middleware.AuthRequired(tokens), middleware.RequireRole(rbac.Admin))
	admin.GET("/managers", h.ListManagers)
	admin.POST("/manager/add", h.CreateManager)
	admin.PUT("/manager/update", h.UpdateManager)
	admin.DELETE("/manager/delete", h.DeleteManager)

	manager := r.Group("/manager", middleware.AuthRequired(tokens), middleware.RequireRole(rbac.Manager))
	manager.GET("/cashiers", h.ListAccounts(rbac.Cashier))
	manager.POST("/cashier/add", h.AddAccount(rbac.Cashier))
	manager.GET("/kitchens", h.ListAccounts(rbac.Kitchen))
	manager.POST("/kitchen/add", h.AddAccount(rbac.Kitchen))
	manager.GET("/profile", h.GetProfile)
	manager.PUT("/profile/update", h.UpdateProfile)
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

func adminOf(f dbtest.Fixture) token.Principal {
	return token.Principal{ID: f.Shop.ID.String(), Role: rbac.Admin, ShopID: f.Shop.ID.String(), ShopName: f.Shop.Name}
}

func managerOf(f dbtest.Fixture, m database.Manager) token.Principal {
	return token.Principal{
		ID:         m.ID.String(),
		Role:       rbac.Manager,
		ShopID:     f.Shop.ID.String(),
		ShopName:   f.Shop.Name,
		BranchID:   f.Branch.ID.String(),
		BranchName: f.Branch.Name,
	}
}

func TestManagerEndpoints(t *testing.T) {
	db := dbtest.Open(t)
	r := newRouter(db)
	f := dbtest.SeedShop(t, db, "Acme", "Downtown")
	admin := adminOf(f)

	w := do(t, r, http.MethodPost, "/admin/manager/add", admin, gin.H{
		"branchName": "Downtown", "username": "ali", "password": "secret", "email": "ali@acme.pk",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.NotContains(t, w.Body.String(), "password")
	var created struct {
		Data database.Manager `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	w = do(t, r, http.MethodPost, "/admin/manager/add", admin, gin.H{"branchName": "Downtown", "username": "ali", "password": "secret"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(t, r, http.MethodPost, "/admin/manager/add", admin, gin.H{"branchName": "Downtown"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, r, http.MethodPut, "/admin/manager/update", admin, gin.H{"managerId": created.Data.ID.String(), "firstName": "Ali"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = do(t, r, http.MethodGet, "/admin/managers", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Data []database.Manager `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list.Data, 1)
	assert.Equal(t, "Ali", list.Data[0].FirstName)

	w = do(t, r, http.MethodDelete, "/admin/manager/delete?managerId="+created.Data.ID.String(), admin, nil)
	require.Equal(t, http.StatusOK, w.Code)

	other := dbtest.SeedShop(t, db, "Other", "Uptown")
	foreign := dbtest.SeedManager(t, db, other, "zed")
	w = do(t, r, http.MethodDelete, "/admin/manager/delete", admin, gin.H{"managerId": foreign.ID.String()})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestBranchAccountEndpoints(t *testing.T) {
	db := dbtest.Open(t)
	r := newRouter(db)
	f := dbtest.SeedShop(t, db, "Acme", "Downtown")
	m := dbtest.SeedManager(t, db, f, "ali")
	p := managerOf(f, m)

	w := do(t, r, http.MethodPost, "/manager/cashier/add", p, gin.H{"username": "till1", "password": "secret"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = do(t, r, http.MethodPost, "/manager/cashier/add", p, gin.H{"username": "till1", "password": "secret"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(t, r, http.MethodPost, "/manager/kitchen/add", p, gin.H{"username": "grill", "password": "secret"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = do(t, r, http.MethodGet, "/manager/cashiers", p, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var cashiers struct {
		Data       []Account `json:"data"`
		BranchName string    `json:"branchName"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &cashiers))
	require.Len(t, cashiers.Data, 1)
	assert.Equal(t, "Downtown", cashiers.BranchName)

	w = do(t, r, http.MethodGet, "/manager/kitchens", p, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"username":"grill"`)
}

func TestProfileEndpoints(t *testing.T) {
	db := dbtest.Open(t)
	r := newRouter(db)
	f := dbtest.SeedShop(t, db, "Acme", "Downtown")
	m := dbtest.SeedManager(t, db, f, "ali")
	p := managerOf(f, m)

	w := do(t, r, http.MethodGet, "/manager/profile", p, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var profile struct {
		Data Profile `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &profile))
	assert.Equal(t, "ali", profile.Data.Manager.Username)
	assert.Equal(t, "Acme", profile.Data.Shop.Name)

	w = do(t, r, http.MethodPut, "/manager/profile/update", p, gin.H{"newPassword": "fresh1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, r, http.MethodPut, "/manager/profile/update", p, gin.H{
		"newPassword": "fresh1", "currentPassword": dbtest.Password,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var stored database.Manager
	require.NoError(t, db.First(&stored, "id = ?", m.ID).Error)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("fresh1")))
}
