package shop

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
	admin.GET("", h.Overview)
	admin.GET("/profile", h.GetProfile)
	admin.PUT("/profile/update", h.UpdateProfile)
	admin.GET("/activity", h.Activity)
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
	p := token.Principal{ID: f.Shop.ID.String(), Role: role, ShopID: f.Shop.ID.String(), ShopName: f.Shop.Name}
	if role.BranchScoped() {
		p.BranchID = f.Branch.ID.String()
		p.BranchName = f.Branch.Name
	}
	return p
}

func TestOverviewEndpoint(t *testing.T) {
	db := dbtest.Open(t)
	r := newRouter(db)
	f := dbtest.SeedShop(t, db, "Acme", "Downtown")

	w := do(t, r, http.MethodGet, "/admin", principal(f, rbac.Admin), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var body struct {
		Data Overview `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "Acme", body.Data.Shop.Name)
	assert.Equal(t, int64(1), body.Data.Branches)
	assert.NotContains(t, w.Body.String(), "password")

	w = do(t, r, http.MethodGet, "/admin", principal(f, rbac.Manager), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestProfileAndActivityEndpoints(t *testing.T) {
	db := dbtest.Open(t)
	r := newRouter(db)
	f := dbtest.SeedShop(t, db, "Acme", "Downtown")
	admin := principal(f, rbac.Admin)

	w := do(t, r, http.MethodGet, "/admin/profile", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"shop_name":"Acme"`)

	w = do(t, r, http.MethodPut, "/admin/profile/update", admin, gin.H{"newPassword": "fresh1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Current password is required")

	w = do(t, r, http.MethodPut, "/admin/profile/update", admin, gin.H{
		"websiteLink":        "https://acme.pk",
		"total_tables":       12,
		"social_media_links": []string{"https://instagram.com/acme"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var shop database.Shop
	require.NoError(t, db.First(&shop, "id = ?", f.Shop.ID).Error)
	assert.Equal(t, "https://acme.pk", shop.WebsiteLink)
	assert.Equal(t, 12, shop.TotalTables)

	w = do(t, r, http.MethodGet, "/admin/activity?entity_type=shop", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var activity struct {
		Data []database.ActivityLog `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &activity))
	require.Len(t, activity.Data, 1)
	assert.Equal(t, "update", activity.Data[0].Action)
	assert.Equal(t, "admin", activity.Data[0].ActorRole)

	w = do(t, r, http.MethodGet, "/admin/activity?since=yesterday", admin, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
